package dispatch

import (
	"context"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"
)

// AsyncDispatcher executes handlers asynchronously using a worker pool.
// It provides bounded queuing, graceful shutdown, and configurable timeouts.
// Publishing never blocks: when the queue is full the task is dropped and
// counted, which is what keeps slow subscribers from stalling sampling.
type AsyncDispatcher struct {
	// Configuration
	queueSize   int
	workerCount int
	timeout     time.Duration

	// State
	mu      sync.Mutex // protects queue creation/destruction
	queue   chan asyncTask
	running atomic.Bool
	wg      sync.WaitGroup

	// Handlers
	panicHandler PanicHandler

	// Stats
	enqueued    atomic.Uint64
	processed   atomic.Uint64
	succeeded   atomic.Uint64
	failed      atomic.Uint64
	panicked    atomic.Uint64
	dropped     atomic.Uint64
	timedOut    atomic.Uint64
	totalTimeNs atomic.Int64
}

// asyncTask represents a task to be executed asynchronously.
type asyncTask struct {
	ctx     context.Context
	event   any
	handler Handler
	timeout time.Duration
}

// NewAsyncDispatcher creates a new asynchronous dispatcher.
func NewAsyncDispatcher(opts ...AsyncOption) *AsyncDispatcher {
	d := &AsyncDispatcher{
		queueSize:    1024,
		workerCount:  4,
		timeout:      5 * time.Second,
		panicHandler: defaultPanicHandler,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// AsyncOption configures an AsyncDispatcher.
type AsyncOption func(*AsyncDispatcher)

// WithQueueSize sets the task queue size.
func WithQueueSize(size int) AsyncOption {
	return func(d *AsyncDispatcher) {
		if size > 0 {
			d.queueSize = size
		}
	}
}

// WithWorkerCount sets the number of worker goroutines.
func WithWorkerCount(count int) AsyncOption {
	return func(d *AsyncDispatcher) {
		if count > 0 {
			d.workerCount = count
		}
	}
}

// WithAsyncTimeout sets the default handler execution timeout.
func WithAsyncTimeout(timeout time.Duration) AsyncOption {
	return func(d *AsyncDispatcher) {
		d.timeout = timeout
	}
}

// WithAsyncPanicHandler sets the panic handler for async execution.
func WithAsyncPanicHandler(h PanicHandler) AsyncOption {
	return func(d *AsyncDispatcher) {
		if h != nil {
			d.panicHandler = h
		}
	}
}

// Start starts the worker pool.
func (d *AsyncDispatcher) Start() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.running.Load() {
		return ErrAlreadyRunning
	}

	d.queue = make(chan asyncTask, d.queueSize)
	d.running.Store(true)

	for i := 0; i < d.workerCount; i++ {
		d.wg.Add(1)
		go d.worker()
	}

	return nil
}

// Stop stops the worker pool gracefully.
// It waits for all queued tasks to complete or until context is cancelled.
func (d *AsyncDispatcher) Stop(ctx context.Context) error {
	d.mu.Lock()
	if !d.running.Load() {
		d.mu.Unlock()
		return ErrNotRunning
	}

	d.running.Store(false)
	// Closing the queue signals workers to drain and exit.
	close(d.queue)
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Enqueue adds a task to the queue for asynchronous execution.
// Returns ErrQueueFull if the queue is at capacity.
// The mutex is held across the send so a concurrent Stop cannot close
// the queue between the running check and the send.
func (d *AsyncDispatcher) Enqueue(ctx context.Context, event any, handler Handler) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.running.Load() {
		return ErrNotRunning
	}

	task := asyncTask{
		ctx:     ctx,
		event:   event,
		handler: handler,
		timeout: d.timeout,
	}

	select {
	case d.queue <- task:
		d.enqueued.Add(1)
		return nil
	default:
		d.dropped.Add(1)
		return ErrQueueFull
	}
}

// worker processes tasks from the queue.
func (d *AsyncDispatcher) worker() {
	defer d.wg.Done()

	executor := NewExecutor(WithExecutorPanicHandler(d.panicHandler))

	for task := range d.queue {
		d.executeTask(executor, task)
	}
}

// executeTask executes a single task with timeout and panic recovery.
func (d *AsyncDispatcher) executeTask(executor *Executor, task asyncTask) {
	d.processed.Add(1)
	start := time.Now()

	// Tracks whether the executor already accounted for a panic, so an
	// escaped panic is not double-counted.
	var executorHandled bool

	defer func() {
		if r := recover(); r != nil {
			if !executorHandled {
				d.panicked.Add(1)
			}
			stack := debug.Stack()
			func() {
				defer func() { _ = recover() }()
				d.panicHandler(task.event, r, stack)
			}()
		}
		d.totalTimeNs.Add(time.Since(start).Nanoseconds())
	}()

	select {
	case <-task.ctx.Done():
		d.failed.Add(1)
		return
	default:
	}

	result := executor.ExecuteWithTimeout(task.ctx, task.event, task.handler, task.timeout)
	executorHandled = true

	switch {
	case result.Skipped:
		d.failed.Add(1)
	case result.Panicked:
		d.panicked.Add(1)
	case result.Error != nil:
		if result.Error == context.DeadlineExceeded {
			d.timedOut.Add(1)
		}
		d.failed.Add(1)
	case result.Success:
		d.succeeded.Add(1)
	}
}

// QueueDepth returns the current number of tasks in the queue.
// Returns 0 if the dispatcher is not running.
func (d *AsyncDispatcher) QueueDepth() int {
	if !d.running.Load() {
		return 0
	}
	return len(d.queue)
}

// IsRunning returns true if the dispatcher is running.
func (d *AsyncDispatcher) IsRunning() bool {
	return d.running.Load()
}

// Stats returns dispatcher statistics.
func (d *AsyncDispatcher) Stats() AsyncDispatcherStats {
	processed := d.processed.Load()
	totalNs := d.totalTimeNs.Load()

	var avgNs int64
	if processed > 0 {
		avgNs = totalNs / int64(processed)
	}

	return AsyncDispatcherStats{
		Enqueued:      d.enqueued.Load(),
		Processed:     processed,
		Succeeded:     d.succeeded.Load(),
		Failed:        d.failed.Load(),
		Panicked:      d.panicked.Load(),
		Dropped:       d.dropped.Load(),
		TimedOut:      d.timedOut.Load(),
		QueueDepth:    d.QueueDepth(),
		TotalDuration: time.Duration(totalNs),
		AvgDuration:   time.Duration(avgNs),
	}
}

// AsyncDispatcherStats contains statistics for an async dispatcher.
type AsyncDispatcherStats struct {
	// Enqueued is the total number of tasks added to the queue.
	Enqueued uint64

	// Processed is the number of tasks that have been processed.
	Processed uint64

	// Succeeded is the number of successful handler executions.
	Succeeded uint64

	// Failed is the number of handlers that returned errors.
	Failed uint64

	// Panicked is the number of handlers that panicked.
	Panicked uint64

	// Dropped is the number of tasks dropped due to the queue being full.
	Dropped uint64

	// TimedOut is the number of handlers that timed out.
	TimedOut uint64

	// QueueDepth is the current number of tasks waiting in the queue.
	QueueDepth int

	// TotalDuration is the cumulative time spent processing tasks.
	TotalDuration time.Duration

	// AvgDuration is the average task processing time.
	AvgDuration time.Duration
}
