// Package main is a demonstration host for the devprobe debugging
// engine. It enables the engine, registers a conditional breakpoint,
// simulates some work and network traffic, and prints every debug
// event to stderr until interrupted.
package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dshills/devprobe/config"
	"github.com/dshills/devprobe/console"
	"github.com/dshills/devprobe/debugger"
	"github.com/dshills/devprobe/internal/logging"
	"github.com/dshills/devprobe/monitor"
)

// Version information (set via ldflags during build).
var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	os.Exit(run())
}

func run() int {
	var (
		configPath  string
		logLevel    string
		showVersion bool
	)
	flag.StringVar(&configPath, "config", "", "Path to YAML configuration file")
	flag.StringVar(&configPath, "c", "", "Path to YAML configuration file (shorthand)")
	flag.StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	flag.BoolVar(&showVersion, "version", false, "Show version information")
	flag.Parse()

	if showVersion {
		fmt.Printf("devprobe-demo %s (%s)\n", version, commit)
		return 0
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: invalid configuration: %v\n", err)
		return 1
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}

	log := logging.New(logging.Config{
		Level:  logging.ParseLevel(cfg.Logging.Level),
		Prefix: "devprobe",
	})

	mgr, err := debugger.New(cfg, debugger.WithLogger(log))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to build debugger: %v\n", err)
		return 1
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Print every debug event as it arrives.
	sub, err := mgr.Subscribe(func(_ context.Context, ev any) error {
		fmt.Fprintf(os.Stderr, "event: %+v\n", ev)
		return nil
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: subscribe: %v\n", err)
		return 1
	}
	defer func() { _ = mgr.Unsubscribe(sub) }()

	if err := mgr.Enable(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: enable: %v\n", err)
		return 1
	}
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		_ = mgr.Close(shutdownCtx)
	}()

	// A breakpoint that fires on expensive checkouts.
	if _, err := mgr.Registry().Register("checkout", "total > 100"); err != nil {
		fmt.Fprintf(os.Stderr, "Error: register breakpoint: %v\n", err)
		return 1
	}

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)

	go simulateWork(ctx, mgr)

	// Run a couple of console commands so their results show up in
	// the event stream.
	mgr.Console().BindContext(map[string]any{"total": 150, "items": 3})
	for _, input := range []string{"total", "total / items", ":breakpoints"} {
		entry := mgr.Console().Execute(input)
		if entry.Kind == console.KindError {
			fmt.Printf("console> %s\n! %s\n", input, entry.Err)
			continue
		}
		fmt.Printf("console> %s\n%s\n", input, entry.Value)
	}

	log.Info("demo running; press Ctrl-C to stop")
	<-signals
	return 0
}

// simulateWork drives checkpoints, frames, and fake network traffic
// until the context is cancelled.
func simulateWork(ctx context.Context, mgr *debugger.Manager) {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			total := rand.Intn(200)
			mgr.Checkpoint("checkout", map[string]any{"total": total})
			mgr.RecordFrame(time.Duration(8+rand.Intn(20)) * time.Millisecond)

			if nm := mgr.NetworkMonitor(); nm != nil {
				id := nm.OnRequestObserved(monitor.RequestInfo{
					Method: "GET",
					URL:    "https://api.example.com/orders",
				})
				nm.OnResponseObserved(id, monitor.ResponseInfo{Status: 200})
			}
		}
	}
}
