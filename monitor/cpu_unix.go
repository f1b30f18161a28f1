//go:build unix

package monitor

import (
	"time"

	"golang.org/x/sys/unix"
)

// processCPUTime returns the cumulative user+system CPU time consumed
// by this process.
func processCPUTime() (time.Duration, error) {
	var ru unix.Rusage
	if err := unix.Getrusage(unix.RUSAGE_SELF, &ru); err != nil {
		return 0, err
	}
	return time.Duration(ru.Utime.Nano() + ru.Stime.Nano()), nil
}
