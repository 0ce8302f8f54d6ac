package pkgmgr

import (
	"context"
	"log/slog"
	"time"

	"github.com/shirou/gopsutil/v3/process"
)

// processRunning scans the process table for a process named name.
func processRunning(ctx context.Context, name string) (bool, error) {
	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return false, err
	}
	for _, p := range procs {
		n, err := p.NameWithContext(ctx)
		if err != nil {
			// Process exited between listing and inspection.
			continue
		}
		if n == name {
			return true, nil
		}
	}
	return false, nil
}

// lockWaiter returns a function that blocks while another instance of the
// named process runs, polling up to opts.LockRetries times.
func lockWaiter(opts Options, logger *slog.Logger) func(ctx context.Context, name string) bool {
	return func(ctx context.Context, name string) bool {
		for try := 1; ; try++ {
			busy, err := opts.Running(ctx, name)
			if err != nil {
				logger.Debug("process scan failed", "error", err)
				return true
			}
			if !busy {
				return true
			}
			if try >= opts.LockRetries {
				logger.Warn("timed out waiting for package manager", "process", name, "tries", try)
				return false
			}
			logger.Debug("package manager in use, waiting", "process", name, "try", try)

			timer := time.NewTimer(opts.LockInterval)
			select {
			case <-ctx.Done():
				timer.Stop()
				return false
			case <-timer.C:
			}
		}
	}
}
