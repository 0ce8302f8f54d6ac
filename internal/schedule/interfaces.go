package schedule

import "context"

// SystemdController abstracts the systemctl calls the installer makes.
type SystemdController interface {
	// IsAvailable reports whether systemctl exists on the host.
	IsAvailable() bool

	// DaemonReload reloads unit files.
	DaemonReload(ctx context.Context) error

	// EnableNow enables and starts a unit.
	EnableNow(ctx context.Context, unit string) error

	// DisableNow disables and stops a unit.
	DisableNow(ctx context.Context, unit string) error
}

// RootChecker abstracts privilege checking for testability.
type RootChecker interface {
	IsRoot() bool
}
