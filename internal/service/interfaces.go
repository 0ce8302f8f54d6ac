// Package service manages boot-time enablement and run state of system
// services through whichever service manager the host uses.
package service

import "context"

// Backend drives one service manager. Methods return false for unknown
// services and on command failure; failures are logged by the backend.
type Backend interface {
	// Name identifies the backend, e.g. "systemctl".
	Name() string

	// Enable enables the service at boot and starts it.
	Enable(ctx context.Context, svc string) bool

	// Disable disables the service at boot and stops it.
	Disable(ctx context.Context, svc string) bool

	// Audit returns true if the service is enabled at boot.
	Audit(ctx context.Context, svc string) bool

	// IsRunning returns true if the service is currently running.
	IsRunning(ctx context.Context, svc string) bool

	// Reload reloads or restarts the service and returns true if it runs afterwards.
	Reload(ctx context.Context, svc string) bool

	// List returns the services known to the manager.
	List(ctx context.Context) ([]string, error)
}
