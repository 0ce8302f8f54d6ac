package rule

import (
	"context"
	"log/slog"

	"github.com/csd-dev-tools/stonix/internal/applicability"
	"github.com/csd-dev-tools/stonix/internal/ci"
	"github.com/csd-dev-tools/stonix/internal/cmdexec"
	"github.com/csd-dev-tools/stonix/internal/environ"
	"github.com/csd-dev-tools/stonix/internal/ledger"
)

// Ledger is the change log a rule records its fixes in.
type Ledger interface {
	RecordChgEvent(id string, p ledger.Payload) error
	RecordFileChange(path, tmpPath, id string) error
	RevertFileChange(path, id string) error
	RecordFileDelete(path, id string) error
	RevertFileDelete(d ledger.Deletion) error
	FindRuleChanges(rule int) ([]ledger.Event, error)
	DeleteEntry(id string) error
	ClearRule(rule int) error
}

// ServiceManager enables and inspects system services.
type ServiceManager interface {
	EnableService(ctx context.Context, svc string) bool
	DisableService(ctx context.Context, svc string) bool
	AuditService(ctx context.Context, svc string) bool
	IsRunning(ctx context.Context, svc string) bool
	ReloadService(ctx context.Context, svc string) bool
}

// PackageManager installs and inspects packages.
type PackageManager interface {
	Install(ctx context.Context, pkg string) (bool, error)
	Remove(ctx context.Context, pkg string) (bool, error)
	Check(ctx context.Context, pkg string) bool
	CheckAvailable(ctx context.Context, pkg string) bool
}

// Deps holds the collaborators shared by all rules of a run.
type Deps struct {
	Logger  *slog.Logger
	Facts   environ.Facts
	Checker *applicability.Checker
	Ledger  Ledger
	Runner  cmdexec.Runner
	// Services and Packages construct their managers on first use; hosts
	// without one only fail the rules that need it.
	Services func() (ServiceManager, error)
	Packages func() (PackageManager, error)
	// Store supplies stored configuration item values; nil keeps defaults.
	Store ItemStore
	// Root prefixes every host path a rule inspects. Empty on a live system.
	Root string
}

// ItemStore applies persisted values to a rule's configuration items.
type ItemStore interface {
	Apply(section string, items []*ci.Item)
}
