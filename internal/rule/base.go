package rule

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"runtime/debug"

	"github.com/csd-dev-tools/stonix/internal/applicability"
	"github.com/csd-dev-tools/stonix/internal/ci"
	"github.com/csd-dev-tools/stonix/internal/ledger"
)

// ErrNoLedger is returned when a fix runs without a change ledger.
var ErrNoLedger = errors.New("rule: no change ledger")

// Info is the static description of a rule.
type Info struct {
	Number int
	Name   string
	Help   string
	// Guidance lists the baseline references the rule implements.
	Guidance     []string
	Mandatory    bool
	RootRequired bool
	AuditOnly    bool
	Applies      applicability.Spec
}

// Body is the rule-specific part of a report or fix. A returned error is a
// failure of the check itself and is recorded in the details.
type Body func(ctx context.Context) (bool, error)

// Base implements the lifecycle plumbing of a rule. Concrete rules embed it
// and implement Report and Fix by passing their bodies to RunReport and
// RunFix.
type Base struct {
	info   Info
	deps   Deps
	logger *slog.Logger

	items  []*ci.Item
	enable *ci.Item
	ids    *ledger.IDs
	state  State
}

// NewBase returns a Base for info.
func NewBase(info Info, deps Deps) Base {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return Base{
		info:   info,
		deps:   deps,
		logger: deps.Logger.With("component", "rule", "rule", info.Name, "number", info.Number),
		state:  State{Phase: PhaseNew},
	}
}

func (b *Base) Number() int             { return b.info.Number }
func (b *Base) Name() string            { return b.info.Name }
func (b *Base) HelpText() string        { return b.info.Help }
func (b *Base) AuditOnly() bool         { return b.info.AuditOnly }
func (b *Base) Info() Info              { return b.info }
func (b *Base) ConfigItems() []*ci.Item { return b.items }
func (b *Base) Deps() Deps              { return b.deps }
func (b *Base) Logger() *slog.Logger    { return b.logger }

// State returns a copy of the rule's state.
func (b *Base) State() State {
	s := b.state
	s.Details = append([]string(nil), b.state.Details...)
	return s
}

// Applicable evaluates the rule's applicability spec against the host.
func (b *Base) Applicable() bool {
	if b.deps.Checker == nil {
		return true
	}
	return b.deps.Checker.Applicable(b.info.Applies)
}

// Path returns the host path p below the configured root.
func (b *Base) Path(p string) string {
	if b.deps.Root == "" {
		return p
	}
	return filepath.Join(b.deps.Root, p)
}

// AddItem registers a configuration item. cfg must be valid.
func (b *Base) AddItem(cfg ci.Config) *ci.Item {
	it := ci.MustNew(cfg)
	b.items = append(b.items, it)
	return it
}

// AddEnableItem registers the bool item that gates Fix.
func (b *Base) AddEnableItem(key, instructions string) *ci.Item {
	b.enable = b.AddItem(ci.Config{
		Key:          key,
		Datatype:     ci.Bool,
		Default:      true,
		Instructions: instructions,
		Simple:       true,
	})
	return b.enable
}

// Detailf appends a line to the details of the current call.
func (b *Base) Detailf(format string, args ...any) {
	b.state.Details = append(b.state.Details, fmt.Sprintf(format, args...))
}

// NextEventID returns the next change event id of the running fix.
func (b *Base) NextEventID() (string, error) {
	if b.ids == nil {
		b.ids = ledger.NewIDs(b.info.Number)
	}
	return b.ids.Next()
}

// Record stores p under the next event id.
func (b *Base) Record(p ledger.Payload) error {
	if b.deps.Ledger == nil {
		return ErrNoLedger
	}
	id, err := b.NextEventID()
	if err != nil {
		return err
	}
	return b.deps.Ledger.RecordChgEvent(id, p)
}

// Services returns the service manager.
func (b *Base) Services() (ServiceManager, error) {
	if b.deps.Services == nil {
		return nil, errors.New("rule: no service manager configured")
	}
	return b.deps.Services()
}

// Packages returns the package manager.
func (b *Base) Packages() (PackageManager, error) {
	if b.deps.Packages == nil {
		return nil, errors.New("rule: no package manager configured")
	}
	return b.deps.Packages()
}

// RunReport runs body and stores its verdict. Errors and panics make the
// rule non-compliant.
func (b *Base) RunReport(ctx context.Context, body Body) bool {
	b.state.Details = nil
	b.state.Phase = PhaseReported
	b.state.Compliant = false

	if b.info.RootRequired && !b.deps.Facts.IsRoot() {
		b.Detailf("%s requires root privileges to report", b.info.Name)
		return false
	}
	compliant, err := b.guard(ctx, "report", body)
	if err != nil {
		b.Detailf("report failed: %v", err)
		return false
	}
	b.state.Compliant = compliant
	b.logger.Debug("report complete", "compliant", compliant)
	return compliant
}

// RunFix clears the rule's previous changes and runs body when fixing is
// enabled. Errors and panics make the fix unsuccessful.
func (b *Base) RunFix(ctx context.Context, body Body) bool {
	b.state.Details = nil
	b.state.Phase = PhaseFixed
	b.state.Success = false
	b.state.Skipped = false

	switch {
	case b.info.AuditOnly:
		b.state.Skipped = true
		b.Detailf("%s is audit only and has no fix", b.info.Name)
		return true
	case b.enable != nil && !b.enable.Bool():
		b.state.Skipped = true
		b.Detailf("fix disabled by %s", b.enable.Key())
		return true
	case b.info.RootRequired && !b.deps.Facts.IsRoot():
		b.Detailf("%s requires root privileges to fix", b.info.Name)
		return false
	case b.deps.Ledger == nil:
		b.Detailf("fix failed: %v", ErrNoLedger)
		return false
	}

	if err := b.deps.Ledger.ClearRule(b.info.Number); err != nil {
		b.logger.Error("clear previous changes failed", "error", err)
		b.Detailf("fix failed: %v", err)
		return false
	}
	b.ids = ledger.NewIDs(b.info.Number)

	success, err := b.guard(ctx, "fix", body)
	if err != nil {
		b.Detailf("fix failed: %v", err)
		return false
	}
	b.state.Success = success
	b.logger.Info("fix complete", "success", success)
	return success
}

// Undo reverses the rule's recorded changes.
func (b *Base) Undo(ctx context.Context) bool {
	b.state.Details = nil
	b.state.Phase = PhaseUndone
	b.state.Success = false

	if b.deps.Ledger == nil {
		b.Detailf("undo failed: %v", ErrNoLedger)
		return false
	}
	ok, err := b.guard(ctx, "undo", func(ctx context.Context) (bool, error) {
		return b.UndoChanges(ctx)
	})
	if err != nil {
		b.Detailf("undo failed: %v", err)
		return false
	}
	b.state.Success = ok
	return ok
}

// guard runs body, converting panics into errors and logging failures.
func (b *Base) guard(ctx context.Context, phase string, body Body) (ok bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			ok = false
			err = fmt.Errorf("panic: %v", r)
			b.logger.Error("rule panicked",
				"phase", phase,
				"panic", r,
				"stack", string(debug.Stack()),
			)
		}
	}()
	if err := ctx.Err(); err != nil {
		return false, err
	}
	ok, err = body(ctx)
	if err != nil {
		b.logger.Error("rule failed", "phase", phase, "error", err)
	}
	return ok, err
}
