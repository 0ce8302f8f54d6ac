package rule

import (
	"context"
	"errors"
	"fmt"
	"os"

	"go.uber.org/multierr"

	"github.com/csd-dev-tools/stonix/internal/cmdexec"
	"github.com/csd-dev-tools/stonix/internal/fsutil"
	"github.com/csd-dev-tools/stonix/internal/ledger"
)

// UndoChanges reverts the rule's events newest first. Each event that is
// reverted is removed from the ledger; failures are logged and itemized in
// the details and leave their event in place. The error is non-nil only
// when the ledger cannot be read.
func (b *Base) UndoChanges(ctx context.Context) (bool, error) {
	events, err := b.deps.Ledger.FindRuleChanges(b.info.Number)
	if err != nil {
		return false, err
	}
	if len(events) == 0 {
		b.Detailf("no recorded changes to undo")
		return true, nil
	}

	var errs error
	for i := len(events) - 1; i >= 0; i-- {
		ev := events[i]
		if err := ctx.Err(); err != nil {
			errs = multierr.Append(errs, err)
			break
		}
		if err := b.RevertEvent(ctx, ev); err != nil {
			b.logger.Warn("undo of change failed", "event_id", ev.ID, "kind", ev.Kind(), "error", err)
			b.Detailf("could not undo %s change %s: %v", ev.Kind(), ev.ID, err)
			errs = multierr.Append(errs, err)
			continue
		}
		if err := b.deps.Ledger.DeleteEntry(ev.ID); err != nil {
			errs = multierr.Append(errs, err)
		}
	}
	if errs != nil {
		b.logger.Warn("undo incomplete", "failures", len(multierr.Errors(errs)))
		return false, nil
	}
	b.Detailf("reverted %d change(s)", len(events))
	return true, nil
}

// RevertEvent reverses a single recorded change.
func (b *Base) RevertEvent(ctx context.Context, ev ledger.Event) error {
	switch p := ev.Payload.(type) {
	case ledger.FileConf:
		return b.deps.Ledger.RevertFileChange(p.Path, ev.ID)
	case ledger.Creation:
		if err := os.Remove(p.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("rule: remove created %s: %w", p.Path, err)
		}
		return nil
	case ledger.Deletion:
		return b.deps.Ledger.RevertFileDelete(p)
	case ledger.Perm:
		return fsutil.Apply(p.Path, p.Start)
	case ledger.Package:
		return b.revertPackage(ctx, p)
	case ledger.Service:
		return b.revertService(ctx, p)
	case ledger.Command:
		return b.runUndoCommand(ctx, p.Argv)
	}
	return fmt.Errorf("rule: unknown change kind %q", ev.Kind())
}

func (b *Base) revertPackage(ctx context.Context, p ledger.Package) error {
	if p.StartState == p.EndState {
		return nil
	}
	pm, err := b.Packages()
	if err != nil {
		return err
	}
	var ok bool
	switch p.StartState {
	case ledger.StateInstalled:
		ok, err = pm.Install(ctx, p.Name)
	case ledger.StateRemoved:
		ok, err = pm.Remove(ctx, p.Name)
	default:
		return fmt.Errorf("rule: package %s: unknown state %q", p.Name, p.StartState)
	}
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("rule: restore package %s to %s failed", p.Name, p.StartState)
	}
	return nil
}

func (b *Base) revertService(ctx context.Context, p ledger.Service) error {
	if p.StartState == p.EndState {
		return nil
	}
	sm, err := b.Services()
	if err != nil {
		return err
	}
	name := p.Name
	if p.Target != "" {
		name = p.Target
	}
	var ok bool
	switch p.StartState {
	case ledger.StateEnabled:
		ok = sm.EnableService(ctx, name)
	case ledger.StateDisabled:
		ok = sm.DisableService(ctx, name)
	default:
		return fmt.Errorf("rule: service %s: unknown state %q", name, p.StartState)
	}
	if !ok {
		return fmt.Errorf("rule: restore service %s to %s failed", name, p.StartState)
	}
	return nil
}

func (b *Base) runUndoCommand(ctx context.Context, argv []string) error {
	if len(argv) == 0 {
		return errors.New("rule: empty undo command")
	}
	if b.deps.Runner == nil {
		return errors.New("rule: no command runner configured")
	}
	cmd := cmdexec.Cmd(argv[0], argv[1:]...)
	res, err := b.deps.Runner.Run(ctx, cmd)
	if err != nil {
		return fmt.Errorf("rule: run %s: %w", cmd, err)
	}
	if !res.OK() {
		return fmt.Errorf("rule: run %s: exit status %d", cmd, res.ExitCode)
	}
	return nil
}
