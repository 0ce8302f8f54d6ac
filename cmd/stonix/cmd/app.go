package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/csd-dev-tools/stonix/internal/applicability"
	"github.com/csd-dev-tools/stonix/internal/ci"
	"github.com/csd-dev-tools/stonix/internal/cmdexec"
	"github.com/csd-dev-tools/stonix/internal/config"
	"github.com/csd-dev-tools/stonix/internal/environ"
	"github.com/csd-dev-tools/stonix/internal/ledger"
	"github.com/csd-dev-tools/stonix/internal/pkgmgr"
	"github.com/csd-dev-tools/stonix/internal/rule"
	"github.com/csd-dev-tools/stonix/internal/service"

	// Registers the shipped rules.
	_ "github.com/csd-dev-tools/stonix/internal/rules"
)

// app holds the collaborators of one command invocation.
type app struct {
	cfg    *config.Config
	logger *slog.Logger
	facts  environ.Facts
	deps   rule.Deps
	ledger *ledger.Ledger

	services func() (*service.Helper, error)
	packages func() (*pkgmgr.Helper, error)
}

// newApp loads configuration, collects host facts and wires the rule
// dependencies. The ledger is opened only when withLedger is set since it
// requires root.
func newApp(ctx context.Context, withLedger bool) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	logger := setupLogger(cfg.LogLevel)

	facts, err := environ.Collect(ctx, cfg.FISMA)
	if err != nil {
		return nil, err
	}
	checker, err := applicability.NewChecker(facts, logger)
	if err != nil {
		return nil, err
	}
	store, err := ci.Load(cfg.StonixConf, logger)
	if err != nil {
		return nil, err
	}
	runner := cmdexec.NewExecutor(cfg.Commands.Timeout, logger)

	a := &app{cfg: cfg, logger: logger, facts: facts}
	a.services = sync.OnceValues(func() (*service.Helper, error) {
		return service.New(runner, logger, service.Options{})
	})
	a.packages = sync.OnceValues(func() (*pkgmgr.Helper, error) {
		return pkgmgr.New(runner, logger, pkgmgr.Options{OSType: facts.OSType, Root: facts.IsRoot()})
	})
	a.deps = rule.Deps{
		Logger:  logger,
		Facts:   facts,
		Checker: checker,
		Runner:  runner,
		Store:   store,
		Services: func() (rule.ServiceManager, error) {
			h, err := a.services()
			if err != nil {
				return nil, err
			}
			return h, nil
		},
		Packages: func() (rule.PackageManager, error) {
			h, err := a.packages()
			if err != nil {
				return nil, err
			}
			return h, nil
		},
	}

	if withLedger {
		l, err := ledger.Open(cfg.Ledger, logger)
		if err != nil {
			return nil, err
		}
		a.ledger = l
		a.deps.Ledger = l
	}

	logger.Debug("host facts",
		"family", facts.Family,
		"os_type", facts.OSType,
		"os_version", facts.OSVersion,
		"euid", facts.EUID,
		"fisma", facts.FISMA,
	)
	return a, nil
}

// Close releases the ledger.
func (a *app) Close() {
	if a.ledger != nil {
		if err := a.ledger.Close(); err != nil {
			a.logger.Warn("close ledger", "error", err)
		}
	}
}

// selectRules builds the rules named by refs, or the configured include
// list when refs is empty, minus the configured exclusions.
func (a *app) selectRules(refs []string) ([]rule.Rule, error) {
	return selectRules(rule.Default(), a.deps, refs, a.cfg.Rules)
}

func selectRules(reg *rule.Registry, deps rule.Deps, refs []string, rc config.RulesConfig) ([]rule.Rule, error) {
	if len(refs) == 0 {
		refs = rc.Include
	}
	excluded := make(map[int]bool, len(rc.Exclude))
	for _, ref := range rc.Exclude {
		n, ok := reg.Lookup(ref)
		if !ok {
			return nil, fmt.Errorf("unknown excluded rule %q", ref)
		}
		excluded[n] = true
	}
	rules, err := reg.Select(deps, refs)
	if err != nil {
		return nil, err
	}
	kept := rules[:0]
	for _, rl := range rules {
		if !excluded[rl.Number()] {
			kept = append(kept, rl)
		}
	}
	return kept, nil
}
