package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/csd-dev-tools/stonix/internal/observability/otel"
	"github.com/csd-dev-tools/stonix/internal/output"
	"github.com/csd-dev-tools/stonix/internal/runner"
)

// shutdownTimeout bounds the flush of pending spans.
const shutdownTimeout = 5 * time.Second

var reportCmd = &cobra.Command{
	Use:   "report [rule...]",
	Short: "Report compliance of the selected rules without changing the host",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runPhase(cmd, runner.PhaseReport, args)
	},
}

var fixCmd = &cobra.Command{
	Use:   "fix [rule...]",
	Short: "Fix non-compliant rules, recording every change",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runPhase(cmd, runner.PhaseFix, args)
	},
}

var undoCmd = &cobra.Command{
	Use:   "undo [rule...]",
	Short: "Revert the changes recorded by the last fix of the selected rules",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runPhase(cmd, runner.PhaseUndo, args)
	},
}

func init() {
	rootCmd.AddCommand(reportCmd, fixCmd, undoCmd)
}

func runPhase(cmd *cobra.Command, phase runner.Phase, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, phase != runner.PhaseReport)
	if err != nil {
		return fmt.Errorf("stonix %s: %w", phase, err)
	}
	defer a.Close()

	tracing, err := otel.Init(ctx, a.cfg.OTel, buildVersion)
	if err != nil {
		return fmt.Errorf("stonix %s: %w", phase, err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := tracing.Shutdown(sctx); err != nil {
			a.logger.Warn("flush traces", "error", err)
		}
	}()
	ctx = otel.WithHandle(ctx, tracing)

	rules, err := a.selectRules(args)
	if err != nil {
		return fmt.Errorf("stonix %s: %w", phase, err)
	}

	sum, runErr := runner.New(a.logger).Run(ctx, phase, rules)
	if sum != nil {
		output.New(cmd.OutOrStdout(), output.Options{NoColor: noColor, Verbose: verbose}).Summary(sum)
	}
	if runErr != nil {
		return fmt.Errorf("stonix %s: %w", phase, runErr)
	}
	if err := sum.Err(); err != nil {
		return fmt.Errorf("stonix %s: %w", phase, err)
	}
	return nil
}
