// Package runner executes rule phases serially, in rule number order, and
// collects their results.
package runner

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/multierr"

	"github.com/csd-dev-tools/stonix/internal/observability/otel"
	"github.com/csd-dev-tools/stonix/internal/rule"
)

// Phase is the operation a run applies to every rule.
type Phase string

const (
	PhaseReport Phase = "report"
	PhaseFix    Phase = "fix"
	PhaseUndo   Phase = "undo"
)

// Valid reports whether p is a known phase.
func (p Phase) Valid() bool {
	switch p {
	case PhaseReport, PhaseFix, PhaseUndo:
		return true
	}
	return false
}

// Result is the outcome of one rule in a run.
type Result struct {
	Number int
	Name   string
	Phase  Phase
	// Compliant is the last report verdict. For a fix it is the verdict of
	// the report that follows the fix.
	Compliant bool
	// Success is set when a fix or undo completed.
	Success bool
	// Skipped is set for rules that were not applicable, already compliant
	// before a fix, or whose fix is disabled.
	Skipped       bool
	NotApplicable bool
	Details       []string
	Duration      time.Duration
}

// Failed reports whether the result counts against the run.
func (r Result) Failed() bool {
	if r.NotApplicable {
		return false
	}
	switch r.Phase {
	case PhaseReport:
		return !r.Compliant
	case PhaseFix:
		return !r.Success || !r.Compliant
	default:
		return !r.Success
	}
}

// Summary collects the results of a run.
type Summary struct {
	RunID    string
	Phase    Phase
	Started  time.Time
	Finished time.Time
	Results  []Result
}

// Err aggregates one error per failed rule, or nil when every rule passed.
func (s *Summary) Err() error {
	var err error
	for _, r := range s.Results {
		if r.Failed() {
			err = multierr.Append(err, fmt.Errorf("rule %d %s: %s failed", r.Number, r.Name, r.Phase))
		}
	}
	return err
}

// Counts returns the number of passed, failed and not applicable results.
func (s *Summary) Counts() (passed, failed, skipped int) {
	for _, r := range s.Results {
		switch {
		case r.NotApplicable:
			skipped++
		case r.Failed():
			failed++
		default:
			passed++
		}
	}
	return passed, failed, skipped
}

// Runner runs rule phases.
type Runner struct {
	logger *slog.Logger
	now    func() time.Time
	newID  func() string
}

// New returns a Runner.
func New(logger *slog.Logger) *Runner {
	return &Runner{
		logger: logger.With("component", "runner"),
		now:    time.Now,
		newID:  uuid.NewString,
	}
}

// Run applies phase to rules in number order. It checks ctx between rules
// and returns the results gathered so far together with ctx's error when
// the run is cancelled.
func (r *Runner) Run(ctx context.Context, phase Phase, rules []rule.Rule) (*Summary, error) {
	if !phase.Valid() {
		return nil, fmt.Errorf("runner: unknown phase %q", phase)
	}
	ordered := slices.Clone(rules)
	slices.SortFunc(ordered, func(a, b rule.Rule) int { return a.Number() - b.Number() })

	sum := &Summary{RunID: r.newID(), Phase: phase, Started: r.now()}
	logger := r.logger.With("run_id", sum.RunID, "phase", string(phase))
	tracer := otel.From(ctx).Tracer

	ctx, runSpan := tracer.Start(ctx, "stonix."+string(phase), trace.WithAttributes(
		attribute.String("stonix.run_id", sum.RunID),
		attribute.Int("stonix.rule_count", len(ordered)),
	))
	defer runSpan.End()

	logger.Info("run started", "rules", len(ordered))
	for _, rl := range ordered {
		if err := ctx.Err(); err != nil {
			sum.Finished = r.now()
			logger.Warn("run cancelled", "completed", len(sum.Results), "error", err)
			runSpan.SetStatus(codes.Error, "cancelled")
			return sum, err
		}
		res := r.runRule(ctx, tracer, phase, rl)
		logger.Debug("rule finished",
			"rule", res.Name,
			"number", res.Number,
			"compliant", res.Compliant,
			"success", res.Success,
			"skipped", res.Skipped,
			"duration", res.Duration,
		)
		sum.Results = append(sum.Results, res)
	}
	sum.Finished = r.now()

	passed, failed, skipped := sum.Counts()
	logger.Info("run completed",
		"passed", passed,
		"failed", failed,
		"not_applicable", skipped,
		"duration", sum.Finished.Sub(sum.Started),
	)
	if failed > 0 {
		runSpan.SetStatus(codes.Error, fmt.Sprintf("%d rules failed", failed))
	}
	return sum, nil
}

func (r *Runner) runRule(ctx context.Context, tracer trace.Tracer, phase Phase, rl rule.Rule) Result {
	start := r.now()
	res := Result{Number: rl.Number(), Name: rl.Name(), Phase: phase}

	ctx, span := tracer.Start(ctx, "stonix.rule."+string(phase), trace.WithAttributes(
		attribute.Int("stonix.rule.number", res.Number),
		attribute.String("stonix.rule.name", res.Name),
	))
	defer span.End()

	if !rl.Applicable() {
		res.NotApplicable = true
		res.Skipped = true
		res.Details = []string{"not applicable to this system"}
		res.Duration = r.now().Sub(start)
		span.SetAttributes(attribute.Bool("stonix.rule.applicable", false))
		return res
	}

	switch phase {
	case PhaseReport:
		res.Compliant = rl.Report(ctx)
		res.Details = rl.State().Details
	case PhaseFix:
		r.fix(ctx, rl, &res)
	case PhaseUndo:
		res.Success = rl.Undo(ctx)
		res.Details = rl.State().Details
	}
	res.Duration = r.now().Sub(start)

	span.SetAttributes(
		attribute.Bool("stonix.rule.compliant", res.Compliant),
		attribute.Bool("stonix.rule.success", res.Success),
		attribute.Bool("stonix.rule.skipped", res.Skipped),
	)
	if res.Failed() {
		span.SetStatus(codes.Error, string(phase)+" failed")
	}
	return res
}

// fix reports first, leaves compliant rules alone, fixes the rest and
// reports again.
func (r *Runner) fix(ctx context.Context, rl rule.Rule, res *Result) {
	if rl.Report(ctx) {
		res.Compliant = true
		res.Success = true
		res.Skipped = true
		res.Details = append([]string{"already compliant"}, rl.State().Details...)
		return
	}
	before := rl.State().Details

	res.Success = rl.Fix(ctx)
	st := rl.State()
	res.Details = st.Details
	if st.Skipped {
		res.Skipped = true
		res.Details = append(res.Details, before...)
		// A skipped fix leaves the rule as reported.
		res.Compliant = false
		return
	}

	res.Compliant = rl.Report(ctx)
	res.Details = append(res.Details, rl.State().Details...)
}
