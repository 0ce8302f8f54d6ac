package runner

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"reflect"
	"testing"

	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/goleak"

	"github.com/csd-dev-tools/stonix/internal/observability/otel"
	"github.com/csd-dev-tools/stonix/internal/rule"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func names(s *Summary) []string {
	var out []string
	for _, r := range s.Results {
		out = append(out, r.Name)
	}
	return out
}

func TestRun_ReportInNumberOrder(t *testing.T) {
	a := newMockRule(42, "B", true)
	b := newMockRule(8, "A", false)
	na := newMockRule(15, "C", false)
	na.applicable = false

	sum, err := New(testLogger()).Run(context.Background(), PhaseReport, []rule.Rule{a, b, na})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if got := names(sum); !reflect.DeepEqual(got, []string{"A", "C", "B"}) {
		t.Fatalf("order = %v", got)
	}
	if sum.RunID == "" {
		t.Error("RunID is empty")
	}
	if len(na.calls) != 0 {
		t.Errorf("inapplicable rule was run: %v", na.calls)
	}
	passed, failed, skipped := sum.Counts()
	if passed != 1 || failed != 1 || skipped != 1 {
		t.Errorf("counts = %d/%d/%d", passed, failed, skipped)
	}
	if err := sum.Err(); err == nil {
		t.Error("Err() = nil with a non-compliant rule")
	}
}

func TestRun_Fix(t *testing.T) {
	tests := []struct {
		name          string
		rule          *mockRule
		wantCalls     []string
		wantSuccess   bool
		wantCompliant bool
		wantSkipped   bool
	}{
		{"already compliant", newMockRule(1, "ok", true), []string{"report"}, true, true, true},
		{"fixed", newMockRule(1, "fixable", false), []string{"report", "fix", "report"}, true, true, false},
		{"fix fails", &mockRule{number: 1, name: "broken", applicable: true, fixFails: true}, []string{"report", "fix", "report"}, false, false, false},
		{"fix disabled", &mockRule{number: 1, name: "off", applicable: true, fixSkipped: true}, []string{"report", "fix"}, true, false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sum, err := New(testLogger()).Run(context.Background(), PhaseFix, []rule.Rule{tt.rule})
			if err != nil {
				t.Fatalf("Run() error = %v", err)
			}
			if !reflect.DeepEqual(tt.rule.calls, tt.wantCalls) {
				t.Errorf("calls = %v, want %v", tt.rule.calls, tt.wantCalls)
			}
			res := sum.Results[0]
			if res.Success != tt.wantSuccess || res.Compliant != tt.wantCompliant || res.Skipped != tt.wantSkipped {
				t.Errorf("result = %+v", res)
			}
		})
	}
}

func TestRun_Undo(t *testing.T) {
	r := newMockRule(3, "undoable", true)
	sum, err := New(testLogger()).Run(context.Background(), PhaseUndo, []rule.Rule{r})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !sum.Results[0].Success || sum.Err() != nil {
		t.Errorf("result = %+v", sum.Results[0])
	}
}

func TestRun_CancelBetweenRules(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	first := newMockRule(1, "first", true)
	first.onReport = cancel
	second := newMockRule(2, "second", true)

	sum, err := New(testLogger()).Run(ctx, PhaseReport, []rule.Rule{second, first})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Run() error = %v, want context.Canceled", err)
	}
	if len(sum.Results) != 1 || sum.Results[0].Name != "first" {
		t.Errorf("results = %v", names(sum))
	}
	if len(second.calls) != 0 {
		t.Errorf("second rule ran after cancel: %v", second.calls)
	}
}

func TestRun_UnknownPhase(t *testing.T) {
	if _, err := New(testLogger()).Run(context.Background(), Phase("audit"), nil); err == nil {
		t.Fatal("Run() with unknown phase succeeded")
	}
}

func TestRun_Spans(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	defer tp.Shutdown(context.Background())
	ctx := otel.WithHandle(context.Background(), otel.InitWithProvider(tp))

	rules := []rule.Rule{newMockRule(1, "good", true), newMockRule(2, "bad", false)}
	if _, err := New(testLogger()).Run(ctx, PhaseReport, rules); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	spans := recorder.Ended()
	if len(spans) != 3 {
		t.Fatalf("got %d spans, want 3", len(spans))
	}
	if spans[1].Status().Code != codes.Error {
		t.Errorf("failing rule span status = %v", spans[1].Status())
	}
	if spans[2].Name() != "stonix.report" || spans[2].Status().Code != codes.Error {
		t.Errorf("run span = %s %v", spans[2].Name(), spans[2].Status())
	}
}
