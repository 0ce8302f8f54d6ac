package cmd

import (
	"context"
	"testing"

	"github.com/csd-dev-tools/stonix/internal/ci"
	"github.com/csd-dev-tools/stonix/internal/config"
	"github.com/csd-dev-tools/stonix/internal/rule"
)

type fakeRule struct {
	num  int
	name string
}

func (f *fakeRule) Number() int                 { return f.num }
func (f *fakeRule) Name() string                { return f.name }
func (f *fakeRule) HelpText() string            { return "" }
func (f *fakeRule) Applicable() bool            { return true }
func (f *fakeRule) AuditOnly() bool             { return false }
func (f *fakeRule) ConfigItems() []*ci.Item     { return nil }
func (f *fakeRule) Report(context.Context) bool { return true }
func (f *fakeRule) Fix(context.Context) bool    { return true }
func (f *fakeRule) Undo(context.Context) bool   { return true }
func (f *fakeRule) State() rule.State           { return rule.State{} }

func testRegistry(t *testing.T) *rule.Registry {
	t.Helper()
	reg := rule.NewRegistry()
	for num, name := range map[int]string{1: "Alpha", 2: "Beta", 3: "Gamma"} {
		num, name := num, name
		if err := reg.Register(num, name, func(rule.Deps) rule.Rule {
			return &fakeRule{num: num, name: name}
		}); err != nil {
			t.Fatal(err)
		}
	}
	return reg
}

func numbers(rules []rule.Rule) []int {
	out := make([]int, 0, len(rules))
	for _, rl := range rules {
		out = append(out, rl.Number())
	}
	return out
}

func TestSelectRules(t *testing.T) {
	tests := []struct {
		name    string
		refs    []string
		rc      config.RulesConfig
		want    []int
		wantErr bool
	}{
		{name: "all", want: []int{1, 2, 3}},
		{name: "explicit refs", refs: []string{"gamma", "1"}, want: []int{1, 3}},
		{name: "include", rc: config.RulesConfig{Include: []string{"Beta"}}, want: []int{2}},
		{name: "args override include", refs: []string{"3"}, rc: config.RulesConfig{Include: []string{"Beta"}}, want: []int{3}},
		{name: "exclude", rc: config.RulesConfig{Exclude: []string{"alpha"}}, want: []int{2, 3}},
		{name: "exclude applies to args", refs: []string{"1", "2"}, rc: config.RulesConfig{Exclude: []string{"2"}}, want: []int{1}},
		{name: "unknown ref", refs: []string{"Delta"}, wantErr: true},
		{name: "unknown exclude", rc: config.RulesConfig{Exclude: []string{"Delta"}}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := selectRules(testRegistry(t), rule.Deps{}, tt.refs, tt.rc)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("selectRules: %v", err)
			}
			nums := numbers(got)
			if len(nums) != len(tt.want) {
				t.Fatalf("got %v, want %v", nums, tt.want)
			}
			for i := range nums {
				if nums[i] != tt.want[i] {
					t.Fatalf("got %v, want %v", nums, tt.want)
				}
			}
		})
	}
}
