// Package output renders run results, rule lists and ledger events for the
// terminal.
package output

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fatih/color"

	"github.com/csd-dev-tools/stonix/internal/ledger"
	"github.com/csd-dev-tools/stonix/internal/runner"
)

// Options controls rendering.
type Options struct {
	// NoColor disables ANSI colors, e.g. when output is not a terminal.
	NoColor bool
	// Verbose prints the details of passing rules too.
	Verbose bool
}

// Printer writes human-readable output.
type Printer struct {
	w       io.Writer
	verbose bool

	red    *color.Color
	green  *color.Color
	yellow *color.Color
	cyan   *color.Color
	faint  *color.Color
}

// New returns a Printer writing to w.
func New(w io.Writer, opts Options) *Printer {
	p := &Printer{
		w:       w,
		verbose: opts.Verbose,
		red:     color.New(color.FgRed, color.Bold),
		green:   color.New(color.FgGreen, color.Bold),
		yellow:  color.New(color.FgYellow),
		cyan:    color.New(color.FgCyan),
		faint:   color.New(color.Faint),
	}
	if opts.NoColor {
		for _, c := range []*color.Color{p.red, p.green, p.yellow, p.cyan, p.faint} {
			c.DisableColor()
		}
	}
	return p
}

func (p *Printer) status(r runner.Result) (string, *color.Color) {
	switch {
	case r.NotApplicable:
		return "N/A", p.yellow
	case r.Phase == runner.PhaseFix && r.Skipped && r.Compliant:
		return "COMPLIANT", p.green
	case r.Phase == runner.PhaseFix && r.Skipped:
		return "SKIPPED", p.yellow
	case r.Failed():
		if r.Phase == runner.PhaseReport {
			return "NOT COMPLIANT", p.red
		}
		return "FAILED", p.red
	case r.Phase == runner.PhaseReport:
		return "COMPLIANT", p.green
	case r.Phase == runner.PhaseFix:
		return "FIXED", p.green
	default:
		return "UNDONE", p.green
	}
}

// Summary prints one line per result, the details of failures, and a
// closing tally.
func (p *Printer) Summary(sum *runner.Summary) {
	p.cyan.Fprintf(p.w, "stonix %s run %s\n", sum.Phase, sum.RunID)
	for _, r := range sum.Results {
		label, c := p.status(r)
		fmt.Fprintf(p.w, "%4d %-32s ", r.Number, r.Name)
		c.Fprintf(p.w, "%s", label)
		p.faint.Fprintf(p.w, " (%s)\n", r.Duration.Round(time.Millisecond))
		if r.Failed() || p.verbose {
			for _, d := range r.Details {
				for _, line := range strings.Split(d, "\n") {
					fmt.Fprintf(p.w, "     %s\n", line)
				}
			}
		}
	}
	passed, failed, na := sum.Counts()
	fmt.Fprintln(p.w, strings.Repeat("-", 60))
	p.green.Fprintf(p.w, "%d passed", passed)
	fmt.Fprint(p.w, ", ")
	if failed > 0 {
		p.red.Fprintf(p.w, "%d failed", failed)
	} else {
		fmt.Fprintf(p.w, "%d failed", failed)
	}
	fmt.Fprintf(p.w, ", %d not applicable in %s\n", na, sum.Finished.Sub(sum.Started).Round(time.Millisecond))
}

// RuleInfo is one row of a rule listing.
type RuleInfo struct {
	Number     int
	Name       string
	Applicable bool
	AuditOnly  bool
	Help       string
}

// Rules prints a rule listing.
func (p *Printer) Rules(rules []RuleInfo) {
	for _, r := range rules {
		fmt.Fprintf(p.w, "%4d %-32s", r.Number, r.Name)
		var tags []string
		if !r.Applicable {
			tags = append(tags, "not applicable")
		}
		if r.AuditOnly {
			tags = append(tags, "audit only")
		}
		if len(tags) > 0 {
			p.yellow.Fprintf(p.w, " [%s]", strings.Join(tags, ", "))
		}
		fmt.Fprintln(p.w)
		if p.verbose && r.Help != "" {
			p.faint.Fprintf(p.w, "     %s\n", r.Help)
		}
	}
}

// HostInfo describes the host and the managers stonix drives on it.
type HostInfo struct {
	Hostname  string
	Family    string
	OSType    string
	OSVersion string
	FISMA     string
	Root      bool
	// ServiceManager and PackageManager are empty when none was detected.
	ServiceManager string
	PackageManager string
	Services       []string
}

// Host prints host facts and, when present, the known services.
func (p *Printer) Host(h HostInfo) {
	row := func(label, value string) {
		if value == "" {
			value = "none"
		}
		p.cyan.Fprintf(p.w, "%-16s", label)
		fmt.Fprintf(p.w, " %s\n", value)
	}
	row("hostname", h.Hostname)
	row("os", strings.TrimSpace(h.OSType+" "+h.OSVersion))
	row("family", h.Family)
	row("fisma", h.FISMA)
	if h.Root {
		row("privileges", "root")
	} else {
		row("privileges", "unprivileged")
	}
	row("service manager", h.ServiceManager)
	row("package manager", h.PackageManager)
	if len(h.Services) > 0 {
		p.cyan.Fprintf(p.w, "services (%d)\n", len(h.Services))
		for _, svc := range h.Services {
			fmt.Fprintf(p.w, "  %s\n", svc)
		}
	}
}

// Events prints the ledger events of a rule.
func (p *Printer) Events(events []ledger.Event) {
	if len(events) == 0 {
		fmt.Fprintln(p.w, "no recorded changes")
		return
	}
	for _, ev := range events {
		p.cyan.Fprintf(p.w, "%s ", ev.ID)
		fmt.Fprintf(p.w, "%-14s %s", ev.Kind(), describe(ev.Payload))
		if !ev.RecordedAt.IsZero() {
			p.faint.Fprintf(p.w, " %s", ev.RecordedAt.Format(time.RFC3339))
		}
		fmt.Fprintln(p.w)
	}
}

func describe(pl ledger.Payload) string {
	switch v := pl.(type) {
	case ledger.FileConf:
		return v.Path
	case ledger.Creation:
		return v.Path
	case ledger.Deletion:
		return v.Path
	case ledger.Perm:
		return fmt.Sprintf("%s %s -> %s", v.Path, v.Start, v.End)
	case ledger.Package:
		return fmt.Sprintf("%s %s -> %s", v.Name, v.StartState, v.EndState)
	case ledger.Service:
		return fmt.Sprintf("%s %s -> %s", v.Name, v.StartState, v.EndState)
	case ledger.Command:
		return strings.Join(v.Argv, " ")
	}
	return fmt.Sprintf("%v", pl)
}
