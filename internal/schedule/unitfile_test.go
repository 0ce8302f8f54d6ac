package schedule

import (
	"strings"
	"testing"
	"time"
)

func TestGenerateServiceUnit_Defaults(t *testing.T) {
	out := GenerateServiceUnit(Config{})
	for _, want := range []string{
		"[Unit]",
		"[Service]",
		"Type=oneshot",
		"ExecStart=/usr/local/bin/stonix report --config /etc/stonix/config.yaml",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("service unit missing %q", want)
		}
	}
	if strings.Contains(out, "[Install]") {
		t.Error("service unit has an [Install] section; only the timer is enabled")
	}
}

func TestGenerateTimerUnit(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		want []string
	}{
		{
			name: "defaults",
			cfg:  Config{},
			want: []string{"OnCalendar=daily", "RandomizedDelaySec=3600", "Unit=stonix-report.service", "WantedBy=timers.target", "Persistent=true"},
		},
		{
			name: "custom",
			cfg:  Config{UnitName: "nightly-audit", OnCalendar: "*-*-* 02:00:00", RandomizedDelay: 90 * time.Second},
			want: []string{"OnCalendar=*-*-* 02:00:00", "RandomizedDelaySec=90", "Unit=nightly-audit.service"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := GenerateTimerUnit(tt.cfg)
			for _, want := range tt.want {
				if !strings.Contains(out, want) {
					t.Errorf("timer unit missing %q:\n%s", want, out)
				}
			}
		})
	}
}
