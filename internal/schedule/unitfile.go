package schedule

import (
	"fmt"
)

// GenerateServiceUnit produces the oneshot unit that runs the report.
func GenerateServiceUnit(cfg Config) string {
	cfg.ApplyDefaults()

	return fmt.Sprintf(`[Unit]
Description=stonix compliance report
Wants=network-online.target
After=network-online.target

[Service]
Type=oneshot
ExecStart=%s report --config %s
Nice=10
IOSchedulingClass=idle
`, cfg.BinaryPath, cfg.ConfigPath)
}

// GenerateTimerUnit produces the timer that triggers the service unit.
func GenerateTimerUnit(cfg Config) string {
	cfg.ApplyDefaults()

	return fmt.Sprintf(`[Unit]
Description=Periodic stonix compliance report

[Timer]
OnCalendar=%s
RandomizedDelaySec=%d
Persistent=true
Unit=%s

[Install]
WantedBy=timers.target
`, cfg.OnCalendar, int(cfg.RandomizedDelay.Seconds()), cfg.ServiceUnit())
}
