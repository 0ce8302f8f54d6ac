package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/csd-dev-tools/stonix/internal/cmdexec"
	"github.com/csd-dev-tools/stonix/internal/config"
	"github.com/csd-dev-tools/stonix/internal/environ"
	"github.com/csd-dev-tools/stonix/internal/schedule"
	"github.com/csd-dev-tools/stonix/internal/service"
)

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Manage the periodic report timer",
}

var scheduleInstallCmd = &cobra.Command{
	Use:   "install",
	Short: "Install and enable a systemd timer running a daily report",
	Args:  cobra.NoArgs,
	RunE:  runScheduleInstall,
}

var scheduleUninstallCmd = &cobra.Command{
	Use:   "uninstall",
	Short: "Disable and remove the report timer",
	Args:  cobra.NoArgs,
	RunE:  runScheduleUninstall,
}

func init() {
	scheduleCmd.AddCommand(scheduleInstallCmd, scheduleUninstallCmd)
	rootCmd.AddCommand(scheduleCmd)
}

func newInstaller() (*schedule.Installer, *config.Config, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	logger := setupLogger(cfg.LogLevel)
	systemctl := service.NewSystemctl(cmdexec.NewExecutor(cfg.Commands.Timeout, logger), logger)
	facts := environ.Facts{EUID: os.Geteuid()}
	return schedule.NewInstaller(cfg.Schedule, systemctl, facts, logger), cfg, nil
}

func runScheduleInstall(cmd *cobra.Command, _ []string) error {
	ins, cfg, err := newInstaller()
	if err != nil {
		return fmt.Errorf("stonix schedule install: %w", err)
	}
	if err := ins.Install(cmd.Context()); err != nil {
		return fmt.Errorf("stonix schedule install: %w", err)
	}
	wrote, err := config.WriteDefault(cfg.Schedule.ConfigPath)
	if err != nil {
		return fmt.Errorf("stonix schedule install: %w", err)
	}
	if wrote {
		fmt.Fprintf(cmd.OutOrStdout(), "default config written to %s\n", cfg.Schedule.ConfigPath)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "scheduled report installed (%s)\n", cfg.Schedule.OnCalendar)
	return nil
}

func runScheduleUninstall(cmd *cobra.Command, _ []string) error {
	ins, _, err := newInstaller()
	if err != nil {
		return fmt.Errorf("stonix schedule uninstall: %w", err)
	}
	if err := ins.Uninstall(cmd.Context()); err != nil {
		return fmt.Errorf("stonix schedule uninstall: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), "scheduled report removed")
	return nil
}
