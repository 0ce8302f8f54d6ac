package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/csd-dev-tools/stonix/internal/output"
)

var infoServices bool

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show host facts and the detected service and package managers",
	Args:  cobra.NoArgs,
	RunE:  runInfo,
}

func init() {
	infoCmd.Flags().BoolVar(&infoServices, "services", false, "also list the services known to the service manager")
	rootCmd.AddCommand(infoCmd)
}

func runInfo(cmd *cobra.Command, _ []string) error {
	a, err := newApp(cmd.Context(), false)
	if err != nil {
		return fmt.Errorf("stonix info: %w", err)
	}
	defer a.Close()

	info := output.HostInfo{
		Hostname:  a.facts.Hostname,
		Family:    a.facts.Family,
		OSType:    a.facts.OSType,
		OSVersion: a.facts.OSVersion,
		FISMA:     a.facts.FISMA,
		Root:      a.facts.IsRoot(),
	}
	if svc, err := a.services(); err != nil {
		a.logger.Debug("no service manager", "error", err)
	} else {
		info.ServiceManager = svc.Primary().Name()
		if svc.IsHybrid() {
			info.ServiceManager += " (hybrid)"
		}
		if infoServices {
			list, err := svc.ListServices(cmd.Context())
			if err != nil {
				return fmt.Errorf("stonix info: %w", err)
			}
			info.Services = list
		}
	}
	if pm, err := a.packages(); err != nil {
		a.logger.Debug("no package manager", "error", err)
	} else {
		info.PackageManager = pm.ManagerName()
	}

	output.New(cmd.OutOrStdout(), output.Options{NoColor: noColor, Verbose: verbose}).Host(info)
	return nil
}
