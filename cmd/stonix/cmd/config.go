package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/csd-dev-tools/stonix/internal/ci"
	"github.com/csd-dev-tools/stonix/internal/rule"
)

var (
	configFull   bool
	configOutput string
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the rule option file",
}

var configWriteCmd = &cobra.Command{
	Use:   "write",
	Short: "Write stonix.conf with the current value of every rule option",
	Long: "Write stonix.conf with the current value of every rule option. By default\n" +
		"only simple options and options changed from their defaults are written;\n" +
		"--full writes every option with its instructions.",
	Args: cobra.NoArgs,
	RunE: runConfigWrite,
}

func init() {
	configWriteCmd.Flags().BoolVar(&configFull, "full", false, "write every option with its instructions")
	configWriteCmd.Flags().StringVarP(&configOutput, "output", "o", "", "file to write (default: the configured stonix_conf)")
	configCmd.AddCommand(configWriteCmd)
	rootCmd.AddCommand(configCmd)
}

func runConfigWrite(cmd *cobra.Command, _ []string) error {
	a, err := newApp(cmd.Context(), false)
	if err != nil {
		return fmt.Errorf("stonix config write: %w", err)
	}
	defer a.Close()

	var sections []ci.Section
	for _, rl := range rule.Default().All(a.deps) {
		sections = append(sections, ci.Section{Name: rl.Name(), Help: rl.HelpText(), Items: rl.ConfigItems()})
	}
	path := configOutput
	if path == "" {
		path = a.cfg.StonixConf
	}
	if err := ci.Write(path, sections, !configFull); err != nil {
		return fmt.Errorf("stonix config write: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", path)
	return nil
}
