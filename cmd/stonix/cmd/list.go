package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/csd-dev-tools/stonix/internal/output"
	"github.com/csd-dev-tools/stonix/internal/rule"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List the available rules and whether they apply to this host",
	Args:  cobra.NoArgs,
	RunE:  runList,
}

func init() {
	rootCmd.AddCommand(listCmd)
}

func runList(cmd *cobra.Command, _ []string) error {
	a, err := newApp(cmd.Context(), false)
	if err != nil {
		return fmt.Errorf("stonix list: %w", err)
	}
	defer a.Close()

	var rows []output.RuleInfo
	for _, rl := range rule.Default().All(a.deps) {
		rows = append(rows, output.RuleInfo{
			Number:     rl.Number(),
			Name:       rl.Name(),
			Applicable: rl.Applicable(),
			AuditOnly:  rl.AuditOnly(),
			Help:       rl.HelpText(),
		})
	}
	output.New(cmd.OutOrStdout(), output.Options{NoColor: noColor, Verbose: verbose}).Rules(rows)
	return nil
}
