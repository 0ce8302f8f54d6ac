package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/csd-dev-tools/stonix/internal/output"
	"github.com/csd-dev-tools/stonix/internal/rule"
)

var ledgerCmd = &cobra.Command{
	Use:   "ledger",
	Short: "Inspect the change ledger",
}

var ledgerListCmd = &cobra.Command{
	Use:   "list <rule>",
	Short: "List the changes recorded for a rule",
	Args:  cobra.ExactArgs(1),
	RunE:  runLedgerList,
}

func init() {
	ledgerCmd.AddCommand(ledgerListCmd)
	rootCmd.AddCommand(ledgerCmd)
}

func runLedgerList(cmd *cobra.Command, args []string) error {
	num, ok := rule.Default().Lookup(args[0])
	if !ok {
		return fmt.Errorf("stonix ledger list: unknown rule %q", args[0])
	}
	a, err := newApp(cmd.Context(), true)
	if err != nil {
		return fmt.Errorf("stonix ledger list: %w", err)
	}
	defer a.Close()

	events, err := a.ledger.FindRuleChanges(num)
	if err != nil {
		return fmt.Errorf("stonix ledger list: %w", err)
	}
	output.New(cmd.OutOrStdout(), output.Options{NoColor: noColor}).Events(events)
	return nil
}
