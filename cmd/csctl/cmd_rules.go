package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"csreply-backend/internal/rules"
)

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "Inspect decision rules",
}

var rulesCheckCmd = &cobra.Command{
	Use:   "check <file>",
	Short: "Parse and validate a rules file without loading it anywhere",
	Args:  cobra.ExactArgs(1),
	RunE:  runRulesCheck,
}

func init() {
	rulesCmd.AddCommand(rulesCheckCmd)
}

type rulesSummary struct {
	File        string           `json:"file"`
	Fingerprint string           `json:"fingerprint"`
	Thresholds  rules.Thresholds `json:"thresholds"`
	Categories  []string         `json:"categories"`
}

func runRulesCheck(cmd *cobra.Command, args []string) error {
	r, err := rules.LoadFile(args[0])
	if err != nil {
		return fmt.Errorf("rules check: %w", err)
	}
	return writeJSON(cmd.OutOrStdout(), rulesSummary{
		File:        args[0],
		Fingerprint: r.Fingerprint(),
		Thresholds:  r.Thresholds,
		Categories:  r.CategoryNames(),
	})
}
