package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"csreply-backend/internal/workflow"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <text>",
	Short: "Classify an inquiry text and print the analysis",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runAnalyze,
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	store, err := loadRules()
	if err != nil {
		return err
	}
	svc := &workflow.Service{Rules: store}
	preview, err := svc.PreviewTriage(workflow.PreviewInput{Text: strings.Join(args, " ")})
	if err != nil {
		return fmt.Errorf("analyze: %w", err)
	}
	return writeJSON(cmd.OutOrStdout(), preview)
}
