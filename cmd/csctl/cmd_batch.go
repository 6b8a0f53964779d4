package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"csreply-backend/internal/bootstrap"
)

var batchFlags struct {
	limit int
}

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Run one batch over pending inquiries in the configured store",
	RunE:  runBatch,
}

func init() {
	batchCmd.Flags().IntVar(&batchFlags.limit, "limit", 0, "Maximum inquiries to collect (default BATCH_SIZE)")
}

func runBatch(cmd *cobra.Command, _ []string) error {
	if batchFlags.limit < 0 {
		return fmt.Errorf("--limit must not be negative")
	}
	app, err := bootstrap.BuildWorker(loadConfig())
	if err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}
	defer app.Close()

	report, err := app.Workflow.RunBatch(cmd.Context(), batchFlags.limit)
	if err != nil {
		return fmt.Errorf("run batch: %w", err)
	}
	return writeJSON(cmd.OutOrStdout(), report)
}
