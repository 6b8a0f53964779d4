package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"csreply-backend/internal/workflow"
)

var validateFlags struct {
	inquiry    string
	response   string
	confidence float64
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a reply against an inquiry text",
	RunE:  runValidate,
}

func init() {
	f := validateCmd.Flags()
	f.StringVar(&validateFlags.inquiry, "inquiry", "", "Inquiry text (required)")
	f.StringVar(&validateFlags.response, "response", "", "Reply text (required)")
	f.Float64Var(&validateFlags.confidence, "confidence", 0, "Generator confidence (default 50)")

	_ = validateCmd.MarkFlagRequired("inquiry")
	_ = validateCmd.MarkFlagRequired("response")
}

func runValidate(cmd *cobra.Command, _ []string) error {
	store, err := loadRules()
	if err != nil {
		return err
	}
	in := workflow.PreviewInput{Text: validateFlags.inquiry, ResponseText: validateFlags.response}
	if cmd.Flags().Changed("confidence") {
		c := validateFlags.confidence
		in.Confidence = &c
	}
	svc := &workflow.Service{Rules: store}
	preview, err := svc.PreviewTriage(in)
	if err != nil {
		return fmt.Errorf("validate: %w", err)
	}
	return writeJSON(cmd.OutOrStdout(), preview)
}
