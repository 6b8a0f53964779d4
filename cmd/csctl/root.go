package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"csreply-backend/internal/bootstrap"
	"csreply-backend/internal/rules"
	"csreply-backend/internal/shared/config"
)

// version is set at build time via -ldflags.
var version = "dev"

var rulesFile string

var rootCmd = &cobra.Command{
	Use:   "csctl",
	Short: "Operator tooling for the inquiry triage engine",
	Long:  "csctl dry-runs the analyzer and validator, runs batches against the\nconfigured store, checks rules files and issues operator tokens.",
	CompletionOptions: cobra.CompletionOptions{
		HiddenDefaultCmd: true,
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&rulesFile, "rules", "", "Rules file (defaults to RULES_FILE or the built-in rules)")
	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(batchCmd)
	rootCmd.AddCommand(rulesCmd)
	rootCmd.AddCommand(tokenCmd)
	rootCmd.Version = version
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadConfig() config.Config {
	cfg := config.Load()
	if rulesFile != "" {
		cfg.RulesFile = rulesFile
	}
	return cfg
}

func loadRules() (*rules.Store, error) {
	return bootstrap.BuildRules(loadConfig())
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}
