// Package cmd defines the clinrag command-line interface.
package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "clinrag",
	Short: "Clinical RAG co-pilot service",
	Long: `clinrag serves a clinical retrieval-augmented generation API:
doctors authenticate, look up patients, ask questions answered by a language
model grounded in that patient's records, and file SOAP notes.

Subcommands cover the HTTP server, CSV batch ingestion, and doctor account
provisioning.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
