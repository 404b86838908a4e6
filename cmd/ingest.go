package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/clinrag/clinrag/internal/app"
	"github.com/clinrag/clinrag/internal/config"
	"github.com/clinrag/clinrag/internal/ingest"
	"github.com/clinrag/clinrag/internal/log"
)

var ingestFile string

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Ingest a patient data CSV into the record store",
	RunE: func(_ *cobra.Command, _ []string) error {
		return runIngest()
	},
}

func init() {
	ingestCmd.Flags().StringVar(&ingestFile, "file", "patient_data.csv", "path to the patient CSV export")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger := log.New(log.Config{})

	a, err := app.Setup(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer a.Close()

	ingestor := ingest.New(a.Store, a.AI, logger.With("component", "ingest"))
	return ingestor.Run(ctx, ingestFile)
}
