package cmd

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/clinrag/clinrag/internal/app"
	"github.com/clinrag/clinrag/internal/auth"
	"github.com/clinrag/clinrag/internal/config"
	"github.com/clinrag/clinrag/internal/log"
)

var (
	doctorUsername string
	doctorPassword string
	doctorFullName string
	doctorRole     string
)

var createDoctorCmd = &cobra.Command{
	Use:   "create-doctor",
	Short: "Provision a doctor account with a hashed password",
	Long: `create-doctor hashes the given password and upserts a doctor row.
Re-running with an existing username leaves the stored account untouched.`,
	RunE: func(_ *cobra.Command, _ []string) error {
		return runCreateDoctor()
	},
}

func init() {
	createDoctorCmd.Flags().StringVar(&doctorUsername, "username", "", "login username (required)")
	createDoctorCmd.Flags().StringVar(&doctorPassword, "password", "", "plain-text password to hash (required)")
	createDoctorCmd.Flags().StringVar(&doctorFullName, "full-name", "", "display name (required)")
	createDoctorCmd.Flags().StringVar(&doctorRole, "role", "clinician", "account role")
	rootCmd.AddCommand(createDoctorCmd)
}

func runCreateDoctor() error {
	if doctorUsername == "" || doctorPassword == "" || doctorFullName == "" {
		return errors.New("--username, --password and --full-name are required")
	}

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

	hashed, err := auth.HashPassword(doctorPassword)
	if err != nil {
		return fmt.Errorf("hashing password: %w", err)
	}

	if err := a.Store.CreateDoctor(ctx, doctorUsername, hashed, doctorFullName, doctorRole); err != nil {
		return err
	}

	logger.Info("doctor account created or verified", "username", doctorUsername)
	return nil
}
