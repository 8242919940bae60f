package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func NewRootCmd() *cobra.Command {
	var (
		logLevel string
		verbose  bool
	)

	cmd := &cobra.Command{
		Use:   "photoprep",
		Short: "Photo ingestion and square-crop pipeline for upload forms",
		Long: `Photoprep validates and classifies batches of user photos, then walks every
photo that does not match the target aspect ratio through a crop session
until the upload list is ready to submit.

It can run as an HTTP service backing upload widgets, or headless over
local files.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Load .env file if present (ignore errors)
			_ = godotenv.Load()

			if verbose {
				logLevel = "debug"
			}
			return setupLogging(logLevel)
		},
	}

	cmd.PersistentFlags().String("config", "", "Path to a YAML config file")
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", envOr("PHOTOPREP_LOG_LEVEL", "info"), "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Shortcut for --log-level debug")

	// Add subcommands
	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newClassifyCmd())
	cmd.AddCommand(newCropCmd())

	return cmd
}

func setupLogging(level string) error {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "info", "":
		lvl = slog.LevelInfo
	case "warn", "warning":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q", level)
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
	slog.SetDefault(logger)
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
