// Package cli implements the hyprnote command tree.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/hurajgor/hyprnote/internal/app"
	"github.com/hurajgor/hyprnote/internal/calsource"
	"github.com/hurajgor/hyprnote/internal/config"
	"github.com/hurajgor/hyprnote/internal/reconcile"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	DataDir string
	EnvFile string
}

// NewRootCommand creates the root command for the hyprnote CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "hyprnote",
		Short: "Local-first meeting notes with calendar sync",
		Long: `hyprnote keeps meeting notes as plain files on disk and reconciles them
against an external calendar source. The file tree is a derived cache of
the in-memory store, so it can always be rebuilt.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.DataDir, "data-dir", "", "override the data directory")
	cmd.PersistentFlags().StringVar(&opts.EnvFile, "env-file", "", "dotenv file to load configuration from")

	// Add subcommands
	cmd.AddCommand(NewRunCommand(opts))
	cmd.AddCommand(NewSyncCommand(opts))
	cmd.AddCommand(NewExportCommand(opts))
	cmd.AddCommand(NewDoctorCommand(opts))

	return cmd
}

// newLogger configures slog based on the verbose flag.
func newLogger(opts *RootOptions) *slog.Logger {
	logLevel := slog.LevelInfo
	if opts.Verbose {
		logLevel = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	}))
}

// loadConfig loads configuration and applies flag overrides.
func loadConfig(opts *RootOptions) (config.Config, error) {
	cfg, err := config.Load(opts.EnvFile)
	if err != nil {
		return config.Config{}, err
	}
	if opts.DataDir != "" {
		cfg.DataDir = opts.DataDir
		cfg.LegacyDBPath = filepath.Join(opts.DataDir, "db.sqlite")
	}
	return cfg, nil
}

// newFetcher builds the calendar fetcher for the configured source. A nil
// fetcher means no source is configured and sync passes are skipped.
func newFetcher(ctx context.Context, cfg config.Config, logger *slog.Logger) (reconcile.Fetcher, error) {
	switch cfg.Source {
	case config.SourceNone:
		return nil, nil
	case config.SourceGoogle:
		return calsource.NewGoogleSource(ctx, logger,
			cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.GoogleTokenFile)
	case config.SourceCalDAV:
		return calsource.NewCalDAVSource(logger,
			cfg.CalDAVEndpoint, cfg.CalDAVUsername, cfg.CalDAVPassword)
	default:
		return nil, fmt.Errorf("unknown calendar source %q", cfg.Source)
	}
}

// buildApp assembles the application context from flags and environment.
func buildApp(ctx context.Context, opts *RootOptions) (*app.App, error) {
	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid configuration", err)
	}
	logger := newLogger(opts)
	fetcher, err := newFetcher(ctx, cfg, logger)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "calendar source setup failed", err)
	}
	return app.New(cfg, logger, fetcher)
}
