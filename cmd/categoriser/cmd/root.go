// Package cmd provides the categoriser CLI commands.
package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/dvloznov/actual-categoriser/internal/app"
	"github.com/dvloznov/actual-categoriser/internal/config"
	"github.com/dvloznov/actual-categoriser/internal/logger"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	cfgFile string
	debug   bool
	dryRun  bool
)

// rootCmd runs the scheduler daemon when called without a subcommand.
var rootCmd = &cobra.Command{
	Use:   "categoriser",
	Short: "Categorise Actual Budget transactions with a language model",
	Long: `categoriser syncs bank transactions into an Actual Budget server and
asks a language model to categorise every uncategorised transaction, using
the budget's categories and recently categorised transactions as context.

Example:
  categoriser serve
  categoriser run --dry-run
  categoriser prompt > prompt.md`,
	SilenceUsage: true,
	RunE:         runServe,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "env file (default is .env)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&dryRun, "dry-run", false, "log categorisations instead of writing them")

	// Add subcommands
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(promptCmd)
	rootCmd.AddCommand(migrateCmd)
}

// loadConfig loads and validates the configuration and builds the logger
// it describes. Command line flags override the environment.
func loadConfig() (*config.Config, zerolog.Logger, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, logger.New(), err
	}
	if debug {
		cfg.Log.Level = "debug"
	}
	if dryRun {
		cfg.Pipeline.DryRun = true
	}

	log := logger.Configure(logger.Options{Level: cfg.Log.Level, Format: cfg.Log.Format})
	if err := cfg.Validate(); err != nil {
		return nil, log, err
	}
	return cfg, log, nil
}

// openApp loads the configuration and opens the application context.
func openApp(ctx context.Context) (context.Context, *app.App, error) {
	cfg, log, err := loadConfig()
	ctx = logger.WithContext(ctx, log)
	if err != nil {
		log.Error().Err(err).Msg("Invalid configuration")
		return ctx, nil, err
	}

	a, err := app.Open(ctx, cfg)
	if err != nil {
		log.Error().Stack().Err(err).Msg("Failed to initialise")
		return ctx, nil, err
	}
	return ctx, a, nil
}

// closeApp releases the application context. Errors are already logged.
func closeApp(ctx context.Context, a *app.App) {
	_ = a.Close(ctx)
}

// printErr writes a one-line error for interactive use.
func printErr(err error, msg string) {
	fmt.Fprintf(os.Stderr, "Error: %s: %v\n", msg, err)
}
