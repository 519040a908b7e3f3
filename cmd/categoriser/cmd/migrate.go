package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/dvloznov/actual-categoriser/internal/logger"
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the BigQuery audit tables",
	Long: `Create the AUDIT_BQ_DATASET dataset with its job_runs and
categorisation_decisions tables in AUDIT_BQ_PROJECT. Existing tables are
left untouched.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		ctx, a, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer closeApp(ctx, a)

		if a.Recorder == nil {
			err := errors.New("AUDIT_BQ_PROJECT is not set")
			printErr(err, "audit sink disabled")
			return err
		}

		created, err := a.Recorder.EnsureTables(ctx)
		if err != nil {
			printErr(err, "migration failed")
			return err
		}

		log := logger.FromContext(ctx)
		if len(created) == 0 {
			log.Info().Msg("Audit tables already exist")
		}
		for _, table := range created {
			log.Info().Str("table", table).Msg("Created audit table")
			fmt.Fprintln(cmd.OutOrStdout(), table)
		}
		return nil
	},
}
