package cmd

import (
	"context"

	"github.com/dvloznov/actual-categoriser/internal/jobs"
	"github.com/dvloznov/actual-categoriser/internal/logger"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one categorisation pass and exit",
	Long: `Categorise the uncategorised transactions of the last CATEGORISE_DAYS
days once and exit. The exit status is non-zero when the run fails.

Example:
  categoriser run
  categoriser run --dry-run --debug`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runOnce(cmd.Context(), jobs.JobTypeCategorise)
	},
}

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Run one bank sync and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runOnce(cmd.Context(), jobs.JobTypeBankSync)
	},
}

// runOnce executes one run of job on the calling goroutine.
func runOnce(ctx context.Context, job jobs.JobType) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer closeApp(ctx, a)

	var runner *jobs.Runner
	for _, r := range newRunners(a, nil) {
		if r.Job() == job {
			runner = r
		}
	}

	run, err := runner.RunNow(ctx, jobs.TriggerCLI)
	if err != nil {
		printErr(err, "run failed")
		return err
	}

	log := logger.FromContext(ctx)

	log.Info().
		Str("job", string(job)).
		Str("run_id", run.RunID).
		Interface("stats", run.Stats).
		Dur("duration", run.Duration()).
		Msg("Run finished")
	return nil
}
