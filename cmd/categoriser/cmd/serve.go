package cmd

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/dvloznov/actual-categoriser/internal/api"
	"github.com/dvloznov/actual-categoriser/internal/api/handlers"
	"github.com/dvloznov/actual-categoriser/internal/app"
	"github.com/dvloznov/actual-categoriser/internal/jobs"
	"github.com/dvloznov/actual-categoriser/internal/jobs/inmemory"
	"github.com/dvloznov/actual-categoriser/internal/logger"
	"github.com/dvloznov/actual-categoriser/internal/scheduler"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// shutdownTimeout bounds the wait for in-flight runs on exit.
const shutdownTimeout = 30 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run bank sync and categorisation on their cron schedules",
	Long: `Run the scheduler daemon.

Bank sync runs on BANK_SYNC_CRON and categorisation on CATEGORISE_CRON.
One categorisation is triggered at startup unless CATEGORISE_ON_START is
false. When STATUS_ADDR is set a status API lists runs and accepts manual
triggers. The process exits on SIGINT or SIGTERM after in-flight runs finish.`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	signalCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Runs are not cancelled by the signal, only by the shutdown timeout.
	ctx, a, err := openApp(context.Background())
	if err != nil {
		return err
	}
	log := logger.FromContext(ctx)

	store := inmemory.NewStore(0)
	runners := newRunners(a, store)

	sched := scheduler.New(ctx, a.Config.Schedule.TimeZone)
	specs := map[jobs.JobType]string{
		jobs.JobTypeBankSync:   a.Config.Schedule.BankSyncCron,
		jobs.JobTypeCategorise: a.Config.Schedule.CategoriseCron,
	}
	for _, r := range runners {
		if err := sched.Add(ctx, specs[r.Job()], r); err != nil {
			log.Error().Err(err).Msg("Invalid schedule")
			closeApp(ctx, a)
			return err
		}
		if err := r.Start(ctx); err != nil {
			log.Error().Err(err).Msg("Failed to start runner")
			closeApp(ctx, a)
			return err
		}
	}
	sched.Start()

	if a.Config.Schedule.CategoriseOnStart {
		for _, r := range runners {
			if r.Job() == jobs.JobTypeCategorise {
				r.Trigger(ctx, jobs.TriggerStartup)
			}
		}
	}

	var server *http.Server
	if addr := a.Config.StatusAddr; addr != "" {
		server = api.NewServer(addr, api.NewHandler(statusConfig(a, store, runners, sched, log)))
		go func() {
			log.Info().Str("addr", addr).Msg("Status server listening")
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error().Err(err).Msg("Status server failed")
			}
		}()
	}

	log.Info().Msg("Categoriser started, waiting for schedules...")
	<-signalCtx.Done()
	log.Info().Msg("Shutting down categoriser...")

	shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()

	<-sched.Stop().Done()
	if server != nil {
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Status server shutdown failed")
		}
	}
	for _, r := range runners {
		if err := r.Stop(shutdownCtx); err != nil {
			log.Error().Err(err).Str("job", string(r.Job())).Msg("Run did not finish before shutdown timeout")
		}
	}
	closeApp(ctx, a)

	log.Info().Msg("Categoriser exited")
	return nil
}

// newRunners builds one runner per job, recording into store.
func newRunners(a *app.App, store jobs.RunStore) []*jobs.Runner {
	observer := a.RunObserver()
	return []*jobs.Runner{
		jobs.NewRunner(jobs.RunnerConfig{Job: jobs.JobTypeBankSync, Func: a.BankSyncJob(), Store: store, Observer: observer}),
		jobs.NewRunner(jobs.RunnerConfig{Job: jobs.JobTypeCategorise, Func: a.CategoriseJob(), Store: store, Observer: observer}),
	}
}

func statusConfig(a *app.App, store jobs.RunStore, runners []*jobs.Runner, sched *scheduler.Scheduler, log zerolog.Logger) api.Config {
	cfg := api.Config{
		Store:    store,
		Schedule: sched,
		Log:      log,
	}
	for _, r := range runners {
		cfg.Runners = append(cfg.Runners, r)
	}
	if a.Recorder != nil {
		cfg.Decisions = a.Recorder
	}
	return cfg
}

var _ handlers.Runner = (*jobs.Runner)(nil)
