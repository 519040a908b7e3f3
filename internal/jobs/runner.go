package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dvloznov/actual-categoriser/internal/logger"
	"github.com/google/uuid"
	pkgerrors "github.com/pkg/errors"
)

// State is the execution state of a Runner.
type State string

const (
	StateIdle    State = "idle"
	StateRunning State = "running"
)

// RunnerConfig configures a Runner.
type RunnerConfig struct {
	Job  JobType
	Func JobFunc

	// Store and Observer are optional.
	Store    RunStore
	Observer RunObserver
}

// Runner executes one job on a single worker goroutine. Runs of the same
// job never overlap: a trigger while a run is in progress is kept as one
// pending run, and triggers beyond that are dropped.
type Runner struct {
	cfg RunnerConfig

	triggers  chan string
	closeChan chan struct{}
	wg        sync.WaitGroup

	// runMu is held for the duration of every run.
	runMu sync.Mutex

	mu      sync.RWMutex
	state   State
	started bool
	closed  bool
	cancel  context.CancelFunc
}

// NewRunner creates an idle runner. Call Start before Trigger.
func NewRunner(cfg RunnerConfig) *Runner {
	return &Runner{
		cfg:       cfg,
		triggers:  make(chan string, 1),
		closeChan: make(chan struct{}),
		state:     StateIdle,
	}
}

// Job returns the job type this runner executes.
func (r *Runner) Job() JobType {
	return r.cfg.Job
}

// Start launches the worker goroutine. Runs use a context derived from ctx.
func (r *Runner) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return ErrRunnerStopped
	}
	if r.started {
		return fmt.Errorf("runner %s already started", r.cfg.Job)
	}
	r.started = true

	runCtx, cancel := context.WithCancel(ctx)
	r.cancel = cancel

	r.wg.Add(1)
	go r.worker(runCtx)
	return nil
}

// Trigger requests a run. It reports whether the trigger was accepted, either
// starting a run or becoming the single pending run. A dropped trigger is logged.
func (r *Runner) Trigger(ctx context.Context, source string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	log := logger.FromContext(ctx)
	if r.closed {
		log.Warn().Str("job", string(r.cfg.Job)).Str("trigger", source).Msg("Runner stopped, ignoring trigger")
		return false
	}

	select {
	case r.triggers <- source:
		if r.state == StateRunning {
			log.Info().Str("job", string(r.cfg.Job)).Str("trigger", source).Msg("Job running, queued one pending run")
		}
		return true
	default:
		log.Warn().Str("job", string(r.cfg.Job)).Str("trigger", source).Msg("Job already has a pending run, dropping trigger")
		return false
	}
}

// State returns the current state and whether a run is pending. A pending
// run exists only behind a running one; a trigger not yet picked up by an
// idle worker is not reported.
func (r *Runner) State() (State, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state, r.state == StateRunning && len(r.triggers) > 0
}

// RunNow executes one run synchronously on the caller's goroutine. It fails
// with ErrAlreadyRunning instead of waiting when a run is in progress.
func (r *Runner) RunNow(ctx context.Context, source string) (*Run, error) {
	if !r.runMu.TryLock() {
		return nil, ErrAlreadyRunning
	}
	defer r.runMu.Unlock()

	run := r.execute(ctx, source)
	if run.Status == JobStatusFailed {
		return run, fmt.Errorf("%s run %s failed: %s", r.cfg.Job, run.RunID, run.Error)
	}
	return run, nil
}

// Stop stops accepting triggers, drops any pending run and waits for the
// in-flight run. If ctx expires first the in-flight run's context is cancelled.
func (r *Runner) Stop(ctx context.Context) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	close(r.closeChan)
	cancel := r.cancel
	r.mu.Unlock()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		if cancel != nil {
			cancel()
		}
		<-done
		return ctx.Err()
	}

	if cancel != nil {
		cancel()
	}
	return nil
}

// worker processes triggers one at a time.
func (r *Runner) worker(ctx context.Context) {
	defer r.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case <-r.closeChan:
			return
		case source := <-r.triggers:
			if r.isClosed() {
				return
			}
			r.runMu.Lock()
			r.execute(ctx, source)
			r.runMu.Unlock()
		}
	}
}

// execute performs one run and records it. runMu must be held.
func (r *Runner) execute(ctx context.Context, source string) *Run {
	run := &Run{
		RunID:     uuid.New().String(),
		Job:       r.cfg.Job,
		Trigger:   source,
		Status:    JobStatusRunning,
		StartedAt: time.Now(),
	}

	log := logger.WithFields(logger.FromContext(ctx), map[string]interface{}{
		"job":    string(r.cfg.Job),
		"run_id": run.RunID,
	})
	ctx = logger.WithContext(ctx, log)

	r.setState(StateRunning)
	defer r.setState(StateIdle)

	r.save(ctx, run)
	log.Info().Str("trigger", source).Msg("Job run started")

	stats, err := r.call(ctx, run.RunID)

	completedAt := time.Now()
	run.CompletedAt = &completedAt
	run.Stats = stats

	if err != nil {
		run.Status = JobStatusFailed
		run.Error = err.Error()
		log.Error().Stack().Err(err).Dur("duration", run.Duration()).Msg("Job run failed")
	} else {
		run.Status = JobStatusCompleted
		log.Info().Dur("duration", run.Duration()).Interface("stats", stats).Msg("Job run completed")
	}

	r.save(ctx, run)
	if r.cfg.Observer != nil {
		r.cfg.Observer.RunFinished(ctx, run)
	}
	return run
}

// call runs the job function, turning a panic into an error.
func (r *Runner) call(ctx context.Context, runID string) (stats Stats, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = pkgerrors.Errorf("panic in %s job: %v", r.cfg.Job, rec)
		}
	}()
	return r.cfg.Func(ctx, runID)
}

// Stopped reports whether Stop has been called.
func (r *Runner) Stopped() bool {
	return r.isClosed()
}

func (r *Runner) isClosed() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.closed
}

func (r *Runner) setState(s State) {
	r.mu.Lock()
	r.state = s
	r.mu.Unlock()
}

func (r *Runner) save(ctx context.Context, run *Run) {
	if r.cfg.Store == nil {
		return
	}
	if err := r.cfg.Store.SaveRun(ctx, run); err != nil {
		log := logger.FromContext(ctx)
		log.Warn().Err(err).Msg("Failed to save run record")
	}
}
