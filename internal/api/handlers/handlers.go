package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/dvloznov/actual-categoriser/internal/api/middleware"
	infra "github.com/dvloznov/actual-categoriser/internal/infra/bigquery"
	"github.com/dvloznov/actual-categoriser/internal/jobs"
	"github.com/dvloznov/actual-categoriser/internal/scheduler"
	"github.com/rs/zerolog"
)

// Runner is the part of jobs.Runner the handlers use.
type Runner interface {
	Job() jobs.JobType
	Trigger(ctx context.Context, source string) bool
	State() (jobs.State, bool)
}

// DecisionLister reads recorded decisions; the BigQuery recorder implements it.
type DecisionLister interface {
	ListDecisions(ctx context.Context, runID string) ([]*infra.DecisionRow, error)
}

// ScheduleLister lists scheduled jobs.
type ScheduleLister interface {
	Entries() []scheduler.Entry
}

// RunsHandler handles run-related endpoints.
type RunsHandler struct {
	store     jobs.RunStore
	runners   map[jobs.JobType]Runner
	decisions DecisionLister
	log       zerolog.Logger
}

// NewRunsHandler creates a new runs handler. decisions may be nil when the
// audit sink is disabled.
func NewRunsHandler(store jobs.RunStore, runners []Runner, decisions DecisionLister, log zerolog.Logger) *RunsHandler {
	byJob := make(map[jobs.JobType]Runner, len(runners))
	for _, r := range runners {
		byJob[r.Job()] = r
	}
	return &RunsHandler{
		store:     store,
		runners:   byJob,
		decisions: decisions,
		log:       log,
	}
}

// ListRuns handles GET /api/runs
func (h *RunsHandler) ListRuns(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	// Parse query parameters
	query := r.URL.Query()
	filter := jobs.RunFilter{
		Job:    jobs.JobType(query.Get("job")),
		Status: jobs.JobStatus(query.Get("status")),
	}

	if limitStr := query.Get("limit"); limitStr != "" {
		if limit, err := strconv.Atoi(limitStr); err == nil {
			filter.Limit = limit
		}
	}

	if offsetStr := query.Get("offset"); offsetStr != "" {
		if offset, err := strconv.Atoi(offsetStr); err == nil {
			filter.Offset = offset
		}
	}

	runs, err := h.store.ListRuns(ctx, filter)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list runs")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list runs")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"runs":  runs,
		"count": len(runs),
	})
}

// GetRun handles GET /api/runs/{id}
func (h *RunsHandler) GetRun(w http.ResponseWriter, r *http.Request, runID string) {
	ctx := r.Context()

	run, err := h.store.GetRun(ctx, runID)
	if err != nil {
		if errors.Is(err, jobs.ErrRunNotFound) {
			middleware.WriteError(w, http.StatusNotFound, "Run not found")
			return
		}
		h.log.Error().Err(err).Str("run_id", runID).Msg("Failed to get run")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to get run")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, run)
}

// ListDecisions handles GET /api/runs/{id}/decisions
func (h *RunsHandler) ListDecisions(w http.ResponseWriter, r *http.Request, runID string) {
	if h.decisions == nil {
		middleware.WriteError(w, http.StatusNotFound, "Decision audit is not configured")
		return
	}

	rows, err := h.decisions.ListDecisions(r.Context(), runID)
	if err != nil {
		h.log.Error().Err(err).Str("run_id", runID).Msg("Failed to list decisions")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list decisions")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"run_id":    runID,
		"decisions": rows,
		"count":     len(rows),
	})
}

// TriggerRun handles POST /api/runs/{job}. A trigger that is dropped
// because a run is already pending answers 409.
func (h *RunsHandler) TriggerRun(w http.ResponseWriter, r *http.Request, job jobs.JobType) {
	runner, ok := h.runners[job]
	if !ok {
		middleware.WriteError(w, http.StatusNotFound, "Unknown job")
		return
	}

	if !runner.Trigger(r.Context(), jobs.TriggerManual) {
		middleware.WriteError(w, http.StatusConflict, "A run is already pending for this job")
		return
	}

	state, pending := runner.State()
	middleware.WriteJSON(w, http.StatusAccepted, map[string]interface{}{
		"job":     job,
		"state":   state,
		"pending": pending,
	})
}

// StatusHandler reports scheduler and runner state.
type StatusHandler struct {
	schedule ScheduleLister
	runners  []Runner
}

// NewStatusHandler creates a new status handler. schedule may be nil.
func NewStatusHandler(schedule ScheduleLister, runners []Runner) *StatusHandler {
	return &StatusHandler{schedule: schedule, runners: runners}
}

// GetStatus handles GET /api/status
func (h *StatusHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	type runnerStatus struct {
		Job     jobs.JobType `json:"job"`
		State   jobs.State   `json:"state"`
		Pending bool         `json:"pending"`
	}

	runners := make([]runnerStatus, 0, len(h.runners))
	for _, rn := range h.runners {
		state, pending := rn.State()
		runners = append(runners, runnerStatus{Job: rn.Job(), State: state, Pending: pending})
	}

	var schedule []scheduler.Entry
	if h.schedule != nil {
		schedule = h.schedule.Entries()
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"runners":  runners,
		"schedule": schedule,
		"time":     time.Now().Format(time.RFC3339),
	})
}

// Health handles GET /health
func Health(w http.ResponseWriter, r *http.Request) {
	middleware.WriteJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   time.Now().Format(time.RFC3339),
	})
}
