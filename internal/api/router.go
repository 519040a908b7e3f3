// Package api serves the status HTTP API: health, run history and manual triggers.
package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/dvloznov/actual-categoriser/internal/api/handlers"
	"github.com/dvloznov/actual-categoriser/internal/api/middleware"
	"github.com/dvloznov/actual-categoriser/internal/jobs"
	"github.com/rs/zerolog"
)

// Config wires the API to the running process.
type Config struct {
	Store     jobs.RunStore
	Runners   []handlers.Runner
	Decisions handlers.DecisionLister
	Schedule  handlers.ScheduleLister
	Log       zerolog.Logger
}

// triggerPaths maps POST /api/runs/{name} to a job.
var triggerPaths = map[string]jobs.JobType{
	"categorise": jobs.JobTypeCategorise,
	"bank-sync":  jobs.JobTypeBankSync,
}

// NewHandler builds the routed handler with middleware applied.
func NewHandler(cfg Config) http.Handler {
	log := cfg.Log
	runsHandler := handlers.NewRunsHandler(cfg.Store, cfg.Runners, cfg.Decisions, log)
	statusHandler := handlers.NewStatusHandler(cfg.Schedule, cfg.Runners)

	// Create router
	mux := http.NewServeMux()

	mux.HandleFunc("/api/runs", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			runsHandler.ListRuns(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/runs/", func(w http.ResponseWriter, r *http.Request) {
		rest := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/runs/"), "/")
		if rest == "" {
			middleware.WriteError(w, http.StatusBadRequest, "Run ID is required")
			return
		}

		switch r.Method {
		case http.MethodPost:
			job, ok := triggerPaths[rest]
			if !ok {
				middleware.WriteError(w, http.StatusNotFound, "Unknown job")
				return
			}
			runsHandler.TriggerRun(w, r, job)
		case http.MethodGet:
			if runID, ok := strings.CutSuffix(rest, "/decisions"); ok {
				runsHandler.ListDecisions(w, r, runID)
				return
			}
			runsHandler.GetRun(w, r, rest)
		default:
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/status", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			statusHandler.GetStatus(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	// Health check endpoint
	mux.HandleFunc("/health", handlers.Health)

	// Apply middleware
	return middleware.RequestID(
		middleware.Recovery(log)(
			middleware.Logger(log)(
				middleware.CORS(mux),
			),
		),
	)
}

// NewServer creates the HTTP server for addr.
func NewServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}
