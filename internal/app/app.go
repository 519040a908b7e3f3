// Package app holds the process-wide collaborators of the categoriser: the
// remote store session, the model client, the template source and the
// optional audit sink.
package app

import (
	"context"
	"fmt"

	"github.com/dvloznov/actual-categoriser/internal/actual"
	"github.com/dvloznov/actual-categoriser/internal/config"
	"github.com/dvloznov/actual-categoriser/internal/gcs"
	infra "github.com/dvloznov/actual-categoriser/internal/infra/bigquery"
	"github.com/dvloznov/actual-categoriser/internal/jobs"
	"github.com/dvloznov/actual-categoriser/internal/llm"
	"github.com/dvloznov/actual-categoriser/internal/logger"
	"github.com/dvloznov/actual-categoriser/internal/pipeline"
	"google.golang.org/api/option"
)

// App is created once at startup and released with Close.
type App struct {
	Config    *config.Config
	Store     actual.Store
	Model     llm.ChatCompleter
	Templates pipeline.TemplateSource

	// Recorder is nil when the audit sink is disabled.
	Recorder *infra.Recorder

	objects *gcs.Client
}

// Open connects every collaborator named by cfg and downloads the budget.
// On failure whatever was already opened is closed again.
func Open(ctx context.Context, cfg *config.Config) (*App, error) {
	log := logger.FromContext(ctx)

	a := &App{
		Config: cfg,
		Store: actual.NewClient(actual.ClientConfig{
			ServerURL: cfg.Actual.ServerURL,
			APIKey:    cfg.Actual.APIKey,
			Timeout:   cfg.Actual.Timeout,
		}),
	}

	model, err := NewModel(ctx, cfg.LLM)
	if err != nil {
		a.Close(ctx)
		return nil, fmt.Errorf("Open: %w", err)
	}
	a.Model = model

	var opts []option.ClientOption
	if cfg.GoogleCredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.GoogleCredentialsFile))
	}

	loader := &pipeline.TemplateLoader{Location: cfg.Pipeline.PromptTemplate}
	if gcs.IsURI(cfg.Pipeline.PromptTemplate) {
		objects, err := gcs.NewClient(ctx, opts...)
		if err != nil {
			a.Close(ctx)
			return nil, fmt.Errorf("Open: %w", err)
		}
		a.objects = objects
		loader.Objects = objects
	}
	a.Templates = loader

	if cfg.Audit.Project != "" {
		recorder, err := infra.NewRecorder(ctx, cfg.Audit.Project, cfg.Audit.Dataset, opts...)
		if err != nil {
			a.Close(ctx)
			return nil, fmt.Errorf("Open: %w", err)
		}
		a.Recorder = recorder
		log.Info().
			Str("project", cfg.Audit.Project).
			Str("dataset", cfg.Audit.Dataset).
			Msg("BigQuery audit sink enabled")
	}

	if err := a.Store.DownloadBudget(ctx, cfg.Actual.BudgetID, cfg.Actual.BudgetPassword); err != nil {
		a.Close(ctx)
		return nil, fmt.Errorf("Open: %w", err)
	}

	log.Info().
		Str("server_url", cfg.Actual.ServerURL).
		Str("provider", cfg.LLM.Provider).
		Str("model", cfg.LLM.Model).
		Bool("dry_run", cfg.Pipeline.DryRun).
		Msg("Application initialised")
	return a, nil
}

// NewModel creates the chat completer for the configured provider.
func NewModel(ctx context.Context, cfg config.LLMConfig) (llm.ChatCompleter, error) {
	switch cfg.Provider {
	case "gemini":
		return llm.NewGeminiClient(ctx, cfg.APIKey)
	case "openai":
		return llm.NewOpenAIClient(llm.OpenAIConfig{BaseURL: cfg.BaseURL, APIKey: cfg.APIKey}), nil
	default:
		return nil, fmt.Errorf("NewModel: unknown provider %q", cfg.Provider)
	}
}

// PipelineDeps returns the collaborators of one categorisation run.
func (a *App) PipelineDeps() pipeline.Deps {
	deps := pipeline.Deps{
		Store:     a.Store,
		Model:     a.Model,
		Templates: a.Templates,
		Recorder:  pipeline.NopRecorder{},
	}
	if a.Recorder != nil {
		deps.Recorder = a.Recorder
	}
	return deps
}

// PipelineOptions translates the configuration into run options.
func (a *App) PipelineOptions() pipeline.Options {
	cfg := a.Config
	return pipeline.Options{
		BudgetID:       cfg.Actual.BudgetID,
		BudgetPassword: cfg.Actual.BudgetPassword,
		ModelName:      cfg.LLM.Model,
		HistoryDays:    cfg.Pipeline.HistoryDays,
		CategoriseDays: cfg.Pipeline.CategoriseDays,
		MaxHistoryRows: cfg.Pipeline.MaxHistoryRows,
		DebugPrompts:   cfg.Pipeline.DebugPrompts,
		DryRun:         cfg.Pipeline.DryRun,
	}
}

// RunObserver returns the audit sink as a run observer, or nil.
func (a *App) RunObserver() jobs.RunObserver {
	if a.Recorder == nil {
		return nil
	}
	return a.Recorder
}

// CategoriseJob returns the categorisation job.
func (a *App) CategoriseJob() jobs.JobFunc {
	return func(ctx context.Context, runID string) (jobs.Stats, error) {
		summary, err := pipeline.Run(ctx, runID, a.PipelineDeps(), a.PipelineOptions())
		return jobs.Stats{
			"processed":  summary.Processed,
			"applied":    summary.Applied,
			"unknown":    summary.Unknown,
			"unresolved": summary.Unresolved,
		}, err
	}
}

// BankSyncJob returns the bank sync job. The budget is reopened first so
// the sync runs against the latest server state.
func (a *App) BankSyncJob() jobs.JobFunc {
	return func(ctx context.Context, runID string) (jobs.Stats, error) {
		cfg := a.Config.Actual
		if err := a.Store.DownloadBudget(ctx, cfg.BudgetID, cfg.BudgetPassword); err != nil {
			return nil, fmt.Errorf("BankSyncJob: %w", err)
		}
		if err := a.Store.RunBankSync(ctx); err != nil {
			return nil, fmt.Errorf("BankSyncJob: %w", err)
		}
		return nil, nil
	}
}

// BuildPrompt builds the system prompt of the next run without classifying.
func (a *App) BuildPrompt(ctx context.Context) (*pipeline.PromptContext, error) {
	return pipeline.BuildPrompt(ctx, a.PipelineDeps(), a.PipelineOptions())
}

// Close shuts the store session down and closes the cloud clients.
// Failures are logged and the first one is returned.
func (a *App) Close(ctx context.Context) error {
	log := logger.FromContext(ctx)
	var first error
	note := func(err error, msg string) {
		if err == nil {
			return
		}
		log.Error().Stack().Err(err).Msg(msg)
		if first == nil {
			first = err
		}
	}

	if a.Store != nil {
		note(shutdown(ctx, a.Store), "Failed to shut down budget session")
	}
	if a.Recorder != nil {
		note(a.Recorder.Close(), "Failed to close BigQuery client")
	}
	if a.objects != nil {
		note(a.objects.Close(), "Failed to close storage client")
	}
	return first
}

func shutdown(ctx context.Context, store actual.Store) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic during store shutdown: %v", r)
		}
	}()
	return store.Shutdown(ctx)
}
