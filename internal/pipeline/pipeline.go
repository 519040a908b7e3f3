// Package pipeline implements the transaction categorisation run: category
// indexing, windowed fetches, prompt building and the classification loop.
package pipeline

import (
	"context"
	"time"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/actual-categoriser/internal/llm"
	"github.com/dvloznov/actual-categoriser/internal/logger"
)

// Deps are the collaborators of a categorisation run.
type Deps struct {
	Store     BudgetStore
	Model     llm.ChatCompleter
	Templates TemplateSource
	Recorder  DecisionRecorder
}

// Options tune a categorisation run.
type Options struct {
	BudgetID       string
	BudgetPassword string
	ModelName      string
	HistoryDays    int
	CategoriseDays int
	MaxHistoryRows int
	DebugPrompts   bool
	DryRun         bool

	// Now defaults to time.Now. Window dates use its local calendar day.
	Now func() time.Time
}

func (o Options) now() time.Time {
	if o.Now != nil {
		return o.Now()
	}
	return time.Now()
}

// NewPromptPipeline creates the steps that end with a built system prompt.
func NewPromptPipeline(deps Deps, opts Options) *Pipeline {
	return NewPipeline(
		&DownloadBudgetStep{Store: deps.Store, BudgetID: opts.BudgetID, Password: opts.BudgetPassword},
		&LoadAccountsStep{Store: deps.Store},
		&LoadCategoriesStep{Store: deps.Store},
		&FetchHistoryStep{Store: deps.Store, Days: opts.HistoryDays},
		&BuildPromptStep{Templates: deps.Templates, MaxHistoryRows: opts.MaxHistoryRows},
	)
}

// NewCategorisationPipeline creates the standard 7-step categorisation pipeline.
func NewCategorisationPipeline(deps Deps, opts Options) *Pipeline {
	engine := NewEngine(EngineConfig{
		Model:        deps.Model,
		ModelName:    opts.ModelName,
		Applier:      &StoreApplier{Store: deps.Store, DryRun: opts.DryRun},
		Recorder:     deps.Recorder,
		DebugPrompts: opts.DebugPrompts,
		DryRun:       opts.DryRun,
		Now:          opts.Now,
	})

	prompt := NewPromptPipeline(deps, opts)
	steps := append([]PipelineStep{}, prompt.steps...)
	steps = append(steps,
		&FetchUncategorisedStep{Store: deps.Store, Days: opts.CategoriseDays},
		&ClassifyStep{Engine: engine},
	)
	return NewPipeline(steps...)
}

// NewState returns the initial state for a run.
func NewState(runID string, opts Options) *PipelineState {
	return &PipelineState{
		RunID: runID,
		Today: civil.DateOf(opts.now()),
	}
}

// Run executes one full categorisation run and returns its summary.
func Run(ctx context.Context, runID string, deps Deps, opts Options) (Summary, error) {
	log := logger.FromContext(ctx)
	state := NewState(runID, opts)

	if err := NewCategorisationPipeline(deps, opts).Execute(ctx, state); err != nil {
		return state.Summary, err
	}

	log.Info().
		Int("processed", state.Summary.Processed).
		Int("applied", state.Summary.Applied).
		Int("unknown", state.Summary.Unknown).
		Int("unresolved", state.Summary.Unresolved).
		Bool("dry_run", opts.DryRun).
		Msg("Categorisation run completed")
	return state.Summary, nil
}

// BuildPrompt runs the prompt steps and returns the system prompt, without
// classifying anything.
func BuildPrompt(ctx context.Context, deps Deps, opts Options) (*PromptContext, error) {
	state := NewState("", opts)
	if err := NewPromptPipeline(deps, opts).Execute(ctx, state); err != nil {
		return nil, err
	}
	return state.Prompt, nil
}
