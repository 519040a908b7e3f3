package pipeline

import (
	"context"
	"fmt"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/actual-categoriser/internal/domain"
	"github.com/dvloznov/actual-categoriser/internal/logger"
)

// PipelineStep represents a single step in a categorisation run.
type PipelineStep interface {
	Execute(ctx context.Context, state *PipelineState) error
}

// PipelineState holds the shared state across all pipeline steps.
type PipelineState struct {
	RunID string
	Today civil.Date

	Accounts   map[string]domain.Account
	AccountIDs []string

	Expense    *CategoryMap
	IncomeOnly *CategoryMap
	Categories *CategoryMap

	History *TransactionSet
	Prompt  *PromptContext
	Pending *TransactionSet

	Summary Summary
}

// Step 1: DownloadBudgetStep opens the budget on the remote store.
type DownloadBudgetStep struct {
	Store    BudgetStore
	BudgetID string
	Password string
}

func (s *DownloadBudgetStep) Execute(ctx context.Context, state *PipelineState) error {
	if err := s.Store.DownloadBudget(ctx, s.BudgetID, s.Password); err != nil {
		return err
	}
	log := logger.FromContext(ctx)
	log.Debug().Str("budget_id", s.BudgetID).Msg("Downloaded budget")
	return nil
}

// Step 2: LoadAccountsStep loads the accounts map. Account ids keep the
// store's order with duplicates removed.
type LoadAccountsStep struct {
	Store BudgetStore
}

func (s *LoadAccountsStep) Execute(ctx context.Context, state *PipelineState) error {
	accounts, err := s.Store.GetAccounts(ctx)
	if err != nil {
		return fmt.Errorf("LoadAccounts: %w", err)
	}

	state.Accounts = make(map[string]domain.Account, len(accounts))
	state.AccountIDs = state.AccountIDs[:0]
	for _, a := range accounts {
		if _, dup := state.Accounts[a.ID]; dup {
			continue
		}
		state.Accounts[a.ID] = a
		state.AccountIDs = append(state.AccountIDs, a.ID)
	}

	log := logger.FromContext(ctx)

	log.Debug().Strs("account_ids", state.AccountIDs).Msg("Loaded accounts")
	return nil
}

// Step 3: LoadCategoriesStep rebuilds both category partitions and the combined map.
type LoadCategoriesStep struct {
	Store CategorySource
}

func (s *LoadCategoriesStep) Execute(ctx context.Context, state *PipelineState) error {
	expense, incomeOnly, err := LoadCategories(ctx, s.Store)
	if err != nil {
		return err
	}
	state.Expense = expense
	state.IncomeOnly = incomeOnly
	state.Categories = Combine(expense, incomeOnly)
	return nil
}

// Step 4: FetchHistoryStep fetches the historical window and keeps the
// categorised transactions.
type FetchHistoryStep struct {
	Store TransactionSource
	Days  int
}

func (s *FetchHistoryStep) Execute(ctx context.Context, state *PipelineState) error {
	start, end := Window(state.Today, s.Days)
	all, err := FetchTransactions(ctx, s.Store, state.AccountIDs, start, end)
	if err != nil {
		return err
	}
	withCategory, _ := PartitionByCategory(all)
	state.History = withCategory

	log := logger.FromContext(ctx)

	log.Debug().
		Str("start", start.String()).
		Str("end", end.String()).
		Int("fetched", all.Len()).
		Int("categorised", withCategory.Len()).
		Msg("Fetched historical transactions")
	return nil
}

// Step 5: BuildPromptStep loads the template and builds the prompt context.
type BuildPromptStep struct {
	Templates      TemplateSource
	MaxHistoryRows int
}

func (s *BuildPromptStep) Execute(ctx context.Context, state *PipelineState) error {
	template, err := s.Templates.LoadTemplate(ctx)
	if err != nil {
		return err
	}

	history := SelectHistory(state.History, s.MaxHistoryRows)
	prompt, err := NewPromptContext(template, state.Accounts, state.Categories, history)
	if err != nil {
		return fmt.Errorf("BuildPrompt: %w", err)
	}
	state.Prompt = prompt

	log := logger.FromContext(ctx)

	log.Debug().
		Int("categories", len(prompt.CategoryNames)).
		Int("history_rows", len(history)).
		Int("prompt_bytes", len(prompt.SystemPrompt)).
		Msg("Built system prompt")
	return nil
}

// Step 6: FetchUncategorisedStep fetches the categorisation window and keeps
// transactions without a category.
type FetchUncategorisedStep struct {
	Store TransactionSource
	Days  int
}

func (s *FetchUncategorisedStep) Execute(ctx context.Context, state *PipelineState) error {
	start, end := Window(state.Today, s.Days)
	all, err := FetchTransactions(ctx, s.Store, state.AccountIDs, start, end)
	if err != nil {
		return err
	}
	_, withoutCategory := PartitionByCategory(all)
	state.Pending = withoutCategory

	log := logger.FromContext(ctx)

	log.Info().
		Str("start", start.String()).
		Str("end", end.String()).
		Int("uncategorised", withoutCategory.Len()).
		Msg("Fetched uncategorised transactions")
	return nil
}

// Step 7: ClassifyStep runs the classification engine over pending transactions.
type ClassifyStep struct {
	Engine *Engine
}

func (s *ClassifyStep) Execute(ctx context.Context, state *PipelineState) error {
	summary, err := s.Engine.Classify(ctx, Batch{
		RunID:      state.RunID,
		Prompt:     state.Prompt,
		Accounts:   state.Accounts,
		Categories: state.Categories,
		Pending:    state.Pending,
	})
	state.Summary = summary
	return err
}

// Pipeline executes a sequence of steps in order.
type Pipeline struct {
	steps []PipelineStep
}

// NewPipeline creates a new pipeline with the given steps.
func NewPipeline(steps ...PipelineStep) *Pipeline {
	return &Pipeline{steps: steps}
}

// Execute runs all steps in the pipeline sequentially.
func (p *Pipeline) Execute(ctx context.Context, state *PipelineState) error {
	for i, step := range p.steps {
		if err := step.Execute(ctx, state); err != nil {
			return fmt.Errorf("pipeline step %d failed: %w", i+1, err)
		}
	}
	return nil
}
