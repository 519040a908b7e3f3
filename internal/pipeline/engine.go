package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dvloznov/actual-categoriser/internal/domain"
	"github.com/dvloznov/actual-categoriser/internal/llm"
	"github.com/dvloznov/actual-categoriser/internal/logger"
	"github.com/rs/zerolog"
)

// Outcome is the result of resolving one model response.
type Outcome string

const (
	OutcomeApplied    Outcome = "APPLIED"
	OutcomeUnknown    Outcome = "UNKNOWN"
	OutcomeUnresolved Outcome = "UNRESOLVED"
)

// Resolution is a model response interpreted against the category set.
// CategoryID and CategoryName are set only for OutcomeApplied.
type Resolution struct {
	Outcome      Outcome
	Response     string
	CategoryID   string
	CategoryName string
}

// ResolveResponse trims the model response and maps it to a category.
// The unknown sentinel and names with no exact match never resolve to an id.
func ResolveResponse(text string, categories *CategoryMap) Resolution {
	response := strings.TrimSpace(text)
	if response == UnknownSentinel {
		return Resolution{Outcome: OutcomeUnknown, Response: response}
	}

	id, ok := ReverseLookupByName(categories, response)
	if !ok {
		return Resolution{Outcome: OutcomeUnresolved, Response: response}
	}
	return Resolution{
		Outcome:      OutcomeApplied,
		Response:     response,
		CategoryID:   id,
		CategoryName: response,
	}
}

// Decision is the audit record of one classification.
type Decision struct {
	RunID         string
	TransactionID string
	AccountName   string
	Payee         string
	Amount        int64
	Model         string
	Response      string
	Outcome       Outcome
	CategoryID    string
	CategoryName  string
	DryRun        bool
	DecidedAt     time.Time
}

// Summary counts the outcomes of one classification pass.
type Summary struct {
	Processed  int
	Applied    int
	Unknown    int
	Unresolved int
}

// Batch is the input of one classification pass.
type Batch struct {
	RunID      string
	Prompt     *PromptContext
	Accounts   map[string]domain.Account
	Categories *CategoryMap
	Pending    *TransactionSet
}

// EngineConfig configures an Engine.
type EngineConfig struct {
	Model     llm.ChatCompleter
	ModelName string
	Applier   Applier
	Recorder  DecisionRecorder

	// DebugPrompts logs the full exchange for every skipped transaction.
	DebugPrompts bool
	DryRun       bool

	// Now defaults to time.Now.
	Now func() time.Time
}

// Engine classifies uncategorised transactions one at a time.
type Engine struct {
	cfg EngineConfig
}

// NewEngine creates an Engine, filling defaults for optional fields.
func NewEngine(cfg EngineConfig) *Engine {
	if cfg.ModelName == "" {
		cfg.ModelName = DefaultModelName
	}
	if cfg.Recorder == nil {
		cfg.Recorder = NopRecorder{}
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Engine{cfg: cfg}
}

// Classify processes every pending transaction in set order. A rendering,
// model or update failure stops the pass and is returned with the summary so far.
func (e *Engine) Classify(ctx context.Context, batch Batch) (Summary, error) {
	log := logger.FromContext(ctx)
	var summary Summary

	for _, tx := range batch.Pending.Transactions() {
		rows, err := ToRows(batch.Accounts, batch.Categories, []domain.Transaction{tx})
		if err != nil {
			return summary, fmt.Errorf("Classify: %w", err)
		}
		table, err := RenderMarkdownTable(rows)
		if err != nil {
			return summary, fmt.Errorf("Classify: transaction %s: %w", tx.ID, err)
		}

		req := llm.ChatRequest{
			Model: e.cfg.ModelName,
			Messages: []llm.Message{
				{Role: llm.RoleSystem, Content: batch.Prompt.SystemPrompt},
				{Role: llm.RoleUser, Content: UserInstruction + table},
			},
		}

		resp, err := e.cfg.Model.CreateChatCompletion(ctx, req)
		if err != nil {
			return summary, fmt.Errorf("Classify: transaction %s: model request: %w", tx.ID, err)
		}
		content, err := llm.FirstContent(resp)
		if err != nil {
			return summary, fmt.Errorf("Classify: transaction %s: %w", tx.ID, err)
		}

		res := ResolveResponse(content, batch.Categories)
		summary.Processed++

		txLog := log.With().
			Str("transaction_id", tx.ID).
			Str("account", rows[0].Account).
			Str("payee", tx.ImportedPayee).
			Str("notes", tx.Notes).
			Int64("amount", tx.Amount).
			Str("outcome", string(res.Outcome)).
			Logger()

		switch res.Outcome {
		case OutcomeUnknown:
			summary.Unknown++
			txLog.Info().Msg("Model could not categorise transaction, skipping")
			e.logExchange(txLog, req, res.Response)
		case OutcomeUnresolved:
			summary.Unresolved++
			txLog.Warn().Str("response", res.Response).Msg("Model response matches no category, skipping")
			e.logExchange(txLog, req, res.Response)
		case OutcomeApplied:
			if err := e.cfg.Applier.Apply(ctx, tx.ID, res.CategoryID); err != nil {
				return summary, fmt.Errorf("Classify: transaction %s: %w", tx.ID, err)
			}
			summary.Applied++
			txLog.Info().
				Str("category_id", res.CategoryID).
				Str("category", res.CategoryName).
				Msg("Categorised transaction")
		}

		decision := Decision{
			RunID:         batch.RunID,
			TransactionID: tx.ID,
			AccountName:   rows[0].Account,
			Payee:         tx.ImportedPayee,
			Amount:        tx.Amount,
			Model:         e.cfg.ModelName,
			Response:      res.Response,
			Outcome:       res.Outcome,
			CategoryID:    res.CategoryID,
			CategoryName:  res.CategoryName,
			DryRun:        e.cfg.DryRun,
			DecidedAt:     e.cfg.Now().UTC(),
		}
		if err := e.cfg.Recorder.RecordDecision(ctx, decision); err != nil {
			txLog.Warn().Err(err).Msg("Failed to record decision")
		}
	}

	return summary, nil
}

func (e *Engine) logExchange(log zerolog.Logger, req llm.ChatRequest, response string) {
	if !e.cfg.DebugPrompts {
		return
	}
	for _, m := range req.Messages {
		log.Info().Str("role", m.Role).Str("content", m.Content).Msg("Prompt message")
	}
	log.Info().Str("role", llm.RoleAssistant).Str("content", response).Msg("Model response")
}
