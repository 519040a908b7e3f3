package pipeline

import (
	"context"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/actual-categoriser/internal/domain"
)

// CategorySource lists category groups from the remote store.
type CategorySource interface {
	GetCategoryGroups(ctx context.Context) ([]domain.CategoryGroup, error)
}

// TransactionSource runs one windowed transaction query per account.
type TransactionSource interface {
	GetTransactions(ctx context.Context, accountID string, start, end civil.Date) ([]domain.Transaction, error)
}

// TransactionUpdater writes a category back to the remote store.
type TransactionUpdater interface {
	UpdateTransactionCategory(ctx context.Context, transactionID, categoryID string) error
}

// BudgetStore is the subset of the remote store a categorisation run uses.
// actual.Client satisfies it.
type BudgetStore interface {
	CategorySource
	TransactionSource
	TransactionUpdater
	DownloadBudget(ctx context.Context, budgetID, password string) error
	GetAccounts(ctx context.Context) ([]domain.Account, error)
}

// DecisionRecorder receives every classification decision for auditing.
type DecisionRecorder interface {
	RecordDecision(ctx context.Context, d Decision) error
}

// NopRecorder discards decisions.
type NopRecorder struct{}

// RecordDecision implements DecisionRecorder.
func (NopRecorder) RecordDecision(ctx context.Context, d Decision) error { return nil }
