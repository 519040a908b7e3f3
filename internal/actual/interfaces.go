// Package actual is a client for the Actual Budget HTTP API, the remote store
// holding accounts, categories and transactions.
package actual

import (
	"context"
	"errors"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/actual-categoriser/internal/domain"
)

var (
	// ErrSessionClosed is returned by every call made after Shutdown.
	ErrSessionClosed = errors.New("actual: session closed")

	// ErrNoBudget is returned by budget-scoped calls made before DownloadBudget.
	ErrNoBudget = errors.New("actual: no budget downloaded")

	// ErrBudgetNotFound is returned by DownloadBudget when the server does not know the budget.
	ErrBudgetNotFound = errors.New("actual: budget not found")
)

// Store is the remote store contract consumed by the categorisation pipeline.
type Store interface {
	// DownloadBudget opens the budget with the given sync id. password may be empty.
	DownloadBudget(ctx context.Context, budgetID, password string) error

	GetAccounts(ctx context.Context) ([]domain.Account, error)
	GetCategoryGroups(ctx context.Context) ([]domain.CategoryGroup, error)

	// GetTransactions returns the account's transactions between start and end, inclusive.
	GetTransactions(ctx context.Context, accountID string, start, end civil.Date) ([]domain.Transaction, error)

	// UpdateTransactionCategory sets the category of one transaction.
	UpdateTransactionCategory(ctx context.Context, transactionID, categoryID string) error

	// RunBankSync asks the server to sync every linked account.
	RunBankSync(ctx context.Context) error

	// Shutdown releases the session. Later calls fail with ErrSessionClosed.
	Shutdown(ctx context.Context) error
}
