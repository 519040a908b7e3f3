package pipeline

import (
	"context"
	"fmt"

	"github.com/dvloznov/actual-categoriser/internal/logger"
)

// Applier writes a resolved category for one transaction.
type Applier interface {
	Apply(ctx context.Context, transactionID, categoryID string) error
}

// StoreApplier applies categories through the remote store. With DryRun set
// it only logs the write it would make.
type StoreApplier struct {
	Store  TransactionUpdater
	DryRun bool
}

// Apply implements Applier.
func (a *StoreApplier) Apply(ctx context.Context, transactionID, categoryID string) error {
	if a.DryRun {
		log := logger.FromContext(ctx)
		log.Info().
			Str("transaction_id", transactionID).
			Str("category_id", categoryID).
			Msg("Dry run: skipping category update")
		return nil
	}

	if err := a.Store.UpdateTransactionCategory(ctx, transactionID, categoryID); err != nil {
		return fmt.Errorf("Apply: %w", err)
	}
	return nil
}
