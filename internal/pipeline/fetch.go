package pipeline

import (
	"context"
	"fmt"

	"cloud.google.com/go/civil"
)

// FetchTransactions queries every account once for [start, end] and merges
// the results by transaction id. Accounts are queried in the given order and
// a repeated account id is queried once. Any failure fails the whole fetch.
func FetchTransactions(ctx context.Context, src TransactionSource, accountIDs []string, start, end civil.Date) (*TransactionSet, error) {
	all := NewTransactionSet()
	seen := make(map[string]bool, len(accountIDs))

	for _, accountID := range accountIDs {
		if seen[accountID] {
			continue
		}
		seen[accountID] = true

		txs, err := src.GetTransactions(ctx, accountID, start, end)
		if err != nil {
			return nil, fmt.Errorf("FetchTransactions: account %s (%s..%s): %w", accountID, start, end, err)
		}
		for _, tx := range txs {
			all.Put(tx)
		}
	}

	return all, nil
}

// Window returns the inclusive date range covering the last days days up to today.
func Window(today civil.Date, days int) (civil.Date, civil.Date) {
	return today.AddDays(-days), today
}
