package pipeline

import "github.com/dvloznov/actual-categoriser/internal/domain"

// TransactionSet is an ordered map of transactions keyed by id. Iteration
// follows insertion order; re-putting an id replaces the value in place.
type TransactionSet struct {
	ids  []string
	byID map[string]domain.Transaction
}

// NewTransactionSet returns an empty set.
func NewTransactionSet() *TransactionSet {
	return &TransactionSet{byID: make(map[string]domain.Transaction)}
}

// Put adds or replaces a transaction.
func (s *TransactionSet) Put(tx domain.Transaction) {
	if _, exists := s.byID[tx.ID]; !exists {
		s.ids = append(s.ids, tx.ID)
	}
	s.byID[tx.ID] = tx
}

// Get returns the transaction with the given id.
func (s *TransactionSet) Get(id string) (domain.Transaction, bool) {
	if s == nil {
		return domain.Transaction{}, false
	}
	tx, ok := s.byID[id]
	return tx, ok
}

// Len returns the number of transactions.
func (s *TransactionSet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.ids)
}

// IDs returns transaction ids in insertion order.
func (s *TransactionSet) IDs() []string {
	if s == nil {
		return nil
	}
	return append([]string(nil), s.ids...)
}

// Transactions returns the transactions in insertion order.
func (s *TransactionSet) Transactions() []domain.Transaction {
	if s == nil {
		return nil
	}
	out := make([]domain.Transaction, 0, len(s.ids))
	for _, id := range s.ids {
		out = append(out, s.byID[id])
	}
	return out
}
