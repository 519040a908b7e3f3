package pipeline

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/actual-categoriser/internal/domain"
)

func TestFetchTransactions_EmptyAccounts(t *testing.T) {
	store := &mockStore{}
	set, err := FetchTransactions(context.Background(), store, nil, civil.Date{Year: 2024, Month: 10, Day: 1}, civil.Date{Year: 2024, Month: 10, Day: 30})
	if err != nil {
		t.Fatalf("FetchTransactions() error = %v", err)
	}
	if set.Len() != 0 {
		t.Errorf("Len() = %d, want 0", set.Len())
	}
	if len(store.fetchedFrom) != 0 {
		t.Errorf("expected no remote calls, got %v", store.fetchedFrom)
	}
}

func TestFetchTransactions_MergesByID(t *testing.T) {
	start := civil.Date{Year: 2024, Month: 10, Day: 1}
	end := civil.Date{Year: 2024, Month: 10, Day: 30}

	store := &mockStore{
		GetTransactionsFunc: func(ctx context.Context, accountID string, s, e civil.Date) ([]domain.Transaction, error) {
			if s != start || e != end {
				t.Errorf("window = %s..%s, want %s..%s", s, e, start, end)
			}
			switch accountID {
			case "a1":
				return []domain.Transaction{{ID: "t1", AccountID: "a1", Amount: 1}, {ID: "t2", AccountID: "a1"}}, nil
			case "a2":
				return []domain.Transaction{{ID: "t3", AccountID: "a2"}, {ID: "t1", AccountID: "a2", Amount: 2}}, nil
			}
			return nil, nil
		},
	}

	set, err := FetchTransactions(context.Background(), store, []string{"a1", "a2", "a1"}, start, end)
	if err != nil {
		t.Fatalf("FetchTransactions() error = %v", err)
	}
	if !reflect.DeepEqual(store.fetchedFrom, []string{"a1", "a2"}) {
		t.Errorf("queried accounts = %v, want each once in order", store.fetchedFrom)
	}
	if got := set.IDs(); !reflect.DeepEqual(got, []string{"t1", "t2", "t3"}) {
		t.Errorf("IDs() = %v", got)
	}
	if tx, _ := set.Get("t1"); tx.Amount != 2 {
		t.Errorf("duplicate id should be last write wins, got %+v", tx)
	}
}

func TestFetchTransactions_FailureIsFatal(t *testing.T) {
	boom := errors.New("boom")
	store := &mockStore{
		GetTransactionsFunc: func(ctx context.Context, accountID string, s, e civil.Date) ([]domain.Transaction, error) {
			if accountID == "a2" {
				return nil, boom
			}
			return []domain.Transaction{{ID: "t1"}}, nil
		},
	}

	set, err := FetchTransactions(context.Background(), store, []string{"a1", "a2"}, civil.Date{}, civil.Date{})
	if !errors.Is(err, boom) {
		t.Fatalf("FetchTransactions() error = %v, want %v", err, boom)
	}
	if set != nil {
		t.Error("expected no partial result")
	}
}

func TestWindow(t *testing.T) {
	start, end := Window(civil.Date{Year: 2024, Month: 3, Day: 1}, 30)
	if start != (civil.Date{Year: 2024, Month: 1, Day: 31}) {
		t.Errorf("start = %s", start)
	}
	if end != (civil.Date{Year: 2024, Month: 3, Day: 1}) {
		t.Errorf("end = %s", end)
	}
}

func TestPartitionByCategory(t *testing.T) {
	tests := []struct {
		name        string
		txs         []domain.Transaction
		wantWith    []string
		wantWithout []string
	}{
		{name: "empty"},
		{
			name: "mixed",
			txs: []domain.Transaction{
				{ID: "t1", CategoryID: strPtr("c1")},
				{ID: "t2"},
				{ID: "t3", CategoryID: strPtr("c2")},
				{ID: "t4"},
			},
			wantWith:    []string{"t1", "t3"},
			wantWithout: []string{"t2", "t4"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			set := NewTransactionSet()
			for _, tx := range tt.txs {
				set.Put(tx)
			}

			with, without := PartitionByCategory(set)

			if with.Len()+without.Len() != set.Len() {
				t.Errorf("partition sizes %d+%d != %d", with.Len(), without.Len(), set.Len())
			}
			for _, id := range with.IDs() {
				if _, ok := without.Get(id); ok {
					t.Errorf("%s in both halves", id)
				}
			}
			if len(tt.wantWith) > 0 && !reflect.DeepEqual(with.IDs(), tt.wantWith) {
				t.Errorf("with = %v, want %v", with.IDs(), tt.wantWith)
			}
			if len(tt.wantWithout) > 0 && !reflect.DeepEqual(without.IDs(), tt.wantWithout) {
				t.Errorf("without = %v, want %v", without.IDs(), tt.wantWithout)
			}
		})
	}
}
