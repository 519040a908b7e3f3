package pipeline

import (
	"context"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/actual-categoriser/internal/domain"
	"github.com/dvloznov/actual-categoriser/internal/llm"
)

// mockStore is a configurable BudgetStore.
type mockStore struct {
	DownloadBudgetFunc            func(ctx context.Context, budgetID, password string) error
	GetAccountsFunc               func(ctx context.Context) ([]domain.Account, error)
	GetCategoryGroupsFunc         func(ctx context.Context) ([]domain.CategoryGroup, error)
	GetTransactionsFunc           func(ctx context.Context, accountID string, start, end civil.Date) ([]domain.Transaction, error)
	UpdateTransactionCategoryFunc func(ctx context.Context, transactionID, categoryID string) error

	updates     [][2]string
	fetchedFrom []string
}

func (m *mockStore) DownloadBudget(ctx context.Context, budgetID, password string) error {
	if m.DownloadBudgetFunc != nil {
		return m.DownloadBudgetFunc(ctx, budgetID, password)
	}
	return nil
}

func (m *mockStore) GetAccounts(ctx context.Context) ([]domain.Account, error) {
	if m.GetAccountsFunc != nil {
		return m.GetAccountsFunc(ctx)
	}
	return nil, nil
}

func (m *mockStore) GetCategoryGroups(ctx context.Context) ([]domain.CategoryGroup, error) {
	if m.GetCategoryGroupsFunc != nil {
		return m.GetCategoryGroupsFunc(ctx)
	}
	return nil, nil
}

func (m *mockStore) GetTransactions(ctx context.Context, accountID string, start, end civil.Date) ([]domain.Transaction, error) {
	m.fetchedFrom = append(m.fetchedFrom, accountID)
	if m.GetTransactionsFunc != nil {
		return m.GetTransactionsFunc(ctx, accountID, start, end)
	}
	return nil, nil
}

func (m *mockStore) UpdateTransactionCategory(ctx context.Context, transactionID, categoryID string) error {
	m.updates = append(m.updates, [2]string{transactionID, categoryID})
	if m.UpdateTransactionCategoryFunc != nil {
		return m.UpdateTransactionCategoryFunc(ctx, transactionID, categoryID)
	}
	return nil
}

// mockModel is a configurable llm.ChatCompleter.
type mockModel struct {
	CreateChatCompletionFunc func(ctx context.Context, req llm.ChatRequest) (*llm.ChatResponse, error)

	requests []llm.ChatRequest
}

func (m *mockModel) CreateChatCompletion(ctx context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
	m.requests = append(m.requests, req)
	return m.CreateChatCompletionFunc(ctx, req)
}

// replyWith returns a model that always answers text.
func replyWith(text string) *mockModel {
	return &mockModel{
		CreateChatCompletionFunc: func(ctx context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
			return &llm.ChatResponse{Choices: []llm.Choice{{Message: llm.Message{Role: llm.RoleAssistant, Content: text}}}}, nil
		},
	}
}

// mockRecorder collects decisions.
type mockRecorder struct {
	RecordDecisionFunc func(ctx context.Context, d Decision) error

	decisions []Decision
}

func (m *mockRecorder) RecordDecision(ctx context.Context, d Decision) error {
	m.decisions = append(m.decisions, d)
	if m.RecordDecisionFunc != nil {
		return m.RecordDecisionFunc(ctx, d)
	}
	return nil
}

func strPtr(s string) *string { return &s }

// testCategories returns the Groceries/Salary fixture.
func testCategories() *CategoryMap {
	expense := NewCategoryMap()
	expense.Set(domain.Category{ID: "c1", Name: "Groceries (expense)"})
	income := NewCategoryMap()
	income.Set(domain.Category{ID: "c2", Name: "Salary (income)", IsIncome: true})
	return Combine(expense, income)
}

func testAccounts() map[string]domain.Account {
	return map[string]domain.Account{"a1": {ID: "a1", Name: "Checking"}}
}
