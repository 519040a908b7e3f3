package actual

import (
	"bytes"
	"encoding/json"
	"fmt"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/actual-categoriser/internal/domain"
)

// envelope is the {"data": ...} wrapper used by every successful response.
type envelope[T any] struct {
	Data T `json:"data"`
}

// ErrorResponse is the body of a failed request.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

type budgetDTO struct {
	Name        string `json:"name"`
	CloudFileID string `json:"cloudFileId"`
	GroupID     string `json:"groupId"`
}

type accountDTO struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	OffBudget bool   `json:"offbudget"`
	Closed    bool   `json:"closed"`
}

type categoryDTO struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	IsIncome bool   `json:"is_income"`
	GroupID  string `json:"group_id"`
}

type categoryGroupDTO struct {
	ID         string        `json:"id"`
	Name       string        `json:"name"`
	IsIncome   bool          `json:"is_income"`
	Categories []categoryDTO `json:"categories"`
}

type transactionDTO struct {
	ID            string          `json:"id"`
	Account       string          `json:"account"`
	Date          string          `json:"date"`
	Amount        int64           `json:"amount"`
	ImportedPayee *string         `json:"imported_payee"`
	Notes         *string         `json:"notes"`
	Category      json.RawMessage `json:"category"`
}

type updateTransactionRequest struct {
	Transaction struct {
		Category string `json:"category"`
	} `json:"transaction"`
}

var jsonNull = []byte("null")

// normalizeCategory maps the three "no category" shapes (absent, null, "")
// to nil and anything else to the category id.
func normalizeCategory(raw json.RawMessage) (*string, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, jsonNull) {
		return nil, nil
	}

	var id string
	if err := json.Unmarshal(trimmed, &id); err != nil {
		return nil, fmt.Errorf("category has unexpected value %s: %w", string(trimmed), err)
	}
	if id == "" {
		return nil, nil
	}
	return &id, nil
}

func (t transactionDTO) toDomain() (domain.Transaction, error) {
	date, err := civil.ParseDate(t.Date)
	if err != nil {
		return domain.Transaction{}, fmt.Errorf("transaction %s: invalid date %q: %w", t.ID, t.Date, err)
	}
	category, err := normalizeCategory(t.Category)
	if err != nil {
		return domain.Transaction{}, fmt.Errorf("transaction %s: %w", t.ID, err)
	}

	return domain.Transaction{
		ID:            t.ID,
		AccountID:     t.Account,
		Date:          date,
		ImportedPayee: derefString(t.ImportedPayee),
		Notes:         derefString(t.Notes),
		Amount:        t.Amount,
		CategoryID:    category,
	}, nil
}

func (g categoryGroupDTO) toDomain() domain.CategoryGroup {
	group := domain.CategoryGroup{
		ID:         g.ID,
		Name:       g.Name,
		IsIncome:   g.IsIncome,
		Categories: make([]domain.Category, 0, len(g.Categories)),
	}
	for _, c := range g.Categories {
		group.Categories = append(group.Categories, domain.Category{
			ID:       c.ID,
			Name:     c.Name,
			IsIncome: c.IsIncome,
			GroupID:  c.GroupID,
		})
	}
	return group
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
