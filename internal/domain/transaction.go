package domain

import (
	"cloud.google.com/go/civil"
)

// Transaction is one bank transaction as held by the remote store.
// CategoryID is nil when the transaction has no category; the store client
// normalises null, absent and empty-string categories to nil.
type Transaction struct {
	ID            string
	AccountID     string
	Date          civil.Date // booking date, YYYY-MM-DD on the wire
	ImportedPayee string     // payee text as imported by bank sync
	Notes         string
	Amount        int64 // signed, minor currency units
	CategoryID    *string
}

// HasCategory reports whether the transaction carries a category id.
func (t *Transaction) HasCategory() bool {
	return t.CategoryID != nil
}

// Account is a budget account.
type Account struct {
	ID   string
	Name string
}

// Category is a budget category. IsIncome places it in the income-only partition.
type Category struct {
	ID       string
	Name     string
	IsIncome bool
	GroupID  string
}

// CategoryGroup is a named group of categories as returned by the remote store.
type CategoryGroup struct {
	ID         string
	Name       string
	IsIncome   bool
	Categories []Category
}
