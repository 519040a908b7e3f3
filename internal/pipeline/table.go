package pipeline

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/dvloznov/actual-categoriser/internal/domain"
)

var (
	// ErrEmptyTable is returned when rendering a table with no rows.
	ErrEmptyTable = errors.New("pipeline: cannot render an empty table")

	// ErrUnknownAccount is returned when a transaction references an account
	// missing from the accounts map.
	ErrUnknownAccount = errors.New("pipeline: transaction references unknown account")
)

// tableColumns is the fixed column order of every rendered table.
var tableColumns = []string{"Account", "Payee", "Notes", "Amount", "Category"}

// Row is one transaction as shown to the model.
type Row struct {
	Account  string
	Payee    string
	Notes    string
	Amount   int64
	Category string
}

func (r Row) cells() []string {
	return []string{r.Account, r.Payee, r.Notes, strconv.FormatInt(r.Amount, 10), r.Category}
}

// ToRows converts transactions into table rows. A missing or unknown
// category renders as UnknownCategoryName; an unknown account is an error.
func ToRows(accounts map[string]domain.Account, categories *CategoryMap, txs []domain.Transaction) ([]Row, error) {
	rows := make([]Row, 0, len(txs))
	for _, tx := range txs {
		account, ok := accounts[tx.AccountID]
		if !ok {
			return nil, fmt.Errorf("ToRows: transaction %s account %q: %w", tx.ID, tx.AccountID, ErrUnknownAccount)
		}

		category := UnknownCategoryName
		if tx.CategoryID != nil {
			if c, ok := categories.Get(*tx.CategoryID); ok {
				category = c.Name
			}
		}

		rows = append(rows, Row{
			Account:  account.Name,
			Payee:    tx.ImportedPayee,
			Notes:    tx.Notes,
			Amount:   tx.Amount,
			Category: category,
		})
	}
	return rows, nil
}

// RenderMarkdownTable renders rows as a pipe-delimited markdown table with a
// header and separator line. Each row renders on exactly one line.
func RenderMarkdownTable(rows []Row) (string, error) {
	if len(rows) == 0 {
		return "", ErrEmptyTable
	}

	var b strings.Builder
	writeTableLine(&b, tableColumns)

	separator := make([]string, len(tableColumns))
	for i := range separator {
		separator[i] = "---"
	}
	writeTableLine(&b, separator)

	for _, row := range rows {
		writeTableLine(&b, row.cells())
	}

	return strings.TrimSuffix(b.String(), "\n"), nil
}

func writeTableLine(b *strings.Builder, cells []string) {
	b.WriteString("|")
	for _, cell := range cells {
		b.WriteString(" ")
		b.WriteString(escapeCell(cell))
		b.WriteString(" |")
	}
	b.WriteString("\n")
}

var cellReplacer = strings.NewReplacer("|", `\|`, "\r\n", " ", "\n", " ", "\r", " ")

func escapeCell(s string) string {
	return cellReplacer.Replace(s)
}
