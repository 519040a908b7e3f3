package pipeline

import (
	"errors"
	"testing"

	"github.com/dvloznov/actual-categoriser/internal/domain"
)

func TestToRows_MissingCategoryRendersPlaceholder(t *testing.T) {
	txs := []domain.Transaction{
		{ID: "t1", AccountID: "a1", ImportedPayee: "TESCO", Amount: -500},
		{ID: "t2", AccountID: "a1", ImportedPayee: "LIDL", Amount: -100, CategoryID: strPtr("gone")},
		{ID: "t3", AccountID: "a1", ImportedPayee: "ACME", Amount: 900, CategoryID: strPtr("c2")},
	}

	rows, err := ToRows(testAccounts(), testCategories(), txs)
	if err != nil {
		t.Fatalf("ToRows() error = %v", err)
	}

	want := []Row{
		{Account: "Checking", Payee: "TESCO", Amount: -500, Category: "???"},
		{Account: "Checking", Payee: "LIDL", Amount: -100, Category: "???"},
		{Account: "Checking", Payee: "ACME", Amount: 900, Category: "Salary (income)"},
	}
	for i := range want {
		if rows[i] != want[i] {
			t.Errorf("row %d = %+v, want %+v", i, rows[i], want[i])
		}
	}
}

func TestToRows_UnknownAccount(t *testing.T) {
	txs := []domain.Transaction{{ID: "t1", AccountID: "missing"}}
	if _, err := ToRows(testAccounts(), testCategories(), txs); !errors.Is(err, ErrUnknownAccount) {
		t.Errorf("ToRows() error = %v, want ErrUnknownAccount", err)
	}
}

func TestRenderMarkdownTable(t *testing.T) {
	tests := []struct {
		name string
		rows []Row
		want string
	}{
		{
			name: "single row",
			rows: []Row{{Account: "Checking", Payee: "TESCO", Notes: "", Amount: -500, Category: "???"}},
			want: "| Account | Payee | Notes | Amount | Category |\n" +
				"| --- | --- | --- | --- | --- |\n" +
				"| Checking | TESCO |  | -500 | ??? |",
		},
		{
			name: "escapes pipes and newlines",
			rows: []Row{{Account: "A|B", Payee: "line1\nline2", Notes: "x\r\ny", Amount: 1, Category: "Food"}},
			want: "| Account | Payee | Notes | Amount | Category |\n" +
				"| --- | --- | --- | --- | --- |\n" +
				`| A\|B | line1 line2 | x y | 1 | Food |`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := RenderMarkdownTable(tt.rows)
			if err != nil {
				t.Fatalf("RenderMarkdownTable() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("RenderMarkdownTable() =\n%s\nwant\n%s", got, tt.want)
			}
		})
	}
}

func TestRenderMarkdownTable_Empty(t *testing.T) {
	if _, err := RenderMarkdownTable(nil); !errors.Is(err, ErrEmptyTable) {
		t.Errorf("RenderMarkdownTable(nil) error = %v, want ErrEmptyTable", err)
	}
}

func TestRowRoundTrip(t *testing.T) {
	categories := testCategories()
	for _, id := range categories.IDs() {
		tx := domain.Transaction{ID: "t1", AccountID: "a1", CategoryID: strPtr(id)}
		rows, err := ToRows(testAccounts(), categories, []domain.Transaction{tx})
		if err != nil {
			t.Fatalf("ToRows() error = %v", err)
		}
		got, ok := ReverseLookupByName(categories, rows[0].Category)
		if !ok || got != id {
			t.Errorf("round trip of %s = %q, %v", id, got, ok)
		}
	}
}
