package pipeline

import (
	"sort"
	"strings"

	"github.com/dvloznov/actual-categoriser/internal/domain"
)

// PromptContext is the per-run context handed to every classification.
type PromptContext struct {
	CategoryNames   []string
	HistoricalTable string
	SystemPrompt    string
}

// FormatCategoryNames renders names as a comma-separated list of
// single-quoted strings, escaping embedded single quotes.
func FormatCategoryNames(names []string) string {
	quoted := make([]string, 0, len(names))
	for _, name := range names {
		quoted = append(quoted, "'"+strings.ReplaceAll(name, "'", `\'`)+"'")
	}
	return strings.Join(quoted, ", ")
}

// BuildSystemPrompt substitutes the first occurrence of each placeholder
// token. Later occurrences are left in place. Token positions are taken from
// the template, so substituted text is never scanned for tokens.
func BuildSystemPrompt(template string, categoryNames []string, historicalTable string) string {
	type substitution struct {
		at    int
		token string
		value string
	}
	subs := []substitution{
		{strings.Index(template, CategoriesToken), CategoriesToken, FormatCategoryNames(categoryNames)},
		{strings.Index(template, HistoryToken), HistoryToken, historicalTable},
	}
	sort.Slice(subs, func(i, j int) bool { return subs[i].at < subs[j].at })

	var b strings.Builder
	pos := 0
	for _, s := range subs {
		if s.at < 0 {
			continue
		}
		b.WriteString(template[pos:s.at])
		b.WriteString(s.value)
		pos = s.at + len(s.token)
	}
	b.WriteString(template[pos:])
	return b.String()
}

// SelectHistory orders categorised transactions newest first (id ascending
// on equal dates) and keeps at most max of them. max <= 0 keeps all.
func SelectHistory(set *TransactionSet, max int) []domain.Transaction {
	txs := set.Transactions()
	sort.SliceStable(txs, func(i, j int) bool {
		if txs[i].Date != txs[j].Date {
			return txs[j].Date.Before(txs[i].Date)
		}
		return txs[i].ID < txs[j].ID
	})
	if max > 0 && len(txs) > max {
		txs = txs[:max]
	}
	return txs
}

// NewPromptContext renders the historical table and builds the system prompt.
func NewPromptContext(template string, accounts map[string]domain.Account, categories *CategoryMap, history []domain.Transaction) (*PromptContext, error) {
	table := NoHistoryPlaceholder
	if len(history) > 0 {
		rows, err := ToRows(accounts, categories, history)
		if err != nil {
			return nil, err
		}
		table, err = RenderMarkdownTable(rows)
		if err != nil {
			return nil, err
		}
	}

	names := categories.Names()
	return &PromptContext{
		CategoryNames:   names,
		HistoricalTable: table,
		SystemPrompt:    BuildSystemPrompt(template, names, table),
	}, nil
}
