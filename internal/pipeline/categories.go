package pipeline

import (
	"context"
	"fmt"

	"github.com/dvloznov/actual-categoriser/internal/domain"
	"github.com/dvloznov/actual-categoriser/internal/logger"
)

// CategoryMap is an ordered map of categories keyed by id. Order is the
// order categories were first added, which for loaded categories is the
// remote store's group order.
type CategoryMap struct {
	ids  []string
	byID map[string]domain.Category
}

// NewCategoryMap returns an empty map.
func NewCategoryMap() *CategoryMap {
	return &CategoryMap{byID: make(map[string]domain.Category)}
}

// Set adds or replaces a category. A replaced category keeps its position.
func (m *CategoryMap) Set(c domain.Category) {
	if _, exists := m.byID[c.ID]; !exists {
		m.ids = append(m.ids, c.ID)
	}
	m.byID[c.ID] = c
}

// Get returns the category with the given id.
func (m *CategoryMap) Get(id string) (domain.Category, bool) {
	if m == nil {
		return domain.Category{}, false
	}
	c, ok := m.byID[id]
	return c, ok
}

// Len returns the number of categories.
func (m *CategoryMap) Len() int {
	if m == nil {
		return 0
	}
	return len(m.ids)
}

// IDs returns category ids in map order.
func (m *CategoryMap) IDs() []string {
	if m == nil {
		return nil
	}
	return append([]string(nil), m.ids...)
}

// Names returns category display names in map order.
func (m *CategoryMap) Names() []string {
	if m == nil {
		return nil
	}
	names := make([]string, 0, len(m.ids))
	for _, id := range m.ids {
		names = append(names, m.byID[id].Name)
	}
	return names
}

// LoadCategories flattens the remote store's category groups into an
// expense map and an income-only map, partitioned by each category's
// IsIncome flag. An empty result is not an error.
func LoadCategories(ctx context.Context, src CategorySource) (*CategoryMap, *CategoryMap, error) {
	log := logger.FromContext(ctx)

	groups, err := src.GetCategoryGroups(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("LoadCategories: get category groups: %w", err)
	}

	expense := NewCategoryMap()
	incomeOnly := NewCategoryMap()

	if len(groups) == 0 {
		if groups == nil {
			log.Warn().Msg("Categories is null")
		} else {
			log.Warn().Msg("Categories is empty")
		}
		return expense, incomeOnly, nil
	}

	for _, group := range groups {
		for _, category := range group.Categories {
			if category.IsIncome {
				incomeOnly.Set(category)
			} else {
				expense.Set(category)
			}
		}
	}

	log.Debug().
		Int("expense_categories", expense.Len()).
		Int("income_categories", incomeOnly.Len()).
		Msg("Loaded categories")

	return expense, incomeOnly, nil
}

// Combine returns the key union of both maps. On an id collision the
// income-only category wins.
func Combine(expense, incomeOnly *CategoryMap) *CategoryMap {
	combined := NewCategoryMap()
	for _, m := range []*CategoryMap{expense, incomeOnly} {
		if m == nil {
			continue
		}
		for _, id := range m.ids {
			combined.Set(m.byID[id])
		}
	}
	return combined
}

// ReverseLookupByName returns the id of the first category, in map order,
// whose name equals name exactly. Comparison is case-sensitive and untrimmed.
func ReverseLookupByName(m *CategoryMap, name string) (string, bool) {
	if m == nil {
		return "", false
	}
	for _, id := range m.ids {
		if m.byID[id].Name == name {
			return id, true
		}
	}
	return "", false
}
