// Package merger attaches resolved categories to items and folds items that
// share a name.
package merger

import (
	"strings"

	"pantry/internal/core"
)

// ColorSource picks colors for unseen category names.
type ColorSource interface {
	ColorFor(name string, known core.CategoryColorMap) (color string, created bool)
}

// ResolveItemCategories maps raw category names to categories.
//
// Names are trimmed and blanks skipped. Duplicates are removed by exact string
// match keeping first-seen order. Names missing from colorMap get a color from
// src and are written into colorMap before the next name is looked up; those
// are also returned in created.
func ResolveItemCategories(raw []string, colorMap core.CategoryColorMap, src ColorSource) (resolved, created []core.Category) {
	seen := make(map[string]struct{}, len(raw))
	for _, name := range raw {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}

		color, isNew := src.ColorFor(name, colorMap)
		if isNew {
			colorMap[name] = color
			created = append(created, core.Category{Name: name, Color: color})
		}
		resolved = append(resolved, core.Category{Name: name, Color: color})
	}
	return resolved, created
}

type ActionKind string

const (
	Create     ActionKind = "create"
	Accumulate ActionKind = "accumulate"
)

// Action describes how a new item lands in the existing list.
type Action struct {
	Kind ActionKind
	// Item is the record to persist: the new item for Create, the updated
	// existing item (same ID) for Accumulate.
	Item core.Item
	// Index of the matched existing item, -1 for Create.
	Index int
}

// MergeItemByName matches newItem against existing by exact name.
//
// The first match wins. Its amount becomes core.SumAmounts(existing, new)
// and the new item's categories are appended after the existing ones,
// skipping names already present.
func MergeItemByName(existing []core.Item, newItem core.Item) Action {
	for i, it := range existing {
		if it.Name != newItem.Name {
			continue
		}
		merged := it
		merged.Amount = core.SumAmounts(it.Amount, newItem.Amount)
		merged.Categories = UnionCategories(it.Categories, newItem.Categories)
		return Action{Kind: Accumulate, Item: merged, Index: i}
	}
	return Action{Kind: Create, Item: newItem, Index: -1}
}

// UnionCategories returns a followed by the entries of b whose name is not in a.
func UnionCategories(a, b []core.Category) []core.Category {
	out := make([]core.Category, 0, len(a)+len(b))
	seen := make(map[string]struct{}, len(a)+len(b))
	for _, list := range [][]core.Category{a, b} {
		for _, c := range list {
			if _, ok := seen[c.Name]; ok {
				continue
			}
			seen[c.Name] = struct{}{}
			out = append(out, c)
		}
	}
	return out
}
