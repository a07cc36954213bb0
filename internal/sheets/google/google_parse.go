package google

import (
	"fmt"
	"strings"

	"pantry/internal/core"
)

// parseCategoryRows converts a values matrix into categories. Blank names and
// rows starting with '#' are skipped; the first row of a duplicated name wins.
func parseCategoryRows(values [][]any) []core.Category {
	seen := make(map[string]struct{}, len(values))
	out := make([]core.Category, 0, len(values))
	for _, row := range values {
		name := cellString(row, 0)
		if name == "" || strings.HasPrefix(name, "#") {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, core.Category{Name: name, Color: cellString(row, 1)})
	}
	return out
}

// normalizeRows pads every row to two cells so that a rewrite clears stale colors.
func normalizeRows(rows [][]any) [][]any {
	out := make([][]any, len(rows))
	for i, row := range rows {
		out[i] = []any{cellString(row, 0), cellString(row, 1)}
	}
	return out
}

func cellString(row []any, idx int) string {
	if idx < 0 || idx >= len(row) || row[idx] == nil {
		return ""
	}
	return strings.TrimSpace(fmt.Sprint(row[idx]))
}

func sameCategories(a, b []core.Category) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
