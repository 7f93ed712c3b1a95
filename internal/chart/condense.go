package chart

import "finsight/internal/core"

const (
	// DefaultCategoryLimit is how many categories the breakdown shows before
	// folding the rest into OthersCategory.
	DefaultCategoryLimit = 5
	OthersCategory       = "others"
)

// Condense keeps the first limit entries and folds the remainder into one
// "others" entry carrying their summed value. The input is assumed sorted
// by value, descending; Condense does not sort. A limit <= 0 selects
// DefaultCategoryLimit. The result never aliases items. Its Total equals
// the input's up to float64 rounding, since the tail is summed on its own.
func Condense(items []core.CategoryAggregate, limit int) []core.CategoryAggregate {
	if limit <= 0 {
		limit = DefaultCategoryLimit
	}
	if len(items) <= limit {
		out := make([]core.CategoryAggregate, len(items))
		copy(out, items)
		return out
	}

	out := make([]core.CategoryAggregate, 0, limit+1)
	out = append(out, items[:limit]...)

	var rest float64
	for _, it := range items[limit:] {
		rest += it.Value
	}
	return append(out, core.CategoryAggregate{Category: OthersCategory, Value: rest})
}

// Total sums the values of items.
func Total(items []core.CategoryAggregate) float64 {
	var sum float64
	for _, it := range items {
		sum += it.Value
	}
	return sum
}
