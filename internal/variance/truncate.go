// Package variance keeps the most variable rows of a matrix.
package variance

import (
	"sort"

	"github.com/heatmap-scatter/server/pkg/matrix"
)

// Order returns row positions sorted by descending sample variance.
// Equal variances keep their original relative order.
func Order(m *matrix.Matrix) []int {
	vars := m.RowVariances()
	order := make([]int, len(vars))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return vars[order[a]] > vars[order[b]]
	})
	return order
}

// Truncate returns the maxRows most variable rows, most variable first.
// maxRows <= 0 keeps every row, still ordered by variance.
func Truncate(m *matrix.Matrix, maxRows int) *matrix.Matrix {
	order := Order(m)
	if maxRows > 0 && maxRows < len(order) {
		order = order[:maxRows]
	}
	return m.ReorderRows(order)
}
