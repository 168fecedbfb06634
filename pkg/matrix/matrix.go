// Package matrix provides the immutable expression matrix used by the
// selection and rendering pipeline: a dense row-major table of float64 values
// with ordered, unique row identifiers (genes) and column identifiers
// (conditions).
//
// Every transform returns a new Matrix. Row and column identifiers are never
// renamed by a transform, only subset or reordered.
package matrix

import (
	"fmt"
	"math"
)

// Matrix is a dense, immutable numeric table with labelled axes.
type Matrix struct {
	rowIDs   []string
	colIDs   []string
	data     []float64 // row-major, len = rows*cols
	rowIndex map[string]int
	colIndex map[string]int
}

// New builds a Matrix from row ids, column ids and row-major values.
// values must have len(rowIDs) rows of len(colIDs) entries each.
func New(rowIDs, colIDs []string, values [][]float64) (*Matrix, error) {
	if len(values) != len(rowIDs) {
		return nil, fmt.Errorf("%w: %d rows of values for %d row ids", ErrShape, len(values), len(rowIDs))
	}
	data := make([]float64, 0, len(rowIDs)*len(colIDs))
	for i, row := range values {
		if len(row) != len(colIDs) {
			return nil, fmt.Errorf("%w: row %q has %d values, expected %d", ErrShape, rowIDs[i], len(row), len(colIDs))
		}
		for j, v := range row {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, fmt.Errorf("%w: row %q column %q", ErrNaNInf, rowIDs[i], colIDs[j])
			}
		}
		data = append(data, row...)
	}
	return fromFlat(rowIDs, colIDs, data)
}

// fromFlat takes ownership of the id slices and data.
func fromFlat(rowIDs, colIDs []string, data []float64) (*Matrix, error) {
	rowIndex, err := indexIDs(rowIDs, "row")
	if err != nil {
		return nil, err
	}
	colIndex, err := indexIDs(colIDs, "column")
	if err != nil {
		return nil, err
	}
	return &Matrix{
		rowIDs:   rowIDs,
		colIDs:   colIDs,
		data:     data,
		rowIndex: rowIndex,
		colIndex: colIndex,
	}, nil
}

func indexIDs(ids []string, axis string) (map[string]int, error) {
	index := make(map[string]int, len(ids))
	for i, id := range ids {
		if _, dup := index[id]; dup {
			return nil, fmt.Errorf("%w: %s id %q", ErrDuplicateID, axis, id)
		}
		index[id] = i
	}
	return index, nil
}

// Empty returns a matrix with no rows and no columns.
func Empty() *Matrix {
	m, _ := fromFlat(nil, nil, nil)
	return m
}

// Rows returns the number of rows.
func (m *Matrix) Rows() int { return len(m.rowIDs) }

// Cols returns the number of columns.
func (m *Matrix) Cols() int { return len(m.colIDs) }

// RowIDs returns a copy of the row identifiers in order.
func (m *Matrix) RowIDs() []string { return append([]string(nil), m.rowIDs...) }

// ColIDs returns a copy of the column identifiers in order.
func (m *Matrix) ColIDs() []string { return append([]string(nil), m.colIDs...) }

// RowIndex returns the position of a row id.
func (m *Matrix) RowIndex(id string) (int, bool) {
	i, ok := m.rowIndex[id]
	return i, ok
}

// ColIndex returns the position of a column id.
func (m *Matrix) ColIndex(id string) (int, bool) {
	j, ok := m.colIndex[id]
	return j, ok
}

// HasRow reports whether the row id is present.
func (m *Matrix) HasRow(id string) bool {
	_, ok := m.rowIndex[id]
	return ok
}

// HasCol reports whether the column id is present.
func (m *Matrix) HasCol(id string) bool {
	_, ok := m.colIndex[id]
	return ok
}

// At returns the value at (i, j). It panics on out-of-range indices like a slice would.
func (m *Matrix) At(i, j int) float64 {
	return m.data[i*len(m.colIDs)+j]
}

// Row returns a copy of row i.
func (m *Matrix) Row(i int) []float64 {
	c := len(m.colIDs)
	return append([]float64(nil), m.data[i*c:(i+1)*c]...)
}

// Col returns a copy of column j.
func (m *Matrix) Col(j int) []float64 {
	out := make([]float64, len(m.rowIDs))
	c := len(m.colIDs)
	for i := range out {
		out[i] = m.data[i*c+j]
	}
	return out
}

// Values returns the cells as a freshly allocated [][]float64.
func (m *Matrix) Values() [][]float64 {
	out := make([][]float64, len(m.rowIDs))
	for i := range out {
		out[i] = m.Row(i)
	}
	return out
}

// SelectRows returns the rows named by ids, in the order given.
// Unknown ids are skipped; repeated ids are kept once.
func (m *Matrix) SelectRows(ids []string) *Matrix {
	positions := make([]int, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		i, ok := m.rowIndex[id]
		if !ok {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		positions = append(positions, i)
	}
	return m.rowsAt(positions)
}

// SelectCols returns the columns named by ids, in the order given.
// Unknown ids are skipped; repeated ids are kept once.
func (m *Matrix) SelectCols(ids []string) *Matrix {
	positions := make([]int, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		j, ok := m.colIndex[id]
		if !ok {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		positions = append(positions, j)
	}
	return m.colsAt(positions)
}

// ReorderRows returns the matrix with rows in the given positional order.
// order must be a permutation (or subset) of [0, Rows()).
func (m *Matrix) ReorderRows(order []int) *Matrix { return m.rowsAt(order) }

// ReorderCols returns the matrix with columns in the given positional order.
func (m *Matrix) ReorderCols(order []int) *Matrix { return m.colsAt(order) }

func (m *Matrix) rowsAt(positions []int) *Matrix {
	c := len(m.colIDs)
	rowIDs := make([]string, len(positions))
	data := make([]float64, 0, len(positions)*c)
	for k, i := range positions {
		rowIDs[k] = m.rowIDs[i]
		data = append(data, m.data[i*c:(i+1)*c]...)
	}
	out, _ := fromFlat(rowIDs, append([]string(nil), m.colIDs...), data)
	return out
}

func (m *Matrix) colsAt(positions []int) *Matrix {
	c := len(m.colIDs)
	colIDs := make([]string, len(positions))
	for k, j := range positions {
		colIDs[k] = m.colIDs[j]
	}
	data := make([]float64, 0, len(m.rowIDs)*len(positions))
	for i := range m.rowIDs {
		base := i * c
		for _, j := range positions {
			data = append(data, m.data[base+j])
		}
	}
	out, _ := fromFlat(append([]string(nil), m.rowIDs...), colIDs, data)
	return out
}

// Transpose swaps rows and columns.
func (m *Matrix) Transpose() *Matrix {
	r, c := len(m.rowIDs), len(m.colIDs)
	data := make([]float64, r*c)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			data[j*r+i] = m.data[i*c+j]
		}
	}
	out, _ := fromFlat(append([]string(nil), m.colIDs...), append([]string(nil), m.rowIDs...), data)
	return out
}

// IsZeroRow reports whether every value of row i equals zero.
func (m *Matrix) IsZeroRow(i int) bool {
	c := len(m.colIDs)
	for _, v := range m.data[i*c : (i+1)*c] {
		if v != 0 {
			return false
		}
	}
	return true
}

// WithoutZeroRows drops rows whose every value is zero.
func (m *Matrix) WithoutZeroRows() *Matrix {
	keep := make([]int, 0, len(m.rowIDs))
	for i := range m.rowIDs {
		if !m.IsZeroRow(i) {
			keep = append(keep, i)
		}
	}
	return m.rowsAt(keep)
}

// Equal reports whether both matrices have the same ids, order and values.
func (m *Matrix) Equal(o *Matrix) bool {
	if m.Rows() != o.Rows() || m.Cols() != o.Cols() {
		return false
	}
	for i, id := range m.rowIDs {
		if o.rowIDs[i] != id {
			return false
		}
	}
	for j, id := range m.colIDs {
		if o.colIDs[j] != id {
			return false
		}
	}
	for k, v := range m.data {
		if o.data[k] != v {
			return false
		}
	}
	return true
}
