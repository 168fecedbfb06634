package tabular

import (
	"errors"
	"fmt"
	"math"
	"regexp"

	"github.com/heatmap-scatter/server/pkg/matrix"
)

// ErrNoIndex is returned when no column of a differential table can serve
// as the gene id column.
var ErrNoIndex = errors.New("no row where exactly one column matched keys")

// FindIndex returns the column whose values are gene ids: the first row in
// which exactly one cell is a member of keys decides.
func (t *Table) FindIndex(keys map[string]struct{}) (int, error) {
	for _, row := range t.Rows {
		match, count := -1, 0
		for j, cell := range row {
			if _, ok := keys[cell]; ok {
				match = j
				count++
			}
		}
		if count == 1 {
			return match, nil
		}
	}
	return -1, configErr(t.Name, ErrNoIndex)
}

var (
	logFoldPatterns = compileAll(`log2.?fold.?change`, `log2.?change`, `fold.?change`, `logfc`)
	pValuePatterns  = compileAll(`p.?adj`, `fdr`, `q.?value`, `p.?value`, `p.?val`)
)

func compileAll(exprs ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(exprs))
	for i, e := range exprs {
		out[i] = regexp.MustCompile(`(?i)` + e)
	}
	return out
}

// pickColumn returns the column matched by the first pattern that matches
// exactly one column.
func pickColumn(patterns []*regexp.Regexp, columns []string) (int, error) {
	for _, re := range patterns {
		match, count := -1, 0
		for j, c := range columns {
			if re.MatchString(c) {
				match = j
				count++
			}
		}
		if count == 1 {
			return match, nil
		}
	}
	exprs := make([]string, len(patterns))
	for i, re := range patterns {
		exprs[i] = re.String()
	}
	return -1, fmt.Errorf("expected one match for %q in %q", exprs, columns)
}

// Vulcanize reduces a differential table to the volcano plot's two columns:
// log fold change and -log10 of the p-value. Rows where either is not finite
// are dropped.
func Vulcanize(m *matrix.Matrix) (*matrix.Matrix, error) {
	cols := m.ColIDs()
	fc, err := pickColumn(logFoldPatterns, cols)
	if err != nil {
		return nil, err
	}
	p, err := pickColumn(pValuePatterns, cols)
	if err != nil {
		return nil, err
	}

	var (
		ids    []string
		values [][]float64
	)
	for i, id := range m.RowIDs() {
		x := m.At(i, fc)
		y := -math.Log10(m.At(i, p))
		if math.IsNaN(y) || math.IsInf(y, 0) {
			continue
		}
		ids = append(ids, id)
		values = append(values, []float64{x, y})
	}
	return matrix.New(ids, []string{cols[fc], "-log10(" + cols[p] + ")"}, values)
}

// ReadDiff loads a differential table whose gene id column is found among
// keys, and vulcanizes it.
func ReadDiff(path string, keys map[string]struct{}) (*matrix.Matrix, error) {
	t, err := ReadFile(path)
	if err != nil {
		return nil, err
	}
	return t.Diff(keys)
}

// Diff is ReadDiff on an already parsed table.
func (t *Table) Diff(keys map[string]struct{}) (*matrix.Matrix, error) {
	idx, err := t.FindIndex(keys)
	if err != nil {
		return nil, err
	}
	m, err := t.Matrix(idx)
	if err != nil {
		return nil, err
	}
	v, err := Vulcanize(m)
	if err != nil {
		return nil, configErr(t.Name, err)
	}
	return v, nil
}
