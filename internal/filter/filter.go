// Package filter subsets an expression matrix by the current gene and
// condition selections.
package filter

import (
	"strings"

	"github.com/heatmap-scatter/server/internal/search"
	"github.com/heatmap-scatter/server/internal/selection"
	"github.com/heatmap-scatter/server/pkg/matrix"
)

// Options describe one filtering request. Nil sets mean "not present";
// a non-nil empty set selects nothing.
type Options struct {
	RowQuery *string
	RowLasso []string
	ColLasso []string
}

// Pipeline filters matrices against a fixed gene index.
type Pipeline struct {
	index *search.Index
}

// New returns a pipeline searching index for row queries.
func New(index *search.Index) *Pipeline {
	return &Pipeline{index: index}
}

// Filter keeps the rows and columns chosen by opts, in the matrix's order.
// Rows are the query matches intersected with the lasso when both are
// present. Identifiers the matrix does not know are ignored.
func (p *Pipeline) Filter(m *matrix.Matrix, opts Options) *matrix.Matrix {
	rows := p.rowSet(opts)
	cols := toSet(opts.ColLasso)

	if rows != nil {
		m = m.SelectRows(keep(m.RowIDs(), rows))
	}
	if cols != nil {
		m = m.SelectCols(keep(m.ColIDs(), cols))
	}
	return m
}

// RowIDs returns the selected row ids of m in matrix order.
func (p *Pipeline) RowIDs(m *matrix.Matrix, opts Options) []string {
	ids := m.RowIDs()
	rows := p.rowSet(opts)
	if rows == nil {
		return ids
	}
	return keep(ids, rows)
}

func (p *Pipeline) rowSet(opts Options) map[string]struct{} {
	var queried map[string]struct{}
	if opts.RowQuery != nil && strings.TrimSpace(*opts.RowQuery) != "" {
		queried = toSet(p.index.Search(*opts.RowQuery))
	}
	lasso := toSet(opts.RowLasso)

	switch {
	case queried != nil && lasso != nil:
		both := make(map[string]struct{})
		for id := range lasso {
			if _, ok := queried[id]; ok {
				both[id] = struct{}{}
			}
		}
		return both
	case queried != nil:
		return queried
	default:
		return lasso
	}
}

func toSet(ids []string) map[string]struct{} {
	if ids == nil {
		return nil
	}
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}

func keep(ordered []string, set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for _, id := range ordered {
		if _, ok := set[id]; ok {
			out = append(out, id)
		}
	}
	return out
}

// RowOptions turns a resolved gene selection into filter options.
func RowOptions(p selection.Payload) Options {
	switch p.Kind {
	case selection.KindQuery:
		q := p.Query
		return Options{RowQuery: &q}
	case selection.KindIDs:
		return Options{RowLasso: nonNil(p.IDs)}
	default:
		return Options{}
	}
}

// FromPayloads combines the resolved gene and condition selections.
// A query payload on the condition axis has no meaning and selects everything.
func FromPayloads(genes, conditions selection.Payload) Options {
	opts := RowOptions(genes)
	if conditions.Kind == selection.KindIDs {
		opts.ColLasso = nonNil(conditions.IDs)
	}
	return opts
}

func nonNil(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return ids
}
