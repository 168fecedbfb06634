package cluster

import (
	"log"

	"github.com/heatmap-scatter/server/pkg/matrix"
)

// Axis names the matrix axis being ordered.
type Axis string

const (
	Rows    Axis = "rows"
	Columns Axis = "columns"
)

// Options selects which axes to cluster.
type Options struct {
	Rows         bool
	Cols         bool
	SkipZeroRows bool
}

// Engine reorders matrices. The zero value is ready to use.
type Engine struct {
	// OnFallback, when set, is called each time an axis keeps its original
	// order because linkage failed.
	OnFallback func(axis Axis, err error)
}

// Cluster returns m with the requested axes in dendrogram leaf order.
// A matrix with fewer than two rows is returned as is, an axis with fewer
// than two entries is left alone, and an axis whose linkage fails keeps its
// original order.
func (e *Engine) Cluster(m *matrix.Matrix, opts Options) *matrix.Matrix {
	if opts.SkipZeroRows {
		m = m.WithoutZeroRows()
	}
	if m.Rows() < 2 {
		return m
	}
	if opts.Rows {
		if order, ok := e.order(m.Values(), Rows); ok {
			m = m.ReorderRows(order)
		}
	}
	if opts.Cols {
		if order, ok := e.order(m.Transpose().Values(), Columns); ok {
			m = m.ReorderCols(order)
		}
	}
	return m
}

func (e *Engine) order(points [][]float64, axis Axis) ([]int, bool) {
	if len(points) < 2 {
		return nil, false
	}
	merges, err := Linkage(points)
	if err != nil {
		log.Printf("[Cluster] %s: keeping original order: %v", axis, err)
		if e.OnFallback != nil {
			e.OnFallback(axis, err)
		}
		return nil, false
	}
	return Leaves(merges, len(points)), true
}

// Cluster is Engine.Cluster on a zero Engine.
func Cluster(m *matrix.Matrix, opts Options) *matrix.Matrix {
	var e Engine
	return e.Cluster(m, opts)
}
