package service

import (
	"bytes"
	"context"
	"io"

	"github.com/heatmap-scatter/server/internal/data/tabular"
	"github.com/heatmap-scatter/server/internal/exportstore"
	"github.com/heatmap-scatter/server/internal/filter"
	"github.com/heatmap-scatter/server/internal/render"
	"github.com/heatmap-scatter/server/pkg/matrix"
)

// Table renders the selected genes by the selected conditions, preceded by
// the metadata of those conditions when a metadata table was loaded.
func (d *Dashboard) Table(v View) (string, error) {
	m, err := d.filteredFor(v.Scaling)
	if err != nil {
		return "", err
	}
	return d.table.Tables(d.metaTable(m.ColIDs()), render.FromMatrix(m, d.ds.Labels)), nil
}

func (d *Dashboard) metaTable(conditions []string) render.StringTable {
	md := d.ds.Meta
	if md == nil {
		return render.StringTable{}
	}
	t := render.StringTable{
		Columns: conditions,
		RowIDs:  append([]string(nil), md.Fields...),
		Cells:   make([][]string, len(md.Fields)),
	}
	for f := range md.Fields {
		t.Cells[f] = make([]string, len(conditions))
	}
	for j, id := range conditions {
		row, ok := md.Row(id)
		if !ok {
			continue
		}
		for f := range md.Fields {
			t.Cells[f][j] = row[f]
		}
	}
	return t
}

// GeneList renders the selected gene ids.
func (d *Dashboard) GeneList() (string, error) {
	m, err := d.filteredFor(NoRescale)
	if err != nil {
		return "", err
	}
	return d.table.List(m.RowIDs()), nil
}

// ConditionList renders the selected condition ids.
func (d *Dashboard) ConditionList() (string, error) {
	m, err := d.filteredFor(NoRescale)
	if err != nil {
		return "", err
	}
	return d.table.List(m.ColIDs()), nil
}

// ExportCSV writes the selected, unclustered subset as CSV.
func (d *Dashboard) ExportCSV(w io.Writer, s Scaling) error {
	m, err := d.filteredFor(s)
	if err != nil {
		return err
	}
	return tabular.WriteCSV(w, m)
}

// ExportParams snapshots the current selections for a deferred export.
func (d *Dashboard) ExportParams(s Scaling) (exportstore.ExportParams, error) {
	opts, err := d.selectionOptions()
	if err != nil {
		return exportstore.ExportParams{}, err
	}
	return exportstore.ExportParams{
		GeneQuery:    opts.RowQuery,
		GeneIDs:      opts.RowLasso,
		ConditionIDs: opts.ColLasso,
		Scaling:      string(s),
	}, nil
}

// RunExport produces the CSV described by params. It does not touch the
// live selection state.
func (d *Dashboard) RunExport(ctx context.Context, params exportstore.ExportParams) ([]byte, *matrix.Matrix, error) {
	s, err := ParseScaling(params.Scaling)
	if err != nil {
		return nil, nil, err
	}
	base, err := d.base(s)
	if err != nil {
		return nil, nil, err
	}
	m := d.pipeline.Filter(base, filter.Options{
		RowQuery: params.GeneQuery,
		RowLasso: params.GeneIDs,
		ColLasso: params.ConditionIDs,
	})
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	var buf bytes.Buffer
	if err := tabular.WriteCSV(&buf, m); err != nil {
		return nil, nil, err
	}
	return buf.Bytes(), m, nil
}
