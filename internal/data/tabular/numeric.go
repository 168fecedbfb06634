package tabular

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/heatmap-scatter/server/pkg/matrix"
)

// missing cells read as zero
func isMissing(s string) bool {
	switch strings.ToLower(s) {
	case "", "na", "nan", "null", "none":
		return true
	}
	return false
}

func parseCell(s string) (float64, bool) {
	if isMissing(s) {
		return 0, true
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// Matrix converts t into a numeric matrix whose row ids come from column
// indexCol. Columns holding any non-numeric cell are dropped.
func (t *Table) Matrix(indexCol int) (*matrix.Matrix, error) {
	if indexCol < 0 || indexCol >= len(t.Columns) {
		return nil, configErr(t.Name, fmt.Errorf("index column %d out of range", indexCol))
	}

	var keep []int
	for j := range t.Columns {
		if j == indexCol {
			continue
		}
		numeric := true
		for _, row := range t.Rows {
			if _, ok := parseCell(row[j]); !ok {
				numeric = false
				break
			}
		}
		if numeric {
			keep = append(keep, j)
		}
	}
	if len(t.Rows) == 0 || len(keep) == 0 {
		return nil, configErr(t.Name, errors.New("no numeric data"))
	}

	ids := make([]string, len(t.Rows))
	cols := make([]string, len(keep))
	for k, j := range keep {
		cols[k] = t.Columns[j]
	}
	values := make([][]float64, len(t.Rows))
	for i, row := range t.Rows {
		ids[i] = row[indexCol]
		vals := make([]float64, len(keep))
		for k, j := range keep {
			vals[k], _ = parseCell(row[j])
		}
		values[i] = vals
	}

	m, err := matrix.New(ids, cols, values)
	if err != nil {
		return nil, configErr(t.Name, err)
	}
	return m, nil
}

// Metadata is a string table keyed by condition id.
type Metadata struct {
	Fields []string
	IDs    []string
	values map[string][]string
}

// Metadata indexes t by its first column.
func (t *Table) Metadata() (*Metadata, error) {
	if len(t.Columns) < 2 {
		return nil, configErr(t.Name, errors.New("metadata needs an id column and at least one field"))
	}
	md := &Metadata{
		Fields: append([]string(nil), t.Columns[1:]...),
		values: make(map[string][]string, len(t.Rows)),
	}
	for _, row := range t.Rows {
		id := row[0]
		if _, dup := md.values[id]; dup {
			return nil, configErr(t.Name, fmt.Errorf("%w: %q", matrix.ErrDuplicateID, id))
		}
		md.IDs = append(md.IDs, id)
		md.values[id] = append([]string(nil), row[1:]...)
	}
	return md, nil
}

// Field returns the value of field for condition id.
func (md *Metadata) Field(id, field string) (string, bool) {
	if md == nil {
		return "", false
	}
	row, ok := md.values[id]
	if !ok {
		return "", false
	}
	for j, f := range md.Fields {
		if f == field {
			return row[j], true
		}
	}
	return "", false
}

// HasField reports whether field is a metadata column.
func (md *Metadata) HasField(field string) bool {
	if md == nil {
		return false
	}
	for _, f := range md.Fields {
		if f == field {
			return true
		}
	}
	return false
}

// Row returns every field of condition id.
func (md *Metadata) Row(id string) ([]string, bool) {
	if md == nil {
		return nil, false
	}
	row, ok := md.values[id]
	return row, ok
}

// Labels reads t as id and display label columns.
func (t *Table) Labels() (map[string]string, error) {
	if len(t.Columns) < 2 {
		return nil, configErr(t.Name, errors.New("labels need an id column and a label column"))
	}
	out := make(map[string]string, len(t.Rows))
	for _, row := range t.Rows {
		out[row[0]] = row[1]
	}
	return out, nil
}
