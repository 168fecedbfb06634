package service

import (
	"fmt"
	"math"
	"strconv"

	"github.com/heatmap-scatter/server/internal/pca"
	"github.com/heatmap-scatter/server/pkg/colormap"
	"github.com/heatmap-scatter/server/pkg/matrix"
)

// Point is one marker of a scatter plot.
type Point struct {
	ID       string  `json:"id"`
	Label    string  `json:"label,omitempty"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Selected bool    `json:"selected"`
	Group    string  `json:"group,omitempty"`
	Color    string  `json:"color,omitempty"`
}

// LegendEntry maps a metadata value to its marker color.
type LegendEntry struct {
	Value string `json:"value"`
	Color string `json:"color"`
}

// Scatter is the payload of every scatter view.
type Scatter struct {
	X      string        `json:"x"`
	Y      string        `json:"y"`
	Log    bool          `json:"log"`
	Points []Point       `json:"points"`
	Legend []LegendEntry `json:"legend,omitempty"`
}

// SampleBySample plots every gene's value in condition x against its
// value in condition y. Empty names default to the first two conditions.
func (d *Dashboard) SampleBySample(x, y string, v View) (Scatter, error) {
	m, err := d.base(v.Scaling)
	if err != nil {
		return Scatter{}, err
	}
	cols := m.ColIDs()
	x, y = defaultAxes(x, y, cols)

	xi, ok := m.ColIndex(x)
	if !ok {
		return Scatter{}, fmt.Errorf("%w: condition %q", ErrNotFound, x)
	}
	yi, ok := m.ColIndex(y)
	if !ok {
		return Scatter{}, fmt.Errorf("%w: condition %q", ErrNotFound, y)
	}

	selected, err := d.selectedGenes(m)
	if err != nil {
		return Scatter{}, err
	}
	out := Scatter{X: x, Y: y, Log: v.Log, Points: make([]Point, 0, m.Rows())}
	for i, id := range m.RowIDs() {
		_, sel := selected[id]
		out.Points = append(out.Points, Point{
			ID:       id,
			Label:    d.ds.Label(id),
			X:        m.At(i, xi),
			Y:        m.At(i, yi),
			Selected: sel,
		})
	}
	return out, nil
}

// DiffFiles returns the names of the differential tables.
func (d *Dashboard) DiffFiles() []string {
	return d.ds.DiffNames()
}

// Volcano plots one differential table. An empty file picks the first
// table; empty axes pick its fold-change and significance columns.
func (d *Dashboard) Volcano(file, x, y string) (Scatter, error) {
	if file == "" {
		names := d.ds.DiffNames()
		if len(names) == 0 {
			return Scatter{}, fmt.Errorf("%w: no differential files", ErrNotFound)
		}
		file = names[0]
	}
	m, ok := d.ds.Diff(file)
	if !ok {
		return Scatter{}, fmt.Errorf("%w: differential file %q", ErrNotFound, file)
	}
	x, y = defaultAxes(x, y, m.ColIDs())

	xi, ok := m.ColIndex(x)
	if !ok {
		return Scatter{}, fmt.Errorf("%w: column %q", ErrNotFound, x)
	}
	yi, ok := m.ColIndex(y)
	if !ok {
		return Scatter{}, fmt.Errorf("%w: column %q", ErrNotFound, y)
	}

	selected, err := d.selectedGenes(m)
	if err != nil {
		return Scatter{}, err
	}
	out := Scatter{X: x, Y: y, Points: make([]Point, 0, m.Rows())}
	for i, id := range m.RowIDs() {
		_, sel := selected[id]
		out.Points = append(out.Points, Point{
			ID:       id,
			Label:    d.ds.Label(id),
			X:        m.At(i, xi),
			Y:        m.At(i, yi),
			Selected: sel,
		})
	}
	return out, nil
}

// PCA plots conditions on two principal components. colorBy names a
// metadata field: numeric fields are shaded with palette, others get one
// categorical color per distinct value.
func (d *Dashboard) PCA(x, y, colorBy, palette string) (Scatter, error) {
	res := d.ds.PCA
	if res == nil || len(res.Components) == 0 {
		return Scatter{}, fmt.Errorf("%w: no principal components", ErrNotFound)
	}
	x, y = defaultAxes(x, y, res.Components)

	xs, ok := res.Component(x)
	if !ok {
		return Scatter{}, fmt.Errorf("%w: component %q", ErrNotFound, x)
	}
	ys, ok := res.Component(y)
	if !ok {
		return Scatter{}, fmt.Errorf("%w: component %q", ErrNotFound, y)
	}

	opts, err := d.selectionOptions()
	if err != nil {
		return Scatter{}, err
	}
	var selected map[string]struct{}
	if opts.ColLasso != nil {
		selected = make(map[string]struct{}, len(opts.ColLasso))
		for _, id := range opts.ColLasso {
			selected[id] = struct{}{}
		}
	}

	out := Scatter{X: x, Y: y, Points: make([]Point, len(res.Conditions))}
	for i, id := range res.Conditions {
		sel := true
		if selected != nil {
			_, sel = selected[id]
		}
		out.Points[i] = Point{ID: id, X: xs[i], Y: ys[i], Selected: sel}
	}

	if colorBy == "" {
		return out, nil
	}
	if !d.ds.Meta.HasField(colorBy) {
		return Scatter{}, fmt.Errorf("%w: metadata field %q", ErrNotFound, colorBy)
	}
	if palette == "" {
		palette = d.defaults.Palette
	}
	scale, err := d.palettes.Get(palette, false)
	if err != nil {
		return Scatter{}, err
	}
	out.Legend = d.colorPoints(out.Points, res, colorBy, scale)
	return out, nil
}

func (d *Dashboard) colorPoints(points []Point, res *pca.Result, field string, scale *colormap.Scale) []LegendEntry {
	values := make([]string, len(points))
	numbers := make([]float64, len(points))
	numeric := true
	lo, hi := math.Inf(1), math.Inf(-1)
	for i, id := range res.Conditions {
		v, ok := d.ds.Meta.Field(id, field)
		if !ok {
			continue
		}
		values[i] = v
		points[i].Group = v
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			numeric = false
			continue
		}
		numbers[i] = f
		lo, hi = math.Min(lo, f), math.Max(hi, f)
	}

	if numeric && lo <= hi {
		cp := scale.Linear()
		for i := range points {
			if values[i] == "" {
				continue
			}
			t := 0.0
			if hi > lo {
				t = (numbers[i] - lo) / (hi - lo)
			}
			points[i].Color = colormap.Hex(cp.At(t))
		}
		return nil
	}

	var legend []LegendEntry
	index := make(map[string]int)
	for i, v := range values {
		if v == "" {
			continue
		}
		k, ok := index[v]
		if !ok {
			k = len(legend)
			index[v] = k
			legend = append(legend, LegendEntry{Value: v, Color: colormap.Hex(colormap.Categorical.AtIndex(k))})
		}
		points[i].Color = legend[k].Color
	}
	return legend
}

// selectedGenes returns the ids of m's rows picked by the gene selection.
func (d *Dashboard) selectedGenes(m *matrix.Matrix) (map[string]struct{}, error) {
	opts, err := d.selectionOptions()
	if err != nil {
		return nil, err
	}
	ids := d.pipeline.RowIDs(m, opts)
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set, nil
}

// defaultAxes fills empty axis names with the first two of names.
func defaultAxes(x, y string, names []string) (string, string) {
	if len(names) == 0 {
		return x, y
	}
	if x == "" {
		x = names[0]
	}
	if y == "" {
		y = names[0]
		if len(names) > 1 {
			y = names[1]
		}
	}
	return x, y
}
