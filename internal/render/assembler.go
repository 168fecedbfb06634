// Package render turns a clustered matrix into heatmap payloads, PNG images
// and table views.
package render

import (
	"fmt"
	"log"

	"github.com/heatmap-scatter/server/pkg/colormap"
	"github.com/heatmap-scatter/server/pkg/matrix"
)

// LabelMode controls tick label visibility on one axis.
type LabelMode string

const (
	LabelAuto   LabelMode = "auto"
	LabelAlways LabelMode = "always"
	LabelNever  LabelMode = "never"
)

// ParseLabelMode accepts "auto", "always" or "never". Empty means auto.
func ParseLabelMode(s string) (LabelMode, error) {
	switch LabelMode(s) {
	case "", LabelAuto:
		return LabelAuto, nil
	case LabelAlways, LabelNever:
		return LabelMode(s), nil
	}
	return "", fmt.Errorf("invalid label mode %q", s)
}

func (m LabelMode) show(count, threshold int) bool {
	switch m {
	case LabelAlways:
		return true
	case LabelNever:
		return false
	default:
		return count < threshold
	}
}

// Layout hint constants, in pixels.
const (
	CharWidth          = 8
	HiddenRowMargin    = 75
	HiddenColMargin    = 10
	TopMargin          = 30
	DefaultLabelCutoff = 40
)

// Margin is a layout hint for the plotting surface.
type Margin struct {
	Left   int `json:"l"`
	Bottom int `json:"b"`
	Top    int `json:"t"`
	Right  int `json:"r"`
}

// Payload is everything a plotting surface needs to draw the heatmap.
type Payload struct {
	Values        [][]float64            `json:"values"`
	RowIDs        []string               `json:"row_ids"`
	RowLabels     []string               `json:"row_labels"`
	ColLabels     []string               `json:"col_labels"`
	ShowRowLabels bool                   `json:"show_row_labels"`
	ShowColLabels bool                   `json:"show_col_labels"`
	ColorScale    colormap.ControlPoints `json:"color_scale"`
	Log           bool                   `json:"log"`
	Margin        Margin                 `json:"margin"`
}

// Options are the per-request presentation choices.
type Options struct {
	Log       bool
	RowLabels LabelMode
	ColLabels LabelMode
}

// Assembler builds Payloads. The zero value uses the default label cutoff
// and shows row ids as labels.
type Assembler struct {
	// LabelCutoff is the count below which "auto" labels are shown.
	LabelCutoff int
	// Labels maps row ids to display labels.
	Labels map[string]string
	// OnLinearFallback, when set, is called when a log scale was requested
	// but the matrix has no positive value.
	OnLinearFallback func()
}

// Assemble computes the color scale, labels and margins for m.
func (a *Assembler) Assemble(m *matrix.Matrix, scale *colormap.Scale, opts Options) Payload {
	cutoff := a.LabelCutoff
	if cutoff <= 0 {
		cutoff = DefaultLabelCutoff
	}

	p := Payload{
		Values:    m.Values(),
		RowIDs:    m.RowIDs(),
		ColLabels: m.ColIDs(),
	}
	p.RowLabels = make([]string, len(p.RowIDs))
	for i, id := range p.RowIDs {
		p.RowLabels[i] = a.label(id)
	}

	p.ColorScale, p.Log = a.colorScale(m, scale, opts.Log)

	p.ShowRowLabels = opts.RowLabels.show(len(p.RowIDs), cutoff)
	p.ShowColLabels = opts.ColLabels.show(len(p.ColLabels), cutoff)

	p.Margin = Margin{Left: HiddenRowMargin, Bottom: HiddenColMargin, Top: TopMargin}
	if p.ShowRowLabels {
		p.Margin.Left = longest(p.RowLabels) * CharWidth
	}
	if p.ShowColLabels {
		p.Margin.Bottom = longest(p.ColLabels) * CharWidth
	}
	return p
}

func (a *Assembler) colorScale(m *matrix.Matrix, scale *colormap.Scale, useLog bool) (colormap.ControlPoints, bool) {
	if !useLog {
		return scale.Linear(), false
	}
	positive := m.PositiveValues()
	if len(positive) == 0 {
		return a.linearFallback(scale, "no positive values")
	}
	lo, hi := positive[0], positive[0]
	for _, v := range positive[1:] {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	if lo == hi {
		return a.linearFallback(scale, "all positive values are equal")
	}
	return scale.Log(lo, hi), true
}

func (a *Assembler) linearFallback(scale *colormap.Scale, reason string) (colormap.ControlPoints, bool) {
	log.Printf("[Render] log scale unavailable (%s); using linear", reason)
	if a.OnLinearFallback != nil {
		a.OnLinearFallback()
	}
	return scale.Linear(), false
}

func (a *Assembler) label(id string) string {
	if l, ok := a.Labels[id]; ok && l != "" {
		return l
	}
	return id
}

func longest(ss []string) int {
	n := 0
	for _, s := range ss {
		if l := len([]rune(s)); l > n {
			n = l
		}
	}
	return n
}
