package colormap

import (
	"errors"
	"fmt"
	"math"
)

// ErrTooFewAnchors is returned when a scale is built from fewer than two anchors.
var ErrTooFewAnchors = errors.New("colormap: at least two anchor colors are required")

// Scale is a piecewise color scale defined by an ordered list of anchor
// colors. The reversed scale is built once, at construction.
type Scale struct {
	anchors   []RGB
	zeroPoint bool
	reversed  *Scale
}

// Option configures a Scale.
type Option func(*Scale)

// WithoutZeroPoint drops the explicit position-0 control point that Log
// otherwise prepends.
func WithoutZeroPoint() Option {
	return func(s *Scale) { s.zeroPoint = false }
}

// WithZeroPoint sets whether Log prepends a position-0 control point.
func WithZeroPoint(enabled bool) Option {
	return func(s *Scale) { s.zeroPoint = enabled }
}

// FromAnchors builds a scale and its reverse from two or more anchors.
func FromAnchors(anchors []RGB, opts ...Option) (*Scale, error) {
	if len(anchors) < 2 {
		return nil, fmt.Errorf("%w: got %d", ErrTooFewAnchors, len(anchors))
	}
	fwd := &Scale{anchors: append([]RGB(nil), anchors...), zeroPoint: true}
	for _, opt := range opts {
		opt(fwd)
	}

	rev := &Scale{anchors: make([]RGB, len(anchors)), zeroPoint: fwd.zeroPoint}
	for i, a := range anchors {
		rev.anchors[len(anchors)-1-i] = a
	}
	fwd.reversed = rev
	rev.reversed = fwd
	return fwd, nil
}

// FromHex builds a scale from "#RRGGBB" anchors.
func FromHex(hexes []string, opts ...Option) (*Scale, error) {
	anchors := make([]RGB, len(hexes))
	for i, h := range hexes {
		c, err := ParseHex(h)
		if err != nil {
			return nil, err
		}
		anchors[i] = c
	}
	return FromAnchors(anchors, opts...)
}

// Reversed returns the scale with anchors in reverse order.
func (s *Scale) Reversed() *Scale { return s.reversed }

// Anchors returns a copy of the anchor colors.
func (s *Scale) Anchors() []RGB { return append([]RGB(nil), s.anchors...) }

// Linear places one control point per anchor, evenly spaced on [0, 1].
func (s *Scale) Linear() ControlPoints {
	last := float64(len(s.anchors) - 1)
	out := make(ControlPoints, len(s.anchors))
	for i, a := range s.anchors {
		out[i] = ControlPoint{Position: float64(i) / last, Color: a}
	}
	return out
}

// Log builds a scale whose control points sit at 2^-i, so that each
// doubling of the value moves one step along the interpolated colors.
//
// Each adjacent anchor pair is interpolated into
// max(1, floor(log2(max/min) / pairs)) + 1 colors; segments are joined
// without repeating shared boundaries. Degenerate ranges fall back to Linear.
func (s *Scale) Log(minValue, maxValue float64) ControlPoints {
	if !validLogRange(minValue, maxValue) {
		return s.Linear()
	}
	pairs := len(s.anchors) - 1
	steps := int(math.Floor((math.Log2(maxValue) - math.Log2(minValue)) / float64(pairs)))
	if steps < 1 {
		steps = 1
	}
	steps++

	colors := []RGB{s.anchors[0]}
	for p := 0; p < pairs; p++ {
		segment := nColors(s.anchors[p], s.anchors[p+1], steps)
		colors = append(colors, segment[1:]...)
	}

	n := len(colors)
	out := make(ControlPoints, 0, n+1)
	if s.zeroPoint {
		// Without a point at zero the consuming heatmap washes the scale out.
		out = append(out, ControlPoint{Position: 0, Color: colors[0]})
	}
	for k, c := range colors {
		out = append(out, ControlPoint{Position: math.Pow(2, -float64(n-1-k)), Color: c})
	}
	return out
}

func validLogRange(lo, hi float64) bool {
	if math.IsNaN(lo) || math.IsNaN(hi) || math.IsInf(lo, 0) || math.IsInf(hi, 0) {
		return false
	}
	return lo > 0 && hi > 0 && lo < hi
}
