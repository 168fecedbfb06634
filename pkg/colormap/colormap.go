// Package colormap provides color schemes for heatmap and scatter rendering.
package colormap

import (
	"encoding/json"
	"fmt"
	"image/color"
	"math"
	"strconv"
	"strings"
)

// Colormap maps normalized values [0, 1] to colors.
type Colormap interface {
	At(t float64) color.Color
	AtIndex(i int) color.Color
}

// RGB is a color with float channels in [0, 255]. Interpolated colors keep
// their fractional channels so that control points stay exact.
type RGB struct {
	R, G, B float64
}

// String renders the color the way plotting surfaces expect: "rgb(r,g,b)".
func (c RGB) String() string {
	return "rgb(" + formatChannel(c.R) + "," + formatChannel(c.G) + "," + formatChannel(c.B) + ")"
}

func formatChannel(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// RGBA rounds the channels to an opaque color.RGBA.
func (c RGB) RGBA() color.RGBA {
	return color.RGBA{R: clampChannel(c.R), G: clampChannel(c.G), B: clampChannel(c.B), A: 255}
}

func clampChannel(v float64) uint8 {
	v = math.Round(v)
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v)
}

// ParseRGB parses the "rgb(r,g,b)" form written by String.
func ParseRGB(s string) (RGB, error) {
	t := strings.TrimSpace(s)
	if !strings.HasPrefix(t, "rgb(") || !strings.HasSuffix(t, ")") {
		return RGB{}, fmt.Errorf("invalid rgb color %q", s)
	}
	parts := strings.Split(t[len("rgb("):len(t)-1], ",")
	if len(parts) != 3 {
		return RGB{}, fmt.Errorf("invalid rgb color %q", s)
	}
	var ch [3]float64
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return RGB{}, fmt.Errorf("invalid rgb color %q: %w", s, err)
		}
		ch[i] = v
	}
	return RGB{R: ch[0], G: ch[1], B: ch[2]}, nil
}

func fromRGBA(c color.RGBA) RGB {
	return RGB{R: float64(c.R), G: float64(c.G), B: float64(c.B)}
}

// ParseHex parses "#RRGGBB" (either case).
func ParseHex(hex string) (RGB, error) {
	s := strings.TrimPrefix(strings.TrimSpace(hex), "#")
	if len(s) != 6 || !strings.HasPrefix(strings.TrimSpace(hex), "#") {
		return RGB{}, fmt.Errorf("invalid hex color %q", hex)
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return RGB{}, fmt.Errorf("invalid hex color %q: %w", hex, err)
	}
	return RGB{R: float64(v >> 16 & 0xFF), G: float64(v >> 8 & 0xFF), B: float64(v & 0xFF)}, nil
}

// ControlPoint pins a color at a position of the normalized [0, 1] scale.
type ControlPoint struct {
	Position float64
	Color    RGB
}

// MarshalJSON encodes the point as [position, "rgb(r,g,b)"].
func (p ControlPoint) MarshalJSON() ([]byte, error) {
	return json.Marshal([]interface{}{p.Position, p.Color.String()})
}

// UnmarshalJSON decodes the [position, "rgb(r,g,b)"] form.
func (p *ControlPoint) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if len(raw) != 2 {
		return fmt.Errorf("control point: want 2 elements, got %d", len(raw))
	}
	var pos float64
	if err := json.Unmarshal(raw[0], &pos); err != nil {
		return fmt.Errorf("control point position: %w", err)
	}
	var s string
	if err := json.Unmarshal(raw[1], &s); err != nil {
		return fmt.Errorf("control point color: %w", err)
	}
	c, err := ParseRGB(s)
	if err != nil {
		return err
	}
	p.Position, p.Color = pos, c
	return nil
}

// ControlPoints is a piecewise color scale. Positions must be non-decreasing.
type ControlPoints []ControlPoint

// At returns the color at position t (0-1), interpolating between the
// surrounding control points.
func (cp ControlPoints) At(t float64) color.Color {
	if len(cp) == 0 {
		return color.RGBA{A: 255}
	}
	if t <= cp[0].Position {
		return cp[0].Color.RGBA()
	}
	last := cp[len(cp)-1]
	if t >= last.Position {
		return last.Color.RGBA()
	}
	for k := 1; k < len(cp); k++ {
		hi := cp[k]
		if t > hi.Position {
			continue
		}
		lo := cp[k-1]
		span := hi.Position - lo.Position
		if span <= 0 {
			return hi.Color.RGBA()
		}
		return lerp(lo.Color, hi.Color, (t-lo.Position)/span).RGBA()
	}
	return last.Color.RGBA()
}

// AtIndex returns the color of control point i (wraps around).
func (cp ControlPoints) AtIndex(i int) color.Color {
	if len(cp) == 0 {
		return color.RGBA{A: 255}
	}
	return cp[i%len(cp)].Color.RGBA()
}

func lerp(a, b RGB, t float64) RGB {
	return RGB{
		R: a.R + t*(b.R-a.R),
		G: a.G + t*(b.G-a.G),
		B: a.B + t*(b.B-a.B),
	}
}

// nColors returns n evenly spaced colors from lo to hi inclusive.
func nColors(lo, hi RGB, n int) []RGB {
	if n < 2 {
		return []RGB{lo}
	}
	steps := float64(n - 1)
	inc := RGB{R: (hi.R - lo.R) / steps, G: (hi.G - lo.G) / steps, B: (hi.B - lo.B) / steps}
	out := make([]RGB, n)
	for i := range out {
		f := float64(i)
		out[i] = RGB{R: lo.R + f*inc.R, G: lo.G + f*inc.G, B: lo.B + f*inc.B}
	}
	return out
}

// CategoricalColormap provides distinct colors for categories.
type CategoricalColormap struct {
	colors []color.RGBA
}

// At returns color at position t.
func (c CategoricalColormap) At(t float64) color.Color {
	idx := int(t * float64(len(c.colors)))
	if idx >= len(c.colors) {
		idx = len(c.colors) - 1
	}
	if idx < 0 {
		idx = 0
	}
	return c.colors[idx]
}

// AtIndex returns color at index.
func (c CategoricalColormap) AtIndex(i int) color.Color {
	if i < 0 {
		i = -i
	}
	return c.colors[i%len(c.colors)]
}

// Categorical colormap with 20 distinct colors
var Categorical = CategoricalColormap{
	colors: []color.RGBA{
		{31, 119, 180, 255},  // Blue
		{255, 127, 14, 255},  // Orange
		{44, 160, 44, 255},   // Green
		{214, 39, 40, 255},   // Red
		{148, 103, 189, 255}, // Purple
		{140, 86, 75, 255},   // Brown
		{227, 119, 194, 255}, // Pink
		{127, 127, 127, 255}, // Gray
		{188, 189, 34, 255},  // Olive
		{23, 190, 207, 255},  // Cyan
		{174, 199, 232, 255}, // Light blue
		{255, 187, 120, 255}, // Light orange
		{152, 223, 138, 255}, // Light green
		{255, 152, 150, 255}, // Light red
		{197, 176, 213, 255}, // Light purple
		{196, 156, 148, 255}, // Light brown
		{247, 182, 210, 255}, // Light pink
		{199, 199, 199, 255}, // Light gray
		{219, 219, 141, 255}, // Light olive
		{158, 218, 229, 255}, // Light cyan
	},
}

// Hex renders a color.Color as "#rrggbb".
func Hex(c color.Color) string {
	r, g, b, _ := c.RGBA()
	return fmt.Sprintf("#%02x%02x%02x", r>>8, g>>8, b>>8)
}
