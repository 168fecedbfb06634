package colormap

import (
	"errors"
	"fmt"
	"image/color"
)

// ErrUnknownPalette is returned when a palette name is not registered.
var ErrUnknownPalette = errors.New("colormap: unknown palette")

var (
	black  = RGB{0, 0, 0}
	white  = RGB{255, 255, 255}
	red    = RGB{255, 0, 0}
	blue   = RGB{0, 0, 255}
	yellow = RGB{255, 255, 0}
)

// matplotlib viridis
var viridis = []color.RGBA{
	{68, 1, 84, 255},
	{72, 35, 116, 255},
	{64, 67, 135, 255},
	{52, 94, 141, 255},
	{41, 120, 142, 255},
	{32, 144, 140, 255},
	{34, 167, 132, 255},
	{68, 190, 112, 255},
	{121, 209, 81, 255},
	{189, 222, 38, 255},
	{253, 231, 37, 255},
}

var plasma = []color.RGBA{
	{13, 8, 135, 255},
	{75, 3, 161, 255},
	{125, 3, 168, 255},
	{168, 34, 150, 255},
	{203, 70, 121, 255},
	{229, 107, 93, 255},
	{248, 148, 65, 255},
	{253, 195, 40, 255},
	{240, 249, 33, 255},
}

var inferno = []color.RGBA{
	{0, 0, 4, 255},
	{40, 11, 84, 255},
	{101, 21, 110, 255},
	{159, 42, 99, 255},
	{212, 72, 66, 255},
	{245, 125, 21, 255},
	{250, 193, 39, 255},
	{252, 255, 164, 255},
}

var magma = []color.RGBA{
	{0, 0, 4, 255},
	{28, 16, 68, 255},
	{79, 18, 123, 255},
	{129, 37, 129, 255},
	{181, 54, 122, 255},
	{229, 80, 100, 255},
	{251, 135, 97, 255},
	{254, 194, 135, 255},
	{252, 253, 191, 255},
}

// Seurat FeaturePlot default: lightgrey to red.
var seurat = []color.RGBA{
	{211, 211, 211, 255},
	{255, 0, 0, 255},
}

// Seurat is the lightgrey-to-red expression scale as linear control points.
var Seurat = ControlPoints{
	{Position: 0, Color: fromRGBA(seurat[0])},
	{Position: 1, Color: fromRGBA(seurat[1])},
}

type palette struct {
	name    string
	anchors []RGB
}

func rgbaAnchors(colors []color.RGBA) []RGB {
	out := make([]RGB, len(colors))
	for i, c := range colors {
		out[i] = fromRGBA(c)
	}
	return out
}

// builtin lists palettes in the order they are offered to clients.
func builtin() []palette {
	return []palette{
		{"black-white", []RGB{black, white}},
		{"white-black", []RGB{white, black}},
		{"blue-white-red", []RGB{blue, white, red}},
		{"red-white-blue", []RGB{red, white, blue}},
		{"blue-black-red", []RGB{blue, black, red}},
		{"red-black-blue", []RGB{red, black, blue}},
		{"red-yellow", []RGB{red, yellow}},
		{"yellow-red", []RGB{yellow, red}},
		{"viridis", rgbaAnchors(viridis)},
		{"plasma", rgbaAnchors(plasma)},
		{"inferno", rgbaAnchors(inferno)},
		{"magma", rgbaAnchors(magma)},
		{"seurat", rgbaAnchors(seurat)},
	}
}

// DefaultPalette is used when a request names none.
const DefaultPalette = "black-white"

// Registry holds the named scales. It is read-only after construction.
type Registry struct {
	names  []string
	scales map[string]*Scale
}

// NewRegistry builds every built-in palette with the given scale options.
func NewRegistry(opts ...Option) *Registry {
	pals := builtin()
	r := &Registry{
		names:  make([]string, 0, len(pals)),
		scales: make(map[string]*Scale, len(pals)),
	}
	for _, p := range pals {
		s, err := FromAnchors(p.anchors, opts...)
		if err != nil {
			// built-in palettes always have at least two anchors
			panic(err)
		}
		r.names = append(r.names, p.name)
		r.scales[p.name] = s
	}
	return r
}

// Names returns palette names in display order.
func (r *Registry) Names() []string {
	return append([]string(nil), r.names...)
}

// Has reports whether name is registered.
func (r *Registry) Has(name string) bool {
	_, ok := r.scales[name]
	return ok
}

// Get returns the named scale, or its reverse when reverse is set.
func (r *Registry) Get(name string, reverse bool) (*Scale, error) {
	s, ok := r.scales[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownPalette, name)
	}
	if reverse {
		return s.Reversed(), nil
	}
	return s, nil
}
