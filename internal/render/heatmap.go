package render

import (
	"bytes"
	"image/color"
	"image/png"
	"sync"

	"github.com/fogleman/gg"
)

// Config contains renderer configuration.
type Config struct {
	CellWidth  int
	CellHeight int
	// Padding is added to the right edge so the last column is not flush.
	Padding int
}

// DefaultConfig returns the renderer defaults.
func DefaultConfig() Config {
	return Config{CellWidth: 16, CellHeight: 4, Padding: 10}
}

// HeatmapRenderer rasterises payloads with fogleman/gg.
type HeatmapRenderer struct {
	config     Config
	bufferPool sync.Pool
}

// NewHeatmapRenderer creates a new heatmap renderer.
func NewHeatmapRenderer(cfg Config) *HeatmapRenderer {
	def := DefaultConfig()
	if cfg.CellWidth <= 0 {
		cfg.CellWidth = def.CellWidth
	}
	if cfg.CellHeight <= 0 {
		cfg.CellHeight = def.CellHeight
	}
	if cfg.Padding < 0 {
		cfg.Padding = 0
	}
	return &HeatmapRenderer{
		config: cfg,
		bufferPool: sync.Pool{
			New: func() interface{} {
				return bytes.NewBuffer(make([]byte, 0, 32*1024))
			},
		},
	}
}

// Render draws the payload as a PNG. Cells are mapped linearly from the
// value range onto the payload's control points, the way plotting surfaces
// treat a colorscale.
func (r *HeatmapRenderer) Render(p Payload) ([]byte, error) {
	rows := len(p.Values)
	cols := len(p.ColLabels)

	cw, ch := float64(r.config.CellWidth), float64(r.config.CellHeight)
	left, top, bottom := float64(p.Margin.Left), float64(p.Margin.Top), float64(p.Margin.Bottom)
	width := int(left+float64(cols)*cw) + r.config.Padding
	height := int(top + float64(rows)*ch + bottom)
	if width < 1 {
		width = 1
	}
	if height < 1 {
		height = 1
	}

	dc := gg.NewContext(width, height)
	dc.SetColor(color.White)
	dc.Clear()

	if rows == 0 || cols == 0 {
		return r.encodeContext(dc)
	}

	lo, hi := valueRange(p.Values)
	span := hi - lo

	for i, row := range p.Values {
		y := top + float64(i)*ch
		for j, v := range row {
			t := 0.0
			if span > 0 {
				t = (v - lo) / span
			}
			dc.SetColor(p.ColorScale.At(t))
			dc.DrawRectangle(left+float64(j)*cw, y, cw, ch)
			dc.Fill()
		}
	}

	dc.SetColor(color.Black)
	if p.ShowRowLabels {
		for i, label := range p.RowLabels {
			y := top + (float64(i)+0.5)*ch
			dc.DrawStringAnchored(label, left-4, y, 1, 0.5)
		}
	}
	if p.ShowColLabels {
		y := top + float64(rows)*ch + 4
		for j, label := range p.ColLabels {
			x := left + (float64(j)+0.5)*cw
			dc.Push()
			dc.RotateAbout(gg.Radians(90), x, y)
			dc.DrawStringAnchored(label, x, y, 0, 0.5)
			dc.Pop()
		}
	}

	return r.encodeContext(dc)
}

func valueRange(values [][]float64) (lo, hi float64) {
	first := true
	for _, row := range values {
		for _, v := range row {
			if first {
				lo, hi = v, v
				first = false
				continue
			}
			if v < lo {
				lo = v
			}
			if v > hi {
				hi = v
			}
		}
	}
	return lo, hi
}

func (r *HeatmapRenderer) encodeContext(dc *gg.Context) ([]byte, error) {
	buf := r.bufferPool.Get().(*bytes.Buffer)
	defer func() {
		buf.Reset()
		r.bufferPool.Put(buf)
	}()

	encoder := png.Encoder{CompressionLevel: png.BestSpeed}
	if err := encoder.Encode(buf, dc.Image()); err != nil {
		return nil, err
	}

	// buffer is reused
	result := make([]byte, buf.Len())
	copy(result, buf.Bytes())
	return result, nil
}
