package render

import (
	"bytes"
	"fmt"
	"image/png"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/heatmap-scatter/server/pkg/colormap"
	"github.com/heatmap-scatter/server/pkg/matrix"
)

func blackWhite(t *testing.T) *colormap.Scale {
	t.Helper()
	s, err := colormap.FromHex([]string{"#000000", "#FFFFFF"})
	require.NoError(t, err)
	return s
}

func small(t *testing.T) *matrix.Matrix {
	t.Helper()
	m, err := matrix.New(
		[]string{"g1", "gene-2"},
		[]string{"cond-a", "b"},
		[][]float64{{0, 4}, {8, -1}},
	)
	require.NoError(t, err)
	return m
}

func TestAssemble_LogIgnoresNonPositive(t *testing.T) {
	t.Parallel()

	s := blackWhite(t)
	var a Assembler
	p := a.Assemble(small(t), s, Options{Log: true})

	assert.True(t, p.Log)
	assert.Equal(t, s.Log(4, 8), p.ColorScale)
	assert.Equal(t, [][]float64{{0, 4}, {8, -1}}, p.Values)
	assert.Equal(t, []string{"g1", "gene-2"}, p.RowIDs)
	assert.Equal(t, []string{"cond-a", "b"}, p.ColLabels)
}

func TestAssemble_LogFallsBackToLinear(t *testing.T) {
	t.Parallel()

	s := blackWhite(t)
	fallbacks := 0
	a := Assembler{OnLinearFallback: func() { fallbacks++ }}

	zeros, err := matrix.New([]string{"r"}, []string{"c1", "c2"}, [][]float64{{0, -2}})
	require.NoError(t, err)
	p := a.Assemble(zeros, s, Options{Log: true})
	assert.False(t, p.Log)
	assert.Equal(t, s.Linear(), p.ColorScale)

	flat, err := matrix.New([]string{"r"}, []string{"c1", "c2"}, [][]float64{{3, 3}})
	require.NoError(t, err)
	p = a.Assemble(flat, s, Options{Log: true})
	assert.False(t, p.Log)
	assert.Equal(t, 2, fallbacks)

	p = a.Assemble(flat, s, Options{})
	assert.Equal(t, s.Linear(), p.ColorScale)
	assert.Equal(t, 2, fallbacks)
}

func TestAssemble_Labels(t *testing.T) {
	t.Parallel()

	s := blackWhite(t)
	a := Assembler{Labels: map[string]string{"g1": "GENE-ONE-LONG"}}

	p := a.Assemble(small(t), s, Options{})
	assert.Equal(t, []string{"GENE-ONE-LONG", "gene-2"}, p.RowLabels)
	assert.True(t, p.ShowRowLabels)
	assert.True(t, p.ShowColLabels)
	assert.Equal(t, Margin{Left: 13 * CharWidth, Bottom: 6 * CharWidth, Top: TopMargin}, p.Margin)

	p = a.Assemble(small(t), s, Options{RowLabels: LabelNever, ColLabels: LabelNever})
	assert.False(t, p.ShowRowLabels)
	assert.False(t, p.ShowColLabels)
	assert.Equal(t, Margin{Left: HiddenRowMargin, Bottom: HiddenColMargin, Top: TopMargin}, p.Margin)
}

func TestAssemble_AutoCutoff(t *testing.T) {
	t.Parallel()

	ids := make([]string, DefaultLabelCutoff)
	values := make([][]float64, DefaultLabelCutoff)
	for i := range ids {
		ids[i] = fmt.Sprintf("g%d", i)
		values[i] = []float64{float64(i)}
	}
	m, err := matrix.New(ids, []string{"c"}, values)
	require.NoError(t, err)

	var a Assembler
	p := a.Assemble(m, blackWhite(t), Options{RowLabels: LabelAuto, ColLabels: LabelAuto})
	assert.False(t, p.ShowRowLabels, "exactly the cutoff hides labels")
	assert.True(t, p.ShowColLabels)

	p = a.Assemble(m, blackWhite(t), Options{RowLabels: LabelAlways})
	assert.True(t, p.ShowRowLabels)

	a.LabelCutoff = 100
	p = a.Assemble(m, blackWhite(t), Options{})
	assert.True(t, p.ShowRowLabels)
}

func TestParseLabelMode(t *testing.T) {
	t.Parallel()

	for in, want := range map[string]LabelMode{"": LabelAuto, "auto": LabelAuto, "always": LabelAlways, "never": LabelNever} {
		got, err := ParseLabelMode(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseLabelMode("sometimes")
	assert.Error(t, err)
}

func TestHeatmapRenderer(t *testing.T) {
	t.Parallel()

	var a Assembler
	p := a.Assemble(small(t), blackWhite(t), Options{RowLabels: LabelNever, ColLabels: LabelNever})

	r := NewHeatmapRenderer(Config{CellWidth: 10, CellHeight: 5, Padding: 0})
	data, err := r.Render(p)
	require.NoError(t, err)

	img, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, HiddenRowMargin+2*10, img.Bounds().Dx())
	assert.Equal(t, TopMargin+2*5+HiddenColMargin, img.Bounds().Dy())

	// the largest value is white, the smallest black
	cr, cg, cb, _ := img.At(HiddenRowMargin+2, TopMargin+7).RGBA()
	assert.Equal(t, [3]uint32{0xffff, 0xffff, 0xffff}, [3]uint32{cr, cg, cb})
	cr, cg, cb, _ = img.At(HiddenRowMargin+12, TopMargin+7).RGBA()
	assert.Equal(t, [3]uint32{0, 0, 0}, [3]uint32{cr, cg, cb})

	empty, err := r.Render(a.Assemble(matrix.Empty(), blackWhite(t), Options{}))
	require.NoError(t, err)
	_, err = png.Decode(bytes.NewReader(empty))
	require.NoError(t, err)
}

func TestTableFormatter(t *testing.T) {
	t.Parallel()

	tbl := FromMatrix(small(t), map[string]string{"g1": "<one>"})
	assert.Equal(t, []string{"<one>", "gene-2"}, tbl.RowIDs)
	assert.Equal(t, []string{"8", "-1"}, tbl.Cells[1])

	f := TableFormatter{HTMLTable: true, Truncate: 1, CSSURLs: []string{"/s.css"}}
	out := f.Tables(tbl)
	assert.True(t, strings.HasPrefix(out, `<link rel="stylesheet" property="stylesheet" href="/s.css">`))
	assert.Contains(t, out, "<p>Limited to the first 1 rows.</p>")
	assert.Contains(t, out, "<th>&lt;one&gt;</th><td>0</td><td>4</td>")
	assert.NotContains(t, out, "gene-2")

	f = TableFormatter{}
	out = f.Tables(StringTable{}, tbl)
	assert.True(t, strings.HasPrefix(out, "<pre>"))
	assert.Contains(t, out, "cond-a")
	assert.Contains(t, out, "&lt;one&gt;")

	assert.Equal(t, "", f.Tables(StringTable{}))
	assert.Equal(t, "<pre>a\nb&amp;c</pre>", f.List([]string{"a", "b&c"}))
}
