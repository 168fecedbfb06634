package colormap

import (
	"encoding/json"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeuratColormapEndpoints(t *testing.T) {
	t.Parallel()

	c0, ok := Seurat.At(0).(color.RGBA)
	if !ok {
		t.Fatalf("expected color.RGBA at t=0")
	}
	if c0 != (color.RGBA{R: 211, G: 211, B: 211, A: 255}) {
		t.Fatalf("unexpected Seurat.At(0): %#v", c0)
	}

	c1, ok := Seurat.At(1).(color.RGBA)
	if !ok {
		t.Fatalf("expected color.RGBA at t=1")
	}
	if c1 != (color.RGBA{R: 255, G: 0, B: 0, A: 255}) {
		t.Fatalf("unexpected Seurat.At(1): %#v", c1)
	}
}

func grey(v float64) RGB { return RGB{v, v, v} }

func TestLinear(t *testing.T) {
	t.Parallel()

	s, err := FromAnchors([]RGB{black, white})
	require.NoError(t, err)
	assert.Equal(t, ControlPoints{{0, black}, {1, white}}, s.Linear())

	s, err = FromAnchors([]RGB{blue, white, red})
	require.NoError(t, err)
	assert.Equal(t, ControlPoints{{0, blue}, {0.5, white}, {1, red}}, s.Linear())
}

func TestLog_TwoAnchors(t *testing.T) {
	t.Parallel()

	s, err := FromHex([]string{"#000000", "#FFFFFF"})
	require.NoError(t, err)

	assert.Equal(t, ControlPoints{
		{0, black},
		{0.5, black},
		{1, white},
	}, s.Log(4, 8))

	assert.Equal(t, ControlPoints{
		{0, black},
		{0.125, black},
		{0.25, grey(85)},
		{0.5, grey(170)},
		{1, white},
	}, s.Log(4, 32))
}

func TestLog_ThreeAnchors(t *testing.T) {
	t.Parallel()

	s, err := FromAnchors([]RGB{blue, white, red})
	require.NoError(t, err)

	assert.Equal(t, ControlPoints{
		{0, blue},
		{0.25, blue},
		{0.5, white},
		{1, red},
	}, s.Log(4, 8))

	assert.Equal(t, ControlPoints{
		{0, blue},
		{0.0625, blue},
		{0.125, RGB{127.5, 127.5, 255}},
		{0.25, white},
		{0.5, RGB{255, 127.5, 127.5}},
		{1, red},
	}, s.Log(4, 128))
}

func TestLog_WithoutZeroPoint(t *testing.T) {
	t.Parallel()

	s, err := FromAnchors([]RGB{black, white}, WithoutZeroPoint())
	require.NoError(t, err)
	assert.Equal(t, ControlPoints{{0.5, black}, {1, white}}, s.Log(4, 8))
	// reverse shares the option
	assert.Equal(t, ControlPoints{{0.5, white}, {1, black}}, s.Reversed().Log(4, 8))
}

func TestLog_Degenerate(t *testing.T) {
	t.Parallel()

	s, err := FromAnchors([]RGB{black, white})
	require.NoError(t, err)
	linear := s.Linear()

	cases := []struct {
		name     string
		min, max float64
	}{
		{"equal", 5, 5},
		{"zero min", 0, 5},
		{"negative", -1, 5},
		{"inverted", 8, 4},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, linear, s.Log(tc.min, tc.max))
		})
	}
}

func TestLog_PositionsIncreaseToOne(t *testing.T) {
	t.Parallel()

	s, err := FromAnchors([]RGB{blue, black, red})
	require.NoError(t, err)
	pts := s.Log(0.01, 5000)
	require.NotEmpty(t, pts)
	assert.Equal(t, 0.0, pts[0].Position)
	assert.Equal(t, 1.0, pts[len(pts)-1].Position)
	for k := 1; k < len(pts); k++ {
		assert.Less(t, pts[k-1].Position, pts[k].Position)
	}
}

func TestReversed(t *testing.T) {
	t.Parallel()

	s, err := FromAnchors([]RGB{blue, white, red})
	require.NoError(t, err)
	rev := s.Reversed()
	assert.Equal(t, []RGB{red, white, blue}, rev.Anchors())
	assert.Same(t, s, rev.Reversed())
	assert.Same(t, rev, s.Reversed())
}

func TestFromAnchors_TooFew(t *testing.T) {
	t.Parallel()

	_, err := FromAnchors([]RGB{black})
	assert.ErrorIs(t, err, ErrTooFewAnchors)

	_, err = FromHex([]string{"#00000"})
	assert.Error(t, err)
}

func TestControlPointJSON(t *testing.T) {
	t.Parallel()

	b, err := json.Marshal(ControlPoints{{0, black}, {0.125, RGB{127.5, 127.5, 255}}})
	require.NoError(t, err)
	assert.JSONEq(t, `[[0,"rgb(0,0,0)"],[0.125,"rgb(127.5,127.5,255)"]]`, string(b))
}

func TestControlPointJSON_RoundTrip(t *testing.T) {
	t.Parallel()

	s, err := FromAnchors([]RGB{black, white})
	require.NoError(t, err)
	want := s.Log(1, 1024)

	b, err := json.Marshal(want)
	require.NoError(t, err)
	var got ControlPoints
	require.NoError(t, json.Unmarshal(b, &got))
	assert.Equal(t, want, got)

	tests := []string{
		`[0.5]`,
		`["x", "rgb(0,0,0)"]`,
		`[0.5, "#000000"]`,
		`[0.5, "rgb(0,0)"]`,
		`{"position": 0.5}`,
	}
	for _, in := range tests {
		var cp ControlPoint
		assert.Error(t, json.Unmarshal([]byte(in), &cp), in)
	}
}

func TestControlPointsAt(t *testing.T) {
	t.Parallel()

	cp := ControlPoints{{0, black}, {0.5, black}, {1, white}}
	assert.Equal(t, color.RGBA{0, 0, 0, 255}, cp.At(0.25))
	assert.Equal(t, color.RGBA{128, 128, 128, 255}, cp.At(0.75))
	assert.Equal(t, color.RGBA{255, 255, 255, 255}, cp.At(2))
}

func TestRegistry(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	assert.Equal(t, DefaultPalette, r.Names()[0])
	assert.Contains(t, r.Names(), "viridis")

	s, err := r.Get("red-yellow", true)
	require.NoError(t, err)
	assert.Equal(t, []RGB{yellow, red}, s.Anchors())

	_, err = r.Get("rainbow", false)
	assert.ErrorIs(t, err, ErrUnknownPalette)
}
