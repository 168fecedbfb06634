package service

import (
	"bytes"
	"context"
	"image/png"
	"io"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/heatmap-scatter/server/internal/cache"
	"github.com/heatmap-scatter/server/internal/data/tabular"
	"github.com/heatmap-scatter/server/internal/dataset"
	"github.com/heatmap-scatter/server/internal/render"
	"github.com/heatmap-scatter/server/internal/selection"
	"github.com/heatmap-scatter/server/pkg/colormap"
	"github.com/heatmap-scatter/server/pkg/matrix"
)

func readTable(t *testing.T, name, body string) *tabular.Table {
	t.Helper()
	tbl, err := tabular.Read(strings.NewReader(body))
	require.NoError(t, err)
	tbl.Name = name
	return tbl
}

func testDataset(t *testing.T) *dataset.Dataset {
	t.Helper()
	m, err := matrix.New(
		[]string{"g1", "g2", "g3", "g4"},
		[]string{"c1", "c2", "c3"},
		[][]float64{
			{1, 2, 3},
			{4, 0, 6},
			{7, 8, 9},
			{0, 0, 0},
		},
	)
	require.NoError(t, err)

	ds, err := dataset.Build(context.Background(), dataset.Inputs{
		Frames: []*matrix.Matrix{m},
		Diffs:  []*tabular.Table{readTable(t, "de.csv", "gene,log2FoldChange,pvalue\ng1,1,0.1\ng3,-2,0.01\n")},
		Meta:   readTable(t, "meta.csv", "cond,tissue,age\nc1,liver,3\nc2,brain,5\nc3,liver,7\n"),
		Labels: map[string]string{"g1": "TP53"},
	})
	require.NoError(t, err)
	return ds
}

func newTestDashboard(t *testing.T, top int) *Dashboard {
	t.Helper()
	cm, err := cache.NewManager(cache.Config{ImageCacheSizeMB: 16, ImageTTL: time.Minute, QueryCacheSize: 16})
	require.NoError(t, err)
	t.Cleanup(func() { cm.Close() })

	d, err := NewDashboard(DashboardConfig{
		Dataset: testDataset(t),
		Cache:   cm,
		Top:     top,
		Table:   render.TableFormatter{},
	})
	require.NoError(t, err)
	return d
}

func heatmapRows(t *testing.T, d *Dashboard, v View) []string {
	t.Helper()
	p, err := d.Heatmap(v)
	require.NoError(t, err)
	return p.RowIDs
}

func TestHeatmap_Selections(t *testing.T) {
	d := newTestDashboard(t, 0)
	v := DefaultView()

	assert.ElementsMatch(t, []string{"g1", "g2", "g3", "g4"}, heatmapRows(t, d, v))

	require.NoError(t, d.SelectGenes(SourceSearch, selection.Query("TP53")))
	assert.Equal(t, []string{"g1"}, heatmapRows(t, d, v))

	require.NoError(t, d.SelectGenes(SourceSampleBySample, selection.IDs([]string{"g3", "g2", "stale"})))
	assert.ElementsMatch(t, []string{"g2", "g3"}, heatmapRows(t, d, v))

	require.NoError(t, d.SelectGenes(SourceSearch, selection.Query("g3")))
	assert.Equal(t, []string{"g3"}, heatmapRows(t, d, v))

	require.NoError(t, d.SelectGenes(SourceVolcano, selection.IDs(nil)))
	assert.Empty(t, heatmapRows(t, d, v))

	err := d.SelectGenes(SourcePCA, selection.None())
	assert.ErrorIs(t, err, selection.ErrUnknownSource)
}

func TestHeatmap_Conditions(t *testing.T) {
	d := newTestDashboard(t, 0)
	v := DefaultView()
	v.ClusterCols = false

	require.NoError(t, d.SelectConditions(SourcePCA, selection.IDs([]string{"c3", "c1"})))
	p, err := d.Heatmap(v)
	require.NoError(t, err)
	assert.Equal(t, []string{"c1", "c3"}, p.ColLabels)

	sel := d.Selection()
	assert.Equal(t, selection.KindIDs, sel.Conditions.Kind)
	assert.Equal(t, selection.KindNone, sel.Genes.Kind)

	require.NoError(t, d.SelectConditions(SourcePCA, selection.IDs(nil)))
	p, err = d.Heatmap(v)
	require.NoError(t, err)
	assert.Empty(t, p.ColLabels)

	require.NoError(t, d.SelectConditions(SourcePCA, selection.None()))
	p, err = d.Heatmap(v)
	require.NoError(t, err)
	assert.Equal(t, []string{"c1", "c2", "c3"}, p.ColLabels)
}

func TestHeatmap_Top(t *testing.T) {
	d := newTestDashboard(t, 2)
	assert.ElementsMatch(t, []string{"g2", "g1"}, heatmapRows(t, d, DefaultView()))
}

func TestHeatmap_Memoised(t *testing.T) {
	d := newTestDashboard(t, 0)
	v := DefaultView()

	_, err := d.Heatmap(v)
	require.NoError(t, err)
	_, err = d.Heatmap(v)
	require.NoError(t, err)
	assert.Equal(t, 1, d.clustered.Runs())

	v.Palette = "viridis"
	v.Log = false
	_, err = d.Heatmap(v)
	require.NoError(t, err)
	assert.Equal(t, 1, d.clustered.Runs(), "presentation changes do not recluster")

	require.NoError(t, d.SelectGenes(SourceSearch, selection.Query("g")))
	_, err = d.Heatmap(v)
	require.NoError(t, err)
	assert.Equal(t, 2, d.clustered.Runs())

	v.ClusterRows = false
	_, err = d.Heatmap(v)
	require.NoError(t, err)
	assert.Equal(t, 3, d.clustered.Runs())
}

func TestHeatmap_UnknownPalette(t *testing.T) {
	d := newTestDashboard(t, 0)
	v := DefaultView()
	v.Palette = "rainbow"

	_, err := d.Heatmap(v)
	assert.ErrorIs(t, err, colormap.ErrUnknownPalette)
	_, err = d.HeatmapPNG(v)
	assert.ErrorIs(t, err, colormap.ErrUnknownPalette)
}

func TestHeatmap_GraphErrorsPropagate(t *testing.T) {
	d := newTestDashboard(t, 0)
	bad := DefaultView()
	bad.Scaling = Scaling("cubic")

	_, err := d.Heatmap(bad)
	assert.ErrorIs(t, err, ErrInvalidOption)
	runs := d.clustered.Runs()
	_, err = d.Heatmap(bad)
	assert.ErrorIs(t, err, ErrInvalidOption)
	assert.Equal(t, runs, d.clustered.Runs(), "the error is memoised")

	_, err = d.HeatmapPNG(bad)
	assert.ErrorIs(t, err, ErrInvalidOption)
	_, err = d.Table(bad)
	assert.ErrorIs(t, err, ErrInvalidOption)
	assert.ErrorIs(t, d.ExportCSV(io.Discard, bad.Scaling), ErrInvalidOption)
	_, err = d.SampleBySample("c1", "c2", bad)
	assert.ErrorIs(t, err, ErrInvalidOption)

	// A valid view recovers once the bad input is replaced.
	_, err = d.Heatmap(DefaultView())
	require.NoError(t, err)
}

func TestHeatmapPNG_Cached(t *testing.T) {
	d := newTestDashboard(t, 0)
	v := DefaultView()

	first, err := d.HeatmapPNG(v)
	require.NoError(t, err)
	_, err = png.Decode(bytes.NewReader(first))
	require.NoError(t, err)

	d.mu.Lock()
	key, err := d.imageKey(v)
	d.mu.Unlock()
	require.NoError(t, err)
	cached, ok := d.cache.GetImage(key)
	require.True(t, ok)
	assert.Equal(t, first, cached)

	second, err := d.HeatmapPNG(v)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, d.clustered.Runs())

	require.NoError(t, d.SelectGenes(SourceSearch, selection.Query("g1")))
	d.mu.Lock()
	d.syncSelection()
	other, err := d.imageKey(v)
	d.mu.Unlock()
	require.NoError(t, err)
	assert.NotEqual(t, key, other)
}

func TestSearchGenes(t *testing.T) {
	d := newTestDashboard(t, 0)

	assert.Equal(t, []string{"g1"}, d.SearchGenes("tp53 TP53"))
	got := d.SearchGenes(" TP53 ")
	assert.Equal(t, []string{"g1"}, got)
	got[0] = "mutated"
	assert.Equal(t, []string{"g1"}, d.SearchGenes("TP53"), "cached results are not shared")
	assert.Len(t, d.SearchGenes(""), 4)
}

func TestSampleBySample(t *testing.T) {
	d := newTestDashboard(t, 0)
	require.NoError(t, d.SelectGenes(SourceSearch, selection.Query("g1")))

	s, err := d.SampleBySample("", "", DefaultView())
	require.NoError(t, err)
	assert.Equal(t, "c1", s.X)
	assert.Equal(t, "c2", s.Y)
	assert.True(t, s.Log)
	require.Len(t, s.Points, 4)
	assert.Equal(t, Point{ID: "g1", Label: "TP53", X: 1, Y: 2, Selected: true}, s.Points[0])
	assert.False(t, s.Points[1].Selected)

	_, err = d.SampleBySample("c1", "nope", DefaultView())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestVolcano(t *testing.T) {
	d := newTestDashboard(t, 0)

	s, err := d.Volcano("", "", "")
	require.NoError(t, err)
	assert.Equal(t, "log2FoldChange", s.X)
	assert.Equal(t, "-log10(pvalue)", s.Y)
	require.Len(t, s.Points, 2)
	assert.Equal(t, "g3", s.Points[1].ID)
	assert.InDelta(t, 2, s.Points[1].Y, 1e-12)
	assert.True(t, s.Points[1].Selected)

	_, err = d.Volcano("other.csv", "", "")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPCA(t *testing.T) {
	d := newTestDashboard(t, 0)
	require.NoError(t, d.SelectConditions(SourcePCA, selection.IDs([]string{"c2"})))

	s, err := d.PCA("", "", "tissue", "")
	require.NoError(t, err)
	assert.Equal(t, "pc1", s.X)
	assert.Equal(t, "pc2", s.Y)
	require.Len(t, s.Points, 3)
	assert.Equal(t, []bool{false, true, false},
		[]bool{s.Points[0].Selected, s.Points[1].Selected, s.Points[2].Selected})

	liver := colormap.Hex(colormap.Categorical.AtIndex(0))
	brain := colormap.Hex(colormap.Categorical.AtIndex(1))
	assert.Equal(t, []LegendEntry{{"liver", liver}, {"brain", brain}}, s.Legend)
	assert.Equal(t, liver, s.Points[2].Color)
	assert.Equal(t, "brain", s.Points[1].Group)

	s, err = d.PCA("pc1", "pc1", "age", "black-white")
	require.NoError(t, err)
	assert.Empty(t, s.Legend)
	assert.Equal(t, "#000000", s.Points[0].Color)
	assert.Equal(t, "#ffffff", s.Points[2].Color)

	_, err = d.PCA("", "", "missing", "")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = d.PCA("pc9", "", "", "")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTableAndLists(t *testing.T) {
	d := newTestDashboard(t, 0)
	require.NoError(t, d.SelectGenes(SourceSearch, selection.Query("g1 g3")))
	require.NoError(t, d.SelectConditions(SourcePCA, selection.IDs([]string{"c1"})))

	html, err := d.Table(DefaultView())
	require.NoError(t, err)
	assert.Contains(t, html, "TP53")
	assert.Contains(t, html, "tissue")
	assert.Contains(t, html, "liver")
	assert.NotContains(t, html, "brain")

	genes, err := d.GeneList()
	require.NoError(t, err)
	assert.Equal(t, "<pre>g1\ng3</pre>", genes)
	conditions, err := d.ConditionList()
	require.NoError(t, err)
	assert.Equal(t, "<pre>c1</pre>", conditions)

	var buf bytes.Buffer
	require.NoError(t, d.ExportCSV(&buf, NoRescale))
	assert.Equal(t, ",c1\ng1,1\ng3,7\n", buf.String())
}

func TestRunExport_UsesSnapshot(t *testing.T) {
	d := newTestDashboard(t, 0)
	require.NoError(t, d.SelectGenes(SourceSampleBySample, selection.IDs([]string{"g2"})))
	params, err := d.ExportParams(NoRescale)
	require.NoError(t, err)

	require.NoError(t, d.SelectGenes(SourceSearch, selection.Query("g3")))

	csv, m, err := d.RunExport(context.Background(), params)
	require.NoError(t, err)
	assert.Equal(t, []string{"g2"}, m.RowIDs())
	assert.Equal(t, ",c1,c2,c3\ng2,4,0,6\n", string(csv))

	params.Scaling = "cubic"
	_, _, err = d.RunExport(context.Background(), params)
	assert.ErrorIs(t, err, ErrInvalidOption)
}

func TestSummary(t *testing.T) {
	d := newTestDashboard(t, 0)
	s := d.Summary()
	assert.Equal(t, 4, s.Genes)
	assert.Equal(t, []string{"c1", "c2", "c3"}, s.Conditions)
	assert.Equal(t, []string{"de.csv"}, s.DiffFiles)
	assert.Equal(t, []string{"tissue", "age"}, s.MetadataFields)
	assert.Equal(t, []string{"pc1", "pc2", "pc3"}, s.Components)
	assert.Contains(t, s.Palettes, "seurat")
}

func TestParseView(t *testing.T) {
	v, err := ParseView(url.Values{}, DefaultView())
	require.NoError(t, err)
	assert.Equal(t, DefaultView(), v)

	q := url.Values{
		"scale":        {"linear"},
		"palette":      {"viridis"},
		"reverse":      {"true"},
		"cluster-rows": {"no cluster"},
		"label-cols":   {"always"},
		"scaling":      {"z-score"},
	}
	v, err = ParseView(q, DefaultView())
	require.NoError(t, err)
	assert.False(t, v.Log)
	assert.Equal(t, "viridis", v.Palette)
	assert.True(t, v.Reverse)
	assert.False(t, v.ClusterRows)
	assert.True(t, v.ClusterCols)
	assert.Equal(t, render.LabelAlways, v.LabelCols)
	assert.Equal(t, ZScore, v.Scaling)

	for _, bad := range []url.Values{
		{"scale": {"sqrt"}},
		{"reverse": {"maybe"}},
		{"cluster-cols": {"yes"}},
		{"label-rows": {"sometimes"}},
		{"scaling": {"min-max"}},
	} {
		_, err := ParseView(bad, DefaultView())
		assert.ErrorIs(t, err, ErrInvalidOption, "%v", bad)
	}
}
