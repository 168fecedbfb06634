package dataset

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/heatmap-scatter/server/internal/data/tabular"
)

func write(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	src := Sources{
		Files: []string{
			write(t, dir, "a.csv", ",c1,c2\ng1,1,2\ng2,3,4\n"),
			write(t, dir, "b.tsv", "\tc3\ng2\t5\ng3\t6\n"),
		},
		Diffs:  []string{write(t, dir, "de.csv", "gene,log2FoldChange,pvalue\ng1,1,0.1\ng3,-2,0.01\n")},
		Meta:   write(t, dir, "meta.csv", "cond,tissue\nc1,liver\nc2,brain\nc3,liver\n"),
		Labels: write(t, dir, "labels.csv", "id,label\ng1,TP53\n"),
	}

	ds, err := Load(context.Background(), src)
	require.NoError(t, err)

	assert.Equal(t, []string{"g1", "g2", "g3"}, ds.Union.RowIDs())
	assert.Equal(t, []string{"c1", "c2", "c3"}, ds.Union.ColIDs())
	assert.Equal(t, [][]float64{{1, 2, 0}, {3, 4, 5}, {0, 0, 6}}, ds.Union.Values())

	assert.Equal(t, ds.Union.RowIDs(), ds.Scaled.RowIDs())
	assert.Equal(t, []string{"c1", "c2", "c3"}, ds.PCA.Conditions)
	assert.Equal(t, []string{"g1"}, ds.Index.Search("TP53"))
	assert.Equal(t, "TP53", ds.Label("g1"))
	assert.Equal(t, "g2", ds.Label("g2"))

	assert.Equal(t, []string{"de.csv"}, ds.DiffNames())
	de, ok := ds.Diff("de.csv")
	require.True(t, ok)
	assert.Equal(t, []string{"g1", "g3"}, de.RowIDs())

	v, ok := ds.Meta.Field("c2", "tissue")
	require.True(t, ok)
	assert.Equal(t, "brain", v)
}

func TestLoad_Demo(t *testing.T) {
	t.Parallel()

	ds, err := Load(context.Background(), Sources{Demo: &tabular.DemoDims{Frames: 2, Rows: 9, Cols: 3}, Seed: 7})
	require.NoError(t, err)
	assert.Equal(t, 12, ds.Union.Rows())
	assert.Empty(t, ds.DiffNames())
	assert.Nil(t, ds.Meta)
}

func TestLoad_Errors(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	var ce *tabular.ConfigError

	_, err := Load(context.Background(), Sources{})
	require.ErrorAs(t, err, &ce)
	assert.ErrorIs(t, err, ErrNoInput)

	_, err = Load(context.Background(), Sources{Files: []string{write(t, dir, "dup.csv", ",c\ng,1\ng,2\n")}})
	assert.ErrorAs(t, err, &ce)

	good := write(t, dir, "good.csv", ",c\ng,1\n")
	_, err = Load(context.Background(), Sources{
		Files: []string{good},
		Diffs: []string{write(t, dir, "nodiff.csv", "x,y\nnope,1\n")},
	})
	assert.ErrorAs(t, err, &ce)
	assert.ErrorIs(t, err, tabular.ErrNoIndex)
}
