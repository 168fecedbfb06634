package matrix

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sample(t *testing.T) *Matrix {
	t.Helper()
	m, err := New(
		[]string{"r1", "r2", "r3", "r4"},
		[]string{"c1", "c2", "c3", "c4"},
		[][]float64{
			{1, 4, 1, 5},
			{8, 4, 8, 5},
			{2, 4, 2, 5},
			{9, 4, 9, 5},
		},
	)
	require.NoError(t, err)
	return m
}

func TestNew_Errors(t *testing.T) {
	_, err := New([]string{"a", "a"}, []string{"c"}, [][]float64{{1}, {2}})
	assert.True(t, errors.Is(err, ErrDuplicateID))

	_, err = New([]string{"a"}, []string{"c", "c"}, [][]float64{{1, 2}})
	assert.True(t, errors.Is(err, ErrDuplicateID))

	_, err = New([]string{"a"}, []string{"c1", "c2"}, [][]float64{{1}})
	assert.True(t, errors.Is(err, ErrShape))

	_, err = New([]string{"a", "b"}, []string{"c"}, [][]float64{{1}})
	assert.True(t, errors.Is(err, ErrShape))

	_, err = New([]string{"a"}, []string{"c"}, [][]float64{{math.NaN()}})
	assert.True(t, errors.Is(err, ErrNaNInf))
}

func TestSelectRowsAndCols(t *testing.T) {
	m := sample(t)

	sub := m.SelectRows([]string{"r3", "missing", "r1", "r3"})
	assert.Equal(t, []string{"r3", "r1"}, sub.RowIDs())
	assert.Equal(t, [][]float64{{2, 4, 2, 5}, {1, 4, 1, 5}}, sub.Values())

	cols := m.SelectCols([]string{"c4", "c1"})
	assert.Equal(t, []string{"c4", "c1"}, cols.ColIDs())
	assert.Equal(t, []float64{5, 1}, cols.Row(0))

	// The source is untouched.
	assert.Equal(t, []string{"r1", "r2", "r3", "r4"}, m.RowIDs())
}

func TestTranspose(t *testing.T) {
	m := sample(t)
	tr := m.Transpose()
	assert.Equal(t, m.ColIDs(), tr.RowIDs())
	assert.Equal(t, m.RowIDs(), tr.ColIDs())
	assert.Equal(t, []float64{1, 8, 2, 9}, tr.Row(0))
	assert.True(t, tr.Transpose().Equal(m))
}

func TestWithoutZeroRows(t *testing.T) {
	m, err := New([]string{"z", "a", "z2"}, []string{"c1", "c2"}, [][]float64{{0, 0}, {0, 1}, {0, 0}})
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, m.WithoutZeroRows().RowIDs())
}

func TestRowVariances(t *testing.T) {
	m := sample(t)
	vars := m.RowVariances()
	require.Len(t, vars, 4)
	// r1 = {1,4,1,5}: mean 2.75, ss = 3.0625+1.5625+3.0625+5.0625 = 12.75
	assert.InDelta(t, 12.75/3, vars[0], 1e-12)

	single, err := New([]string{"a"}, []string{"c"}, [][]float64{{3}})
	require.NoError(t, err)
	assert.Equal(t, []float64{0}, single.RowVariances())
}

func TestCenterAndScaleRows(t *testing.T) {
	m, err := New([]string{"a", "b", "flat"}, []string{"x", "y", "z"}, [][]float64{{1, 2, 3}, {2, 4, 6}, {5, 5, 5}})
	require.NoError(t, err)
	scaled := m.CenterAndScaleRows()
	assert.Equal(t, [][]float64{{-1, 0, 1}, {-1, 0, 1}, {0, 0, 0}}, scaled.Values())

	// the mean of these is not exactly 0.1, the row is still constant
	tenths, err := New([]string{"t"}, []string{"x", "y", "z"}, [][]float64{{0.1, 0.1, 0.1}})
	require.NoError(t, err)
	assert.Equal(t, []float64{0}, tenths.RowVariances())
	assert.Equal(t, [][]float64{{0, 0, 0}}, tenths.CenterAndScaleRows().Values())
}

func TestPositiveValuesAndRange(t *testing.T) {
	m, err := New([]string{"a", "b"}, []string{"x", "y"}, [][]float64{{0, -1}, {4, 64}})
	require.NoError(t, err)
	assert.Equal(t, []float64{4, 64}, m.PositiveValues())
	lo, hi, ok := m.Range()
	assert.True(t, ok)
	assert.Equal(t, -1.0, lo)
	assert.Equal(t, 64.0, hi)

	_, _, ok = Empty().Range()
	assert.False(t, ok)
}

func TestMerge(t *testing.T) {
	first := sample(t)

	t.Run("single frame unchanged", func(t *testing.T) {
		merged, err := Merge(first)
		require.NoError(t, err)
		assert.True(t, merged.Equal(first))
	})

	t.Run("outer join with collision", func(t *testing.T) {
		second, err := New([]string{"r4", "r5"}, []string{"c4", "c5"}, [][]float64{{11, 12}, {21, 22}})
		require.NoError(t, err)

		merged, err := Merge(first, second)
		require.NoError(t, err)
		assert.Equal(t, []string{"r1", "r2", "r3", "r4", "r5"}, merged.RowIDs())
		assert.Equal(t, []string{"c1", "c2", "c3", "c4_x", "c4_y", "c5"}, merged.ColIDs())
		assert.Equal(t, [][]float64{
			{1, 4, 1, 5, 0, 0},
			{8, 4, 8, 5, 0, 0},
			{2, 4, 2, 5, 0, 0},
			{9, 4, 9, 5, 11, 12},
			{0, 0, 0, 0, 21, 22},
		}, merged.Values())
	})
}
