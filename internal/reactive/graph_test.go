package reactive

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputed_Memoises(t *testing.T) {
	t.Parallel()

	a := NewInput(2)
	b := NewInput(3)
	sum := NewComputed("sum", func() (int, error) { return a.Get() + b.Get(), nil }, a, b)
	double := NewComputed("double", func() (int, error) {
		s, err := sum.Get()
		return 2 * s, err
	}, sum)

	v, err := double.Get()
	require.NoError(t, err)
	assert.Equal(t, 10, v)

	_, _ = double.Get()
	assert.Equal(t, 1, sum.Runs())
	assert.Equal(t, 1, double.Runs())

	b.Set(5)
	v, err = double.Get()
	require.NoError(t, err)
	assert.Equal(t, 14, v)
	assert.Equal(t, 2, sum.Runs())
	assert.Equal(t, 2, double.Runs())
	assert.Equal(t, "double", double.Name())
}

func TestComputed_OnlyDependentsRecompute(t *testing.T) {
	t.Parallel()

	genes := NewInput("g")
	conds := NewInput("c")
	left := NewComputed("left", func() (string, error) { return genes.Get() + "!", nil }, genes)
	right := NewComputed("right", func() (string, error) { return conds.Get() + "?", nil }, conds)

	_, _ = left.Get()
	_, _ = right.Get()

	conds.Set("d")
	_, _ = left.Get()
	got, _ := right.Get()

	assert.Equal(t, "d?", got)
	assert.Equal(t, 1, left.Runs())
	assert.Equal(t, 2, right.Runs())
}

func TestComputed_MemoisesErrors(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	in := NewInput(-1)
	node := NewComputed("checked", func() (int, error) {
		if in.Get() < 0 {
			return 0, boom
		}
		return in.Get(), nil
	}, in)

	_, err := node.Get()
	assert.ErrorIs(t, err, boom)
	_, err = node.Get()
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, node.Runs())

	in.Set(4)
	v, err := node.Get()
	require.NoError(t, err)
	assert.Equal(t, 4, v)
}
