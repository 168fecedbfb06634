// Package cluster orders matrix rows and columns by Ward hierarchical
// clustering.
package cluster

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

// ErrNonFinite is returned when the input contains NaN or Inf.
var ErrNonFinite = errors.New("cluster: non-finite value in input")

// Merge is one row of a linkage matrix: clusters Left and Right joined at
// Distance into a cluster of Size observations. Observations are labelled
// 0..n-1 and the cluster created by merge k is labelled n+k.
type Merge struct {
	Left, Right int
	Distance    float64
	Size        int
}

// condensed is the upper triangle of a symmetric n×n distance matrix.
type condensed struct {
	n int
	d []float64
}

func newCondensed(n int) *condensed {
	return &condensed{n: n, d: make([]float64, n*(n-1)/2)}
}

func (c *condensed) idx(i, j int) int {
	if i > j {
		i, j = j, i
	}
	return c.n*i - i*(i+1)/2 + j - i - 1
}

func (c *condensed) get(i, j int) float64    { return c.d[c.idx(i, j)] }
func (c *condensed) set(i, j int, v float64) { c.d[c.idx(i, j)] = v }

// Linkage computes the Ward linkage of points (one observation per slice,
// all of equal length) with the nearest-neighbour chain algorithm.
// The merges are sorted by distance and labelled the way SciPy labels them.
func Linkage(points [][]float64) ([]Merge, error) {
	n := len(points)
	if n < 2 {
		return nil, nil
	}
	dim := len(points[0])
	for i, p := range points {
		if len(p) != dim {
			return nil, fmt.Errorf("cluster: observation %d has %d features, expected %d", i, len(p), dim)
		}
		for _, v := range p {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, fmt.Errorf("%w: observation %d", ErrNonFinite, i)
			}
		}
	}

	dist := newCondensed(n)
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			ss := 0.0
			for k := 0; k < dim; k++ {
				d := points[i][k] - points[j][k]
				ss += d * d
			}
			dist.set(i, j, math.Sqrt(ss))
		}
	}

	merges := nnChain(dist)

	sort.SliceStable(merges, func(a, b int) bool {
		return merges[a].Distance < merges[b].Distance
	})
	relabel(merges, n)
	return merges, nil
}

// nnChain returns unsorted merges whose Left/Right are slot indices.
// The cluster formed by a merge lives on in its larger slot.
func nnChain(dist *condensed) []Merge {
	n := dist.n
	size := make([]int, n)
	for i := range size {
		size[i] = 1
	}
	merges := make([]Merge, 0, n-1)
	chain := make([]int, 0, n)

	for k := 0; k < n-1; k++ {
		if len(chain) == 0 {
			for i := 0; i < n; i++ {
				if size[i] > 0 {
					chain = append(chain, i)
					break
				}
			}
		}

		var x, y int
		var best float64
		for {
			x = chain[len(chain)-1]
			if len(chain) > 1 {
				y = chain[len(chain)-2]
				best = dist.get(x, y)
			} else {
				best = math.Inf(1)
			}
			for i := 0; i < n; i++ {
				if size[i] == 0 || i == x {
					continue
				}
				if d := dist.get(x, i); d < best {
					best = d
					y = i
				}
			}
			if len(chain) > 1 && y == chain[len(chain)-2] {
				break
			}
			chain = append(chain, y)
		}
		chain = chain[:len(chain)-2]

		if x > y {
			x, y = y, x
		}
		nx, ny := size[x], size[y]
		merges = append(merges, Merge{Left: x, Right: y, Distance: best, Size: nx + ny})
		size[x] = 0
		size[y] = nx + ny

		for i := 0; i < n; i++ {
			ni := size[i]
			if ni == 0 || i == y {
				continue
			}
			dist.set(i, y, ward(dist.get(i, x), dist.get(i, y), best, nx, ny, ni))
		}
	}
	return merges
}

// ward is the Lance-Williams update for the distance between cluster i and
// the union of clusters x and y.
func ward(dxi, dyi, dxy float64, nx, ny, ni int) float64 {
	fx, fy, fi := float64(nx), float64(ny), float64(ni)
	v := ((fi+fx)*dxi*dxi + (fi+fy)*dyi*dyi - fi*dxy*dxy) / (fx + fy + fi)
	if v < 0 {
		return 0
	}
	return math.Sqrt(v)
}

// relabel rewrites slot indices into cluster labels in place.
func relabel(merges []Merge, n int) {
	parent := make([]int, 2*n-1)
	for i := range parent {
		parent[i] = i
	}
	find := func(x int) int {
		root := x
		for parent[root] != root {
			root = parent[root]
		}
		for parent[x] != root {
			parent[x], x = root, parent[x]
		}
		return root
	}

	next := n
	for k := range merges {
		a, b := find(merges[k].Left), find(merges[k].Right)
		if a > b {
			a, b = b, a
		}
		merges[k].Left, merges[k].Right = a, b
		parent[a] = next
		parent[b] = next
		next++
	}
}

// Leaves returns the observations in dendrogram order: a pre-order walk
// visiting Left before Right.
func Leaves(merges []Merge, n int) []int {
	if n == 0 {
		return nil
	}
	if len(merges) == 0 {
		out := make([]int, n)
		for i := range out {
			out[i] = i
		}
		return out
	}

	out := make([]int, 0, n)
	stack := []int{n + len(merges) - 1}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if id < n {
			out = append(out, id)
			continue
		}
		m := merges[id-n]
		stack = append(stack, m.Right, m.Left)
	}
	return out
}
