// Package pca projects the conditions of an expression matrix onto their
// principal components. Conditions are the observations, genes the features.
package pca

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/heatmap-scatter/server/pkg/matrix"
)

// MaxComponents is the number of components offered to clients.
const MaxComponents = 4

// ErrNoConvergence is returned when the decomposition does not settle.
var ErrNoConvergence = errors.New("pca: decomposition did not converge")

// Result holds per-condition component scores.
type Result struct {
	Components []string    // pc1, pc2, ...
	Conditions []string    // observation ids, in matrix column order
	Scores     [][]float64 // Scores[condition][component]
	Variance   []float64   // explained variance per component
}

// Compute returns up to components principal components of m's columns.
// Each component's sign is chosen so its largest-magnitude score is positive.
// Components beyond the rank of the data score 0.
func Compute(m *matrix.Matrix, components int) (*Result, error) {
	n, d := m.Cols(), m.Rows()
	if components > n {
		components = n
	}
	if components < 0 {
		components = 0
	}

	res := &Result{
		Components: make([]string, components),
		Conditions: m.ColIDs(),
		Scores:     make([][]float64, n),
		Variance:   make([]float64, components),
	}
	for k := range res.Components {
		res.Components[k] = fmt.Sprintf("pc%d", k+1)
	}
	for i := range res.Scores {
		res.Scores[i] = make([]float64, components)
	}
	// A single observation or no features has nothing to project.
	if components == 0 || n < 2 || d == 0 {
		return res, nil
	}

	centered := observations(m)
	var pc stat.PC
	if ok := pc.PrincipalComponents(centered, nil); !ok {
		return nil, ErrNoConvergence
	}
	var vecs mat.Dense
	pc.VectorsTo(&vecs)
	vars := pc.VarsTo(nil)

	var proj mat.Dense
	proj.Mul(centered, &vecs)
	_, rank := proj.Dims()

	for k := 0; k < components && k < rank; k++ {
		res.Variance[k] = math.Max(vars[k], 0)
		scores := mat.Col(nil, k, &proj)
		flipSign(scores)
		for i := 0; i < n; i++ {
			res.Scores[i][k] = scores[i]
		}
	}
	return res, nil
}

// observations returns m transposed, one row per condition, with every gene
// centered on its mean.
func observations(m *matrix.Matrix) *mat.Dense {
	n, d := m.Cols(), m.Rows()
	x := mat.NewDense(n, d, nil)
	means := m.RowMeans()
	for g := 0; g < d; g++ {
		row := m.Row(g)
		for c, v := range row {
			x.Set(c, g, v-means[g])
		}
	}
	return x
}

// Component returns the named component's score for every condition.
func (r *Result) Component(name string) ([]float64, bool) {
	for k, c := range r.Components {
		if c != name {
			continue
		}
		out := make([]float64, len(r.Scores))
		for i, s := range r.Scores {
			out[i] = s[k]
		}
		return out, true
	}
	return nil, false
}

// flipSign negates v unless its largest-magnitude entry is positive.
// Near-ties go to the earliest entry.
func flipSign(v []float64) {
	maxAbs := 0.0
	for _, x := range v {
		if a := math.Abs(x); a > maxAbs {
			maxAbs = a
		}
	}
	if maxAbs == 0 {
		return
	}
	for _, x := range v {
		if math.Abs(x) >= maxAbs*(1-1e-9) {
			if x < 0 {
				for i := range v {
					v[i] = -v[i]
				}
			}
			return
		}
	}
}
