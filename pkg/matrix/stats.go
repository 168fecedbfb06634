package matrix

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// RowMeans returns the arithmetic mean of each row. Rows of a zero-column
// matrix have mean 0.
func (m *Matrix) RowMeans() []float64 {
	r, c := len(m.rowIDs), len(m.colIDs)
	means := make([]float64, r)
	if c == 0 {
		return means
	}
	for i := 0; i < r; i++ {
		means[i] = stat.Mean(m.data[i*c:(i+1)*c], nil)
	}
	return means
}

// RowVariances returns the sample variance (n-1 denominator) of each row.
// Rows with fewer than two values, and constant rows, have variance 0.
func (m *Matrix) RowVariances() []float64 {
	r, c := len(m.rowIDs), len(m.colIDs)
	vars := make([]float64, r)
	if c < 2 {
		return vars
	}
	for i := 0; i < r; i++ {
		row := m.data[i*c : (i+1)*c]
		if constant(row) {
			continue
		}
		_, vars[i] = stat.MeanVariance(row, nil)
	}
	return vars
}

// RowStdDevs returns the sample standard deviation of each row.
func (m *Matrix) RowStdDevs() []float64 {
	vars := m.RowVariances()
	for i, v := range vars {
		vars[i] = math.Sqrt(v)
	}
	return vars
}

// CenterAndScaleRows subtracts each row's mean and divides by its sample
// standard deviation. Rows with zero deviation become all zeros.
func (m *Matrix) CenterAndScaleRows() *Matrix {
	r, c := len(m.rowIDs), len(m.colIDs)
	data := make([]float64, len(m.data))
	for i := 0; i < r; i++ {
		row := m.data[i*c : (i+1)*c]
		if c < 2 || constant(row) {
			continue
		}
		mean, std := stat.MeanStdDev(row, nil)
		if std == 0 {
			continue
		}
		for j, v := range row {
			data[i*c+j] = (v - mean) / std
		}
	}
	out, _ := fromFlat(m.RowIDs(), m.ColIDs(), data)
	return out
}

// constant reports whether every value of row is the same, so that rounding
// in the mean cannot produce a tiny non-zero spread.
func constant(row []float64) bool {
	for _, v := range row[1:] {
		if v != row[0] {
			return false
		}
	}
	return true
}

// PositiveValues flattens every strictly positive cell in row-major order.
func (m *Matrix) PositiveValues() []float64 {
	out := make([]float64, 0, len(m.data))
	for _, v := range m.data {
		if v > 0 {
			out = append(out, v)
		}
	}
	return out
}

// Range returns the minimum and maximum cell values. ok is false for an
// empty matrix.
func (m *Matrix) Range() (lo, hi float64, ok bool) {
	if len(m.data) == 0 {
		return 0, 0, false
	}
	lo, hi = m.data[0], m.data[0]
	for _, v := range m.data[1:] {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	return lo, hi, true
}
