package tabular

import (
	"fmt"
	"math/rand"
	"regexp"
	"strconv"
	"strings"

	"github.com/heatmap-scatter/server/pkg/matrix"
)

// DemoDims is the shape of generated demo data.
type DemoDims struct {
	Frames int
	Rows   int
	Cols   int
}

var demoPattern = regexp.MustCompile(`^\d+,\d+,\d+$`)

// ParseDemoDims parses "FRAMES,ROWS,COLS".
func ParseDemoDims(s string) (DemoDims, error) {
	if !demoPattern.MatchString(s) {
		return DemoDims{}, fmt.Errorf(`should be of the form "FRAMES,ROWS,COLS", where each is an integer: %q`, s)
	}
	parts := strings.Split(s, ",")
	n := make([]int, 3)
	for i, p := range parts {
		v, err := strconv.Atoi(p)
		if err != nil {
			return DemoDims{}, err
		}
		n[i] = v
	}
	return DemoDims{Frames: n[0], Rows: n[1], Cols: n[2]}, nil
}

// Demo generates frames of uniform random values. Frame f's row and column
// ids are shifted by a third of the frame size, so that consecutive frames
// overlap and merging them exercises the outer join.
func Demo(d DemoDims, rng *rand.Rand) ([]*matrix.Matrix, error) {
	frames := make([]*matrix.Matrix, 0, d.Frames)
	for f := 0; f < d.Frames; f++ {
		rows := make([]string, d.Rows)
		for i := range rows {
			rows[i] = fmt.Sprintf("gene-%d", i+f*d.Rows/3)
		}
		cols := make([]string, d.Cols)
		for j := range cols {
			cols[j] = fmt.Sprintf("cond-%d", j+f*d.Cols/3)
		}
		values := make([][]float64, d.Rows)
		for i := range values {
			values[i] = make([]float64, d.Cols)
			for j := range values[i] {
				values[i][j] = rng.Float64()
			}
		}
		m, err := matrix.New(rows, cols, values)
		if err != nil {
			return nil, err
		}
		frames = append(frames, m)
	}
	return frames, nil
}
