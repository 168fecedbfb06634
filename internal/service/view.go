package service

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"

	"github.com/heatmap-scatter/server/internal/render"
)

// ErrInvalidOption is returned for a view option with an unknown value.
var ErrInvalidOption = errors.New("invalid view option")

// Scaling selects the matrix the views are drawn from.
type Scaling string

const (
	NoRescale Scaling = "no rescale"
	ZScore    Scaling = "z-score"
)

// ParseScaling accepts "no rescale" and "z-score".
func ParseScaling(s string) (Scaling, error) {
	switch Scaling(s) {
	case NoRescale, ZScore:
		return Scaling(s), nil
	}
	return "", fmt.Errorf("%w: scaling %q", ErrInvalidOption, s)
}

// View holds the presentation choices of one request.
type View struct {
	Log         bool
	Palette     string
	Reverse     bool
	ClusterRows bool
	ClusterCols bool
	LabelRows   render.LabelMode
	LabelCols   render.LabelMode
	Scaling     Scaling
}

// DefaultView is the dashboard's initial state.
func DefaultView() View {
	return View{
		Log:         true,
		Palette:     "black-white",
		ClusterRows: true,
		ClusterCols: true,
		LabelRows:   render.LabelAuto,
		LabelCols:   render.LabelAuto,
		Scaling:     NoRescale,
	}
}

// ParseView reads view options from URL query parameters. Absent
// parameters keep their value in defaults.
func ParseView(q url.Values, defaults View) (View, error) {
	v := defaults
	var err error

	if s := q.Get("scale"); s != "" {
		switch s {
		case "log":
			v.Log = true
		case "linear":
			v.Log = false
		default:
			return View{}, fmt.Errorf("%w: scale %q", ErrInvalidOption, s)
		}
	}
	if s := q.Get("palette"); s != "" {
		v.Palette = s
	}
	if s := q.Get("reverse"); s != "" {
		if v.Reverse, err = strconv.ParseBool(s); err != nil {
			return View{}, fmt.Errorf("%w: reverse %q", ErrInvalidOption, s)
		}
	}
	if v.ClusterRows, err = parseCluster(q, "cluster-rows", v.ClusterRows); err != nil {
		return View{}, err
	}
	if v.ClusterCols, err = parseCluster(q, "cluster-cols", v.ClusterCols); err != nil {
		return View{}, err
	}
	if s := q.Get("label-rows"); s != "" {
		if v.LabelRows, err = render.ParseLabelMode(s); err != nil {
			return View{}, fmt.Errorf("%w: %v", ErrInvalidOption, err)
		}
	}
	if s := q.Get("label-cols"); s != "" {
		if v.LabelCols, err = render.ParseLabelMode(s); err != nil {
			return View{}, fmt.Errorf("%w: %v", ErrInvalidOption, err)
		}
	}
	if s := q.Get("scaling"); s != "" {
		if v.Scaling, err = ParseScaling(s); err != nil {
			return View{}, err
		}
	}
	return v, nil
}

// ParseClusterMode accepts "cluster" and "no cluster".
func ParseClusterMode(s string) (bool, error) {
	switch s {
	case "cluster":
		return true, nil
	case "no cluster":
		return false, nil
	}
	return false, fmt.Errorf("%w: cluster mode %q", ErrInvalidOption, s)
}

func parseCluster(q url.Values, key string, def bool) (bool, error) {
	s := q.Get(key)
	if s == "" {
		return def, nil
	}
	return ParseClusterMode(s)
}

// params flattens v for use in cache keys.
func (v View) params() map[string]string {
	return map[string]string{
		"log":          strconv.FormatBool(v.Log),
		"palette":      v.Palette,
		"reverse":      strconv.FormatBool(v.Reverse),
		"cluster_rows": strconv.FormatBool(v.ClusterRows),
		"cluster_cols": strconv.FormatBool(v.ClusterCols),
		"label_rows":   string(v.LabelRows),
		"label_cols":   string(v.LabelCols),
		"scaling":      string(v.Scaling),
	}
}
