// Package dataset loads the expression, differential and metadata tables
// and derives everything the dashboard precomputes once at startup.
package dataset

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/heatmap-scatter/server/internal/data/tabular"
	"github.com/heatmap-scatter/server/internal/pca"
	"github.com/heatmap-scatter/server/internal/search"
	"github.com/heatmap-scatter/server/pkg/matrix"
)

// ErrNoInput is returned when neither files nor demo dimensions are given.
var ErrNoInput = errors.New("either files or demo dimensions are required")

// Sources names the inputs of a dataset.
type Sources struct {
	Files []string
	Diffs []string
	Meta  string
	// Labels is an optional two-column table of gene id and display label.
	Labels string
	Demo   *tabular.DemoDims
	Seed   int64
}

// Dataset is immutable once loaded.
type Dataset struct {
	Union  *matrix.Matrix
	Scaled *matrix.Matrix
	Index  *search.Index
	PCA    *pca.Result
	Meta   *tabular.Metadata
	Labels map[string]string

	diffNames []string
	diffs     map[string]*matrix.Matrix
}

// Load reads every source and builds the dataset.
func Load(ctx context.Context, src Sources) (*Dataset, error) {
	start := time.Now()

	var frames []*matrix.Matrix
	switch {
	case len(src.Files) > 0:
		frames = make([]*matrix.Matrix, len(src.Files))
		g, _ := errgroup.WithContext(ctx)
		for i, path := range src.Files {
			g.Go(func() error {
				t, err := tabular.ReadFile(path)
				if err != nil {
					return err
				}
				m, err := t.Matrix(0)
				if err != nil {
					return err
				}
				frames[i] = m
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
	case src.Demo != nil:
		var err error
		frames, err = tabular.Demo(*src.Demo, rand.New(rand.NewSource(src.Seed)))
		if err != nil {
			return nil, err
		}
	default:
		return nil, &tabular.ConfigError{Err: ErrNoInput}
	}

	diffs := make([]*tabular.Table, len(src.Diffs))
	for i, path := range src.Diffs {
		t, err := tabular.ReadFile(path)
		if err != nil {
			return nil, err
		}
		diffs[i] = t
	}

	var meta *tabular.Table
	if src.Meta != "" {
		t, err := tabular.ReadFile(src.Meta)
		if err != nil {
			return nil, err
		}
		meta = t
	}

	var labels map[string]string
	if src.Labels != "" {
		t, err := tabular.ReadFile(src.Labels)
		if err != nil {
			return nil, err
		}
		if labels, err = t.Labels(); err != nil {
			return nil, err
		}
	}

	ds, err := Build(ctx, Inputs{Frames: frames, Diffs: diffs, Meta: meta, Labels: labels})
	if err != nil {
		return nil, err
	}
	log.Printf("[Dataset] loaded %d genes x %d conditions, %d diff files in %v",
		ds.Union.Rows(), ds.Union.Cols(), len(ds.diffNames), time.Since(start))
	return ds, nil
}

// Inputs are the parsed tables a Dataset is built from.
type Inputs struct {
	Frames []*matrix.Matrix
	Diffs  []*tabular.Table
	Meta   *tabular.Table
	Labels map[string]string
}

// Build merges the frames and precomputes the derived views. Independent
// derivations run concurrently.
func Build(ctx context.Context, in Inputs) (*Dataset, error) {
	diffs, meta := in.Diffs, in.Meta
	union, err := matrix.Merge(in.Frames...)
	if err != nil {
		return nil, &tabular.ConfigError{Err: err}
	}
	if union.Rows() == 0 || union.Cols() == 0 {
		return nil, &tabular.ConfigError{Err: errors.New("merged table is empty")}
	}

	ds := &Dataset{
		Union:  union,
		Labels: in.Labels,
		diffs:  make(map[string]*matrix.Matrix, len(diffs)),
	}
	keys := make(map[string]struct{}, union.Rows())
	for _, id := range union.RowIDs() {
		keys[id] = struct{}{}
	}
	vulcanized := make([]*matrix.Matrix, len(diffs))

	g, _ := errgroup.WithContext(ctx)
	g.Go(func() error {
		ds.Scaled = union.CenterAndScaleRows()
		return nil
	})
	g.Go(func() error {
		ds.Index = search.NewIndex(union.RowIDs(), search.WithLabels(ds.Labels))
		return nil
	})
	g.Go(func() error {
		res, err := pca.Compute(union, pca.MaxComponents)
		if err != nil {
			return fmt.Errorf("pca: %w", err)
		}
		ds.PCA = res
		return nil
	})
	for i, t := range diffs {
		g.Go(func() error {
			v, err := t.Diff(keys)
			if err != nil {
				return err
			}
			vulcanized[i] = v
			return nil
		})
	}
	if meta != nil {
		g.Go(func() error {
			md, err := meta.Metadata()
			if err != nil {
				return err
			}
			ds.Meta = md
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for i, t := range diffs {
		name := t.Name
		if name == "" {
			name = fmt.Sprintf("diff-%d", i+1)
		}
		if _, dup := ds.diffs[name]; dup {
			return nil, &tabular.ConfigError{Path: name, Err: errors.New("differential file given twice")}
		}
		ds.diffNames = append(ds.diffNames, name)
		ds.diffs[name] = vulcanized[i]
	}
	return ds, nil
}

// DiffNames returns the differential tables in the order given.
func (d *Dataset) DiffNames() []string {
	return append([]string(nil), d.diffNames...)
}

// Diff returns a vulcanized differential table by name.
func (d *Dataset) Diff(name string) (*matrix.Matrix, bool) {
	m, ok := d.diffs[name]
	return m, ok
}

// Label returns the display label of a gene.
func (d *Dataset) Label(id string) string {
	if l, ok := d.Labels[id]; ok && l != "" {
		return l
	}
	return id
}
