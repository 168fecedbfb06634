// Package service provides the business logic of the heatmap dashboard:
// selection state, the reactive rendering pipeline and the derived views.
package service

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/heatmap-scatter/server/internal/cache"
	"github.com/heatmap-scatter/server/internal/cluster"
	"github.com/heatmap-scatter/server/internal/dataset"
	"github.com/heatmap-scatter/server/internal/filter"
	"github.com/heatmap-scatter/server/internal/reactive"
	"github.com/heatmap-scatter/server/internal/render"
	"github.com/heatmap-scatter/server/internal/selection"
	"github.com/heatmap-scatter/server/internal/variance"
	"github.com/heatmap-scatter/server/pkg/colormap"
	"github.com/heatmap-scatter/server/pkg/matrix"
)

// Selection sources in tie-break order.
const (
	SourceSearch         = "search"
	SourceSampleBySample = "scatter-sample-by-sample"
	SourceVolcano        = "scatter-volcano"
	SourcePCA            = "scatter-pca"
)

// GeneSources lists the sources that select genes.
var GeneSources = []string{SourceSearch, SourceSampleBySample, SourceVolcano}

// ConditionSources lists the sources that select conditions.
var ConditionSources = []string{SourcePCA}

// ErrNotFound is returned for unknown conditions, diff files, components
// and metadata fields.
var ErrNotFound = errors.New("not found")

// DashboardConfig contains dashboard service configuration.
type DashboardConfig struct {
	Dataset  *dataset.Dataset
	Cache    *cache.Manager
	Renderer *render.HeatmapRenderer
	Palettes *colormap.Registry
	// Top is the number of most variable rows drawn; 0 draws all.
	Top          int
	LabelCutoff  int
	SkipZeroRows bool
	Defaults     View
	Table        render.TableFormatter
	// Clock stamps selection events; nil uses time.Now.
	Clock func() time.Time
}

// Dashboard serves every view of one dataset.
type Dashboard struct {
	ds       *dataset.Dataset
	cache    *cache.Manager
	renderer *render.HeatmapRenderer
	palettes *colormap.Registry
	top      int
	defaults View
	table    render.TableFormatter

	genes      *selection.Resolver
	conditions *selection.Resolver
	pipeline   *filter.Pipeline
	assembler  *render.Assembler
	engine     *cluster.Engine

	// mu serialises graph evaluation.
	mu          sync.Mutex
	geneState   *reactive.Input[selection.State]
	condState   *reactive.Input[selection.State]
	scaling     *reactive.Input[Scaling]
	clusterOpts *reactive.Input[cluster.Options]
	options     *reactive.Computed[filter.Options]
	filtered    *reactive.Computed[*matrix.Matrix]
	clustered   *reactive.Computed[*matrix.Matrix]
}

// NewDashboard creates the dashboard and its dependency graph.
func NewDashboard(cfg DashboardConfig) (*Dashboard, error) {
	if cfg.Dataset == nil {
		return nil, errors.New("dashboard needs a dataset")
	}
	if cfg.Palettes == nil {
		cfg.Palettes = colormap.NewRegistry()
	}
	if cfg.Renderer == nil {
		cfg.Renderer = render.NewHeatmapRenderer(render.DefaultConfig())
	}
	if cfg.Defaults == (View{}) {
		cfg.Defaults = DefaultView()
	}

	var opts []selection.ResolverOption
	if cfg.Clock != nil {
		opts = append(opts, selection.WithClock(cfg.Clock))
	}
	genes, err := selection.NewResolver(GeneSources, opts...)
	if err != nil {
		return nil, err
	}
	conditions, err := selection.NewResolver(ConditionSources, opts...)
	if err != nil {
		return nil, err
	}

	d := &Dashboard{
		ds:         cfg.Dataset,
		cache:      cfg.Cache,
		renderer:   cfg.Renderer,
		palettes:   cfg.Palettes,
		top:        cfg.Top,
		defaults:   cfg.Defaults,
		table:      cfg.Table,
		genes:      genes,
		conditions: conditions,
		pipeline:   filter.New(cfg.Dataset.Index),
		assembler: &render.Assembler{
			LabelCutoff: cfg.LabelCutoff,
			Labels:      cfg.Dataset.Labels,
			OnLinearFallback: func() {
				fallbacks.WithLabelValues("log_scale").Inc()
			},
		},
		engine: &cluster.Engine{
			OnFallback: func(axis cluster.Axis, _ error) {
				fallbacks.WithLabelValues("cluster_" + string(axis)).Inc()
			},
		},
	}
	d.buildGraph(cfg.SkipZeroRows)
	return d, nil
}

func (d *Dashboard) buildGraph(skipZeroRows bool) {
	d.geneState = reactive.NewInput(d.genes.State())
	d.condState = reactive.NewInput(d.conditions.State())
	d.scaling = reactive.NewInput(d.defaults.Scaling)
	d.clusterOpts = reactive.NewInput(cluster.Options{
		Rows:         d.defaults.ClusterRows,
		Cols:         d.defaults.ClusterCols,
		SkipZeroRows: skipZeroRows,
	})

	d.options = reactive.NewComputed("selection", func() (filter.Options, error) {
		return filter.FromPayloads(d.geneState.Get().Resolve(), d.condState.Get().Resolve()), nil
	}, d.geneState, d.condState)

	base := reactive.NewComputed("base", func() (*matrix.Matrix, error) {
		return d.base(d.scaling.Get())
	}, d.scaling)

	d.filtered = reactive.NewComputed("filtered", func() (*matrix.Matrix, error) {
		defer observe("filter", time.Now())
		m, err := base.Get()
		if err != nil {
			return nil, err
		}
		opts, err := d.options.Get()
		if err != nil {
			return nil, err
		}
		return d.pipeline.Filter(m, opts), nil
	}, base, d.options)

	truncated := reactive.NewComputed("truncated", func() (*matrix.Matrix, error) {
		defer observe("truncate", time.Now())
		m, err := d.filtered.Get()
		if err != nil {
			return nil, err
		}
		return variance.Truncate(m, d.top), nil
	}, d.filtered)

	d.clustered = reactive.NewComputed("clustered", func() (*matrix.Matrix, error) {
		defer observe("cluster", time.Now())
		m, err := truncated.Get()
		if err != nil {
			return nil, err
		}
		return d.engine.Cluster(m, d.clusterOpts.Get()), nil
	}, truncated, d.clusterOpts)
}

func (d *Dashboard) base(s Scaling) (*matrix.Matrix, error) {
	switch s {
	case NoRescale:
		return d.ds.Union, nil
	case ZScore:
		return d.ds.Scaled, nil
	default:
		return nil, fmt.Errorf("%w: scaling %q", ErrInvalidOption, s)
	}
}

// sync copies the resolver states and the view into the graph inputs.
// Inputs are only set when they changed so that memoised nodes survive.
// Callers hold d.mu.
func (d *Dashboard) sync(v View) {
	d.syncSelection()
	d.syncScaling(v.Scaling)
	co := d.clusterOpts.Get()
	if co.Rows != v.ClusterRows || co.Cols != v.ClusterCols {
		co.Rows, co.Cols = v.ClusterRows, v.ClusterCols
		d.clusterOpts.Set(co)
	}
}

func (d *Dashboard) syncSelection() {
	if st := d.genes.State(); !st.Equal(d.geneState.Get()) {
		d.geneState.Set(st)
	}
	if st := d.conditions.State(); !st.Equal(d.condState.Get()) {
		d.condState.Set(st)
	}
}

func (d *Dashboard) syncScaling(s Scaling) {
	if d.scaling.Get() != s {
		d.scaling.Set(s)
	}
}

// selectionOptions returns the filter options of the resolved selections.
func (d *Dashboard) selectionOptions() (filter.Options, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.syncSelection()
	return d.options.Get()
}

// filteredFor returns the selected, unclustered subset of the matrix
// chosen by s, in matrix order.
func (d *Dashboard) filteredFor(s Scaling) (*matrix.Matrix, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.syncSelection()
	d.syncScaling(s)
	return d.filtered.Get()
}

// Defaults returns the initial view.
func (d *Dashboard) Defaults() View { return d.defaults }

// Dataset returns the underlying dataset.
func (d *Dashboard) Dataset() *dataset.Dataset { return d.ds }

// Palettes returns the palette registry.
func (d *Dashboard) Palettes() *colormap.Registry { return d.palettes }

// SelectGenes records a gene selection event from source.
func (d *Dashboard) SelectGenes(source string, p selection.Payload) error {
	if _, err := d.genes.Record(source, p); err != nil {
		return err
	}
	selectionEvents.WithLabelValues("genes", source).Inc()
	return nil
}

// SelectConditions records a condition selection event from source.
func (d *Dashboard) SelectConditions(source string, p selection.Payload) error {
	if _, err := d.conditions.Record(source, p); err != nil {
		return err
	}
	selectionEvents.WithLabelValues("conditions", source).Inc()
	return nil
}

// Selection is the resolved state of both axes.
type Selection struct {
	Genes      selection.Payload `json:"genes"`
	Conditions selection.Payload `json:"conditions"`
}

// Selection returns the resolved gene and condition selections.
func (d *Dashboard) Selection() Selection {
	return Selection{Genes: d.genes.Resolve(), Conditions: d.conditions.Resolve()}
}

// SearchGenes returns gene ids matching query, cached by normalised query.
func (d *Dashboard) SearchGenes(query string) []string {
	if d.cache == nil {
		return d.ds.Index.Search(query)
	}
	key := cache.SearchKey(query)
	if ids, ok := d.cache.GetSearch(key); ok {
		return append([]string(nil), ids...)
	}
	ids := d.ds.Index.Search(query)
	d.cache.SetSearch(key, ids)
	return append([]string(nil), ids...)
}

// Heatmap runs the pipeline for the current selections and v.
func (d *Dashboard) Heatmap(v View) (render.Payload, error) {
	scale, err := d.palettes.Get(v.Palette, v.Reverse)
	if err != nil {
		return render.Payload{}, err
	}

	d.mu.Lock()
	d.sync(v)
	m, err := d.clustered.Get()
	d.mu.Unlock()
	if err != nil {
		return render.Payload{}, err
	}
	return d.assemble(m, scale, v), nil
}

func (d *Dashboard) assemble(m *matrix.Matrix, scale *colormap.Scale, v View) render.Payload {
	defer observe("assemble", time.Now())
	return d.assembler.Assemble(m, scale, render.Options{
		Log:       v.Log,
		RowLabels: v.LabelRows,
		ColLabels: v.LabelCols,
	})
}

// HeatmapPNG renders the heatmap for v, serving repeated requests for the
// same selections and view from the image cache.
func (d *Dashboard) HeatmapPNG(v View) ([]byte, error) {
	scale, err := d.palettes.Get(v.Palette, v.Reverse)
	if err != nil {
		return nil, err
	}

	// The key and the matrix must describe the same selection state.
	d.mu.Lock()
	d.sync(v)
	key, err := d.imageKey(v)
	if err != nil {
		d.mu.Unlock()
		return nil, err
	}
	if d.cache != nil {
		if data, ok := d.cache.GetImage(key); ok {
			d.mu.Unlock()
			imageCache.WithLabelValues("hit").Inc()
			return data, nil
		}
		imageCache.WithLabelValues("miss").Inc()
	}
	m, err := d.clustered.Get()
	d.mu.Unlock()
	if err != nil {
		return nil, err
	}

	p := d.assemble(m, scale, v)
	start := time.Now()
	data, err := d.renderer.Render(p)
	observe("render", start)
	if err != nil {
		return nil, fmt.Errorf("failed to render heatmap: %w", err)
	}

	if d.cache != nil {
		if err := d.cache.SetImage(key, data); err != nil {
			log.Printf("[Dashboard] heatmap image not cached: %v", err)
		}
	}
	return data, nil
}

// imageKey identifies the image of v for the graph's current inputs.
// Callers hold d.mu.
func (d *Dashboard) imageKey(v View) (string, error) {
	sel, err := json.Marshal(Selection{
		Genes:      d.geneState.Get().Resolve(),
		Conditions: d.condState.Get().Resolve(),
	})
	if err != nil {
		return "", err
	}
	params := v.params()
	params["selection"] = string(sel)
	return cache.ImageKey("heatmap", params), nil
}

// Summary describes the loaded dataset and the available choices.
type Summary struct {
	Genes          int      `json:"genes"`
	Conditions     []string `json:"conditions"`
	Palettes       []string `json:"palettes"`
	DiffFiles      []string `json:"diff_files"`
	MetadataFields []string `json:"metadata_fields"`
	Components     []string `json:"components"`
	Top            int      `json:"top"`
}

// Summary returns the dataset summary.
func (d *Dashboard) Summary() Summary {
	s := Summary{
		Genes:          d.ds.Union.Rows(),
		Conditions:     d.ds.Union.ColIDs(),
		Palettes:       d.palettes.Names(),
		DiffFiles:      d.ds.DiffNames(),
		MetadataFields: []string{},
		Components:     []string{},
		Top:            d.top,
	}
	if d.ds.Meta != nil {
		s.MetadataFields = append(s.MetadataFields, d.ds.Meta.Fields...)
	}
	if d.ds.PCA != nil {
		s.Components = append(s.Components, d.ds.PCA.Components...)
	}
	if s.DiffFiles == nil {
		s.DiffFiles = []string{}
	}
	return s
}
