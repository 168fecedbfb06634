// Package config handles configuration loading for the heatmap-scatter server.
package config

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/heatmap-scatter/server/internal/data/tabular"
)

// Config represents the server configuration.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Data    DataConfig    `yaml:"data"`
	Heatmap HeatmapConfig `yaml:"heatmap"`
	Table   TableConfig   `yaml:"table"`
	Cache   CacheConfig   `yaml:"cache"`
	Render  RenderConfig  `yaml:"render"`
	Exports ExportsConfig `yaml:"exports"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Port        int      `yaml:"port" validate:"min=1,max=65535"`
	CORSOrigins []string `yaml:"cors_origins"`
	// HTMLError serves startup errors as a page instead of exiting.
	HTMLError bool `yaml:"html_error"`
}

// DataConfig names the input tables.
type DataConfig struct {
	Files  []string `yaml:"files" validate:"required_without=Demo"`
	Diffs  []string `yaml:"diffs"`
	Meta   string   `yaml:"meta"`
	Labels string   `yaml:"labels"`
	// Demo is "FRAMES,ROWS,COLS" of random data, used when no files are given.
	Demo string `yaml:"demo" validate:"omitempty,demodims"`
	Seed int64  `yaml:"seed"`
}

// HeatmapConfig holds the heatmap pipeline settings and view defaults.
type HeatmapConfig struct {
	// Top is how many of the most variable rows are drawn; 0 draws all.
	Top            int    `yaml:"top" validate:"gte=0"`
	LabelCutoff    int    `yaml:"label_cutoff" validate:"gte=0"`
	ZeroPoint      *bool  `yaml:"zero_point"`
	SkipZeroRows   bool   `yaml:"skip_zero_rows"`
	Scale          string `yaml:"scale" validate:"oneof=log linear"`
	Palette        string `yaml:"palette"`
	ReversePalette bool   `yaml:"reverse_palette"`
	ClusterRows    string `yaml:"cluster_rows" validate:"oneof=cluster 'no cluster'"`
	ClusterCols    string `yaml:"cluster_cols" validate:"oneof=cluster 'no cluster'"`
	LabelRows      string `yaml:"label_rows" validate:"oneof=auto always never"`
	LabelCols      string `yaml:"label_cols" validate:"oneof=auto always never"`
	Scaling        string `yaml:"scaling" validate:"oneof='no rescale' z-score"`
}

// ZeroPointEnabled reports whether log scales get a position-0 point.
func (h HeatmapConfig) ZeroPointEnabled() bool {
	return h.ZeroPoint == nil || *h.ZeroPoint
}

// TableConfig controls the table view.
type TableConfig struct {
	HTML     bool     `yaml:"html"`
	Truncate int      `yaml:"truncate" validate:"gte=0"`
	CSSURLs  []string `yaml:"css_urls"`
}

// CacheConfig contains caching settings.
type CacheConfig struct {
	ImageSizeMB     int `yaml:"image_size_mb" validate:"gte=1"`
	ImageTTLMinutes int `yaml:"image_ttl_minutes" validate:"gte=1"`
	QueryCacheSize  int `yaml:"query_cache_size" validate:"gte=1"`
}

// RenderConfig contains rendering settings.
type RenderConfig struct {
	CellWidth  int `yaml:"cell_width" validate:"gte=1"`
	CellHeight int `yaml:"cell_height" validate:"gte=1"`
}

// ExportsConfig configures asynchronous CSV exports.
type ExportsConfig struct {
	DBPath         string `yaml:"db_path" validate:"required"`
	Workers        int    `yaml:"workers" validate:"gte=1"`
	QueueSize      int    `yaml:"queue_size" validate:"gte=1"`
	ResultTTLHours int    `yaml:"result_ttl_hours" validate:"gte=1"`
}

// Load reads configuration from a YAML file. A missing file yields the
// defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return DefaultConfig(), nil
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	applyDefaults(&cfg)

	return &cfg, nil
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	zeroPoint := true
	return &Config{
		Server: ServerConfig{
			Port:        8050,
			CORSOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
		},
		Heatmap: HeatmapConfig{
			Top:         500,
			LabelCutoff: 40,
			ZeroPoint:   &zeroPoint,
			Scale:       "log",
			Palette:     "black-white",
			ClusterRows: "cluster",
			ClusterCols: "cluster",
			LabelRows:   "auto",
			LabelCols:   "auto",
			Scaling:     "no rescale",
		},
		Table: TableConfig{
			CSSURLs: []string{"/static/extra.css"},
		},
		Cache: CacheConfig{
			ImageSizeMB:     256,
			ImageTTLMinutes: 10,
			QueryCacheSize:  1024,
		},
		Render: RenderConfig{
			CellWidth:  16,
			CellHeight: 4,
		},
		Exports: ExportsConfig{
			DBPath:         "./data/exports.db",
			Workers:        2,
			QueueSize:      16,
			ResultTTLHours: 24,
		},
	}
}

func applyDefaults(cfg *Config) {
	defaults := DefaultConfig()

	if cfg.Server.Port == 0 {
		cfg.Server.Port = defaults.Server.Port
	}
	if len(cfg.Server.CORSOrigins) == 0 {
		cfg.Server.CORSOrigins = defaults.Server.CORSOrigins
	}

	h, dh := &cfg.Heatmap, defaults.Heatmap
	if h.LabelCutoff == 0 {
		h.LabelCutoff = dh.LabelCutoff
	}
	if h.ZeroPoint == nil {
		h.ZeroPoint = dh.ZeroPoint
	}
	setIfEmpty(&h.Scale, dh.Scale)
	setIfEmpty(&h.Palette, dh.Palette)
	setIfEmpty(&h.ClusterRows, dh.ClusterRows)
	setIfEmpty(&h.ClusterCols, dh.ClusterCols)
	setIfEmpty(&h.LabelRows, dh.LabelRows)
	setIfEmpty(&h.LabelCols, dh.LabelCols)
	setIfEmpty(&h.Scaling, dh.Scaling)

	if len(cfg.Table.CSSURLs) == 0 {
		cfg.Table.CSSURLs = defaults.Table.CSSURLs
	}

	if cfg.Cache.ImageSizeMB == 0 {
		cfg.Cache.ImageSizeMB = defaults.Cache.ImageSizeMB
	}
	if cfg.Cache.ImageTTLMinutes == 0 {
		cfg.Cache.ImageTTLMinutes = defaults.Cache.ImageTTLMinutes
	}
	if cfg.Cache.QueryCacheSize == 0 {
		cfg.Cache.QueryCacheSize = defaults.Cache.QueryCacheSize
	}
	if cfg.Render.CellWidth == 0 {
		cfg.Render.CellWidth = defaults.Render.CellWidth
	}
	if cfg.Render.CellHeight == 0 {
		cfg.Render.CellHeight = defaults.Render.CellHeight
	}

	e, de := &cfg.Exports, defaults.Exports
	setIfEmpty(&e.DBPath, de.DBPath)
	if e.Workers == 0 {
		e.Workers = de.Workers
	}
	if e.QueueSize == 0 {
		e.QueueSize = de.QueueSize
	}
	if e.ResultTTLHours == 0 {
		e.ResultTTLHours = de.ResultTTLHours
	}
}

func setIfEmpty(dst *string, def string) {
	if *dst == "" {
		*dst = def
	}
}

// Validate checks field constraints once flags have been applied.
func (c *Config) Validate() error {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.RegisterValidation("demodims", validateDemoDims); err != nil {
		return err
	}
	if err := v.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

func validateDemoDims(fl validator.FieldLevel) bool {
	_, err := tabular.ParseDemoDims(fl.Field().String())
	return err == nil
}
