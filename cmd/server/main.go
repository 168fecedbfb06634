// Package main is the entry point for the heatmap-scatter server.
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/heatmap-scatter/server/internal/api"
	"github.com/heatmap-scatter/server/internal/cache"
	"github.com/heatmap-scatter/server/internal/config"
	"github.com/heatmap-scatter/server/internal/data/tabular"
	"github.com/heatmap-scatter/server/internal/dataset"
	"github.com/heatmap-scatter/server/internal/render"
	"github.com/heatmap-scatter/server/internal/service"
	"github.com/heatmap-scatter/server/pkg/colormap"
)

var flags struct {
	config string

	files  []string
	diffs  []string
	meta   string
	labels string
	demo   string
	seed   int64

	top            int
	clusterRows    string
	clusterCols    string
	palette        string
	reversePalette bool

	port          int
	htmlError     bool
	truncateTable int
	htmlTable     bool
}

var rootCmd = &cobra.Command{
	Use:   "heatmap-scatter",
	Short: "Serve an interactive heatmap and scatter plot dashboard for expression tables",
	Long: `heatmap-scatter loads one or more expression tables (genes by conditions),
optional differential expression and condition metadata tables, and serves
linked heatmap, scatter, table and export views over HTTP.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(flags.config)
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		applyFlags(cmd, cfg)
		return serve(cfg)
	},
}

func init() {
	f := rootCmd.Flags()
	f.StringVar(&flags.config, "config", "config/server.yaml", "Path to configuration file")

	f.StringSliceVar(&flags.files, "files", nil, "Expression tables, merged on gene id")
	f.StringSliceVar(&flags.diffs, "diffs", nil, "Differential expression tables for the volcano plot")
	f.StringVar(&flags.meta, "meta", "", "Condition metadata table")
	f.StringVar(&flags.labels, "labels", "", "Two-column table of gene id and display label")
	f.StringVar(&flags.demo, "demo", "", "Generate random data instead of reading files: FRAMES,ROWS,COLS")
	f.Int64Var(&flags.seed, "seed", 0, "Random seed for --demo")

	f.IntVar(&flags.top, "top", 0, "Number of most variable genes drawn in the heatmap; 0 draws all")
	f.StringVar(&flags.clusterRows, "cluster-rows", "", "Default row clustering: 'cluster' or 'no cluster'")
	f.StringVar(&flags.clusterCols, "cluster-cols", "", "Default column clustering: 'cluster' or 'no cluster'")
	f.StringVar(&flags.palette, "palette", "", "Default heatmap palette")
	f.BoolVar(&flags.reversePalette, "reverse-palette", false, "Reverse the default palette")

	f.IntVar(&flags.port, "port", 0, "HTTP port")
	f.BoolVar(&flags.htmlError, "html-error", false, "Serve startup errors as an HTML page instead of exiting")
	f.IntVar(&flags.truncateTable, "truncate-table", 0, "Limit the table view to this many rows")
	f.BoolVar(&flags.htmlTable, "html-table", false, "Render the table view as an HTML table")
}

// applyFlags overrides cfg with every flag given on the command line.
func applyFlags(cmd *cobra.Command, cfg *config.Config) {
	changed := cmd.Flags().Changed

	if changed("files") {
		cfg.Data.Files = flags.files
	}
	if changed("diffs") {
		cfg.Data.Diffs = flags.diffs
	}
	if changed("meta") {
		cfg.Data.Meta = flags.meta
	}
	if changed("labels") {
		cfg.Data.Labels = flags.labels
	}
	if changed("demo") {
		cfg.Data.Demo = flags.demo
	}
	if changed("seed") {
		cfg.Data.Seed = flags.seed
	}
	if changed("top") {
		cfg.Heatmap.Top = flags.top
	}
	if changed("cluster-rows") {
		cfg.Heatmap.ClusterRows = flags.clusterRows
	}
	if changed("cluster-cols") {
		cfg.Heatmap.ClusterCols = flags.clusterCols
	}
	if changed("palette") {
		cfg.Heatmap.Palette = flags.palette
	}
	if changed("reverse-palette") {
		cfg.Heatmap.ReversePalette = flags.reversePalette
	}
	if changed("port") {
		cfg.Server.Port = flags.port
	}
	if changed("html-error") {
		cfg.Server.HTMLError = flags.htmlError
	}
	if changed("truncate-table") {
		cfg.Table.Truncate = flags.truncateTable
	}
	if changed("html-table") {
		cfg.Table.HTML = flags.htmlTable
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serve(cfg *config.Config) error {
	log.Printf("Starting heatmap-scatter server on port %d", cfg.Server.Port)
	ctx := context.Background()

	cacheManager, err := cache.NewManager(cache.Config{
		ImageCacheSizeMB: cfg.Cache.ImageSizeMB,
		ImageTTL:         time.Duration(cfg.Cache.ImageTTLMinutes) * time.Minute,
		QueryCacheSize:   cfg.Cache.QueryCacheSize,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize cache: %w", err)
	}
	defer cacheManager.Close()

	var (
		router     http.Handler
		jobManager *api.JobManager
	)
	dashboard, err := buildDashboard(ctx, cfg, cacheManager)
	if err == nil {
		jobManager, err = api.NewJobManager(api.JobManagerConfig{
			Workers:       cfg.Exports.Workers,
			QueueSize:     cfg.Exports.QueueSize,
			SQLitePath:    cfg.Exports.DBPath,
			Retention:     time.Duration(cfg.Exports.ResultTTLHours) * time.Hour,
			CleanupPeriod: 1 * time.Hour,
		})
		if err != nil {
			err = fmt.Errorf("failed to initialize export job manager: %w", err)
		}
	}

	switch {
	case err != nil && !cfg.Server.HTMLError:
		return err
	case err != nil:
		log.Printf("Startup failed, serving error page: %v", err)
		router = api.NewErrorRouter(err, cfg.Server.CORSOrigins)
	default:
		log.Printf("Export job manager: workers=%d, queue=%d, retention=%dh, sqlite=%s",
			cfg.Exports.Workers, cfg.Exports.QueueSize, cfg.Exports.ResultTTLHours, cfg.Exports.DBPath)
		jobManager.Executor = api.DashboardExecutor(dashboard)
		jobManager.Start()
		defer jobManager.Stop()

		router = api.NewRouter(api.RouterConfig{
			Dashboard:   dashboard,
			CORSOrigins: cfg.Server.CORSOrigins,
			JobManager:  jobManager,
		})
	}

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Start server in goroutine
	serverErr := make(chan error, 1)
	go func() {
		log.Printf("Server listening on http://localhost:%d", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-serverErr:
		return fmt.Errorf("server failed: %w", err)
	}

	log.Println("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	log.Println("Server stopped")
	return nil
}

// buildDashboard validates cfg, loads the dataset and wires the dashboard.
func buildDashboard(ctx context.Context, cfg *config.Config, cacheManager *cache.Manager) (*service.Dashboard, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	src := dataset.Sources{
		Files:  cfg.Data.Files,
		Diffs:  cfg.Data.Diffs,
		Meta:   cfg.Data.Meta,
		Labels: cfg.Data.Labels,
		Seed:   cfg.Data.Seed,
	}
	if cfg.Data.Demo != "" {
		dims, err := tabular.ParseDemoDims(cfg.Data.Demo)
		if err != nil {
			return nil, err
		}
		src.Demo = &dims
	}
	ds, err := dataset.Load(ctx, src)
	if err != nil {
		return nil, fmt.Errorf("failed to load dataset: %w", err)
	}
	log.Printf("Loaded %d genes x %d conditions, %d differential table(s)",
		ds.Union.Rows(), ds.Union.Cols(), len(ds.DiffNames()))

	defaults, err := viewDefaults(cfg.Heatmap)
	if err != nil {
		return nil, err
	}

	palettes := colormap.NewRegistry(colormap.WithZeroPoint(cfg.Heatmap.ZeroPointEnabled()))
	if _, err := palettes.Get(defaults.Palette, defaults.Reverse); err != nil {
		return nil, err
	}

	return service.NewDashboard(service.DashboardConfig{
		Dataset: ds,
		Cache:   cacheManager,
		Renderer: render.NewHeatmapRenderer(render.Config{
			CellWidth:  cfg.Render.CellWidth,
			CellHeight: cfg.Render.CellHeight,
			Padding:    10,
		}),
		Palettes:     palettes,
		Top:          cfg.Heatmap.Top,
		LabelCutoff:  cfg.Heatmap.LabelCutoff,
		SkipZeroRows: cfg.Heatmap.SkipZeroRows,
		Defaults:     defaults,
		Table: render.TableFormatter{
			HTMLTable: cfg.Table.HTML,
			Truncate:  cfg.Table.Truncate,
			CSSURLs:   cfg.Table.CSSURLs,
		},
	})
}

func viewDefaults(h config.HeatmapConfig) (service.View, error) {
	v := service.View{
		Log:     h.Scale == "log",
		Palette: h.Palette,
		Reverse: h.ReversePalette,
	}
	var err error
	if v.ClusterRows, err = service.ParseClusterMode(h.ClusterRows); err != nil {
		return v, err
	}
	if v.ClusterCols, err = service.ParseClusterMode(h.ClusterCols); err != nil {
		return v, err
	}
	if v.LabelRows, err = render.ParseLabelMode(h.LabelRows); err != nil {
		return v, err
	}
	if v.LabelCols, err = render.ParseLabelMode(h.LabelCols); err != nil {
		return v, err
	}
	if v.Scaling, err = service.ParseScaling(h.Scaling); err != nil {
		return v, err
	}
	return v, nil
}
