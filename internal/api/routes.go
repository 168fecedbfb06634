// Package api provides HTTP handlers for the heatmap-scatter server.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/heatmap-scatter/server/internal/exportstore"
	"github.com/heatmap-scatter/server/internal/selection"
	"github.com/heatmap-scatter/server/internal/service"
	"github.com/heatmap-scatter/server/pkg/colormap"
)

// RouterConfig contains router configuration.
type RouterConfig struct {
	Dashboard   *service.Dashboard
	CORSOrigins []string
	JobManager  *JobManager
}

// NewRouter creates a new HTTP router.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := newBaseRouter(cfg.CORSOrigins)
	d := cfg.Dashboard

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/dataset", datasetHandler(d))
		r.Get("/genes", genesHandler(d))

		r.Get("/selection", selectionHandler(d))
		r.Post("/selection/genes/{source}", selectGenesHandler(d))
		r.Post("/selection/conditions/{source}", selectConditionsHandler(d))

		r.Get("/heatmap", heatmapHandler(d))
		r.Get("/heatmap.png", heatmapPNGHandler(d))

		r.Get("/scatter/sample-by-sample", sampleBySampleHandler(d))
		r.Get("/scatter/volcano", volcanoHandler(d))
		r.Get("/scatter/pca", pcaHandler(d))

		r.Get("/table", tableHandler(d))
		r.Get("/list/genes", geneListHandler(d))
		r.Get("/list/conditions", conditionListHandler(d))
		r.Get("/export.csv", exportCSVHandler(d))

		r.Route("/exports", func(r chi.Router) {
			r.Post("/", exportSubmitHandler(d, cfg.JobManager))
			r.Get("/", exportListHandler(cfg.JobManager))
			r.Get("/{job_id}", exportStatusHandler(cfg.JobManager))
			r.Get("/{job_id}/result", exportResultHandler(cfg.JobManager))
			r.Delete("/{job_id}", exportDeleteHandler(cfg.JobManager))
		})
	})

	return r
}

// NewErrorRouter answers every request with a page describing a startup
// failure, so that the error is visible where the dashboard was expected.
func NewErrorRouter(startupErr error, corsOrigins []string) *chi.Mux {
	r := newBaseRouter(corsOrigins)
	page := fmt.Sprintf(
		"<!DOCTYPE html><html><head><title>Error</title></head><body><h1>Error</h1><pre>%s</pre></body></html>",
		html.EscapeString(startupErr.Error()),
	)
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(page))
	})
	return r
}

func newBaseRouter(corsOrigins []string) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))

	// CORS
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   corsOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	return r
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeHTML(w http.ResponseWriter, body string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write([]byte(body))
}

// writeServiceError maps service errors to status codes.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidOption):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, service.ErrNotFound),
		errors.Is(err, colormap.ErrUnknownPalette),
		errors.Is(err, selection.ErrUnknownSource):
		http.Error(w, err.Error(), http.StatusNotFound)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func parseView(d *service.Dashboard, r *http.Request) (service.View, error) {
	return service.ParseView(r.URL.Query(), d.Defaults())
}

func datasetHandler(d *service.Dashboard) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		v := d.Defaults()
		scale := "log"
		if !v.Log {
			scale = "linear"
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"summary": d.Summary(),
			"defaults": map[string]interface{}{
				"scale":        scale,
				"palette":      v.Palette,
				"reverse":      v.Reverse,
				"cluster_rows": v.ClusterRows,
				"cluster_cols": v.ClusterCols,
				"label_rows":   v.LabelRows,
				"label_cols":   v.LabelCols,
				"scaling":      v.Scaling,
			},
		})
	}
}

func genesHandler(d *service.Dashboard) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ids := d.SearchGenes(r.URL.Query().Get("q"))
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"genes": ids,
			"total": len(ids),
		})
	}
}

func selectionHandler(d *service.Dashboard) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, d.Selection())
	}
}

// selectionRequest is {"query": "..."}, {"ids": [...]} or {} to clear.
type selectionRequest struct {
	Query *string  `json:"query"`
	IDs   []string `json:"ids"`
}

func (req selectionRequest) payload() (selection.Payload, error) {
	switch {
	case req.Query != nil && req.IDs != nil:
		return selection.Payload{}, errors.New("query and ids are mutually exclusive")
	case req.Query != nil:
		return selection.Query(*req.Query), nil
	case req.IDs != nil:
		return selection.IDs(req.IDs), nil
	default:
		return selection.None(), nil
	}
}

func decodeSelection(r *http.Request) (selection.Payload, error) {
	var req selectionRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return selection.Payload{}, fmt.Errorf("invalid request body: %w", err)
		}
	}
	return req.payload()
}

func selectGenesHandler(d *service.Dashboard) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, err := decodeSelection(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if err := d.SelectGenes(chi.URLParam(r, "source"), p); err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, d.Selection())
	}
}

func selectConditionsHandler(d *service.Dashboard) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, err := decodeSelection(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if err := d.SelectConditions(chi.URLParam(r, "source"), p); err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, d.Selection())
	}
}

func heatmapHandler(d *service.Dashboard) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		v, err := parseView(d, r)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		p, err := d.Heatmap(v)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, p)
	}
}

func heatmapPNGHandler(d *service.Dashboard) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		v, err := parseView(d, r)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		data, err := d.HeatmapPNG(v)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		// Depends on the selection state, so never cached by clients.
		w.Header().Set("Content-Type", "image/png")
		w.Header().Set("Cache-Control", "no-store")
		w.Write(data)
	}
}

func sampleBySampleHandler(d *service.Dashboard) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		v, err := parseView(d, r)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		q := r.URL.Query()
		s, err := d.SampleBySample(q.Get("x"), q.Get("y"), v)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, s)
	}
}

func volcanoHandler(d *service.Dashboard) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		s, err := d.Volcano(q.Get("file"), q.Get("x"), q.Get("y"))
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, s)
	}
}

func pcaHandler(d *service.Dashboard) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		s, err := d.PCA(q.Get("x"), q.Get("y"), q.Get("color_by"), q.Get("palette"))
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, s)
	}
}

func tableHandler(d *service.Dashboard) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		v, err := parseView(d, r)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		body, err := d.Table(v)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeHTML(w, body)
	}
}

func geneListHandler(d *service.Dashboard) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := d.GeneList()
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeHTML(w, body)
	}
}

func conditionListHandler(d *service.Dashboard) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := d.ConditionList()
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeHTML(w, body)
	}
}

func exportCSVHandler(d *service.Dashboard) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		v, err := parseView(d, r)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", `attachment; filename="selection.csv"`)
		if err := d.ExportCSV(w, v.Scaling); err != nil {
			http.Error(w, "failed to write csv: "+err.Error(), http.StatusInternalServerError)
		}
	}
}

type exportSubmitRequest struct {
	Scaling string `json:"scaling"`
}

func exportSubmitHandler(d *service.Dashboard, jm *JobManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if jm == nil {
			http.Error(w, "job manager not configured", http.StatusNotImplemented)
			return
		}

		var req exportSubmitRequest
		if r.ContentLength != 0 {
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				http.Error(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
				return
			}
		}
		scaling := d.Defaults().Scaling
		if req.Scaling != "" {
			s, err := service.ParseScaling(req.Scaling)
			if err != nil {
				writeServiceError(w, err)
				return
			}
			scaling = s
		}

		params, err := d.ExportParams(scaling)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		job, err := jm.Submit(params)
		if err != nil {
			http.Error(w, "failed to submit job: "+err.Error(), http.StatusInternalServerError)
			return
		}
		if job.Status == exportstore.JobStatusFailed {
			http.Error(w, job.Error, http.StatusServiceUnavailable)
			return
		}

		writeJSON(w, http.StatusAccepted, map[string]interface{}{
			"job_id": job.ID,
			"status": job.Status,
		})
	}
}

func exportListHandler(jm *JobManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if jm == nil {
			http.Error(w, "job manager not configured", http.StatusNotImplemented)
			return
		}
		jobs, err := jm.Store().ListJobs()
		if err != nil {
			http.Error(w, "failed to list jobs: "+err.Error(), http.StatusInternalServerError)
			return
		}
		if jobs == nil {
			jobs = []*exportstore.ExportJob{}
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"jobs": jobs})
	}
}

func exportStatusHandler(jm *JobManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if jm == nil {
			http.Error(w, "job manager not configured", http.StatusNotImplemented)
			return
		}
		job := jm.Get(chi.URLParam(r, "job_id"))
		if job == nil {
			http.Error(w, "job not found", http.StatusNotFound)
			return
		}
		writeJSON(w, http.StatusOK, job)
	}
}

func exportResultHandler(jm *JobManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if jm == nil {
			http.Error(w, "job manager not configured", http.StatusNotImplemented)
			return
		}
		jobID := chi.URLParam(r, "job_id")
		job := jm.Get(jobID)
		if job == nil {
			http.Error(w, "job not found", http.StatusNotFound)
			return
		}
		if job.Status != exportstore.JobStatusCompleted {
			http.Error(w, "job not completed (status: "+string(job.Status)+")", http.StatusBadRequest)
			return
		}
		csv, ok := jm.Result(jobID)
		if !ok {
			http.Error(w, "result not found", http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="export-%s.csv"`, jobID))
		w.Write(csv)
	}
}

func exportDeleteHandler(jm *JobManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if jm == nil {
			http.Error(w, "job manager not configured", http.StatusNotImplemented)
			return
		}
		jobID := chi.URLParam(r, "job_id")
		if jm.Get(jobID) == nil {
			http.Error(w, "job not found", http.StatusNotFound)
			return
		}
		if err := jm.Delete(jobID); err != nil {
			http.Error(w, "failed to delete job: "+err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"job_id":  jobID,
			"deleted": true,
		})
	}
}
