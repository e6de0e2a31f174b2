// Package router exposes the map pipeline and the dataset store over HTTP.
package router

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"github.com/LouisNderitu20/GEOINSIGHTS-COMPLETE/internal/cache/parsecache"
	h3cluster "github.com/LouisNderitu20/GEOINSIGHTS-COMPLETE/internal/cluster/h3"
	"github.com/LouisNderitu20/GEOINSIGHTS-COMPLETE/internal/core/model"
	"github.com/LouisNderitu20/GEOINSIGHTS-COMPLETE/internal/core/observability"
	"github.com/LouisNderitu20/GEOINSIGHTS-COMPLETE/internal/datasets"
	"github.com/LouisNderitu20/GEOINSIGHTS-COMPLETE/internal/ingest"
	"github.com/LouisNderitu20/GEOINSIGHTS-COMPLETE/internal/session"
)

// UserHeader carries the caller id set by the authenticating proxy.
const UserHeader = "X-User-ID"

type DatasetStore interface {
	Save(ctx context.Context, owner, name, fileName string, data []byte) (datasets.Handle, error)
	ListFor(ctx context.Context, owner string) ([]datasets.Handle, error)
	Fetch(ctx context.Context, owner, id string) ([]byte, datasets.Handle, error)
	Delete(ctx context.Context, owner, id string) error
}

type Parser interface {
	Parse(content []byte, format model.Format) ([]model.Record, error)
	Key(content []byte, format model.Format) string
}

type Deps struct {
	Logger     *slog.Logger
	Sessions   *session.Registry
	Parser     Parser
	ParseCache *parsecache.Cache
	// Datasets may be nil when storage is disabled.
	Datasets       DatasetStore
	Clusterer      *h3cluster.Clusterer
	Policy         model.CategoryPolicy
	MaxUploadBytes int64
	OpTimeout      time.Duration
}

type API struct {
	log       *slog.Logger
	sessions  *session.Registry
	parser    Parser
	cache     *parsecache.Cache
	store     DatasetStore
	cluster   *h3cluster.Clusterer
	policy    model.CategoryPolicy
	maxUpload int64
	opTimeout time.Duration
}

func New(d Deps) *API {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.MaxUploadBytes <= 0 {
		d.MaxUploadBytes = 10 << 20
	}
	if d.OpTimeout <= 0 {
		d.OpTimeout = 250 * time.Millisecond
	}
	if d.Policy == "" {
		d.Policy = model.CategoryEmptyMatchesAll
	}
	return &API{
		log:       d.Logger,
		sessions:  d.Sessions,
		parser:    d.Parser,
		cache:     d.ParseCache,
		store:     d.Datasets,
		cluster:   d.Clusterer,
		policy:    d.Policy,
		maxUpload: d.MaxUploadBytes,
		opTimeout: d.OpTimeout,
	}
}

// Register adds every API route to r.
func (a *API) Register(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(observe)

		r.Post("/sessions", a.createSession)
		r.Route("/sessions/{id}", func(r chi.Router) {
			r.Delete("/", a.clearSession)
			r.Post("/upload", a.upload)
			r.Post("/load/{handle}", a.loadDataset)
			r.Get("/facets", a.facets)
			r.Get("/criteria", a.getCriteria)
			r.Put("/criteria", a.putCriteria)
			r.Get("/visible", a.visible)
			r.Get("/layers", a.layers)
			r.Get("/export.csv", a.exportCSV)
			r.Get("/export.geojson", a.exportGeoJSON)
		})

		r.Route("/datasets", func(r chi.Router) {
			r.Post("/", a.saveDataset)
			r.Get("/", a.listDatasets)
			r.Get("/{handle}", a.downloadDataset)
			r.Delete("/{handle}", a.deleteDataset)
		})
	})
}

type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}

// observe records request metrics labelled by the matched route pattern.
func observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
		next.ServeHTTP(sw, r)

		route := r.URL.Path
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		observability.ObserveHTTP(r.Method, route, sw.code, time.Since(start).Seconds())
	})
}

var (
	errBadRequest       = errors.New("bad request")
	errDatasetsDisabled = errors.New("dataset storage is disabled")
)

func badRequest(format string, args ...any) error {
	return fmt.Errorf("%w: %s", errBadRequest, fmt.Sprintf(format, args...))
}

// classify maps an error onto the status and message shown to the caller.
func classify(err error) (int, string) {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.Is(err, ingest.ErrInvalidFile), errors.As(err, &tooLarge):
		return http.StatusBadRequest, ingest.ErrInvalidFile.Error()
	case errors.Is(err, datasets.ErrUnauthorized):
		return http.StatusUnauthorized, datasets.ErrUnauthorized.Error()
	case errors.Is(err, datasets.ErrNotFound):
		return http.StatusNotFound, datasets.ErrNotFound.Error()
	case errors.Is(err, datasets.ErrNotCSV):
		return http.StatusBadRequest, datasets.ErrNotCSV.Error()
	case errors.Is(err, session.ErrUnknownSession):
		return http.StatusNotFound, session.ErrUnknownSession.Error()
	case errors.Is(err, errBadRequest):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, errDatasetsDisabled):
		return http.StatusServiceUnavailable, errDatasetsDisabled.Error()
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "upstream timeout"
	default:
		return http.StatusInternalServerError, "internal server error"
	}
}

func (a *API) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, msg := classify(err)
	if status >= http.StatusInternalServerError {
		a.log.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "err", err)
	} else {
		a.log.DebugContext(r.Context(), "request rejected", "path", r.URL.Path, "status", status, "err", err)
	}
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeAttachment(w http.ResponseWriter, r *http.Request, contentType, fileName, etag string, body []byte) {
	if etag != "" {
		w.Header().Set("ETag", etag)
		if r.Header.Get("If-None-Match") == etag {
			w.WriteHeader(http.StatusNotModified)
			return
		}
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", fileName))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}
