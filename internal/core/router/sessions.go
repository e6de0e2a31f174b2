package router

import (
	"context"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"github.com/LouisNderitu20/GEOINSIGHTS-COMPLETE/internal/core/model"
	"github.com/LouisNderitu20/GEOINSIGHTS-COMPLETE/internal/core/observability"
	"github.com/LouisNderitu20/GEOINSIGHTS-COMPLETE/internal/datasets"
	"github.com/LouisNderitu20/GEOINSIGHTS-COMPLETE/internal/ingest"
	mylog "github.com/LouisNderitu20/GEOINSIGHTS-COMPLETE/internal/logger"
	"github.com/LouisNderitu20/GEOINSIGHTS-COMPLETE/internal/pipeline"
	"github.com/LouisNderitu20/GEOINSIGHTS-COMPLETE/internal/project"
	"github.com/LouisNderitu20/GEOINSIGHTS-COMPLETE/internal/render"
	"github.com/LouisNderitu20/GEOINSIGHTS-COMPLETE/internal/session"
)

type stateView struct {
	Records  int            `json:"records"`
	Criteria model.Criteria `json:"criteria"`
	Facets   model.Facets   `json:"facets"`
}

func viewOf(st pipeline.State) stateView {
	return stateView{Records: len(st.Records), Criteria: st.Criteria, Facets: st.Facets}
}

func (a *API) lookupSession(r *http.Request) (*session.Session, context.Context, error) {
	id := chi.URLParam(r, "id")
	ctx := mylog.WithSession(r.Context(), id)
	s, err := a.sessions.Get(id)
	if err != nil {
		return nil, ctx, err
	}
	return s, ctx, nil
}

func (a *API) createSession(w http.ResponseWriter, r *http.Request) {
	s := a.sessions.Create()
	a.log.InfoContext(mylog.WithSession(r.Context(), s.ID), "session created")
	writeJSON(w, http.StatusCreated, struct {
		ID string `json:"id"`
		stateView
	}{ID: s.ID, stateView: viewOf(s.Snapshot())})
}

// clearSession drops the dataset and the criteria but keeps the session.
func (a *API) clearSession(w http.ResponseWriter, r *http.Request) {
	s, _, err := a.lookupSession(r)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	st, _ := s.Update(func(st pipeline.State) (pipeline.State, error) { return pipeline.Clear(st), nil })
	writeJSON(w, http.StatusOK, viewOf(st))
}

func (a *API) upload(w http.ResponseWriter, r *http.Request) {
	s, ctx, err := a.lookupSession(r)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	format, ok := uploadFormat(r)
	if !ok {
		a.writeError(w, r, ingest.ErrInvalidFile)
		return
	}
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, a.maxUpload))
	if err != nil {
		a.writeError(w, r, err)
		return
	}

	st, err := a.ingest(ctx, s, body, format)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, viewOf(st))
}

// loadDataset ingests one of the caller's stored datasets into the session.
func (a *API) loadDataset(w http.ResponseWriter, r *http.Request) {
	s, ctx, err := a.lookupSession(r)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	if a.store == nil {
		a.writeError(w, r, errDatasetsDisabled)
		return
	}
	who, err := owner(r)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	handle := chi.URLParam(r, "handle")

	opCtx, cancel := context.WithTimeout(mylog.WithOwner(ctx, who), a.opTimeout)
	data, _, err := a.store.Fetch(opCtx, who, handle)
	cancel()
	if err != nil {
		a.writeError(w, r, err)
		return
	}

	st, err := a.ingest(ctx, s, data, model.FormatCSV)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	if a.cache != nil {
		a.cache.Tag(handle, a.parser.Key(data, model.FormatCSV))
	}
	writeJSON(w, http.StatusOK, viewOf(st))
}

func (a *API) ingest(ctx context.Context, s *session.Session, body []byte, format model.Format) (pipeline.State, error) {
	st, err := s.Update(func(st pipeline.State) (pipeline.State, error) {
		return pipeline.Ingest(st, a.parser, body, format)
	})
	if err != nil {
		observability.ObserveIngest(string(format), 0, err)
		a.log.InfoContext(ctx, "upload rejected", "format", string(format), "bytes", len(body), "err", err)
		return st, err
	}
	observability.ObserveIngest(string(format), len(st.Records), nil)
	a.log.InfoContext(ctx, "dataset ingested", "format", string(format), "records", len(st.Records))
	return st, nil
}

func (a *API) facets(w http.ResponseWriter, r *http.Request) {
	s, _, err := a.lookupSession(r)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.Snapshot().Facets)
}

func (a *API) getCriteria(w http.ResponseWriter, r *http.Request) {
	s, _, err := a.lookupSession(r)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.Snapshot().Criteria)
}

func (a *API) putCriteria(w http.ResponseWriter, r *http.Request) {
	s, _, err := a.lookupSession(r)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	var c model.Criteria
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&c); err != nil {
		a.writeError(w, r, badRequest("invalid criteria: %v", err))
		return
	}
	st, _ := s.Update(func(st pipeline.State) (pipeline.State, error) { return st.WithCriteria(c), nil })
	writeJSON(w, http.StatusOK, st.Criteria)
}

func (a *API) evaluate(s *session.Session) []model.Record {
	start := time.Now()
	v := s.Snapshot().Visible(a.policy)
	observability.ObserveFilter(time.Since(start).Seconds(), len(v))
	return v
}

func (a *API) visible(w http.ResponseWriter, r *http.Request) {
	s, _, err := a.lookupSession(r)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	v := a.evaluate(s)
	writeJSON(w, http.StatusOK, struct {
		Count   int            `json:"count"`
		Records []model.Record `json:"records"`
	}{Count: len(v), Records: v})
}

func (a *API) layers(w http.ResponseWriter, r *http.Request) {
	s, ctx, err := a.lookupSession(r)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	zoom := 0
	if raw := strings.TrimSpace(r.URL.Query().Get("zoom")); raw != "" {
		z, err := strconv.Atoi(raw)
		if err != nil || z < 0 || z > 30 {
			a.writeError(w, r, badRequest("invalid zoom %q", raw))
			return
		}
		zoom = z
	}

	l := render.NewLayers(project.Project(a.evaluate(s)), a.cluster, zoom)
	w.Header().Set("Content-Type", "application/json")
	if err := render.NewJSON(w).RenderLayers(ctx, l); err != nil {
		a.log.WarnContext(ctx, "render layers", "err", err)
	}
}

func (a *API) exportCSV(w http.ResponseWriter, r *http.Request) {
	s, _, err := a.lookupSession(r)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	body := project.ExportCSV(a.evaluate(s))
	observability.IncExport("csv")
	writeAttachment(w, r, project.CSVContentType, project.CSVFileName, project.ETag(body), body)
}

func (a *API) exportGeoJSON(w http.ResponseWriter, r *http.Request) {
	s, _, err := a.lookupSession(r)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	body, err := project.ExportGeoJSON(a.evaluate(s))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	observability.IncExport("geojson")
	writeAttachment(w, r, project.GeoJSONContentType, project.GeoJSONFileName, project.ETag(body), body)
}

// uploadFormat reads the format from ?format=, then from the extension of
// ?filename=, then from the Content-Type.
func uploadFormat(r *http.Request) (model.Format, bool) {
	q := r.URL.Query()
	if f, ok := model.ParseFormat(q.Get("format")); ok {
		return f, true
	}
	if f, ok := model.FormatFromName(q.Get("filename")); ok {
		return f, true
	}
	mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil {
		return "", false
	}
	switch mt {
	case "text/csv":
		return model.FormatCSV, true
	case "application/json":
		return model.FormatJSON, true
	}
	return "", false
}

// owner returns the caller id or ErrUnauthorized.
func owner(r *http.Request) (string, error) {
	o := strings.TrimSpace(r.Header.Get(UserHeader))
	if o == "" {
		return "", datasets.ErrUnauthorized
	}
	return o, nil
}

