package router

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/LouisNderitu20/GEOINSIGHTS-COMPLETE/internal/datasets"
	mylog "github.com/LouisNderitu20/GEOINSIGHTS-COMPLETE/internal/logger"
)

// storeRequest resolves the caller and a bounded context for one store call.
func (a *API) storeRequest(r *http.Request) (string, context.Context, context.CancelFunc, error) {
	if a.store == nil {
		return "", nil, nil, errDatasetsDisabled
	}
	who, err := owner(r)
	if err != nil {
		return "", nil, nil, err
	}
	ctx, cancel := context.WithTimeout(mylog.WithOwner(r.Context(), who), a.opTimeout)
	return who, ctx, cancel, nil
}

// saveDataset accepts either a multipart form with a "file" part and an
// optional "name" field, or a raw body with ?filename= and ?name=.
func (a *API) saveDataset(w http.ResponseWriter, r *http.Request) {
	who, ctx, cancel, err := a.storeRequest(r)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	defer cancel()

	fileName, name, data, err := a.readDatasetUpload(w, r)
	if err != nil {
		a.writeError(w, r, err)
		return
	}

	h, err := a.store.Save(ctx, who, name, fileName, data)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.log.InfoContext(ctx, "dataset saved", "dataset", h.ID, "bytes", h.FileSize)
	writeJSON(w, http.StatusOK, struct {
		Success bool            `json:"success"`
		Message string          `json:"message"`
		File    datasets.Handle `json:"file"`
	}{Success: true, Message: "File uploaded successfully!", File: h})
}

func (a *API) readDatasetUpload(w http.ResponseWriter, r *http.Request) (fileName, name string, data []byte, err error) {
	r.Body = http.MaxBytesReader(w, r.Body, a.maxUpload)

	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		if err := r.ParseMultipartForm(a.maxUpload); err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				return "", "", nil, err
			}
			return "", "", nil, badRequest("invalid multipart form: %v", err)
		}
		f, fh, err := r.FormFile("file")
		if err != nil {
			return "", "", nil, badRequest("No file uploaded")
		}
		defer f.Close()
		data, err = io.ReadAll(f)
		if err != nil {
			return "", "", nil, err
		}
		return fh.Filename, r.FormValue("name"), data, nil
	}

	q := r.URL.Query()
	fileName = strings.TrimSpace(q.Get("filename"))
	if fileName == "" {
		return "", "", nil, badRequest("No file uploaded")
	}
	data, err = io.ReadAll(r.Body)
	if err != nil {
		return "", "", nil, err
	}
	return fileName, q.Get("name"), data, nil
}

func (a *API) listDatasets(w http.ResponseWriter, r *http.Request) {
	who, ctx, cancel, err := a.storeRequest(r)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	defer cancel()

	files, err := a.store.ListFor(ctx, who)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	if files == nil {
		files = []datasets.Handle{}
	}
	writeJSON(w, http.StatusOK, struct {
		Success bool              `json:"success"`
		Files   []datasets.Handle `json:"files"`
	}{Success: true, Files: files})
}

func (a *API) downloadDataset(w http.ResponseWriter, r *http.Request) {
	who, ctx, cancel, err := a.storeRequest(r)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	defer cancel()

	data, h, err := a.store.Fetch(ctx, who, chi.URLParam(r, "handle"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeAttachment(w, r, "text/csv", h.FileName, "", data)
}

func (a *API) deleteDataset(w http.ResponseWriter, r *http.Request) {
	who, ctx, cancel, err := a.storeRequest(r)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	defer cancel()

	handle := chi.URLParam(r, "handle")
	if err := a.store.Delete(ctx, who, handle); err != nil {
		a.writeError(w, r, err)
		return
	}
	if a.cache != nil {
		a.cache.EvictHandle(handle)
	}
	a.log.InfoContext(ctx, "dataset deleted", "dataset", handle)
	writeJSON(w, http.StatusOK, struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
	}{Success: true, Message: "File deleted successfully"})
}
