package api

import (
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/starford/arbor/internal/document"
	"github.com/starford/arbor/internal/index"
	"github.com/starford/arbor/internal/plotservice"
)

const maxDocumentBytes = 10 << 20

// Publisher receives change notifications for connected UIs.
type Publisher interface {
	PublishPlotEvent(kind, path string)
	PublishEdits(data any, err error)
}

type nopPublisher struct{}

func (nopPublisher) PublishPlotEvent(string, string) {}
func (nopPublisher) PublishEdits(any, error)         {}

// Handler holds the plot route handlers.
type Handler struct {
	svc    *plotservice.Service
	events Publisher
}

// NewHandler returns a Handler. A nil publisher drops events.
func NewHandler(svc *plotservice.Service, events Publisher) *Handler {
	if events == nil {
		events = nopPublisher{}
	}
	return &Handler{svc: svc, events: events}
}

// plotPath returns the wildcard part of the URL, accepting encoded slashes.
func plotPath(r *http.Request) string {
	raw := strings.TrimPrefix(chi.URLParam(r, "*"), "/")
	if raw == "" {
		return ""
	}
	decoded, err := url.PathUnescape(raw)
	if err != nil {
		return raw
	}
	return decoded
}

// readDocument decodes a JSON request body keeping integer precision.
func readDocument(w http.ResponseWriter, r *http.Request) (document.Object, bool) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxDocumentBytes))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("failed to read body"))
		return nil, false
	}
	doc, err := document.Parse(body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return nil, false
	}
	return doc, true
}

func queryBool(q url.Values, key string) *bool {
	v, err := strconv.ParseBool(q.Get(key))
	if err != nil {
		return nil
	}
	return &v
}

// ListPlots handles GET /api/plots.
func (h *Handler) ListPlots(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := index.ListFilter{
		HasTree: queryBool(q, "has_tree"),
		Pending: queryBool(q, "pending"),
	}
	f.Limit, _ = strconv.Atoi(q.Get("limit"))
	f.Offset, _ = strconv.Atoi(q.Get("offset"))

	rows, total, err := h.svc.ListPlots(r.Context(), f)
	if err != nil {
		writeError(w, "list plots", err)
		return
	}
	if rows == nil {
		rows = []index.PlotRow{}
	}
	writeJSON(w, http.StatusOK, PlotListResponse{Plots: rows, Total: total})
}

// GetPlot handles GET /api/plots/*.
func (h *Handler) GetPlot(w http.ResponseWriter, r *http.Request) {
	path := plotPath(r)
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	detail, err := h.svc.GetPlot(r.Context(), path)
	if err != nil {
		writeError(w, "get plot", err)
		return
	}
	w.Header().Set("ETag", `"`+detail.Checksum+`"`)
	writeJSON(w, http.StatusOK, detail)
}

// CreatePlot handles POST /api/plots with {"path": ..., "document": {...}}.
func (h *Handler) CreatePlot(w http.ResponseWriter, r *http.Request) {
	body, ok := readDocument(w, r)
	if !ok {
		return
	}
	path := document.GetOr(body, "", "path")
	doc, err := document.Get[document.Object](body, "document")
	if path == "" || err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("path and document are required"))
		return
	}
	detail, err := h.svc.CreatePlot(r.Context(), path, doc)
	if err != nil {
		writeError(w, "create plot", err)
		return
	}
	h.events.PublishPlotEvent("created", path)
	w.Header().Set("ETag", `"`+detail.Checksum+`"`)
	writeJSON(w, http.StatusCreated, detail)
}

// UpdatePlot handles PUT /api/plots/* with {"document": {...}}. An If-Match
// header must carry the current checksum when present.
func (h *Handler) UpdatePlot(w http.ResponseWriter, r *http.Request) {
	path := plotPath(r)
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	body, ok := readDocument(w, r)
	if !ok {
		return
	}
	doc, err := document.Get[document.Object](body, "document")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("document is required"))
		return
	}
	ifMatch := strings.Trim(r.Header.Get("If-Match"), `"`)

	detail, err := h.svc.UpdatePlot(r.Context(), path, doc, ifMatch)
	if err != nil {
		writeError(w, "update plot", err)
		return
	}
	h.events.PublishPlotEvent("updated", path)
	w.Header().Set("ETag", `"`+detail.Checksum+`"`)
	writeJSON(w, http.StatusOK, detail)
}

// DeletePlot handles DELETE /api/plots/*.
func (h *Handler) DeletePlot(w http.ResponseWriter, r *http.Request) {
	path := plotPath(r)
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	if err := h.svc.DeletePlot(r.Context(), path); err != nil {
		writeError(w, "delete plot", err)
		return
	}
	h.events.PublishPlotEvent("deleted", path)
	w.WriteHeader(http.StatusNoContent)
}

// RefreshPlot handles POST /api/refresh/{id}: re-fetch a plot from the server.
func (h *Handler) RefreshPlot(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil || id <= 0 {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid plot id"))
		return
	}
	detail, err := h.svc.Refresh(r.Context(), id)
	if err != nil {
		writeError(w, "refresh plot", err)
		return
	}
	h.events.PublishPlotEvent("updated", detail.Path)
	writeJSON(w, http.StatusOK, detail)
}

// PendingEdit handles GET /api/pending?path=&key=.
func (h *Handler) PendingEdit(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	path, key := q.Get("path"), q.Get("key")
	if path == "" || key == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path and key are required"))
		return
	}
	desc, err := h.svc.PendingEdit(r.Context(), path, key)
	if err != nil {
		writeError(w, "pending edit", err)
		return
	}
	writeJSON(w, http.StatusOK, pendingEditResponse(desc))
}

// Search handles GET /api/search?q=.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'q' is required"))
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	results, err := h.svc.Search(r.Context(), q, limit)
	if err != nil {
		writeError(w, "search", err)
		return
	}
	if results == nil {
		results = []index.SearchResult{}
	}
	writeJSON(w, http.StatusOK, SearchResponse{Results: results})
}
