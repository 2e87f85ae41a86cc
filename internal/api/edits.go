package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/starford/arbor/internal/editfeed"
	"github.com/starford/arbor/internal/models"
)

// EditLoader pages the signed-in user's edits into the feed cache.
type EditLoader interface {
	LoadMore(ctx context.Context) (*editfeed.Page, error)
	Loading() bool
	Reset()
}

// EditCache is the read side of the feed cache.
type EditCache interface {
	Entries() []*models.EditEntry
	Len() int
}

// EditHandler serves the recent-edit feed.
type EditHandler struct {
	loader EditLoader
	cache  EditCache
	events Publisher
}

// NewEditHandler creates an edit feed handler. A nil events publisher is allowed.
func NewEditHandler(loader EditLoader, cache EditCache, events Publisher) *EditHandler {
	if events == nil {
		events = nopPublisher{}
	}
	if cache == nil {
		cache = editfeed.NewCache(0)
	}
	return &EditHandler{loader: loader, cache: cache, events: events}
}

// List handles GET /api/edits: the cached entries in first-seen order.
func (h *EditHandler) List(w http.ResponseWriter, _ *http.Request) {
	resp := EditListResponse{Edits: editEntries(h.cache.Entries())}
	if h.loader != nil {
		resp.Loading = h.loader.Loading()
	}
	writeJSON(w, http.StatusOK, resp)
}

// More handles POST /api/edits/more. It answers 202 without fetching when a
// load is already running, and 503 with a retryable error when the fetch
// fails. A "reset=true" query restarts paging from the first page.
func (h *EditHandler) More(w http.ResponseWriter, r *http.Request) {
	if h.loader == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorBody("edit feed is not configured"))
		return
	}
	if r.URL.Query().Get("reset") == "true" {
		h.loader.Reset()
	}

	page, err := h.loader.LoadMore(r.Context())
	if err != nil {
		h.events.PublishEdits(nil, err)
		msg := editfeed.FailureMessage
		var fe *editfeed.FetchError
		if errors.As(err, &fe) {
			msg = fe.Message()
		}
		writeJSON(w, http.StatusServiceUnavailable, errResponse{Error: msg, Retryable: true})
		return
	}
	if page == nil {
		writeJSON(w, http.StatusAccepted, map[string]bool{"loading": true})
		return
	}

	resp := editPageResponse(page, h.cache.Len())
	h.events.PublishEdits(resp, nil)
	writeJSON(w, http.StatusOK, resp)
}
