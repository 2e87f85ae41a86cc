package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/arbor/internal/plotservice"
)

// RouterConfig wires the API routes.
type RouterConfig struct {
	Plots       *plotservice.Service
	EditLoader  EditLoader
	EditCache   EditCache
	Events      Publisher
	SSE         http.Handler
	AuthEnabled bool
	Token       string
}

// NewRouter returns a chi router with every API route mounted behind the
// auth middleware. EditLoader may be nil when no user is signed in.
func NewRouter(cfg RouterConfig) chi.Router {
	h := NewHandler(cfg.Plots, cfg.Events)
	ph := NewPhotoHandler(cfg.Plots, cfg.Events)
	eh := NewEditHandler(cfg.EditLoader, cfg.EditCache, cfg.Events)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(cfg.AuthEnabled, cfg.Token))

	r.Get("/plots", h.ListPlots)
	r.Post("/plots", h.CreatePlot)
	r.Get("/plots/*", h.GetPlot)
	r.Put("/plots/*", h.UpdatePlot)
	r.Delete("/plots/*", h.DeletePlot)
	r.Post("/refresh/{id}", h.RefreshPlot)

	r.Get("/pending", h.PendingEdit)
	r.Get("/search", h.Search)

	r.Post("/photos", ph.Upload)
	r.Get("/photos/*", ph.Serve)

	r.Get("/edits", eh.List)
	r.Post("/edits/more", eh.More)

	if cfg.SSE != nil {
		r.Get("/events", cfg.SSE.ServeHTTP)
	}
	return r
}
