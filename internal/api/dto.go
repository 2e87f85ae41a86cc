package api

import (
	"time"

	"github.com/starford/arbor/internal/document"
	"github.com/starford/arbor/internal/editfeed"
	"github.com/starford/arbor/internal/index"
	"github.com/starford/arbor/internal/models"
	"github.com/starford/arbor/internal/plotservice"
)

// PlotDetail is the projection returned by the plot endpoints.
type PlotDetail = plotservice.PlotDetail

// PlotListResponse wraps a page of index rows.
type PlotListResponse struct {
	Plots []index.PlotRow `json:"plots"`
	Total int             `json:"total"`
}

// SearchResponse wraps search hits.
type SearchResponse struct {
	Results []index.SearchResult `json:"results"`
}

// PendingEditResponse describes the pending edits for one field.
type PendingEditResponse struct {
	Key         string               `json:"key"`
	LatestValue any                  `json:"latest_value"`
	Edits       []models.PendingEdit `json:"edits"`
}

func pendingEditResponse(d *models.PendingEditDescription) PendingEditResponse {
	return PendingEditResponse{Key: d.Key(), LatestValue: d.LatestValue(), Edits: d.Edits()}
}

// PhotoUploadResponse is returned after a tree photo upload.
type PhotoUploadResponse struct {
	Photo document.Object `json:"photo"`
	Plot  *PlotDetail     `json:"plot"`
}

// EditEntry is one recent edit as shown in the profile feed.
type EditEntry struct {
	ID          int             `json:"id"`
	Name        string          `json:"name"`
	DisplayName string          `json:"display_name"`
	EditTime    *time.Time      `json:"edit_time,omitempty"`
	Value       *int            `json:"value,omitempty"`
	PlotID      int             `json:"plot_id,omitempty"`
	Document    document.Object `json:"document"`
}

func editEntries(entries []*models.EditEntry) []EditEntry {
	out := make([]EditEntry, 0, len(entries))
	for _, e := range entries {
		id, err := e.ID()
		if err != nil {
			continue
		}
		item := EditEntry{
			ID:          id,
			Name:        e.Name(),
			DisplayName: e.DisplayName(),
			Document:    e.ToDocument(),
		}
		if ts, err := e.EditTime(); err == nil {
			item.EditTime = &ts
		}
		if v, err := e.Value(); err == nil {
			item.Value = &v
		}
		if plot, err := e.Plot(); err == nil && plot != nil {
			item.PlotID, _ = plot.ID()
		}
		out = append(out, item)
	}
	return out
}

// EditListResponse is the cached feed.
type EditListResponse struct {
	Edits   []EditEntry `json:"edits"`
	Loading bool        `json:"loading"`
}

// EditPageResponse is one freshly merged page.
type EditPageResponse struct {
	Edits  []EditEntry `json:"edits"`
	Offset int         `json:"offset"`
	Added  int         `json:"added"`
	Total  int         `json:"total"`
}

func editPageResponse(p *editfeed.Page, total int) EditPageResponse {
	return EditPageResponse{Edits: editEntries(p.Entries), Offset: p.Offset, Added: p.Added, Total: total}
}
