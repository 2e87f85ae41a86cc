package plotservice

import (
	"time"

	"github.com/starford/arbor/internal/document"
	"github.com/starford/arbor/internal/models"
)

// PlotDetail is the UI-facing projection of a stored plot.
type PlotDetail struct {
	Path            string          `json:"path"`
	Checksum        string          `json:"checksum"`
	PlotID          int             `json:"plot_id,omitempty"`
	Title           string          `json:"title,omitempty"`
	Type            string          `json:"type,omitempty"`
	Width           int64           `json:"width"`
	Length          int64           `json:"length"`
	Address         string          `json:"address,omitempty"`
	ReadOnly        bool            `json:"readonly"`
	HasTree         bool            `json:"has_tree"`
	Tree            *TreeDetail     `json:"tree,omitempty"`
	Species         *SpeciesDetail  `json:"species,omitempty"`
	Geometry        *GeometryDetail `json:"geometry,omitempty"`
	Permissions     Permissions     `json:"permissions"`
	HasPendingEdits bool            `json:"has_pending_edits"`
	PendingKeys     []string        `json:"pending_keys"`
	MostRecentPhoto document.Object `json:"most_recent_photo,omitempty"`
	LastUpdated     string          `json:"last_updated,omitempty"`
	LastUpdatedBy   string          `json:"last_updated_by,omitempty"`
	GeoRev          string          `json:"geo_rev,omitempty"`
	Document        document.Object `json:"document"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// TreeDetail is the typed tree summary of a plot.
type TreeDetail struct {
	ID           int     `json:"id,omitempty"`
	Diameter     float64 `json:"diameter"`
	Height       float64 `json:"height"`
	CanopyHeight float64 `json:"canopy_height"`
}

// SpeciesDetail is the typed species summary with its display name.
type SpeciesDetail struct {
	ID             int    `json:"id,omitempty"`
	CommonName     string `json:"common_name"`
	ScientificName string `json:"scientific_name"`
	DisplayName    string `json:"display_name"`
}

// GeometryDetail is the plot point geometry.
type GeometryDetail struct {
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
	SRID int     `json:"srid"`
}

// Permissions mirrors the four plot/tree permission flags.
type Permissions struct {
	CanEditPlot   bool `json:"can_edit_plot"`
	CanEditTree   bool `json:"can_edit_tree"`
	CanDeletePlot bool `json:"can_delete_plot"`
	CanDeleteTree bool `json:"can_delete_tree"`
}

// Project builds the detail view of plot. Optional fields that are missing
// or malformed in the document are left empty.
func Project(path, sum string, plot *models.Plot) *PlotDetail {
	d := &PlotDetail{
		Path:     path,
		Checksum: sum,
		Title:    plot.Title(),
		HasTree:  plot.HasTree(),
		Permissions: Permissions{
			CanEditPlot:   plot.CanEditPlot(),
			CanEditTree:   plot.CanEditTree(),
			CanDeletePlot: plot.CanDeletePlot(),
			CanDeleteTree: plot.CanDeleteTree(),
		},
		HasPendingEdits: plot.HasPendingEdits(),
		PendingKeys:     plot.PendingEditKeys(),
		MostRecentPhoto: plot.MostRecentPhoto(),
		GeoRev:          plot.UpdatedGeoRev(),
		Document:        plot.ToDocument(),
		UpdatedAt:       time.Now(),
	}
	if d.PendingKeys == nil {
		d.PendingKeys = []string{}
	}
	d.Type, _ = plot.Type()
	d.LastUpdated, _ = plot.LastUpdated()
	d.LastUpdatedBy, _ = plot.LastUpdatedBy()

	if plot.HasDetails() {
		d.PlotID, _ = plot.ID()
		d.Width = plot.Width()
		d.Length = plot.Length()
		d.Address = plot.Address()
		d.ReadOnly, _ = plot.ReadOnly()
		if g, err := plot.Geometry(); err == nil && g != nil {
			gd := &GeometryDetail{SRID: g.SRID()}
			gd.X, _ = g.X()
			gd.Y, _ = g.Y()
			d.Geometry = gd
		}
	}

	if d.HasTree {
		if tree, err := plot.Tree(); err == nil && tree != nil {
			td := &TreeDetail{
				Diameter:     tree.Diameter(),
				Height:       tree.Height(),
				CanopyHeight: tree.CanopyHeight(),
			}
			td.ID, _ = tree.ID()
			d.Tree = td
		}
	}
	if s := plot.Species(); s != nil {
		sd := &SpeciesDetail{
			CommonName:     s.CommonName(),
			ScientificName: s.ScientificName(),
			DisplayName:    s.DisplayName(),
		}
		sd.ID, _ = s.ID()
		d.Species = sd
	}
	return d
}
