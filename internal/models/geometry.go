package models

import "github.com/starford/arbor/internal/document"

// Geometry is a view over a geom sub-document holding a point.
type Geometry struct {
	data document.Object
}

// NewGeometry returns a point geometry.
func NewGeometry(x, y float64, srid int) *Geometry {
	return &Geometry{data: document.Object{"x": x, "y": y, "srid": srid}}
}

// WrapGeometry returns a view over data. A nil document becomes an empty one.
func WrapGeometry(data document.Object) *Geometry {
	if data == nil {
		data = document.Object{}
	}
	return &Geometry{data: data}
}

// ToDocument returns the underlying document.
func (g *Geometry) ToDocument() document.Object { return g.data }

// X returns the x coordinate.
func (g *Geometry) X() (float64, error) { return document.Get[float64](g.data, "x") }

// Y returns the y coordinate.
func (g *Geometry) Y() (float64, error) { return document.Get[float64](g.data, "y") }

// SetX sets the x coordinate.
func (g *Geometry) SetX(x float64) { g.data["x"] = x }

// SetY sets the y coordinate.
func (g *Geometry) SetY(y float64) { g.data["y"] = y }

// SRID returns the spatial reference id, 0 when unspecified.
func (g *Geometry) SRID() int { return document.GetOr(g.data, 0, "srid") }

// SetSRID sets the spatial reference id.
func (g *Geometry) SetSRID(srid int) { g.data["srid"] = srid }
