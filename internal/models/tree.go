package models

import (
	"encoding/json"

	"github.com/starford/arbor/internal/document"
)

// Tree is a view over the tree sub-document of a plot.
type Tree struct {
	data document.Object
	plot *Plot
}

// NewTree returns a tree with an empty document, not yet attached to a plot.
func NewTree() *Tree {
	return &Tree{data: document.Object{}}
}

// WrapTree wraps an existing tree document.
func WrapTree(data document.Object) *Tree {
	if data == nil {
		data = document.Object{}
	}
	return &Tree{data: data}
}

// Plot returns the plot this tree view was obtained from, if any.
func (t *Tree) Plot() *Plot { return t.plot }

// ToDocument returns the underlying tree document.
func (t *Tree) ToDocument() document.Object { return t.data }

// MarshalJSON encodes the tree as its document.
func (t *Tree) MarshalJSON() ([]byte, error) { return json.Marshal(t.data) }

// ID returns the server-assigned tree id.
func (t *Tree) ID() (int, error) { return document.Get[int](t.data, KeyID) }

// SetID sets the tree id.
func (t *Tree) SetID(id int) { t.data[KeyID] = id }

// Diameter returns the trunk diameter, 0 when absent.
func (t *Tree) Diameter() float64 { return document.GetOr[float64](t.data, 0, "diameter") }

// SetDiameter sets the trunk diameter.
func (t *Tree) SetDiameter(d float64) { t.data["diameter"] = d }

// Height returns the tree height, 0 when absent.
func (t *Tree) Height() float64 { return document.GetOr[float64](t.data, 0, "height") }

// SetHeight sets the tree height.
func (t *Tree) SetHeight(h float64) { t.data["height"] = h }

// CanopyHeight returns the canopy height, 0 when absent.
func (t *Tree) CanopyHeight() float64 { return document.GetOr[float64](t.data, 0, "canopy_height") }

// SetCanopyHeight sets the canopy height.
func (t *Tree) SetCanopyHeight(h float64) { t.data["canopy_height"] = h }

// SpeciesData returns the embedded species document, or nil.
func (t *Tree) SpeciesData() document.Object {
	return document.GetOr[document.Object](t.data, nil, KeySpecies)
}

// Species returns a view over the embedded species, or nil.
func (t *Tree) Species() *Species {
	data := t.SpeciesData()
	if data == nil {
		return nil
	}
	return WrapSpecies(data)
}

// SetSpecies embeds s, or stores null when s is nil.
func (t *Tree) SetSpecies(s *Species) {
	if s == nil {
		t.data[KeySpecies] = nil
		return
	}
	t.data[KeySpecies] = s.data
}
