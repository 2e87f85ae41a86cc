package models

import (
	"encoding/json"

	"github.com/starford/arbor/internal/document"
)

// GeoRevSource supplies the geo-revision of the instance currently in use.
type GeoRevSource interface {
	GeoRevID() string
}

// Plot is a view over a plot document: a root object carrying a nested
// "plot" details object and an optional nested "tree".
//
// Detail accessors operate on the "plot" sub-object. If that sub-object is
// missing or malformed the details reference is nil and every detail
// accessor fails with document.ErrNullField on use.
type Plot struct {
	data    document.Object
	details document.Object
	species *Species
	pending pendingStatus
	geoRev  GeoRevSource
}

// NewPlot returns an empty plot with an empty details object.
func NewPlot() *Plot {
	return WrapPlot(document.Object{KeyPlot: document.Object{}})
}

// WrapPlot wraps an existing plot document.
func WrapPlot(data document.Object) *Plot {
	p := &Plot{}
	p.SetData(data)
	return p
}

// WithGeoRevSource sets the fallback used by UpdatedGeoRev.
func (p *Plot) WithGeoRevSource(src GeoRevSource) *Plot {
	p.geoRev = src
	return p
}

// SetData replaces the wrapped document and re-derives the details reference
// and species view. The pending-edit cache is kept.
func (p *Plot) SetData(data document.Object) {
	if data == nil {
		data = document.Object{}
	}
	p.data = data
	p.details = nil
	p.species = nil

	details, err := document.Get[document.Object](data, KeyPlot)
	if err != nil {
		return
	}
	p.details = details
	if !p.HasTree() {
		return
	}
	tree, err := p.Tree()
	if err != nil || tree == nil {
		return
	}
	if speciesData := tree.SpeciesData(); speciesData != nil {
		p.species = WrapSpecies(speciesData)
	}
}

// ToDocument returns the wrapped root document.
func (p *Plot) ToDocument() document.Object { return p.data }

// MarshalJSON encodes the wrapped root document.
func (p *Plot) MarshalJSON() ([]byte, error) { return json.Marshal(p.data) }

// HasDetails reports whether the plot details object could be resolved.
func (p *Plot) HasDetails() bool { return p.details != nil }

// ID returns plot.id.
func (p *Plot) ID() (int, error) { return document.Get[int](p.details, KeyID) }

// SetID sets plot.id.
func (p *Plot) SetID(id int) error { return document.Set(p.details, id, KeyID) }

// Title returns the root title, or "" when absent.
func (p *Plot) Title() string { return document.GetOr(p.data, "", KeyTitle) }

// Width returns the plot width, 0 when absent.
func (p *Plot) Width() int64 { return document.GetOr[int64](p.details, 0, KeyWidth) }

// SetWidth sets the plot width.
func (p *Plot) SetWidth(width int64) error { return document.Set(p.details, width, KeyWidth) }

// Length returns the plot length, 0 when absent.
func (p *Plot) Length() int64 { return document.GetOr[int64](p.details, 0, KeyLength) }

// SetLength sets the plot length.
func (p *Plot) SetLength(length int64) error { return document.Set(p.details, length, KeyLength) }

// Type returns the root type field.
func (p *Plot) Type() (string, error) { return document.Get[string](p.data, KeyType) }

// SetType sets the root type field.
func (p *Plot) SetType(t string) { p.data[KeyType] = t }

// ReadOnly returns plot.readonly.
func (p *Plot) ReadOnly() (bool, error) { return document.Get[bool](p.details, KeyReadOnly) }

// SetReadOnly sets plot.readonly.
func (p *Plot) SetReadOnly(readOnly bool) error {
	return document.Set(p.details, readOnly, KeyReadOnly)
}

// PowerlineConflictPotential returns the power_lines field.
func (p *Plot) PowerlineConflictPotential() (string, error) {
	return document.Get[string](p.data, KeyPowerLines)
}

// SetPowerlineConflictPotential sets the power_lines field.
func (p *Plot) SetPowerlineConflictPotential(v string) { p.data[KeyPowerLines] = v }

// SidewalkDamage returns the sidewalk_damage field.
func (p *Plot) SidewalkDamage() (string, error) {
	return document.Get[string](p.data, KeySidewalkDamage)
}

// SetSidewalkDamage sets the sidewalk_damage field.
func (p *Plot) SetSidewalkDamage(v string) { p.data[KeySidewalkDamage] = v }

// Address returns the formatted address, or "" when absent.
func (p *Plot) Address() string { return document.GetOr(p.details, "", KeyAddress) }

// SetAddress stores a free-form address as the street address.
func (p *Plot) SetAddress(address string) error {
	return document.Set(p.details, address, KeyAddressStreet)
}

// AddressStreet returns the street address, or "" when absent.
func (p *Plot) AddressStreet() string { return document.GetOr(p.details, "", KeyAddressStreet) }

// SetAddressStreet sets the street address.
func (p *Plot) SetAddressStreet(street string) error {
	return document.Set(p.details, street, KeyAddressStreet)
}

// AddressCity returns the city.
func (p *Plot) AddressCity() (string, error) { return document.Get[string](p.details, KeyAddressCity) }

// SetAddressCity sets the city.
func (p *Plot) SetAddressCity(city string) error {
	return document.Set(p.details, city, KeyAddressCity)
}

// AddressZip returns the postal code.
func (p *Plot) AddressZip() (string, error) { return document.Get[string](p.details, KeyAddressZip) }

// SetAddressZip sets the postal code.
func (p *Plot) SetAddressZip(zip string) error {
	return document.Set(p.details, zip, KeyAddressZip)
}

// DataOwner returns the data_owner field.
func (p *Plot) DataOwner() (string, error) { return document.Get[string](p.data, KeyDataOwner) }

// SetDataOwner sets the data_owner field.
func (p *Plot) SetDataOwner(owner string) { p.data[KeyDataOwner] = owner }

// LastUpdated returns latest_update.created.
func (p *Plot) LastUpdated() (string, error) {
	return document.Get[string](p.data, KeyLatestUpdate, KeyCreated)
}

// SetLastUpdated sets latest_update.created.
func (p *Plot) SetLastUpdated(created string) error {
	return document.Set(p.data, created, KeyLatestUpdate, KeyCreated)
}

// LastUpdatedBy returns the username of the first recent_activity entry, or
// "" when the activity list is empty.
func (p *Plot) LastUpdatedBy() (string, error) {
	activity, err := document.Get[[]any](p.data, KeyRecentActivity)
	if err != nil {
		return "", err
	}
	if len(activity) == 0 {
		return "", nil
	}
	first, ok := document.AsObject(activity[0])
	if !ok {
		return "", &document.FieldError{Path: KeyRecentActivity + ".0", Err: document.ErrMalformedField}
	}
	return document.Get[string](first, KeyUsername)
}

// SetLastUpdatedBy records username as the most recent activity.
func (p *Plot) SetLastUpdatedBy(username string) {
	activity := document.GetOr[[]any](p.data, nil, KeyRecentActivity)
	p.data[KeyRecentActivity] = append([]any{document.Object{KeyUsername: username}}, activity...)
}

// Tree returns a new view over the tree sub-document, or nil when the tree key
// is absent or null. Each call returns a fresh view.
func (p *Plot) Tree() (*Tree, error) {
	if !document.Has(p.data, KeyTree) {
		return nil, nil
	}
	data, err := document.Get[document.Object](p.data, KeyTree)
	if err != nil {
		return nil, err
	}
	return &Tree{data: data, plot: p}, nil
}

// SetTree stores the tree's document under the tree key and marks the plot
// as having a tree. A nil tree clears both.
func (p *Plot) SetTree(t *Tree) {
	if t == nil {
		p.data[KeyTree] = nil
		p.data[KeyHasTree] = false
		return
	}
	if t.data == nil {
		t.data = document.Object{}
	}
	t.plot = p
	p.data[KeyTree] = t.data
	p.data[KeyHasTree] = true
}

// HasTree reports the explicit has_tree flag. It does not look at the tree
// key: a plot being created may carry a tree object that is not flagged yet.
func (p *Plot) HasTree() bool { return document.GetOr(p.data, false, KeyHasTree) }

// CreateTree attaches a new empty tree and returns it.
func (p *Plot) CreateTree() *Tree {
	t := NewTree()
	p.SetTree(t)
	return t
}

// Geometry returns a view over plot.geom.
func (p *Plot) Geometry() (*Geometry, error) {
	data, err := document.Get[document.Object](p.details, KeyGeom)
	if err != nil {
		return nil, err
	}
	return WrapGeometry(data), nil
}

// SetGeometry stores g as plot.geom, or null when g is nil.
func (p *Plot) SetGeometry(g *Geometry) error {
	if g == nil {
		return document.Set(p.details, nil, KeyGeom)
	}
	return document.Set(p.details, g.ToDocument(), KeyGeom)
}

// CanEditPlot reports the plot edit permission.
func (p *Plot) CanEditPlot() bool { return Permission(p.data, ResourcePlot, ActionEdit) }

// CanEditTree reports the tree edit permission.
func (p *Plot) CanEditTree() bool { return Permission(p.data, ResourceTree, ActionEdit) }

// CanDeletePlot reports the plot delete permission.
func (p *Plot) CanDeletePlot() bool { return Permission(p.data, ResourcePlot, ActionDelete) }

// CanDeleteTree reports the tree delete permission.
func (p *Plot) CanDeleteTree() bool { return Permission(p.data, ResourceTree, ActionDelete) }

// Species returns the species derived when the document was set, or nil.
func (p *Plot) Species() *Species { return p.species }

// ScientificName returns the species scientific name derived when the
// document was set. ok is false when no species was derived.
func (p *Plot) ScientificName() (name string, ok bool) {
	if p.species == nil {
		return "", false
	}
	return p.species.ScientificName(), true
}

// CommonName returns the species common name derived when the document was set.
func (p *Plot) CommonName() (name string, ok bool) {
	if p.species == nil {
		return "", false
	}
	return p.species.CommonName(), true
}

// UpdatedGeoRev returns the geoRevHash carried by a plot update, falling back
// to the current instance's geo-revision.
func (p *Plot) UpdatedGeoRev() string {
	if rev, err := document.Get[string](p.data, KeyGeoRevHash); err == nil {
		return rev
	}
	if p.geoRev != nil {
		return p.geoRev.GeoRevID()
	}
	return ""
}
