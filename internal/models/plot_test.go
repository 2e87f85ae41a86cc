package models

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/starford/arbor/internal/document"
)

func mustParse(t *testing.T, s string) document.Object {
	t.Helper()
	o, err := document.Parse([]byte(s))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	return o
}

func TestNewPlot_Empty(t *testing.T) {
	p := NewPlot()
	if !p.HasDetails() {
		t.Fatal("new plot should have a details object")
	}
	if p.Width() != 0 || p.Length() != 0 {
		t.Errorf("width/length = %d/%d, want 0/0", p.Width(), p.Length())
	}
	if p.HasTree() {
		t.Error("new plot should not have a tree")
	}
	if tree, err := p.Tree(); err != nil || tree != nil {
		t.Errorf("Tree() = %v, %v; want nil, nil", tree, err)
	}
}

func TestPlot_WidthDefaults(t *testing.T) {
	for _, doc := range []string{
		`{"plot":{}}`,
		`{"plot":{"width":null}}`,
		`{"plot":{"width":0}}`,
		`{}`,
	} {
		p := WrapPlot(mustParse(t, doc))
		if got := p.Width(); got != 0 {
			t.Errorf("%s: Width() = %d, want 0", doc, got)
		}
	}
}

func TestPlot_SettersWriteThrough(t *testing.T) {
	root := mustParse(t, `{"plot":{"id":1}}`)
	p := WrapPlot(root)
	if err := p.SetWidth(12); err != nil {
		t.Fatal(err)
	}
	if err := p.SetAddressCity("Philadelphia"); err != nil {
		t.Fatal(err)
	}
	p.SetDataOwner("parks")

	if got := document.GetOr[int64](root, 0, KeyPlot, KeyWidth); got != 12 {
		t.Errorf("root width = %d", got)
	}
	if got := document.GetOr(root, "", KeyPlot, KeyAddressCity); got != "Philadelphia" {
		t.Errorf("root city = %q", got)
	}
	if got := document.GetOr(root, "", KeyDataOwner); got != "parks" {
		t.Errorf("root data_owner = %q", got)
	}
}

func TestPlot_MalformedDetails(t *testing.T) {
	p := WrapPlot(mustParse(t, `{"plot":"oops","has_tree":true,"tree":{"species":{"common_name":"Oak"}}}`))
	if p.HasDetails() {
		t.Fatal("details should be nil for malformed plot")
	}
	if _, err := p.ID(); !errors.Is(err, document.ErrNullField) {
		t.Errorf("ID err = %v, want ErrNullField", err)
	}
	if _, err := p.AddressCity(); !errors.Is(err, document.ErrMissingField) {
		t.Errorf("AddressCity err = %v, want ErrMissingField", err)
	}
	if err := p.SetWidth(3); !errors.Is(err, document.ErrNullField) {
		t.Errorf("SetWidth err = %v, want ErrNullField", err)
	}
	if p.Width() != 0 {
		t.Error("Width should default to 0")
	}
	if p.Species() != nil {
		t.Error("species should not be derived without details")
	}
}

func TestPlot_SetTreeRoundTrip(t *testing.T) {
	p := NewPlot()
	tree := WrapTree(document.Object{"id": 7, "diameter": 12.5})
	p.SetTree(tree)

	if !p.HasTree() {
		t.Fatal("HasTree = false after SetTree")
	}
	got, err := p.Tree()
	if err != nil || got == nil {
		t.Fatalf("Tree() = %v, %v", got, err)
	}
	if got.ToDocument().String() != tree.ToDocument().String() {
		t.Errorf("tree doc = %s, want %s", got.ToDocument(), tree.ToDocument())
	}
	if got.Plot() != p {
		t.Error("tree should back-reference the plot")
	}
	got.SetHeight(30)
	if document.GetOr[float64](p.ToDocument(), 0, KeyTree, "height") != 30 {
		t.Error("tree edit not visible through root document")
	}
}

func TestPlot_TreeFreshViewPerCall(t *testing.T) {
	p := NewPlot()
	p.CreateTree()
	a, _ := p.Tree()
	b, _ := p.Tree()
	if a == b {
		t.Error("Tree() should return a new view per call")
	}
}

func TestPlot_HasTreeTrustsFlag(t *testing.T) {
	p := WrapPlot(mustParse(t, `{"plot":{},"tree":{"id":1}}`))
	if p.HasTree() {
		t.Error("HasTree should read has_tree, not the tree key")
	}
	tree, err := p.Tree()
	if err != nil || tree == nil {
		t.Errorf("Tree() = %v, %v; want a view", tree, err)
	}
}

func TestPlot_SetTreeNilClears(t *testing.T) {
	p := NewPlot()
	p.CreateTree()
	p.SetTree(nil)
	if p.HasTree() {
		t.Error("HasTree should be false")
	}
	if tree, _ := p.Tree(); tree != nil {
		t.Error("Tree should be nil")
	}
}

func TestPlot_Species(t *testing.T) {
	withSpecies := WrapPlot(mustParse(t, `{"plot":{},"has_tree":true,
		"tree":{"species":{"scientific_name":"Acer rubrum","common_name":"Red Maple"}}}`))
	if withSpecies.Species() == nil {
		t.Fatal("species should be derived")
	}
	if name, ok := withSpecies.ScientificName(); !ok || name != "Acer rubrum" {
		t.Errorf("ScientificName = %q, %v", name, ok)
	}
	if name, ok := withSpecies.CommonName(); !ok || name != "Red Maple" {
		t.Errorf("CommonName = %q, %v", name, ok)
	}

	noSpecies := WrapPlot(mustParse(t, `{"plot":{},"has_tree":true,"tree":{}}`))
	if noSpecies.Species() != nil {
		t.Error("species should be nil when the tree has none")
	}
	if _, ok := noSpecies.CommonName(); ok {
		t.Error("CommonName ok = true without species")
	}
}

func TestPlot_SpeciesNotRederived(t *testing.T) {
	p := WrapPlot(mustParse(t, `{"plot":{},"has_tree":true,"tree":{}}`))
	tree, _ := p.Tree()
	tree.SetSpecies(WrapSpecies(document.Object{"common_name": "Ginkgo"}))
	if _, ok := p.CommonName(); ok {
		t.Error("species should only be derived when the document is set")
	}
	p.SetData(p.ToDocument())
	if name, _ := p.CommonName(); name != "Ginkgo" {
		t.Errorf("after SetData CommonName = %q", name)
	}
}

func TestPlot_Permissions(t *testing.T) {
	none := WrapPlot(mustParse(t, `{"plot":{}}`))
	if none.CanEditPlot() || none.CanEditTree() || none.CanDeletePlot() || none.CanDeleteTree() {
		t.Error("all permissions should be false without perm")
	}

	p := WrapPlot(mustParse(t, `{"plot":{},"perm":{
		"plot":{"can_edit":true,"can_delete":false},
		"tree":{"can_edit":"yes please"}}}`))
	if !p.CanEditPlot() {
		t.Error("CanEditPlot = false")
	}
	if p.CanDeletePlot() {
		t.Error("CanDeletePlot = true")
	}
	if p.CanEditTree() {
		t.Error("malformed tree flag should fail closed")
	}
	if p.CanDeleteTree() {
		t.Error("missing flag should fail closed")
	}

	malformed := WrapPlot(mustParse(t, `{"plot":{},"perm":["plot"]}`))
	if malformed.CanEditPlot() {
		t.Error("malformed perm should fail closed")
	}
}

func TestPlot_PendingEditsCached(t *testing.T) {
	root := mustParse(t, `{"plot":{},"pending_edits":{"plot.width":{"latest_value":4}}}`)
	p := WrapPlot(root)
	if !p.HasPendingEdits() {
		t.Fatal("HasPendingEdits = false")
	}
	root[KeyPendingEdits] = document.Object{}
	if !p.HasPendingEdits() {
		t.Error("cached answer should not change after mutation")
	}
	if WrapPlot(root).HasPendingEdits() {
		t.Error("a fresh view should see the mutation")
	}

	empty := mustParse(t, `{"plot":{},"pending_edits":{}}`)
	q := WrapPlot(empty)
	if q.HasPendingEdits() {
		t.Fatal("empty pending_edits reported as pending")
	}
	empty[KeyPendingEdits] = document.Object{"x": document.Object{}}
	if q.HasPendingEdits() {
		t.Error("cached false answer should stick")
	}
}

func TestPlot_NullPendingEntriesDoNotCount(t *testing.T) {
	p := WrapPlot(mustParse(t, `{"plot":{},"pending_edits":{"plot.width":null}}`))
	if p.HasPendingEdits() {
		t.Error("null-only pending_edits reported as pending")
	}
	if keys := p.PendingEditKeys(); len(keys) != 0 {
		t.Errorf("keys = %v, want none", keys)
	}
}

func TestPlot_PendingEditForKey(t *testing.T) {
	p := WrapPlot(mustParse(t, `{"plot":{},"pending_edits":{
		"tree.diameter":{"latest_value":11,"pending_edits":[
			{"id":3,"value":11,"username":"ann","submitted":"2012-01-01"},"junk"]}}}`))
	d, err := p.PendingEditForKey("tree.diameter")
	if err != nil || d == nil {
		t.Fatalf("PendingEditForKey = %v, %v", d, err)
	}
	if d.Key() != "tree.diameter" {
		t.Errorf("key = %q", d.Key())
	}
	if document.GetOr(document.Object{"v": d.LatestValue()}, 0, "v") != 11 {
		t.Errorf("latest value = %v", d.LatestValue())
	}
	edits := d.Edits()
	if len(edits) != 1 || edits[0].ID != 3 || edits[0].Username != "ann" {
		t.Errorf("edits = %+v", edits)
	}

	if d, err := p.PendingEditForKey("plot.width"); d != nil || err != nil {
		t.Errorf("unknown key = %v, %v; want nil, nil", d, err)
	}
	none := WrapPlot(mustParse(t, `{"plot":{}}`))
	if d, err := none.PendingEditForKey("tree.diameter"); d != nil || err != nil {
		t.Errorf("no pending = %v, %v; want nil, nil", d, err)
	}
	if keys := p.PendingEditKeys(); len(keys) != 1 || keys[0] != "tree.diameter" {
		t.Errorf("keys = %v", keys)
	}
}

func TestPlot_MostRecentPhoto(t *testing.T) {
	doc := `{"plot":{},"has_tree":%s,"tree":{},"photos":[
		{"id":1,"image":"/i/1.jpg","thumbnail":"/t/1.jpg"},
		{"id":5,"image":"/i/5.jpg","thumbnail":"/t/5.jpg"},
		{"id":3,"image":null},
		{"id":9,"image":"/i/9.jpg"},
		{"id":0,"image":"/i/0.jpg","thumbnail":"/t/0.jpg"},
		"junk"]}`

	p := WrapPlot(mustParse(t, fmt.Sprintf(doc, "true")))
	photo := p.MostRecentPhoto()
	if photo == nil {
		t.Fatal("MostRecentPhoto = nil")
	}
	if id := document.GetOr(photo, 0, KeyID); id != 5 {
		t.Errorf("photo id = %d, want 5", id)
	}

	noTree := WrapPlot(mustParse(t, fmt.Sprintf(doc, "false")))
	if noTree.MostRecentPhoto() != nil {
		t.Error("photo returned for plot without tree")
	}
}

func TestPlot_MostRecentPhotoEmpty(t *testing.T) {
	for _, doc := range []string{
		`{"plot":{},"has_tree":true}`,
		`{"plot":{},"has_tree":true,"photos":[]}`,
		`{"plot":{},"has_tree":true,"photos":[{"id":2}]}`,
		`{"plot":{},"has_tree":true,"photos":{"id":2}}`,
	} {
		if got := WrapPlot(mustParse(t, doc)).MostRecentPhoto(); got != nil {
			t.Errorf("%s: photo = %v, want nil", doc, got)
		}
	}
}

func TestPlot_AssignNewTreePhoto(t *testing.T) {
	p := NewPlot()
	p.CreateTree()
	for _, photo := range []document.Object{
		{"id": 2, "image": "a", "thumbnail": "b"},
		{"id": 4, "image": "c", "thumbnail": "d"},
	} {
		if err := p.AssignNewTreePhoto(photo); err != nil {
			t.Fatal(err)
		}
	}
	photos := document.GetOr[[]any](p.ToDocument(), nil, KeyPhotos)
	if len(photos) != 2 {
		t.Fatalf("photos = %d, want 2", len(photos))
	}
	if got := document.GetOr(p.MostRecentPhoto(), "", KeyImage); got != "c" {
		t.Errorf("most recent image = %q, want c", got)
	}
}

func TestPlot_AssignNewTreePhotoMalformed(t *testing.T) {
	p := WrapPlot(mustParse(t, `{"plot":{},"tree":{},"has_tree":true,"photos":{"id":1}}`))
	err := p.AssignNewTreePhoto(document.Object{"id": 2, "image": "a", "thumbnail": "b"})
	if !errors.Is(err, document.ErrMalformedField) {
		t.Fatalf("err = %v, want ErrMalformedField", err)
	}
	if _, ok := document.AsObject(p.ToDocument()[KeyPhotos]); !ok {
		t.Error("existing photos value was overwritten")
	}

	null := WrapPlot(mustParse(t, `{"plot":{},"tree":{},"has_tree":true,"photos":null}`))
	if err := null.AssignNewTreePhoto(document.Object{"id": 2, "image": "a", "thumbnail": "b"}); err != nil {
		t.Fatalf("null photos: %v", err)
	}
	if got := document.GetOr[[]any](null.ToDocument(), nil, KeyPhotos); len(got) != 1 {
		t.Errorf("photos = %v, want one entry", got)
	}
}

type fakeFetcher struct{ urls []string }

func (f *fakeFetcher) FetchImage(_ context.Context, url string) ([]byte, error) {
	f.urls = append(f.urls, url)
	return []byte(url), nil
}

func TestPlot_TreeImages(t *testing.T) {
	p := WrapPlot(mustParse(t, `{"plot":{},"has_tree":true,"photos":[{"id":1,"image":"big","thumbnail":"small"}]}`))
	f := &fakeFetcher{}
	thumb, err := p.TreeThumbnail(context.Background(), f)
	if err != nil || string(thumb) != "small" {
		t.Errorf("thumbnail = %q, %v", thumb, err)
	}
	full, err := p.TreePhoto(context.Background(), f)
	if err != nil || string(full) != "big" {
		t.Errorf("photo = %q, %v", full, err)
	}

	empty := NewPlot()
	if b, err := empty.TreeThumbnail(context.Background(), f); b != nil || err != nil {
		t.Errorf("no photo = %v, %v", b, err)
	}
	if len(f.urls) != 2 {
		t.Errorf("fetched %v, want two urls", f.urls)
	}
}

type staticRev string

func (s staticRev) GeoRevID() string { return string(s) }

func TestPlot_UpdatedGeoRev(t *testing.T) {
	p := WrapPlot(mustParse(t, `{"plot":{},"geoRevHash":"abc"}`)).WithGeoRevSource(staticRev("current"))
	if got := p.UpdatedGeoRev(); got != "abc" {
		t.Errorf("UpdatedGeoRev = %q, want abc", got)
	}
	q := NewPlot().WithGeoRevSource(staticRev("current"))
	if got := q.UpdatedGeoRev(); got != "current" {
		t.Errorf("fallback = %q, want current", got)
	}
	if got := NewPlot().UpdatedGeoRev(); got != "" {
		t.Errorf("no source = %q", got)
	}
}

func TestPlot_LastUpdated(t *testing.T) {
	p := WrapPlot(mustParse(t, `{"plot":{},"latest_update":{"created":"2013-03-01"},
		"recent_activity":[{"username":"bob"},{"username":"eve"}]}`))
	if got, err := p.LastUpdated(); err != nil || got != "2013-03-01" {
		t.Errorf("LastUpdated = %q, %v", got, err)
	}
	if got, err := p.LastUpdatedBy(); err != nil || got != "bob" {
		t.Errorf("LastUpdatedBy = %q, %v", got, err)
	}
	p.SetLastUpdatedBy("zed")
	if got, _ := p.LastUpdatedBy(); got != "zed" {
		t.Errorf("after set = %q", got)
	}

	bare := NewPlot()
	if _, err := bare.LastUpdatedBy(); !errors.Is(err, document.ErrMissingField) {
		t.Errorf("err = %v, want ErrMissingField", err)
	}
}

func TestPlot_Geometry(t *testing.T) {
	p := NewPlot()
	if _, err := p.Geometry(); !errors.Is(err, document.ErrMissingField) {
		t.Errorf("err = %v, want ErrMissingField", err)
	}
	if err := p.SetGeometry(NewGeometry(-75.1, 39.9, 4326)); err != nil {
		t.Fatal(err)
	}
	g, err := p.Geometry()
	if err != nil {
		t.Fatal(err)
	}
	if x, _ := g.X(); x != -75.1 {
		t.Errorf("x = %v", x)
	}
	g.SetY(40)
	if y := document.GetOr[float64](p.ToDocument(), 0, KeyPlot, KeyGeom, "y"); y != 40 {
		t.Errorf("y through root = %v", y)
	}
}

func TestPlot_MarshalJSON(t *testing.T) {
	p := NewPlot()
	_ = p.SetID(4)
	b, err := p.MarshalJSON()
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != `{"plot":{"id":4}}` {
		t.Errorf("json = %s", b)
	}
}
