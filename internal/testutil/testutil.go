// Package testutil provides shared test helpers for plot stores and indexes.
package testutil

import (
	"path/filepath"
	"testing"

	"github.com/starford/arbor/internal/index"
	"github.com/starford/arbor/internal/storage"
)

// SamplePlot is a plot document with a tree, a species, a pending edit and
// two photos, the newer of which has id 2.
const SamplePlot = `{
  "title": "Library lawn",
  "type": "plot",
  "has_tree": true,
  "plot": {
    "id": 12,
    "width": 4,
    "length": 6,
    "address": "200 Elm Street",
    "readonly": false,
    "geom": {"x": -75.16, "y": 39.95, "srid": 4326}
  },
  "tree": {
    "id": 31,
    "diameter": 12.5,
    "species": {"id": 7, "common_name": "Ginkgo", "scientific_name": "Ginkgo biloba"}
  },
  "perm": {
    "plot": {"can_edit": true, "can_delete": false},
    "tree": {"can_edit": true, "can_delete": true}
  },
  "pending_edits": {
    "tree.diameter": {
      "latest_value": 14,
      "pending_edits": [{"id": 90, "value": 14, "username": "kim", "submitted": "2013-04-02 10:00:00"}]
    }
  },
  "photos": [
    {"id": 1, "image": "photos/a.jpg", "thumbnail": "photos/a_t.jpg"},
    {"id": 2, "image": "photos/b.jpg", "thumbnail": "photos/b_t.jpg"}
  ],
  "latest_update": {"created": "2013-04-02 10:00:00"},
  "recent_activity": [{"username": "kim"}]
}`

// TestDB opens an index in a temporary directory and closes it on cleanup.
func TestDB(t *testing.T) *index.DB {
	t.Helper()
	db, err := index.Open(filepath.Join(t.TempDir(), "arbor-test.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestStore creates a temporary plot store.
func TestStore(t *testing.T) (string, *storage.FS) {
	t.Helper()
	dir := t.TempDir()
	store, err := storage.NewFS(dir)
	if err != nil {
		t.Fatal(err)
	}
	return dir, store
}
