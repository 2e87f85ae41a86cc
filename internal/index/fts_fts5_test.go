//go:build sqlite_fts5

package index

import (
	"testing"
)

func TestFTS5_TableExists(t *testing.T) {
	db := testDB(t)
	var count int
	if err := db.conn.QueryRow(`SELECT count(*) FROM plots_fts`).Scan(&count); err != nil {
		t.Fatalf("plots_fts table missing: %v", err)
	}
}

func TestFTS5_SearchWithSnippet(t *testing.T) {
	db := testDB(t)
	row := PlotRow{
		Path:           "fts.json",
		PlotID:         8,
		Title:          "Library lawn",
		Checksum:       "f1",
		CommonName:     "Ginkgo",
		ScientificName: "Ginkgo biloba",
		Address:        "200 Elm Street",
	}
	if err := db.UpsertPlot(row); err != nil {
		t.Fatalf("UpsertPlot: %v", err)
	}

	results, err := db.Search("biloba", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if results[0].Path != "fts.json" || results[0].PlotID != 8 {
		t.Errorf("result = %+v", results[0])
	}
	if results[0].Snippet == "" {
		t.Error("expected non-empty snippet")
	}
}

func TestFTS5_DeleteRemovesFromFTS(t *testing.T) {
	db := testDB(t)
	_ = db.UpsertPlot(PlotRow{Path: "gone.json", Checksum: "g", Address: "vanishing lane"})
	_ = db.DeletePlot("gone.json")

	results, _ := db.Search("vanishing", 10)
	for _, r := range results {
		if r.Path == "gone.json" {
			t.Error("deleted plot still in FTS index")
		}
	}
}

func TestFTS5_UpsertReplacesContent(t *testing.T) {
	db := testDB(t)
	_ = db.UpsertPlot(PlotRow{Path: "evo.json", Title: "Old", Checksum: "1", CommonName: "Linden"})
	_ = db.UpsertPlot(PlotRow{Path: "evo.json", Title: "New", Checksum: "2", CommonName: "Hornbeam"})

	results, _ := db.Search("linden", 10)
	if len(results) != 0 {
		t.Error("old FTS content should be gone")
	}
	results, _ = db.Search("hornbeam", 10)
	if len(results) != 1 || results[0].Title != "New" {
		t.Errorf("FTS not updated: %+v", results)
	}
}

func TestFTS5_PrefixAndDottedKeys(t *testing.T) {
	db := testDB(t)
	_ = db.UpsertPlot(PlotRow{Path: "k.json", Checksum: "k", CommonName: "Hornbeam", Keywords: []string{"tree.diameter"}})

	for _, q := range []string{"horn", "tree.diameter", `"hornbeam`} {
		results, err := db.Search(q, 10)
		if err != nil {
			t.Fatalf("Search(%q): %v", q, err)
		}
		if len(results) != 1 {
			t.Errorf("Search(%q) = %d results, want 1", q, len(results))
		}
	}
	if results, err := db.Search("   ", 10); err != nil || len(results) != 0 {
		t.Errorf("blank query = %v, %v", results, err)
	}
}
