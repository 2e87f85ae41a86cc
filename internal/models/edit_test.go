package models

import (
	"errors"
	"testing"
	"time"

	"github.com/starford/arbor/internal/document"
)

func TestParseEditEntries(t *testing.T) {
	items, err := document.ParseArray([]byte(`[
		{"id":10,"name":"tree added","created":"2013-04-02T15:04:05Z","value":5,
		 "plot":{"plot":{"id":77},"has_tree":true,"tree":{"species":{"common_name":"Elm"}}}},
		{"id":11,"name":"plot updated","created":"2013-04-03 10:00:00","value":1}]`))
	if err != nil {
		t.Fatal(err)
	}
	entries, err := ParseEditEntries(items)
	if err != nil {
		t.Fatalf("ParseEditEntries: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("len = %d", len(entries))
	}

	first := entries[0]
	if first.DisplayName() != "Tree Added" {
		t.Errorf("display name = %q", first.DisplayName())
	}
	ts, err := first.EditTime()
	if err != nil {
		t.Fatalf("EditTime: %v", err)
	}
	if !ts.Equal(time.Date(2013, 4, 2, 15, 4, 5, 0, time.UTC)) {
		t.Errorf("time = %v", ts)
	}
	if v, _ := first.Value(); v != 5 {
		t.Errorf("value = %d", v)
	}
	plot, err := first.Plot()
	if err != nil || plot == nil {
		t.Fatalf("Plot = %v, %v", plot, err)
	}
	if id, _ := plot.ID(); id != 77 {
		t.Errorf("plot id = %d", id)
	}
	if name, _ := plot.CommonName(); name != "Elm" {
		t.Errorf("common name = %q", name)
	}

	if _, err := entries[1].EditTime(); err != nil {
		t.Errorf("space separated time: %v", err)
	}
	if p, err := entries[1].Plot(); p != nil || err != nil {
		t.Errorf("Plot = %v, %v; want nil, nil", p, err)
	}
}

func TestParseEditEntries_Rejects(t *testing.T) {
	if _, err := ParseEditEntries([]any{"x"}); !errors.Is(err, document.ErrMalformedField) {
		t.Errorf("err = %v, want ErrMalformedField", err)
	}
	if _, err := ParseEditEntries([]any{document.Object{"name": "x"}}); !errors.Is(err, document.ErrMissingField) {
		t.Errorf("err = %v, want ErrMissingField", err)
	}
}

func TestEditEntry_BadTime(t *testing.T) {
	e := WrapEditEntry(document.Object{"id": 1, "created": "yesterday"})
	if _, err := e.EditTime(); !errors.Is(err, document.ErrMalformedField) {
		t.Errorf("err = %v, want ErrMalformedField", err)
	}
	if _, err := WrapEditEntry(nil).EditTime(); !errors.Is(err, document.ErrMissingField) {
		t.Errorf("err = %v, want ErrMissingField", err)
	}
}

func TestUser_ProfileFields(t *testing.T) {
	u := WrapUser(document.Object{"id": 3, "username": "ann", "firstname": "Ann", "organization": nil})
	fields := u.ProfileFields()
	if len(fields) != 4 {
		t.Fatalf("fields = %d", len(fields))
	}
	if fields[0].Value != "ann" || fields[1].Value != "Ann" {
		t.Errorf("fields = %+v", fields)
	}
	if fields[2].Value != "" || fields[3].Value != "" {
		t.Errorf("missing fields should render empty: %+v", fields)
	}
	if id, _ := u.ID(); id != 3 {
		t.Errorf("id = %d", id)
	}
}

func TestSpecies_DisplayName(t *testing.T) {
	cases := []struct {
		doc  document.Object
		want string
	}{
		{document.Object{"common_name": "Red Maple", "scientific_name": "Acer rubrum"}, "Red Maple (Acer rubrum)"},
		{document.Object{"common_name": "Red Maple"}, "Red Maple"},
		{document.Object{"scientific_name": "Acer rubrum"}, "Acer rubrum"},
	}
	for _, c := range cases {
		if got := WrapSpecies(c.doc).DisplayName(); got != c.want {
			t.Errorf("DisplayName = %q, want %q", got, c.want)
		}
	}
}

func TestIsImageType(t *testing.T) {
	if !IsImageType("image/png") || IsImageType("image/webp") {
		t.Error("unexpected image type result")
	}
}
