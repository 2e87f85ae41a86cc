// Package parser decodes stored plot files and extracts the summary the index
// needs: identity, tree and pending-edit flags, species names and address.
package parser

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/starford/arbor/internal/document"
	"github.com/starford/arbor/internal/models"
)

// Result holds the output of parsing a plot file.
type Result struct {
	Document       document.Object
	Plot           *models.Plot
	PlotID         int
	Title          string
	HasTree        bool
	Pending        bool
	PendingKeys    []string
	CommonName     string
	ScientificName string
	Address        string
	Keywords       []string
}

// IsYAML reports whether path names a YAML plot file.
func IsYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}

// Decode turns raw file bytes into a document. YAML is used for .yaml and
// .yml paths, JSON otherwise.
func Decode(path string, data []byte) (document.Object, error) {
	if IsYAML(path) {
		return document.ParseYAML(data)
	}
	return document.Parse(data)
}

// Parse decodes data and summarises the plot it holds. A document without a
// plot details object is still accepted; its PlotID is zero.
func Parse(path string, data []byte) (*Result, error) {
	doc, err := Decode(path, data)
	if err != nil {
		return nil, fmt.Errorf("parser: %s: %w", path, err)
	}
	plot := models.WrapPlot(doc)

	r := &Result{
		Document: doc,
		Plot:     plot,
		Title:    plot.Title(),
		HasTree:  plot.HasTree(),
		Pending:  plot.HasPendingEdits(),
	}
	if id, err := plot.ID(); err == nil {
		r.PlotID = id
	}
	if plot.HasDetails() {
		r.Address = plot.Address()
	}
	if r.Pending {
		r.PendingKeys = plot.PendingEditKeys()
	}
	r.CommonName, _ = plot.CommonName()
	r.ScientificName, _ = plot.ScientificName()
	r.Keywords = keywords(r)
	return r, nil
}

// keywords collects the distinct lower-cased words worth searching for.
func keywords(r *Result) []string {
	seen := make(map[string]struct{})
	for _, s := range []string{r.Title, r.CommonName, r.ScientificName, r.Address} {
		for _, w := range strings.FieldsFunc(strings.ToLower(s), splitWord) {
			seen[w] = struct{}{}
		}
	}
	for _, k := range r.PendingKeys {
		seen[strings.ToLower(k)] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for w := range seen {
		out = append(out, w)
	}
	sort.Strings(out)
	return out
}

func splitWord(r rune) bool {
	return r == ' ' || r == ',' || r == '(' || r == ')' || r == '\t' || r == '\n'
}
