package models

import (
	"fmt"

	"github.com/starford/arbor/internal/document"
)

// Species is a read-only view over a species sub-document.
type Species struct {
	data document.Object
}

// WrapSpecies returns a view over data.
func WrapSpecies(data document.Object) *Species {
	return &Species{data: data}
}

// ToDocument returns the underlying species document.
func (s *Species) ToDocument() document.Object { return s.data }

// ID returns the species id.
func (s *Species) ID() (int, error) { return document.Get[int](s.data, KeyID) }

// ScientificName returns the scientific name, or "".
func (s *Species) ScientificName() string { return document.GetOr(s.data, "", "scientific_name") }

// CommonName returns the common name, or "".
func (s *Species) CommonName() string { return document.GetOr(s.data, "", "common_name") }

// OTMCode returns the species code, or "".
func (s *Species) OTMCode() string { return document.GetOr(s.data, "", "otm_code") }

// DisplayName combines the common and scientific names for list rows.
func (s *Species) DisplayName() string {
	common, scientific := s.CommonName(), s.ScientificName()
	switch {
	case common != "" && scientific != "":
		return fmt.Sprintf("%s (%s)", common, scientific)
	case common != "":
		return common
	default:
		return scientific
	}
}
