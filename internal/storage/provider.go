// Package storage keeps plot documents and tree photos on local disk.
package storage

import (
	"path/filepath"
	"strings"
	"time"
)

// PhotoDir is the store-relative directory holding uploaded tree photos.
const PhotoDir = "photos"

// Meta describes one stored plot file.
type Meta struct {
	Path      string    `json:"path"`
	Checksum  string    `json:"checksum"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Provider is the interface for plot store operations. Paths are relative to
// the store root.
type Provider interface {
	// List returns metadata for every plot file under dir.
	List(dir string) ([]Meta, error)
	Read(path string) ([]byte, error)
	// Write atomically replaces the file at path.
	Write(path string, content []byte) error
	Delete(path string) error
	Exists(path string) (bool, error)
}

// IsPlotFile reports whether path names a plot document: a .json, .yaml or
// .yml file outside the photo directory whose name does not start with a dot.
func IsPlotFile(path string) bool {
	slashed := filepath.ToSlash(path)
	if strings.HasPrefix(slashed, PhotoDir+"/") || strings.Contains(slashed, "/"+PhotoDir+"/") {
		return false
	}
	if strings.HasPrefix(filepath.Base(path), ".") {
		return false
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".yaml", ".yml":
		return true
	}
	return false
}
