package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cast"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/starford/arbor/internal/document"
)

// EditEntry is a view over one entry of a user's recent-edit feed.
type EditEntry struct {
	data document.Object
}

// WrapEditEntry returns a view over data. A nil document becomes an empty one.
func WrapEditEntry(data document.Object) *EditEntry {
	if data == nil {
		data = document.Object{}
	}
	return &EditEntry{data: data}
}

// ParseEditEntries wraps every element of a feed page. Each element must be an
// object with an integer id.
func ParseEditEntries(items []any) ([]*EditEntry, error) {
	out := make([]*EditEntry, 0, len(items))
	for i, item := range items {
		obj, ok := document.AsObject(item)
		if !ok {
			return nil, fmt.Errorf("models: edit %d: %w", i, document.ErrMalformedField)
		}
		e := WrapEditEntry(obj)
		if _, err := e.ID(); err != nil {
			return nil, fmt.Errorf("models: edit %d: %w", i, err)
		}
		out = append(out, e)
	}
	return out, nil
}

// ToDocument returns the underlying entry document.
func (e *EditEntry) ToDocument() document.Object { return e.data }

// MarshalJSON encodes the entry as its document.
func (e *EditEntry) MarshalJSON() ([]byte, error) { return json.Marshal(e.data) }

// ID returns the entry id.
func (e *EditEntry) ID() (int, error) { return document.Get[int](e.data, KeyID) }

// Name returns the edit type, e.g. "plot updated".
func (e *EditEntry) Name() string { return document.GetOr(e.data, "", "name") }

// DisplayName returns Name with each word capitalised.
func (e *EditEntry) DisplayName() string {
	// Casers are stateful, so one is built per call.
	return cases.Title(language.English, cases.NoLower).String(strings.TrimSpace(e.Name()))
}

// EditTime parses the created timestamp.
func (e *EditEntry) EditTime() (time.Time, error) {
	raw, presence, err := document.Lookup(e.data, KeyCreated)
	if err != nil {
		return time.Time{}, err
	}
	if presence != document.Present {
		return time.Time{}, &document.FieldError{Path: KeyCreated, Err: document.ErrMissingField}
	}
	t, err := cast.ToTimeE(raw)
	if err != nil {
		return time.Time{}, &document.FieldError{Path: KeyCreated, Err: fmt.Errorf("%w: %v", document.ErrMalformedField, err)}
	}
	return t, nil
}

// Value returns the reputation points awarded for the edit.
func (e *EditEntry) Value() (int, error) { return document.Get[int](e.data, "value") }

// Plot returns a view over the plot the edit touched, or nil.
func (e *EditEntry) Plot() (*Plot, error) {
	if !document.Has(e.data, KeyPlot) {
		return nil, nil
	}
	data, err := document.Get[document.Object](e.data, KeyPlot)
	if err != nil {
		return nil, err
	}
	return WrapPlot(data), nil
}
