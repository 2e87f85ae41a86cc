package models

import (
	"sort"

	"github.com/starford/arbor/internal/document"
)

type pendingStatus int

const (
	pendingUnset pendingStatus = iota
	pendingYes
	pendingNo
)

// PendingEditDescription pairs a field key with its moderation-queue entry.
// It is built on demand and not stored anywhere.
type PendingEditDescription struct {
	key    string
	detail document.Object
}

// PendingEdit is one queued change for a field.
type PendingEdit struct {
	ID        int    `json:"id"`
	Value     any    `json:"value"`
	Username  string `json:"username,omitempty"`
	Submitted string `json:"submitted,omitempty"`
}

// NewPendingEditDescription wraps detail for key.
func NewPendingEditDescription(key string, detail document.Object) *PendingEditDescription {
	return &PendingEditDescription{key: key, detail: detail}
}

// Key returns the field key the edits apply to.
func (d *PendingEditDescription) Key() string { return d.key }

// Detail returns the underlying edit detail document.
func (d *PendingEditDescription) Detail() document.Object { return d.detail }

// LatestValue returns the most recent proposed value, or nil.
func (d *PendingEditDescription) LatestValue() any {
	v, presence, err := document.Lookup(d.detail, "latest_value")
	if err != nil || presence != document.Present {
		return nil
	}
	return v
}

// Edits returns the queued edits. Entries that are not objects are skipped.
func (d *PendingEditDescription) Edits() []PendingEdit {
	items := document.GetOr[[]any](d.detail, nil, KeyPendingEdits)
	out := make([]PendingEdit, 0, len(items))
	for _, item := range items {
		obj, ok := document.AsObject(item)
		if !ok {
			continue
		}
		value, _, _ := document.Lookup(obj, "value")
		out = append(out, PendingEdit{
			ID:        document.GetOr(obj, 0, KeyID),
			Value:     value,
			Username:  document.GetOr(obj, "", KeyUsername),
			Submitted: document.GetOr(obj, "", "submitted"),
		})
	}
	return out
}

// HasPendingEdits reports whether pending_edits holds at least one non-null
// entry, matching the keys PendingEditKeys returns.
//
// The answer is computed on the first call and cached for the lifetime of the
// Plot. Later changes to pending_edits are not observed; wrap the document in
// a new Plot to re-evaluate.
func (p *Plot) HasPendingEdits() bool {
	if p.pending != pendingUnset {
		return p.pending == pendingYes
	}
	has := len(document.Keys(p.data, KeyPendingEdits)) > 0
	if has {
		p.pending = pendingYes
	} else {
		p.pending = pendingNo
	}
	return has
}

// PendingEditForKey returns the pending edit description for a field key, or
// nil if the plot has no pending edits or none for key.
func (p *Plot) PendingEditForKey(key string) (*PendingEditDescription, error) {
	if !p.HasPendingEdits() {
		return nil, nil
	}
	edits, err := document.Get[document.Object](p.data, KeyPendingEdits)
	if err != nil {
		return nil, err
	}
	if !document.Has(edits, key) {
		return nil, nil
	}
	detail, err := document.Get[document.Object](edits, key)
	if err != nil {
		return nil, err
	}
	return NewPendingEditDescription(key, detail), nil
}

// PendingEditKeys returns the sorted field keys that currently carry pending
// edits. Unlike HasPendingEdits it always reads the live document.
func (p *Plot) PendingEditKeys() []string {
	keys := document.Keys(p.data, KeyPendingEdits)
	sort.Strings(keys)
	return keys
}
