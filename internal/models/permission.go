package models

import "github.com/starford/arbor/internal/document"

// Resource names a sub-resource in the permission map.
type Resource string

// Action names a capability flag of a Resource.
type Action string

const (
	ResourcePlot Resource = "plot"
	ResourceTree Resource = "tree"

	ActionEdit   Action = "can_edit"
	ActionDelete Action = "can_delete"
)

// Permission resolves perm.<resource>.<action> in data. Any missing or
// malformed level resolves to false; it never reports an error.
func Permission(data document.Object, r Resource, a Action) bool {
	allowed, err := document.Get[bool](data, KeyPerm, string(r), string(a))
	return err == nil && allowed
}
