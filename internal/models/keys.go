// Package models defines typed views over the tree-inventory wire documents.
//
// Views never copy the document they wrap: getters read from it and setters
// write into it, so serialising the root always reflects every edit made
// through any view.
package models

// Wire keys. These are part of the server contract and must not change.
const (
	KeyPlot           = "plot"
	KeyTree           = "tree"
	KeySpecies        = "species"
	KeyGeom           = "geom"
	KeyHasTree        = "has_tree"
	KeyPendingEdits   = "pending_edits"
	KeyPerm           = "perm"
	KeyPhotos         = "photos"
	KeyPowerLines     = "power_lines"
	KeySidewalkDamage = "sidewalk_damage"
	KeyDataOwner      = "data_owner"
	KeyAddress        = "address"
	KeyAddressStreet  = "address_street"
	KeyAddressCity    = "address_city"
	KeyAddressZip     = "address_zip"
	KeyReadOnly       = "readonly"
	KeyWidth          = "width"
	KeyLength         = "length"
	KeyID             = "id"
	KeyImage          = "image"
	KeyThumbnail      = "thumbnail"
	KeyTitle          = "title"
	KeyType           = "type"
	KeyLatestUpdate   = "latest_update"
	KeyCreated        = "created"
	KeyRecentActivity = "recent_activity"
	KeyUsername       = "username"
	KeyGeoRevHash     = "geoRevHash"
)

// ImageTypes are the content types accepted for tree photos.
var ImageTypes = []string{"image/jpeg", "image/png", "image/gif"}

// IsImageType reports whether contentType is an accepted tree photo type.
func IsImageType(contentType string) bool {
	for _, t := range ImageTypes {
		if t == contentType {
			return true
		}
	}
	return false
}
