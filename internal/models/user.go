package models

import (
	"encoding/json"

	"github.com/spf13/cast"

	"github.com/starford/arbor/internal/document"
)

// User is a view over a user profile document.
type User struct {
	data document.Object
}

// ProfileField is a labelled profile value ready for display.
type ProfileField struct {
	Label string `json:"label"`
	Key   string `json:"key"`
	Value string `json:"value"`
}

// profileFields lists the user fields shown on the profile screen.
var profileFields = [][2]string{
	{"Username", "username"},
	{"First Name", "firstname"},
	{"Last Name", "lastname"},
	{"Organization", "organization"},
}

// WrapUser returns a view over data. A nil document becomes an empty one.
func WrapUser(data document.Object) *User {
	if data == nil {
		data = document.Object{}
	}
	return &User{data: data}
}

// NewUser returns a user with the given id and username.
func NewUser(id int, username string) *User {
	return WrapUser(document.Object{KeyID: id, KeyUsername: username})
}

// ToDocument returns the underlying user document.
func (u *User) ToDocument() document.Object { return u.data }

// MarshalJSON encodes the user as its document.
func (u *User) MarshalJSON() ([]byte, error) { return json.Marshal(u.data) }

// ID returns the user id.
func (u *User) ID() (int, error) { return document.Get[int](u.data, KeyID) }

// Username returns the login name.
func (u *User) Username() (string, error) { return document.Get[string](u.data, KeyUsername) }

// FirstName returns the first name, or "".
func (u *User) FirstName() string { return document.GetOr(u.data, "", "firstname") }

// LastName returns the last name, or "".
func (u *User) LastName() string { return document.GetOr(u.data, "", "lastname") }

// Organization returns the organization, or "".
func (u *User) Organization() string { return document.GetOr(u.data, "", "organization") }

// Field returns the raw value of key, or nil when absent or null.
func (u *User) Field(key string) any {
	v, presence, err := document.Lookup(u.data, key)
	if err != nil || presence != document.Present {
		return nil
	}
	return v
}

// ProfileFields returns the displayed profile rows. Missing values render as "".
func (u *User) ProfileFields() []ProfileField {
	out := make([]ProfileField, 0, len(profileFields))
	for _, f := range profileFields {
		out = append(out, ProfileField{
			Label: f[0],
			Key:   f[1],
			Value: cast.ToString(u.Field(f[1])),
		})
	}
	return out
}
