// Package document provides typed, fail-safe access to the loosely-typed JSON
// documents served by the tree-inventory API.
//
// An Object is a reference type: every view built on a sub-object shares it
// with the root, so writes through a view are visible when the root is
// serialised.
package document

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cast"
)

// Object is a JSON object node.
type Object map[string]any

// Presence describes what a path lookup found.
type Presence int

const (
	// Absent means a key on the path does not exist.
	Absent Presence = iota
	// Null means the path (or one of its parents) holds an explicit null.
	Null
	// Present means the path holds a non-null value.
	Present
)

// String returns the presence name.
func (p Presence) String() string {
	switch p {
	case Null:
		return "null"
	case Present:
		return "present"
	default:
		return "absent"
	}
}

// Value enumerates the types the typed accessors can produce.
type Value interface {
	string | int | int64 | float64 | bool | Object | []any
}

// AsObject reports whether v is a JSON object and returns it.
func AsObject(v any) (Object, bool) {
	switch m := v.(type) {
	case Object:
		return m, m != nil
	case map[string]any:
		return Object(m), m != nil
	}
	return nil, false
}

// AsArray reports whether v is a JSON array and returns it.
func AsArray(v any) ([]any, bool) {
	switch a := v.(type) {
	case []any:
		return a, true
	case []Object:
		out := make([]any, len(a))
		for i := range a {
			out[i] = a[i]
		}
		return out, true
	case []map[string]any:
		out := make([]any, len(a))
		for i := range a {
			out[i] = Object(a[i])
		}
		return out, true
	}
	return nil, false
}

// Lookup walks path from o. A nil o reports ErrNullField; a non-object
// parent reports ErrMalformedField. A null parent yields Null.
func Lookup(o Object, path ...string) (any, Presence, error) {
	if o == nil {
		return nil, Absent, fieldErr(path, ErrNullField)
	}
	if len(path) == 0 {
		return o, Present, nil
	}
	cur := o
	for i, key := range path {
		raw, ok := cur[key]
		if !ok {
			return nil, Absent, nil
		}
		if raw == nil {
			return nil, Null, nil
		}
		if i == len(path)-1 {
			return raw, Present, nil
		}
		next, ok := AsObject(raw)
		if !ok {
			return nil, Absent, fieldErr(path[:i+1], ErrMalformedField)
		}
		cur = next
	}
	return nil, Absent, nil
}

// Has reports whether path holds a non-null value.
func Has(o Object, path ...string) bool {
	_, presence, err := Lookup(o, path...)
	return err == nil && presence == Present
}

// IsNull reports whether path holds an explicit null.
func IsNull(o Object, path ...string) bool {
	_, presence, err := Lookup(o, path...)
	return err == nil && presence == Null
}

// Get returns the value at path converted to T. Absent and null values fail
// with ErrMissingField, values that cannot be converted with ErrMalformedField.
func Get[T Value](o Object, path ...string) (T, error) {
	var zero T
	raw, presence, err := Lookup(o, path...)
	if err != nil {
		return zero, err
	}
	if presence != Present {
		return zero, fieldErr(path, ErrMissingField)
	}
	v, err := convert[T](raw)
	if err != nil {
		return zero, fieldErr(path, fmt.Errorf("%w: %v", ErrMalformedField, err))
	}
	return v, nil
}

// GetOr returns the value at path converted to T, or def when the path is
// absent, null or malformed, or o is nil.
func GetOr[T Value](o Object, def T, path ...string) T {
	v, err := Get[T](o, path...)
	if err != nil {
		return def
	}
	return v
}

// Set writes value at path, creating intermediate objects for absent or null
// parents. A non-object parent fails with ErrMalformedField.
func Set(o Object, value any, path ...string) error {
	if o == nil {
		return fieldErr(path, ErrNullField)
	}
	if len(path) == 0 {
		return fieldErr(path, ErrMissingField)
	}
	cur := o
	for i, key := range path[:len(path)-1] {
		raw, ok := cur[key]
		if !ok || raw == nil {
			next := Object{}
			cur[key] = next
			cur = next
			continue
		}
		next, ok := AsObject(raw)
		if !ok {
			return fieldErr(path[:i+1], ErrMalformedField)
		}
		cur = next
	}
	cur[path[len(path)-1]] = value
	return nil
}

// Delete removes the key at path. Missing parents are not an error.
func Delete(o Object, path ...string) {
	if o == nil || len(path) == 0 {
		return
	}
	parent := o
	if len(path) > 1 {
		raw, presence, err := Lookup(o, path[:len(path)-1]...)
		if err != nil || presence != Present {
			return
		}
		p, ok := AsObject(raw)
		if !ok {
			return
		}
		parent = p
	}
	delete(parent, path[len(path)-1])
}

// Keys returns the keys of the object at path whose values are non-null.
func Keys(o Object, path ...string) []string {
	obj, err := Get[Object](o, path...)
	if err != nil {
		return nil
	}
	keys := make([]string, 0, len(obj))
	for k, v := range obj {
		if v != nil {
			keys = append(keys, k)
		}
	}
	return keys
}

func convert[T Value](raw any) (T, error) {
	var out T
	var err error
	switch p := any(&out).(type) {
	case *string:
		if isComposite(raw) {
			return out, fmt.Errorf("want string, got %T", raw)
		}
		*p, err = cast.ToStringE(raw)
	case *int:
		if err = numeric(raw); err == nil {
			var n int64
			n, err = integer(raw)
			*p = int(n)
		}
	case *int64:
		if err = numeric(raw); err == nil {
			*p, err = integer(raw)
		}
	case *float64:
		if err = numeric(raw); err == nil {
			*p, err = cast.ToFloat64E(raw)
		}
	case *bool:
		if isComposite(raw) {
			return out, fmt.Errorf("want bool, got %T", raw)
		}
		*p, err = cast.ToBoolE(raw)
	case *Object:
		obj, ok := AsObject(raw)
		if !ok {
			return out, fmt.Errorf("want object, got %T", raw)
		}
		*p = obj
	case *[]any:
		arr, ok := AsArray(raw)
		if !ok {
			return out, fmt.Errorf("want array, got %T", raw)
		}
		*p = arr
	}
	return out, err
}

func isComposite(raw any) bool {
	if _, ok := AsObject(raw); ok {
		return true
	}
	_, ok := AsArray(raw)
	return ok
}

// integer reads a whole number. Wire numbers in exponent or fractional form
// truncate toward zero, the same as an in-memory float64.
func integer(raw any) (int64, error) {
	n, ok := raw.(json.Number)
	if !ok {
		return cast.ToInt64E(raw)
	}
	if i, err := n.Int64(); err == nil {
		return i, nil
	}
	f, err := n.Float64()
	if err != nil {
		return 0, err
	}
	return int64(f), nil
}

// numeric rejects shapes that cast would coerce but the wire never means as numbers.
func numeric(raw any) error {
	switch raw.(type) {
	case bool:
		return fmt.Errorf("want number, got bool")
	case json.Number, string, int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64, float32, float64:
		return nil
	}
	return fmt.Errorf("want number, got %T", raw)
}
