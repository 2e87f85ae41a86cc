package document

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// Parse decodes a JSON object. Numbers are kept as json.Number so integer ids
// survive a round trip unchanged.
func Parse(data []byte) (Object, error) {
	raw, err := decodeJSON(data)
	if err != nil {
		return nil, err
	}
	obj, ok := AsObject(raw)
	if !ok {
		return nil, fmt.Errorf("document: parse json: top level is %T: %w", raw, ErrMalformedField)
	}
	return normalize(obj).(Object), nil
}

// ParseArray decodes a JSON array of arbitrary values.
func ParseArray(data []byte) ([]any, error) {
	raw, err := decodeJSON(data)
	if err != nil {
		return nil, err
	}
	arr, ok := AsArray(raw)
	if !ok {
		return nil, fmt.Errorf("document: parse json: top level is %T: %w", raw, ErrMalformedField)
	}
	return normalize(arr).([]any), nil
}

// decodeJSON decodes exactly one JSON value; anything after it is an error.
func decodeJSON(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("document: parse json: %w", err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("document: parse json: trailing data after value")
	}
	return raw, nil
}

// ParseYAML decodes a YAML mapping, used for hand-written plot fixtures.
func ParseYAML(data []byte) (Object, error) {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("document: parse yaml: %w", err)
	}
	if raw == nil {
		return nil, fmt.Errorf("document: parse yaml: empty document: %w", ErrMalformedField)
	}
	return normalize(Object(raw)).(Object), nil
}

// Marshal encodes o as compact JSON. Keys are sorted, so equal documents
// produce equal bytes.
func Marshal(o Object) ([]byte, error) {
	return json.Marshal(o)
}

// MarshalIndent encodes o as indented JSON for on-disk storage.
func MarshalIndent(o Object) ([]byte, error) {
	return json.MarshalIndent(o, "", "  ")
}

// MarshalYAML encodes o as YAML. The document goes through its JSON form
// first so json.Number values come out as plain YAML numbers.
func MarshalYAML(o Object) ([]byte, error) {
	data, err := Marshal(o)
	if err != nil {
		return nil, fmt.Errorf("document: marshal yaml: %w", err)
	}
	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return nil, fmt.Errorf("document: marshal yaml: %w", err)
	}
	clearStyle(&node)
	out, err := yaml.Marshal(&node)
	if err != nil {
		return nil, fmt.Errorf("document: marshal yaml: %w", err)
	}
	return out, nil
}

// clearStyle drops the flow style inherited from the JSON source so the
// output is block YAML.
func clearStyle(n *yaml.Node) {
	n.Style = 0
	for _, c := range n.Content {
		clearStyle(c)
	}
}

// String returns the compact JSON form, the shape used to pass entities
// between screens as opaque strings.
func (o Object) String() string {
	b, err := Marshal(o)
	if err != nil {
		return "{}"
	}
	return string(b)
}

// Clone returns a deep copy of o.
func Clone(o Object) Object {
	if o == nil {
		return nil
	}
	return cloneValue(o).(Object)
}

func cloneValue(v any) any {
	if obj, ok := AsObject(v); ok {
		out := make(Object, len(obj))
		for k, val := range obj {
			out[k] = cloneValue(val)
		}
		return out
	}
	if arr, ok := AsArray(v); ok {
		out := make([]any, len(arr))
		for i, val := range arr {
			out[i] = cloneValue(val)
		}
		return out
	}
	return v
}

// normalize converts nested maps to Object so type switches see one shape.
func normalize(v any) any {
	if obj, ok := AsObject(v); ok {
		for k, val := range obj {
			obj[k] = normalize(val)
		}
		return obj
	}
	if arr, ok := AsArray(v); ok {
		for i, val := range arr {
			arr[i] = normalize(val)
		}
		return arr
	}
	return v
}
