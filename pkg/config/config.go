// Package config loads YAML or JSON configuration files with environment
// variable expansion and optional validation.
package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Validator is an interface for configuration validation.
type Validator interface {
	Validate() error
}

// Format selects the decoder used by LoadBytes.
type Format int

const (
	YAML Format = iota
	JSON
)

// FormatOf picks the format from a file extension. Anything other than
// .json is treated as YAML.
func FormatOf(filename string) Format {
	if strings.EqualFold(filepath.Ext(filename), ".json") {
		return JSON
	}
	return YAML
}

// Load loads configuration from a YAML or JSON file with environment variable
// expansion. Fields missing from the file keep their values in target.
func Load[T any](filename string, target *T) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", filename, err)
	}
	if err := LoadBytes(data, FormatOf(filename), target); err != nil {
		return fmt.Errorf("config file %s: %w", filename, err)
	}
	return nil
}

// LoadBytes decodes data in the given format after expanding ${VAR}
// references, then validates target if it implements Validator.
func LoadBytes[T any](data []byte, format Format, target *T) error {
	expanded := []byte(os.ExpandEnv(string(data)))

	switch format {
	case JSON:
		dec := json.NewDecoder(bytes.NewReader(expanded))
		dec.DisallowUnknownFields()
		if err := dec.Decode(target); err != nil {
			return fmt.Errorf("failed to parse config: %w", err)
		}
	default:
		if err := yaml.Unmarshal(expanded, target); err != nil {
			return fmt.Errorf("failed to parse config: %w", err)
		}
	}
	return validate(target)
}

// LoadOptional behaves like Load but keeps the values already in target when
// filename does not exist. Validation runs either way.
func LoadOptional[T any](filename string, target *T) (loaded bool, err error) {
	if _, statErr := os.Stat(filename); errors.Is(statErr, os.ErrNotExist) {
		return false, validate(target)
	}
	if err := Load(filename, target); err != nil {
		return false, err
	}
	return true, nil
}

func validate(target any) error {
	if validator, ok := target.(Validator); ok {
		if err := validator.Validate(); err != nil {
			return fmt.Errorf("config validation failed: %w", err)
		}
	}
	return nil
}
