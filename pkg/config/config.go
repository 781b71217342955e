// Package config loads YAML configuration files with environment variable
// expansion and optional validation.
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Validator is an interface for configuration validation.
type Validator interface {
	Validate() error
}

// Load reads filename, expands environment variables and decodes it over
// target, so fields absent from the file keep their current values.
func Load[T any](filename string, target *T) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", filename, err)
	}
	if err := Parse(data, target); err != nil {
		return fmt.Errorf("config file %s: %w", filename, err)
	}
	return nil
}

// Parse expands environment variables in data, decodes it over target and
// runs target's Validate method when it has one.
//
// Both $VAR and ${VAR} are expanded; ${VAR:-fallback} yields fallback when
// VAR is unset or empty.
func Parse[T any](data []byte, target *T) error {
	expanded := os.Expand(string(data), lookup)

	if err := yaml.Unmarshal([]byte(expanded), target); err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}

	if validator, ok := any(target).(Validator); ok {
		if err := validator.Validate(); err != nil {
			return fmt.Errorf("config validation failed: %w", err)
		}
	}
	return nil
}

func lookup(key string) string {
	name, fallback, hasFallback := strings.Cut(key, ":-")
	if v := os.Getenv(name); v != "" || !hasFallback {
		return v
	}
	return fallback
}
