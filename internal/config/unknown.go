package config

import (
	"fmt"
	"reflect"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// LoadWithWarnings parses config data and returns any unknown key warnings.
func LoadWithWarnings(path string, data []byte) (*Config, []string, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Detect unknown keys
	warnings := detectUnknownKeys(data)

	return &cfg, warnings, nil
}

// detectUnknownKeys compares the raw document with known struct fields.
// Note: Since this is called after successful Config parsing, a parse failure
// here would indicate an unexpected internal inconsistency.
func detectUnknownKeys(data []byte) []string {
	var warnings []string

	var raw map[string]interface{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		// This should never happen since the data was already parsed successfully.
		// Return a warning so the condition is visible rather than silently ignored.
		return []string{"internal: failed to re-parse config for unknown key detection"}
	}

	knownTopLevel := getYAMLKeys(reflect.TypeOf(Config{}))
	for _, key := range sortedKeys(raw) {
		if !knownTopLevel[key] {
			warnings = append(warnings, fmt.Sprintf("unknown key %q at top level (ignored)", key))
		}
	}

	// Check nested unknown keys in matrix environments
	if matrixRaw, ok := raw["matrix"].(map[string]interface{}); ok {
		warnings = append(warnings, checkMatrixUnknownKeys(matrixRaw)...)
	}

	return warnings
}

func checkMatrixUnknownKeys(matrix map[string]interface{}) []string {
	var warnings []string

	knownEnvKeys := getYAMLKeys(reflect.TypeOf(EnvironmentConfig{}))
	for _, envName := range sortedKeys(matrix) {
		envRaw, ok := matrix[envName].(map[string]interface{})
		if !ok {
			continue
		}
		for _, key := range sortedKeys(envRaw) {
			if !knownEnvKeys[key] {
				warnings = append(warnings, fmt.Sprintf("unknown key %q in environment %q (ignored)", key, envName))
			}
		}
	}

	return warnings
}

// getYAMLKeys returns a map of known YAML key names for a struct type.
func getYAMLKeys(t reflect.Type) map[string]bool {
	keys := make(map[string]bool)
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		tag := field.Tag.Get("yaml")
		if tag == "" || tag == "-" {
			continue
		}
		// Extract key name from tag (before comma)
		name := strings.Split(tag, ",")[0]
		if name != "" {
			keys[name] = true
		}
	}
	return keys
}

// sortedKeys returns map keys in sorted order so warnings are deterministic.
func sortedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
