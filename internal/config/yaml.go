package config

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	yaml "go.yaml.in/yaml/v3"
)

// Format names reported by decodeBytes.
const (
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// toJSON converts YAML config to JSON bytes so one strict JSON decoder
// (DisallowUnknownFields) serves both formats. Files without a .yaml/.yml
// extension are returned untouched.
func toJSON(path string, data []byte) ([]byte, string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
	default:
		return data, FormatJSON, nil
	}

	var v any
	if err := yaml.Unmarshal(data, &v); err != nil {
		return nil, FormatYAML, fmt.Errorf("yaml unmarshal: %w", err)
	}
	if v == nil {
		// An empty YAML document is an empty config, not "null".
		v = map[string]any{}
	}
	j, err := json.Marshal(stringKeys(v))
	if err != nil {
		return nil, FormatYAML, fmt.Errorf("yaml->json marshal: %w", err)
	}
	return j, FormatYAML, nil
}

// stringKeys rewrites map keys to strings so the tree can be JSON-marshaled.
// YAML allows "1: x" style integer keys; JSON does not.
func stringKeys(in any) any {
	switch x := in.(type) {
	case map[any]any:
		m := make(map[string]any, len(x))
		for k, v := range x {
			m[fmt.Sprint(k)] = stringKeys(v)
		}
		return m
	case map[string]any:
		for k, v := range x {
			x[k] = stringKeys(v)
		}
		return x
	case []any:
		for i := range x {
			x[i] = stringKeys(x[i])
		}
		return x
	default:
		return in
	}
}
