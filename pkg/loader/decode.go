package loader

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/aretw0/canopy/pkg/domain"
	"gopkg.in/yaml.v3"
)

// Format is the serialization of a page document.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// FormatFromPath guesses the format from a file extension.
func FormatFromPath(path string) (Format, bool) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, true
	case ".yaml", ".yml":
		return FormatYAML, true
	}
	return "", false
}

// Decode parses a page document. YAML goes through the JSON shape so
// numbers come out as float64 in both formats.
func Decode(data []byte, format Format) (*domain.Page, error) {
	if format == FormatYAML {
		var raw any
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("invalid yaml: %w", err)
		}
		converted, err := json.Marshal(normalize(raw))
		if err != nil {
			return nil, fmt.Errorf("invalid yaml: %w", err)
		}
		data = converted
	}

	var page domain.Page
	if err := json.Unmarshal(data, &page); err != nil {
		return nil, fmt.Errorf("invalid page document: %w", err)
	}
	return &page, nil
}

// normalize makes yaml values JSON-encodable (map[any]any keys become strings).
func normalize(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, child := range t {
			t[k] = normalize(child)
		}
		return t
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, child := range t {
			out[fmt.Sprint(k)] = normalize(child)
		}
		return out
	case []any:
		for i, child := range t {
			t[i] = normalize(child)
		}
		return t
	}
	return v
}
