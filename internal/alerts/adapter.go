package alerts

import (
	"maps"
	"strings"
)

// Submission is a provider alert translated into lexwatch terms, ready to
// be handed to the alert manager
type Submission struct {
	Severity Severity
	Title    string
	Message  string
	Metadata Metadata
	// Recovered is set when the provider reports the condition cleared.
	Recovered bool
}

// Adapter translates a monitoring provider's webhook payload. One payload
// can carry several alerts (e.g. an Alertmanager group).
type Adapter interface {
	Source() string
	Parse(body []byte) ([]Submission, error)
}

// FieldMapping maps metadata keys onto dot paths in a provider alert,
// e.g. MetaResource -> "labels.instance"
type FieldMapping map[string]string

// MergeMappings overlays overrides onto defaults
func MergeMappings(defaults, overrides FieldMapping) FieldMapping {
	result := make(FieldMapping, len(defaults)+len(overrides))
	maps.Copy(result, defaults)
	maps.Copy(result, overrides)
	return result
}

// ExtractNestedValue extracts a value using dot notation (e.g. "labels.alertname")
func ExtractNestedValue(data map[string]any, path string) any {
	if path == "" {
		return nil
	}

	current := any(data)
	for _, part := range strings.Split(path, ".") {
		switch v := current.(type) {
		case map[string]any:
			current = v[part]
		case map[string]string:
			current = v[part]
		default:
			return nil
		}
		if current == nil {
			return nil
		}
	}
	return current
}

// ExtractString extracts a string value using dot notation
func ExtractString(data map[string]any, path string) string {
	if s, ok := ExtractNestedValue(data, path).(string); ok {
		return s
	}
	return ""
}

// ApplyMapping copies every mapped, non-empty value from data into a new
// Metadata
func ApplyMapping(data map[string]any, mapping FieldMapping) Metadata {
	meta := make(Metadata, len(mapping))
	for key, path := range mapping {
		if v := ExtractString(data, path); v != "" {
			meta[key] = v
		}
	}
	return meta
}

// IsRecoveryStatus reports whether a provider status means the condition
// cleared
func IsRecoveryStatus(status string) bool {
	switch strings.ToLower(status) {
	case "resolved", "ok", "recovery", "inactive", "normal":
		return true
	default:
		return false
	}
}
