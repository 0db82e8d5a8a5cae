// Package alerts defines the alert model shared by the correlation engine,
// the alert manager and the notification channels.
package alerts

import (
	"fmt"
	"strings"
	"time"
)

// Well known metadata keys used for correlation
const (
	MetaUserID    = "userId"
	MetaIPAddress = "ipAddress"
	MetaResource  = "resource"
)

// Metadata is the open key-value context attached to an alert
type Metadata map[string]any

// String returns the value for key rendered as a string, or "" when absent
func (m Metadata) String(key string) string {
	if m == nil {
		return ""
	}
	v, ok := m[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

// Clone returns a shallow copy of the metadata
func (m Metadata) Clone() Metadata {
	if m == nil {
		return nil
	}
	out := make(Metadata, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Alert is a single security or operational event
type Alert struct {
	ID         string     `json:"id"`
	Severity   Severity   `json:"severity"`
	Title      string     `json:"title"`
	Message    string     `json:"message"`
	Timestamp  time.Time  `json:"timestamp"`
	Metadata   Metadata   `json:"metadata,omitempty"`
	Resolved   bool       `json:"resolved"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`
}

// Clone returns a copy that is safe to hand out to readers
func (a *Alert) Clone() *Alert {
	if a == nil {
		return nil
	}
	c := *a
	c.Metadata = a.Metadata.Clone()
	if a.ResolvedAt != nil {
		t := *a.ResolvedAt
		c.ResolvedAt = &t
	}
	return &c
}

// Contains reports whether needle appears in the title or message,
// ignoring case.
func (a *Alert) Contains(needle string) bool {
	needle = strings.ToLower(needle)
	return strings.Contains(strings.ToLower(a.Title), needle) ||
		strings.Contains(strings.ToLower(a.Message), needle)
}
