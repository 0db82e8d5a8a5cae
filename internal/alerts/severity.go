package alerts

import (
	"fmt"
	"strings"
)

// Severity is the urgency level of an alert
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityError    Severity = "error"
	SeverityCritical Severity = "critical"
)

// AllSeverities lists the severities from least to most urgent
var AllSeverities = []Severity{SeverityInfo, SeverityWarning, SeverityError, SeverityCritical}

var severityRank = map[Severity]int{
	SeverityInfo:     0,
	SeverityWarning:  1,
	SeverityError:    2,
	SeverityCritical: 3,
}

// Rank returns the ordinal of the severity, or -1 for unknown values
func (s Severity) Rank() int {
	if r, ok := severityRank[s]; ok {
		return r
	}
	return -1
}

// IsValid reports whether s is one of the four known severities
func (s Severity) IsValid() bool {
	return s.Rank() >= 0
}

// AtLeast reports whether s is at least as urgent as min
func (s Severity) AtLeast(min Severity) bool {
	return s.IsValid() && s.Rank() >= min.Rank()
}

func (s Severity) String() string {
	return string(s)
}

// DefaultSeverityMapping maps common provider wording onto the four levels
var DefaultSeverityMapping = map[Severity][]string{
	SeverityCritical: {"critical", "disaster", "p1", "emergency", "fatal", "crit"},
	SeverityError:    {"error", "high", "major", "p2", "severe", "err"},
	SeverityWarning:  {"warning", "minor", "p3", "average", "warn", "medium"},
	SeverityInfo:     {"info", "informational", "p4", "low", "notice", "debug", "ok"},
}

// ParseSeverity parses a severity name, accepting the aliases of
// DefaultSeverityMapping. Unknown values return an error.
func ParseSeverity(raw string) (Severity, error) {
	normalized := strings.ToLower(strings.TrimSpace(raw))
	if s := Severity(normalized); s.IsValid() {
		return s, nil
	}
	for sev, aliases := range DefaultSeverityMapping {
		for _, alias := range aliases {
			if alias == normalized {
				return sev, nil
			}
		}
	}
	return "", fmt.Errorf("unknown severity %q", raw)
}

// NormalizeSeverity is the lenient variant of ParseSeverity: unknown
// values default to warning.
func NormalizeSeverity(raw string) Severity {
	sev, err := ParseSeverity(raw)
	if err != nil {
		return SeverityWarning
	}
	return sev
}
