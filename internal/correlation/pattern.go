package correlation

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/lexwatch/lexwatch/internal/alerts"
)

var (
	// ErrInvalidPattern is returned when a pattern has no id or an empty sequence
	ErrInvalidPattern = errors.New("invalid pattern")
	// ErrPatternExists is returned when a pattern id is already in the library
	ErrPatternExists = errors.New("pattern already exists")
)

// Pattern is an ordered sequence of text fragments that, seen in consecutive
// alerts, indicates a known attack or failure mode.
type Pattern struct {
	ID              string          `json:"id" yaml:"id"`
	Name            string          `json:"name" yaml:"name"`
	Description     string          `json:"description" yaml:"description"`
	Sequence        []string        `json:"sequence" yaml:"sequence"`
	Frequency       int             `json:"frequency" yaml:"-"`
	Severity        alerts.Severity `json:"severity" yaml:"severity"`
	Recommendations []string        `json:"recommendations" yaml:"recommendations"`
}

// Validate checks the pattern is usable and lowercases its sequence
func (p *Pattern) Validate() error {
	if strings.TrimSpace(p.ID) == "" {
		return fmt.Errorf("%w: id is required", ErrInvalidPattern)
	}
	if len(p.Sequence) == 0 {
		return fmt.Errorf("%w: %s has an empty sequence", ErrInvalidPattern, p.ID)
	}
	for i, s := range p.Sequence {
		s = strings.ToLower(strings.TrimSpace(s))
		if s == "" {
			return fmt.Errorf("%w: %s has an empty element at %d", ErrInvalidPattern, p.ID, i)
		}
		p.Sequence[i] = s
	}
	if p.Severity == "" {
		p.Severity = alerts.SeverityWarning
		return nil
	}
	sev, err := alerts.ParseSeverity(string(p.Severity))
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidPattern, p.ID, err)
	}
	p.Severity = sev
	return nil
}

func (p *Pattern) clone() *Pattern {
	c := *p
	c.Sequence = append([]string(nil), p.Sequence...)
	c.Recommendations = append([]string(nil), p.Recommendations...)
	return &c
}

// BuiltinPatterns returns the patterns every engine is seeded with
func BuiltinPatterns() []Pattern {
	return []Pattern{
		{
			ID:          "brute_force_pattern",
			Name:        "Brute Force Attack",
			Description: "Repeated failed logins followed by a successful one",
			Sequence:    []string{"login failed", "login failed", "login failed", "login successful"},
			Severity:    alerts.SeverityCritical,
			Recommendations: []string{
				"Lock the affected account and force a password reset",
				"Block the source IP address",
				"Enable multi-factor authentication",
			},
		},
		{
			ID:          "privilege_escalation_pattern",
			Name:        "Privilege Escalation",
			Description: "Denied access followed by a role change and privileged access",
			Sequence:    []string{"access denied", "role changed", "admin access"},
			Severity:    alerts.SeverityCritical,
			Recommendations: []string{
				"Review recent role assignments",
				"Revoke elevated permissions granted outside change control",
			},
		},
		{
			ID:          "data_exfiltration_pattern",
			Name:        "Data Exfiltration",
			Description: "Bulk document access followed by a large export",
			Sequence:    []string{"bulk access", "bulk access", "export"},
			Severity:    alerts.SeverityError,
			Recommendations: []string{
				"Suspend the session performing the export",
				"Audit documents accessed in the window",
			},
		},
		{
			ID:          "account_takeover_pattern",
			Name:        "Account Takeover",
			Description: "Password reset followed by contact detail changes",
			Sequence:    []string{"password reset", "email changed"},
			Severity:    alerts.SeverityError,
			Recommendations: []string{
				"Contact the account owner through a verified channel",
				"Invalidate active sessions",
			},
		},
		{
			ID:          "rate_abuse_pattern",
			Name:        "API Rate Abuse",
			Description: "Sustained rate limiting ending in a service degradation",
			Sequence:    []string{"rate limit exceeded", "rate limit exceeded", "service degraded"},
			Severity:    alerts.SeverityWarning,
			Recommendations: []string{
				"Throttle or block the offending client",
				"Check upstream capacity",
			},
		},
	}
}

type patternFile struct {
	Patterns []Pattern `yaml:"patterns"`
}

// LoadPatternFile reads additional patterns from a YAML file of the form
//
//	patterns:
//	  - id: ...
//	    sequence: [...]
func LoadPatternFile(path string) ([]Pattern, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read pattern file: %w", err)
	}
	return ParsePatterns(data)
}

// ParsePatterns decodes and validates a YAML pattern document
func ParsePatterns(data []byte) ([]Pattern, error) {
	var pf patternFile
	if err := yaml.Unmarshal(data, &pf); err != nil {
		return nil, fmt.Errorf("failed to parse patterns: %w", err)
	}
	seen := make(map[string]bool, len(pf.Patterns))
	for i := range pf.Patterns {
		if err := pf.Patterns[i].Validate(); err != nil {
			return nil, err
		}
		if seen[pf.Patterns[i].ID] {
			return nil, fmt.Errorf("%w: %s", ErrPatternExists, pf.Patterns[i].ID)
		}
		seen[pf.Patterns[i].ID] = true
	}
	return pf.Patterns, nil
}

// MarshalPatterns encodes patterns in the same layout LoadPatternFile reads
func MarshalPatterns(patterns []Pattern) ([]byte, error) {
	return yaml.Marshal(patternFile{Patterns: patterns})
}
