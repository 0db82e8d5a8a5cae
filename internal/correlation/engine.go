// Package correlation groups related alerts, either because they match a
// known multi-step pattern or because they share context with an active
// group.
package correlation

import (
	"fmt"
	"math"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lexwatch/lexwatch/internal/alerts"
)

const (
	// PatternConfidence is the starting confidence of a pattern-matched group
	PatternConfidence = 0.8
	// StandaloneConfidence is the confidence of a single-alert group
	StandaloneConfidence = 0.1
	// ConfidenceStep is added each time an alert joins a heuristic group
	ConfidenceStep = 0.1
	// ProximityWindow is the gap under which two same-severity alerts are
	// considered related without shared metadata
	ProximityWindow = 30 * time.Second

	minPatternEvidence = 2
)

// AlertGroup is a set of alerts believed to share a cause. Alerts
// references the producer's alerts, oldest first; snapshots share them.
type AlertGroup struct {
	ID         string          `json:"id"`
	Alerts     []*alerts.Alert `json:"alerts"`
	Pattern    *Pattern        `json:"pattern,omitempty"`
	Confidence float64         `json:"confidence"`
	Timestamp  time.Time       `json:"timestamp"`
	Resolved   bool            `json:"resolved"`
}

func (g *AlertGroup) snapshot() *AlertGroup {
	c := *g
	c.Alerts = append([]*alerts.Alert(nil), g.Alerts...)
	if g.Pattern != nil {
		c.Pattern = g.Pattern.clone()
	}
	return &c
}

// Statistics summarizes the engine state
type Statistics struct {
	TotalGroups       int     `json:"total_groups"`
	ActiveGroups      int     `json:"active_groups"`
	ResolvedGroups    int     `json:"resolved_groups"`
	PatternMatches    int     `json:"pattern_matches"`
	AverageConfidence float64 `json:"average_confidence"`
}

// Option configures an Engine
type Option func(*Engine)

// WithClock overrides the time source
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// WithoutBuiltinPatterns starts the engine with an empty pattern library
func WithoutBuiltinPatterns() Option {
	return func(e *Engine) {
		e.patterns = nil
	}
}

// Engine correlates incoming alerts into groups. All methods are safe for
// concurrent use; ProcessAlert and library mutations are serialized.
type Engine struct {
	mu       sync.Mutex
	window   time.Duration
	now      func() time.Time
	history  *History
	patterns []*Pattern
	groups   []*AlertGroup
	logger   *zap.Logger
}

// NewEngine creates an engine correlating over the given window, seeded
// with BuiltinPatterns.
func NewEngine(window time.Duration, logger *zap.Logger, opts ...Option) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &Engine{
		window: window,
		now:    time.Now,
		logger: logger.Named("correlation"),
	}
	for _, p := range BuiltinPatterns() {
		e.patterns = append(e.patterns, &p)
	}
	for _, opt := range opts {
		opt(e)
	}
	e.history = NewHistory(window, e.now)
	return e
}

// ProcessAlert records the alert and returns the group it was placed in.
// The returned group is a snapshot.
func (e *Engine) ProcessAlert(alert *alerts.Alert) *AlertGroup {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.history.Record(alert)
	e.cleanupLocked()

	now := e.now()

	if group := e.findRelatedGroupLocked(alert, now); group != nil {
		group.Alerts = insertByTimestamp(group.Alerts, alert)
		group.Timestamp = now
		group.Confidence = addConfidence(group.Confidence, ConfidenceStep)
		e.logger.Debug("alert joined group",
			zap.String("alert_id", alert.ID),
			zap.String("group_id", group.ID),
			zap.Float64("confidence", group.Confidence))
		return group.snapshot()
	}

	recent := e.history.Recent()
	for _, p := range e.patterns {
		matched := AlertsMatchingPattern(p, recent)
		if len(matched) < minPatternEvidence {
			continue
		}
		p.Frequency++
		group := &AlertGroup{
			ID:         uuid.NewString(),
			Alerts:     matched,
			Pattern:    p,
			Confidence: PatternConfidence,
			Timestamp:  now,
		}
		e.groups = append(e.groups, group)
		e.logger.Info("pattern matched",
			zap.String("alert_id", alert.ID),
			zap.String("group_id", group.ID),
			zap.String("pattern_id", p.ID),
			zap.Int("alerts", len(matched)))
		return group.snapshot()
	}

	group := &AlertGroup{
		ID:         uuid.NewString(),
		Alerts:     []*alerts.Alert{alert},
		Confidence: StandaloneConfidence,
		Timestamp:  now,
	}
	e.groups = append(e.groups, group)
	return group.snapshot()
}

func (e *Engine) findRelatedGroupLocked(alert *alerts.Alert, now time.Time) *AlertGroup {
	cutoff := now.Add(-e.window)
	for _, g := range e.groups {
		if g.Resolved || g.Timestamp.Before(cutoff) {
			continue
		}
		if Related(g.Alerts[0], alert) {
			return g
		}
	}
	return nil
}

// insertByTimestamp keeps members oldest first. Concurrent producers can
// reach the engine out of creation order, and Alerts[0] must stay the
// earliest member since it represents the group.
func insertByTimestamp(members []*alerts.Alert, alert *alerts.Alert) []*alerts.Alert {
	i := sort.Search(len(members), func(i int) bool {
		return members[i].Timestamp.After(alert.Timestamp)
	})
	return slices.Insert(members, i, alert)
}

// Related reports whether two alerts belong together: same severity, and
// either a shared user, IP address or resource, or timestamps within
// ProximityWindow of each other.
func Related(a, b *alerts.Alert) bool {
	if a.Severity != b.Severity {
		return false
	}
	for _, key := range []string{alerts.MetaUserID, alerts.MetaIPAddress, alerts.MetaResource} {
		if v := a.Metadata.String(key); v != "" && v == b.Metadata.String(key) {
			return true
		}
	}
	gap := a.Timestamp.Sub(b.Timestamp)
	if gap < 0 {
		gap = -gap
	}
	return gap <= ProximityWindow
}

func addConfidence(current, step float64) float64 {
	return math.Min(1.0, round2(current+step))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// Cleanup trims the history and forgets groups that can no longer
// correlate. It returns the number of alerts dropped from the history.
func (e *Engine) Cleanup() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cleanupLocked()
}

func (e *Engine) cleanupLocked() int {
	removed := e.history.Cleanup()
	cutoff := e.now().Add(-2 * e.window)
	kept := e.groups[:0]
	for _, g := range e.groups {
		if !g.Timestamp.Before(cutoff) {
			kept = append(kept, g)
		}
	}
	for i := len(kept); i < len(e.groups); i++ {
		e.groups[i] = nil
	}
	e.groups = kept
	return removed
}

// RecentAlerts returns the alerts inside the correlation window, oldest first
func (e *Engine) RecentAlerts() []*alerts.Alert {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.history.Recent()
}

// ResolveGroup marks a group resolved. It returns false only when the
// group is unknown; resolving twice is a no-op.
func (e *Engine) ResolveGroup(id string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, g := range e.groups {
		if g.ID == id {
			g.Resolved = true
			return true
		}
	}
	return false
}

// Group returns a snapshot of the group with the given id
func (e *Engine) Group(id string) (*AlertGroup, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, g := range e.groups {
		if g.ID == id {
			return g.snapshot(), true
		}
	}
	return nil, false
}

// Groups returns snapshots of all groups in creation order
func (e *Engine) Groups() []*AlertGroup {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]*AlertGroup, len(e.groups))
	for i, g := range e.groups {
		out[i] = g.snapshot()
	}
	return out
}

// Statistics returns group counts, the total number of pattern matches and
// the mean group confidence rounded to two decimals.
func (e *Engine) Statistics() Statistics {
	e.mu.Lock()
	defer e.mu.Unlock()

	var stats Statistics
	var sum float64
	for _, g := range e.groups {
		stats.TotalGroups++
		if g.Resolved {
			stats.ResolvedGroups++
		} else {
			stats.ActiveGroups++
		}
		sum += g.Confidence
	}
	for _, p := range e.patterns {
		stats.PatternMatches += p.Frequency
	}
	if stats.TotalGroups > 0 {
		stats.AverageConfidence = round2(sum / float64(stats.TotalGroups))
	}
	return stats
}

// Patterns returns copies of the library in match order
func (e *Engine) Patterns() []Pattern {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Pattern, len(e.patterns))
	for i, p := range e.patterns {
		out[i] = *p.clone()
	}
	return out
}

// AddPattern appends a pattern to the end of the library
func (e *Engine) AddPattern(p Pattern) error {
	// Validate normalizes the sequence in place; keep the caller's slice intact.
	p = *p.clone()
	if err := p.Validate(); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, existing := range e.patterns {
		if existing.ID == p.ID {
			return fmt.Errorf("%w: %s", ErrPatternExists, p.ID)
		}
	}
	p.Frequency = 0
	e.patterns = append(e.patterns, &p)
	e.logger.Info("pattern added", zap.String("pattern_id", p.ID))
	return nil
}

// RemovePattern deletes a pattern from the library. Groups already
// referencing it keep the reference. Returns false when the id is unknown.
func (e *Engine) RemovePattern(id string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i, p := range e.patterns {
		if p.ID == id {
			e.patterns = append(e.patterns[:i], e.patterns[i+1:]...)
			e.logger.Info("pattern removed", zap.String("pattern_id", id))
			return true
		}
	}
	return false
}
