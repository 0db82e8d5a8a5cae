package correlation

import (
	"sort"
	"time"

	"github.com/lexwatch/lexwatch/internal/alerts"
)

// History is the time-bounded record of alerts the engine correlates over.
// It is not safe for concurrent use; the Engine serializes access.
type History struct {
	window time.Duration
	now    func() time.Time
	alerts []*alerts.Alert
}

// NewHistory creates a history that reports alerts newer than window
func NewHistory(window time.Duration, now func() time.Time) *History {
	if now == nil {
		now = time.Now
	}
	return &History{window: window, now: now}
}

// Record appends an alert
func (h *History) Record(alert *alerts.Alert) {
	h.alerts = append(h.alerts, alert)
}

// Recent returns alerts with timestamp > now - window, oldest first
func (h *History) Recent() []*alerts.Alert {
	cutoff := h.now().Add(-h.window)
	recent := make([]*alerts.Alert, 0, len(h.alerts))
	for _, a := range h.alerts {
		if a.Timestamp.After(cutoff) {
			recent = append(recent, a)
		}
	}
	sort.SliceStable(recent, func(i, j int) bool {
		return recent[i].Timestamp.Before(recent[j].Timestamp)
	})
	return recent
}

// Cleanup drops alerts older than twice the window and returns how many
// were removed.
func (h *History) Cleanup() int {
	cutoff := h.now().Add(-2 * h.window)
	kept := h.alerts[:0]
	for _, a := range h.alerts {
		if !a.Timestamp.Before(cutoff) {
			kept = append(kept, a)
		}
	}
	removed := len(h.alerts) - len(kept)
	for i := len(kept); i < len(h.alerts); i++ {
		h.alerts[i] = nil
	}
	h.alerts = kept
	return removed
}

// Len returns the number of retained alerts
func (h *History) Len() int {
	return len(h.alerts)
}
