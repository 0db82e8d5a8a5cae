package correlation

import "github.com/lexwatch/lexwatch/internal/alerts"

// MatchesPattern reports whether the pattern occurs as a contiguous run in
// recent (oldest first).
func MatchesPattern(p *Pattern, recent []*alerts.Alert) bool {
	return matchStart(p, recent) >= 0
}

// AlertsMatchingPattern returns the alerts of the left-most window that
// matches the pattern, or nil when there is none.
func AlertsMatchingPattern(p *Pattern, recent []*alerts.Alert) []*alerts.Alert {
	start := matchStart(p, recent)
	if start < 0 {
		return nil
	}
	matched := make([]*alerts.Alert, len(p.Sequence))
	copy(matched, recent[start:start+len(p.Sequence)])
	return matched
}

// matchStart returns the index of the first window where every sequence
// element is contained in the title or message of the corresponding alert.
func matchStart(p *Pattern, recent []*alerts.Alert) int {
	if p == nil {
		return -1
	}
	l := len(p.Sequence)
	if l == 0 || len(recent) < l {
		return -1
	}
	for i := 0; i <= len(recent)-l; i++ {
		ok := true
		for j, fragment := range p.Sequence {
			if !recent[i+j].Contains(fragment) {
				ok = false
				break
			}
		}
		if ok {
			return i
		}
	}
	return -1
}
