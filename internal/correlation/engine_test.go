package correlation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/lexwatch/lexwatch/internal/alerts"
	"github.com/lexwatch/lexwatch/internal/testhelpers"
)

var testStart = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

func newTestEngine(t *testing.T, opts ...Option) (*Engine, *testhelpers.FakeClock) {
	t.Helper()
	clock := testhelpers.NewFakeClock(testStart)
	opts = append([]Option{WithClock(clock.Now)}, opts...)
	return NewEngine(5*time.Minute, zap.NewNop(), opts...), clock
}

func alertAt(clock *testhelpers.FakeClock, sev alerts.Severity, title string) *testhelpers.AlertBuilder {
	return testhelpers.NewAlertBuilder().WithSeverity(sev).WithTitle(title).WithMessage("").At(clock.Now())
}

func TestProcessAlert_EmptyHistoryCreatesStandaloneGroup(t *testing.T) {
	engine, clock := newTestEngine(t)

	group := engine.ProcessAlert(alertAt(clock, alerts.SeverityInfo, "disk usage high").Build())

	require.NotNil(t, group)
	assert.Len(t, group.Alerts, 1)
	assert.Nil(t, group.Pattern)
	assert.Equal(t, StandaloneConfidence, group.Confidence)
}

func TestProcessAlert_SharedIPCorrelates(t *testing.T) {
	engine, clock := newTestEngine(t)

	a := alertAt(clock, alerts.SeverityCritical, "Unauthorized access").WithMeta(alerts.MetaIPAddress, "1.2.3.4").Build()
	first := engine.ProcessAlert(a)

	clock.Advance(5 * time.Second)
	b := alertAt(clock, alerts.SeverityCritical, "Unauthorized access").WithMeta(alerts.MetaIPAddress, "1.2.3.4").Build()
	second := engine.ProcessAlert(b)

	assert.Equal(t, first.ID, second.ID)
	assert.Len(t, second.Alerts, 2)
	assert.Equal(t, 0.2, second.Confidence)
	assert.Nil(t, second.Pattern)
	assert.Equal(t, 1, engine.Statistics().TotalGroups)
}

func TestProcessAlert_LateArrivalKeepsEarliestRepresentative(t *testing.T) {
	engine, clock := newTestEngine(t)

	earlier := alertAt(clock, alerts.SeverityCritical, "Unauthorized access").WithMeta(alerts.MetaIPAddress, "1.2.3.4").Build()
	clock.Advance(2 * time.Second)
	later := alertAt(clock, alerts.SeverityCritical, "Unauthorized access").WithMeta(alerts.MetaIPAddress, "1.2.3.4").Build()

	engine.ProcessAlert(later)
	group := engine.ProcessAlert(earlier)

	require.Len(t, group.Alerts, 2)
	assert.Same(t, earlier, group.Alerts[0])
	assert.Same(t, later, group.Alerts[1])
}

func TestProcessAlert_SeverityIsAHardGate(t *testing.T) {
	engine, clock := newTestEngine(t)

	first := engine.ProcessAlert(alertAt(clock, alerts.SeverityWarning, "Suspicious query").WithMeta(alerts.MetaUserID, "u-1").Build())
	second := engine.ProcessAlert(alertAt(clock, alerts.SeverityCritical, "Suspicious query").WithMeta(alerts.MetaUserID, "u-1").Build())

	assert.NotEqual(t, first.ID, second.ID)
	assert.Len(t, second.Alerts, 1)
	assert.Equal(t, 2, engine.Statistics().TotalGroups)
}

func TestProcessAlert_ProximityWithoutMetadata(t *testing.T) {
	engine, clock := newTestEngine(t)

	first := engine.ProcessAlert(alertAt(clock, alerts.SeverityError, "upload failed").Build())
	clock.Advance(30 * time.Second)
	second := engine.ProcessAlert(alertAt(clock, alerts.SeverityError, "antivirus timeout").Build())
	clock.Advance(31 * time.Second)
	third := engine.ProcessAlert(alertAt(clock, alerts.SeverityError, "queue stalled").Build())

	assert.Equal(t, first.ID, second.ID, "alerts 30s apart are related")
	assert.NotEqual(t, first.ID, third.ID, "representative alert is 61s older")
}

func TestProcessAlert_ConfidenceIsCapped(t *testing.T) {
	engine, clock := newTestEngine(t)

	var group *AlertGroup
	expected := StandaloneConfidence
	for i := 0; i < 15; i++ {
		group = engine.ProcessAlert(alertAt(clock, alerts.SeverityWarning, "export throttled").WithMeta(alerts.MetaResource, "case-42").Build())
		if i > 0 {
			expected = addConfidence(expected, ConfidenceStep)
		}
		assert.InDelta(t, expected, group.Confidence, 1e-9, "iteration %d", i)
		clock.Advance(time.Second)
	}

	assert.Equal(t, 1.0, group.Confidence)
	assert.Len(t, group.Alerts, 15)
}

func TestProcessAlert_ExpiredGroupIsNotReused(t *testing.T) {
	engine, clock := newTestEngine(t)

	first := engine.ProcessAlert(alertAt(clock, alerts.SeverityInfo, "report generated").WithMeta(alerts.MetaUserID, "u-9").Build())
	clock.Advance(6 * time.Minute)
	second := engine.ProcessAlert(alertAt(clock, alerts.SeverityInfo, "report generated").WithMeta(alerts.MetaUserID, "u-9").Build())

	assert.NotEqual(t, first.ID, second.ID)
}

func TestProcessAlert_ResolvedGroupIsNotReused(t *testing.T) {
	engine, clock := newTestEngine(t)

	first := engine.ProcessAlert(alertAt(clock, alerts.SeverityInfo, "login").WithMeta(alerts.MetaUserID, "u-2").Build())
	require.True(t, engine.ResolveGroup(first.ID))

	second := engine.ProcessAlert(alertAt(clock, alerts.SeverityInfo, "login").WithMeta(alerts.MetaUserID, "u-2").Build())

	assert.NotEqual(t, first.ID, second.ID)
}

func TestProcessAlert_BruteForcePattern(t *testing.T) {
	engine, clock := newTestEngine(t)

	// 40s spacing and no shared metadata keep the failures out of each
	// other's heuristic groups.
	for i := 0; i < 3; i++ {
		engine.ProcessAlert(alertAt(clock, alerts.SeverityWarning, "Login failed").Build())
		clock.Advance(40 * time.Second)
	}
	group := engine.ProcessAlert(alertAt(clock, alerts.SeverityInfo, "Login successful").Build())

	require.NotNil(t, group.Pattern)
	assert.Equal(t, "brute_force_pattern", group.Pattern.ID)
	assert.Equal(t, PatternConfidence, group.Confidence)
	require.Len(t, group.Alerts, 4)
	assert.Equal(t, "Login successful", group.Alerts[3].Title)

	stats := engine.Statistics()
	assert.Equal(t, 1, stats.PatternMatches)
	for _, p := range engine.Patterns() {
		if p.ID == "brute_force_pattern" {
			assert.Equal(t, 1, p.Frequency)
		}
	}
}

func TestProcessAlert_InsufficientPatternEvidence(t *testing.T) {
	engine, clock := newTestEngine(t, WithoutBuiltinPatterns())
	require.NoError(t, engine.AddPattern(Pattern{
		ID:       "four_step",
		Sequence: []string{"login failed", "login failed", "login failed", "login successful"},
	}))

	engine.ProcessAlert(alertAt(clock, alerts.SeverityWarning, "login failed").Build())
	clock.Advance(time.Minute)
	engine.ProcessAlert(alertAt(clock, alerts.SeverityError, "login failed").Build())
	clock.Advance(time.Minute)
	group := engine.ProcessAlert(alertAt(clock, alerts.SeverityInfo, "login successful").Build())

	assert.Nil(t, group.Pattern)
	assert.Equal(t, 0, engine.Statistics().PatternMatches)
}

func TestProcessAlert_LibraryOrderDecides(t *testing.T) {
	engine, clock := newTestEngine(t, WithoutBuiltinPatterns())
	require.NoError(t, engine.AddPattern(Pattern{ID: "first", Sequence: []string{"export", "export"}}))
	require.NoError(t, engine.AddPattern(Pattern{ID: "second", Sequence: []string{"export"}}))

	engine.ProcessAlert(alertAt(clock, alerts.SeverityInfo, "export started").Build())
	clock.Advance(time.Minute)
	group := engine.ProcessAlert(alertAt(clock, alerts.SeverityWarning, "export finished").Build())

	require.NotNil(t, group.Pattern)
	assert.Equal(t, "first", group.Pattern.ID)
}

func TestProcessAlert_SingleElementPatternNeverGroups(t *testing.T) {
	engine, clock := newTestEngine(t, WithoutBuiltinPatterns())
	require.NoError(t, engine.AddPattern(Pattern{ID: "single", Sequence: []string{"export"}}))

	group := engine.ProcessAlert(alertAt(clock, alerts.SeverityInfo, "export started").Build())

	assert.Nil(t, group.Pattern)
	assert.Equal(t, StandaloneConfidence, group.Confidence)
}

func TestProcessAlert_EmptyLibrary(t *testing.T) {
	engine, clock := newTestEngine(t, WithoutBuiltinPatterns())

	group := engine.ProcessAlert(alertAt(clock, alerts.SeverityInfo, "login failed").Build())

	assert.Nil(t, group.Pattern)
	assert.Empty(t, engine.Patterns())
}

func TestResolveGroup_Idempotent(t *testing.T) {
	engine, clock := newTestEngine(t)
	group := engine.ProcessAlert(alertAt(clock, alerts.SeverityError, "x").Build())

	assert.True(t, engine.ResolveGroup(group.ID))
	assert.True(t, engine.ResolveGroup(group.ID))
	assert.False(t, engine.ResolveGroup("missing"))

	after, ok := engine.Group(group.ID)
	require.True(t, ok)
	assert.True(t, after.Resolved)
	assert.Equal(t, group.Confidence, after.Confidence)
	assert.Len(t, after.Alerts, 1)
}

func TestStatistics(t *testing.T) {
	engine, clock := newTestEngine(t)

	assert.Equal(t, Statistics{}, engine.Statistics())

	g1 := engine.ProcessAlert(alertAt(clock, alerts.SeverityError, "a").WithMeta(alerts.MetaUserID, "u").Build())
	engine.ProcessAlert(alertAt(clock, alerts.SeverityError, "b").WithMeta(alerts.MetaUserID, "u").Build())
	engine.ProcessAlert(alertAt(clock, alerts.SeverityInfo, "c").Build())
	engine.ResolveGroup(g1.ID)

	stats := engine.Statistics()
	assert.Equal(t, 2, stats.TotalGroups)
	assert.Equal(t, 1, stats.ResolvedGroups)
	assert.Equal(t, stats.TotalGroups, stats.ActiveGroups+stats.ResolvedGroups)
	assert.Equal(t, 0.15, stats.AverageConfidence)
}

func TestCleanup_PrunesOldGroupsAndHistory(t *testing.T) {
	engine, clock := newTestEngine(t)

	engine.ProcessAlert(alertAt(clock, alerts.SeverityInfo, "old").Build())
	clock.Advance(11 * time.Minute)

	assert.Equal(t, 1, engine.Cleanup())
	assert.Empty(t, engine.RecentAlerts())
	assert.Empty(t, engine.Groups())
}

func TestAddPattern(t *testing.T) {
	engine, _ := newTestEngine(t)

	err := engine.AddPattern(Pattern{ID: "custom", Sequence: []string{"Case Deleted", "Backup Purged"}})
	require.NoError(t, err)

	patterns := engine.Patterns()
	last := patterns[len(patterns)-1]
	assert.Equal(t, "custom", last.ID)
	assert.Equal(t, []string{"case deleted", "backup purged"}, last.Sequence)
	assert.Equal(t, alerts.SeverityWarning, last.Severity)

	assert.ErrorIs(t, engine.AddPattern(Pattern{ID: "custom", Sequence: []string{"x"}}), ErrPatternExists)
	assert.ErrorIs(t, engine.AddPattern(Pattern{ID: "empty"}), ErrInvalidPattern)
	assert.ErrorIs(t, engine.AddPattern(Pattern{Sequence: []string{"x"}}), ErrInvalidPattern)
}

func TestAddPattern_LeavesCallerSequenceUntouched(t *testing.T) {
	engine, _ := newTestEngine(t)

	sequence := []string{"Case Deleted", "Backup Purged"}
	require.NoError(t, engine.AddPattern(Pattern{ID: "custom", Sequence: sequence}))

	assert.Equal(t, []string{"Case Deleted", "Backup Purged"}, sequence)
}

func TestRemovePattern(t *testing.T) {
	engine, _ := newTestEngine(t)
	before := len(engine.Patterns())

	assert.True(t, engine.RemovePattern("brute_force_pattern"))
	assert.False(t, engine.RemovePattern("brute_force_pattern"))
	assert.Len(t, engine.Patterns(), before-1)
}

func TestPatterns_ReturnsCopies(t *testing.T) {
	engine, _ := newTestEngine(t)

	patterns := engine.Patterns()
	patterns[0].Sequence[0] = "mutated"

	assert.NotEqual(t, "mutated", engine.Patterns()[0].Sequence[0])
}

func TestProcessAlert_Concurrent(t *testing.T) {
	engine := NewEngine(5*time.Minute, zap.NewNop())

	testhelpers.ConcurrentTest(t, 20, func(id int) {
		for i := 0; i < 10; i++ {
			engine.ProcessAlert(testhelpers.NewAlertBuilder().WithSeverity(alerts.SeverityInfo).Build())
		}
	})

	stats := engine.Statistics()
	assert.Equal(t, stats.TotalGroups, stats.ActiveGroups+stats.ResolvedGroups)
	assert.Equal(t, 200, len(engine.RecentAlerts()))
}

func TestRelated(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		name string
		a, b *alerts.Alert
		want bool
	}{
		{
			name: "shared user far apart",
			a:    testhelpers.NewAlertBuilder().WithMeta(alerts.MetaUserID, "u").At(base).Build(),
			b:    testhelpers.NewAlertBuilder().WithMeta(alerts.MetaUserID, "u").At(base.Add(time.Hour)).Build(),
			want: true,
		},
		{
			name: "empty values do not match",
			a:    testhelpers.NewAlertBuilder().WithMeta(alerts.MetaUserID, "").At(base).Build(),
			b:    testhelpers.NewAlertBuilder().WithMeta(alerts.MetaUserID, "").At(base.Add(time.Hour)).Build(),
			want: false,
		},
		{
			name: "different resources far apart",
			a:    testhelpers.NewAlertBuilder().WithMeta(alerts.MetaResource, "r1").At(base).Build(),
			b:    testhelpers.NewAlertBuilder().WithMeta(alerts.MetaResource, "r2").At(base.Add(time.Minute)).Build(),
			want: false,
		},
		{
			name: "close in time, b earlier",
			a:    testhelpers.NewAlertBuilder().At(base.Add(10 * time.Second)).Build(),
			b:    testhelpers.NewAlertBuilder().At(base).Build(),
			want: true,
		},
		{
			name: "different severity same ip",
			a:    testhelpers.NewAlertBuilder().WithMeta(alerts.MetaIPAddress, "ip").At(base).Build(),
			b:    testhelpers.NewAlertBuilder().WithSeverity(alerts.SeverityCritical).WithMeta(alerts.MetaIPAddress, "ip").At(base).Build(),
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Related(tt.a, tt.b))
		})
	}
}
