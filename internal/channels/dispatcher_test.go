package channels

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/lexwatch/lexwatch/internal/alerts"
	"github.com/lexwatch/lexwatch/internal/testhelpers"
)

type panickingChannel struct{ *testhelpers.RecordingChannel }

func (p panickingChannel) Send(ctx context.Context, alert *alerts.Alert) error {
	panic("boom")
}

func newTestDispatcher(t *testing.T) (*Dispatcher, *observer.ObservedLogs) {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	return NewDispatcher(zap.New(core), DispatcherConfig{Timeout: 200 * time.Millisecond}), logs
}

func TestDispatch_FansOutToConfiguredChannels(t *testing.T) {
	defer goleak.VerifyNone(t)
	d, _ := newTestDispatcher(t)

	a := testhelpers.NewRecordingChannel("a")
	b := testhelpers.NewRecordingChannel("b")
	off := testhelpers.NewRecordingChannel("off")
	off.Configured = false
	d.Add(a)
	d.Add(b)
	d.Add(off)

	d.Dispatch(testhelpers.NewAlertBuilder().Build())
	d.Wait()

	assert.Len(t, a.Sent(), 1)
	assert.Len(t, b.Sent(), 1)
	assert.Empty(t, off.Sent())
}

func TestDispatch_FailureIsIsolatedAndLogged(t *testing.T) {
	defer goleak.VerifyNone(t)
	d, logs := newTestDispatcher(t)

	failing := testhelpers.NewRecordingChannel("failing")
	failing.Err = errors.New("connection refused")
	healthy := testhelpers.NewRecordingChannel("healthy")
	d.Add(failing)
	d.Add(panickingChannel{testhelpers.NewRecordingChannel("panicky")})
	d.Add(healthy)

	alert := testhelpers.NewAlertBuilder().WithID("alert-1").Build()
	d.Dispatch(alert)
	d.Wait()

	assert.Len(t, healthy.Sent(), 1)

	failures := logs.FilterMessage("notification failed").All()
	require.Len(t, failures, 2)
	channelsLogged := map[string]bool{}
	for _, entry := range failures {
		fields := entry.ContextMap()
		assert.Equal(t, "alert-1", fields["alert_id"])
		channelsLogged[fields["channel"].(string)] = true
	}
	assert.True(t, channelsLogged["failing"])
	assert.True(t, channelsLogged["panicky"])
}

func TestDispatch_TimeoutCountsAsFailure(t *testing.T) {
	defer goleak.VerifyNone(t)
	d, logs := newTestDispatcher(t)

	slow := testhelpers.NewRecordingChannel("slow")
	slow.Delay = 5 * time.Second
	fast := testhelpers.NewRecordingChannel("fast")
	d.Add(slow)
	d.Add(fast)

	d.Dispatch(testhelpers.NewAlertBuilder().Build())
	d.Wait()

	assert.Empty(t, slow.Sent())
	assert.Len(t, fast.Sent(), 1)
	failures := logs.FilterMessage("notification failed").All()
	require.Len(t, failures, 1)
	assert.Equal(t, "slow", failures[0].ContextMap()["channel"])
}

func TestDispatch_DoesNotBlockCaller(t *testing.T) {
	defer goleak.VerifyNone(t)
	d, _ := newTestDispatcher(t)

	slow := testhelpers.NewRecordingChannel("slow")
	slow.Delay = 150 * time.Millisecond
	d.Add(slow)

	testhelpers.MustCompleteWithin(t, 50*time.Millisecond, func() {
		d.Dispatch(testhelpers.NewAlertBuilder().Build())
	})
	d.Wait()
	assert.Len(t, slow.Sent(), 1)
}

func TestDispatch_SeverityGates(t *testing.T) {
	defer goleak.VerifyNone(t)
	core, _ := observer.New(zapcore.DebugLevel)
	d := NewDispatcher(zap.New(core), DispatcherConfig{MinSeverity: alerts.SeverityWarning})

	criticalOnly := testhelpers.NewRecordingChannel("critical-only")
	criticalOnly.MinSeverity = alerts.SeverityCritical
	all := testhelpers.NewRecordingChannel("all")
	d.Add(criticalOnly)
	d.Add(all)

	d.Dispatch(testhelpers.NewAlertBuilder().WithSeverity(alerts.SeverityInfo).Build())
	d.Dispatch(testhelpers.NewAlertBuilder().WithSeverity(alerts.SeverityError).Build())
	d.Dispatch(testhelpers.NewAlertBuilder().WithSeverity(alerts.SeverityCritical).Build())
	d.Wait()

	assert.Len(t, all.Sent(), 2, "info is below the dispatcher threshold")
	assert.Len(t, criticalOnly.Sent(), 1)
}

func TestDispatchResolved_OnlyResolvers(t *testing.T) {
	defer goleak.VerifyNone(t)
	d, _ := newTestDispatcher(t)

	rec := testhelpers.NewRecordingChannel("pager")
	d.Add(rec)

	d.DispatchResolved(testhelpers.NewAlertBuilder().Build())
	d.Wait()

	assert.Len(t, rec.Resolved(), 1)
	assert.Empty(t, rec.Sent())
}

func TestDispatcher_AddRemove(t *testing.T) {
	d, _ := newTestDispatcher(t)

	first := testhelpers.NewRecordingChannel("slack")
	replacement := testhelpers.NewRecordingChannel("slack")
	d.Add(first)
	d.Add(testhelpers.NewRecordingChannel("sms"))
	d.Add(replacement)

	require.Len(t, d.Channels(), 2)
	ch, ok := d.Channel("slack")
	require.True(t, ok)
	assert.Same(t, replacement, ch)

	assert.True(t, d.Remove("sms"))
	assert.False(t, d.Remove("sms"))
	assert.Len(t, d.Channels(), 1)
}

func TestDispatch_NoChannels(t *testing.T) {
	defer goleak.VerifyNone(t)
	d, _ := newTestDispatcher(t)

	d.Dispatch(testhelpers.NewAlertBuilder().Build())
	d.Wait()
}
