package services

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"github.com/lexwatch/lexwatch/internal/alerts"
	"github.com/lexwatch/lexwatch/internal/channels"
	"github.com/lexwatch/lexwatch/internal/config"
	"github.com/lexwatch/lexwatch/internal/correlation"
	"github.com/lexwatch/lexwatch/internal/utils"
)

const (
	// dedupMessagePrefix is how many runes of the message take part in the
	// deduplication fingerprint
	dedupMessagePrefix = 100
	archiveTimeout     = 5 * time.Second
)

// AlertHandler reacts synchronously to a newly created alert. Handlers get
// their own copy of the alert.
type AlertHandler func(ctx context.Context, alert *alerts.Alert) error

// AlertArchive persists alerts and groups outside of process memory
type AlertArchive interface {
	SaveAlert(ctx context.Context, alert *alerts.Alert) error
	MarkResolved(ctx context.Context, id string, at time.Time) error
	SaveGroup(ctx context.Context, group *correlation.AlertGroup) error
	MarkGroupResolved(ctx context.Context, id string) error
}

// AlertStatistics summarizes the alerts held by the manager
type AlertStatistics struct {
	Total      int                     `json:"total"`
	Active     int                     `json:"active"`
	Resolved   int                     `json:"resolved"`
	BySeverity map[alerts.Severity]int `json:"by_severity"`
}

// ManagerOption customizes an AlertManager
type ManagerOption func(*AlertManager)

// WithEngine uses the given correlation engine instead of building one
func WithEngine(engine *correlation.Engine) ManagerOption {
	return func(m *AlertManager) { m.engine = engine }
}

// WithDispatcher uses the given dispatcher instead of building one
func WithDispatcher(d *channels.Dispatcher) ManagerOption {
	return func(m *AlertManager) { m.dispatcher = d }
}

// WithChannels registers notification channels at construction
func WithChannels(chs ...channels.Channel) ManagerOption {
	return func(m *AlertManager) { m.initialChannels = append(m.initialChannels, chs...) }
}

// WithArchive persists alerts and groups through archive
func WithArchive(archive AlertArchive) ManagerOption {
	return func(m *AlertManager) { m.archive = archive }
}

// WithClock replaces time.Now for the manager and the engine it builds
func WithClock(now func() time.Time) ManagerOption {
	return func(m *AlertManager) { m.now = now }
}

type dedupEntry struct {
	alertID   string
	createdAt time.Time
}

// AlertManager creates, deduplicates, correlates and notifies alerts
type AlertManager struct {
	mu     sync.RWMutex
	alerts map[string]*alerts.Alert
	dedup  *cache.Cache

	handlersMu  sync.RWMutex
	handlers    map[alerts.Severity][]AlertHandler
	allHandlers []AlertHandler

	dedupWindow        time.Duration
	correlationEnabled bool

	engine          *correlation.Engine
	dispatcher      *channels.Dispatcher
	initialChannels []channels.Channel
	archive         AlertArchive
	now             func() time.Time
	logger          *zap.Logger
}

// NewAlertManager creates an alert manager from the alerting configuration
func NewAlertManager(cfg *config.Config, logger *zap.Logger, opts ...ManagerOption) *AlertManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &AlertManager{
		alerts:             make(map[string]*alerts.Alert),
		handlers:           make(map[alerts.Severity][]AlertHandler),
		dedupWindow:        cfg.AlertDeduplicationWindow,
		correlationEnabled: cfg.CorrelationEnabled,
		now:                time.Now,
		logger:             logger.Named("alert_manager"),
	}
	for _, opt := range opts {
		opt(m)
	}

	cleanupInterval := m.dedupWindow
	if cleanupInterval <= 0 {
		cleanupInterval = time.Minute
	}
	m.dedup = cache.New(m.dedupWindow, cleanupInterval)

	if m.engine == nil {
		m.engine = correlation.NewEngine(cfg.CorrelationWindow, logger, correlation.WithClock(m.now))
	}
	if m.dispatcher == nil {
		m.dispatcher = channels.NewDispatcher(logger, channels.DispatcherConfig{
			Timeout:     cfg.ChannelTimeout,
			MinSeverity: cfg.NotifyMinSeverity,
		})
	}
	for _, ch := range m.initialChannels {
		m.dispatcher.Add(ch)
	}
	m.initialChannels = nil
	return m
}

// dedupKey fingerprints an alert by severity, title and message prefix
func dedupKey(severity alerts.Severity, title, message string) string {
	return fmt.Sprintf("%s|%s|%s", severity, title, utils.Prefix(message, dedupMessagePrefix))
}

// CreateAlert records a new alert unless an identical one was created
// within the deduplication window, in which case the existing alert is
// returned and nothing else happens. Notification is asynchronous.
func (m *AlertManager) CreateAlert(ctx context.Context, severity alerts.Severity, title, message string, metadata alerts.Metadata) *alerts.Alert {
	alert, _ := m.Submit(ctx, severity, title, message, metadata)
	return alert
}

// Submit behaves like CreateAlert and also reports whether a new alert
// was created (false for a deduplicated submission).
func (m *AlertManager) Submit(ctx context.Context, severity alerts.Severity, title, message string, metadata alerts.Metadata) (*alerts.Alert, bool) {
	if !severity.IsValid() {
		severity = alerts.NormalizeSeverity(string(severity))
	}
	key := dedupKey(severity, title, message)

	m.mu.Lock()
	now := m.now()
	if existing := m.duplicateLocked(key, now); existing != nil {
		dup := existing.Clone()
		m.mu.Unlock()
		alertsDeduplicated.Inc()
		m.logger.Debug("duplicate alert suppressed",
			zap.String("alert_id", dup.ID),
			zap.String("severity", severity.String()))
		return dup, false
	}
	alert := &alerts.Alert{
		ID:        uuid.NewString(),
		Severity:  severity,
		Title:     title,
		Message:   message,
		Timestamp: now,
		Metadata:  metadata.Clone(),
	}
	m.alerts[alert.ID] = alert
	if m.dedupWindow > 0 {
		m.dedup.Set(key, dedupEntry{alertID: alert.ID, createdAt: now}, m.dedupWindow)
	}
	snapshot := alert.Clone()
	m.mu.Unlock()

	alertsCreated.WithLabelValues(severity.String()).Inc()
	activeAlerts.Inc()
	m.logger.Info("alert created",
		zap.String("alert_id", snapshot.ID),
		zap.String("severity", severity.String()),
		zap.String("title", utils.EscapeForLogging(title, 200)))

	m.runHandlers(ctx, snapshot)

	var group *correlation.AlertGroup
	if m.correlationEnabled {
		// Groups reference the stored alert so resolution shows through.
		// The engine reads only fields fixed at creation.
		group = m.detachGroup(m.engine.ProcessAlert(alert))
	}
	m.archiveCreated(ctx, snapshot, group)

	m.dispatcher.Dispatch(snapshot)
	return snapshot.Clone(), true
}

// duplicateLocked returns the live alert sharing key when it was created
// within the deduplication window
func (m *AlertManager) duplicateLocked(key string, now time.Time) *alerts.Alert {
	if m.dedupWindow <= 0 {
		return nil
	}
	v, ok := m.dedup.Get(key)
	if !ok {
		return nil
	}
	entry := v.(dedupEntry)
	if now.Sub(entry.createdAt) >= m.dedupWindow {
		return nil
	}
	// A cleaned up alert cannot be returned; treat the call as new.
	return m.alerts[entry.alertID]
}

func (m *AlertManager) runHandlers(ctx context.Context, alert *alerts.Alert) {
	m.handlersMu.RLock()
	handlers := make([]AlertHandler, 0, len(m.handlers[alert.Severity])+len(m.allHandlers))
	handlers = append(handlers, m.handlers[alert.Severity]...)
	handlers = append(handlers, m.allHandlers...)
	m.handlersMu.RUnlock()

	for i, h := range handlers {
		if err := m.callHandler(ctx, h, alert.Clone()); err != nil {
			handlerFailures.Inc()
			m.logger.Error("alert handler failed",
				zap.String("alert_id", alert.ID),
				zap.Int("handler", i),
				zap.Error(err))
		}
	}
}

func (m *AlertManager) callHandler(ctx context.Context, h AlertHandler, alert *alerts.Alert) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return h(ctx, alert)
}

func (m *AlertManager) archiveCreated(ctx context.Context, alert *alerts.Alert, group *correlation.AlertGroup) {
	if m.archive == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), archiveTimeout)
	defer cancel()

	if err := m.archive.SaveAlert(ctx, alert); err != nil {
		m.logger.Error("failed to archive alert", zap.String("alert_id", alert.ID), zap.Error(err))
	}
	if group == nil {
		return
	}
	if err := m.archive.SaveGroup(ctx, group); err != nil {
		m.logger.Error("failed to archive alert group", zap.String("group_id", group.ID), zap.Error(err))
	}
}

// ResolveAlert marks an alert resolved and notifies channels that support
// resolution. Returns false when the alert is unknown.
func (m *AlertManager) ResolveAlert(ctx context.Context, id string) bool {
	m.mu.Lock()
	alert, ok := m.alerts[id]
	if !ok {
		m.mu.Unlock()
		return false
	}
	if alert.Resolved {
		m.mu.Unlock()
		return true
	}
	now := m.now()
	alert.Resolved = true
	alert.ResolvedAt = &now
	snapshot := alert.Clone()
	m.mu.Unlock()

	alertsResolved.Inc()
	activeAlerts.Dec()
	m.logger.Info("alert resolved", zap.String("alert_id", id))

	if m.archive != nil {
		actx, cancel := context.WithTimeout(context.WithoutCancel(ctx), archiveTimeout)
		if err := m.archive.MarkResolved(actx, id, now); err != nil {
			m.logger.Error("failed to archive alert resolution", zap.String("alert_id", id), zap.Error(err))
		}
		cancel()
	}
	m.dispatcher.DispatchResolved(snapshot)
	return true
}

// GetAlert returns a copy of the alert with the given id
func (m *AlertManager) GetAlert(id string) (*alerts.Alert, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	alert, ok := m.alerts[id]
	if !ok {
		return nil, false
	}
	return alert.Clone(), true
}

// GetAlerts returns copies of every alert, newest first
func (m *AlertManager) GetAlerts() []*alerts.Alert {
	return m.filter(func(*alerts.Alert) bool { return true })
}

// GetActiveAlerts returns copies of unresolved alerts, newest first
func (m *AlertManager) GetActiveAlerts() []*alerts.Alert {
	return m.filter(func(a *alerts.Alert) bool { return !a.Resolved })
}

// GetAlertsBySeverity returns copies of alerts with the given severity,
// newest first
func (m *AlertManager) GetAlertsBySeverity(severity alerts.Severity) []*alerts.Alert {
	return m.filter(func(a *alerts.Alert) bool { return a.Severity == severity })
}

func (m *AlertManager) filter(keep func(*alerts.Alert) bool) []*alerts.Alert {
	m.mu.RLock()
	out := make([]*alerts.Alert, 0, len(m.alerts))
	for _, a := range m.alerts {
		if keep(a) {
			out = append(out, a.Clone())
		}
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].ID < out[j].ID
		}
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	return out
}

// CleanupOldAlerts drops resolved alerts created more than maxAge ago and
// returns how many were removed
func (m *AlertManager) CleanupOldAlerts(maxAge time.Duration) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := m.now().Add(-maxAge)
	removed := 0
	for id, a := range m.alerts {
		if a.Resolved && a.Timestamp.Before(cutoff) {
			delete(m.alerts, id)
			removed++
		}
	}
	if removed > 0 {
		m.logger.Debug("removed old resolved alerts", zap.Int("count", removed))
	}
	return removed
}

// Statistics counts alerts by state and severity
func (m *AlertManager) Statistics() AlertStatistics {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := AlertStatistics{BySeverity: make(map[alerts.Severity]int, len(alerts.AllSeverities))}
	for _, sev := range alerts.AllSeverities {
		stats.BySeverity[sev] = 0
	}
	for _, a := range m.alerts {
		stats.Total++
		if a.Resolved {
			stats.Resolved++
		} else {
			stats.Active++
		}
		stats.BySeverity[a.Severity]++
	}
	return stats
}

// RegisterHandler adds a handler run for alerts of the given severity
func (m *AlertManager) RegisterHandler(severity alerts.Severity, h AlertHandler) {
	m.handlersMu.Lock()
	defer m.handlersMu.Unlock()
	m.handlers[severity] = append(m.handlers[severity], h)
}

// RegisterHandlerForAll adds a handler run for every alert
func (m *AlertManager) RegisterHandlerForAll(h AlertHandler) {
	m.handlersMu.Lock()
	defer m.handlersMu.Unlock()
	m.allHandlers = append(m.allHandlers, h)
}

// AddChannel registers a notification channel
func (m *AlertManager) AddChannel(ch channels.Channel) {
	m.dispatcher.Add(ch)
}

// RemoveChannel unregisters a notification channel by name
func (m *AlertManager) RemoveChannel(name string) bool {
	return m.dispatcher.Remove(name)
}

// Channel returns the registered channel with the given name
func (m *AlertManager) Channel(name string) (channels.Channel, bool) {
	return m.dispatcher.Channel(name)
}

// Channels returns the registered channels
func (m *AlertManager) Channels() []channels.Channel {
	return m.dispatcher.Channels()
}

// GetKnownPatterns returns copies of the correlation pattern library
func (m *AlertManager) GetKnownPatterns() []correlation.Pattern {
	return m.engine.Patterns()
}

// AddPattern adds a correlation pattern
func (m *AlertManager) AddPattern(p correlation.Pattern) error {
	return m.engine.AddPattern(p)
}

// RemovePattern removes a correlation pattern by id
func (m *AlertManager) RemovePattern(id string) bool {
	return m.engine.RemovePattern(id)
}

// GetGroups returns snapshots of the correlation groups with copies of
// their member alerts
func (m *AlertManager) GetGroups() []*correlation.AlertGroup {
	groups := m.engine.Groups()
	for i, g := range groups {
		groups[i] = m.detachGroup(g)
	}
	return groups
}

// GetGroup returns a snapshot of one correlation group
func (m *AlertManager) GetGroup(id string) (*correlation.AlertGroup, bool) {
	g, ok := m.engine.Group(id)
	if !ok {
		return nil, false
	}
	return m.detachGroup(g), true
}

// detachGroup replaces the members of an engine snapshot with copies
// taken under the manager lock, since ResolveAlert mutates them.
func (m *AlertManager) detachGroup(g *correlation.AlertGroup) *correlation.AlertGroup {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for i, a := range g.Alerts {
		g.Alerts[i] = a.Clone()
	}
	return g
}

// ResolveCorrelatedGroup marks a correlation group resolved
func (m *AlertManager) ResolveCorrelatedGroup(ctx context.Context, id string) bool {
	if !m.engine.ResolveGroup(id) {
		return false
	}
	if m.archive != nil {
		actx, cancel := context.WithTimeout(context.WithoutCancel(ctx), archiveTimeout)
		defer cancel()
		if err := m.archive.MarkGroupResolved(actx, id); err != nil {
			m.logger.Error("failed to archive group resolution", zap.String("group_id", id), zap.Error(err))
		}
	}
	return true
}

// GetCorrelationStatistics returns the correlation engine statistics
func (m *AlertManager) GetCorrelationStatistics() correlation.Statistics {
	return m.engine.Statistics()
}

// Engine exposes the correlation engine for background maintenance
func (m *AlertManager) Engine() *correlation.Engine {
	return m.engine
}

// Close waits for in-flight notifications to finish
func (m *AlertManager) Close() {
	m.dispatcher.Wait()
}
