package channels

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/lexwatch/lexwatch/internal/alerts"
)

// Dispatcher fans alerts out to the registered channels. Dispatch never
// blocks the caller on channel latency and never returns channel errors.
type Dispatcher struct {
	mu          sync.RWMutex
	channels    []Channel
	timeout     time.Duration
	minSeverity alerts.Severity
	logger      *zap.Logger
	inflight    sync.WaitGroup
}

// DispatcherConfig holds the dispatch policy
type DispatcherConfig struct {
	// Timeout bounds each individual channel delivery.
	Timeout time.Duration
	// MinSeverity skips dispatch entirely for less urgent alerts.
	MinSeverity alerts.Severity
}

// NewDispatcher creates a dispatcher with no channels
func NewDispatcher(logger *zap.Logger, cfg DispatcherConfig) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.MinSeverity == "" {
		cfg.MinSeverity = alerts.SeverityInfo
	}
	return &Dispatcher{
		timeout:     cfg.Timeout,
		minSeverity: cfg.MinSeverity,
		logger:      logger.Named("dispatcher"),
	}
}

// Add registers a channel, replacing any channel with the same name
func (d *Dispatcher) Add(ch Channel) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i, existing := range d.channels {
		if existing.Name() == ch.Name() {
			d.channels[i] = ch
			return
		}
	}
	d.channels = append(d.channels, ch)
	d.logger.Info("channel registered",
		zap.String("channel", ch.Name()),
		zap.Bool("configured", ch.IsConfigured()))
}

// Remove unregisters a channel by name. Returns false when unknown.
func (d *Dispatcher) Remove(name string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i, ch := range d.channels {
		if ch.Name() == name {
			d.channels = append(d.channels[:i], d.channels[i+1:]...)
			return true
		}
	}
	return false
}

// Channels returns the registered channels in registration order
func (d *Dispatcher) Channels() []Channel {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]Channel(nil), d.channels...)
}

// Channel returns the registered channel with the given name
func (d *Dispatcher) Channel(name string) (Channel, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, ch := range d.channels {
		if ch.Name() == name {
			return ch, true
		}
	}
	return nil, false
}

// Dispatch sends the alert to every configured channel whose severity gate
// passes. It returns immediately; deliveries run in the background.
func (d *Dispatcher) Dispatch(alert *alerts.Alert) {
	if !alert.Severity.AtLeast(d.minSeverity) {
		d.logger.Debug("alert below notification threshold",
			zap.String("alert_id", alert.ID),
			zap.String("severity", alert.Severity.String()))
		return
	}
	d.start(alert, "send", func(ctx context.Context, ch Channel) (bool, error) {
		if !ch.ShouldSend(alert.Severity) {
			return false, nil
		}
		return true, ch.Send(ctx, alert)
	})
}

// DispatchResolved notifies channels implementing Resolver that the alert
// was resolved.
func (d *Dispatcher) DispatchResolved(alert *alerts.Alert) {
	d.start(alert, "resolve", func(ctx context.Context, ch Channel) (bool, error) {
		r, ok := ch.(Resolver)
		if !ok || !ch.ShouldSend(alert.Severity) {
			return false, nil
		}
		return true, r.Resolve(ctx, alert)
	})
}

// Wait blocks until every in-flight dispatch has finished
func (d *Dispatcher) Wait() {
	d.inflight.Wait()
}

type deliverFunc func(ctx context.Context, ch Channel) (attempted bool, err error)

func (d *Dispatcher) start(alert *alerts.Alert, action string, deliver deliverFunc) {
	registered := d.Channels()
	targets := make([]Channel, 0, len(registered))
	for _, ch := range registered {
		if ch.IsConfigured() {
			targets = append(targets, ch)
		}
	}
	if len(targets) == 0 {
		return
	}

	d.inflight.Add(1)
	go func() {
		defer d.inflight.Done()

		var g errgroup.Group
		for _, ch := range targets {
			g.Go(func() error {
				return d.deliver(ch, alert, action, deliver)
			})
		}
		if err := g.Wait(); err != nil {
			d.logger.Debug("fan-out finished with failures",
				zap.String("alert_id", alert.ID),
				zap.String("action", action),
				zap.Error(err))
		}
	}()
}

// deliver runs one channel delivery with its own timeout. Failures and
// panics are logged here and returned for the fan-out summary.
func (d *Dispatcher) deliver(ch Channel, alert *alerts.Alert, action string, fn deliverFunc) (err error) {
	name := ch.Name()
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("channel %s panicked: %v", name, r)
		}
		if err != nil {
			notificationsTotal.WithLabelValues(name, statusFailed).Inc()
			d.logger.Error("notification failed",
				zap.String("channel", name),
				zap.String("alert_id", alert.ID),
				zap.String("action", action),
				zap.Duration("elapsed", time.Since(start)),
				zap.Error(err))
		}
	}()

	attempted, err := fn(ctx, ch)
	if !attempted {
		notificationsTotal.WithLabelValues(name, statusSkipped).Inc()
		d.logger.Debug("channel skipped for severity",
			zap.String("channel", name),
			zap.String("alert_id", alert.ID),
			zap.String("severity", alert.Severity.String()))
		return nil
	}
	notificationDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	notificationsTotal.WithLabelValues(name, statusSent).Inc()
	return nil
}
