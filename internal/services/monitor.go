package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/miradorstack/mirador-sentinel/internal/bridge"
	"github.com/miradorstack/mirador-sentinel/internal/metrics"
	"github.com/miradorstack/mirador-sentinel/internal/models"
	"github.com/miradorstack/mirador-sentinel/internal/utils"
)

// Poller fetches one payload from the anomaly process.
type Poller interface {
	Poll(ctx context.Context) (models.Payload, error)
}

// Normalizer turns a payload into a sample.
type Normalizer interface {
	Normalize(payload models.Payload) models.MetricsSample
}

// Observer is the alert state machine's tick entry point.
type Observer interface {
	Observe(sample models.MetricsSample) models.AlertDecision
}

// TickResult describes one poll tick.
type TickResult struct {
	Connected bool
	Decision  models.AlertDecision
	Sample    models.MetricsSample
	Err       error
}

// Monitor is the single periodic driver: poll, normalize, observe, publish.
type Monitor struct {
	logger     *slog.Logger
	poller     Poller
	normalizer Normalizer
	observer   Observer
	sink       Sink
	interval   time.Duration
	latencies  *utils.LatencyTracker
	failureLog rate.Sometimes
	polls      int
}

// NewMonitor constructs the poll loop.
func NewMonitor(logger *slog.Logger, poller Poller, normalizer Normalizer, observer Observer, sink Sink, interval time.Duration) *Monitor {
	if logger == nil {
		logger = slog.Default()
	}
	if sink == nil {
		sink = Sinks(nil)
	}
	if interval <= 0 {
		interval = time.Second
	}
	return &Monitor{
		logger:     logger,
		poller:     poller,
		normalizer: normalizer,
		observer:   observer,
		sink:       sink,
		interval:   interval,
		latencies:  utils.NewLatencyTracker(256),
		failureLog: rate.Sometimes{First: 1, Interval: 30 * time.Second},
	}
}

// Run ticks until ctx is cancelled. The first poll happens immediately.
func (m *Monitor) Run(ctx context.Context) error {
	m.logger.Info("monitor started", slog.Duration("interval", m.interval))
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		m.Tick(ctx)
		select {
		case <-ctx.Done():
			m.logger.Info("monitor stopped")
			return nil
		case <-ticker.C:
		}
	}
}

// Tick performs one poll. Failed polls skip Observe, so alert state is untouched.
func (m *Monitor) Tick(ctx context.Context) TickResult {
	start := time.Now()
	payload, err := m.poller.Poll(ctx)
	duration := time.Since(start)

	if err != nil {
		metrics.ObservePoll(duration, outcomeFor(err))
		metrics.SetConnected(false)
		m.sink.SetConnectionStatus(false)
		m.logFailure(err)
		return TickResult{Connected: false, Err: err}
	}

	metrics.ObservePoll(duration, metrics.OutcomeSuccess)
	metrics.SetConnected(true)
	m.latencies.Observe(duration)
	m.polls++
	if m.polls%60 == 0 {
		m.logger.Info("bridge poll latency",
			slog.Duration("p95", m.latencies.Percentile(95)),
			slog.Int("samples", m.latencies.Count()))
	}

	sample := m.normalizer.Normalize(payload)
	decision := m.observer.Observe(sample)

	m.sink.SetConnectionStatus(true)
	m.sink.Publish(decision, sample)

	m.logger.Debug("tick",
		slog.String("band", decision.Band.String()),
		slog.Float64("confidence", sample.Confidence),
		slog.Bool("feedback_enabled", decision.FeedbackEnabled))
	return TickResult{Connected: true, Decision: decision, Sample: sample}
}

func (m *Monitor) logFailure(err error) {
	attrs := []any{slog.String("kind", bridge.KindOf(err).String()), slog.Any("error", err)}
	var bErr *bridge.Error
	if errors.As(err, &bErr) && bErr.Raw != "" {
		attrs = append(attrs, slog.String("raw", bErr.Raw))
	}
	m.failureLog.Do(func() {
		m.logger.Warn("bridge poll failed", attrs...)
	})
}

func outcomeFor(err error) string {
	if bridge.KindOf(err) == bridge.KindInvalidPayload {
		return metrics.OutcomeInvalidPayload
	}
	return metrics.OutcomeUnreachable
}
