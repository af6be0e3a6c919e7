package engine

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/miradorstack/mirador-sentinel/internal/metrics"
	"github.com/miradorstack/mirador-sentinel/internal/models"
)

const (
	sourceML       = "ml model"
	sourceBaseline = "statistical baseline"
)

// Ledger persists accepted feedback.
type Ledger interface {
	Append(episodeID string, rec models.FeedbackRecord) error
}

// Config holds the engine's band thresholds and feedback window length.
type Config struct {
	Thresholds     models.Thresholds
	FeedbackWindow time.Duration
}

// Option customises an Engine.
type Option func(*Engine)

// WithAfterFunc replaces the scheduler behind the feedback window timer.
func WithAfterFunc(fn AfterFunc) Option {
	return func(e *Engine) { e.debounce = NewDebounce(fn) }
}

// WithClock replaces the clock used for ledger timestamps.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// episode is the open high-band run. submitted is the latch; windowOpen is
// cleared by submission or timer expiry and never reopens within the episode.
type episode struct {
	id         string
	submitted  bool
	windowOpen bool
	sample     models.MetricsSample
}

// Engine is the alert state machine. All state sits behind mu; the entry points
// are Observe (poll loop), TrySubmit (UI) and OnTimerExpiry (timer).
type Engine struct {
	logger     *slog.Logger
	ledger     Ledger
	thresholds models.Thresholds
	window     time.Duration
	now        func() time.Time

	mu       sync.Mutex
	prevBand models.AlertBand
	episode  *episode
	debounce *Debounce
	last     models.AlertDecision
}

// New constructs an Engine. ledger may be nil, in which case accepted feedback is
// only latched.
func New(logger *slog.Logger, ledger Ledger, cfg Config, opts ...Option) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Thresholds == (models.Thresholds{}) {
		cfg.Thresholds = models.DefaultThresholds()
	}
	if cfg.FeedbackWindow <= 0 {
		cfg.FeedbackWindow = 15 * time.Second
	}

	e := &Engine{
		logger:     logger,
		ledger:     ledger,
		thresholds: cfg.Thresholds,
		window:     cfg.FeedbackWindow,
		now:        time.Now,
		prevBand:   models.BandNormal,
		last:       models.AlertDecision{Band: models.BandNormal, Message: normalMessage, Reasons: []string{}},
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.debounce == nil {
		e.debounce = NewDebounce(nil)
	}
	return e
}

const normalMessage = "System normal"

// Observe classifies sample, advances the episode state and returns the decision
// to display.
func (e *Engine) Observe(sample models.MetricsSample) models.AlertDecision {
	e.mu.Lock()
	defer e.mu.Unlock()

	band := e.thresholds.Classify(sample.Confidence)

	var decision models.AlertDecision
	switch band {
	case models.BandHigh:
		if e.prevBand != models.BandHigh || e.episode == nil {
			e.startEpisodeLocked()
		}
		e.episode.sample = sample
		decision = e.highDecisionLocked(sample)
	case models.BandSuspicious:
		e.closeEpisodeLocked(band)
		decision = models.AlertDecision{
			Band:    band,
			Message: fmt.Sprintf("Suspicious activity (confidence %.1f%%)", sample.Confidence),
			Reasons: sample.ReasonList(),
		}
	default:
		e.closeEpisodeLocked(band)
		decision = models.AlertDecision{
			Band:    models.BandNormal,
			Message: normalMessage,
			Reasons: sample.ReasonList(),
		}
	}

	e.prevBand = band
	e.last = decision
	metrics.SetBand(int(band))
	return copyDecision(decision)
}

// TrySubmit records a human label for the open episode. It returns false, with no
// side effects, when no feedback window is open or the episode already has a
// submission. On acceptance the latch is set before the ledger write, so a write
// error is returned alongside accepted == true.
func (e *Engine) TrySubmit(label models.Label) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	ep := e.episode
	if ep == nil || ep.submitted || !ep.windowOpen {
		metrics.ObserveSubmission(metrics.SubmissionRejected, string(label))
		e.logger.Debug("feedback rejected", slog.String("label", string(label)), slog.Bool("episode_open", ep != nil))
		return false, nil
	}

	ep.submitted = true
	ep.windowOpen = false
	e.debounce.Cancel()
	e.last.FeedbackEnabled = false
	metrics.ObserveSubmission(metrics.SubmissionAccepted, string(label))

	rec := models.FeedbackRecord{
		Timestamp:        e.now(),
		Sample:           ep.sample,
		PredictedAnomaly: ep.sample.AnomalyFlag,
		UserLabel:        label,
	}
	e.logger.Info("feedback accepted", slog.String("episode_id", ep.id), slog.String("label", string(label)))

	if e.ledger == nil {
		return true, nil
	}
	if err := e.ledger.Append(ep.id, rec); err != nil {
		metrics.LedgerWriteFailed()
		return true, fmt.Errorf("append feedback for episode %s: %w", ep.id, err)
	}
	return true, nil
}

// OnTimerExpiry closes the open feedback window without touching the latch. It is
// a no-op when no window is open.
func (e *Engine) OnTimerExpiry() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.expireLocked()
}

// Decision returns the most recent decision with the live feedback state.
func (e *Engine) Decision() models.AlertDecision {
	e.mu.Lock()
	defer e.mu.Unlock()
	return copyDecision(e.last)
}

// FeedbackWindowArmed reports whether the debounce timer is running.
func (e *Engine) FeedbackWindowArmed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.debounce.Armed()
}

func (e *Engine) onTimer(gen uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.debounce.Expire(gen) {
		return
	}
	e.expireLocked()
}

func (e *Engine) expireLocked() {
	ep := e.episode
	if ep == nil || ep.submitted || !ep.windowOpen {
		return
	}
	ep.windowOpen = false
	e.debounce.Cancel()
	e.last.FeedbackEnabled = false
	metrics.WindowExpired()
	e.logger.Info("feedback window expired", slog.String("episode_id", ep.id))
}

func (e *Engine) startEpisodeLocked() {
	e.episode = &episode{id: uuid.NewString(), windowOpen: true}
	e.debounce.Arm(e.window, e.onTimer)
	metrics.EpisodeStarted()
	metrics.WindowArmed()
	e.logger.Info("anomaly episode started",
		slog.String("episode_id", e.episode.id),
		slog.Duration("feedback_window", e.window))
}

func (e *Engine) closeEpisodeLocked(band models.AlertBand) {
	e.debounce.Cancel()
	if e.episode == nil {
		return
	}
	e.logger.Info("anomaly episode closed",
		slog.String("episode_id", e.episode.id),
		slog.Bool("feedback_submitted", e.episode.submitted),
		slog.String("band", band.String()))
	e.episode = nil
}

func (e *Engine) highDecisionLocked(sample models.MetricsSample) models.AlertDecision {
	source := sourceBaseline
	if sample.MLFlag {
		source = sourceML
	}
	return models.AlertDecision{
		Band:            models.BandHigh,
		FeedbackEnabled: e.episode.windowOpen && !e.episode.submitted,
		Message:         fmt.Sprintf("Anomaly detected (confidence %.1f%%)", sample.Confidence),
		Reasons:         sample.ReasonList(),
		Source:          source,
		EpisodeID:       e.episode.id,
	}
}

func copyDecision(d models.AlertDecision) models.AlertDecision {
	d.Reasons = append([]string{}, d.Reasons...)
	return d
}
