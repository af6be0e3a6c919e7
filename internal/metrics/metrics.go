package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	// OutcomeSuccess labels polls that produced a sample.
	OutcomeSuccess = "success"
	// OutcomeUnreachable labels polls that could not reach the bridge.
	OutcomeUnreachable = "unreachable"
	// OutcomeInvalidPayload labels polls whose reply could not be parsed.
	OutcomeInvalidPayload = "invalid_payload"

	// SubmissionAccepted labels feedback that advanced the latch.
	SubmissionAccepted = "accepted"
	// SubmissionRejected labels feedback refused by the latch or a closed window.
	SubmissionRejected = "rejected"
)

var (
	pollsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sentinel",
			Name:      "polls_total",
			Help:      "Total number of bridge polls, partitioned by outcome.",
		},
		[]string{"outcome"},
	)

	pollDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "sentinel",
			Name:      "poll_seconds",
			Help:      "Bridge poll round-trip latency in seconds.",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2},
		},
	)

	alertBand = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "sentinel",
			Name:      "alert_band",
			Help:      "Current alert band (0=normal, 1=suspicious, 2=high).",
		},
	)

	bridgeConnected = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "sentinel",
			Name:      "bridge_connected",
			Help:      "1 when the last bridge poll succeeded, 0 otherwise.",
		},
	)

	episodesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "sentinel",
			Name:      "episodes_total",
			Help:      "Number of high-band episodes started.",
		},
	)

	feedbackWindowsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sentinel",
			Name:      "feedback_windows_total",
			Help:      "Feedback window lifecycle events, partitioned by event (armed, expired).",
		},
		[]string{"event"},
	)

	feedbackSubmissionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sentinel",
			Name:      "feedback_submissions_total",
			Help:      "Feedback submissions, partitioned by result and label.",
		},
		[]string{"result", "label"},
	)

	ledgerWriteFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "sentinel",
			Name:      "ledger_write_failures_total",
			Help:      "Accepted submissions whose ledger row could not be written.",
		},
	)
)

// Register attaches sentinel collectors to the supplied Prometheus registerer.
func Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		pollsTotal,
		pollDurationSeconds,
		alertBand,
		bridgeConnected,
		episodesTotal,
		feedbackWindowsTotal,
		feedbackSubmissionsTotal,
		ledgerWriteFailuresTotal,
	}

	for _, collector := range collectors {
		if err := reg.Register(collector); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
				continue
			}
			return err
		}
	}
	return nil
}

// ObservePoll records a poll duration and outcome label.
func ObservePoll(duration time.Duration, outcome string) {
	switch outcome {
	case OutcomeUnreachable, OutcomeInvalidPayload:
	default:
		outcome = OutcomeSuccess
	}
	pollsTotal.WithLabelValues(outcome).Inc()
	if duration < 0 {
		duration = 0
	}
	pollDurationSeconds.Observe(duration.Seconds())
}

// SetConnected mirrors the bridge connection indicator.
func SetConnected(connected bool) {
	if connected {
		bridgeConnected.Set(1)
		return
	}
	bridgeConnected.Set(0)
}

// SetBand records the active alert band.
func SetBand(band int) {
	alertBand.Set(float64(band))
}

// EpisodeStarted counts a new high-band episode.
func EpisodeStarted() {
	episodesTotal.Inc()
}

// WindowArmed counts a feedback window being opened.
func WindowArmed() {
	feedbackWindowsTotal.WithLabelValues("armed").Inc()
}

// WindowExpired counts a feedback window closed by its timer.
func WindowExpired() {
	feedbackWindowsTotal.WithLabelValues("expired").Inc()
}

// ObserveSubmission counts a submission attempt.
func ObserveSubmission(result, label string) {
	feedbackSubmissionsTotal.WithLabelValues(result, label).Inc()
}

// LedgerWriteFailed counts a lost ledger row.
func LedgerWriteFailed() {
	ledgerWriteFailuresTotal.Inc()
}
