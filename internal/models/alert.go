package models

import "math"

// AlertBand partitions confidence into display bands.
type AlertBand int

const (
	BandNormal AlertBand = iota
	BandSuspicious
	BandHigh
)

func (b AlertBand) String() string {
	switch b {
	case BandSuspicious:
		return "suspicious"
	case BandHigh:
		return "high"
	default:
		return "normal"
	}
}

const (
	// DefaultSuspiciousThreshold is the inclusive lower bound of the suspicious band.
	DefaultSuspiciousThreshold = 40.0
	// DefaultHighThreshold is the inclusive lower bound of the high band.
	DefaultHighThreshold = 60.0
)

// Thresholds holds the band boundaries. Each bound is inclusive for the band above it.
type Thresholds struct {
	Suspicious float64
	High       float64
}

// DefaultThresholds returns the 40/60 band boundaries.
func DefaultThresholds() Thresholds {
	return Thresholds{Suspicious: DefaultSuspiciousThreshold, High: DefaultHighThreshold}
}

// Classify maps a confidence value to its band. NaN classifies as normal.
func (t Thresholds) Classify(confidence float64) AlertBand {
	switch {
	case math.IsNaN(confidence):
		return BandNormal
	case confidence >= t.High:
		return BandHigh
	case confidence >= t.Suspicious:
		return BandSuspicious
	default:
		return BandNormal
	}
}

// Classify maps confidence to a band using the default thresholds.
func Classify(confidence float64) AlertBand {
	return DefaultThresholds().Classify(confidence)
}

// AlertDecision is the engine's output for one observed sample.
type AlertDecision struct {
	Band            AlertBand
	FeedbackEnabled bool
	Message         string
	Reasons         []string
	// Source names the detector behind a high alert.
	Source    string
	EpisodeID string
}
