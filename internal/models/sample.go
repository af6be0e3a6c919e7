package models

import "time"

// Payload is the parsed bridge object before normalization.
type Payload map[string]any

// MetricsSample is the immutable snapshot produced by one successful poll.
type MetricsSample struct {
	CPU            float64
	RAMUsedPercent float64
	DiskReadMBps   float64
	DiskWriteMBps  float64
	NetSentKBps    float64
	NetRecvKBps    float64
	ProcessCount   int
	Confidence     float64
	// AnomalyFlag is derived from Confidence and the high threshold.
	AnomalyFlag bool
	// ModelFlag is the model's own anomaly verdict as reported on the wire.
	ModelFlag bool
	// MLFlag reports whether the ML detector (rather than the statistical baseline) fired.
	MLFlag     bool
	Reasons    []string
	ObservedAt time.Time
}

// ReasonList returns a copy of the sample's reasons.
func (s MetricsSample) ReasonList() []string {
	if len(s.Reasons) == 0 {
		return []string{}
	}
	return append([]string(nil), s.Reasons...)
}
