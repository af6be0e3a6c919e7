package models

import "time"

// State is the latest engine output as seen by the UI.
type State struct {
	Decision  AlertDecision
	Sample    MetricsSample
	HasSample bool
	Connected bool
	UpdatedAt time.Time
}
