package models

import (
	"fmt"
	"strings"
	"time"
)

// Label is the human verdict on a predicted anomaly.
type Label string

const (
	LabelTrue  Label = "TRUE"
	LabelFalse Label = "FALSE"
)

// LabelFromBool maps a confirm/reject button press to a Label.
func LabelFromBool(confirmed bool) Label {
	if confirmed {
		return LabelTrue
	}
	return LabelFalse
}

// ParseLabel accepts TRUE/FALSE in any case.
func ParseLabel(value string) (Label, error) {
	switch strings.ToUpper(strings.TrimSpace(value)) {
	case string(LabelTrue):
		return LabelTrue, nil
	case string(LabelFalse):
		return LabelFalse, nil
	default:
		return "", fmt.Errorf("invalid label %q", value)
	}
}

// FeedbackRecord is one persisted ledger row.
type FeedbackRecord struct {
	Timestamp        time.Time
	Sample           MetricsSample
	PredictedAnomaly bool
	UserLabel        Label
}
