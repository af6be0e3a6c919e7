package ledger

import (
	"errors"
	"io/fs"
	"math"

	"github.com/miradorstack/mirador-sentinel/internal/models"
)

// Retraining hint parameters. Below MinFeedbackRows the base rate is kept.
const (
	BaseContamination = 0.10
	MinContamination  = 0.02
	MaxContamination  = 0.20
	MinFeedbackRows   = 10
	falseRateWeight   = 0.08
)

// Stats summarises a ledger.
type Stats struct {
	Total              int
	Confirmed          int
	Rejected           int
	PredictedAnomalies int
}

// FalseRate is the share of rows labelled FALSE.
func (s Stats) FalseRate() float64 {
	if s.Total == 0 {
		return 0
	}
	return float64(s.Rejected) / float64(s.Total)
}

// Contamination suggests an outlier fraction for retraining the detector: every
// rejected alert lowers the expected anomaly rate.
func (s Stats) Contamination() float64 {
	if s.Total < MinFeedbackRows {
		return BaseContamination
	}
	c := BaseContamination - s.FalseRate()*falseRateWeight
	c = math.Max(MinContamination, math.Min(MaxContamination, c))
	return math.Round(c*1000) / 1000
}

// Summarize counts records by label and prediction.
func Summarize(records []models.FeedbackRecord) Stats {
	var s Stats
	for _, rec := range records {
		s.Total++
		switch rec.UserLabel {
		case models.LabelTrue:
			s.Confirmed++
		case models.LabelFalse:
			s.Rejected++
		}
		if rec.PredictedAnomaly {
			s.PredictedAnomalies++
		}
	}
	return s
}

// ReadStats summarises the ledger at path. A missing file yields empty stats.
func ReadStats(path string) (Stats, error) {
	records, err := ReadAll(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Stats{}, nil
	}
	if err != nil {
		return Stats{}, err
	}
	return Summarize(records), nil
}
