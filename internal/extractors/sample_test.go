package extractors

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/miradorstack/mirador-sentinel/internal/models"
)

func newTestExtractor() *SampleExtractor {
	e := NewSampleExtractor(models.DefaultThresholds())
	e.now = func() time.Time { return time.Unix(1_700_000_000, 0) }
	return e
}

func TestNormalizeFullPayload(t *testing.T) {
	payload := models.Payload{
		"cpu":        json.Number("12.5"),
		"ram":        json.Number("41"),
		"disk_read":  json.Number("1.25"),
		"disk_write": json.Number("0.5"),
		"net_sent":   json.Number("3"),
		"net_recv":   json.Number("7.75"),
		"proc":       json.Number("231"),
		"anomaly":    true,
		"ml_flag":    true,
		"confidence": json.Number("72.5"),
		"reasons":    []any{"cpu spike", "ram spike"},
	}

	sample := newTestExtractor().Normalize(payload)

	if sample.CPU != 12.5 || sample.RAMUsedPercent != 41 || sample.DiskReadMBps != 1.25 || sample.DiskWriteMBps != 0.5 {
		t.Fatalf("unexpected resource fields: %+v", sample)
	}
	if sample.NetSentKBps != 3 || sample.NetRecvKBps != 7.75 || sample.ProcessCount != 231 {
		t.Fatalf("unexpected network/process fields: %+v", sample)
	}
	if sample.Confidence != 72.5 || !sample.AnomalyFlag || !sample.ModelFlag || !sample.MLFlag {
		t.Fatalf("unexpected verdict fields: %+v", sample)
	}
	if len(sample.Reasons) != 2 || sample.Reasons[0] != "cpu spike" {
		t.Fatalf("unexpected reasons: %v", sample.Reasons)
	}
	if !sample.ObservedAt.Equal(time.Unix(1_700_000_000, 0)) {
		t.Fatalf("unexpected observed time %v", sample.ObservedAt)
	}
}

func TestNormalizeDefaultsMissingFields(t *testing.T) {
	sample := newTestExtractor().Normalize(models.Payload{"confidence": json.Number("45")})

	if sample.CPU != 0 || sample.ProcessCount != 0 || sample.ModelFlag || sample.MLFlag {
		t.Fatalf("expected zeroed fields, got %+v", sample)
	}
	if sample.Reasons == nil || len(sample.Reasons) != 0 {
		t.Fatalf("expected empty non-nil reasons, got %#v", sample.Reasons)
	}
	if sample.AnomalyFlag {
		t.Fatalf("45 must not raise the anomaly flag")
	}
}

func TestNormalizeNilPayload(t *testing.T) {
	sample := newTestExtractor().Normalize(nil)
	if sample.Confidence != 0 || sample.AnomalyFlag {
		t.Fatalf("expected zero sample, got %+v", sample)
	}
}

func TestNormalizeCoercion(t *testing.T) {
	payload := models.Payload{
		"cpu_percent":   "88.5",
		"ram_percent":   float64(61),
		"process_count": json.Number("230.6"),
		"confidence":    "150",
		"anomaly":       "true",
		"ml_flag":       json.Number("0"),
		"reasons":       "single reason",
		"net_sent":      "n/a",
		"disk_read":     json.Number("-4"),
	}

	sample := newTestExtractor().Normalize(payload)

	if sample.CPU != 88.5 || sample.RAMUsedPercent != 61 {
		t.Fatalf("aliases not resolved: %+v", sample)
	}
	if sample.ProcessCount != 231 {
		t.Fatalf("expected rounded process count 231, got %d", sample.ProcessCount)
	}
	if sample.Confidence != 100 || !sample.AnomalyFlag {
		t.Fatalf("expected clamped confidence 100, got %v", sample.Confidence)
	}
	if !sample.ModelFlag || sample.MLFlag {
		t.Fatalf("unexpected flags: model=%v ml=%v", sample.ModelFlag, sample.MLFlag)
	}
	if len(sample.Reasons) != 1 || sample.Reasons[0] != "single reason" {
		t.Fatalf("unexpected reasons %v", sample.Reasons)
	}
	if sample.NetSentKBps != 0 || sample.DiskReadMBps != 0 {
		t.Fatalf("expected unusable and negative values to default to zero: %+v", sample)
	}

	huge := newTestExtractor().Normalize(models.Payload{"confidence": "10", "proc": json.Number("1e300")})
	if huge.ProcessCount != math.MaxInt32 {
		t.Fatalf("expected process count capped at %d, got %d", math.MaxInt32, huge.ProcessCount)
	}
}

func TestNormalizeAnomalyFlagFollowsThreshold(t *testing.T) {
	e := newTestExtractor()
	if !e.Normalize(models.Payload{"confidence": json.Number("60")}).AnomalyFlag {
		t.Fatalf("60 must raise the anomaly flag")
	}
	if e.Normalize(models.Payload{"confidence": json.Number("59.999"), "anomaly": true}).AnomalyFlag {
		t.Fatalf("59.999 must not raise the anomaly flag even when the model says anomaly")
	}
}
