package extractors

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/miradorstack/mirador-sentinel/internal/models"
)

// Wire field names, each followed by the aliases the data logger writes.
var (
	cpuKeys       = []string{"cpu", "cpu_percent"}
	ramKeys       = []string{"ram", "ram_percent"}
	diskReadKeys  = []string{"disk_read", "disk_read_MBps"}
	diskWriteKeys = []string{"disk_write", "disk_write_MBps"}
	netSentKeys   = []string{"net_sent", "net_sent_KBps"}
	netRecvKeys   = []string{"net_recv", "net_recv_KBps"}
	procKeys      = []string{"proc", "process_count"}
)

// SampleExtractor turns a parsed bridge payload into a MetricsSample. It never fails:
// missing or unusable fields fall back to zero values.
type SampleExtractor struct {
	thresholds models.Thresholds
	now        func() time.Time
}

// NewSampleExtractor creates an extractor deriving AnomalyFlag from thresholds.
func NewSampleExtractor(thresholds models.Thresholds) *SampleExtractor {
	return &SampleExtractor{thresholds: thresholds, now: time.Now}
}

const maxProcessCount = math.MaxInt32

// Normalize builds a sample from payload. A nil payload yields a zeroed sample.
func (e *SampleExtractor) Normalize(payload models.Payload) models.MetricsSample {
	confidence := clamp(number(payload, "confidence"), 0, 100)

	sample := models.MetricsSample{
		CPU:            nonNegative(number(payload, cpuKeys...)),
		RAMUsedPercent: nonNegative(number(payload, ramKeys...)),
		DiskReadMBps:   nonNegative(number(payload, diskReadKeys...)),
		DiskWriteMBps:  nonNegative(number(payload, diskWriteKeys...)),
		NetSentKBps:    nonNegative(number(payload, netSentKeys...)),
		NetRecvKBps:    nonNegative(number(payload, netRecvKeys...)),
		ProcessCount:   int(math.Round(clamp(number(payload, procKeys...), 0, maxProcessCount))),
		Confidence:     confidence,
		ModelFlag:      boolean(payload, "anomaly"),
		MLFlag:         boolean(payload, "ml_flag"),
		Reasons:        reasons(payload["reasons"]),
		ObservedAt:     e.now(),
	}
	sample.AnomalyFlag = e.thresholds.Classify(confidence) == models.BandHigh
	return sample
}

func number(payload models.Payload, keys ...string) float64 {
	for _, key := range keys {
		raw, ok := payload[key]
		if !ok || raw == nil {
			continue
		}
		if v, ok := toFloat(raw); ok {
			return v
		}
	}
	return 0
}

func toFloat(raw any) (float64, bool) {
	var v float64
	switch value := raw.(type) {
	case json.Number:
		f, err := value.Float64()
		if err != nil {
			return 0, false
		}
		v = f
	case float64:
		v = value
	case float32:
		v = float64(value)
	case int:
		v = float64(value)
	case int64:
		v = float64(value)
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(value), "%")), 64)
		if err != nil {
			return 0, false
		}
		v = f
	case bool:
		if value {
			v = 1
		}
	default:
		return 0, false
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

func boolean(payload models.Payload, key string) bool {
	switch value := payload[key].(type) {
	case bool:
		return value
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(value))
		return err == nil && b
	case nil:
		return false
	default:
		f, ok := toFloat(value)
		return ok && f != 0
	}
}

func reasons(raw any) []string {
	out := []string{}
	switch value := raw.(type) {
	case string:
		if s := strings.TrimSpace(value); s != "" {
			out = append(out, s)
		}
	case []any:
		for _, item := range value {
			s, ok := item.(string)
			if !ok {
				continue
			}
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
	case []string:
		for _, s := range value {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
	}
	return out
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func nonNegative(v float64) float64 {
	if v < 0 {
		return 0
	}
	return v
}
