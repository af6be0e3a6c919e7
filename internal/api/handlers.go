package api

import (
	"fmt"

	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/miradorstack/mirador-sentinel/internal/models"
	"github.com/miradorstack/mirador-sentinel/internal/utils"
)

// ToProtoState converts the UI state into a Struct. Metric fields are omitted
// until a sample has been observed.
func ToProtoState(state models.State) (*structpb.Struct, error) {
	d := state.Decision
	fields := map[string]any{
		"connected": state.Connected,
		"decision": map[string]any{
			"band":             d.Band.String(),
			"feedback_enabled": d.FeedbackEnabled,
			"message":          d.Message,
			"reasons":          toList(d.Reasons),
			"source":           d.Source,
			"episode_id":       d.EpisodeID,
		},
	}
	if !state.UpdatedAt.IsZero() {
		fields["updated_at"] = utils.FormatTimestamp(state.UpdatedAt)
	}
	if state.HasSample {
		s := state.Sample
		fields["sample"] = map[string]any{
			"cpu":         s.CPU,
			"ram":         s.RAMUsedPercent,
			"disk_read":   s.DiskReadMBps,
			"disk_write":  s.DiskWriteMBps,
			"net_sent":    s.NetSentKBps,
			"net_recv":    s.NetRecvKBps,
			"proc":        s.ProcessCount,
			"confidence":  s.Confidence,
			"anomaly":     s.AnomalyFlag,
			"model_flag":  s.ModelFlag,
			"ml_flag":     s.MLFlag,
			"reasons":     toList(s.Reasons),
			"observed_at": utils.FormatTimestamp(s.ObservedAt),
		}
	}

	out, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, fmt.Errorf("encode state: %w", err)
	}
	return out, nil
}

// FromProtoLabel maps a confirm/reject press to a Label.
func FromProtoLabel(req *wrapperspb.BoolValue) (models.Label, error) {
	if req == nil {
		return "", fmt.Errorf("label is required")
	}
	return models.LabelFromBool(req.GetValue()), nil
}

func toList(values []string) []any {
	out := make([]any, 0, len(values))
	for _, v := range values {
		out = append(out, v)
	}
	return out
}
