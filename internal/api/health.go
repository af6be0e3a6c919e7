package api

import "github.com/miradorstack/mirador-sentinel/internal/models"

// HealthSink reports bridge connectivity through the gRPC health service.
type HealthSink struct {
	server *Server
}

// NewHealthSink adapts server to the monitor's sink interface.
func NewHealthSink(server *Server) *HealthSink {
	return &HealthSink{server: server}
}

// SetConnectionStatus flips the feedback service health status.
func (h *HealthSink) SetConnectionStatus(connected bool) {
	if h == nil || h.server == nil {
		return
	}
	h.server.SetBridgeServing(connected)
}

// Publish is a no-op; health only tracks connectivity.
func (h *HealthSink) Publish(models.AlertDecision, models.MetricsSample) {}
