package services

import (
	"sync"
	"time"

	"github.com/miradorstack/mirador-sentinel/internal/models"
)

// Sink receives the engine-to-UI output of every tick.
type Sink interface {
	SetConnectionStatus(connected bool)
	Publish(decision models.AlertDecision, sample models.MetricsSample)
}

// Sinks fans out to every member.
type Sinks []Sink

// SetConnectionStatus forwards to every sink.
func (s Sinks) SetConnectionStatus(connected bool) {
	for _, sink := range s {
		sink.SetConnectionStatus(connected)
	}
}

// Publish forwards to every sink.
func (s Sinks) Publish(decision models.AlertDecision, sample models.MetricsSample) {
	for _, sink := range s {
		sink.Publish(decision, sample)
	}
}

// Board keeps the latest UI state in memory. A failed poll only flips Connected,
// leaving the last decision and sample on display.
type Board struct {
	mu    sync.RWMutex
	state models.State
	now   func() time.Time
}

// NewBoard creates an empty, disconnected board.
func NewBoard() *Board {
	return &Board{
		state: models.State{Decision: models.AlertDecision{Band: models.BandNormal, Reasons: []string{}}},
		now:   time.Now,
	}
}

// SetConnectionStatus records the outcome of the latest poll.
func (b *Board) SetConnectionStatus(connected bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state.Connected = connected
	b.state.UpdatedAt = b.now()
}

// Publish stores the latest decision and sample.
func (b *Board) Publish(decision models.AlertDecision, sample models.MetricsSample) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state.Decision = decision
	b.state.Sample = sample
	b.state.HasSample = true
	b.state.UpdatedAt = b.now()
}

// State returns a copy of the latest state.
func (b *Board) State() models.State {
	b.mu.RLock()
	defer b.mu.RUnlock()
	st := b.state
	st.Decision.Reasons = append([]string{}, st.Decision.Reasons...)
	st.Sample.Reasons = append([]string{}, st.Sample.Reasons...)
	return st
}
