package netimp

import (
	"sync"
	"time"
)

// LatencyStage delays every in-scope packet by a fixed latency_ms,
// using the same ReleaseAt priority queue as [JitterStage] so that a
// mid-flight change to latency_ms still yields monotone output order
// (spec.md §4.6).
type LatencyStage struct {
	gate      directionGate
	latencyMs atomicUint32
	now       func() time.Time

	mu sync.Mutex
	q  delayQueue
}

// NewLatencyStage creates a disabled [LatencyStage] with latency_ms 0.
func NewLatencyStage() *LatencyStage {
	s := &LatencyStage{now: time.Now}
	s.gate.init()
	return s
}

func (s *LatencyStage) SetEnabled(enabled bool)         { s.gate.enabled.Store(enabled) }
func (s *LatencyStage) Enabled() bool                   { return s.gate.enabled.Load() }
func (s *LatencyStage) SetInboundEnabled(enabled bool)  { s.gate.inbound.Store(enabled) }
func (s *LatencyStage) SetOutboundEnabled(enabled bool) { s.gate.outbound.Store(enabled) }

// SetLatency sets latency_ms.
func (s *LatencyStage) SetLatency(ms uint32) { s.latencyMs.Store(ms) }

// Latency returns the current latency_ms.
func (s *LatencyStage) Latency() uint32 { return s.latencyMs.Load() }

// ProcessBatch implements [Stage].
func (s *LatencyStage) ProcessBatch(in []*Packet) []*Packet {
	if !s.Enabled() {
		return in
	}
	scoped, passthrough := partitionByScope(in, &s.gate)

	now := s.now()
	delay := time.Duration(s.latencyMs.Load()) * time.Millisecond
	s.mu.Lock()
	for _, p := range scoped {
		p.ReleaseAt = now.Add(delay)
		s.q.push(p)
	}
	s.mu.Unlock()

	return passthrough
}

// DrainDue implements [Stage].
func (s *LatencyStage) DrainDue(now time.Time) []*Packet {
	if !s.Enabled() {
		return s.DrainAll()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.q.popDue(now)
}

// DrainAll implements [Stage].
func (s *LatencyStage) DrainAll() []*Packet {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.q.popAll()
}

// QueueDepth returns the number of packets currently queued.
func (s *LatencyStage) QueueDepth() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.q.len()
}

var _ Stage = &LatencyStage{}
