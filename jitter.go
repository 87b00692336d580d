package netimp

import (
	"sync"
	"time"
)

// JitterStage delays each in-scope packet by a random duration drawn
// uniformly from [min_ms, max_ms], releasing packets in ascending
// ReleaseAt order (spec.md §4.5).
type JitterStage struct {
	gate directionGate
	minMs, maxMs atomicUint32
	rng  *RandomSource
	now  func() time.Time

	mu sync.Mutex
	q  delayQueue
}

// NewJitterStage creates a disabled [JitterStage] with min_ms=max_ms=0.
// now defaults to time.Now; tests may override it for determinism.
func NewJitterStage(rng *RandomSource) *JitterStage {
	s := &JitterStage{rng: rng, now: time.Now}
	s.gate.init()
	return s
}

func (s *JitterStage) SetEnabled(enabled bool)         { s.gate.enabled.Store(enabled) }
func (s *JitterStage) Enabled() bool                   { return s.gate.enabled.Load() }
func (s *JitterStage) SetInboundEnabled(enabled bool)  { s.gate.inbound.Store(enabled) }
func (s *JitterStage) SetOutboundEnabled(enabled bool) { s.gate.outbound.Store(enabled) }

// SetJitterRange sets min_ms/max_ms independently as two atomics. The
// caller-visible contract, per spec.md §8's boundary tests, is that a
// swapped (min > max) assignment is silently corrected — here, at
// write time, which is simpler and equally valid to the read-time
// defensive swap spec.md §4.5 describes for the (rarer) case a
// concurrent reconfiguration interleaves the two stores.
func (s *JitterStage) SetJitterRange(minMs, maxMs uint32) {
	if minMs > maxMs {
		minMs, maxMs = maxMs, minMs
	}
	s.minMs.Store(minMs)
	s.maxMs.Store(maxMs)
}

// MinJitter returns the current min_ms.
func (s *JitterStage) MinJitter() uint32 { return s.minMs.Load() }

// MaxJitter returns the current max_ms.
func (s *JitterStage) MaxJitter() uint32 { return s.maxMs.Load() }

// ProcessBatch implements [Stage].
func (s *JitterStage) ProcessBatch(in []*Packet) []*Packet {
	if !s.Enabled() {
		return in
	}
	scoped, passthrough := partitionByScope(in, &s.gate)

	now := s.now()
	s.mu.Lock()
	for _, p := range scoped {
		delay := time.Duration(s.sampleJitterMs()) * time.Millisecond
		p.ReleaseAt = now.Add(delay)
		s.q.push(p)
	}
	s.mu.Unlock()

	return passthrough
}

// sampleJitterMs draws a delay in [min_ms, max_ms], defensively
// swapping a locally-observed min>max (spec.md §4.5: min_ms and max_ms
// are independent atomics and may be read inconsistently mid-update).
func (s *JitterStage) sampleJitterMs() int {
	minMs, maxMs := int(s.minMs.Load()), int(s.maxMs.Load())
	if minMs > maxMs {
		minMs, maxMs = maxMs, minMs
	}
	return s.rng.IntRange(minMs, maxMs)
}

// DrainDue implements [Stage].
func (s *JitterStage) DrainDue(now time.Time) []*Packet {
	if !s.Enabled() {
		return s.DrainAll()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.q.popDue(now)
}

// DrainAll implements [Stage].
func (s *JitterStage) DrainAll() []*Packet {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.q.popAll()
}

// QueueDepth returns the number of packets currently queued.
func (s *JitterStage) QueueDepth() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.q.len()
}

var _ Stage = &JitterStage{}
