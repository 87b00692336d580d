package netimp

import (
	"sync"
	"time"
)

// ReorderStage buffers in-scope packets and releases them out of FIFO
// order once the buffer reaches gap packets (spec.md §4.4). Packets
// outside the direction scope pass through immediately without
// entering the buffer — the consistent behavior spec.md §9's Open
// Questions section adopts over the original source, which buffered
// them too (see DESIGN.md).
type ReorderStage struct {
	gate directionGate
	rate atomicFloat64
	gap  atomicUint32
	rng  *RandomSource

	mu     sync.Mutex
	buffer []*Packet
}

// NewReorderStage creates a disabled [ReorderStage] with reorder_rate 0
// and gap 2 (the minimum).
func NewReorderStage(rng *RandomSource) *ReorderStage {
	s := &ReorderStage{rng: rng}
	s.gate.init()
	s.gap.Store(2)
	return s
}

func (s *ReorderStage) SetEnabled(enabled bool) {
	s.gate.enabled.Store(enabled)
}
func (s *ReorderStage) Enabled() bool                   { return s.gate.enabled.Load() }
func (s *ReorderStage) SetInboundEnabled(enabled bool)  { s.gate.inbound.Store(enabled) }
func (s *ReorderStage) SetOutboundEnabled(enabled bool) { s.gate.outbound.Store(enabled) }

// SetReorderRate sets reorder_rate, clamped to [0, 100].
func (s *ReorderStage) SetReorderRate(percent float64) {
	s.rate.Store(clampFloat(percent, 0, 100))
}

// ReorderRate returns the current reorder_rate.
func (s *ReorderStage) ReorderRate() float64 { return s.rate.Load() }

// SetGap sets gap, saturated to [2, 10] per spec.md §3.
func (s *ReorderStage) SetGap(gap uint32) {
	s.gap.Store(uint32(clampInt(int(gap), 2, 10)))
}

// Gap returns the current gap.
func (s *ReorderStage) Gap() uint32 { return s.gap.Load() }

// ProcessBatch implements [Stage]. It appends in-scope packets to the
// buffer; once the buffer holds at least gap packets, it optionally
// shuffles the whole buffer uniformly, then releases
// size - floor(gap/2) packets from the front (spec.md §4.4).
func (s *ReorderStage) ProcessBatch(in []*Packet) []*Packet {
	if !s.Enabled() {
		return in
	}

	scoped, passthrough := partitionByScope(in, &s.gate)

	s.mu.Lock()
	s.buffer = append(s.buffer, scoped...)
	gap := int(s.gap.Load())

	var released []*Packet
	if len(s.buffer) >= gap {
		if s.shouldReorder() {
			s.rng.Shuffle(len(s.buffer), func(i, j int) {
				s.buffer[i], s.buffer[j] = s.buffer[j], s.buffer[i]
			})
		}
		releaseCount := len(s.buffer) - gap/2
		released = append(released, s.buffer[:releaseCount]...)
		s.buffer = s.buffer[releaseCount:]
	}
	s.mu.Unlock()

	return append(passthrough, released...)
}

func (s *ReorderStage) shouldReorder() bool {
	rate := s.rate.Load()
	switch {
	case rate <= 0:
		return false
	case rate >= 100:
		return true
	default:
		return s.rng.Percentage() < rate
	}
}

// DrainDue implements [Stage]. Reorder has no time-based schedule, so
// when enabled this always returns nil; when disabled it is equivalent
// to DrainAll, matching spec.md §4.1's "disabled => DrainAll" rule.
func (s *ReorderStage) DrainDue(now time.Time) []*Packet {
	if s.Enabled() {
		return nil
	}
	return s.DrainAll()
}

// DrainAll implements [Stage].
func (s *ReorderStage) DrainAll() []*Packet {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.buffer
	s.buffer = nil
	return out
}

var _ Stage = &ReorderStage{}
