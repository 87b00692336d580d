package netimp

import "time"

// DuplicateStage fans a packet out into 1+dup_count copies with
// probability dup_rate (spec.md §4.3). Copies are emitted contiguously
// after the original, before the next input packet, so the output
// interleaving is deterministic for a given sequence of RNG draws.
type DuplicateStage struct {
	gate     directionGate
	rate     atomicFloat64
	dupCount atomicUint32
	rng      *RandomSource
}

// NewDuplicateStage creates a disabled [DuplicateStage] with dup_rate 0
// and dup_count 1.
func NewDuplicateStage(rng *RandomSource) *DuplicateStage {
	s := &DuplicateStage{rng: rng}
	s.gate.init()
	s.dupCount.Store(1)
	return s
}

func (s *DuplicateStage) SetEnabled(enabled bool)         { s.gate.enabled.Store(enabled) }
func (s *DuplicateStage) Enabled() bool                   { return s.gate.enabled.Load() }
func (s *DuplicateStage) SetInboundEnabled(enabled bool)  { s.gate.inbound.Store(enabled) }
func (s *DuplicateStage) SetOutboundEnabled(enabled bool) { s.gate.outbound.Store(enabled) }

// SetDuplicateRate sets dup_rate, clamped to [0, 100].
func (s *DuplicateStage) SetDuplicateRate(percent float64) {
	s.rate.Store(clampFloat(percent, 0, 100))
}

// DuplicateRate returns the current dup_rate.
func (s *DuplicateStage) DuplicateRate() float64 { return s.rate.Load() }

// SetDuplicateCount sets dup_count, saturated to [1, 5] per spec.md §3.
func (s *DuplicateStage) SetDuplicateCount(count uint32) {
	s.dupCount.Store(uint32(clampInt(int(count), 1, 5)))
}

// DuplicateCount returns the current dup_count.
func (s *DuplicateStage) DuplicateCount() uint32 { return s.dupCount.Load() }

// ProcessBatch implements [Stage].
func (s *DuplicateStage) ProcessBatch(in []*Packet) []*Packet {
	if !s.Enabled() {
		return in
	}
	out := make([]*Packet, 0, len(in)*2)
	for _, p := range in {
		out = append(out, p)
		if s.gate.inScope(p.Addr) && s.shouldDuplicate() {
			count := int(s.dupCount.Load())
			for i := 0; i < count; i++ {
				out = append(out, p.Clone())
			}
		}
	}
	return out
}

func (s *DuplicateStage) shouldDuplicate() bool {
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

// DrainDue implements [Stage]; duplication never delays packets.
func (s *DuplicateStage) DrainDue(now time.Time) []*Packet { return nil }

// DrainAll implements [Stage]; duplication never queues packets.
func (s *DuplicateStage) DrainAll() []*Packet { return nil }

var _ Stage = &DuplicateStage{}
