package netimp

import "time"

// LossStage probabilistically drops packets in its direction scope
// (spec.md §4.2). It holds no internal queue: DrainDue and DrainAll
// always return nil, and disabling it is a pure no-op for queueing.
type LossStage struct {
	gate directionGate
	rate atomicFloat64
	rng  *RandomSource
}

// NewLossStage creates a disabled [LossStage] with loss_rate 0.
func NewLossStage(rng *RandomSource) *LossStage {
	s := &LossStage{rng: rng}
	s.gate.init()
	return s
}

// SetEnabled enables or disables the stage.
func (s *LossStage) SetEnabled(enabled bool) { s.gate.enabled.Store(enabled) }

// Enabled implements [Stage].
func (s *LossStage) Enabled() bool { return s.gate.enabled.Load() }

// SetInboundEnabled implements the direction-scope setter.
func (s *LossStage) SetInboundEnabled(enabled bool) { s.gate.inbound.Store(enabled) }

// SetOutboundEnabled implements the direction-scope setter.
func (s *LossStage) SetOutboundEnabled(enabled bool) { s.gate.outbound.Store(enabled) }

// SetLossRate sets loss_rate, clamped to [0, 100].
func (s *LossStage) SetLossRate(percent float64) {
	s.rate.Store(clampFloat(percent, 0, 100))
}

// LossRate returns the current loss_rate.
func (s *LossStage) LossRate() float64 { return s.rate.Load() }

// ProcessBatch implements [Stage]. Packets outside the direction scope
// pass through untouched; in-scope packets are dropped with probability
// loss_rate/100, with the 0% / 100% short circuits spec.md §4.2 calls
// out explicitly (never consult the RNG at the boundaries).
func (s *LossStage) ProcessBatch(in []*Packet) []*Packet {
	if !s.Enabled() {
		return in
	}
	out := make([]*Packet, 0, len(in))
	for _, p := range in {
		if s.gate.inScope(p.Addr) && s.shouldDrop() {
			continue
		}
		out = append(out, p)
	}
	return out
}

func (s *LossStage) shouldDrop() bool {
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

// DrainDue implements [Stage]; loss never delays packets.
func (s *LossStage) DrainDue(now time.Time) []*Packet { return nil }

// DrainAll implements [Stage]; loss never queues packets.
func (s *LossStage) DrainAll() []*Packet { return nil }

var _ Stage = &LossStage{}

// clampFloat clamps v to [lo, hi].
func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// clampInt clamps v to [lo, hi].
func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
