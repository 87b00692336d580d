package netimp

import "time"

// Stage is the common interface every impairment implements (spec.md
// §4.1). The engine holds the six concrete stages as named fields and
// calls each one directly, in a fixed order, from its pipeline function
// — see DESIGN.md's note on tagged-variant vs. virtual dispatch.
type Stage interface {
	// ProcessBatch returns packets that should be forwarded now. Any
	// packet the stage wishes to delay is retained internally and
	// returned later by DrainDue/DrainAll. Packets whose direction does
	// not match the stage's filter pass through untouched: never
	// dropped, never delayed.
	ProcessBatch(in []*Packet) []*Packet

	// DrainDue returns packets whose internal schedule is satisfied at
	// now. Stages without internal queueing always return nil.
	DrainDue(now time.Time) []*Packet

	// DrainAll unconditionally returns and clears every queued packet,
	// used at shutdown or when the stage is disabled, so in-flight
	// packets are never silently stranded.
	DrainAll() []*Packet

	// Enabled reports whether the stage is currently enabled.
	Enabled() bool
}

// directionGate holds the enabled/inbound/outbound atomics shared by
// every stage. Factored out once instead of the six copy-pasted
// ShouldProcess methods the original C++ has, per SPEC_FULL.md §7.
type directionGate struct {
	enabled  atomicBool
	inbound  atomicBool
	outbound atomicBool
}

// init sets a freshly zero-valued directionGate's defaults in place,
// avoiding a by-value return of a struct containing atomics.
func (g *directionGate) init() {
	g.inbound.Store(true)
	g.outbound.Store(true)
}

// inScope reports whether a packet with the given address is within
// this stage's direction scope: enabled, and its direction (inbound or
// outbound) is turned on.
func (g *directionGate) inScope(addr Address) bool {
	if !g.enabled.Load() {
		return false
	}
	if addr.Outbound {
		return g.outbound.Load()
	}
	return g.inbound.Load()
}

// partitionByScope splits in into (inScope, passthrough) while preserving the
// relative order of each half, matching spec.md §4.1's "pass through
// untouched" contract.
func partitionByScope(in []*Packet, gate *directionGate) (scoped, passthrough []*Packet) {
	scoped = make([]*Packet, 0, len(in))
	passthrough = make([]*Packet, 0, len(in))
	for _, p := range in {
		if gate.inScope(p.Addr) {
			scoped = append(scoped, p)
		} else {
			passthrough = append(passthrough, p)
		}
	}
	return scoped, passthrough
}
