package netimp

import (
	"testing"
	"time"
)

func bandwidthTestPacket(size int) *Packet {
	return &Packet{Payload: make([]byte, size), Addr: Address{Outbound: true}}
}

func TestBandwidthStageDisabledPassesThrough(t *testing.T) {
	s := NewBandwidthStage()
	in := []*Packet{bandwidthTestPacket(100)}
	out := s.ProcessBatch(in)
	if len(out) != 1 {
		t.Fatalf("disabled stage changed batch size: got %d want 1", len(out))
	}
}

func TestBandwidthStageSeedsHalfCapacityOnEnable(t *testing.T) {
	base := time.Unix(4000, 0)
	clock := base
	s := NewBandwidthStage()
	s.now = func() time.Time { return clock }

	s.SetBandwidthLimit(8) // 1000 bytes/sec, capacity 1000 bytes
	s.SetEnabled(true)

	// half capacity (500 bytes) should admit immediately without waiting.
	in := []*Packet{bandwidthTestPacket(500)}
	out := s.ProcessBatch(in)
	if len(out) != 1 {
		t.Fatalf("expected the half-capacity packet to be admitted immediately, got %d", len(out))
	}
}

func TestBandwidthStageQueuesExcessAndDrainsOverTime(t *testing.T) {
	base := time.Unix(5000, 0)
	clock := base
	s := NewBandwidthStage()
	s.now = func() time.Time { return clock }

	s.SetBandwidthLimit(8) // 1000 bytes/sec, capacity 1000 bytes
	s.SetEnabled(true)     // seeds 500 bytes of tokens

	in := []*Packet{bandwidthTestPacket(500), bandwidthTestPacket(500)}
	out := s.ProcessBatch(in)
	if len(out) != 1 {
		t.Fatalf("expected exactly one packet admitted from the seeded bucket, got %d", len(out))
	}
	if got := s.QueueDepth(); got != 1 {
		t.Fatalf("expected 1 packet queued, got %d", got)
	}

	// advance the clock by 500ms: refills ~500 bytes, enough for the
	// second 500-byte packet.
	clock = base.Add(500 * time.Millisecond)
	released := s.DrainDue(clock)
	if len(released) != 1 {
		t.Fatalf("expected the queued packet to drain after refill, got %d", len(released))
	}
	if got := s.QueueDepth(); got != 0 {
		t.Fatalf("queue not empty after drain: depth=%d", got)
	}
}

func TestBandwidthStageDisabledDrainAllFlushesQueue(t *testing.T) {
	s := NewBandwidthStage()
	s.SetBandwidthLimit(1) // tiny capacity forces queueing
	s.SetEnabled(true)
	s.ProcessBatch([]*Packet{bandwidthTestPacket(10000)})

	s.SetEnabled(false)
	out := s.DrainDue(time.Now())
	if len(out) != 1 {
		t.Fatalf("disabling did not flush the bandwidth queue: got %d want 1", len(out))
	}
}
