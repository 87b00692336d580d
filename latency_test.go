package netimp

import (
	"testing"
	"time"
)

func TestLatencyStageDisabledPassesThrough(t *testing.T) {
	s := NewLatencyStage()
	in := makeTestPackets(4, true)
	out := s.ProcessBatch(in)
	if len(out) != 4 {
		t.Fatalf("disabled stage changed batch size: got %d want 4", len(out))
	}
}

func TestLatencyStageDelaysThenReleases(t *testing.T) {
	base := time.Unix(2000, 0)
	clock := base
	s := NewLatencyStage()
	s.now = func() time.Time { return clock }
	s.SetEnabled(true)
	s.SetLatency(50)

	in := makeTestPackets(3, true)
	out := s.ProcessBatch(in)
	if len(out) != 0 {
		t.Fatalf("latency stage released packets immediately: got %d", len(out))
	}

	notYet := base.Add(49 * time.Millisecond)
	if got := s.DrainDue(notYet); len(got) != 0 {
		t.Fatalf("released before latency_ms elapsed: got %d", len(got))
	}

	due := base.Add(50 * time.Millisecond)
	released := s.DrainDue(due)
	if len(released) != 3 {
		t.Fatalf("not released once due: got %d want 3", len(released))
	}
}

func TestLatencyStageMidFlightChangeKeepsMonotoneOrder(t *testing.T) {
	base := time.Unix(3000, 0)
	clock := base
	s := NewLatencyStage()
	s.now = func() time.Time { return clock }
	s.SetEnabled(true)

	s.SetLatency(100)
	first := makeTestPackets(1, true)
	s.ProcessBatch(first)

	clock = base.Add(10 * time.Millisecond)
	s.SetLatency(10) // now due earlier, relative to its own enqueue time
	second := makeTestPackets(1, true)
	s.ProcessBatch(second)

	// second packet's ReleaseAt (10ms+10ms=20ms) is before first's
	// (0ms+100ms=100ms), so it must come out first.
	out := s.DrainDue(base.Add(25 * time.Millisecond))
	if len(out) != 1 {
		t.Fatalf("expected exactly the second packet to be due, got %d", len(out))
	}
	if out[0] != second[0] {
		t.Fatalf("release order not monotone by ReleaseAt")
	}
}
