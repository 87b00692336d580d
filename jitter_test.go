package netimp

import (
	"testing"
	"time"
)

func TestJitterStageDisabledPassesThrough(t *testing.T) {
	s := NewJitterStage(NewRandomSource(30))
	in := makeTestPackets(4, true)
	out := s.ProcessBatch(in)
	if len(out) != 4 {
		t.Fatalf("disabled stage changed batch size: got %d want 4", len(out))
	}
}

func TestJitterStageQueuesAndReleasesWhenDue(t *testing.T) {
	base := time.Unix(1000, 0)
	clock := base
	s := NewJitterStage(NewRandomSource(31))
	s.now = func() time.Time { return clock }
	s.SetEnabled(true)
	s.SetJitterRange(10, 20)

	in := makeTestPackets(5, true)
	out := s.ProcessBatch(in)
	if len(out) != 0 {
		t.Fatalf("jitter stage released packets immediately: got %d", len(out))
	}
	if got := s.QueueDepth(); got != 5 {
		t.Fatalf("queue depth after ProcessBatch: got %d want 5", got)
	}

	// nothing can be due before min_ms elapses.
	early := base.Add(5 * time.Millisecond)
	if got := s.DrainDue(early); len(got) != 0 {
		t.Fatalf("packets released before min_ms elapsed: got %d", len(got))
	}

	// everything is due once max_ms has fully elapsed.
	late := base.Add(25 * time.Millisecond)
	released := s.DrainDue(late)
	if len(released) != 5 {
		t.Fatalf("not all packets released after max_ms: got %d want 5", len(released))
	}
	if got := s.QueueDepth(); got != 0 {
		t.Fatalf("queue not drained: depth=%d", got)
	}
}

func TestJitterStageSwappedRangeIsCorrected(t *testing.T) {
	s := NewJitterStage(NewRandomSource(32))
	s.SetJitterRange(50, 10)
	if s.MinJitter() != 10 || s.MaxJitter() != 50 {
		t.Fatalf("swapped range not corrected: min=%d max=%d", s.MinJitter(), s.MaxJitter())
	}
}

func TestJitterStageDisabledDrainDueFlushesQueue(t *testing.T) {
	s := NewJitterStage(NewRandomSource(33))
	s.SetEnabled(true)
	s.SetJitterRange(100, 200)
	s.ProcessBatch(makeTestPackets(3, true))

	s.SetEnabled(false)
	out := s.DrainDue(time.Now())
	if len(out) != 3 {
		t.Fatalf("disabling did not flush the jitter queue: got %d want 3", len(out))
	}
}
