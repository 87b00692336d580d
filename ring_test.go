package netimp

import "testing"

func TestInfoRingBasicPushAndFetch(t *testing.T) {
	r := newInfoRing(3)
	r.push(PacketInfo{SrcPort: 1})
	r.push(PacketInfo{SrcPort: 2})

	got := r.fetchAndClear()
	if len(got) != 2 || got[0].SrcPort != 1 || got[1].SrcPort != 2 {
		t.Fatalf("unexpected contents: %+v", got)
	}
	if got := r.fetchAndClear(); len(got) != 0 {
		t.Fatalf("ring not cleared after fetchAndClear: %+v", got)
	}
}

func TestInfoRingEvictsOldestAtCapacity(t *testing.T) {
	r := newInfoRing(2)
	r.push(PacketInfo{SrcPort: 1})
	r.push(PacketInfo{SrcPort: 2})
	r.push(PacketInfo{SrcPort: 3})

	got := r.fetchAndClear()
	if len(got) != 2 || got[0].SrcPort != 2 || got[1].SrcPort != 3 {
		t.Fatalf("expected oldest entry evicted, got %+v", got)
	}
	if r.droppedCount() != 1 {
		t.Fatalf("droppedCount = %d, want 1", r.droppedCount())
	}
}

func TestInfoRingSetCapacityShrinks(t *testing.T) {
	r := newInfoRing(5)
	for i := 0; i < 5; i++ {
		r.push(PacketInfo{SrcPort: uint16(i)})
	}
	r.setCapacity(2)

	got := r.fetchAndClear()
	if len(got) != 2 || got[0].SrcPort != 3 || got[1].SrcPort != 4 {
		t.Fatalf("unexpected contents after shrink: %+v", got)
	}
	if r.droppedCount() != 3 {
		t.Fatalf("droppedCount = %d, want 3", r.droppedCount())
	}
}
