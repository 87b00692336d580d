package netimp

import (
	"container/heap"
	"time"
)

// releaseItem is one packet waiting in a delay stage's priority queue,
// ordered by ascending ReleaseAt with insertion order breaking ties
// (spec.md §9: "a secondary insertion counter breaks ties to keep
// release order stable within a tick").
type releaseItem struct {
	packet *Packet
	seq    uint64
}

// releaseHeap is a container/heap.Interface min-heap over releaseItem,
// grounded on the pack's own container/heap packet-reassembly buffer
// (internal/adapter/reassembler.go).
type releaseHeap []releaseItem

func (h releaseHeap) Len() int { return len(h) }

func (h releaseHeap) Less(i, j int) bool {
	ti, tj := h[i].packet.ReleaseAt, h[j].packet.ReleaseAt
	if ti.Equal(tj) {
		return h[i].seq < h[j].seq
	}
	return ti.Before(tj)
}

func (h releaseHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *releaseHeap) Push(x any) { *h = append(*h, x.(releaseItem)) }

func (h *releaseHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// delayQueue is a mutex-free-at-the-call-site wrapper used by Jitter
// and Latency stages; callers provide their own locking.
type delayQueue struct {
	h       releaseHeap
	nextSeq uint64
}

func (q *delayQueue) push(p *Packet) {
	heap.Push(&q.h, releaseItem{packet: p, seq: q.nextSeq})
	q.nextSeq++
}

// popDue pops and returns every packet whose ReleaseAt <= now.
func (q *delayQueue) popDue(now time.Time) []*Packet {
	var out []*Packet
	for q.h.Len() > 0 && !q.h[0].packet.ReleaseAt.After(now) {
		item := heap.Pop(&q.h).(releaseItem)
		out = append(out, item.packet)
	}
	return out
}

// popAll pops and returns every packet regardless of ReleaseAt.
func (q *delayQueue) popAll() []*Packet {
	out := make([]*Packet, 0, q.h.Len())
	for q.h.Len() > 0 {
		item := heap.Pop(&q.h).(releaseItem)
		out = append(out, item.packet)
	}
	return out
}

func (q *delayQueue) len() int { return q.h.Len() }
