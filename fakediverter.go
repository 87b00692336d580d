package netimp

import (
	"context"
	"sync"
)

// FakeDiverter is an in-memory [DiverterOpener] used by tests and by the
// end-to-end scenarios of spec.md §8, which call for "an in-memory fake
// diverter". It behaves like a real diverter from the engine's point of
// view: Feed injects a packet as if the kernel had diverted it, RecvEx
// blocks until one is available (or until shut down), and SendEx appends
// to a log callers can inspect with Sent.
//
// Grounded on the teacher's MockableNIC (nic_test.go), but built as a
// genuine in-memory queue rather than a per-method mock, since the
// end-to-end scenarios need real queueing/blocking semantics rather than
// per-call stubs.
type FakeDiverter struct{}

// NewFakeDiverter returns a [FakeDiverter]; it is stateless, all state
// lives in the handles it opens.
func NewFakeDiverter() *FakeDiverter { return &FakeDiverter{} }

// Open implements [DiverterOpener].
func (d *FakeDiverter) Open(filter string, layer DiverterLayer, priority int16, flags uint64) (DiverterHandle, error) {
	return newFakeDiverterHandle(filter), nil
}

var _ DiverterOpener = &FakeDiverter{}

// fakePacket is a queued inbound packet awaiting RecvEx.
type fakePacket struct {
	payload []byte
	addr    Address
}

// SentBatch records one SendEx call for inspection by tests.
type SentBatch struct {
	Packets [][]byte
	Addrs   []Address
}

// FakeDiverterHandle is the [DiverterHandle] returned by [FakeDiverter.Open].
type FakeDiverterHandle struct {
	filter string

	mu       sync.Mutex
	inbound  []fakePacket
	notify   chan struct{}
	shutdown chan struct{}
	closed   bool

	sentMu sync.Mutex
	sent   []SentBatch

	paramMu sync.Mutex
	params  map[DiverterParam]uint64
}

func newFakeDiverterHandle(filter string) *FakeDiverterHandle {
	return &FakeDiverterHandle{
		filter:   filter,
		notify:   make(chan struct{}, 1),
		shutdown: make(chan struct{}),
		params: map[DiverterParam]uint64{
			ParamVersionMajor: 2,
			ParamVersionMinor: 2,
		},
	}
}

// Feed injects a packet as if it had just been diverted from the kernel.
func (h *FakeDiverterHandle) Feed(payload []byte, addr Address) {
	h.mu.Lock()
	h.inbound = append(h.inbound, fakePacket{payload: append([]byte{}, payload...), addr: addr})
	h.mu.Unlock()
	select {
	case h.notify <- struct{}{}:
	default:
	}
}

// Sent returns every batch reinjected via SendEx so far, in order.
func (h *FakeDiverterHandle) Sent() []SentBatch {
	h.sentMu.Lock()
	defer h.sentMu.Unlock()
	out := make([]SentBatch, len(h.sent))
	copy(out, h.sent)
	return out
}

// SentPackets flattens Sent into one payload-per-packet slice, in the
// order packets were actually reinjected.
func (h *FakeDiverterHandle) SentPackets() [][]byte {
	var out [][]byte
	for _, batch := range h.Sent() {
		out = append(out, batch.Packets...)
	}
	return out
}

// SetParam implements [DiverterHandle].
func (h *FakeDiverterHandle) SetParam(param DiverterParam, value uint64) error {
	h.paramMu.Lock()
	defer h.paramMu.Unlock()
	h.params[param] = value
	return nil
}

// GetParam implements [DiverterHandle].
func (h *FakeDiverterHandle) GetParam(param DiverterParam) (uint64, error) {
	h.paramMu.Lock()
	defer h.paramMu.Unlock()
	return h.params[param], nil
}

// RecvEx implements [DiverterHandle]. It blocks until at least one
// packet is queued, ctx is cancelled, or the handle is shut down, then
// drains up to maxPackets queued packets without blocking further.
func (h *FakeDiverterHandle) RecvEx(ctx context.Context, packetBuf []byte, maxPackets int) (int, []Address, error) {
	for {
		h.mu.Lock()
		if len(h.inbound) > 0 {
			n := len(h.inbound)
			if n > maxPackets {
				n = maxPackets
			}
			batch := h.inbound[:n]
			h.inbound = h.inbound[n:]
			h.mu.Unlock()

			var written int
			addrs := make([]Address, 0, n)
			for _, p := range batch {
				if written+len(p.payload) > len(packetBuf) {
					break
				}
				copy(packetBuf[written:], p.payload)
				written += len(p.payload)
				addrs = append(addrs, p.addr)
			}
			return written, addrs, nil
		}
		closed := h.closed
		h.mu.Unlock()

		if closed {
			return 0, nil, ErrNoData
		}

		select {
		case <-h.notify:
			continue
		case <-h.shutdown:
			return 0, nil, ErrNoData
		case <-ctx.Done():
			return 0, nil, ctx.Err()
		}
	}
}

// SendEx implements [DiverterHandle].
func (h *FakeDiverterHandle) SendEx(packets [][]byte, addrs []Address) (int, error) {
	batch := SentBatch{
		Packets: make([][]byte, len(packets)),
		Addrs:   append([]Address{}, addrs...),
	}
	for i, p := range packets {
		batch.Packets[i] = append([]byte{}, p...)
	}
	h.sentMu.Lock()
	h.sent = append(h.sent, batch)
	h.sentMu.Unlock()
	return len(packets), nil
}

// Shutdown implements [DiverterHandle].
func (h *FakeDiverterHandle) Shutdown(mode ShutdownMode) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.closed {
		close(h.shutdown)
		h.closed = true
	}
	return nil
}

// Close implements [DiverterHandle].
func (h *FakeDiverterHandle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.closed {
		close(h.shutdown)
		h.closed = true
	}
	return nil
}

var _ DiverterHandle = &FakeDiverterHandle{}
