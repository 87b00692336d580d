package netimp

import (
	"context"
	"testing"
	"time"
)

// fixedOpener always returns the same pre-built handle, so the test can
// keep a reference to it for Feed/Sent calls.
type fixedOpener struct{ h *FakeDiverterHandle }

func (o fixedOpener) Open(filter string, layer DiverterLayer, priority int16, flags uint64) (DiverterHandle, error) {
	return o.h, nil
}

func waitForSentCount(t *testing.T, h *FakeDiverterHandle, want int) []SentBatch {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if len(h.SentPackets()) >= want {
			return h.Sent()
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d sent packets, got %d", want, len(h.SentPackets()))
	return nil
}

func TestEngineStartRejectsDoubleStart(t *testing.T) {
	e := NewEngine(nil)
	h := newFakeDiverterHandle("")
	ctx := context.Background()

	if err := e.Start(ctx, fixedOpener{h}, StartConfig{Filter: "true"}); err != nil {
		t.Fatalf("first Start failed: %v", err)
	}
	defer e.Stop()

	if err := e.Start(ctx, fixedOpener{h}, StartConfig{Filter: "true"}); err != ErrAlreadyRunning {
		t.Fatalf("second Start returned %v, want ErrAlreadyRunning", err)
	}
}

func TestEngineEndToEndPassthrough(t *testing.T) {
	e := NewEngine(nil)
	h := newFakeDiverterHandle("")
	ctx := context.Background()

	if err := e.Start(ctx, fixedOpener{h}, StartConfig{Filter: "true"}); err != nil {
		t.Fatalf("Start: %v", err)
	}

	payload := buildIPv4UDPPacket(t, "10.0.0.1", "10.0.0.2", 1111, 2222, []byte("payload"))
	h.Feed(payload, Address{Outbound: true})

	waitForSentCount(t, h, 1)

	if err := e.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	stats := e.Stats()
	if stats.PacketsCaptured == 0 {
		t.Fatalf("PacketsCaptured = 0, want > 0")
	}
	if stats.PacketsInjected == 0 {
		t.Fatalf("PacketsInjected = 0, want > 0")
	}

	info := e.FetchAndClearMonitoring()
	if len(info) == 0 {
		t.Fatalf("monitoring ring is empty after a captured packet")
	}
	if info[0].SrcPort != 1111 || info[0].DstPort != 2222 {
		t.Fatalf("unexpected PacketInfo: %+v", info[0])
	}
}

func TestEngineEndToEndTotalLoss(t *testing.T) {
	e := NewEngine(nil)
	e.Loss.SetEnabled(true)
	e.Loss.SetLossRate(100)

	h := newFakeDiverterHandle("")
	ctx := context.Background()
	if err := e.Start(ctx, fixedOpener{h}, StartConfig{Filter: "true"}); err != nil {
		t.Fatalf("Start: %v", err)
	}

	payload := buildIPv4UDPPacket(t, "10.0.0.1", "10.0.0.2", 1, 2, []byte("x"))
	h.Feed(payload, Address{Outbound: true})

	// give the worker a moment to process and confirm nothing is sent.
	time.Sleep(100 * time.Millisecond)
	if err := e.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	if got := len(h.SentPackets()); got != 0 {
		t.Fatalf("loss_rate=100 still forwarded %d packets", got)
	}
	stats := e.Stats()
	if stats.PacketsCaptured == 0 {
		t.Fatalf("PacketsCaptured = 0, want > 0")
	}
}

func TestEngineEndToEndLatencyDelaysDelivery(t *testing.T) {
	e := NewEngine(nil)
	e.Latency.SetEnabled(true)
	e.Latency.SetLatency(50)

	h := newFakeDiverterHandle("")
	ctx := context.Background()
	if err := e.Start(ctx, fixedOpener{h}, StartConfig{Filter: "true"}); err != nil {
		t.Fatalf("Start: %v", err)
	}

	payload := buildIPv4UDPPacket(t, "10.0.0.1", "10.0.0.2", 1, 2, []byte("x"))
	h.Feed(payload, Address{Outbound: true})

	// immediately after feeding, nothing should have been sent yet.
	time.Sleep(10 * time.Millisecond)
	if got := len(h.SentPackets()); got != 0 {
		t.Fatalf("latency stage forwarded %d packets before latency_ms elapsed", got)
	}

	waitForSentCount(t, h, 1)

	if err := e.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
}

func TestEngineStopDiscardsQueuedPackets(t *testing.T) {
	e := NewEngine(nil)
	e.Latency.SetEnabled(true)
	e.Latency.SetLatency(uint32(10 * time.Hour.Milliseconds())) // effectively "never due"

	h := newFakeDiverterHandle("")
	ctx := context.Background()
	if err := e.Start(ctx, fixedOpener{h}, StartConfig{Filter: "true"}); err != nil {
		t.Fatalf("Start: %v", err)
	}

	payload := buildIPv4UDPPacket(t, "10.0.0.1", "10.0.0.2", 1, 2, []byte("x"))
	h.Feed(payload, Address{Outbound: true})
	time.Sleep(50 * time.Millisecond)

	if err := e.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	// Packets still queued in a delay-capable stage at shutdown are
	// dropped, not reinjected (spec.md §4.8/§9: "the source never
	// flushes release-stage queues into send-batch at shutdown;
	// delayed packets are discarded. This spec makes that explicit.").
	if got := len(h.SentPackets()); got != 0 {
		t.Fatalf("Stop reinjected %d queued packets, want 0 (they must be discarded)", got)
	}
	if got := e.Latency.QueueDepth(); got != 0 {
		t.Fatalf("Latency queue not drained by Stop: depth=%d", got)
	}
}

func TestEngineDriverVersion(t *testing.T) {
	e := NewEngine(nil)
	h := newFakeDiverterHandle("")
	ctx := context.Background()
	if err := e.Start(ctx, fixedOpener{h}, StartConfig{Filter: "true"}); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer e.Stop()

	major, minor, err := e.DriverVersion()
	if err != nil {
		t.Fatalf("DriverVersion: %v", err)
	}
	if major == 0 && minor == 0 {
		t.Fatalf("DriverVersion returned zero value")
	}
}
