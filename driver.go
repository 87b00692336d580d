package netimp

import (
	"context"

	"github.com/pkg/errors"
)

// DiverterLayer identifies the WinDivert-style capture layer to open a
// handle at. The engine always uses [LayerNetwork]; the type exists so
// the contract documents the full range a real diverter exposes
// (spec.md §6).
type DiverterLayer int

const (
	// LayerNetwork intercepts packets at the IP layer.
	LayerNetwork DiverterLayer = iota
	// LayerForward intercepts forwarded packets.
	LayerForward
)

// DiverterParam identifies a get/set-parameter knob on a diverter
// handle, per spec.md §3/§6.
type DiverterParam int

const (
	ParamQueueLength DiverterParam = iota
	ParamQueueTime
	ParamQueueSize
	ParamVersionMajor
	ParamVersionMinor
)

// ShutdownMode selects which half of a diverter handle to shut down.
type ShutdownMode int

const (
	// ShutdownRecv unblocks any in-flight RecvEx call.
	ShutdownRecv ShutdownMode = iota
	// ShutdownBoth shuts down both halves of the handle.
	ShutdownBoth
)

// DiverterHandle is the subset of a kernel-mode packet diverter's API
// the engine consumes (spec.md §6). The engine treats a handle as safe
// for concurrent RecvEx/SendEx calls from multiple worker and release
// goroutines, per spec.md §5 — real diverters are documented to
// serialize concurrent receive calls internally.
type DiverterHandle interface {
	// SetParam configures a runtime parameter. Returns an error if the
	// diverter rejects the value; the caller's configuration struct must
	// not be updated on failure (spec.md §4.8 Failure policy).
	SetParam(param DiverterParam, value uint64) error

	// GetParam reads a runtime parameter (e.g. driver version).
	GetParam(param DiverterParam) (uint64, error)

	// RecvEx receives a batch of packets into packetBuf, returning the
	// number of bytes received and one [Address] per packet. It blocks
	// until packets arrive, ctx is cancelled, or [DiverterHandle.Shutdown]
	// unblocks it with [ShutdownRecv].
	RecvEx(ctx context.Context, packetBuf []byte, maxPackets int) (n int, addrs []Address, err error)

	// SendEx reinjects a batch of packets, one byte slice per packet in
	// packets, with one [Address] per packet in addrs (same order,
	// same count). It may block on the diverter's injection queue.
	SendEx(packets [][]byte, addrs []Address) (sent int, err error)

	// Shutdown unblocks any in-flight RecvEx/SendEx call per mode.
	Shutdown(mode ShutdownMode) error

	// Close releases the handle. Must only be called after every
	// worker and release goroutine using the handle has quiesced.
	Close() error
}

// DiverterOpener opens a [DiverterHandle] bound to a filter string.
// Real implementations wrap WinDivertOpen or an equivalent kernel API;
// [FakeDiverter] is the in-memory stand-in used by tests.
type DiverterOpener interface {
	Open(filter string, layer DiverterLayer, priority int16, flags uint64) (DiverterHandle, error)
}

// ErrAlreadyRunning is returned by [Engine.Start] when the engine is not
// in the Idle state (spec.md §7).
var ErrAlreadyRunning = errors.New("netimp: engine is already running")

// ErrNoData is returned by a [DiverterHandle.RecvEx] implementation to
// indicate a non-fatal "no more data, receive shut down" condition; the
// worker loop treats it like should_stop (spec.md §4.8 step 2).
var ErrNoData = errors.New("netimp: no data")

// DriverOpenCode classifies why opening a diverter handle failed
// (spec.md §7's recognizable sub-codes).
type DriverOpenCode int

const (
	DriverOpenOther DriverOpenCode = iota
	DriverOpenAccessDenied
	DriverOpenServiceMissing
	DriverOpenFilesMissing
)

// DriverOpenFailedError wraps a failure to open the diverter handle.
type DriverOpenFailedError struct {
	Code  DriverOpenCode
	Cause error
}

func (e *DriverOpenFailedError) Error() string {
	return errors.Wrap(e.Cause, "netimp: failed to open diverter").Error()
}

func (e *DriverOpenFailedError) Unwrap() error { return e.Cause }

// DriverParamFailedError wraps a failure to set a diverter parameter.
type DriverParamFailedError struct {
	Which DiverterParam
	Cause error
}

func (e *DriverParamFailedError) Error() string {
	return errors.Wrapf(e.Cause, "netimp: failed to set diverter param %d", e.Which).Error()
}

func (e *DriverParamFailedError) Unwrap() error { return e.Cause }
