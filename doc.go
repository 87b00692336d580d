// Package netimp implements a user-space network impairment engine.
//
// The engine intercepts live IP packets at the network layer through an
// external kernel-mode diverter (see [DiverterHandle]), runs them through a
// configurable pipeline of degradations — loss, duplication, reordering,
// jitter, fixed latency, and bandwidth capping — and reinjects whatever the
// pipeline produces back into the diverter.
//
// Use [NewEngine] to create an [Engine], configure its stages with the
// Set* methods, and call [Engine.Start] with a [DiverterOpener] to begin
// capturing. [Engine.Stop] drains the pipeline and closes the diverter
// handle.
//
// The diverter itself, the graphical control surface, and configuration
// file persistence are external collaborators; this package only defines
// the interfaces ([DiverterHandle], [DiverterOpener]) it needs from them.
// [FakeDiverter] provides an in-memory [DiverterOpener] suitable for tests
// and for driving the engine without a real kernel component.
package netimp
