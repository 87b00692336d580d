package netimp

import "time"

// Address is the per-packet address record a diverter hands back
// alongside captured bytes. It mirrors WINDIVERT_ADDRESS's fields that
// the core actually consumes (spec.md §3, §6): direction, loopback, and
// the interface the packet was seen on.
type Address struct {
	// Outbound is true if the packet is leaving the host.
	Outbound bool

	// Loopback is true if the packet is on the loopback interface.
	Loopback bool

	// IfIdx is the interface index the packet was captured on.
	IfIdx uint32
}

// Packet is an owned, in-flight packet moving through the impairment
// pipeline. Packets are never aliased: whenever a stage needs to retain
// more than one copy of a packet (see [DuplicateStage]) it makes a deep
// copy of Payload rather than sharing the slice. Go's garbage collector
// makes this a matter of discipline rather than a type-system guarantee;
// see DESIGN.md for the corresponding Open Question.
type Packet struct {
	// Payload is the owned packet bytes, capped at max_packet_size.
	Payload []byte

	// Addr is the address record copied from the diverter.
	Addr Address

	// CapturedAt is the monotonic instant the packet was received.
	CapturedAt time.Time

	// ReleaseAt is the monotonic instant a delay stage scheduled this
	// packet for release. Meaningful only inside [JitterStage] and
	// [LatencyStage]; zero otherwise.
	ReleaseAt time.Time
}

// Clone returns a deep copy of p that shares no backing array with p,
// used by [DuplicateStage] to fan a packet out into N independent
// copies that carry the same address record.
func (p *Packet) Clone() *Packet {
	payload := make([]byte, len(p.Payload))
	copy(payload, p.Payload)
	return &Packet{
		Payload:    payload,
		Addr:       p.Addr,
		CapturedAt: p.CapturedAt,
		ReleaseAt:  p.ReleaseAt,
	}
}

// IPVersion is the IP version tag of an [IPAddress]/[PacketInfo].
type IPVersion uint8

const (
	// IPv4Version tags an IPv4 address/packet.
	IPv4Version IPVersion = 4

	// IPv6Version tags an IPv6 address/packet.
	IPv6Version IPVersion = 6
)

// IPAddress is a tagged union of an IPv4 (32-bit) or IPv6 (four 32-bit
// words) address, both stored in host byte order, per spec.md §3.
type IPAddress struct {
	// Version says which field below is meaningful.
	Version IPVersion

	// V4 holds the address when Version == IPv4Version.
	V4 uint32

	// V6 holds the address when Version == IPv6Version.
	V6 [4]uint32
}

// PacketInfo is the parsed, monitoring-only view of a captured packet
// (spec.md §3's PacketInfo). It is produced once per captured packet,
// published into the engine's monitoring ring, and never fed back into
// the pipeline.
type PacketInfo struct {
	// IPVersion is 4 or 6.
	IPVersion IPVersion

	// SrcAddr and DstAddr are the parsed source/destination addresses.
	SrcAddr, DstAddr IPAddress

	// SrcPort and DstPort are 0 unless the L4 protocol is TCP or UDP.
	SrcPort, DstPort uint16

	// Protocol is the L4 protocol number (IPPROTO_TCP, IPPROTO_UDP, ...).
	Protocol uint8

	// Length is the on-wire total length of the packet.
	Length uint32

	// CapturedAt is the capture timestamp.
	CapturedAt time.Time

	// Outbound and Loopback are copied from the packet's [Address].
	Outbound, Loopback bool

	// IfIdx is the capturing interface index.
	IfIdx uint32
}
