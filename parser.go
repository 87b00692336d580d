package netimp

import (
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
)

// ParsePacket extracts a [PacketInfo] from raw packet bytes and the
// diverter's [Address] record (spec.md §4.9). It never mutates data
// and never errors on malformed or truncated input: a missing L3
// header leaves IPVersion at 0, and a missing L4 header leaves the
// ports at 0, matching spec.md's "parser must tolerate truncated or
// malformed packets ... it never throws for malformed input."
//
// Grounded on the teacher's DissectPacket (dissect.go): sniff the IP
// version from the first nibble, then hand the buffer to gopacket with
// lazy decoding so unparseable trailing layers simply decode to
// nothing rather than erroring the whole packet.
func ParsePacket(data []byte, addr Address, capturedAt time.Time) PacketInfo {
	info := PacketInfo{
		Length:     uint32(len(data)),
		CapturedAt: capturedAt,
		Outbound:   addr.Outbound,
		Loopback:   addr.Loopback,
		IfIdx:      addr.IfIdx,
	}

	if len(data) < 1 {
		return info
	}
	version := data[0] >> 4

	switch version {
	case 4:
		info.IPVersion = IPv4Version
		parseIPv4(data, &info)
	case 6:
		info.IPVersion = IPv6Version
		parseIPv6(data, &info)
	default:
		// unrecognized version: leave IPVersion zero, nothing more to parse.
	}
	return info
}

func parseIPv4(data []byte, info *PacketInfo) {
	pkt := gopacket.NewPacket(data, layers.LayerTypeIPv4, gopacket.Lazy)
	layer := pkt.Layer(layers.LayerTypeIPv4)
	if layer == nil {
		return
	}
	ip4, ok := layer.(*layers.IPv4)
	if !ok {
		return
	}
	info.SrcAddr = ipv4Address(ip4.SrcIP)
	info.DstAddr = ipv4Address(ip4.DstIP)
	info.Protocol = uint8(ip4.Protocol)
	info.Length = uint32(ip4.Length)
	parseL4(pkt, info)
}

func parseIPv6(data []byte, info *PacketInfo) {
	pkt := gopacket.NewPacket(data, layers.LayerTypeIPv6, gopacket.Lazy)
	layer := pkt.Layer(layers.LayerTypeIPv6)
	if layer == nil {
		return
	}
	ip6, ok := layer.(*layers.IPv6)
	if !ok {
		return
	}
	info.SrcAddr = ipv6Address(ip6.SrcIP)
	info.DstAddr = ipv6Address(ip6.DstIP)
	info.Protocol = uint8(ip6.NextHeader)
	info.Length = uint32(ip6.Length) + 40
	parseL4(pkt, info)
}

func parseL4(pkt gopacket.Packet, info *PacketInfo) {
	if tcpLayer := pkt.Layer(layers.LayerTypeTCP); tcpLayer != nil {
		if tcp, ok := tcpLayer.(*layers.TCP); ok {
			info.SrcPort = uint16(tcp.SrcPort)
			info.DstPort = uint16(tcp.DstPort)
		}
		return
	}
	if udpLayer := pkt.Layer(layers.LayerTypeUDP); udpLayer != nil {
		if udp, ok := udpLayer.(*layers.UDP); ok {
			info.SrcPort = uint16(udp.SrcPort)
			info.DstPort = uint16(udp.DstPort)
		}
	}
}

// ipv4Address converts a net.IP (4-byte form) into an [IPAddress] in
// host byte order, per spec.md §3/§4.9.
func ipv4Address(ip []byte) IPAddress {
	v4 := ip
	if len(v4) == 16 {
		v4 = v4[12:16]
	}
	if len(v4) != 4 {
		return IPAddress{Version: IPv4Version}
	}
	addr := uint32(v4[0])<<24 | uint32(v4[1])<<16 | uint32(v4[2])<<8 | uint32(v4[3])
	return IPAddress{Version: IPv4Version, V4: addr}
}

// ipv6Address converts a net.IP (16-byte form) into an [IPAddress] of
// four host-byte-order 32-bit words.
func ipv6Address(ip []byte) IPAddress {
	if len(ip) != 16 {
		return IPAddress{Version: IPv6Version}
	}
	var words [4]uint32
	for i := 0; i < 4; i++ {
		o := i * 4
		words[i] = uint32(ip[o])<<24 | uint32(ip[o+1])<<16 | uint32(ip[o+2])<<8 | uint32(ip[o+3])
	}
	return IPAddress{Version: IPv6Version, V6: words}
}
