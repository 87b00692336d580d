package netimp

import (
	"fmt"
	"net/netip"
)

// IPv4String renders a host-byte-order 32-bit address in dotted-quad
// form, e.g. 192.168.0.1 (spec.md §10).
func IPv4String(addr uint32) string {
	return fmt.Sprintf("%d.%d.%d.%d",
		byte(addr>>24), byte(addr>>16), byte(addr>>8), byte(addr))
}

// IPv6String renders four host-byte-order 32-bit words as a canonical
// IPv6 address per RFC 5952 (lowercase, zero-run compression). This is
// the one place this package reaches for net/netip instead of a pack
// dependency: RFC 5952 canonicalization (choosing the longest run of
// zero groups to compress, lowercasing hex digits) is exactly what
// [netip.Addr.String] already implements correctly, and no library in
// the pack duplicates it.
func IPv6String(words [4]uint32) string {
	var b [16]byte
	for i, w := range words {
		o := i * 4
		b[o] = byte(w >> 24)
		b[o+1] = byte(w >> 16)
		b[o+2] = byte(w >> 8)
		b[o+3] = byte(w)
	}
	return netip.AddrFrom16(b).String()
}

// IPAddressString renders an [IPAddress] using [IPv4String] or
// [IPv6String] depending on its Version.
func IPAddressString(addr IPAddress) string {
	if addr.Version == IPv6Version {
		return IPv6String(addr.V6)
	}
	return IPv4String(addr.V4)
}
