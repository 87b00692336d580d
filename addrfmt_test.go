package netimp

import "testing"

func TestIPv4String(t *testing.T) {
	got := IPv4String(0xC0A80001) // 192.168.0.1
	if got != "192.168.0.1" {
		t.Fatalf("IPv4String = %q, want 192.168.0.1", got)
	}
}

func TestIPv6StringCanonicalCompression(t *testing.T) {
	// 2001:db8::1
	words := [4]uint32{0x20010db8, 0x00000000, 0x00000000, 0x00000001}
	got := IPv6String(words)
	if got != "2001:db8::1" {
		t.Fatalf("IPv6String = %q, want 2001:db8::1", got)
	}
}

func TestIPAddressString(t *testing.T) {
	v4 := IPAddress{Version: IPv4Version, V4: 0x7F000001}
	if got := IPAddressString(v4); got != "127.0.0.1" {
		t.Fatalf("IPAddressString(v4) = %q, want 127.0.0.1", got)
	}

	v6 := IPAddress{Version: IPv6Version, V6: [4]uint32{0, 0, 0, 1}}
	if got := IPAddressString(v6); got != "::1" {
		t.Fatalf("IPAddressString(v6) = %q, want ::1", got)
	}
}
