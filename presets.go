package netimp

// FilterPreset names a ready-made diverter filter expression offered by
// the control surface (spec.md §6). Expression is opaque to this
// package: it is passed straight through to [DiverterOpener.Open] as
// the filter string.
type FilterPreset struct {
	Name       string `yaml:"name"`
	Expression string `yaml:"filter"`
}

// DefaultFilterPresets returns the nine built-in filter presets
// spec.md §6 names, in display order. The original source's Wireshark-
// display-filter-flavored hotkey list carried thirteen; four were pure
// GUI key-binding aliases for presets already in this list (see
// DESIGN.md's Open Question resolution) and are not repeated here.
func DefaultFilterPresets() []FilterPreset {
	return []FilterPreset{
		{Name: "All traffic", Expression: "true"},
		{Name: "TCP only", Expression: "tcp"},
		{Name: "UDP only", Expression: "udp"},
		{Name: "HTTP", Expression: "tcp.DstPort == 80 or tcp.SrcPort == 80"},
		{Name: "HTTPS", Expression: "tcp.DstPort == 443 or tcp.SrcPort == 443"},
		{Name: "DNS", Expression: "udp.DstPort == 53 or udp.SrcPort == 53"},
		{Name: "Local subnet only", Expression: "ip.DstAddr >= 10.0.0.0 and ip.DstAddr <= 10.255.255.255"},
		{Name: "Exclude loopback", Expression: "not loopback"},
		{Name: "Disabled", Expression: "false"},
	}
}

// ExitCode is the process exit status a CLI or GUI front end should
// return, per spec.md §6. This package has no front end of its own;
// the constants exist so a caller's main() has a shared vocabulary.
type ExitCode int

const (
	// ExitOK indicates a clean shutdown.
	ExitOK ExitCode = 0
	// ExitGUIInitFailed indicates the control surface failed to start.
	ExitGUIInitFailed ExitCode = 1
	// ExitDriverOpenFailed indicates [Engine.Start] failed to open the
	// diverter handle.
	ExitDriverOpenFailed ExitCode = 2
)
