// Package network lists the broadcast targets available for Art-Net output.
package network

import (
	"fmt"
	"net"
	"strings"
)

// Kind classifies an interface for ordering and display.
type Kind string

const (
	KindEthernet  Kind = "ethernet"
	KindWifi      Kind = "wifi"
	KindOther     Kind = "other"
	KindLocalhost Kind = "localhost"
	KindGlobal    Kind = "global"
)

// GlobalBroadcast is the limited broadcast address, always offered.
const GlobalBroadcast = "255.255.255.255"

// BroadcastOption is one place Art-Net frames can be sent.
type BroadcastOption struct {
	Name        string `json:"name"`
	Address     string `json:"address"`
	Broadcast   string `json:"broadcast"`
	Description string `json:"description"`
	Kind        Kind   `json:"kind"`
}

// ClassifyInterface guesses an interface's kind from its name.
func ClassifyInterface(name string) Kind {
	n := strings.ToLower(name)
	switch {
	case n == "en0":
		// en0 is the built-in Wi-Fi on most Macs
		return KindWifi
	case strings.HasPrefix(n, "wlan"), strings.HasPrefix(n, "wl"),
		strings.Contains(n, "wifi"), strings.Contains(n, "wireless"):
		return KindWifi
	case strings.HasPrefix(n, "eth"), strings.HasPrefix(n, "en"):
		return KindEthernet
	default:
		return KindOther
	}
}

func kindIcon(k Kind) string {
	switch k {
	case KindWifi:
		return "📶"
	case KindEthernet:
		return "🌐"
	case KindLocalhost:
		return "🏠"
	case KindGlobal:
		return "🌍"
	default:
		return "📡"
	}
}

// directedBroadcast returns the subnet broadcast address of an IPv4 network,
// or nil for IPv6 and malformed masks.
func directedBroadcast(ip net.IP, mask net.IPMask) net.IP {
	ip4 := ip.To4()
	if ip4 == nil || mask == nil {
		return nil
	}
	if len(mask) == net.IPv6len {
		mask = mask[12:]
	}
	if len(mask) != net.IPv4len {
		return nil
	}

	out := make(net.IP, net.IPv4len)
	for i := range out {
		out[i] = ip4[i] | ^mask[i]
	}
	return out
}

// optionsFor builds the broadcast options of one interface's addresses.
func optionsFor(ifaceName string, addrs []net.Addr) []BroadcastOption {
	kind := ClassifyInterface(ifaceName)
	var out []BroadcastOption
	for _, addr := range addrs {
		ipNet, ok := addr.(*net.IPNet)
		if !ok {
			continue
		}
		bcast := directedBroadcast(ipNet.IP, ipNet.Mask)
		if bcast == nil || bcast.Equal(ipNet.IP.To4()) {
			// IPv6 or point-to-point
			continue
		}
		out = append(out, BroadcastOption{
			Name:        ifaceName + "-broadcast",
			Address:     ipNet.IP.To4().String(),
			Broadcast:   bcast.String(),
			Description: fmt.Sprintf("%s %s (%s) %s", kindIcon(kind), ifaceName, kind, bcast),
			Kind:        kind,
		})
	}
	return out
}

// fixedOptions are offered on every host.
func fixedOptions() []BroadcastOption {
	return []BroadcastOption{
		{
			Name:        "localhost",
			Address:     "127.0.0.1",
			Broadcast:   "127.0.0.1",
			Description: kindIcon(KindLocalhost) + " Localhost (testing only)",
			Kind:        KindLocalhost,
		},
		{
			Name:        "global-broadcast",
			Address:     "0.0.0.0",
			Broadcast:   GlobalBroadcast,
			Description: kindIcon(KindGlobal) + " Global broadcast " + GlobalBroadcast,
			Kind:        KindGlobal,
		},
	}
}

// sortOptions orders options ethernet first, then wifi, then the rest,
// keeping discovery order within a kind.
func sortOptions(opts []BroadcastOption) []BroadcastOption {
	rank := func(k Kind) int {
		switch k {
		case KindEthernet:
			return 0
		case KindWifi:
			return 1
		default:
			return 2
		}
	}
	out := make([]BroadcastOption, 0, len(opts))
	for r := 0; r <= 2; r++ {
		for _, o := range opts {
			if rank(o.Kind) == r {
				out = append(out, o)
			}
		}
	}
	return out
}

// BroadcastOptions lists the subnet broadcasts of every up, non-loopback
// interface followed by localhost and the global broadcast.
func BroadcastOptions() ([]BroadcastOption, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, fmt.Errorf("failed to list network interfaces: %w", err)
	}

	var found []BroadcastOption
	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		found = append(found, optionsFor(iface.Name, addrs)...)
	}

	return append(sortOptions(found), fixedOptions()...), nil
}

// ValidateBroadcast checks that address is a usable IPv4 target.
func ValidateBroadcast(address string) error {
	ip := net.ParseIP(address)
	if ip == nil || ip.To4() == nil {
		return fmt.Errorf("invalid broadcast address %q: must be IPv4", address)
	}
	if ip.IsUnspecified() {
		return fmt.Errorf("invalid broadcast address %q: unspecified", address)
	}
	return nil
}
