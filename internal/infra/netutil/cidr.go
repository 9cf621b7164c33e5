// Package netutil holds small network helpers for the admin plane.
package netutil

import (
	"net"
)

// MustParseCIDRs parses CIDR strings into []*net.IPNet. Invalid entries are
// skipped rather than failing startup; an empty allowlist locks the gated
// endpoints entirely.
func MustParseCIDRs(cidrs []string) (out []*net.IPNet) {
	for _, s := range cidrs {
		_, n, err := net.ParseCIDR(s)
		if err == nil && n != nil {
			out = append(out, n)
		}
	}
	return
}

// Contains reports whether any of the networks covers ip.
func Contains(nets []*net.IPNet, ip net.IP) bool {
	for _, n := range nets {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}
