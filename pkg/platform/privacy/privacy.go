// Package privacy provides helpers for reducing identifying detail before it
// reaches logs or audit sinks.
package privacy

import (
	"net"
	"strings"
)

// AnonymizeIP masks the host-identifying portion of an IP address so audit
// records stay useful for forensics without storing a full client address.
// IPv4 keeps the /24, IPv6 keeps the /48. Unparseable input is redacted.
func AnonymizeIP(ip string) string {
	parsed := net.ParseIP(strings.TrimSpace(ip))
	if parsed == nil {
		return "redacted"
	}
	if v4 := parsed.To4(); v4 != nil {
		masked := v4.Mask(net.CIDRMask(24, 32))
		return masked.String()
	}
	masked := parsed.Mask(net.CIDRMask(48, 128))
	return masked.String()
}
