package logger

import (
	"fmt"
	"net/netip"
	"strings"
)

// RedactEmail masks an email address for safe logging.
// "john.doe@example.com" → "jo***@example.com"
// Short local parts (≤2 chars) are fully masked: "ab@example.com" → "***@example.com"
func RedactEmail(email string) string {
	parts := strings.Split(email, "@")
	if len(parts) != 2 {
		return "***@***"
	}
	name := parts[0]
	if len(name) > 2 {
		return name[:2] + "***@" + parts[1]
	}
	return "***@" + parts[1]
}

// RedactIP keeps the network part of an address for logging.
// "203.0.113.7" → "203.0.113.x", IPv6 keeps the first four groups.
func RedactIP(ip string) string {
	addr, err := netip.ParseAddr(strings.TrimSpace(ip))
	if err != nil {
		if ip == "" {
			return ""
		}
		return "***"
	}
	if addr.Is4() || addr.Is4In6() {
		b := addr.Unmap().As4()
		return fmt.Sprintf("%d.%d.%d.x", b[0], b[1], b[2])
	}
	groups := strings.Split(addr.StringExpanded(), ":")
	return strings.Join(groups[:4], ":") + ":x"
}
