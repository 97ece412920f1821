package crawler

import (
	"net"
	"net/url"
	"strings"
)

// isSSRFTarget reports whether u must never be fetched by the crawler: a
// non-http(s) scheme, a literal loopback/internal hostname, or a host that
// resolves (as a literal IP) to a private/reserved address range.
func isSSRFTarget(u *url.URL) bool {
	if u.Scheme != "http" && u.Scheme != "https" {
		return true
	}
	host := u.Hostname()
	if ip := net.ParseIP(host); ip != nil {
		return isPrivateIP(ip)
	}
	lower := strings.ToLower(host)
	if lower == "localhost" || lower == "127.0.0.1" || lower == "[::1]" || lower == "::1" {
		return true
	}
	if strings.HasSuffix(lower, ".local") || strings.HasSuffix(lower, ".internal") {
		return true
	}
	return false
}

func isPrivateIP(ip net.IP) bool {
	if ip4 := ip.To4(); ip4 != nil {
		if ip4.IsLoopback() || ip4.IsPrivate() || ip4.IsLinkLocalUnicast() ||
			ip4.IsLinkLocalMulticast() || ip4.IsUnspecified() {
			return true
		}
		if ip4[0] == 255 && ip4[1] == 255 && ip4[2] == 255 && ip4[3] == 255 {
			return true // broadcast
		}
		// Carrier-grade NAT: 100.64.0.0/10
		if ip4[0] == 100 && (ip4[1]&0xC0) == 64 {
			return true
		}
		// 192.0.0.0/24 (IETF protocol assignments)
		if ip4[0] == 192 && ip4[1] == 0 && ip4[2] == 0 {
			return true
		}
		return false
	}
	return ip.IsLoopback() || ip.IsUnspecified() || ip.IsLinkLocalUnicast()
}
