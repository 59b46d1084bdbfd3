package middleware

import (
	"net"
	"net/http"
	"net/netip"
	"strings"
)

// ipv6ClientPrefix is the prefix length treated as one IPv6 client when
// counting requests. Providers hand out a /64 per subscriber.
const ipv6ClientPrefix = 64

// GetClientIP returns the caller's address in canonical form. The first
// X-Forwarded-For entry wins over X-Real-IP, which wins over RemoteAddr;
// headers that do not hold an address are ignored.
func GetClientIP(r *http.Request) string {
	if addr, ok := clientAddr(r); ok {
		return addr.String()
	}

	return r.RemoteAddr
}

// rateLimitKey identifies the client for the rate limiter. IPv4 addresses
// are used as is; IPv6 addresses are collapsed to their /64 so a client
// cannot reset its budget by rotating the interface identifier.
func rateLimitKey(r *http.Request) string {
	addr, ok := clientAddr(r)
	if !ok {
		return r.RemoteAddr
	}

	if addr.Is4() {
		return addr.String()
	}

	prefix, err := addr.Prefix(ipv6ClientPrefix)
	if err != nil {
		return addr.String()
	}

	return prefix.String()
}

func clientAddr(r *http.Request) (netip.Addr, bool) {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if addr, ok := parseAddr(first); ok {
			return addr, true
		}
	}

	if addr, ok := parseAddr(r.Header.Get("X-Real-IP")); ok {
		return addr, true
	}

	host := r.RemoteAddr
	if h, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		host = h
	}

	return parseAddr(host)
}

// parseAddr accepts a bare address, dropping any IPv6 zone and unmapping
// IPv4-in-IPv6 so one client always yields the same key.
func parseAddr(s string) (netip.Addr, bool) {
	addr, err := netip.ParseAddr(strings.TrimSpace(s))
	if err != nil {
		return netip.Addr{}, false
	}

	return addr.WithZone("").Unmap(), true
}
