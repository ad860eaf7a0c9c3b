package common

import (
	"net/http"
	"net/netip"
	"strings"
)

// ClientIP returns the peer address of r without its port. Forwarding
// headers are not read here: behind a proxy, middleware.RealIP rewrites
// RemoteAddr before any caller sees the request.
func ClientIP(r *http.Request) string {
	if r == nil {
		return ""
	}
	addr := strings.TrimSpace(r.RemoteAddr)
	if ap, err := netip.ParseAddrPort(addr); err == nil {
		return ap.Addr().Unmap().String()
	}
	if ip, err := netip.ParseAddr(addr); err == nil {
		return ip.Unmap().String()
	}
	return addr
}
