// Package netutil has small HTTP networking helpers shared by the handler
// packages.
package netutil

import (
	"net/http"
	"strings"
)

// ClientIP extracts the caller's IP address from an HTTP request. It checks
// X-Forwarded-For first (taking the first entry in the chain), then
// X-Real-IP, and falls back to RemoteAddr with the port stripped.
//
// The forwarded headers are trusted as set by the deployment's reverse
// proxy. The value is used for request logging only, never for authorization
// decisions.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	return stripPort(r.RemoteAddr)
}

// stripPort removes the port from an address. Handles IPv4 ("1.2.3.4:8080"),
// bracketed IPv6 ("[::1]:8080"), and bare IPv6 ("::1") without mangling.
func stripPort(addr string) string {
	idx := strings.LastIndex(addr, ":")
	if idx == -1 {
		return addr
	}
	if strings.Contains(addr, "[") {
		if closeIdx := strings.LastIndex(addr, "]"); closeIdx != -1 && closeIdx < idx {
			return addr[:idx]
		}
		return addr
	}
	if strings.Count(addr, ":") > 1 {
		return addr
	}
	return addr[:idx]
}
