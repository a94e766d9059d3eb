package utils

import (
	"net"
	"net/http"
	"strconv"
	"strings"
)

// ParseLimit reads an integer query value and checks it against [min, max].
// Empty input yields def.
func ParseLimit(value string, def, min, max int) (int, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return def, true
	}

	n, err := strconv.Atoi(value)
	if err != nil || n < min || n > max {
		return 0, false
	}

	return n, true
}

// ClientIP reads RemoteAddr. Proxy headers only count when chi's RealIP
// middleware is enabled (TRUST_PROXY_HEADERS) and has rewritten it.
func ClientIP(r *http.Request) string {
	addr := strings.TrimSpace(r.RemoteAddr)
	if addr == "" {
		return ""
	}
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return addr
}

// BearerToken returns the token from "Authorization: Bearer <token>".
func BearerToken(r *http.Request) (string, bool) {
	parts := strings.Fields(r.Header.Get("Authorization"))
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	return parts[1], true
}
