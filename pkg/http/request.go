package http

import (
	"net"
	"net/http"
	"strings"
)

// LoopbackFallback is returned when no origin address can be resolved
const LoopbackFallback = "127.0.0.1"

// IPConfig holds configuration for IP extraction and validation
type IPConfig struct {
	TrustedProxies []string // CIDR ranges of trusted proxies
}

// ExtractClientIP resolves the origin address of a request.
// Forwarding headers are honored only when the direct peer is a trusted proxy,
// so clients cannot pick their own origin (and with it their rate-limit bucket).
//
// Precedence:
// 1. direct peer address, unless it is a trusted proxy
// 2. first valid X-Forwarded-For entry
// 3. X-Real-IP
// 4. the peer address, then LoopbackFallback
func ExtractClientIP(r *http.Request, config *IPConfig) string {
	peer := remoteHost(r)

	if config == nil || !isTrustedProxy(peer, config.TrustedProxies) {
		return orLoopback(peer)
	}

	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		for _, candidate := range strings.Split(xff, ",") {
			if candidate = strings.TrimSpace(candidate); isValidIP(candidate) {
				return candidate
			}
		}
	}

	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); isValidIP(xri) {
		return xri
	}

	return orLoopback(peer)
}

// remoteHost strips the port from RemoteAddr when present
func remoteHost(r *http.Request) string {
	if r.RemoteAddr == "" {
		return ""
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

func orLoopback(ip string) string {
	if ip == "" {
		return LoopbackFallback
	}
	return ip
}

// isTrustedProxy checks if an IP address is within any of the trusted proxy CIDR ranges
func isTrustedProxy(ip string, trustedProxies []string) bool {
	clientIP := net.ParseIP(ip)
	if clientIP == nil {
		return false
	}

	for _, cidr := range trustedProxies {
		_, ipNet, err := net.ParseCIDR(cidr)
		if err != nil {
			continue
		}
		if ipNet.Contains(clientIP) {
			return true
		}
	}

	return false
}

func isValidIP(ip string) bool {
	return net.ParseIP(ip) != nil
}
