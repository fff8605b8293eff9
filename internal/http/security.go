package http

import (
	"net"
	"net/http"
	"slices"
	"strings"
	"sync/atomic"
)

// securityMetrics counts rejected and flagged requests for /metrics.
type securityMetrics struct {
	rateLimitHits      int64
	missingOwner       int64
	suspiciousRequests int64
}

// Only these networks may set X-Forwarded-For and X-Real-IP.
var trustedProxies = mustParseCIDRs("127.0.0.0/8", "10.0.0.0/8", "172.16.0.0/12", "192.168.0.0/16")

var (
	probePatterns = []string{
		"../", "..\\", ".env", ".git", ".ssh", "wp-admin", "phpmyadmin",
		"admin.php", "config.php", "eval(", "javascript:", "<script",
		"union select", "etc/passwd", "cmd.exe",
	}
	scannerAgents = []string{"sqlmap", "nmap", "nikto", "gobuster", "dirb", "masscan", "zgrab", "scanner"}
	probeMethods  = []string{"TRACE", "TRACK", "DEBUG", "CONNECT"}
)

const (
	maxURLLength   = 2048
	maxForwardHops = 5
)

func mustParseCIDRs(cidrs ...string) []*net.IPNet {
	nets := make([]*net.IPNet, 0, len(cidrs))
	for _, cidr := range cidrs {
		_, n, err := net.ParseCIDR(cidr)
		if err != nil {
			panic("bad trusted proxy CIDR " + cidr + ": " + err.Error())
		}
		nets = append(nets, n)
	}
	return nets
}

func isTrustedProxy(ip net.IP) bool {
	return slices.ContainsFunc(trustedProxies, func(n *net.IPNet) bool { return n.Contains(ip) })
}

// extractClientIP returns the peer address, or the forwarded client address
// when the peer is a trusted proxy.
func extractClientIP(r *http.Request) string {
	peer, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		peer = r.RemoteAddr
	}
	ip := net.ParseIP(peer)
	if ip == nil || !isTrustedProxy(ip) {
		return peer
	}

	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if first = strings.TrimSpace(first); net.ParseIP(first) != nil {
			return first
		}
	}
	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); net.ParseIP(xri) != nil {
		return xri
	}
	return peer
}

func containsAny(s string, needles []string) bool {
	return slices.ContainsFunc(needles, func(n string) bool { return strings.Contains(s, n) })
}

// detectSuspiciousRequest flags probes: traversal or exploit strings in the
// URL, known scanner agents, odd methods and oversized URLs or proxy chains.
// Flagged requests are only counted and logged, never rejected.
func detectSuspiciousRequest(r *http.Request, metrics *securityMetrics) bool {
	suspicious := containsAny(strings.ToLower(r.URL.Path), probePatterns) ||
		containsAny(strings.ToLower(r.URL.RawQuery), probePatterns) ||
		containsAny(strings.ToLower(r.UserAgent()), scannerAgents) ||
		slices.Contains(probeMethods, r.Method) ||
		len(r.URL.String()) > maxURLLength ||
		strings.Count(r.Header.Get("X-Forwarded-For"), ",") > maxForwardHops

	if suspicious && metrics != nil {
		atomic.AddInt64(&metrics.suspiciousRequests, 1)
	}
	return suspicious
}
