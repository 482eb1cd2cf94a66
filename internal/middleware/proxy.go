package middleware

import (
	"log/slog"
	"net"
	"net/http"
	"net/netip"
	"strings"

	"github.com/labstack/echo/v4"
)

// TrustedProxies makes c.RealIP() report the client behind the listed proxy
// ranges. Actor IPs on auth events and the per-IP query limiter both read
// it, so an unconfigured deployment behind a proxy sees one client.
func TrustedProxies(e *echo.Echo, trustedCIDRs []string) {
	e.IPExtractor = buildIPExtractor(trustedCIDRs)
}

// proxySet is the parsed TRUSTED_PROXIES list.
type proxySet []netip.Prefix

func parseProxySet(cidrs []string) proxySet {
	var set proxySet
	for _, cidr := range cidrs {
		p, err := netip.ParsePrefix(strings.TrimSpace(cidr))
		if err != nil {
			slog.Warn("ignoring invalid trusted proxy CIDR", slog.String("cidr", cidr))
			continue
		}
		set = append(set, p.Masked())
	}
	return set
}

func (s proxySet) trusts(ip string) bool {
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	for _, p := range s {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

// buildIPExtractor reads forwarding headers only when the peer is a trusted
// proxy. X-Forwarded-For is walked from the right past trusted hops, so a
// client cannot spoof its address by prepending entries.
func buildIPExtractor(trustedCIDRs []string) echo.IPExtractor {
	proxies := parseProxySet(trustedCIDRs)

	return func(req *http.Request) string {
		peer := peerIP(req.RemoteAddr)
		if !proxies.trusts(peer) {
			return peer
		}

		if xff := req.Header.Get(echo.HeaderXForwardedFor); xff != "" {
			hops := strings.Split(xff, ",")
			for i := len(hops) - 1; i >= 0; i-- {
				hop := strings.TrimSpace(hops[i])
				if hop != "" && !proxies.trusts(hop) {
					return hop
				}
			}
			// Every hop is a proxy; the first one is as close as we get.
			if first := strings.TrimSpace(hops[0]); first != "" {
				return first
			}
		}

		if realIP := strings.TrimSpace(req.Header.Get(echo.HeaderXRealIP)); realIP != "" {
			return realIP
		}
		return peer
	}
}

// peerIP strips the port from RemoteAddr.
func peerIP(remoteAddr string) string {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		return remoteAddr
	}
	return host
}
