package middleware

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

type clientIPKey struct{}

var peerOnly = NewIPExtractor(nil)

// Build client address resolver.
// X-Forwarded-For is read only when the peer is within trusted ranges: hops are walked from the right
// and the first untrusted one is the client. Loopback and private networks are not trusted implicitly
func NewIPExtractor(trusted []*net.IPNet) func(*http.Request) string {
	opts := []echo.TrustOption{
		echo.TrustLoopback(false),
		echo.TrustLinkLocal(false),
		echo.TrustPrivateNet(false),
	}
	for _, ipNet := range trusted {
		opts = append(opts, echo.TrustIPRange(ipNet))
	}
	extract := echo.ExtractIPFromXFFHeader(opts...)

	return func(r *http.Request) string {
		if ip := extract(r); ip != "" {
			return ip
		}
		if r.RemoteAddr != "" {
			return r.RemoteAddr
		}
		return "unknown"
	}
}

// Resolve client address once and keep it in the request context
func ClientIPMiddleware(extract func(*http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := context.WithValue(r.Context(), clientIPKey{}, extract(r))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Address resolved by ClientIPMiddleware or the peer address
func ClientIP(r *http.Request) string {
	if ip, ok := r.Context().Value(clientIPKey{}).(string); ok {
		return ip
	}
	return peerOnly(r)
}

// Parse comma separated list of CIDRs or single addresses
func ParseTrustedProxies(raw string) ([]*net.IPNet, error) {
	var nets []*net.IPNet

	for _, item := range strings.Split(raw, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}

		if strings.Contains(item, "/") {
			_, ipNet, err := net.ParseCIDR(item)
			if err != nil {
				return nil, fmt.Errorf("invalid trusted proxy %q: %w", item, err)
			}
			nets = append(nets, ipNet)
			continue
		}

		ip := net.ParseIP(item)
		if ip == nil {
			return nil, fmt.Errorf("invalid trusted proxy %q", item)
		}
		bits := 8 * net.IPv6len
		if ip4 := ip.To4(); ip4 != nil {
			ip, bits = ip4, 8*net.IPv4len
		}
		nets = append(nets, &net.IPNet{IP: ip, Mask: net.CIDRMask(bits, bits)})
	}

	return nets, nil
}
