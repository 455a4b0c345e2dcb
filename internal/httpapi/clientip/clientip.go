// Package clientip resolves the "real" client address for a request.
// It is a trimmed port of the teacher's clientip package: the tracker
// only needs the direct-connection case by default (the spec's
// "host derived from request source address"), plus an optional
// X-Forwarded-For chain for operators who front the tracker with a
// reverse proxy.
package clientip

import (
	"errors"
	"net"
	"net/http"
	"strings"

	"github.com/vmthunder/volt/internal/netutil"
)

var (
	// ErrInvalidAddress is returned when no valid IP can be parsed or
	// derived from the configured source.
	ErrInvalidAddress = errors.New("clientip: invalid address")
)

// Resolver derives the client host from a request.
type Resolver interface {
	ClientHost(r *http.Request) (string, error)
}

// ResolverFunc adapts a function to a Resolver.
type ResolverFunc func(r *http.Request) (string, error)

// ClientHost calls f(r).
func (f ResolverFunc) ClientHost(r *http.Request) (string, error) { return f(r) }

// RemoteAddr resolves the client host from the request's socket address.
// This is the right resolver when the tracker accepts direct connections
// from compute hosts rather than sitting behind a reverse proxy, and is
// the default used by cmd/voltd.
type RemoteAddr struct{}

// ClientHost strips the port from r.RemoteAddr and returns the host.
func (RemoteAddr) ClientHost(r *http.Request) (string, error) {
	host, _ := netutil.SplitHostPort(r.RemoteAddr)
	host, _ = netutil.SplitHostZone(host)
	if net.ParseIP(host) == nil {
		return "", ErrInvalidAddress
	}
	return host, nil
}

// XForwardedForLeftmost resolves the client host as the leftmost
// non-private address in the X-Forwarded-For header, falling back to
// RemoteAddr when the header is absent or contains nothing usable. Only
// safe to use when every hop between the tracker and the internet is
// trusted to set this header honestly.
type XForwardedForLeftmost struct{}

func (XForwardedForLeftmost) ClientHost(r *http.Request) (string, error) {
	hdr := r.Header.Get("X-Forwarded-For")
	for _, candidate := range strings.Split(hdr, ",") {
		candidate = strings.TrimSpace(candidate)
		if candidate == "" {
			continue
		}
		ip := net.ParseIP(candidate)
		if ip == nil {
			continue
		}
		if !isPrivate(ip) {
			return candidate, nil
		}
	}
	return RemoteAddr{}.ClientHost(r)
}

func isPrivate(ip net.IP) bool {
	if ip.IsLoopback() || ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() {
		return true
	}
	for _, cidr := range []string{"10.0.0.0/8", "172.16.0.0/12", "192.168.0.0/16", "fc00::/7"} {
		_, block, err := net.ParseCIDR(cidr)
		if err == nil && block.Contains(ip) {
			return true
		}
	}
	return false
}
