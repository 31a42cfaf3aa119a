// Package urlguard validates outbound destination URLs against SSRF risk.
// A destination URL must never resolve to loopback, private, link-local or
// otherwise reserved address space, whether given as a literal IP or as a
// hostname. DNS can change between configuration and dispatch, so the guard
// runs both when a destination is saved and again before every attempt.
package urlguard

import (
	"context"
	"fmt"
	"net"
	"net/netip"
	"net/url"
	"strings"

	"github.com/leadops-io/leadops/internal/domain"
)

// Resolver is the subset of net.Resolver the guard needs. Injectable so
// tests never perform real DNS lookups.
type Resolver interface {
	LookupNetIP(ctx context.Context, network, host string) ([]netip.Addr, error)
}

var blockedHostnames = map[string]bool{
	"localhost":                true,
	"metadata.google.internal": true,
	"metadata.goog":            true,
	"instance-data":            true,
}

var blockedSuffixes = []string{
	".local",
	".internal",
	".localhost",
	".localdomain",
	".home.arpa",
}

var privateV4 = mustPrefixes(
	"0.0.0.0/8",
	"10.0.0.0/8",
	"127.0.0.0/8",
	"100.64.0.0/10",
	"169.254.0.0/16",
	"172.16.0.0/12",
	"192.168.0.0/16",
	"198.18.0.0/15",
	"224.0.0.0/3", // multicast and reserved, everything >= 224.0.0.0
)

var privateV6 = mustPrefixes(
	"fc00::/7",  // unique-local
	"fe80::/10", // link-local
	"ff00::/8",  // multicast
)

func mustPrefixes(cidrs ...string) []netip.Prefix {
	prefixes := make([]netip.Prefix, 0, len(cidrs))
	for _, c := range cidrs {
		prefixes = append(prefixes, netip.MustParsePrefix(c))
	}
	return prefixes
}

// Guard validates destination URLs.
type Guard struct {
	resolver Resolver
}

// New creates a guard backed by the system resolver.
func New() *Guard {
	return &Guard{resolver: net.DefaultResolver}
}

// NewWithResolver creates a guard with a custom resolver.
func NewWithResolver(resolver Resolver) *Guard {
	return &Guard{resolver: resolver}
}

// AssertPublicURL fails unless the URL is http/https and its host is, and
// resolves only to, public address space. DNS failures fail closed.
func (g *Guard) AssertPublicURL(ctx context.Context, rawURL string) error {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return domain.ErrInvalidDestinationURL.WithError(err)
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return domain.ErrInvalidDestinationURL.WithMessage(
			fmt.Sprintf("unsupported scheme %q, only http and https are allowed", u.Scheme))
	}

	host := strings.ToLower(strings.TrimSpace(u.Hostname()))
	host = strings.TrimSuffix(host, ".")
	if host == "" {
		return domain.ErrInvalidDestinationURL.WithMessage("URL has no hostname")
	}

	if blockedHostnames[host] {
		return domain.ErrPrivateDestinationURL.WithMessage(
			fmt.Sprintf("hostname %q is blocked", host))
	}
	for _, suffix := range blockedSuffixes {
		if strings.HasSuffix(host, suffix) {
			return domain.ErrPrivateDestinationURL.WithMessage(
				fmt.Sprintf("hostname %q uses a reserved suffix", host))
		}
	}

	// Literal IP: classify directly, no DNS involved.
	if addr, err := netip.ParseAddr(host); err == nil {
		if isPrivate(addr) {
			return domain.ErrPrivateDestinationURL.WithMessage(
				fmt.Sprintf("address %s is private or reserved", addr))
		}
		return nil
	}

	// Unqualified single-label names only ever resolve inside a local
	// search domain.
	if !strings.Contains(host, ".") {
		return domain.ErrPrivateDestinationURL.WithMessage(
			fmt.Sprintf("hostname %q is not fully qualified", host))
	}

	addrs, err := g.resolver.LookupNetIP(ctx, "ip", host)
	if err != nil {
		return domain.ErrInvalidDestinationURL.WithError(
			fmt.Errorf("resolve %q: %w", host, err))
	}
	if len(addrs) == 0 {
		return domain.ErrInvalidDestinationURL.WithMessage(
			fmt.Sprintf("hostname %q did not resolve to any address", host))
	}

	// One private record is enough to reject: a partially-poisoned answer
	// must not slip through.
	for _, addr := range addrs {
		if isPrivate(addr) {
			return domain.ErrPrivateDestinationURL.WithMessage(
				fmt.Sprintf("hostname %q resolves to private address %s", host, addr))
		}
	}

	return nil
}

func isPrivate(addr netip.Addr) bool {
	if addr.Is4In6() {
		return isPrivate(addr.Unmap())
	}

	if addr.Is4() {
		for _, p := range privateV4 {
			if p.Contains(addr) {
				return true
			}
		}
		return false
	}

	if !addr.IsValid() || addr == netip.IPv6Unspecified() || addr == netip.IPv6Loopback() {
		return true
	}
	for _, p := range privateV6 {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}
