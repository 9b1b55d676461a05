package util

import (
	"fmt"
	"net/http"
	"net/netip"
	"strings"
)

// TrustedProxies is the allowlist of proxy prefixes whose forwarded headers are honored.
type TrustedProxies struct {
	prefixes []netip.Prefix
}

// NewTrustedProxies parses CIDR or bare IP entries. Empty input means "trust none"
// and returns a nil allowlist.
func NewTrustedProxies(entries []string) (*TrustedProxies, error) {
	var prefixes []netip.Prefix
	for _, raw := range entries {
		entry := strings.TrimSpace(raw)
		if entry == "" {
			continue
		}
		if strings.Contains(entry, "/") {
			p, err := netip.ParsePrefix(entry)
			if err != nil {
				return nil, fmt.Errorf("trusted proxy %q: %w", entry, err)
			}
			prefixes = append(prefixes, p.Masked())
			continue
		}
		addr, err := netip.ParseAddr(entry)
		if err != nil {
			return nil, fmt.Errorf("trusted proxy %q: %w", entry, err)
		}
		addr = addr.Unmap()
		prefixes = append(prefixes, netip.PrefixFrom(addr, addr.BitLen()))
	}
	if len(prefixes) == 0 {
		return nil, nil
	}
	return &TrustedProxies{prefixes: prefixes}, nil
}

// Contains reports whether addr falls inside a trusted prefix.
func (t *TrustedProxies) Contains(addr netip.Addr) bool {
	if t == nil || !addr.IsValid() {
		return false
	}
	addr = addr.Unmap()
	for _, p := range t.prefixes {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

// ClientIP resolves the caller address used as the rate-limit key.
// Forwarded headers count only when the direct peer is a trusted proxy.
func ClientIP(r *http.Request, trusted *TrustedProxies) string {
	remote, ok := parseRemoteAddr(r.RemoteAddr)
	if !ok {
		return strings.TrimSpace(r.RemoteAddr)
	}
	if !trusted.Contains(remote) {
		return remote.String()
	}

	var chain []netip.Addr
	for _, part := range strings.Split(r.Header.Get("X-Forwarded-For"), ",") {
		if addr, err := netip.ParseAddr(strings.TrimSpace(part)); err == nil {
			chain = append(chain, addr.Unmap())
		}
	}
	if len(chain) > 0 {
		chain = append(chain, remote)
		for i := len(chain) - 1; i >= 0; i-- {
			if !trusted.Contains(chain[i]) {
				return chain[i].String()
			}
		}
		return chain[0].String()
	}

	if real, err := netip.ParseAddr(strings.TrimSpace(r.Header.Get("X-Real-IP"))); err == nil {
		return real.Unmap().String()
	}
	return remote.String()
}

func parseRemoteAddr(addr string) (netip.Addr, bool) {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return netip.Addr{}, false
	}
	if ap, err := netip.ParseAddrPort(addr); err == nil {
		return ap.Addr().Unmap(), true
	}
	a, err := netip.ParseAddr(addr)
	if err != nil {
		return netip.Addr{}, false
	}
	return a.Unmap(), true
}
