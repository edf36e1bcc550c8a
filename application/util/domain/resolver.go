package domain

import (
	"context"
	"net"
	"net/netip"
	"strings"

	"github.com/pkg/errors"
)

type ResolveConfig struct {
	CustomDNSServer string            // host:port, system resolver when empty
	Network         string            // one of "ip4", "ip6", default is "ip"
	StaticHosts     map[string]string // resembles /etc/hosts
}

// this type should not be used outside this file.
// prevents non-custom DNS server contexts to iterate through all keys
type dnsServerCtx struct {
	context.Context
	server string
}

var dnsServerCtxKey = &dnsServerCtx{nil, "dns-server"}

func (c dnsServerCtx) Value(key any) any {
	if key == dnsServerCtxKey {
		return c.server
	}
	return c.Context.Value(key)
}

var zeroDialer net.Dialer

var customServerResolver = net.Resolver{
	PreferGo: true,
	Dial: func(ctx context.Context, network, address string) (net.Conn, error) {
		if v, ok := ctx.Value(dnsServerCtxKey).(string); ok && v != "" {
			return zeroDialer.DialContext(ctx, network, v)
		}
		return zeroDialer.DialContext(ctx, network, address)
	},
}

type resolverLookuper struct {
	cfg ResolveConfig
}

var _ Lookuper = (*resolverLookuper)(nil)

// NewResolverLookuper creates a lookuper backed by DNS.
// Static hosts are consulted first and never reach the network. Their
// names match regardless of case and Unicode form.
func NewResolverLookuper(cfg ResolveConfig) *resolverLookuper {
	static := make(map[string]string, len(cfg.StaticHosts))
	for name, addr := range cfg.StaticHosts {
		static[normalizeName(name)] = addr
	}
	cfg.StaticHosts = static
	if cfg.Network == "" {
		cfg.Network = "ip"
	}
	return &resolverLookuper{cfg: cfg}
}

func (r *resolverLookuper) LookupIP(ctx context.Context, domain string) ([]netip.Addr, error) {
	if static, ok := r.cfg.StaticHosts[normalizeName(domain)]; ok {
		addr, err := netip.ParseAddr(static)
		if err != nil {
			return nil, errors.Wrapf(err, "static host %q", domain)
		}
		return []netip.Addr{addr}, nil
	}

	addrs, err := customServerResolver.LookupNetIP(dnsServerCtx{ctx, r.cfg.CustomDNSServer}, r.cfg.Network, domain)
	if err != nil {
		var dnsErr *net.DNSError
		if errors.As(err, &dnsErr) && dnsErr.IsNotFound {
			return nil, errors.Wrapf(ErrDomainNotFound, "%q", domain)
		}
		return nil, errors.Wrapf(err, "looking up %q", domain)
	}

	for i, addr := range addrs {
		addrs[i] = addr.Unmap()
	}

	return addrs, nil
}

func normalizeName(name string) string {
	if ascii, err := ToASCII(name); err == nil {
		return ascii
	}
	return strings.ToLower(name)
}
