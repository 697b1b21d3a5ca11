package tun

import (
	"errors"
	"fmt"
	"net/netip"

	"github.com/user/dnstun/internal/dns"
	"github.com/user/dnstun/internal/logger"
	"github.com/user/dnstun/internal/tunnel"
)

// link is the adapter surface the builder drives.
type link interface {
	Create() error
	Configure(prefix netip.Prefix) error
	SetNonblocking() error
	Up() error
	Down() error
	Close() error
	Name() string
	Prefix() netip.Prefix
	MTU() int
	IsUp() bool
}

// Resolver applies and reverts the interface's DNS servers.
type Resolver interface {
	Configure(cfg *dns.Config) error
	Reset() error
	FlushDNSCache() error
}

// Builder creates tunnel interfaces. It implements tunnel.Establisher.
type Builder struct {
	name     string
	resolver Resolver
	newLink  func(cfg *Config) (link, error)
}

// NewBuilder returns a builder creating an adapter called name whose
// resolver settings are applied through resolver.
func NewBuilder(name string, resolver Resolver) *Builder {
	return &Builder{
		name:     name,
		resolver: resolver,
		newLink: func(cfg *Config) (link, error) {
			return New(cfg)
		},
	}
}

// Establish creates, addresses and raises the adapter, then points its
// resolver at spec.DNS. On failure everything done so far is undone.
func (b *Builder) Establish(spec tunnel.Spec) (tunnel.Handle, error) {
	l, err := b.newLink(&Config{Name: b.name, Alias: spec.Session, MTU: spec.MTU})
	if err != nil {
		return nil, err
	}
	if err := l.Create(); err != nil {
		return nil, err
	}

	iface := &Interface{link: l}
	if err := b.configure(l, spec, iface); err != nil {
		if cerr := iface.Close(); cerr != nil {
			logger.Warning("Rolling back %s: %v", l.Name(), cerr)
		}
		return nil, err
	}

	logger.Info("TUN %s up at %s (session %q, mtu %d)", l.Name(), l.Prefix(), spec.Session, l.MTU())
	return iface, nil
}

func (b *Builder) configure(l link, spec tunnel.Spec, iface *Interface) error {
	if err := l.Configure(spec.Address); err != nil {
		return err
	}
	if err := l.Up(); err != nil {
		return err
	}
	if spec.NonBlocking {
		if err := l.SetNonblocking(); err != nil {
			logger.Warning("TUN %s: %v, continuing in blocking mode", l.Name(), err)
		}
	}

	servers := make([]netip.Addr, 0, len(spec.DNS))
	for _, s := range spec.DNS {
		if s.IsValid() {
			servers = append(servers, s)
		}
	}
	if err := b.resolver.Configure(&dns.Config{
		InterfaceName: l.Name(),
		Servers:       servers,
		RouteAll:      true,
	}); err != nil {
		return fmt.Errorf("failed to configure DNS: %w", err)
	}
	iface.resolver = b.resolver
	flushCache(b.resolver)
	return nil
}

// Interface is an established tunnel interface. It implements tunnel.Handle.
type Interface struct {
	link     link
	resolver Resolver
}

// Name returns the OS name of the interface.
func (i *Interface) Name() string {
	return i.link.Name()
}

// Close reverts DNS, then brings the interface down and destroys it.
func (i *Interface) Close() error {
	var errs []error
	if i.resolver != nil {
		if err := i.resolver.Reset(); err != nil && !errors.Is(err, dns.ErrNotConfigured) {
			errs = append(errs, err)
		}
		flushCache(i.resolver)
		i.resolver = nil
	}
	if i.link.IsUp() {
		if err := i.link.Down(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := i.link.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// flushCache drops answers cached from the previous resolvers.
func flushCache(r Resolver) {
	if err := r.FlushDNSCache(); err != nil {
		logger.Warning("Failed to flush DNS cache: %v", err)
	}
}
