package probe

import (
	"context"
	"net"
	"time"

	"github.com/miekg/dns"

	"github.com/RyanH-sudo/NewToolKit-sub004/internal/logging"
)

const (
	defaultResolvConf = "/etc/resolv.conf"
	ptrTimeout        = 2 * time.Second
	fallbackDNSServer = "8.8.8.8:53"
)

// Resolver performs reverse (PTR) lookups to label discovered nodes with
// hostnames. Lookup failures are not errors; unnamed nodes keep their IP
// as label.
type Resolver struct {
	servers []string
	logger  *logging.Logger
	client  *dns.Client
}

// NewResolver builds a resolver using the system resolv.conf servers,
// falling back to a public resolver when none can be read.
func NewResolver() *Resolver {
	r := &Resolver{
		logger: logging.Default().WithComponent("resolver"),
		client: &dns.Client{Timeout: ptrTimeout},
	}

	if conf, err := dns.ClientConfigFromFile(defaultResolvConf); err == nil && len(conf.Servers) > 0 {
		for _, s := range conf.Servers {
			r.servers = append(r.servers, net.JoinHostPort(s, conf.Port))
		}
	} else {
		r.servers = []string{fallbackDNSServer}
	}
	return r
}

// ReverseLookup returns the PTR name for an IP, or "" when the address has
// no reverse record or the lookup fails.
func (r *Resolver) ReverseLookup(ctx context.Context, ip string) string {
	arpa, err := dns.ReverseAddr(ip)
	if err != nil {
		return ""
	}

	msg := new(dns.Msg)
	msg.SetQuestion(arpa, dns.TypePTR)
	msg.RecursionDesired = true

	for _, server := range r.servers {
		reply, _, err := r.client.ExchangeContext(ctx, msg, server)
		if err != nil {
			r.logger.Debug("PTR lookup failed", "ip", ip, "server", server, "error", err)
			continue
		}
		for _, rr := range reply.Answer {
			if ptr, ok := rr.(*dns.PTR); ok {
				name := ptr.Ptr
				if len(name) > 0 && name[len(name)-1] == '.' {
					name = name[:len(name)-1]
				}
				return name
			}
		}
	}
	return ""
}
