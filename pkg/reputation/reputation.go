// Package reputation answers address-reputation questions: reverse-DNS
// hostnames and DNS blocklist membership.
//
// Lookups are asynchronous from the caller's point of view; the punishment
// engine fires them and acts on the answer whenever it arrives. Queries are
// retried with exponential backoff and deduplicated per address, so a burst
// of connections from one host costs one upstream query.
package reputation

import (
	"context"
	"errors"
	"fmt"
	"net/netip"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/miekg/dns"
	"golang.org/x/sync/singleflight"
)

// ErrInvalidAddress marks an address the resolver cannot form a query for.
// Callers treat it as a soft signal (apply an advisory restriction) rather
// than a hard failure.
var ErrInvalidAddress = errors.New("reputation: invalid address")

// Resolver issues reverse-DNS and DNSBL queries.
type Resolver struct {
	client  *dns.Client
	servers []string
	zone    string // DNSBL zone, e.g. "dnsbl.dronebl.org"

	sf         singleflight.Group
	maxRetries uint64
}

// NewResolver creates a Resolver querying the given nameservers
// (host:port). With no servers it falls back to the system resolv.conf,
// then to 8.8.8.8.
func NewResolver(servers []string, dnsblZone string) *Resolver {
	if len(servers) == 0 {
		if cc, err := dns.ClientConfigFromFile("/etc/resolv.conf"); err == nil {
			for _, s := range cc.Servers {
				servers = append(servers, s+":"+cc.Port)
			}
		}
	}
	if len(servers) == 0 {
		servers = []string{"8.8.8.8:53"}
	}
	return &Resolver{
		client:     &dns.Client{Timeout: 3 * time.Second},
		servers:    servers,
		zone:       dnsblZone,
		maxRetries: 2,
	}
}

// ReverseLookup resolves the PTR hostname for ip. Returns "" with a nil
// error when the address simply has no reverse record.
func (r *Resolver) ReverseLookup(ctx context.Context, ip string) (string, error) {
	name, err := dns.ReverseAddr(ip)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrInvalidAddress, ip)
	}
	v, err, _ := r.sf.Do("ptr:"+ip, func() (any, error) {
		msg, err := r.query(ctx, name, dns.TypePTR)
		if err != nil {
			return "", err
		}
		for _, rr := range msg.Answer {
			if ptr, ok := rr.(*dns.PTR); ok {
				return strings.TrimSuffix(ptr.Ptr, "."), nil
			}
		}
		return "", nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// CheckBlocklist reports whether ip is listed in the configured DNSBL zone.
// With no zone configured every address passes.
func (r *Resolver) CheckBlocklist(ctx context.Context, ip string) (bool, error) {
	if r.zone == "" {
		return false, nil
	}
	name, err := BlocklistName(ip, r.zone)
	if err != nil {
		return false, err
	}
	v, err, _ := r.sf.Do("dnsbl:"+ip, func() (any, error) {
		msg, err := r.query(ctx, name, dns.TypeA)
		if err != nil {
			return false, err
		}
		return len(msg.Answer) > 0, nil
	})
	if err != nil {
		return false, err
	}
	return v.(bool), nil
}

// BlocklistName builds the DNSBL query name for an IPv4 address: octets
// reversed, prepended to the zone.
func BlocklistName(ip, zone string) (string, error) {
	addr, err := netip.ParseAddr(ip)
	if err != nil || !addr.Is4() {
		return "", fmt.Errorf("%w: %s", ErrInvalidAddress, ip)
	}
	o := addr.As4()
	return fmt.Sprintf("%d.%d.%d.%d.%s.", o[3], o[2], o[1], o[0], strings.TrimSuffix(zone, ".")), nil
}

// query exchanges one question against the configured servers, retrying
// transient failures with exponential backoff. NXDOMAIN is a successful
// empty answer, not an error.
func (r *Resolver) query(ctx context.Context, name string, qtype uint16) (*dns.Msg, error) {
	msg := new(dns.Msg)
	msg.SetQuestion(dns.Fqdn(name), qtype)

	var last *dns.Msg
	op := func() error {
		var err error
		for _, server := range r.servers {
			last, _, err = r.client.ExchangeContext(ctx, msg, server)
			if err == nil {
				return nil
			}
		}
		return err
	}
	bo := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), r.maxRetries), ctx)
	if err := backoff.Retry(op, bo); err != nil {
		return nil, fmt.Errorf("reputation: query %s: %w", name, err)
	}
	if last.Rcode == dns.RcodeNameError {
		last.Answer = nil
	}
	return last, nil
}
