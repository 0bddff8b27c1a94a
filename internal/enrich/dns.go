package enrich

import (
	"context"
	"fmt"

	"github.com/miekg/dns"

	domainmodel "github.com/jonesrussell/mapthenet/internal/domain"
)

// DNSAdapter resolves A and NS records for a host. A failed A lookup
// (NXDOMAIN, timeout) is returned as an error; a failed NS lookup only
// leaves the domain's nameservers unset.
type DNSAdapter struct {
	resolvers []string // e.g. "1.1.1.1:53"; tried in order
}

// NewDNSAdapter builds an adapter querying the given resolvers in order.
func NewDNSAdapter(resolvers []string) *DNSAdapter {
	if len(resolvers) == 0 {
		resolvers = []string{"1.1.1.1:53", "8.8.8.8:53"}
	}

	return &DNSAdapter{resolvers: resolvers}
}

// Lookup resolves host's A and NS records, writes the nameserver list
// onto d, and returns the first resolved IP address.
func (a *DNSAdapter) Lookup(ctx context.Context, host string, d *domainmodel.Domain) (string, error) {
	client := &dns.Client{Net: "udp"}

	ip, err := a.lookupA(ctx, client, host)
	if err != nil {
		return "", err
	}

	if nameservers, nsErr := a.lookupNS(ctx, client, host); nsErr == nil && len(nameservers) > 0 {
		d.Nameservers = nameservers
	}

	return ip, nil
}

func (a *DNSAdapter) lookupA(ctx context.Context, client *dns.Client, host string) (string, error) {
	msg := new(dns.Msg)
	msg.SetQuestion(dns.Fqdn(host), dns.TypeA)

	reply, err := a.exchange(ctx, client, msg)
	if err != nil {
		return "", err
	}

	for _, rr := range reply.Answer {
		if a, ok := rr.(*dns.A); ok {
			return a.A.String(), nil
		}
	}

	return "", fmt.Errorf("dns: no A record for %s", host)
}

func (a *DNSAdapter) lookupNS(ctx context.Context, client *dns.Client, host string) ([]string, error) {
	msg := new(dns.Msg)
	msg.SetQuestion(dns.Fqdn(host), dns.TypeNS)

	reply, err := a.exchange(ctx, client, msg)
	if err != nil {
		return nil, err
	}

	var nameservers []string
	for _, rr := range reply.Answer {
		if ns, ok := rr.(*dns.NS); ok {
			nameservers = append(nameservers, ns.Ns)
		}
	}

	return nameservers, nil
}

func (a *DNSAdapter) exchange(ctx context.Context, client *dns.Client, msg *dns.Msg) (*dns.Msg, error) {
	var lastErr error

	for _, resolver := range a.resolvers {
		reply, _, err := client.ExchangeContext(ctx, msg, resolver)
		if err != nil {
			lastErr = err
			continue
		}
		if reply.Rcode != dns.RcodeSuccess {
			lastErr = fmt.Errorf("dns: rcode %s", dns.RcodeToString[reply.Rcode])
			continue
		}

		return reply, nil
	}

	return nil, fmt.Errorf("dns: exchange failed: %w", lastErr)
}
