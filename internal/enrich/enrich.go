// Package enrich collects optional, independently fallible per-domain
// metadata: WHOIS, DNS, ASN, TLS, and GeoIP. No adapter failure halts
// the crawl; a failed adapter simply leaves its fields unset.
package enrich

import (
	"context"
	"time"

	"github.com/jonesrussell/mapthenet/internal/domain"
	"github.com/jonesrussell/mapthenet/internal/fetch"
)

// Toggles gates which adapters run, mirroring the environment-variable
// enrichment toggles in the external interface.
type Toggles struct {
	WHOIS  bool
	DNS    bool
	ASN    bool
	TLS    bool
	GeoIP  bool
}

// Adapters bundles the five enrichment collaborators behind one entry
// point used by the orchestrator.
type Adapters struct {
	WHOIS *WHOISAdapter
	DNS   *DNSAdapter
	ASN   *ASNAdapter
	TLS   *TLSAdapter
	GeoIP *GeoIPAdapter

	Toggles Toggles
	Logger  Logger
}

// Logger is the minimal logging surface enrichment needs; satisfied by
// logger.Interface.
type Logger interface {
	Warn(msg string, fields ...any)
}

// Enrich runs every enabled adapter against host and writes whatever
// fields it can onto d. Each adapter's failure is logged at warn and
// otherwise ignored.
func (a *Adapters) Enrich(ctx context.Context, host string, d *domain.Domain) {
	var ip string

	if a.Toggles.WHOIS && a.WHOIS != nil {
		if err := a.WHOIS.Lookup(ctx, host, d); err != nil {
			a.logWarn("whois enrichment failed", host, err)
		}
	}

	if a.Toggles.DNS && a.DNS != nil {
		resolvedIP, err := a.DNS.Lookup(ctx, host, d)
		if err != nil {
			a.logWarn("dns enrichment failed", host, err)
		} else {
			ip = resolvedIP
		}
	}

	if a.Toggles.ASN && a.ASN != nil && ip != "" {
		if err := a.ASN.Lookup(ctx, ip, d); err != nil {
			a.logWarn("asn enrichment failed", host, err)
		}
	}

	if a.Toggles.TLS && a.TLS != nil {
		if err := a.TLS.Inspect(ctx, host, d); err != nil {
			a.logWarn("tls enrichment failed", host, err)
		}
	}

	if a.Toggles.GeoIP && a.GeoIP != nil && ip != "" {
		if err := a.GeoIP.Lookup(ctx, ip, d); err != nil {
			a.logWarn("geoip enrichment failed", host, err)
		}
	}

	if d.IPAddress == nil && ip != "" {
		d.IPAddress = &ip
	}
}

func (a *Adapters) logWarn(msg, host string, err error) {
	if a.Logger == nil {
		return
	}
	a.Logger.Warn(msg, "host", host, "error", err)
}

// dialTimeout bounds every enrichment network operation so it stays
// well inside the 300s per-item budget even when several adapters run.
const dialTimeout = 10 * time.Second

// sharedClient is the HTTP transport ASN and GeoIP fallback adapters
// use for their external lookups, reusing C4's fetch client rather
// than constructing a second one.
type sharedClient = fetch.Client
