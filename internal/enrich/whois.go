package enrich

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"
	"time"

	"golang.org/x/net/publicsuffix"

	"github.com/jonesrussell/mapthenet/internal/domain"
)

// WHOIS queries are a raw line-based TCP/43 protocol with no single
// ubiquitous idiomatic Go client in the ecosystem; this adapter talks
// to the protocol directly. See DESIGN.md for why no third-party
// dependency was available to ground this on.
const (
	whoisPort        = "43"
	maxWHOISReadBytes = 64 * 1024 // defends against slow-loris WHOIS servers
)

// WHOISAdapter looks up registration data for the main domain (eTLD+1)
// of a host, reusing the result across subdomains of the same apex.
type WHOISAdapter struct {
	server string // e.g. "whois.iana.org"; empty means pick one server from the apex's TLD via defaultWHOISServer

	mu    sync.Mutex
	cache map[string]*Record
}

// Record is the subset of WHOIS fields the domain repository stores.
type Record struct {
	CreatedDate time.Time
	ExpiryDate  time.Time
	Registrar   string
	Nameservers []string
}

// NewWHOISAdapter builds an adapter. server overrides the WHOIS server
// to query; when empty, defaultWHOISServer picks a single server from
// the apex's TLD and "whois.iana.org" style referrals are not followed.
func NewWHOISAdapter(server string) *WHOISAdapter {
	return &WHOISAdapter{
		server: server,
		cache:  make(map[string]*Record),
	}
}

// Lookup queries WHOIS for the eTLD+1 of host and writes the result
// onto d. Subdomain hosts reuse the cached main-domain record.
func (a *WHOISAdapter) Lookup(ctx context.Context, host string, d *domain.Domain) error {
	apex, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		apex = host
	}

	record, err := a.lookupCached(ctx, apex)
	if err != nil {
		return err
	}

	if !record.CreatedDate.IsZero() {
		d.CreatedDate = &record.CreatedDate
	}
	if !record.ExpiryDate.IsZero() {
		d.ExpiryDate = &record.ExpiryDate
	}
	if record.Registrar != "" {
		d.Registrar = &record.Registrar
	}
	if len(record.Nameservers) > 0 {
		d.Nameservers = record.Nameservers
	}

	return nil
}

func (a *WHOISAdapter) lookupCached(ctx context.Context, apex string) (*Record, error) {
	a.mu.Lock()
	cached, ok := a.cache[apex]
	a.mu.Unlock()

	if ok {
		return cached, nil
	}

	record, err := a.query(ctx, apex)
	if err != nil {
		return nil, err
	}

	a.mu.Lock()
	a.cache[apex] = record
	a.mu.Unlock()

	return record, nil
}

func (a *WHOISAdapter) query(ctx context.Context, apex string) (*Record, error) {
	server := a.server
	if server == "" {
		server = defaultWHOISServer(apex)
	}

	dialer := net.Dialer{Timeout: dialTimeout}

	conn, err := dialer.DialContext(ctx, "tcp", net.JoinHostPort(server, whoisPort))
	if err != nil {
		return nil, fmt.Errorf("whois: dial %s: %w", server, err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	if _, err := io.WriteString(conn, apex+"\r\n"); err != nil {
		return nil, fmt.Errorf("whois: write query: %w", err)
	}

	limited := io.LimitReader(conn, maxWHOISReadBytes)

	body, err := io.ReadAll(limited)
	if err != nil {
		return nil, fmt.Errorf("whois: read response: %w", err)
	}

	return parseWHOIS(string(body)), nil
}

// defaultWHOISServer maps a handful of common TLDs to their
// authoritative WHOIS server. Unknown TLDs fall back to IANA's
// referral server, which returns a "refer:" pointer rather than data;
// that degraded response simply yields an empty Record.
func defaultWHOISServer(apex string) string {
	switch {
	case strings.HasSuffix(apex, ".com"), strings.HasSuffix(apex, ".net"):
		return "whois.verisign-grs.com"
	case strings.HasSuffix(apex, ".org"):
		return "whois.pir.org"
	case strings.HasSuffix(apex, ".io"):
		return "whois.nic.io"
	default:
		return "whois.iana.org"
	}
}

// parseWHOIS extracts the handful of fields the data model needs from
// free-form WHOIS text, which has no universal schema across registrars.
func parseWHOIS(body string) *Record {
	record := &Record{}

	scanner := bufio.NewScanner(strings.NewReader(body))
	for scanner.Scan() {
		line := scanner.Text()
		key, value, ok := splitWHOISLine(line)
		if !ok {
			continue
		}

		switch strings.ToLower(key) {
		case "creation date", "created", "registered on":
			if t, err := parseWHOISDate(value); err == nil {
				record.CreatedDate = t
			}
		case "registry expiry date", "expiry date", "expiration date", "registrar registration expiration date":
			if t, err := parseWHOISDate(value); err == nil {
				record.ExpiryDate = t
			}
		case "registrar":
			record.Registrar = value
		case "name server", "nserver":
			record.Nameservers = append(record.Nameservers, strings.ToLower(value))
		}
	}

	return record
}

func splitWHOISLine(line string) (key, value string, ok bool) {
	idx := strings.Index(line, ":")
	if idx < 0 {
		return "", "", false
	}

	key = strings.TrimSpace(line[:idx])
	value = strings.TrimSpace(line[idx+1:])
	if key == "" || value == "" {
		return "", "", false
	}

	return key, value, true
}

func parseWHOISDate(value string) (time.Time, error) {
	layouts := []string{
		time.RFC3339,
		"2006-01-02T15:04:05Z",
		"2006-01-02",
		"02-Jan-2006",
	}

	for _, layout := range layouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, nil
		}
	}

	return time.Time{}, fmt.Errorf("whois: unrecognized date format %q", value)
}
