package enrich

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jonesrussell/mapthenet/internal/domain"
	"github.com/jonesrussell/mapthenet/internal/fetch"
)

// ASNAdapter looks up the autonomous system announcing a resolved IP.
// No dedicated ASN library exists anywhere in the example corpus, so
// this reuses the already-wired fetch.Client for the HTTP call and
// only the response parsing is bespoke.
type ASNAdapter struct {
	client   *sharedClient
	endpoint string // e.g. "https://api.iptoasn.com/v1/as/ip/%s"
}

// NewASNAdapter builds an adapter against endpoint, a %s-templated URL
// taking the IP address.
func NewASNAdapter(client *fetch.Client, endpoint string) *ASNAdapter {
	return &ASNAdapter{client: client, endpoint: endpoint}
}

type asnLookupResponse struct {
	ASNumber     int    `json:"as_number"`
	ASDescription string `json:"as_description"`
}

// Lookup queries the ASN endpoint for ip and writes the ASN token and
// description onto d.
func (a *ASNAdapter) Lookup(ctx context.Context, ip string, d *domain.Domain) error {
	if a.endpoint == "" {
		return fmt.Errorf("asn: no endpoint configured")
	}

	url := fmt.Sprintf(a.endpoint, ip)

	result, err := a.client.Get(ctx, url, fetch.ConditionalHeaders{})
	if err != nil {
		return fmt.Errorf("asn: lookup %s: %w", ip, err)
	}
	if result.StatusCode < 200 || result.StatusCode >= 300 {
		return fmt.Errorf("asn: lookup %s: status %d", ip, result.StatusCode)
	}

	var parsed asnLookupResponse
	if err := json.Unmarshal(result.Body, &parsed); err != nil {
		return fmt.Errorf("asn: decode response: %w", err)
	}

	if parsed.ASNumber == 0 {
		return fmt.Errorf("asn: empty result for %s", ip)
	}

	asn := fmt.Sprintf("AS%d", parsed.ASNumber)
	desc := strings.TrimSpace(parsed.ASDescription)

	d.ASN = &asn
	if desc != "" {
		d.ASNDesc = &desc
	}

	return nil
}
