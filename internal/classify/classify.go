// Package classify labels a (source_domain, target_url) pair as a
// link, subdomain, or redirect relationship.
package classify

import (
	"context"
	"strings"

	"golang.org/x/net/publicsuffix"

	"github.com/jonesrussell/mapthenet/internal/canonical"
	"github.com/jonesrussell/mapthenet/internal/domain"
	"github.com/jonesrussell/mapthenet/internal/fetch"
)

// Edge is one relationship edge to be upserted by the domain repository.
type Edge struct {
	TargetDomain string
	Label        string
}

// Classifier issues a best-effort HEAD redirect probe to distinguish
// redirects from plain links.
type Classifier struct {
	client *fetch.Client
}

// New builds a Classifier backed by the shared fetch client.
func New(client *fetch.Client) *Classifier {
	return &Classifier{client: client}
}

// Classify resolves the target domain from href and returns the nominal
// edge plus, when the HEAD probe finds a genuine cross-host redirect,
// an additional redirect edge to the final host. The nominal edge is
// always emitted even if a redirect is also found, preserving the
// source's original (if ambiguous) write-both-edges behavior.
func (c *Classifier) Classify(ctx context.Context, sourceDomain, href, linkText string) ([]Edge, error) {
	if !probeable(href) {
		hostSource := href
		if addr, ok := strings.CutPrefix(strings.ToLower(href), "mailto:"); ok {
			// mailto:user@host carries its domain after the last '@'.
			if at := strings.LastIndex(addr, "@"); at >= 0 {
				hostSource = "mailto://" + addr[at+1:]
			}
		}

		targetDomain, err := canonical.ExtractHost(hostSource)
		if err != nil {
			return nil, err
		}

		return []Edge{{TargetDomain: targetDomain, Label: labelFor(sourceDomain, targetDomain)}}, nil
	}

	targetDomain, err := canonical.ExtractHost(href)
	if err != nil {
		return nil, err
	}

	label := labelFor(sourceDomain, targetDomain)
	if label == domain.RelationshipSubdomain {
		return []Edge{{TargetDomain: targetDomain, Label: label}}, nil
	}

	edges := []Edge{{TargetDomain: targetDomain, Label: domain.RelationshipLink}}

	head, err := c.client.Head(ctx, href)
	if err != nil {
		// HEAD probe is best-effort; any error leaves only the nominal edge.
		return edges, nil //nolint:nilerr
	}

	finalHost, err := canonical.ExtractHost(head.FinalURL)
	if err != nil {
		return edges, nil //nolint:nilerr
	}

	// Head follows redirects, so a final host other than the link's own
	// host means the link redirected across hosts.
	if finalHost != targetDomain {
		edges = append(edges, Edge{TargetDomain: finalHost, Label: domain.RelationshipRedirect})
	}

	return edges, nil
}

// labelFor applies the subdomain rule: same eTLD+1, source has no
// subdomain label while target does.
func labelFor(sourceDomain, targetDomain string) string {
	sourceApex, errS := publicsuffix.EffectiveTLDPlusOne(sourceDomain)
	targetApex, errT := publicsuffix.EffectiveTLDPlusOne(targetDomain)

	if errS == nil && errT == nil && sourceApex == targetApex {
		if sourceDomain == sourceApex && targetDomain != targetApex {
			return domain.RelationshipSubdomain
		}
	}

	return domain.RelationshipLink
}

func probeable(href string) bool {
	lower := strings.ToLower(href)
	if strings.HasPrefix(lower, "#") || strings.HasPrefix(lower, "mailto:") {
		return false
	}

	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}
