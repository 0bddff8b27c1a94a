// Package orchestrator drives the ten-step per-URL crawl pipeline: it
// takes one leased queue entry, enforces depth/cap/robots policy,
// fetches and parses the page, enriches the domain, fans discovered
// links back into the queue, and records the outcome.
package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/jonesrussell/mapthenet/internal/canonical"
	"github.com/jonesrussell/mapthenet/internal/crawlcontext"
	"github.com/jonesrussell/mapthenet/internal/domain"
	"github.com/jonesrussell/mapthenet/internal/domainrepo"
	"github.com/jonesrussell/mapthenet/internal/extract"
	"github.com/jonesrussell/mapthenet/internal/fetch"
	"github.com/jonesrussell/mapthenet/internal/queuestore"
)

// internalLinkFraction reserves one quarter of a page's link budget for
// same-host links; the remainder goes to cross-host links.
const internalLinkFraction = 4

// Orchestrator runs the per-URL pipeline against a shared crawl context.
type Orchestrator struct {
	ctx *crawlcontext.Context

	// DisableDiscovery skips step 8 (classify/upsert/enqueue outbound
	// links) while still fetching, extracting, and enriching the page
	// itself, used by parallel-collector's --no-discoveries flag.
	DisableDiscovery bool
}

// New builds an Orchestrator over cc.
func New(cc *crawlcontext.Context) *Orchestrator {
	return &Orchestrator{ctx: cc}
}

// Process runs the ten-step pipeline for one leased entry. It never
// returns an error for policy rejections (depth, cap, robots,
// already-queued); those are recorded as a Skip. Any error surfaced
// from fetch, extract, enrichment persistence, or queue writes is
// recorded as a Complete(ok=false) and returned to the caller so the
// worker pool can log it.
func (o *Orchestrator) Process(ctx context.Context, entry *domain.QueueEntry) error {
	cfg := o.ctx.Config
	start := time.Now()

	// Step 1: depth check.
	if entry.Depth > cfg.MaxDepth {
		return o.skip(ctx, entry, "max depth exceeded")
	}

	// Step 2: duplicate-in-flight check against the canonical URL,
	// excluding this entry's own lease.
	activelyQueued, err := o.ctx.Queue.IsActivelyQueued(ctx, entry.URL, &entry.ID)
	if err != nil {
		return o.fail(ctx, entry, start, 0, 0, fmt.Errorf("orchestrator: check active queue: %w", err))
	}
	if activelyQueued {
		return o.skip(ctx, entry, "already actively queued")
	}

	// Step 3: per-domain processed cap.
	processedCount, err := o.ctx.Domains.CountProcessedForDomain(ctx, entry.DomainName)
	if err != nil {
		return o.fail(ctx, entry, start, 0, 0, fmt.Errorf("orchestrator: count processed: %w", err))
	}
	if processedCount >= cfg.MaxURLsPerDomain {
		return o.skip(ctx, entry, "domain url cap reached")
	}

	baseURL := "https://" + entry.DomainName + "/"

	// Step 4: robots policy, checked against the domain root. A denial
	// skips link discovery entirely but still records a minimal domain
	// stub so the domain is known to exist.
	allowed, err := o.ctx.Robots.IsAllowed(ctx, baseURL)
	if err != nil {
		o.ctx.Logger.Warn("robots check failed, defaulting to allowed", "domain", entry.DomainName, "error", err)
		allowed = true
	}
	if !allowed {
		if _, upsertErr := o.ctx.Domains.UpsertDomain(ctx, domainStub(entry.DomainName)); upsertErr != nil {
			return o.fail(ctx, entry, start, 0, 0, fmt.Errorf("orchestrator: upsert stub domain: %w", upsertErr))
		}

		return o.complete(ctx, entry, start, 0, 0, nil)
	}

	// Step 5: skip per-domain enrichment and the base-page fetch when
	// the domain's core fields are already populated.
	complete, err := o.ctx.Domains.IsDomainDataComplete(ctx, entry.DomainName)
	if err != nil {
		return o.fail(ctx, entry, start, 0, 0, fmt.Errorf("orchestrator: check domain complete: %w", err))
	}

	domainID, basePage, err := o.ensureDomain(ctx, entry.DomainName, complete)
	if err != nil {
		return o.fail(ctx, entry, start, 0, 0, err)
	}

	// Step 6: fetch the entry's own URL, reusing ensureDomain's fetch
	// of the domain root if the entry's URL is that same root.
	pageURL := entry.URL

	var page *extract.Page
	if basePage != nil && pageURL == baseURL {
		page = basePage
	} else {
		fetchResult, fetchErr := o.ctx.Fetcher.Get(ctx, pageURL, fetchNoConditional())
		if fetchErr != nil {
			return o.fail(ctx, entry, start, 0, 0, fmt.Errorf("orchestrator: fetch %s: %w", pageURL, fetchErr))
		}
		if statusErr := fetch.CheckStatus(pageURL, fetchResult); statusErr != nil {
			return o.fail(ctx, entry, start, 0, 0, fmt.Errorf("orchestrator: fetch %s: %w", pageURL, statusErr))
		}

		page, err = extract.Extract(pageURL, fetchResult.Body)
		if err != nil {
			return o.fail(ctx, entry, start, 0, 0, fmt.Errorf("orchestrator: extract %s: %w", pageURL, err))
		}
	}

	// Step 7: partition discovered links into internal (same host) and
	// external (cross host) pools, each independently budgeted and
	// deduplicated, after C2 filtering.
	internalBudget := cfg.MaxLinksPerPage / internalLinkFraction
	if internalBudget < 1 {
		internalBudget = 1
	}
	externalBudget := cfg.MaxLinksPerPage - internalBudget

	internalLinks, externalLinks := partitionLinks(page.Links, entry.DomainName, internalBudget, externalBudget)

	// Step 8: classify and upsert every kept link as a relationship,
	// enqueuing its canonical target URL at the next depth.
	discoveredCount := 0
	if !o.DisableDiscovery {
		for _, link := range append(internalLinks, externalLinks...) {
			if err := o.discoverLink(ctx, entry, domainID, link); err != nil {
				o.ctx.Logger.Warn("discover link failed", "url", link.Href, "error", err)

				continue
			}

			discoveredCount++
		}
	}

	// Step 9: record terminal history and append the collection log.
	linksFound := len(page.Links)
	if err := o.ctx.Domains.RecordURLProcessing(ctx, pageURL, entry.DomainName, domain.QueueStatusCompleted, linksFound); err != nil {
		return o.fail(ctx, entry, start, linksFound, discoveredCount, fmt.Errorf("orchestrator: record url processing: %w", err))
	}

	if err := o.complete(ctx, entry, start, linksFound, discoveredCount, nil); err != nil {
		return err
	}

	// Step 10: courteous delay, honoring cancellation.
	return sleepCancelable(ctx, cfg.RequestDelay)
}

// ensureDomain upserts a minimal stub, or, when the domain's data is
// not yet complete, fetches the domain root and runs enrichment before
// upserting the full record. It returns the domain's id and, when it
// fetched the root page itself, the extracted page so step 6 can
// reuse it instead of fetching the same URL again.
func (o *Orchestrator) ensureDomain(ctx context.Context, domainName string, dataComplete bool) (string, *extract.Page, error) {
	if dataComplete {
		id, err := o.ctx.Domains.UpsertDomain(ctx, domainStub(domainName))

		return id, nil, err
	}

	baseURL := "https://" + domainName + "/"

	result, err := o.ctx.Fetcher.Get(ctx, baseURL, fetchNoConditional())
	if err == nil {
		err = fetch.CheckStatus(baseURL, result)
	}
	if err != nil {
		id, upsertErr := o.ctx.Domains.UpsertDomain(ctx, domainStub(domainName))
		if upsertErr != nil {
			return "", nil, fmt.Errorf("fetch base page: %w (and stub upsert failed: %v)", err, upsertErr)
		}

		return id, nil, nil
	}

	page, err := extract.Extract(baseURL, result.Body)
	if err != nil {
		return "", nil, fmt.Errorf("extract base page: %w", err)
	}

	params := domainStub(domainName)
	if page.Title != "" {
		params.Title = &page.Title
	}
	if page.Description != "" {
		params.Description = &page.Description
	}
	if page.FaviconURL != "" {
		params.FaviconURL = &page.FaviconURL
	}

	id, err := o.ctx.Domains.UpsertDomain(ctx, params)
	if err != nil {
		return "", nil, fmt.Errorf("upsert domain: %w", err)
	}

	d := &domain.Domain{}
	o.ctx.Enrichment.Enrich(ctx, domainName, d)

	if err := o.ctx.Domains.UpdateEnrichment(ctx, id, d); err != nil {
		return "", nil, fmt.Errorf("update enrichment: %w", err)
	}

	return id, page, nil
}

func (o *Orchestrator) discoverLink(ctx context.Context, entry *domain.QueueEntry, sourceDomainID string, link extract.Link) error {
	edges, err := o.ctx.Classifier.Classify(ctx, entry.DomainName, link.Href, link.Text)
	if err != nil {
		return fmt.Errorf("classify %s: %w", link.Href, err)
	}

	for _, edge := range edges {
		targetID, err := o.ctx.Domains.UpsertDomain(ctx, domainStub(edge.TargetDomain))
		if err != nil {
			return fmt.Errorf("upsert target domain %s: %w", edge.TargetDomain, err)
		}

		linkText := link.Text
		href := link.Href

		if err := o.ctx.Domains.UpsertRelationship(ctx, upsertRelationshipParams(sourceDomainID, targetID, edge.Label, linkText, href)); err != nil {
			return fmt.Errorf("upsert relationship %s -> %s: %w", entry.DomainName, edge.TargetDomain, err)
		}
	}

	canonURL, err := canonical.NormalizeURL(link.Href)
	if err != nil {
		return fmt.Errorf("normalize %s: %w", link.Href, err)
	}

	return o.ctx.Queue.Enqueue(ctx, enqueueParams(canonURL, edges[0].TargetDomain, &sourceDomainID, entry.Depth+1))
}

// partitionLinks filters raw links through C2's Reject rules, then
// splits survivors into an internal (same host) pool and an external
// (cross host) pool, deduplicating internal links by canonical URL and
// external links by target host, each capped at its own budget.
func partitionLinks(links []extract.Link, sourceDomain string, internalBudget, externalBudget int) (internal, external []extract.Link) {
	seenInternal := make(map[string]struct{})
	seenExternalHosts := make(map[string]struct{})

	for _, link := range links {
		if _, reject := canonical.Reject(link.Href, link.Text); reject {
			continue
		}

		host, err := canonical.ExtractHost(link.Href)
		if err != nil || !canonical.IsValidDomain(host) {
			continue
		}

		canonURL, err := canonical.NormalizeURL(link.Href)
		if err != nil {
			continue
		}

		if host == sourceDomain {
			if len(internal) >= internalBudget {
				continue
			}
			if _, seen := seenInternal[canonURL]; seen {
				continue
			}
			seenInternal[canonURL] = struct{}{}
			internal = append(internal, link)

			continue
		}

		if len(external) >= externalBudget {
			continue
		}
		if _, seen := seenExternalHosts[host]; seen {
			continue
		}
		seenExternalHosts[host] = struct{}{}
		external = append(external, link)
	}

	return internal, external
}

func (o *Orchestrator) skip(ctx context.Context, entry *domain.QueueEntry, reason string) error {
	if err := o.ctx.Queue.Skip(ctx, entry.ID, reason); err != nil {
		return fmt.Errorf("orchestrator: skip %s: %w", entry.URL, err)
	}
	entry.Status = domain.QueueStatusSkipped

	return nil
}

func (o *Orchestrator) complete(ctx context.Context, entry *domain.QueueEntry, start time.Time, linksFound, discoveredCount int, procErr error) error {
	ok := procErr == nil

	var errMsg *string
	if procErr != nil {
		msg := procErr.Error()
		errMsg = &msg
	}

	if err := o.ctx.Queue.Complete(ctx, entry.ID, ok, errMsg); err != nil {
		return fmt.Errorf("orchestrator: complete %s: %w", entry.URL, err)
	}

	status := domain.QueueStatusCompleted
	if !ok {
		status = domain.QueueStatusFailed
	}

	log := &domain.CollectionLog{
		DomainName:      entry.DomainName,
		URL:             entry.URL,
		Status:          status,
		Error:           errMsg,
		ProcessingTime:  time.Since(start),
		LinksFound:      linksFound,
		DiscoveredCount: discoveredCount,
		Agent:           o.ctx.AgentName,
	}

	if err := o.ctx.Domains.AppendCollectionLog(ctx, log); err != nil {
		return fmt.Errorf("orchestrator: append collection log %s: %w", entry.URL, err)
	}

	return nil
}

func (o *Orchestrator) fail(ctx context.Context, entry *domain.QueueEntry, start time.Time, linksFound, discoveredCount int, procErr error) error {
	if err := o.complete(ctx, entry, start, linksFound, discoveredCount, procErr); err != nil {
		return err
	}

	return procErr
}

func domainStub(domainName string) domainrepo.UpsertDomainParams {
	return domainrepo.UpsertDomainParams{DomainName: domainName}
}

func enqueueParams(canonURL, domainName string, sourceDomainID *string, depth int) queuestore.EnqueueParams {
	return queuestore.EnqueueParams{
		URL:            canonURL,
		DomainName:     domainName,
		SourceDomainID: sourceDomainID,
		Depth:          depth,
		Priority:       1,
	}
}

func upsertRelationshipParams(sourceID, targetID, label string, linkText, href string) domainrepo.UpsertRelationshipParams {
	return domainrepo.UpsertRelationshipParams{
		SourceDomainID: sourceID,
		TargetDomainID: targetID,
		Label:          label,
		LinkText:       &linkText,
		Href:           &href,
	}
}

func fetchNoConditional() fetch.ConditionalHeaders {
	return fetch.ConditionalHeaders{}
}

func sleepCancelable(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
