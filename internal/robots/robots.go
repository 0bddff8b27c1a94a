// Package robots evaluates robots.txt policy with per-host caching.
// Fetch failures and disabled policy both degrade to allow-all: robots
// errors never turn into denials.
package robots

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/temoto/robotstxt"

	"github.com/jonesrussell/mapthenet/internal/fetch"
)

const (
	defaultCacheTTL = 24 * time.Hour
	robotsTxtPath   = "/robots.txt"
)

// Checker parses and caches robots.txt per host.
type Checker struct {
	client    *fetch.Client
	userAgent string
	enabled   bool
	cacheTTL  time.Duration

	mu    sync.RWMutex
	cache map[string]*cacheEntry
}

type cacheEntry struct {
	data      *robotstxt.RobotsData
	fetchedAt time.Time
	allowAll  bool
}

// New creates a Checker. When enabled is false, IsAllowed always
// returns true without ever fetching robots.txt.
func New(client *fetch.Client, userAgent string, enabled bool, cacheTTL time.Duration) *Checker {
	if cacheTTL == 0 {
		cacheTTL = defaultCacheTTL
	}

	return &Checker{
		client:    client,
		userAgent: userAgent,
		enabled:   enabled,
		cacheTTL:  cacheTTL,
		cache:     make(map[string]*cacheEntry),
	}
}

// IsAllowed reports whether rawURL may be fetched under the host's
// robots.txt. The winning rule is the longest prefix match; on length
// ties, allow wins over disallow. No match means allowed.
func (c *Checker) IsAllowed(ctx context.Context, rawURL string) (bool, error) {
	if !c.enabled {
		return true, nil
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return false, fmt.Errorf("robots: parse url: %w", err)
	}

	host := strings.ToLower(parsed.Host)
	if host == "" {
		return false, fmt.Errorf("robots: empty host in url %q", rawURL)
	}

	entry, err := c.getOrFetch(ctx, host, parsed.Scheme)
	if err != nil {
		return false, err
	}

	if entry.allowAll {
		return true, nil
	}

	return entry.data.TestAgent(parsed.Path, c.userAgent), nil
}

// CrawlDelay returns the crawl-delay directive for host, or 0.
func (c *Checker) CrawlDelay(host string) time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.cache[strings.ToLower(host)]
	if !ok || entry.allowAll || entry.data == nil {
		return 0
	}

	group := entry.data.FindGroup(c.userAgent)
	if group == nil {
		return 0
	}

	return group.CrawlDelay
}

func (c *Checker) getOrFetch(ctx context.Context, host, scheme string) (*cacheEntry, error) {
	if entry, ok := c.cached(host); ok {
		return entry, nil
	}

	return c.fetchAndCache(ctx, host, scheme)
}

func (c *Checker) cached(host string) (*cacheEntry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.cache[host]
	if !ok || time.Since(entry.fetchedAt) > c.cacheTTL {
		return nil, false
	}

	return entry, true
}

func (c *Checker) fetchAndCache(ctx context.Context, host, scheme string) (*cacheEntry, error) {
	if scheme == "" {
		scheme = "https"
	}

	robotsURL := scheme + "://" + host + robotsTxtPath

	result, err := c.client.Get(ctx, robotsURL, fetch.ConditionalHeaders{})
	if err != nil {
		// Fetch failure degrades to allow-all; robots errors never deny.
		return c.store(host, &cacheEntry{fetchedAt: time.Now(), allowAll: true}), nil
	}

	entry := c.parse(result.StatusCode, result.Body)

	return c.store(host, entry), nil
}

func (c *Checker) parse(statusCode int, body []byte) *cacheEntry {
	if statusCode < 200 || statusCode >= 300 {
		return &cacheEntry{fetchedAt: time.Now(), allowAll: true}
	}

	data, err := robotstxt.FromBytes(body)
	if err != nil {
		return &cacheEntry{fetchedAt: time.Now(), allowAll: true}
	}

	return &cacheEntry{data: data, fetchedAt: time.Now()}
}

func (c *Checker) store(host string, entry *cacheEntry) *cacheEntry {
	c.mu.Lock()
	c.cache[host] = entry
	c.mu.Unlock()

	return entry
}
