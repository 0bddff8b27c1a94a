package robots_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/mapthenet/internal/fetch"
	"github.com/jonesrussell/mapthenet/internal/robots"
)

const testCacheTTL = time.Hour

func newTestChecker() *robots.Checker {
	client := fetch.New(fetch.Config{UserAgent: "TestBot/1.0"})

	return robots.New(client, "TestBot/1.0", true, testCacheTTL)
}

func TestIsAllowed_LongestMatchWins(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte("User-agent: *\nDisallow: /docs/\nAllow: /docs/public/\n"))
	}))
	defer server.Close()

	checker := newTestChecker()

	// /docs/ is disallowed, but the longer, more specific
	// /docs/public/ allow rule wins over the shorter disallow.
	allowed, err := checker.IsAllowed(context.Background(), server.URL+"/docs/public/page")
	require.NoError(t, err)
	require.True(t, allowed, "longer Allow rule should win over shorter Disallow")

	allowed, err = checker.IsAllowed(context.Background(), server.URL+"/docs/private")
	require.NoError(t, err)
	require.False(t, allowed, "shorter Disallow with no matching Allow should still deny")
}

func TestIsAllowed_TieGoesToAllow(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte("User-agent: *\nDisallow: /path\nAllow: /path\n"))
	}))
	defer server.Close()

	checker := newTestChecker()

	allowed, err := checker.IsAllowed(context.Background(), server.URL+"/path")
	require.NoError(t, err)
	require.True(t, allowed, "equal-length Allow/Disallow rules should favor Allow")
}

func TestIsAllowed_NoRulesMeansAllowed(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte("User-agent: *\n"))
	}))
	defer server.Close()

	checker := newTestChecker()

	allowed, err := checker.IsAllowed(context.Background(), server.URL+"/anything")
	require.NoError(t, err)
	require.True(t, allowed)
}

func TestIsAllowed_Missing404DegradesToAllowAll(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	checker := newTestChecker()

	allowed, err := checker.IsAllowed(context.Background(), server.URL+"/anything")
	require.NoError(t, err)
	require.True(t, allowed)
}

func TestIsAllowed_FetchFailureDegradesToAllowAll(t *testing.T) {
	t.Parallel()

	checker := newTestChecker()

	allowed, err := checker.IsAllowed(context.Background(), "http://127.0.0.1:1/unreachable")
	require.NoError(t, err)
	require.True(t, allowed)
}

func TestIsAllowed_Disabled(t *testing.T) {
	t.Parallel()

	client := fetch.New(fetch.Config{UserAgent: "TestBot/1.0"})
	checker := robots.New(client, "TestBot/1.0", false, testCacheTTL)

	allowed, err := checker.IsAllowed(context.Background(), "https://example.test/private/")
	require.NoError(t, err)
	require.True(t, allowed)
}

func TestIsAllowed_CachesPerHost(t *testing.T) {
	t.Parallel()

	var requests atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		requests.Add(1)
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte("User-agent: *\nAllow: /\n"))
	}))
	defer server.Close()

	checker := newTestChecker()

	_, err := checker.IsAllowed(context.Background(), server.URL+"/page1")
	require.NoError(t, err)

	_, err = checker.IsAllowed(context.Background(), server.URL+"/page2")
	require.NoError(t, err)

	require.Equal(t, int32(1), requests.Load())
}

func TestCrawlDelay_Extraction(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte("User-agent: *\nCrawl-delay: 5\n"))
	}))
	defer server.Close()

	checker := newTestChecker()

	_, err := checker.IsAllowed(context.Background(), server.URL+"/page")
	require.NoError(t, err)

	host := extractTestHost(t, server.URL)
	require.Equal(t, 5*time.Second, checker.CrawlDelay(host))
}

func TestCrawlDelay_UncachedHost(t *testing.T) {
	t.Parallel()

	checker := newTestChecker()

	require.Zero(t, checker.CrawlDelay("uncached.example.test"))
}

func extractTestHost(t *testing.T, serverURL string) string {
	t.Helper()

	const schemePrefix = "http://"
	require.True(t, len(serverURL) > len(schemePrefix))

	return serverURL[len(schemePrefix):]
}
