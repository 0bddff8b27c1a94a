package classify_test

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/mapthenet/internal/classify"
	"github.com/jonesrussell/mapthenet/internal/domain"
	"github.com/jonesrussell/mapthenet/internal/fetch"
)

func TestClassify_Subdomain(t *testing.T) {
	t.Parallel()

	c := classify.New(fetch.New(fetch.Config{}))

	edges, err := c.Classify(context.Background(), "example.com", "https://blog.example.com/post", "blog post")
	require.NoError(t, err)
	require.Len(t, edges, 1)
	require.Equal(t, "blog.example.com", edges[0].TargetDomain)
	require.Equal(t, domain.RelationshipSubdomain, edges[0].Label)
}

func TestClassify_MailtoSkipsProbe(t *testing.T) {
	t.Parallel()

	c := classify.New(fetch.New(fetch.Config{}))

	edges, err := c.Classify(context.Background(), "example.com", "mailto:a@example.com", "email us")
	require.NoError(t, err)
	require.Len(t, edges, 1)
	require.Equal(t, "example.com", edges[0].TargetDomain)
}

func TestClassify_DetectsCrossHostRedirect(t *testing.T) {
	t.Parallel()

	// httptest.NewServer always binds 127.0.0.1, so two default
	// servers would collapse to the same ExtractHost value once the
	// port is stripped. Bind the redirect target to a distinct
	// loopback address to get a genuinely different host.
	listener, err := net.Listen("tcp", "127.0.0.2:0")
	require.NoError(t, err)

	final := httptest.NewUnstartedServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	final.Listener.Close()
	final.Listener = listener
	final.Start()
	defer final.Close()

	finalHost, hostErr := urlHost(final.URL)
	require.NoError(t, hostErr)

	redirecting := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, final.URL, http.StatusMovedPermanently)
	}))
	defer redirecting.Close()

	redirectingHost, err := urlHost(redirecting.URL)
	require.NoError(t, err)

	c := classify.New(fetch.New(fetch.Config{}))

	edges, err := c.Classify(context.Background(), "source.test", redirecting.URL, "external link")
	require.NoError(t, err)
	require.Len(t, edges, 2)
	require.Equal(t, redirectingHost, edges[0].TargetDomain)
	require.Equal(t, domain.RelationshipLink, edges[0].Label)
	require.Equal(t, finalHost, edges[1].TargetDomain)
	require.Equal(t, domain.RelationshipRedirect, edges[1].Label)
}

func urlHost(rawURL string) (string, error) {
	req, err := http.NewRequest(http.MethodGet, rawURL, http.NoBody)
	if err != nil {
		return "", err
	}

	return req.URL.Hostname(), nil
}
