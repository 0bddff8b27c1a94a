package fetch_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/mapthenet/internal/fetch"
)

func TestClient_Get(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "mapthenet-test", r.Header.Get("User-Agent"))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("<html></html>"))
	}))
	defer srv.Close()

	client := fetch.New(fetch.Config{UserAgent: "mapthenet-test"})

	result, err := client.Get(context.Background(), srv.URL, fetch.ConditionalHeaders{})
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, result.StatusCode)
	require.Equal(t, "<html></html>", string(result.Body))
}

func TestClient_Get_RejectsNonHTTPScheme(t *testing.T) {
	t.Parallel()

	client := fetch.New(fetch.Config{})

	_, err := client.Get(context.Background(), "ftp://example.com/file", fetch.ConditionalHeaders{})
	require.ErrorIs(t, err, fetch.ErrNonHTTPScheme)
}

func TestClient_Head_FollowsRedirects(t *testing.T) {
	t.Parallel()

	final := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer final.Close()

	redirecting := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, final.URL, http.StatusMovedPermanently)
	}))
	defer redirecting.Close()

	client := fetch.New(fetch.Config{})

	result, err := client.Head(context.Background(), redirecting.URL)
	require.NoError(t, err)
	require.Equal(t, final.URL, result.FinalURL)
	require.Equal(t, http.StatusOK, result.StatusCode)
}
