package canonical_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/mapthenet/internal/canonical"
)

func TestNormalizeURL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{
			name:  "lowercases host and strips www",
			input: "https://WWW.Example.com/Path",
			want:  "https://example.com/Path",
		},
		{
			name:  "strips fragment and query",
			input: "https://example.com/path?b=2&a=1#section",
			want:  "https://example.com/path",
		},
		{
			name:  "root path stays a single slash",
			input: "https://example.com",
			want:  "https://example.com/",
		},
		{
			name:  "trailing slash on non-root path is stripped",
			input: "https://example.com/path/",
			want:  "https://example.com/path",
		},
		{
			name:    "missing scheme is rejected",
			input:   "example.com/path",
			wantErr: true,
		},
		{
			name:    "empty input is rejected",
			input:   "",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := canonical.NormalizeURL(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				return
			}

			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestNormalizeURL_Idempotent(t *testing.T) {
	t.Parallel()

	once, err := canonical.NormalizeURL("https://WWW.Example.com/Path/?x=1#y")
	require.NoError(t, err)

	twice, err := canonical.NormalizeURL(once)
	require.NoError(t, err)

	require.Equal(t, once, twice)
}

func TestExtractHost(t *testing.T) {
	t.Parallel()

	host, err := canonical.ExtractHost("https://www.Example.com/path")
	require.NoError(t, err)
	require.Equal(t, "example.com", host)

	_, err = canonical.ExtractHost("not-a-url")
	require.Error(t, err)
}

func TestIsValidDomain(t *testing.T) {
	t.Parallel()

	require.True(t, canonical.IsValidDomain("example.com"))
	require.True(t, canonical.IsValidDomain("sub.example.co.uk"))
	require.False(t, canonical.IsValidDomain("-bad.com"))
	require.False(t, canonical.IsValidDomain(""))
}

func TestReject(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		href       string
		text       string
		wantReject bool
	}{
		{name: "ordinary link", href: "https://example.com/about", text: "About us", wantReject: false},
		{name: "javascript scheme", href: "javascript:void(0)", text: "go", wantReject: true},
		{name: "mailto scheme", href: "mailto:a@example.com", text: "email us", wantReject: true},
		{name: "blocked image extension", href: "https://example.com/logo.png", text: "logo", wantReject: true},
		{name: "admin path segment", href: "https://example.com/admin/panel", text: "panel", wantReject: true},
		{name: "too many path segments", href: "https://example.com/a/b/c/d/e/f/g/h/i", text: "deep", wantReject: true},
		{name: "tracking query parameter", href: "https://example.com/page?utm_source=x", text: "page", wantReject: true},
		{name: "generic link text", href: "https://example.com/more", text: "click here", wantReject: true},
		{name: "empty link text", href: "https://example.com/more", text: "  ", wantReject: true},
		{name: "user-generated subdomain", href: "https://someone.itch.io", text: "their page", wantReject: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, reject := canonical.Reject(tt.href, tt.text)
			require.Equal(t, tt.wantReject, reject)
		})
	}
}
