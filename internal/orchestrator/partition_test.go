package orchestrator

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/mapthenet/internal/extract"
)

func TestPartitionLinks_SplitsInternalAndExternal(t *testing.T) {
	t.Parallel()

	links := []extract.Link{
		{Href: "https://source.test/about", Text: "About us"},
		{Href: "https://source.test/contact", Text: "Contact us"},
		{Href: "https://other.test/page", Text: "Other site"},
		{Href: "https://another.test/page", Text: "Another site"},
	}

	internal, external := partitionLinks(links, "source.test", 1, 1)

	require.Len(t, internal, 1)
	require.Equal(t, "https://source.test/about", internal[0].Href)
	require.Len(t, external, 1)
	require.Equal(t, "https://other.test/page", external[0].Href)
}

func TestPartitionLinks_DedupsExternalByHost(t *testing.T) {
	t.Parallel()

	links := []extract.Link{
		{Href: "https://other.test/page-one", Text: "Page one"},
		{Href: "https://other.test/page-two", Text: "Page two"},
	}

	_, external := partitionLinks(links, "source.test", 1, 5)

	require.Len(t, external, 1)
}

func TestPartitionLinks_SkipsRejectedLinks(t *testing.T) {
	t.Parallel()

	links := []extract.Link{
		{Href: "https://source.test/logo.png", Text: "logo"},
		{Href: "javascript:void(0)", Text: "click"},
		{Href: "https://source.test/about", Text: "About us"},
	}

	internal, external := partitionLinks(links, "source.test", 5, 5)

	require.Len(t, internal, 1)
	require.Empty(t, external)
}
