// Package extract parses fetched HTML and yields outbound links and
// page-level metadata. It is tolerant of malformed HTML; non-HTML
// responses yield an empty result without error.
package extract

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Link is one anchor tuple discovered on a page.
type Link struct {
	Href string
	Text string
}

// Page holds the anchors and page-level metadata extracted from one
// fetched document.
type Page struct {
	Title       string
	Description string
	FaviconURL  string
	Links       []Link
}

// Extract parses body as HTML relative to baseURL and returns every
// anchor href/text pair plus title, meta description, and a resolved
// favicon candidate. Malformed HTML degrades gracefully: goquery parses
// what it can, and missing elements simply leave the corresponding
// field empty.
func Extract(baseURL string, body []byte) (*Page, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(body)))
	if err != nil {
		return &Page{}, nil //nolint:nilerr // malformed HTML yields an empty page, not an error
	}

	base, _ := url.Parse(baseURL)

	page := &Page{
		Title:       extractTitle(doc),
		Description: extractDescription(doc),
		FaviconURL:  extractFavicon(doc, base),
		Links:       extractLinks(doc, base),
	}

	return page, nil
}

func extractTitle(doc *goquery.Document) string {
	if title := strings.TrimSpace(doc.Find("title").First().Text()); title != "" {
		return title
	}

	return attrOrEmpty(doc, `meta[property="og:title"]`, "content")
}

func extractDescription(doc *goquery.Document) string {
	if desc := attrOrEmpty(doc, `meta[name="description"]`, "content"); desc != "" {
		return desc
	}

	return attrOrEmpty(doc, `meta[property="og:description"]`, "content")
}

func extractFavicon(doc *goquery.Document, base *url.URL) string {
	href := attrOrEmpty(doc, `link[rel="icon"]`, "href")
	if href == "" {
		href = attrOrEmpty(doc, `link[rel="shortcut icon"]`, "href")
	}
	if href == "" || base == nil {
		return ""
	}

	resolved, err := resolveAgainst(base, href)
	if err != nil {
		return ""
	}

	return resolved
}

func extractLinks(doc *goquery.Document, base *url.URL) []Link {
	var links []Link

	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, ok := sel.Attr("href")
		if !ok || href == "" {
			return
		}

		resolved := href
		if base != nil {
			if abs, err := resolveAgainst(base, href); err == nil {
				resolved = abs
			}
		}

		links = append(links, Link{
			Href: resolved,
			Text: strings.TrimSpace(sel.Text()),
		})
	})

	return links
}

func resolveAgainst(base *url.URL, ref string) (string, error) {
	parsedRef, err := url.Parse(ref)
	if err != nil {
		return "", err
	}

	return base.ResolveReference(parsedRef).String(), nil
}

func attrOrEmpty(doc *goquery.Document, selector, attr string) string {
	val, ok := doc.Find(selector).First().Attr(attr)
	if !ok {
		return ""
	}

	return strings.TrimSpace(val)
}
