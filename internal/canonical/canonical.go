// Package canonical normalizes discovered URLs to a canonical form and
// filters out URLs and link text that are not worth queuing.
package canonical

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"path"
	"regexp"
	"strings"
)

var (
	errEmptyInput          = errors.New("canonicalize: empty input")
	errMissingSchemeOrHost = errors.New("canonicalize: missing scheme or host")
	errEmptyHostInput      = errors.New("extract host: empty input")
)

// blockedExtensions rejects links to non-HTML assets.
var blockedExtensions = map[string]struct{}{
	// images
	".jpg": {}, ".jpeg": {}, ".png": {}, ".gif": {}, ".webp": {}, ".svg": {}, ".ico": {}, ".bmp": {},
	// documents
	".pdf": {}, ".doc": {}, ".docx": {}, ".xls": {}, ".xlsx": {}, ".ppt": {}, ".pptx": {},
	// archives
	".zip": {}, ".rar": {}, ".7z": {}, ".tar": {}, ".gz": {},
	// audio/video
	".mp3": {}, ".mp4": {}, ".avi": {}, ".mov": {}, ".wav": {}, ".flac": {}, ".webm": {},
	// executables
	".exe": {}, ".dmg": {}, ".msi": {}, ".apk": {},
	// asset code / logs
	".css": {}, ".js": {}, ".map": {}, ".log": {}, ".woff": {}, ".woff2": {}, ".ttf": {}, ".eot": {},
}

// trackingPrefixes reject any query parameter whose name contains one of these.
var trackingPrefixes = []string{"utm_", "fbclid", "gclid", "ref", "source", "campaign"}

// rejectedFirstSegments rejects a link whose first path segment is one of these.
var rejectedFirstSegments = map[string]struct{}{
	"api": {}, "admin": {}, "assets": {}, "static": {}, "cdn": {}, "images": {}, "img": {}, "css": {}, "js": {},
}

var genericLinkText = map[string]struct{}{
	"click here": {}, "read more": {}, "learn more": {}, "continue": {}, "next": {}, "previous": {},
}

// rejectPatterns are pre-compiled path patterns (API, admin, login and
// cart pages) whose URLs are rejected. Free-hosting subdomains are
// matched separately by ugcHostPattern.
var rejectPatterns = []*regexp.Regexp{
	regexp.MustCompile(`/api/`),
	regexp.MustCompile(`/admin`),
	regexp.MustCompile(`/login`),
	regexp.MustCompile(`/cart`),
}

// ugcHostPattern matches subdomains of free-hosting providers, whose
// apex domains stay reachable; matched against the bare host, not the
// full URL, since the scheme prefix would otherwise defeat the anchors.
var ugcHostPattern = regexp.MustCompile(`^[^.]+\.(itch\.io|github\.io|wordpress\.com)$`)

var validDomainPattern = regexp.MustCompile(
	`^[A-Za-z0-9]([A-Za-z0-9-]{0,61}[A-Za-z0-9])?(\.[A-Za-z0-9]([A-Za-z0-9-]{0,61}[A-Za-z0-9])?)*$`,
)

const (
	maxURLLength     = 500
	maxPathSegments  = 8
	maxQueryParams   = 10
	minLinkTextChars = 2
)

// NormalizeURL lowercases the host, strips a leading "www.", drops the
// fragment and the entire query string, and strips a trailing slash
// unless the path is the whole of "/". It is idempotent: canon(canon(u)) == canon(u).
func NormalizeURL(rawURL string) (string, error) {
	if rawURL == "" {
		return "", errEmptyInput
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("canonicalize: %w", err)
	}

	if validateErr := validateParsedURL(parsed); validateErr != nil {
		return "", validateErr
	}

	parsed.Scheme = strings.ToLower(parsed.Scheme)
	parsed.Host = normalizeHost(parsed)
	parsed.Fragment = ""
	parsed.RawQuery = ""
	parsed.Path = normalizePath(parsed.Path)

	return parsed.String(), nil
}

// URLHash normalizes the given URL and returns its SHA-256 hex digest.
func URLHash(rawURL string) (string, error) {
	normalized, err := NormalizeURL(rawURL)
	if err != nil {
		return "", fmt.Errorf("url hash: %w", err)
	}

	sum := sha256.Sum256([]byte(normalized))

	return hex.EncodeToString(sum[:]), nil
}

// ExtractHost returns the lowercased, www-stripped hostname of a URL.
func ExtractHost(rawURL string) (string, error) {
	if rawURL == "" {
		return "", errEmptyHostInput
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("extract host: %w", err)
	}

	if validateErr := validateParsedURL(parsed); validateErr != nil {
		return "", validateErr
	}

	return normalizeHost(parsed), nil
}

func validateParsedURL(u *url.URL) error {
	if u.Scheme == "" || u.Host == "" {
		return errMissingSchemeOrHost
	}

	return nil
}

func normalizeHost(u *url.URL) string {
	host := strings.ToLower(u.Hostname())
	host = strings.TrimPrefix(host, "www.")

	return host
}

func normalizePath(p string) string {
	if p == "" || p == "/" {
		return "/"
	}

	cleaned := path.Clean(p)
	trimmed := strings.TrimRight(cleaned, "/")

	if trimmed == "" {
		return "/"
	}

	return trimmed
}

// IsValidDomain reports whether host matches the accepted hostname grammar.
func IsValidDomain(host string) bool {
	return validDomainPattern.MatchString(host)
}

// Reject evaluates the link-filtering rules of the crawler against a raw
// href and its anchor text, prior to canonicalization. It reports a
// human-readable reason when the link should be discarded.
func Reject(rawURL, linkText string) (reason string, reject bool) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "unparseable url", true
	}

	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return "unsupported scheme", true
	}
	if parsed.Host == "" {
		return "empty host", true
	}

	if ugcHostPattern.MatchString(strings.ToLower(parsed.Hostname())) {
		return "user-generated subdomain", true
	}

	if len(rawURL) > maxURLLength {
		return "url too long", true
	}

	if ext := path.Ext(parsed.Path); ext != "" {
		if _, blocked := blockedExtensions[strings.ToLower(ext)]; blocked {
			return "blocked extension", true
		}
	}

	for _, pattern := range rejectPatterns {
		if pattern.MatchString(rawURL) {
			return "matches reject pattern", true
		}
	}

	segments := pathSegments(parsed.Path)
	if len(segments) > maxPathSegments {
		return "too many path segments", true
	}
	if len(segments) > 0 {
		if _, rejected := rejectedFirstSegments[strings.ToLower(segments[0])]; rejected {
			return "rejected first segment", true
		}
	}

	query := parsed.Query()
	if len(query) > maxQueryParams {
		return "too many query parameters", true
	}
	for name := range query {
		lower := strings.ToLower(name)
		for _, prefix := range trackingPrefixes {
			if strings.Contains(lower, prefix) {
				return "tracking query parameter", true
			}
		}
	}

	if reason, reject := rejectLinkText(linkText); reject {
		return reason, true
	}

	return "", false
}

func rejectLinkText(text string) (string, bool) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return "empty link text", true
	}
	if len([]rune(trimmed)) < minLinkTextChars {
		return "link text too short", true
	}
	if _, generic := genericLinkText[strings.ToLower(trimmed)]; generic {
		return "generic link text", true
	}

	return "", false
}

func pathSegments(p string) []string {
	trimmed := strings.Trim(p, "/")
	if trimmed == "" {
		return nil
	}

	return strings.Split(trimmed, "/")
}
