package enrich

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/oschwald/maxminddb-golang"

	"github.com/jonesrussell/mapthenet/internal/domain"
	"github.com/jonesrussell/mapthenet/internal/fetch"
)

// geoRecord mirrors the subset of a MaxMind City database record this
// adapter needs.
type geoRecord struct {
	Country struct {
		ISOCode string `maxminddb:"iso_code"`
	} `maxminddb:"country"`
	Location struct {
		Latitude  float64 `maxminddb:"latitude"`
		Longitude float64 `maxminddb:"longitude"`
	} `maxminddb:"location"`
}

// GeoIPAdapter resolves country and coordinates for an IP, preferring
// a local MaxMind database and falling back to an optional HTTP
// lookup when the local DB misses or is unavailable.
type GeoIPAdapter struct {
	db             *maxminddb.Reader
	fallbackClient *sharedClient
	fallbackURL    string // e.g. "https://ipinfo.io/%s/json"
	fallbackToken  string
}

// NewGeoIPAdapter opens dbPath as a MaxMind database, if provided, and
// configures the optional IPInfo-style HTTP fallback.
func NewGeoIPAdapter(dbPath string, fallbackClient *fetch.Client, fallbackURL, fallbackToken string) (*GeoIPAdapter, error) {
	adapter := &GeoIPAdapter{
		fallbackClient: fallbackClient,
		fallbackURL:    fallbackURL,
		fallbackToken:  fallbackToken,
	}

	if dbPath == "" {
		return adapter, nil
	}

	db, err := maxminddb.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("geoip: open database %s: %w", dbPath, err)
	}

	adapter.db = db

	return adapter, nil
}

// Close releases the local MaxMind database handle, if any.
func (a *GeoIPAdapter) Close() error {
	if a.db == nil {
		return nil
	}

	return a.db.Close()
}

// Lookup resolves ip's country and coordinates, preferring the local
// database and falling back to the configured HTTP service. On both
// failures, only the IP itself remains recorded by the caller.
func (a *GeoIPAdapter) Lookup(ctx context.Context, ip string, d *domain.Domain) error {
	if a.db != nil {
		if err := a.lookupLocal(ip, d); err == nil {
			return nil
		}
	}

	if a.fallbackClient == nil || a.fallbackURL == "" {
		return fmt.Errorf("geoip: no local match and no fallback configured for %s", ip)
	}

	return a.lookupFallback(ctx, ip, d)
}

func (a *GeoIPAdapter) lookupLocal(ip string, d *domain.Domain) error {
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return fmt.Errorf("geoip: invalid ip %q", ip)
	}

	var record geoRecord
	if err := a.db.Lookup(parsed, &record); err != nil {
		return fmt.Errorf("geoip: local lookup: %w", err)
	}

	if record.Country.ISOCode == "" {
		return fmt.Errorf("geoip: no local record for %s", ip)
	}

	country := record.Country.ISOCode
	d.Country = &country
	d.Latitude = &record.Location.Latitude
	d.Longitude = &record.Location.Longitude

	return nil
}

type ipinfoResponse struct {
	Country string `json:"country"`
	Loc     string `json:"loc"` // "lat,lon"
}

func (a *GeoIPAdapter) lookupFallback(ctx context.Context, ip string, d *domain.Domain) error {
	url := fmt.Sprintf(a.fallbackURL, ip)
	if a.fallbackToken != "" {
		url += "?token=" + a.fallbackToken
	}

	result, err := a.fallbackClient.Get(ctx, url, fetch.ConditionalHeaders{})
	if err != nil {
		return fmt.Errorf("geoip: fallback lookup: %w", err)
	}

	var parsed ipinfoResponse
	if err := json.Unmarshal(result.Body, &parsed); err != nil {
		return fmt.Errorf("geoip: decode fallback response: %w", err)
	}

	if parsed.Country != "" {
		d.Country = &parsed.Country
	}

	if lat, lon, ok := strings.Cut(parsed.Loc, ","); ok {
		latitude, latErr := strconv.ParseFloat(strings.TrimSpace(lat), 64)
		longitude, lonErr := strconv.ParseFloat(strings.TrimSpace(lon), 64)
		if latErr == nil && lonErr == nil {
			d.Latitude = &latitude
			d.Longitude = &longitude
		}
	}

	return nil
}
