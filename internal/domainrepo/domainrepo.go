// Package domainrepo persists Domain and Relationship rows and records
// URL processing history. It is the sole owner of Domain/Relationship
// invariants; the orchestrator only ever calls through it.
package domainrepo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/jonesrussell/mapthenet/internal/domain"
)

// Repository is the Postgres-backed Domain Repository (C8).
type Repository struct {
	db *sqlx.DB
}

// New builds a Repository over an existing connection pool.
func New(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

// UpsertDomainParams describes the fields known at upsert time. Pointer
// fields left nil are "no-op for that column" on an update — inserts
// create a minimal stub row with just domain_name when every pointer
// field is nil.
type UpsertDomainParams struct {
	DomainName  string
	Title       *string
	Description *string
	FaviconURL  *string
}

// UpsertDomain identifies a domain by its name, inserting a new row or
// leaving an existing one's enrichment fields untouched if the caller
// passed no new data, and always returns the row's id.
func (r *Repository) UpsertDomain(ctx context.Context, p UpsertDomainParams) (string, error) {
	query := `
		INSERT INTO domains (domain_name, title, description, favicon_url, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NOW(), NOW())
		ON CONFLICT (domain_name) DO UPDATE SET
			title = COALESCE(EXCLUDED.title, domains.title),
			description = COALESCE(EXCLUDED.description, domains.description),
			favicon_url = COALESCE(EXCLUDED.favicon_url, domains.favicon_url),
			updated_at = NOW()
		RETURNING id
	`

	var id string
	if err := r.db.GetContext(ctx, &id, query, p.DomainName, p.Title, p.Description, p.FaviconURL); err != nil {
		return "", fmt.Errorf("domainrepo: upsert domain %s: %w", p.DomainName, err)
	}

	return id, nil
}

// UpdateEnrichment writes whatever enrichment fields an adapter run
// was able to collect, leaving already-populated columns untouched
// when the adapter found nothing this time (nil pointer fields).
func (r *Repository) UpdateEnrichment(ctx context.Context, id string, d *domain.Domain) error {
	query := `
		UPDATE domains SET
			created_date = COALESCE($2, created_date),
			expiry_date = COALESCE($3, expiry_date),
			registrar = COALESCE($4, registrar),
			nameservers = CASE WHEN $5::text[] IS NOT NULL THEN $5 ELSE nameservers END,
			asn = COALESCE($6, asn),
			asn_desc = COALESCE($7, asn_desc),
			tls_valid = COALESCE($8, tls_valid),
			tls_expiry = COALESCE($9, tls_expiry),
			country = COALESCE($10, country),
			ip_address = COALESCE($11, ip_address),
			latitude = COALESCE($12, latitude),
			longitude = COALESCE($13, longitude),
			updated_at = NOW()
		WHERE id = $1
	`

	_, err := r.db.ExecContext(ctx, query, id,
		d.CreatedDate, d.ExpiryDate, d.Registrar, nilIfEmpty(d.Nameservers),
		d.ASN, d.ASNDesc, d.TLSValid, d.TLSExpiry, d.Country, d.IPAddress, d.Latitude, d.Longitude,
	)
	if err != nil {
		return fmt.Errorf("domainrepo: update enrichment %s: %w", id, err)
	}

	return nil
}

func nilIfEmpty(ns []string) any {
	if len(ns) == 0 {
		return nil
	}

	return pq.Array(ns)
}

// UpsertRelationshipParams describes one directed edge to persist.
type UpsertRelationshipParams struct {
	SourceDomainID string
	TargetDomainID string
	Label          string
	LinkText       *string
	Href           *string
}

// UpsertRelationship inserts an edge unique on (source, target, label),
// updating text/href on conflict.
func (r *Repository) UpsertRelationship(ctx context.Context, p UpsertRelationshipParams) error {
	query := `
		INSERT INTO relationships (source_domain_id, target_domain_id, relationship_type, link_text, href, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
		ON CONFLICT (source_domain_id, target_domain_id, relationship_type) DO UPDATE SET
			link_text = EXCLUDED.link_text,
			href = EXCLUDED.href,
			updated_at = NOW()
	`

	_, err := r.db.ExecContext(ctx, query, p.SourceDomainID, p.TargetDomainID, p.Label, p.LinkText, p.Href)
	if err != nil {
		return fmt.Errorf("domainrepo: upsert relationship: %w", err)
	}

	return nil
}

// RecordURLProcessing overwrites the terminal outcome for url, unique
// on URL, so the orchestrator can avoid re-enqueuing completed work.
func (r *Repository) RecordURLProcessing(ctx context.Context, url, domainName, status string, linksFound int) error {
	query := `
		INSERT INTO url_processing_history (url, domain_name, status, links_found, processed_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (url) DO UPDATE SET
			status = EXCLUDED.status,
			links_found = EXCLUDED.links_found,
			processed_at = NOW()
	`

	_, err := r.db.ExecContext(ctx, query, url, domainName, status, linksFound)
	if err != nil {
		return fmt.Errorf("domainrepo: record url processing %s: %w", url, err)
	}

	return nil
}

// AppendCollectionLog writes one append-only row per processed entry.
func (r *Repository) AppendCollectionLog(ctx context.Context, log *domain.CollectionLog) error {
	query := `
		INSERT INTO collection_logs
			(domain_name, url, status, error, processing_time, links_found, discovered_count, agent, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())
	`

	_, err := r.db.ExecContext(ctx, query,
		log.DomainName, log.URL, log.Status, log.Error, log.ProcessingTime, log.LinksFound, log.DiscoveredCount, log.Agent,
	)
	if err != nil {
		return fmt.Errorf("domainrepo: append collection log: %w", err)
	}

	return nil
}

// IsDomainDataComplete reports whether title, description, and
// ip_address are all non-null for domainName. A domain with no row
// yet (a freshly seeded host, never upserted) is not complete.
func (r *Repository) IsDomainDataComplete(ctx context.Context, domainName string) (bool, error) {
	query := `
		SELECT title IS NOT NULL AND description IS NOT NULL AND ip_address IS NOT NULL
		FROM domains WHERE domain_name = $1
	`

	var complete bool
	if err := r.db.GetContext(ctx, &complete, query, domainName); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}

		return false, fmt.Errorf("domainrepo: is domain data complete %s: %w", domainName, err)
	}

	return complete, nil
}

// TableCounts reports the row count of every table the repository
// owns, used by the wipe command's pre-truncate summary.
func (r *Repository) TableCounts(ctx context.Context) (map[string]int, error) {
	counts := make(map[string]int)

	for _, table := range []string{"domains", "relationships", "collection_logs", "url_processing_history"} {
		var n int
		if err := r.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM `+table); err != nil {
			return nil, fmt.Errorf("domainrepo: count %s: %w", table, err)
		}
		counts[table] = n
	}

	return counts, nil
}

// Wipe truncates every table the repository owns in one statement.
// CASCADE also empties any other table holding a foreign key to
// domains, which includes discovery_queue.
func (r *Repository) Wipe(ctx context.Context) error {
	query := `TRUNCATE TABLE relationships, url_processing_history, collection_logs, domains CASCADE`

	if _, err := r.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("domainrepo: wipe: %w", err)
	}

	return nil
}

// CountProcessedForDomain returns how many URLs under domainName have a
// terminal processing-history record, used to enforce the per-domain cap.
func (r *Repository) CountProcessedForDomain(ctx context.Context, domainName string) (int, error) {
	query := `SELECT COUNT(*) FROM url_processing_history WHERE domain_name = $1`

	var count int
	if err := r.db.GetContext(ctx, &count, query, domainName); err != nil {
		return 0, fmt.Errorf("domainrepo: count processed for domain %s: %w", domainName, err)
	}

	return count, nil
}
