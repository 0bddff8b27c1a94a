// Package domain provides domain models used across the application.
package domain

import (
	"time"

	"github.com/lib/pq"
)

// Relationship type labels.
const (
	RelationshipLink      = "link"
	RelationshipRedirect  = "redirect"
	RelationshipSubdomain = "subdomain"
	RelationshipRelated   = "related"
)

// QueueEntry status constants.
const (
	QueueStatusPending    = "pending"
	QueueStatusProcessing = "processing"
	QueueStatusCompleted  = "completed"
	QueueStatusFailed     = "failed"
	QueueStatusSkipped    = "skipped"
)

// Domain is a discovered host, identified by its lowercased, www-stripped name.
type Domain struct {
	ID          string     `db:"id"           json:"id"`
	DomainName  string     `db:"domain_name"   json:"domain_name"`
	Title       *string    `db:"title"         json:"title,omitempty"`
	Description *string    `db:"description"   json:"description,omitempty"`
	FaviconURL  *string    `db:"favicon_url"   json:"favicon_url,omitempty"`
	CreatedDate *time.Time `db:"created_date"  json:"created_date,omitempty"`
	ExpiryDate  *time.Time `db:"expiry_date"   json:"expiry_date,omitempty"`
	Registrar   *string    `db:"registrar"     json:"registrar,omitempty"`
	Nameservers pq.StringArray `db:"nameservers"   json:"nameservers,omitempty"`
	ASN         *string    `db:"asn"           json:"asn,omitempty"`
	ASNDesc     *string    `db:"asn_desc"      json:"asn_desc,omitempty"`
	TLSValid    *bool      `db:"tls_valid"     json:"tls_valid,omitempty"`
	TLSExpiry   *time.Time `db:"tls_expiry"    json:"tls_expiry,omitempty"`
	Country     *string    `db:"country"       json:"country,omitempty"`
	IPAddress   *string    `db:"ip_address"    json:"ip_address,omitempty"`
	Latitude    *float64   `db:"latitude"      json:"latitude,omitempty"`
	Longitude   *float64   `db:"longitude"     json:"longitude,omitempty"`
	Screenshot  *string    `db:"screenshot"    json:"screenshot,omitempty"`
	Category    *string    `db:"category"      json:"category,omitempty"`
	Tags        pq.StringArray `db:"tags"          json:"tags,omitempty"`
	CreatedAt   time.Time  `db:"created_at"    json:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at"    json:"updated_at"`
}

// IsDataComplete reports whether enrichment has produced the minimum
// fields the orchestrator requires before it can skip per-domain
// enrichment on a later visit.
func (d *Domain) IsDataComplete() bool {
	return d.Title != nil && d.Description != nil && d.IPAddress != nil
}

// Relationship is a directed, labeled edge between two domains.
type Relationship struct {
	ID               string    `db:"id"                json:"id"`
	SourceDomainID   string    `db:"source_domain_id"  json:"source_domain_id"`
	TargetDomainID   string    `db:"target_domain_id"  json:"target_domain_id"`
	RelationshipType string    `db:"relationship_type" json:"relationship_type"`
	LinkText         *string   `db:"link_text"         json:"link_text,omitempty"`
	Href             *string   `db:"href"              json:"href,omitempty"`
	CreatedAt        time.Time `db:"created_at"        json:"created_at"`
	UpdatedAt        time.Time `db:"updated_at"        json:"updated_at"`
}

// QueueEntry is one row of the discovery_queue, the shared work queue
// that C1 (queuestore) owns exclusively.
type QueueEntry struct {
	ID             string     `db:"id"               json:"id"`
	URL            string     `db:"url"              json:"url"`
	DomainName     string     `db:"domain_name"      json:"domain_name"`
	SourceDomainID *string    `db:"source_domain_id" json:"source_domain_id,omitempty"`
	Priority       int        `db:"priority"         json:"priority"`
	Depth          int        `db:"depth"            json:"depth"`
	Status         string     `db:"status"           json:"status"`
	DiscoveredAt   time.Time  `db:"discovered_at"    json:"discovered_at"`
	ProcessedAt    *time.Time `db:"processed_at"     json:"processed_at,omitempty"`
	LastError      *string    `db:"last_error"       json:"last_error,omitempty"`
	Agent          *string    `db:"agent"            json:"agent,omitempty"`
	CreatedAt      time.Time  `db:"created_at"       json:"created_at"`
	UpdatedAt      time.Time  `db:"updated_at"       json:"updated_at"`
}

// URLHistory records the terminal outcome of a fetched URL, so the
// orchestrator can avoid re-enqueuing work already done.
type URLHistory struct {
	ID          string    `db:"id"           json:"id"`
	URL         string    `db:"url"          json:"url"`
	DomainName  string    `db:"domain_name"  json:"domain_name"`
	Status      string    `db:"status"       json:"status"`
	LinksFound  int       `db:"links_found"  json:"links_found"`
	ProcessedAt time.Time `db:"processed_at" json:"processed_at"`
}

// CollectionLog is an append-only record of one processed queue entry.
type CollectionLog struct {
	ID              string        `db:"id"               json:"id"`
	DomainName      string        `db:"domain_name"      json:"domain_name"`
	URL             string        `db:"url"              json:"url"`
	Status          string        `db:"status"           json:"status"`
	Error           *string       `db:"error"            json:"error,omitempty"`
	ProcessingTime  time.Duration `db:"processing_time"  json:"processing_time"`
	LinksFound      int           `db:"links_found"      json:"links_found"`
	DiscoveredCount int           `db:"discovered_count" json:"discovered_count"`
	Agent           string        `db:"agent"            json:"agent"`
	CreatedAt       time.Time     `db:"created_at"       json:"created_at"`
}
