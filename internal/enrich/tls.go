package enrich

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"

	"github.com/jonesrussell/mapthenet/internal/domain"
)

// TLSAdapter opens a TLS connection to port 443 with SNI and records
// the leaf certificate's expiry. A dial failure records ssl_valid as
// false rather than erroring the crawl step.
type TLSAdapter struct {
	// MinVersion mirrors the teacher's transport.NewTLSConfig: minimum
	// TLS 1.2, never skipping certificate verification for a crawl
	// target we do not control.
	MinVersion uint16
}

// NewTLSAdapter builds an adapter enforcing at least TLS 1.2.
func NewTLSAdapter() *TLSAdapter {
	return &TLSAdapter{MinVersion: tls.VersionTLS12}
}

// Inspect dials host:443 and records certificate validity and expiry.
func (a *TLSAdapter) Inspect(ctx context.Context, host string, d *domain.Domain) error {
	dialer := &net.Dialer{Timeout: dialTimeout}

	conn, err := tls.DialWithDialer(dialer, "tcp", net.JoinHostPort(host, "443"), &tls.Config{
		ServerName: host,
		MinVersion: a.MinVersion,
	})
	if err != nil {
		invalid := false
		d.TLSValid = &invalid

		return fmt.Errorf("tls: dial %s: %w", host, err)
	}
	defer conn.Close()

	valid := true
	d.TLSValid = &valid

	state := conn.ConnectionState()
	if len(state.PeerCertificates) > 0 {
		expiry := state.PeerCertificates[0].NotAfter
		d.TLSExpiry = &expiry
	}

	return nil
}
