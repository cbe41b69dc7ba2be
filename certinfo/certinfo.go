// Package certinfo extracts human-facing summaries from issued
// certificates for the info command and the HTTP API.
package certinfo

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/hex"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/jmcleod/certflux/csr"
	"github.com/jmcleod/certflux/internal/util"
)

// ErrInvalidPEM is returned when bytes do not hold a parseable
// certificate.
var ErrInvalidPEM = errors.New("invalid certificate PEM")

// Summary is the parsed view of a certificate.
type Summary struct {
	Subject      string    `json:"subject"`
	Issuer       string    `json:"issuer"`
	SerialNumber string    `json:"serial_number"`
	NotBefore    time.Time `json:"not_before"`
	NotAfter     time.Time `json:"not_after"`
	KeyAlgorithm string    `json:"key_algorithm"`
	SANs         []csr.SAN `json:"sans,omitempty"`
}

// Parse decodes a PEM certificate and builds its summary.
func Parse(certPEM []byte) (*Summary, *x509.Certificate, error) {
	block, _ := pem.Decode(certPEM)
	if block == nil || block.Type != "CERTIFICATE" {
		return nil, nil, ErrInvalidPEM
	}
	cert, err := x509.ParseCertificate(block.Bytes)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrInvalidPEM, err)
	}
	return Summarize(cert), cert, nil
}

// LoadFile reads and summarizes the certificate at path.
func LoadFile(path string) (*Summary, *x509.Certificate, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("reading certificate %s: %w", path, err)
	}
	return Parse(data)
}

// Summarize builds a Summary from a parsed certificate.
func Summarize(cert *x509.Certificate) *Summary {
	s := &Summary{
		Subject:      util.FormatName(cert.Subject),
		Issuer:       util.FormatName(cert.Issuer),
		SerialNumber: hex.EncodeToString(cert.SerialNumber.Bytes()),
		NotBefore:    cert.NotBefore.UTC(),
		NotAfter:     cert.NotAfter.UTC(),
		KeyAlgorithm: keyAlgorithm(cert),
	}
	for _, dns := range cert.DNSNames {
		s.SANs = append(s.SANs, csr.SAN{Kind: csr.KindDNS, Value: dns})
	}
	for _, ip := range cert.IPAddresses {
		s.SANs = append(s.SANs, csr.SAN{Kind: csr.KindIP, Value: ip.String()})
	}
	for _, email := range cert.EmailAddresses {
		s.SANs = append(s.SANs, csr.SAN{Kind: csr.KindEmail, Value: email})
	}
	return s
}

// IsExpired reports whether the certificate's validity window has
// closed.
func (s *Summary) IsExpired() bool {
	return time.Now().After(s.NotAfter)
}

// DaysUntilExpiry returns whole days until NotAfter, negative once
// expired.
func (s *Summary) DaysUntilExpiry() int {
	return int(time.Until(s.NotAfter).Hours() / 24)
}

func keyAlgorithm(cert *x509.Certificate) string {
	switch pub := cert.PublicKey.(type) {
	case *rsa.PublicKey:
		return fmt.Sprintf("RSA %d", pub.N.BitLen())
	default:
		return cert.PublicKeyAlgorithm.String()
	}
}
