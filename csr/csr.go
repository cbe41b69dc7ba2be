// Package csr builds, parses and verifies X.509 certificate signing
// requests, including the tagged subject-alternative-name grammar used
// throughout certflux.
package csr

import (
	"crypto"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"errors"
	"fmt"
	"net"
	"os"

	"github.com/jmcleod/certflux/internal/fsutil"
)

const pemType = "CERTIFICATE REQUEST"

var (
	// ErrInvalidCSR is returned when bytes are not a parseable CSR or
	// when a CSR's self-signature does not verify against its embedded
	// public key.
	ErrInvalidCSR = errors.New("invalid certificate signing request")
)

// Request wraps a parsed CSR together with its DER encoding. A Request
// is immutable once built; its self-signature proves possession of the
// subject's private key.
type Request struct {
	req *x509.CertificateRequest
	der []byte
}

// New builds a CSR for commonName, signed with the subject's own key.
// The SAN list is embedded as a request extension.
func New(commonName string, signer crypto.Signer, sans []SAN) (*Request, error) {
	template := &x509.CertificateRequest{
		Subject:            pkix.Name{CommonName: commonName},
		SignatureAlgorithm: x509.SHA256WithRSA,
	}
	for _, san := range sans {
		switch san.Kind {
		case KindDNS:
			template.DNSNames = append(template.DNSNames, san.Value)
		case KindIP:
			ip := net.ParseIP(san.Value)
			if ip == nil {
				return nil, fmt.Errorf("IP:%s is not a valid address: %w", san.Value, ErrInvalidSAN)
			}
			template.IPAddresses = append(template.IPAddresses, ip)
		case KindEmail:
			template.EmailAddresses = append(template.EmailAddresses, san.Value)
		}
	}

	der, err := x509.CreateCertificateRequest(rand.Reader, template, signer)
	if err != nil {
		return nil, fmt.Errorf("creating CSR for %q: %w", commonName, err)
	}
	return Parse(der)
}

// Parse wraps a DER-encoded CSR.
func Parse(der []byte) (*Request, error) {
	req, err := x509.ParseCertificateRequest(der)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCSR, err)
	}
	return &Request{req: req, der: der}, nil
}

// ParsePEM decodes a PEM-encoded CSR.
func ParsePEM(data []byte) (*Request, error) {
	block, _ := pem.Decode(data)
	if block == nil || block.Type != pemType {
		return nil, fmt.Errorf("%w: no CERTIFICATE REQUEST block", ErrInvalidCSR)
	}
	return Parse(block.Bytes)
}

// LoadPEM reads and decodes a CSR from path.
func LoadPEM(path string) (*Request, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading CSR %s: %w", path, err)
	}
	req, err := ParsePEM(data)
	if err != nil {
		return nil, fmt.Errorf("CSR %s: %w", path, err)
	}
	return req, nil
}

// Verify checks the CSR's self-signature against its embedded public
// key. Callers must not trust any CSR field before this passes.
func (r *Request) Verify() error {
	if err := r.req.CheckSignature(); err != nil {
		return fmt.Errorf("%w: self-signature check failed: %v", ErrInvalidCSR, err)
	}
	return nil
}

// CommonName returns the subject common name.
func (r *Request) CommonName() string {
	return r.req.Subject.CommonName
}

// Raw exposes the underlying parsed request.
func (r *Request) Raw() *x509.CertificateRequest {
	return r.req
}

// EncodePEM returns the request in PEM form.
func (r *Request) EncodePEM() []byte {
	return pem.EncodeToMemory(&pem.Block{Type: pemType, Bytes: r.der})
}

// Save writes the request to path in PEM form with the given mode.
func (r *Request) Save(path string, mode os.FileMode) error {
	return fsutil.WriteFile(path, r.EncodePEM(), mode)
}

// SANs collects the request's subject alternative names back into the
// tagged form, DNS entries first, then IPs, then emails, each group in
// request order.
func (r *Request) SANs() []SAN {
	var sans []SAN
	for _, dns := range r.req.DNSNames {
		sans = append(sans, SAN{Kind: KindDNS, Value: dns})
	}
	for _, ip := range r.req.IPAddresses {
		sans = append(sans, SAN{Kind: KindIP, Value: ip.String()})
	}
	for _, email := range r.req.EmailAddresses {
		sans = append(sans, SAN{Kind: KindEmail, Value: email})
	}
	return sans
}
