// Package sign implements the CSR-to-certificate transform: it turns a
// verified signing request into an X.509 v3 certificate issued by the
// loaded CA.
//
// The engine copies every extension the CSR declares verbatim onto the
// certificate and never invents or filters extensions itself; callers
// are responsible for constraining which SANs a CSR may request. The
// signature digest is fixed at SHA-256 and is deliberately not
// configurable.
package sign

import (
	"crypto/rand"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"math/big"
	"os"
	"time"

	"github.com/jmcleod/certflux/ca"
	"github.com/jmcleod/certflux/csr"
	"github.com/jmcleod/certflux/internal/fsutil"
)

// serialBits sizes the random serial: 159 bits yields a 20-byte serial
// whose most significant bit may be zero, keeping the encoded integer
// positive without truncation.
const serialBits = 159

var (
	// ErrInvalidValidity is returned for a non-positive validity window.
	ErrInvalidValidity = errors.New("validity days must be positive")

	// ErrCAInconsistent is returned when the CA certificate's public key
	// does not match the loaded signing key. Signing refuses to proceed.
	ErrCAInconsistent = errors.New("CA certificate does not match CA signing key")

	// ErrSigningFailed is returned when the signing primitive rejects
	// the constructed certificate.
	ErrSigningFailed = errors.New("certificate signing failed")
)

// Certificate is a freshly issued certificate with its DER encoding.
type Certificate struct {
	X509 *x509.Certificate
	DER  []byte
}

// Sign issues a certificate for req, signed by authority, valid from
// now for validityDays. The CSR's self-signature is verified before any
// of its fields are trusted; the subject, public key and extensions all
// come from the CSR, the issuer from the CA certificate.
func Sign(req *csr.Request, authority *ca.Authority, validityDays int) (*Certificate, error) {
	if validityDays <= 0 {
		return nil, fmt.Errorf("%d: %w", validityDays, ErrInvalidValidity)
	}
	if err := req.Verify(); err != nil {
		return nil, err
	}
	if !authority.VerifySelfConsistency() {
		return nil, ErrCAInconsistent
	}

	serial, err := randomSerial()
	if err != nil {
		return nil, err
	}

	raw := req.Raw()
	now := time.Now().UTC()
	template := &x509.Certificate{
		SerialNumber:       serial,
		Subject:            raw.Subject,
		NotBefore:          now,
		NotAfter:           now.AddDate(0, 0, validityDays),
		SignatureAlgorithm: x509.SHA256WithRSA,
		// Carried over verbatim: the engine adds nothing and drops
		// nothing, SAN extension included.
		ExtraExtensions: raw.Extensions,
	}

	der, err := x509.CreateCertificate(rand.Reader, template, authority.Certificate(), raw.PublicKey, authority.Key())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSigningFailed, err)
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, fmt.Errorf("%w: parsing issued certificate: %v", ErrSigningFailed, err)
	}
	return &Certificate{X509: cert, DER: der}, nil
}

// randomSerial draws a fresh random serial with enough entropy that
// collisions across the CA's lifetime are negligible.
func randomSerial() (*big.Int, error) {
	max := new(big.Int).Lsh(big.NewInt(1), serialBits)
	serial, err := rand.Int(rand.Reader, max)
	if err != nil {
		return nil, fmt.Errorf("generating serial: %w", err)
	}
	return serial, nil
}

// EncodePEM returns the certificate in PEM form.
func (c *Certificate) EncodePEM() []byte {
	return pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: c.DER})
}

// Save writes the certificate to path in PEM form with the given mode.
func (c *Certificate) Save(path string, mode os.FileMode) error {
	return fsutil.WriteFile(path, c.EncodePEM(), mode)
}
