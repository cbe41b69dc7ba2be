// Package ca loads and guards an intermediate Certificate Authority's
// signing key and certificate.
//
// An on-disk CA key may be passphrase-encrypted. Because downstream
// signing primitives may require key material at a file path rather
// than in memory, loading an encrypted key produces an ephemeral
// decrypted copy in an owner-only temporary file. That file's lifetime
// is tied 1:1 to the Authority value: it is removed on Close and on
// every failing exit path during load, so no decrypted key material
// survives an error or the end of a run.
package ca

import (
	"crypto"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/awnumar/memguard"

	"github.com/jmcleod/certflux/internal/util"
	"github.com/jmcleod/certflux/keys"
)

var (
	// ErrCertNotFound is returned when the CA certificate file cannot be
	// read.
	ErrCertNotFound = errors.New("CA certificate not found")

	// ErrKeyNotFound is returned when the CA key file cannot be read.
	ErrKeyNotFound = errors.New("CA key not found")

	// ErrCertParse is returned when the CA certificate cannot be parsed.
	ErrCertParse = errors.New("CA certificate parse failed")

	// ErrNoPassword is returned when the key is encrypted and no
	// password provider was supplied.
	ErrNoPassword = errors.New("CA key is encrypted and no password provider was given")
)

// PasswordFunc obtains the CA key passphrase from the caller, typically
// an interactive prompt or a config-provided secret. It runs at most
// once per Load.
type PasswordFunc func() (string, error)

// StaticPassword returns a PasswordFunc that always yields pw.
func StaticPassword(pw string) PasswordFunc {
	return func() (string, error) { return pw, nil }
}

// Authority is a loaded intermediate CA: resident key material,
// resident certificate, and ownership of the ephemeral decrypted key
// copy when the on-disk key was encrypted.
type Authority struct {
	key      *keys.Material
	cert     *x509.Certificate
	certPEM  []byte
	subject  string
	keyPath  string // path usable by file-based primitives
	tempPath string // non-empty only when the on-disk key was encrypted

	logger    *slog.Logger
	closeOnce sync.Once
}

// Option configures an Authority during Load.
type Option func(*Authority)

// WithLogger sets the logger used for cleanup diagnostics. The process
// default logger is used when not set.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Authority) { a.logger = logger }
}

// Load reads the CA certificate and key from disk, decrypting the key
// via password when it carries an encryption marker. Any failure leaves
// no decrypted key material behind.
func Load(certPath, keyPath string, password PasswordFunc, opts ...Option) (*Authority, error) {
	a := &Authority{}
	for _, opt := range opts {
		opt(a)
	}
	if a.logger == nil {
		a.logger = slog.Default()
	}

	certData, err := os.ReadFile(certPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCertNotFound, certPath, err)
	}
	block, _ := pem.Decode(certData)
	if block == nil || block.Type != "CERTIFICATE" {
		return nil, fmt.Errorf("%w: %s: no CERTIFICATE block", ErrCertParse, certPath)
	}
	cert, err := x509.ParseCertificate(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCertParse, certPath, err)
	}

	keyData, err := os.ReadFile(keyPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrKeyNotFound, keyPath, err)
	}

	var key *keys.Material
	tempPath := ""
	if keys.IsEncryptedPEM(keyData) {
		if password == nil {
			return nil, ErrNoPassword
		}
		key, tempPath, err = unlockKey(keyData, password)
		if err != nil {
			return nil, fmt.Errorf("unlocking CA key %s: %w", keyPath, err)
		}
	} else {
		key, err = keys.DecodePEM(keyData, nil)
		if err != nil {
			return nil, fmt.Errorf("CA key %s: %w", keyPath, err)
		}
	}

	a.key = key
	a.cert = cert
	a.certPEM = certData
	a.tempPath = tempPath
	a.keyPath = keyPath
	if tempPath != "" {
		a.keyPath = tempPath
	}
	// Computed once here so concurrent readers never race on a lazily
	// memoized value.
	a.subject = util.FormatName(cert.Subject)
	return a, nil
}

// unlockKey decrypts the key in memory and writes a plaintext copy to a
// fresh temp file restricted to owner read/write. The passphrase lives
// in a memguard buffer for the duration of the decrypt; a partial temp
// file is removed before any error propagates.
func unlockKey(keyData []byte, password PasswordFunc) (*keys.Material, string, error) {
	pw, err := password()
	if err != nil {
		return nil, "", err
	}
	buf := memguard.NewBufferFromBytes([]byte(util.Normalize(pw)))
	defer buf.Destroy()

	key, err := keys.DecodePEM(keyData, buf.Bytes())
	if err != nil {
		return nil, "", err
	}

	tmp, err := os.CreateTemp("", "certflux-ca-*.key.pem")
	if err != nil {
		key.Destroy()
		return nil, "", fmt.Errorf("creating temp key file: %w", err)
	}
	tempPath := tmp.Name()

	cleanup := func() {
		tmp.Close()
		os.Remove(tempPath)
		key.Destroy()
	}

	// Restrict before any key bytes are written.
	if err := tmp.Chmod(0o600); err != nil {
		cleanup()
		return nil, "", fmt.Errorf("restricting temp key file: %w", err)
	}
	plain, err := key.EncodePEM(nil)
	if err != nil {
		cleanup()
		return nil, "", err
	}
	defer util.WipeBytes(plain)
	if _, err := tmp.Write(plain); err != nil {
		cleanup()
		return nil, "", fmt.Errorf("writing temp key file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tempPath)
		key.Destroy()
		return nil, "", fmt.Errorf("closing temp key file: %w", err)
	}

	return key, tempPath, nil
}

// Key returns the CA signing key.
func (a *Authority) Key() crypto.Signer {
	return a.key.Signer()
}

// Certificate returns the CA certificate.
func (a *Authority) Certificate() *x509.Certificate {
	return a.cert
}

// CertificatePEM returns the CA certificate as read from disk.
func (a *Authority) CertificatePEM() []byte {
	return a.certPEM
}

// Subject returns the CA certificate's subject distinguished name.
func (a *Authority) Subject() string {
	return a.subject
}

// KeyPath returns a filesystem path holding the (decrypted) CA key for
// primitives that require file input. The path is owned by this
// Authority and must not be shared beyond its lifetime.
func (a *Authority) KeyPath() string {
	return a.keyPath
}

// VerifySelfConsistency reports whether the certificate's embedded
// public key matches the loaded private key. Signing must not proceed
// when this fails: it means the CA material is misconfigured.
func (a *Authority) VerifySelfConsistency() bool {
	pub, ok := a.key.Public().(interface{ Equal(crypto.PublicKey) bool })
	if !ok {
		return false
	}
	return pub.Equal(a.cert.PublicKey)
}

// Close wipes the resident key material and removes the ephemeral
// decrypted key file, if one exists. Removal is best-effort: a failure
// is logged, never escalated, and Close never panics. Close is
// idempotent.
func (a *Authority) Close() {
	a.closeOnce.Do(func() {
		if a.tempPath != "" {
			if err := os.Remove(a.tempPath); err != nil && !errors.Is(err, os.ErrNotExist) {
				a.logger.Warn("failed to remove decrypted CA key copy",
					"path", a.tempPath, "error", err)
			}
		}
		if a.key != nil {
			a.key.Destroy()
		}
	})
}
