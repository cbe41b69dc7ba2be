// Package keys manages RSA private key material: generation, PEM
// serialization with optional passphrase encryption, and best-effort
// in-memory zeroization. Encrypted containers use AES-256 PEM
// encryption; a supplied passphrase is never silently downgraded to an
// unencrypted encoding.
package keys

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"

	"github.com/jmcleod/certflux/internal/fsutil"
	"github.com/jmcleod/certflux/internal/util"
)

// MinKeySize is the smallest RSA modulus accepted for new keys.
const MinKeySize = 2048

const pemType = "RSA PRIVATE KEY"

var (
	// ErrKeyTooSmall is returned when a requested key size is below
	// MinKeySize.
	ErrKeyTooSmall = errors.New("key size below secure minimum")

	// ErrInvalidPEM is returned when bytes are not a valid private key
	// container.
	ErrInvalidPEM = errors.New("invalid private key PEM")

	// ErrDecryptionFailed is returned when an encrypted key cannot be
	// decrypted, either because no passphrase was given or because the
	// passphrase is wrong.
	ErrDecryptionFailed = errors.New("private key decryption failed")

	// ErrEmptyPassphrase is returned when encryption is requested with a
	// zero-length passphrase.
	ErrEmptyPassphrase = errors.New("passphrase must not be empty")
)

// Material holds a private/public RSA key pair.
type Material struct {
	key  *rsa.PrivateKey
	bits int
}

// Generate creates a new RSA key pair of the given size in bits.
func Generate(bits int) (*Material, error) {
	if bits < MinKeySize {
		return nil, fmt.Errorf("%d bits: %w", bits, ErrKeyTooSmall)
	}
	key, err := rsa.GenerateKey(rand.Reader, bits)
	if err != nil {
		return nil, fmt.Errorf("generating %d-bit RSA key: %w", bits, err)
	}
	return &Material{key: key, bits: bits}, nil
}

// Signer returns the private key as a crypto.Signer.
func (m *Material) Signer() crypto.Signer {
	return m.key
}

// Public returns the public half of the key pair.
func (m *Material) Public() crypto.PublicKey {
	return m.key.Public()
}

// Bits returns the modulus size in bits.
func (m *Material) Bits() int {
	return m.bits
}

// EncodePEM serializes the private key as a PEM container. A nil
// passphrase produces an unencrypted PKCS#1 block. A non-nil passphrase
// produces an AES-256 encrypted block; an empty passphrase is rejected
// rather than downgraded.
func (m *Material) EncodePEM(passphrase []byte) ([]byte, error) {
	der := x509.MarshalPKCS1PrivateKey(m.key)
	if passphrase == nil {
		return pem.EncodeToMemory(&pem.Block{Type: pemType, Bytes: der}), nil
	}
	if len(passphrase) == 0 {
		return nil, ErrEmptyPassphrase
	}
	block, err := x509.EncryptPEMBlock(rand.Reader, pemType, der, passphrase, x509.PEMCipherAES256) //nolint:staticcheck
	if err != nil {
		return nil, fmt.Errorf("encrypting private key: %w", err)
	}
	return pem.EncodeToMemory(block), nil
}

// DecodePEM parses a PEM private key container. Pass a nil passphrase
// for unencrypted keys. An encrypted container with a missing or wrong
// passphrase fails with ErrDecryptionFailed; bytes that are not a key
// container at all fail with ErrInvalidPEM.
func DecodePEM(data, passphrase []byte) (*Material, error) {
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, ErrInvalidPEM
	}

	der := block.Bytes
	if encryptedBlock(block) {
		if len(passphrase) == 0 {
			return nil, fmt.Errorf("key is encrypted and no passphrase was given: %w", ErrDecryptionFailed)
		}
		var err error
		der, err = x509.DecryptPEMBlock(block, passphrase) //nolint:staticcheck
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrDecryptionFailed, err)
		}
		key, err := parseKeyDER(der)
		if err != nil {
			// A wrong passphrase can decrypt into garbage that passes the
			// cipher's padding check but fails ASN.1 parsing.
			return nil, fmt.Errorf("%w: %v", ErrDecryptionFailed, err)
		}
		return &Material{key: key, bits: key.N.BitLen()}, nil
	}

	key, err := parseKeyDER(der)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPEM, err)
	}
	return &Material{key: key, bits: key.N.BitLen()}, nil
}

// IsEncryptedPEM reports whether the container carries an encryption
// marker. It inspects PEM headers only and never attempts decryption.
func IsEncryptedPEM(data []byte) bool {
	block, _ := pem.Decode(data)
	if block == nil {
		return false
	}
	return encryptedBlock(block)
}

// IsEncryptedFile reads the key at path and reports whether it carries
// an encryption marker.
func IsEncryptedFile(path string) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return false, fmt.Errorf("reading key %s: %w", path, err)
	}
	return IsEncryptedPEM(data), nil
}

// Save writes the key to path in PEM form with the given file mode,
// applying the mode explicitly so the process umask cannot widen it.
func (m *Material) Save(path string, passphrase []byte, mode os.FileMode) error {
	data, err := m.EncodePEM(passphrase)
	if err != nil {
		return err
	}
	defer util.WipeBytes(data)
	return fsutil.WriteFile(path, data, mode)
}

// Load reads and decodes a private key from path.
func Load(path string, passphrase []byte) (*Material, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading key %s: %w", path, err)
	}
	m, err := DecodePEM(data, passphrase)
	if err != nil {
		return nil, fmt.Errorf("key %s: %w", path, err)
	}
	return m, nil
}

// Destroy best-effort zeroes the private key components. The Material
// must not be used afterwards.
func (m *Material) Destroy() {
	if m.key == nil {
		return
	}
	m.key.D.SetInt64(0)
	for _, p := range m.key.Primes {
		p.SetInt64(0)
	}
	if m.key.Precomputed.Dp != nil {
		m.key.Precomputed.Dp.SetInt64(0)
	}
	if m.key.Precomputed.Dq != nil {
		m.key.Precomputed.Dq.SetInt64(0)
	}
	if m.key.Precomputed.Qinv != nil {
		m.key.Precomputed.Qinv.SetInt64(0)
	}
	m.key = nil
}

func encryptedBlock(block *pem.Block) bool {
	if x509.IsEncryptedPEMBlock(block) { //nolint:staticcheck
		return true
	}
	// PKCS#8 encrypted containers mark the type instead of the headers.
	return block.Type == "ENCRYPTED PRIVATE KEY"
}

func parseKeyDER(der []byte) (*rsa.PrivateKey, error) {
	if key, err := x509.ParsePKCS1PrivateKey(der); err == nil {
		return key, nil
	}
	parsed, err := x509.ParsePKCS8PrivateKey(der)
	if err != nil {
		return nil, err
	}
	key, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("unsupported key type %T", parsed)
	}
	return key, nil
}
