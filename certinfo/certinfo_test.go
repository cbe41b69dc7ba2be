package certinfo

import (
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmcleod/certflux/csr"
	"github.com/jmcleod/certflux/keys"
)

func testCertPEM(t *testing.T, notAfter time.Time) []byte {
	t.Helper()
	key, err := keys.Generate(2048)
	require.NoError(t, err)

	serial, err := rand.Int(rand.Reader, big.NewInt(1<<62))
	require.NoError(t, err)
	template := x509.Certificate{
		SerialNumber:   serial,
		Subject:        pkix.Name{CommonName: "web-01.internal", Organization: []string{"Flux"}},
		NotBefore:      notAfter.AddDate(-1, 0, 0),
		NotAfter:       notAfter,
		DNSNames:       []string{"web-01.internal"},
		IPAddresses:    []net.IP{net.IPv4(10, 0, 0, 5)},
		EmailAddresses: []string{"ops@example.com"},
	}
	der, err := x509.CreateCertificate(rand.Reader, &template, &template, key.Signer().Public(), key.Signer())
	require.NoError(t, err)
	return pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
}

func TestParse(t *testing.T) {
	notAfter := time.Now().AddDate(0, 0, 90).UTC().Truncate(time.Second)
	summary, cert, err := Parse(testCertPEM(t, notAfter))
	require.NoError(t, err)
	require.NotNil(t, cert)

	assert.Contains(t, summary.Subject, "CN=web-01.internal")
	assert.Contains(t, summary.Subject, "O=Flux")
	assert.NotEmpty(t, summary.SerialNumber)
	assert.Equal(t, "RSA 2048", summary.KeyAlgorithm)
	assert.Equal(t, []csr.SAN{
		{Kind: csr.KindDNS, Value: "web-01.internal"},
		{Kind: csr.KindIP, Value: "10.0.0.5"},
		{Kind: csr.KindEmail, Value: "ops@example.com"},
	}, summary.SANs)

	assert.False(t, summary.IsExpired())
	assert.InDelta(t, 89, summary.DaysUntilExpiry(), 1)
}

func TestParse_Invalid(t *testing.T) {
	_, _, err := Parse([]byte("not a cert"))
	require.ErrorIs(t, err, ErrInvalidPEM)

	_, _, err = Parse([]byte("-----BEGIN CERTIFICATE-----\nAAAA\n-----END CERTIFICATE-----\n"))
	require.ErrorIs(t, err, ErrInvalidPEM)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cert.pem")
	require.NoError(t, os.WriteFile(path, testCertPEM(t, time.Now().AddDate(1, 0, 0)), 0o644))

	summary, _, err := LoadFile(path)
	require.NoError(t, err)
	assert.Contains(t, summary.Subject, "CN=web-01.internal")

	_, _, err = LoadFile(filepath.Join(t.TempDir(), "missing.pem"))
	require.Error(t, err)
}

func TestSummary_Expired(t *testing.T) {
	summary, _, err := Parse(testCertPEM(t, time.Now().AddDate(0, 0, -10)))
	require.NoError(t, err)

	assert.True(t, summary.IsExpired())
	assert.Negative(t, summary.DaysUntilExpiry())
}
