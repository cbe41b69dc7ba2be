package batch

import (
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmcleod/certflux/ca"
	"github.com/jmcleod/certflux/config"
	"github.com/jmcleod/certflux/csr"
	"github.com/jmcleod/certflux/keys"
	"github.com/jmcleod/certflux/store/memory"
)

func testConfig(t *testing.T) (*config.Config, *ca.Authority) {
	t.Helper()
	dir := t.TempDir()

	key, err := keys.Generate(2048)
	require.NoError(t, err)

	serial, err := rand.Int(rand.Reader, big.NewInt(1<<62))
	require.NoError(t, err)
	template := x509.Certificate{
		SerialNumber:          serial,
		Subject:               pkix.Name{CommonName: "Batch Test CA"},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().AddDate(1, 0, 0),
		IsCA:                  true,
		BasicConstraintsValid: true,
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageDigitalSignature,
	}
	der, err := x509.CreateCertificate(rand.Reader, &template, &template, key.Signer().Public(), key.Signer())
	require.NoError(t, err)

	certPath := filepath.Join(dir, "ca.cert.pem")
	keyPath := filepath.Join(dir, "ca.key.pem")
	require.NoError(t, os.WriteFile(certPath, pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der}), 0o644))
	require.NoError(t, key.Save(keyPath, nil, 0o600))

	authority, err := ca.Load(certPath, keyPath, nil)
	require.NoError(t, err)
	t.Cleanup(authority.Close)

	cfg := config.Default()
	cfg.WorkingDir = filepath.Join(dir, "work")
	cfg.OutputDir = filepath.Join(dir, "out")
	cfg.CACertPath = certPath
	cfg.CAKeyPath = keyPath
	cfg.InventoryPath = ""
	cfg.Defaults.CertDays = 30
	return cfg, authority
}

func TestRunner_Run(t *testing.T) {
	cfg, authority := testConfig(t)
	runner := NewRunner(cfg, authority)

	issued, err := runner.Run(Job{
		Name: "web-01.internal",
		SANs: []csr.SAN{{Kind: csr.KindDNS, Value: "web-01.internal"}},
	})
	require.NoError(t, err)

	assert.Equal(t, "web-01.internal", issued.Name)
	assert.NotEmpty(t, issued.SerialNumber)
	assert.NotEmpty(t, issued.CertPEM)
	assert.NotEmpty(t, issued.KeyPEM)

	// Intermediate layout.
	inter := filepath.Join(cfg.WorkingDir, "intermediate")
	for _, p := range []string{
		filepath.Join(inter, "private", "web-01.internal.key.pem"),
		filepath.Join(inter, "csr", "web-01.internal.csr.pem"),
		filepath.Join(inter, "certs", "web-01.internal.cert.pem"),
		filepath.Join(inter, "certs", "web-01.internal.crt"),
	} {
		_, err := os.Stat(p)
		require.NoError(t, err, p)
	}

	// Published artifacts with re-applied permissions.
	keyInfo, err := os.Stat(filepath.Join(cfg.OutputDir, "web-01.internal.key.pem"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o400), keyInfo.Mode().Perm())

	certInfo, err := os.Stat(filepath.Join(cfg.OutputDir, "web-01.internal.cert.pem"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o755), certInfo.Mode().Perm())

	// Both certificate encodings carry identical bytes.
	pemBytes, err := os.ReadFile(filepath.Join(cfg.OutputDir, "web-01.internal.cert.pem"))
	require.NoError(t, err)
	crtBytes, err := os.ReadFile(filepath.Join(cfg.OutputDir, "web-01.internal.crt"))
	require.NoError(t, err)
	assert.Equal(t, pemBytes, crtBytes)

	// Private key permission in the working tree.
	workKeyInfo, err := os.Stat(filepath.Join(inter, "private", "web-01.internal.key.pem"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o400), workKeyInfo.Mode().Perm())
}

func TestRunner_Run_EncryptedKey(t *testing.T) {
	cfg, authority := testConfig(t)
	runner := NewRunner(cfg, authority)

	issued, err := runner.Run(Job{Name: "enc.internal", Passphrase: []byte("hunter2")})
	require.NoError(t, err)

	assert.True(t, keys.IsEncryptedPEM(issued.KeyPEM))

	enc, err := keys.IsEncryptedFile(issued.KeyPath)
	require.NoError(t, err)
	assert.True(t, enc)
}

func TestRunner_Run_ForeignCSRProducesNoKey(t *testing.T) {
	cfg, authority := testConfig(t)
	runner := NewRunner(cfg, authority)

	subject, err := keys.Generate(2048)
	require.NoError(t, err)
	req, err := csr.New("foreign.internal", subject.Signer(), nil)
	require.NoError(t, err)

	issued, err := runner.Run(Job{Name: "foreign.internal", Request: req})
	require.NoError(t, err)

	assert.Empty(t, issued.KeyPEM)
	assert.Empty(t, issued.KeyPath)
	_, err = os.Stat(filepath.Join(cfg.OutputDir, "foreign.internal.key.pem"))
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(cfg.WorkingDir, "intermediate", "private", "foreign.internal.key.pem"))
	assert.True(t, os.IsNotExist(err))
}

func TestRunner_Run_Idempotent(t *testing.T) {
	cfg, authority := testConfig(t)
	runner := NewRunner(cfg, authority)

	first, err := runner.Run(Job{Name: "rerun.internal"})
	require.NoError(t, err)
	second, err := runner.Run(Job{Name: "rerun.internal"})
	require.NoError(t, err)

	// A re-run replaces the artifacts under a fresh serial.
	assert.NotEqual(t, first.SerialNumber, second.SerialNumber)
}

func TestRunner_Run_Overrides(t *testing.T) {
	cfg, authority := testConfig(t)
	runner := NewRunner(cfg, authority)

	issued, err := runner.Run(Job{Name: "short.internal", ValidityDays: 7})
	require.NoError(t, err)
	assert.WithinDuration(t, issued.NotBefore.AddDate(0, 0, 7), issued.NotAfter, 2*time.Second)
}

func TestRunner_Run_StepLabelledErrors(t *testing.T) {
	cfg, authority := testConfig(t)
	runner := NewRunner(cfg, authority)

	_, err := runner.Run(Job{
		Name: "bad.internal",
		SANs: []csr.SAN{{Kind: csr.KindIP, Value: "not-an-ip"}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "build CSR")
	require.ErrorIs(t, err, csr.ErrInvalidSAN)
}

func TestRunner_Run_RecordsInventory(t *testing.T) {
	cfg, authority := testConfig(t)
	repo := memory.NewRepository()
	runner := NewRunner(cfg, authority, WithInventory(repo))

	issued, err := runner.Run(Job{
		Name: "inv.internal",
		SANs: []csr.SAN{{Kind: csr.KindDNS, Value: "inv.internal"}},
	})
	require.NoError(t, err)

	rec, err := repo.Get(issued.SerialNumber)
	require.NoError(t, err)
	assert.Equal(t, "inv.internal", rec.CommonName)
	assert.Equal(t, []string{"DNS:inv.internal"}, rec.SANs)
	assert.Equal(t, runner.RunID(), rec.RunID)
}

func coordinatorJobs(good, bad int) []Job {
	jobs := make([]Job, 0, good+bad)
	for i := 0; i < good+bad; i++ {
		job := Job{Name: fmt.Sprintf("host-%02d.internal", i)}
		if i < bad {
			job.SANs = []csr.SAN{{Kind: csr.KindIP, Value: "bogus"}}
		}
		jobs = append(jobs, job)
	}
	return jobs
}

func TestCoordinator_Sequential(t *testing.T) {
	cfg, authority := testConfig(t)
	runner := NewRunner(cfg, authority)
	jobs := coordinatorJobs(8, 2)

	result := NewCoordinator(runner, false, 0).Process(jobs)

	assert.Equal(t, 8, result.Successful)
	assert.Equal(t, 2, result.Failed)
	assert.Equal(t, len(jobs), result.Successful+result.Failed)
	require.Len(t, result.Errors, 2)
	assert.Equal(t, "host-00.internal", result.Errors[0].Name)
	assert.Equal(t, "host-01.internal", result.Errors[1].Name)
}

func TestCoordinator_Parallel(t *testing.T) {
	cfg, authority := testConfig(t)
	runner := NewRunner(cfg, authority)
	jobs := coordinatorJobs(8, 2)

	result := NewCoordinator(runner, true, 4).Process(jobs)

	assert.Equal(t, 8, result.Successful)
	assert.Equal(t, 2, result.Failed)
	require.Len(t, result.Errors, 2)
	// Input order regardless of completion order.
	assert.Equal(t, "host-00.internal", result.Errors[0].Name)
	assert.Equal(t, "host-01.internal", result.Errors[1].Name)
}

func TestCoordinator_ParallelSingleWorkerFloor(t *testing.T) {
	cfg, authority := testConfig(t)
	runner := NewRunner(cfg, authority)
	jobs := coordinatorJobs(2, 0)

	result := NewCoordinator(runner, true, 0).Process(jobs)
	assert.Equal(t, 2, result.Successful)
	assert.Zero(t, result.Failed)
}

func TestCoordinator_EmptyBatch(t *testing.T) {
	cfg, authority := testConfig(t)
	runner := NewRunner(cfg, authority)

	result := NewCoordinator(runner, false, 0).Process(nil)
	assert.Zero(t, result.Successful)
	assert.Zero(t, result.Failed)
	assert.Empty(t, result.Errors)
}

func TestBuildJobs(t *testing.T) {
	sans := []csr.SAN{{Kind: csr.KindDNS, Value: "shared.internal"}}
	jobs := BuildJobs([]string{"a", "b"}, sans, []byte("pw"))

	require.Len(t, jobs, 2)
	assert.Equal(t, "a", jobs[0].Name)
	assert.Equal(t, "b", jobs[1].Name)
	assert.Equal(t, sans, jobs[0].SANs)
	assert.Equal(t, []byte("pw"), jobs[1].Passphrase)
}

func TestFindCSRFiles(t *testing.T) {
	dir := t.TempDir()

	subject, err := keys.Generate(2048)
	require.NoError(t, err)
	for _, name := range []string{"beta", "alpha"} {
		req, err := csr.New(name+".internal", subject.Signer(), nil)
		require.NoError(t, err)
		require.NoError(t, req.Save(filepath.Join(dir, name+".csr.pem"), 0o644))
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ignored.txt"), []byte("x"), 0o644))

	files, err := FindCSRFiles(dir)
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, "alpha", files[0].Name)
	assert.Equal(t, "beta", files[1].Name)
}

func TestFindCSRFiles_Empty(t *testing.T) {
	_, err := FindCSRFiles(t.TempDir())
	require.ErrorIs(t, err, ErrNoCSRFiles)
}

func TestFilterCSRFiles(t *testing.T) {
	files := []CSRFile{{Name: "web-01"}, {Name: "db-01"}, {Name: "web-02"}}

	filtered := FilterCSRFiles(files, "web")
	require.Len(t, filtered, 2)
	assert.Equal(t, "web-01", filtered[0].Name)

	assert.Equal(t, files, FilterCSRFiles(files, ""))
}

func TestJobsFromCSRFiles_BadFileBecomesFailedJob(t *testing.T) {
	cfg, authority := testConfig(t)
	dir := t.TempDir()

	subject, err := keys.Generate(2048)
	require.NoError(t, err)
	req, err := csr.New("good.internal", subject.Signer(), nil)
	require.NoError(t, err)
	require.NoError(t, req.Save(filepath.Join(dir, "good.csr.pem"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.csr"), []byte("garbage"), 0o644))

	files, err := FindCSRFiles(dir)
	require.NoError(t, err)
	jobs := JobsFromCSRFiles(files)
	require.Len(t, jobs, 2)

	runner := NewRunner(cfg, authority)
	result := NewCoordinator(runner, false, 0).Process(jobs)

	assert.Equal(t, 1, result.Successful)
	assert.Equal(t, 1, result.Failed)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "bad", result.Errors[0].Name)
	assert.Contains(t, result.Errors[0].Message, "load CSR")
}
