// Package batch runs certificate issuance pipelines: a Runner executes
// the sequential pipeline for one identifier, a Coordinator fans a
// collection of jobs out over a worker pool and aggregates the report.
package batch

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/jmcleod/certflux/ca"
	"github.com/jmcleod/certflux/config"
	"github.com/jmcleod/certflux/csr"
	"github.com/jmcleod/certflux/internal/fsutil"
	"github.com/jmcleod/certflux/internal/util"
	"github.com/jmcleod/certflux/keys"
	"github.com/jmcleod/certflux/sign"
	"github.com/jmcleod/certflux/store"
)

// Job describes one certificate to issue.
type Job struct {
	// Name identifies the certificate and names its artifact files.
	Name string

	// CommonName overrides the subject CN; Name is used when empty.
	CommonName string

	// SANs are embedded in the generated CSR. Ignored when Request is
	// set (a foreign CSR already declares its own).
	SANs []csr.SAN

	// Passphrase, when non-nil, encrypts the generated private key.
	// Interactive collection happens before fan-out, never mid-pool.
	Passphrase []byte

	// Request, when set, is an externally supplied CSR: the pipeline
	// skips key generation and produces no private key artifacts.
	Request *csr.Request

	// ValidityDays and KeySize override the runner defaults when
	// positive.
	ValidityDays int
	KeySize      int

	// loadErr carries a CSR load failure from the scan phase so it is
	// reported as this job's failure instead of aborting the batch.
	loadErr error
}

// Issued reports the artifacts of a successful job.
type Issued struct {
	Name         string    `json:"name"`
	SerialNumber string    `json:"serial_number"`
	NotBefore    time.Time `json:"not_before"`
	NotAfter     time.Time `json:"not_after"`
	CertPEM      []byte    `json:"-"`
	KeyPEM       []byte    `json:"-"`
	CertPath     string    `json:"cert_path"`
	KeyPath      string    `json:"key_path,omitempty"`
}

// Runner executes the issuance pipeline against one loaded CA. It is
// safe for concurrent use: the CA handle is read-only after load and
// every job writes only its own files.
type Runner struct {
	workingDir   string
	outputDir    string
	keySize      int
	validityDays int
	keyMode      os.FileMode
	certMode     os.FileMode
	dirMode      os.FileMode

	authority *ca.Authority
	inventory store.Repository
	logger    *slog.Logger
	runID     string
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithInventory records successful issuances in repo.
func WithInventory(repo store.Repository) RunnerOption {
	return func(r *Runner) { r.inventory = repo }
}

// WithLogger sets the runner's logger.
func WithLogger(logger *slog.Logger) RunnerOption {
	return func(r *Runner) { r.logger = logger }
}

// WithValidityDays overrides the configured validity window.
func WithValidityDays(days int) RunnerOption {
	return func(r *Runner) { r.validityDays = days }
}

// WithKeySize overrides the configured key size.
func WithKeySize(bits int) RunnerOption {
	return func(r *Runner) { r.keySize = bits }
}

// NewRunner builds a Runner from the configuration and a loaded CA.
func NewRunner(cfg *config.Config, authority *ca.Authority, opts ...RunnerOption) *Runner {
	r := &Runner{
		workingDir:   cfg.WorkingDir,
		outputDir:    cfg.OutputDir,
		keySize:      cfg.Defaults.KeySize,
		validityDays: cfg.Defaults.CertDays,
		keyMode:      cfg.PrivateKeyMode(),
		certMode:     cfg.CertificateMode(),
		dirMode:      cfg.OutputDirMode(),
		authority:    authority,
		runID:        uuid.NewString(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	return r
}

// RunID identifies this runner's batch in inventory records.
func (r *Runner) RunID() string {
	return r.runID
}

// Run executes the pipeline for one job. The first failing step aborts
// this job only, and its error names the step. Already-written files
// are left in place: re-running the same identifier overwrites them.
func (r *Runner) Run(job Job) (*Issued, error) {
	if job.loadErr != nil {
		return nil, fmt.Errorf("load CSR: %w", job.loadErr)
	}

	interDir := filepath.Join(r.workingDir, "intermediate")
	privateDir := filepath.Join(interDir, "private")
	csrDir := filepath.Join(interDir, "csr")
	certsDir := filepath.Join(interDir, "certs")

	for _, dir := range []string{privateDir, csrDir, certsDir} {
		if err := fsutil.EnsureDir(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create directories: %w", err)
		}
	}
	if err := fsutil.EnsureDir(r.outputDir, r.dirMode); err != nil {
		return nil, fmt.Errorf("create directories: %w", err)
	}

	issued := &Issued{Name: job.Name}
	request := job.Request
	keyPath := ""

	keySize := r.keySize
	if job.KeySize > 0 {
		keySize = job.KeySize
	}
	validityDays := r.validityDays
	if job.ValidityDays > 0 {
		validityDays = job.ValidityDays
	}

	if request == nil {
		key, err := keys.Generate(keySize)
		if err != nil {
			return nil, fmt.Errorf("generate key: %w", err)
		}
		defer key.Destroy()

		// The private key lands on disk, locked down, before any other
		// artifact exists.
		keyPath = filepath.Join(privateDir, job.Name+".key.pem")
		if err := key.Save(keyPath, job.Passphrase, r.keyMode); err != nil {
			return nil, fmt.Errorf("persist key: %w", err)
		}

		cn := job.CommonName
		if cn == "" {
			cn = job.Name
		}
		request, err = csr.New(cn, key.Signer(), job.SANs)
		if err != nil {
			return nil, fmt.Errorf("build CSR: %w", err)
		}
		if err := request.Save(filepath.Join(csrDir, job.Name+".csr.pem"), 0o644); err != nil {
			return nil, fmt.Errorf("persist CSR: %w", err)
		}

		keyPEM, err := key.EncodePEM(job.Passphrase)
		if err != nil {
			return nil, fmt.Errorf("persist key: %w", err)
		}
		issued.KeyPEM = keyPEM
	}

	cert, err := sign.Sign(request, r.authority, validityDays)
	if err != nil {
		return nil, fmt.Errorf("sign certificate: %w", err)
	}

	certPEMPath := filepath.Join(certsDir, job.Name+".cert.pem")
	certCRTPath := filepath.Join(certsDir, job.Name+".crt")
	if err := cert.Save(certPEMPath, r.certMode); err != nil {
		return nil, fmt.Errorf("persist certificate: %w", err)
	}
	// The .crt copy carries identical PEM bytes under the extension
	// some consumers expect.
	if err := cert.Save(certCRTPath, r.certMode); err != nil {
		return nil, fmt.Errorf("persist certificate: %w", err)
	}

	// Publish. Copying resets permissions, so the policy is re-applied
	// on every target rather than assumed inherited.
	outCertPEM := filepath.Join(r.outputDir, job.Name+".cert.pem")
	outCertCRT := filepath.Join(r.outputDir, job.Name+".crt")
	if err := fsutil.CopyFile(certPEMPath, outCertPEM, r.certMode); err != nil {
		return nil, fmt.Errorf("publish certificate: %w", err)
	}
	if err := fsutil.CopyFile(certCRTPath, outCertCRT, r.certMode); err != nil {
		return nil, fmt.Errorf("publish certificate: %w", err)
	}
	if keyPath != "" {
		outKey := filepath.Join(r.outputDir, job.Name+".key.pem")
		if err := fsutil.CopyFile(keyPath, outKey, r.keyMode); err != nil {
			return nil, fmt.Errorf("publish key: %w", err)
		}
		issued.KeyPath = outKey
	}

	issued.SerialNumber = fmt.Sprintf("%x", cert.X509.SerialNumber)
	issued.NotBefore = cert.X509.NotBefore
	issued.NotAfter = cert.X509.NotAfter
	issued.CertPEM = cert.EncodePEM()
	issued.CertPath = outCertPEM

	r.record(job, request, issued)
	return issued, nil
}

// record writes the inventory entry. Inventory is reporting, not part
// of the issuance contract: a write failure is logged, not escalated.
func (r *Runner) record(job Job, request *csr.Request, issued *Issued) {
	if r.inventory == nil {
		return
	}
	sans := request.SANs()
	sanStrs := make([]string, len(sans))
	for i, s := range sans {
		sanStrs[i] = s.String()
	}
	rec := &store.Record{
		ID:           uuid.NewString(),
		SerialNumber: issued.SerialNumber,
		CommonName:   request.CommonName(),
		Subject:      util.FormatName(request.Raw().Subject),
		SANs:         sanStrs,
		NotBefore:    issued.NotBefore,
		NotAfter:     issued.NotAfter,
		CertPath:     issued.CertPath,
		KeyPath:      issued.KeyPath,
		RunID:        r.runID,
		CreatedAt:    time.Now().UTC(),
	}
	if err := r.inventory.Put(rec); err != nil {
		r.logger.Warn("failed to record issued certificate",
			"name", job.Name, "serial", issued.SerialNumber, "error", err)
	}
}
