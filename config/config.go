// Package config loads certflux's TOML configuration: PKI directory
// layout, CA material paths, issuance defaults, the file permission
// policy and batch behavior.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/naoina/toml"
)

var (
	// ErrNotFound is returned when the config file does not exist.
	ErrNotFound = errors.New("configuration file not found")

	// ErrInvalid is returned for semantically invalid configuration.
	ErrInvalid = errors.New("invalid configuration")
)

// Config is the top-level configuration.
type Config struct {
	// WorkingDir is the PKI working directory; intermediate artifacts
	// live under <WorkingDir>/intermediate.
	WorkingDir string `toml:"working_dir"`

	// OutputDir receives the published certificate and key copies.
	OutputDir string `toml:"output_dir"`

	// CSRInputDir is scanned by batch mode for *.csr files.
	CSRInputDir string `toml:"csr_input_dir"`

	// CAKeyPath is the intermediate CA private key (possibly encrypted).
	CAKeyPath string `toml:"ca_key_path"`

	// CACertPath is the intermediate CA certificate.
	CACertPath string `toml:"ca_cert_path"`

	// InventoryPath is the bbolt database recording issued
	// certificates. Empty disables the inventory.
	InventoryPath string `toml:"inventory_path"`

	Defaults    Defaults    `toml:"defaults"`
	Permissions Permissions `toml:"permissions"`
	Batch       Batch       `toml:"batch"`
}

// Defaults holds per-certificate issuance defaults.
type Defaults struct {
	KeySize  int `toml:"key_size"`
	CertDays int `toml:"cert_days"`
}

// Permissions is the file permission policy, expressed as octal
// strings ("0400"). The certificate default of 0755 mirrors the layout
// this tool manages; it is caller-configurable.
type Permissions struct {
	PrivateKey  string `toml:"private_key"`
	Certificate string `toml:"certificate"`
	OutputDir   string `toml:"output_dir"`
}

// Batch controls batch processing.
type Batch struct {
	Parallel   bool `toml:"parallel"`
	MaxWorkers int  `toml:"max_workers"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		WorkingDir:    "/etc/flux-pki",
		OutputDir:     "/etc/flux-pki/out",
		CSRInputDir:   "/etc/flux-pki/csr-in",
		CAKeyPath:     "/etc/flux-pki/intermediate/private/intermediate.key.pem",
		CACertPath:    "/etc/flux-pki/intermediate/certs/intermediate.cert.pem",
		InventoryPath: "/etc/flux-pki/inventory.db",
		Defaults: Defaults{
			KeySize:  2048,
			CertDays: 375,
		},
		Permissions: Permissions{
			PrivateKey:  "0400",
			Certificate: "0755",
			OutputDir:   "0755",
		},
		Batch: Batch{
			Parallel:   false,
			MaxWorkers: 4,
		},
	}
}

// Load reads and validates the configuration at path, applying
// defaults for absent fields.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	cfg := Default()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the configuration for semantic errors.
func (c *Config) Validate() error {
	if c.WorkingDir == "" {
		return fmt.Errorf("%w: working_dir must be set", ErrInvalid)
	}
	if c.OutputDir == "" {
		return fmt.Errorf("%w: output_dir must be set", ErrInvalid)
	}
	if c.CAKeyPath == "" || c.CACertPath == "" {
		return fmt.Errorf("%w: ca_key_path and ca_cert_path must be set", ErrInvalid)
	}
	if c.Defaults.KeySize < 2048 {
		return fmt.Errorf("%w: key_size %d below minimum 2048", ErrInvalid, c.Defaults.KeySize)
	}
	if c.Defaults.CertDays <= 0 {
		return fmt.Errorf("%w: cert_days must be positive", ErrInvalid)
	}
	if c.Batch.MaxWorkers < 0 {
		return fmt.Errorf("%w: max_workers must not be negative", ErrInvalid)
	}
	for name, v := range map[string]string{
		"permissions.private_key": c.Permissions.PrivateKey,
		"permissions.certificate": c.Permissions.Certificate,
		"permissions.output_dir":  c.Permissions.OutputDir,
	} {
		if _, err := parseMode(v); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrInvalid, name, err)
		}
	}
	return nil
}

// PrivateKeyMode returns the private key file mode.
func (c *Config) PrivateKeyMode() os.FileMode {
	return mustMode(c.Permissions.PrivateKey)
}

// CertificateMode returns the certificate file mode.
func (c *Config) CertificateMode() os.FileMode {
	return mustMode(c.Permissions.Certificate)
}

// OutputDirMode returns the output directory mode.
func (c *Config) OutputDirMode() os.FileMode {
	return mustMode(c.Permissions.OutputDir)
}

// Save writes the configuration to path as TOML, creating parent
// directories as needed.
func (c *Config) Save(path string) error {
	data, err := toml.Marshal(c)
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config %s: %w", path, err)
	}
	return nil
}

func parseMode(s string) (os.FileMode, error) {
	n, err := strconv.ParseUint(s, 8, 32)
	if err != nil {
		return 0, fmt.Errorf("%q is not an octal mode", s)
	}
	if n > 0o777 {
		return 0, fmt.Errorf("%q exceeds 0777", s)
	}
	return os.FileMode(n), nil
}

// mustMode assumes Validate has run; it falls back to a conservative
// mode if it has not.
func mustMode(s string) os.FileMode {
	mode, err := parseMode(s)
	if err != nil {
		return 0o600
	}
	return mode
}
