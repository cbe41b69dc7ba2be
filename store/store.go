// Package store defines the issued-certificate inventory: every
// successful issuance is recorded so operators can list and look up
// certificates without re-parsing PEM files.
package store

import (
	"errors"
	"time"
)

// ErrNotFound is returned when no record exists for a serial.
var ErrNotFound = errors.New("certificate record not found")

// Record describes one issued certificate.
type Record struct {
	ID           string    `json:"id"`
	SerialNumber string    `json:"serial_number"`
	CommonName   string    `json:"common_name"`
	Subject      string    `json:"subject"`
	SANs         []string  `json:"sans,omitempty"`
	NotBefore    time.Time `json:"not_before"`
	NotAfter     time.Time `json:"not_after"`
	CertPath     string    `json:"cert_path,omitempty"`
	KeyPath      string    `json:"key_path,omitempty"`
	RunID        string    `json:"run_id,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// Repository persists certificate records keyed by serial number.
type Repository interface {
	Put(rec *Record) error
	Get(serial string) (*Record, error)
	List() ([]*Record, error)
	Close() error
}
