package api

import "github.com/jmcleod/certflux/store"

// ErrorResponse is the JSON body for all error replies.
type ErrorResponse struct {
	Error string `json:"error"`
}

// IssueCertificateRequest is the JSON body for POST /certificates.
type IssueCertificateRequest struct {
	Name            string   `json:"name"`
	CommonName      string   `json:"common_name,omitempty"`
	SANs            []string `json:"sans,omitempty"`
	PasswordProtect bool     `json:"password_protect,omitempty"`
	KeyPassword     string   `json:"key_password,omitempty"`
	ValidityDays    int      `json:"validity_days,omitempty"`
	KeySize         int      `json:"key_size,omitempty"`
}

// IssueCertificateResponse is returned from POST /certificates.
type IssueCertificateResponse struct {
	Name           string `json:"name"`
	SerialNumber   string `json:"serial_number"`
	NotBefore      string `json:"not_before"`
	NotAfter       string `json:"not_after"`
	CertificatePEM string `json:"certificate_pem"`
	PrivateKeyPEM  string `json:"private_key_pem,omitempty"`
}

// SignCSRRequest is the JSON body for POST /csr/sign.
type SignCSRRequest struct {
	Name         string `json:"name"`
	CSRPEM       string `json:"csr_pem"`
	ValidityDays int    `json:"validity_days,omitempty"`
}

// SignCSRResponse is returned from POST /csr/sign.
type SignCSRResponse struct {
	Name           string `json:"name"`
	SerialNumber   string `json:"serial_number"`
	NotBefore      string `json:"not_before"`
	NotAfter       string `json:"not_after"`
	CertificatePEM string `json:"certificate_pem"`
}

// ListCertificatesResponse is returned from GET /certificates.
type ListCertificatesResponse struct {
	Certificates []*store.Record `json:"certificates"`
}

// CAInfoResponse is returned from GET /ca.
type CAInfoResponse struct {
	Subject    string `json:"subject"`
	NotBefore  string `json:"not_before"`
	NotAfter   string `json:"not_after"`
	Consistent bool   `json:"consistent"`
}
