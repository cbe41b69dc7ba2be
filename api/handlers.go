package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"log/slog"

	"github.com/jmcleod/certflux/batch"
	"github.com/jmcleod/certflux/csr"
)

// handleIssueCertificate generates a key pair, builds a CSR and issues
// a certificate in one call. Artifacts are persisted through the same
// pipeline the CLI uses; the PEMs are also returned to the caller.
func (a *API) handleIssueCertificate(w http.ResponseWriter, r *http.Request) {
	var req IssueCertificateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	if req.PasswordProtect && req.KeyPassword == "" {
		writeError(w, http.StatusBadRequest, "key_password is required when password_protect is set")
		return
	}

	var sans []csr.SAN
	for _, s := range req.SANs {
		san, err := csr.ParseSAN(s)
		if err != nil {
			mapError(w, err)
			return
		}
		sans = append(sans, san)
	}

	job := batch.Job{
		Name:         req.Name,
		CommonName:   req.CommonName,
		SANs:         sans,
		ValidityDays: req.ValidityDays,
		KeySize:      req.KeySize,
	}
	if req.PasswordProtect {
		job.Passphrase = []byte(req.KeyPassword)
	}

	issued, err := a.runner.Run(job)
	if err != nil {
		a.audit.log(AuditCertFailed, r, slog.String("name", req.Name), slog.String("error", err.Error()))
		mapError(w, err)
		return
	}

	a.audit.log(AuditCertIssued, r,
		slog.String("name", issued.Name),
		slog.String("serial", issued.SerialNumber))

	writeJSON(w, http.StatusCreated, IssueCertificateResponse{
		Name:           issued.Name,
		SerialNumber:   issued.SerialNumber,
		NotBefore:      issued.NotBefore.Format(time.RFC3339),
		NotAfter:       issued.NotAfter.Format(time.RFC3339),
		CertificatePEM: string(issued.CertPEM),
		PrivateKeyPEM:  string(issued.KeyPEM),
	})
}

// handleSignCSR signs a caller-supplied CSR. The CSR's self-signature
// is verified before any of its fields are trusted; no private key
// material is produced for foreign requests.
func (a *API) handleSignCSR(w http.ResponseWriter, r *http.Request) {
	var req SignCSRRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Name == "" || req.CSRPEM == "" {
		writeError(w, http.StatusBadRequest, "name and csr_pem are required")
		return
	}

	request, err := csr.ParsePEM([]byte(req.CSRPEM))
	if err != nil {
		a.audit.log(AuditCSRRejected, r, slog.String("name", req.Name), slog.String("error", err.Error()))
		mapError(w, err)
		return
	}

	issued, err := a.runner.Run(batch.Job{
		Name:         req.Name,
		Request:      request,
		ValidityDays: req.ValidityDays,
	})
	if err != nil {
		a.audit.log(AuditCSRRejected, r, slog.String("name", req.Name), slog.String("error", err.Error()))
		mapError(w, err)
		return
	}

	a.audit.log(AuditCSRSigned, r,
		slog.String("name", issued.Name),
		slog.String("serial", issued.SerialNumber))

	writeJSON(w, http.StatusCreated, SignCSRResponse{
		Name:           issued.Name,
		SerialNumber:   issued.SerialNumber,
		NotBefore:      issued.NotBefore.Format(time.RFC3339),
		NotAfter:       issued.NotAfter.Format(time.RFC3339),
		CertificatePEM: string(issued.CertPEM),
	})
}

// handleListCertificates returns the inventory, newest first.
func (a *API) handleListCertificates(w http.ResponseWriter, r *http.Request) {
	if a.inventory == nil {
		writeJSON(w, http.StatusOK, ListCertificatesResponse{})
		return
	}
	recs, err := a.inventory.List()
	if err != nil {
		mapError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ListCertificatesResponse{Certificates: recs})
}

// handleGetCertificate returns one inventory record by serial.
func (a *API) handleGetCertificate(w http.ResponseWriter, r *http.Request) {
	if a.inventory == nil {
		writeError(w, http.StatusNotFound, "inventory is not configured")
		return
	}
	rec, err := a.inventory.Get(chi.URLParam(r, "serial"))
	if err != nil {
		mapError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// handleCAInfo describes the loaded CA.
func (a *API) handleCAInfo(w http.ResponseWriter, r *http.Request) {
	cert := a.authority.Certificate()
	writeJSON(w, http.StatusOK, CAInfoResponse{
		Subject:    a.authority.Subject(),
		NotBefore:  cert.NotBefore.UTC().Format(time.RFC3339),
		NotAfter:   cert.NotAfter.UTC().Format(time.RFC3339),
		Consistent: a.authority.VerifySelfConsistency(),
	})
}
