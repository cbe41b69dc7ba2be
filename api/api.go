// Package api exposes the certificate issuance pipeline over HTTP. It
// is a caller of the core packages, not part of them: every endpoint
// funnels into the same batch.Runner/sign path the CLI uses.
package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/jmcleod/certflux/batch"
	"github.com/jmcleod/certflux/ca"
	"github.com/jmcleod/certflux/store"
)

// API holds the dependencies needed by the REST handlers.
type API struct {
	runner    *batch.Runner
	authority *ca.Authority
	inventory store.Repository
	audit     *auditLogger
	token     *tokenVerifier
}

// Option configures the API instance.
type Option func(*API)

// WithLogger sets the structured logger for audit events. The process
// default logger is used when not set.
func WithLogger(logger *slog.Logger) Option {
	return func(a *API) {
		a.audit = newAuditLogger(logger)
	}
}

// WithToken enables bearer-token authentication. The token itself is
// not retained; only an argon2id hash is kept for comparison.
func WithToken(token string) Option {
	return func(a *API) {
		a.token = newTokenVerifier(token)
	}
}

// New creates a new API instance.
func New(runner *batch.Runner, authority *ca.Authority, inventory store.Repository, opts ...Option) *API {
	a := &API{
		runner:    runner,
		authority: authority,
		inventory: inventory,
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.audit == nil {
		a.audit = newAuditLogger(slog.Default())
	}
	return a
}

// Router returns a chi.Router with all API routes mounted.
func (a *API) Router() chi.Router {
	r := chi.NewRouter()

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK"))
	})

	r.Group(func(r chi.Router) {
		r.Use(a.authMiddleware)
		r.Post("/certificates", a.handleIssueCertificate)
		r.Get("/certificates", a.handleListCertificates)
		r.Get("/certificates/{serial}", a.handleGetCertificate)
		r.Post("/csr/sign", a.handleSignCSR)
		r.Get("/ca", a.handleCAInfo)
	})

	return r
}
