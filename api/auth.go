package api

import (
	"net/http"
	"strings"

	"github.com/jmcleod/certflux/internal/util"
)

// tokenVerifier holds an argon2id hash of the configured API token so
// the plaintext token never lives beyond construction.
type tokenVerifier struct {
	salt   []byte
	hash   []byte
	params util.Argon2idParams
}

func newTokenVerifier(token string) *tokenVerifier {
	salt, err := util.RandomBytes(16)
	if err != nil {
		// crypto/rand failure means the process cannot do anything
		// useful with key material either.
		panic("api: generating token salt: " + err.Error())
	}
	params := util.DefaultArgon2idParams()
	hash, err := util.DeriveArgon2idKey(token, salt, params)
	if err != nil {
		panic("api: hashing token: " + err.Error())
	}
	return &tokenVerifier{salt: salt, hash: hash, params: params}
}

func (v *tokenVerifier) verify(token string) bool {
	ok, err := util.CompareArgon2idKey(token, v.salt, v.params, v.hash)
	return err == nil && ok
}

// authMiddleware enforces the bearer token when one is configured.
func (a *API) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if a.token == nil {
			next.ServeHTTP(w, r)
			return
		}
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || !a.token.verify(token) {
			a.audit.log(AuditAuthFailure, r)
			writeError(w, http.StatusUnauthorized, "invalid or missing bearer token")
			return
		}
		next.ServeHTTP(w, r)
	})
}
