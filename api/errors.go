package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/jmcleod/certflux/csr"
	"github.com/jmcleod/certflux/keys"
	"github.com/jmcleod/certflux/sign"
	"github.com/jmcleod/certflux/store"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}

func mapError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, csr.ErrInvalidSAN),
		errors.Is(err, csr.ErrInvalidCSR),
		errors.Is(err, keys.ErrKeyTooSmall),
		errors.Is(err, keys.ErrEmptyPassphrase),
		errors.Is(err, sign.ErrInvalidValidity):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, keys.ErrDecryptionFailed):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, sign.ErrCAInconsistent):
		writeError(w, http.StatusConflict, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}
