package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/jackc/pgx/v5"

	"github.com/cuemby/datadex/pkg/log"
	"github.com/cuemby/datadex/pkg/types"
)

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Code    int    `json:"code"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.WithComponent("api").Error().Err(err).Msg("failed to encode response")
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorBody{
		Code:    status,
		Status:  http.StatusText(status),
		Message: message,
	})
}

// writeTaxonomyError maps a taxonomy error to a status: bad input is the
// client's fault, failed credentials are unauthorized, a missing row is not
// found, and everything else is a server error.
func writeTaxonomyError(w http.ResponseWriter, err error) {
	switch {
	case types.IsKind(err, types.KindInputValidation):
		writeError(w, http.StatusBadRequest, err.Error())
	case types.IsKind(err, types.KindAuth):
		writeError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, pgx.ErrNoRows):
		writeError(w, http.StatusNotFound, "not found")
	default:
		log.WithComponent("api").Error().Err(err).Msg("request failed")
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
