package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/iho/bankledger/internal/adapter/http/dto"
	"github.com/iho/bankledger/internal/adapter/http/middleware"
	"github.com/iho/bankledger/internal/domain"
)

const detailServerError = "A server error occurred."

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError writes a {"detail": ...} response.
func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, dto.DetailResponse{Detail: detail})
}

// writeDomainError answers with the status mapDomainError picks. Unexpected
// errors are logged and hidden from the caller.
func writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	status := mapDomainError(err)
	if status == http.StatusInternalServerError {
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("request failed")
		writeError(w, status, detailServerError)
		return
	}

	writeError(w, status, err.Error())
}

// mapDomainError maps domain errors to HTTP status codes. Every business
// rejection is a 400.
func mapDomainError(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidInput),
		errors.Is(err, domain.ErrAccountNotFound),
		errors.Is(err, domain.ErrReceiverNotFound),
		errors.Is(err, domain.ErrCardRequired),
		errors.Is(err, domain.ErrReceiverCardRequired),
		errors.Is(err, domain.ErrInsufficientBalance),
		errors.Is(err, domain.ErrAccountExists),
		errors.Is(err, domain.ErrCardExists),
		errors.Is(err, domain.ErrAccountPending):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrCardNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrInsufficientRole):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrStorageConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// writeLookupError is writeDomainError for reads, where a missing account is 404.
func writeLookupError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, domain.ErrAccountNotFound) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}

	writeDomainError(w, r, err)
}

// currentUser returns the authenticated caller, answering 401 when missing.
func currentUser(w http.ResponseWriter, r *http.Request) (domain.User, bool) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Authentication credentials were not provided.")
	}

	return user, ok
}

// parseIntQuery parses an integer query parameter with a default value.
func parseIntQuery(r *http.Request, key string, defaultValue int) int {
	val := r.URL.Query().Get(key)
	if val == "" {
		return defaultValue
	}
	i, err := strconv.Atoi(val)
	if err != nil {
		return defaultValue
	}
	return i
}
