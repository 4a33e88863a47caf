package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/jbweber/hearth/internal/identity"
	"github.com/jbweber/hearth/internal/vm"
)

var (
	errMissingToken = errors.New("missing " + TokenHeader + " header")
	errForbidden    = errors.New("insufficient role for this operation")
	errInvalidJSON  = errors.New("invalid or missing JSON body")
)

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, errMissingToken),
		errors.Is(err, identity.ErrAuthentication),
		errors.Is(err, identity.ErrTokenInvalid):
		return http.StatusUnauthorized

	case errors.Is(err, errForbidden):
		return http.StatusForbidden

	case errors.Is(err, vm.ErrVMNotFound),
		errors.Is(err, identity.ErrProjectNotFound),
		errors.Is(err, identity.ErrUserNotFound),
		errors.Is(err, identity.ErrRoleNotFound):
		return http.StatusNotFound

	case errors.Is(err, identity.ErrProjectNotEmpty):
		return http.StatusConflict

	case errors.Is(err, errInvalidJSON),
		errors.Is(err, vm.ErrInvalidRequest),
		errors.Is(err, vm.ErrImageNotFound),
		errors.Is(err, vm.ErrVMAlreadyExists),
		errors.Is(err, identity.ErrInvalidInput),
		errors.Is(err, identity.ErrProjectExists),
		errors.Is(err, identity.ErrUserExists):
		return http.StatusBadRequest

	default:
		return http.StatusInternalServerError
	}
}

// fail writes err as an error response with the mapped status.
func (a *API) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	level := slog.LevelInfo
	if status >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	a.logger.Log(r.Context(), level, "request failed",
		"method", r.Method,
		"path", r.URL.Path,
		"status", status,
		"error", err,
	)
	writeError(w, status, err.Error())
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Default().Warn("failed to encode response", "error", err)
	}
}

// decodeJSON reads a bounded JSON body into dst.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return fmt.Errorf("%w: %v", errInvalidJSON, err)
	}
	return nil
}

// idParam parses a numeric URL parameter. Malformed ids are reported with
// notFound so that /projects/abc behaves like an unknown project.
func idParam(r *http.Request, name string, notFound error) (uint, error) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("%w: %q", notFound, raw)
	}
	return uint(id), nil
}
