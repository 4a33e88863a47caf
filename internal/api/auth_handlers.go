package api

import (
	"net/http"

	"github.com/jbweber/hearth/internal/identity"
)

// issueTokenHandler handles POST /v1/auth/tokens.
//
// Every credential failure is a 401 with the same message.
func (a *API) issueTokenHandler(w http.ResponseWriter, r *http.Request) {
	var req TokenRequest
	if err := decodeJSON(w, r, &req); err != nil {
		a.fail(w, r, identity.ErrAuthentication)
		return
	}

	token, expiresAt, err := a.auth.Authenticate(r.Context(), req.Username, req.Password, req.ProjectName)
	if err != nil {
		a.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, TokenResponse{Token: token, ExpiresAt: expiresAt})
}

// revokeTokenHandler handles DELETE /v1/auth/tokens, ending the caller's session.
func (a *API) revokeTokenHandler(w http.ResponseWriter, r *http.Request) {
	if err := a.auth.InvalidateToken(r.Context(), tokenFrom(r.Context())); err != nil {
		a.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
