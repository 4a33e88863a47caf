package api

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/jbweber/hearth/internal/session"
)

type ctxKey int

const (
	sessionKey ctxKey = iota
	tokenKey
)

// sessionFrom returns the session attached by requireToken.
func sessionFrom(ctx context.Context) (session.Session, bool) {
	s, ok := ctx.Value(sessionKey).(session.Session)
	return s, ok
}

func tokenFrom(ctx context.Context) string {
	t, _ := ctx.Value(tokenKey).(string)
	return t
}

// requireToken rejects requests without a valid X-Auth-Token and attaches
// the session to the request context.
func (a *API) requireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := r.Header.Get(TokenHeader)
		if token == "" {
			a.fail(w, r, errMissingToken)
			return
		}

		sess, err := a.auth.ValidateToken(r.Context(), token)
		if err != nil {
			a.fail(w, r, err)
			return
		}

		ctx := context.WithValue(r.Context(), sessionKey, sess)
		ctx = context.WithValue(ctx, tokenKey, token)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireRole rejects sessions that lack role in their project.
// It must run after requireToken.
func requireRole(role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess, ok := sessionFrom(r.Context())
			if !ok || !sess.HasRole(role) {
				writeError(w, http.StatusForbidden, errForbidden.Error()+": "+role+" role required")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// requireProjectScope rejects requests whose {id} path parameter is not the
// project the session is scoped to. It must run after requireToken.
func (a *API) requireProjectScope(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, ok := sessionFrom(r.Context())
		id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
		if !ok || err != nil || uint(id) != sess.ProjectID {
			a.fail(w, r, fmt.Errorf("%w: token is not scoped to this project", errForbidden))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// requestLogger logs one structured line per request.
func (a *API) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		defer func() {
			a.logger.Info("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
				"remote", r.RemoteAddr,
				"request_id", middleware.GetReqID(r.Context()),
			)
		}()

		next.ServeHTTP(ww, r)
	})
}
