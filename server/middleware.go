package server

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gigledger/gigledger/token"
)

type contextKey string

const principalKey contextKey = "principal"

// Principal is the authenticated caller injected into the request context by
// the bearer middleware.
type Principal struct {
	UserID string
	Email  string
	Scopes []string
}

// PrincipalFrom extracts the authenticated principal from the context.
func PrincipalFrom(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(principalKey).(*Principal)
	return p, ok
}

// BearerAuth validates the Authorization header. Access tokens verify locally
// against the signing key; API tokens additionally hit the token store so
// revocation takes effect immediately.
func (s *Server) BearerAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			writeError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}
		raw := strings.TrimPrefix(header, "Bearer ")

		claims := s.issuer.Validate(raw)
		if claims == nil {
			writeError(w, http.StatusUnauthorized, "invalid token")
			return
		}

		principal := &Principal{
			UserID: claims.UserID(),
			Email:  claims.Email,
			Scopes: claims.Scopes,
		}

		if claims.TokenUse == token.UseAPI {
			apiPrincipal := s.services.APITokens.Validate(r.Context(), raw)
			if apiPrincipal == nil {
				writeError(w, http.StatusUnauthorized, "invalid token")
				return
			}
			principal.Scopes = apiPrincipal.Scopes
		}

		ctx := context.WithValue(r.Context(), principalKey, principal)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireScope rejects callers whose token does not carry the given scope.
func RequireScope(scope token.Scope) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, ok := PrincipalFrom(r.Context())
			if !ok {
				writeError(w, http.StatusUnauthorized, "missing bearer token")
				return
			}
			if !token.HasScope(principal.Scopes, scope) {
				writeError(w, http.StatusForbidden, "insufficient scope")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// requestLogger emits one structured line per request.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)
		s.logger.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", recorder.status).
			Dur("duration", time.Since(start)).
			Msg("request")
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
