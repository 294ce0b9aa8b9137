package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/iho/bankledger/internal/domain"
	"github.com/iho/bankledger/internal/infrastructure/auth"
	"github.com/iho/bankledger/internal/infrastructure/metrics"
)

type contextKey string

const userContextKey contextKey = "user"

const (
	detailNotAuthenticated = "Authentication credentials were not provided."
	detailInvalidToken     = "Given token not valid for any token type."
	detailForbidden        = "You do not have permission to perform this action."
)

// TokenVerifier turns a bearer token into claims.
type TokenVerifier interface {
	Verify(tokenString string) (*auth.Claims, error)
}

// Authenticate requires a valid bearer token and stores the caller in the
// request context. Failures answer 401.
func Authenticate(verifier TokenVerifier, m *metrics.Metrics) func(http.Handler) http.Handler {
	fail := func(w http.ResponseWriter, reason, detail string) {
		if m != nil {
			m.AuthFailures.WithLabelValues(reason).Inc()
		}
		w.Header().Set("WWW-Authenticate", `Bearer realm="api"`)
		writeDetail(w, http.StatusUnauthorized, detail)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				fail(w, "missing", detailNotAuthenticated)
				return
			}

			scheme, token, ok := strings.Cut(header, " ")
			if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
				fail(w, "malformed", detailInvalidToken)
				return
			}

			claims, err := verifier.Verify(token)
			if err != nil {
				reason := "invalid"
				if errors.Is(err, domain.ErrExpiredToken) {
					reason = "expired"
				}
				fail(w, reason, detailInvalidToken)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), claims.User())))
		})
	}
}

// RequireRole lets through only callers holding one of roles. Callers that
// never authenticated get 401, the rest 403.
func RequireRole(roles ...domain.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, ok := UserFromContext(r.Context())
			if !ok {
				writeDetail(w, http.StatusUnauthorized, detailNotAuthenticated)
				return
			}

			for _, role := range roles {
				if user.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}

			writeDetail(w, http.StatusForbidden, detailForbidden)
		})
	}
}

// WithUser returns a copy of ctx carrying user.
func WithUser(ctx context.Context, user domain.User) context.Context {
	return context.WithValue(ctx, userContextKey, user)
}

// UserFromContext extracts the authenticated user from context.
func UserFromContext(ctx context.Context) (domain.User, bool) {
	user, ok := ctx.Value(userContextKey).(domain.User)
	return user, ok
}
