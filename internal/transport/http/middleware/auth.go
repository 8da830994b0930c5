package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gigmarket-api/internal/domain"
	jwtinfra "github.com/gigmarket-api/internal/infrastructure/jwt"
	"github.com/gigmarket-api/internal/transport/http/respond"
)

type contextKey string

const (
	claimsKey contextKey = "claims"
	userKey   contextKey = "user"
)

// AccessVerifier is implemented by *jwtinfra.Provider.
type AccessVerifier interface {
	VerifyAccess(token string) (*jwtinfra.Claims, error)
}

type UserLoader interface {
	Get(ctx context.Context, userID string) (*domain.User, error)
}

// Auth validates the Bearer access token, loads its user and rejects tokens
// issued before the user's last credential change. The user and claims are
// injected into the request context.
func Auth(verifier AccessVerifier, users UserLoader, rs *respond.Responder) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if !strings.HasPrefix(authHeader, "Bearer ") {
				rs.Fail(w, r, http.StatusUnauthorized, "Token was not provided!")
				return
			}
			tokenStr := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
			if tokenStr == "" {
				rs.Fail(w, r, http.StatusUnauthorized, "Invalid token format!")
				return
			}

			claims, err := verifier.VerifyAccess(tokenStr)
			switch {
			case err == nil:
			case errors.Is(err, jwtinfra.ErrExpired):
				rs.Fail(w, r, http.StatusUnauthorized, "Token has expired! Please log in again.")
				return
			case errors.Is(err, jwtinfra.ErrInvalid):
				rs.Fail(w, r, http.StatusUnauthorized, "Invalid token!")
				return
			default:
				rs.Error(w, r, domain.WrapError(domain.KindInternal, "Something went wrong with token verification", err))
				return
			}

			u, err := users.Get(r.Context(), claims.UserID)
			if errors.Is(err, domain.ErrNotFound) {
				rs.Fail(w, r, http.StatusNotFound, "User not found!")
				return
			}
			if err != nil {
				rs.Error(w, r, domain.WrapError(domain.KindInternal, "Something went wrong while loading the user", err))
				return
			}
			if u.TokensRevokedAfter(claims.IssuedAtUnix()) {
				rs.Fail(w, r, http.StatusUnauthorized, "Token is no longer valid. Please log in again!")
				return
			}

			ctx := context.WithValue(r.Context(), claimsKey, claims)
			ctx = context.WithValue(ctx, userKey, u)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ClaimsFromContext extracts JWT claims from the request context.
func ClaimsFromContext(ctx context.Context) (*jwtinfra.Claims, bool) {
	c, ok := ctx.Value(claimsKey).(*jwtinfra.Claims)
	return c, ok
}

// UserFromContext returns the user loaded by Auth.
func UserFromContext(ctx context.Context) (*domain.User, bool) {
	u, ok := ctx.Value(userKey).(*domain.User)
	return u, ok
}

// WithUser stores u in ctx the way Auth does. Used by handler tests.
func WithUser(ctx context.Context, u *domain.User) context.Context {
	return context.WithValue(ctx, userKey, u)
}
