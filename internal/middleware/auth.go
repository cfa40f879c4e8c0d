// AngelaMos | 2026
// auth.go

package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/wealthsupernova/supernova/internal/core"
	"github.com/wealthsupernova/supernova/internal/tier"
)

const (
	RoleUser  = "user"
	RoleAdmin = "admin"

	claimsKey contextKey = "access_claims"
)

type TokenVerifier interface {
	VerifyAccessToken(ctx context.Context, token string) (*AccessTokenClaims, error)
}

// AccessTokenClaims is what a verified access token says about its bearer.
// ID is the token's jti and ExpiresAt its exp, used for revocation. Tier is
// the effective tier when the token was issued.
type AccessTokenClaims struct {
	ID           string
	UserID       string
	Role         string
	Tier         tier.Tier
	TokenVersion int
	ExpiresAt    time.Time
}

// Authenticator rejects requests without a valid bearer token.
func Authenticator(verifier TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				core.JSONError(w, core.UnauthorizedError("missing authorization token"))
				return
			}

			claims, err := verifier.VerifyAccessToken(r.Context(), token)
			if err != nil {
				core.JSONError(w, authError(err))
				return
			}

			next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
		})
	}
}

// OptionalAuth attaches claims when a valid token is present and otherwise
// lets the request through as anonymous. Archive reads use it so locked
// issues can still be listed.
func OptionalAuth(verifier TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token := bearerToken(r); token != "" {
				if claims, err := verifier.VerifyAccessToken(r.Context(), token); err == nil {
					r = r.WithContext(WithClaims(r.Context(), claims))
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireAdmin must run after Authenticator.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims := GetClaims(r.Context())
		switch {
		case claims == nil:
			core.JSONError(w, core.UnauthorizedError("authentication required"))
		case claims.Role != RoleAdmin:
			core.JSONError(w, core.ForbiddenError("admin access required"))
		default:
			next.ServeHTTP(w, r)
		}
	})
}

func WithClaims(ctx context.Context, claims *AccessTokenClaims) context.Context {
	return context.WithValue(ctx, claimsKey, claims)
}

func GetClaims(ctx context.Context) *AccessTokenClaims {
	claims, _ := ctx.Value(claimsKey).(*AccessTokenClaims)
	return claims
}

func GetUserID(ctx context.Context) string {
	if c := GetClaims(ctx); c != nil {
		return c.UserID
	}
	return ""
}

// GetUserTier returns the caller's tier. Anonymous callers and tokens with
// an unrecognised tier read as free.
func GetUserTier(ctx context.Context) tier.Tier {
	if c := GetClaims(ctx); c != nil && c.Tier.Valid() {
		return c.Tier
	}
	return tier.Free
}

func bearerToken(r *http.Request) string {
	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

func authError(err error) *core.AppError {
	var appErr *core.AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	switch {
	case errors.Is(err, core.ErrTokenExpired):
		return core.TokenExpiredError()
	case errors.Is(err, core.ErrTokenRevoked):
		return core.TokenRevokedError()
	default:
		return core.TokenInvalidError()
	}
}
