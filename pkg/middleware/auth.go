package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
)

type contextKeyType string

const (
	accountIDKey contextKeyType = "account_id"
	tierKey      contextKeyType = "tier"
)

// Principal holds the identity established by the auth middleware.
type Principal struct {
	AccountID string `json:"account_id"`
	Tier      string `json:"tier"`
}

// TokenValidator validates a bearer token and returns the principal it
// identifies. The service injects its own verification logic; the request
// context is passed through so validators can reach storage.
type TokenValidator func(ctx context.Context, token string) (*Principal, error)

// Auth middleware validates bearer tokens and injects the principal into context.
func Auth(validate TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				writeAuthError(w, "missing authorization header")
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
				writeAuthError(w, "invalid authorization header format")
				return
			}

			principal, err := validate(r.Context(), parts[1])
			if err != nil {
				writeAuthError(w, "invalid or expired token")
				return
			}

			ctx := context.WithValue(r.Context(), accountIDKey, principal.AccountID)
			ctx = context.WithValue(ctx, tierKey, principal.Tier)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireTier middleware checks that the authenticated account is on one of
// the given tiers.
func RequireTier(tiers ...string) func(http.Handler) http.Handler {
	tierSet := make(map[string]struct{}, len(tiers))
	for _, t := range tiers {
		tierSet[t] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tier := TierFromContext(r.Context())
			if _, ok := tierSet[tier]; !ok {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusForbidden)
				_ = json.NewEncoder(w).Encode(map[string]string{
					"code":    "FORBIDDEN",
					"message": "this feature requires a premium account",
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// AccountIDFromContext extracts the authenticated account ID from the request context.
func AccountIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(accountIDKey).(string); ok {
		return id
	}
	return ""
}

// TierFromContext extracts the account tier from the request context.
func TierFromContext(ctx context.Context) string {
	if tier, ok := ctx.Value(tierKey).(string); ok {
		return tier
	}
	return ""
}

func writeAuthError(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"code":    "UNAUTHORIZED",
		"message": message,
	})
}
