package http

import (
	"log/slog"
	"net"
	"net/http"
	"strings"

	"github.com/sandesh333-sw/Unyt/internal/admission"
	apperrors "github.com/sandesh333-sw/Unyt/pkg/errors"
	"github.com/sandesh333-sw/Unyt/pkg/httputil"
	"github.com/sandesh333-sw/Unyt/pkg/middleware"
)

// ContentTypeJSON enforces that requests with a body have Content-Type: application/json.
func ContentTypeJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.ContentLength > 0 || r.Method == http.MethodPost || r.Method == http.MethodPut || r.Method == http.MethodPatch {
			ct := r.Header.Get("Content-Type")
			if !strings.HasPrefix(ct, "application/json") {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnsupportedMediaType)
				_, _ = w.Write([]byte(`{"error":{"code":"UNSUPPORTED_MEDIA_TYPE","message":"Content-Type must be application/json"}}`))
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

// OptionalAuth resolves a bearer token when one is present but lets anonymous
// requests through. Used on public routes whose behavior depends on tier.
func OptionalAuth(validate middleware.TokenValidator) func(http.Handler) http.Handler {
	authed := middleware.Auth(validate)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Authorization") == "" {
				next.ServeHTTP(w, r)
				return
			}
			authed(next).ServeHTTP(w, r)
		})
	}
}

// Admission rejects requests that exceed the per-address budget of the
// requester's tier. Anonymous requests use the free tier budget. When the
// admission store is unreachable the request is rejected rather than let
// through unmetered.
func Admission(controller *admission.Controller, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tier := requestTier(r)

			decision, err := controller.Admit(r.Context(), clientIP(r), tier)
			if err != nil {
				httputil.WriteError(w, r, err, logger)
				return
			}
			if !decision.Allowed {
				httputil.WriteError(w, r, apperrors.QuotaExceeded(decision.RetryAfter), logger)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// clientIP extracts the originating client address, preferring the first
// X-Forwarded-For hop set by the edge proxy.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if first, _, found := strings.Cut(xff, ","); found || first != "" {
			return strings.TrimSpace(first)
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
