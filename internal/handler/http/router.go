package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sandesh333-sw/Unyt/internal/admission"
	"github.com/sandesh333-sw/Unyt/internal/service"
	"github.com/sandesh333-sw/Unyt/pkg/health"
	"github.com/sandesh333-sw/Unyt/pkg/middleware"
)

// NewRouter creates a chi router with all routes registered.
func NewRouter(
	sessionService *service.SessionService,
	listingService *service.ListingService,
	admissionController *admission.Controller,
	healthHandler *health.Handler,
	logger *slog.Logger,
	corsConfig middleware.CORSConfig,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.CORS(corsConfig))
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.Tracing("unyt"))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.RequestLogger(logger))
	r.Use(middleware.PrometheusMetrics("unyt"))

	// Health and metrics endpoints sit outside admission control.
	r.Get("/health/live", healthHandler.LivenessHandler())
	r.Get("/health/ready", healthHandler.ReadinessHandler())
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		promhttp.Handler().ServeHTTP(w, r)
	})

	// Token validator bridging the session service into the auth middleware.
	// The principal carries the account's current tier, not the token's
	// snapshot, so upgrades take effect immediately.
	tokenValidator := func(ctx context.Context, token string) (*middleware.Principal, error) {
		account, err := sessionService.AuthenticateAccess(ctx, token)
		if err != nil {
			return nil, err
		}
		return &middleware.Principal{AccountID: account.ID, Tier: string(account.Tier)}, nil
	}

	authHandler := NewAuthHandler(sessionService, logger)
	listingHandler := NewListingHandler(listingService, logger)

	// Auth endpoints (public)
	r.Route("/api/v1/auth", func(r chi.Router) {
		r.Use(ContentTypeJSON)
		r.Use(Admission(admissionController, logger))

		r.Post("/register", authHandler.Register)
		r.Post("/login", authHandler.Login)
		r.Post("/refresh", authHandler.Refresh)

		// Account and session management (auth required)
		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(tokenValidator))

			r.Get("/profile", authHandler.Profile)
			r.Post("/upgrade", authHandler.Upgrade)
			r.Post("/logout", authHandler.Logout)
			r.Post("/logout-all", authHandler.LogoutAll)
			r.Get("/sessions", authHandler.Sessions)
		})
	})

	// Listing endpoints
	r.Route("/api/v1/listings", func(r chi.Router) {
		// Browse and read are public; tier is resolved when a token is sent
		// so premium accounts get their budgets and page sizes.
		r.Group(func(r chi.Router) {
			r.Use(OptionalAuth(tokenValidator))
			r.Use(Admission(admissionController, logger))

			r.Get("/", listingHandler.Search)
			r.Get("/{id}", listingHandler.Get)
		})

		// Writes require authentication.
		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(tokenValidator))
			r.Use(Admission(admissionController, logger))
			r.Use(ContentTypeJSON)

			r.Post("/", listingHandler.Create)
			r.Get("/mine", listingHandler.Mine)
			r.Patch("/{id}", listingHandler.Update)
			r.Delete("/{id}", listingHandler.Delete)
		})

		// Image uploads carry an image body, not JSON.
		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(tokenValidator))
			r.Use(Admission(admissionController, logger))

			r.Post("/{id}/images", listingHandler.AddImage)
		})
	})

	return r
}
