package http

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sandesh333-sw/Unyt/internal/domain"
	"github.com/sandesh333-sw/Unyt/internal/service"
	apperrors "github.com/sandesh333-sw/Unyt/pkg/errors"
	"github.com/sandesh333-sw/Unyt/pkg/httputil"
	"github.com/sandesh333-sw/Unyt/pkg/middleware"
	"github.com/sandesh333-sw/Unyt/pkg/pagination"
	"github.com/sandesh333-sw/Unyt/pkg/validator"
)

// ListingHandler handles HTTP requests for listing endpoints.
type ListingHandler struct {
	listings *service.ListingService
	logger   *slog.Logger
}

// NewListingHandler creates a new listing HTTP handler.
func NewListingHandler(listings *service.ListingService, logger *slog.Logger) *ListingHandler {
	return &ListingHandler{listings: listings, logger: logger}
}

// --- Request DTOs ---

// CreateListingRequest is the JSON request body for creating a listing.
type CreateListingRequest struct {
	Type        string          `json:"type" validate:"required,oneof=housing goods buddy"`
	Title       string          `json:"title" validate:"required,min=3,max=200"`
	Description string          `json:"description" validate:"max=5000"`
	PricePence  int64           `json:"price_pence" validate:"gte=0"`
	Images      []string        `json:"images" validate:"dive,url"`
	Attributes  json.RawMessage `json:"attributes"`
}

// UpdateListingRequest is the JSON request body for a partial listing update.
type UpdateListingRequest struct {
	Title       *string         `json:"title" validate:"omitempty,min=3,max=200"`
	Description *string         `json:"description" validate:"omitempty,max=5000"`
	PricePence  *int64          `json:"price_pence" validate:"omitempty,gte=0"`
	Images      []string        `json:"images" validate:"omitempty,dive,url"`
	Attributes  json.RawMessage `json:"attributes"`
	Status      *string         `json:"status" validate:"omitempty,oneof=active closed"`
}

// --- Handlers ---

// Create handles POST /api/v1/listings
func (h *ListingHandler) Create(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1MB limit

	var req CreateListingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, r, apperrors.InvalidInput("invalid request body: "+err.Error()), h.logger)
		return
	}
	if err := validator.Validate(req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	accountID := middleware.AccountIDFromContext(r.Context())
	listing, err := h.listings.Create(r.Context(), accountID, service.CreateListingInput{
		Type:        domain.ListingType(req.Type),
		Title:       req.Title,
		Description: req.Description,
		PricePence:  req.PricePence,
		Images:      req.Images,
		Attributes:  req.Attributes,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, httputil.Response{Data: listing})
}

// Get handles GET /api/v1/listings/{id}
func (h *ListingHandler) Get(w http.ResponseWriter, r *http.Request) {
	listing, err := h.listings.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: listing})
}

// Search handles GET /api/v1/listings
//
// Anonymous requests search with free tier page sizes; authenticated premium
// accounts get larger pages.
func (h *ListingHandler) Search(w http.ResponseWriter, r *http.Request) {
	tier := requestTier(r)
	params := pagination.FromRequest(r, domain.LimitsFor(tier).SearchPerPage)

	result, err := h.listings.Search(r.Context(), tier, service.SearchListingsInput{
		Type:   domain.ListingType(r.URL.Query().Get("type")),
		Query:  r.URL.Query().Get("q"),
		Params: params,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: result})
}

// Mine handles GET /api/v1/listings/mine
func (h *ListingHandler) Mine(w http.ResponseWriter, r *http.Request) {
	accountID := middleware.AccountIDFromContext(r.Context())
	tier := requestTier(r)
	params := pagination.FromRequest(r, domain.LimitsFor(tier).SearchPerPage)

	result, err := h.listings.ListByAccount(r.Context(), accountID, params)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: result})
}

// Update handles PATCH /api/v1/listings/{id}
func (h *ListingHandler) Update(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1MB limit

	var req UpdateListingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, r, apperrors.InvalidInput("invalid request body: "+err.Error()), h.logger)
		return
	}
	if err := validator.Validate(req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	input := service.UpdateListingInput{
		Title:       req.Title,
		Description: req.Description,
		PricePence:  req.PricePence,
		Images:      req.Images,
		Attributes:  req.Attributes,
	}
	if req.Status != nil {
		status := domain.ListingStatus(*req.Status)
		input.Status = &status
	}

	accountID := middleware.AccountIDFromContext(r.Context())
	listing, err := h.listings.Update(r.Context(), accountID, chi.URLParam(r, "id"), input)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: listing})
}

// AddImage handles POST /api/v1/listings/{id}/images
//
// The request body is the raw image; Content-Type carries the media type.
func (h *ListingHandler) AddImage(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 5<<20) // 5MB limit

	accountID := middleware.AccountIDFromContext(r.Context())
	listing, err := h.listings.AddImage(r.Context(), accountID, chi.URLParam(r, "id"), r.Header.Get("Content-Type"), r.Body)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, httputil.Response{Data: listing})
}

// Delete handles DELETE /api/v1/listings/{id}
func (h *ListingHandler) Delete(w http.ResponseWriter, r *http.Request) {
	accountID := middleware.AccountIDFromContext(r.Context())
	if err := h.listings.Delete(r.Context(), accountID, chi.URLParam(r, "id")); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// requestTier reads the authenticated tier from context, defaulting to free
// for anonymous requests.
func requestTier(r *http.Request) domain.Tier {
	if tier := domain.Tier(middleware.TierFromContext(r.Context())); tier.Valid() {
		return tier
	}
	return domain.TierFree
}
