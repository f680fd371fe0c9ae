package service

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sandesh333-sw/Unyt/internal/cache"
	"github.com/sandesh333-sw/Unyt/internal/domain"
	"github.com/sandesh333-sw/Unyt/internal/event"
	"github.com/sandesh333-sw/Unyt/internal/repository"
	"github.com/sandesh333-sw/Unyt/internal/storage"
	apperrors "github.com/sandesh333-sw/Unyt/pkg/errors"
	"github.com/sandesh333-sw/Unyt/pkg/pagination"
	"github.com/sandesh333-sw/Unyt/pkg/slug"
)

// PageCache caches rendered listing pages. Satisfied by cache.ListingCache.
type PageCache interface {
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, value any, tier domain.Tier) error
	Invalidate(ctx context.Context) error
}

// ListingService implements listing creation, updates, image uploads, and
// tiered search.
type ListingService struct {
	listingRepo repository.ListingRepository
	accountRepo repository.AccountRepository
	pages       PageCache
	media       storage.Storage
	events      event.Publisher
	logger      *slog.Logger
}

// NewListingService creates a new listing service.
func NewListingService(
	listingRepo repository.ListingRepository,
	accountRepo repository.AccountRepository,
	pages PageCache,
	media storage.Storage,
	events event.Publisher,
	logger *slog.Logger,
) *ListingService {
	return &ListingService{
		listingRepo: listingRepo,
		accountRepo: accountRepo,
		pages:       pages,
		media:       media,
		events:      events,
		logger:      logger,
	}
}

// CreateListingInput holds the parameters for creating a listing.
type CreateListingInput struct {
	Type        domain.ListingType
	Title       string
	Description string
	PricePence  int64
	Images      []string
	Attributes  json.RawMessage
}

// UpdateListingInput holds the optional fields of a listing update. Nil
// fields are left unchanged.
type UpdateListingInput struct {
	Title       *string
	Description *string
	PricePence  *int64
	Images      []string
	Attributes  json.RawMessage
	Status      *domain.ListingStatus
}

// SearchListingsInput narrows and pages a listing search.
type SearchListingsInput struct {
	Type   domain.ListingType
	Query  string
	Params pagination.Params
}

// Create creates a listing owned by the account. Free accounts are capped on
// concurrently active listings and on images per listing; premium placement
// gets a boost factor and a higher ranking priority from the tier table.
func (s *ListingService) Create(ctx context.Context, accountID string, input CreateListingInput) (*domain.Listing, error) {
	if !input.Type.Valid() {
		return nil, apperrors.InvalidInput("listing type must be one of housing, goods, buddy")
	}
	if input.Title == "" {
		return nil, apperrors.InvalidInput("title is required")
	}
	if input.PricePence < 0 {
		return nil, apperrors.InvalidInput("price must not be negative")
	}

	account, err := s.accountRepo.GetByID(ctx, accountID)
	if err != nil {
		return nil, err
	}
	limits := account.Limits()

	if len(input.Images) > limits.ImagesPerListing {
		return nil, apperrors.InvalidInput(fmt.Sprintf("at most %d images per listing on the %s tier", limits.ImagesPerListing, account.Tier))
	}

	active, err := s.listingRepo.CountActiveByAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if !limits.CanCreateListing(active) {
		return nil, apperrors.Forbidden(fmt.Sprintf("active listing limit of %d reached; upgrade to premium for unlimited listings", limits.ActiveListings))
	}

	id := uuid.New().String()
	now := time.Now().UTC()
	listing := &domain.Listing{
		ID:          id,
		AccountID:   accountID,
		Type:        input.Type,
		Title:       input.Title,
		Slug:        slug.Generate(input.Title) + "-" + id[:8],
		Description: input.Description,
		PricePence:  input.PricePence,
		Images:      input.Images,
		Attributes:  input.Attributes,
		BoostFactor: limits.BoostFactor,
		Priority:    limits.Priority,
		Status:      domain.ListingActive,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.listingRepo.Create(ctx, listing); err != nil {
		return nil, fmt.Errorf("create listing: %w", err)
	}
	if err := s.accountRepo.AdjustActiveListings(ctx, accountID, 1); err != nil {
		s.logger.ErrorContext(ctx, "adjust active listing count failed",
			slog.String("account_id", accountID),
			slog.String("error", err.Error()),
		)
	}

	s.invalidatePages(ctx)
	s.events.ListingCreated(ctx, listing)

	s.logger.InfoContext(ctx, "listing created",
		slog.String("listing_id", listing.ID),
		slog.String("account_id", accountID),
		slog.String("type", string(listing.Type)),
	)

	return listing, nil
}

// GetByID returns a single listing and bumps its view counter. The counter is
// best-effort; a failed bump never fails the read.
func (s *ListingService) GetByID(ctx context.Context, id string) (*domain.Listing, error) {
	listing, err := s.listingRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := s.listingRepo.IncrementViews(ctx, id); err != nil {
		s.logger.WarnContext(ctx, "increment listing views failed",
			slog.String("listing_id", id),
			slog.String("error", err.Error()),
		)
	}

	return listing, nil
}

// Update applies a partial update to a listing owned by the account.
func (s *ListingService) Update(ctx context.Context, accountID, listingID string, input UpdateListingInput) (*domain.Listing, error) {
	listing, err := s.listingRepo.GetByID(ctx, listingID)
	if err != nil {
		return nil, err
	}
	if listing.AccountID != accountID {
		return nil, apperrors.Forbidden("you can only modify your own listings")
	}

	wasActive := listing.Status == domain.ListingActive

	if input.Title != nil {
		if *input.Title == "" {
			return nil, apperrors.InvalidInput("title must not be empty")
		}
		listing.Title = *input.Title
		listing.Slug = slug.Generate(listing.Title) + "-" + listing.ID[:8]
	}
	if input.Description != nil {
		listing.Description = *input.Description
	}
	if input.PricePence != nil {
		if *input.PricePence < 0 {
			return nil, apperrors.InvalidInput("price must not be negative")
		}
		listing.PricePence = *input.PricePence
	}
	if input.Images != nil {
		account, err := s.accountRepo.GetByID(ctx, accountID)
		if err != nil {
			return nil, err
		}
		if max := account.Limits().ImagesPerListing; len(input.Images) > max {
			return nil, apperrors.InvalidInput(fmt.Sprintf("at most %d images per listing on the %s tier", max, account.Tier))
		}
		listing.Images = input.Images
	}
	if input.Attributes != nil {
		listing.Attributes = input.Attributes
	}
	if input.Status != nil {
		switch *input.Status {
		case domain.ListingActive, domain.ListingClosed:
			listing.Status = *input.Status
		default:
			return nil, apperrors.InvalidInput("status must be active or closed")
		}
	}
	listing.UpdatedAt = time.Now().UTC()

	if err := s.listingRepo.Update(ctx, listing); err != nil {
		return nil, fmt.Errorf("update listing: %w", err)
	}

	// Closing or reopening moves the listing in and out of the active cap.
	isActive := listing.Status == domain.ListingActive
	if wasActive != isActive {
		delta := -1
		if isActive {
			delta = 1
		}
		if err := s.accountRepo.AdjustActiveListings(ctx, accountID, delta); err != nil {
			s.logger.ErrorContext(ctx, "adjust active listing count failed",
				slog.String("account_id", accountID),
				slog.String("error", err.Error()),
			)
		}
	}

	s.invalidatePages(ctx)

	return listing, nil
}

// Delete removes a listing owned by the account.
func (s *ListingService) Delete(ctx context.Context, accountID, listingID string) error {
	listing, err := s.listingRepo.GetByID(ctx, listingID)
	if err != nil {
		return err
	}
	if listing.AccountID != accountID {
		return apperrors.Forbidden("you can only delete your own listings")
	}

	if err := s.listingRepo.Delete(ctx, listingID); err != nil {
		return fmt.Errorf("delete listing: %w", err)
	}
	if listing.Status == domain.ListingActive {
		if err := s.accountRepo.AdjustActiveListings(ctx, accountID, -1); err != nil {
			s.logger.ErrorContext(ctx, "adjust active listing count failed",
				slog.String("account_id", accountID),
				slog.String("error", err.Error()),
			)
		}
	}

	s.invalidatePages(ctx)
	s.events.ListingDeleted(ctx, listingID, accountID)

	s.logger.InfoContext(ctx, "listing deleted",
		slog.String("listing_id", listingID),
		slog.String("account_id", accountID),
	)

	return nil
}

// Search returns a page of active listings for the requester's tier. Page
// size is capped by the tier, and rendered pages are cached with the tier's
// TTL so premium placement refreshes faster.
func (s *ListingService) Search(ctx context.Context, tier domain.Tier, input SearchListingsInput) (pagination.Result[*domain.Listing], error) {
	var result pagination.Result[*domain.Listing]

	if input.Type != "" && !input.Type.Valid() {
		return result, apperrors.InvalidInput("listing type must be one of housing, goods, buddy")
	}

	params := input.Params
	if max := domain.LimitsFor(tier).SearchPerPage; params.PerPage > max {
		params.PerPage = max
		params.Offset = (params.Page - 1) * params.PerPage
	}

	key := cache.Key(input.Type, input.Query, params.Page, params.PerPage, tier)
	if hit, err := s.pages.Get(ctx, key, &result); err == nil && hit {
		return result, nil
	}

	filter := repository.ListingFilter{
		Type:   input.Type,
		Query:  input.Query,
		Status: domain.ListingActive,
	}
	listings, total, err := s.listingRepo.Search(ctx, filter, params.PerPage, params.Offset)
	if err != nil {
		return result, fmt.Errorf("search listings: %w", err)
	}

	result = pagination.NewResult(listings, total, params)
	if err := s.pages.Set(ctx, key, result, tier); err != nil {
		s.logger.WarnContext(ctx, "cache listing page failed", slog.String("error", err.Error()))
	}

	return result, nil
}

// AddImage uploads an image for a listing owned by the account and appends
// its serving URL. The tier's image cap applies to the total after upload.
func (s *ListingService) AddImage(ctx context.Context, accountID, listingID, contentType string, r io.Reader) (*domain.Listing, error) {
	if !strings.HasPrefix(contentType, "image/") {
		return nil, apperrors.InvalidInput("content type must be an image")
	}

	listing, err := s.listingRepo.GetByID(ctx, listingID)
	if err != nil {
		return nil, err
	}
	if listing.AccountID != accountID {
		return nil, apperrors.Forbidden("you can only modify your own listings")
	}

	account, err := s.accountRepo.GetByID(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if max := account.Limits().ImagesPerListing; len(listing.Images) >= max {
		return nil, apperrors.InvalidInput(fmt.Sprintf("at most %d images per listing on the %s tier", max, account.Tier))
	}

	key := "listings/" + listingID + "/" + uuid.New().String()
	if _, err := s.media.Upload(ctx, key, contentType, r); err != nil {
		return nil, fmt.Errorf("upload image: %w", err)
	}
	url, err := s.media.GetURL(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("resolve image url: %w", err)
	}

	listing.Images = append(listing.Images, url)
	listing.UpdatedAt = time.Now().UTC()
	if err := s.listingRepo.Update(ctx, listing); err != nil {
		return nil, fmt.Errorf("update listing: %w", err)
	}

	s.invalidatePages(ctx)

	s.logger.InfoContext(ctx, "listing image uploaded",
		slog.String("listing_id", listingID),
		slog.String("account_id", accountID),
	)

	return listing, nil
}

// ListByAccount returns the account's own listings of any status.
func (s *ListingService) ListByAccount(ctx context.Context, accountID string, params pagination.Params) (pagination.Result[*domain.Listing], error) {
	filter := repository.ListingFilter{AccountID: accountID}
	listings, total, err := s.listingRepo.Search(ctx, filter, params.PerPage, params.Offset)
	if err != nil {
		return pagination.Result[*domain.Listing]{}, fmt.Errorf("list account listings: %w", err)
	}
	return pagination.NewResult(listings, total, params), nil
}

func (s *ListingService) invalidatePages(ctx context.Context) {
	if err := s.pages.Invalidate(ctx); err != nil {
		s.logger.WarnContext(ctx, "invalidate listing cache failed", slog.String("error", err.Error()))
	}
}
