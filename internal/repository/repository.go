// Package repository defines the persistence contracts consumed by the
// service layer. Implementations live in the postgres, redis, and memory
// subpackages.
package repository

import (
	"context"

	"github.com/sandesh333-sw/Unyt/internal/domain"
)

// AccountRepository defines the persistence contract for accounts.
type AccountRepository interface {
	Create(ctx context.Context, a *domain.Account) error
	GetByID(ctx context.Context, id string) (*domain.Account, error)
	GetByEmail(ctx context.Context, email string) (*domain.Account, error)
	UpdateTier(ctx context.Context, id string, tier domain.Tier) error

	// AdjustActiveListings atomically adds delta to the account's active
	// listing counter, clamped at zero.
	AdjustActiveListings(ctx context.Context, id string, delta int) error
}

// ListingFilter narrows a listing search.
type ListingFilter struct {
	Type      domain.ListingType
	Query     string
	AccountID string
	Status    domain.ListingStatus
}

// ListingRepository defines the persistence contract for listings.
type ListingRepository interface {
	Create(ctx context.Context, l *domain.Listing) error
	GetByID(ctx context.Context, id string) (*domain.Listing, error)
	Update(ctx context.Context, l *domain.Listing) error
	Delete(ctx context.Context, id string) error

	// Search returns a page of listings ordered by (priority, created_at)
	// descending, plus the total match count.
	Search(ctx context.Context, filter ListingFilter, limit, offset int) ([]*domain.Listing, int, error)

	// IncrementViews bumps the listing's view counter.
	IncrementViews(ctx context.Context, id string) error

	// CountActiveByAccount returns the number of active listings owned by
	// the account.
	CountActiveByAccount(ctx context.Context, accountID string) (int, error)
}

// SessionStore holds the server-side session records backing refresh tokens.
//
// RemoveIfPresent is the serialization point for token rotation: of any
// number of concurrent calls with the same fingerprint, exactly one observes
// true. Implementations must make it an atomic compare-and-delete.
type SessionStore interface {
	Put(ctx context.Context, rec domain.SessionRecord) error

	// RemoveIfPresent deletes the record with the given fingerprint and
	// reports whether it was present.
	RemoveIfPresent(ctx context.Context, fingerprint string) (bool, error)

	// RemoveAll deletes every record for the account and returns how many
	// were removed.
	RemoveAll(ctx context.Context, accountID string) (int, error)

	// List returns the account's records ordered oldest first, skipping
	// any that have passed their expiry.
	List(ctx context.Context, accountID string) ([]domain.SessionRecord, error)
}
