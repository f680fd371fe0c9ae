package domain

import "time"

// Tier is the subscription level of an account.
type Tier string

const (
	TierFree    Tier = "free"
	TierPremium Tier = "premium"
)

// Valid reports whether the tier is a known value.
func (t Tier) Valid() bool {
	return t == TierFree || t == TierPremium
}

// TierLimits holds every tier-dependent budget in one place.
type TierLimits struct {
	// ActiveListings is the cap on concurrently active listings.
	// Zero means unlimited.
	ActiveListings int

	// ImagesPerListing caps images attached to a single listing.
	ImagesPerListing int

	// SearchPerPage caps the page size on listing search.
	SearchPerPage int

	// BoostFactor and Priority control listing visibility ranking.
	BoostFactor float64
	Priority    int

	// CacheTTL is how long cached listing pages stay fresh for this tier.
	CacheTTL time.Duration

	// RequestBudget is the number of requests allowed per RequestWindow
	// by the admission controller.
	RequestBudget int
	RequestWindow time.Duration

	// Lockout is how long a client stays blocked after exhausting the
	// budget. Zero means no lockout beyond the window itself.
	Lockout time.Duration
}

// Limits is the tier table. All premium/free behavior differences route
// through here.
var Limits = map[Tier]TierLimits{
	TierFree: {
		ActiveListings:   3,
		ImagesPerListing: 5,
		SearchPerPage:    20,
		BoostFactor:      1.0,
		Priority:         50,
		CacheTTL:         time.Hour,
		RequestBudget:    30,
		RequestWindow:    15 * time.Minute,
		Lockout:          15 * time.Minute,
	},
	TierPremium: {
		ActiveListings:   0,
		ImagesPerListing: 10,
		SearchPerPage:    100,
		BoostFactor:      1.5,
		Priority:         100,
		CacheTTL:         5 * time.Minute,
		RequestBudget:    200,
		RequestWindow:    15 * time.Minute,
		Lockout:          0,
	},
}

// LimitsFor returns the limits for the given tier, falling back to the free
// tier for unknown values.
func LimitsFor(t Tier) TierLimits {
	if l, ok := Limits[t]; ok {
		return l
	}
	return Limits[TierFree]
}

// CanCreateListing reports whether an account with the given active listing
// count may create another one.
func (l TierLimits) CanCreateListing(active int) bool {
	return l.ActiveListings == 0 || active < l.ActiveListings
}

// Account represents a registered student account.
type Account struct {
	ID             string    `json:"id"`
	Email          string    `json:"email"`
	PasswordHash   string    `json:"-"`
	Name           string    `json:"name"`
	Tier           Tier      `json:"tier"`
	ActiveListings int       `json:"active_listings"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Limits returns the tier limits for this account.
func (a *Account) Limits() TierLimits {
	return LimitsFor(a.Tier)
}
