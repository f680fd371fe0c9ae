package domain

import (
	"encoding/json"
	"time"
)

// ListingType enumerates the supported listing categories.
type ListingType string

const (
	ListingHousing ListingType = "housing"
	ListingGoods   ListingType = "goods"
	ListingBuddy   ListingType = "buddy"
)

// Valid reports whether the listing type is a known value.
func (t ListingType) Valid() bool {
	switch t {
	case ListingHousing, ListingGoods, ListingBuddy:
		return true
	}
	return false
}

// ListingStatus enumerates listing lifecycle states.
type ListingStatus string

const (
	ListingActive  ListingStatus = "active"
	ListingClosed  ListingStatus = "closed"
	ListingExpired ListingStatus = "expired"
)

// Listing is a classified ad posted by an account. Attributes holds the
// type-specific payload (rent period and location for housing, condition for
// goods, course and interests for buddy requests) as opaque JSON.
type Listing struct {
	ID          string          `json:"id"`
	AccountID   string          `json:"account_id"`
	Type        ListingType     `json:"type"`
	Title       string          `json:"title"`
	Slug        string          `json:"slug"`
	Description string          `json:"description"`
	PricePence  int64           `json:"price_pence"`
	Images      []string        `json:"images"`
	Attributes  json.RawMessage `json:"attributes,omitempty"`
	BoostFactor float64         `json:"boost_factor"`
	Priority    int             `json:"priority"`
	Status      ListingStatus   `json:"status"`
	Views       int             `json:"views"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}
