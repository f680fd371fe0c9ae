package domain

import "time"

// SessionRecord is the server-side record backing a refresh token. Only the
// SHA-256 fingerprint of the raw token is stored; the raw token exists solely
// on the client.
type SessionRecord struct {
	AccountID   string    `json:"account_id"`
	Fingerprint string    `json:"fingerprint"`
	CreatedAt   time.Time `json:"created_at"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// Expired reports whether the record is past its expiry at the given instant.
func (r SessionRecord) Expired(now time.Time) bool {
	return !now.Before(r.ExpiresAt)
}

// TokenPair is the result of a successful login, registration, or rotation.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
}
