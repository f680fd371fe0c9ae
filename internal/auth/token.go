package auth

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/sandesh333-sw/Unyt/internal/domain"
	apperrors "github.com/sandesh333-sw/Unyt/pkg/errors"
)

// Kind distinguishes the two token classes. Access tokens are short-lived and
// verified statelessly; refresh tokens are long-lived and only carry authority
// while a matching session record exists.
type Kind string

const (
	KindAccess  Kind = "access"
	KindRefresh Kind = "refresh"
)

// Claims are the JWT claims carried by both token kinds. Tier rides along on
// access tokens so request handling does not need an account lookup.
type Claims struct {
	AccountID string `json:"account_id"`
	Tier      string `json:"tier,omitempty"`
	Kind      string `json:"kind"`
	jwt.RegisteredClaims
}

// Codec issues and verifies signed tokens. Access and refresh tokens are
// signed with distinct secrets, so one kind can never verify as the other
// even if the kind claim were forged.
type Codec struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	issuer        string
}

// NewCodec creates a token codec. Both secrets must be non-empty and distinct;
// config validation enforces this before the codec is built.
func NewCodec(accessSecret, refreshSecret string, accessTTL, refreshTTL time.Duration, issuer string) *Codec {
	return &Codec{
		accessSecret:  []byte(accessSecret),
		refreshSecret: []byte(refreshSecret),
		accessTTL:     accessTTL,
		refreshTTL:    refreshTTL,
		issuer:        issuer,
	}
}

// AccessTTL returns the configured access token lifetime.
func (c *Codec) AccessTTL() time.Duration { return c.accessTTL }

// RefreshTTL returns the configured refresh token lifetime.
func (c *Codec) RefreshTTL() time.Duration { return c.refreshTTL }

// Issue creates a signed token of the given kind for the account.
func (c *Codec) Issue(accountID string, tier domain.Tier, kind Kind) (string, error) {
	var secret []byte
	var ttl time.Duration
	switch kind {
	case KindAccess:
		secret, ttl = c.accessSecret, c.accessTTL
	case KindRefresh:
		secret, ttl = c.refreshSecret, c.refreshTTL
	default:
		return "", fmt.Errorf("issue token: unknown kind %q", kind)
	}

	now := time.Now()
	claims := Claims{
		AccountID: accountID,
		Kind:      string(kind),
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			Issuer:    c.issuer,
			Subject:   accountID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	if kind == KindAccess {
		claims.Tier = string(tier)
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("sign %s token: %w", kind, err)
	}
	return signed, nil
}

// Verify parses and validates a token of the expected kind and returns its
// claims. Expiry maps to ErrCredentialExpired; every other failure, including
// a kind mismatch, maps to ErrInvalidCredential.
func (c *Codec) Verify(tokenString string, kind Kind) (*Claims, error) {
	secret, err := c.secretFor(kind)
	if err != nil {
		return nil, err
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, keyFunc(secret))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, apperrors.CredentialExpired(fmt.Sprintf("%s token expired", kind))
		}
		return nil, apperrors.InvalidCredential(fmt.Sprintf("invalid %s token", kind))
	}

	if !token.Valid || claims.Kind != string(kind) || claims.AccountID == "" {
		return nil, apperrors.InvalidCredential(fmt.Sprintf("invalid %s token", kind))
	}

	return claims, nil
}

// ParseWellFormed checks the token's signature, structure, and kind but
// tolerates expiry. Revocation accepts expired refresh tokens so a session
// can still be ended after its token has lapsed.
func (c *Codec) ParseWellFormed(tokenString string, kind Kind) (*Claims, error) {
	secret, err := c.secretFor(kind)
	if err != nil {
		return nil, err
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, keyFunc(secret), jwt.WithoutClaimsValidation())
	if err != nil || !token.Valid || claims.Kind != string(kind) || claims.AccountID == "" {
		return nil, apperrors.InvalidCredential(fmt.Sprintf("invalid %s token", kind))
	}

	return claims, nil
}

func (c *Codec) secretFor(kind Kind) ([]byte, error) {
	switch kind {
	case KindAccess:
		return c.accessSecret, nil
	case KindRefresh:
		return c.refreshSecret, nil
	default:
		return nil, apperrors.InvalidCredential(fmt.Sprintf("unknown token kind %q", kind))
	}
}

func keyFunc(secret []byte) jwt.Keyfunc {
	return func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return secret, nil
	}
}

// Fingerprint returns the hex-encoded SHA-256 digest of the raw token. Session
// records store fingerprints only; a leaked store never yields usable tokens.
func Fingerprint(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
