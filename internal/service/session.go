package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/sandesh333-sw/Unyt/internal/auth"
	"github.com/sandesh333-sw/Unyt/internal/domain"
	"github.com/sandesh333-sw/Unyt/internal/event"
	"github.com/sandesh333-sw/Unyt/internal/repository"
	apperrors "github.com/sandesh333-sw/Unyt/pkg/errors"
)

// bcryptCost is the cost factor for bcrypt password hashing.
const bcryptCost = 12

// minPasswordLength is the minimum password length required.
const minPasswordLength = 8

// SessionService implements account registration, login, and the refresh
// token lifecycle: issuance, rotation with reuse detection, and revocation.
type SessionService struct {
	accountRepo repository.AccountRepository
	store       repository.SessionStore
	codec       *auth.Codec
	events      event.Publisher
	logger      *slog.Logger

	// sessionCap is the soft cap on concurrent sessions per account;
	// the oldest session is evicted when a new one would exceed it.
	sessionCap int

	// emailDomain is the university domain registrations must use,
	// e.g. "herts.ac.uk".
	emailDomain string
}

// NewSessionService creates a new session service.
func NewSessionService(
	accountRepo repository.AccountRepository,
	store repository.SessionStore,
	codec *auth.Codec,
	events event.Publisher,
	logger *slog.Logger,
	sessionCap int,
	emailDomain string,
) *SessionService {
	return &SessionService{
		accountRepo: accountRepo,
		store:       store,
		codec:       codec,
		events:      events,
		logger:      logger,
		sessionCap:  sessionCap,
		emailDomain: emailDomain,
	}
}

// RegisterInput holds the parameters for registering a new account.
type RegisterInput struct {
	Email    string
	Password string
	Name     string
}

// LoginInput holds the parameters for account login.
type LoginInput struct {
	Email    string
	Password string
}

// Register creates a new account restricted to the university email domain
// and returns it with an initial token pair.
func (s *SessionService) Register(ctx context.Context, input RegisterInput) (*domain.Account, *domain.TokenPair, error) {
	email := strings.ToLower(strings.TrimSpace(input.Email))
	if email == "" {
		return nil, nil, apperrors.InvalidInput("email is required")
	}
	if !strings.HasSuffix(email, "@"+s.emailDomain) {
		return nil, nil, apperrors.InvalidInput(fmt.Sprintf("email must be a @%s address", s.emailDomain))
	}
	if input.Name == "" {
		return nil, nil, apperrors.InvalidInput("name is required")
	}
	if len(input.Password) < minPasswordLength {
		return nil, nil, apperrors.InvalidInput(fmt.Sprintf("password must be at least %d characters", minPasswordLength))
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcryptCost)
	if err != nil {
		return nil, nil, fmt.Errorf("hash password: %w", err)
	}

	now := time.Now().UTC()
	account := &domain.Account{
		ID:           uuid.New().String(),
		Email:        email,
		PasswordHash: string(hashedPassword),
		Name:         input.Name,
		Tier:         domain.TierFree,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.accountRepo.Create(ctx, account); err != nil {
		return nil, nil, fmt.Errorf("create account: %w", err)
	}

	pair, err := s.IssuePair(ctx, account)
	if err != nil {
		return nil, nil, err
	}

	s.events.AccountRegistered(ctx, account)

	s.logger.InfoContext(ctx, "account registered",
		slog.String("account_id", account.ID),
		slog.String("email", account.Email),
	)

	return account, pair, nil
}

// Login authenticates an account with email and password, returning tokens.
// Unknown emails and wrong passwords report the same error.
func (s *SessionService) Login(ctx context.Context, input LoginInput) (*domain.Account, *domain.TokenPair, error) {
	if input.Email == "" || input.Password == "" {
		return nil, nil, apperrors.InvalidInput("email and password are required")
	}

	account, err := s.accountRepo.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(input.Email)))
	if err != nil {
		return nil, nil, apperrors.InvalidCredential("invalid email or password")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(input.Password)); err != nil {
		return nil, nil, apperrors.InvalidCredential("invalid email or password")
	}

	pair, err := s.IssuePair(ctx, account)
	if err != nil {
		return nil, nil, err
	}

	s.logger.InfoContext(ctx, "account logged in",
		slog.String("account_id", account.ID),
	)

	return account, pair, nil
}

// IssuePair issues an access/refresh token pair and records the refresh
// session. When the account is at the session cap, the oldest sessions are
// evicted first. The refresh token only gains authority once its record is
// stored; a store failure yields no pair.
func (s *SessionService) IssuePair(ctx context.Context, account *domain.Account) (*domain.TokenPair, error) {
	accessToken, err := s.codec.Issue(account.ID, account.Tier, auth.KindAccess)
	if err != nil {
		return nil, fmt.Errorf("issue access token: %w", err)
	}
	refreshToken, err := s.codec.Issue(account.ID, account.Tier, auth.KindRefresh)
	if err != nil {
		return nil, fmt.Errorf("issue refresh token: %w", err)
	}

	records, err := s.store.List(ctx, account.ID)
	if err != nil {
		return nil, err
	}
	for len(records) >= s.sessionCap && len(records) > 0 {
		oldest := records[0]
		if _, err := s.store.RemoveIfPresent(ctx, oldest.Fingerprint); err != nil {
			return nil, err
		}
		records = records[1:]
		s.logger.InfoContext(ctx, "session evicted at cap",
			slog.String("account_id", account.ID),
		)
	}

	now := time.Now().UTC()
	record := domain.SessionRecord{
		AccountID:   account.ID,
		Fingerprint: auth.Fingerprint(refreshToken),
		CreatedAt:   now,
		ExpiresAt:   now.Add(s.codec.RefreshTTL()),
	}
	if err := s.store.Put(ctx, record); err != nil {
		return nil, err
	}

	return &domain.TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    int64(s.codec.AccessTTL().Seconds()),
	}, nil
}

// Rotate exchanges a refresh token for a new pair. The old session record is
// removed first; presenting a token whose record is already gone is treated
// as reuse and wipes every session for the account. A storage failure before
// the removal is confirmed aborts the rotation with no new pair issued.
func (s *SessionService) Rotate(ctx context.Context, rawRefresh string) (*domain.TokenPair, error) {
	claims, err := s.codec.Verify(rawRefresh, auth.KindRefresh)
	if err != nil {
		return nil, err
	}

	account, err := s.accountRepo.GetByID(ctx, claims.AccountID)
	if err != nil {
		return nil, apperrors.InvalidCredential("account no longer exists")
	}

	found, err := s.store.RemoveIfPresent(ctx, auth.Fingerprint(rawRefresh))
	if err != nil {
		return nil, err
	}
	if !found {
		removed, wipeErr := s.store.RemoveAll(ctx, account.ID)
		if wipeErr != nil {
			s.logger.ErrorContext(ctx, "session wipe after reuse failed",
				slog.String("account_id", account.ID),
				slog.String("error", wipeErr.Error()),
			)
		}
		s.events.SessionReuseDetected(ctx, account.ID, removed)
		s.logger.WarnContext(ctx, "refresh token reuse detected",
			slog.String("account_id", account.ID),
			slog.Int("sessions_revoked", removed),
		)
		return nil, apperrors.ReuseDetected()
	}

	pair, err := s.IssuePair(ctx, account)
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "tokens rotated",
		slog.String("account_id", account.ID),
	)

	return pair, nil
}

// Revoke ends the session identified by the refresh token. The token must be
// well formed and belong to the account but may already be expired; revoking
// an absent session returns NotFound.
func (s *SessionService) Revoke(ctx context.Context, accountID, rawRefresh string) error {
	claims, err := s.codec.ParseWellFormed(rawRefresh, auth.KindRefresh)
	if err != nil {
		return err
	}
	if claims.AccountID != accountID {
		return apperrors.InvalidCredential("refresh token does not belong to this account")
	}

	found, err := s.store.RemoveIfPresent(ctx, auth.Fingerprint(rawRefresh))
	if err != nil {
		return err
	}
	if !found {
		return apperrors.NotFound("session", accountID)
	}

	s.logger.InfoContext(ctx, "session revoked",
		slog.String("account_id", accountID),
	)

	return nil
}

// RevokeAll ends every session for the account and returns how many were
// removed.
func (s *SessionService) RevokeAll(ctx context.Context, accountID string) (int, error) {
	removed, err := s.store.RemoveAll(ctx, accountID)
	if err != nil {
		return 0, err
	}

	s.logger.InfoContext(ctx, "all sessions revoked",
		slog.String("account_id", accountID),
		slog.Int("sessions_revoked", removed),
	)

	return removed, nil
}

// Sessions lists the account's live session records, oldest first.
func (s *SessionService) Sessions(ctx context.Context, accountID string) ([]domain.SessionRecord, error) {
	return s.store.List(ctx, accountID)
}

// AuthenticateAccess verifies an access token and loads the account it
// identifies. Token verification itself never consults the session store,
// but the account load means a deleted account stops authenticating at once
// and a tier change applies to the next request, not the next token.
func (s *SessionService) AuthenticateAccess(ctx context.Context, tokenString string) (*domain.Account, error) {
	claims, err := s.codec.Verify(tokenString, auth.KindAccess)
	if err != nil {
		return nil, err
	}

	account, err := s.accountRepo.GetByID(ctx, claims.AccountID)
	if err != nil {
		return nil, apperrors.InvalidCredential("account no longer exists")
	}
	return account, nil
}

// Account returns the account backing an authenticated request.
func (s *SessionService) Account(ctx context.Context, accountID string) (*domain.Account, error) {
	return s.accountRepo.GetByID(ctx, accountID)
}

// UpgradeToPremium moves the account onto the premium tier. Payment is
// handled out of band; upgrading an account that is already premium is a
// no-op.
func (s *SessionService) UpgradeToPremium(ctx context.Context, accountID string) (*domain.Account, error) {
	account, err := s.accountRepo.GetByID(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if account.Tier == domain.TierPremium {
		return account, nil
	}

	if err := s.accountRepo.UpdateTier(ctx, accountID, domain.TierPremium); err != nil {
		return nil, fmt.Errorf("update tier: %w", err)
	}
	account.Tier = domain.TierPremium

	s.logger.InfoContext(ctx, "account upgraded to premium",
		slog.String("account_id", accountID),
	)

	return account, nil
}
