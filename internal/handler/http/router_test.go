package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sandesh333-sw/Unyt/internal/admission"
	"github.com/sandesh333-sw/Unyt/internal/auth"
	"github.com/sandesh333-sw/Unyt/internal/cache"
	"github.com/sandesh333-sw/Unyt/internal/domain"
	"github.com/sandesh333-sw/Unyt/internal/event"
	"github.com/sandesh333-sw/Unyt/internal/repository"
	"github.com/sandesh333-sw/Unyt/internal/repository/memory"
	"github.com/sandesh333-sw/Unyt/internal/service"
	storagememory "github.com/sandesh333-sw/Unyt/internal/storage/memory"
	apperrors "github.com/sandesh333-sw/Unyt/pkg/errors"
	"github.com/sandesh333-sw/Unyt/pkg/health"
	"github.com/sandesh333-sw/Unyt/pkg/middleware"
)

// --- Fake repositories ---

type fakeAccountRepo struct {
	mu      sync.Mutex
	byID    map[string]*domain.Account
	byEmail map[string]*domain.Account
}

func newFakeAccountRepo() *fakeAccountRepo {
	return &fakeAccountRepo{
		byID:    make(map[string]*domain.Account),
		byEmail: make(map[string]*domain.Account),
	}
}

func (f *fakeAccountRepo) Create(ctx context.Context, a *domain.Account) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.byEmail[a.Email]; ok {
		return apperrors.AlreadyExists("account", "email", a.Email)
	}
	cp := *a
	f.byID[a.ID] = &cp
	f.byEmail[a.Email] = &cp
	return nil
}

func (f *fakeAccountRepo) GetByID(ctx context.Context, id string) (*domain.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.byID[id]
	if !ok {
		return nil, apperrors.NotFound("account", id)
	}
	cp := *a
	return &cp, nil
}

func (f *fakeAccountRepo) GetByEmail(ctx context.Context, email string) (*domain.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.byEmail[email]
	if !ok {
		return nil, apperrors.NotFound("account", email)
	}
	cp := *a
	return &cp, nil
}

func (f *fakeAccountRepo) UpdateTier(ctx context.Context, id string, tier domain.Tier) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.byID[id]
	if !ok {
		return apperrors.NotFound("account", id)
	}
	a.Tier = tier
	return nil
}

func (f *fakeAccountRepo) AdjustActiveListings(ctx context.Context, id string, delta int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if a, ok := f.byID[id]; ok {
		a.ActiveListings += delta
		if a.ActiveListings < 0 {
			a.ActiveListings = 0
		}
	}
	return nil
}

type fakeListingRepo struct {
	mu       sync.Mutex
	listings map[string]*domain.Listing
}

func newFakeListingRepo() *fakeListingRepo {
	return &fakeListingRepo{listings: make(map[string]*domain.Listing)}
}

func (f *fakeListingRepo) Create(ctx context.Context, l *domain.Listing) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *l
	f.listings[l.ID] = &cp
	return nil
}

func (f *fakeListingRepo) GetByID(ctx context.Context, id string) (*domain.Listing, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	l, ok := f.listings[id]
	if !ok {
		return nil, apperrors.NotFound("listing", id)
	}
	cp := *l
	return &cp, nil
}

func (f *fakeListingRepo) Update(ctx context.Context, l *domain.Listing) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.listings[l.ID]; !ok {
		return apperrors.NotFound("listing", l.ID)
	}
	cp := *l
	f.listings[l.ID] = &cp
	return nil
}

func (f *fakeListingRepo) Delete(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.listings[id]; !ok {
		return apperrors.NotFound("listing", id)
	}
	delete(f.listings, id)
	return nil
}

func (f *fakeListingRepo) Search(ctx context.Context, filter repository.ListingFilter, limit, offset int) ([]*domain.Listing, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var matched []*domain.Listing
	for _, l := range f.listings {
		if filter.Status != "" && l.Status != filter.Status {
			continue
		}
		if filter.Type != "" && l.Type != filter.Type {
			continue
		}
		if filter.AccountID != "" && l.AccountID != filter.AccountID {
			continue
		}
		if filter.Query != "" && !strings.Contains(strings.ToLower(l.Title), strings.ToLower(filter.Query)) {
			continue
		}
		cp := *l
		matched = append(matched, &cp)
	}

	total := len(matched)
	if offset > len(matched) {
		offset = len(matched)
	}
	end := offset + limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[offset:end], total, nil
}

func (f *fakeListingRepo) IncrementViews(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if l, ok := f.listings[id]; ok {
		l.Views++
	}
	return nil
}

func (f *fakeListingRepo) CountActiveByAccount(ctx context.Context, accountID string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for _, l := range f.listings {
		if l.AccountID == accountID && l.Status == domain.ListingActive {
			count++
		}
	}
	return count, nil
}

// --- Fixture ---

type routerFixture struct {
	server   *httptest.Server
	accounts *fakeAccountRepo
	listings *fakeListingRepo
}

func newRouterFixture(t *testing.T) *routerFixture {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	accounts := newFakeAccountRepo()
	listings := newFakeListingRepo()
	store := memory.NewSessionStore()
	codec := auth.NewCodec("access-secret-for-tests", "refresh-secret-for-tests", 15*time.Minute, 7*24*time.Hour, "unyt")

	sessionSvc := service.NewSessionService(accounts, store, codec, event.NoopPublisher{}, logger, 10, "herts.ac.uk")
	listingSvc := service.NewListingService(listings, accounts, cache.NewListingCache(client, logger), storagememory.New("http://localhost:8080/media"), event.NoopPublisher{}, logger)

	router := NewRouter(
		sessionSvc,
		listingSvc,
		admission.NewController(client),
		health.NewHandler(),
		logger,
		middleware.CORSConfig{Environment: "development"},
	)

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	return &routerFixture{server: server, accounts: accounts, listings: listings}
}

func (f *routerFixture) do(t *testing.T, method, path, token string, body any) *http.Response {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, f.server.URL+path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := f.server.Client().Do(req)
	require.NoError(t, err)
	return resp
}

func decodeData[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()

	var envelope struct {
		Data T `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&envelope))
	return envelope.Data
}

func decodeErrorCode(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()

	var envelope struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&envelope))
	return envelope.Error.Code
}

type tokensPayload struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
}

type authPayload struct {
	Account domain.Account `json:"account"`
	Tokens  tokensPayload  `json:"tokens"`
}

func (f *routerFixture) register(t *testing.T, email, password string) authPayload {
	t.Helper()
	resp := f.do(t, http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"email":    email,
		"password": password,
		"name":     "Test Student",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	return decodeData[authPayload](t, resp)
}

// --- Auth flow ---

func TestRouter_AuthFlow(t *testing.T) {
	f := newRouterFixture(t)

	reg := f.register(t, "ab12cde@herts.ac.uk", "correct-horse")
	assert.Equal(t, "ab12cde@herts.ac.uk", reg.Account.Email)
	assert.NotEmpty(t, reg.Tokens.AccessToken)
	assert.NotEmpty(t, reg.Tokens.RefreshToken)

	// Login with the same credentials.
	resp := f.do(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"email":    "ab12cde@herts.ac.uk",
		"password": "correct-horse",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	login := decodeData[authPayload](t, resp)

	// Rotate the login refresh token.
	resp = f.do(t, http.MethodPost, "/api/v1/auth/refresh", "", map[string]string{
		"refresh_token": login.Tokens.RefreshToken,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	rotated := decodeData[tokensPayload](t, resp)
	assert.NotEqual(t, login.Tokens.RefreshToken, rotated.RefreshToken)

	// Presenting the consumed token again is reuse.
	resp = f.do(t, http.MethodPost, "/api/v1/auth/refresh", "", map[string]string{
		"refresh_token": login.Tokens.RefreshToken,
	})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "REUSE_DETECTED", decodeErrorCode(t, resp))
}

func TestRouter_RegisterRejectsForeignDomain(t *testing.T) {
	f := newRouterFixture(t)

	resp := f.do(t, http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"email":    "someone@gmail.com",
		"password": "correct-horse",
		"name":     "Someone",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
}

func TestRouter_RegisterDuplicateEmail(t *testing.T) {
	f := newRouterFixture(t)

	f.register(t, "ab12cde@herts.ac.uk", "correct-horse")
	resp := f.do(t, http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"email":    "ab12cde@herts.ac.uk",
		"password": "correct-horse",
		"name":     "Imposter",
	})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	resp.Body.Close()
}

func TestRouter_LoginWrongPassword(t *testing.T) {
	f := newRouterFixture(t)

	f.register(t, "ab12cde@herts.ac.uk", "correct-horse")
	resp := f.do(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"email":    "ab12cde@herts.ac.uk",
		"password": "wrong-horse",
	})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "INVALID_CREDENTIAL", decodeErrorCode(t, resp))
}

func TestRouter_SessionsAndLogout(t *testing.T) {
	f := newRouterFixture(t)

	reg := f.register(t, "ab12cde@herts.ac.uk", "correct-horse")

	resp := f.do(t, http.MethodGet, "/api/v1/auth/sessions", reg.Tokens.AccessToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	sessions := decodeData[[]domain.SessionRecord](t, resp)
	assert.Len(t, sessions, 1)

	resp = f.do(t, http.MethodPost, "/api/v1/auth/logout", reg.Tokens.AccessToken, map[string]string{
		"refresh_token": reg.Tokens.RefreshToken,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	// Session list is now empty; the access token itself stays valid until
	// it expires.
	resp = f.do(t, http.MethodGet, "/api/v1/auth/sessions", reg.Tokens.AccessToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	sessions = decodeData[[]domain.SessionRecord](t, resp)
	assert.Empty(t, sessions)
}

// --- Profile and upgrade ---

func TestRouter_Profile(t *testing.T) {
	f := newRouterFixture(t)

	reg := f.register(t, "ab12cde@herts.ac.uk", "correct-horse")

	resp := f.do(t, http.MethodGet, "/api/v1/auth/profile", reg.Tokens.AccessToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	account := decodeData[domain.Account](t, resp)
	assert.Equal(t, "ab12cde@herts.ac.uk", account.Email)
	assert.Equal(t, "Test Student", account.Name)
	assert.Equal(t, domain.TierFree, account.Tier)
}

func TestRouter_ProfileRequiresAuth(t *testing.T) {
	f := newRouterFixture(t)

	resp := f.do(t, http.MethodGet, "/api/v1/auth/profile", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()
}

func TestRouter_UpgradeToPremium(t *testing.T) {
	f := newRouterFixture(t)

	reg := f.register(t, "ab12cde@herts.ac.uk", "correct-horse")

	// Free tier caps the page size first.
	resp := f.do(t, http.MethodGet, "/api/v1/listings?per_page=100", reg.Tokens.AccessToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var page struct {
		Data struct {
			PerPage int `json:"per_page"`
		} `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&page))
	resp.Body.Close()
	require.Equal(t, 20, page.Data.PerPage)

	resp = f.do(t, http.MethodPost, "/api/v1/auth/upgrade", reg.Tokens.AccessToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	account := decodeData[domain.Account](t, resp)
	assert.Equal(t, domain.TierPremium, account.Tier)

	// The unchanged access token now resolves to the premium tier, so the
	// wider page size applies without re-login.
	resp = f.do(t, http.MethodGet, "/api/v1/listings?per_page=100", reg.Tokens.AccessToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&page))
	resp.Body.Close()
	assert.Equal(t, 100, page.Data.PerPage)
}

// --- Listings ---

func TestRouter_CreateListingRequiresAuth(t *testing.T) {
	f := newRouterFixture(t)

	resp := f.do(t, http.MethodPost, "/api/v1/listings", "", map[string]any{
		"type":  "goods",
		"title": "Desk lamp",
	})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()
}

func TestRouter_FreeTierListingCap(t *testing.T) {
	f := newRouterFixture(t)

	reg := f.register(t, "ab12cde@herts.ac.uk", "correct-horse")

	for i := 0; i < 3; i++ {
		resp := f.do(t, http.MethodPost, "/api/v1/listings", reg.Tokens.AccessToken, map[string]any{
			"type":  "goods",
			"title": fmt.Sprintf("Desk lamp number %d", i),
		})
		require.Equal(t, http.StatusCreated, resp.StatusCode)
		resp.Body.Close()
	}

	resp := f.do(t, http.MethodPost, "/api/v1/listings", reg.Tokens.AccessToken, map[string]any{
		"type":  "goods",
		"title": "One lamp too many",
	})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	resp.Body.Close()
}

func TestRouter_SearchPublic(t *testing.T) {
	f := newRouterFixture(t)

	reg := f.register(t, "ab12cde@herts.ac.uk", "correct-horse")
	resp := f.do(t, http.MethodPost, "/api/v1/listings", reg.Tokens.AccessToken, map[string]any{
		"type":  "housing",
		"title": "Double room near College Lane",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	resp = f.do(t, http.MethodGet, "/api/v1/listings?type=housing", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var envelope struct {
		Data struct {
			Data       []domain.Listing `json:"data"`
			TotalCount int              `json:"total_count"`
			PerPage    int              `json:"per_page"`
		} `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&envelope))
	resp.Body.Close()
	assert.Equal(t, 1, envelope.Data.TotalCount)
	require.Len(t, envelope.Data.Data, 1)
	assert.Equal(t, "Double room near College Lane", envelope.Data.Data[0].Title)
}

func TestRouter_AnonymousPageSizeCappedAtFreeTier(t *testing.T) {
	f := newRouterFixture(t)

	resp := f.do(t, http.MethodGet, "/api/v1/listings?per_page=100", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var envelope struct {
		Data struct {
			PerPage int `json:"per_page"`
		} `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&envelope))
	resp.Body.Close()
	assert.Equal(t, 20, envelope.Data.PerPage)
}

func TestRouter_UpdateForeignListingForbidden(t *testing.T) {
	f := newRouterFixture(t)

	owner := f.register(t, "ab12cde@herts.ac.uk", "correct-horse")
	resp := f.do(t, http.MethodPost, "/api/v1/listings", owner.Tokens.AccessToken, map[string]any{
		"type":  "goods",
		"title": "Desk lamp",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	created := decodeData[domain.Listing](t, resp)

	intruder := f.register(t, "xy98zwv@herts.ac.uk", "correct-horse")
	resp = f.do(t, http.MethodPatch, "/api/v1/listings/"+created.ID, intruder.Tokens.AccessToken, map[string]any{
		"title": "Hijacked lamp",
	})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	resp.Body.Close()
}

func TestRouter_UploadImage(t *testing.T) {
	f := newRouterFixture(t)

	reg := f.register(t, "ab12cde@herts.ac.uk", "correct-horse")
	resp := f.do(t, http.MethodPost, "/api/v1/listings", reg.Tokens.AccessToken, map[string]any{
		"type":  "goods",
		"title": "Desk lamp",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	created := decodeData[domain.Listing](t, resp)

	req, err := http.NewRequest(http.MethodPost, f.server.URL+"/api/v1/listings/"+created.ID+"/images", strings.NewReader("jpegdata"))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "image/jpeg")
	req.Header.Set("Authorization", "Bearer "+reg.Tokens.AccessToken)

	uploadResp, err := f.server.Client().Do(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, uploadResp.StatusCode)
	updated := decodeData[domain.Listing](t, uploadResp)
	require.Len(t, updated.Images, 1)
	assert.Contains(t, updated.Images[0], "/media/listings/"+created.ID+"/")
}

// --- Transport concerns ---

func TestRouter_RejectsNonJSONBody(t *testing.T) {
	f := newRouterFixture(t)

	req, err := http.NewRequest(http.MethodPost, f.server.URL+"/api/v1/auth/login", strings.NewReader("email=x"))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := f.server.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnsupportedMediaType, resp.StatusCode)
}

func TestRouter_AdmissionBudgetEnforced(t *testing.T) {
	f := newRouterFixture(t)

	budget := domain.LimitsFor(domain.TierFree).RequestBudget
	for i := 0; i < budget; i++ {
		req, err := http.NewRequest(http.MethodGet, f.server.URL+"/api/v1/listings", nil)
		require.NoError(t, err)
		req.Header.Set("X-Forwarded-For", "203.0.113.9")

		resp, err := f.server.Client().Do(req)
		require.NoError(t, err)
		resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)
	}

	req, err := http.NewRequest(http.MethodGet, f.server.URL+"/api/v1/listings", nil)
	require.NoError(t, err)
	req.Header.Set("X-Forwarded-For", "203.0.113.9")

	resp, err := f.server.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("Retry-After"))

	// A different address is unaffected.
	req, err = http.NewRequest(http.MethodGet, f.server.URL+"/api/v1/listings", nil)
	require.NoError(t, err)
	req.Header.Set("X-Forwarded-For", "203.0.113.10")

	resp2, err := f.server.Client().Do(req)
	require.NoError(t, err)
	defer resp2.Body.Close()
	assert.Equal(t, http.StatusOK, resp2.StatusCode)
}

func TestRouter_HealthEndpoints(t *testing.T) {
	f := newRouterFixture(t)

	resp, err := f.server.Client().Get(f.server.URL + "/health/live")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = f.server.Client().Get(f.server.URL + "/health/ready")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
