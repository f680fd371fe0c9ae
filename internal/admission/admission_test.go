package admission

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sandesh333-sw/Unyt/internal/domain"
)

func setupController(t *testing.T) (*Controller, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewController(client), mr
}

func TestAdmit_WithinBudget(t *testing.T) {
	ctrl, _ := setupController(t)
	ctx := context.Background()

	budget := domain.LimitsFor(domain.TierFree).RequestBudget
	for i := 0; i < budget; i++ {
		d, err := ctrl.Admit(ctx, "10.0.0.1", domain.TierFree)
		require.NoError(t, err)
		assert.True(t, d.Allowed, "request %d", i+1)
		assert.Equal(t, budget-i-1, d.Remaining)
	}
}

func TestAdmit_FreeTier_LockoutAfterBudget(t *testing.T) {
	ctrl, _ := setupController(t)
	ctx := context.Background()

	budget := domain.LimitsFor(domain.TierFree).RequestBudget
	for i := 0; i < budget; i++ {
		d, err := ctrl.Admit(ctx, "10.0.0.1", domain.TierFree)
		require.NoError(t, err)
		require.True(t, d.Allowed)
	}

	// The breaching request arms the lockout.
	d, err := ctrl.Admit(ctx, "10.0.0.1", domain.TierFree)
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, 15*time.Minute, d.RetryAfter)

	// While locked out, rejections come from the lock key.
	d, err = ctrl.Admit(ctx, "10.0.0.1", domain.TierFree)
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Greater(t, d.RetryAfter, time.Duration(0))
}

func TestAdmit_PremiumTier_NoLockout(t *testing.T) {
	ctrl, mr := setupController(t)
	ctx := context.Background()

	budget := domain.LimitsFor(domain.TierPremium).RequestBudget
	for i := 0; i < budget; i++ {
		d, err := ctrl.Admit(ctx, "10.0.0.2", domain.TierPremium)
		require.NoError(t, err)
		require.True(t, d.Allowed)
	}

	d, err := ctrl.Admit(ctx, "10.0.0.2", domain.TierPremium)
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	// Retry hint is the remaining window, not a lockout.
	assert.Greater(t, d.RetryAfter, time.Duration(0))
	assert.LessOrEqual(t, d.RetryAfter, 15*time.Minute)

	// Once the window rolls over, requests flow again immediately.
	mr.FastForward(16 * time.Minute)
	d, err = ctrl.Admit(ctx, "10.0.0.2", domain.TierPremium)
	require.NoError(t, err)
	assert.True(t, d.Allowed)
}

func TestAdmit_LockoutOutlastsWindow(t *testing.T) {
	ctrl, mr := setupController(t)
	ctx := context.Background()

	budget := domain.LimitsFor(domain.TierFree).RequestBudget
	for i := 0; i < budget+1; i++ {
		_, err := ctrl.Admit(ctx, "10.0.0.3", domain.TierFree)
		require.NoError(t, err)
	}

	// Ten minutes in, the window would admit again but the lockout holds.
	mr.FastForward(10 * time.Minute)
	d, err := ctrl.Admit(ctx, "10.0.0.3", domain.TierFree)
	require.NoError(t, err)
	assert.False(t, d.Allowed)

	// After the lockout passes, admission resumes.
	mr.FastForward(6 * time.Minute)
	d, err = ctrl.Admit(ctx, "10.0.0.3", domain.TierFree)
	require.NoError(t, err)
	assert.True(t, d.Allowed)
}

func TestAdmit_SeparateAddressesAndTiers(t *testing.T) {
	ctrl, _ := setupController(t)
	ctx := context.Background()

	budget := domain.LimitsFor(domain.TierFree).RequestBudget
	for i := 0; i < budget+1; i++ {
		_, err := ctrl.Admit(ctx, "10.0.0.4", domain.TierFree)
		require.NoError(t, err)
	}

	// A different address is unaffected.
	d, err := ctrl.Admit(ctx, "10.0.0.5", domain.TierFree)
	require.NoError(t, err)
	assert.True(t, d.Allowed)

	// The same address on a different tier counts separately.
	d, err = ctrl.Admit(ctx, "10.0.0.4", domain.TierPremium)
	require.NoError(t, err)
	assert.True(t, d.Allowed)
}

func TestAdmit_ConcurrentFairness(t *testing.T) {
	ctrl, _ := setupController(t)
	ctx := context.Background()

	budget := domain.LimitsFor(domain.TierPremium).RequestBudget
	requests := budget + 40

	var allowed atomic.Int32
	var wg sync.WaitGroup
	wg.Add(requests)
	for i := 0; i < requests; i++ {
		go func() {
			defer wg.Done()
			d, err := ctrl.Admit(ctx, "10.0.0.6", domain.TierPremium)
			assert.NoError(t, err)
			if d.Allowed {
				allowed.Add(1)
			}
		}()
	}
	wg.Wait()

	// Exactly the budget is admitted, never more.
	assert.Equal(t, int32(budget), allowed.Load())
}

func TestAdmit_RedisDown(t *testing.T) {
	ctrl, mr := setupController(t)
	mr.Close()

	_, err := ctrl.Admit(context.Background(), "10.0.0.7", domain.TierFree)
	assert.Error(t, err)
}
