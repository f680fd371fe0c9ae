// Package admission enforces per-tier request budgets using fixed-window
// Redis counters keyed by (client IP, tier).
package admission

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"

	"github.com/sandesh333-sw/Unyt/internal/domain"
	apperrors "github.com/sandesh333-sw/Unyt/pkg/errors"
)

var admissionRejections = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "admission_rejections_total",
		Help: "Requests rejected by the admission controller",
	},
	[]string{"tier"},
)

// Decision is the outcome of an admission check.
type Decision struct {
	Allowed   bool
	Remaining int

	// RetryAfter is set on rejections: the lockout duration when a lockout
	// was triggered, otherwise the time left in the current window.
	RetryAfter time.Duration
}

// Controller admits or rejects requests against the tier budget table.
type Controller struct {
	client *redis.Client
}

// NewController creates an admission controller on the given Redis client.
func NewController(client *redis.Client) *Controller {
	return &Controller{client: client}
}

func windowKey(ip string, tier domain.Tier) string {
	return "admission:win:" + string(tier) + ":" + ip
}

func lockKey(ip string, tier domain.Tier) string {
	return "admission:lock:" + string(tier) + ":" + ip
}

// Admit counts the request against the (ip, tier) window and decides.
// INCR is atomic, so under K concurrent requests with budget B exactly B are
// admitted. Tiers with a lockout stay blocked for the lockout duration after
// the budget is first exceeded.
func (c *Controller) Admit(ctx context.Context, ip string, tier domain.Tier) (Decision, error) {
	limits := domain.LimitsFor(tier)

	if limits.Lockout > 0 {
		ttl, err := c.client.PTTL(ctx, lockKey(ip, tier)).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return Decision{}, apperrors.StorageUnavailable(err)
		}
		if ttl > 0 {
			admissionRejections.WithLabelValues(string(tier)).Inc()
			return Decision{Allowed: false, RetryAfter: ttl}, nil
		}
	}

	key := windowKey(ip, tier)
	count, err := c.client.Incr(ctx, key).Result()
	if err != nil {
		return Decision{}, apperrors.StorageUnavailable(err)
	}
	// Fixed-window semantics: the first hit opens the window.
	if count == 1 {
		if err := c.client.Expire(ctx, key, limits.RequestWindow).Err(); err != nil {
			return Decision{}, apperrors.StorageUnavailable(err)
		}
	}

	if count > int64(limits.RequestBudget) {
		retryAfter := limits.Lockout
		if limits.Lockout > 0 {
			// SetNX so a burst past the budget arms the lockout once.
			if err := c.client.SetNX(ctx, lockKey(ip, tier), 1, limits.Lockout).Err(); err != nil {
				return Decision{}, apperrors.StorageUnavailable(err)
			}
		} else {
			ttl, err := c.client.PTTL(ctx, key).Result()
			if err != nil {
				return Decision{}, apperrors.StorageUnavailable(err)
			}
			retryAfter = ttl
		}
		admissionRejections.WithLabelValues(string(tier)).Inc()
		return Decision{Allowed: false, RetryAfter: retryAfter}, nil
	}

	return Decision{Allowed: true, Remaining: limits.RequestBudget - int(count)}, nil
}
