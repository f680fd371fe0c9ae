// Package event publishes domain events to Kafka.
package event

import (
	"context"
	"log/slog"

	"github.com/sandesh333-sw/Unyt/internal/domain"
	"github.com/sandesh333-sw/Unyt/pkg/kafka"
	"github.com/sandesh333-sw/Unyt/pkg/logger"
)

// Topics per aggregate. Security events get their own topic so alerting can
// consume them without the listing firehose.
const (
	TopicAccounts = "unyt.accounts"
	TopicListings = "unyt.listings"
	TopicSecurity = "unyt.security"

	source = "unyt-server"
)

// Publisher emits domain events. All publishing is best-effort: failures are
// logged and never fail the triggering request.
type Publisher interface {
	AccountRegistered(ctx context.Context, a *domain.Account)
	ListingCreated(ctx context.Context, l *domain.Listing)
	ListingDeleted(ctx context.Context, listingID, accountID string)
	SessionReuseDetected(ctx context.Context, accountID string, sessionsRevoked int)
}

// KafkaPublisher implements Publisher on the shared Kafka producer.
type KafkaPublisher struct {
	producer *kafka.Producer
	logger   *slog.Logger
}

// NewKafkaPublisher creates a Kafka-backed event publisher.
func NewKafkaPublisher(producer *kafka.Producer, logger *slog.Logger) *KafkaPublisher {
	return &KafkaPublisher{producer: producer, logger: logger}
}

func (p *KafkaPublisher) publish(ctx context.Context, topic, eventType, aggregateID, aggregateType string, payload any) {
	ev, err := kafka.NewEvent(eventType, aggregateID, aggregateType, source, payload)
	if err != nil {
		p.logger.ErrorContext(ctx, "build event failed",
			slog.String("event_type", eventType),
			slog.String("error", err.Error()),
		)
		return
	}
	if id := logger.CorrelationIDFromContext(ctx); id != "" {
		ev.WithCorrelationID(id)
	}

	// Publish failures are logged by the producer and never fail the request.
	_ = p.producer.Publish(ctx, topic, ev)
}

// AccountRegistered announces a new account.
func (p *KafkaPublisher) AccountRegistered(ctx context.Context, a *domain.Account) {
	p.publish(ctx, TopicAccounts, "account.registered", a.ID, "account", map[string]any{
		"email": a.Email,
		"tier":  a.Tier,
	})
}

// ListingCreated announces a new listing.
func (p *KafkaPublisher) ListingCreated(ctx context.Context, l *domain.Listing) {
	p.publish(ctx, TopicListings, "listing.created", l.ID, "listing", map[string]any{
		"account_id": l.AccountID,
		"type":       l.Type,
		"title":      l.Title,
	})
}

// ListingDeleted announces a listing removal.
func (p *KafkaPublisher) ListingDeleted(ctx context.Context, listingID, accountID string) {
	p.publish(ctx, TopicListings, "listing.deleted", listingID, "listing", map[string]any{
		"account_id": accountID,
	})
}

// SessionReuseDetected announces a refresh token reuse incident and the
// resulting session wipe.
func (p *KafkaPublisher) SessionReuseDetected(ctx context.Context, accountID string, sessionsRevoked int) {
	p.publish(ctx, TopicSecurity, "session.reuse_detected", accountID, "account", map[string]any{
		"sessions_revoked": sessionsRevoked,
	})
}

// NoopPublisher discards all events. Used when Kafka is not configured.
type NoopPublisher struct{}

func (NoopPublisher) AccountRegistered(context.Context, *domain.Account)      {}
func (NoopPublisher) ListingCreated(context.Context, *domain.Listing)         {}
func (NoopPublisher) ListingDeleted(ctx context.Context, _, _ string)         {}
func (NoopPublisher) SessionReuseDetected(ctx context.Context, _ string, _ int) {}
