package kafka

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sessionReusePayload struct {
	AccountID       string `json:"account_id"`
	SessionsRevoked int    `json:"sessions_revoked"`
}

func TestNewEvent(t *testing.T) {
	payload := sessionReusePayload{AccountID: "acc-1", SessionsRevoked: 3}

	event, err := NewEvent("session.reuse_detected", "acc-1", "account", "unyt", payload)
	require.NoError(t, err)

	_, err = uuid.Parse(event.EventID)
	assert.NoError(t, err)
	assert.Equal(t, "session.reuse_detected", event.EventType)
	assert.Equal(t, "acc-1", event.AggregateID)
	assert.Equal(t, "account", event.AggregateType)
	assert.False(t, event.OccurredAt.IsZero())
}

func TestEvent_RoundTrip(t *testing.T) {
	event, err := NewEvent("listing.created", "lst-1", "listing", "unyt", map[string]string{"type": "housing"})
	require.NoError(t, err)
	event.WithCorrelationID("corr-1")

	data, err := event.Marshal()
	require.NoError(t, err)

	decoded, err := UnmarshalEvent(data)
	require.NoError(t, err)
	assert.Equal(t, event.EventID, decoded.EventID)
	assert.Equal(t, "corr-1", decoded.CorrelationID)

	var payload map[string]string
	require.NoError(t, decoded.UnmarshalData(&payload))
	assert.Equal(t, "housing", payload["type"])
}

func TestNewEvent_UnmarshalableData(t *testing.T) {
	_, err := NewEvent("x", "y", "z", "unyt", make(chan int))
	assert.Error(t, err)
}
