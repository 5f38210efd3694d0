package events

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/google/uuid"
)

// recordingHandler implements EventHandler and records what it receives.
type recordingHandler struct {
	received []*PlatformEvent
	err      error
}

func (h *recordingHandler) HandleEvent(ctx context.Context, event *PlatformEvent) error {
	h.received = append(h.received, event)
	return h.err
}

func newTestEmitter() *InMemoryEventEmitter {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewInMemoryEventEmitter(logger)
}

func TestNewPlatformEvent(t *testing.T) {
	payload := map[string]string{"product_id": "gid://shopify/Product/1"}

	event, err := NewPlatformEvent(EventTypeProductCreated, "example.myshopify.com", payload)
	require.NoError(t, err)

	assert.NotEqual(t, uuid.Nil, event.ID)
	assert.Equal(t, EventTypeProductCreated, event.Type)
	assert.Equal(t, "example.myshopify.com", event.ShopDomain)
	assert.False(t, event.OccurredAt.IsZero())

	var decoded map[string]string
	require.NoError(t, event.UnmarshalPayload(&decoded))
	assert.Equal(t, payload, decoded)

	// Unmarshalable payloads are rejected at construction.
	_, err = NewPlatformEvent(EventTypeProductCreated, "example.myshopify.com", make(chan int))
	assert.Error(t, err)
}

func TestEmitEventDeliversToAllHandlers(t *testing.T) {
	emitter := newTestEmitter()
	first := &recordingHandler{}
	second := &recordingHandler{}
	emitter.RegisterHandler(first)
	emitter.RegisterHandler(second)

	event, err := NewPlatformEvent(EventTypeSubscriptionUpdated, "example.myshopify.com", map[string]string{"plan_tier": "pro"})
	require.NoError(t, err)

	require.NoError(t, emitter.EmitEvent(context.Background(), event))

	require.Len(t, first.received, 1)
	require.Len(t, second.received, 1)
	assert.Equal(t, event.ID, first.received[0].ID)
}

func TestEmitEventContinuesPastFailingHandler(t *testing.T) {
	emitter := newTestEmitter()
	failing := &recordingHandler{err: errors.New("handler exploded")}
	healthy := &recordingHandler{}
	emitter.RegisterHandler(failing)
	emitter.RegisterHandler(healthy)

	event, err := NewPlatformEvent(EventTypeProductCreated, "example.myshopify.com", map[string]string{})
	require.NoError(t, err)

	// The first error is returned, but every handler still sees the event.
	err = emitter.EmitEvent(context.Background(), event)
	assert.EqualError(t, err, "handler exploded")
	assert.Len(t, healthy.received, 1)
}

func TestEmitEventWithoutHandlers(t *testing.T) {
	emitter := newTestEmitter()

	event, err := NewPlatformEvent(EventTypeProductCreated, "example.myshopify.com", map[string]string{})
	require.NoError(t, err)

	assert.NoError(t, emitter.EmitEvent(context.Background(), event))
}
