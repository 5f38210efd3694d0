package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Event types emitted by the webhook layer.
const (
	// EventTypeProductCreated is emitted when the platform reports a newly
	// created product in a shop.
	EventTypeProductCreated = "product_created"

	// EventTypeSubscriptionUpdated is emitted when a shop's app
	// subscription (plan) changes.
	EventTypeSubscriptionUpdated = "subscription_updated"
)

// PlatformEvent represents one notification received from the commerce
// platform. It carries the originating shop and a type-specific payload
// without direct dependencies on the packages that act on it.
type PlatformEvent struct {
	// ID is a unique identifier for this event
	ID uuid.UUID `json:"id"`

	// Type indicates which platform notification this event carries
	Type string `json:"type"`

	// ShopDomain identifies the shop the notification originated from
	ShopDomain string `json:"shop_domain"`

	// Payload contains the type-specific data serialized as JSON
	Payload json.RawMessage `json:"payload"`

	// OccurredAt is the timestamp when the event was created
	OccurredAt time.Time `json:"occurred_at"`
}

// UnmarshalPayload decodes the event payload into the provided structure.
func (e *PlatformEvent) UnmarshalPayload(v any) error {
	return json.Unmarshal(e.Payload, v)
}

// NewPlatformEvent creates a new PlatformEvent with the specified type,
// shop, and payload.
func NewPlatformEvent(eventType, shopDomain string, payload any) (*PlatformEvent, error) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	return &PlatformEvent{
		ID:         uuid.New(),
		Type:       eventType,
		ShopDomain: shopDomain,
		Payload:    payloadBytes,
		OccurredAt: time.Now().UTC(),
	}, nil
}

// EventHandler defines an interface for components that can handle events.
type EventHandler interface {
	// HandleEvent processes the given event within the provided context.
	// Returns an error if the event cannot be handled successfully.
	HandleEvent(ctx context.Context, event *PlatformEvent) error
}

// EventEmitter defines an interface for components that can emit events.
// This allows the webhook layer to publish events without direct knowledge
// of handlers.
type EventEmitter interface {
	// EmitEvent publishes the given event to all registered handlers.
	// Returns an error if the event cannot be emitted.
	EmitEvent(ctx context.Context, event *PlatformEvent) error
}
