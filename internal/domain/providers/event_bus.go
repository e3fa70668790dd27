package providers

import (
	"context"

	"github.com/hirepulse/visitor-telemetry/internal/domain/entities"
)

// EventBus defines the interface for publishing and subscribing to presence events
type EventBus interface {
	// Publish publishes an event to all subscribers of channel
	Publish(ctx context.Context, channel string, event *entities.PresenceEvent) error

	// Subscribe subscribes to events on a channel
	Subscribe(ctx context.Context, channel string) (<-chan *entities.PresenceEvent, error)

	// Unsubscribe unsubscribes from a channel
	Unsubscribe(ctx context.Context, channel string) error

	// Close closes the event bus and all subscriptions
	Close() error
}

const (
	// EventChannelPresenceUpdates carries every presence change
	EventChannelPresenceUpdates = "presence:updates"

	// EventChannelVisitorPrefix is the prefix for visitor-specific channels
	EventChannelVisitorPrefix = "presence:visitor:"
)

// GetVisitorChannel returns the channel name for a specific visitor
func GetVisitorChannel(visitorID string) string {
	return EventChannelVisitorPrefix + visitorID
}
