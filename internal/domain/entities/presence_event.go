package entities

import (
	"time"

	"github.com/google/uuid"
)

// PresenceEventType represents the type of presence change
type PresenceEventType string

const (
	PresenceEventTypeUpdated PresenceEventType = "presence.updated"
	PresenceEventTypeIdle    PresenceEventType = "presence.idle"
	PresenceEventTypeExpired PresenceEventType = "presence.expired"
)

// PresenceEvent is a real-time notification about a live visitor
type PresenceEvent struct {
	ID        string            `json:"id"`
	VisitorID string            `json:"visitor_id"`
	EventType PresenceEventType `json:"event_type"`
	Timestamp time.Time         `json:"timestamp"`
	// Visitor is the live record after the change; nil for expiry.
	Visitor *LiveVisitor `json:"visitor,omitempty"`
}

// NewPresenceEvent creates a new presence event
func NewPresenceEvent(visitorID string, eventType PresenceEventType, visitor *LiveVisitor, at time.Time) *PresenceEvent {
	return &PresenceEvent{
		ID:        uuid.NewString(),
		VisitorID: visitorID,
		EventType: eventType,
		Timestamp: at,
		Visitor:   visitor,
	}
}
