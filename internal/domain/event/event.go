package event

import (
	"fmt"
	"time"
)

// Type is the category of an event flowing through the pipeline.
type Type string

const (
	TypeNotificationCreated Type = "notification.created"
	TypeNotificationSent    Type = "notification.sent"
	TypeNotificationFailed  Type = "notification.failed"
	TypeUserRegistered      Type = "user.registered"
	TypeUserUpdated         Type = "user.updated"
)

// Types lists the supported event types in a stable order.
func Types() []Type {
	return []Type{
		TypeNotificationCreated,
		TypeNotificationSent,
		TypeNotificationFailed,
		TypeUserRegistered,
		TypeUserUpdated,
	}
}

func (t Type) Valid() bool {
	switch t {
	case TypeNotificationCreated, TypeNotificationSent, TypeNotificationFailed,
		TypeUserRegistered, TypeUserUpdated:
		return true
	}
	return false
}

func (t Type) String() string {
	return string(t)
}

// Envelope is the canonical event record published to Kafka.
// EventID is assigned exactly once at the producer boundary and is never
// regenerated downstream; the consumer keys idempotency on it.
type Envelope struct {
	EventID   string         `json:"event_id"`
	EventType Type           `json:"event_type"`
	UserID    string         `json:"user_id"`
	Payload   map[string]any `json:"payload"`
	Timestamp time.Time      `json:"timestamp"`
}

func (e Envelope) Validate() error {
	if e.EventID == "" {
		return fmt.Errorf("event_id is required")
	}
	if !e.EventType.Valid() {
		return fmt.Errorf("unsupported event type %q", e.EventType)
	}
	if e.UserID == "" {
		return fmt.Errorf("user_id is required")
	}
	return nil
}
