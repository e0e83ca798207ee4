package notification

import "time"

// Notification is the persisted projection of an event envelope.
// At most one document exists per EventID, enforced by the unique index on
// the store, not by application logic. Read is the only mutable field.
type Notification struct {
	EventID   string         `bson:"event_id" json:"event_id"`
	EventType string         `bson:"event_type" json:"event_type"`
	UserID    string         `bson:"user_id" json:"user_id"`
	Timestamp time.Time      `bson:"timestamp" json:"timestamp"`
	Payload   map[string]any `bson:"payload" json:"payload"`
	Read      bool           `bson:"read" json:"read"`
	CreatedAt time.Time      `bson:"created_at" json:"created_at"`
}
