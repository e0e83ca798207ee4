// Package store persists notifications in MongoDB. The unique index on
// event_id (see infrastructure/mongo.EnsureIndexes) is what makes Save safe
// to repeat on redelivery.
package store

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/WillamesCampos/notification-producer-api/internal/domain/event"
	"github.com/WillamesCampos/notification-producer-api/internal/domain/notification"
)

type NotificationStore struct {
	coll *mongo.Collection
	log  *slog.Logger

	// now is swappable in tests.
	now func() time.Time
}

func NewNotificationStore(coll *mongo.Collection, log *slog.Logger) *NotificationStore {
	return &NotificationStore{
		coll: coll,
		log:  log,
		now:  func() time.Time { return time.Now().UTC() },
	}
}

// FromEnvelope projects an envelope onto the stored notification shape.
func FromEnvelope(evt event.Envelope, createdAt time.Time) notification.Notification {
	payload := evt.Payload
	if payload == nil {
		payload = map[string]any{}
	}

	return notification.Notification{
		EventID:   evt.EventID,
		EventType: evt.EventType.String(),
		UserID:    evt.UserID,
		Timestamp: evt.Timestamp.UTC(),
		Payload:   payload,
		Read:      false,
		CreatedAt: createdAt,
	}
}

// Save inserts the notification for evt. A duplicate event_id is the
// expected redelivery case and returns (nil, nil); any other persistence
// error propagates so the caller can leave the message uncommitted.
func (s *NotificationStore) Save(ctx context.Context, evt event.Envelope) (*notification.Notification, error) {
	notif := FromEnvelope(evt, s.now())

	if _, err := s.coll.InsertOne(ctx, notif); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			s.log.Warn("notification already exists", "event_id", evt.EventID)
			return nil, nil
		}
		return nil, fmt.Errorf("insert notification %s: %w", evt.EventID, err)
	}

	s.log.Info("notification saved", "event_id", evt.EventID, "event_type", evt.EventType)
	return &notif, nil
}

// ListForUser returns the user's notifications ordered by timestamp
// descending, windowed by skip/limit. Store errors are logged and surface
// as an empty result; bounds checking happens at the API boundary.
func (s *NotificationStore) ListForUser(ctx context.Context, userID string, limit, skip int64) []notification.Notification {
	opts := options.Find().
		SetSort(bson.D{{Key: "timestamp", Value: -1}}).
		SetSkip(skip).
		SetLimit(limit)

	cursor, err := s.coll.Find(ctx, bson.M{"user_id": userID}, opts)
	if err != nil {
		s.log.Error("failed to query notifications", "user_id", userID, "error", err)
		return []notification.Notification{}
	}
	defer cursor.Close(ctx)

	notifications := []notification.Notification{}
	if err := cursor.All(ctx, &notifications); err != nil {
		s.log.Error("failed to decode notifications", "user_id", userID, "error", err)
		return []notification.Notification{}
	}

	return notifications
}

// MarkRead flips read to true for the document matching both event_id and
// user_id. The user_id filter guards against cross-user mutation. Returns
// true only when a document was actually modified, so marking an
// already-read or missing notification reports false.
func (s *NotificationStore) MarkRead(ctx context.Context, eventID, userID string) bool {
	result, err := s.coll.UpdateOne(ctx,
		bson.M{"event_id": eventID, "user_id": userID},
		bson.M{"$set": bson.M{"read": true}},
	)
	if err != nil {
		s.log.Error("failed to mark notification as read", "event_id", eventID, "error", err)
		return false
	}

	if result.ModifiedCount == 0 {
		s.log.Warn("notification not found or already read", "event_id", eventID, "user_id", userID)
		return false
	}

	s.log.Info("notification marked as read", "event_id", eventID)
	return true
}
