package database

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"storefront/internal/models"
)

// WebhookEventStore records processed provider event ids. The unique index
// on eventId makes Record safe under concurrent redelivery.
type WebhookEventStore struct {
	coll *mongo.Collection
}

func NewWebhookEventStore(db *mongo.Database) *WebhookEventStore {
	return &WebhookEventStore{coll: db.Collection(webhookEventsCollection)}
}

func (s *WebhookEventStore) Seen(ctx context.Context, eventID string) (bool, error) {
	count, err := s.coll.CountDocuments(ctx, bson.M{"eventId": eventID}, options.Count().SetLimit(1))
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (s *WebhookEventStore) Record(ctx context.Context, event models.WebhookEvent) error {
	_, err := s.coll.InsertOne(ctx, event)
	if mongo.IsDuplicateKeyError(err) {
		return nil
	}
	return err
}
