package database

import (
	"context"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// EnsureIndexes creates every index the stores rely on. It stops at the
// first failure.
func EnsureIndexes(db *mongo.Database) error {
	for _, ensure := range []func(*mongo.Database) error{
		EnsureOrderIndexes,
		EnsureNotificationIndexes,
		EnsureWebhookEventIndexes,
	} {
		if err := ensure(db); err != nil {
			return err
		}
	}
	return nil
}

func EnsureOrderIndexes(db *mongo.Database) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	indexes := db.Collection(ordersCollection).Indexes()

	orderIndexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "userId", Value: 1}, {Key: "createdAt", Value: -1}},
			Options: options.Index().SetName("userId_createdAt"),
		},
		{
			Keys:    bson.D{{Key: "createdAt", Value: -1}},
			Options: options.Index().SetName("createdAt_desc"),
		},
		{
			Keys: bson.D{{Key: "paymentResult.providerOrderId", Value: 1}},
			Options: options.Index().
				SetName("providerOrderId").
				SetSparse(true),
		},
	}

	log.Println("EnsureOrderIndexes: creating order indexes")
	if _, err := indexes.CreateMany(ctx, orderIndexes); err != nil {
		log.Println("EnsureOrderIndexes: index error:", err)
		return err
	}
	log.Println("EnsureOrderIndexes: order indexes created")
	return nil
}

func EnsureNotificationIndexes(db *mongo.Database) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	indexes := db.Collection(notificationsCollection).Indexes()

	inboxIndex := mongo.IndexModel{
		Keys:    bson.D{{Key: "userId", Value: 1}, {Key: "createdAt", Value: -1}},
		Options: options.Index().SetName("userId_createdAt"),
	}

	log.Println("EnsureNotificationIndexes: creating userId_createdAt index")
	if _, err := indexes.CreateOne(ctx, inboxIndex); err != nil {
		log.Println("EnsureNotificationIndexes: inbox index error:", err)
		return err
	}
	log.Println("EnsureNotificationIndexes: userId_createdAt index created")
	return nil
}

func EnsureWebhookEventIndexes(db *mongo.Database) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	indexes := db.Collection(webhookEventsCollection).Indexes()

	eventIndex := mongo.IndexModel{
		Keys: bson.D{{Key: "eventId", Value: 1}},
		Options: options.Index().
			SetName("eventId_unique").
			SetUnique(true),
	}

	log.Println("EnsureWebhookEventIndexes: creating eventId_unique index")
	if _, err := indexes.CreateOne(ctx, eventIndex); err != nil {
		log.Println("EnsureWebhookEventIndexes: eventId index error:", err)
		return err
	}
	log.Println("EnsureWebhookEventIndexes: eventId_unique index created")
	return nil
}
