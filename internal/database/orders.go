package database

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"storefront/internal/apperr"
	"storefront/internal/models"
)

// OrderStore keeps orders in the orders collection. Paid and status
// transitions are single-document conditional updates.
type OrderStore struct {
	coll *mongo.Collection
}

func NewOrderStore(db *mongo.Database) *OrderStore {
	return &OrderStore{coll: db.Collection(ordersCollection)}
}

func (s *OrderStore) Create(ctx context.Context, order *models.Order) error {
	if order.ID.IsZero() {
		order.ID = primitive.NewObjectID()
	}
	_, err := s.coll.InsertOne(ctx, order)
	return err
}

func (s *OrderStore) FindByID(ctx context.Context, id primitive.ObjectID) (*models.Order, error) {
	var order models.Order
	if err := s.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&order); err != nil {
		return nil, notFound(err, "Order not found")
	}
	return &order, nil
}

func (s *OrderStore) FindByProviderOrderID(ctx context.Context, providerOrderID string) (*models.Order, error) {
	var order models.Order
	err := s.coll.FindOne(ctx, bson.M{"paymentResult.providerOrderId": providerOrderID}).Decode(&order)
	if err != nil {
		return nil, notFound(err, "Order not found")
	}
	return &order, nil
}

func (s *OrderStore) ListByUser(ctx context.Context, userID primitive.ObjectID, page models.Page) ([]models.Order, error) {
	return s.find(ctx, bson.M{"userId": userID}, page)
}

func (s *OrderStore) List(ctx context.Context, page models.Page) ([]models.Order, int64, error) {
	total, err := s.coll.CountDocuments(ctx, bson.M{})
	if err != nil {
		return nil, 0, err
	}
	orders, err := s.find(ctx, bson.M{}, page)
	if err != nil {
		return nil, 0, err
	}
	return orders, total, nil
}

func (s *OrderStore) find(ctx context.Context, filter bson.M, page models.Page) ([]models.Order, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	if page.Size > 0 {
		opts.SetSkip(page.Skip()).SetLimit(page.Size)
	}

	cursor, err := s.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	orders := make([]models.Order, 0)
	if err := cursor.All(ctx, &orders); err != nil {
		return nil, err
	}
	return orders, nil
}

func (s *OrderStore) SetPaymentIntent(ctx context.Context, id primitive.ObjectID, result *models.PaymentResult, at time.Time) (bool, error) {
	noIntent := bson.M{"paymentResult.providerOrderId": bson.M{"$in": bson.A{nil, ""}}}
	return s.updateUnpaid(ctx, id, noIntent, bson.M{
		"paymentResult": result,
		"updatedAt":     at,
	})
}

func (s *OrderStore) MarkPaid(ctx context.Context, id primitive.ObjectID, result *models.PaymentResult, at time.Time) (bool, error) {
	return s.updateUnpaid(ctx, id, nil, bson.M{
		"isPaid":        true,
		"paidAt":        at,
		"paymentResult": result,
		"updatedAt":     at,
	})
}

// updateUnpaid applies set only while isPaid is not true and the extra
// conditions hold. A miss on an existing order reports false; a miss on a
// missing order is not found.
func (s *OrderStore) updateUnpaid(ctx context.Context, id primitive.ObjectID, extra bson.M, set bson.M) (bool, error) {
	filter := bson.M{"_id": id, "isPaid": bson.M{"$ne": true}}
	for k, v := range extra {
		filter[k] = v
	}
	res, err := s.coll.UpdateOne(ctx, filter, bson.M{"$set": set})
	if err != nil {
		return false, err
	}
	if res.MatchedCount == 1 {
		return true, nil
	}

	count, err := s.coll.CountDocuments(ctx, bson.M{"_id": id}, options.Count().SetLimit(1))
	if err != nil {
		return false, err
	}
	if count == 0 {
		return false, apperr.NotFound("Order not found")
	}
	return false, nil
}

func (s *OrderStore) UpdateStatus(ctx context.Context, id primitive.ObjectID, status models.OrderStatus, at time.Time) (*models.Order, error) {
	set := bson.D{
		{Key: "status", Value: string(status)},
		{Key: "updatedAt", Value: at},
	}
	if status == models.StatusDelivered {
		set = append(set,
			bson.E{Key: "isDelivered", Value: true},
			bson.E{Key: "deliveredAt", Value: bson.D{{Key: "$ifNull", Value: bson.A{"$deliveredAt", at}}}},
		)
	}
	update := mongo.Pipeline{{{Key: "$set", Value: set}}}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.Before)
	var before models.Order
	if err := s.coll.FindOneAndUpdate(ctx, bson.M{"_id": id}, update, opts).Decode(&before); err != nil {
		return nil, notFound(err, "Order not found")
	}
	return &before, nil
}
