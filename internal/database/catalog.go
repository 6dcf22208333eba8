package database

import (
	"context"
	"strconv"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"storefront/internal/models"
)

// ProductCatalog reads prices from the products collection, which is
// managed by the catalog service.
type ProductCatalog struct {
	coll *mongo.Collection
}

func NewProductCatalog(db *mongo.Database) *ProductCatalog {
	return &ProductCatalog{coll: db.Collection(productsCollection)}
}

func (c *ProductCatalog) FindProducts(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]models.Product, error) {
	filter := bson.M{
		"_id":       bson.M{"$in": ids},
		"isDeleted": bson.M{"$ne": true},
	}
	projection := bson.M{"name": 1, "price": 1, "saleEnabled": 1, "salePrice": 1, "imagePath": 1, "isDeleted": 1}

	cursor, err := c.coll.Find(ctx, filter, options.Find().SetProjection(projection))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	products := make(map[primitive.ObjectID]models.Product, len(ids))
	for cursor.Next(ctx) {
		var raw bson.M
		if err := cursor.Decode(&raw); err != nil {
			return nil, err
		}
		product, err := normalizeProductDocument(raw)
		if err != nil {
			return nil, err
		}
		products[product.ID] = product
	}
	if err := cursor.Err(); err != nil {
		return nil, err
	}
	return products, nil
}

// normalizeProductDocument coerces loosely typed catalog fields. Older
// documents store saleEnabled as a string and prices as integers or strings.
func normalizeProductDocument(raw bson.M) (models.Product, error) {
	raw["saleEnabled"] = boolField(raw["saleEnabled"])
	raw["isDeleted"] = boolField(raw["isDeleted"])
	raw["price"] = floatField(raw["price"])
	raw["salePrice"] = floatField(raw["salePrice"])

	data, err := bson.Marshal(raw)
	if err != nil {
		return models.Product{}, err
	}

	var p models.Product
	if err := bson.Unmarshal(data, &p); err != nil {
		return models.Product{}, err
	}
	return p, nil
}

func boolField(val interface{}) bool {
	switch typed := val.(type) {
	case bool:
		return typed
	case string:
		return typed == "true"
	default:
		return false
	}
}

func floatField(val interface{}) float64 {
	switch typed := val.(type) {
	case float64:
		return typed
	case int32:
		return float64(typed)
	case int64:
		return float64(typed)
	case int:
		return float64(typed)
	case primitive.Decimal128:
		f, err := strconv.ParseFloat(typed.String(), 64)
		if err != nil {
			return 0
		}
		return f
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(typed), 64)
		if err != nil {
			return 0
		}
		return f
	default:
		return 0
	}
}
