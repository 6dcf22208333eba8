package models

import (
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Product is the catalog view needed to price an order line. The catalog
// itself is managed elsewhere; only these fields are read.
type Product struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name        string             `bson:"name" json:"name"`
	Price       float64            `bson:"price" json:"price"`
	SaleEnabled bool               `bson:"saleEnabled" json:"saleEnabled"`
	SalePrice   float64            `bson:"salePrice" json:"salePrice"`
	ImagePath   string             `bson:"imagePath,omitempty" json:"imagePath,omitempty"`
	IsDeleted   bool               `bson:"isDeleted" json:"isDeleted,omitempty"`
}
