package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	NotificationCategoryOrder   = "order"
	NotificationCategoryGeneral = "general"
)

// Notification is an inbox entry for a single user.
type Notification struct {
	ID        primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	UserID    primitive.ObjectID  `bson:"userId" json:"user"`
	Title     string              `bson:"title" json:"title"`
	Message   string              `bson:"message" json:"message"`
	Category  string              `bson:"type" json:"type"`
	OrderID   *primitive.ObjectID `bson:"orderId,omitempty" json:"orderId,omitempty"`
	IsRead    bool                `bson:"isRead" json:"isRead"`
	CreatedAt time.Time           `bson:"createdAt" json:"createdAt"`
}
