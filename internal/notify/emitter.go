// Package notify delivers order notifications and serves the per-user
// notification inbox.
package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"storefront/internal/models"
)

// Store persists notifications.
type Store interface {
	Create(ctx context.Context, n *models.Notification) error
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.Notification, error)
	ListByUser(ctx context.Context, userID primitive.ObjectID, page models.Page) ([]models.Notification, error)
	CountUnread(ctx context.Context, userID primitive.ObjectID) (int64, error)
	MarkRead(ctx context.Context, id primitive.ObjectID) error
	MarkAllRead(ctx context.Context, userID primitive.ObjectID) (int64, error)
	Delete(ctx context.Context, id primitive.ObjectID) error
}

type Emitter interface {
	Emit(ctx context.Context, n *models.Notification) error
}

// StoreEmitter writes notifications to the inbox store.
type StoreEmitter struct {
	store Store
}

func NewStoreEmitter(store Store) *StoreEmitter {
	return &StoreEmitter{store: store}
}

func (e *StoreEmitter) Emit(ctx context.Context, n *models.Notification) error {
	if n.UserID.IsZero() {
		return errors.New("notification has no target user")
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	if n.Category == "" {
		n.Category = models.NotificationCategoryGeneral
	}
	n.IsRead = false
	return e.store.Create(ctx, n)
}

// MultiEmitter fans a notification out to every emitter. All emitters are
// tried; their errors are joined.
type MultiEmitter struct {
	emitters []Emitter
}

func NewMultiEmitter(es ...Emitter) *MultiEmitter {
	return &MultiEmitter{emitters: es}
}

func (m *MultiEmitter) Emit(ctx context.Context, n *models.Notification) error {
	var errs []error
	for i, e := range m.emitters {
		if err := e.Emit(ctx, n); err != nil {
			errs = append(errs, fmt.Errorf("emitter %d: %w", i, err))
		}
	}
	return errors.Join(errs...)
}
