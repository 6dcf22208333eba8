package notify

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"storefront/internal/apperr"
	"storefront/internal/models"
)

// OrderFinder confirms that a referenced order exists.
type OrderFinder interface {
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.Order, error)
}

// Requester is the authenticated caller.
type Requester struct {
	UserID primitive.ObjectID
	Admin  bool
}

// Service is the notification inbox. Notifications it creates go through
// emitter, which defaults to writing to store.
type Service struct {
	store   Store
	orders  OrderFinder
	emitter Emitter
}

func NewService(store Store, orders OrderFinder, emitter Emitter) *Service {
	if emitter == nil {
		emitter = NewStoreEmitter(store)
	}
	return &Service{store: store, orders: orders, emitter: emitter}
}

func (s *Service) ListMine(ctx context.Context, requester Requester, page models.Page) ([]models.Notification, error) {
	if requester.UserID.IsZero() {
		return nil, apperr.Unauthorized("Not authorized")
	}
	return s.store.ListByUser(ctx, requester.UserID, page)
}

func (s *Service) UnreadCount(ctx context.Context, requester Requester) (int64, error) {
	if requester.UserID.IsZero() {
		return 0, apperr.Unauthorized("Not authorized")
	}
	return s.store.CountUnread(ctx, requester.UserID)
}

func (s *Service) MarkAllRead(ctx context.Context, requester Requester) (int64, error) {
	if requester.UserID.IsZero() {
		return 0, apperr.Unauthorized("Not authorized")
	}
	return s.store.MarkAllRead(ctx, requester.UserID)
}

func (s *Service) MarkRead(ctx context.Context, id primitive.ObjectID, requester Requester) (*models.Notification, error) {
	n, err := s.owned(ctx, id, requester, "Not authorized to access this notification")
	if err != nil {
		return nil, err
	}
	if err := s.store.MarkRead(ctx, id); err != nil {
		return nil, err
	}
	n.IsRead = true
	return n, nil
}

func (s *Service) Delete(ctx context.Context, id primitive.ObjectID, requester Requester) error {
	if _, err := s.owned(ctx, id, requester, "Not authorized to delete this notification"); err != nil {
		return err
	}
	return s.store.Delete(ctx, id)
}

type CreateInput struct {
	UserID   primitive.ObjectID
	Title    string
	Message  string
	Category string
	OrderID  *primitive.ObjectID
}

// Create emits an ad-hoc notification. Admin only.
func (s *Service) Create(ctx context.Context, in CreateInput, requester Requester) (*models.Notification, error) {
	if !requester.Admin {
		return nil, apperr.Unauthorized("Not authorized as an admin")
	}
	if in.UserID.IsZero() {
		return nil, apperr.Validation("user is required")
	}
	if strings.TrimSpace(in.Title) == "" || strings.TrimSpace(in.Message) == "" {
		return nil, apperr.Validation("title and message are required")
	}
	if in.OrderID != nil {
		if s.orders == nil {
			return nil, errors.New("order lookup is not configured")
		}
		if _, err := s.orders.FindByID(ctx, *in.OrderID); err != nil {
			return nil, err
		}
	}

	category := strings.TrimSpace(in.Category)
	if category == "" {
		category = models.NotificationCategoryGeneral
	}
	n := &models.Notification{
		UserID:    in.UserID,
		Title:     strings.TrimSpace(in.Title),
		Message:   strings.TrimSpace(in.Message),
		Category:  category,
		OrderID:   in.OrderID,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.emitter.Emit(ctx, n); err != nil {
		return nil, err
	}
	return n, nil
}

func (s *Service) owned(ctx context.Context, id primitive.ObjectID, requester Requester, denied string) (*models.Notification, error) {
	n, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !requester.Admin && (requester.UserID.IsZero() || n.UserID != requester.UserID) {
		return nil, apperr.Unauthorized(denied)
	}
	return n, nil
}
