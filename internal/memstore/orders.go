// Package memstore keeps orders, notifications and webhook events in
// process memory. It backs STORE_DRIVER=memory and the package tests.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"storefront/internal/apperr"
	"storefront/internal/models"
)

// Orders is a thread-safe order store with the same conditional update
// semantics as the Mongo store.
type Orders struct {
	mu   sync.RWMutex
	data map[primitive.ObjectID]models.Order
}

func NewOrders() *Orders {
	return &Orders{data: make(map[primitive.ObjectID]models.Order)}
}

func (s *Orders) Create(_ context.Context, order *models.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if order.ID.IsZero() {
		order.ID = primitive.NewObjectID()
	}
	s.data[order.ID] = cloneOrder(*order)
	return nil
}

func (s *Orders) FindByID(_ context.Context, id primitive.ObjectID) (*models.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.data[id]
	if !ok {
		return nil, apperr.NotFound("Order not found")
	}
	c := cloneOrder(o)
	return &c, nil
}

func (s *Orders) FindByProviderOrderID(_ context.Context, providerOrderID string) (*models.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, o := range s.data {
		if o.PaymentResult != nil && o.PaymentResult.ProviderOrderID == providerOrderID {
			c := cloneOrder(o)
			return &c, nil
		}
	}
	return nil, apperr.NotFound("Order not found")
}

func (s *Orders) ListByUser(_ context.Context, userID primitive.ObjectID, page models.Page) ([]models.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Order
	for _, o := range s.data {
		if o.UserID == userID {
			out = append(out, cloneOrder(o))
		}
	}
	return paginate(newestFirst(out), page), nil
}

func (s *Orders) List(_ context.Context, page models.Page) ([]models.Order, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Order, 0, len(s.data))
	for _, o := range s.data {
		out = append(out, cloneOrder(o))
	}
	return paginate(newestFirst(out), page), int64(len(out)), nil
}

func (s *Orders) SetPaymentIntent(_ context.Context, id primitive.ObjectID, result *models.PaymentResult, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.data[id]
	if !ok {
		return false, apperr.NotFound("Order not found")
	}
	if o.IsPaid || (o.PaymentResult != nil && o.PaymentResult.ProviderOrderID != "") {
		return false, nil
	}
	r := *result
	o.PaymentResult = &r
	o.UpdatedAt = at
	s.data[id] = o
	return true, nil
}

func (s *Orders) MarkPaid(_ context.Context, id primitive.ObjectID, result *models.PaymentResult, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.data[id]
	if !ok {
		return false, apperr.NotFound("Order not found")
	}
	if o.IsPaid {
		return false, nil
	}
	paidAt := at
	r := clonePaymentResult(result)
	o.IsPaid = true
	o.PaidAt = &paidAt
	o.PaymentResult = r
	o.UpdatedAt = at
	s.data[id] = o
	return true, nil
}

func (s *Orders) UpdateStatus(_ context.Context, id primitive.ObjectID, status models.OrderStatus, at time.Time) (*models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.data[id]
	if !ok {
		return nil, apperr.NotFound("Order not found")
	}
	before := cloneOrder(o)
	o.Status = status
	if status == models.StatusDelivered {
		o.IsDelivered = true
		if o.DeliveredAt == nil {
			deliveredAt := at
			o.DeliveredAt = &deliveredAt
		}
	}
	o.UpdatedAt = at
	s.data[id] = o
	return &before, nil
}

func newestFirst(orders []models.Order) []models.Order {
	sort.SliceStable(orders, func(i, j int) bool {
		return orders[i].CreatedAt.After(orders[j].CreatedAt)
	})
	return orders
}

func paginate[T any](items []T, page models.Page) []T {
	if page.Size <= 0 {
		return items
	}
	start := page.Skip()
	if start >= int64(len(items)) {
		return []T{}
	}
	end := start + page.Size
	if end > int64(len(items)) {
		end = int64(len(items))
	}
	return items[start:end]
}

func cloneOrder(o models.Order) models.Order {
	c := o
	c.Items = append([]models.OrderItem(nil), o.Items...)
	if o.PaidAt != nil {
		t := *o.PaidAt
		c.PaidAt = &t
	}
	if o.DeliveredAt != nil {
		t := *o.DeliveredAt
		c.DeliveredAt = &t
	}
	c.PaymentResult = clonePaymentResult(o.PaymentResult)
	return c
}

func clonePaymentResult(p *models.PaymentResult) *models.PaymentResult {
	if p == nil {
		return nil
	}
	c := *p
	if p.CompletedAt != nil {
		t := *p.CompletedAt
		c.CompletedAt = &t
	}
	return &c
}
