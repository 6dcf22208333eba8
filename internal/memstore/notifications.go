package memstore

import (
	"context"
	"sort"
	"sync"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"storefront/internal/apperr"
	"storefront/internal/models"
)

type Notifications struct {
	mu   sync.RWMutex
	data map[primitive.ObjectID]models.Notification
}

func NewNotifications() *Notifications {
	return &Notifications{data: make(map[primitive.ObjectID]models.Notification)}
}

func (s *Notifications) Create(_ context.Context, n *models.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n.ID.IsZero() {
		n.ID = primitive.NewObjectID()
	}
	s.data[n.ID] = *n
	return nil
}

func (s *Notifications) FindByID(_ context.Context, id primitive.ObjectID) (*models.Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.data[id]
	if !ok {
		return nil, apperr.NotFound("Notification not found")
	}
	return &n, nil
}

func (s *Notifications) ListByUser(_ context.Context, userID primitive.ObjectID, page models.Page) ([]models.Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Notification
	for _, n := range s.data {
		if n.UserID == userID {
			out = append(out, n)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return paginate(out, page), nil
}

func (s *Notifications) CountUnread(_ context.Context, userID primitive.ObjectID) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var count int64
	for _, n := range s.data {
		if n.UserID == userID && !n.IsRead {
			count++
		}
	}
	return count, nil
}

func (s *Notifications) MarkRead(_ context.Context, id primitive.ObjectID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.data[id]
	if !ok {
		return apperr.NotFound("Notification not found")
	}
	n.IsRead = true
	s.data[id] = n
	return nil
}

func (s *Notifications) MarkAllRead(_ context.Context, userID primitive.ObjectID) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var modified int64
	for id, n := range s.data {
		if n.UserID == userID && !n.IsRead {
			n.IsRead = true
			s.data[id] = n
			modified++
		}
	}
	return modified, nil
}

func (s *Notifications) Delete(_ context.Context, id primitive.ObjectID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.data[id]; !ok {
		return apperr.NotFound("Notification not found")
	}
	delete(s.data, id)
	return nil
}

// All returns every stored notification in no particular order.
func (s *Notifications) All() []models.Notification {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Notification, 0, len(s.data))
	for _, n := range s.data {
		out = append(out, n)
	}
	return out
}
