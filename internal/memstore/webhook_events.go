package memstore

import (
	"context"
	"sync"

	"storefront/internal/models"
)

type WebhookEvents struct {
	mu   sync.Mutex
	seen map[string]models.WebhookEvent
}

func NewWebhookEvents() *WebhookEvents {
	return &WebhookEvents{seen: make(map[string]models.WebhookEvent)}
}

func (s *WebhookEvents) Seen(_ context.Context, eventID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.seen[eventID]
	return ok, nil
}

func (s *WebhookEvents) Record(_ context.Context, event models.WebhookEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.seen[event.EventID]; !ok {
		s.seen[event.EventID] = event
	}
	return nil
}
