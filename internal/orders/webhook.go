package orders

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"storefront/internal/apperr"
	"storefront/internal/metrics"
	"storefront/internal/models"
)

type WebhookOutcome string

const (
	WebhookApplied   WebhookOutcome = metrics.WebhookApplied
	WebhookDuplicate WebhookOutcome = metrics.WebhookDuplicate
	WebhookUnknown   WebhookOutcome = metrics.WebhookUnknown
	WebhookIgnored   WebhookOutcome = metrics.WebhookIgnored
)

const (
	eventPaymentCaptured = "payment.captured"
	eventOrderPaid       = "order.paid"
)

type webhookEvent struct {
	Event   string `json:"event"`
	Payload struct {
		Payment struct {
			Entity struct {
				ID      string `json:"id"`
				OrderID string `json:"order_id"`
				Status  string `json:"status"`
			} `json:"entity"`
		} `json:"payment"`
	} `json:"payload"`
}

// ReconcileWebhookEvent applies a provider event to the matching order at
// most once. Unknown orders, already-paid orders, redelivered event ids and
// unrelated event types are acknowledged without side effects. Only a bad
// signature or an unreadable body is reported as an error.
func (s *Service) ReconcileWebhookEvent(ctx context.Context, body []byte, signature, eventID string) (WebhookOutcome, error) {
	authenticated, err := s.gateway.VerifyWebhookSignature(body, signature)
	if err != nil {
		s.metrics.SignatureFailures.WithLabelValues(string(models.PaymentSourceWebhook)).Inc()
		s.metrics.WebhookEvents.WithLabelValues(metrics.WebhookRejected).Inc()
		log.Println("[WEBHOOK] [WARN] rejected event with invalid signature")
		return "", err
	}
	if !authenticated {
		s.metrics.WebhookEvents.WithLabelValues(metrics.WebhookUnsigned).Inc()
		log.Println("[WEBHOOK] [WARN] signature verification skipped: no webhook secret configured")
	}

	var event webhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		s.metrics.WebhookEvents.WithLabelValues(metrics.WebhookRejected).Inc()
		return "", apperr.Validation("invalid webhook payload")
	}

	if eventID != "" && s.events != nil {
		seen, err := s.events.Seen(ctx, eventID)
		if err != nil {
			return "", fmt.Errorf("check webhook event: %w", err)
		}
		if seen {
			s.recordOutcome(WebhookDuplicate)
			log.Println("[WEBHOOK] [INFO] event", eventID, "already processed")
			return WebhookDuplicate, nil
		}
	}

	outcome, err := s.applyWebhookEvent(ctx, event)
	if err != nil {
		return "", err
	}
	s.recordOutcome(outcome)

	if eventID != "" && s.events != nil {
		record := models.WebhookEvent{EventID: eventID, EventType: event.Event, ProcessedAt: s.now()}
		if err := s.events.Record(ctx, record); err != nil {
			log.Println("[WEBHOOK] [ERROR] record event", eventID, "failed:", err)
		}
	}
	return outcome, nil
}

func (s *Service) applyWebhookEvent(ctx context.Context, event webhookEvent) (WebhookOutcome, error) {
	if event.Event != eventPaymentCaptured && event.Event != eventOrderPaid {
		log.Println("[WEBHOOK] [INFO] ignoring event", event.Event)
		return WebhookIgnored, nil
	}

	entity := event.Payload.Payment.Entity
	if entity.OrderID == "" {
		log.Println("[WEBHOOK] [WARN]", event.Event, "without order id")
		return WebhookUnknown, nil
	}

	order, err := s.store.FindByProviderOrderID(ctx, entity.OrderID)
	if errors.Is(err, apperr.ErrNotFound) {
		log.Println("[WEBHOOK] [INFO] no order for razorpay order", entity.OrderID)
		return WebhookUnknown, nil
	}
	if err != nil {
		return "", fmt.Errorf("find order by razorpay order id: %w", err)
	}
	if order.IsPaid {
		return WebhookDuplicate, nil
	}

	result := models.CompletedPayment(entity.OrderID, entity.ID, "", models.PaymentSourceWebhook, s.now())
	_, applied, err := s.markPaid(ctx, order.ID, result)
	if err != nil {
		return "", err
	}
	if !applied {
		return WebhookDuplicate, nil
	}
	return WebhookApplied, nil
}

func (s *Service) recordOutcome(outcome WebhookOutcome) {
	s.metrics.WebhookEvents.WithLabelValues(string(outcome)).Inc()
}
