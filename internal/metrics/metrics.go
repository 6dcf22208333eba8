package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Webhook outcomes.
const (
	WebhookApplied   = "applied"
	WebhookDuplicate = "duplicate"
	WebhookUnknown   = "unknown_order"
	WebhookIgnored   = "ignored_event"
	WebhookRejected  = "rejected"
	WebhookUnsigned  = "unsigned"
)

type Registry struct {
	reg                  *prometheus.Registry
	OrdersCreated        prometheus.Counter
	IntentsCreated       prometheus.Counter
	PaymentsMarkedPaid   *prometheus.CounterVec
	SignatureFailures    *prometheus.CounterVec
	WebhookEvents        *prometheus.CounterVec
	StatusTransitions    *prometheus.CounterVec
	NotificationsEmitted prometheus.Counter
	NotificationFailures prometheus.Counter
}

func NewRegistry() *Registry {
	r := prometheus.NewRegistry()
	ordersCreated := prometheus.NewCounter(prometheus.CounterOpts{Name: "storefront_orders_created_total"})
	intents := prometheus.NewCounter(prometheus.CounterOpts{Name: "storefront_payment_intents_created_total"})
	paid := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "storefront_payments_marked_paid_total"}, []string{"source"})
	sigFail := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "storefront_payment_signature_failures_total"}, []string{"source"})
	webhooks := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "storefront_webhook_events_total"}, []string{"outcome"})
	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "storefront_order_status_transitions_total"}, []string{"status"})
	emitted := prometheus.NewCounter(prometheus.CounterOpts{Name: "storefront_notifications_emitted_total"})
	failed := prometheus.NewCounter(prometheus.CounterOpts{Name: "storefront_notification_failures_total"})

	r.MustRegister(ordersCreated, intents, paid, sigFail, webhooks, transitions, emitted, failed)
	return &Registry{
		reg:                  r,
		OrdersCreated:        ordersCreated,
		IntentsCreated:       intents,
		PaymentsMarkedPaid:   paid,
		SignatureFailures:    sigFail,
		WebhookEvents:        webhooks,
		StatusTransitions:    transitions,
		NotificationsEmitted: emitted,
		NotificationFailures: failed,
	}
}

func (r *Registry) Handler() http.Handler { return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{}) }
