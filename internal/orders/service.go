// Package orders implements the order lifecycle: creation, remote payment
// intents, client and webhook payment confirmation, and fulfillment status.
package orders

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"storefront/internal/apperr"
	"storefront/internal/metrics"
	"storefront/internal/models"
	"storefront/internal/payment"
)

type Options struct {
	// Currency for remote payment intents. Defaults to INR.
	Currency string
	// Pricer defaults to keeping client-submitted amounts.
	Pricer Pricer
	// Events, when set, deduplicates webhook deliveries by event id.
	Events  EventLog
	Metrics *metrics.Registry
	Now     func() time.Time
	// NotifyTimeout bounds the post-update notification. Defaults to 3s.
	NotifyTimeout time.Duration
}

const defaultNotifyTimeout = 3 * time.Second

type Service struct {
	store    Store
	gateway  Gateway
	notifier Notifier
	pricer   Pricer
	events   EventLog
	metrics  *metrics.Registry
	currency string
	now      func() time.Time

	notifyTimeout time.Duration
}

// NewService wires the lifecycle manager. A missing gateway is a
// configuration error reported here, before any order is touched.
func NewService(store Store, gateway Gateway, notifier Notifier, opts Options) (*Service, error) {
	if store == nil {
		return nil, errors.New("orders: store is required")
	}
	if gateway == nil {
		return nil, apperr.Configuration("payment gateway is not configured")
	}
	s := &Service{
		store:    store,
		gateway:  gateway,
		notifier: notifier,
		pricer:   opts.Pricer,
		events:   opts.Events,
		metrics:  opts.Metrics,
		currency: opts.Currency,
		now:      opts.Now,

		notifyTimeout: opts.NotifyTimeout,
	}
	if s.notifyTimeout <= 0 {
		s.notifyTimeout = defaultNotifyTimeout
	}
	if s.pricer == nil {
		s.pricer = clientPricer{}
	}
	if s.metrics == nil {
		s.metrics = metrics.NewRegistry()
	}
	if s.currency == "" {
		s.currency = "INR"
	}
	if s.now == nil {
		s.now = func() time.Time { return time.Now().UTC() }
	}
	return s, nil
}

type ItemInput struct {
	ProductID string
	Name      string
	Image     string
	Price     float64
	Quantity  int
}

type CreateOrderInput struct {
	Items           []ItemInput
	ShippingAddress models.ShippingAddress
	PaymentMethod   string
	ItemsPrice      float64
	TaxPrice        float64
	ShippingPrice   float64
	TotalPrice      float64
}

// CreateOrder stores a new pending, unpaid order for owner.
func (s *Service) CreateOrder(ctx context.Context, owner primitive.ObjectID, in CreateOrderInput) (*models.Order, error) {
	if owner.IsZero() {
		return nil, apperr.Unauthorized("Not authorized")
	}
	items, err := buildOrderItems(in.Items)
	if err != nil {
		return nil, err
	}

	now := s.now()
	order := &models.Order{
		UserID:          owner,
		Items:           items,
		ShippingAddress: in.ShippingAddress,
		PaymentMethod:   strings.TrimSpace(in.PaymentMethod),
		ItemsPrice:      in.ItemsPrice,
		TaxPrice:        in.TaxPrice,
		ShippingPrice:   in.ShippingPrice,
		TotalPrice:      in.TotalPrice,
		Status:          models.StatusPending,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.pricer.Price(ctx, order); err != nil {
		return nil, err
	}
	if err := s.store.Create(ctx, order); err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}

	s.metrics.OrdersCreated.Inc()
	log.Println("[ORDER] [INFO] order created:", order.ID.Hex(), "user:", owner.Hex())
	return order, nil
}

func buildOrderItems(in []ItemInput) ([]models.OrderItem, error) {
	if len(in) == 0 {
		return nil, apperr.Validation("No order items")
	}

	items := make([]models.OrderItem, 0, len(in))
	for _, item := range in {
		productID, err := primitive.ObjectIDFromHex(strings.TrimSpace(item.ProductID))
		if err != nil {
			return nil, apperr.Validation("invalid product id")
		}
		if item.Quantity <= 0 {
			return nil, apperr.Validation("quantity must be greater than zero")
		}
		items = append(items, models.OrderItem{
			ProductID: productID,
			Name:      strings.TrimSpace(item.Name),
			Image:     strings.TrimSpace(item.Image),
			Price:     item.Price,
			Quantity:  item.Quantity,
		})
	}
	return items, nil
}

// GetOrder returns the order if requester owns it or is an admin.
func (s *Service) GetOrder(ctx context.Context, id primitive.ObjectID, requester Requester) (*models.Order, error) {
	order, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !requester.canAccess(order) {
		return nil, apperr.Unauthorized("Not authorized to access this order")
	}
	return order, nil
}

func (s *Service) ListMyOrders(ctx context.Context, requester Requester, page models.Page) ([]models.Order, error) {
	if requester.UserID.IsZero() {
		return nil, apperr.Unauthorized("Not authorized")
	}
	return s.store.ListByUser(ctx, requester.UserID, page)
}

// ListOrders returns every order, newest first, with the total count.
func (s *Service) ListOrders(ctx context.Context, requester Requester, page models.Page) ([]models.Order, int64, error) {
	if !requester.Admin {
		return nil, 0, apperr.Unauthorized("Not authorized as an admin")
	}
	return s.store.List(ctx, page)
}

type PaymentStatus struct {
	IsPaid        bool                  `json:"isPaid"`
	PaidAt        *time.Time            `json:"paidAt,omitempty"`
	PaymentMethod string                `json:"paymentMethod"`
	PaymentResult *models.PaymentResult `json:"paymentResult,omitempty"`
}

func (s *Service) PaymentStatus(ctx context.Context, id primitive.ObjectID, requester Requester) (*PaymentStatus, error) {
	order, err := s.GetOrder(ctx, id, requester)
	if err != nil {
		return nil, err
	}
	return &PaymentStatus{
		IsPaid:        order.IsPaid,
		PaidAt:        order.PaidAt,
		PaymentMethod: order.PaymentMethod,
		PaymentResult: order.PaymentResult,
	}, nil
}

// PaymentIntent is what the browser checkout needs to collect a payment.
type PaymentIntent struct {
	OrderID string          `json:"orderId"`
	KeyID   string          `json:"key_id"`
	Intent  *payment.Intent `json:"order"`
}

// RequestPaymentIntent creates a remote intent for the order total and
// remembers its id on the order. An unpaid order keeps its first intent:
// later requests return it instead of issuing another. Only the owner may
// request one.
func (s *Service) RequestPaymentIntent(ctx context.Context, id primitive.ObjectID, requester Requester) (*PaymentIntent, error) {
	order, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !order.OwnedBy(requester.UserID) {
		return nil, apperr.Unauthorized("Not authorized to access this order")
	}
	if order.IsPaid {
		return nil, apperr.Validation("Order is already paid")
	}

	amount := minorUnits(order.TotalPrice)
	if amount <= 0 {
		log.Printf("[PAYMENT] [ERROR] invalid order amount: %d minor units for order %s", amount, order.ID.Hex())
		return nil, apperr.InvalidAmount("Order amount must be greater than 0")
	}

	if pending := pendingIntent(order); pending != "" {
		log.Println("[PAYMENT] [INFO] reusing razorpay order", pending, "for order", order.ID.Hex())
		return s.existingIntent(order, pending, amount), nil
	}

	customerName := order.ShippingAddress.Name
	if customerName == "" {
		customerName = "Customer"
	}
	customerEmail := order.ShippingAddress.Email
	if customerEmail == "" {
		customerEmail = "Not provided"
	}
	intent, err := s.gateway.CreateIntent(ctx, payment.IntentRequest{
		AmountMinor: amount,
		Currency:    s.currency,
		Receipt:     order.ID.Hex(),
		Notes: map[string]string{
			"orderId":       order.ID.Hex(),
			"userId":        order.UserID.Hex(),
			"customerName":  customerName,
			"customerEmail": customerEmail,
		},
	})
	if err != nil {
		return nil, err
	}

	stored, err := s.store.SetPaymentIntent(ctx, order.ID, models.CreatedPayment(intent.ID), s.now())
	if err != nil {
		return nil, fmt.Errorf("store payment intent: %w", err)
	}
	if !stored {
		// Lost to a concurrent request or a payment: keep what is stored.
		current, err := s.store.FindByID(ctx, order.ID)
		if err != nil {
			return nil, err
		}
		pending := pendingIntent(current)
		if current.IsPaid || pending == "" {
			return nil, apperr.Validation("Order is already paid")
		}
		log.Println("[PAYMENT] [WARN] discarding razorpay order", intent.ID, "in favour of", pending, "for order", order.ID.Hex())
		return s.existingIntent(current, pending, amount), nil
	}

	s.metrics.IntentsCreated.Inc()
	log.Println("[PAYMENT] [INFO] razorpay order created:", intent.ID, "for order", order.ID.Hex())
	return &PaymentIntent{OrderID: order.ID.Hex(), KeyID: s.gateway.KeyID(), Intent: intent}, nil
}

// pendingIntent returns the remote order id of an unpaid created-stage
// intent, or "".
func pendingIntent(order *models.Order) string {
	pr := order.PaymentResult
	if order.IsPaid || pr == nil || pr.Stage != models.PaymentStageCreated {
		return ""
	}
	return pr.ProviderOrderID
}

func (s *Service) existingIntent(order *models.Order, providerOrderID string, amount int64) *PaymentIntent {
	return &PaymentIntent{
		OrderID: order.ID.Hex(),
		KeyID:   s.gateway.KeyID(),
		Intent: &payment.Intent{
			ID:       providerOrderID,
			Amount:   amount,
			Currency: s.currency,
			Receipt:  order.ID.Hex(),
			Status:   "created",
		},
	}
}

type VerifyPaymentInput struct {
	OrderID           primitive.ObjectID
	ProviderOrderID   string
	ProviderPaymentID string
	Signature         string
}

// VerifyClientPayment checks the checkout signature and marks the order
// paid. Repeating a successful call returns the already-paid order.
func (s *Service) VerifyClientPayment(ctx context.Context, in VerifyPaymentInput) (*models.Order, error) {
	if strings.TrimSpace(in.ProviderOrderID) == "" || strings.TrimSpace(in.ProviderPaymentID) == "" || strings.TrimSpace(in.Signature) == "" {
		return nil, apperr.Validation("razorpay_order_id, razorpay_payment_id and razorpay_signature are required")
	}

	order, err := s.store.FindByID(ctx, in.OrderID)
	if err != nil {
		return nil, err
	}

	if err := s.gateway.VerifyPaymentSignature(in.ProviderOrderID, in.ProviderPaymentID, in.Signature); err != nil {
		s.metrics.SignatureFailures.WithLabelValues(string(models.PaymentSourceClient)).Inc()
		log.Println("[PAYMENT] [WARN] signature mismatch for order", order.ID.Hex())
		return nil, err
	}

	// Only the remote order issued for this order may pay it.
	if pr := order.PaymentResult; pr == nil || pr.ProviderOrderID == "" || pr.ProviderOrderID != in.ProviderOrderID {
		log.Println("[PAYMENT] [WARN] payment for", in.ProviderOrderID, "submitted against order", order.ID.Hex())
		return nil, apperr.Validation("Payment does not belong to this order")
	}

	if order.IsPaid {
		return order, nil
	}

	result := models.CompletedPayment(in.ProviderOrderID, in.ProviderPaymentID, in.Signature, models.PaymentSourceClient, s.now())
	updated, _, err := s.markPaid(ctx, order.ID, result)
	return updated, err
}

// markPaid applies the conditional paid transition and reloads the order.
func (s *Service) markPaid(ctx context.Context, id primitive.ObjectID, result *models.PaymentResult) (*models.Order, bool, error) {
	applied, err := s.store.MarkPaid(ctx, id, result, *result.CompletedAt)
	if err != nil {
		return nil, false, fmt.Errorf("mark order paid: %w", err)
	}
	if applied {
		s.metrics.PaymentsMarkedPaid.WithLabelValues(string(result.Source)).Inc()
		log.Println("[PAYMENT] [INFO] order", id.Hex(), "marked paid via", result.Source)
	} else {
		log.Println("[PAYMENT] [INFO] order", id.Hex(), "already paid, skipping", result.Source, "confirmation")
	}

	order, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, applied, err
	}
	return order, applied, nil
}

// UpdateStatus moves the fulfillment status and, when it changed, notifies
// the owner. Notification failures are logged and never undo the update.
func (s *Service) UpdateStatus(ctx context.Context, id primitive.ObjectID, status string, requester Requester) (*models.Order, error) {
	if !requester.Admin {
		return nil, apperr.Unauthorized("Not authorized as an admin")
	}
	next, err := parseStatus(status)
	if err != nil {
		return nil, err
	}

	previous, err := s.store.UpdateStatus(ctx, id, next, s.now())
	if err != nil {
		return nil, err
	}
	order, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if previous.Status != next {
		s.metrics.StatusTransitions.WithLabelValues(string(next)).Inc()
		log.Printf("[ORDER] [INFO] order %s status %s -> %s", id.Hex(), previous.Status, next)
		s.notifyAfterCommit(ctx, order, next)
	}
	return order, nil
}

// NotifyStatus sends the status notification for an order on demand.
// Unlike the post-update hook, failures are returned.
func (s *Service) NotifyStatus(ctx context.Context, id primitive.ObjectID, status string, requester Requester) (*models.Notification, error) {
	if !requester.Admin {
		return nil, apperr.Unauthorized("Not authorized as an admin")
	}
	next, err := parseStatus(status)
	if err != nil {
		return nil, err
	}
	order, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if s.notifier == nil {
		return nil, errors.New("notifications are not configured")
	}

	n := statusNotification(order, next)
	n.CreatedAt = s.now()
	if err := s.notifier.Emit(ctx, n); err != nil {
		s.metrics.NotificationFailures.Inc()
		return nil, fmt.Errorf("emit notification: %w", err)
	}
	s.metrics.NotificationsEmitted.Inc()
	return n, nil
}

func (s *Service) notifyAfterCommit(ctx context.Context, order *models.Order, status models.OrderStatus) {
	if s.notifier == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			s.metrics.NotificationFailures.Inc()
			log.Printf("[NOTIFY] [ERROR] panic while notifying order %s: %v", order.ID.Hex(), r)
		}
	}()

	// The status is already stored; a slow sink must not hold the response
	// and a cancelled request must not drop the notification.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.notifyTimeout)
	defer cancel()

	n := statusNotification(order, status)
	n.CreatedAt = s.now()
	if err := s.notifier.Emit(ctx, n); err != nil {
		s.metrics.NotificationFailures.Inc()
		log.Printf("[NOTIFY] [ERROR] order %s status %s: %v", order.ID.Hex(), status, err)
		return
	}
	s.metrics.NotificationsEmitted.Inc()
	log.Printf("[NOTIFY] [INFO] notification created for user %s about order %s status change to %s", order.UserID.Hex(), order.ID.Hex(), status)
}

func parseStatus(raw string) (models.OrderStatus, error) {
	status := models.OrderStatus(strings.ToLower(strings.TrimSpace(raw)))
	if !status.Valid() {
		return "", apperr.Validation("invalid status: " + raw)
	}
	return status, nil
}
