package orders_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"storefront/internal/apperr"
	"storefront/internal/memstore"
	"storefront/internal/metrics"
	"storefront/internal/models"
	"storefront/internal/notify"
	"storefront/internal/orders"
	"storefront/internal/payment"
)

const (
	keySecret     = "test_secret"
	webhookSecret = "whsec_test"
)

// fakeRazorpayOrders records create calls and answers like the orders API.
type fakeRazorpayOrders struct {
	mu    sync.Mutex
	calls []map[string]interface{}
	err   error
}

func (f *fakeRazorpayOrders) Create(data map[string]interface{}, _ map[string]string) (map[string]interface{}, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.calls = append(f.calls, data)
	return map[string]interface{}{
		"id":         fmt.Sprintf("order_rp%d", len(f.calls)),
		"amount":     float64(data["amount"].(int64)),
		"currency":   data["currency"],
		"receipt":    data["receipt"],
		"status":     "created",
		"created_at": float64(1700000000),
	}, nil
}

type failingNotifier struct{ panics bool }

func (f failingNotifier) Emit(context.Context, *models.Notification) error {
	if f.panics {
		panic("notifier exploded")
	}
	return errors.New("notification store down")
}

type fixture struct {
	svc     *orders.Service
	store   *memstore.Orders
	inbox   *memstore.Notifications
	events  *memstore.WebhookEvents
	remote  *fakeRazorpayOrders
	metrics *metrics.Registry
	owner   primitive.ObjectID
}

func newFixture(t *testing.T, webhookKey string, notifier orders.Notifier) *fixture {
	t.Helper()
	f := &fixture{
		store:   memstore.NewOrders(),
		inbox:   memstore.NewNotifications(),
		events:  memstore.NewWebhookEvents(),
		remote:  &fakeRazorpayOrders{},
		metrics: metrics.NewRegistry(),
		owner:   primitive.NewObjectID(),
	}
	gateway, err := payment.NewClientWith(payment.Config{KeyID: "rzp_test_key", KeySecret: keySecret, WebhookSecret: webhookKey}, f.remote)
	require.NoError(t, err)
	if notifier == nil {
		notifier = notify.NewStoreEmitter(f.inbox)
	}
	f.svc, err = orders.NewService(f.store, gateway, notifier, orders.Options{
		Events:  f.events,
		Metrics: f.metrics,
	})
	require.NoError(t, err)
	return f
}

func (f *fixture) createOrder(t *testing.T, total float64) *models.Order {
	t.Helper()
	order, err := f.svc.CreateOrder(context.Background(), f.owner, orders.CreateOrderInput{
		Items: []orders.ItemInput{{
			ProductID: primitive.NewObjectID().Hex(),
			Name:      "Basmati Rice",
			Price:     total,
			Quantity:  1,
		}},
		ShippingAddress: models.ShippingAddress{Name: "Asha", Email: "asha@example.com"},
		PaymentMethod:   "razorpay",
		ItemsPrice:      total,
		TotalPrice:      total,
	})
	require.NoError(t, err)
	return order
}

func (f *fixture) requestIntent(t *testing.T, orderID primitive.ObjectID) *orders.PaymentIntent {
	t.Helper()
	intent, err := f.svc.RequestPaymentIntent(context.Background(), orderID, orders.Requester{UserID: f.owner})
	require.NoError(t, err)
	return intent
}

func webhookBody(event, providerOrderID, paymentID string) []byte {
	return []byte(fmt.Sprintf(`{"event":%q,"payload":{"payment":{"entity":{"id":%q,"order_id":%q,"status":"captured"}}}}`, event, paymentID, providerOrderID))
}

func TestNewService_RequiresGateway(t *testing.T) {
	_, err := orders.NewService(memstore.NewOrders(), nil, nil, orders.Options{})
	assert.True(t, errors.Is(err, apperr.ErrConfiguration))
}

func TestCreateOrder_StartsPendingUnpaid(t *testing.T) {
	f := newFixture(t, webhookSecret, nil)
	order := f.createOrder(t, 250)

	assert.Equal(t, models.StatusPending, order.Status)
	assert.False(t, order.IsPaid)
	assert.Nil(t, order.PaidAt)
	assert.False(t, order.IsDelivered)
	assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.OrdersCreated))
}

func TestCreateOrder_RejectsEmptyItems(t *testing.T) {
	f := newFixture(t, webhookSecret, nil)
	_, err := f.svc.CreateOrder(context.Background(), f.owner, orders.CreateOrderInput{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.ErrValidation))
	assert.Equal(t, "No order items", err.Error())
}

func TestRequestPaymentIntent_ConvertsTotalToMinorUnits(t *testing.T) {
	f := newFixture(t, webhookSecret, nil)
	order := f.createOrder(t, 1000.00)

	intent := f.requestIntent(t, order.ID)

	require.Len(t, f.remote.calls, 1)
	assert.Equal(t, int64(100000), f.remote.calls[0]["amount"])
	assert.Equal(t, "INR", f.remote.calls[0]["currency"])
	assert.Equal(t, order.ID.Hex(), f.remote.calls[0]["receipt"])
	assert.Equal(t, "rzp_test_key", intent.KeyID)
	assert.Equal(t, int64(100000), intent.Intent.Amount)

	stored, err := f.store.FindByID(context.Background(), order.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.PaymentResult)
	assert.Equal(t, models.PaymentStageCreated, stored.PaymentResult.Stage)
	assert.Equal(t, intent.Intent.ID, stored.PaymentResult.ProviderOrderID)
	assert.False(t, stored.IsPaid)
}

func TestRequestPaymentIntent_RoundsFractionalTotals(t *testing.T) {
	f := newFixture(t, webhookSecret, nil)
	order := f.createOrder(t, 19.999)

	f.requestIntent(t, order.ID)
	assert.Equal(t, int64(2000), f.remote.calls[0]["amount"])
}

func TestRequestPaymentIntent_RejectsZeroTotal(t *testing.T) {
	f := newFixture(t, webhookSecret, nil)
	order := f.createOrder(t, 0.001)

	_, err := f.svc.RequestPaymentIntent(context.Background(), order.ID, orders.Requester{UserID: f.owner})
	assert.True(t, errors.Is(err, apperr.ErrInvalidAmount))
	assert.Empty(t, f.remote.calls)
}

func TestRequestPaymentIntent_OnlyOwner(t *testing.T) {
	f := newFixture(t, webhookSecret, nil)
	order := f.createOrder(t, 100)

	_, err := f.svc.RequestPaymentIntent(context.Background(), order.ID, orders.Requester{UserID: primitive.NewObjectID()})
	assert.True(t, errors.Is(err, apperr.ErrUnauthorized))

	_, err = f.svc.RequestPaymentIntent(context.Background(), primitive.NewObjectID(), orders.Requester{UserID: f.owner})
	assert.True(t, errors.Is(err, apperr.ErrNotFound))
}

func TestRequestPaymentIntent_GatewayFailureIsInternal(t *testing.T) {
	f := newFixture(t, webhookSecret, nil)
	f.remote.err = errors.New("connection reset")
	order := f.createOrder(t, 100)

	_, err := f.svc.RequestPaymentIntent(context.Background(), order.ID, orders.Requester{UserID: f.owner})
	require.Error(t, err)
	assert.Equal(t, apperr.KindInternal, apperr.KindOf(err))
}

func TestVerifyClientPayment_MarksPaidOnce(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, webhookSecret, nil)
	order := f.createOrder(t, 499)
	intent := f.requestIntent(t, order.ID)

	in := orders.VerifyPaymentInput{
		OrderID:           order.ID,
		ProviderOrderID:   intent.Intent.ID,
		ProviderPaymentID: "pay_1",
		Signature:         payment.Sign(intent.Intent.ID+"|pay_1", keySecret),
	}
	paid, err := f.svc.VerifyClientPayment(ctx, in)
	require.NoError(t, err)
	assert.True(t, paid.IsPaid)
	require.NotNil(t, paid.PaidAt)
	require.NotNil(t, paid.PaymentResult)
	assert.Equal(t, models.PaymentStageCompleted, paid.PaymentResult.Stage)
	assert.Equal(t, "pay_1", paid.PaymentResult.PaymentID)
	firstPaidAt := *paid.PaidAt

	again, err := f.svc.VerifyClientPayment(ctx, in)
	require.NoError(t, err)
	assert.True(t, again.IsPaid)
	assert.True(t, firstPaidAt.Equal(*again.PaidAt))
	assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.PaymentsMarkedPaid.WithLabelValues("client")))
}

func TestVerifyClientPayment_TamperedSignature(t *testing.T) {
	f := newFixture(t, webhookSecret, nil)
	order := f.createOrder(t, 499)
	intent := f.requestIntent(t, order.ID)

	_, err := f.svc.VerifyClientPayment(context.Background(), orders.VerifyPaymentInput{
		OrderID:           order.ID,
		ProviderOrderID:   intent.Intent.ID,
		ProviderPaymentID: "pay_1",
		Signature:         payment.Sign(intent.Intent.ID+"|pay_2", keySecret),
	})
	assert.True(t, errors.Is(err, apperr.ErrInvalidSignature))

	stored, err := f.store.FindByID(context.Background(), order.ID)
	require.NoError(t, err)
	assert.False(t, stored.IsPaid)
	assert.Equal(t, models.PaymentStageCreated, stored.PaymentResult.Stage)
}

func TestVerifyClientPayment_RejectsForeignProviderOrder(t *testing.T) {
	f := newFixture(t, webhookSecret, nil)
	order := f.createOrder(t, 499)
	f.requestIntent(t, order.ID)

	_, err := f.svc.VerifyClientPayment(context.Background(), orders.VerifyPaymentInput{
		OrderID:           order.ID,
		ProviderOrderID:   "order_elsewhere",
		ProviderPaymentID: "pay_1",
		Signature:         payment.Sign("order_elsewhere|pay_1", keySecret),
	})
	assert.True(t, errors.Is(err, apperr.ErrValidation))
}

func TestVerifyClientPayment_RejectsOrderWithoutIntent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, webhookSecret, nil)
	cheap := f.createOrder(t, 1)
	cheapIntent := f.requestIntent(t, cheap.ID)
	expensive := f.createOrder(t, 5000)

	_, err := f.svc.VerifyClientPayment(ctx, orders.VerifyPaymentInput{
		OrderID:           expensive.ID,
		ProviderOrderID:   cheapIntent.Intent.ID,
		ProviderPaymentID: "pay_cheap",
		Signature:         payment.Sign(cheapIntent.Intent.ID+"|pay_cheap", keySecret),
	})
	assert.True(t, errors.Is(err, apperr.ErrValidation))

	stored, err := f.store.FindByID(ctx, expensive.ID)
	require.NoError(t, err)
	assert.False(t, stored.IsPaid)
	assert.Nil(t, stored.PaymentResult)

	owner, err := f.store.FindByProviderOrderID(ctx, cheapIntent.Intent.ID)
	require.NoError(t, err)
	assert.Equal(t, cheap.ID, owner.ID)
}

func TestRequestPaymentIntent_ReusesPendingIntent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, webhookSecret, nil)
	order := f.createOrder(t, 250)

	first := f.requestIntent(t, order.ID)
	second := f.requestIntent(t, order.ID)
	assert.Equal(t, first.Intent.ID, second.Intent.ID)
	assert.Equal(t, int64(25000), second.Intent.Amount)
	assert.Equal(t, "INR", second.Intent.Currency)
	assert.Len(t, f.remote.calls, 1)
	assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.IntentsCreated))

	paid, err := f.svc.VerifyClientPayment(ctx, orders.VerifyPaymentInput{
		OrderID:           order.ID,
		ProviderOrderID:   first.Intent.ID,
		ProviderPaymentID: "pay_first",
		Signature:         payment.Sign(first.Intent.ID+"|pay_first", keySecret),
	})
	require.NoError(t, err)
	assert.True(t, paid.IsPaid)
}

func TestRequestPaymentIntent_RetriedCheckoutPaidByWebhook(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, webhookSecret, nil)
	order := f.createOrder(t, 250)

	first := f.requestIntent(t, order.ID)
	f.requestIntent(t, order.ID)

	body := webhookBody("payment.captured", first.Intent.ID, "pay_first")
	outcome, err := f.svc.ReconcileWebhookEvent(ctx, body, payment.Sign(string(body), webhookSecret), "")
	require.NoError(t, err)
	assert.Equal(t, orders.WebhookApplied, outcome)

	stored, err := f.store.FindByID(ctx, order.ID)
	require.NoError(t, err)
	assert.True(t, stored.IsPaid)
}

func TestRequestPaymentIntent_ConcurrentRequestsShareIntent(t *testing.T) {
	f := newFixture(t, webhookSecret, nil)
	order := f.createOrder(t, 90)

	ids := make([]string, 8)
	var wg sync.WaitGroup
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			intent, err := f.svc.RequestPaymentIntent(context.Background(), order.ID, orders.Requester{UserID: f.owner})
			if assert.NoError(t, err) {
				ids[i] = intent.Intent.ID
			}
		}(i)
	}
	wg.Wait()

	stored, err := f.store.FindByID(context.Background(), order.ID)
	require.NoError(t, err)
	for _, id := range ids {
		assert.Equal(t, stored.PaymentResult.ProviderOrderID, id)
	}
}

func TestVerifyClientPayment_MissingFields(t *testing.T) {
	f := newFixture(t, webhookSecret, nil)
	order := f.createOrder(t, 10)

	_, err := f.svc.VerifyClientPayment(context.Background(), orders.VerifyPaymentInput{OrderID: order.ID, ProviderOrderID: "order_x"})
	assert.True(t, errors.Is(err, apperr.ErrValidation))
}

func TestReconcileWebhookEvent_RedeliveryIsIdempotent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, webhookSecret, nil)
	order := f.createOrder(t, 120)
	intent := f.requestIntent(t, order.ID)

	body := webhookBody("payment.captured", intent.Intent.ID, "pay_w1")
	sig := payment.Sign(string(body), webhookSecret)

	outcome, err := f.svc.ReconcileWebhookEvent(ctx, body, sig, "")
	require.NoError(t, err)
	assert.Equal(t, orders.WebhookApplied, outcome)

	paid, err := f.store.FindByID(ctx, order.ID)
	require.NoError(t, err)
	require.True(t, paid.IsPaid)
	firstPaidAt := *paid.PaidAt
	assert.Equal(t, models.PaymentSourceWebhook, paid.PaymentResult.Source)

	outcome, err = f.svc.ReconcileWebhookEvent(ctx, body, sig, "")
	require.NoError(t, err)
	assert.Equal(t, orders.WebhookDuplicate, outcome)

	again, err := f.store.FindByID(ctx, order.ID)
	require.NoError(t, err)
	assert.True(t, firstPaidAt.Equal(*again.PaidAt))
	assert.Equal(t, "pay_w1", again.PaymentResult.PaymentID)
}

func TestReconcileWebhookEvent_DedupesByEventID(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, webhookSecret, nil)
	order := f.createOrder(t, 120)
	intent := f.requestIntent(t, order.ID)

	body := webhookBody("order.paid", intent.Intent.ID, "pay_w1")
	sig := payment.Sign(string(body), webhookSecret)

	outcome, err := f.svc.ReconcileWebhookEvent(ctx, body, sig, "evt_1")
	require.NoError(t, err)
	assert.Equal(t, orders.WebhookApplied, outcome)

	outcome, err = f.svc.ReconcileWebhookEvent(ctx, body, sig, "evt_1")
	require.NoError(t, err)
	assert.Equal(t, orders.WebhookDuplicate, outcome)
	assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.WebhookEvents.WithLabelValues(metrics.WebhookDuplicate)))
}

func TestReconcileWebhookEvent_UnknownOrderIsAcknowledged(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, webhookSecret, nil)
	order := f.createOrder(t, 120)
	f.requestIntent(t, order.ID)

	body := webhookBody("payment.captured", "order_unknown", "pay_x")
	outcome, err := f.svc.ReconcileWebhookEvent(ctx, body, payment.Sign(string(body), webhookSecret), "")
	require.NoError(t, err)
	assert.Equal(t, orders.WebhookUnknown, outcome)

	stored, err := f.store.FindByID(ctx, order.ID)
	require.NoError(t, err)
	assert.False(t, stored.IsPaid)
}

func TestReconcileWebhookEvent_IgnoresOtherEvents(t *testing.T) {
	f := newFixture(t, webhookSecret, nil)
	body := webhookBody("payment.failed", "order_x", "pay_x")

	outcome, err := f.svc.ReconcileWebhookEvent(context.Background(), body, payment.Sign(string(body), webhookSecret), "")
	require.NoError(t, err)
	assert.Equal(t, orders.WebhookIgnored, outcome)
}

func TestReconcileWebhookEvent_BadSignature(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, webhookSecret, nil)
	order := f.createOrder(t, 120)
	intent := f.requestIntent(t, order.ID)
	body := webhookBody("payment.captured", intent.Intent.ID, "pay_w1")

	for _, sig := range []string{"", "deadbeef", payment.Sign(string(body), "wrong")} {
		_, err := f.svc.ReconcileWebhookEvent(ctx, body, sig, "")
		assert.True(t, errors.Is(err, apperr.ErrInvalidSignature), "signature %q", sig)
	}

	stored, err := f.store.FindByID(ctx, order.ID)
	require.NoError(t, err)
	assert.False(t, stored.IsPaid)
}

func TestReconcileWebhookEvent_NoSecretProceedsUnsigned(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "", nil)
	order := f.createOrder(t, 120)
	intent := f.requestIntent(t, order.ID)

	outcome, err := f.svc.ReconcileWebhookEvent(ctx, webhookBody("payment.captured", intent.Intent.ID, "pay_w1"), "", "")
	require.NoError(t, err)
	assert.Equal(t, orders.WebhookApplied, outcome)
	assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.WebhookEvents.WithLabelValues(metrics.WebhookUnsigned)))
}

func TestReconcileWebhookEvent_MalformedBody(t *testing.T) {
	f := newFixture(t, webhookSecret, nil)
	body := []byte("{not json")

	_, err := f.svc.ReconcileWebhookEvent(context.Background(), body, payment.Sign(string(body), webhookSecret), "")
	assert.True(t, errors.Is(err, apperr.ErrValidation))
}

func TestClientAndWebhookRace_PaidOnce(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, webhookSecret, nil)
	order := f.createOrder(t, 300)
	intent := f.requestIntent(t, order.ID)

	body := webhookBody("payment.captured", intent.Intent.ID, "pay_r")
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, err := f.svc.VerifyClientPayment(ctx, orders.VerifyPaymentInput{
			OrderID:           order.ID,
			ProviderOrderID:   intent.Intent.ID,
			ProviderPaymentID: "pay_r",
			Signature:         payment.Sign(intent.Intent.ID+"|pay_r", keySecret),
		})
		assert.NoError(t, err)
	}()
	go func() {
		defer wg.Done()
		_, err := f.svc.ReconcileWebhookEvent(ctx, body, payment.Sign(string(body), webhookSecret), "")
		assert.NoError(t, err)
	}()
	wg.Wait()

	client := testutil.ToFloat64(f.metrics.PaymentsMarkedPaid.WithLabelValues("client"))
	webhook := testutil.ToFloat64(f.metrics.PaymentsMarkedPaid.WithLabelValues("webhook"))
	assert.Equal(t, float64(1), client+webhook)
}

func TestRequestPaymentIntent_AlreadyPaid(t *testing.T) {
	f := newFixture(t, "", nil)
	order := f.createOrder(t, 50)
	intent := f.requestIntent(t, order.ID)
	_, err := f.svc.ReconcileWebhookEvent(context.Background(), webhookBody("order.paid", intent.Intent.ID, "pay_1"), "", "")
	require.NoError(t, err)

	_, err = f.svc.RequestPaymentIntent(context.Background(), order.ID, orders.Requester{UserID: f.owner})
	assert.True(t, errors.Is(err, apperr.ErrValidation))
}

func TestGetOrder_Ownership(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, webhookSecret, nil)
	order := f.createOrder(t, 10)

	_, err := f.svc.GetOrder(ctx, order.ID, orders.Requester{UserID: primitive.NewObjectID()})
	assert.True(t, errors.Is(err, apperr.ErrUnauthorized))

	_, err = f.svc.GetOrder(ctx, order.ID, orders.Requester{UserID: primitive.NewObjectID(), Admin: true})
	assert.NoError(t, err)

	status, err := f.svc.PaymentStatus(ctx, order.ID, orders.Requester{UserID: f.owner})
	require.NoError(t, err)
	assert.False(t, status.IsPaid)
	assert.Equal(t, "razorpay", status.PaymentMethod)
}

func TestListOrders_AdminOnly(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, webhookSecret, nil)
	f.createOrder(t, 10)
	f.createOrder(t, 20)

	_, _, err := f.svc.ListOrders(ctx, orders.Requester{UserID: f.owner}, models.Page{Number: 1, Size: 10})
	assert.True(t, errors.Is(err, apperr.ErrUnauthorized))

	list, total, err := f.svc.ListOrders(ctx, orders.Requester{Admin: true}, models.Page{Number: 1, Size: 1})
	require.NoError(t, err)
	assert.Len(t, list, 1)
	assert.Equal(t, int64(2), total)

	mine, err := f.svc.ListMyOrders(ctx, orders.Requester{UserID: f.owner}, models.Page{Number: 1, Size: 10})
	require.NoError(t, err)
	assert.Len(t, mine, 2)
}

func TestUpdateStatus_NotifiesOnChangeOnly(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, webhookSecret, nil)
	order := f.createOrder(t, 10)
	admin := orders.Requester{Admin: true}

	updated, err := f.svc.UpdateStatus(ctx, order.ID, "shipped", admin)
	require.NoError(t, err)
	assert.Equal(t, models.StatusShipped, updated.Status)

	all := f.inbox.All()
	require.Len(t, all, 1)
	assert.Equal(t, "Order Shipped", all[0].Title)
	assert.Equal(t, f.owner, all[0].UserID)
	assert.Equal(t, models.NotificationCategoryOrder, all[0].Category)
	require.NotNil(t, all[0].OrderID)
	assert.Equal(t, order.ID, *all[0].OrderID)
	assert.Contains(t, all[0].Message, order.ShortID())

	_, err = f.svc.UpdateStatus(ctx, order.ID, "SHIPPED", admin)
	require.NoError(t, err)
	assert.Len(t, f.inbox.All(), 1)
}

func TestUpdateStatus_DeliveredSetsDeliveryOnce(t *testing.T) {
	ctx := context.Background()
	clock := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	store := memstore.NewOrders()
	gateway, err := payment.NewClientWith(payment.Config{KeyID: "k", KeySecret: keySecret}, &fakeRazorpayOrders{})
	require.NoError(t, err)
	svc, err := orders.NewService(store, gateway, nil, orders.Options{Now: func() time.Time { return clock }})
	require.NoError(t, err)

	order, err := svc.CreateOrder(ctx, primitive.NewObjectID(), orders.CreateOrderInput{
		Items:      []orders.ItemInput{{ProductID: primitive.NewObjectID().Hex(), Price: 5, Quantity: 2}},
		ItemsPrice: 10,
		TotalPrice: 10,
	})
	require.NoError(t, err)

	delivered, err := svc.UpdateStatus(ctx, order.ID, "delivered", orders.Requester{Admin: true})
	require.NoError(t, err)
	assert.True(t, delivered.IsDelivered)
	require.NotNil(t, delivered.DeliveredAt)
	assert.True(t, clock.Equal(*delivered.DeliveredAt))

	clock = clock.Add(time.Hour)
	_, err = svc.UpdateStatus(ctx, order.ID, "processing", orders.Requester{Admin: true})
	require.NoError(t, err)
	again, err := svc.UpdateStatus(ctx, order.ID, "delivered", orders.Requester{Admin: true})
	require.NoError(t, err)
	assert.True(t, again.DeliveredAt.Equal(time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)))
}

func TestUpdateStatus_Validation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, webhookSecret, nil)
	order := f.createOrder(t, 10)

	_, err := f.svc.UpdateStatus(ctx, order.ID, "shipped", orders.Requester{UserID: f.owner})
	assert.True(t, errors.Is(err, apperr.ErrUnauthorized))

	_, err = f.svc.UpdateStatus(ctx, order.ID, "lost", orders.Requester{Admin: true})
	assert.True(t, errors.Is(err, apperr.ErrValidation))

	_, err = f.svc.UpdateStatus(ctx, primitive.NewObjectID(), "shipped", orders.Requester{Admin: true})
	assert.True(t, errors.Is(err, apperr.ErrNotFound))
}

func TestUpdateStatus_NotifierFailureKeepsTransition(t *testing.T) {
	for _, panics := range []bool{false, true} {
		ctx := context.Background()
		f := newFixture(t, webhookSecret, failingNotifier{panics: panics})
		order := f.createOrder(t, 10)

		updated, err := f.svc.UpdateStatus(ctx, order.ID, "cancelled", orders.Requester{Admin: true})
		require.NoError(t, err)
		assert.Equal(t, models.StatusCancelled, updated.Status)
		assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.NotificationFailures))
	}
}

// stallingNotifier blocks until its context ends, like a sink whose broker
// is unreachable.
type stallingNotifier struct {
	mu       sync.Mutex
	deadline bool
	err      error
}

func (s *stallingNotifier) Emit(ctx context.Context, _ *models.Notification) error {
	_, hasDeadline := ctx.Deadline()
	<-ctx.Done()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deadline = hasDeadline
	s.err = ctx.Err()
	return ctx.Err()
}

func TestUpdateStatus_SlowNotifierBoundedByOwnTimeout(t *testing.T) {
	store := memstore.NewOrders()
	gateway, err := payment.NewClientWith(payment.Config{KeyID: "rzp_test_key", KeySecret: keySecret}, &fakeRazorpayOrders{})
	require.NoError(t, err)
	notifier := &stallingNotifier{}
	reg := metrics.NewRegistry()
	svc, err := orders.NewService(store, gateway, notifier, orders.Options{Metrics: reg, NotifyTimeout: 20 * time.Millisecond})
	require.NoError(t, err)

	order := &models.Order{UserID: primitive.NewObjectID(), Status: models.StatusPending}
	require.NoError(t, store.Create(context.Background(), order))

	// A request with a long deadline must not wait on the notifier for all of it.
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	started := time.Now()
	updated, err := svc.UpdateStatus(ctx, order.ID, "shipped", orders.Requester{Admin: true})
	require.NoError(t, err)
	assert.Equal(t, models.StatusShipped, updated.Status)
	assert.Less(t, time.Since(started), 5*time.Second)

	notifier.mu.Lock()
	defer notifier.mu.Unlock()
	assert.True(t, notifier.deadline)
	assert.True(t, errors.Is(notifier.err, context.DeadlineExceeded))
	assert.Equal(t, float64(1), testutil.ToFloat64(reg.NotificationFailures))
}

func TestUpdateStatus_NotifiesAfterRequestCancelled(t *testing.T) {
	f := newFixture(t, webhookSecret, nil)
	order := f.createOrder(t, 10)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := f.svc.UpdateStatus(ctx, order.ID, "shipped", orders.Requester{Admin: true})
	require.NoError(t, err)

	count, err := f.inbox.CountUnread(context.Background(), f.owner)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestNotifyStatus_ReportsFailures(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, webhookSecret, failingNotifier{})
	order := f.createOrder(t, 10)

	_, err := f.svc.NotifyStatus(ctx, order.ID, "shipped", orders.Requester{Admin: true})
	assert.Error(t, err)

	ok := newFixture(t, webhookSecret, nil)
	order = ok.createOrder(t, 10)
	n, err := ok.svc.NotifyStatus(ctx, order.ID, "delivered", orders.Requester{Admin: true})
	require.NoError(t, err)
	assert.Equal(t, "Order Delivered", n.Title)
}

func TestCheckoutScenario_CatalogPricedOrderPaidByClient(t *testing.T) {
	ctx := context.Background()
	product := models.Product{ID: primitive.NewObjectID(), Name: "Ghee 1L", Price: 500.00}
	pricer, err := orders.NewPricer(orders.PricingCatalog, memstore.NewCatalog(product))
	require.NoError(t, err)

	remote := &fakeRazorpayOrders{}
	gateway, err := payment.NewClientWith(payment.Config{KeyID: "rzp_test_key", KeySecret: keySecret}, remote)
	require.NoError(t, err)
	svc, err := orders.NewService(memstore.NewOrders(), gateway, nil, orders.Options{Pricer: pricer})
	require.NoError(t, err)

	owner := primitive.NewObjectID()
	order, err := svc.CreateOrder(ctx, owner, orders.CreateOrderInput{
		Items:      []orders.ItemInput{{ProductID: product.ID.Hex(), Price: 1, Quantity: 2}},
		TotalPrice: 2,
	})
	require.NoError(t, err)
	assert.Equal(t, 1000.00, order.TotalPrice)
	assert.Equal(t, "Ghee 1L", order.Items[0].Name)

	intent, err := svc.RequestPaymentIntent(ctx, order.ID, orders.Requester{UserID: owner})
	require.NoError(t, err)
	assert.Equal(t, int64(100000), intent.Intent.Amount)
	assert.Equal(t, "INR", intent.Intent.Currency)

	paid, err := svc.VerifyClientPayment(ctx, orders.VerifyPaymentInput{
		OrderID:           order.ID,
		ProviderOrderID:   intent.Intent.ID,
		ProviderPaymentID: "pay_ok",
		Signature:         payment.Sign(intent.Intent.ID+"|pay_ok", keySecret),
	})
	require.NoError(t, err)
	assert.True(t, paid.IsPaid)
	assert.NotNil(t, paid.PaidAt)
	assert.True(t, paid.PaymentResult.Completed())
}
