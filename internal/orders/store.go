package orders

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"storefront/internal/models"
	"storefront/internal/payment"
)

// Store persists orders. Implementations serialize single-document updates
// but no multi-document transactions are assumed.
type Store interface {
	Create(ctx context.Context, order *models.Order) error
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.Order, error)
	FindByProviderOrderID(ctx context.Context, providerOrderID string) (*models.Order, error)
	ListByUser(ctx context.Context, userID primitive.ObjectID, page models.Page) ([]models.Order, error)
	List(ctx context.Context, page models.Page) ([]models.Order, int64, error)

	// SetPaymentIntent stores a created-stage payment result unless the
	// order is already paid or already carries a remote order id. It
	// reports whether the write happened.
	SetPaymentIntent(ctx context.Context, id primitive.ObjectID, result *models.PaymentResult, at time.Time) (bool, error)

	// MarkPaid sets isPaid, paidAt and the completed payment result only if
	// the order is not paid yet. It reports whether this call applied it.
	MarkPaid(ctx context.Context, id primitive.ObjectID, result *models.PaymentResult, at time.Time) (bool, error)

	// UpdateStatus sets the status (and the delivery fields for delivered)
	// and returns the order as it was before the update.
	UpdateStatus(ctx context.Context, id primitive.ObjectID, status models.OrderStatus, at time.Time) (*models.Order, error)
}

// Catalog resolves product documents for server-side pricing.
type Catalog interface {
	FindProducts(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]models.Product, error)
}

// Notifier receives notifications after an order transition is stored.
type Notifier interface {
	Emit(ctx context.Context, n *models.Notification) error
}

// EventLog remembers processed webhook event ids.
type EventLog interface {
	Seen(ctx context.Context, eventID string) (bool, error)
	Record(ctx context.Context, event models.WebhookEvent) error
}

// Gateway is the payment provider as seen by the order lifecycle.
type Gateway interface {
	KeyID() string
	CreateIntent(ctx context.Context, req payment.IntentRequest) (*payment.Intent, error)
	VerifyPaymentSignature(providerOrderID, providerPaymentID, signature string) error
	VerifyWebhookSignature(body []byte, signature string) (bool, error)
}

// Requester is the authenticated caller of an operation.
type Requester struct {
	UserID primitive.ObjectID
	Admin  bool
}

func (r Requester) canAccess(o *models.Order) bool {
	return r.Admin || o.OwnedBy(r.UserID)
}
