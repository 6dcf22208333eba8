package payment

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	razorpay "github.com/razorpay/razorpay-go"

	"storefront/internal/apperr"
)

// orderCreator is the subset of the razorpay orders resource the client uses.
type orderCreator interface {
	Create(data map[string]interface{}, extraHeaders map[string]string) (map[string]interface{}, error)
}

// IntentRequest describes a remote payment intent to create.
type IntentRequest struct {
	AmountMinor int64
	Currency    string
	Receipt     string
	Notes       map[string]string
}

// Intent is the provider-side record the client needs to complete checkout.
type Intent struct {
	ID        string    `json:"id"`
	Amount    int64     `json:"amount"`
	Currency  string    `json:"currency"`
	Receipt   string    `json:"receipt"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

type Client struct {
	cfg    Config
	orders orderCreator
}

// NewClient validates cfg and returns a client backed by the Razorpay API.
func NewClient(cfg Config) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	rp := razorpay.NewClient(cfg.KeyID, cfg.KeySecret)
	return &Client{cfg: cfg, orders: rp.Order}, nil
}

// NewClientWith is NewClient with the remote orders resource replaced.
func NewClientWith(cfg Config, orders orderCreator) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Client{cfg: cfg, orders: orders}, nil
}

// KeyID is the public key the browser checkout needs.
func (c *Client) KeyID() string { return c.cfg.KeyID }

func (c *Client) WebhookSecretConfigured() bool {
	return strings.TrimSpace(c.cfg.WebhookSecret) != ""
}

// CreateIntent creates a remote order for req.AmountMinor minor units.
func (c *Client) CreateIntent(ctx context.Context, req IntentRequest) (*Intent, error) {
	if req.AmountMinor <= 0 {
		return nil, apperr.InvalidAmount("Order amount must be greater than 0")
	}
	if strings.TrimSpace(req.Currency) == "" {
		return nil, apperr.Validation("currency is required")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	notes := make(map[string]interface{}, len(req.Notes))
	for k, v := range req.Notes {
		notes[k] = v
	}
	data := map[string]interface{}{
		"amount":   req.AmountMinor,
		"currency": req.Currency,
		"receipt":  req.Receipt,
		"notes":    notes,
	}

	log.Printf("[PAYMENT] [INFO] creating razorpay order: %d %s receipt=%s", req.AmountMinor, req.Currency, req.Receipt)
	body, err := c.orders.Create(data, nil)
	if err != nil {
		return nil, fmt.Errorf("razorpay create order: %w", err)
	}

	intent, err := decodeIntent(body)
	if err != nil {
		return nil, fmt.Errorf("razorpay create order: %w", err)
	}
	return intent, nil
}

// VerifyPaymentSignature checks the signature the checkout widget returns
// for providerOrderID and providerPaymentID.
func (c *Client) VerifyPaymentSignature(providerOrderID, providerPaymentID, signature string) error {
	expected := Sign(paymentMessage(providerOrderID, providerPaymentID), c.cfg.KeySecret)
	if !signaturesEqual(expected, signature) {
		return apperr.InvalidSignature("Invalid payment signature")
	}
	return nil
}

// VerifyWebhookSignature checks signature over the raw webhook body. It
// returns false without error when no webhook secret is configured, in which
// case the caller is handling an unauthenticated event.
func (c *Client) VerifyWebhookSignature(body []byte, signature string) (bool, error) {
	if !c.WebhookSecretConfigured() {
		return false, nil
	}
	expected := signBytes(body, c.cfg.WebhookSecret)
	if !signaturesEqual(expected, strings.TrimSpace(signature)) {
		return false, apperr.InvalidSignature("Invalid webhook signature")
	}
	return true, nil
}

func decodeIntent(body map[string]interface{}) (*Intent, error) {
	id, _ := body["id"].(string)
	if id == "" {
		return nil, fmt.Errorf("response missing order id")
	}
	intent := &Intent{
		ID:       id,
		Amount:   int64Field(body["amount"]),
		Currency: stringField(body["currency"]),
		Receipt:  stringField(body["receipt"]),
		Status:   stringField(body["status"]),
	}
	if created := int64Field(body["created_at"]); created > 0 {
		intent.CreatedAt = time.Unix(created, 0).UTC()
	}
	return intent, nil
}

func stringField(v interface{}) string {
	s, _ := v.(string)
	return s
}

func int64Field(v interface{}) int64 {
	switch n := v.(type) {
	case float64:
		return int64(n)
	case int64:
		return n
	case int:
		return int64(n)
	case int32:
		return int64(n)
	default:
		return 0
	}
}
