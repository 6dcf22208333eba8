package models

import "time"

type PaymentStage string

const (
	PaymentStageCreated   PaymentStage = "created"
	PaymentStageCompleted PaymentStage = "completed"
)

// PaymentSource records which path completed a payment.
type PaymentSource string

const (
	PaymentSourceClient  PaymentSource = "client"
	PaymentSourceWebhook PaymentSource = "webhook"
)

// PaymentResult is a variant keyed by Stage:
//
//	created:   ProviderOrderID
//	completed: ProviderOrderID, PaymentID, Signature (client path only), CompletedAt
//
// Build values with CreatedPayment and CompletedPayment rather than by hand.
type PaymentResult struct {
	Stage           PaymentStage  `bson:"stage" json:"stage"`
	ProviderOrderID string        `bson:"providerOrderId" json:"provider_order_id"`
	PaymentID       string        `bson:"paymentId,omitempty" json:"payment_id,omitempty"`
	Signature       string        `bson:"signature,omitempty" json:"signature,omitempty"`
	Source          PaymentSource `bson:"source,omitempty" json:"source,omitempty"`
	CompletedAt     *time.Time    `bson:"completedAt,omitempty" json:"completedAt,omitempty"`
}

func CreatedPayment(providerOrderID string) *PaymentResult {
	return &PaymentResult{
		Stage:           PaymentStageCreated,
		ProviderOrderID: providerOrderID,
	}
}

func CompletedPayment(providerOrderID, paymentID, signature string, source PaymentSource, at time.Time) *PaymentResult {
	completedAt := at
	return &PaymentResult{
		Stage:           PaymentStageCompleted,
		ProviderOrderID: providerOrderID,
		PaymentID:       paymentID,
		Signature:       signature,
		Source:          source,
		CompletedAt:     &completedAt,
	}
}

func (p *PaymentResult) Completed() bool {
	return p != nil && p.Stage == PaymentStageCompleted
}
