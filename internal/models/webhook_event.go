package models

import "time"

// WebhookEvent marks a provider event id as processed.
type WebhookEvent struct {
	EventID     string    `bson:"eventId" json:"eventId"`
	EventType   string    `bson:"eventType" json:"eventType"`
	ProcessedAt time.Time `bson:"processedAt" json:"processedAt"`
}
