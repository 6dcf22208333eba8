package payment

import (
	"strings"

	"storefront/internal/apperr"
)

// Config carries the gateway credentials. It is built once at startup and
// handed to NewClient; nothing in this package reads the environment.
type Config struct {
	KeyID         string
	KeySecret     string
	WebhookSecret string
}

// Validate reports missing credentials as a configuration error.
func (c Config) Validate() error {
	var missing []string
	if strings.TrimSpace(c.KeyID) == "" {
		missing = append(missing, "key id")
	}
	if strings.TrimSpace(c.KeySecret) == "" {
		missing = append(missing, "key secret")
	}
	if len(missing) > 0 {
		return apperr.Configuration("razorpay credentials missing: " + strings.Join(missing, ", "))
	}
	return nil
}
