package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// Sign returns the lowercase hex HMAC-SHA256 of message keyed by secret.
func Sign(message, secret string) string {
	return signBytes([]byte(message), secret)
}

func signBytes(message []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(message)
	return hex.EncodeToString(mac.Sum(nil))
}

// paymentMessage is the string the provider signs when a checkout completes.
func paymentMessage(providerOrderID, providerPaymentID string) string {
	return providerOrderID + "|" + providerPaymentID
}

// signaturesEqual compares in constant time.
func signaturesEqual(expected, got string) bool {
	return hmac.Equal([]byte(expected), []byte(got))
}
