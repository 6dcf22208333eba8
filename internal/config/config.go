package config

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

var AppEnv Config

const (
	StoreMongo  = "mongo"
	StoreMemory = "memory"
)

type Config struct {
	Port           string
	StoreDriver    string
	MongoURI       string
	DBName         string
	JWTSecret      string
	AccessTokenTTL time.Duration
	RequestTimeout time.Duration
	NotifyTimeout  time.Duration

	RazorpayKeyID         string
	RazorpayKeySecret     string
	RazorpayWebhookSecret string
	PaymentCurrency       string
	OrderPricing          string

	KafkaBrokers            []string
	KafkaNotificationsTopic string

	WebhookRateRPS   float64
	WebhookRateBurst int
}

func Load() {
	if err := godotenv.Load(); err != nil {
		log.Println(".env not loaded:", err)
	}
	AppEnv = FromEnv()
}

// FromEnv reads the configuration from the process environment only.
func FromEnv() Config {
	return Config{
		Port:           getEnvOrDefault("PORT", "8080"),
		StoreDriver:    strings.ToLower(getEnvOrDefault("STORE_DRIVER", StoreMongo)),
		MongoURI:       getEnvOrDefault("MONGO_URI", ""),
		DBName:         getEnvOrDefault("DB_NAME", "storefront"),
		JWTSecret:      getEnvOrDefault("JWT_SECRET", ""),
		AccessTokenTTL: getDurationEnv("ACCESS_TOKEN_TTL", 20, time.Minute),
		RequestTimeout: getDurationEnv("REQUEST_TIMEOUT", 5, time.Second),
		NotifyTimeout:  getDurationEnv("NOTIFY_TIMEOUT", 3, time.Second),

		RazorpayKeyID:         getEnvOrDefault("RAZORPAY_KEY_ID", ""),
		RazorpayKeySecret:     getEnvOrDefault("RAZORPAY_KEY_SECRET", ""),
		RazorpayWebhookSecret: getEnvOrDefault("RAZORPAY_WEBHOOK_SECRET", ""),
		PaymentCurrency:       strings.ToUpper(getEnvOrDefault("PAYMENT_CURRENCY", "INR")),
		OrderPricing:          strings.ToLower(getEnvOrDefault("ORDER_PRICING", "catalog")),

		KafkaBrokers:            getListEnv("KAFKA_BROKERS"),
		KafkaNotificationsTopic: getEnvOrDefault("KAFKA_NOTIFICATIONS_TOPIC", "order-notifications"),

		// Razorpay delivers from a handful of addresses, so the per-IP
		// budget has to absorb a whole redelivery burst.
		WebhookRateRPS:   getFloatEnv("WEBHOOK_RATE_RPS", 50),
		WebhookRateBurst: getIntEnv("WEBHOOK_RATE_BURST", 200),
	}
}

// Validate reports every missing or malformed setting at once. Gateway
// credentials are checked by the payment client.
func (c Config) Validate() error {
	var errs []error
	switch c.StoreDriver {
	case StoreMongo:
		if c.MongoURI == "" {
			errs = append(errs, errors.New("MONGO_URI is required when STORE_DRIVER=mongo"))
		}
	case StoreMemory:
	default:
		errs = append(errs, fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver))
	}
	if c.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	if c.OrderPricing != "catalog" && c.OrderPricing != "client" {
		errs = append(errs, fmt.Errorf("unknown ORDER_PRICING %q", c.OrderPricing))
	}
	return errors.Join(errs...)
}

func (c Config) KafkaEnabled() bool {
	return len(c.KafkaBrokers) > 0
}
