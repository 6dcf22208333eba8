package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.mongodb.org/mongo-driver/mongo"

	"storefront/internal/config"
	"storefront/internal/database"
	"storefront/internal/handlers"
	"storefront/internal/memstore"
	"storefront/internal/metrics"
	"storefront/internal/notify"
	"storefront/internal/orders"
	"storefront/internal/payment"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(config.AppEnv)
		},
	}
}

// services is everything the router needs.
type services struct {
	orders  *orders.Service
	inbox   *notify.Service
	metrics *metrics.Registry
	health  handlers.Pinger
	closers []func() error
}

func (s *services) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			log.Println("[SERVER] [WARN] shutdown:", err)
		}
	}
}

type stores struct {
	orders        orders.Store
	catalog       orders.Catalog
	notifications notify.Store
	events        orders.EventLog
	health        handlers.Pinger
	closer        func() error
}

func runServe(cfg config.Config) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	// Refuse to start without gateway credentials.
	gateway, err := payment.NewClient(payment.Config{
		KeyID:         cfg.RazorpayKeyID,
		KeySecret:     cfg.RazorpayKeySecret,
		WebhookSecret: cfg.RazorpayWebhookSecret,
	})
	if err != nil {
		return err
	}
	if !gateway.WebhookSecretConfigured() {
		log.Println("[PAYMENT] [WARN] RAZORPAY_WEBHOOK_SECRET not set: webhook events will be accepted unsigned")
	}

	st, err := openStores(cfg)
	if err != nil {
		return err
	}

	svc, err := buildServices(cfg, st, gateway)
	if err != nil {
		_ = st.closer()
		return err
	}
	defer svc.Close()

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           newRouter(cfg, svc),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.Println("[SERVER] [INFO] listening on", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	log.Println("[SERVER] [INFO] shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func openStores(cfg config.Config) (*stores, error) {
	if cfg.StoreDriver == config.StoreMemory {
		log.Println("[SERVER] [WARN] STORE_DRIVER=memory: data is lost on restart")
		if cfg.OrderPricing == orders.PricingCatalog {
			log.Println("[SERVER] [WARN] memory catalog is empty: catalog pricing will reject every product, use ORDER_PRICING=client")
		}
		return &stores{
			orders:        memstore.NewOrders(),
			catalog:       memstore.NewCatalog(),
			notifications: memstore.NewNotifications(),
			events:        memstore.NewWebhookEvents(),
			closer:        func() error { return nil },
		}, nil
	}

	client, err := database.Connect(cfg.MongoURI)
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	db := client.Database(cfg.DBName)
	log.Println("MongoDB connected to:", db.Name())

	if err := database.EnsureIndexes(db); err != nil {
		log.Printf("[SERVER] [WARN] index warning: %v", err)
	}

	return &stores{
		orders:        database.NewOrderStore(db),
		catalog:       database.NewProductCatalog(db),
		notifications: database.NewNotificationStore(db),
		events:        database.NewWebhookEventStore(db),
		health:        database.NewPinger(db),
		closer:        disconnect(client),
	}, nil
}

func disconnect(client *mongo.Client) func() error {
	return func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return client.Disconnect(ctx)
	}
}

func buildServices(cfg config.Config, st *stores, gateway orders.Gateway) (*services, error) {
	svc := &services{
		metrics: metrics.NewRegistry(),
		health:  st.health,
		closers: []func() error{st.closer},
	}

	emitters := []notify.Emitter{notify.NewStoreEmitter(st.notifications)}
	if cfg.KafkaEnabled() {
		publisher := notify.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaNotificationsTopic)
		emitters = append(emitters, publisher)
		svc.closers = append(svc.closers, publisher.Close)
		log.Println("[NOTIFY] [INFO] publishing notifications to kafka topic", cfg.KafkaNotificationsTopic)
	}

	pricer, err := orders.NewPricer(cfg.OrderPricing, st.catalog)
	if err != nil {
		return nil, err
	}

	notifier := notify.NewMultiEmitter(emitters...)
	svc.orders, err = orders.NewService(st.orders, gateway, notifier, orders.Options{
		Currency: cfg.PaymentCurrency,
		Pricer:   pricer,
		Events:   st.events,
		Metrics:  svc.metrics,

		NotifyTimeout: cfg.NotifyTimeout,
	})
	if err != nil {
		return nil, err
	}
	svc.inbox = notify.NewService(st.notifications, st.orders, notifier)
	return svc, nil
}
