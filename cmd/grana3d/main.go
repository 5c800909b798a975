package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/julianmcancelo/grana3d2026-sub000/internal/config"
	"github.com/julianmcancelo/grana3d2026-sub000/internal/domain"
	"github.com/julianmcancelo/grana3d2026-sub000/internal/http/handlers"
	"github.com/julianmcancelo/grana3d2026-sub000/internal/idempotency"
	applog "github.com/julianmcancelo/grana3d2026-sub000/internal/log"
	"github.com/julianmcancelo/grana3d2026-sub000/internal/messaging"
	"github.com/julianmcancelo/grana3d2026-sub000/internal/notify"
	"github.com/julianmcancelo/grana3d2026-sub000/internal/payments"
	"github.com/julianmcancelo/grana3d2026-sub000/internal/repos"
	"github.com/julianmcancelo/grana3d2026-sub000/internal/services"
)

const ordersPerMinute = 20

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "grana3d:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger, err := applog.New(cfg.LogLevel, cfg.LogFile)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	applog.Set(logger)
	defer applog.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := repos.OpenDB(cfg.DBDSN)
	if err != nil {
		return err
	}
	defer db.Close()
	store := repos.NewStore(db)
	if cfg.SeedDemo {
		if err := repos.Seed(ctx, store); err != nil {
			return fmt.Errorf("seed: %w", err)
		}
		applog.Bg("seed.done", nil, nil)
	}

	secret := cfg.JWTSecret
	if secret == "" {
		// tokens will not survive a restart
		secret = randomSecret()
		logger.Warn("jwt.secret.generated")
	}

	pay, err := paymentProvider(cfg)
	if err != nil {
		return err
	}

	var pub messaging.Publisher = messaging.LogPublisher{}
	if len(cfg.Kafka.Brokers) > 0 {
		pub = messaging.NewKafkaPublisher(cfg.Kafka.Brokers)
	}
	defer pub.Close()

	var idem idempotency.Store = idempotency.NewMemoryStore()
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis %s: %w", cfg.Redis.Addr, err)
		}
		idem = idempotency.NewRedisStore(rdb, "grana3d:idem:")
	}

	relay := services.NewOutboxRelay(store, services.RelayConfig{
		PollInterval: cfg.Outbox.PollInterval,
		MaxAttempts:  cfg.Outbox.MaxAttempts,
	})
	views, err := notify.NewEngine()
	if err != nil {
		return err
	}
	relay.Register(domain.TaskOrderConfirmation, notify.NewConfirmationHandler(pub, cfg.Kafka.NotifyTopic, views))
	relay.Register(domain.TaskOrderExport, notify.NewExportHandler(pub, cfg.Kafka.ExportTopic))

	coupons := services.NewCouponService(store, time.Now)
	auth := services.NewAuthService(store.Users, secret, time.Now)
	orders := services.NewOrderService(services.OrderDeps{
		Store:   store,
		Coupons: coupons,
		Wholesale: services.WholesaleEngine{
			MinInitialUnits:     cfg.Wholesale.MinInitialUnits,
			MinMaintenanceUnits: cfg.Wholesale.MinMaintenanceUnits,
			RetailRollover:      cfg.Wholesale.RetailRollover,
			Location:            cfg.Location(),
		},
		Payments:      pay,
		Relay:         relay,
		StrictCoupons: cfg.Coupons.Strict,
		Currency:      cfg.Currency,
	})

	deps := handlers.NewDeps(handlers.Services{
		Store:       store,
		Auth:        auth,
		Orders:      orders,
		Catalog:     services.NewCatalogService(store, coupons),
		Coupons:     coupons,
		Inventory:   services.NewInventoryService(store),
		Relay:       relay,
		Idempotency: idem,
		OrderLimit:  ordersPerMinute,
	})
	app := handlers.NewApp(deps)

	relayDone := make(chan struct{})
	go func() {
		defer close(relayDone)
		if err := relay.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			applog.Bg("outbox.relay.stop", err, nil)
		}
	}()

	listenErr := make(chan error, 1)
	go func() {
		logger.Info("server.start", zap.String("port", cfg.Port))
		listenErr <- app.Listen(":" + cfg.Port)
	}()

	select {
	case err := <-listenErr:
		stop()
		<-relayDone
		return err
	case <-ctx.Done():
	}

	logger.Info("server.shutdown")
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		applog.Bg("server.shutdown.fail", err, nil)
	}
	<-relayDone
	return nil
}

func paymentProvider(cfg config.Config) (payments.Provider, error) {
	if cfg.Stripe.APIKey == "" {
		return payments.NoopProvider{}, nil
	}
	return payments.NewStripeProvider(payments.StripeConfig{
		APIKey:     cfg.Stripe.APIKey,
		SuccessURL: cfg.Stripe.SuccessURL,
		CancelURL:  cfg.Stripe.CancelURL,
		Currency:   cfg.Currency,
	})
}

func randomSecret() string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		panic(err)
	}
	return hex.EncodeToString(b)
}
