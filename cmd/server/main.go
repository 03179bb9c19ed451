package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/brightwell/checkout/internal"
	"github.com/brightwell/checkout/internal/billing"
	"github.com/brightwell/checkout/internal/catalog"
	"github.com/brightwell/checkout/internal/clientstate"
	"github.com/brightwell/checkout/internal/handler"
	"github.com/brightwell/checkout/internal/handler/webhook"
	"github.com/brightwell/checkout/internal/middleware"
	"github.com/brightwell/checkout/internal/postgres"
	"github.com/brightwell/checkout/internal/router"
	"github.com/brightwell/checkout/internal/routes"
	"github.com/brightwell/checkout/internal/service"
	"github.com/brightwell/checkout/internal/telemetry"
	"github.com/brightwell/checkout/internal/worker"
)

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load configuration
	cfg, err := internal.NewConfig()
	if err != nil {
		return fmt.Errorf("config initialization failed: %w", err)
	}

	// Configure logger
	logger := internal.NewLogger(os.Stdout, cfg.Env, cfg.LogLevel)

	// Initialize database/sql connection for migrations
	logger.Info("Connecting to database...")
	sqlDB, err := sql.Open("pgx", cfg.DatabaseUrl)
	if err != nil {
		return fmt.Errorf("database connection failed: %w", err)
	}
	defer sqlDB.Close()

	if err := sqlDB.Ping(); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	logger.Info("Database connection established")

	// Run migrations
	logger.Info("Running database migrations...")
	if err := internal.RunMigrations(sqlDB); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	logger.Info("Database migrations completed successfully")

	// Initialize pgx connection pool for application
	pool, err := pgxpool.New(ctx, cfg.DatabaseUrl)
	if err != nil {
		return fmt.Errorf("failed to create connection pool: %w", err)
	}
	defer pool.Close()

	// Business metrics
	telemetry.Business = telemetry.NewBusinessMetrics("checkout")

	// Initialize stores
	catalogStore := catalog.NewPostgresStore(pool)
	intentStore := postgres.NewIntentStore(pool)
	orderStore := postgres.NewOrderStore(pool)
	stateStore := clientstate.NewStore(cfg.Checkout.IntentTTL)

	// Initialize Stripe billing provider
	logger.Info("Initializing Stripe billing provider...")
	billingProvider := billing.NewStripeProvider(cfg.Stripe.SecretKey)

	// Initialize services
	cartService := service.NewCartService(catalogStore)
	checkoutService := service.NewCheckoutService(catalogStore, billingProvider, intentStore, service.CheckoutConfig{
		Currency:   cfg.Checkout.Currency,
		SuccessURL: cfg.Checkout.SuccessURL,
		CancelURL:  cfg.Checkout.CancelURL,
	}, logger)
	fulfillmentService := service.NewFulfillmentService(intentStore, orderStore, cfg.Checkout.Currency, logger)
	verifyService := service.NewVerifyService(orderStore, intentStore, billingProvider, stateStore, logger,
		cfg.Checkout.VerifyMaxAttempts, cfg.Checkout.VerifyDelay)
	sideEffects := service.NewSideEffects(cartService, stateStore, cfg.Checkout.FreshnessWindow, logger)

	// Build route dependencies
	storefrontDeps := routes.StorefrontDeps{
		CartHandler:     handler.NewCartHandler(cartService),
		CheckoutHandler: handler.NewCheckoutHandler(cartService, checkoutService, verifyService, sideEffects, logger),
		OrderHandler:    handler.NewOrderHandler(orderStore),
	}

	stripeWebhookHandler := webhook.NewStripeHandler(billingProvider, fulfillmentService, webhook.StripeWebhookConfig{
		WebhookSecret: cfg.Stripe.WebhookSecret,
	}, logger)
	webhookDeps := routes.WebhookDeps{
		StripeHandler: stripeWebhookHandler.HandleWebhook,
	}

	// Initialize middleware
	metrics := middleware.NewMetrics("checkout")

	// Create router and register routes
	r := router.New(
		router.Recovery(logger),
		middleware.RequestID,
		metrics.Middleware,
		router.CORS(cfg.AllowedOrigins),
		router.Logger(logger),
		middleware.WithRequestLogger(logger),
	)

	// Buyer-facing routes get body and time limits; the webhook endpoint
	// bounds its own payload read and must not be cut off mid-fulfillment.
	api := r.Group(
		middleware.MaxBodySize(middleware.DefaultMaxBodySize),
		middleware.Timeout(middleware.DefaultTimeout),
	)

	// Metrics endpoint (protect in production via firewall)
	r.Get("/metrics", func(w http.ResponseWriter, req *http.Request) {
		metrics.Handler().ServeHTTP(w, req)
	})

	// Health check endpoint
	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	routes.RegisterStorefrontRoutes(api, storefrontDeps)
	routes.RegisterWebhookRoutes(r, webhookDeps)

	// Start the intent expiry sweeper
	sweeper := worker.NewSweeper(intentStore, stateStore, worker.Config{
		Interval:  cfg.Checkout.SweepInterval,
		IntentTTL: cfg.Checkout.IntentTTL,
	}, logger)
	go func() {
		if err := sweeper.Start(ctx); err != nil && ctx.Err() == nil {
			logger.Error("sweeper stopped", "error", err)
		}
	}()

	// Start server
	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{Addr: addr, Handler: r}

	go func() {
		<-ctx.Done()
		logger.Info("Shutting down server...")
		_ = srv.Shutdown(context.Background())
	}()

	logger.Info("Starting checkout server", "address", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server failed: %w", err)
	}

	return nil
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}
