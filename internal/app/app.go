// Package app wires configuration, storage, domain services, and the HTTP
// server into a running process.
package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/xenking/gadget-cartel/internal/cache"
	"github.com/xenking/gadget-cartel/internal/domain/auth"
	"github.com/xenking/gadget-cartel/internal/domain/cart"
	"github.com/xenking/gadget-cartel/internal/domain/coupon"
	"github.com/xenking/gadget-cartel/internal/domain/notification"
	"github.com/xenking/gadget-cartel/internal/domain/order"
	"github.com/xenking/gadget-cartel/internal/domain/payment"
	"github.com/xenking/gadget-cartel/internal/domain/shipping"
	"github.com/xenking/gadget-cartel/internal/events"
	"github.com/xenking/gadget-cartel/internal/handler"
	"github.com/xenking/gadget-cartel/internal/mail"
	"github.com/xenking/gadget-cartel/internal/paystack"
	"github.com/xenking/gadget-cartel/internal/repository"
	"github.com/xenking/gadget-cartel/pkg/health"
	"github.com/xenking/gadget-cartel/pkg/httpmiddleware"
)

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing", zap.String("addr", cfg.Addr))

	taxRate, err := cfg.Checkout.TaxRateDecimal()
	if err != nil {
		return err
	}

	// PostgreSQL pool + migrations.
	pool, err := repository.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return errors.Wrap(err, "create db pool")
	}
	defer pool.Close()

	if err := repository.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	// Health check service.
	healthSvc := health.New()
	healthSvc.AddReadinessCheck("postgres", 5*time.Second, health.PingCheck(pool))
	healthSvc.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(10000))
	healthSvc.Start(ctx, 10*time.Second)
	healthSvc.SetReady(true)

	// Repositories.
	db := repository.NewDB(pool)
	productRepo := repository.NewProductRepository(db)
	couponRepo := repository.NewCouponRepository(db)
	cartRepo := repository.NewCartRepository(db)
	orderRepo := repository.NewOrderRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	shippingRepo := repository.NewShippingRepository(db)
	sessionRepo := repository.NewSessionRepository(db)

	// Optional coupon cache.
	ledgerOpts := []coupon.Option{}
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr})
		defer rdb.Close()
		ledgerOpts = append(ledgerOpts, coupon.WithCache(cache.NewCouponCache(rdb, cfg.Redis.CouponTTL)))
		lg.Info("Coupon cache enabled", zap.String("redis", cfg.Redis.Addr))
	}

	// Optional order event stream.
	var publisher order.EventPublisher
	if len(cfg.Kafka.Brokers) > 0 {
		kp := events.NewPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		defer kp.Close()
		publisher = kp
		lg.Info("Order events enabled",
			zap.Strings("brokers", cfg.Kafka.Brokers),
			zap.String("topic", cfg.Kafka.Topic))
	}

	// Domain services.
	ledger := coupon.NewLedger(couponRepo, ledgerOpts...)
	resolver := shipping.NewResolver(shippingRepo)
	notifications := notification.NewService(notificationRepo)
	carts := cart.NewService(cartRepo, productRepo)
	checkout := order.NewCheckoutService(orderRepo, productRepo, ledger, resolver, notifications, publisher, taxRate)

	mailer := mail.NewMailer(cfg.Resend.APIKey, cfg.Resend.From)
	fulfillment := order.NewFulfillmentService(orderRepo, notifications, mailer, publisher)

	if cfg.Paystack.SecretKey == "" {
		lg.Warn("Paystack secret key is empty, gateway calls will fail")
	}
	gatewayOpts := []paystack.Option{}
	if cfg.Paystack.BaseURL != "" {
		gatewayOpts = append(gatewayOpts, paystack.WithBaseURL(cfg.Paystack.BaseURL))
	}
	gateway := paystack.NewClient(cfg.Paystack.SecretKey, gatewayOpts...)
	reconciler := payment.NewReconciler(paymentRepo, gateway, notifications, cfg.Checkout.Currency)

	authn := auth.NewAuthenticator(sessionRepo, []byte(cfg.TokenPepper), cfg.AdminEmails)

	// HTTP handlers.
	h := handler.NewHandler(
		authn,
		carts,
		checkout,
		fulfillment,
		orderRepo,
		ledger,
		reconciler,
		notifications,
		resolver,
		orderRepo,
	)

	api := otelhttp.NewHandler(h.Routes(), "cartel-api",
		otelhttp.WithTracerProvider(m.TracerProvider()),
		otelhttp.WithMeterProvider(m.MeterProvider()),
	)

	// Mux: health endpoints + API routes on one server.
	mux := http.NewServeMux()
	mux.HandleFunc("/livez", healthSvc.LiveEndpoint)
	mux.HandleFunc("/readyz", healthSvc.ReadyEndpoint)
	mux.Handle("/api/", api)

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler: httpmiddleware.Wrap(mux,
			httpmiddleware.Recovery(),
			httpmiddleware.CORS(httpmiddleware.CORSConfig{
				AllowOrigins:     cfg.CORS.Origins,
				AllowHeaders:     []string{"Content-Type", "Authorization"},
				AllowCredentials: cfg.CORS.AllowCredentials,
				MaxAge:           86400,
			}),
			httpmiddleware.RateLimitWithCleanup(ctx, httpmiddleware.RateLimitConfig{
				Max:    cfg.RateLimit.Max,
				Window: cfg.RateLimit.Window,
			}),
			httpmiddleware.RequestID(),
			httpmiddleware.InjectLogger(zctx.From(ctx)),
			httpmiddleware.LogRequests(),
		),
	}

	// Graceful shutdown: wait for context cancellation, drain, then stop.
	shutdownDone := make(chan struct{})
	go func() {
		<-ctx.Done()
		healthSvc.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			lg.Error("Server shutdown error", zap.Error(err))
		}
		healthSvc.Stop()
		close(shutdownDone)
	}()

	lg.Info("Server listening", zap.String("addr", cfg.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "server")
	}
	<-shutdownDone
	return nil
}
