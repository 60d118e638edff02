package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/sajjadh47/securionpay-checkout/internal/domain/order"
	"github.com/sajjadh47/securionpay-checkout/internal/domain/payment"
	"github.com/sajjadh47/securionpay-checkout/internal/gateway/securionpay"
	"github.com/sajjadh47/securionpay-checkout/internal/handler"
	"github.com/sajjadh47/securionpay-checkout/internal/storage/postgres"
	"github.com/sajjadh47/securionpay-checkout/internal/token"
	"github.com/sajjadh47/securionpay-checkout/pkg/health"
	"github.com/sajjadh47/securionpay-checkout/pkg/httpmiddleware"
)

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing", zap.String("addr", cfg.Addr))
	if cfg.Gateway.SecretKey == "" {
		lg.Warn("Gateway secret key not configured, charges and refunds will be skipped")
	}

	// PostgreSQL pool + migrations.
	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return errors.Wrap(err, "create db pool")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	// Health check service.
	healthSvc := health.New()
	healthSvc.AddReadinessCheck("postgres", 5*time.Second, func(ctx context.Context) error {
		return pool.Ping(ctx)
	})
	healthSvc.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(10000))
	healthSvc.Start(ctx, 10*time.Second)
	healthSvc.SetReady(true)

	// Storage.
	orderStore := postgres.NewOrderStore(pool)
	apikeyRepo := postgres.NewAPIKeyRepository(pool)

	// Gateway client and domain services.
	gateway := securionpay.NewClient(securionpay.Config{
		SecretKey: cfg.Gateway.SecretKey,
		BaseURL:   cfg.Gateway.BaseURL,
		Timeout:   cfg.Gateway.Timeout,
	})
	tokens := token.New([]byte(cfg.Checkout.TokenSecret), cfg.Checkout.TokenTTL)

	chargeSvc := payment.NewChargeService(orderStore, gateway, tokens, payment.ChargeConfig{
		SecretKey:   cfg.Gateway.SecretKey,
		SuccessURL:  cfg.Checkout.SuccessURL,
		FailureURL:  cfg.Checkout.FailureURL,
		CheckoutURL: cfg.Checkout.CheckoutURL,
	})
	refundSvc := payment.NewRefundService(orderStore, gateway, cfg.Gateway.SecretKey)
	refundSvc.OnRefund(func(ctx context.Context, ord *order.Order, res *payment.RefundResult) {
		zctx.From(ctx).Info("Refund completed",
			zap.String("order_id", ord.ID),
			zap.String("transaction_id", res.TransactionID),
			zap.Int64("amount_minor", res.Amount),
			zap.String("currency", res.Currency),
		)
	})

	// HTTP handlers.
	h := handler.NewHandler(chargeSvc, refundSvc, orderStore, tokens)
	adminAuth := handler.RequireAPIKey(apikeyRepo, []byte(cfg.APIKeyPepper))

	// Mux: health endpoints + API routes on one server.
	mux := http.NewServeMux()
	mux.HandleFunc("/livez", healthSvc.LiveEndpoint)
	mux.HandleFunc("/readyz", healthSvc.ReadyEndpoint)
	mux.Handle("/", h.Routes(adminAuth))

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler: httpmiddleware.Wrap(mux,
			httpmiddleware.Recovery(),
			httpmiddleware.RateLimitWithCleanup(ctx, httpmiddleware.RateLimitConfig{
				Max:    cfg.RateLimit.Max,
				Window: cfg.RateLimit.Window,
			}),
			httpmiddleware.RequestID(),
			httpmiddleware.InjectLogger(zctx.From(ctx)),
			httpmiddleware.Instrument("checkout-api", m),
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
