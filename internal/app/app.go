package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/puja-checkout/internal/domain/booking"
	"github.com/xenking/puja-checkout/internal/domain/order"
	"github.com/xenking/puja-checkout/internal/domain/payment"
	"github.com/xenking/puja-checkout/internal/handler"
	"github.com/xenking/puja-checkout/internal/remote/razorpay"
	"github.com/xenking/puja-checkout/internal/remote/shopify"
	"github.com/xenking/puja-checkout/pkg/health"
	"github.com/xenking/puja-checkout/pkg/httpmiddleware"
)

const serviceName = "puja-checkout"

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m httpmiddleware.Telemetry, cfg *Config) error {
	lg.Info("Initializing",
		zap.String("addr", cfg.Addr),
		zap.String("shopify.store", cfg.Shopify.StoreURL),
		zap.String("shopify.api_version", cfg.Shopify.APIVersion),
	)

	srv, err := newServer(ctx, lg, m, cfg)
	if err != nil {
		return err
	}
	srv.health.Start(ctx, 10*time.Second)
	srv.health.SetReady(true)

	// Fulfillment makes up to three sequential remote calls.
	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      3*cfg.RemoteTimeout + 5*time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler:           srv.handler,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		lg.Info("Server listening", zap.String("addr", cfg.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "server")
		}
		return nil
	})
	g.Go(func() error {
		// Graceful shutdown: wait for cancellation, drain, then stop.
		<-gctx.Done()
		srv.health.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			return errors.Wrap(err, "shutdown")
		}
		srv.health.Stop()
		return nil
	})
	return g.Wait()
}

// server is the assembled HTTP surface.
type server struct {
	handler http.Handler
	health  *health.Health
}

// newServer wires the remote clients, domain services, handlers and
// middleware. It starts no goroutines besides the rate limiter janitor,
// which stops with ctx.
func newServer(ctx context.Context, lg *zap.Logger, m httpmiddleware.Telemetry, cfg *Config) (*server, error) {
	prasadPrice, err := cfg.PrasadPrice()
	if err != nil {
		return nil, err
	}

	// Remote clients share an instrumented transport.
	httpClient := &http.Client{
		Timeout: cfg.RemoteTimeout,
		Transport: otelhttp.NewTransport(http.DefaultTransport,
			otelhttp.WithTracerProvider(m.TracerProvider()),
			otelhttp.WithMeterProvider(m.MeterProvider()),
			otelhttp.WithPropagators(m.TextMapPropagator()),
		),
	}
	shop, err := shopify.New(shopify.Config{
		StoreURL:   cfg.Shopify.StoreURL,
		AdminToken: cfg.Shopify.AdminToken,
		APIVersion: cfg.Shopify.APIVersion,
		HTTPClient: httpClient,
	})
	if err != nil {
		return nil, errors.Wrap(err, "create shopify client")
	}
	gateway, err := razorpay.New(razorpay.Config{
		BaseURL:    cfg.Razorpay.BaseURL,
		KeyID:      cfg.Razorpay.KeyID,
		KeySecret:  cfg.Razorpay.KeySecret,
		HTTPClient: httpClient,
	})
	if err != nil {
		return nil, errors.Wrap(err, "create razorpay client")
	}

	// Domain services.
	bookings, err := booking.NewService(
		booking.Config{
			PrasadPrice:   prasadPrice,
			Tags:          cfg.Tags(),
			LookupTimeout: cfg.RemoteTimeout,
		},
		payment.NewVerifier(cfg.Razorpay.KeySecret),
		shop,
		order.NewCommitter(shop, cfg.RemoteTimeout),
		booking.WithTracerProvider(m.TracerProvider()),
		booking.WithMeterProvider(m.MeterProvider()),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create booking service")
	}
	initiator := payment.NewInitiator(gateway, cfg.Razorpay.Currency, cfg.Razorpay.ReceiptPrefix)

	// Health check service.
	healthSvc := health.New()
	healthSvc.AddReadinessCheck("shopify", cfg.RemoteTimeout, shop.Ping)
	healthSvc.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(10000))
	healthSvc.AddLivenessCheck("gc_pause", time.Second, health.GCMaxPauseCheck(time.Second))

	// Mux: health endpoints + API routes on one server.
	h := handler.NewHandler(bookings, initiator)
	routeFinder := httpmiddleware.MakeRouteFinder(handler.Routes())
	mux := http.NewServeMux()
	mux.HandleFunc("/livez", healthSvc.LiveEndpoint)
	mux.HandleFunc("/readyz", healthSvc.ReadyEndpoint)
	h.Register(mux)

	wrapped := httpmiddleware.Wrap(mux,
		httpmiddleware.Recovery(),
		httpmiddleware.CORS(httpmiddleware.CORSConfig{
			AllowOrigins: cfg.CORS.Origins,
			AllowMethods: []string{http.MethodPost, http.MethodOptions},
			AllowHeaders: []string{"Content-Type"},
			MaxAge:       86400,
		}),
		httpmiddleware.RateLimitWithCleanup(ctx, httpmiddleware.RateLimitConfig{
			Rate:  cfg.RateLimit.Rate,
			Burst: cfg.RateLimit.Burst,
		}),
		httpmiddleware.RequestID(),
		httpmiddleware.InjectLogger(lg),
		httpmiddleware.Instrument(serviceName, routeFinder, m),
		httpmiddleware.LogRequests(routeFinder),
		httpmiddleware.Labeler(routeFinder),
	)
	return &server{handler: wrapped, health: healthSvc}, nil
}
