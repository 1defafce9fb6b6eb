// Package app wires the catalog API server together.
package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/xenking/product-catalog/internal/domain/auth"
	"github.com/xenking/product-catalog/internal/domain/blob"
	"github.com/xenking/product-catalog/internal/domain/product"
	"github.com/xenking/product-catalog/internal/handler"
	"github.com/xenking/product-catalog/internal/storage/filesystem"
	"github.com/xenking/product-catalog/internal/storage/memory"
	"github.com/xenking/product-catalog/internal/storage/postgres"
	"github.com/xenking/product-catalog/pkg/health"
	"github.com/xenking/product-catalog/pkg/httpmiddleware"
)

const serviceName = "catalog-api"

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m httpmiddleware.Telemetry, cfg *Config) error {
	lg.Info("Initializing",
		zap.String("addr", cfg.Addr),
		zap.String("storage", cfg.Storage.Driver),
	)

	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return errors.Wrap(err, "create db pool")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	healthSvc := health.New()
	healthSvc.AddReadinessCheck("postgres", 5*time.Second, health.PingCheck(pool))
	healthSvc.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(10000))
	healthSvc.AddLivenessCheck("gc", time.Second, health.GCMaxPauseCheck(time.Second))

	blobs, err := newBlobStore(cfg.Storage, pool, healthSvc)
	if err != nil {
		return errors.Wrap(err, "create blob store")
	}

	products, err := product.NewService(postgres.NewProductRepository(pool), blobs, product.ServiceConfig{
		MaxImageBytes:  cfg.Upload.MaxBytes,
		TracerProvider: m.TracerProvider(),
		MeterProvider:  m.MeterProvider(),
	})
	if err != nil {
		return errors.Wrap(err, "create product service")
	}

	healthSvc.Start(ctx, 10*time.Second)
	healthSvc.SetReady(true)

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler: NewHTTPHandler(ctx, HTTPDeps{
			Config:    cfg,
			Products:  products,
			Tokens:    postgres.NewTokenRepository(pool),
			Health:    healthSvc,
			Telemetry: m,
		}),
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

// newBlobStore builds the configured blob store and registers its readiness
// check, if it has one.
func newBlobStore(cfg StorageConfig, pool *pgxpool.Pool, h *health.Health) (blob.Store, error) {
	switch cfg.Driver {
	case StorageFilesystem:
		fs, err := filesystem.New(cfg.Root)
		if err != nil {
			return nil, err
		}
		h.AddReadinessCheck("blobs", 5*time.Second, fs.Writable)
		return fs, nil
	case StoragePostgres:
		return postgres.NewBlobStore(pool), nil
	case StorageMemory:
		return memory.NewBlobStore(), nil
	default:
		return nil, errors.Errorf("unknown storage driver %q", cfg.Driver)
	}
}

// HTTPDeps are the dependencies of the HTTP handler tree.
type HTTPDeps struct {
	Config    *Config
	Products  handler.ProductService
	Tokens    auth.Repository
	Health    *health.Health
	Telemetry httpmiddleware.Telemetry
}

// NewHTTPHandler returns the root handler: health probes plus the product
// API, wrapped in the middleware chain. ctx bounds background work of the
// middlewares and carries the base logger.
func NewHTTPHandler(ctx context.Context, d HTTPDeps) http.Handler {
	cfg := d.Config

	router := chi.NewRouter()
	router.Get("/livez", d.Health.LiveEndpoint)
	router.Get("/readyz", d.Health.ReadyEndpoint)

	h := handler.NewHandler(handler.HandlerConfig{
		ImageBaseURL:   cfg.ImageBaseURL,
		MaxUploadBytes: cfg.Upload.MaxBytes,
	}, d.Products)
	h.Mount(router, handler.NewSecurityHandler(d.Tokens, []byte(cfg.TokenPepper)),
		httpmiddleware.RateLimitWithCleanup(ctx, httpmiddleware.RateLimitConfig{
			Max:     cfg.RateLimit.Max,
			Window:  cfg.RateLimit.Window,
			KeyFunc: handler.CallerKey,
		}),
	)

	routeFinder := httpmiddleware.MakeRouteFinder(router)
	return httpmiddleware.Wrap(router,
		httpmiddleware.InjectLogger(zctx.From(ctx)),
		httpmiddleware.Recovery(),
		httpmiddleware.CORS(httpmiddleware.CORSConfig{
			AllowOrigins:     cfg.CORS.Origins,
			AllowHeaders:     []string{"Content-Type", "Authorization", httpmiddleware.RequestIDHeader},
			ExposeHeaders:    []string{httpmiddleware.RequestIDHeader},
			AllowCredentials: cfg.CORS.AllowCredentials,
			MaxAge:           86400,
		}),
		// Unverified traffic, bogus tokens included, is limited per client
		// address; the per-token limit sits behind authentication.
		httpmiddleware.RateLimitWithCleanup(ctx, httpmiddleware.RateLimitConfig{
			Max:    cfg.RateLimit.Max,
			Window: cfg.RateLimit.Window,
		}),
		httpmiddleware.RequestID(),
		httpmiddleware.Instrument(serviceName, routeFinder, d.Telemetry),
		httpmiddleware.LogRequests(routeFinder),
		httpmiddleware.Labeler(routeFinder),
	)
}
