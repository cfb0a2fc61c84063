package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/Loxess-crl/carrito-compras/api/controllers"
	"github.com/Loxess-crl/carrito-compras/api/routes"
	"github.com/Loxess-crl/carrito-compras/internal/auth"
	"github.com/Loxess-crl/carrito-compras/internal/cart"
	"github.com/Loxess-crl/carrito-compras/internal/orders"
	"github.com/Loxess-crl/carrito-compras/internal/orders/stream"
	"github.com/Loxess-crl/carrito-compras/internal/products"
	"github.com/Loxess-crl/carrito-compras/internal/users"
	"github.com/Loxess-crl/carrito-compras/pkg/auth/session"
	"github.com/Loxess-crl/carrito-compras/pkg/config"
	"github.com/Loxess-crl/carrito-compras/pkg/db"
	"github.com/Loxess-crl/carrito-compras/pkg/logger"
	"github.com/Loxess-crl/carrito-compras/pkg/metrics"
	"github.com/Loxess-crl/carrito-compras/pkg/migrate"
	"github.com/Loxess-crl/carrito-compras/pkg/outbox"
	"github.com/Loxess-crl/carrito-compras/pkg/outbox/idempotency"
	"github.com/Loxess-crl/carrito-compras/pkg/pubsub"
	"github.com/Loxess-crl/carrito-compras/pkg/redis"
)

const shutdownGrace = 15 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	if err := run(cfg, logg); err != nil {
		logg.Error(context.Background(), "api server exited", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logg *logger.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return fmt.Errorf("bootstrap database: %w", err)
	}
	defer closeQuietly(logg, "database", dbClient.Close)

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		return fmt.Errorf("run dev migrations: %w", err)
	}

	redisClient, err := redis.New(ctx, cfg.Redis)
	if err != nil {
		return fmt.Errorf("bootstrap redis: %w", err)
	}
	defer closeQuietly(logg, "redis", redisClient.Close)

	pubsubClient, err := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, logg)
	if err != nil {
		return fmt.Errorf("bootstrap pubsub: %w", err)
	}
	defer closeQuietly(logg, "pubsub", pubsubClient.Close)

	sessionManager, err := session.NewManager(redisClient, cfg.JWT)
	if err != nil {
		return fmt.Errorf("create session manager: %w", err)
	}

	userRepo := users.NewRepository(dbClient.DB())
	productRepo := products.NewRepository(dbClient.DB())
	cartRepo := cart.NewRepository(dbClient.DB())
	orderRepo := orders.NewRepository(dbClient.DB())
	outboxSvc := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)

	cartService, err := cart.NewService(cartRepo, productRepo, dbClient, outboxSvc)
	if err != nil {
		return fmt.Errorf("create cart service: %w", err)
	}

	authService, err := auth.NewService(auth.ServiceParams{
		UserRepo:       userRepo,
		SessionManager: sessionManager,
		Carts:          cartService,
		TX:             dbClient,
		Outbox:         outboxSvc,
		JWTConfig:      cfg.JWT,
		PasswordConfig: cfg.Password,
	})
	if err != nil {
		return fmt.Errorf("create auth service: %w", err)
	}

	productService, err := products.NewService(productRepo)
	if err != nil {
		return fmt.Errorf("create product service: %w", err)
	}

	ordersService, err := orders.NewService(orderRepo, cartRepo, productRepo, userRepo, dbClient, outboxSvc)
	if err != nil {
		return fmt.Errorf("create orders service: %w", err)
	}

	broker, err := stream.NewBroker(ordersService, logg)
	if err != nil {
		return fmt.Errorf("create order broker: %w", err)
	}

	idempotencyManager, err := idempotency.NewManager(redisClient, cfg.Eventing.IdempotencyTTL)
	if err != nil {
		return fmt.Errorf("create idempotency manager: %w", err)
	}

	consumer, err := stream.NewConsumer(pubsubClient.OrdersSubscription(), broker, idempotencyManager, logg)
	if err != nil {
		return fmt.Errorf("create order stream consumer: %w", err)
	}
	go func() {
		if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logg.Error(ctx, "order stream consumer stopped", err)
		}
	}()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	handler := routes.NewRouter(routes.Deps{
		Config:         cfg,
		Logger:         logg,
		SessionChecker: sessionManager,
		RedisClient:    redisClient,
		Probes: map[string]controllers.Pinger{
			"postgres": dbClient,
			"redis":    redisClient,
			"pubsub":   pubsubClient,
		},
		AuthService:    authService,
		ProductService: productService,
		CartService:    cartService,
		OrdersService:  ordersService,
		OrderBroker:    broker,
		HTTPMetrics:    metrics.NewHTTPMetrics(registry),
		Gatherer:       registry,
	})

	return serve(ctx, cfg, logg, handler)
}

// serve runs the HTTP server until it fails or the context is canceled,
// then drains in-flight requests within the shutdown grace period.
func serve(ctx context.Context, cfg *config.Config, logg *logger.Logger, handler http.Handler) error {
	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port

	ctx = logg.WithFields(ctx, map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{Addr: addr, Handler: handler}
	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serverErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
	}

	logg.Info(ctx, "api server shut down gracefully")
	return nil
}

func closeQuietly(logg *logger.Logger, name string, closeFn func() error) {
	if err := closeFn(); err != nil {
		logg.Error(context.Background(), "error closing "+name, err)
	}
}
