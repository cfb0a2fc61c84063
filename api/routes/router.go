package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Loxess-crl/carrito-compras/api/controllers"
	cartcontrollers "github.com/Loxess-crl/carrito-compras/api/controllers/cart"
	ordercontrollers "github.com/Loxess-crl/carrito-compras/api/controllers/orders"
	"github.com/Loxess-crl/carrito-compras/api/middleware"
	"github.com/Loxess-crl/carrito-compras/internal/auth"
	"github.com/Loxess-crl/carrito-compras/internal/cart"
	"github.com/Loxess-crl/carrito-compras/internal/orders"
	"github.com/Loxess-crl/carrito-compras/internal/orders/stream"
	"github.com/Loxess-crl/carrito-compras/internal/products"
	"github.com/Loxess-crl/carrito-compras/pkg/auth/session"
	"github.com/Loxess-crl/carrito-compras/pkg/config"
	"github.com/Loxess-crl/carrito-compras/pkg/enums"
	"github.com/Loxess-crl/carrito-compras/pkg/logger"
	"github.com/Loxess-crl/carrito-compras/pkg/metrics"
	"github.com/Loxess-crl/carrito-compras/pkg/redis"
)

// Deps bundles everything the HTTP surface needs. Nil optional fields
// (broker, metrics, gatherer) degrade to a working but reduced router.
type Deps struct {
	Config         *config.Config
	Logger         *logger.Logger
	SessionChecker session.AccessSessionChecker
	RedisClient    *redis.Client
	Probes         map[string]controllers.Pinger

	AuthService    auth.Service
	ProductService products.Service
	CartService    cart.Service
	OrdersService  orders.Service
	OrderBroker    *stream.Broker

	HTTPMetrics *metrics.HTTPMetrics
	Gatherer    prometheus.Gatherer
}

func NewRouter(deps Deps) http.Handler {
	cfg := deps.Config
	logg := deps.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.CORS(),
		middleware.Logging(logg),
		middleware.Metrics(deps.HTTPMetrics),
	)

	gatherer := deps.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, deps.Probes))
	})

	r.Route("/api/public", func(r chi.Router) {
		r.Get("/ping", controllers.PublicPing())
	})

	loginPolicy := middleware.NewAuthRateLimitPolicy(
		"login",
		cfg.AuthRateLimit.LoginWindow,
		cfg.AuthRateLimit.LoginIPLimit,
		cfg.AuthRateLimit.LoginEmailLimit,
	)
	registerPolicy := middleware.NewAuthRateLimitPolicy(
		"register",
		cfg.AuthRateLimit.RegisterWindow,
		cfg.AuthRateLimit.RegisterIPLimit,
		cfg.AuthRateLimit.RegisterEmailLimit,
	)

	r.Route("/api/v1/auth", func(r chi.Router) {
		r.Use(middleware.Idempotency(idempotencyStore(deps.RedisClient), logg))
		r.With(middleware.AuthRateLimit(loginPolicy, rateLimitStore(deps.RedisClient), logg)).Post("/login", controllers.AuthLogin(deps.AuthService, logg))
		r.With(middleware.AuthRateLimit(registerPolicy, rateLimitStore(deps.RedisClient), logg)).Post("/register", controllers.AuthRegister(deps.AuthService, logg))
		r.Post("/refresh", controllers.AuthRefresh(deps.AuthService, cfg.JWT, logg))
		r.Post("/logout", controllers.AuthLogout(deps.AuthService, cfg.JWT, logg))
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, deps.SessionChecker, logg))
		r.Use(middleware.Idempotency(idempotencyStore(deps.RedisClient), logg))

		r.Get("/ping", controllers.PrivatePing())

		r.Route("/v1", func(r chi.Router) {
			r.Route("/products", func(r chi.Router) {
				r.Get("/", controllers.ListProducts(deps.ProductService, logg))
				r.Get("/{productId}", controllers.GetProduct(deps.ProductService, logg))
			})

			r.Route("/cart", func(r chi.Router) {
				r.Use(middleware.RequireRole(enums.UserRoleBuyer, logg))
				r.Get("/", cartcontrollers.CartFetch(deps.CartService, logg))
				r.Delete("/", cartcontrollers.CartClear(deps.CartService, logg))
				r.Post("/items", cartcontrollers.CartAddItem(deps.CartService, logg))
				r.Put("/items/{productId}", cartcontrollers.CartSetQuantity(deps.CartService, logg))
				r.Delete("/items/{productId}", cartcontrollers.CartRemoveItem(deps.CartService, logg))
			})

			r.Post("/checkout", controllers.Checkout(deps.OrdersService, logg))

			r.Route("/orders", func(r chi.Router) {
				r.Get("/", ordercontrollers.List(deps.OrdersService, logg))
				r.Get("/stream", ordercontrollers.Stream(deps.OrderBroker, logg))
				r.Get("/{orderId}", ordercontrollers.Detail(deps.OrdersService, logg))
				r.Post("/{orderId}/transition", ordercontrollers.Transition(deps.OrdersService, logg))
			})
		})
	})

	return r
}

// idempotencyStore avoids handing the middleware a typed-nil interface.
func idempotencyStore(client *redis.Client) redis.IdempotencyStore {
	if client == nil {
		return nil
	}
	return client
}

func rateLimitStore(client *redis.Client) middleware.RateLimiterStore {
	if client == nil {
		return nil
	}
	return client
}
