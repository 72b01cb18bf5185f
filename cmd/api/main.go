package main

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"
	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/noah-isme/funroad-api/internal/auth"
	"github.com/noah-isme/funroad-api/internal/cartstore"
	"github.com/noah-isme/funroad-api/internal/checkout"
	"github.com/noah-isme/funroad-api/internal/common"
	"github.com/noah-isme/funroad-api/internal/config"
	"github.com/noah-isme/funroad-api/internal/db"
	"github.com/noah-isme/funroad-api/internal/events"
	"github.com/noah-isme/funroad-api/internal/health"
	"github.com/noah-isme/funroad-api/internal/library"
	"github.com/noah-isme/funroad-api/internal/obs"
	"github.com/noah-isme/funroad-api/internal/payment"
	"github.com/noah-isme/funroad-api/internal/products"
	"github.com/noah-isme/funroad-api/internal/ratelimit"
	"github.com/noah-isme/funroad-api/internal/resilience"
	"github.com/noah-isme/funroad-api/internal/reviews"
	"github.com/noah-isme/funroad-api/internal/security"
	"github.com/noah-isme/funroad-api/internal/tags"
	"github.com/noah-isme/funroad-api/internal/tenant"
)

// AccessCookieName carries the session token for browser storefronts.
const AccessCookieName = "funroad_token"

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logFormat := envOrDefault("OBS_LOG_FORMAT", "json")
	logLevel := envOrDefault("OBS_LOG_LEVEL", "info")
	logger := obs.NewLogger(logFormat, logLevel).With().Str("env", cfg.AppEnv).Logger()

	metricsNamespace := envOrDefault("OBS_METRICS_NAMESPACE", "funroad")
	metricsEnabled := envBool("OBS_ENABLE_PROMETHEUS", true)
	obs.MustRegisterDomainMetrics(metricsNamespace, nil)

	tracingEnabled := envBool("OBS_ENABLE_TRACING", true)
	if tracingEnabled {
		sampling := envFloat("OBS_TRACING_SAMPLING_RATIO", 1.0)
		shutdown, err := obs.InitTracer(context.Background(), obs.TracingConfig{
			ServiceName:   "funroad-api",
			Endpoint:      cfg.OTLPEndpoint,
			Exporter:      envOrDefault("OBS_TRACING_EXPORTER", "otlp"),
			SamplingRatio: sampling,
			Environment:   cfg.AppEnv,
		})
		if err != nil {
			logger.Error().Err(err).Msg("initialise tracing")
			tracingEnabled = false
		} else {
			defer func() {
				ctx := context.Background()
				if err := shutdown(ctx); err != nil {
					logger.Error().Err(err).Msg("shutdown tracer")
				}
			}()
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse database config")
	}
	poolConfig.ConnConfig.Tracer = obs.PGXTracer{}
	if poolConfig.ConnConfig.RuntimeParams == nil {
		poolConfig.ConnConfig.RuntimeParams = map[string]string{}
	}
	poolConfig.ConnConfig.RuntimeParams["application_name"] = "funroad-api"
	if cfg.DBMaxOpenConns > 0 {
		poolConfig.MaxConns = int32(cfg.DBMaxOpenConns)
	}
	if cfg.DBMaxIdleConns > 0 {
		poolConfig.MinConns = int32(cfg.DBMaxIdleConns)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect database")
	}
	defer pool.Close()
	if err := pool.Ping(ctx); err != nil {
		logger.Fatal().Err(err).Msg("ping database")
	}

	if err := db.Migrate(cfg.DatabaseURL); err != nil {
		logger.Fatal().Err(err).Msg("run migrations")
	}
	queries := db.New(pool)

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse redis url")
	}
	redisClient := redis.NewClient(redisOpts)
	if err := redisotel.InstrumentTracing(redisClient); err != nil {
		logger.Error().Err(err).Msg("instrument redis tracing")
	}
	if metricsEnabled {
		if err := redisotel.InstrumentMetrics(redisClient); err != nil {
			logger.Error().Err(err).Msg("instrument redis metrics")
		}
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Error().Err(err).Msg("close redis")
		}
	}()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Fatal().Err(err).Msg("ping redis")
	}

	var cartAdapter cartstore.Adapter
	switch cfg.CartAdapter {
	case "memory":
		cartAdapter = cartstore.NewMemoryAdapter()
	case "file":
		cartAdapter = cartstore.NewFileAdapter(cfg.CartFilePath)
	default:
		cartAdapter = cartstore.NewRedisAdapter(redisClient, cfg.CartTTL)
	}
	carts := &cartstore.Store{Adapter: cartAdapter}

	productsSvc := &products.Service{
		Q:            queries,
		Cache:        products.NewCache(redisClient, cfg.ProductCacheTTL),
		DefaultLimit: 12,
		MaxLimit:     100,
	}
	productsHandler := &products.Handler{Svc: productsSvc}

	librarySvc := &library.Service{
		Q:            queries,
		Redis:        redisClient,
		TTL:          cfg.LibraryCacheTTL,
		DefaultLimit: 12,
	}
	libraryHandler := &library.Handler{Svc: librarySvc}

	bus := &events.Bus{
		Store:     queries,
		Notifiers: []events.Notifier{library.Invalidator{Svc: librarySvc}},
	}

	verifier := auth.NewVerifier(cfg.JWTSecret, auth.TokenValidator{})
	authMW := auth.Middleware{Verifier: verifier, AccessCookie: AccessCookieName}

	stripeProvider := payment.Stripe{
		SecretKey:     cfg.StripeSecretKey,
		WebhookSecret: cfg.StripeWebhookSecret,
		BaseURL:       cfg.StripeAPIBase,
		HTTP: resilience.Requester{Client: resilience.HTTPClient{
			Client:      &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)},
			Breaker:     resilience.NewBreaker(20, 0.5, 30*time.Second),
			BaseBackoff: 200 * time.Millisecond,
			MaxAttempts: 3,
			Timeout:     10 * time.Second,
		}},
	}

	validate := validator.New()

	checkoutSvc := &checkout.Service{
		Q:                  queries,
		Carts:              carts,
		Payments:           stripeProvider,
		Bus:                bus,
		Logger:             &logger,
		AppURL:             cfg.AppURL,
		PlatformFeePercent: cfg.PlatformFeePercent,
	}
	checkoutHandler := &checkout.Handler{
		Svc:            checkoutSvc,
		Validate:       validate,
		CookieDomain:   cfg.CookieDomain,
		CookieSecure:   cfg.CookieSecure,
		CookieSameSite: cfg.CookieSameSite,
	}

	asynqOpt, err := asynq.ParseRedisURI(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse redis url for task queue")
	}
	taskClient := asynq.NewClient(asynqOpt)
	defer func() {
		if err := taskClient.Close(); err != nil {
			logger.Error().Err(err).Msg("close task client")
		}
	}()

	webhookHandler := payment.Webhook{
		Q:         queries,
		Provider:  stripeProvider,
		Tasks:     taskClient,
		Events:    bus,
		Replay:    redisClient,
		ReplayTTL: cfg.IdempotencyTTL,
		Logger:    &logger,
	}

	tenantHandler := &tenant.Handler{Svc: &tenant.Service{Q: queries}}
	tagsHandler := &tags.Handler{Svc: &tags.Service{Q: queries, DefaultLimit: 50}}
	reviewsHandler := &reviews.Handler{Svc: &reviews.Service{Q: queries}, Validate: validate}

	idem := common.Idem{R: redisClient, TTL: cfg.IdempotencyTTL}

	purchaseLimiter, err := ratelimit.New(redisClient, cfg.PurchaseRateLimit)
	if err != nil {
		logger.Fatal().Err(err).Msg("configure purchase rate limit")
	}
	purchaseRate := ratelimit.Middleware{
		Limiter: purchaseLimiter,
		OnError: func(err error) { logger.Warn().Err(err).Msg("rate limit store") },
	}

	resolver := tenant.NewResolver(cfg.TenantHeader, cfg.RootDomain, "")

	var httpMetrics *obs.HTTPMetrics
	if metricsEnabled {
		buckets := obs.ParseBucketsCSV(envOrDefault("OBS_METRICS_BUCKETS_MS", ""))
		httpMetrics = obs.NewHTTPMetrics(metricsNamespace, buckets, nil)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(obs.RoutePatternMiddleware)
	if tracingEnabled {
		r.Use(obs.TracingMiddleware)
	}
	if metricsEnabled && httpMetrics != nil {
		r.Use(obs.HTTPObs{Metrics: httpMetrics}.Middleware)
	}
	r.Use(obs.RequestLogger{Logger: logger}.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins(cfg),
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token", cfg.TenantHeader},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(security.Headers{Enable: true}.Middleware)
	r.Use(security.BodyLimit{Max: 1 << 20}.Middleware)
	r.Use(resolver.Middleware)
	r.Use(authMW.Authenticate)

	if metricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}
	if envBool("OBS_ENABLE_PPROF", true) {
		r.Mount("/debug/pprof", protectPprof(newPprofMux(), cfg.PprofUser, cfg.PprofPass))
	}

	healthHandler := health.Handler{
		Checker:      readinessChecker{db: pool, redis: redisClient},
		DBTimeout:    envDurationMillis("HEALTH_READY_DB_TIMEOUT_MS", 500),
		RedisTimeout: envDurationMillis("HEALTH_READY_REDIS_TIMEOUT_MS", 300),
	}
	r.Get("/health/live", healthHandler.Live)
	r.Get("/health/ready", healthHandler.Ready)

	csrf := security.CSRF{Header: "X-CSRF-Token"}

	r.Route("/api", func(api chi.Router) {
		api.Get("/products", productsHandler.List)
		api.Get("/products/{productID}", productsHandler.GetOne)
		api.Get("/tags", tagsHandler.List)
		api.Get("/tenants/{slug}", tenantHandler.GetBySlug)

		api.Route("/cart", func(c chi.Router) {
			c.Use(csrf.Middleware)
			c.Get("/", checkoutHandler.Cart)
			c.Post("/items", checkoutHandler.CartAdd)
			c.Post("/toggle", checkoutHandler.CartToggle)
			c.Delete("/items/{productID}", checkoutHandler.CartRemove)
			c.Delete("/", checkoutHandler.CartClear)
			c.Delete("/all", checkoutHandler.CartClearAll)
		})

		api.Route("/checkout", func(c chi.Router) {
			c.Get("/products", checkoutHandler.Products)
			c.Get("/reconcile", checkoutHandler.Reconcile)
			c.With(csrf.Middleware, authMW.RequireAuth, idem.Middleware, purchaseRate.Handle).
				Post("/purchase", checkoutHandler.Purchase)
			c.With(authMW.RequireAuth).Get("/verify", checkoutHandler.Verify)
		})

		api.Route("/library", func(l chi.Router) {
			l.Use(authMW.RequireAuth)
			l.Get("/", libraryHandler.List)
			l.Get("/{productID}", libraryHandler.GetOne)
		})

		api.Route("/products/{productID}/reviews", func(rv chi.Router) {
			rv.Use(authMW.RequireAuth)
			rv.Get("/own", reviewsHandler.GetOwn)
			rv.With(csrf.Middleware).Post("/", reviewsHandler.Create)
		})
		api.With(authMW.RequireAuth, csrf.Middleware).
			Patch("/reviews/{reviewID}", reviewsHandler.Update)

		api.Post("/webhooks/payment/stripe", webhookHandler.Handle)
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("server starting")
		errCh <- srv.ListenAndServe()
	}()

	sigCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server exited unexpectedly")
		}
	case <-sigCtx.Done():
		logger.Info().Msg("shutdown signal received")
		health.SetReady(false)
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancelShutdown()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("graceful shutdown")
		}
	}
}

func allowedOrigins(cfg *config.Config) []string {
	if len(cfg.CORSAllowedOrigins) == 0 {
		return []string{"*"}
	}
	return cfg.CORSAllowedOrigins
}

type readinessChecker struct {
	db    *pgxpool.Pool
	redis *redis.Client
}

func (c readinessChecker) PingDB(ctx context.Context, timeout time.Duration) error {
	if c.db == nil {
		return errors.New("db not configured")
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return c.db.Ping(ctx)
}

func (c readinessChecker) PingRedis(ctx context.Context, timeout time.Duration) error {
	if c.redis == nil {
		return errors.New("redis not configured")
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return c.redis.Ping(ctx).Err()
}

func envOrDefault(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		trimmed := strings.TrimSpace(val)
		if trimmed != "" {
			return trimmed
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if val, ok := os.LookupEnv(key); ok {
		switch strings.ToLower(strings.TrimSpace(val)) {
		case "1", "t", "true", "yes", "on":
			return true
		case "0", "f", "false", "no", "off":
			return false
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if val, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.ParseFloat(strings.TrimSpace(val), 64); err == nil {
			return parsed
		}
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if val, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.Atoi(strings.TrimSpace(val)); err == nil {
			return parsed
		}
	}
	return fallback
}

func envDurationMillis(key string, fallback int) time.Duration {
	return time.Duration(envInt(key, fallback)) * time.Millisecond
}

func newPprofMux() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", pprof.Index)
	mux.HandleFunc("/cmdline", pprof.Cmdline)
	mux.HandleFunc("/profile", pprof.Profile)
	mux.HandleFunc("/symbol", pprof.Symbol)
	mux.HandleFunc("/trace", pprof.Trace)
	mux.Handle("/allocs", pprof.Handler("allocs"))
	mux.Handle("/block", pprof.Handler("block"))
	mux.Handle("/goroutine", pprof.Handler("goroutine"))
	mux.Handle("/heap", pprof.Handler("heap"))
	mux.Handle("/mutex", pprof.Handler("mutex"))
	mux.Handle("/threadcreate", pprof.Handler("threadcreate"))
	return mux
}

func protectPprof(handler http.Handler, user, pass string) http.Handler {
	user = strings.TrimSpace(user)
	pass = strings.TrimSpace(pass)
	if user == "" {
		return handler
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, p, ok := r.BasicAuth()
		if !ok || subtle.ConstantTimeCompare([]byte(u), []byte(user)) != 1 || subtle.ConstantTimeCompare([]byte(p), []byte(pass)) != 1 {
			w.Header().Set("WWW-Authenticate", "Basic realm=restricted")
			http.Error(w, "unauthorised", http.StatusUnauthorized)
			return
		}
		handler.ServeHTTP(w, r)
	})
}
