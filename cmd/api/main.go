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
	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"

	"github.com/noah-isme/b2b-storefront/internal/analytics"
	"github.com/noah-isme/b2b-storefront/internal/audit"
	"github.com/noah-isme/b2b-storefront/internal/auth"
	"github.com/noah-isme/b2b-storefront/internal/cart"
	"github.com/noah-isme/b2b-storefront/internal/catalog"
	"github.com/noah-isme/b2b-storefront/internal/checkout"
	"github.com/noah-isme/b2b-storefront/internal/common"
	"github.com/noah-isme/b2b-storefront/internal/config"
	"github.com/noah-isme/b2b-storefront/internal/events"
	"github.com/noah-isme/b2b-storefront/internal/health"
	"github.com/noah-isme/b2b-storefront/internal/lock"
	"github.com/noah-isme/b2b-storefront/internal/migrations"
	"github.com/noah-isme/b2b-storefront/internal/obs"
	"github.com/noah-isme/b2b-storefront/internal/order"
	"github.com/noah-isme/b2b-storefront/internal/quote"
	"github.com/noah-isme/b2b-storefront/internal/ratelimit"
	"github.com/noah-isme/b2b-storefront/internal/rates"
	"github.com/noah-isme/b2b-storefront/internal/repo"
	"github.com/noah-isme/b2b-storefront/internal/security"
	"github.com/noah-isme/b2b-storefront/internal/settings"
	"github.com/noah-isme/b2b-storefront/internal/voucher"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logFormat := envOrDefault("OBS_LOG_FORMAT", "json")
	logLevel := envOrDefault("OBS_LOG_LEVEL", "info")
	logger := obs.NewLogger(logFormat, logLevel).With().Str("env", cfg.AppEnv).Logger()

	metricsNamespace := envOrDefault("OBS_METRICS_NAMESPACE", "storefront")
	metricsEnabled := envBool("OBS_ENABLE_PROMETHEUS", true)
	obs.MustRegisterDomainMetrics(metricsNamespace, nil)

	tracingEnabled := envBool("OBS_ENABLE_TRACING", true)
	if tracingEnabled {
		sampling := envFloat("OBS_TRACING_SAMPLING_RATIO", 1.0)
		shutdown, err := obs.InitTracer(context.Background(), obs.TracingConfig{
			ServiceName:   "storefront-api",
			Endpoint:      envOrDefault("OBS_OTLP_ENDPOINT", ""),
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

	if cfg.MigrateOnStart {
		if err := migrations.Up(cfg.DatabaseURL); err != nil {
			logger.Fatal().Err(err).Msg("apply migrations")
		}
		logger.Info().Msg("migrations applied")
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
	poolConfig.ConnConfig.RuntimeParams["application_name"] = "storefront-api"

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect database")
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		logger.Fatal().Err(err).Msg("ping database")
	}

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

	taskClient := asynq.NewClient(asynq.RedisClientOpt{
		Addr:     redisOpts.Addr,
		Username: redisOpts.Username,
		Password: redisOpts.Password,
		DB:       redisOpts.DB,
	})
	defer func() {
		if err := taskClient.Close(); err != nil {
			logger.Error().Err(err).Msg("close task client")
		}
	}()

	bus := &events.Bus{
		Store: events.PGStore{Pool: pool},
		Notifiers: []events.Notifier{events.AsynqNotifier{
			Client: taskClient,
			Queue:  cfg.QueueName,
			Topics: events.DefaultTopics(),
		}},
	}

	catalogSvc := &catalog.Service{
		Store:  catalog.PGStore{Pool: pool},
		Cache:  catalog.NewCache(redisClient, cfg.CatalogCacheTTL),
		Logger: logger.With().Str("component", "catalog").Logger(),
	}
	settingsSvc := &settings.Service{
		Store:          settings.PGStore{Pool: pool},
		DefaultTaxRate: cfg.TaxRatePercent,
		Events:         bus,
		Logger:         logger.With().Str("component", "settings").Logger(),
	}
	ratesSvc := &rates.Service{
		Store:   rates.PGStore{Pool: pool},
		Cache:   rates.Cache{Client: redisClient, TTL: cfg.RateCacheTTL},
		Base:    cfg.AltCurrencyCode,
		Quote:   cfg.CurrencyCode,
		Default: cfg.DefaultExchangeRate,
		Logger:  logger.With().Str("component", "rates").Logger(),
	}
	voucherSvc := &voucher.Service{
		Store:  voucher.PGStore{Pool: pool},
		Logger: logger.With().Str("component", "voucher").Logger(),
	}
	quoteSvc := &quote.Service{
		Catalog:        catalogSvc,
		Settings:       settingsSvc,
		Rates:          ratesSvc,
		Vouchers:       voucherSvc,
		DefaultTaxRate: cfg.TaxRatePercent,
		Logger:         logger.With().Str("component", "quote").Logger(),
	}
	cartSvc := &cart.Service{
		Store:   cart.PGStore{Pool: pool},
		Catalog: catalogSvc,
		Quoter:  quoteSvc,
		Logger:  logger.With().Str("component", "cart").Logger(),
	}
	orderStore := order.PGStore{Pool: pool}
	orderSvc := &order.Service{
		Store:  orderStore,
		Events: bus,
		Logger: logger.With().Str("component", "order").Logger(),
	}
	checkoutSvc := &checkout.Service{
		Tx:              repo.PoolTx(pool),
		Locker:          lock.Locker{R: redisClient, RetryBackoff: cfg.LockRetryBackoff, MaxWait: envDurationMillis("CHECKOUT_LOCK_WAIT_MS", 2000)},
		LockTTL:         cfg.CheckoutLockTTL,
		Carts:           cartSvc,
		Catalog:         catalogSvc,
		Quoter:          quoteSvc,
		Orders:          orderStore,
		Vouchers:        voucherSvc,
		Events:          bus,
		Currency:        cfg.CurrencyCode,
		PersistDecimals: cfg.PricingPersistDecimals,
		Logger:          logger.With().Str("component", "checkout").Logger(),
	}

	authService, err := auth.NewService(auth.Config{
		Secret:   cfg.JWTSecret,
		Issuer:   cfg.JWTIssuer,
		Audience: cfg.JWTAudience,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise auth service")
	}
	authMiddleware := auth.Middleware{Service: authService}
	requireAdmin := auth.RequireRole(auth.RoleAdmin)

	catalogHandler := &catalog.Handler{Service: catalogSvc}
	settingsHandler := &settings.Handler{Service: settingsSvc}
	ratesHandler := &rates.Handler{Service: ratesSvc, Queue: taskClient}
	voucherHandler := &voucher.Handler{Svc: voucherSvc}
	quoteHandler := &quote.Handler{Service: quoteSvc}
	cartHandler := &cart.Handler{Svc: cartSvc}
	checkoutHandler := &checkout.Handler{Svc: checkoutSvc}
	orderHandler := &order.Handler{Svc: orderSvc}
	orderAdmin := &order.AdminHandler{Svc: orderSvc}

	idem := common.Idem{R: redisClient, TTL: cfg.IdempotencyTTL}

	auditStore := audit.PGStore{Pool: pool}
	auditRecorder := audit.HTTPRecorder{
		Service: &audit.Service{Store: auditStore, Enabled: envBool("AUDIT_ENABLED", true), SamplingRate: 1},
		OnError: func(err error) { logger.Error().Err(err).Msg("record audit log") },
	}
	audited := func(action, resource, idParam string) func(http.Handler) http.Handler {
		return auditRecorder.Middleware(audit.HTTPConfig{Action: action, ResourceType: resource, ResourceIDParam: idParam})
	}
	auditHandler := audit.Handler{Store: auditStore}

	analyticsHandler := &analytics.Handler{Svc: &analytics.Service{
		Q:            analytics.PGStore{Pool: pool},
		R:            redisClient,
		TTL:          envDurationMillis("ANALYTICS_CACHE_TTL_MS", 60000),
		DefaultRange: envInt("ANALYTICS_DEFAULT_RANGE_DAYS", 30),
	}}

	allower, err := ratelimit.New(cfg.RateLimitStrategy, redisClient, "rl:")
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise rate limiter")
	}
	onLimitErr := func(err error) { logger.Warn().Err(err).Msg("rate limiter unavailable") }
	quoteLimit := ratelimit.Handler{
		Limiter: allower,
		Config:  ratelimit.Config{Key: ratelimit.KeyByUserOrIP("quote"), Window: time.Minute, Max: cfg.RateLimitQuotePerMinute},
		OnError: onLimitErr,
	}
	checkoutLimit := ratelimit.Handler{
		Limiter: allower,
		Config:  ratelimit.Config{Key: ratelimit.KeyByUserOrIP("checkout"), Window: time.Minute, Max: envInt("RATE_LIMIT_CHECKOUT_PER_MINUTE", 20)},
		OnError: onLimitErr,
	}

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
	r.Use(security.Headers{
		Enable:                cfg.SecurityHeaders,
		EnableHSTS:            envBool("SECURITY_HSTS", cfg.AppEnv == "production"),
		HSTSMaxAge:            envInt("SECURITY_HSTS_MAX_AGE", 31536000),
		HSTSIncludeSubdomains: envBool("SECURITY_HSTS_INCLUDE_SUBDOMAINS", false),
	}.Middleware)
	r.Use(security.BodyLimit{Max: cfg.BodyLimitBytes}.Middleware)
	r.Use(security.CORS(cfg.CORSAllowedOrigins))

	if metricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}
	pprofEnabled := envBool("OBS_ENABLE_PPROF", false)
	if pprofEnabled {
		user := envOrDefault("SECURE_PPROF_BASIC_AUTH_USER", "")
		pass := envOrDefault("SECURE_PPROF_BASIC_AUTH_PASS", "")
		r.Mount("/debug/pprof", protectPprof(newPprofMux(), user, pass))
	}

	healthHandler := health.Handler{
		Checker:      health.Deps{Pool: pool, Redis: redisClient},
		DBTimeout:    envDurationMillis("HEALTH_READY_DB_TIMEOUT_MS", 500),
		RedisTimeout: envDurationMillis("HEALTH_READY_REDIS_TIMEOUT_MS", 300),
	}
	r.Get("/health/live", healthHandler.Live)
	r.Get("/health/ready", healthHandler.Ready)

	r.Route("/api/v1", func(v chi.Router) {
		v.Use(authMiddleware.Authenticate)

		v.Get("/products", catalogHandler.Products)
		v.Get("/products/{id}", catalogHandler.Product)
		v.Get("/combo", settingsHandler.PublicCombo)
		v.Get("/rates/current", ratesHandler.Current)
		v.With(quoteLimit.Middleware).Post("/quote", quoteHandler.Create)
		v.Post("/vouchers/preview", voucherHandler.Preview)

		v.Route("/cart", func(c chi.Router) {
			c.Use(authMiddleware.RequireAuth)
			c.Get("/", cartHandler.Get)
			c.Group(func(g chi.Router) {
				g.Use(idem.Middleware)
				g.Delete("/", cartHandler.Clear)
				g.Post("/lines", cartHandler.AddLine)
				g.Patch("/lines/{lineID}", cartHandler.UpdateLine)
				g.Delete("/lines/{lineID}", cartHandler.RemoveLine)
				g.Put("/coupon", cartHandler.SetCoupon)
			})
		})

		v.With(authMiddleware.RequireAuth, checkoutLimit.Middleware, idem.Middleware).Post("/checkout", checkoutHandler.Checkout)

		v.Group(func(authR chi.Router) {
			authR.Use(authMiddleware.RequireAuth)
			authR.Get("/orders", orderHandler.List)
			authR.Get("/orders/{orderId}", orderHandler.Get)
		})

		v.Route("/admin", func(admin chi.Router) {
			admin.Use(authMiddleware.RequireAuth)
			admin.Use(requireAdmin)
			admin.With(audited("product.upsert", "product", "")).Put("/products", catalogHandler.Upsert)
			admin.Get("/settings/combo", settingsHandler.GetCombo)
			admin.With(audited("combo.update", "combo_config", "")).Put("/settings/combo", settingsHandler.PutCombo)
			admin.Get("/settings/combo/history", settingsHandler.ComboHistory)
			admin.Get("/settings/tax", settingsHandler.GetTax)
			admin.With(audited("tax.update", "tax_rate", "")).Put("/settings/tax", settingsHandler.PutTax)
			admin.With(audited("rates.refresh", "exchange_rate", "")).Post("/rates/refresh", ratesHandler.Refresh)
			admin.With(audited("voucher.create", "voucher", "")).Post("/vouchers", voucherHandler.Create)
			admin.Get("/vouchers", voucherHandler.List)
			admin.Get("/orders", orderAdmin.List)
			admin.Get("/orders/{id}", orderAdmin.Get)
			admin.With(audited("order.status", "order", "id")).Patch("/orders/{id}/status", orderAdmin.PatchStatus)
			admin.Get("/reports/combo", orderAdmin.ComboReport)
			admin.Get("/audit-logs", auditHandler.List)
			admin.Get("/analytics/sales", analyticsHandler.Sales)
			admin.Get("/analytics/top-products", analyticsHandler.TopProducts)
		})
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: envDurationMillis("HTTP_READ_HEADER_TIMEOUT_MS", 5000),
	}

	sigCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	go func() {
		<-sigCtx.Done()
		health.SetReady(false)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), envDurationMillis("HTTP_SHUTDOWN_TIMEOUT_MS", 15000))
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("graceful shutdown")
		}
	}()

	logger.Info().Str("addr", srv.Addr).Msg("server starting")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal().Err(err).Msg("server exited unexpectedly")
	}
	logger.Info().Msg("server stopped")
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
	mux.Handle("/goroutine", pprof.Handler("goroutine"))
	mux.Handle("/heap", pprof.Handler("heap"))
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
