package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	validator "github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	redis "github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/noah-isme/backend-pricing/internal/commerce"
	"github.com/noah-isme/backend-pricing/internal/common"
	"github.com/noah-isme/backend-pricing/internal/config"
	"github.com/noah-isme/backend-pricing/internal/erp"
	"github.com/noah-isme/backend-pricing/internal/health"
	"github.com/noah-isme/backend-pricing/internal/obs"
	"github.com/noah-isme/backend-pricing/internal/pricing"
	"github.com/noah-isme/backend-pricing/internal/ratelimit"
	"github.com/noah-isme/backend-pricing/internal/resilience"
	"github.com/noah-isme/backend-pricing/internal/security"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logFormat := envOrDefault("OBS_LOG_FORMAT", "json")
	logLevel := envOrDefault("OBS_LOG_LEVEL", "info")
	logger := obs.NewLogger(logFormat, logLevel).With().Str("env", cfg.AppEnv).Logger()

	metricsNamespace := envOrDefault("OBS_METRICS_NAMESPACE", "pricing")
	metricsEnabled := envBool("OBS_ENABLE_PROMETHEUS", true)
	obs.MustRegisterDomainMetrics(metricsNamespace, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisOpts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("parse redis url")
		}
		redisClient = redis.NewClient(redisOpts)
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Error().Err(err).Msg("close redis")
			}
		}()
		if err := redisClient.Ping(ctx).Err(); err != nil {
			// the cache and rate limiter fail open, so a Redis outage only
			// costs extra ERP round trips
			logger.Warn().Err(err).Msg("ping redis")
		}
	} else {
		logger.Info().Msg("redis not configured, pricing cache disabled")
	}

	httpTransport := otelhttp.NewTransport(http.DefaultTransport)

	sessions := &erp.SessionManager{
		BaseURL: cfg.ERPBaseURL,
		Credentials: erp.Credentials{
			Username:      cfg.ERPUsername,
			Password:      cfg.ERPPassword,
			CompanyNumber: cfg.ERPCompanyNumber,
		},
		HTTP:   &http.Client{Transport: httpTransport, Timeout: cfg.ERPTimeout},
		Logger: logger,
	}
	erpClient := &erp.Client{
		BaseURL:  cfg.ERPBaseURL,
		Sessions: sessions,
		HTTP: resilience.HTTPClient{
			Client:      &http.Client{Transport: httpTransport},
			Breaker:     resilience.NewBreaker(10, 0.5, 30*time.Second).WithTarget("erp").WithLogger(logger),
			MaxAttempts: 2,
			BaseBackoff: 200 * time.Millisecond,
			Jitter:      0.2,
			Timeout:     cfg.ERPTimeout,
		},
		Logger: logger,
	}

	var commerceClient commerce.Client
	if cfg.CommerceEndpoint != "" {
		commerceClient = &commerce.GraphQLClient{
			Endpoint: cfg.CommerceEndpoint,
			Token:    cfg.CommerceToken,
			HTTP: resilience.HTTPClient{
				Client:      &http.Client{Transport: httpTransport},
				Breaker:     resilience.NewBreaker(10, 0.5, 30*time.Second).WithTarget("commerce").WithLogger(logger),
				MaxAttempts: 2,
				BaseBackoff: 200 * time.Millisecond,
				Jitter:      0.2,
				Timeout:     cfg.ERPTimeout,
			},
			Logger: logger,
		}
	} else {
		logger.Warn().Msg("commerce endpoint not configured, using mock lookups")
		commerceClient = commerce.MockClient{}
	}

	cache := pricing.NewCache(redisClient, cfg.CacheTTL)
	sources := &pricing.ERPSources{
		ERP:               erpClient,
		OutletPriceListID: cfg.OutletPriceListID,
		Cache:             cache,
		Logger:            logger,
	}
	adjuster := &pricing.DiscountAdjuster{ERP: erpClient, Cache: cache, Logger: logger}
	waterfall := &pricing.Waterfall{Sources: sources, Discount: adjuster, Logger: logger}
	orchestrator := &pricing.Orchestrator{
		Resolver:     waterfall,
		Commerce:     commerceClient,
		Logger:       logger,
		ItemTimeout:  cfg.ItemTimeout,
		BatchTimeout: cfg.BatchTimeout,
	}
	pricingHandler := &pricing.Handler{
		Resolver:     waterfall,
		Orchestrator: orchestrator,
		Commerce:     commerceClient,
		Validator:    validator.New(),
		Logger:       logger,
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
	if envBool("OBS_ENABLE_TRACING", true) {
		r.Use(obs.TracingMiddleware)
	}
	if metricsEnabled && httpMetrics != nil {
		r.Use(obs.HTTPObs{Metrics: httpMetrics}.Middleware)
	}
	r.Use(obs.RequestLogger{Logger: logger}.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins(cfg),
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))
	r.Use(security.Headers{EnableHSTS: envBool("SECURITY_ENABLE_HSTS", false)}.Middleware)
	r.Use(security.BodyLimit{Max: int64(envOrDefaultInt("HTTP_MAX_BODY_BYTES", security.DefaultBodyLimit))}.Middleware)

	if metricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}

	healthHandler := health.Handler{
		Checker:      readinessChecker{redis: redisClient, sessions: sessions},
		RedisTimeout: envDurationMillis("HEALTH_READY_REDIS_TIMEOUT_MS", 300),
		ERPTimeout:   envDurationMillis("HEALTH_READY_ERP_TIMEOUT_MS", 2000),
	}
	r.Get("/health/live", healthHandler.Live)
	r.Get("/health/ready", healthHandler.Ready)

	limiter := ratelimit.Handler{
		Limiter: ratelimit.Limiter{Client: redisClient, Prefix: "rl:pricing:"},
		Config: ratelimit.Config{
			Key:    common.ClientIP,
			Window: cfg.RateLimitWindow,
			Max:    cfg.RateLimitMax,
		},
		OnError: func(err error) {
			logger.Warn().Err(err).Msg("rate limiter unavailable")
		},
	}

	r.Route("/v1/prices", func(p chi.Router) {
		p.Use(limiter.Middleware)
		p.Post("/resolve", pricingHandler.Resolve)
		p.Post("/batch", pricingHandler.Batch)
	})

	srv := &http.Server{
		Addr:    cfg.HTTPAddr(),
		Handler: r,
	}

	logger.Info().Str("addr", srv.Addr).Msg("server starting")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal().Err(err).Msg("server exited unexpectedly")
	}
}

type readinessChecker struct {
	redis    *redis.Client
	sessions *erp.SessionManager
}

func (c readinessChecker) PingRedis(ctx context.Context, timeout time.Duration) error {
	if c.redis == nil {
		return nil
	}
	probeCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return c.redis.Ping(probeCtx).Err()
}

func (c readinessChecker) PingERP(ctx context.Context, timeout time.Duration) error {
	if c.sessions == nil {
		return errors.New("erp session manager not configured")
	}
	probeCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	_, err := c.sessions.Session(probeCtx)
	return err
}

func allowedOrigins(cfg *config.Config) []string {
	if len(cfg.CORSAllowedOrigins) == 0 {
		return []string{"*"}
	}
	return cfg.CORSAllowedOrigins
}

func envOrDefault(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	switch strings.ToLower(v) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func envOrDefaultInt(key string, fallback int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

func envDurationMillis(key string, fallback int) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return time.Duration(fallback) * time.Millisecond
	}
	ms, err := strconv.Atoi(v)
	if err != nil || ms <= 0 {
		return time.Duration(fallback) * time.Millisecond
	}
	return time.Duration(ms) * time.Millisecond
}
