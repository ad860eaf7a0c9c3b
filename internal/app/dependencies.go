package app

import (
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/food-checkout/internal/auth"
	"github.com/noah-isme/food-checkout/internal/backend"
	"github.com/noah-isme/food-checkout/internal/billing"
	"github.com/noah-isme/food-checkout/internal/cart"
	"github.com/noah-isme/food-checkout/internal/checkout"
	"github.com/noah-isme/food-checkout/internal/common"
	"github.com/noah-isme/food-checkout/internal/config"
	"github.com/noah-isme/food-checkout/internal/events"
	"github.com/noah-isme/food-checkout/internal/lock"
	"github.com/noah-isme/food-checkout/internal/money"
	"github.com/noah-isme/food-checkout/internal/obs"
	"github.com/noah-isme/food-checkout/internal/ratelimit"
	"github.com/noah-isme/food-checkout/internal/resilience"
	"github.com/noah-isme/food-checkout/internal/user"
)

// Dependencies holds every service the HTTP layer is wired from.
type Dependencies struct {
	Config   *config.Config
	Logger   zerolog.Logger
	Redis    *redis.Client
	Registry prometheus.Registerer

	Backend  *backend.Client
	Breaker  *resilience.Breaker
	Verifier *auth.Verifier

	Carts     *cart.Service
	Addresses *user.Service
	Checkout  *checkout.Service
	Events    *events.Bus

	Idempotency    common.Idem
	ConfirmLimiter ratelimit.Limiter
	HTTPMetrics    *obs.HTTPMetrics
}

// Options overrides pieces of the default wiring, mainly for tests.
type Options struct {
	// Registry defaults to prometheus.DefaultRegisterer.
	Registry prometheus.Registerer
	// Now defaults to time.Now.
	Now func() time.Time
}

// NewDependencies builds the service graph from configuration. The Redis
// client is owned by the caller.
func NewDependencies(cfg *config.Config, logger zerolog.Logger, rdb *redis.Client, opts Options) (*Dependencies, error) {
	if cfg == nil {
		return nil, errors.New("app: config is required")
	}
	if rdb == nil {
		return nil, errors.New("app: redis client is required")
	}
	reg := opts.Registry
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	obs.MustRegisterDomainMetrics(cfg.Obs.MetricsNamespace, reg)
	var httpMetrics *obs.HTTPMetrics
	if cfg.Obs.MetricsEnabled {
		httpMetrics = obs.NewHTTPMetrics(cfg.Obs.MetricsNamespace, obs.ParseBucketsCSV(cfg.Obs.MetricsBuckets), reg)
	}

	breaker := resilience.NewBreaker(int(cfg.Backend.BreakerMinRequests), cfg.Backend.BreakerFailureRatio, cfg.Backend.BreakerOpenFor).
		WithTarget("backend").
		WithLogger(logger)
	client, err := backend.New(backend.Config{
		BaseURL:     cfg.Backend.BaseURL,
		Timeout:     cfg.Backend.Timeout,
		MaxAttempts: cfg.Backend.MaxAttempts,
		Breaker:     breaker,
		Logger:      logger,
	})
	if err != nil {
		return nil, err
	}
	catalog := &backend.CachedReader{
		Source: client,
		Cache:  backend.NewCache(rdb, cfg.Backend.SettingsCacheTTL),
		Logger: logger,
	}

	verifier, err := auth.NewVerifier(auth.VerifierConfig{
		Secret:    cfg.JWTSecret,
		Issuer:    cfg.JWTIssuer,
		Audience:  cfg.JWTAudience,
		ClockSkew: 30 * time.Second,
		Now:       now,
	})
	if err != nil {
		return nil, err
	}

	limiter, err := newConfirmLimiter(cfg, rdb)
	if err != nil {
		return nil, err
	}

	formatter := money.Formatter{Currency: cfg.Currency.Code, Locale: cfg.Currency.Locale}
	carts := &cart.Service{Store: &cart.Store{R: rdb, TTL: cfg.Checkout.CartTTL}, Formatter: formatter}
	addresses := &user.Service{R: rdb}
	bus := &events.Bus{
		Store:     events.RedisStore{R: rdb},
		Notifiers: []events.Notifier{events.LogNotifier{}},
		Now:       now,
	}
	budget := confirmBudget(cfg.Backend)
	lockTTL := cfg.Checkout.SubmitLockTTL
	if lockTTL < budget {
		lockTTL = budget
	}
	checkoutSvc := &checkout.Service{
		Sessions:  &checkout.SessionStore{R: rdb, TTL: cfg.Checkout.SessionTTL, Now: now},
		Carts:     carts,
		Addresses: addresses,
		Catalog:   catalog,
		Billing:   billing.Submitter{Gateway: client, Now: now},
		Locker:    lock.Locker{R: rdb},
		LockTTL:   lockTTL,
		Formatter: formatter,
		Now:       now,
		Events:    bus,

		// A live attempt keeps refreshing the lock, so a Confirming session
		// older than a full backend budget past the lock TTL has no owner.
		StaleConfirmAfter: lockTTL + budget,
	}

	return &Dependencies{
		Config:         cfg,
		Logger:         logger,
		Redis:          rdb,
		Registry:       reg,
		Backend:        client,
		Breaker:        breaker,
		Verifier:       verifier,
		Carts:          carts,
		Addresses:      addresses,
		Checkout:       checkoutSvc,
		Events:         bus,
		Idempotency:    common.Idem{R: rdb, TTL: cfg.Checkout.IdempotencyTTL},
		ConfirmLimiter: limiter,
		HTTPMetrics:    httpMetrics,
	}, nil
}

func newConfirmLimiter(cfg *config.Config, rdb *redis.Client) (ratelimit.Limiter, error) {
	if cfg.Checkout.RateLimitStrategy == "sliding" {
		rate, err := ratelimit.ParseRate(cfg.Checkout.ConfirmRateLimit)
		if err != nil {
			return nil, err
		}
		return ratelimit.Sliding{Client: rdb, Prefix: "ratelimit:confirm:", Window: rate.Period, Max: int(rate.Limit)}, nil
	}
	store, err := ratelimit.NewStore(rdb, "ratelimit:confirm")
	if err != nil {
		return nil, fmt.Errorf("app: limiter store: %w", err)
	}
	fixed, err := ratelimit.NewFixed(cfg.Checkout.ConfirmRateLimit, store)
	if err != nil {
		return nil, err
	}
	return fixed, nil
}

// confirmBudget is the worst-case backend time of one confirm: three reads
// with retries and a single billing POST.
func confirmBudget(cfg config.BackendConfig) time.Duration {
	attempts := cfg.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	return cfg.Timeout * time.Duration(3*attempts+1)
}
