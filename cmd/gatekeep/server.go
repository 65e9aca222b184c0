package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"
	fiberlogger "github.com/gofiber/fiber/v3/middleware/logger"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/lborres/gatekeep"
	fiberadapter "github.com/lborres/gatekeep/adapters/fiber"
	"github.com/lborres/gatekeep/adapters/oauth"
	pgxadapter "github.com/lborres/gatekeep/adapters/pgx"
	redisadapter "github.com/lborres/gatekeep/adapters/redis"
	"github.com/lborres/gatekeep/config"
	"github.com/lborres/gatekeep/pkg/crypto"
	"github.com/lborres/gatekeep/pkg/telemetry"
)

const shutdownTimeout = 5 * time.Second

type server struct {
	app    *fiber.App
	addr   string
	logger *log.Logger
	redis  *redis.Client
	pool   *pgxpool.Pool
}

// newServer connects the stores and mounts every route on a fiber app.
func newServer(ctx context.Context, cfg config.Config, logger *log.Logger) (*server, error) {
	srv := &server{addr: cfg.Addr, logger: logger}

	srv.redis = redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err := srv.redis.Ping(ctx).Err(); err != nil {
		srv.Close()
		return nil, fmt.Errorf("connect redis %s: %w", cfg.RedisAddr, err)
	}
	store := redisadapter.New(srv.redis, redisadapter.WithPrefix(cfg.KeyPrefix))

	var identities gatekeep.IdentityStore = store.Identities()
	if cfg.DatabaseURL != "" {
		pool, err := pgxadapter.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			srv.Close()
			return nil, fmt.Errorf("open database: %w", err)
		}
		srv.pool = pool
		identities = pgxadapter.New(pool)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics, err := telemetry.NewMetrics(registry)
	if err != nil {
		srv.Close()
		return nil, fmt.Errorf("register metrics: %w", err)
	}

	passwords, err := passwordHandler(cfg)
	if err != nil {
		srv.Close()
		return nil, err
	}
	ids, err := idGenerator(cfg)
	if err != nil {
		srv.Close()
		return nil, err
	}
	limits, err := cfg.RateLimits()
	if err != nil {
		srv.Close()
		return nil, err
	}

	srv.app = fiber.New(fiber.Config{AppName: serviceName})
	if cfg.LogRequests {
		srv.app.Use(fiberlogger.New(fiberlogger.Config{
			Format:     requestLogFormat(),
			TimeFormat: time.RFC3339,
		}))
	}
	srv.app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	httpAdapter := fiberadapter.New(srv.app)
	httpAdapter.Secure = cfg.SecureCookies

	gk, err := gatekeep.New(gatekeep.Config{
		AccessSecret:  cfg.AccessSecret,
		RefreshSecret: cfg.RefreshSecret,
		Identities:    identities,
		Sessions:      store.Sessions(),
		Windows:       store.Windows(),
		HTTP:          httpAdapter,
		Providers: oauth.Configured(
			oauth.Credentials{ClientID: cfg.Google.ClientID, ClientSecret: cfg.Google.ClientSecret, RedirectURL: cfg.Google.RedirectURI},
			oauth.Credentials{ClientID: cfg.GitHub.ClientID, ClientSecret: cfg.GitHub.ClientSecret, RedirectURL: cfg.GitHub.RedirectURI},
		),
		TokenConfig:    cfg.TokenConfig(),
		SessionConfig:  cfg.SessionConfig(),
		RateLimits:     limits,
		PasswordHasher: passwords,
		IDs:            ids,
		Observer:       telemetry.Multi{telemetry.NewLogObserver(logger), metrics},
		Logger:         logger,
		CacheAdapter:   identityCache(cfg),
		StoreTimeout:   cfg.StoreTimeout,
	})
	if err != nil {
		srv.Close()
		return nil, fmt.Errorf("init gatekeep: %w", err)
	}

	for _, ep := range gk.Endpoints.Endpoints() {
		logger.Printf("[DEBUG] mounted %s %s (%s)", ep.Method, ep.Path, ep.Metadata.OperationID)
	}
	return srv, nil
}

// Run serves until ctx is cancelled, then drains in-flight requests.
func (s *server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Printf("[INFO] listening on %s", s.addr)
		errCh <- s.app.Listen(s.addr, fiber.ListenConfig{DisableStartupMessage: true})
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Printf("[INFO] shutting down")
	if err := s.app.ShutdownWithTimeout(shutdownTimeout); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func (s *server) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			s.logger.Printf("[WARN] close redis: %v", err)
		}
	}
}

func passwordHandler(cfg config.Config) (gatekeep.PasswordHandler, error) {
	switch cfg.PasswordHasher {
	case "bcrypt":
		return crypto.NewBcrypt(cfg.BcryptCost), nil
	case "argon2", "":
		return crypto.NewArgon2(), nil
	}
	return nil, config.ErrUnknownHasher
}

func idGenerator(cfg config.Config) (gatekeep.IDGenerator, error) {
	switch cfg.IDFormat {
	case "nanoid":
		ids, err := crypto.NewNanoID("", 0)
		if err != nil {
			return nil, err
		}
		return ids, nil
	case "uuid", "":
		return crypto.UUIDGenerator{}, nil
	}
	return nil, config.ErrUnknownIDFormat
}

func identityCache(cfg config.Config) gatekeep.IdentityCache {
	if cfg.IdentityCacheTTL <= 0 {
		return nil
	}
	return gatekeep.NewIdentityCache(gatekeep.CacheConfig{TTL: cfg.IdentityCacheTTL, MaxSize: 500})
}

func requestLogFormat() string {
	format := []string{
		"${time}",
		"${status}|${latency}",
		"${ip}",
		"${method}|${path}",
		"${error}",
	}
	return strings.Join(format, "|") + "\n"
}
