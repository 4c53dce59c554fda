package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"gatekeeper/internal/authz"
	"gatekeeper/internal/config"
	apphttp "gatekeeper/internal/http"
	"gatekeeper/internal/metrics"
	"gatekeeper/internal/password"
	"gatekeeper/internal/repository"
	redisrepo "gatekeeper/internal/repository/redis"
	"gatekeeper/internal/repository/sqlstore"
	"gatekeeper/internal/service"
	"gatekeeper/internal/token"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}
	configureLogger(logger, cfg)

	if err := cfg.Validate(); err != nil {
		logger.Fatalf("invalid config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := openDatabase(cfg)
	if err != nil {
		logger.Fatalf("open database: %v", err)
	}
	defer db.Close()

	principalRepo := sqlstore.NewPrincipalRepository(db)
	ownershipRepo := sqlstore.NewOwnershipRepository(db)
	refreshRepo, closeRefresh := buildRefreshStore(cfg, db, logger)
	defer closeRefresh()

	if err := principalRepo.Init(ctx); err != nil {
		logger.Fatalf("init principal repository: %v", err)
	}
	if err := refreshRepo.Init(ctx); err != nil {
		logger.Fatalf("init refresh token repository: %v", err)
	}
	if err := ownershipRepo.Init(ctx); err != nil {
		logger.Fatalf("init ownership repository: %v", err)
	}

	tokens, err := token.NewManager(cfg.Auth.JWTSecret,
		token.WithIssuer(cfg.Auth.Issuer),
		token.WithAccessTTL(cfg.Auth.AccessTTL),
		token.WithRefreshTTL(cfg.Auth.RefreshTTL),
	)
	if err != nil {
		logger.Fatalf("token manager: %v", err)
	}

	policies, err := cfg.ResourcePolicies()
	if err != nil {
		logger.Fatalf("resource policies: %v", err)
	}

	m := metrics.New()
	accountService := service.NewAccountService(service.AccountDeps{
		Principals:    principalRepo,
		RefreshTokens: refreshRepo,
		Tokens:        tokens,
		Hasher:        password.NewBcryptHasher(cfg.Auth.BcryptCost),
		Policy:        cfg.PasswordPolicy(),
		AdminSecret:   cfg.Auth.AdminSecret,
		Logger:        logger,
		Metrics:       m,
	})
	resourceService := service.NewResourceService(ownershipRepo, authz.NewEngine(policies), logger, m)

	if cfg.Seed.Path != "" {
		n, err := service.SeedFromFile(ctx, accountService, cfg.Seed.Path, logger)
		if err != nil {
			logger.Fatalf("seed principals: %v", err)
		}
		logger.Infof("seeded %d principals from %s", n, cfg.Seed.Path)
	}

	limiter := apphttp.NewRateLimiter(cfg.RateLimit.PerMinute, cfg.RateLimit.Burst)
	go limiter.Run(ctx, time.Minute)

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	handler := apphttp.NewHandler(apphttp.Deps{
		Accounts:  accountService,
		Resources: resourceService,
		Metrics:   m,
		Limiter:   limiter,
		Logger:    logger,
	})
	handler.RegisterRoutes(router)

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Infof("listening on %s (resource kinds: %v)", cfg.Server.Addr, resourceService.Kinds())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("http server: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warnf("http shutdown: %v", err)
	}

	logger.Info("bye")
}

func configureLogger(logger *logrus.Logger, cfg config.Config) {
	if cfg.Log.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}
	level, err := logrus.ParseLevel(cfg.Log.Level)
	if err != nil {
		logger.Warnf("unknown log level %q, using info", cfg.Log.Level)
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)
}

func openDatabase(cfg config.Config) (*sqlstore.DB, error) {
	if cfg.Database.Driver == string(sqlstore.DialectPostgres) {
		return sqlstore.Open(sqlstore.DialectPostgres, cfg.Database.DSN)
	}
	return sqlstore.Open(sqlstore.DialectSQLite, cfg.Database.Path)
}

// buildRefreshStore picks where refresh token records live. The returned
// func releases any client it opened.
func buildRefreshStore(cfg config.Config, db *sqlstore.DB, logger *logrus.Logger) (repository.RefreshTokenRepository, func()) {
	if cfg.Tokens.Store != "redis" {
		return sqlstore.NewRefreshTokenRepository(db), func() {}
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	logger.Infof("storing refresh tokens in redis at %s", cfg.Redis.Addr)
	return redisrepo.NewRefreshTokenRepository(client), func() {
		if err := client.Close(); err != nil {
			logger.Warnf("close redis: %v", err)
		}
	}
}
