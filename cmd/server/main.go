package main // Entry point package

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/iliyamo/rbac-admin/internal/config"
	"github.com/iliyamo/rbac-admin/internal/database"
	"github.com/iliyamo/rbac-admin/internal/handler"
	"github.com/iliyamo/rbac-admin/internal/logging"
	"github.com/iliyamo/rbac-admin/internal/middleware"
	"github.com/iliyamo/rbac-admin/internal/queue"
	"github.com/iliyamo/rbac-admin/internal/repository"
	"github.com/iliyamo/rbac-admin/internal/response"
	"github.com/iliyamo/rbac-admin/internal/router"
	"github.com/iliyamo/rbac-admin/internal/service"
	"github.com/iliyamo/rbac-admin/internal/utils"
)

func main() {
	cfg := config.Load() // Load environment config
	logger := logging.New(cfg.Env)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ---- Storage ----
	initCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	db, err := database.Open(initCtx, database.Options{
		User: cfg.DBUser, Pass: cfg.DBPass, Host: cfg.DBHost, Port: cfg.DBPort, Name: cfg.DBName,
	})
	if err == nil && cfg.AutoMigrate {
		err = database.Migrate(initCtx, db)
	}
	cancel()
	if err != nil {
		log.Fatalf("db init error: %v", err)
	}
	defer db.Close()

	users := repository.NewUserRepo(db)
	roles := repository.NewRoleRepo(db)
	perms := repository.NewPermissionRepo(db)

	// nil when Redis is unreachable; limiter, cache and denylist then step aside
	rdb := config.NewRedisClient(config.LoadRedisConfig())
	if rdb != nil {
		defer rdb.Close()
	}

	var deny *repository.TokenDenylist
	if cfg.DenylistEnabled {
		if rdb == nil {
			log.Fatal("TOKEN_DENYLIST_ENABLED requires a reachable Redis")
		}
		deny = repository.NewTokenDenylist(rdb, "")
	}

	// ---- Audit events ----
	var events service.EventPublisher = service.NopPublisher{}
	if cfg.AuditEventsEnabled {
		events = service.NewRabbitPublisher(cfg.RabbitURL)
	}
	if cfg.AuditConsumer {
		go func() {
			if err := queue.StartAuditConsumer(ctx, cfg.RabbitURL, queue.DefaultAuditLog, logger); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("audit_consumer_stopped", "error", err)
			}
		}()
	}

	// ---- Services & handlers ----
	tokens := utils.NewTokenIssuer([]byte(cfg.JWTSecret), cfg.AccessTTL, cfg.RefreshTTL)
	authDeps := service.AuthDeps{
		Users:           users,
		Roles:           roles,
		Tokens:          tokens,
		Events:          events,
		BcryptCost:      cfg.BcryptCost,
		DefaultRoleName: cfg.DefaultRoleName,
	}
	// interfaces stay nil unless revocation is on
	var gateDeny middleware.RevocationChecker
	if deny != nil {
		authDeps.Denylist = deny
		gateDeny = deny
	}
	deps := router.Deps{
		Auth: handler.NewAuthHandler(service.NewAuthService(authDeps), cfg.RequestTimeout),
		Users: &handler.UserHandler{
			Users: users, Roles: roles, Events: events,
			BcryptCost: cfg.BcryptCost, DefaultRoleName: cfg.DefaultRoleName, Timeout: cfg.RequestTimeout,
		},
		Roles:       &handler.RoleHandler{Roles: roles, Timeout: cfg.RequestTimeout},
		Permissions: &handler.PermissionHandler{Permissions: perms, Timeout: cfg.RequestTimeout},
		Stats:       &handler.StatsHandler{Users: users, Permissions: perms, Timeout: cfg.RequestTimeout},
		DB:          db,
		Verifier:    tokens,
		Denylist:    gateDeny,
		RoleNames:   roles,
		Policy:      router.DefaultPolicy(cfg.AdminRoles),
		RateLimit:   middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb),
		Cache:       middleware.NewRedisCache(config.LoadCacheConfig(), rdb),
	}

	// ---- HTTP ----
	e := echo.New() // Create Echo instance
	e.HideBanner = true
	e.HTTPErrorHandler = response.ErrorHandler
	e.Server.ReadTimeout = 10 * time.Second
	e.Server.WriteTimeout = 15 * time.Second
	e.Server.ReadHeaderTimeout = 3 * time.Second
	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())
	e.Use(middleware.RequestLogger(logger))

	router.Register(e, deps) // Register application routes
	for _, line := range deps.Policy.Describe() {
		logger.Debug("route_policy", "rule", line)
	}

	addr := ":" + cfg.Port // Address string with port
	go func() {
		logger.Info("listening", "addr", addr, "env", cfg.Env)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("echo start: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting_down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("echo_shutdown", "error", err)
	}
}
