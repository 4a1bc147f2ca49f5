package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/go-redis/redis/v8"
	"golang.org/x/sync/errgroup"

	"github.com/jmhill/demo-todo-sub000/pkg/api"
	"github.com/jmhill/demo-todo-sub000/pkg/audit"
	"github.com/jmhill/demo-todo-sub000/pkg/auth"
	"github.com/jmhill/demo-todo-sub000/pkg/config"
	"github.com/jmhill/demo-todo-sub000/pkg/middleware"
	"github.com/jmhill/demo-todo-sub000/pkg/observability"
	"github.com/jmhill/demo-todo-sub000/pkg/orgs"
	"github.com/jmhill/demo-todo-sub000/pkg/storage/postgres"
	"github.com/jmhill/demo-todo-sub000/pkg/todos"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "todod: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := observability.NewLogger(cfg.Observability.LogLevel, cfg.Observability.LogFormat)
	slog.SetDefault(logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var tracingShutdown func(context.Context) error
	if cfg.Observability.OTelEnabled {
		tracingShutdown, err = observability.SetupOTel(ctx, observability.OTelConfig{
			Endpoint:       cfg.Observability.OTelEndpoint,
			ServiceName:    cfg.Observability.OTelServiceName,
			ServiceVersion: cfg.Observability.OTelServiceVersion,
			Insecure:       cfg.Observability.OTelInsecure,
		})
		if err != nil {
			return fmt.Errorf("setup otel: %w", err)
		}
	}

	health := observability.NewHealth()
	metrics := observability.NewMetrics()

	// Stores: postgres when configured, otherwise in-memory for local
	// development. The in-memory stores lose everything on restart.
	var db *sql.DB
	var userStore auth.UserStore
	var orgStore orgs.OrganizationStore
	var membershipStore orgs.MembershipStore
	var invitationStore orgs.InvitationStore
	var todoStore todos.Store
	var auditLogger audit.Logger = audit.NewSlogLogger(logger)

	if cfg.Database.URL != "" {
		db, err = postgres.Connect(ctx, postgres.Config{
			URL:             cfg.Database.URL,
			MaxOpenConns:    cfg.Database.MaxOpenConns,
			MaxIdleConns:    cfg.Database.MaxIdleConns,
			ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		})
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		defer db.Close()

		if err := ensureSchemas(db); err != nil {
			return err
		}

		userStore = auth.NewPostgresUserStore(db)
		orgStore = orgs.NewPostgresOrganizationStore(db)
		membershipStore = orgs.NewPostgresMembershipStore(db)
		invitationStore = orgs.NewPostgresInvitationStore(db)
		todoStore = todos.NewPostgresStore(db)
		health.Register(observability.DBChecker{DB: db})

		dbAudit, err := audit.NewDBLogger(db, logger, nil)
		if err != nil {
			return fmt.Errorf("audit logger: %w", err)
		}
		auditLogger = dbAudit
	} else {
		logger.Warn("no TODOD_POSTGRES_URL set, using in-memory stores")
		userStore = auth.NewMemoryUserStore()
		orgStore = orgs.NewMemoryOrganizationStore()
		membershipStore = orgs.NewMemoryMembershipStore()
		invitationStore = orgs.NewMemoryInvitationStore()
		todoStore = todos.NewMemoryStore()
	}

	// Redis backs token revocation and rate limiting; without it both
	// fall back to process-local state.
	var redisClient *redis.Client
	var revocation auth.RevocationStore = auth.NewMemoryRevocationStore()
	var limiter middleware.RateLimiter
	if cfg.Redis.Addr != "" {
		redisClient, err = postgres.ConnectRedis(ctx, postgres.RedisConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		defer redisClient.Close()

		revocation = auth.NewRedisRevocationStore(redisClient, 0)
		health.Register(observability.RedisChecker{Client: redisClient})
		if cfg.RateLimit.Enabled {
			limiter = middleware.NewRedisRateLimiter(redisClient, cfg.RateLimit.Limit, cfg.RateLimit.Window)
		}
	} else if cfg.RateLimit.Enabled {
		limiter = middleware.NewMemoryRateLimiter(cfg.RateLimit.Limit, cfg.RateLimit.Window)
	}

	tokens, err := auth.NewTokenManager([]byte(cfg.Auth.TokenSecret), cfg.Auth.TokenIssuer, cfg.Auth.TokenTTL, revocation)
	if err != nil {
		return fmt.Errorf("token manager: %w", err)
	}

	authService := auth.NewService(userStore, tokens, logger, nil)
	orgService := orgs.NewService(orgStore, membershipStore, nil, nil, logger)
	inviteService := orgs.NewInvitationService(invitationStore, orgService, nil, nil, cfg.Auth.InvitationTTL)
	todoService := todos.NewService(todoStore, nil, nil)

	server := api.NewServer(api.Options{
		Logger:         logger,
		AuditLogger:    auditLogger,
		Metrics:        metrics,
		AuthService:    authService,
		Tokens:         tokens,
		OrgService:     orgService,
		InviteService:  inviteService,
		TodoService:    todoService,
		RateLimiter:    limiter,
		AllowedOrigins: cfg.Server.AllowedOrigins,
	})

	apiServer := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      server.Handler(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	opsMux := http.NewServeMux()
	opsMux.HandleFunc("/healthz", health.LivenessHandler())
	opsMux.HandleFunc("/readyz", health.ReadinessHandler())
	if cfg.Observability.MetricsEnabled {
		opsMux.Handle("/metrics", metrics.Handler())
	}
	opsServer := &http.Server{
		Addr:    cfg.Server.HealthAddr(),
		Handler: opsMux,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("api server listening", slog.String("addr", apiServer.Addr))
		if err := apiServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("api server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		logger.Info("ops server listening", slog.String("addr", opsServer.Addr))
		if err := opsServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("ops server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		if sig := observability.WaitForSignal(gctx); sig != nil {
			logger.Info("received signal", slog.String("signal", sig.String()))
		}

		components := map[string]observability.Shutdowner{
			"api_server": apiServer,
			"ops_server": opsServer,
		}
		if tracingShutdown != nil {
			components["otel"] = shutdownFunc(tracingShutdown)
		}
		observability.GracefulShutdown(logger, cfg.Server.ShutdownTimeout, components)
		if err := auditLogger.Close(); err != nil {
			logger.Error("audit logger close failed", slog.String("error", err.Error()))
		}
		return nil
	})

	return g.Wait()
}

func ensureSchemas(db *sql.DB) error {
	if err := auth.EnsureSchema(db); err != nil {
		return fmt.Errorf("users schema: %w", err)
	}
	if err := orgs.EnsureSchema(db); err != nil {
		return fmt.Errorf("orgs schema: %w", err)
	}
	if err := todos.EnsureSchema(db); err != nil {
		return fmt.Errorf("todos schema: %w", err)
	}
	return nil
}

type shutdownFunc func(context.Context) error

func (f shutdownFunc) Shutdown(ctx context.Context) error { return f(ctx) }
