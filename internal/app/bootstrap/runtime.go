// Package bootstrap assembles the service: config, storage, guards, and the
// HTTP and gRPC servers.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	cacheadapter "github.com/edgefleet/fleetcore/internal/adapters/cache"
	grpcadapter "github.com/edgefleet/fleetcore/internal/adapters/grpc"
	httpadapter "github.com/edgefleet/fleetcore/internal/adapters/http"
	"github.com/edgefleet/fleetcore/internal/adapters/postgres"
	"github.com/edgefleet/fleetcore/internal/adapters/security"
	"github.com/edgefleet/fleetcore/internal/application"
	"github.com/edgefleet/fleetcore/internal/guard"
	"github.com/edgefleet/fleetcore/internal/webhook"
)

type Runtime struct {
	cfg        Config
	logger     *slog.Logger
	httpServer *http.Server
	grpcServer *grpc.Server
	grpcLis    net.Listener
	dispatcher *webhook.Dispatcher
	limiter    *guard.RateLimiter
	logins     *guard.LoginTracker
	cleanupFn  func(context.Context)
}

func NewRuntime(ctx context.Context, configPath string) (*Runtime, error) {
	cfg, err := LoadConfig(configPath)
	if err != nil {
		return nil, err
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)
	logger.Info("bootstrapping fleet api", "http_port", cfg.HTTPPort, "grpc_port", cfg.GRPCPort)

	pool, err := postgres.Connect(ctx, cfg.DatabaseURL, cfg.MaxDBConns)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	sqlDB, err := pool.DB()
	if err != nil {
		return nil, fmt.Errorf("gorm sql db: %w", err)
	}

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	redisClient, err := cacheadapter.Connect(ctx, cfg.RedisURL)
	if err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("connect redis: %w", err)
	}

	repos := postgres.NewRepositories(pool)
	deviceKeys := cacheadapter.NewRedisDeviceKeyStore(redisClient, repos.DeviceKeys)

	tokens, err := security.NewJWTService(cfg.TokenSecret, cfg.TokenExpiry)
	if err != nil {
		_ = sqlDB.Close()
		_ = redisClient.Close()
		return nil, fmt.Errorf("init token service: %w", err)
	}

	limiter := guard.NewRateLimiter(cfg.RateLimitRequests, cfg.RateLimitWindow)
	logins := guard.NewLoginTracker(cfg.LockoutThreshold, cfg.LockoutWindow, cfg.LockoutDuration)
	dispatcher := webhook.NewDispatcher(repos.Webhooks)

	svc := application.NewService(application.Dependencies{
		Config: application.Config{
			QuotaWarningRatio: cfg.QuotaWarningRatio,
		},
		Users:      repos.Users,
		Orgs:       repos.Orgs,
		Devices:    repos.Devices,
		Logs:       repos.Logs,
		DeviceKeys: deviceKeys,
		Webhooks:   repos.Webhooks,
		Hasher:     security.NewMultiSchemeHasher(),
		Tokens:     tokens,
		Logins:     logins,
		Dispatcher: dispatcher,
	})

	ready := func() error {
		if err := sqlDB.Ping(); err != nil {
			return fmt.Errorf("postgres: %w", err)
		}
		return nil
	}
	handler := httpadapter.NewHandler(svc, limiter, ready, cfg.TrustProxy)
	router := httpadapter.NewRouter(handler)
	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	grpcServer := grpc.NewServer()
	healthSrv := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthSrv)
	healthSrv.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	grpcadapter.Register(grpcServer, grpcadapter.NewFleetInternalServer(svc))

	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.GRPCPort))
	if err != nil {
		_ = sqlDB.Close()
		_ = redisClient.Close()
		return nil, fmt.Errorf("listen gRPC: %w", err)
	}

	return &Runtime{
		cfg:        cfg,
		logger:     logger,
		httpServer: httpServer,
		grpcServer: grpcServer,
		grpcLis:    lis,
		dispatcher: dispatcher,
		limiter:    limiter,
		logins:     logins,
		cleanupFn: func(ctx context.Context) {
			_ = redisClient.Close()
			_ = sqlDB.Close()
		},
	}, nil
}

func (r *Runtime) RunAPI(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 2)
	go func() {
		r.logger.Info("http server started", "addr", r.httpServer.Addr)
		if err := r.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()
	go func() {
		r.logger.Info("grpc server started", "addr", r.grpcLis.Addr().String())
		if err := r.grpcServer.Serve(r.grpcLis); err != nil {
			errCh <- fmt.Errorf("grpc server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		r.logger.Info("shutdown signal received")
	case err := <-errCh:
		r.logger.Error("server failure", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = r.httpServer.Shutdown(shutdownCtx)
	r.grpcServer.GracefulStop()

	// In-flight webhook deliveries finish before dependencies close.
	r.dispatcher.Flush()
	r.limiter.Stop()
	r.logins.Stop()
	r.cleanupFn(shutdownCtx)
	return nil
}
