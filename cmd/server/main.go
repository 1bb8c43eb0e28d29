// Command plant-keeper starts the care API (HTTP) and the gRPC health server.
package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/reflection"

	"github.com/and161185/plant-keeper/internal/config"
	"github.com/and161185/plant-keeper/internal/events"
	"github.com/and161185/plant-keeper/internal/identity"
	"github.com/and161185/plant-keeper/internal/limiter"
	"github.com/and161185/plant-keeper/internal/migrate"
	"github.com/and161185/plant-keeper/internal/repository"
	"github.com/and161185/plant-keeper/internal/repository/memory"
	"github.com/and161185/plant-keeper/internal/repository/postgres"
	grpcserver "github.com/and161185/plant-keeper/internal/server/grpc"
	httpserver "github.com/and161185/plant-keeper/internal/server/http"
	"github.com/and161185/plant-keeper/internal/service"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		// logger is not built yet
		_, _ = os.Stderr.WriteString("config: " + err.Error() + "\n")
		os.Exit(2)
	}

	logger := newLogger(cfg.Env)
	logger.Info("starting",
		zap.String("version", version),
		zap.String("buildDate", buildDate),
		zap.String("addr", cfg.Addr),
		zap.String("env", cfg.Env),
	)

	// Context with OS signals
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err = run(ctx, cfg, logger)
	stop()
	if err != nil {
		logger.Error("stopped", zap.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}
	logger.Info("shutdown complete")
	_ = logger.Sync()
}

// run serves until ctx is done or a server fails. Every resource it opens is
// closed before it returns.
func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	// Storage and auth limiter
	var (
		store repository.Store
		lim   limiter.Limiter
	)
	limits := limiter.Settings{Window: cfg.FailWindow, MaxFails: cfg.MaxFails, BlockFor: cfg.BlockFor}
	if cfg.DSN != "" {
		ver, err := migrate.Up(ctx, cfg.DSN, logger)
		if err != nil {
			return fmt.Errorf("migrate up: %w", err)
		}
		logger.Info("schema ready", zap.Int64("version", ver))

		db, err := postgres.New(ctx, cfg.DSN)
		if err != nil {
			return fmt.Errorf("postgres: %w", err)
		}
		defer db.Close()
		store = postgres.NewStore(db)
		lim = limiter.NewPG(db.Pool, limits)
	} else {
		logger.Warn("no DATABASE_DSN, using in-memory store")
		store = memory.New()
		lim = limiter.NewMemory(limits)
	}

	// Invalidation bus
	var bus events.Bus = events.Nop{}
	if cfg.RedisAddr != "" {
		var err error
		bus, err = events.NewRedis(ctx, cfg.RedisAddr, cfg.RedisChannel, logger)
		if err != nil {
			return fmt.Errorf("redis: %w", err)
		}
	}
	defer func() { _ = bus.Close() }()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Service
	svc := service.NewCareService(store, bus, logger, service.Options{
		SessionTTL: cfg.SessionTTL,
		Location:   cfg.Location(),
	})
	go func() {
		if err := svc.Run(ctx); err != nil {
			logger.Error("care service background loop", zap.Error(err))
		}
	}()

	// Listeners first so a bad address fails before anything serves.
	hl, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		return fmt.Errorf("listen http: %w", err)
	}
	var gl net.Listener
	if cfg.HealthAddr != "" {
		if gl, err = net.Listen("tcp", cfg.HealthAddr); err != nil {
			_ = hl.Close()
			return fmt.Errorf("listen grpc: %w", err)
		}
	}

	// HTTP API
	if cfg.Env == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := httpserver.NewRouter(httpserver.RouterConfig{
		Handler:  httpserver.NewHandler(svc, cfg.Location(), logger),
		Verifier: identity.NewVerifier([]byte(cfg.JWTKey)),
		Limiter:  lim,
		Origins:  cfg.CORSOrigins,
		RPS:      cfg.RateRPS,
		Burst:    cfg.RateBurst,
		Log:      logger,
	})
	hs := httpserver.NewServer(cfg.Addr, router)

	errCh := make(chan error, 2)
	go func() {
		logger.Info("listening (http)", zap.String("addr", hl.Addr().String()))
		if err := hs.Serve(hl); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// gRPC health
	var gs *grpc.Server
	if gl != nil {
		gs = grpcserver.NewServer(logger)
		health := grpcserver.NewHealth(svc, logger, 10*time.Second)
		health.Register(gs)
		if cfg.Env == "dev" {
			reflection.Register(gs)
		}
		go health.Run(ctx)

		go func() {
			logger.Info("listening (grpc health)", zap.String("addr", gl.Addr().String()))
			if err := gs.Serve(gl); err != nil {
				errCh <- err
			}
		}()
	}

	// Wait for stop
	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-errCh:
	}

	// graceful shutdown
	sctx, scancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer scancel()
	if err := hs.Shutdown(sctx); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	if gs != nil {
		done := make(chan struct{})
		go func() {
			gs.GracefulStop()
			close(done)
		}()
		select {
		case <-done:
		case <-sctx.Done():
			gs.Stop()
		}
	}
	return runErr
}

func newLogger(env string) *zap.Logger {
	build := zap.NewProduction
	if env == "dev" {
		build = zap.NewDevelopment
	}
	logger, err := build()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}
