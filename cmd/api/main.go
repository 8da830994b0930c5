package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gigmarket-api/internal/config"
	"github.com/gigmarket-api/internal/infrastructure/dynamo"
	jwtinfra "github.com/gigmarket-api/internal/infrastructure/jwt"
	"github.com/gigmarket-api/internal/infrastructure/memory"
	"github.com/gigmarket-api/internal/infrastructure/sms"
	"github.com/gigmarket-api/internal/pkg/logger"
	transporthttp "github.com/gigmarket-api/internal/transport/http"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logg, err := logger.New(cfg.LogPath, !cfg.IsProduction())
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logg.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Token secrets and expiries are validated here; without them no auth route is served.
	jwtProvider, err := jwtinfra.NewProvider(cfg)
	if err != nil {
		logg.Fatal("JWT provider not available", zap.Error(err))
	}

	smsSender, err := sms.New(cfg, logg)
	if err != nil {
		logg.Fatal("SMS sender not available", zap.Error(err))
	}

	deps, err := storage(ctx, cfg, logg)
	if err != nil {
		logg.Fatal("storage not available", zap.Error(err))
	}
	deps.SMSSender = smsSender
	deps.JWTProvider = jwtProvider

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.AppPort),
		Handler:      transporthttp.NewRouter(ctx, cfg, deps, logg),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logg.Info("server starting",
			zap.String("port", cfg.AppPort),
			zap.String("env", cfg.AppEnv),
			zap.String("storage", cfg.StorageDriver),
			zap.String("sms", cfg.SMSProvider),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Fatal("server error", zap.Error(err))
		}
	}()

	<-ctx.Done()

	logg.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logg.Error("forced shutdown", zap.Error(err))
		return
	}
	logg.Info("server stopped")
}

// storage wires the repositories of the selected driver.
func storage(ctx context.Context, cfg *config.Config, logg *zap.Logger) (*transporthttp.Deps, error) {
	if cfg.StorageDriver == config.StorageMemory {
		logg.Warn("using in-memory storage; data is lost on restart")
		return &transporthttp.Deps{
			UserRepo:  memory.NewUserStore(),
			OTPRepo:   memory.NewOTPStore(),
			TokenRepo: memory.NewTokenStore(),
		}, nil
	}

	client, err := dynamo.NewClient(ctx, cfg)
	if err != nil {
		return nil, err
	}
	// Creates the tables if they don't exist.
	dynamo.Bootstrap(ctx, client, cfg.DynamoTables, logg)

	return &transporthttp.Deps{
		UserRepo:  dynamo.NewUserRepo(client, cfg.DynamoTables.Users),
		OTPRepo:   dynamo.NewOTPRepo(client, cfg.DynamoTables.OTPs),
		TokenRepo: dynamo.NewTokenRepo(client, cfg.DynamoTables.Tokens),
	}, nil
}
