package main

import (
	"context"
	"log"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	apiHandler "github.com/fastygo/stakes/api/handler"
	"github.com/fastygo/stakes/internal/config"
	"github.com/fastygo/stakes/internal/infrastructure/buffer"
	"github.com/fastygo/stakes/internal/infrastructure/monitor"
	"github.com/fastygo/stakes/internal/infrastructure/payment"
	pgInfra "github.com/fastygo/stakes/internal/infrastructure/postgres"
	redisInfra "github.com/fastygo/stakes/internal/infrastructure/redis"
	"github.com/fastygo/stakes/internal/middleware"
	"github.com/fastygo/stakes/internal/router"
	"github.com/fastygo/stakes/internal/services"
	"github.com/fastygo/stakes/internal/services/lifecycle"
	"github.com/fastygo/stakes/pkg/httpcontext"
	"github.com/fastygo/stakes/pkg/jwtauth"
	"github.com/fastygo/stakes/pkg/logger"
	"github.com/fastygo/stakes/repository/postgres"
	redisRepo "github.com/fastygo/stakes/repository/redis"
	authUC "github.com/fastygo/stakes/usecase/auth"
	profileUC "github.com/fastygo/stakes/usecase/profile"
	taskUC "github.com/fastygo/stakes/usecase/task"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	zapLogger, err := logger.New(logger.Config{
		Level:       cfg.Logger.Level,
		Encoding:    cfg.Logger.Encoding,
		Service:     cfg.AppName,
		Environment: cfg.Environment,
	})
	if err != nil {
		log.Fatalf("logger error: %v", err)
	}
	defer zapLogger.Sync()

	manager := lifecycle.New(cfg.Context.ShutdownTimeout, zapLogger)
	appCtx := manager.Context(context.Background())

	if err := pgInfra.RunMigrations(cfg, zapLogger); err != nil {
		zapLogger.Fatal("migrations failed", zap.Error(err))
	}

	pool, err := pgInfra.NewPool(appCtx, cfg.Database, cfg.AppName, zapLogger)
	if err != nil {
		zapLogger.Fatal("postgres connection failed", zap.Error(err))
	}
	manager.Register("postgres", func(ctx context.Context) error {
		pgInfra.Close(pool, zapLogger)
		return nil
	})

	redisClient, err := redisInfra.NewClient(appCtx, cfg.Redis, zapLogger)
	if err != nil {
		zapLogger.Fatal("redis connection failed", zap.Error(err))
	}
	manager.Register("redis", func(ctx context.Context) error {
		return redisClient.Close()
	})

	journalStore, err := buffer.Open(cfg.Buffer.Path, "journal")
	if err != nil {
		zapLogger.Fatal("failed to open journal buffer", zap.Error(err))
	}
	manager.Register("journal_buffer", func(ctx context.Context) error {
		return journalStore.Close()
	})

	mon := monitor.New(pool, redisClient, journalStore, 10*time.Second, zapLogger)
	mon.Refresh(appCtx)
	manager.Go("monitor", func() error {
		mon.Run(appCtx)
		return nil
	})

	gateway, err := payment.NewGateway(cfg.Payment, zapLogger)
	if err != nil {
		zapLogger.Fatal("payment gateway init failed", zap.Error(err))
	}
	zapLogger.Info("payment gateway ready", zap.String("driver", cfg.Payment.Driver))

	userRepo := postgres.NewUserRepository(pool)
	taskRepo := postgres.NewTaskRepository(pool)
	eventRepo := postgres.NewEventRepository(pool)
	idempotencyRepo := redisRepo.NewIdempotencyRepository(redisClient, cfg.Idempotency.TTL)

	journalProcessor := services.NewJournalProcessor(
		journalStore,
		mon,
		eventRepo,
		zapLogger,
		services.ProcessorConfig{
			Interval:   cfg.Buffer.SyncInterval,
			BatchSize:  cfg.Buffer.BatchSize,
			MaxRetries: cfg.Buffer.MaxRetry,
			Retention:  time.Duration(cfg.Buffer.RetentionHours) * time.Hour,
		},
	)
	journalProcessor.Start()
	manager.Register("journal_processor", func(ctx context.Context) error {
		journalProcessor.Stop(ctx)
		return journalProcessor.Drain(ctx)
	})
	journal := services.NewJournal(journalProcessor, eventRepo)

	tokens := jwtauth.New(cfg.JWT.Secret, cfg.JWT.Issuer, cfg.JWT.TokenTTL)

	authUseCase := authUC.New(userRepo, tokens, cfg.Auth.BcryptCost, zapLogger)
	profileUseCase := profileUC.New(userRepo, zapLogger)
	taskUseCase := taskUC.New(taskRepo, gateway, idempotencyRepo, journal, zapLogger, taskUC.Config{
		Currency:       cfg.Payment.Currency,
		GatewayTimeout: cfg.Payment.Timeout,
	})

	ctxAdapter := httpcontext.NewAdapter(cfg.Context.RequestTimeout)

	handlers := router.Handlers{
		Auth:    apiHandler.NewAuthHandler(authUseCase, ctxAdapter, zapLogger),
		Profile: apiHandler.NewProfileHandler(profileUseCase, ctxAdapter, zapLogger),
		Task:    apiHandler.NewTaskHandler(taskUseCase, ctxAdapter, zapLogger),
		Health:  apiHandler.NewHealthHandler(mon, ctxAdapter, zapLogger),
	}

	server := &fasthttp.Server{
		Handler:      router.New(handlers, middleware.JWTAuth(tokens, zapLogger), zapLogger),
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
		Concurrency:  cfg.HTTP.MaxConn,
		Name:         cfg.AppName,
	}

	manager.Go("http_server", func() error {
		zapLogger.Info("server started", zap.String("address", cfg.Address()))
		return server.ListenAndServe(cfg.Address())
	})
	manager.Register("http_server", func(ctx context.Context) error {
		return server.ShutdownWithContext(ctx)
	})

	<-appCtx.Done()

	if err := manager.Shutdown(context.Background()); err != nil {
		zapLogger.Error("graceful shutdown error", zap.Error(err))
	}
}
