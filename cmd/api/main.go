package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/spendlens/spendlens-backend/internal/api"
	"github.com/spendlens/spendlens-backend/internal/application/service"
	"github.com/spendlens/spendlens-backend/internal/domain/merchant"
	"github.com/spendlens/spendlens-backend/internal/domain/pattern"
	"github.com/spendlens/spendlens-backend/internal/events"
	"github.com/spendlens/spendlens-backend/internal/infrastructure/cache"
	"github.com/spendlens/spendlens-backend/internal/infrastructure/config"
	"github.com/spendlens/spendlens-backend/internal/infrastructure/logging"
	"github.com/spendlens/spendlens-backend/internal/infrastructure/storage"
	"github.com/spendlens/spendlens-backend/internal/oracle"
)

func main() {
	cfg := config.LoadOrEnv()
	logger := logging.NewLoggerWithSystem(cfg.Observability.Logging, "api")

	repo, err := storage.NewStorage(cfg.Storage.DatabasePath)
	if err != nil {
		logger.Error("failed to open storage", "path", cfg.Storage.DatabasePath, "error", err)
		os.Exit(1)
	}
	defer repo.Close()

	// Redis backs both the cache and the event bus when configured;
	// otherwise an in-process cache and no-op publisher keep the service
	// runnable standalone.
	var (
		appCache  cache.Cache
		publisher events.Publisher = events.Nop{}
	)
	if cfg.Redis.Enabled {
		client := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr})
		redisCache := cache.NewRedisWithClient(client)
		defer redisCache.Close()
		appCache = redisCache
		publisher = events.NewRedisPublisher(client)
		logger.Info("redis connected", "addr", cfg.Redis.Addr)
	} else {
		appCache = cache.NewMemory()
		logger.Info("redis disabled, using in-memory cache")
	}

	if cfg.OpenAI.APIKey == "" {
		logger.Warn("OPENAI_API_KEY not set, classification calls will fail")
	}
	chat := oracle.NewHTTPChatClient(cfg.OpenAI.APIKey)
	oracleClient := oracle.NewClient(chat, oracle.Config{
		Model:       cfg.OpenAI.Model,
		Temperature: cfg.OpenAI.Temperature,
	})

	classifier := pattern.NewClassifier()
	if cfg.Analysis.ToleranceFraction > 0 {
		classifier.ToleranceFraction = cfg.Analysis.ToleranceFraction
	}
	analyzer := pattern.NewAnalyzer(oracleClient, classifier, logger)

	merchantSvc := service.NewMerchantService(repo, appCache, publisher, oracleClient, logger)
	grouper := merchant.NewGrouper(merchantSvc.Resolver(), merchantSvc, logger)
	patternSvc := service.NewPatternService(repo, appCache, publisher, grouper, analyzer, logger)
	transactionSvc := service.NewTransactionService(repo, appCache, publisher, merchantSvc, logger)

	server := api.NewServer(api.Config{
		Port:           cfg.Server.Port,
		AllowedOrigins: cfg.Server.AllowedOrigins,
	}, api.Services{
		Merchants:    merchantSvc,
		Transactions: transactionSvc,
		Patterns:     patternSvc,
	}, logger)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			logger.Error("server failed", "error", err)
			os.Exit(1)
		}
	case sig := <-stop:
		logger.Info("received signal", "signal", sig.String())
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			logger.Error("shutdown failed", "error", err)
			os.Exit(1)
		}
	}
}
