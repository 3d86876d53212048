package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"imageGateway/api/database"
	apikafka "imageGateway/api/kafka"
	"imageGateway/api/provider"
	"imageGateway/api/repository"
	"imageGateway/api/store"
	"imageGateway/worker/config"
	"imageGateway/worker/kafka"
	"imageGateway/worker/pool"
	"imageGateway/worker/reaper"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	cfg := config.Load()

	logger.Info("Reaper starting",
		zap.Duration("reap_after", cfg.ReapAfter),
		zap.Int("workers", cfg.WorkerCount),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("Failed to connect to postgres", zap.Error(err))
	}
	defer db.Close()

	redisClient, err := database.ConnectRedis(cfg.RedisAddr)
	if err != nil {
		logger.Fatal("Failed to connect to redis", zap.Error(err))
	}
	defer redisClient.Close()

	consumer, err := kafka.NewConsumer(strings.Split(cfg.KafkaBrokers, ","), cfg.KafkaGroupID)
	if err != nil {
		logger.Fatal("Failed to create kafka consumer", zap.Error(err))
	}
	defer consumer.Close()

	repo := repository.NewPostgresRepo(db)
	tasks := store.NewRedisStore(redisClient)
	providerClient := provider.NewClient(cfg.ProviderBaseURL, cfg.ProviderAPIKey, logger)

	rp := reaper.New(tasks, repo, providerClient, cfg.ReapAfter, logger)
	workers := pool.NewWorkerPool(cfg.WorkerCount)

	go func() {
		ticker := time.NewTicker(cfg.SweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := rp.Sweep(ctx); err != nil {
					logger.Error("Sweep failed", zap.Error(err))
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	handler := func(ctx context.Context, event *apikafka.TaskEvent) error {
		workers.Submit(ctx, event, rp.CheckAt(event), rp.HandleEvent)
		return nil
	}

	for {
		if err := consumer.Consume(ctx, cfg.KafkaTopic, handler); err != nil {
			if errors.Is(err, context.Canceled) {
				break
			}
			logger.Error("Consumer error", zap.Error(err))
		}
		if ctx.Err() != nil {
			break
		}
	}

	logger.Info("Shutting down, waiting for in-flight reaps")
	workers.Wait()
}
