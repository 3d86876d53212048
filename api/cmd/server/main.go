package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"imageGateway/api/config"
	"imageGateway/api/database"
	"imageGateway/api/handlers"
	"imageGateway/api/kafka"
	"imageGateway/api/middleware"
	"imageGateway/api/provider"
	"imageGateway/api/repository"
	"imageGateway/api/service"
	"imageGateway/api/storage"
	"imageGateway/api/store"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	cfg := config.Load()

	logger.Info("API Service starting", zap.String("port", cfg.Port))

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

	objects, err := storage.New(ctx, storage.Config{
		Endpoint:  cfg.MinioEndpoint,
		AccessKey: cfg.MinioAccessKey,
		SecretKey: cfg.MinioSecretKey,
		Bucket:    cfg.MinioBucket,
		BaseURL:   cfg.MinioBaseURL,
		UseSSL:    cfg.MinioUseSSL,
	}, logger)
	if err != nil {
		logger.Fatal("Failed to connect to object storage", zap.Error(err))
	}

	producer, err := kafka.NewProducer(strings.Split(cfg.KafkaBrokers, ","))
	if err != nil {
		logger.Fatal("Failed to create kafka producer", zap.Error(err))
	}
	defer producer.Close()

	repo := repository.NewPostgresRepo(db)
	tasks := store.NewRedisStore(redisClient)
	providerClient := provider.NewClient(cfg.ProviderBaseURL, cfg.ProviderAPIKey, logger)

	taskService := service.NewTaskService(repo, tasks, providerClient, producer, cfg.KafkaTopic, cfg.ProviderModel, logger)
	taskHandler := handlers.NewTaskHandler(taskService, objects, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("/api/tasks", taskHandler.Create)
	mux.HandleFunc("/api/tasks/", taskHandler.Poll)
	mux.HandleFunc("/api/sessions/", taskHandler.History)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	handler := middleware.TraceID(
		middleware.Logging(logger)(
			middleware.Recovery(logger)(mux),
		),
	)

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("Server started", zap.String("address", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Shutdown failed", zap.Error(err))
	}
}
