package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"quinn/internal/database"
	feat "quinn/internal/features"
	"quinn/internal/handler"
	repo "quinn/internal/repo"
	"quinn/internal/resume"
	sv "quinn/internal/service"
	"quinn/internal/utils/redis"
	logging "quinn/pkg/logger/pkg"
	rabbit "quinn/pkg/rabbit/pkg"
)

func startHTTP() {
	logger := logging.Logger(nil)
	defer logger.Sync()

	db, err := database.Open(logger)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}

	repository := repo.New(db)

	cache := redis.New(viper.GetBool("redis.enable"), &redis.Config{
		Address:   viper.GetString("redis.address"),
		Username:  viper.GetString("redis.username"),
		Password:  viper.GetString("redis.password"),
		DB:        viper.GetInt("redis.db"),
		Namespace: viper.GetString("redis.namespace"),
	})

	broker := rabbit.New(rabbit.ReadConfig())

	policy := feat.PolicyFromConfig()
	service := feat.New(repository, sv.NewForgeClient(logger), cache, resume.NewHTTPExtractor(), broker, policy, logger)

	pool := feat.NewGenerationWorkerPool(
		viper.GetInt("worker.count"),
		viper.GetInt("worker.queue_capacity"),
		viper.GetInt("worker.max_attempts"),
		viper.GetDuration("worker.retry_backoff"),
		viper.GetDuration("worker.enqueue_timeout"),
		viper.GetDuration("worker.job_timeout"),
	)
	service.AttachPool(pool)
	pool.Start(service)
	defer pool.Stop()

	sweeper := feat.NewSweeper(service, viper.GetString("sweeper.schedule"), logger)
	if err := sweeper.Start(); err != nil {
		logger.Fatal("Failed to start sweeper", zap.Error(err))
	}
	defer sweeper.Stop()

	consumeCtx, cancelConsume := context.WithCancel(context.Background())
	defer cancelConsume()
	go func() {
		err := broker.Consume(consumeCtx, func(ctx context.Context, msg amqp.Delivery) error {
			return service.HandleApplicationWithdrawn(ctx, msg)
		})
		if err != nil {
			logger.Error("Rabbit consumer stopped", zap.Error(err))
		}
	}()

	h := handler.New(service)
	auth := handler.NewAuthFromConfig()
	if auth == nil {
		logger.Warn("No JWT secret configured, authentication disabled")
	}

	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%s", viper.GetString("server.port")),
		Handler: h.Router(auth),
	}

	go func() {
		logger.Info("Starting HTTP server", zap.String("port", viper.GetString("server.port")))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to serve HTTP", zap.Error(err))
		}
	}()

	// Handle graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info("Shutting down HTTP server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", zap.Error(err))
	}

	logger.Info("HTTP server stopped")
}
