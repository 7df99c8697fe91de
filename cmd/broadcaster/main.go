package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/openlot/escrowd/internal/broadcast"
	"github.com/openlot/escrowd/internal/config"
)

func main() {
	log, err := zap.NewProduction()
	if err != nil {
		os.Exit(1)
	}
	defer log.Sync()

	log.Info("starting broadcast service")

	cfg := loadConfig()

	log.Info("connecting to redis", zap.String("addr", cfg.RedisAddr))
	subscriber, err := broadcast.NewSubscriber(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, log)
	if err != nil {
		log.Fatal("failed to connect to redis", zap.Error(err))
	}
	defer subscriber.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := subscriber.Subscribe(ctx); err != nil {
		log.Fatal("failed to subscribe to auction events", zap.Error(err))
	}
	log.Info("subscribed to auction events")

	hub := broadcast.NewHub(log)
	go hub.Run()

	messages := make(chan broadcast.Message, 256)

	go func() {
		if err := subscriber.Listen(ctx, messages); err != nil && ctx.Err() == nil {
			log.Error("redis listener error", zap.Error(err))
		}
	}()

	// Forward Redis Pub/Sub events to websocket watchers.
	go func() {
		for msg := range messages {
			hub.Broadcast(msg)
		}
	}()

	handler := broadcast.NewHandler(hub, log)
	router := handler.SetupRoutes()

	server := &http.Server{
		Addr:         cfg.ServerAddr,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("broadcast service listening", zap.String("addr", cfg.ServerAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("server error", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", zap.Error(err))
	}

	log.Info("server stopped gracefully")
}

// Config holds application configuration.
type Config struct {
	ServerAddr      string
	RedisAddr       string
	RedisPassword   string
	RedisDB         int
	ShutdownTimeout time.Duration
}

// loadConfig loads configuration from environment variables.
func loadConfig() *Config {
	return &Config{
		ServerAddr:      config.GetEnv("SERVER_ADDR", ":8081"),
		RedisAddr:       config.GetEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:   config.GetEnv("REDIS_PASSWORD", ""),
		RedisDB:         config.GetEnvInt("REDIS_DB", 0),
		ShutdownTimeout: config.GetEnvDuration("SHUTDOWN_TIMEOUT", 30*time.Second),
	}
}
