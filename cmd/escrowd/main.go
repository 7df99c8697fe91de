package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/raulk/clock"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/openlot/escrowd/internal/auction"
	"github.com/openlot/escrowd/internal/config"
	"github.com/openlot/escrowd/internal/events"
	"github.com/openlot/escrowd/internal/handlers"
	"github.com/openlot/escrowd/internal/ledger"
)

func main() {
	log, err := zap.NewProduction()
	if err != nil {
		os.Exit(1)
	}
	defer log.Sync()

	log.Info("starting auction service")

	cfg := loadConfig()

	log.Info("connecting to redis", zap.String("addr", cfg.RedisAddr))
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		cancel()
		log.Fatal("failed to connect to redis", zap.Error(err))
	}
	cancel()
	defer rdb.Close()

	log.Info("connecting to nats", zap.String("url", cfg.NatsURL))
	natsConn, err := nats.Connect(cfg.NatsURL)
	if err != nil {
		log.Fatal("failed to connect to nats", zap.Error(err))
	}
	defer natsConn.Close()

	broker, err := events.NewBroker(context.Background(), rdb, natsConn, log)
	if err != nil {
		log.Fatal("failed to create event broker", zap.Error(err))
	}

	clk := clock.New()
	vault := ledger.NewVault(log)
	store := auction.NewStore()
	registry := auction.NewRegistry(store, clk, broker, log)
	machine := auction.NewStateMachine(store, vault, clk, broker, log)

	handler := handlers.New(registry, machine, vault, log)
	router := handler.SetupRoutes()

	server := &http.Server{
		Addr:         cfg.ServerAddr,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("auction service listening", zap.String("addr", cfg.ServerAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("server error", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error("server forced to shutdown", zap.Error(err))
	}

	log.Info("server stopped gracefully")
}

// Config holds application configuration.
type Config struct {
	ServerAddr    string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	NatsURL       string
}

// loadConfig loads configuration from environment variables.
func loadConfig() *Config {
	return &Config{
		ServerAddr:    config.GetEnv("SERVER_ADDR", ":8080"),
		RedisAddr:     config.GetEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: config.GetEnv("REDIS_PASSWORD", ""),
		RedisDB:       config.GetEnvInt("REDIS_DB", 0),
		NatsURL:       config.GetEnv("NATS_URL", "nats://localhost:4222"),
	}
}
