package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"

	"tiercache/internal/cache"
	"tiercache/internal/common/logging"
	"tiercache/internal/config"
	"tiercache/internal/handlers"
	"tiercache/internal/middleware"
	"tiercache/internal/redis"
	"tiercache/internal/server"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Configuration validation failed: %v", err)
	}

	logging.InitGlobalLogger()
	defer logging.MustSync()
	logger := logging.GetGlobalLogger()

	registryOpts := []cache.RegistryOption{
		cache.WithMemorySweepInterval(cfg.GetMemorySweepInterval()),
		cache.WithDefaultPolicy(cache.InstancePolicy{
			Memory:        cache.Policy{TTL: cfg.GetMemoryTTL(), Enabled: true},
			Remote:        cache.Policy{TTL: cfg.GetRemoteTTL(), Enabled: cfg.RemoteEnabled()},
			MaxEntries:    cfg.GetMemoryMaxEntries(),
			MaxValueBytes: cfg.GetMemoryMaxValueBytes(),
		}),
		// Search results are cheap to recompute and go stale quickly.
		cache.WithPolicy("search-results", cache.InstancePolicy{
			Memory:        cache.Policy{TTL: 30 * time.Second, Enabled: true},
			Remote:        cache.Policy{TTL: 5 * time.Minute, Enabled: cfg.RemoteEnabled()},
			MaxEntries:    cfg.GetMemoryMaxEntries(),
			MaxValueBytes: cfg.GetMemoryMaxValueBytes(),
		}),
		// Generated text is expensive to produce and rarely changes.
		cache.WithPolicy("generated-text", cache.InstancePolicy{
			Memory:        cache.Policy{TTL: 10 * time.Minute, Enabled: true},
			Remote:        cache.Policy{TTL: 24 * time.Hour, Enabled: cfg.RemoteEnabled()},
			MaxEntries:    cfg.GetMemoryMaxEntries(),
			MaxValueBytes: cfg.GetMemoryMaxValueBytes(),
		}),
	}

	var redisClient *redis.Client
	if cfg.RemoteEnabled() {
		var err error
		redisClient, err = redis.NewClient(&redis.Config{
			Address:  cfg.RedisAddress,
			Password: cfg.RedisPassword,
			DB:       cfg.GetRedisDB(),
			PoolSize: cfg.GetRedisPoolSize(),
		})
		if err != nil {
			// The remote tier is best-effort; run memory-only rather than
			// refuse to start.
			logger.Warn("Redis unavailable, starting without remote tier", logging.Err(err))
		} else {
			defer redisClient.Close()
			registryOpts = append(registryOpts,
				cache.WithRemoteStore(redisClient, cfg.GetRemoteTimeout()))
		}
	}

	registry := cache.NewRegistry(logger, registryOpts...)
	defer registry.Stop()

	h := handlers.New(registry, logger)
	router := mux.NewRouter()
	router.Use(middleware.LoggingMiddleware)
	h.RegisterRoutes(router)

	srv := server.New(router, cfg.Port)
	srv.Start()
	logger.Info("Cache service started",
		logging.String("port", cfg.Port),
		logging.Bool("remote_tier", redisClient != nil),
	)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	logger.Info("Shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Server shutdown failed", err)
	}
}
