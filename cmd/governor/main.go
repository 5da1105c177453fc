package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/firescope/resource-governor/internal/config"
	"github.com/firescope/resource-governor/internal/monitor"
	"github.com/firescope/resource-governor/internal/server"
	"github.com/firescope/resource-governor/internal/storage"
	"github.com/joho/godotenv"
)

func main() {
	// Load env if it exists
	godotenv.Load()

	cfg, err := config.Load("config.json")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Connect the shared counter store, falling back to the in-process
	// store when Redis is unreachable. The fallback keeps a single
	// worker functional but quotas are no longer shared.
	var store storage.Store
	redis, err := storage.NewRedis(
		cfg.Redis.GetRedisAddr(),
		cfg.Redis.Password,
		cfg.Redis.DB,
	)
	if err != nil {
		log.Printf("Failed to connect to Redis, using in-memory store: %v", err)
		store = storage.NewMemoryStore()
		redis = nil
	} else {
		log.Println("Connected to Redis successfully")
		store = redis
		defer redis.Close()
	}

	postgres, err := storage.NewPostgres(cfg.Database.DSN())
	if err != nil {
		log.Fatalf("Failed to connect to Postgres: %v", err)
	}
	defer postgres.Close()

	if err := postgres.AutoMigrate(); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	log.Println("Connected to Postgres successfully")

	mon := monitor.New(monitor.Config{
		SlowQueryMs:          cfg.Monitor.SlowQueryMs,
		VerySlowQueryMs:      cfg.Monitor.VerySlowQueryMs,
		HighCPUPercent:       cfg.Monitor.HighCPUPercent,
		HighMemoryPercent:    cfg.Monitor.HighMemoryPercent,
		MaxConcurrentQueries: cfg.Monitor.MaxConcurrentQueries,
	})

	sampleInterval := time.Duration(cfg.Monitor.SampleIntervalSeconds) * time.Second
	mon.StartSampler(monitor.SystemSource{}, sampleInterval, 0)
	defer mon.StopSampler()

	// Create server
	srv := server.New(cfg, store, redis, postgres, mon)

	go func() {
		addr := ":" + cfg.Server.Port
		if err := srv.Run(addr); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server exited")
}
