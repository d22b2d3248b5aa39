package main

import (
	"context"
	"sync"
	"time"

	"game-party/pkg/logger"
	"game-party/service-room/internal/app"
)

func main() {
	cfg := createEmbeddedConfig()

	logger.InitLogger(cfg)

	logger.Info("Starting Game Party standalone application...")
	logger.Info("This includes: embedded Redis, embedded PostgreSQL, and the room service")

	var wg sync.WaitGroup
	ctx, cancel := context.WithCancel(context.Background())

	wg.Add(1)
	go func() {
		defer wg.Done()
		startEmbeddedRedis(ctx)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		startEmbeddedDB(ctx)
	}()

	waitForEmbeddedServicesToBeReady()
	updateConfigWithEmbeddedServices(cfg)

	logger.Info("Starting room service...")

	// Serve blocks until a shutdown signal arrives and the server drained
	server := app.NewAppServer(cfg)
	server.Serve()

	cancel()
	wg.Wait()
	logger.Info("Shutdown complete")
}

// waitForEmbeddedServicesToBeReady waits for the embedded backends
func waitForEmbeddedServicesToBeReady() {
	waitForRedisReady()
	waitForPostgreSQLReady()
	logger.Info("All embedded services are ready")
}

func waitForRedisReady() {
	logger.Info("Waiting for Redis to be ready...")
	for i := 0; i < 30; i++ {
		if GetRedisAddr() != "" {
			logger.Info("Redis is ready")
			return
		}
		time.Sleep(1 * time.Second)
	}
	logger.Error(nil, "Redis failed to become ready within 30 seconds")
}

func waitForPostgreSQLReady() {
	logger.Info("Waiting for PostgreSQL to be ready...")
	for i := 0; i < 60; i++ {
		if GetDBConnection() != nil {
			if err := GetDBConnection().Ping(); err == nil {
				logger.Info("PostgreSQL is ready")
				return
			}
		}
		time.Sleep(1 * time.Second)
	}
	logger.Error(nil, "PostgreSQL failed to become ready within 60 seconds")
}
