package main

import (
	"context"
	"fmt"
	"log"

	"game-party/pkg/logger"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

var (
	embeddedRedis *miniredis.Miniredis
	redisClient   *redis.Client
)

func startEmbeddedRedis(ctx context.Context) {
	logger.Info("Starting embedded Redis...")

	var err error
	embeddedRedis, err = miniredis.Run()
	if err != nil {
		log.Fatalf("Failed to start embedded Redis: %v", err)
	}

	redisClient = redis.NewClient(&redis.Options{
		Addr: embeddedRedis.Addr(),
		DB:   0,
	})

	// test connection
	_, err = redisClient.Ping(ctx).Result()
	if err != nil {
		log.Fatalf("Failed to ping embedded Redis: %v", err)
	}

	logger.Info(fmt.Sprintf("Embedded Redis started on %s", embeddedRedis.Addr()))

	<-ctx.Done()

	logger.Info("Shutting down embedded Redis...")
	if redisClient != nil {
		redisClient.Close()
	}
	if embeddedRedis != nil {
		embeddedRedis.Close()
	}
}

// GetRedisAddr returns the address of the embedded Redis instance
func GetRedisAddr() string {
	if embeddedRedis == nil {
		return ""
	}
	return embeddedRedis.Addr()
}
