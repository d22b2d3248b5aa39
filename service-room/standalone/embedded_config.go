package main

import (
	"fmt"
	"strings"
	"time"

	"game-party/pkg/config"
)

// createEmbeddedConfig creates a hardcoded configuration for the standalone application
func createEmbeddedConfig() *config.Config {
	return &config.Config{
		Port:          "8080",
		PublicBaseURL: "http://localhost:8080",
		Redis: config.RedisConfig{
			Host:     "localhost",
			Port:     "6379", // replaced once embedded Redis is up
			Password: "",
			DB:       0,
		},
		Database: config.DatabaseConfig{
			Host:            "localhost",
			Port:            "15432", // replaced once embedded PostgreSQL is up
			Username:        "postgres",
			Password:        "postgres",
			Database:        "gameparty",
			MaxOpenConns:    25,
			MaxIdleConns:    25,
			ConnMaxLifetime: 5 * time.Minute,
			SSLMode:         "disable",
		},
		Storage: config.StorageConfig{
			Provider:     "local",
			LocalPath:    "./data/files",
			LocalBaseURL: "http://localhost:8080/api/files",
		},
		Room: config.RoomConfig{
			GracePeriod:  15 * time.Second,
			AwaitTimeout: 5 * time.Second,
			SessionTTL:   24 * time.Hour,
		},
		Recovery: config.RecoveryConfig{
			DedupTTL:  10 * time.Second,
			Retention: time.Hour,
			MaxLen:    1000,
		},
		Stream: config.StreamConfig{
			Key:          "room:events",
			Group:        "room-consumers",
			BlockTimeout: 2 * time.Second,
			MaxLen:       10000,
		},
		Fanout: config.FanoutConfig{
			Channel: "room:broadcast",
		},
		JoinToken: config.JoinTokenConfig{
			Secret: "embedded-join-token-secret-change-in-production",
			TTL:    time.Hour,
		},
		CORS: config.CORSConfig{
			AllowedOrigins: []string{"http://localhost:3000", "http://localhost:8080"},
			AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders: []string{"*"},
		},
		Log: config.LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// updateConfigWithEmbeddedServices updates the config with actual embedded service addresses
func updateConfigWithEmbeddedServices(cfg *config.Config) {
	redisAddr := GetRedisAddr()
	if redisAddr != "" {
		parts := strings.Split(redisAddr, ":")
		if len(parts) == 2 {
			cfg.Redis.Host = parts[0]
			cfg.Redis.Port = parts[1]
		}
	}

	if GetDBConnection() != nil {
		cfg.Database.Host = "localhost"
		cfg.Database.Port = fmt.Sprintf("%d", GetDBPort())
	}
}
