package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net"
	"os"
	"path/filepath"
	"time"

	"game-party/pkg/config"
	"game-party/pkg/database"
	"game-party/pkg/logger"

	embeddedpostgres "github.com/fergusstrange/embedded-postgres"
	_ "github.com/lib/pq"
)

var (
	embeddedDB   *embeddedpostgres.EmbeddedPostgres
	dbConnection *sql.DB
	dbPort       uint32
)

// findAvailablePort finds an available port starting from the given port
func findAvailablePort(startPort uint32) uint32 {
	for port := startPort; port < startPort+100; port++ {
		ln, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
		if err == nil {
			ln.Close()
			return port
		}
	}
	log.Fatalf("Could not find an available port starting from %d", startPort)
	return 0
}

func startEmbeddedDB(ctx context.Context) {
	logger.Info("Starting embedded PostgreSQL...")

	dbPort = findAvailablePort(15432)
	logger.Info(fmt.Sprintf("Using port %d for PostgreSQL", dbPort))

	homeDir, err := os.UserHomeDir()
	if err != nil {
		log.Fatalf("Failed to get user home directory: %v", err)
	}

	dataDir := filepath.Join(homeDir, ".game-party", "data")
	runtimeDir := filepath.Join(homeDir, ".game-party", "runtime")
	binariesDir := filepath.Join(homeDir, ".game-party", "binaries")

	for _, dir := range []string{dataDir, runtimeDir, binariesDir} {
		err := os.MkdirAll(dir, 0755)
		if err != nil {
			log.Fatalf("Failed to create directory %s: %v", dir, err)
		}
	}

	// clean up any existing data to avoid conflicts
	err = os.RemoveAll(dataDir)
	if err != nil {
		logger.Info(fmt.Sprintf("Warning: failed to clean up existing data directory: %v", err))
	}
	err = os.MkdirAll(dataDir, 0755)
	if err != nil {
		log.Fatalf("Failed to recreate data directory: %v", err)
	}

	embeddedDB = embeddedpostgres.NewDatabase(embeddedpostgres.DefaultConfig().
		Username("postgres").
		Password("postgres").
		Database("gameparty").
		Port(dbPort).
		RuntimePath(runtimeDir).
		DataPath(dataDir).
		BinariesPath(binariesDir))

	err = embeddedDB.Start()
	if err != nil {
		log.Fatalf("Failed to start embedded PostgreSQL: %v", err)
	}

	logger.Info("Waiting for embedded PostgreSQL to accept connections...")

	for i := 0; i < 30; i++ {
		time.Sleep(1 * time.Second)

		connectionString := fmt.Sprintf(
			"host=localhost port=%d user=postgres password=postgres dbname=gameparty sslmode=disable", dbPort)
		testDB, err := sql.Open("postgres", connectionString)
		if err == nil {
			if err := testDB.Ping(); err == nil {
				testDB.Close()
				break
			}
			testDB.Close()
		}

		if i == 29 {
			log.Fatalf("Embedded PostgreSQL failed to start after 30 seconds")
		}
	}

	cfg := &config.Config{
		Database: config.DatabaseConfig{
			Host:            "localhost",
			Port:            fmt.Sprintf("%d", dbPort),
			Username:        "postgres",
			Password:        "postgres",
			Database:        "gameparty",
			SSLMode:         "disable",
			MaxOpenConns:    25,
			MaxIdleConns:    25,
			ConnMaxLifetime: 5 * time.Minute,
		},
	}

	dbConnection, err = database.NewPgDB(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to embedded PostgreSQL: %v", err)
	}

	logger.Info(fmt.Sprintf("Embedded PostgreSQL started on port %d", dbPort))

	<-ctx.Done()

	logger.Info("Shutting down embedded PostgreSQL...")
	if dbConnection != nil {
		dbConnection.Close()
	}
	if embeddedDB != nil {
		embeddedDB.Stop()
	}
}

// GetDBConnection returns the database connection for use by services
func GetDBConnection() *sql.DB {
	return dbConnection
}

// GetDBPort returns the port of the embedded PostgreSQL instance
func GetDBPort() uint32 {
	return dbPort
}
