package config

import (
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port          string          `json:"port"`
	PublicBaseURL string          `json:"public_base_url"`
	Redis         RedisConfig     `json:"redis"`
	Database      DatabaseConfig  `json:"database"`
	Storage       StorageConfig   `json:"storage"`
	Room          RoomConfig      `json:"room"`
	Recovery      RecoveryConfig  `json:"recovery"`
	Stream        StreamConfig    `json:"stream"`
	Fanout        FanoutConfig    `json:"fanout"`
	JoinToken     JoinTokenConfig `json:"join_token"`
	CORS          CORSConfig      `json:"cors"`
	Log           LogConfig       `json:"log"`
}

type RedisConfig struct {
	Host     string `json:"host"`
	Port     string `json:"port"`
	Password string `json:"password"`
	DB       int    `json:"db"`
}

type DatabaseConfig struct {
	Host            string        `json:"db_host"`
	Port            string        `json:"db_port"`
	Username        string        `json:"db_username"`
	Password        string        `json:"db_password"`
	Database        string        `json:"db_database"`
	MaxOpenConns    int           `json:"db_max_open_conns"`
	MaxIdleConns    int           `json:"db_max_idle_conns"`
	ConnMaxLifetime time.Duration `json:"db_conn_max_lifetime"`
	SSLMode         string        `json:"db_ssl_mode"` // e.g., "disable", "require", "verify-full"
}

// Enabled reports whether result persistence is configured. The service runs
// without Postgres; only the roulette result history needs it.
func (d DatabaseConfig) Enabled() bool {
	return d.Host != ""
}

type StorageConfig struct {
	Provider            string `json:"provider"` // "local", "minio", "gcs"
	LocalPath           string `json:"local_path"`
	LocalBaseURL        string `json:"local_base_url"`
	GCSBucket           string `json:"gcs_bucket"`
	MinIOEndpoint       string `json:"minio_endpoint"`
	MinIOPublicEndpoint string `json:"minio_public_endpoint"`
	MinIOAccessKey      string `json:"minio_access_key"`
	MinIOSecretKey      string `json:"minio_secret_key"`
	MinIOBucket         string `json:"minio_bucket"`
	MinIOUseSSL         bool   `json:"minio_use_ssl"`
}

// RoomConfig carries the session-lifecycle tunables. Grace period and await
// timeout trade responsiveness for tolerance of flaky mobile connections, so
// they are deployment-specific rather than hardcoded.
type RoomConfig struct {
	GracePeriod  time.Duration `json:"grace_period"`  // disconnect-to-removal delay
	AwaitTimeout time.Duration `json:"await_timeout"` // correlated request wait bound
	SessionTTL   time.Duration `json:"session_ttl"`   // room state retention in Redis
}

// RecoveryConfig bounds the replay log. The dedup TTL only needs to cover
// near-simultaneous duplicate publishes; retention must cover a realistic
// reconnect window, hence two separate knobs.
type RecoveryConfig struct {
	DedupTTL  time.Duration `json:"dedup_ttl"`
	Retention time.Duration `json:"retention"`
	MaxLen    int64         `json:"max_len"`
}

type StreamConfig struct {
	Key          string        `json:"key"`
	Group        string        `json:"group"`
	BlockTimeout time.Duration `json:"block_timeout"`
	MaxLen       int64         `json:"max_len"`
}

type FanoutConfig struct {
	Channel string `json:"channel"`
}

type JoinTokenConfig struct {
	Secret string        `json:"secret"`
	TTL    time.Duration `json:"ttl"`
}

type CORSConfig struct {
	AllowedOrigins []string `json:"allowed_origins"`
	AllowedMethods []string `json:"allowed_methods"`
	AllowedHeaders []string `json:"allowed_headers"`
}

type LogConfig struct {
	Level  string `json:"log_level"`
	Format string `json:"log_format"`
}

func init() {
	if !isGCP {
		err := godotenv.Load()
		if err != nil {
			log.Println("Warning: Could not find or load .env file.")
		}
	}
}

func NewConfig() *Config {
	return &Config{
		Port:          getOptionalSecret("PORT", "8080"),
		PublicBaseURL: getOptionalSecret("PUBLIC_BASE_URL", "http://localhost:8080"),
		Redis: RedisConfig{
			Host:     getOptionalSecret("REDIS_HOST", "localhost"),
			Port:     getOptionalSecret("REDIS_PORT", "6379"),
			Password: getOptionalSecret("REDIS_PASSWORD", ""),
			DB:       parseOptionalInt("REDIS_DB", 0),
		},
		Database: DatabaseConfig{
			Host:            getOptionalSecret("DB_HOST", ""),
			Port:            getOptionalSecret("DB_PORT", "5432"),
			Username:        getOptionalSecret("DB_USERNAME", ""),
			Password:        getOptionalSecret("DB_PASSWORD", ""),
			Database:        getOptionalSecret("DB_DATABASE", ""),
			MaxOpenConns:    parseOptionalInt("DB_MAX_OPEN_CONNS", 10),
			MaxIdleConns:    parseOptionalInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: parseOptionalDuration("DB_CONN_MAX_LIFETIME", 30*time.Minute),
			SSLMode:         getOptionalSecret("DB_SSL_MODE", "disable"),
		},
		Storage: StorageConfig{
			Provider:            getOptionalSecret("STORAGE_PROVIDER", "local"),
			LocalPath:           getOptionalSecret("STORAGE_LOCAL_PATH", "./data/files"),
			LocalBaseURL:        getOptionalSecret("STORAGE_LOCAL_BASE_URL", "http://localhost:8080/api/files"),
			GCSBucket:           getOptionalSecret("GCS_BUCKET", ""),
			MinIOEndpoint:       getOptionalSecret("MINIO_ENDPOINT", ""),
			MinIOPublicEndpoint: getOptionalSecret("MINIO_PUBLIC_ENDPOINT", ""),
			MinIOAccessKey:      getOptionalSecret("MINIO_ACCESS_KEY", ""),
			MinIOSecretKey:      getOptionalSecret("MINIO_SECRET_KEY", ""),
			MinIOBucket:         getOptionalSecret("MINIO_BUCKET", "game-party"),
			MinIOUseSSL:         getOptionalSecret("MINIO_USE_SSL", "false") == "true",
		},
		Room: RoomConfig{
			GracePeriod:  parseOptionalDuration("ROOM_GRACE_PERIOD", 15*time.Second),
			AwaitTimeout: parseOptionalDuration("ROOM_AWAIT_TIMEOUT", 5*time.Second),
			SessionTTL:   parseOptionalDuration("ROOM_SESSION_TTL", 24*time.Hour),
		},
		Recovery: RecoveryConfig{
			DedupTTL:  parseOptionalDuration("RECOVERY_DEDUP_TTL", 10*time.Second),
			Retention: parseOptionalDuration("RECOVERY_RETENTION", time.Hour),
			MaxLen:    int64(parseOptionalInt("RECOVERY_MAX_LEN", 1000)),
		},
		Stream: StreamConfig{
			Key:          getOptionalSecret("STREAM_KEY", "room:events"),
			Group:        getOptionalSecret("STREAM_GROUP", "room-consumers"),
			BlockTimeout: parseOptionalDuration("STREAM_BLOCK_TIMEOUT", 2*time.Second),
			MaxLen:       int64(parseOptionalInt("STREAM_MAX_LEN", 10000)),
		},
		Fanout: FanoutConfig{
			Channel: getOptionalSecret("FANOUT_CHANNEL", "room:broadcast"),
		},
		JoinToken: JoinTokenConfig{
			Secret: getOptionalSecret("JOIN_TOKEN_SECRET", "dev-join-token-secret"),
			TTL:    parseOptionalDuration("JOIN_TOKEN_TTL", time.Hour),
		},
		CORS: CORSConfig{
			AllowedOrigins: splitList(getOptionalSecret("CORS_ALLOWED_ORIGINS", "*")),
			AllowedMethods: splitList(getOptionalSecret("CORS_ALLOWED_METHODS", "GET,POST,PUT,DELETE,OPTIONS")),
			AllowedHeaders: splitList(getOptionalSecret("CORS_ALLOWED_HEADERS", "Origin,Content-Type,Authorization")),
		},
		Log: LogConfig{
			Level:  getOptionalSecret("LOG_LEVEL", "info"),
			Format: getOptionalSecret("LOG_FORMAT", "json"),
		},
	}
}

func splitList(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
