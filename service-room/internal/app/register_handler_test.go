package app

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"game-party/pkg/config"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestConfig(t *testing.T) *config.Config {
	t.Helper()
	mr := miniredis.RunT(t)
	return &config.Config{
		Port:          "0",
		PublicBaseURL: "http://localhost:8080",
		Redis:         config.RedisConfig{Host: mr.Host(), Port: mr.Port()},
		Storage: config.StorageConfig{
			Provider:     "local",
			LocalPath:    t.TempDir(),
			LocalBaseURL: "http://localhost:8080/api/files",
		},
		Room:      config.RoomConfig{GracePeriod: time.Second, AwaitTimeout: time.Second, SessionTTL: time.Hour},
		Recovery:  config.RecoveryConfig{DedupTTL: 10 * time.Second, Retention: time.Hour, MaxLen: 1000},
		Stream:    config.StreamConfig{Key: "room:events", Group: "room-consumers", BlockTimeout: 50 * time.Millisecond, MaxLen: 1000},
		Fanout:    config.FanoutConfig{Channel: "room:broadcast"},
		JoinToken: config.JoinTokenConfig{Secret: "test-secret", TTL: time.Hour},
		CORS: config.CORSConfig{
			AllowedOrigins: []string{"http://localhost:3000"},
			AllowedMethods: []string{"GET", "POST"},
			AllowedHeaders: []string{"Origin", "Content-Type"},
		},
		Log: config.LogConfig{Level: "error", Format: "json"},
	}
}

// The local storage provider hands out URLs under LocalBaseURL, so the server
// must serve the stored files back from that path.
func TestLocalStorageFilesAreServed(t *testing.T) {
	cfg := newTestConfig(t)
	server := NewAppServer(cfg)
	router := server.RegisterHandlers()

	// QR uploads land under qr/ inside the storage path
	qrDir := filepath.Join(cfg.Storage.LocalPath, "qr")
	require.NoError(t, os.MkdirAll(qrDir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(qrDir, "AB12.png"), []byte("png-bytes"), 0644))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/files/qr/AB12.png", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "png-bytes", w.Body.String())
}

func TestResultsRouteWithoutDatabase(t *testing.T) {
	cfg := newTestConfig(t)
	server := NewAppServer(cfg)
	router := server.RegisterHandlers()

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/results", nil))

	assert.Equal(t, http.StatusNotFound, w.Code, "result history needs Postgres")
}

func TestLocalFilesRouteFallsBack(t *testing.T) {
	assert.Equal(t, "/api/files", localFilesRoute("http://cdn.example.com/api/files"))
	assert.Equal(t, "/static", localFilesRoute("http://localhost:9000/static"))
	assert.Equal(t, "/api/files", localFilesRoute("http://localhost:9000"))
}
