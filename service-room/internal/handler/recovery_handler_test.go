package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"game-party/pkg/config"
	"game-party/pkg/model"
	redisclient "game-party/pkg/redis"

	"game-party/service-room/internal/broadcast"
	"game-party/service-room/internal/correlator"
	"game-party/service-room/internal/fanout"
	"game-party/service-room/internal/recovery"
	"game-party/service-room/internal/registry"
	"game-party/service-room/internal/scheduler"
	"game-party/service-room/internal/service/room"
	"game-party/service-room/internal/stream"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recoveryFixture struct {
	router   *gin.Engine
	service  *room.Service
	recovery *recovery.Log
	registry *registry.Registry
}

func newRecoveryFixture(t *testing.T) *recoveryFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	mr := miniredis.RunT(t)
	cfg := &config.Config{
		Redis:    config.RedisConfig{Host: mr.Host(), Port: mr.Port()},
		Room:     config.RoomConfig{GracePeriod: time.Second, AwaitTimeout: time.Second, SessionTTL: time.Hour},
		Recovery: config.RecoveryConfig{DedupTTL: 10 * time.Second, Retention: time.Hour, MaxLen: 1000},
		Stream:   config.StreamConfig{Key: "room:events", Group: "room-consumers", BlockTimeout: 50 * time.Millisecond, MaxLen: 1000},
		Fanout:   config.FanoutConfig{Channel: "room:broadcast"},
	}

	client, err := redisclient.NewClient(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	reg := registry.NewRegistry()
	rec := recovery.NewLog(client, &cfg.Recovery)
	bcast := broadcast.New(reg, rec, fanout.NewPublisher(client, &cfg.Fanout))
	svc := room.NewService(cfg,
		room.NewStore(client, &cfg.Room),
		stream.NewPublisher(client, &cfg.Stream),
		correlator.New(cfg.Room.AwaitTimeout),
		bcast, reg, scheduler.New(), rec, nil, nil)

	router := gin.New()
	h := NewRecoveryHandler(svc)
	router.POST("/api/rooms/:joinCode/recovery", h.Recover)

	return &recoveryFixture{router: router, service: svc, recovery: rec, registry: reg}
}

func (f *recoveryFixture) recover(t *testing.T, joinCode, query string) (*httptest.ResponseRecorder, model.RecoveryResponse) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost,
		fmt.Sprintf("/api/rooms/%s/recovery?%s", joinCode, query), nil)
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)

	var body model.RecoveryResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return w, body
}

func TestRecoveryRequiresPlayerName(t *testing.T) {
	f := newRecoveryFixture(t)

	w, body := f.recover(t, "AB12", "lastId=")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.False(t, body.Success)
}

func TestRecoveryWithoutLiveConnection(t *testing.T) {
	f := newRecoveryFixture(t)

	w, body := f.recover(t, "AB12", "playerName=alice")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.False(t, body.Success)
	assert.Contains(t, body.ErrorMessage, "no live connection")
}

func TestRecoveryReturnsGap(t *testing.T) {
	f := newRecoveryFixture(t)
	ctx := context.Background()

	ids := make([]string, 0, 5)
	for i := 1; i <= 5; i++ {
		id, err := f.recovery.Save(ctx, "CD34", "/topic/room/CD34",
			model.SuccessEnvelope(fmt.Sprintf("m%d", i)))
		require.NoError(t, err)
		ids = append(ids, id)
	}

	key, err := registry.NewPlayerKey("CD34", "alice")
	require.NoError(t, err)
	f.service.RegisterConnection(ctx, key, "conn-1")

	w, body := f.recover(t, "CD34", "playerName=alice&lastId="+ids[1])
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, body.Success)
	assert.Equal(t, 3, body.MessageCount)
	require.Len(t, body.Messages, 3)
	for i, msg := range body.Messages {
		assert.Equal(t, ids[i+2], msg.StreamID)
		assert.Equal(t, msg.StreamID, msg.Response.ID)
	}
}

func TestRecoveryCaughtUpIsEmptySuccess(t *testing.T) {
	f := newRecoveryFixture(t)
	ctx := context.Background()

	key, err := registry.NewPlayerKey("EF56", "bob")
	require.NoError(t, err)
	f.service.RegisterConnection(ctx, key, "conn-1")

	w, body := f.recover(t, "EF56", "playerName=bob")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, body.Success)
	assert.Equal(t, 0, body.MessageCount)
	assert.NotNil(t, body.Messages)
}
