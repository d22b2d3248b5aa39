package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
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
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type wsFixture struct {
	service *room.Service
	server  *httptest.Server
}

// newWsFixture runs the full pipeline: gin + websocket upgrade, a live stream
// consumer applying commands, and the fan-out subscriber delivering broadcasts
// back to the connected sockets.
func newWsFixture(t *testing.T) *wsFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	mr := miniredis.RunT(t)
	cfg := &config.Config{
		Redis:    config.RedisConfig{Host: mr.Host(), Port: mr.Port()},
		Room:     config.RoomConfig{GracePeriod: time.Second, AwaitTimeout: 3 * time.Second, SessionTTL: time.Hour},
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

	h := NewWsHandler(svc)
	bcast.SetTransport(h)

	consumer := stream.NewConsumer(client, &cfg.Stream, svc.Handlers())
	subscriber := fanout.NewSubscriber(client, &cfg.Fanout, bcast.DeliverLocal)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go consumer.Run(ctx)
	go subscriber.Run(ctx)

	router := gin.New()
	router.GET("/ws/rooms/:joinCode", h.HandleWebSocket)
	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	return &wsFixture{service: svc, server: server}
}

func (f *wsFixture) wsURL(joinCode, playerName string) string {
	return "ws" + strings.TrimPrefix(f.server.URL, "http") +
		"/ws/rooms/" + joinCode + "?playerName=" + playerName
}

func (f *wsFixture) dial(t *testing.T, joinCode, playerName string) *websocket.Conn {
	t.Helper()
	conn, resp, err := websocket.DefaultDialer.Dial(f.wsURL(joinCode, playerName), nil)
	require.NoError(t, err)
	if resp != nil {
		resp.Body.Close()
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

// readFrameUntil drains frames until match accepts one. Broadcasts triggered
// by the connection itself (session registration) arrive interleaved, so
// assertions filter rather than expect a fixed sequence.
func readFrameUntil(t *testing.T, conn *websocket.Conn, match func(model.BroadcastFrame) bool) model.BroadcastFrame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	for {
		var frame model.BroadcastFrame
		require.NoError(t, conn.ReadJSON(&frame), "no matching frame before the read deadline")
		if match(frame) {
			return frame
		}
	}
}

func decodeRoom(t *testing.T, data interface{}) *room.Room {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	var rm room.Room
	require.NoError(t, json.Unmarshal(raw, &rm))
	return &rm
}

func TestWebSocketRejectsBeforeUpgrade(t *testing.T) {
	f := newWsFixture(t)
	ctx := context.Background()

	rm, err := f.service.CreateRoom(ctx, "host")
	require.NoError(t, err)

	// unknown room
	_, resp, err := websocket.DefaultDialer.Dial(f.wsURL("ZZ99", "host"), nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()

	// player never joined over REST
	_, resp, err = websocket.DefaultDialer.Dial(f.wsURL(rm.JoinCode, "stranger"), nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	resp.Body.Close()
}

func TestWebSocketCommandBroadcastsOutcome(t *testing.T) {
	f := newWsFixture(t)
	ctx := context.Background()

	rm, err := f.service.CreateRoom(ctx, "host")
	require.NoError(t, err)
	_, err = f.service.JoinRoom(ctx, rm.JoinCode, "guest")
	require.NoError(t, err)

	conn := f.dial(t, rm.JoinCode, "guest")

	require.NoError(t, conn.WriteJSON(map[string]interface{}{
		"type":    "update-ready",
		"payload": map[string]bool{"ready": true},
	}))

	roomDest := "/topic/room/" + rm.JoinCode
	frame := readFrameUntil(t, conn, func(fr model.BroadcastFrame) bool {
		if fr.Destination != roomDest {
			return false
		}
		p, ok := decodeRoom(t, fr.Response.Data).Player("guest")
		return ok && p.Ready
	})

	assert.True(t, frame.Response.Success)
	assert.NotEmpty(t, frame.Response.ID, "room broadcasts carry a recovery cursor")
}

func TestWebSocketCommandErrorsGoToErrorQueue(t *testing.T) {
	f := newWsFixture(t)
	ctx := context.Background()

	rm, err := f.service.CreateRoom(ctx, "host")
	require.NoError(t, err)
	_, err = f.service.JoinRoom(ctx, rm.JoinCode, "guest")
	require.NoError(t, err)

	conn := f.dial(t, rm.JoinCode, "guest")

	// a guest cannot start the game; the rejection goes only to the sender
	require.NoError(t, conn.WriteJSON(map[string]interface{}{"type": "start-game"}))
	frame := readFrameUntil(t, conn, func(fr model.BroadcastFrame) bool {
		return fr.Destination == errorDestination
	})
	assert.False(t, frame.Response.Success)
	assert.Contains(t, frame.Response.ErrorMessage, "host")
	assert.Empty(t, frame.Response.ID, "error replies are not recoverable")

	// unknown command types are rejected the same way
	require.NoError(t, conn.WriteJSON(map[string]interface{}{"type": "no-such-command"}))
	frame = readFrameUntil(t, conn, func(fr model.BroadcastFrame) bool {
		return fr.Destination == errorDestination
	})
	assert.False(t, frame.Response.Success)
	assert.Contains(t, frame.Response.ErrorMessage, "unknown command")
}
