package broadcast

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"game-party/pkg/config"
	"game-party/pkg/model"
	redisclient "game-party/pkg/redis"

	"game-party/service-room/internal/fanout"
	"game-party/service-room/internal/recovery"
	"game-party/service-room/internal/registry"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoomCode(t *testing.T) {
	code, ok := RoomCode("/topic/room/AB12")
	require.True(t, ok)
	assert.Equal(t, "AB12", code)

	code, ok = RoomCode("/topic/room/AB12/minigame")
	require.True(t, ok)
	assert.Equal(t, "AB12", code)

	code, ok = RoomCode("/topic/room/AB12/roulette/winner")
	require.True(t, ok)
	assert.Equal(t, "AB12", code)

	_, ok = RoomCode("/topic/lobby")
	assert.False(t, ok)
	_, ok = RoomCode("/topic/room/")
	assert.False(t, ok)
	_, ok = RoomCode("room/AB12")
	assert.False(t, ok)
}

func TestDestination(t *testing.T) {
	assert.Equal(t, "/topic/room/AB12", Destination("AB12"))
	assert.Equal(t, "/topic/room/AB12/roulette", Destination("AB12", "roulette"))
}

type captureTransport struct {
	mu     sync.Mutex
	frames []model.BroadcastFrame
	byConn []string
}

func (c *captureTransport) Send(connID, destination string, response model.Envelope) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frames = append(c.frames, model.BroadcastFrame{Destination: destination, Response: response})
	c.byConn = append(c.byConn, connID)
	return nil
}

func newTestBroadcaster(t *testing.T) (*Broadcaster, *registry.Registry, *redisclient.Client, *config.Config) {
	t.Helper()

	mr := miniredis.RunT(t)
	cfg := &config.Config{
		Redis:    config.RedisConfig{Host: mr.Host(), Port: mr.Port()},
		Recovery: config.RecoveryConfig{DedupTTL: 10 * time.Second, Retention: time.Hour, MaxLen: 1000},
		Fanout:   config.FanoutConfig{Channel: "room:broadcast"},
	}
	client, err := redisclient.NewClient(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	reg := registry.NewRegistry()
	b := New(reg, recovery.NewLog(client, &cfg.Recovery), fanout.NewPublisher(client, &cfg.Fanout))
	return b, reg, client, cfg
}

func TestPublishRecordsAndFansOut(t *testing.T) {
	b, _, client, cfg := newTestBroadcaster(t)
	ctx := context.Background()

	pubsub := client.Subscribe(ctx, cfg.Fanout.Channel)
	defer pubsub.Close()
	_, err := pubsub.Receive(ctx) // wait for subscription confirmation
	require.NoError(t, err)
	frames := pubsub.Channel()

	b.Publish(ctx, "/topic/room/AB12", model.SuccessEnvelope("state"))

	select {
	case msg := <-frames:
		var frame model.BroadcastFrame
		require.NoError(t, json.Unmarshal([]byte(msg.Payload), &frame))
		assert.Equal(t, "/topic/room/AB12", frame.Destination)
		assert.True(t, frame.Response.Success)
		assert.NotEmpty(t, frame.Response.ID, "room broadcasts carry their recovery cursor")
	case <-time.After(2 * time.Second):
		t.Fatal("no frame on fan-out channel")
	}

	log := recovery.NewLog(client, &cfg.Recovery)
	messages, err := log.MessagesSince(ctx, "AB12", "")
	require.NoError(t, err)
	require.Len(t, messages, 1)
	assert.Equal(t, messages[0].StreamID, messages[0].Response.ID)
}

func TestPublishNonRoomDestinationSkipsRecovery(t *testing.T) {
	b, _, client, cfg := newTestBroadcaster(t)
	ctx := context.Background()

	pubsub := client.Subscribe(ctx, cfg.Fanout.Channel)
	defer pubsub.Close()
	_, err := pubsub.Receive(ctx) // wait for subscription confirmation
	require.NoError(t, err)
	frames := pubsub.Channel()

	b.Publish(ctx, "/topic/system/announcements", model.SuccessEnvelope("notice"))

	select {
	case msg := <-frames:
		var frame model.BroadcastFrame
		require.NoError(t, json.Unmarshal([]byte(msg.Payload), &frame))
		assert.Empty(t, frame.Response.ID, "non-room broadcasts are not recoverable")
	case <-time.After(2 * time.Second):
		t.Fatal("no frame on fan-out channel")
	}
}

func TestDeliverLocalTargetsRoomConnections(t *testing.T) {
	b, reg, _, _ := newTestBroadcaster(t)

	keyA, _ := registry.NewPlayerKey("AB12", "alice")
	keyB, _ := registry.NewPlayerKey("AB12", "bob")
	keyC, _ := registry.NewPlayerKey("CD34", "carol")
	reg.Register(keyA, "conn-a")
	reg.Register(keyB, "conn-b")
	reg.Register(keyC, "conn-c")

	transport := &captureTransport{}
	b.SetTransport(transport)

	b.DeliverLocal(model.BroadcastFrame{
		Destination: "/topic/room/AB12",
		Response:    model.SuccessEnvelope("state"),
	})

	assert.Len(t, transport.frames, 2)
	assert.ElementsMatch(t, []string{"conn-a", "conn-b"}, transport.byConn)
}

func TestDeliverLocalWithoutTransportIsNoOp(t *testing.T) {
	b, _, _, _ := newTestBroadcaster(t)
	b.DeliverLocal(model.BroadcastFrame{Destination: "/topic/room/AB12"})
}
