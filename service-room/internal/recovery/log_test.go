package recovery

import (
	"context"
	"testing"
	"time"

	"game-party/pkg/config"
	"game-party/pkg/model"
	redisclient "game-party/pkg/redis"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLog(t *testing.T) (*Log, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client, err := redisclient.NewClient(&config.Config{
		Redis: config.RedisConfig{Host: mr.Host(), Port: mr.Port()},
	})
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	log := NewLog(client, &config.RecoveryConfig{
		DedupTTL:  10 * time.Second,
		Retention: time.Hour,
		MaxLen:    1000,
	})
	return log, mr
}

func TestSaveDeduplicatesIdenticalContent(t *testing.T) {
	log, _ := newTestLog(t)
	ctx := context.Background()

	response := model.SuccessEnvelope(map[string]interface{}{"state": "READY"})

	first, err := log.Save(ctx, "AB12", "/topic/room/AB12", response)
	require.NoError(t, err)

	second, err := log.Save(ctx, "AB12", "/topic/room/AB12", response)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	messages, err := log.MessagesSince(ctx, "AB12", "")
	require.NoError(t, err)
	assert.Len(t, messages, 1)
}

func TestSaveDistinctPayloadsIncreaseStreamIDs(t *testing.T) {
	log, _ := newTestLog(t)
	ctx := context.Background()

	first, err := log.Save(ctx, "AB12", "/topic/room/AB12", model.SuccessEnvelope("one"))
	require.NoError(t, err)
	second, err := log.Save(ctx, "AB12", "/topic/room/AB12", model.SuccessEnvelope("two"))
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
	assert.True(t, streamIDAfter(second, first))

	// the cursor is exclusive: only records after it come back
	messages, err := log.MessagesSince(ctx, "AB12", first)
	require.NoError(t, err)
	require.Len(t, messages, 1)
	assert.Equal(t, second, messages[0].StreamID)
	assert.Equal(t, second, messages[0].Response.ID)
	assert.Equal(t, "two", messages[0].Response.Data)
}

func TestDedupExpiresAfterTTL(t *testing.T) {
	log, mr := newTestLog(t)
	ctx := context.Background()

	response := model.SuccessEnvelope("payload")
	first, err := log.Save(ctx, "AB12", "/topic/room/AB12", response)
	require.NoError(t, err)

	mr.FastForward(11 * time.Second)

	second, err := log.Save(ctx, "AB12", "/topic/room/AB12", response)
	require.NoError(t, err)
	assert.NotEqual(t, first, second)
}

func TestMessagesSinceUnknownRoom(t *testing.T) {
	log, _ := newTestLog(t)

	messages, err := log.MessagesSince(context.Background(), "ZZ99", "")
	require.NoError(t, err)
	assert.Empty(t, messages)
}

func TestRecoveryGapReplay(t *testing.T) {
	log, _ := newTestLog(t)
	ctx := context.Background()

	ids := make([]string, 0, 5)
	for _, payload := range []string{"m1", "m2", "m3", "m4", "m5"} {
		id, err := log.Save(ctx, "CD34", "/topic/room/CD34", model.SuccessEnvelope(payload))
		require.NoError(t, err)
		ids = append(ids, id)
	}

	// client saw the first two, recovery returns exactly 3, 4, 5 in order
	messages, err := log.MessagesSince(ctx, "CD34", ids[1])
	require.NoError(t, err)
	require.Len(t, messages, 3)
	for i, msg := range messages {
		assert.Equal(t, ids[i+2], msg.StreamID)
	}
	assert.Equal(t, "m3", messages[0].Response.Data)
	assert.Equal(t, "m5", messages[2].Response.Data)
}

func TestCleanup(t *testing.T) {
	log, _ := newTestLog(t)
	ctx := context.Background()

	_, err := log.Save(ctx, "AB12", "/topic/room/AB12", model.SuccessEnvelope("payload"))
	require.NoError(t, err)

	require.NoError(t, log.Cleanup(ctx, "AB12"))

	messages, err := log.MessagesSince(ctx, "AB12", "")
	require.NoError(t, err)
	assert.Empty(t, messages)

	// cleanup is idempotent and the room stays usable afterwards
	require.NoError(t, log.Cleanup(ctx, "AB12"))
	id, err := log.Save(ctx, "AB12", "/topic/room/AB12", model.SuccessEnvelope("payload"))
	require.NoError(t, err)
	assert.NotEmpty(t, id)
}

func TestContentHashDistinguishesOutcomes(t *testing.T) {
	success := ContentHash("/topic/room/AB12", model.SuccessEnvelope("payload"))
	failure := ContentHash("/topic/room/AB12", model.ErrorEnvelope("payload"))
	otherDest := ContentHash("/topic/room/AB12/minigame", model.SuccessEnvelope("payload"))

	assert.NotEqual(t, success, failure)
	assert.NotEqual(t, success, otherDest)
	assert.Equal(t, success, ContentHash("/topic/room/AB12", model.SuccessEnvelope("payload")))
}

func TestStreamIDOrdering(t *testing.T) {
	assert.True(t, streamIDAfter("2-0", "1-0"))
	assert.True(t, streamIDAfter("1-2", "1-1"))
	assert.False(t, streamIDAfter("1-1", "1-1"))
	assert.False(t, streamIDAfter("1-1", "2-0"))
	// numeric, not lexicographic
	assert.True(t, streamIDAfter("10-0", "9-0"))
}
