package registry

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPlayerKey(t *testing.T) {
	key, err := NewPlayerKey("AB12", "alice")
	require.NoError(t, err)
	assert.Equal(t, PlayerKey("AB12:alice"), key)
	assert.Equal(t, "AB12", key.JoinCode())
	assert.Equal(t, "alice", key.PlayerName())
}

func TestNewPlayerKeyRejectsSeparator(t *testing.T) {
	_, err := NewPlayerKey("AB:12", "alice")
	assert.Error(t, err)

	_, err = NewPlayerKey("AB12", "al:ice")
	assert.Error(t, err)

	_, err = NewPlayerKey("", "alice")
	assert.Error(t, err)

	_, err = NewPlayerKey("AB12", "")
	assert.Error(t, err)
}

func TestRegisterReplacesPriorConnection(t *testing.T) {
	r := NewRegistry()
	key, _ := NewPlayerKey("AB12", "alice")

	r.Register(key, "conn-1")
	r.Register(key, "conn-2")

	conn, ok := r.Conn(key)
	require.True(t, ok)
	assert.Equal(t, "conn-2", conn)

	// superseded connection no longer resolves
	_, ok = r.PlayerKeyOf("conn-1")
	assert.False(t, ok)

	got, ok := r.PlayerKeyOf("conn-2")
	require.True(t, ok)
	assert.Equal(t, key, got)
}

func TestRemoveClearsBothDirections(t *testing.T) {
	r := NewRegistry()
	key, _ := NewPlayerKey("AB12", "alice")

	r.Register(key, "conn-1")
	r.Remove("conn-1")

	_, ok := r.Conn(key)
	assert.False(t, ok)
	_, ok = r.PlayerKeyOf("conn-1")
	assert.False(t, ok)

	// removing again is a no-op
	r.Remove("conn-1")
}

func TestRemoveLeavesNewerRegistrationIntact(t *testing.T) {
	r := NewRegistry()
	key, _ := NewPlayerKey("AB12", "alice")

	r.Register(key, "conn-1")
	r.Register(key, "conn-2")
	r.Remove("conn-1")

	conn, ok := r.Conn(key)
	require.True(t, ok)
	assert.Equal(t, "conn-2", conn)
}

func TestMarkDisconnectionProcessedOncePerEpoch(t *testing.T) {
	r := NewRegistry()
	key, _ := NewPlayerKey("AB12", "alice")

	r.Register(key, "conn-1")
	assert.True(t, r.MarkDisconnectionProcessed("conn-1"))
	assert.False(t, r.MarkDisconnectionProcessed("conn-1"))

	// re-registration starts a fresh epoch
	r.Register(key, "conn-1")
	assert.True(t, r.MarkDisconnectionProcessed("conn-1"))
	assert.False(t, r.MarkDisconnectionProcessed("conn-1"))
}

func TestMarkDisconnectionProcessedUnknownConn(t *testing.T) {
	r := NewRegistry()
	assert.False(t, r.MarkDisconnectionProcessed("conn-unknown"))
}

func TestMarkDisconnectionProcessedConcurrent(t *testing.T) {
	r := NewRegistry()
	key, _ := NewPlayerKey("AB12", "alice")
	r.Register(key, "conn-1")

	const workers = 32
	results := make(chan bool, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- r.MarkDisconnectionProcessed("conn-1")
		}()
	}
	wg.Wait()
	close(results)

	wins := 0
	for won := range results {
		if won {
			wins++
		}
	}
	assert.Equal(t, 1, wins)
}

func TestConnsByRoom(t *testing.T) {
	r := NewRegistry()
	for i, room := range []string{"AB12", "AB12", "CD34"} {
		key, err := NewPlayerKey(room, fmt.Sprintf("player-%d", i))
		require.NoError(t, err)
		r.Register(key, fmt.Sprintf("conn-%d", i))
	}

	conns := r.ConnsByRoom("AB12")
	assert.Len(t, conns, 2)
	assert.ElementsMatch(t, []string{"conn-0", "conn-1"}, conns)

	assert.Empty(t, r.ConnsByRoom("ZZ99"))
	assert.Equal(t, 3, r.ConnectedCount())
}
