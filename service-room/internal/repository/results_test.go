package repository

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"testing"
	"time"

	embeddedpostgres "github.com/fergusstrange/embedded-postgres"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func freePort(t *testing.T) uint32 {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	return uint32(ln.Addr().(*net.TCPAddr).Port)
}

func newResultStore(t *testing.T) *ResultStore {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping embedded PostgreSQL test in short mode")
	}

	port := freePort(t)
	epg := embeddedpostgres.NewDatabase(embeddedpostgres.DefaultConfig().
		Username("postgres").
		Password("postgres").
		Database("gameparty").
		Port(port).
		RuntimePath(t.TempDir()).
		DataPath(t.TempDir()))
	require.NoError(t, epg.Start())
	t.Cleanup(func() { epg.Stop() })

	db, err := sql.Open("postgres", fmt.Sprintf(
		"host=localhost port=%d user=postgres password=postgres dbname=gameparty sslmode=disable", port))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.Ping())

	store := NewResultStore(db)
	require.NoError(t, store.EnsureSchema(context.Background()))
	return store
}

func TestRecordAndListWinners(t *testing.T) {
	store := newResultStore(t)
	ctx := context.Background()

	for i, winner := range []string{"alice", "bob", "carol"} {
		require.NoError(t, store.RecordWinner(ctx, fmt.Sprintf("AB%d", i), winner, 3))
		time.Sleep(5 * time.Millisecond) // distinct spun_at ordering
	}

	recent, err := store.RecentWinners(ctx, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "carol", recent[0].Winner, "newest first")
	assert.Equal(t, "bob", recent[1].Winner)

	all, err := store.RecentWinners(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestRecentWinnersEmptyTable(t *testing.T) {
	store := newResultStore(t)

	recent, err := store.RecentWinners(context.Background(), 5)
	require.NoError(t, err)
	assert.Empty(t, recent)
}
