package activity

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
)

func newPostgresStore(t *testing.T) *PostgresStore {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping Postgres integration test in short mode")
	}

	ctx := context.Background()
	ctr, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("activity"),
		postgres.WithUsername("bridge"),
		postgres.WithPassword("bridge"),
		postgres.BasicWaitStrategies(),
	)
	testcontainers.CleanupContainer(t, ctr)
	require.NoError(t, err)

	dsn, err := ctr.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	store, err := NewPostgresStore(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(store.Close)

	require.NoError(t, store.Migrate(ctx))
	// Migrations are idempotent.
	require.NoError(t, store.Migrate(ctx))
	return store
}

func TestPostgresStore_RecordAndList(t *testing.T) {
	store := newPostgresStore(t)
	ctx := context.Background()

	base := time.Now().UTC().Truncate(time.Millisecond)
	older := NewEvent("acct", ActionFollow, "77", "")
	older.OccurredAt = base.Add(-time.Minute)
	newer := NewEvent("acct", ActionComment, "9_1", "hi")
	newer.OccurredAt = base
	other := NewEvent("someone-else", ActionLike, "9_1", "")

	for _, e := range []Event{older, newer, other} {
		require.NoError(t, store.Record(ctx, e))
	}
	// Duplicate ids are ignored.
	require.NoError(t, store.Record(ctx, newer))

	events, err := store.List(ctx, "acct", 10)
	require.NoError(t, err)
	require.Len(t, events, 2)

	assert.Equal(t, newer.ID, events[0].ID)
	assert.Equal(t, ActionComment, events[0].Action)
	assert.Equal(t, "hi", events[0].Text)
	assert.WithinDuration(t, newer.OccurredAt, events[0].OccurredAt, time.Millisecond)
	assert.Equal(t, older.ID, events[1].ID)
}

func TestPostgresStore_ListLimit(t *testing.T) {
	store := newPostgresStore(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, store.Record(ctx, NewEvent("acct", ActionLike, "m", "")))
	}

	events, err := store.List(ctx, "acct", 3)
	require.NoError(t, err)
	assert.Len(t, events, 3)

	events, err = store.List(ctx, "acct", 0)
	require.NoError(t, err)
	assert.Len(t, events, 5)

	events, err = store.List(ctx, "nobody", 10)
	require.NoError(t, err)
	assert.Empty(t, events)
}
