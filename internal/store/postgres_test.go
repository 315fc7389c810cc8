package store

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Requires a scratch database; the documents table is created if missing.
func TestPostgresRoundTrip(t *testing.T) {
	dsn := os.Getenv("TEST_DB_DSN")
	if dsn == "" {
		t.Skip("TEST_DB_DSN not set")
	}
	db, err := sqlx.Connect("postgres", dsn)
	require.NoError(t, err)
	defer db.Close()

	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS documents (
        path TEXT PRIMARY KEY,
        value JSONB NOT NULL,
        version BIGINT NOT NULL,
        updated_at TIMESTAMPTZ DEFAULT NOW()
    )`)
	require.NoError(t, err)

	ctx := context.Background()
	s := NewPostgres(db, dsn)
	defer s.Close()
	prefix := "test/" + time.Now().Format("150405.000000")
	defer s.Remove(ctx, prefix)

	changes := make(chan Change, 4)
	unsubscribe, err := s.Subscribe(ctx, prefix, func(c Change) { changes <- c })
	require.NoError(t, err)
	defer unsubscribe()

	v, err := s.CompareAndSwap(ctx, prefix+"/a", 0, []byte(`{"n":1}`))
	require.NoError(t, err)
	assert.Equal(t, uint64(1), v)

	_, err = s.CompareAndSwap(ctx, prefix+"/a", 0, []byte(`{"n":2}`))
	require.ErrorIs(t, err, ErrConflict)

	entries, err := s.List(ctx, prefix)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.JSONEq(t, `{"n":1}`, string(entries[0].Value))

	select {
	case c := <-changes:
		assert.Equal(t, prefix+"/a", c.Path)
	case <-time.After(5 * time.Second):
		t.Fatal("expected a change notification")
	}
}
