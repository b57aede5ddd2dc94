package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryMarkerExpires(t *testing.T) {
	m := NewMemoryMarker()
	now := time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }

	ok, err := m.MarkOnce(context.Background(), "e1@2026-10-19", time.Hour)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, _ = m.MarkOnce(context.Background(), "e1@2026-10-19", time.Hour)
	assert.False(t, ok)

	now = now.Add(2 * time.Hour)
	ok, _ = m.MarkOnce(context.Background(), "e1@2026-10-19", time.Hour)
	assert.True(t, ok)

	require.NoError(t, m.Unmark(context.Background(), "e1@2026-10-19"))
	ok, _ = m.MarkOnce(context.Background(), "e1@2026-10-19", time.Hour)
	assert.True(t, ok)
}

func TestRedisMarker(t *testing.T) {
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	m := NewRedisMarker(client, "test:")
	ok, err := m.MarkOnce(context.Background(), "k", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, srv.Exists("test:k"))

	ok, err = m.MarkOnce(context.Background(), "k", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	srv.FastForward(2 * time.Minute)
	ok, err = m.MarkOnce(context.Background(), "k", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, m.Unmark(context.Background(), "k"))
	assert.False(t, srv.Exists("test:k"))
	ok, err = m.MarkOnce(context.Background(), "k", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}
