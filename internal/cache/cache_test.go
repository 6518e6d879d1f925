package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryEvictsLeastRecentlyUsed(t *testing.T) {
	ctx := context.Background()
	m, err := NewMemory(2)
	require.NoError(t, err)

	require.NoError(t, m.Set(ctx, "a", []byte("1")))
	require.NoError(t, m.Set(ctx, "b", []byte("2")))
	_, ok, _ := m.Get(ctx, "a")
	require.True(t, ok)
	require.NoError(t, m.Set(ctx, "c", []byte("3")))

	_, ok, _ = m.Get(ctx, "b")
	assert.False(t, ok, "b should have been evicted")
	v, ok, err := m.Get(ctx, "a")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("1"), v)
	assert.Equal(t, 2, m.Len())

	require.NoError(t, m.Purge(ctx))
	assert.Equal(t, 0, m.Len())
}

func TestNewMemoryClampsSize(t *testing.T) {
	m, err := NewMemory(0)
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, m.Set(ctx, "a", nil))
	require.NoError(t, m.Set(ctx, "b", nil))
	assert.Equal(t, 1, m.Len())
}

type point struct {
	X, Y int
}

func TestJSONHelpers(t *testing.T) {
	ctx := context.Background()
	m, err := NewMemory(4)
	require.NoError(t, err)

	var got point
	ok, err := GetJSON(ctx, m, "p", &got)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, SetJSON(ctx, m, "p", point{1, 2}))
	ok, err = GetJSON(ctx, m, "p", &got)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, point{1, 2}, got)

	require.NoError(t, m.Set(ctx, "broken", []byte("{")))
	ok, err = GetJSON(ctx, m, "broken", &got)
	assert.Error(t, err)
	assert.False(t, ok)
}

func TestNewRedisUnavailable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := NewRedis(ctx, "127.0.0.1:1", 0, time.Minute)
	require.Error(t, err)
	assert.True(t, IsUnavailable(err))
	assert.Contains(t, err.Error(), "redis is unavailable")
}

func TestIsUnavailable(t *testing.T) {
	base := errors.New("dial tcp: refused")
	assert.True(t, IsUnavailable(&UnavailableError{Err: base}))
	assert.ErrorIs(t, &UnavailableError{Err: base}, base)
	assert.False(t, IsUnavailable(base))
}
