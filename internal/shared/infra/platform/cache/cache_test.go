package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryCache_SetGetDelete(t *testing.T) {
	// Arrange
	c := NewInMemoryCache(time.Minute, 0)
	defer c.Stop()
	ctx := context.Background()

	// Act
	require.NoError(t, c.Set(ctx, "k", map[string]int{"a": 1}, 0))

	// Assert
	var got map[string]int
	hit, err := c.Get(ctx, "k", &got)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, map[string]int{"a": 1}, got)

	require.NoError(t, c.Delete(ctx, "k"))
	hit, _ = c.Get(ctx, "k", &got)
	assert.False(t, hit)
}

func TestInMemoryCache_Expired(t *testing.T) {
	c := NewInMemoryCache(time.Nanosecond, 0)
	ctx := context.Background()
	require.NoError(t, c.Set(ctx, "k", "v", 0))

	time.Sleep(time.Millisecond)

	var got string
	hit, err := c.Get(ctx, "k", &got)
	assert.NoError(t, err)
	assert.False(t, hit, "una clave expirada cuenta como miss")
	assert.Zero(t, c.Len(), "y se borra al leerla")
}

func TestInMemoryCache_PurgeExpired(t *testing.T) {
	c := NewInMemoryCache(time.Minute, 0)
	ctx := context.Background()
	require.NoError(t, c.Set(ctx, "viva", 1, 0))
	require.NoError(t, c.Set(ctx, "caduca", 2, 1))

	n := c.purgeExpired(time.Now().UTC().Add(2 * time.Second))

	assert.Equal(t, 1, n)
	assert.Equal(t, 1, c.Len())
}

func TestQueryKey_StableForEquivalentMaps(t *testing.T) {
	a, err := QueryKey("task:list", map[string]any{"$limit": "10", "$sort": "title"})
	require.NoError(t, err)
	b, err := QueryKey("task:list", map[string]any{"$sort": "title", "$limit": "10"})
	require.NoError(t, err)
	c, err := QueryKey("task:list", map[string]any{"$limit": "11"})
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Contains(t, a, "task:list:")
}

func TestGeneration(t *testing.T) {
	c := NewInMemoryCache(time.Minute, 0)
	ctx := context.Background()

	first := Generation(ctx, c, "gen")
	assert.Equal(t, first, Generation(ctx, c, "gen"))

	bumped := Bump(ctx, c, "gen")
	assert.NotEqual(t, first, bumped)
	assert.Equal(t, bumped, Generation(ctx, c, "gen"))
}
