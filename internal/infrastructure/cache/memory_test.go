package cache_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spendlens/spendlens-backend/internal/infrastructure/cache"
)

func TestMemory(t *testing.T) {
	ctx := context.Background()

	t.Run("set then get", func(t *testing.T) {
		m := cache.NewMemory()

		require.NoError(t, m.Set(ctx, "k", "v", time.Minute))

		got, ok := m.Get(ctx, "k")
		assert.True(t, ok)
		assert.Equal(t, "v", got)
	})

	t.Run("missing key", func(t *testing.T) {
		m := cache.NewMemory()

		_, ok := m.Get(ctx, "nope")
		assert.False(t, ok)
	})

	t.Run("expired entries are not returned", func(t *testing.T) {
		m := cache.NewMemory()

		require.NoError(t, m.Set(ctx, "k", "v", time.Nanosecond))
		time.Sleep(5 * time.Millisecond)

		_, ok := m.Get(ctx, "k")
		assert.False(t, ok)
	})

	t.Run("zero ttl never expires", func(t *testing.T) {
		m := cache.NewMemory()

		require.NoError(t, m.Set(ctx, "k", "v", 0))

		_, ok := m.Get(ctx, "k")
		assert.True(t, ok)
	})

	t.Run("del removes keys", func(t *testing.T) {
		m := cache.NewMemory()

		require.NoError(t, m.Set(ctx, "a", "1", time.Minute))
		require.NoError(t, m.Set(ctx, "b", "2", time.Minute))
		require.NoError(t, m.Del(ctx, "a", "b"))

		_, ok := m.Get(ctx, "a")
		assert.False(t, ok)
		assert.Zero(t, m.Size())
	})

	t.Run("overwrite replaces the value", func(t *testing.T) {
		m := cache.NewMemory()

		require.NoError(t, m.Set(ctx, "k", "old", time.Minute))
		require.NoError(t, m.Set(ctx, "k", "new", time.Minute))

		got, _ := m.Get(ctx, "k")
		assert.Equal(t, "new", got)
	})
}

func TestKeys(t *testing.T) {
	assert.Equal(t, "patterns:all", cache.KeyPatternsAll())
	assert.Equal(t, "patterns:merchant:m-1", cache.KeyPatternsByMerchant("m-1"))
	assert.Equal(t, "merchant:m-1", cache.KeyMerchant("m-1"))
	assert.Equal(t, "merchant:resolve:NETFLIX.COM", cache.KeyMerchantNormalization("NETFLIX.COM"))
	assert.Equal(t, "transaction:t-1", cache.KeyTransaction("t-1"))
	assert.Equal(t, "merchant:rules:all", cache.KeyRulesAll())
}
