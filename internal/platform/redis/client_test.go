package redis

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"phonecheck/internal/platform/config"
)

func TestOptions(t *testing.T) {
	t.Run("applies tuning", func(t *testing.T) {
		opts, err := Options(config.RedisConfig{
			URL:         "redis://:secret@cache:6380/2",
			PoolSize:    25,
			ReadTimeout: 2 * time.Second,
		})
		require.NoError(t, err)
		assert.Equal(t, "cache:6380", opts.Addr)
		assert.Equal(t, "secret", opts.Password)
		assert.Equal(t, 2, opts.DB)
		assert.Equal(t, 25, opts.PoolSize)
		assert.Equal(t, 2*time.Second, opts.ReadTimeout)
		assert.Zero(t, opts.WriteTimeout)
	})

	t.Run("rejects bad url", func(t *testing.T) {
		_, err := Options(config.RedisConfig{URL: "http://cache"})
		assert.Error(t, err)
	})
}

func TestOpenWithoutURL(t *testing.T) {
	c, err := Open(context.Background(), config.RedisConfig{})
	require.NoError(t, err)
	assert.Nil(t, c)
}
