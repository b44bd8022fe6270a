//go:build redis_integration

package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisIntegration(t *testing.T) {
	url := os.Getenv("REDIS_URL")
	if url == "" {
		t.Skip("REDIS_URL not set")
	}
	ctx := context.Background()
	c, err := NewRedis(ctx, url, "edgeplace-test:", time.Minute, 5*time.Second)
	require.NoError(t, err)
	defer c.Close()

	key, _ := KeyOf("integration", time.Now().UnixNano())
	_, err = c.Get(ctx, key)
	assert.ErrorIs(t, err, ErrMiss)
	require.NoError(t, c.Put(ctx, key, []byte("payload")))
	got, err := c.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, []byte("payload"), got)
	require.NoError(t, c.Invalidate(ctx, key))
	_, err = c.Get(ctx, key)
	assert.ErrorIs(t, err, ErrMiss)
}

func TestRedisConnectGivesUp(t *testing.T) {
	_, err := NewRedis(context.Background(), "redis://127.0.0.1:1/0", "x:", 0, 300*time.Millisecond)
	assert.Error(t, err)
}
