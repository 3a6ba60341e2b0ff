package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisDedupStore(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx := context.Background()

	client, err := Connect(ctx, mr.Addr())
	require.NoError(t, err)
	defer client.Close()

	store := NewRedisDedupStore(client, "mail:completed:", 24*time.Hour)

	ok, err := store.Claim(ctx, "order-1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.Claim(ctx, "order-1")
	require.NoError(t, err)
	assert.False(t, ok, "second claim inside the window")
	assert.True(t, mr.Exists("mail:completed:order-1"))

	mr.FastForward(25 * time.Hour)
	ok, err = store.Claim(ctx, "order-1")
	require.NoError(t, err)
	assert.True(t, ok, "window expired")

	require.NoError(t, store.Release(ctx, "order-1"))
	ok, err = store.Claim(ctx, "order-1")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestConnect_URL(t *testing.T) {
	mr := miniredis.RunT(t)

	client, err := Connect(context.Background(), "redis://"+mr.Addr()+"/0")
	require.NoError(t, err)
	assert.NoError(t, client.Close())

	_, err = Connect(context.Background(), "redis://%zz")
	assert.Error(t, err)
}
