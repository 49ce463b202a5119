package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIdempotencyStore(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx := context.Background()

	client, err := Connect(ctx, "redis://"+mr.Addr())
	require.NoError(t, err)
	defer client.Close()

	store := NewIdempotencyStore(client)

	val, err := store.Get(ctx, "missing")
	require.NoError(t, err)
	assert.Empty(t, val)

	require.NoError(t, store.Set(ctx, "k", `{"status":201}`, time.Minute))
	val, err = store.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, `{"status":201}`, val)

	mr.FastForward(2 * time.Minute)
	val, err = store.Get(ctx, "k")
	require.NoError(t, err)
	assert.Empty(t, val)
}

func TestConnectRejectsBadURL(t *testing.T) {
	_, err := Connect(context.Background(), "not a url")
	assert.Error(t, err)
}
