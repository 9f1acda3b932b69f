package worker_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/gopost/internal/worker"
)

func newLeaseClient(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, client
}

func TestContentLease_AcquireRelease(t *testing.T) {
	_, client := newLeaseClient(t)
	ctx := context.Background()
	lease := worker.NewContentLease(client, time.Minute)

	acquired, err := lease.Acquire(ctx, "content-1")
	require.NoError(t, err)
	assert.True(t, acquired)

	// Second acquire on the same content is refused while held.
	acquired, err = lease.Acquire(ctx, "content-1")
	require.NoError(t, err)
	assert.False(t, acquired)

	// A different content item is independent.
	acquired, err = lease.Acquire(ctx, "content-2")
	require.NoError(t, err)
	assert.True(t, acquired)

	require.NoError(t, lease.Release(ctx, "content-1"))

	acquired, err = lease.Acquire(ctx, "content-1")
	require.NoError(t, err)
	assert.True(t, acquired)
}

func TestContentLease_OtherInstanceIsBlocked(t *testing.T) {
	_, client := newLeaseClient(t)
	ctx := context.Background()

	first := worker.NewContentLease(client, time.Minute)
	second := worker.NewContentLease(client, time.Minute)

	acquired, err := first.Acquire(ctx, "content-1")
	require.NoError(t, err)
	require.True(t, acquired)

	acquired, err = second.Acquire(ctx, "content-1")
	require.NoError(t, err)
	assert.False(t, acquired)

	// Releasing someone else's lease must not free it.
	require.NoError(t, second.Release(ctx, "content-1"))

	acquired, err = second.Acquire(ctx, "content-1")
	require.NoError(t, err)
	assert.False(t, acquired, "owner check must keep the lease intact")
}

func TestContentLease_ExpiresWithTTL(t *testing.T) {
	mr, client := newLeaseClient(t)
	ctx := context.Background()
	lease := worker.NewContentLease(client, time.Minute)

	acquired, err := lease.Acquire(ctx, "content-1")
	require.NoError(t, err)
	require.True(t, acquired)

	mr.FastForward(2 * time.Minute)

	acquired, err = lease.Acquire(ctx, "content-1")
	require.NoError(t, err)
	assert.True(t, acquired, "expired lease is free to take")
}
