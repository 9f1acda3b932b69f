package quota_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/gopost/internal/domain"
	"github.com/jonesrussell/gopost/internal/logger"
	"github.com/jonesrussell/gopost/internal/metrics"
	"github.com/jonesrussell/gopost/internal/quota"
)

// fakeReserver mimics the conditional-update semantics of the real
// repository: at most `limit` reservations succeed, concurrently safe.
type fakeReserver struct {
	mu    sync.Mutex
	used  int
	limit int
}

func (f *fakeReserver) TryReserveQuota(_ context.Context, clientID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.used >= f.limit {
		return &domain.QuotaError{ClientID: clientID, Used: f.used, Limit: f.limit}
	}
	f.used++
	return nil
}

func (f *fakeReserver) ReleaseQuota(_ context.Context, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.used > 0 {
		f.used--
	}
	return nil
}

func TestGate_Reserve(t *testing.T) {
	reserver := &fakeReserver{limit: 2}
	gate := quota.NewGate(reserver, metrics.New(), logger.NewNopLogger())
	ctx := context.Background()

	require.NoError(t, gate.Reserve(ctx, "client-1"))
	require.NoError(t, gate.Reserve(ctx, "client-1"))

	err := gate.Reserve(ctx, "client-1")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrQuotaExceeded)

	var quotaErr *domain.QuotaError
	require.True(t, errors.As(err, &quotaErr))
	assert.Equal(t, 2, quotaErr.Used)
	assert.Equal(t, 2, quotaErr.Limit)
}

func TestGate_Reserve_ConcurrentNeverOversubscribes(t *testing.T) {
	const limit = 5
	const attempts = 50

	reserver := &fakeReserver{limit: limit}
	gate := quota.NewGate(reserver, metrics.New(), logger.NewNopLogger())

	var wg sync.WaitGroup
	var successes int64
	var mu sync.Mutex

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := gate.Reserve(context.Background(), "client-1"); err == nil {
				mu.Lock()
				successes++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.EqualValues(t, limit, successes, "exactly limit reservations must win")
	assert.Equal(t, limit, reserver.used)
}

func TestGate_Release(t *testing.T) {
	reserver := &fakeReserver{limit: 1}
	gate := quota.NewGate(reserver, metrics.New(), logger.NewNopLogger())
	ctx := context.Background()

	require.NoError(t, gate.Reserve(ctx, "client-1"))
	require.Error(t, gate.Reserve(ctx, "client-1"))

	require.NoError(t, gate.Release(ctx, "client-1"))
	require.NoError(t, gate.Reserve(ctx, "client-1"), "released slot is claimable again")
}
