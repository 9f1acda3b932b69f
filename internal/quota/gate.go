// Package quota enforces per-client monthly posting limits.
package quota

import (
	"context"
	"errors"

	"github.com/jonesrussell/gopost/internal/domain"
	"github.com/jonesrussell/gopost/internal/logger"
	"github.com/jonesrussell/gopost/internal/metrics"
)

// Reserver is the storage-side quota operation the gate depends on.
// *database.ClientRepository satisfies it.
type Reserver interface {
	TryReserveQuota(ctx context.Context, clientID string) error
	ReleaseQuota(ctx context.Context, clientID string) error
}

// Gate is the single entry point for consuming post slots. Every path that
// creates billable content (submission, recycling) reserves through it;
// nothing else touches posts_this_month.
type Gate struct {
	clients Reserver
	metrics *metrics.Metrics
	logger  logger.Logger
}

// NewGate creates a quota gate.
func NewGate(clients Reserver, m *metrics.Metrics, log logger.Logger) *Gate {
	return &Gate{
		clients: clients,
		metrics: m,
		logger:  log,
	}
}

// Reserve claims one post slot for the client. On denial it returns a
// *domain.QuotaError (matching ErrQuotaExceeded), domain.ErrClientInactive,
// or domain.ErrNotFound. Reserve never partially succeeds: either the slot
// is claimed or the client's counter is untouched.
func (g *Gate) Reserve(ctx context.Context, clientID string) error {
	err := g.clients.TryReserveQuota(ctx, clientID)
	if err == nil {
		return nil
	}

	if errors.Is(err, domain.ErrQuotaExceeded) {
		g.metrics.QuotaDenials.Inc()
		var quotaErr *domain.QuotaError
		if errors.As(err, &quotaErr) {
			g.logger.Info("Quota denied",
				logger.String("client_id", clientID),
				logger.Int("used", quotaErr.Used),
				logger.Int("limit", quotaErr.Limit),
			)
		}
	}
	return err
}

// Release returns a slot claimed by Reserve. Only used when the draft could
// not be created after the reservation; consumed slots are never refunded
// for content that later fails or is rejected.
func (g *Gate) Release(ctx context.Context, clientID string) error {
	return g.clients.ReleaseQuota(ctx, clientID)
}
