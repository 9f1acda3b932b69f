// Package recycle periodically derives fresh drafts from content that
// performed well and has aged past the cooldown window.
package recycle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jonesrussell/gopost/internal/domain"
	"github.com/jonesrussell/gopost/internal/logger"
	"github.com/jonesrussell/gopost/internal/metrics"
	"github.com/jonesrussell/gopost/internal/notify"
)

// ContentStore is the slice of the content repository the sweeper needs.
type ContentStore interface {
	ListRecyclable(ctx context.Context, cooldown time.Duration, limit int) ([]domain.Content, error)
	Create(ctx context.Context, c *domain.Content) error
}

// QuotaGate reserves post slots; recycled drafts are billable like any other.
type QuotaGate interface {
	Reserve(ctx context.Context, clientID string) error
	Release(ctx context.Context, clientID string) error
}

// JobStore enqueues generation work for the derived drafts.
type JobStore interface {
	Enqueue(ctx context.Context, job *domain.Job) error
}

// Sweeper runs the recycling pass.
type Sweeper struct {
	contents ContentStore
	quota    QuotaGate
	jobs     JobStore

	notifier notify.Notifier
	metrics  *metrics.Metrics
	logger   logger.Logger

	cooldown  time.Duration
	batchSize int
}

// NewSweeper creates a recycling sweeper.
func NewSweeper(
	contents ContentStore,
	quota QuotaGate,
	jobs JobStore,
	notifier notify.Notifier,
	m *metrics.Metrics,
	log logger.Logger,
	cooldownDays, batchSize int,
) *Sweeper {
	return &Sweeper{
		contents:  contents,
		quota:     quota,
		jobs:      jobs,
		notifier:  notifier,
		metrics:   m,
		logger:    log,
		cooldown:  time.Duration(cooldownDays) * 24 * time.Hour,
		batchSize: batchSize,
	}
}

// RunOnce performs a single sweep and returns how many drafts were derived.
// Candidates whose client is out of quota are skipped, not failed; the next
// sweep after the monthly reset picks them up again. The original content is
// never touched.
func (s *Sweeper) RunOnce(ctx context.Context) (int, error) {
	candidates, err := s.contents.ListRecyclable(ctx, s.cooldown, s.batchSize)
	if err != nil {
		return 0, fmt.Errorf("list recyclable content: %w", err)
	}

	recycled := 0
	for i := range candidates {
		original := &candidates[i]
		if err := s.recycleOne(ctx, original); err != nil {
			if errors.Is(err, domain.ErrQuotaExceeded) || errors.Is(err, domain.ErrClientInactive) {
				s.logger.Debug("Skipping recycle candidate",
					logger.String("content_id", original.ID),
					logger.Error(err),
				)
				continue
			}
			s.logger.Error("Failed to recycle content",
				logger.String("content_id", original.ID),
				logger.Error(err),
			)
			continue
		}
		recycled++
	}

	s.logger.Info("Recycling sweep finished",
		logger.Int("candidates", len(candidates)),
		logger.Int("recycled", recycled),
	)
	return recycled, nil
}

func (s *Sweeper) recycleOne(ctx context.Context, original *domain.Content) error {
	if err := s.quota.Reserve(ctx, original.ClientID); err != nil {
		return err
	}

	derived, err := domain.NewRecycledContent(original)
	if err != nil {
		s.releaseQuota(ctx, original.ClientID)
		return fmt.Errorf("derive recycled draft: %w", err)
	}

	if err := s.contents.Create(ctx, derived); err != nil {
		s.releaseQuota(ctx, original.ClientID)
		return fmt.Errorf("create recycled draft: %w", err)
	}

	if err := s.jobs.Enqueue(ctx, domain.NewJob(derived.ID, domain.JobGenerate, time.Now().UTC())); err != nil {
		return fmt.Errorf("enqueue generate job: %w", err)
	}

	s.metrics.ContentRecycled.Inc()
	s.notifier.Notify(ctx, notify.Event{
		Kind:      notify.KindRecycled,
		ContentID: derived.ID,
		ClientID:  derived.ClientID,
		Detail:    map[string]string{"recycled_from": original.ID},
	})

	s.logger.Info("Content recycled",
		logger.String("content_id", derived.ID),
		logger.String("recycled_from", original.ID),
	)
	return nil
}

func (s *Sweeper) releaseQuota(ctx context.Context, clientID string) {
	if err := s.quota.Release(ctx, clientID); err != nil {
		s.logger.Warn("Failed to release quota slot",
			logger.String("client_id", clientID),
			logger.Error(err),
		)
	}
}
