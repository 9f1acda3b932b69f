// Package approval implements the human review step between generation and
// publishing, including the bounded regenerate-on-reject loop.
package approval

import (
	"context"
	"fmt"
	"time"

	"github.com/jonesrussell/gopost/internal/domain"
	"github.com/jonesrussell/gopost/internal/logger"
	"github.com/jonesrussell/gopost/internal/metrics"
	"github.com/jonesrussell/gopost/internal/notify"
)

// DefaultLeadTime is the scheduling offset applied when an approval does not
// name a time.
const DefaultLeadTime = time.Hour

// ContentStore is the slice of the content repository the gateway needs.
type ContentStore interface {
	GetByID(ctx context.Context, id string) (*domain.Content, error)
	Update(ctx context.Context, c *domain.Content) error
}

// JobStore enqueues follow-up work.
type JobStore interface {
	Enqueue(ctx context.Context, job *domain.Job) error
}

// Regenerator reruns generation with reviewer feedback.
// *generate.Coordinator satisfies it.
type Regenerator interface {
	Run(ctx context.Context, contentID, feedback string) error
}

// Gateway applies reviewer decisions to content.
type Gateway struct {
	contents ContentStore
	jobs     JobStore

	regenerator Regenerator
	notifier    notify.Notifier
	metrics     *metrics.Metrics
	logger      logger.Logger

	leadTime   time.Duration
	retryDelay time.Duration
}

// NewGateway creates an approval gateway. leadTime defaults the publish
// schedule on approval; retryDelay spaces a rejection from its regeneration.
func NewGateway(
	contents ContentStore,
	jobs JobStore,
	regenerator Regenerator,
	notifier notify.Notifier,
	m *metrics.Metrics,
	log logger.Logger,
	leadTime, retryDelay time.Duration,
) *Gateway {
	if leadTime <= 0 {
		leadTime = DefaultLeadTime
	}
	return &Gateway{
		contents:    contents,
		jobs:        jobs,
		regenerator: regenerator,
		notifier:    notifier,
		metrics:     m,
		logger:      log,
		leadTime:    leadTime,
		retryDelay:  retryDelay,
	}
}

// Approve accepts content waiting for review and queues it for publishing.
// A nil scheduledAt defaults to one lead time from now; approval always
// clears any earlier rejection reason.
func (g *Gateway) Approve(ctx context.Context, contentID string, scheduledAt *time.Time) (*domain.Content, error) {
	content, err := g.contents.GetByID(ctx, contentID)
	if err != nil {
		return nil, fmt.Errorf("load content: %w", err)
	}

	// Only content waiting for review is approvable here. The transition
	// table also allows Draft -> Approved, but that edge belongs to the
	// auto-post generation path, not to a reviewer decision.
	if content.Status != domain.StatusPendingApproval {
		return nil, &domain.TransitionError{ContentID: content.ID, From: content.Status, To: domain.StatusApproved}
	}

	if scheduledAt == nil {
		t := time.Now().UTC().Add(g.leadTime)
		scheduledAt = &t
	}
	content.ScheduledAt = scheduledAt
	content.RejectionReason = nil

	if err := content.TransitionTo(domain.StatusApproved); err != nil {
		return nil, err
	}
	if err := g.contents.Update(ctx, content); err != nil {
		return nil, fmt.Errorf("persist approval: %w", err)
	}
	g.metrics.StatusTransitions.WithLabelValues(string(domain.StatusApproved)).Inc()

	// The fan-out runs right away; the scheduled time rides along to the
	// platform scheduler.
	if err := g.jobs.Enqueue(ctx, domain.NewJob(content.ID, domain.JobPublish, time.Now().UTC())); err != nil {
		return nil, fmt.Errorf("enqueue publish job: %w", err)
	}

	g.logger.Info("Content approved",
		logger.String("content_id", content.ID),
		logger.Time("scheduled_at", *scheduledAt),
	)
	return content, nil
}

// Reject sends content back with a reason. While the retry budget lasts, a
// regeneration job is queued; at the cap the content stays Rejected for
// manual handling and a retries-exhausted notification goes out. The reason
// is mandatory because it becomes the feedback for the next draft.
func (g *Gateway) Reject(ctx context.Context, contentID, reason string) (*domain.Content, error) {
	if reason == "" {
		return nil, domain.ErrRejectionReasonRequired
	}

	content, err := g.contents.GetByID(ctx, contentID)
	if err != nil {
		return nil, fmt.Errorf("load content: %w", err)
	}

	content.RejectionReason = &reason
	content.RetryCount++

	if err := content.TransitionTo(domain.StatusRejected); err != nil {
		return nil, err
	}
	if err := g.contents.Update(ctx, content); err != nil {
		return nil, fmt.Errorf("persist rejection: %w", err)
	}
	g.metrics.StatusTransitions.WithLabelValues(string(domain.StatusRejected)).Inc()

	if !content.ShouldRetry() {
		g.notifier.Notify(ctx, notify.Event{
			Kind:      notify.KindRetriesExhausted,
			ContentID: content.ID,
			ClientID:  content.ClientID,
			Detail:    map[string]string{"reason": reason},
		})
		g.logger.Warn("Rejection retries exhausted",
			logger.String("content_id", content.ID),
			logger.Int("retry_count", content.RetryCount),
		)
		return content, nil
	}

	runAt := time.Now().UTC().Add(g.retryDelay)
	if err := g.jobs.Enqueue(ctx, domain.NewJob(content.ID, domain.JobRegenerate, runAt)); err != nil {
		return nil, fmt.Errorf("enqueue regenerate job: %w", err)
	}

	g.logger.Info("Content rejected, regeneration queued",
		logger.String("content_id", content.ID),
		logger.String("reason", reason),
		logger.Int("retry_count", content.RetryCount),
	)
	return content, nil
}

// Regenerate runs one pass of the reject feedback loop: Rejected content is
// moved to Retrying and re-generated with the rejection reason as feedback.
// Called by the job worker.
func (g *Gateway) Regenerate(ctx context.Context, contentID string) error {
	content, err := g.contents.GetByID(ctx, contentID)
	if err != nil {
		return fmt.Errorf("load content: %w", err)
	}

	feedback := ""
	if content.RejectionReason != nil {
		feedback = *content.RejectionReason
	}

	switch content.Status {
	case domain.StatusRetrying:
		// An earlier pass persisted the transition but generation did not
		// finish. Pick up where it left off instead of reporting the job
		// overtaken, which would strand the content in Retrying.
	case domain.StatusRejected:
		if content.IsRetryExhausted() {
			return fmt.Errorf("content %s: %w", content.ID, domain.ErrRetriesExhausted)
		}
		if err := content.TransitionTo(domain.StatusRetrying); err != nil {
			return err
		}
		if err := g.contents.Update(ctx, content); err != nil {
			return fmt.Errorf("persist retrying state: %w", err)
		}
		g.metrics.StatusTransitions.WithLabelValues(string(domain.StatusRetrying)).Inc()
	default:
		return &domain.TransitionError{ContentID: content.ID, From: content.Status, To: domain.StatusRetrying}
	}

	return g.regenerator.Run(ctx, contentID, feedback)
}

// PublishNow pushes content out immediately. Pending content is approved with
// the schedule set to now; content already Approved (an auto-post draft
// waiting out its lead time) is rescheduled to now and a fresh publish job is
// queued — the earlier scheduled job finds the content settled and completes
// as overtaken.
func (g *Gateway) PublishNow(ctx context.Context, contentID string) (*domain.Content, error) {
	content, err := g.contents.GetByID(ctx, contentID)
	if err != nil {
		return nil, fmt.Errorf("load content: %w", err)
	}

	now := time.Now().UTC()
	switch content.Status {
	case domain.StatusPendingApproval:
		return g.Approve(ctx, contentID, &now)

	case domain.StatusApproved:
		content.ScheduledAt = &now
		if err := g.contents.Update(ctx, content); err != nil {
			return nil, fmt.Errorf("persist schedule change: %w", err)
		}
		if err := g.jobs.Enqueue(ctx, domain.NewJob(content.ID, domain.JobPublish, now)); err != nil {
			return nil, fmt.Errorf("enqueue publish job: %w", err)
		}
		g.logger.Info("Approved content rescheduled for immediate publish",
			logger.String("content_id", content.ID),
		)
		return content, nil

	default:
		return nil, &domain.TransitionError{ContentID: content.ID, From: content.Status, To: domain.StatusApproved}
	}
}
