package generate

import (
	"context"
	"fmt"
	"time"

	"github.com/jonesrussell/gopost/internal/domain"
	"github.com/jonesrussell/gopost/internal/logger"
	"github.com/jonesrussell/gopost/internal/metrics"
	"github.com/jonesrussell/gopost/internal/notify"
)

// DefaultApprovalLeadTime is how far ahead auto-approved content is scheduled.
const DefaultApprovalLeadTime = time.Hour

// ContentStore is the slice of the content repository the coordinator needs.
type ContentStore interface {
	GetByID(ctx context.Context, id string) (*domain.Content, error)
	Update(ctx context.Context, c *domain.Content) error
}

// ClientStore loads the owning client for voice and auto-post settings.
type ClientStore interface {
	GetByID(ctx context.Context, id string) (*domain.Client, error)
}

// JobStore enqueues follow-up work.
type JobStore interface {
	Enqueue(ctx context.Context, job *domain.Job) error
}

// Coordinator drives one generation pass: load, generate with a deadline,
// persist the result and route the content to review or straight to
// publishing for auto-post clients.
type Coordinator struct {
	contents ContentStore
	clients  ClientStore
	jobs     JobStore

	generator Generator
	notifier  notify.Notifier
	metrics   *metrics.Metrics
	logger    logger.Logger

	timeout time.Duration
}

// NewCoordinator creates a generation coordinator.
func NewCoordinator(
	contents ContentStore,
	clients ClientStore,
	jobs JobStore,
	generator Generator,
	notifier notify.Notifier,
	m *metrics.Metrics,
	log logger.Logger,
	timeout time.Duration,
) *Coordinator {
	return &Coordinator{
		contents:  contents,
		clients:   clients,
		jobs:      jobs,
		generator: generator,
		notifier:  notifier,
		metrics:   m,
		logger:    log,
		timeout:   timeout,
	}
}

// Run generates copy for the content item. Only Draft and Retrying content
// is eligible; anything else means a stale or duplicate job and is reported
// as an invalid transition by the state machine.
//
// Generation runs at most once per trigger. On generator failure the error
// is recorded on the content and it moves to Failed; the reviewer-driven
// reject loop is the only automated way to another draft.
func (c *Coordinator) Run(ctx context.Context, contentID, feedback string) error {
	content, err := c.contents.GetByID(ctx, contentID)
	if err != nil {
		return fmt.Errorf("load content: %w", err)
	}

	if content.Status != domain.StatusDraft && content.Status != domain.StatusRetrying {
		return &domain.TransitionError{ContentID: content.ID, From: content.Status, To: domain.StatusPendingApproval}
	}

	client, err := c.clients.GetByID(ctx, content.ClientID)
	if err != nil {
		return fmt.Errorf("load client: %w", err)
	}

	genCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	started := time.Now()
	result, genErr := c.generator.GenerateCaption(genCtx, CaptionRequest{
		Client:   client,
		Content:  content,
		Feedback: feedback,
	})
	c.metrics.GenerationDuration.Observe(time.Since(started).Seconds())

	if genErr != nil {
		c.metrics.GenerationRuns.WithLabelValues("failure").Inc()
		return c.failContent(ctx, content, genErr)
	}
	c.metrics.GenerationRuns.WithLabelValues("success").Inc()

	content.SetGenerated(result.Caption, result.Hashtags, result.CTA, result.Variants)
	c.attachImage(genCtx, client, content)

	if client.AutoPost {
		return c.autoApprove(ctx, content)
	}
	return c.sendToReview(ctx, content)
}

// sendToReview moves generated content into the approval queue.
func (c *Coordinator) sendToReview(ctx context.Context, content *domain.Content) error {
	if err := content.TransitionTo(domain.StatusPendingApproval); err != nil {
		return err
	}
	if err := c.contents.Update(ctx, content); err != nil {
		return fmt.Errorf("persist generated content: %w", err)
	}
	c.metrics.StatusTransitions.WithLabelValues(string(domain.StatusPendingApproval)).Inc()

	c.notifier.Notify(ctx, notify.Event{
		Kind:      notify.KindPendingApproval,
		ContentID: content.ID,
		ClientID:  content.ClientID,
		Detail:    map[string]string{"topic": content.Topic},
	})

	c.logger.Info("Content awaiting approval",
		logger.String("content_id", content.ID),
		logger.String("client_id", content.ClientID),
	)
	return nil
}

// autoApprove skips review for auto-post clients: the content is approved,
// scheduled one lead time out and a publish job is queued for that moment.
func (c *Coordinator) autoApprove(ctx context.Context, content *domain.Content) error {
	scheduledAt := time.Now().UTC().Add(DefaultApprovalLeadTime)
	content.ScheduledAt = &scheduledAt

	if err := content.TransitionTo(domain.StatusApproved); err != nil {
		return err
	}
	if err := c.contents.Update(ctx, content); err != nil {
		return fmt.Errorf("persist auto-approved content: %w", err)
	}
	c.metrics.StatusTransitions.WithLabelValues(string(domain.StatusApproved)).Inc()

	if err := c.jobs.Enqueue(ctx, domain.NewJob(content.ID, domain.JobPublish, scheduledAt)); err != nil {
		return fmt.Errorf("enqueue publish job: %w", err)
	}

	c.logger.Info("Content auto-approved",
		logger.String("content_id", content.ID),
		logger.Time("scheduled_at", scheduledAt),
	)
	return nil
}

// attachImage asks an image-capable generator for a visual when the content
// has none. Best effort: a failure is logged and the pass continues.
func (c *Coordinator) attachImage(ctx context.Context, client *domain.Client, content *domain.Content) {
	imager, ok := c.generator.(ImageGenerator)
	if !ok || len(content.MediaURLs) > 0 {
		return
	}

	url, err := imager.GenerateImage(ctx, ImageRequest{Client: client, Content: content})
	if err != nil {
		c.logger.Warn("Image generation failed, continuing without media",
			logger.String("content_id", content.ID),
			logger.Error(err),
		)
		return
	}
	if url != "" {
		content.MediaURLs = append(content.MediaURLs, url)
	}
}

// failContent records the generator error and parks the content in Failed.
func (c *Coordinator) failContent(ctx context.Context, content *domain.Content, genErr error) error {
	msg := genErr.Error()
	content.ErrorMessage = &msg

	if err := content.TransitionTo(domain.StatusFailed); err != nil {
		return err
	}
	if err := c.contents.Update(ctx, content); err != nil {
		return fmt.Errorf("persist failed content: %w", err)
	}
	c.metrics.StatusTransitions.WithLabelValues(string(domain.StatusFailed)).Inc()

	c.logger.Error("Generation failed",
		logger.String("content_id", content.ID),
		logger.Error(genErr),
	)
	return fmt.Errorf("generate caption: %w", genErr)
}

// Abandon parks content in Failed when the job layer gave up before the
// generator ever answered (lease churn, store outages).
func (c *Coordinator) Abandon(ctx context.Context, contentID, reason string) error {
	content, err := c.contents.GetByID(ctx, contentID)
	if err != nil {
		return fmt.Errorf("load content: %w", err)
	}
	if content.Status == domain.StatusFailed {
		return nil
	}

	content.ErrorMessage = &reason
	if err := content.TransitionTo(domain.StatusFailed); err != nil {
		return err
	}
	if err := c.contents.Update(ctx, content); err != nil {
		return fmt.Errorf("persist abandoned content: %w", err)
	}
	c.metrics.StatusTransitions.WithLabelValues(string(domain.StatusFailed)).Inc()
	return nil
}
