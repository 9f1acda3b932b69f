package publish

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jonesrussell/gopost/internal/domain"
	"github.com/jonesrussell/gopost/internal/logger"
	"github.com/jonesrussell/gopost/internal/metrics"
	"github.com/jonesrussell/gopost/internal/notify"
)

// Outcome aggregates one fan-out: which platforms took the post and which
// did not. One success is enough to move the content forward; failures ride
// along in error_message.
type Outcome struct {
	Succeeded map[string]string
	Failed    map[string]error
}

// AnySucceeded reports whether at least one platform took the post.
func (o *Outcome) AnySucceeded() bool {
	return len(o.Succeeded) > 0
}

// ErrorSummary renders the failures as "platform: error; ..." in platform
// order, empty when everything succeeded.
func (o *Outcome) ErrorSummary() string {
	if len(o.Failed) == 0 {
		return ""
	}
	platforms := make([]string, 0, len(o.Failed))
	for platform := range o.Failed {
		platforms = append(platforms, platform)
	}
	sort.Strings(platforms)

	parts := make([]string, 0, len(platforms))
	for _, platform := range platforms {
		parts = append(parts, fmt.Sprintf("%s: %v", platform, o.Failed[platform]))
	}
	return strings.Join(parts, "; ")
}

// ContentStore is the slice of the content repository the service needs.
type ContentStore interface {
	GetByID(ctx context.Context, id string) (*domain.Content, error)
	Update(ctx context.Context, c *domain.Content) error
}

// ClientStore loads the owning client for account references.
type ClientStore interface {
	GetByID(ctx context.Context, id string) (*domain.Client, error)
}

// Service runs the publish fan-out for approved content.
type Service struct {
	contents ContentStore
	clients  ClientStore
	registry *Registry
	policy   RetryPolicy

	notifier notify.Notifier
	metrics  *metrics.Metrics
	logger   logger.Logger

	concurrency int
	timeout     time.Duration
}

// NewService creates a publish service.
func NewService(
	contents ContentStore,
	clients ClientStore,
	registry *Registry,
	policy RetryPolicy,
	notifier notify.Notifier,
	m *metrics.Metrics,
	log logger.Logger,
	concurrency int,
	timeout time.Duration,
) *Service {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Service{
		contents:    contents,
		clients:     clients,
		registry:    registry,
		policy:      policy,
		notifier:    notifier,
		metrics:     m,
		logger:      log,
		concurrency: concurrency,
		timeout:     timeout,
	}
}

// Run publishes one approved content item to all its target platforms.
// Partial success still moves the content forward: the post IDs that came
// back are recorded and the failures are kept in error_message. Only a
// fan-out with zero successes parks the content in Failed.
func (s *Service) Run(ctx context.Context, contentID string) error {
	content, err := s.contents.GetByID(ctx, contentID)
	if err != nil {
		return fmt.Errorf("load content: %w", err)
	}

	if content.Status != domain.StatusApproved {
		return &domain.TransitionError{ContentID: content.ID, From: content.Status, To: domain.StatusPublished}
	}

	client, err := s.clients.GetByID(ctx, content.ClientID)
	if err != nil {
		return fmt.Errorf("load client: %w", err)
	}

	outcome := s.fanOut(ctx, content, client)

	if outcome.AnySucceeded() {
		return s.recordSuccess(ctx, content, outcome)
	}
	return s.recordFailure(ctx, content, outcome)
}

// fanOut delivers to every target platform with bounded parallelism.
func (s *Service) fanOut(ctx context.Context, content *domain.Content, client *domain.Client) *Outcome {
	outcome := &Outcome{
		Succeeded: make(map[string]string),
		Failed:    make(map[string]error),
	}

	var (
		mu  sync.Mutex
		wg  sync.WaitGroup
		sem = make(chan struct{}, s.concurrency)
	)

	for _, platform := range content.Platforms {
		wg.Add(1)
		go func(platform string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			postID, err := s.publishOne(ctx, content, client, platform)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				outcome.Failed[platform] = err
				s.metrics.PublishAttempts.WithLabelValues(platform, "failure").Inc()
				return
			}
			outcome.Succeeded[platform] = postID
			s.metrics.PublishAttempts.WithLabelValues(platform, "success").Inc()
		}(platform)
	}
	wg.Wait()

	return outcome
}

// publishOne delivers to a single platform under the retry policy.
func (s *Service) publishOne(ctx context.Context, content *domain.Content, client *domain.Client, platform string) (string, error) {
	target, ok := s.registry.Get(platform)
	if !ok {
		return "", &ValidationError{Platform: platform, Reason: "no publisher configured"}
	}

	accountRef, ok := client.AccountRefs[platform]
	if !ok || accountRef == "" {
		return "", &ValidationError{Platform: platform, Reason: "client has no account connected"}
	}

	req := Request{
		AccountRef: accountRef,
		Text:       content.CaptionFor(platform),
		MediaURLs:  content.MediaURLs,
		ScheduleAt: content.ScheduledAt,
	}

	policy := s.policy
	policy.OnRetry = func(attempt int, err error) {
		s.metrics.PublishRetries.Inc()
		s.logger.Warn("Publish attempt failed, retrying",
			logger.String("content_id", content.ID),
			logger.String("platform", platform),
			logger.Int("attempt", attempt),
			logger.Error(err),
		)
	}

	var postID string
	err := policy.Do(ctx, func() error {
		callCtx, cancel := context.WithTimeout(ctx, s.timeout)
		defer cancel()

		id, publishErr := target.Publish(callCtx, req)
		if publishErr != nil {
			return publishErr
		}
		postID = id
		return nil
	})
	return postID, err
}

func (s *Service) recordSuccess(ctx context.Context, content *domain.Content, outcome *Outcome) error {
	if content.PlatformPostIDs == nil {
		content.PlatformPostIDs = make(domain.StringMap, len(outcome.Succeeded))
	}
	for platform, postID := range outcome.Succeeded {
		content.PlatformPostIDs[platform] = postID
	}

	if summary := outcome.ErrorSummary(); summary != "" {
		content.ErrorMessage = &summary
	} else {
		content.ErrorMessage = nil
	}

	next := domain.StatusPublished
	status := "published"
	if content.ScheduledAt != nil && content.ScheduledAt.After(time.Now()) {
		next = domain.StatusScheduled
		status = "scheduled"
	}
	if len(outcome.Failed) > 0 {
		status = "partial"
	}

	if err := content.TransitionTo(next); err != nil {
		return err
	}
	if err := s.contents.Update(ctx, content); err != nil {
		return fmt.Errorf("persist publish outcome: %w", err)
	}
	s.metrics.StatusTransitions.WithLabelValues(string(next)).Inc()

	s.notifier.Notify(ctx, notify.Event{
		Kind:      notify.KindPublishOutcome,
		ContentID: content.ID,
		ClientID:  content.ClientID,
		Detail: map[string]string{
			"status":    status,
			"platforms": strings.Join(content.Platforms, ","),
			"errors":    outcome.ErrorSummary(),
		},
	})

	s.logger.Info("Content published",
		logger.String("content_id", content.ID),
		logger.String("status", status),
		logger.Int("succeeded", len(outcome.Succeeded)),
		logger.Int("failed", len(outcome.Failed)),
	)
	return nil
}

// recordFailure parks the content in Failed after every platform refused it.
// The per-platform retry budget is already spent by the time we get here, so
// this outcome is terminal rather than re-queued.
func (s *Service) recordFailure(ctx context.Context, content *domain.Content, outcome *Outcome) error {
	summary := outcome.ErrorSummary()
	content.ErrorMessage = &summary

	if err := content.TransitionTo(domain.StatusFailed); err != nil {
		return err
	}
	if err := s.contents.Update(ctx, content); err != nil {
		return fmt.Errorf("persist publish failure: %w", err)
	}
	s.metrics.StatusTransitions.WithLabelValues(string(domain.StatusFailed)).Inc()

	s.notifier.Notify(ctx, notify.Event{
		Kind:      notify.KindPublishOutcome,
		ContentID: content.ID,
		ClientID:  content.ClientID,
		Detail: map[string]string{
			"status": "failed",
			"errors": summary,
		},
	})

	s.logger.Error("Publish failed on every platform",
		logger.String("content_id", content.ID),
		logger.String("errors", summary),
	)
	return nil
}
