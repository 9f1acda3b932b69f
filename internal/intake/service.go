// Package intake accepts new content requests and starts their lifecycle.
package intake

import (
	"context"
	"fmt"
	"time"

	"github.com/jonesrussell/gopost/internal/domain"
	"github.com/jonesrussell/gopost/internal/logger"
	"github.com/jonesrussell/gopost/internal/metrics"
)

// Draft is an incoming content request.
type Draft struct {
	ClientID      string             `json:"client_id"`
	Topic         string             `json:"topic"`
	ContentType   domain.ContentType `json:"content_type"`
	Notes         string             `json:"notes"`
	FocusLocation string             `json:"focus_location"`
	MediaURLs     []string           `json:"media_urls"`
	Platforms     []string           `json:"platforms"`
}

// ContentStore is the slice of the content repository the service needs.
type ContentStore interface {
	Create(ctx context.Context, c *domain.Content) error
}

// ClientStore loads the client for platform validation.
type ClientStore interface {
	GetByID(ctx context.Context, id string) (*domain.Client, error)
}

// QuotaGate reserves post slots.
type QuotaGate interface {
	Reserve(ctx context.Context, clientID string) error
	Release(ctx context.Context, clientID string) error
}

// JobStore enqueues the first generation pass.
type JobStore interface {
	Enqueue(ctx context.Context, job *domain.Job) error
}

// Service turns accepted drafts into tracked content.
type Service struct {
	contents ContentStore
	clients  ClientStore
	quota    QuotaGate
	jobs     JobStore
	metrics  *metrics.Metrics
	logger   logger.Logger
}

// NewService creates an intake service.
func NewService(
	contents ContentStore,
	clients ClientStore,
	quota QuotaGate,
	jobs JobStore,
	m *metrics.Metrics,
	log logger.Logger,
) *Service {
	return &Service{
		contents: contents,
		clients:  clients,
		quota:    quota,
		jobs:     jobs,
		metrics:  m,
		logger:   log,
	}
}

// Submit validates the draft, claims a quota slot and creates the content as
// a Draft with a generation job queued. The quota slot is consumed the
// moment the submission is accepted; later rejection or failure does not
// refund it.
func (s *Service) Submit(ctx context.Context, draft Draft) (*domain.Content, error) {
	client, err := s.clients.GetByID(ctx, draft.ClientID)
	if err != nil {
		return nil, fmt.Errorf("load client: %w", err)
	}
	if !client.IsActive {
		return nil, domain.ErrClientInactive
	}

	platforms := draft.Platforms
	if len(platforms) == 0 {
		platforms = client.PlatformsEnabled
	}
	for _, platform := range platforms {
		if !client.HasPlatform(platform) {
			return nil, fmt.Errorf("%w: platform %q is not enabled for client", domain.ErrInvalidContent, platform)
		}
	}

	content, err := domain.NewContent(draft.ClientID, draft.Topic, draft.ContentType, platforms)
	if err != nil {
		return nil, err
	}
	content.Notes = draft.Notes
	content.FocusLocation = draft.FocusLocation
	content.MediaURLs = draft.MediaURLs

	if err := s.quota.Reserve(ctx, draft.ClientID); err != nil {
		return nil, err
	}

	if err := s.contents.Create(ctx, content); err != nil {
		if releaseErr := s.quota.Release(ctx, draft.ClientID); releaseErr != nil {
			s.logger.Warn("Failed to release quota slot",
				logger.String("client_id", draft.ClientID),
				logger.Error(releaseErr),
			)
		}
		return nil, fmt.Errorf("create content: %w", err)
	}

	if err := s.jobs.Enqueue(ctx, domain.NewJob(content.ID, domain.JobGenerate, time.Now().UTC())); err != nil {
		return nil, fmt.Errorf("enqueue generate job: %w", err)
	}

	s.metrics.ContentSubmitted.Inc()
	s.logger.Info("Content submitted",
		logger.String("content_id", content.ID),
		logger.String("client_id", content.ClientID),
		logger.Strings("platforms", platforms),
	)
	return content, nil
}
