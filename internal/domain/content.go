// Package domain contains the core entities and the content state machine
// for the publishing lifecycle.
package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"
)

// ContentStatus represents where a content item is in its lifecycle.
type ContentStatus string

const (
	StatusDraft           ContentStatus = "draft"
	StatusPendingApproval ContentStatus = "pending_approval"
	StatusApproved        ContentStatus = "approved"
	StatusRejected        ContentStatus = "rejected"
	StatusRetrying        ContentStatus = "retrying"
	StatusScheduled       ContentStatus = "scheduled"
	StatusPublished       ContentStatus = "published"
	StatusFailed          ContentStatus = "failed"
)

// ContentType is the enumerated kind of post a client can request.
type ContentType string

const (
	TypeBeforeAfter     ContentType = "before_after"
	TypeTestimonial     ContentType = "testimonial"
	TypeOffer           ContentType = "offer"
	TypeTip             ContentType = "tip"
	TypeTeamUpdate      ContentType = "team_update"
	TypeProjectShowcase ContentType = "project_showcase"
	TypeSeasonal        ContentType = "seasonal"
	TypeOther           ContentType = "other"
)

// DefaultMaxRetries bounds the reject -> regenerate feedback loop.
const DefaultMaxRetries = 3

// transitions is the authoritative table of legal status changes. Every
// status mutation must go through Content.TransitionTo; anything outside this
// table is rejected, never coerced.
var transitions = map[ContentStatus][]ContentStatus{
	StatusDraft:           {StatusPendingApproval, StatusApproved, StatusFailed},
	StatusPendingApproval: {StatusApproved, StatusRejected, StatusFailed},
	StatusApproved:        {StatusRejected, StatusScheduled, StatusPublished, StatusFailed},
	StatusRejected:        {StatusRetrying},
	StatusRetrying:        {StatusPendingApproval, StatusFailed},
	StatusScheduled:       {StatusPublished, StatusFailed},
	StatusPublished:       {},
	StatusFailed:          {},
}

// Content represents one social post unit moving through the lifecycle.
type Content struct {
	ID       string `db:"id"        json:"id"`
	ClientID string `db:"client_id" json:"client_id"`

	Topic         string      `db:"topic"          json:"topic"`
	ContentType   ContentType `db:"content_type"   json:"content_type"`
	Notes         string      `db:"notes"          json:"notes,omitempty"`
	FocusLocation string      `db:"focus_location" json:"focus_location,omitempty"`

	// Generated payload
	Caption          string         `db:"caption"           json:"caption,omitempty"`
	Hashtags         pq.StringArray `db:"hashtags"          json:"hashtags,omitempty"`
	CTA              string         `db:"cta"               json:"cta,omitempty"`
	PlatformCaptions StringMap      `db:"platform_captions" json:"platform_captions,omitempty"`
	MediaURLs        pq.StringArray `db:"media_urls"        json:"media_urls,omitempty"`

	// Targeting and outcome bookkeeping
	Platforms       pq.StringArray `db:"platforms"         json:"platforms"`
	PlatformPostIDs StringMap      `db:"platform_post_ids" json:"platform_post_ids,omitempty"`
	ErrorMessage    *string        `db:"error_message"     json:"error_message,omitempty"`
	RetryCount      int            `db:"retry_count"       json:"retry_count"`
	MaxRetries      int            `db:"max_retries"       json:"max_retries"`
	RejectionReason *string        `db:"rejection_reason"  json:"rejection_reason,omitempty"`

	// Recycling provenance: set on content derived from a published original.
	RecycledFrom *string `db:"recycled_from" json:"recycled_from,omitempty"`

	ScheduledAt *time.Time `db:"scheduled_at" json:"scheduled_at,omitempty"`
	PublishedAt *time.Time `db:"published_at" json:"published_at,omitempty"`

	Status ContentStatus `db:"status" json:"status"`

	// Version is the optimistic concurrency token. Two drivers racing on the
	// same content id cannot both win a compare-and-swap.
	Version   int64     `db:"version"    json:"version"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// NewContent creates a draft content item with validation.
func NewContent(clientID, topic string, contentType ContentType, platforms []string) (*Content, error) {
	if clientID == "" {
		return nil, fmt.Errorf("%w: client_id is required", ErrInvalidContent)
	}
	if topic == "" {
		return nil, fmt.Errorf("%w: topic is required", ErrInvalidContent)
	}
	if len(platforms) == 0 {
		return nil, fmt.Errorf("%w: at least one target platform is required", ErrInvalidContent)
	}
	if contentType == "" {
		contentType = TypeOther
	}

	now := time.Now().UTC()
	return &Content{
		ClientID:    clientID,
		Topic:       topic,
		ContentType: contentType,
		Platforms:   platforms,
		Status:      StatusDraft,
		MaxRetries:  DefaultMaxRetries,
		Version:     1,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// CanTransitionTo reports whether moving to the given status is legal.
func (c *Content) CanTransitionTo(to ContentStatus) bool {
	for _, next := range transitions[c.Status] {
		if next == to {
			return true
		}
	}
	return false
}

// TransitionTo applies a status change after checking the transition table.
// Entering Scheduled or Published stamps published_at exactly once.
func (c *Content) TransitionTo(to ContentStatus) error {
	if !c.CanTransitionTo(to) {
		return &TransitionError{ContentID: c.ID, From: c.Status, To: to}
	}

	c.Status = to
	c.UpdatedAt = time.Now().UTC()

	if (to == StatusScheduled || to == StatusPublished) && c.PublishedAt == nil {
		now := time.Now().UTC()
		c.PublishedAt = &now
	}
	return nil
}

// ShouldRetry reports whether the reject feedback loop still has budget.
func (c *Content) ShouldRetry() bool {
	return c.RetryCount < c.MaxRetries
}

// IsRetryExhausted reports whether the reject feedback loop is out of budget.
func (c *Content) IsRetryExhausted() bool {
	return c.RetryCount >= c.MaxRetries
}

// hashtagPlatforms are the targets whose fallback caption carries hashtags.
var hashtagPlatforms = map[string]bool{
	"facebook":  true,
	"instagram": true,
	"linkedin":  true,
	"twitter":   true,
}

// CaptionFor resolves the best available text for a platform: the generated
// platform-specific variant when present, otherwise a fallback built from the
// base caption, CTA and (for hashtag-friendly platforms) the hashtag list.
func (c *Content) CaptionFor(platform string) string {
	if v, ok := c.PlatformCaptions[platform]; ok && v != "" {
		return v
	}

	parts := make([]string, 0, 3)
	if c.Caption != "" {
		parts = append(parts, c.Caption)
	}
	if c.CTA != "" {
		parts = append(parts, c.CTA)
	}
	if len(c.Hashtags) > 0 && hashtagPlatforms[platform] {
		tags := make([]string, 0, len(c.Hashtags))
		for _, tag := range c.Hashtags {
			if !strings.HasPrefix(tag, "#") {
				tag = "#" + tag
			}
			tags = append(tags, tag)
		}
		parts = append(parts, strings.Join(tags, " "))
	}

	if len(parts) == 0 {
		return c.Topic
	}
	return strings.Join(parts, "\n\n")
}

// SetGenerated populates the AI-generated payload on a successful generation.
func (c *Content) SetGenerated(caption string, hashtags []string, cta string, variants map[string]string) {
	c.Caption = caption
	c.Hashtags = hashtags
	c.CTA = cta
	if len(variants) > 0 {
		c.PlatformCaptions = variants
	}
	c.UpdatedAt = time.Now().UTC()
}

// RecycledTopicPrefix marks derived drafts so operators can spot them.
const RecycledTopicPrefix = "[RECYCLED] "

// NewRecycledContent derives a fresh draft from a published original: same
// media and targeting, new identity, provenance note back to the source. The
// original is never mutated by recycling.
func NewRecycledContent(original *Content) (*Content, error) {
	derived, err := NewContent(original.ClientID, RecycledTopicPrefix+original.Topic, original.ContentType, original.Platforms)
	if err != nil {
		return nil, err
	}

	derived.FocusLocation = original.FocusLocation
	derived.MediaURLs = original.MediaURLs
	derived.Notes = fmt.Sprintf("Recycled from content #%s", original.ID)
	originalID := original.ID
	derived.RecycledFrom = &originalID
	return derived, nil
}
