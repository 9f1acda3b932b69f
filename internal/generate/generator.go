// Package generate coordinates AI caption generation for draft content.
package generate

import (
	"context"

	"github.com/jonesrussell/gopost/internal/domain"
)

// CaptionRequest carries everything the generator needs to write copy for
// one content item in the client's voice.
type CaptionRequest struct {
	Client  *domain.Client
	Content *domain.Content

	// Feedback is the rejection reason driving a regeneration, empty on the
	// first pass.
	Feedback string
}

// CaptionResult is the generated payload.
type CaptionResult struct {
	Caption  string            `json:"caption"`
	Hashtags []string          `json:"hashtags"`
	CTA      string            `json:"cta"`
	Variants map[string]string `json:"platform_captions,omitempty"`
}

// Generator produces social copy. Implementations are expected to honor
// context cancellation; the coordinator bounds every call with a timeout.
type Generator interface {
	GenerateCaption(ctx context.Context, req CaptionRequest) (*CaptionResult, error)
}

// ImageRequest asks for one supporting image for a content item.
type ImageRequest struct {
	Client  *domain.Client
	Content *domain.Content
}

// ImageGenerator is the optional image capability. Content with no media gets
// an image when the generator provides one; a failure (or an empty URL) never
// fails the generation pass.
type ImageGenerator interface {
	GenerateImage(ctx context.Context, req ImageRequest) (string, error)
}
