// Package publish fans approved content out to its target platforms.
package publish

import (
	"context"
	"fmt"
	"time"
)

// Request is one platform delivery: resolved text, media and the external
// account to post as. A future ScheduleAt asks the platform to hold the post
// until then.
type Request struct {
	AccountRef string
	Text       string
	MediaURLs  []string
	ScheduleAt *time.Time
}

// Target posts to a single platform. Implementations return the external
// post ID on success.
type Target interface {
	Platform() string
	Publish(ctx context.Context, req Request) (string, error)
}

// ValidationError marks a platform rejection that no retry can fix, such as
// Instagram requiring media. It short-circuits the retry policy.
type ValidationError struct {
	Platform string
	Reason   string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Platform, e.Reason)
}

// Registry maps platform names to their targets.
type Registry struct {
	targets map[string]Target
}

// NewRegistry creates a registry from the given targets.
func NewRegistry(targets ...Target) *Registry {
	registry := &Registry{targets: make(map[string]Target, len(targets))}
	for _, target := range targets {
		registry.targets[target.Platform()] = target
	}
	return registry
}

// Get returns the target for a platform, if registered.
func (r *Registry) Get(platform string) (Target, bool) {
	target, ok := r.targets[platform]
	return target, ok
}

// Platforms lists the registered platform names.
func (r *Registry) Platforms() []string {
	names := make([]string, 0, len(r.targets))
	for name := range r.targets {
		names = append(names, name)
	}
	return names
}
