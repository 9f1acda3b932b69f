// Package notify publishes lifecycle events for downstream consumers
// (dashboards, email bridges) over Redis pub/sub.
package notify

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jonesrussell/gopost/internal/logger"
)

// Event kinds emitted by the lifecycle.
const (
	// KindPendingApproval fires when generated content is waiting for review.
	KindPendingApproval = "pending_approval"

	// KindPublishOutcome fires after a publish fan-out completes, success,
	// partial or failed alike.
	KindPublishOutcome = "publish_outcome"

	// KindRetriesExhausted fires when rejected content has no regeneration
	// budget left and needs manual attention.
	KindRetriesExhausted = "retries_exhausted"

	// KindRecycled fires when the sweep derives a fresh draft from old content.
	KindRecycled = "recycled"
)

// channelPrefix namespaces the pub/sub channels.
const channelPrefix = "gopost:notify:"

// Event is the envelope published on the channel for its kind.
type Event struct {
	Kind      string            `json:"kind"`
	ContentID string            `json:"content_id"`
	ClientID  string            `json:"client_id"`
	Detail    map[string]string `json:"detail,omitempty"`
	At        time.Time         `json:"at"`
}

// Notifier delivers lifecycle events. Delivery is best-effort: the lifecycle
// never fails because a notification could not be sent.
type Notifier interface {
	Notify(ctx context.Context, event Event)
}

// RedisNotifier publishes events to Redis pub/sub channels, one channel per
// event kind plus a firehose channel carrying everything.
type RedisNotifier struct {
	client redis.UniversalClient
	logger logger.Logger
}

// NewRedisNotifier creates a notifier backed by the given Redis client.
func NewRedisNotifier(client redis.UniversalClient, log logger.Logger) *RedisNotifier {
	return &RedisNotifier{client: client, logger: log}
}

// Notify publishes the event. Failures are logged and swallowed.
func (n *RedisNotifier) Notify(ctx context.Context, event Event) {
	if event.At.IsZero() {
		event.At = time.Now().UTC()
	}

	payload, err := json.Marshal(event)
	if err != nil {
		n.logger.Warn("Failed to encode notification",
			logger.String("kind", event.Kind),
			logger.Error(err),
		)
		return
	}

	for _, channel := range []string{channelPrefix + event.Kind, channelPrefix + "all"} {
		if pubErr := n.client.Publish(ctx, channel, payload).Err(); pubErr != nil {
			n.logger.Warn("Failed to publish notification",
				logger.String("channel", channel),
				logger.String("content_id", event.ContentID),
				logger.Error(pubErr),
			)
		}
	}
}

// NopNotifier discards all events. Useful in tests and one-shot commands.
type NopNotifier struct{}

// Notify implements Notifier.
func (NopNotifier) Notify(context.Context, Event) {}
