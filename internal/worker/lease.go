// Package worker runs the durable job queue: claiming due jobs, dispatching
// them to the lifecycle services and sweeping up after crashes.
package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const leaseKeyPrefix = "gopost:lease:content:"

// releaseScript deletes the lease only when this owner still holds it, so a
// slow worker cannot drop a lease that already expired and was re-taken.
var releaseScript = redis.NewScript(`
	if redis.call("GET", KEYS[1]) == ARGV[1] then
		return redis.call("DEL", KEYS[1])
	end
	return 0
`)

// ContentLease serializes job processing per content item across worker
// instances. The job queue's FOR UPDATE SKIP LOCKED keeps two workers off the
// same job; the lease keeps them off two different jobs for the same content.
type ContentLease struct {
	client *redis.Client
	owner  string
	ttl    time.Duration
}

// NewContentLease creates a lease manager with a unique owner token.
func NewContentLease(client *redis.Client, ttl time.Duration) *ContentLease {
	return &ContentLease{
		client: client,
		owner:  uuid.NewString(),
		ttl:    ttl,
	}
}

// Acquire tries to take the lease for a content item. It returns false when
// another worker instance currently holds it.
func (l *ContentLease) Acquire(ctx context.Context, contentID string) (bool, error) {
	ok, err := l.client.SetNX(ctx, leaseKeyPrefix+contentID, l.owner, l.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("acquire content lease: %w", err)
	}
	return ok, nil
}

// Release gives the lease back if this instance still owns it.
func (l *ContentLease) Release(ctx context.Context, contentID string) error {
	if err := releaseScript.Run(ctx, l.client, []string{leaseKeyPrefix + contentID}, l.owner).Err(); err != nil {
		return fmt.Errorf("release content lease: %w", err)
	}
	return nil
}
