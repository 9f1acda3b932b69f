package publer

import (
	"context"
	"errors"

	"github.com/jonesrussell/gopost/internal/publish"
)

// Platform names understood by the target registry.
const (
	PlatformFacebook       = "facebook"
	PlatformInstagram      = "instagram"
	PlatformLinkedIn       = "linkedin"
	PlatformTwitter        = "twitter"
	PlatformGoogleBusiness = "google_business"
)

// target adapts the shared client to one network.
type target struct {
	client  *Client
	network string
}

func (t *target) Platform() string { return t.network }

func (t *target) Publish(ctx context.Context, req publish.Request) (string, error) {
	postID, err := t.client.CreatePost(ctx, t.network, req.AccountRef, req.Text, req.MediaURLs, req.ScheduleAt)
	if err != nil {
		var rejected *requestRejectedError
		if errors.As(err, &rejected) {
			return "", &publish.ValidationError{Platform: t.network, Reason: rejected.detail}
		}
		return "", err
	}
	return postID, nil
}

// instagramTarget wraps the generic target with the media requirement:
// Instagram has no text-only posts, so sending one is a validation failure,
// not a transient error.
type instagramTarget struct {
	target
}

func (t *instagramTarget) Publish(ctx context.Context, req publish.Request) (string, error) {
	if len(req.MediaURLs) == 0 {
		return "", &publish.ValidationError{Platform: PlatformInstagram, Reason: "media is required"}
	}
	return t.target.Publish(ctx, req)
}

// Targets returns one publish.Target per supported platform, all sharing the
// same API client.
func Targets(client *Client) []publish.Target {
	return []publish.Target{
		&target{client: client, network: PlatformFacebook},
		&instagramTarget{target{client: client, network: PlatformInstagram}},
		&target{client: client, network: PlatformLinkedIn},
		&target{client: client, network: PlatformTwitter},
		&target{client: client, network: PlatformGoogleBusiness},
	}
}
