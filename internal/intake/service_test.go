package intake_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/gopost/internal/domain"
	"github.com/jonesrussell/gopost/internal/intake"
	"github.com/jonesrussell/gopost/internal/logger"
	"github.com/jonesrussell/gopost/internal/metrics"
)

type fakeContentStore struct {
	created   []*domain.Content
	createErr error
}

func (f *fakeContentStore) Create(_ context.Context, c *domain.Content) error {
	if f.createErr != nil {
		return f.createErr
	}
	c.ID = "content-1"
	f.created = append(f.created, c)
	return nil
}

type fakeClientStore struct {
	client *domain.Client
}

func (f *fakeClientStore) GetByID(_ context.Context, id string) (*domain.Client, error) {
	if f.client == nil || f.client.ID != id {
		return nil, domain.ErrNotFound
	}
	clone := *f.client
	return &clone, nil
}

type fakeQuota struct {
	slots    int
	reserved int
	released int
}

func (f *fakeQuota) Reserve(_ context.Context, clientID string) error {
	if f.slots <= 0 {
		return &domain.QuotaError{ClientID: clientID, Used: 8, Limit: 8}
	}
	f.slots--
	f.reserved++
	return nil
}

func (f *fakeQuota) Release(_ context.Context, _ string) error {
	f.slots++
	f.released++
	return nil
}

type fakeJobStore struct {
	enqueued []*domain.Job
}

func (f *fakeJobStore) Enqueue(_ context.Context, job *domain.Job) error {
	f.enqueued = append(f.enqueued, job)
	return nil
}

func activeClient() *domain.Client {
	return &domain.Client{
		ID:               "client-1",
		BusinessName:     "Northside Landscaping",
		MonthlyPostLimit: 8,
		PlatformsEnabled: []string{"facebook", "instagram"},
		IsActive:         true,
	}
}

func newService(contents *fakeContentStore, clients *fakeClientStore, quota *fakeQuota, jobs *fakeJobStore) *intake.Service {
	return intake.NewService(contents, clients, quota, jobs, metrics.New(), logger.NewNopLogger())
}

func TestService_Submit(t *testing.T) {
	contents := &fakeContentStore{}
	quota := &fakeQuota{slots: 3}
	jobs := &fakeJobStore{}
	svc := newService(contents, &fakeClientStore{client: activeClient()}, quota, jobs)

	content, err := svc.Submit(context.Background(), intake.Draft{
		ClientID:    "client-1",
		Topic:       "spring cleanup special",
		ContentType: domain.TypeOffer,
		Platforms:   []string{"facebook"},
		Notes:       "mention the 10% discount",
	})
	require.NoError(t, err)

	assert.Equal(t, domain.StatusDraft, content.Status)
	assert.Equal(t, "spring cleanup special", content.Topic)
	assert.Equal(t, "mention the 10% discount", content.Notes)
	assert.Equal(t, 1, quota.reserved)

	require.Len(t, jobs.enqueued, 1)
	assert.Equal(t, domain.JobGenerate, jobs.enqueued[0].Kind)
	assert.Equal(t, "content-1", jobs.enqueued[0].ContentID)
	assert.WithinDuration(t, time.Now(), jobs.enqueued[0].RunAt, time.Minute)
}

func TestService_Submit_DefaultsToEnabledPlatforms(t *testing.T) {
	contents := &fakeContentStore{}
	svc := newService(contents, &fakeClientStore{client: activeClient()}, &fakeQuota{slots: 1}, &fakeJobStore{})

	content, err := svc.Submit(context.Background(), intake.Draft{
		ClientID: "client-1",
		Topic:    "meet the crew",
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"facebook", "instagram"}, []string(content.Platforms))
}

func TestService_Submit_RejectsDisabledPlatform(t *testing.T) {
	quota := &fakeQuota{slots: 5}
	svc := newService(&fakeContentStore{}, &fakeClientStore{client: activeClient()}, quota, &fakeJobStore{})

	_, err := svc.Submit(context.Background(), intake.Draft{
		ClientID:  "client-1",
		Topic:     "company news",
		Platforms: []string{"facebook", "tiktok"},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInvalidContent)
	assert.Zero(t, quota.reserved, "no quota slot spent on a rejected draft")
}

func TestService_Submit_QuotaExhausted(t *testing.T) {
	contents := &fakeContentStore{}
	jobs := &fakeJobStore{}
	svc := newService(contents, &fakeClientStore{client: activeClient()}, &fakeQuota{slots: 0}, jobs)

	_, err := svc.Submit(context.Background(), intake.Draft{
		ClientID:  "client-1",
		Topic:     "one post too many",
		Platforms: []string{"facebook"},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrQuotaExceeded)
	assert.Empty(t, contents.created)
	assert.Empty(t, jobs.enqueued)
}

func TestService_Submit_InactiveClient(t *testing.T) {
	client := activeClient()
	client.IsActive = false
	svc := newService(&fakeContentStore{}, &fakeClientStore{client: client}, &fakeQuota{slots: 5}, &fakeJobStore{})

	_, err := svc.Submit(context.Background(), intake.Draft{
		ClientID:  "client-1",
		Topic:     "anything",
		Platforms: []string{"facebook"},
	})
	assert.ErrorIs(t, err, domain.ErrClientInactive)
}

func TestService_Submit_UnknownClient(t *testing.T) {
	svc := newService(&fakeContentStore{}, &fakeClientStore{}, &fakeQuota{slots: 5}, &fakeJobStore{})

	_, err := svc.Submit(context.Background(), intake.Draft{
		ClientID:  "client-missing",
		Topic:     "anything",
		Platforms: []string{"facebook"},
	})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestService_Submit_ReleasesQuotaOnCreateFailure(t *testing.T) {
	contents := &fakeContentStore{createErr: context.DeadlineExceeded}
	quota := &fakeQuota{slots: 1}
	svc := newService(contents, &fakeClientStore{client: activeClient()}, quota, &fakeJobStore{})

	_, err := svc.Submit(context.Background(), intake.Draft{
		ClientID:  "client-1",
		Topic:     "doomed draft",
		Platforms: []string{"facebook"},
	})
	require.Error(t, err)
	assert.Equal(t, 1, quota.released)
	assert.Equal(t, 1, quota.slots)
}
