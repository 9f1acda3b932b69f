package notify_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/gopost/internal/logger"
	"github.com/jonesrussell/gopost/internal/notify"
)

func TestRedisNotifier_Notify(t *testing.T) {
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	ctx := context.Background()

	sub := client.Subscribe(ctx, "gopost:notify:pending_approval")
	t.Cleanup(func() { sub.Close() })
	_, err := sub.Receive(ctx)
	require.NoError(t, err, "subscription handshake")

	notifier := notify.NewRedisNotifier(client, logger.NewNopLogger())
	notifier.Notify(ctx, notify.Event{
		Kind:      notify.KindPendingApproval,
		ContentID: "content-1",
		ClientID:  "client-1",
		Detail:    map[string]string{"topic": "spring cleanup special"},
	})

	select {
	case msg := <-sub.Channel():
		var event notify.Event
		require.NoError(t, json.Unmarshal([]byte(msg.Payload), &event))
		assert.Equal(t, notify.KindPendingApproval, event.Kind)
		assert.Equal(t, "content-1", event.ContentID)
		assert.Equal(t, "spring cleanup special", event.Detail["topic"])
		assert.False(t, event.At.IsZero(), "At must be stamped when omitted")
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for notification")
	}
}

func TestRedisNotifier_FirehoseChannel(t *testing.T) {
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	ctx := context.Background()

	sub := client.Subscribe(ctx, "gopost:notify:all")
	t.Cleanup(func() { sub.Close() })
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	notifier := notify.NewRedisNotifier(client, logger.NewNopLogger())
	notifier.Notify(ctx, notify.Event{Kind: notify.KindPublishOutcome, ContentID: "content-2"})

	select {
	case msg := <-sub.Channel():
		var event notify.Event
		require.NoError(t, json.Unmarshal([]byte(msg.Payload), &event))
		assert.Equal(t, notify.KindPublishOutcome, event.Kind)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for firehose notification")
	}
}

func TestRedisNotifier_SwallowsPublishErrors(t *testing.T) {
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	mr.Close() // force publish failures

	notifier := notify.NewRedisNotifier(client, logger.NewNopLogger())

	// Must not panic or return anything; delivery is best-effort.
	notifier.Notify(context.Background(), notify.Event{Kind: notify.KindRecycled, ContentID: "content-3"})
}
