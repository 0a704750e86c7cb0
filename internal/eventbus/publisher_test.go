package eventbus

import (
	"context"
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harborgrid-justin/phantom-spire-sub011/internal/models"
	"github.com/harborgrid-justin/phantom-spire-sub011/internal/store"
)

// Requires a live NATS server:
//
//	TEST_NATS_URL=nats://localhost:4222 go test ./internal/eventbus/

func liveNATS(t *testing.T) string {
	t.Helper()
	url := os.Getenv("TEST_NATS_URL")
	if url == "" {
		t.Skip("set TEST_NATS_URL to run this test against a live NATS server")
	}
	return url
}

func TestPublishingStore_EmitsChangeEvents(t *testing.T) {
	url := liveNATS(t)
	ctx := context.Background()

	publisher, err := NewPublisher(url)
	require.NoError(t, err)
	defer publisher.Close()
	require.True(t, publisher.IsConnected())

	conn, err := nats.Connect(url)
	require.NoError(t, err)
	defer conn.Close()

	events := make(chan ChangeEvent, 8)
	sub, err := conn.Subscribe("ioc.events", func(msg *nats.Msg) {
		var event ChangeEvent
		if err := json.Unmarshal(msg.Data, &event); err == nil {
			events <- event
		}
	})
	require.NoError(t, err)
	defer sub.Unsubscribe()
	require.NoError(t, conn.Flush())

	inner := store.NewMemoryStore()
	s := NewPublishingStore(inner, publisher)
	tenant := models.NewTenantContext("tenant-events")

	ioc := &models.IOC{
		ID:            "evt-1",
		IndicatorType: models.IOCTypeDomain,
		Value:         "event.example.com",
		Confidence:    0.5,
		Severity:      models.SeverityLow,
		Timestamp:     time.Now().UTC(),
	}

	_, err = s.StoreIOC(ctx, ioc, tenant)
	require.NoError(t, err)

	ioc.Confidence = 0.9
	require.NoError(t, s.UpdateIOC(ctx, ioc, tenant))
	require.NoError(t, s.DeleteIOC(ctx, ioc.ID, tenant))

	want := []string{"stored", "updated", "deleted"}
	for _, action := range want {
		select {
		case event := <-events:
			assert.Equal(t, action, event.Action)
			assert.Equal(t, "tenant-events", event.TenantID)
			assert.Equal(t, "evt-1", event.IOCID)
		case <-time.After(5 * time.Second):
			t.Fatalf("timed out waiting for %q event", action)
		}
	}
}

func TestPublishingStore_FailedWritePublishesNothing(t *testing.T) {
	url := liveNATS(t)
	ctx := context.Background()

	publisher, err := NewPublisher(url)
	require.NoError(t, err)
	defer publisher.Close()

	conn, err := nats.Connect(url)
	require.NoError(t, err)
	defer conn.Close()

	events := make(chan ChangeEvent, 1)
	sub, err := conn.Subscribe("ioc.events", func(msg *nats.Msg) {
		var event ChangeEvent
		if err := json.Unmarshal(msg.Data, &event); err == nil {
			events <- event
		}
	})
	require.NoError(t, err)
	defer sub.Unsubscribe()
	require.NoError(t, conn.Flush())

	s := NewPublishingStore(store.NewMemoryStore(), publisher)
	bad := &models.IOC{ID: "evt-bad"} // fails validation
	_, err = s.StoreIOC(ctx, bad, models.NewTenantContext("tenant-events"))
	require.Error(t, err)

	select {
	case event := <-events:
		t.Fatalf("unexpected event published: %+v", event)
	case <-time.After(500 * time.Millisecond):
	}
}
