//go:build integration

package audit

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sage-x-project/agentcrypt/eventbus"
)

func TestSink_RecordsLifecycleEvents(t *testing.T) {
	dsn := os.Getenv("AGENTCRYPT_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("AGENTCRYPT_TEST_POSTGRES_DSN not set, skipping integration test")
	}

	ctx := context.Background()
	sink, err := Open(ctx, dsn, 5*time.Second)
	require.NoError(t, err)
	t.Cleanup(sink.Close)

	bus := eventbus.New()
	dispose := sink.Subscribe(bus)
	t.Cleanup(dispose)

	bus.Publish(eventbus.Event{
		Topic:     eventbus.SessionCreated,
		SessionID: "test-session",
		RemoteDID: "did:key:zTest",
	})

	time.Sleep(100 * time.Millisecond)

	var count int
	row := sink.pool.QueryRow(ctx, `SELECT count(*) FROM session_lifecycle_events WHERE session_id = $1`, "test-session")
	require.NoError(t, row.Scan(&count))
	require.Equal(t, 1, count)
}
