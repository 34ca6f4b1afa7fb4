package eventbus

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSubscribePublish(t *testing.T) {
	b := New()

	var mu sync.Mutex
	var got []Event
	b.Subscribe(SessionCreated, func(e Event) {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, e)
	})

	b.Publish(Event{Topic: SessionCreated, SessionID: "s1"})
	b.Publish(Event{Topic: SessionExpired, SessionID: "s2"})

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, got, 1)
	require.Equal(t, "s1", got[0].SessionID)
	require.NotEmpty(t, got[0].ID)
	require.False(t, got[0].At.IsZero())
}

func TestSubscribeAllObservesEveryTopic(t *testing.T) {
	b := New()

	var count int
	var mu sync.Mutex
	b.Subscribe(All, func(e Event) {
		mu.Lock()
		defer mu.Unlock()
		count++
	})

	b.Publish(Event{Topic: SessionCreated})
	b.Publish(Event{Topic: SessionRotated})
	b.Publish(Event{Topic: MessageEncrypted})

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, 3, count)
}

func TestDisposeRemovesSubscription(t *testing.T) {
	b := New()

	var count int
	dispose := b.Subscribe(SessionCreated, func(e Event) { count++ })
	b.Publish(Event{Topic: SessionCreated})
	dispose()
	b.Publish(Event{Topic: SessionCreated})

	require.Equal(t, 1, count)
}

func TestPublishSurvivesPanickingHandler(t *testing.T) {
	b := New()

	var secondCalled bool
	b.Subscribe(SessionCreated, func(e Event) {
		panic("boom")
	})
	b.Subscribe(SessionCreated, func(e Event) {
		secondCalled = true
	})

	require.NotPanics(t, func() {
		b.Publish(Event{Topic: SessionCreated})
	})
	require.True(t, secondCalled)
}
