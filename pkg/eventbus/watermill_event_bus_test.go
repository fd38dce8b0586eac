package eventbus_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stepmill/stepmill/pkg/channels/gochannel"
	"github.com/stepmill/stepmill/pkg/eventbus"
	"github.com/stepmill/stepmill/pkg/events"
)

func newTestBus(t *testing.T) eventbus.EventBus {
	t.Helper()

	pub, sub, err := gochannel.CreateTestChannel(watermill.NopLogger{})
	require.NoError(t, err)

	bus := eventbus.NewWatermillEventBus(pub, sub)
	t.Cleanup(func() {
		_ = bus.Close()
	})

	return bus
}

func TestPublishDeliversToHandler(t *testing.T) {
	t.Parallel()

	bus := newTestBus(t)
	ctx := context.Background()

	var (
		mu       sync.Mutex
		received []*events.ExecutionCompleted
	)

	require.NoError(t, bus.Handle(events.ExecutionCompletedEvent, func(_ context.Context, event any) error {
		completed, ok := event.(*events.ExecutionCompleted)
		require.True(t, ok)

		mu.Lock()
		received = append(received, completed)
		mu.Unlock()

		return nil
	}))
	require.NoError(t, bus.Subscribe(ctx))

	err := bus.Publish(ctx, "exec-1", events.ExecutionCompleted{
		BaseEvent:     events.NewBaseEvent(events.ExecutionCompletedEvent, "wf-1"),
		ExecutionID:   "exec-1",
		StepsExecuted: 3,
		DurationSecs:  1.5,
	})
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()

		return len(received) == 1
	}, 5*time.Second, 10*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "exec-1", received[0].ExecutionID)
	assert.Equal(t, 3, received[0].StepsExecuted)
	assert.Equal(t, "wf-1", received[0].WorkflowID)
}

func TestEventsWithoutHandlerAreDropped(t *testing.T) {
	t.Parallel()

	bus := newTestBus(t)
	ctx := context.Background()

	var (
		mu    sync.Mutex
		count int
	)

	require.NoError(t, bus.Handle(events.ExecutionRequestedEvent, func(context.Context, any) error {
		mu.Lock()
		count++
		mu.Unlock()

		return nil
	}))
	require.NoError(t, bus.Subscribe(ctx))

	// No handler registered for this type; it is acked and dropped.
	require.NoError(t, bus.Publish(ctx, "exec-1", events.ExecutionStarted{
		BaseEvent:   events.NewBaseEvent(events.ExecutionStartedEvent, "wf-1"),
		ExecutionID: "exec-1",
	}))

	require.NoError(t, bus.Publish(ctx, "exec-2", events.ExecutionRequested{
		BaseEvent: events.NewBaseEvent(events.ExecutionRequestedEvent, "wf-1"),
		UserID:    "user-1",
	}))

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()

		return count == 1
	}, 5*time.Second, 10*time.Millisecond)
}

func TestGenerateIDIsUnique(t *testing.T) {
	t.Parallel()

	bus := newTestBus(t)

	seen := make(map[string]bool)

	for range 100 {
		id := bus.GenerateID()
		assert.NotEmpty(t, id)
		assert.False(t, seen[id])
		seen[id] = true
	}
}
