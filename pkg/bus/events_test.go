package bus

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odvcencio/taskmate/pkg/logging"
	"github.com/odvcencio/taskmate/pkg/pending"
	"github.com/odvcencio/taskmate/pkg/storage"
)

func collect(t *testing.T, b MessageBus, pattern string) <-chan Event {
	t.Helper()
	out := make(chan Event, 8)
	sub, err := b.Subscribe(context.Background(), pattern, func(msg *Message) {
		ev, err := DecodeEvent(msg)
		if err == nil {
			out <- ev
		}
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = sub.Unsubscribe() })
	return out
}

func next(t *testing.T, ch <-chan Event) Event {
	t.Helper()
	select {
	case ev := <-ch:
		return ev
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
		return Event{}
	}
}

func TestPublisher_Publish(t *testing.T) {
	b := NewMemoryBus()
	defer b.Close()
	events := collect(t, b, "taskmate.>")

	p := NewPublisher(b, "", logging.Nop())
	require.NoError(t, p.Publish(context.Background(), TypeActionsExecuted, "u1", map[string]int{"succeeded": 2}))

	ev := next(t, events)
	assert.Equal(t, TypeActionsExecuted, ev.Type)
	assert.Equal(t, "u1", ev.UserID)
	assert.Len(t, ev.ID, 26)
	assert.False(t, ev.Time.IsZero())
	assert.Equal(t, map[string]any{"succeeded": float64(2)}, ev.Data)
}

func TestPublisher_NilIsNoop(t *testing.T) {
	var p *Publisher
	assert.NoError(t, p.Publish(context.Background(), TypePendingCreated, "u1", nil))
	assert.NoError(t, NewPublisher(nil, "x", logging.Nop()).Publish(context.Background(), TypePendingCreated, "u1", nil))
}

func TestPublisher_PendingObserver(t *testing.T) {
	b := NewMemoryBus()
	defer b.Close()
	events := collect(t, b, "app.pending.*")

	obs := NewPublisher(b, "app", logging.Nop()).PendingObserver()
	obs.OnPendingEvent(pending.Event{Type: pending.EventSet, UserID: "u1", Count: 2})
	obs.OnPendingEvent(pending.Event{Type: pending.EventTaken, UserID: "u1", Count: 2})
	obs.OnPendingEvent(pending.Event{Type: pending.EventCleared, UserID: "u1", Count: 2})

	first := next(t, events)
	assert.Equal(t, TypePendingCreated, first.Type)
	assert.Equal(t, map[string]any{"count": float64(2)}, first.Data)

	assert.Equal(t, TypePendingCleared, next(t, events).Type)
}

func TestPublisher_StorageObserver(t *testing.T) {
	b := NewMemoryBus()
	defer b.Close()
	events := collect(t, b, "taskmate.task.*")

	obs := NewPublisher(b, "", logging.Nop()).StorageObserver()
	obs.HandleStorageEvent(storage.Event{
		Type:     storage.EventTaskDeleted,
		UserID:   "u1",
		EntityID: "t-1",
		Data:     storage.DeletionData{Title: "Old", Reason: "done"},
	})

	ev := next(t, events)
	assert.Equal(t, TypeTaskDeleted, ev.Type)
	data, ok := ev.Data.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "t-1", data["entityId"])
	assert.Equal(t, map[string]any{"title": "Old", "reason": "done"}, data["detail"])
}
