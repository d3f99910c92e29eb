package storage

import "time"

// EventType names a committed change.
type EventType string

const (
	EventTaskCreated EventType = "task.created"
	EventTaskDeleted EventType = "task.deleted"
	EventGoalCreated EventType = "goal.created"
	EventGoalDeleted EventType = "goal.deleted"
)

// Event is emitted after a write commits. Data is the created entity or a
// DeletionData.
type Event struct {
	Type      EventType `json:"type"`
	UserID    string    `json:"userId"`
	EntityID  string    `json:"entityId"`
	Data      any       `json:"data,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Observer is told about every committed write.
type Observer interface {
	HandleStorageEvent(Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Event)

func (f ObserverFunc) HandleStorageEvent(e Event) { f(e) }

// DeletionData is the payload of delete events; the row itself is gone.
type DeletionData struct {
	Title  string `json:"title"`
	Reason string `json:"reason,omitempty"`
}

// AddObserver registers o for writes made after the call.
func (s *Store) AddObserver(o Observer) {
	if o == nil {
		return
	}
	s.observerMu.Lock()
	s.observers = append(s.observers, o)
	s.observerMu.Unlock()
}

// emit delivers the event off the writer's goroutine, calling observers
// in registration order.
func (s *Store) emit(kind EventType, userID, entityID string, data any) {
	s.observerMu.RLock()
	if len(s.observers) == 0 {
		s.observerMu.RUnlock()
		return
	}
	observers := append([]Observer(nil), s.observers...)
	s.observerMu.RUnlock()

	ev := Event{Type: kind, UserID: userID, EntityID: entityID, Data: data, Timestamp: s.now()}
	go func() {
		for _, o := range observers {
			o.HandleStorageEvent(ev)
		}
	}()
}
