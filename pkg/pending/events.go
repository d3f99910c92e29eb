package pending

import "time"

// EventType names a store transition.
type EventType string

const (
	EventSet     EventType = "pending.set"
	EventCleared EventType = "pending.cleared"
	EventTaken   EventType = "pending.taken"
	EventExpired EventType = "pending.expired"
)

// Event describes one transition. Payloads are never included.
type Event struct {
	Type   EventType
	UserID string
	Count  int
	At     time.Time
}

// Observer receives store events. Calls happen synchronously after the
// store lock is released, so observers may call back into the store.
type Observer interface {
	OnPendingEvent(Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Event)

func (f ObserverFunc) OnPendingEvent(ev Event) {
	f(ev)
}

// AddObserver registers o for all future events.
func (s *Store) AddObserver(o Observer) {
	if o == nil {
		return
	}
	s.obsMu.Lock()
	s.observers = append(s.observers, o)
	s.obsMu.Unlock()
}

func (s *Store) notify(ev Event) {
	s.obsMu.RLock()
	observers := append([]Observer(nil), s.observers...)
	s.obsMu.RUnlock()

	for _, o := range observers {
		o.OnPendingEvent(ev)
	}
}
