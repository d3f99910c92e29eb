package bus

import (
	"context"
	"encoding/json"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"github.com/odvcencio/taskmate/pkg/pending"
	"github.com/odvcencio/taskmate/pkg/storage"
)

// DefaultPrefix is prepended to every event subject.
const DefaultPrefix = "taskmate"

// Event types published on the bus.
const (
	TypePendingCreated  = "pending.created"
	TypePendingCleared  = "pending.cleared"
	TypePendingExpired  = "pending.expired"
	TypeActionsExecuted = "actions.executed"
	TypeTaskCreated     = "task.created"
	TypeTaskDeleted     = "task.deleted"
	TypeGoalCreated     = "goal.created"
	TypeGoalDeleted     = "goal.deleted"
)

// Event is the JSON envelope for every published message.
type Event struct {
	ID     string    `json:"id"`
	Type   string    `json:"type"`
	UserID string    `json:"userId"`
	Time   time.Time `json:"time"`
	Data   any       `json:"data,omitempty"`
}

// Publisher encodes events and publishes them under a subject prefix.
// A nil Publisher or one without a bus drops everything.
type Publisher struct {
	bus    MessageBus
	prefix string
	logger zerolog.Logger
	now    func() time.Time
}

func NewPublisher(b MessageBus, prefix string, logger zerolog.Logger) *Publisher {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Publisher{bus: b, prefix: prefix, logger: logger, now: time.Now}
}

// Subject returns the full subject for an event type.
func (p *Publisher) Subject(eventType string) string {
	return p.prefix + "." + eventType
}

// Publish sends one event. Failures are logged and returned; callers on
// the request path usually ignore them.
func (p *Publisher) Publish(ctx context.Context, eventType, userID string, data any) error {
	if p == nil || p.bus == nil {
		return nil
	}
	ev := Event{
		ID:     ulid.Make().String(),
		Type:   eventType,
		UserID: userID,
		Time:   p.now().UTC(),
		Data:   data,
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		p.logger.Error().Err(err).Str("type", eventType).Msg("encode event")
		return err
	}
	if err := p.bus.Publish(ctx, p.Subject(eventType), payload); err != nil {
		p.logger.Warn().Err(err).Str("type", eventType).Msg("publish event")
		return err
	}
	return nil
}

// PendingObserver forwards pending store transitions. Taken batches are
// reported by the orchestrator as actions.executed, so they are skipped.
func (p *Publisher) PendingObserver() pending.Observer {
	return pending.ObserverFunc(func(ev pending.Event) {
		var eventType string
		switch ev.Type {
		case pending.EventSet:
			eventType = TypePendingCreated
		case pending.EventCleared:
			eventType = TypePendingCleared
		case pending.EventExpired:
			eventType = TypePendingExpired
		default:
			return
		}
		_ = p.Publish(context.Background(), eventType, ev.UserID, map[string]int{"count": ev.Count})
	})
}

// StorageObserver forwards committed task and goal changes.
func (p *Publisher) StorageObserver() storage.Observer {
	return storage.ObserverFunc(func(ev storage.Event) {
		data := map[string]any{"entityId": ev.EntityID}
		if ev.Data != nil {
			data["detail"] = ev.Data
		}
		_ = p.Publish(context.Background(), string(ev.Type), ev.UserID, data)
	})
}

// DecodeEvent parses a message published by Publisher.
func DecodeEvent(msg *Message) (Event, error) {
	var ev Event
	err := json.Unmarshal(msg.Data, &ev)
	return ev, err
}
