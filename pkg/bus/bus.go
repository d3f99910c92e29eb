// Package bus carries domain events (pending batches, executed actions,
// task changes) to interested subscribers. NATS backs it in production;
// an in-memory bus serves single-process deployments and tests.
package bus

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
)

// ErrClosed is returned when operating on a closed bus.
var ErrClosed = errors.New("bus closed")

// MessageBus is safe for concurrent use.
type MessageBus interface {
	// Publish sends data to every subscriber of subject without waiting for
	// delivery.
	Publish(ctx context.Context, subject string, data []byte) error

	// Subscribe registers handler for subject. "*" matches one token and
	// ">" matches the rest: "taskmate.pending.*", "taskmate.>".
	Subscribe(ctx context.Context, subject string, handler MessageHandler) (Subscription, error)

	Close() error
}

// MessageHandler processes one message.
type MessageHandler func(msg *Message)

// Message is a delivered payload.
type Message struct {
	Subject string
	Data    []byte
}

// Subscription can be cancelled.
type Subscription interface {
	Unsubscribe() error
	Subject() string
}

// Config holds configuration for creating a MessageBus.
type Config struct {
	// URL is the NATS server URL. Empty selects the in-memory bus.
	URL string
	// Name identifies this client to the server.
	Name    string
	Timeout time.Duration
	// Logger receives connection state changes.
	Logger zerolog.Logger
}

func DefaultConfig() Config {
	return Config{Name: "taskmate", Timeout: 10 * time.Second, Logger: zerolog.Nop()}
}

// New returns a NATS bus when cfg.URL is set and an in-memory bus
// otherwise.
func New(cfg Config) (MessageBus, error) {
	if cfg.URL == "" {
		return NewMemoryBus(), nil
	}
	return NewNATSBus(cfg)
}
