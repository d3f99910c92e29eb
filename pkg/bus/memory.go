package bus

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
)

const memoryBufferSize = 256

// MemoryBus is an in-process MessageBus. Delivery is asynchronous and
// best-effort: a subscriber whose buffer is full misses messages.
type MemoryBus struct {
	mu            sync.RWMutex
	subscriptions map[string][]*memorySubscription
	closed        atomic.Bool
	subCounter    atomic.Uint64
	dropped       atomic.Uint64
}

func NewMemoryBus() *MemoryBus {
	return &MemoryBus{subscriptions: make(map[string][]*memorySubscription)}
}

func (b *MemoryBus) Publish(ctx context.Context, subject string, data []byte) error {
	if b.closed.Load() {
		return ErrClosed
	}
	msg := &Message{Subject: subject, Data: data}

	b.mu.RLock()
	defer b.mu.RUnlock()
	for pattern, subs := range b.subscriptions {
		if !matchSubject(pattern, subject) {
			continue
		}
		for _, sub := range subs {
			select {
			case sub.messages <- msg:
			default:
				b.dropped.Add(1)
			}
		}
	}
	return nil
}

// Dropped counts messages discarded because a subscriber was full.
func (b *MemoryBus) Dropped() uint64 {
	return b.dropped.Load()
}

func (b *MemoryBus) Subscribe(ctx context.Context, subject string, handler MessageHandler) (Subscription, error) {
	if b.closed.Load() {
		return nil, ErrClosed
	}
	sub := &memorySubscription{
		id:       fmt.Sprintf("sub-%d", b.subCounter.Add(1)),
		subject:  subject,
		messages: make(chan *Message, memoryBufferSize),
		handler:  handler,
		bus:      b,
		done:     make(chan struct{}),
	}

	b.mu.Lock()
	b.subscriptions[subject] = append(b.subscriptions[subject], sub)
	b.mu.Unlock()

	go sub.run(ctx)
	return sub, nil
}

// Close stops every subscription and waits for handlers to return.
func (b *MemoryBus) Close() error {
	if b.closed.Swap(true) {
		return ErrClosed
	}

	b.mu.Lock()
	var all []*memorySubscription
	for subject, subs := range b.subscriptions {
		for _, sub := range subs {
			close(sub.messages)
			all = append(all, sub)
		}
		delete(b.subscriptions, subject)
	}
	b.mu.Unlock()

	for _, sub := range all {
		<-sub.done
	}
	return nil
}

type memorySubscription struct {
	id       string
	subject  string
	messages chan *Message
	handler  MessageHandler
	bus      *MemoryBus
	done     chan struct{}
}

// Unsubscribe removes the subscription and stops its goroutine.
func (s *memorySubscription) Unsubscribe() error {
	s.bus.mu.Lock()
	subs := s.bus.subscriptions[s.subject]
	found := false
	for i, sub := range subs {
		if sub.id == s.id {
			s.bus.subscriptions[s.subject] = append(subs[:i:i], subs[i+1:]...)
			found = true
			break
		}
	}
	if len(s.bus.subscriptions[s.subject]) == 0 {
		delete(s.bus.subscriptions, s.subject)
	}
	if found {
		close(s.messages)
	}
	s.bus.mu.Unlock()
	return nil
}

func (s *memorySubscription) Subject() string {
	return s.subject
}

func (s *memorySubscription) run(ctx context.Context) {
	defer close(s.done)
	for {
		select {
		case msg, ok := <-s.messages:
			if !ok {
				return
			}
			s.handler(msg)
		case <-ctx.Done():
			// Drain so publishers never block on a dead subscriber.
			_ = s.Unsubscribe()
			return
		}
	}
}

// matchSubject reports whether subject matches pattern. "*" matches exactly
// one token; ">" matches one or more trailing tokens.
func matchSubject(pattern, subject string) bool {
	if pattern == subject {
		return true
	}
	pp := strings.Split(pattern, ".")
	sp := strings.Split(subject, ".")

	for i, tok := range pp {
		if tok == ">" {
			return i == len(pp)-1 && len(sp) > i
		}
		if i >= len(sp) {
			return false
		}
		if tok != "*" && tok != sp[i] {
			return false
		}
	}
	return len(pp) == len(sp)
}
