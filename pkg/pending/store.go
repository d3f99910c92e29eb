// Package pending holds proposed action batches until the user confirms or
// declines them. Entries are per user, expire after a TTL and live only in
// memory.
package pending

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/odvcencio/taskmate/pkg/actions"
)

const (
	DefaultTTL           = 5 * time.Minute
	DefaultSweepInterval = 60 * time.Second
)

// Config configures a Store.
type Config struct {
	TTL           time.Duration
	SweepInterval time.Duration
	// Now overrides the clock; nil means time.Now.
	Now    func() time.Time
	Logger zerolog.Logger
}

// Entry is one user's pending batch.
type Entry struct {
	UserID         string
	Actions        []actions.Action
	ConversationID string
	CreatedAt      time.Time
	Timestamp      time.Time // last set or touch
	ExpiresAt      time.Time
}

func (e *Entry) expired(now time.Time) bool {
	return now.After(e.ExpiresAt)
}

func (e *Entry) clone() *Entry {
	cp := *e
	cp.Actions = append([]actions.Action(nil), e.Actions...)
	return &cp
}

// Metadata describes an entry without exposing action payloads.
type Metadata struct {
	Count            int            `json:"count"`
	DestructiveCount int            `json:"destructiveCount"`
	Kinds            []actions.Kind `json:"kinds"`
	ConversationID   string         `json:"conversationId,omitempty"`
	CreatedAt        time.Time      `json:"createdAt"`
	Timestamp        time.Time      `json:"timestamp"`
	ExpiresAt        time.Time      `json:"expiresAt"`
	Remaining        time.Duration  `json:"remainingNs"`
}

// Stats is a diagnostic snapshot.
type Stats struct {
	TotalEntries int     `json:"totalEntries"`
	TTLMinutes   float64 `json:"ttlMinutes"`
}

// Store is safe for concurrent use. Operations on different users never
// interact; for the same user the last Set wins.
type Store struct {
	mu      sync.Mutex
	entries map[string]*Entry

	ttl           time.Duration
	sweepInterval time.Duration
	now           func() time.Time
	logger        zerolog.Logger

	obsMu     sync.RWMutex
	observers []Observer

	startOnce sync.Once
	stopOnce  sync.Once
	stopChan  chan struct{}
	done      chan struct{}
}

// New creates a store. Call Start to enable the background sweep.
func New(cfg Config) *Store {
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	sweep := cfg.SweepInterval
	if sweep <= 0 {
		sweep = DefaultSweepInterval
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Store{
		entries:       make(map[string]*Entry),
		ttl:           ttl,
		sweepInterval: sweep,
		now:           now,
		logger:        cfg.Logger,
		stopChan:      make(chan struct{}),
		done:          make(chan struct{}),
	}
}

// Start launches the sweep loop. It stops when ctx is cancelled or
// Shutdown is called.
func (s *Store) Start(ctx context.Context) {
	s.startOnce.Do(func() {
		go s.sweepLoop(ctx)
	})
}

// Shutdown stops the sweep loop and waits for it to exit. Entries are
// dropped with the process; nothing is persisted.
func (s *Store) Shutdown() {
	s.stopOnce.Do(func() {
		close(s.stopChan)
	})
	started := true
	s.startOnce.Do(func() { started = false })
	if started {
		<-s.done
	}
}

func (s *Store) sweepLoop(ctx context.Context) {
	defer close(s.done)

	ticker := time.NewTicker(s.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopChan:
			return
		case <-ticker.C:
			if n := s.Sweep(); n > 0 {
				s.logger.Debug().Int("removed", n).Msg("swept expired pending actions")
			}
		}
	}
}

// Set stores batch for userID, replacing any existing entry and starting a
// fresh TTL window. It returns false without mutating anything when userID
// is empty or batch is empty or holds a nil action.
func (s *Store) Set(userID string, batch []actions.Action, conversationID string) bool {
	if userID == "" || len(batch) == 0 {
		return false
	}
	for _, a := range batch {
		if a == nil {
			return false
		}
	}

	now := s.now()
	entry := &Entry{
		UserID:         userID,
		Actions:        append([]actions.Action(nil), batch...),
		ConversationID: conversationID,
		CreatedAt:      now,
		Timestamp:      now,
		ExpiresAt:      now.Add(s.ttl),
	}

	s.mu.Lock()
	_, replaced := s.entries[userID]
	s.entries[userID] = entry
	s.mu.Unlock()

	s.logger.Debug().Str("user_id", userID).Int("count", len(batch)).Bool("replaced", replaced).Msg("pending actions stored")
	s.notify(Event{Type: EventSet, UserID: userID, Count: len(batch), At: now})
	return true
}

// Get returns a copy of the live entry for userID, or nil. An expired entry
// is deleted on the way out.
func (s *Store) Get(userID string) *Entry {
	now := s.now()

	s.mu.Lock()
	entry, ok := s.entries[userID]
	if !ok {
		s.mu.Unlock()
		return nil
	}
	if entry.expired(now) {
		delete(s.entries, userID)
		s.mu.Unlock()
		s.notify(Event{Type: EventExpired, UserID: userID, Count: len(entry.Actions), At: now})
		return nil
	}
	cp := entry.clone()
	s.mu.Unlock()
	return cp
}

// GetActions returns the live batch for userID, or nil.
func (s *Store) GetActions(userID string) []actions.Action {
	if entry := s.Get(userID); entry != nil {
		return entry.Actions
	}
	return nil
}

// HasPending reports whether userID has a live entry.
func (s *Store) HasPending(userID string) bool {
	return s.Get(userID) != nil
}

// Take removes and returns the live entry for userID. Of several concurrent
// callers at most one receives the entry.
func (s *Store) Take(userID string) *Entry {
	entry, _ := s.TakeIf(userID, nil)
	return entry
}

// TakeIf is Take guarded by accept, which sees the entry under the store
// lock. A rejected entry stays pending and a copy is returned with false.
// A nil accept takes any live entry.
func (s *Store) TakeIf(userID string, accept func(*Entry) bool) (*Entry, bool) {
	now := s.now()

	s.mu.Lock()
	entry, ok := s.entries[userID]
	if !ok {
		s.mu.Unlock()
		return nil, false
	}
	if entry.expired(now) {
		delete(s.entries, userID)
		s.mu.Unlock()
		s.notify(Event{Type: EventExpired, UserID: userID, Count: len(entry.Actions), At: now})
		return nil, false
	}
	if accept != nil && !accept(entry) {
		cp := entry.clone()
		s.mu.Unlock()
		return cp, false
	}
	delete(s.entries, userID)
	s.mu.Unlock()

	s.notify(Event{Type: EventTaken, UserID: userID, Count: len(entry.Actions), At: now})
	return entry, true
}

// Clear deletes the entry for userID and reports whether one existed.
func (s *Store) Clear(userID string) bool {
	s.mu.Lock()
	entry, ok := s.entries[userID]
	if ok {
		delete(s.entries, userID)
	}
	s.mu.Unlock()

	if ok {
		s.notify(Event{Type: EventCleared, UserID: userID, Count: len(entry.Actions), At: s.now()})
	}
	return ok
}

// Touch restarts the TTL window of an existing entry, including one that
// has expired but not yet been evicted. Missing users are a no-op.
func (s *Store) Touch(userID string) {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()
	if entry, ok := s.entries[userID]; ok {
		entry.Timestamp = now
		entry.ExpiresAt = now.Add(s.ttl)
	}
}

// Metadata summarizes the live entry for userID, or returns nil.
func (s *Store) Metadata(userID string) *Metadata {
	entry := s.Get(userID)
	if entry == nil {
		return nil
	}
	kinds := make([]actions.Kind, 0, len(entry.Actions))
	for _, a := range entry.Actions {
		kinds = append(kinds, a.Kind())
	}
	remaining := entry.ExpiresAt.Sub(s.now())
	if remaining < 0 {
		remaining = 0
	}
	return &Metadata{
		Count:            len(entry.Actions),
		DestructiveCount: actions.CountDestructive(entry.Actions),
		Kinds:            kinds,
		ConversationID:   entry.ConversationID,
		CreatedAt:        entry.CreatedAt,
		Timestamp:        entry.Timestamp,
		ExpiresAt:        entry.ExpiresAt,
		Remaining:        remaining,
	}
}

// Stats reports the entry count, including expired entries not yet swept.
func (s *Store) Stats() Stats {
	s.mu.Lock()
	n := len(s.entries)
	s.mu.Unlock()
	return Stats{TotalEntries: n, TTLMinutes: s.ttl.Minutes()}
}

// TTL returns the configured lifetime of an entry.
func (s *Store) TTL() time.Duration {
	return s.ttl
}

// Sweep deletes every expired entry and returns how many were removed.
func (s *Store) Sweep() int {
	now := s.now()

	var expired []Event
	s.mu.Lock()
	for userID, entry := range s.entries {
		if entry.expired(now) {
			delete(s.entries, userID)
			expired = append(expired, Event{Type: EventExpired, UserID: userID, Count: len(entry.Actions), At: now})
		}
	}
	s.mu.Unlock()

	for _, ev := range expired {
		s.notify(ev)
	}
	return len(expired)
}
