// Package kvstore is a process-wide expiring key-value store. It stands in
// for an external cache while the service runs as a single process; swapping
// it for a shared cache is the scaling boundary, not a code change here.
package kvstore

import (
	"encoding/json"
	"sync"
	"time"
)

// DefaultSweepInterval is how often the background sweep evicts expired
// entries that are never read again.
const DefaultSweepInterval = 60 * time.Second

type entry struct {
	value     json.RawMessage
	expiresAt time.Time // zero means no expiry
}

func (e entry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

// Store holds expiring entries and named sets. Sets carry no TTL; their
// membership is managed explicitly by callers (presence transitions).
type Store struct {
	mu      sync.RWMutex
	entries map[string]entry
	sets    map[string]map[string]struct{}
	now     func() time.Time
	done    chan struct{}
	once    sync.Once
}

// New creates an empty store.
func New() *Store {
	return &Store{
		entries: make(map[string]entry),
		sets:    make(map[string]map[string]struct{}),
		now:     time.Now,
		done:    make(chan struct{}),
	}
}

// NewWithClock creates a store with an injected clock for tests.
func NewWithClock(now func() time.Time) *Store {
	s := New()
	s.now = now
	return s
}

// Set stores a JSON-serialized value. A ttl of zero means the entry never
// expires.
func (s *Store) Set(key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}

	e := entry{value: data}
	if ttl > 0 {
		e.expiresAt = s.now().Add(ttl)
	}

	s.mu.Lock()
	s.entries[key] = e
	s.mu.Unlock()
	return nil
}

// Get unmarshals the value into dest and reports whether the key was present
// and live. An expired entry behaves as absent and is evicted on the spot.
func (s *Store) Get(key string, dest interface{}) (bool, error) {
	s.mu.RLock()
	e, ok := s.entries[key]
	s.mu.RUnlock()
	if !ok {
		return false, nil
	}

	if e.expired(s.now()) {
		s.mu.Lock()
		// Re-check under the write lock; the key may have been rewritten.
		if current, still := s.entries[key]; still && current.expired(s.now()) {
			delete(s.entries, key)
		}
		s.mu.Unlock()
		return false, nil
	}

	if dest != nil {
		if err := json.Unmarshal(e.value, dest); err != nil {
			return false, err
		}
	}
	return true, nil
}

// Exists reports whether a live entry is present without decoding it.
func (s *Store) Exists(key string) bool {
	ok, _ := s.Get(key, nil)
	return ok
}

// Delete removes a key unconditionally.
func (s *Store) Delete(key string) {
	s.mu.Lock()
	delete(s.entries, key)
	s.mu.Unlock()
}

// AddToSet adds a member to a named set. Idempotent.
func (s *Store) AddToSet(setName, member string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sets[setName]; !ok {
		s.sets[setName] = make(map[string]struct{})
	}
	s.sets[setName][member] = struct{}{}
}

// RemoveFromSet removes a member from a named set.
func (s *Store) RemoveFromSet(setName, member string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if members, ok := s.sets[setName]; ok {
		delete(members, member)
		if len(members) == 0 {
			delete(s.sets, setName)
		}
	}
}

// InSet reports set membership.
func (s *Store) InSet(setName, member string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.sets[setName][member]
	return ok
}

// SetMembers returns the members of a named set.
func (s *Store) SetMembers(setName string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	members := make([]string, 0, len(s.sets[setName]))
	for member := range s.sets[setName] {
		members = append(members, member)
	}
	return members
}

// Sweep evicts every expired entry and returns how many were removed.
func (s *Store) Sweep() int {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for key, e := range s.entries {
		if e.expired(now) {
			delete(s.entries, key)
			removed++
		}
	}
	return removed
}

// StartSweeper launches the periodic sweep goroutine.
func (s *Store) StartSweeper(interval time.Duration) {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.Sweep()
			case <-s.done:
				return
			}
		}
	}()
}

// Stop halts the sweeper.
func (s *Store) Stop() {
	s.once.Do(func() { close(s.done) })
}

// Len reports the number of entries, live or not.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
