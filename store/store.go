// Package store holds the item collection and its backing stores.
package store

import (
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Backend persists the whole collection as one artifact.
// Every mutation of the ItemStore rewrites it in full.
type Backend interface {
	// Load returns the persisted collection in order. It returns an error
	// wrapping ErrStorageUnreadable if the artifact is missing or malformed.
	Load() ([]Item, error)

	// Save replaces the persisted collection. Readers of the artifact must
	// see either the previous or the new collection, never a mix.
	Save(items []Item) error

	// Close releases the artifact.
	Close() error
}

// Observer receives store events. metrics.Metrics implements it.
type Observer interface {
	ObserveOperation(op string, err error, elapsed time.Duration)
	SetItemCount(n int)
}

// Operation names reported to the Observer.
const (
	OpCreate    = "create"
	OpUpdate    = "update"
	OpDelete    = "delete"
	OpDeleteAll = "delete_all"
)

// Option configures an ItemStore.
type Option func(*ItemStore)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l zerolog.Logger) Option {
	return func(s *ItemStore) { s.log = l }
}

// WithObserver registers an Observer for operation and size events.
func WithObserver(o Observer) Option {
	return func(s *ItemStore) { s.observer = o }
}

// WithClock replaces the clock used for id generation.
func WithClock(now func() time.Time) Option {
	return func(s *ItemStore) { s.ids.now = now }
}

// ItemStore owns the authoritative item collection. Each mutation persists
// the full collection through the Backend before it becomes visible, so the
// in-memory copy never runs ahead of storage. Safe for concurrent use.
type ItemStore struct {
	mu       sync.RWMutex
	items    []Item
	backend  Backend
	ids      *idGenerator
	log      zerolog.Logger
	observer Observer
}

// Open loads the collection from b. A missing or malformed artifact yields an
// empty collection; it is not an error.
func Open(b Backend, opts ...Option) (*ItemStore, error) {
	if b == nil {
		return nil, errors.New("store: nil backend")
	}
	s := &ItemStore{
		backend: b,
		ids:     newIDGenerator(time.Now),
		log:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}

	items, err := b.Load()
	if err != nil {
		s.log.Warn().Err(err).Msg("starting with an empty collection")
		items = nil
	}
	s.items = s.repair(items)
	s.report()
	s.log.Debug().Int("items", len(s.items)).Msg("collection loaded")
	return s, nil
}

// repair assigns fresh ids to items without a usable or unique id.
func (s *ItemStore) repair(items []Item) []Item {
	seen := make(map[int64]struct{}, len(items))
	for _, it := range items {
		if it.ID > 0 {
			s.ids.observe(it.ID)
		}
	}
	out := make([]Item, 0, len(items))
	for _, it := range items {
		if it.Fields == nil {
			it.Fields = map[string]any{}
		}
		if _, dup := seen[it.ID]; it.ID <= 0 || dup {
			old := it.ID
			it.ID = s.ids.next()
			s.log.Warn().Int64("old_id", old).Int64("new_id", it.ID).Msg("reassigned invalid or duplicate item id")
		}
		seen[it.ID] = struct{}{}
		out = append(out, it)
	}
	return out
}

// List returns every item in collection order.
func (s *ItemStore) List() []Item {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneAll(s.items)
}

// Len returns the number of items.
func (s *ItemStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// Get returns the item with the given id, or ErrNotFound.
func (s *ItemStore) Get(id int64) (Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i := s.indexOf(id)
	if i < 0 {
		return Item{}, ErrNotFound
	}
	return s.items[i].clone(), nil
}

// Create stores fields as a new item under a freshly generated id. Any id in
// fields is ignored.
func (s *ItemStore) Create(fields map[string]any) (Item, error) {
	start := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()

	it := Item{ID: s.ids.next(), Fields: stripID(fields)}
	next := append(slices.Clip(s.items), it)
	err := s.commit(next)
	s.observe(OpCreate, err, start)
	if err != nil {
		return Item{}, err
	}
	s.log.Debug().Int64("id", it.ID).Msg("item created")
	return it.clone(), nil
}

// Update merges patch onto the item with the given id. Keys in patch replace
// existing keys; other fields are kept. An id in patch must match.
func (s *ItemStore) Update(id int64, patch map[string]any) (Item, error) {
	start := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()

	it, err := s.update(id, patch)
	s.observe(OpUpdate, err, start)
	return it, err
}

func (s *ItemStore) update(id int64, patch map[string]any) (Item, error) {
	i := s.indexOf(id)
	if i < 0 {
		return Item{}, ErrNotFound
	}
	if raw, ok := patch[IDField]; ok && !sameID(raw, id) {
		return Item{}, ErrIDImmutable
	}

	merged := s.items[i].clone()
	for k, v := range stripID(patch) {
		merged.Fields[k] = v
	}
	next := slices.Clone(s.items)
	next[i] = merged
	if err := s.commit(next); err != nil {
		return Item{}, err
	}
	s.log.Debug().Int64("id", id).Msg("item updated")
	return merged.clone(), nil
}

// Delete removes the item with the given id.
func (s *ItemStore) Delete(id int64) error {
	start := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.delete(id)
	s.observe(OpDelete, err, start)
	return err
}

func (s *ItemStore) delete(id int64) error {
	i := s.indexOf(id)
	if i < 0 {
		return ErrNotFound
	}
	next := slices.Delete(slices.Clone(s.items), i, i+1)
	if err := s.commit(next); err != nil {
		return err
	}
	s.log.Debug().Int64("id", id).Msg("item deleted")
	return nil
}

// DeleteAll empties the collection.
func (s *ItemStore) DeleteAll() error {
	start := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.commit([]Item{})
	s.observe(OpDeleteAll, err, start)
	if err == nil {
		s.log.Debug().Msg("all items deleted")
	}
	return err
}

// Close releases the backend.
func (s *ItemStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.backend.Close()
}

// commit persists next and only then makes it the current collection.
// Callers must hold the write lock.
func (s *ItemStore) commit(next []Item) error {
	if err := s.backend.Save(next); err != nil {
		s.log.Error().Err(err).Msg("failed to persist collection")
		return fmt.Errorf("%w: %w", ErrStorageWrite, err)
	}
	s.items = next
	s.report()
	return nil
}

func (s *ItemStore) indexOf(id int64) int {
	return slices.IndexFunc(s.items, func(it Item) bool { return it.ID == id })
}

func (s *ItemStore) observe(op string, err error, start time.Time) {
	if s.observer != nil {
		s.observer.ObserveOperation(op, err, time.Since(start))
	}
}

func (s *ItemStore) report() {
	if s.observer != nil {
		s.observer.SetItemCount(len(s.items))
	}
}

// sameID reports whether a decoded JSON id value equals id.
func sameID(raw any, id int64) bool {
	switch v := raw.(type) {
	case float64:
		return v == float64(id)
	case int64:
		return v == id
	case int:
		return int64(v) == id
	}
	return false
}
