package harmony

import (
	"container/list"
	"fmt"
	"math/rand"
	"sync"
)

type capacityMode int

const (
	capacityUnbounded capacityMode = iota
	capacityBounded
	capacityDisabled
)

// Capacity describes how many entries a Store may retain.
//
// The three modes are explicit rather than encoded in a magic integer:
// Bounded(n) evicts the oldest insertions beyond n, Unbounded never evicts,
// and Disabled materializes entities without storing them at all.
type Capacity struct {
	mode  capacityMode
	limit int
}

// Bounded returns a capacity that retains at most n entries.
//
// A non-positive n collapses to Disabled.
func Bounded(n int) Capacity {
	if n <= 0 {
		return Disabled()
	}

	return Capacity{mode: capacityBounded, limit: n}
}

// Unbounded returns a capacity that never evicts.
func Unbounded() Capacity {
	return Capacity{mode: capacityUnbounded}
}

// Disabled returns the store-less capacity: entities are materialized for type
// consistency but never retained, and payloads without an identifier are
// accepted.
func Disabled() Capacity {
	return Capacity{mode: capacityDisabled}
}

// Limit returns the retention bound and whether one applies.
func (c Capacity) Limit() (int, bool) {
	return c.limit, c.mode == capacityBounded
}

// IsDisabled reports whether the store-less mode is active.
func (c Capacity) IsDisabled() bool {
	return c.mode == capacityDisabled
}

// String returns an operator-readable capacity description.
func (c Capacity) String() string {
	switch c.mode {
	case capacityBounded:
		return fmt.Sprintf("bounded(%d)", c.limit)
	case capacityDisabled:
		return "disabled"
	default:
		return "unbounded"
	}
}

// Store is an identity-keyed, insertion-ordered entity container.
//
// R is the raw wire payload shape and E the materialized entity type. Entries
// are created on first observation, patched in place on later observations,
// and evicted oldest-insertion-first when a capacity bound is exceeded.
// Eviction is deliberately FIFO rather than LRU: the dominant access pattern
// is bulk iteration, so recency bookkeeping would add cost without benefit.
//
// All operations are safe for concurrent use and atomic with respect to each
// other; no caller can observe a partially-applied mutation.
type Store[R any, E Patchable[R]] struct {
	capacity    Capacity
	materialize func(R) (E, error)
	keyOf       func(R) Snowflake

	mu       sync.Mutex
	order    *list.List
	index    map[Snowflake]*list.Element
	entities map[Snowflake]E
}

// NewStore creates a store with the given capacity.
//
// materialize converts one raw payload into a fresh entity and keyOf extracts
// the identifier carried on a raw payload; both must be non-nil. Entity
// packages provide typed constructors (NewMessageStore and friends) so callers
// rarely reach for NewStore directly.
func NewStore[R any, E Patchable[R]](
	capacity Capacity,
	materialize func(R) (E, error),
	keyOf func(R) Snowflake,
) *Store[R, E] {
	return &Store[R, E]{
		capacity:    capacity,
		materialize: materialize,
		keyOf:       keyOf,
		order:       list.New(),
		index:       make(map[Snowflake]*list.Element),
		entities:    make(map[Snowflake]E),
	}
}

// Add materializes and stores one raw payload.
//
// When an entry with the same identifier already exists it is returned
// unchanged unless replace is set, in which case a freshly materialized entity
// takes its place (keeping its insertion-order slot). A payload without an
// identifier fails with ErrMissingID, except in Disabled mode where the
// payload is materialized and returned without being stored.
func (s *Store[R, E]) Add(raw R, replace bool) (E, error) {
	var zero E
	if s.capacity.IsDisabled() {
		entity, err := s.materialize(raw)
		if err != nil {
			return zero, fmt.Errorf("store add: %w", err)
		}
		return entity, nil
	}

	key := s.keyOf(raw)
	if key.IsZero() {
		return zero, fmt.Errorf("store add: %w", ErrMissingID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, exists := s.entities[key]; exists && !replace {
		return existing, nil
	}

	entity, err := s.materialize(raw)
	if err != nil {
		return zero, fmt.Errorf("store add %s: %w", key, err)
	}
	s.insertLocked(key, entity)

	return entity, nil
}

// Put stores an already-materialized entity under the same contract as Add.
//
// The caller's static type selects this path; no runtime payload inspection
// is involved.
func (s *Store[R, E]) Put(entity E, replace bool) (E, error) {
	var zero E
	if s.capacity.IsDisabled() {
		return entity, nil
	}

	key := entity.Key()
	if key.IsZero() {
		return zero, fmt.Errorf("store put: %w", ErrMissingID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, exists := s.entities[key]; exists && !replace {
		return existing, nil
	}
	s.insertLocked(key, entity)

	return entity, nil
}

// Update folds one raw payload into the store.
//
// When an entry exists it is patched in place via its ApplyPatch contract, so
// outside holders of the entity observe the update without the entity being
// replaced. When no entry exists Update behaves exactly like Add.
func (s *Store[R, E]) Update(raw R) (E, error) {
	var zero E
	if s.capacity.IsDisabled() {
		entity, err := s.materialize(raw)
		if err != nil {
			return zero, fmt.Errorf("store update: %w", err)
		}
		return entity, nil
	}

	key := s.keyOf(raw)
	if key.IsZero() {
		return zero, fmt.Errorf("store update: %w", ErrMissingID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, exists := s.entities[key]; exists {
		existing.ApplyPatch(raw)
		return existing, nil
	}

	entity, err := s.materialize(raw)
	if err != nil {
		return zero, fmt.Errorf("store update %s: %w", key, err)
	}
	s.insertLocked(key, entity)

	return entity, nil
}

// Remove deletes the entry with the given identifier.
//
// It returns the removed entity, or false when no entry exists.
func (s *Store[R, E]) Remove(id Snowflake) (E, bool) {
	var zero E

	s.mu.Lock()
	defer s.mu.Unlock()

	entity, exists := s.entities[id]
	if !exists {
		return zero, false
	}
	s.deleteLocked(id)

	return entity, true
}

// Get returns the entity stored under id.
func (s *Store[R, E]) Get(id Snowflake) (E, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entity, exists := s.entities[id]

	return entity, exists
}

// Has reports whether an entry exists for id.
func (s *Store[R, E]) Has(id Snowflake) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, exists := s.entities[id]

	return exists
}

// Len returns the number of stored entries.
func (s *Store[R, E]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.entities)
}

// Capacity returns the configured retention mode.
func (s *Store[R, E]) Capacity() Capacity {
	return s.capacity
}

// First returns the oldest-inserted entity.
func (s *Store[R, E]) First() (E, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var zero E
	front := s.order.Front()
	if front == nil {
		return zero, false
	}

	return s.entities[front.Value.(Snowflake)], true
}

// Last returns the newest-inserted entity.
func (s *Store[R, E]) Last() (E, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var zero E
	back := s.order.Back()
	if back == nil {
		return zero, false
	}

	return s.entities[back.Value.(Snowflake)], true
}

// Random returns one uniformly sampled entity.
func (s *Store[R, E]) Random() (E, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var zero E
	if len(s.entities) == 0 {
		return zero, false
	}

	target := rand.Intn(len(s.entities))
	for element := s.order.Front(); element != nil; element = element.Next() {
		if target == 0 {
			return s.entities[element.Value.(Snowflake)], true
		}
		target--
	}

	return zero, false
}

// Each invokes fn for every entity in insertion order.
func (s *Store[R, E]) Each(fn func(E)) {
	for _, entity := range s.Values() {
		fn(entity)
	}
}

// Filter returns all entities matching pred, in insertion order.
func (s *Store[R, E]) Filter(pred func(E) bool) []E {
	matched := make([]E, 0)
	for _, entity := range s.Values() {
		if pred(entity) {
			matched = append(matched, entity)
		}
	}

	return matched
}

// Find returns the first entity (by insertion order) matching pred.
func (s *Store[R, E]) Find(pred func(E) bool) (E, bool) {
	var zero E
	for _, entity := range s.Values() {
		if pred(entity) {
			return entity, true
		}
	}

	return zero, false
}

// Some reports whether any entity matches pred.
func (s *Store[R, E]) Some(pred func(E) bool) bool {
	_, found := s.Find(pred)

	return found
}

// Every reports whether all entities match pred.
func (s *Store[R, E]) Every(pred func(E) bool) bool {
	for _, entity := range s.Values() {
		if !pred(entity) {
			return false
		}
	}

	return true
}

// Sweep removes every entity matching pred and returns the removal count.
func (s *Store[R, E]) Sweep(pred func(E) bool) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	doomed := make([]Snowflake, 0)
	for element := s.order.Front(); element != nil; element = element.Next() {
		key := element.Value.(Snowflake)
		if pred(s.entities[key]) {
			doomed = append(doomed, key)
		}
	}
	for _, key := range doomed {
		s.deleteLocked(key)
	}

	return len(doomed)
}

// Keys returns all identifiers in insertion order.
func (s *Store[R, E]) Keys() []Snowflake {
	s.mu.Lock()
	defer s.mu.Unlock()

	keys := make([]Snowflake, 0, s.order.Len())
	for element := s.order.Front(); element != nil; element = element.Next() {
		keys = append(keys, element.Value.(Snowflake))
	}

	return keys
}

// Values returns all entities in insertion order.
func (s *Store[R, E]) Values() []E {
	s.mu.Lock()
	defer s.mu.Unlock()

	values := make([]E, 0, s.order.Len())
	for element := s.order.Front(); element != nil; element = element.Next() {
		values = append(values, s.entities[element.Value.(Snowflake)])
	}

	return values
}

// Fold accumulates all entities of s in insertion order.
func Fold[R any, E Patchable[R], A any](s *Store[R, E], seed A, fn func(A, E) A) A {
	accumulated := seed
	for _, entity := range s.Values() {
		accumulated = fn(accumulated, entity)
	}

	return accumulated
}

func (s *Store[R, E]) insertLocked(key Snowflake, entity E) {
	if _, exists := s.index[key]; !exists {
		s.index[key] = s.order.PushBack(key)
	}
	s.entities[key] = entity
	s.trimToCapacityLocked()
}

func (s *Store[R, E]) trimToCapacityLocked() {
	limit, bounded := s.capacity.Limit()
	if !bounded {
		return
	}
	for len(s.entities) > limit {
		front := s.order.Front()
		if front == nil {
			break
		}
		s.deleteLocked(front.Value.(Snowflake))
	}
}

func (s *Store[R, E]) deleteLocked(key Snowflake) {
	if element, exists := s.index[key]; exists {
		s.order.Remove(element)
		delete(s.index, key)
	}
	delete(s.entities, key)
}
