// Package memstore implements the remote store in process memory. It backs
// local development (STORE_BACKEND=memory) and the package tests of every
// store consumer. Subscriptions deliver synchronously on the mutating
// goroutine.
package memstore

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"

	"github.com/tandemlist/tandem/internal/store"
)

var errNotARecord = errors.New("path must name a record or a field inside one")

// Store holds collections as uid-keyed record maps behind one mutex.
type Store struct {
	mu          sync.Mutex
	collections map[string]map[string]store.Record
	subs        map[uint64]*subscription
	nextSubID   uint64
}

// New returns an empty store.
func New() *Store {
	return &Store{
		collections: make(map[string]map[string]store.Record),
		subs:        make(map[uint64]*subscription),
	}
}

type subscription struct {
	owner      *Store
	id         uint64
	collection string
	filter     store.Filter
	handler    store.Handler

	// deliverMu serializes deliveries against Close so no handler call can
	// begin after Close returns.
	deliverMu sync.Mutex
	closed    bool
}

func (s *subscription) deliver(records map[string]store.Record) {
	s.deliverMu.Lock()
	defer s.deliverMu.Unlock()
	if s.closed {
		return
	}
	s.handler(records)
}

func (s *subscription) Close() {
	s.owner.mu.Lock()
	delete(s.owner.subs, s.id)
	s.owner.mu.Unlock()

	s.deliverMu.Lock()
	s.closed = true
	s.deliverMu.Unlock()
}

// Subscribe registers the handler and fires it once with current filtered
// state before returning.
func (m *Store) Subscribe(_ context.Context, collection string, filter store.Filter, handler store.Handler) (store.Subscription, error) {
	m.mu.Lock()
	m.nextSubID++
	sub := &subscription{
		owner:      m,
		id:         m.nextSubID,
		collection: collection,
		filter:     filter,
		handler:    handler,
	}
	m.subs[sub.id] = sub
	initial := m.filteredLocked(collection, filter)
	m.mu.Unlock()

	sub.deliver(initial)
	return sub, nil
}

// ReadOnce resolves a path to a copy of its current value.
func (m *Store) ReadOnce(_ context.Context, path string) (any, error) {
	segments := store.SplitPath(path)
	if len(segments) == 0 {
		return nil, store.NewRemoteError("read", path, errNotARecord)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	records := m.collections[segments[0]]
	if records == nil {
		return nil, nil
	}
	if len(segments) == 1 {
		return nil, store.NewRemoteError("read", path, errNotARecord)
	}
	record, ok := records[segments[1]]
	if !ok {
		return nil, nil
	}
	value := store.ValueAt(record, segments[2:])
	if nested, ok := value.(map[string]any); ok {
		return store.DeepCopy(nested), nil
	}
	return value, nil
}

// QueryOnce returns copies of the collection records matching the filter.
func (m *Store) QueryOnce(_ context.Context, collection string, filter store.Filter) (map[string]store.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.filteredLocked(collection, filter), nil
}

// Write replaces the value at path. Writing nil removes it.
func (m *Store) Write(_ context.Context, path string, value any) error {
	segments := store.SplitPath(path)
	if len(segments) < 2 {
		return store.NewRemoteError("write", path, errNotARecord)
	}

	m.mu.Lock()
	collection, uid := segments[0], segments[1]
	records := m.collections[collection]
	if records == nil {
		records = make(map[string]store.Record)
		m.collections[collection] = records
	}

	if len(segments) == 2 {
		if value == nil {
			delete(records, uid)
		} else {
			record, ok := value.(map[string]any)
			if !ok {
				m.mu.Unlock()
				return store.NewRemoteError("write", path, errors.New("record value must be a map"))
			}
			records[uid] = store.DeepCopy(record)
		}
	} else {
		record, ok := records[uid]
		if !ok {
			if value == nil {
				m.mu.Unlock()
				return nil
			}
			record = store.Record{}
			records[uid] = record
		}
		if nested, ok := value.(map[string]any); ok {
			value = store.DeepCopy(nested)
		}
		store.SetAt(record, segments[2:], value)
	}
	m.notifyLocked(collection)
	return nil
}

// Update merges fields into the record (or nested map) at path; nil field
// values remove keys.
func (m *Store) Update(_ context.Context, path string, fields map[string]any) error {
	segments := store.SplitPath(path)
	if len(segments) < 2 {
		return store.NewRemoteError("update", path, errNotARecord)
	}

	m.mu.Lock()
	collection, uid := segments[0], segments[1]
	records := m.collections[collection]
	if records == nil {
		records = make(map[string]store.Record)
		m.collections[collection] = records
	}
	record, ok := records[uid]
	if !ok {
		record = store.Record{}
		records[uid] = record
	}
	store.ApplyUpdate(record, segments[2:], store.DeepCopy(fields))
	m.notifyLocked(collection)
	return nil
}

// Remove deletes the value at path.
func (m *Store) Remove(ctx context.Context, path string) error {
	segments := store.SplitPath(path)
	if len(segments) < 2 {
		return store.NewRemoteError("remove", path, errNotARecord)
	}
	if len(segments) == 2 {
		return m.Write(ctx, path, nil)
	}

	m.mu.Lock()
	collection, uid := segments[0], segments[1]
	if record, ok := m.collections[collection][uid]; ok {
		store.RemoveAt(record, segments[2:])
	}
	m.notifyLocked(collection)
	return nil
}

// Push returns a fresh child key. Keys are opaque; ordering comes from
// record timestamps, not keys.
func (m *Store) Push(string) string {
	return uuid.NewString()
}

// filteredLocked copies the matching records of a collection. Callers hold mu.
func (m *Store) filteredLocked(collection string, filter store.Filter) map[string]store.Record {
	result := make(map[string]store.Record)
	for uid, record := range m.collections[collection] {
		if filter.Matches(record) {
			result[uid] = store.DeepCopy(record)
		}
	}
	return result
}

// notifyLocked snapshots the subscribers of a collection, releases the store
// lock, and delivers. Handlers are free to call back into the store.
func (m *Store) notifyLocked(collection string) {
	type delivery struct {
		sub     *subscription
		records map[string]store.Record
	}
	var pending []delivery
	for _, sub := range m.subs {
		if sub.collection == collection {
			pending = append(pending, delivery{sub: sub, records: m.filteredLocked(collection, sub.filter)})
		}
	}
	m.mu.Unlock()

	for _, d := range pending {
		d.sub.deliver(d.records)
	}
}
