// Package redistore implements the remote store on Redis: one hash per
// collection (uid -> JSON record) with change fan-out over a pub/sub channel
// per collection. Subscribers rescan the filtered collection on every
// published change, so each delivery is a wholesale snapshot.
package redistore

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/tandemlist/tandem/internal/store"
)

const keyPrefix = "tandem:"

var errNotARecord = errors.New("path must name a record or a field inside one")

// Store wraps a connected Redis client.
type Store struct {
	client *redis.Client
	log    *zap.Logger
}

// New returns a store over the given client. The caller owns the client's
// lifecycle.
func New(client *redis.Client, log *zap.Logger) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{client: client, log: log}
}

func collectionKey(collection string) string {
	return keyPrefix + collection
}

func changeChannel(collection string) string {
	return keyPrefix + "changes:" + collection
}

func (s *Store) loadRecord(ctx context.Context, collection, uid string) (store.Record, error) {
	raw, err := s.client.HGet(ctx, collectionKey(collection), uid).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, store.NewRemoteError("read", collection+"/"+uid, err)
	}
	var record store.Record
	if err := json.Unmarshal([]byte(raw), &record); err != nil {
		return nil, store.NewRemoteError("decode", collection+"/"+uid, err)
	}
	return record, nil
}

func (s *Store) saveRecord(ctx context.Context, collection, uid string, record store.Record) error {
	payload, err := json.Marshal(record)
	if err != nil {
		return store.NewRemoteError("encode", collection+"/"+uid, err)
	}
	if err := s.client.HSet(ctx, collectionKey(collection), uid, payload).Err(); err != nil {
		return store.NewRemoteError("write", collection+"/"+uid, err)
	}
	return nil
}

func (s *Store) publish(ctx context.Context, collection, uid string) {
	if err := s.client.Publish(ctx, changeChannel(collection), uid).Err(); err != nil {
		s.log.Warn("publishing change event failed",
			zap.String("collection", collection),
			zap.Error(err))
	}
}

// ReadOnce resolves a path against the stored record.
func (s *Store) ReadOnce(ctx context.Context, path string) (any, error) {
	segments := store.SplitPath(path)
	if len(segments) < 2 {
		return nil, store.NewRemoteError("read", path, errNotARecord)
	}
	record, err := s.loadRecord(ctx, segments[0], segments[1])
	if err != nil || record == nil {
		return nil, err
	}
	return store.ValueAt(record, segments[2:]), nil
}

// QueryOnce scans the collection hash and filters client-side.
func (s *Store) QueryOnce(ctx context.Context, collection string, filter store.Filter) (map[string]store.Record, error) {
	entries, err := s.client.HGetAll(ctx, collectionKey(collection)).Result()
	if err != nil {
		return nil, store.NewRemoteError("query", collection, err)
	}
	result := make(map[string]store.Record)
	for uid, raw := range entries {
		var record store.Record
		if err := json.Unmarshal([]byte(raw), &record); err != nil {
			s.log.Warn("skipping undecodable record",
				zap.String("collection", collection),
				zap.String("uid", uid),
				zap.Error(err))
			continue
		}
		if filter.Matches(record) {
			result[uid] = record
		}
	}
	return result, nil
}

// Write replaces the value at path. Record-level writes are atomic; nested
// writes are record-level read-modify-write, so concurrent writers to the
// same record resolve last-write-wins, matching the store's slice semantics.
func (s *Store) Write(ctx context.Context, path string, value any) error {
	segments := store.SplitPath(path)
	if len(segments) < 2 {
		return store.NewRemoteError("write", path, errNotARecord)
	}
	collection, uid := segments[0], segments[1]

	if len(segments) == 2 {
		if value == nil {
			if err := s.client.HDel(ctx, collectionKey(collection), uid).Err(); err != nil {
				return store.NewRemoteError("remove", path, err)
			}
		} else {
			record, ok := value.(map[string]any)
			if !ok {
				return store.NewRemoteError("write", path, errors.New("record value must be a map"))
			}
			if err := s.saveRecord(ctx, collection, uid, record); err != nil {
				return err
			}
		}
		s.publish(ctx, collection, uid)
		return nil
	}

	record, err := s.loadRecord(ctx, collection, uid)
	if err != nil {
		return err
	}
	if record == nil {
		if value == nil {
			return nil
		}
		record = store.Record{}
	}
	store.SetAt(record, segments[2:], value)
	if err := s.saveRecord(ctx, collection, uid, record); err != nil {
		return err
	}
	s.publish(ctx, collection, uid)
	return nil
}

// Update merges fields into the record at path; nil field values remove keys.
func (s *Store) Update(ctx context.Context, path string, fields map[string]any) error {
	segments := store.SplitPath(path)
	if len(segments) < 2 {
		return store.NewRemoteError("update", path, errNotARecord)
	}
	collection, uid := segments[0], segments[1]

	record, err := s.loadRecord(ctx, collection, uid)
	if err != nil {
		return err
	}
	if record == nil {
		record = store.Record{}
	}
	store.ApplyUpdate(record, segments[2:], fields)
	if err := s.saveRecord(ctx, collection, uid, record); err != nil {
		return err
	}
	s.publish(ctx, collection, uid)
	return nil
}

// Remove deletes the value at path.
func (s *Store) Remove(ctx context.Context, path string) error {
	segments := store.SplitPath(path)
	if len(segments) < 2 {
		return store.NewRemoteError("remove", path, errNotARecord)
	}
	if len(segments) == 2 {
		return s.Write(ctx, path, nil)
	}
	collection, uid := segments[0], segments[1]

	record, err := s.loadRecord(ctx, collection, uid)
	if err != nil || record == nil {
		return err
	}
	store.RemoveAt(record, segments[2:])
	if err := s.saveRecord(ctx, collection, uid, record); err != nil {
		return err
	}
	s.publish(ctx, collection, uid)
	return nil
}

// Push returns a fresh child key.
func (s *Store) Push(string) string {
	return uuid.NewString()
}

type subscription struct {
	pubsub *redis.PubSub

	mu     sync.Mutex
	closed bool
}

func (s *subscription) deliver(handler store.Handler, records map[string]store.Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	handler(records)
}

func (s *subscription) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	_ = s.pubsub.Close()
}

// Subscribe delivers the current filtered state, then rescans and redelivers
// after every change published for the collection. A failed rescan freezes
// the last delivered state rather than retrying.
func (s *Store) Subscribe(ctx context.Context, collection string, filter store.Filter, handler store.Handler) (store.Subscription, error) {
	pubsub := s.client.Subscribe(ctx, changeChannel(collection))
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, store.NewRemoteError("subscribe", collection, err)
	}
	sub := &subscription{pubsub: pubsub}

	initial, err := s.QueryOnce(ctx, collection, filter)
	if err != nil {
		_ = pubsub.Close()
		return nil, err
	}
	sub.deliver(handler, initial)

	go func() {
		for range pubsub.Channel() {
			records, err := s.QueryOnce(ctx, collection, filter)
			if err != nil {
				s.log.Warn("subscription rescan failed",
					zap.String("collection", collection),
					zap.Error(err))
				continue
			}
			sub.deliver(handler, records)
		}
	}()

	return sub, nil
}
