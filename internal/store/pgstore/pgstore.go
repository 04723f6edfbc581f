// Package pgstore implements the remote store on Postgres. Records live in a
// single jsonb table keyed by (collection, uid); a trigger emits NOTIFY on
// every change and subscribers rescan their filtered collection when its name
// arrives on the channel. Schema is owned by the migrations directory.
package pgstore

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/tandemlist/tandem/internal/store"
)

// NotifyChannel is the Postgres channel the records trigger publishes to.
// Payload is the changed collection's name.
const NotifyChannel = "tandem_changes"

var errNotARecord = errors.New("path must name a record or a field inside one")

// Store wraps a connected pgx pool.
type Store struct {
	pool *pgxpool.Pool
	log  *zap.Logger
}

// New returns a store over the given pool. The caller owns the pool's
// lifecycle and has already run migrations.
func New(pool *pgxpool.Pool, log *zap.Logger) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{pool: pool, log: log}
}

// ReadOnce resolves a path against the stored record.
func (s *Store) ReadOnce(ctx context.Context, path string) (any, error) {
	segments := store.SplitPath(path)
	if len(segments) < 2 {
		return nil, store.NewRemoteError("read", path, errNotARecord)
	}

	var record store.Record
	err := s.pool.QueryRow(ctx,
		"SELECT data FROM records WHERE collection = $1 AND uid = $2",
		segments[0], segments[1],
	).Scan(&record)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, store.NewRemoteError("read", path, err)
	}
	return store.ValueAt(record, segments[2:]), nil
}

// QueryOnce scans the collection and filters client-side, keeping filter
// semantics identical across backends.
func (s *Store) QueryOnce(ctx context.Context, collection string, filter store.Filter) (map[string]store.Record, error) {
	rows, err := s.pool.Query(ctx,
		"SELECT uid, data FROM records WHERE collection = $1",
		collection,
	)
	if err != nil {
		return nil, store.NewRemoteError("query", collection, err)
	}
	defer rows.Close()

	result := make(map[string]store.Record)
	for rows.Next() {
		var uid string
		var record store.Record
		if err := rows.Scan(&uid, &record); err != nil {
			return nil, store.NewRemoteError("query", collection, err)
		}
		if filter.Matches(record) {
			result[uid] = record
		}
	}
	if err := rows.Err(); err != nil {
		return nil, store.NewRemoteError("query", collection, err)
	}
	return result, nil
}

// mutateRecord runs fn against the current record under a row lock, then
// writes the result back. A nil result deletes the record.
func (s *Store) mutateRecord(ctx context.Context, path, collection, uid string, fn func(record store.Record) store.Record) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return store.NewRemoteError("write", path, err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var record store.Record
	err = tx.QueryRow(ctx,
		"SELECT data FROM records WHERE collection = $1 AND uid = $2 FOR UPDATE",
		collection, uid,
	).Scan(&record)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return store.NewRemoteError("write", path, err)
	}

	record = fn(record)
	if record == nil {
		if _, err := tx.Exec(ctx,
			"DELETE FROM records WHERE collection = $1 AND uid = $2",
			collection, uid,
		); err != nil {
			return store.NewRemoteError("remove", path, err)
		}
	} else {
		if _, err := tx.Exec(ctx,
			`INSERT INTO records (collection, uid, data)
			 VALUES ($1, $2, $3)
			 ON CONFLICT (collection, uid) DO UPDATE SET data = EXCLUDED.data, updated_at = NOW()`,
			collection, uid, record,
		); err != nil {
			return store.NewRemoteError("write", path, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return store.NewRemoteError("write", path, err)
	}
	return nil
}

// Write replaces the value at path. Writing nil removes it.
func (s *Store) Write(ctx context.Context, path string, value any) error {
	segments := store.SplitPath(path)
	if len(segments) < 2 {
		return store.NewRemoteError("write", path, errNotARecord)
	}
	collection, uid := segments[0], segments[1]

	if len(segments) == 2 {
		if value == nil {
			return s.mutateRecord(ctx, path, collection, uid, func(store.Record) store.Record {
				return nil
			})
		}
		record, ok := value.(map[string]any)
		if !ok {
			return store.NewRemoteError("write", path, errors.New("record value must be a map"))
		}
		return s.mutateRecord(ctx, path, collection, uid, func(store.Record) store.Record {
			return record
		})
	}

	return s.mutateRecord(ctx, path, collection, uid, func(record store.Record) store.Record {
		if record == nil {
			if value == nil {
				return nil
			}
			record = store.Record{}
		}
		store.SetAt(record, segments[2:], value)
		return record
	})
}

// Update merges fields into the record at path; nil field values remove keys.
func (s *Store) Update(ctx context.Context, path string, fields map[string]any) error {
	segments := store.SplitPath(path)
	if len(segments) < 2 {
		return store.NewRemoteError("update", path, errNotARecord)
	}
	return s.mutateRecord(ctx, path, segments[0], segments[1], func(record store.Record) store.Record {
		if record == nil {
			record = store.Record{}
		}
		store.ApplyUpdate(record, segments[2:], fields)
		return record
	})
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
	return s.mutateRecord(ctx, path, segments[0], segments[1], func(record store.Record) store.Record {
		if record == nil {
			return nil
		}
		store.RemoveAt(record, segments[2:])
		return record
	})
}

// Push returns a fresh child key.
func (s *Store) Push(string) string {
	return uuid.NewString()
}

type subscription struct {
	cancel context.CancelFunc

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
	s.cancel()
}

// Subscribe LISTENs on a dedicated connection, delivers current filtered
// state, and rescans whenever the collection's name arrives on the channel.
func (s *Store) Subscribe(ctx context.Context, collection string, filter store.Filter, handler store.Handler) (store.Subscription, error) {
	listenCtx, cancel := context.WithCancel(ctx)

	conn, err := s.pool.Acquire(listenCtx)
	if err != nil {
		cancel()
		return nil, store.NewRemoteError("subscribe", collection, err)
	}
	if _, err := conn.Exec(listenCtx, "LISTEN "+NotifyChannel); err != nil {
		conn.Release()
		cancel()
		return nil, store.NewRemoteError("subscribe", collection, err)
	}
	sub := &subscription{cancel: cancel}

	initial, err := s.QueryOnce(listenCtx, collection, filter)
	if err != nil {
		conn.Release()
		cancel()
		return nil, err
	}
	sub.deliver(handler, initial)

	go func() {
		defer conn.Release()
		for {
			notification, err := conn.Conn().WaitForNotification(listenCtx)
			if err != nil {
				if listenCtx.Err() == nil {
					s.log.Warn("notification wait failed",
						zap.String("collection", collection),
						zap.Error(err))
				}
				return
			}
			if notification.Payload != collection {
				continue
			}
			records, err := s.QueryOnce(listenCtx, collection, filter)
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
