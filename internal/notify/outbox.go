package notify

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	bolt "go.etcd.io/bbolt"
)

var outboxBucket = []byte("outbox")

// Item is one queued push. Keys order by enqueue time so the drainer works
// oldest first.
type Item struct {
	ID        string    `json:"id"`
	Token     string    `json:"token"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	Retries   int       `json:"retries"`
	Timestamp time.Time `json:"timestamp"`

	key []byte
}

// Outbox persists queued pushes in a local bbolt file so they survive
// restarts.
type Outbox struct {
	db *bolt.DB
}

func OpenOutbox(path string) (*Outbox, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating outbox directory: %w", err)
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening outbox: %w", err)
	}

	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(outboxBucket)
		return err
	}); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating outbox bucket: %w", err)
	}

	return &Outbox{db: db}, nil
}

// Enqueue persists an item, assigning an id and timestamp when missing.
func (o *Outbox) Enqueue(item Item) error {
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	if item.Timestamp.IsZero() {
		item.Timestamp = time.Now()
	}
	item.key = []byte(fmt.Sprintf("%020d-%s", item.Timestamp.UnixNano(), item.ID))

	payload, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("encoding outbox item: %w", err)
	}
	return o.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(outboxBucket).Put(item.key, payload)
	})
}

// Batch returns up to limit items, oldest first, without removing them.
func (o *Outbox) Batch(limit int) ([]Item, error) {
	if limit <= 0 {
		limit = 50
	}

	var items []Item
	err := o.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(outboxBucket).Cursor()
		for k, v := c.First(); k != nil && len(items) < limit; k, v = c.Next() {
			var item Item
			if err := json.Unmarshal(v, &item); err != nil {
				continue
			}
			item.key = append([]byte(nil), k...)
			items = append(items, item)
		}
		return nil
	})
	return items, err
}

// Remove deletes an item.
func (o *Outbox) Remove(item Item) error {
	if len(item.key) == 0 {
		return nil
	}
	return o.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(outboxBucket).Delete(item.key)
	})
}

// Requeue re-inserts an item at the back of the queue.
func (o *Outbox) Requeue(item Item) error {
	item.key = nil
	item.Timestamp = time.Now()
	return o.Enqueue(item)
}

// Size returns the number of queued items.
func (o *Outbox) Size() (int, error) {
	var count int
	err := o.db.View(func(tx *bolt.Tx) error {
		count = tx.Bucket(outboxBucket).Stats().KeyN
		return nil
	})
	return count, err
}

func (o *Outbox) Close() error {
	return o.db.Close()
}
