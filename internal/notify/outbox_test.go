package notify

import (
	"path/filepath"
	"testing"
	"time"
)

func openTestOutbox(t *testing.T) *Outbox {
	t.Helper()
	outbox, err := OpenOutbox(filepath.Join(t.TempDir(), "outbox.db"))
	if err != nil {
		t.Fatalf("opening outbox: %v", err)
	}
	t.Cleanup(func() { outbox.Close() })
	return outbox
}

func TestOutboxEnqueueBatchRemove(t *testing.T) {
	outbox := openTestOutbox(t)

	first := Item{Token: "t1", Title: "A", Body: "a", Timestamp: time.Now().Add(-time.Minute)}
	second := Item{Token: "t2", Title: "B", Body: "b"}
	if err := outbox.Enqueue(first); err != nil {
		t.Fatalf("enqueueing: %v", err)
	}
	if err := outbox.Enqueue(second); err != nil {
		t.Fatalf("enqueueing: %v", err)
	}

	size, err := outbox.Size()
	if err != nil {
		t.Fatalf("sizing: %v", err)
	}
	if size != 2 {
		t.Fatalf("expected 2 items, got %d", size)
	}

	items, err := outbox.Batch(10)
	if err != nil {
		t.Fatalf("batching: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}
	// Oldest first.
	if items[0].Token != "t1" || items[1].Token != "t2" {
		t.Fatalf("unexpected order: %q, %q", items[0].Token, items[1].Token)
	}
	if items[0].ID == "" {
		t.Fatal("expected assigned id")
	}

	if err := outbox.Remove(items[0]); err != nil {
		t.Fatalf("removing: %v", err)
	}
	remaining, err := outbox.Batch(10)
	if err != nil {
		t.Fatalf("batching: %v", err)
	}
	if len(remaining) != 1 || remaining[0].Token != "t2" {
		t.Fatalf("expected only t2 left, got %+v", remaining)
	}
}

func TestOutboxBatchLimit(t *testing.T) {
	outbox := openTestOutbox(t)

	for i := 0; i < 5; i++ {
		if err := outbox.Enqueue(Item{Token: "t", Title: "x", Body: "y"}); err != nil {
			t.Fatalf("enqueueing: %v", err)
		}
	}

	items, err := outbox.Batch(3)
	if err != nil {
		t.Fatalf("batching: %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("expected limit of 3, got %d", len(items))
	}
}

func TestOutboxRequeueMovesToBack(t *testing.T) {
	outbox := openTestOutbox(t)

	old := Item{Token: "first", Timestamp: time.Now().Add(-time.Hour)}
	if err := outbox.Enqueue(old); err != nil {
		t.Fatalf("enqueueing: %v", err)
	}
	if err := outbox.Enqueue(Item{Token: "second", Timestamp: time.Now().Add(-time.Minute)}); err != nil {
		t.Fatalf("enqueueing: %v", err)
	}

	items, err := outbox.Batch(10)
	if err != nil {
		t.Fatalf("batching: %v", err)
	}
	if err := outbox.Remove(items[0]); err != nil {
		t.Fatalf("removing: %v", err)
	}
	items[0].Retries = 1
	if err := outbox.Requeue(items[0]); err != nil {
		t.Fatalf("requeueing: %v", err)
	}

	items, err = outbox.Batch(10)
	if err != nil {
		t.Fatalf("batching: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}
	if items[0].Token != "second" || items[1].Token != "first" {
		t.Fatalf("expected requeued item at the back, got %q, %q", items[0].Token, items[1].Token)
	}
	if items[1].Retries != 1 {
		t.Fatalf("expected retry count preserved, got %d", items[1].Retries)
	}
}
