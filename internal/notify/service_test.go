package notify

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"github.com/tandemlist/tandem/internal/store"
	"github.com/tandemlist/tandem/internal/store/memstore"
)

type fakePusher struct {
	err    error
	pushed []Notification
}

func (f *fakePusher) Push(_ context.Context, n Notification) error {
	f.pushed = append(f.pushed, n)
	return f.err
}

func newTestService(t *testing.T, pusher Pusher, cfg Config) (*Service, *memstore.Store, *Outbox) {
	t.Helper()
	remote := memstore.New()
	outbox, err := OpenOutbox(filepath.Join(t.TempDir(), "outbox.db"))
	if err != nil {
		t.Fatalf("opening outbox: %v", err)
	}
	t.Cleanup(func() { outbox.Close() })
	return NewService(remote, outbox, pusher, zap.NewNop(), cfg), remote, outbox
}

func seedToken(t *testing.T, remote *memstore.Store, userID, token string) {
	t.Helper()
	record := map[string]any{"email": userID + "@example.com"}
	if token != "" {
		record["pushToken"] = token
	}
	if err := remote.Write(context.Background(), store.CollectionUsers+"/"+userID, record); err != nil {
		t.Fatalf("seeding user: %v", err)
	}
}

func TestNotifyUsersQueuesPerToken(t *testing.T) {
	svc, remote, outbox := newTestService(t, &fakePusher{}, Config{})
	ctx := context.Background()

	seedToken(t, remote, "u1", "token-1")
	seedToken(t, remote, "u2", "") // no device registered
	seedToken(t, remote, "u3", "token-3")

	if err := svc.NotifyUsers(ctx, []string{"u1", "u2", "u3", "unknown"}, "Title", "Body"); err != nil {
		t.Fatalf("notifying: %v", err)
	}

	items, err := outbox.Batch(10)
	if err != nil {
		t.Fatalf("batching: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 queued pushes, got %d", len(items))
	}
	tokens := map[string]bool{}
	for _, item := range items {
		tokens[item.Token] = true
		if item.Title != "Title" || item.Body != "Body" {
			t.Fatalf("unexpected item: %+v", item)
		}
	}
	if !tokens["token-1"] || !tokens["token-3"] {
		t.Fatalf("unexpected tokens: %+v", tokens)
	}
}

func TestDrainDeliversAndRemoves(t *testing.T) {
	pusher := &fakePusher{}
	svc, remote, outbox := newTestService(t, pusher, Config{})
	ctx := context.Background()

	seedToken(t, remote, "u1", "token-1")
	if err := svc.NotifyUsers(ctx, []string{"u1"}, "Title", "Body"); err != nil {
		t.Fatalf("notifying: %v", err)
	}

	if err := svc.Drain(ctx); err != nil {
		t.Fatalf("draining: %v", err)
	}

	if len(pusher.pushed) != 1 || pusher.pushed[0].Token != "token-1" {
		t.Fatalf("unexpected pushes: %+v", pusher.pushed)
	}
	size, err := outbox.Size()
	if err != nil {
		t.Fatalf("sizing: %v", err)
	}
	if size != 0 {
		t.Fatalf("expected empty outbox, got %d", size)
	}
}

func TestDrainRequeuesFailuresThenDrops(t *testing.T) {
	pusher := &fakePusher{err: errors.New("transport down")}
	svc, remote, outbox := newTestService(t, pusher, Config{MaxRetries: 2})
	ctx := context.Background()

	seedToken(t, remote, "u1", "token-1")
	if err := svc.NotifyUsers(ctx, []string{"u1"}, "Title", "Body"); err != nil {
		t.Fatalf("notifying: %v", err)
	}

	// First failure requeues with one retry spent.
	if err := svc.Drain(ctx); err != nil {
		t.Fatalf("draining: %v", err)
	}
	items, err := outbox.Batch(10)
	if err != nil {
		t.Fatalf("batching: %v", err)
	}
	if len(items) != 1 || items[0].Retries != 1 {
		t.Fatalf("expected requeued item with 1 retry, got %+v", items)
	}

	// Second failure exhausts the budget and drops the item.
	if err := svc.Drain(ctx); err != nil {
		t.Fatalf("draining: %v", err)
	}
	size, err := outbox.Size()
	if err != nil {
		t.Fatalf("sizing: %v", err)
	}
	if size != 0 {
		t.Fatalf("expected poison item dropped, got %d queued", size)
	}
}

func TestNotifyUsersNoRecipients(t *testing.T) {
	svc, _, outbox := newTestService(t, &fakePusher{}, Config{})

	if err := svc.NotifyUsers(context.Background(), nil, "Title", "Body"); err != nil {
		t.Fatalf("notifying: %v", err)
	}
	size, err := outbox.Size()
	if err != nil {
		t.Fatalf("sizing: %v", err)
	}
	if size != 0 {
		t.Fatalf("expected empty outbox, got %d", size)
	}
}
