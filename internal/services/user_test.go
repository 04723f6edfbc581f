package services

import (
	"context"
	"errors"
	"testing"

	"github.com/tandemlist/tandem/internal/store"
	"github.com/tandemlist/tandem/internal/store/memstore"
)

type fakeBlobStorage struct {
	url string
	err error

	localPath string
	destPath  string
}

func (f *fakeBlobStorage) Upload(_ context.Context, localPath, destPath string) (string, error) {
	f.localPath = localPath
	f.destPath = destPath
	return f.url, f.err
}

func newUserService(t *testing.T) (*UserService, *memstore.Store, *fakeBlobStorage) {
	t.Helper()
	remote := memstore.New()
	blobs := &fakeBlobStorage{url: "https://blobs.example.com/photo.png"}
	svc := NewUserService(remote, &fakeSession{user: testUser}, blobs)
	seedUser(t, remote, testUser)
	return svc, remote, blobs
}

func TestChangeDisplayName(t *testing.T) {
	svc, remote, _ := newUserService(t)
	ctx := context.Background()

	if err := svc.ChangeDisplayName(ctx, "New Me"); err != nil {
		t.Fatalf("changing display name: %v", err)
	}
	value, err := remote.ReadOnce(ctx, store.CollectionUsers+"/"+testUser.UID+"/displayName")
	if err != nil {
		t.Fatalf("reading display name: %v", err)
	}
	if value != "New Me" {
		t.Fatalf("expected New Me, got %v", value)
	}
}

func TestChangeDisplayNameTaken(t *testing.T) {
	svc, remote, _ := newUserService(t)
	ctx := context.Background()
	seedUser(t, remote, testFriend)

	err := svc.ChangeDisplayName(ctx, testFriend.DisplayName)
	if !errors.Is(err, ErrDisplayNameTaken) {
		t.Fatalf("expected ErrDisplayNameTaken, got %v", err)
	}
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestChangeDisplayNameKeepingOwnName(t *testing.T) {
	svc, _, _ := newUserService(t)

	// Matching only yourself is not a conflict.
	if err := svc.ChangeDisplayName(context.Background(), testUser.DisplayName); err != nil {
		t.Fatalf("keeping own name: %v", err)
	}
}

func TestSetUserPicture(t *testing.T) {
	svc, remote, blobs := newUserService(t)
	ctx := context.Background()

	url, err := svc.SetUserPicture(ctx, "/tmp/photo.png")
	if err != nil {
		t.Fatalf("setting picture: %v", err)
	}
	if url != blobs.url {
		t.Fatalf("expected %q, got %q", blobs.url, url)
	}
	if blobs.localPath != "/tmp/photo.png" || blobs.destPath != "profiles/"+testUser.UID {
		t.Fatalf("unexpected upload args: %q -> %q", blobs.localPath, blobs.destPath)
	}

	value, err := remote.ReadOnce(ctx, store.CollectionUsers+"/"+testUser.UID+"/photoUrl")
	if err != nil {
		t.Fatalf("reading photo url: %v", err)
	}
	if value != blobs.url {
		t.Fatalf("expected photo url saved, got %v", value)
	}
}

func TestSetUserPictureUploadError(t *testing.T) {
	remote := memstore.New()
	blobs := &fakeBlobStorage{err: errors.New("upload failed")}
	svc := NewUserService(remote, &fakeSession{user: testUser}, blobs)

	if _, err := svc.SetUserPicture(context.Background(), "/tmp/photo.png"); err == nil {
		t.Fatal("expected upload error")
	}
}

func TestUpdatePushToken(t *testing.T) {
	svc, remote, _ := newUserService(t)
	ctx := context.Background()

	if err := svc.UpdatePushToken(ctx, "token-123"); err != nil {
		t.Fatalf("setting token: %v", err)
	}
	value, err := remote.ReadOnce(ctx, store.CollectionUsers+"/"+testUser.UID+"/pushToken")
	if err != nil {
		t.Fatalf("reading token: %v", err)
	}
	if value != "token-123" {
		t.Fatalf("expected token saved, got %v", value)
	}

	// Clearing removes the field.
	if err := svc.UpdatePushToken(ctx, ""); err != nil {
		t.Fatalf("clearing token: %v", err)
	}
	value, err = remote.ReadOnce(ctx, store.CollectionUsers+"/"+testUser.UID+"/pushToken")
	if err != nil {
		t.Fatalf("reading token: %v", err)
	}
	if value != nil {
		t.Fatalf("expected token cleared, got %v", value)
	}
}

func TestUserServiceRequiresSignIn(t *testing.T) {
	svc := NewUserService(memstore.New(), &fakeSession{}, &fakeBlobStorage{})
	ctx := context.Background()

	if err := svc.ChangeDisplayName(ctx, "x"); !errors.Is(err, ErrNotSignedIn) {
		t.Fatalf("expected ErrNotSignedIn, got %v", err)
	}
	if err := svc.UpdatePushToken(ctx, "x"); !errors.Is(err, ErrNotSignedIn) {
		t.Fatalf("expected ErrNotSignedIn, got %v", err)
	}
}
