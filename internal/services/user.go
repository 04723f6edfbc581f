package services

import (
	"context"
	"fmt"

	"github.com/tandemlist/tandem/internal/store"
)

// UserService mutates the current user's own profile.
type UserService struct {
	remote  store.RemoteStore
	session Session
	blobs   BlobStorage
}

func NewUserService(remote store.RemoteStore, session Session, blobs BlobStorage) *UserService {
	return &UserService{remote: remote, session: session, blobs: blobs}
}

// ChangeDisplayName updates the profile name after checking no other user
// already carries it.
func (s *UserService) ChangeDisplayName(ctx context.Context, displayName string) error {
	user := s.session.CurrentUser()
	if user == nil {
		return ErrNotSignedIn
	}

	records, err := s.remote.QueryOnce(ctx, store.CollectionUsers,
		store.Filter{Field: "displayName", Value: displayName})
	if err != nil {
		return fmt.Errorf("checking display name: %w", err)
	}
	for uid := range records {
		if uid != user.UID {
			return ErrDisplayNameTaken
		}
	}

	path := store.CollectionUsers + "/" + user.UID + "/displayName"
	if err := s.remote.Write(ctx, path, displayName); err != nil {
		return fmt.Errorf("changing display name: %w", err)
	}
	return nil
}

// SetUserPicture uploads the local file and points the profile at the
// resulting URL.
func (s *UserService) SetUserPicture(ctx context.Context, localPath string) (string, error) {
	user := s.session.CurrentUser()
	if user == nil {
		return "", ErrNotSignedIn
	}

	url, err := s.blobs.Upload(ctx, localPath, "profiles/"+user.UID)
	if err != nil {
		return "", fmt.Errorf("uploading picture: %w", err)
	}

	path := store.CollectionUsers + "/" + user.UID + "/photoUrl"
	if err := s.remote.Write(ctx, path, url); err != nil {
		return "", fmt.Errorf("saving picture url: %w", err)
	}
	return url, nil
}

// UpdatePushToken stores the device push token; an empty token clears it.
func (s *UserService) UpdatePushToken(ctx context.Context, token string) error {
	user := s.session.CurrentUser()
	if user == nil {
		return ErrNotSignedIn
	}

	path := store.CollectionUsers + "/" + user.UID + "/pushToken"
	if err := s.remote.Write(ctx, path, optionalValue(token)); err != nil {
		return fmt.Errorf("updating push token: %w", err)
	}
	return nil
}
