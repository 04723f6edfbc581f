package services

import (
	"context"

	"github.com/tandemlist/tandem/internal/models"
)

// Session supplies the authenticated identity mutations run as.
type Session interface {
	CurrentUser() *models.User
}

// Notifier delivers best-effort pushes to users. Implementations resolve push
// tokens themselves; errors are logged by callers, never propagated.
type Notifier interface {
	NotifyUsers(ctx context.Context, userIDs []string, title, body string) error
}

// BlobStorage uploads a local file and returns its durable URL.
type BlobStorage interface {
	Upload(ctx context.Context, localPath, destPath string) (string, error)
}
