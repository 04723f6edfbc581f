// Package auth implements email/password authentication against the users
// collection and exposes the current identity as a stream consumers use to
// scope their subscriptions.
package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/tandemlist/tandem/internal/derive"
	"github.com/tandemlist/tandem/internal/models"
	"github.com/tandemlist/tandem/internal/store"
)

const (
	bcryptCost               = 12
	passwordResetTokenExpiry = 1 * time.Hour
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrEmailInUse         = errors.New("email already registered")
	ErrInvalidEmail       = errors.New("invalid email address")
	ErrInvalidResetToken  = errors.New("invalid or expired reset token")
)

// Seam for tests that need a known reset token.
var generateToken = GenerateToken

// Service owns the signed-in identity. Credential fields live on the user
// record alongside the profile; profile decoding ignores them.
type Service struct {
	remote store.RemoteStore
	email  EmailProvider
	log    *zap.Logger

	mu       sync.Mutex
	current  *models.User
	onChange []func(*models.User)
}

func NewService(remote store.RemoteStore, email EmailProvider, log *zap.Logger) *Service {
	return &Service{remote: remote, email: email, log: log}
}

// GenerateToken creates a secure random token and returns both the token and
// its hash. Only the hash is stored.
func GenerateToken() (token string, hash string, err error) {
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		return "", "", fmt.Errorf("generating random bytes: %w", err)
	}
	token = hex.EncodeToString(bytes)
	hash = HashToken(token)
	return token, hash, nil
}

// HashToken creates a SHA256 hash of a token.
func HashToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}

// Register creates an account with a unique email and signs it in.
func (s *Service) Register(ctx context.Context, email, password, displayName string) (*models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if !derive.ValidateEmail(email) {
		return nil, ErrInvalidEmail
	}

	existing, err := s.remote.QueryOnce(ctx, store.CollectionUsers, store.Filter{Field: "email", Value: email})
	if err != nil {
		return nil, fmt.Errorf("checking email: %w", err)
	}
	if len(existing) > 0 {
		return nil, ErrEmailInUse
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}

	uid := s.remote.Push(store.CollectionUsers)
	record := map[string]any{
		"email":        email,
		"displayName":  displayName,
		"passwordHash": string(hash),
	}
	if err := s.remote.Write(ctx, store.CollectionUsers+"/"+uid, record); err != nil {
		return nil, fmt.Errorf("creating user: %w", err)
	}

	user := &models.User{UID: uid, Email: email, DisplayName: displayName}
	s.setIdentity(user)
	return user, nil
}

// SignIn authenticates by email and password.
func (s *Service) SignIn(ctx context.Context, email, password string) (*models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	records, err := s.remote.QueryOnce(ctx, store.CollectionUsers, store.Filter{Field: "email", Value: email})
	if err != nil {
		return nil, fmt.Errorf("looking up user: %w", err)
	}

	for uid, raw := range records {
		hash, _ := raw["passwordHash"].(string)
		if bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) != nil {
			return nil, ErrInvalidCredentials
		}
		user, err := models.DecodeUser(uid, raw)
		if err != nil {
			return nil, err
		}
		s.setIdentity(&user)
		return &user, nil
	}
	return nil, ErrInvalidCredentials
}

// SignOut clears the identity; the stream fires with nil.
func (s *Service) SignOut() {
	s.setIdentity(nil)
}

// CurrentUser returns a copy of the signed-in user, or nil.
func (s *Service) CurrentUser() *models.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return nil
	}
	user := *s.current
	return &user
}

// OnIdentity registers a callback fired on every identity change: a user on
// sign-in, nil on sign-out. Callbacks run without internal locks held.
func (s *Service) OnIdentity(fn func(*models.User)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onChange = append(s.onChange, fn)
}

func (s *Service) setIdentity(user *models.User) {
	s.mu.Lock()
	s.current = user
	callbacks := append([]func(*models.User){}, s.onChange...)
	s.mu.Unlock()

	for _, fn := range callbacks {
		var copied *models.User
		if user != nil {
			u := *user
			copied = &u
		}
		fn(copied)
	}
}

// SendPasswordReset emails a reset token to the account, when one exists. An
// unknown address is not an error, so the endpoint does not leak which emails
// are registered.
func (s *Service) SendPasswordReset(ctx context.Context, email string) error {
	email = strings.ToLower(strings.TrimSpace(email))

	records, err := s.remote.QueryOnce(ctx, store.CollectionUsers, store.Filter{Field: "email", Value: email})
	if err != nil {
		return fmt.Errorf("looking up user: %w", err)
	}
	if len(records) == 0 {
		return nil
	}

	token, tokenHash, err := generateToken()
	if err != nil {
		return err
	}

	for uid := range records {
		reset := map[string]any{
			"tokenHash": tokenHash,
			"expiresAt": time.Now().Add(passwordResetTokenExpiry).UnixMilli(),
		}
		if err := s.remote.Write(ctx, store.CollectionUsers+"/"+uid+"/passwordReset", reset); err != nil {
			return fmt.Errorf("storing reset token: %w", err)
		}
		break
	}

	return s.email.Send(ctx, &Email{
		To:      email,
		Subject: "Reset your Tandem password",
		Text:    fmt.Sprintf("Use this code to reset your Tandem password: %s\n\nThe code expires in one hour.", token),
	})
}

// ResetPassword sets a new password for the account holding the token.
func (s *Service) ResetPassword(ctx context.Context, token, newPassword string) error {
	tokenHash := HashToken(token)

	records, err := s.remote.QueryOnce(ctx, store.CollectionUsers,
		store.Filter{Field: "passwordReset/tokenHash", Value: tokenHash})
	if err != nil {
		return fmt.Errorf("looking up reset token: %w", err)
	}

	for uid, raw := range records {
		if expired(raw) {
			return ErrInvalidResetToken
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcryptCost)
		if err != nil {
			return fmt.Errorf("hashing password: %w", err)
		}
		if err := s.remote.Write(ctx, store.CollectionUsers+"/"+uid+"/passwordHash", string(hash)); err != nil {
			return fmt.Errorf("saving password: %w", err)
		}
		if err := s.remote.Remove(ctx, store.CollectionUsers+"/"+uid+"/passwordReset"); err != nil {
			s.log.Warn("removing used reset token", zap.String("user", uid), zap.Error(err))
		}
		return nil
	}
	return ErrInvalidResetToken
}

func expired(raw map[string]any) bool {
	reset, ok := raw["passwordReset"].(map[string]any)
	if !ok {
		return true
	}
	switch at := reset["expiresAt"].(type) {
	case int64:
		return time.Now().UnixMilli() > at
	case float64:
		return time.Now().UnixMilli() > int64(at)
	default:
		return true
	}
}
