// syncd keeps a signed-in user's synchronized data context live: it opens the
// configured store backend, signs in with the session credentials, streams
// the user's lists, invites and friendships, and logs derived state changes.
// It also runs the notification outbox drainer.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	stdsync "sync"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/tandemlist/tandem/internal/auth"
	"github.com/tandemlist/tandem/internal/config"
	"github.com/tandemlist/tandem/internal/database"
	"github.com/tandemlist/tandem/internal/logging"
	"github.com/tandemlist/tandem/internal/models"
	"github.com/tandemlist/tandem/internal/notify"
	"github.com/tandemlist/tandem/internal/store"
	"github.com/tandemlist/tandem/internal/store/memstore"
	"github.com/tandemlist/tandem/internal/store/pgstore"
	"github.com/tandemlist/tandem/internal/store/redistore"
	"github.com/tandemlist/tandem/internal/sync"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "syncd: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	log := logging.New(cfg.App.LogLevel, cfg.App.LogEncoding)
	defer log.Sync()

	ctx := context.Background()

	remote, closeStore, err := openStore(cfg, log)
	if err != nil {
		return err
	}
	defer closeStore()
	log.Info("store ready", zap.String("backend", cfg.Store.Backend))

	outbox, err := notify.OpenOutbox(cfg.Push.OutboxPath)
	if err != nil {
		return err
	}
	defer outbox.Close()

	notifier := notify.NewService(remote, outbox, newPusher(cfg, log), log, notify.Config{
		DrainInterval: cfg.Push.DrainInterval,
		MaxRetries:    cfg.Push.MaxRetries,
	})
	notifier.Start()

	authSvc := auth.NewService(remote, newEmailProvider(cfg, log), log)

	// One sync context per identity; sign-out tears it down before the next
	// sign-in builds a fresh one.
	var (
		mu      stdsync.Mutex
		current *sync.Context
	)
	authSvc.OnIdentity(func(user *models.User) {
		mu.Lock()
		defer mu.Unlock()
		if current != nil {
			current.Close()
			current = nil
		}
		if user == nil {
			log.Info("signed out")
			return
		}

		c := sync.NewContext(remote, user.UID, log)
		c.OnChange(func(s sync.Snapshot) {
			log.Info("state changed",
				zap.Int("lists", len(s.UserLists)),
				zap.Int("friends", len(s.Friends())),
				zap.Int("incomingInvites", len(s.IncomingInvites())),
				zap.Int("pending", s.PendingNotificationCount()),
			)
		})
		if err := c.Start(ctx); err != nil {
			log.Error("starting sync context", zap.Error(err))
			return
		}
		current = c
		log.Info("sync context started", zap.String("user", user.UID))
	})

	if err := signIn(ctx, authSvc, cfg, log); err != nil {
		return err
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	log.Info("shutting down")

	authSvc.SignOut()

	stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	notifier.Stop(stopCtx)
	return nil
}

// signIn authenticates with the configured credentials. In development an
// unknown account is registered on the fly.
func signIn(ctx context.Context, authSvc *auth.Service, cfg *config.Config, log *zap.Logger) error {
	if cfg.Session.Email == "" {
		return errors.New("SESSION_EMAIL is required")
	}

	_, err := authSvc.SignIn(ctx, cfg.Session.Email, cfg.Session.Password)
	if errors.Is(err, auth.ErrInvalidCredentials) && cfg.App.Environment == "development" {
		log.Info("registering development account", zap.String("email", cfg.Session.Email))
		_, err = authSvc.Register(ctx, cfg.Session.Email, cfg.Session.Password, cfg.Session.Email)
	}
	if err != nil {
		return fmt.Errorf("signing in: %w", err)
	}
	return nil
}

func openStore(cfg *config.Config, log *zap.Logger) (store.RemoteStore, func(), error) {
	switch cfg.Store.Backend {
	case "memory":
		return memstore.New(), func() {}, nil

	case "redis":
		db, err := database.NewRedisDB(cfg.Redis.Addr(), cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			return nil, nil, fmt.Errorf("connecting to redis: %w", err)
		}
		return redistore.New(db.Client, log), func() { db.Close() }, nil

	case "postgres":
		dsn := cfg.Database.DSN()
		if err := database.MigrateRecords(dsn, cfg.Store.MigrationsPath); err != nil {
			return nil, nil, err
		}

		db, err := database.NewPostgresDB(dsn)
		if err != nil {
			return nil, nil, fmt.Errorf("connecting to postgres: %w", err)
		}
		return pgstore.New(db.Pool, log), func() { db.Close() }, nil

	default:
		return nil, nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
}

func newPusher(cfg *config.Config, log *zap.Logger) notify.Pusher {
	if cfg.Push.Provider == "fcm" && cfg.Push.FCMServerKey != "" {
		return notify.NewFCMPusher(cfg.Push.FCMServerKey)
	}
	return notify.NewConsolePusher(log)
}

func newEmailProvider(cfg *config.Config, log *zap.Logger) auth.EmailProvider {
	if cfg.Email.Provider == "resend" && cfg.Email.ResendAPIKey != "" {
		return auth.NewResendProvider(cfg.Email.ResendAPIKey, cfg.Email.FromAddress, cfg.Email.FromName)
	}
	return auth.NewConsoleProvider(log)
}
