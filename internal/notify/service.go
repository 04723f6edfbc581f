package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/tandemlist/tandem/internal/store"
)

// Config controls how the outbox is drained.
type Config struct {
	DrainInterval time.Duration
	BatchSize     int
	MaxRetries    int
}

// Service resolves push tokens and queues notifications for delivery. The
// whole pipeline is best effort: users without tokens are skipped and
// delivery failures retry a bounded number of times before the item is
// dropped.
type Service struct {
	remote store.RemoteStore
	outbox *Outbox
	pusher Pusher
	log    *zap.Logger
	cron   *cron.Cron
	cfg    Config
}

func NewService(remote store.RemoteStore, outbox *Outbox, pusher Pusher, log *zap.Logger, cfg Config) *Service {
	if cfg.DrainInterval <= 0 {
		cfg.DrainInterval = 30 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}

	s := &Service{
		remote: remote,
		outbox: outbox,
		pusher: pusher,
		log:    log,
		cfg:    cfg,
		cron:   cron.New(),
	}

	schedule := fmt.Sprintf("@every %ds", int(cfg.DrainInterval.Seconds()))
	_, _ = s.cron.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.DrainInterval)
		defer cancel()
		if err := s.Drain(ctx); err != nil {
			s.log.Error("outbox drain failed", zap.Error(err))
		}
	})
	return s
}

// Start launches the drain scheduler.
func (s *Service) Start() {
	s.cron.Start()
	s.log.Info("notification drainer started",
		zap.Duration("interval", s.cfg.DrainInterval))
}

// Stop waits for a running drain to finish, bounded by ctx.
func (s *Service) Stop(ctx context.Context) {
	stopCtx := s.cron.Stop()
	select {
	case <-stopCtx.Done():
	case <-ctx.Done():
	}
}

// NotifyUsers queues one push per user that has a registered token. Users
// without tokens are skipped silently; a token lookup failure skips that user
// with a log line.
func (s *Service) NotifyUsers(ctx context.Context, userIDs []string, title, body string) error {
	for _, userID := range userIDs {
		value, err := s.remote.ReadOnce(ctx, store.CollectionUsers+"/"+userID+"/pushToken")
		if err != nil {
			s.log.Warn("resolving push token", zap.String("user", userID), zap.Error(err))
			continue
		}
		token, ok := value.(string)
		if !ok || token == "" {
			continue
		}

		if err := s.outbox.Enqueue(Item{Token: token, Title: title, Body: body}); err != nil {
			return fmt.Errorf("queueing push: %w", err)
		}
	}
	return nil
}

// Drain delivers queued pushes. Failed items are requeued with a bumped retry
// count and dropped once the retry budget is spent.
func (s *Service) Drain(ctx context.Context) error {
	items, err := s.outbox.Batch(s.cfg.BatchSize)
	if err != nil {
		return err
	}

	for _, item := range items {
		err := s.pusher.Push(ctx, Notification{Token: item.Token, Title: item.Title, Body: item.Body})
		if err == nil {
			if err := s.outbox.Remove(item); err != nil {
				s.log.Warn("purging delivered push", zap.String("id", item.ID), zap.Error(err))
			}
			continue
		}

		s.log.Warn("push delivery failed",
			zap.String("id", item.ID),
			zap.Int("retries", item.Retries),
			zap.Error(err))

		if err := s.outbox.Remove(item); err != nil {
			s.log.Warn("removing failed push", zap.String("id", item.ID), zap.Error(err))
			continue
		}
		item.Retries++
		if item.Retries >= s.cfg.MaxRetries {
			s.log.Warn("dropping push after retry budget", zap.String("id", item.ID))
			continue
		}
		if err := s.outbox.Requeue(item); err != nil {
			s.log.Error("requeueing push", zap.String("id", item.ID), zap.Error(err))
		}
	}
	return nil
}
