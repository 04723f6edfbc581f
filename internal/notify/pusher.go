// Package notify delivers best-effort push notifications: tokens are
// resolved through the remote store, pushes are queued in a local outbox and
// drained on a schedule with bounded retries.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// Notification is one push aimed at a single device token.
type Notification struct {
	Token string
	Title string
	Body  string
}

// Pusher hands a notification to the transport.
type Pusher interface {
	Push(ctx context.Context, n Notification) error
}

const fcmEndpoint = "https://fcm.googleapis.com/fcm/send"

// FCMPusher delivers through the FCM legacy HTTP API.
type FCMPusher struct {
	serverKey string
	endpoint  string
	client    *http.Client
}

func NewFCMPusher(serverKey string) *FCMPusher {
	return &FCMPusher{
		serverKey: serverKey,
		endpoint:  fcmEndpoint,
		client:    &http.Client{Timeout: 10 * time.Second},
	}
}

func (p *FCMPusher) Push(ctx context.Context, n Notification) error {
	payload := map[string]any{
		"registration_ids": []string{n.Token},
		"notification": map[string]any{
			"title":             n.Title,
			"body":              n.Body,
			"vibrate":           1,
			"sound":             1,
			"priority":          "high",
			"content_available": true,
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encoding push payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building push request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "key="+p.serverKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("sending push: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("push rejected: status %d", resp.StatusCode)
	}
	return nil
}

// ConsolePusher logs pushes instead of sending them. Development default.
type ConsolePusher struct {
	log *zap.Logger
}

func NewConsolePusher(log *zap.Logger) *ConsolePusher {
	return &ConsolePusher{log: log}
}

func (p *ConsolePusher) Push(_ context.Context, n Notification) error {
	p.log.Info("push notification",
		zap.String("token", n.Token),
		zap.String("title", n.Title),
		zap.String("body", n.Body),
	)
	return nil
}
