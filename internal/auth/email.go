package auth

import (
	"context"
	"fmt"

	"github.com/resend/resend-go/v2"
	"go.uber.org/zap"
)

// Email is one message to deliver.
type Email struct {
	To      string
	Subject string
	HTML    string
	Text    string
}

// EmailProvider sends emails.
type EmailProvider interface {
	Send(ctx context.Context, email *Email) error
}

// ResendProvider sends emails through the Resend API.
type ResendProvider struct {
	client      *resend.Client
	fromAddress string
	fromName    string
}

func NewResendProvider(apiKey, fromAddress, fromName string) *ResendProvider {
	return &ResendProvider{
		client:      resend.NewClient(apiKey),
		fromAddress: fromAddress,
		fromName:    fromName,
	}
}

func (p *ResendProvider) Send(_ context.Context, email *Email) error {
	params := &resend.SendEmailRequest{
		From:    fmt.Sprintf("%s <%s>", p.fromName, p.fromAddress),
		To:      []string{email.To},
		Subject: email.Subject,
		Html:    email.HTML,
		Text:    email.Text,
	}

	if _, err := p.client.Emails.Send(params); err != nil {
		return fmt.Errorf("sending email via resend: %w", err)
	}
	return nil
}

// ConsoleProvider logs emails instead of sending them. Development default.
type ConsoleProvider struct {
	log *zap.Logger
}

func NewConsoleProvider(log *zap.Logger) *ConsoleProvider {
	return &ConsoleProvider{log: log}
}

func (p *ConsoleProvider) Send(_ context.Context, email *Email) error {
	p.log.Info("email",
		zap.String("to", email.To),
		zap.String("subject", email.Subject),
		zap.String("text", email.Text),
	)
	return nil
}
