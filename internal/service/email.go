package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/liableapp/liable/internal/logger"
	"github.com/resend/resend-go/v2"
)

var ErrEmailNotConfigured = errors.New("email service not configured (missing RESEND_API_KEY)")

type Email struct {
	To      string
	Subject string
	HTML    string
	Text    string
	// Tag names the template for logs.
	Tag string
}

// Mailer delivers notifications without blocking the caller. Delivery
// failures are logged and never reported back.
type Mailer interface {
	Deliver(email Email)
}

type EmailService struct {
	client      *resend.Client
	fromEmail   string
	isDev       bool
	sendTimeout time.Duration
	log         *slog.Logger
	inflight    sync.WaitGroup
}

func NewEmailService(apiKey, fromEmail string, isDev bool, sendTimeout time.Duration) *EmailService {
	var client *resend.Client
	if apiKey != "" && !isDev {
		client = resend.NewClient(apiKey)
	}

	if sendTimeout <= 0 {
		sendTimeout = 15 * time.Second
	}

	return &EmailService{
		client:      client,
		fromEmail:   fromEmail,
		isDev:       isDev,
		sendTimeout: sendTimeout,
		log:         logger.For("email"),
	}
}

func (s *EmailService) Send(ctx context.Context, email Email) error {
	if s.isDev {
		s.log.Info("email sent (dev mode)", "type", email.Tag, "to", email.To, "subject", email.Subject)
		s.log.Debug("email body (dev mode)", "type", email.Tag, "text", email.Text)
		return nil
	}

	if s.client == nil {
		return ErrEmailNotConfigured
	}

	params := &resend.SendEmailRequest{
		From:    s.fromEmail,
		To:      []string{email.To},
		Subject: email.Subject,
		Html:    email.HTML,
		Text:    email.Text,
	}

	sent, err := s.client.Emails.SendWithContext(ctx, params)
	if err != nil {
		return fmt.Errorf("failed to send %s email: %w", email.Tag, err)
	}

	s.log.Info("email sent", "type", email.Tag, "to", email.To, "id", sent.Id)
	return nil
}

// Deliver sends email on its own goroutine, bounded by the send timeout.
func (s *EmailService) Deliver(email Email) {
	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()

		ctx, cancel := context.WithTimeout(context.Background(), s.sendTimeout)
		defer cancel()

		err := s.Send(ctx, email)
		if err != nil {
			s.log.Warn("email delivery failed", "type", email.Tag, "to", email.To, "error", err)
		}
	}()
}

// Wait blocks until every email handed to Deliver has finished.
func (s *EmailService) Wait() {
	s.inflight.Wait()
}
