package gateway

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/resend/resend-go/v2"
)

type ResendConfig struct {
	APIKey string
	// BaseURL overrides the API endpoint (tests, regional endpoints).
	BaseURL string
}

type resendSender struct {
	client *resend.Client
}

func NewResend(cfg ResendConfig) (Sender, error) {
	key := strings.TrimSpace(cfg.APIKey)
	if key == "" {
		return nil, errors.New("gateway resend: api_key is required")
	}
	c := resend.NewClient(key)
	if u := strings.TrimSpace(cfg.BaseURL); u != "" {
		parsed, err := parseBaseURL(u)
		if err != nil {
			return nil, fmt.Errorf("gateway resend: %w", err)
		}
		c.BaseURL = parsed
	}
	return &resendSender{client: c}, nil
}

func (s *resendSender) Send(ctx context.Context, e Email) error {
	if err := validate(e); err != nil {
		return err
	}
	req := &resend.SendEmailRequest{
		From:    e.From,
		To:      []string{e.To},
		Subject: e.Subject,
		Html:    e.HTML,
		Text:    e.Text,
	}
	if _, err := s.client.Emails.SendWithContext(ctx, req); err != nil {
		return fmt.Errorf("resend: %w", err)
	}
	return nil
}

func (s *resendSender) Close() error { return nil }
