// Package gateway delivers composed reminder emails.
//
// Drivers:
//   - log:    writes the email to the logger only (default; useful for dry runs)
//   - resend: Resend HTTP API
//   - smtp:   plain SMTP submission (STARTTLS when offered)
//   - amqp:   publishes the email as JSON to a RabbitMQ exchange for a downstream mailer
package gateway

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	logx "expirywatch/pkg/logx"
)

// Email is one outbound message for a single recipient.
type Email struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Subject string `json:"subject"`
	Text    string `json:"text"`
	HTML    string `json:"html"`
}

// Sender delivers emails. Implementations must be safe for concurrent use.
type Sender interface {
	Send(ctx context.Context, e Email) error
	Close() error
}

type Config struct {
	Driver     string
	RatePerSec int
	Timeout    time.Duration

	Resend ResendConfig
	SMTP   SMTPConfig
	AMQP   AMQPConfig
}

var (
	ErrNoRecipient = errors.New("gateway: recipient is empty")
	ErrNoSender    = errors.New("gateway: sender address is empty")
)

// Open builds the configured driver, wrapped with rate limiting and a per-send
// timeout when those are set.
func Open(cfg Config, log logx.Logger) (Sender, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	var (
		s   Sender
		err error
	)
	switch driver {
	case "", "log":
		s = NewLog(log)
	case "resend":
		s, err = NewResend(cfg.Resend)
	case "smtp":
		s, err = NewSMTP(cfg.SMTP)
	case "amqp", "rabbitmq":
		s, err = NewAMQP(cfg.AMQP)
	default:
		return nil, fmt.Errorf("unknown gateway driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, err
	}
	if cfg.Timeout > 0 {
		s = WithTimeout(s, cfg.Timeout)
	}
	if cfg.RatePerSec > 0 {
		s = Limited(s, cfg.RatePerSec)
	}
	return s, nil
}

func validate(e Email) error {
	if strings.TrimSpace(e.To) == "" {
		return ErrNoRecipient
	}
	if strings.TrimSpace(e.From) == "" {
		return ErrNoSender
	}
	return nil
}

type timeoutSender struct {
	Sender
	d time.Duration
}

// WithTimeout bounds every Send call by d.
func WithTimeout(s Sender, d time.Duration) Sender {
	return &timeoutSender{Sender: s, d: d}
}

func (t *timeoutSender) Send(ctx context.Context, e Email) error {
	ctx, cancel := context.WithTimeout(ctx, t.d)
	defer cancel()
	return t.Sender.Send(ctx, e)
}
