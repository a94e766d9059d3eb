// Package mailer delivers plain-text transactional email through Resend,
// SMTP, or a RabbitMQ queue drained by a background consumer.
package mailer

import (
	"context"
	"errors"
	"fmt"

	"provalab-api/pkg/utils"

	"go.uber.org/zap"
)

type Message struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

func (m Message) validate() error {
	if m.To == "" {
		return errors.New("mailer: empty recipient")
	}
	if m.Subject == "" {
		return errors.New("mailer: empty subject")
	}
	return nil
}

// Sender delivers one message. A nil error means the transport accepted it.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// FallbackSender tries each sender in order and stops at the first success.
type FallbackSender struct {
	senders []Sender
	log     *zap.Logger
}

func NewFallbackSender(log *zap.Logger, senders ...Sender) *FallbackSender {
	return &FallbackSender{senders: senders, log: log.With(zap.String("mailer", "fallback"))}
}

func (f *FallbackSender) Send(ctx context.Context, msg Message) error {
	if len(f.senders) == 0 {
		return errors.New("mailer: no sender configured")
	}

	var errs []error
	for i, s := range f.senders {
		err := s.Send(ctx, msg)
		if err == nil {
			return nil
		}
		f.log.Warn("Sender failed, trying next", zap.Int("index", i), zap.Error(err))
		errs = append(errs, err)
	}
	return fmt.Errorf("mailer: all senders failed: %w", errors.Join(errs...))
}

// LogSender only logs. It is the development fallback when no transport is
// configured; bodies carry secrets so they are logged at debug level only.
type LogSender struct {
	log *zap.Logger
}

func NewLogSender(log *zap.Logger) *LogSender {
	return &LogSender{log: log.With(zap.String("mailer", "log"))}
}

func (l *LogSender) Send(_ context.Context, msg Message) error {
	if err := msg.validate(); err != nil {
		return err
	}
	l.log.Info("Email not delivered, no transport configured",
		zap.String("to", msg.To),
		zap.String("subject", msg.Subject),
	)
	l.log.Debug("Email body", zap.String("body", msg.Body))
	return nil
}

// NewDirectSender builds the transport chain from configuration: Resend
// first, SMTP as fallback, and a log-only sender when neither is set.
func NewDirectSender(cfg utils.EmailConfig, log *zap.Logger) Sender {
	var chain []Sender

	if cfg.ResendAPIKey != "" {
		from := cfg.ResendFrom
		if from == "" {
			from = cfg.From
		}
		if from == "" {
			log.Warn("RESEND_API_KEY set without a sender address, Resend disabled")
		} else {
			chain = append(chain, NewResendSender(cfg.ResendAPIKey, from, cfg.Timeout()))
		}
	}

	if cfg.Host != "" {
		if cfg.From == "" {
			log.Warn("SMTP_HOST set without SMTP_FROM_EMAIL, SMTP disabled")
		} else {
			chain = append(chain, NewSMTPSender(SMTPConfig{
				Host:     cfg.Host,
				Port:     cfg.Port,
				Username: cfg.User,
				Password: cfg.Password,
				From:     cfg.From,
				StartTLS: cfg.UseTLS,
				Timeout:  cfg.Timeout(),
			}))
		}
	}

	switch len(chain) {
	case 0:
		return NewLogSender(log)
	case 1:
		return chain[0]
	default:
		return NewFallbackSender(log, chain...)
	}
}
