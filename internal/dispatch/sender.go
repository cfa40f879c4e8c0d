// AngelaMos | 2026
// sender.go

package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"github.com/sethvargo/go-retry"
	"golang.org/x/time/rate"

	"github.com/wealthsupernova/supernova/internal/config"
)

type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// sendFunc posts one prepared message and reports the provider's answer.
type sendFunc func(ctx context.Context, m *mail.SGMailV3) (int, string, error)

type SendGridSender struct {
	from *mail.Email
	send sendFunc
}

func NewSendGridSender(cfg config.EmailConfig) *SendGridSender {
	client := sendgrid.NewSendClient(cfg.SendGridAPIKey)
	return &SendGridSender{
		from: mail.NewEmail(cfg.FromName, cfg.FromAddress),
		send: func(ctx context.Context, m *mail.SGMailV3) (int, string, error) {
			resp, err := client.SendWithContext(ctx, m)
			if err != nil {
				return 0, "", err
			}
			return resp.StatusCode, resp.Body, nil
		},
	}
}

func (s *SendGridSender) Send(ctx context.Context, msg Message) error {
	text := msg.Text
	if text == "" {
		text = msg.Subject
	}
	m := mail.NewSingleEmail(s.from, msg.Subject, mail.NewEmail(msg.ToName, msg.To), text, msg.HTML)

	status, body, err := s.send(ctx, m)
	if err != nil {
		return fmt.Errorf("sendgrid: %w", err)
	}
	if status >= 400 {
		return &ProviderError{StatusCode: status, Body: body}
	}
	return nil
}

// LogSender writes messages to the log instead of sending them. It is used
// when no provider key is configured.
type LogSender struct {
	logger *slog.Logger
}

func NewLogSender(logger *slog.Logger) *LogSender {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSender{logger: logger}
}

func (s *LogSender) Send(_ context.Context, msg Message) error {
	s.logger.Info("email not sent, no provider configured",
		"to", maskEmail(msg.To),
		"subject", msg.Subject,
		"type", msg.Type,
		"bytes", len(msg.HTML),
	)
	return nil
}

// NewSender picks SendGrid when an API key is configured, the log sender
// otherwise, and wraps the choice in a ReliableSender.
func NewSender(cfg config.EmailConfig, logger *slog.Logger) Sender {
	var base Sender = NewLogSender(logger)
	if cfg.SendGridAPIKey != "" {
		base = NewSendGridSender(cfg)
	}
	return NewReliableSender(base, cfg)
}

// ReliableSender paces sends through a token bucket and retries transient
// failures with exponential backoff.
type ReliableSender struct {
	next       Sender
	limiter    *rate.Limiter
	maxRetries uint64
	retryBase  time.Duration
	timeout    time.Duration
}

func NewReliableSender(next Sender, cfg config.EmailConfig) *ReliableSender {
	burst := cfg.Burst
	if burst < 1 {
		burst = 1
	}
	base := cfg.RetryBase
	if base <= 0 {
		base = 500 * time.Millisecond
	}
	limit := rate.Limit(cfg.RatePerSecond)
	if cfg.RatePerSecond <= 0 {
		limit = rate.Inf
	}

	return &ReliableSender{
		next:       next,
		limiter:    rate.NewLimiter(limit, burst),
		maxRetries: cfg.MaxRetries,
		retryBase:  base,
		timeout:    cfg.SendTimeout,
	}
}

func (s *ReliableSender) Send(ctx context.Context, msg Message) error {
	backoff := retry.WithMaxRetries(s.maxRetries, retry.NewExponential(s.retryBase))

	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		if err := s.limiter.Wait(ctx); err != nil {
			return err
		}

		attemptCtx := ctx
		if s.timeout > 0 {
			var cancel context.CancelFunc
			attemptCtx, cancel = context.WithTimeout(ctx, s.timeout)
			defer cancel()
		}

		err := s.next.Send(attemptCtx, msg)
		if err == nil {
			return nil
		}
		if retryable(ctx, err) {
			return retry.RetryableError(err)
		}
		return err
	})
}

// retryable treats provider throttling, provider 5xx and transport errors as
// transient. Cancellation of the caller's context is final.
func retryable(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	var perr *ProviderError
	if errors.As(err, &perr) {
		return perr.Temporary()
	}
	return true
}
