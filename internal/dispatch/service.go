// AngelaMos | 2026
// service.go

package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/wealthsupernova/supernova/internal/article"
	"github.com/wealthsupernova/supernova/internal/config"
	"github.com/wealthsupernova/supernova/internal/core"
	"github.com/wealthsupernova/supernova/internal/metrics"
	"github.com/wealthsupernova/supernova/internal/tier"
)

const (
	welcomeSubject = "Welcome to WealthSuperNova Newsletter"
	testPrefix     = "[TEST] "

	defaultPageSize = 500
	defaultLockTTL  = 30 * time.Minute
)

type Service struct {
	newsletters NewsletterSource
	store       Store
	sender      Sender
	renderer    *Renderer
	locker      Locker
	pageSize    int
	lockTTL     time.Duration
	logger      *slog.Logger
	tracer      trace.Tracer
}

func NewService(
	newsletters NewsletterSource,
	store Store,
	sender Sender,
	renderer *Renderer,
	locker Locker,
	cfg config.DispatchConfig,
	logger *slog.Logger,
) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	lockTTL := cfg.LockTTL
	if lockTTL <= 0 {
		lockTTL = defaultLockTTL
	}

	return &Service{
		newsletters: newsletters,
		store:       store,
		sender:      sender,
		renderer:    renderer,
		locker:      locker,
		pageSize:    pageSize,
		lockTTL:     lockTTL,
		logger:      logger,
		tracer:      otel.Tracer("supernova/dispatch"),
	}
}

// Dispatch resolves the mode from req.EmailType and sends. Per-recipient
// failures are collected in the result; only failures that stop the whole
// call are returned as errors.
func (s *Service) Dispatch(ctx context.Context, req Request) (*Result, error) {
	mode, err := ParseEmailType(req.EmailType)
	if err != nil {
		return nil, err
	}

	ctx, span := s.tracer.Start(ctx, "dispatch.send",
		trace.WithAttributes(attribute.String("mode", string(mode))),
	)
	defer span.End()
	timer := metrics.NewTimer()

	var result *Result
	switch mode {
	case TypeWelcome:
		result, err = s.welcome(ctx, req.SubscriberID, req.EmailSubject)
	case TypeTest:
		result, err = s.test(ctx, req)
	default:
		result, err = s.batch(ctx, mode, req.NewsletterID, req.EmailSubject)
	}

	timer.ObserveDurationVec(metrics.DispatchDuration, string(mode))

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetAttributes(
		attribute.Int("recipient_count", result.Recipients),
		attribute.Int("sent_count", result.Sent),
	)

	s.logger.Info("dispatch finished",
		"mode", mode,
		"newsletter_id", req.NewsletterID,
		"recipients", result.Recipients,
		"sent", result.Sent,
		"failed", len(result.Failures),
		"duration", timer.Duration(),
	)

	return result, nil
}

// SendWelcome sends the welcome email to a new list subscriber.
func (s *Service) SendWelcome(ctx context.Context, subscriberID string) error {
	result, err := s.Dispatch(ctx, Request{
		SubscriberID: subscriberID,
		EmailType:    string(TypeWelcome),
	})
	if err != nil {
		return err
	}
	if len(result.Failures) > 0 {
		return result.Failures[0]
	}
	return nil
}

func (s *Service) welcome(ctx context.Context, subscriberID, subject string) (*Result, error) {
	if strings.TrimSpace(subscriberID) == "" {
		return nil, fmt.Errorf("welcome email requires subscriberId: %w", core.ErrInvalidInput)
	}
	if subject == "" {
		subject = welcomeSubject
	}

	contact, err := s.store.GetContact(ctx, subscriberID)
	if err != nil {
		return nil, err
	}

	token, err := core.GenerateSecureToken(32)
	if err != nil {
		return nil, fmt.Errorf("generate confirmation token: %w", err)
	}

	html, err := s.renderer.Welcome(contact, subject, token)
	if err != nil {
		return nil, err
	}

	result := &Result{Mode: TypeWelcome, Recipients: 1}
	if !s.deliver(ctx, result, Message{
		To:      contact.Email,
		ToName:  contact.Name,
		Subject: subject,
		HTML:    html,
		Type:    TypeWelcome,
	}) {
		return result, nil
	}

	if err := s.store.MarkWelcomeSent(ctx, contact.ID, core.HashToken(token)); err != nil {
		return nil, err
	}

	return result, nil
}

func (s *Service) test(ctx context.Context, req Request) (*Result, error) {
	to := strings.TrimSpace(req.TestEmailAddress)
	if to == "" {
		return nil, fmt.Errorf("test email requires testEmailAddress: %w", core.ErrInvalidInput)
	}

	a, err := s.newsletter(ctx, req.NewsletterID)
	if err != nil {
		return nil, err
	}

	subject := req.EmailSubject
	if subject == "" {
		subject = a.Title
	}
	subject = testPrefix + subject

	rcpt := Recipient{Email: to, Tier: tier.Premium}
	html, err := s.renderer.Newsletter(a, rcpt, subject, false)
	if err != nil {
		return nil, err
	}

	result := &Result{Mode: TypeTest, Recipients: 1}
	s.deliver(ctx, result, Message{
		To:      to,
		Subject: subject,
		HTML:    html,
		Text:    s.renderer.PlainText(a),
		Type:    TypeTest,
	})

	return result, nil
}

func (s *Service) batch(
	ctx context.Context,
	mode EmailType,
	newsletterID, subject string,
) (result *Result, err error) {
	a, err := s.newsletter(ctx, newsletterID)
	if err != nil {
		return nil, err
	}
	if subject == "" {
		subject = a.Title
	}

	release, err := s.locker.Acquire(ctx, a.ID, s.lockTTL)
	if err != nil {
		return nil, err
	}
	defer func() {
		if rerr := release(context.WithoutCancel(ctx)); rerr != nil {
			s.logger.Warn("release dispatch lock", "newsletter_id", a.ID, "error", rerr)
		}
	}()

	result = &Result{Mode: mode}
	seen := make(map[string]struct{})
	text := s.renderer.PlainText(a)

	send := func(rcpt Recipient) error {
		key := strings.ToLower(strings.TrimSpace(rcpt.Email))
		if key == "" {
			return nil
		}
		if _, dup := seen[key]; dup {
			return nil
		}
		seen[key] = struct{}{}

		summary := mode == TypeSummary || !a.ReadableBy(rcpt.Tier)
		html, err := s.renderer.Newsletter(a, rcpt, subject, summary)
		if err != nil {
			return err
		}

		result.Recipients++
		s.deliver(ctx, result, Message{
			To:      rcpt.Email,
			ToName:  rcpt.Name,
			Subject: subject,
			HTML:    html,
			Text:    text,
			Type:    mode,
		})
		return ctx.Err()
	}

	if err := s.eachPaid(ctx, a.MinTier, send); err != nil {
		return nil, err
	}
	if err := s.eachFree(ctx, send); err != nil {
		return nil, err
	}

	if result.Recipients == 0 {
		return nil, fmt.Errorf("newsletter %s: %w", a.ID, ErrNoRecipients)
	}

	return result, nil
}

func (s *Service) eachPaid(ctx context.Context, min tier.Tier, fn func(Recipient) error) error {
	tiers := tier.AtLeast(min)
	if len(tiers) == 0 {
		return nil
	}

	after := ""
	for {
		page, err := s.store.PaidRecipients(ctx, tiers, after, s.pageSize)
		if err != nil {
			return err
		}
		for _, r := range page {
			if err := fn(r); err != nil {
				return err
			}
		}
		if len(page) < s.pageSize {
			return nil
		}
		after = page[len(page)-1].ID
	}
}

func (s *Service) eachFree(ctx context.Context, fn func(Recipient) error) error {
	after := ""
	for {
		page, err := s.store.FreeRecipients(ctx, after, s.pageSize)
		if err != nil {
			return err
		}
		for _, r := range page {
			if err := fn(r); err != nil {
				return err
			}
		}
		if len(page) < s.pageSize {
			return nil
		}
		after = page[len(page)-1].ID
	}
}

func (s *Service) newsletter(ctx context.Context, id string) (*article.Article, error) {
	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("newsletterId is required: %w", core.ErrInvalidInput)
	}
	a, err := s.newsletters.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return a, nil
}

// deliver sends msg and records the outcome on result. It reports whether
// the provider accepted the message.
func (s *Service) deliver(ctx context.Context, result *Result, msg Message) bool {
	err := s.sender.Send(ctx, msg)
	if err == nil {
		result.Sent++
		metrics.EmailsSentTotal.WithLabelValues(string(msg.Type), "success").Inc()
		return true
	}

	metrics.EmailsSentTotal.WithLabelValues(string(msg.Type), "failure").Inc()
	derr := DeliveryError{Recipient: msg.To, Err: err}
	result.Failures = append(result.Failures, derr)

	var perr *ProviderError
	status := 0
	if errors.As(err, &perr) {
		status = perr.StatusCode
	}
	s.logger.Warn("email delivery failed",
		"to", maskEmail(msg.To),
		"type", msg.Type,
		"provider_status", status,
		"error", err,
	)

	return false
}
