// AngelaMos | 2026
// service.go

package subscriber

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/wealthsupernova/supernova/internal/core"
)

// Welcomer sends the welcome email to a newly created subscriber.
type Welcomer interface {
	SendWelcome(ctx context.Context, subscriberID string) error
}

type Service struct {
	repo     Repository
	welcomer Welcomer
	logger   *slog.Logger
}

func NewService(repo Repository, welcomer Welcomer, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, welcomer: welcomer, logger: logger}
}

// Signup records a free-tier subscriber keyed by email. Signing up again with
// the same address updates the existing row. Only brand new subscribers get a
// welcome email, and a failed welcome never fails the signup.
func (s *Service) Signup(
	ctx context.Context,
	req SignupRequest,
) (*SignupResponse, error) {
	sub := &Subscriber{
		ID:              uuid.New().String(),
		Name:            strings.TrimSpace(req.Name),
		Email:           strings.ToLower(strings.TrimSpace(req.Email)),
		InvestmentLevel: optional(req.InvestmentLevel),
		Interests:       dedupe(req.Interests),
		ReferralSource:  optional(req.ReferralSource),
		AccessCode:      optional(req.AccessCode),
		Source:          optional(signupSource),
	}

	inserted, err := s.repo.Upsert(ctx, sub)
	if err != nil {
		return nil, err
	}

	// The row is only new once, so the welcome outlives a client disconnect.
	if inserted && s.welcomer != nil {
		if err := s.welcomer.SendWelcome(context.WithoutCancel(ctx), sub.ID); err != nil {
			s.logger.Warn("welcome email could not be sent",
				"subscriber_id", sub.ID,
				"error", err,
			)
		}
	}

	s.logger.Info("newsletter signup",
		"subscriber_id", sub.ID,
		"new", inserted,
	)

	return &SignupResponse{ID: sub.ID, IsNewSubscriber: inserted}, nil
}

// Confirm accepts the token from a welcome email.
func (s *Service) Confirm(ctx context.Context, token string) (string, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return "", fmt.Errorf("confirm subscriber: token: %w", core.ErrInvalidInput)
	}

	return s.repo.Confirm(ctx, core.HashToken(token))
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

func dedupe(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, v := range in {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
