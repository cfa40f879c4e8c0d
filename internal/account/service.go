// AngelaMos | 2026
// service.go

package account

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/wealthsupernova/supernova/internal/auth"
	"github.com/wealthsupernova/supernova/internal/core"
	"github.com/wealthsupernova/supernova/internal/tier"
)

type Service struct {
	repo   Repository
	logger *slog.Logger
	now    func() time.Time
}

func NewService(repo Repository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, logger: logger, now: time.Now}
}

func (s *Service) GetByID(ctx context.Context, id string) (*auth.Identity, error) {
	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.identity(ctx, a)
}

func (s *Service) GetByEmail(ctx context.Context, email string) (*auth.Identity, error) {
	a, err := s.repo.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return nil, err
	}
	return s.identity(ctx, a)
}

func (s *Service) Create(
	ctx context.Context,
	email, passwordHash, name string,
) (*auth.Identity, error) {
	a := &Account{
		ID:           uuid.New().String(),
		Email:        normalizeEmail(email),
		PasswordHash: passwordHash,
		Name:         strings.TrimSpace(name),
		Role:         RoleUser,
	}
	if err := s.repo.Create(ctx, a); err != nil {
		return nil, err
	}
	return toIdentity(a, tier.Free), nil
}

func (s *Service) IncrementTokenVersion(ctx context.Context, userID string) error {
	return s.repo.IncrementTokenVersion(ctx, userID)
}

func (s *Service) UpdatePassword(ctx context.Context, userID, passwordHash string) error {
	return s.repo.UpdatePassword(ctx, userID, passwordHash)
}

func (s *Service) GetMe(ctx context.Context, userID string) (*Profile, error) {
	if userID == "" {
		return nil, fmt.Errorf("get me: %w", core.ErrUnauthorized)
	}
	return s.profile(ctx, userID)
}

func (s *Service) UpdateMe(
	ctx context.Context,
	userID string,
	req UpdateMeRequest,
) (*Profile, error) {
	if userID == "" {
		return nil, fmt.Errorf("update me: %w", core.ErrUnauthorized)
	}

	a, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if req.Name != nil {
		a.Name = strings.TrimSpace(*req.Name)
		if err := s.repo.UpdateName(ctx, a); err != nil {
			return nil, err
		}
	}

	return s.profile(ctx, userID)
}

func (s *Service) DeleteMe(ctx context.Context, userID string) error {
	if userID == "" {
		return fmt.Errorf("delete me: %w", core.ErrUnauthorized)
	}
	return s.repo.SoftDelete(ctx, userID)
}

// GetPreferences returns the stored notification flags, or the defaults
// when the account never saved any.
func (s *Service) GetPreferences(ctx context.Context, userID string) (*Preferences, error) {
	if userID == "" {
		return nil, fmt.Errorf("get preferences: %w", core.ErrUnauthorized)
	}

	p, err := s.repo.GetPreferences(ctx, userID)
	if errors.Is(err, core.ErrNotFound) {
		return DefaultPreferences(userID), nil
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Service) UpdatePreferences(
	ctx context.Context,
	userID string,
	req UpdatePreferencesRequest,
) (*Preferences, error) {
	p, err := s.GetPreferences(ctx, userID)
	if err != nil {
		return nil, err
	}

	apply(&p.EmailNewContent, req.EmailNewContent)
	apply(&p.EmailMarketAlerts, req.EmailMarketAlerts)
	apply(&p.EmailWeeklyDigest, req.EmailWeeklyDigest)
	apply(&p.PushNotifications, req.PushNotifications)

	if err := s.repo.UpsertPreferences(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func apply(dst *bool, v *bool) {
	if v != nil {
		*dst = *v
	}
}

func (s *Service) ListAccounts(
	ctx context.Context,
	params ListAccountsParams,
) ([]Account, int, error) {
	return s.repo.List(ctx, params)
}

func (s *Service) GetAccount(ctx context.Context, id string) (*Profile, error) {
	return s.profile(ctx, id)
}

// SetSubscription records a tier and payment state for an account. Any change
// to what decides the effective tier invalidates outstanding access tokens.
func (s *Service) SetSubscription(
	ctx context.Context,
	userID string,
	req SetSubscriptionRequest,
) (*Profile, error) {
	t, err := tier.Parse(req.Tier)
	if err != nil {
		return nil, err
	}

	prev, err := s.subscription(ctx, userID)
	if err != nil {
		return nil, err
	}

	sub := &Subscription{
		UserID:        userID,
		Tier:          t,
		PaymentStatus: PaymentStatus(req.PaymentStatus),
		EndDate:       req.EndDate,
	}
	if req.PaymentProvider != "" {
		sub.PaymentProvider = &req.PaymentProvider
	}
	if req.PaymentReference != "" {
		sub.PaymentReference = &req.PaymentReference
	}

	if err := s.repo.UpsertSubscription(ctx, sub); err != nil {
		return nil, err
	}
	if accessChanged(prev, sub) {
		if err := s.repo.IncrementTokenVersion(ctx, userID); err != nil {
			return nil, err
		}
	}

	s.logger.Info("subscription updated",
		"user_id", userID,
		"tier", t,
		"payment_status", sub.PaymentStatus,
	)

	return s.profile(ctx, userID)
}

func accessChanged(prev, next *Subscription) bool {
	if prev == nil {
		return true
	}
	if prev.Tier != next.Tier || prev.PaymentStatus != next.PaymentStatus {
		return true
	}
	if (prev.EndDate == nil) != (next.EndDate == nil) {
		return true
	}
	return prev.EndDate != nil && !prev.EndDate.Equal(*next.EndDate)
}

// SetRole changes an account's role. Admins cannot demote themselves.
func (s *Service) SetRole(
	ctx context.Context,
	requesterID, userID, role string,
) (*Profile, error) {
	if role != RoleUser && role != RoleAdmin {
		return nil, fmt.Errorf("set role %q: %w", role, core.ErrInvalidInput)
	}
	if requesterID == userID && role != RoleAdmin {
		return nil, fmt.Errorf("set role: cannot demote yourself: %w", core.ErrForbidden)
	}

	if err := s.repo.UpdateRole(ctx, userID, role); err != nil {
		return nil, err
	}
	// Outstanding tokens still carry the old role.
	if err := s.repo.IncrementTokenVersion(ctx, userID); err != nil {
		return nil, err
	}

	return s.profile(ctx, userID)
}

func (s *Service) profile(ctx context.Context, userID string) (*Profile, error) {
	a, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	sub, err := s.subscription(ctx, userID)
	if err != nil {
		return nil, err
	}

	return &Profile{
		Account:      a,
		Subscription: sub,
		Tier:         sub.EffectiveTier(s.now()),
	}, nil
}

func (s *Service) identity(ctx context.Context, a *Account) (*auth.Identity, error) {
	sub, err := s.subscription(ctx, a.ID)
	if err != nil {
		return nil, err
	}
	return toIdentity(a, sub.EffectiveTier(s.now())), nil
}

// subscription returns nil without error for accounts that never subscribed.
func (s *Service) subscription(ctx context.Context, userID string) (*Subscription, error) {
	sub, err := s.repo.GetSubscription(ctx, userID)
	if errors.Is(err, core.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return sub, nil
}

func toIdentity(a *Account, t tier.Tier) *auth.Identity {
	return &auth.Identity{
		ID:           a.ID,
		Email:        a.Email,
		Name:         a.Name,
		PasswordHash: a.PasswordHash,
		Role:         a.Role,
		Tier:         t,
		TokenVersion: a.TokenVersion,
		CreatedAt:    a.CreatedAt,
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

var _ auth.IdentityStore = (*Service)(nil)
