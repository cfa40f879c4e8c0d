// AngelaMos | 2026
// entity.go

package account

import (
	"time"

	"github.com/wealthsupernova/supernova/internal/tier"
)

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

type PaymentStatus string

const (
	PaymentActive   PaymentStatus = "active"
	PaymentPending  PaymentStatus = "pending"
	PaymentCanceled PaymentStatus = "canceled"
	PaymentPastDue  PaymentStatus = "past_due"
)

type Account struct {
	ID           string     `db:"id"`
	Email        string     `db:"email"`
	PasswordHash string     `db:"password_hash"`
	Name         string     `db:"name"`
	Role         string     `db:"role"`
	TokenVersion int        `db:"token_version"`
	CreatedAt    time.Time  `db:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at"`
	DeletedAt    *time.Time `db:"deleted_at"`
}

func (a *Account) IsAdmin() bool {
	return a.Role == RoleAdmin
}

// Subscription is the single user_subscriptions row of an account. An
// account without one is on the free tier.
type Subscription struct {
	ID               string        `db:"id"`
	UserID           string        `db:"user_id"`
	Tier             tier.Tier     `db:"tier"`
	PaymentStatus    PaymentStatus `db:"payment_status"`
	PaymentProvider  *string       `db:"payment_provider"`
	PaymentReference *string       `db:"payment_reference"`
	StartDate        time.Time     `db:"subscription_start_date"`
	EndDate          *time.Time    `db:"subscription_end_date"`
	TierUpdateDate   time.Time     `db:"tier_update_date"`
	CreatedAt        time.Time     `db:"created_at"`
	UpdatedAt        time.Time     `db:"updated_at"`
}

// EffectiveTier is the tier that gates reading. Only an active, unexpired
// subscription counts; everything else reads as free.
func (s *Subscription) EffectiveTier(now time.Time) tier.Tier {
	if s == nil || s.PaymentStatus != PaymentActive || !s.Tier.Valid() {
		return tier.Free
	}
	if s.EndDate != nil && now.After(*s.EndDate) {
		return tier.Free
	}
	return s.Tier
}

type Preferences struct {
	UserID            string    `db:"user_id"`
	EmailNewContent   bool      `db:"email_new_content"`
	EmailMarketAlerts bool      `db:"email_market_alerts"`
	EmailWeeklyDigest bool      `db:"email_weekly_digest"`
	PushNotifications bool      `db:"push_notifications"`
	UpdatedAt         time.Time `db:"updated_at"`
}

// DefaultPreferences is what an account without a stored row gets.
func DefaultPreferences(userID string) *Preferences {
	return &Preferences{
		UserID:            userID,
		EmailNewContent:   true,
		EmailMarketAlerts: true,
		EmailWeeklyDigest: true,
		PushNotifications: false,
	}
}

// Profile is an account together with its subscription and the tier
// derived from it.
type Profile struct {
	Account      *Account
	Subscription *Subscription
	Tier         tier.Tier
}
