// AngelaMos | 2026
// dto.go

package account

import (
	"time"

	"github.com/wealthsupernova/supernova/internal/tier"
)

type UpdateMeRequest struct {
	Name *string `json:"name,omitempty" validate:"omitempty,min=1,max=100"`
}

// UpdatePreferencesRequest changes only the flags that are present.
type UpdatePreferencesRequest struct {
	EmailNewContent   *bool `json:"email_new_content,omitempty"`
	EmailMarketAlerts *bool `json:"email_market_alerts,omitempty"`
	EmailWeeklyDigest *bool `json:"email_weekly_digest,omitempty"`
	PushNotifications *bool `json:"push_notifications,omitempty"`
}

type SetSubscriptionRequest struct {
	Tier             string     `json:"tier"              validate:"required"`
	PaymentStatus    string     `json:"payment_status"    validate:"required,oneof=active pending canceled past_due"`
	PaymentProvider  string     `json:"payment_provider"  validate:"omitempty,max=50"`
	PaymentReference string     `json:"payment_reference" validate:"omitempty,max=255"`
	EndDate          *time.Time `json:"subscription_end_date,omitempty"`
}

type SetRoleRequest struct {
	Role string `json:"role" validate:"required,oneof=user admin"`
}

type SubscriptionResponse struct {
	Tier            tier.Tier     `json:"tier"`
	PaymentStatus   PaymentStatus `json:"payment_status"`
	PaymentProvider *string       `json:"payment_provider,omitempty"`
	StartDate       time.Time     `json:"subscription_start_date"`
	EndDate         *time.Time    `json:"subscription_end_date,omitempty"`
}

type ProfileResponse struct {
	ID           string                `json:"id"`
	Email        string                `json:"email"`
	Name         string                `json:"name"`
	Role         string                `json:"role"`
	Tier         tier.Tier             `json:"tier"`
	Subscription *SubscriptionResponse `json:"subscription,omitempty"`
	CreatedAt    time.Time             `json:"created_at"`
}

type PreferencesResponse struct {
	EmailNewContent   bool `json:"email_new_content"`
	EmailMarketAlerts bool `json:"email_market_alerts"`
	EmailWeeklyDigest bool `json:"email_weekly_digest"`
	PushNotifications bool `json:"push_notifications"`
}

type AccountResponse struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

type ListAccountsParams struct {
	Page     int
	PageSize int
	Search   string
	Role     string
}

func (p *ListAccountsParams) Normalize() {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.PageSize < 1 {
		p.PageSize = 20
	}
	if p.PageSize > 100 {
		p.PageSize = 100
	}
}

func (p *ListAccountsParams) Offset() int {
	return (p.Page - 1) * p.PageSize
}

func ToProfileResponse(p *Profile) ProfileResponse {
	resp := ProfileResponse{
		ID:        p.Account.ID,
		Email:     p.Account.Email,
		Name:      p.Account.Name,
		Role:      p.Account.Role,
		Tier:      p.Tier,
		CreatedAt: p.Account.CreatedAt,
	}
	if s := p.Subscription; s != nil {
		resp.Subscription = &SubscriptionResponse{
			Tier:            s.Tier,
			PaymentStatus:   s.PaymentStatus,
			PaymentProvider: s.PaymentProvider,
			StartDate:       s.StartDate,
			EndDate:         s.EndDate,
		}
	}
	return resp
}

func ToPreferencesResponse(p *Preferences) PreferencesResponse {
	return PreferencesResponse{
		EmailNewContent:   p.EmailNewContent,
		EmailMarketAlerts: p.EmailMarketAlerts,
		EmailWeeklyDigest: p.EmailWeeklyDigest,
		PushNotifications: p.PushNotifications,
	}
}

func ToAccountResponseList(accounts []Account) []AccountResponse {
	out := make([]AccountResponse, 0, len(accounts))
	for _, a := range accounts {
		out = append(out, AccountResponse{
			ID:        a.ID,
			Email:     a.Email,
			Name:      a.Name,
			Role:      a.Role,
			CreatedAt: a.CreatedAt,
		})
	}
	return out
}
