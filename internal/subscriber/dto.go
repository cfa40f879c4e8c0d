// AngelaMos | 2026
// dto.go

package subscriber

type SignupRequest struct {
	Name            string   `json:"name"             validate:"required,min=2,max=100"`
	Email           string   `json:"email"            validate:"required,email,max=254"`
	AccessCode      string   `json:"access_code"      validate:"omitempty,max=64"`
	InvestmentLevel string   `json:"investment_level" validate:"required,oneof=$100K-$500K $500K-$1M $1M-$5M $5M+"`
	Interests       []string `json:"interests"        validate:"omitempty,max=6,dive,oneof=stocks crypto realestate alternatives retirement wealthpres"`
	ReferralSource  string   `json:"referral_source"  validate:"omitempty,oneof=friend search social event other"`
}

type SignupResponse struct {
	ID              string `json:"id"`
	IsNewSubscriber bool   `json:"is_new_subscriber"`
}
