// AngelaMos | 2026
// entity.go

package subscriber

import (
	"time"

	"github.com/lib/pq"
)

const signupSource = "homepage_newsletter_form"

type Subscriber struct {
	ID                 string         `db:"id"`
	Name               string         `db:"name"`
	Email              string         `db:"email"`
	InvestmentLevel    *string        `db:"investment_level"`
	Interests          pq.StringArray `db:"interests"`
	ReferralSource     *string        `db:"referral_source"`
	AccessCode         *string        `db:"access_code"`
	Source             *string        `db:"source"`
	IsConfirmed        bool           `db:"is_confirmed"`
	ConfirmationSentAt *time.Time     `db:"confirmation_sent_at"`
	CreatedAt          time.Time      `db:"created_at"`
	UpdatedAt          time.Time      `db:"updated_at"`
}
