// AngelaMos | 2026
// entity.go

package dispatch

import (
	"fmt"
	"strings"

	"github.com/wealthsupernova/supernova/internal/core"
	"github.com/wealthsupernova/supernova/internal/tier"
)

type EmailType string

const (
	TypeFull    EmailType = "full"
	TypeSummary EmailType = "summary"
	TypeWelcome EmailType = "welcome"
	TypeTest    EmailType = "test"
)

func ParseEmailType(s string) (EmailType, error) {
	t := EmailType(strings.ToLower(strings.TrimSpace(s)))
	switch t {
	case TypeFull, TypeSummary, TypeWelcome, TypeTest:
		return t, nil
	case "":
		return TypeFull, nil
	default:
		return "", fmt.Errorf("email type %q: %w", s, core.ErrInvalidInput)
	}
}

// Audience distinguishes paying members from free list subscribers.
type Audience string

const (
	AudiencePaid Audience = "paid"
	AudienceFree Audience = "free"
)

type Recipient struct {
	ID       string    `db:"id"`
	Email    string    `db:"email"`
	Name     string    `db:"name"`
	Tier     tier.Tier `db:"tier"`
	Audience Audience  `db:"-"`
}

// Contact is a newsletter_subscribers row addressed by a welcome email.
type Contact struct {
	ID    string `db:"id"`
	Name  string `db:"name"`
	Email string `db:"email"`
}

type Message struct {
	To      string
	ToName  string
	Subject string
	HTML    string
	Text    string
	Type    EmailType
}

// Result counts one dispatch. Recipients is how many addresses were
// attempted and Sent how many the provider accepted.
type Result struct {
	Mode       EmailType
	Recipients int
	Sent       int
	Failures   []DeliveryError
}
