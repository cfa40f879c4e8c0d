// AngelaMos | 2026
// entity.go

package auth

import (
	"time"

	"github.com/wealthsupernova/supernova/internal/tier"
)

// Identity is the account view auth needs to issue tokens. Tier is the
// effective tier at issue time.
type Identity struct {
	ID           string
	Email        string
	Name         string
	PasswordHash string
	Role         string
	Tier         tier.Tier
	TokenVersion int
	CreatedAt    time.Time
}

type RefreshToken struct {
	ID           string     `db:"id"`
	UserID       string     `db:"user_id"`
	TokenHash    string     `db:"token_hash"`
	FamilyID     string     `db:"family_id"`
	ExpiresAt    time.Time  `db:"expires_at"`
	CreatedAt    time.Time  `db:"created_at"`
	IsUsed       bool       `db:"is_used"`
	UsedAt       *time.Time `db:"used_at"`
	RevokedAt    *time.Time `db:"revoked_at"`
	ReplacedByID *string    `db:"replaced_by_id"`
	UserAgent    string     `db:"user_agent"`
	IPAddress    string     `db:"ip_address"`
}

// Usable reports whether t can still be exchanged at now.
func (t *RefreshToken) Usable(now time.Time) bool {
	return !t.IsUsed && t.RevokedAt == nil && now.Before(t.ExpiresAt)
}
