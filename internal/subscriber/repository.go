// AngelaMos | 2026
// repository.go

package subscriber

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/wealthsupernova/supernova/internal/core"
)

type Repository interface {
	Upsert(ctx context.Context, s *Subscriber) (bool, error)
	Confirm(ctx context.Context, tokenHash string) (string, error)
}

type repository struct {
	db core.DBTX
}

func NewRepository(db core.DBTX) Repository {
	return &repository{db: db}
}

// Upsert inserts s or, when the email is already subscribed, overwrites the
// profile fields of the existing row. It reports whether a new row was
// created and fills in the stored id and timestamps.
func (r *repository) Upsert(ctx context.Context, s *Subscriber) (bool, error) {
	query := `
		INSERT INTO newsletter_subscribers (
			id, name, email, investment_level, interests,
			referral_source, access_code, source
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (email) DO UPDATE
		SET name = EXCLUDED.name,
		    investment_level = EXCLUDED.investment_level,
		    interests = EXCLUDED.interests,
		    referral_source = EXCLUDED.referral_source,
		    access_code = EXCLUDED.access_code,
		    updated_at = NOW()
		RETURNING id, is_confirmed, created_at, updated_at, (xmax = 0) AS inserted`

	var row struct {
		ID          string    `db:"id"`
		IsConfirmed bool      `db:"is_confirmed"`
		CreatedAt   time.Time `db:"created_at"`
		UpdatedAt   time.Time `db:"updated_at"`
		Inserted    bool      `db:"inserted"`
	}

	err := r.db.GetContext(ctx, &row, query,
		s.ID,
		s.Name,
		s.Email,
		s.InvestmentLevel,
		s.Interests,
		s.ReferralSource,
		s.AccessCode,
		s.Source,
	)
	if err != nil {
		return false, fmt.Errorf("upsert subscriber: %w", err)
	}

	s.ID = row.ID
	s.IsConfirmed = row.IsConfirmed
	s.CreatedAt = row.CreatedAt
	s.UpdatedAt = row.UpdatedAt

	return row.Inserted, nil
}

// Confirm marks the subscriber holding tokenHash as confirmed and burns the
// token. It returns the subscriber id.
func (r *repository) Confirm(ctx context.Context, tokenHash string) (string, error) {
	query := `
		UPDATE newsletter_subscribers
		SET is_confirmed = TRUE,
		    confirmation_token_hash = NULL,
		    updated_at = NOW()
		WHERE confirmation_token_hash = $1
		RETURNING id`

	var id string
	err := r.db.GetContext(ctx, &id, query, tokenHash)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("confirm subscriber: %w", core.ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("confirm subscriber: %w", err)
	}

	return id, nil
}
