// AngelaMos | 2026
// repository.go

package dispatch

import (
	"context"
	"fmt"

	"github.com/lib/pq"

	"github.com/wealthsupernova/supernova/internal/article"
	"github.com/wealthsupernova/supernova/internal/core"
	"github.com/wealthsupernova/supernova/internal/tier"
)

// NewsletterSource loads the article being sent. article.Repository
// satisfies it.
type NewsletterSource interface {
	GetByID(ctx context.Context, id string) (*article.Article, error)
}

// Store resolves recipients. Both listing methods page by id: pass the last
// id of the previous page as afterID, or "" for the first page.
type Store interface {
	GetContact(ctx context.Context, subscriberID string) (*Contact, error)
	MarkWelcomeSent(ctx context.Context, subscriberID, tokenHash string) error
	PaidRecipients(
		ctx context.Context,
		tiers []tier.Tier,
		afterID string,
		limit int,
	) ([]Recipient, error)
	FreeRecipients(ctx context.Context, afterID string, limit int) ([]Recipient, error)
}

type repository struct {
	db core.DBTX
}

func NewRepository(db core.DBTX) Store {
	return &repository{db: db}
}

func (r *repository) GetContact(
	ctx context.Context,
	subscriberID string,
) (*Contact, error) {
	query := `
		SELECT id, name, email
		FROM newsletter_subscribers
		WHERE id = $1`

	var c Contact
	err := r.db.GetContext(ctx, &c, query, subscriberID)
	if core.IsNoMatch(err) {
		return nil, fmt.Errorf("get subscriber: %w", core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get subscriber: %w", err)
	}

	return &c, nil
}

func (r *repository) MarkWelcomeSent(
	ctx context.Context,
	subscriberID, tokenHash string,
) error {
	query := `
		UPDATE newsletter_subscribers
		SET confirmation_sent_at = NOW(),
		    confirmation_token_hash = $2,
		    updated_at = NOW()
		WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, subscriberID, tokenHash)
	if err != nil {
		return fmt.Errorf("mark welcome sent: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark welcome sent: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("mark welcome sent: %w", core.ErrNotFound)
	}

	return nil
}

// PaidRecipients lists members with an active, unexpired subscription on one
// of tiers who have not turned off new content emails.
func (r *repository) PaidRecipients(
	ctx context.Context,
	tiers []tier.Tier,
	afterID string,
	limit int,
) ([]Recipient, error) {
	query := `
		SELECT a.id, a.email, a.name, s.tier
		FROM user_subscriptions s
		JOIN accounts a ON a.id = s.user_id
		LEFT JOIN notification_preferences p ON p.user_id = a.id
		WHERE s.tier = ANY($1)
		  AND s.payment_status = 'active'
		  AND (s.subscription_end_date IS NULL OR s.subscription_end_date > NOW())
		  AND a.deleted_at IS NULL
		  AND COALESCE(p.email_new_content, TRUE)
		  AND a.id::text > $2
		ORDER BY a.id
		LIMIT $3`

	var out []Recipient
	err := r.db.SelectContext(ctx, &out, query,
		pq.StringArray(tier.Strings(tiers)),
		afterID,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list paid recipients: %w", err)
	}

	for i := range out {
		out[i].Audience = AudiencePaid
	}

	return out, nil
}

// FreeRecipients lists confirmed free list subscribers.
func (r *repository) FreeRecipients(
	ctx context.Context,
	afterID string,
	limit int,
) ([]Recipient, error) {
	query := `
		SELECT id, email, name, 'free' AS tier
		FROM newsletter_subscribers
		WHERE is_confirmed = TRUE
		  AND id::text > $1
		ORDER BY id
		LIMIT $2`

	var out []Recipient
	if err := r.db.SelectContext(ctx, &out, query, afterID, limit); err != nil {
		return nil, fmt.Errorf("list free recipients: %w", err)
	}

	for i := range out {
		out[i].Audience = AudienceFree
	}

	return out, nil
}
