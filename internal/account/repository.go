// AngelaMos | 2026
// repository.go

package account

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/wealthsupernova/supernova/internal/core"
)

type Repository interface {
	Create(ctx context.Context, a *Account) error
	GetByID(ctx context.Context, id string) (*Account, error)
	GetByEmail(ctx context.Context, email string) (*Account, error)
	UpdateName(ctx context.Context, a *Account) error
	UpdateRole(ctx context.Context, id, role string) error
	UpdatePassword(ctx context.Context, id, passwordHash string) error
	IncrementTokenVersion(ctx context.Context, id string) error
	SoftDelete(ctx context.Context, id string) error
	List(ctx context.Context, params ListAccountsParams) ([]Account, int, error)

	GetSubscription(ctx context.Context, userID string) (*Subscription, error)
	UpsertSubscription(ctx context.Context, s *Subscription) error

	GetPreferences(ctx context.Context, userID string) (*Preferences, error)
	UpsertPreferences(ctx context.Context, p *Preferences) error
}

type repository struct {
	db core.DBTX
}

func NewRepository(db core.DBTX) Repository {
	return &repository{db: db}
}

const accountColumns = `id, email, password_hash, name, role, token_version,
	created_at, updated_at, deleted_at`

func (r *repository) Create(ctx context.Context, a *Account) error {
	query := `
		INSERT INTO accounts (id, email, password_hash, name, role)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, updated_at, token_version`

	err := r.db.GetContext(ctx, a, query,
		a.ID,
		a.Email,
		a.PasswordHash,
		a.Name,
		a.Role,
	)
	if err != nil {
		if core.IsDuplicateKeyError(err) {
			return fmt.Errorf("create account: %w", core.ErrDuplicateKey)
		}
		return fmt.Errorf("create account: %w", err)
	}

	return nil
}

func (r *repository) GetByID(ctx context.Context, id string) (*Account, error) {
	query := `SELECT ` + accountColumns + `
		FROM accounts
		WHERE id = $1 AND deleted_at IS NULL`

	var a Account
	err := r.db.GetContext(ctx, &a, query, id)
	if core.IsNoMatch(err) {
		return nil, fmt.Errorf("get account: %w", core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get account: %w", err)
	}

	return &a, nil
}

func (r *repository) GetByEmail(ctx context.Context, email string) (*Account, error) {
	query := `SELECT ` + accountColumns + `
		FROM accounts
		WHERE email = $1 AND deleted_at IS NULL`

	var a Account
	err := r.db.GetContext(ctx, &a, query, email)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get account by email: %w", core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get account by email: %w", err)
	}

	return &a, nil
}

func (r *repository) UpdateName(ctx context.Context, a *Account) error {
	query := `
		UPDATE accounts
		SET name = $2, updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL
		RETURNING updated_at`

	err := r.db.GetContext(ctx, &a.UpdatedAt, query, a.ID, a.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("update account: %w", core.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("update account: %w", err)
	}

	return nil
}

func (r *repository) UpdateRole(ctx context.Context, id, role string) error {
	return r.execOne(ctx, "update role", `
		UPDATE accounts
		SET role = $2, updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL`, id, role)
}

func (r *repository) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	return r.execOne(ctx, "update password", `
		UPDATE accounts
		SET password_hash = $2, updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL`, id, passwordHash)
}

func (r *repository) IncrementTokenVersion(ctx context.Context, id string) error {
	return r.execOne(ctx, "increment token version", `
		UPDATE accounts
		SET token_version = token_version + 1, updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL`, id)
}

func (r *repository) SoftDelete(ctx context.Context, id string) error {
	return r.execOne(ctx, "delete account", `
		UPDATE accounts
		SET deleted_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL`, id)
}

// execOne runs an update that must touch exactly one live account.
func (r *repository) execOne(ctx context.Context, op, query string, args ...any) error {
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if rows == 0 {
		return fmt.Errorf("%s: %w", op, core.ErrNotFound)
	}

	return nil
}

func (r *repository) List(
	ctx context.Context,
	params ListAccountsParams,
) ([]Account, int, error) {
	params.Normalize()

	conditions := []string{"deleted_at IS NULL"}
	var args []any
	argIdx := 1

	if params.Search != "" {
		conditions = append(conditions, fmt.Sprintf(
			"(email ILIKE $%d OR name ILIKE $%d)", argIdx, argIdx))
		args = append(args, "%"+escapeLike(params.Search)+"%")
		argIdx++
	}

	if params.Role != "" {
		conditions = append(conditions, fmt.Sprintf("role = $%d", argIdx))
		args = append(args, params.Role)
		argIdx++
	}

	where := strings.Join(conditions, " AND ")

	var total int
	countQuery := "SELECT COUNT(*) FROM accounts WHERE " + where
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count accounts: %w", err)
	}

	query := fmt.Sprintf(`SELECT %s
		FROM accounts
		WHERE %s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d`,
		accountColumns, where, argIdx, argIdx+1)
	args = append(args, params.PageSize, params.Offset())

	var accounts []Account
	if err := r.db.SelectContext(ctx, &accounts, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list accounts: %w", err)
	}

	return accounts, total, nil
}

func (r *repository) GetSubscription(
	ctx context.Context,
	userID string,
) (*Subscription, error) {
	query := `
		SELECT id, user_id, tier, payment_status, payment_provider,
		       payment_reference, subscription_start_date, subscription_end_date,
		       tier_update_date, created_at, updated_at
		FROM user_subscriptions
		WHERE user_id = $1`

	var s Subscription
	err := r.db.GetContext(ctx, &s, query, userID)
	if core.IsNoMatch(err) {
		return nil, fmt.Errorf("get subscription: %w", core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get subscription: %w", err)
	}

	return &s, nil
}

// UpsertSubscription writes the one subscription row of s.UserID.
// tier_update_date only moves when the tier changes.
func (r *repository) UpsertSubscription(ctx context.Context, s *Subscription) error {
	if s.ID == "" {
		s.ID = uuid.New().String()
	}

	query := `
		INSERT INTO user_subscriptions (
			id, user_id, tier, payment_status, payment_provider,
			payment_reference, subscription_end_date
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (user_id) DO UPDATE
		SET tier = EXCLUDED.tier,
		    payment_status = EXCLUDED.payment_status,
		    payment_provider = EXCLUDED.payment_provider,
		    payment_reference = EXCLUDED.payment_reference,
		    subscription_end_date = EXCLUDED.subscription_end_date,
		    tier_update_date = CASE
		        WHEN user_subscriptions.tier <> EXCLUDED.tier THEN NOW()
		        ELSE user_subscriptions.tier_update_date
		    END,
		    updated_at = NOW()
		RETURNING id, subscription_start_date, tier_update_date, created_at, updated_at`

	var row struct {
		ID             string    `db:"id"`
		StartDate      time.Time `db:"subscription_start_date"`
		TierUpdateDate time.Time `db:"tier_update_date"`
		CreatedAt      time.Time `db:"created_at"`
		UpdatedAt      time.Time `db:"updated_at"`
	}

	err := r.db.GetContext(ctx, &row, query,
		s.ID,
		s.UserID,
		s.Tier,
		s.PaymentStatus,
		s.PaymentProvider,
		s.PaymentReference,
		s.EndDate,
	)
	if err != nil {
		if core.IsForeignKeyError(err) || core.IsInvalidTextError(err) {
			return fmt.Errorf("upsert subscription: %w", core.ErrNotFound)
		}
		return fmt.Errorf("upsert subscription: %w", err)
	}

	s.ID = row.ID
	s.StartDate = row.StartDate
	s.TierUpdateDate = row.TierUpdateDate
	s.CreatedAt = row.CreatedAt
	s.UpdatedAt = row.UpdatedAt

	return nil
}

func (r *repository) GetPreferences(
	ctx context.Context,
	userID string,
) (*Preferences, error) {
	query := `
		SELECT user_id, email_new_content, email_market_alerts,
		       email_weekly_digest, push_notifications, updated_at
		FROM notification_preferences
		WHERE user_id = $1`

	var p Preferences
	err := r.db.GetContext(ctx, &p, query, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get preferences: %w", core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get preferences: %w", err)
	}

	return &p, nil
}

func (r *repository) UpsertPreferences(ctx context.Context, p *Preferences) error {
	query := `
		INSERT INTO notification_preferences (
			id, user_id, email_new_content, email_market_alerts,
			email_weekly_digest, push_notifications
		) VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (user_id) DO UPDATE
		SET email_new_content = EXCLUDED.email_new_content,
		    email_market_alerts = EXCLUDED.email_market_alerts,
		    email_weekly_digest = EXCLUDED.email_weekly_digest,
		    push_notifications = EXCLUDED.push_notifications,
		    updated_at = NOW()
		RETURNING updated_at`

	err := r.db.GetContext(ctx, &p.UpdatedAt, query,
		uuid.New().String(),
		p.UserID,
		p.EmailNewContent,
		p.EmailMarketAlerts,
		p.EmailWeeklyDigest,
		p.PushNotifications,
	)
	if err != nil {
		if core.IsForeignKeyError(err) {
			return fmt.Errorf("upsert preferences: %w", core.ErrNotFound)
		}
		return fmt.Errorf("upsert preferences: %w", err)
	}

	return nil
}

func escapeLike(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, "%", "\\%")
	s = strings.ReplaceAll(s, "_", "\\_")
	return s
}
