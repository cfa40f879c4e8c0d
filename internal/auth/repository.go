// AngelaMos | 2026
// repository.go

package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/wealthsupernova/supernova/internal/core"
)

// RevokeScope selects which refresh tokens Revoke touches.
type RevokeScope string

const (
	RevokeToken  RevokeScope = "id"
	RevokeFamily RevokeScope = "family_id"
	RevokeUser   RevokeScope = "user_id"
)

type Repository interface {
	Create(ctx context.Context, token *RefreshToken) error
	// Rotate retires previousID in favor of next. It reports ErrNotFound
	// when previousID was already rotated by someone else.
	Rotate(ctx context.Context, previousID string, next *RefreshToken) error
	FindByHash(ctx context.Context, tokenHash string) (*RefreshToken, error)
	Revoke(ctx context.Context, scope RevokeScope, key string) (int64, error)
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}

type repository struct {
	db core.TxDB
}

func NewRepository(db core.TxDB) Repository {
	return &repository{db: db}
}

const selectRefreshToken = `
	SELECT id, user_id, token_hash, family_id, expires_at, created_at,
	       is_used, used_at, revoked_at, replaced_by_id, user_agent, ip_address
	FROM refresh_tokens`

const insertRefreshToken = `
	INSERT INTO refresh_tokens (
		id, user_id, token_hash, family_id, expires_at, user_agent, ip_address
	) VALUES ($1, $2, $3, $4, $5, $6, $7)
	RETURNING created_at`

func (r *repository) Create(ctx context.Context, token *RefreshToken) error {
	if err := insertToken(ctx, r.db, token); err != nil {
		return fmt.Errorf("create refresh token: %w", err)
	}
	return nil
}

func insertToken(ctx context.Context, q sqlx.QueryerContext, t *RefreshToken) error {
	return sqlx.GetContext(ctx, q, &t.CreatedAt, insertRefreshToken,
		t.ID, t.UserID, t.TokenHash, t.FamilyID, t.ExpiresAt, t.UserAgent, t.IPAddress,
	)
}

// Rotate claims previousID first, so of two concurrent refreshes with the
// same token only one gets a successor.
func (r *repository) Rotate(ctx context.Context, previousID string, next *RefreshToken) error {
	return core.InTx(ctx, r.db, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE refresh_tokens
			SET is_used = TRUE, used_at = NOW(), replaced_by_id = $2
			WHERE id = $1 AND is_used = FALSE AND revoked_at IS NULL`,
			previousID, next.ID,
		)
		if err != nil {
			return fmt.Errorf("claim refresh token: %w", err)
		}
		claimed, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("claim refresh token: %w", err)
		}
		if claimed == 0 {
			return fmt.Errorf("claim refresh token: %w", core.ErrNotFound)
		}

		if err := insertToken(ctx, tx, next); err != nil {
			return fmt.Errorf("insert rotated token: %w", err)
		}
		return nil
	})
}

func (r *repository) FindByHash(
	ctx context.Context,
	tokenHash string,
) (*RefreshToken, error) {
	var token RefreshToken
	err := r.db.GetContext(ctx, &token, selectRefreshToken+` WHERE token_hash = $1`, tokenHash)
	if core.IsNoMatch(err) {
		return nil, fmt.Errorf("find refresh token: %w", core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("find refresh token: %w", err)
	}

	return &token, nil
}

// Revoke marks every live token matching scope = key as revoked and returns
// how many it touched.
func (r *repository) Revoke(ctx context.Context, scope RevokeScope, key string) (int64, error) {
	switch scope {
	case RevokeToken, RevokeFamily, RevokeUser:
	default:
		return 0, fmt.Errorf("revoke by %q: %w", scope, core.ErrInvalidInput)
	}

	//nolint:gosec // G202: scope is one of the column constants above
	query := `UPDATE refresh_tokens SET revoked_at = NOW()
		WHERE ` + string(scope) + ` = $1 AND revoked_at IS NULL`

	res, err := r.db.ExecContext(ctx, query, key)
	if err != nil {
		return 0, fmt.Errorf("revoke refresh tokens by %s: %w", scope, err)
	}
	return res.RowsAffected()
}

func (r *repository) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM refresh_tokens WHERE expires_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("delete expired tokens: %w", err)
	}
	return res.RowsAffected()
}
