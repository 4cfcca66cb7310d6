package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/nkiryanov/taskmanager/internal/apperrors"
	"github.com/nkiryanov/taskmanager/internal/models"
)

type RefreshTokenRepo struct {
	DB DBTX
}

const saveToken = `-- name: Save Refresh Token
INSERT INTO refresh_tokens (id, user_id, token, created_at, expires_at, revoked_at)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING id, user_id, token, created_at, expires_at, revoked_at
`

func (r *RefreshTokenRepo) Save(ctx context.Context, token models.RefreshToken) (models.RefreshToken, error) {
	rows, _ := r.DB.Query(ctx, saveToken, token.ID, token.UserID, token.Token, token.CreatedAt, token.ExpiresAt, token.RevokedAt)
	saved, err := pgx.CollectOneRow(rows, rowToRefreshToken)
	if err != nil {
		return saved, fmt.Errorf("db error: %w", err)
	}
	return saved, nil
}

const getToken = `-- name: GetToken by string itself
SELECT id, user_id, token, created_at, expires_at, revoked_at
FROM refresh_tokens
WHERE token = $1
`

// Get token
// It should return result even it expired or revoked already
func (r *RefreshTokenRepo) Get(ctx context.Context, tokenString string) (models.RefreshToken, error) {
	rows, _ := r.DB.Query(ctx, getToken, tokenString)
	token, err := pgx.CollectOneRow(rows, rowToRefreshToken)

	switch {
	case err == nil:
		return token, nil
	case errors.Is(err, pgx.ErrNoRows):
		return token, fmt.Errorf("repo error: %w", apperrors.ErrRefreshTokenNotFound)
	default:
		return token, fmt.Errorf("db error: %w", err)
	}
}

const revokeToken = `-- name: Revoke token of the user
UPDATE refresh_tokens
SET revoked_at = COALESCE(revoked_at, $3)
WHERE user_id = $1 AND token = $2
`

func (r *RefreshTokenRepo) Revoke(ctx context.Context, userID uuid.UUID, tokenString string, at time.Time) error {
	tag, err := r.DB.Exec(ctx, revokeToken, userID, tokenString, at)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("repo error: %w", apperrors.ErrRefreshTokenNotFound)
	}
	return nil
}

const revokeAll = `-- name: Revoke all live tokens of the user
UPDATE refresh_tokens
SET revoked_at = $2
WHERE user_id = $1 AND revoked_at IS NULL
`

func (r *RefreshTokenRepo) RevokeAll(ctx context.Context, userID uuid.UUID, at time.Time) (int64, error) {
	tag, err := r.DB.Exec(ctx, revokeAll, userID, at)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return tag.RowsAffected(), nil
}

const revokeExcess = `-- name: Revoke live tokens of the user except newest ones
UPDATE refresh_tokens
SET revoked_at = $3
WHERE user_id = $1
  AND revoked_at IS NULL
  AND id NOT IN (
    SELECT id FROM refresh_tokens
    WHERE user_id = $1 AND revoked_at IS NULL AND expires_at > $3
    ORDER BY created_at DESC, id DESC
    LIMIT $2
  )
`

func (r *RefreshTokenRepo) RevokeExcess(ctx context.Context, userID uuid.UUID, keep int, at time.Time) (int64, error) {
	tag, err := r.DB.Exec(ctx, revokeExcess, userID, keep, at)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return tag.RowsAffected(), nil
}

const deleteStale = `-- name: Delete expired or revoked tokens
DELETE FROM refresh_tokens
WHERE expires_at < $1 OR revoked_at < $1
`

func (r *RefreshTokenRepo) DeleteStale(ctx context.Context, before time.Time) (int64, error) {
	tag, err := r.DB.Exec(ctx, deleteStale, before)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return tag.RowsAffected(), nil
}

func rowToRefreshToken(row pgx.CollectableRow) (models.RefreshToken, error) {
	var t models.RefreshToken
	err := row.Scan(&t.ID, &t.UserID, &t.Token, &t.CreatedAt, &t.ExpiresAt, &t.RevokedAt)
	return t, err
}
