package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nkiryanov/taskmanager/internal/apperrors"
	"github.com/nkiryanov/taskmanager/internal/models"
)

type RefreshTokenRepo struct {
	DB DBTX
}

const tokenColumns = `id, user_id, token, created_at, expires_at, revoked_at`

const saveToken = `INSERT INTO refresh_tokens (id, user_id, token, created_at, expires_at, revoked_at)
VALUES (?, ?, ?, ?, ?, ?)
RETURNING ` + tokenColumns

func (r *RefreshTokenRepo) Save(ctx context.Context, token models.RefreshToken) (models.RefreshToken, error) {
	row := r.DB.QueryRowContext(ctx, saveToken,
		token.ID, token.UserID, token.Token, toMicro(token.CreatedAt), toMicro(token.ExpiresAt), toNullMicro(token.RevokedAt),
	)
	saved, err := scanRefreshToken(row)
	if err != nil {
		return saved, fmt.Errorf("db error: %w", err)
	}
	return saved, nil
}

// Get token
// It should return result even it expired or revoked already
func (r *RefreshTokenRepo) Get(ctx context.Context, tokenString string) (models.RefreshToken, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+tokenColumns+` FROM refresh_tokens WHERE token = ?`, tokenString)
	token, err := scanRefreshToken(row)

	switch {
	case err == nil:
		return token, nil
	case errors.Is(err, sql.ErrNoRows):
		return token, fmt.Errorf("repo error: %w", apperrors.ErrRefreshTokenNotFound)
	default:
		return token, fmt.Errorf("db error: %w", err)
	}
}

const revokeToken = `UPDATE refresh_tokens
SET revoked_at = COALESCE(revoked_at, ?)
WHERE user_id = ? AND token = ?`

func (r *RefreshTokenRepo) Revoke(ctx context.Context, userID uuid.UUID, tokenString string, at time.Time) error {
	n, err := affected(r.DB.ExecContext(ctx, revokeToken, toMicro(at), userID, tokenString))
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("repo error: %w", apperrors.ErrRefreshTokenNotFound)
	}
	return nil
}

const revokeAll = `UPDATE refresh_tokens
SET revoked_at = ?
WHERE user_id = ? AND revoked_at IS NULL`

func (r *RefreshTokenRepo) RevokeAll(ctx context.Context, userID uuid.UUID, at time.Time) (int64, error) {
	return affected(r.DB.ExecContext(ctx, revokeAll, toMicro(at), userID))
}

const revokeExcess = `UPDATE refresh_tokens
SET revoked_at = ?1
WHERE user_id = ?2
  AND revoked_at IS NULL
  AND id NOT IN (
    SELECT id FROM refresh_tokens
    WHERE user_id = ?2 AND revoked_at IS NULL AND expires_at > ?1
    ORDER BY created_at DESC, id DESC
    LIMIT ?3
  )`

func (r *RefreshTokenRepo) RevokeExcess(ctx context.Context, userID uuid.UUID, keep int, at time.Time) (int64, error) {
	return affected(r.DB.ExecContext(ctx, revokeExcess, toMicro(at), userID, keep))
}

const deleteStale = `DELETE FROM refresh_tokens
WHERE expires_at < ?1 OR revoked_at < ?1`

func (r *RefreshTokenRepo) DeleteStale(ctx context.Context, before time.Time) (int64, error) {
	return affected(r.DB.ExecContext(ctx, deleteStale, toMicro(before)))
}

func affected(res sql.Result, err error) (int64, error) {
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}

func scanRefreshToken(row *sql.Row) (models.RefreshToken, error) {
	var (
		t                    models.RefreshToken
		createdAt, expiresAt int64
		revokedAt            sql.NullInt64
	)
	err := row.Scan(&t.ID, &t.UserID, &t.Token, &createdAt, &expiresAt, &revokedAt)
	t.CreatedAt = fromMicro(createdAt)
	t.ExpiresAt = fromMicro(expiresAt)
	t.RevokedAt = fromNullMicro(revokedAt)
	return t, err
}
