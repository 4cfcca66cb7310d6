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

type UserRepo struct {
	DB DBTX
}

const userColumns = `id, created_at, email, password_hash, name`

const createUser = `INSERT INTO users (id, created_at, email, password_hash, name)
VALUES (?, ?, ?, ?, ?)
RETURNING ` + userColumns

func (r *UserRepo) CreateUser(ctx context.Context, email string, passwordHash string, name *string) (models.User, error) {
	row := r.DB.QueryRowContext(ctx, createUser, uuid.New(), toMicro(time.Now()), email, passwordHash, name)
	user, err := scanUser(row)

	if err != nil {
		if isUniqueViolation(err) {
			return user, apperrors.ErrUserAlreadyExists
		}
		return user, fmt.Errorf("db error: %w", err)
	}

	return user, nil
}

func (r *UserRepo) GetUserByID(ctx context.Context, id uuid.UUID) (models.User, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	return collectUser(row)
}

func (r *UserRepo) GetUserByEmail(ctx context.Context, email string) (models.User, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = ?`, email)
	return collectUser(row)
}

func collectUser(row *sql.Row) (models.User, error) {
	user, err := scanUser(row)

	switch {
	case err == nil:
		return user, nil
	case errors.Is(err, sql.ErrNoRows):
		return user, apperrors.ErrUserNotFound
	default:
		return user, fmt.Errorf("db error: %w", err)
	}
}

func scanUser(row *sql.Row) (models.User, error) {
	var (
		u         models.User
		createdAt int64
		name      sql.NullString
	)
	err := row.Scan(&u.ID, &createdAt, &u.Email, &u.PasswordHash, &name)
	u.CreatedAt = fromMicro(createdAt)
	u.Name = fromNullString(name)
	return u, err
}
