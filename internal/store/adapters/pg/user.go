package pg

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dropDatabas3/hellojohn-tokens/internal/domain/repository"
)

var _ repository.UserRepository = (*userRepo)(nil)

type userRepo struct{ pool *pgxpool.Pool }

func (r *userRepo) Create(ctx context.Context, tx repository.Tx, in repository.CreateUserInput) (*repository.User, error) {
	q, err := pick(r.pool, tx)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	u := &repository.User{
		ID:           uuid.NewString(),
		Username:     in.Username,
		Email:        in.Email,
		PasswordHash: in.PasswordHash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	const query = `
		INSERT INTO app_user (id, username, email, password_hash, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, FALSE, $5, $5)
	`
	_, err = q.Exec(ctx, query, u.ID, u.Username, u.Email, u.PasswordHash, now)
	if isUniqueViolation(err) {
		return nil, fmt.Errorf("pg: create user: %w", repository.ErrConflict)
	}
	if err != nil {
		return nil, fmt.Errorf("pg: create user: %w", err)
	}
	return u, nil
}

func (r *userRepo) GetByUsername(ctx context.Context, tx repository.Tx, username string) (*repository.User, error) {
	q, err := pick(r.pool, tx)
	if err != nil {
		return nil, err
	}
	const query = `
		SELECT id, username, email, password_hash, active, created_at, updated_at
		FROM app_user WHERE username = $1
	`
	var u repository.User
	err = q.QueryRow(ctx, query, username).Scan(
		&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.Active, &u.CreatedAt, &u.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("pg: get user: %w", err)
	}
	return &u, nil
}

func (r *userRepo) SetPasswordHash(ctx context.Context, tx repository.Tx, username, hash string) error {
	return r.exec(ctx, tx, `UPDATE app_user SET password_hash = $1, updated_at = $2 WHERE username = $3`,
		hash, time.Now().UTC(), username)
}

func (r *userRepo) Activate(ctx context.Context, tx repository.Tx, username string) error {
	return r.exec(ctx, tx, `UPDATE app_user SET active = TRUE, updated_at = $1 WHERE username = $2`,
		time.Now().UTC(), username)
}

func (r *userRepo) exec(ctx context.Context, tx repository.Tx, query string, args ...any) error {
	q, err := pick(r.pool, tx)
	if err != nil {
		return err
	}
	tag, err := q.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("pg: update user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}
