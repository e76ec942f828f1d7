package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dropDatabas3/hellojohn-tokens/internal/domain/repository"
)

var _ repository.UserRepository = (*userRepo)(nil)

type userRepo struct{ db *sql.DB }

func (r *userRepo) Create(ctx context.Context, tx repository.Tx, in repository.CreateUserInput) (*repository.User, error) {
	q, err := pick(r.db, tx)
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
		VALUES (?, ?, ?, ?, FALSE, ?, ?)
	`
	_, err = q.ExecContext(ctx, query, u.ID, u.Username, u.Email, u.PasswordHash, now, now)
	if isUniqueViolation(err) {
		return nil, fmt.Errorf("mysql: create user: %w", repository.ErrConflict)
	}
	if err != nil {
		return nil, fmt.Errorf("mysql: create user: %w", err)
	}
	return u, nil
}

func (r *userRepo) GetByUsername(ctx context.Context, tx repository.Tx, username string) (*repository.User, error) {
	q, err := pick(r.db, tx)
	if err != nil {
		return nil, err
	}
	const query = `
		SELECT id, username, email, password_hash, active, created_at, updated_at
		FROM app_user WHERE username = ?
	`
	var u repository.User
	err = q.QueryRowContext(ctx, query, username).Scan(
		&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.Active, &u.CreatedAt, &u.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("mysql: get user: %w", err)
	}
	return &u, nil
}

func (r *userRepo) SetPasswordHash(ctx context.Context, tx repository.Tx, username, hash string) error {
	return r.exec(ctx, tx, `UPDATE app_user SET password_hash = ?, updated_at = ? WHERE username = ?`,
		hash, time.Now().UTC(), username)
}

func (r *userRepo) Activate(ctx context.Context, tx repository.Tx, username string) error {
	return r.exec(ctx, tx, `UPDATE app_user SET active = TRUE, updated_at = ? WHERE username = ?`,
		time.Now().UTC(), username)
}

// exec depende de clientFoundRows: un UPDATE que no cambia valores igual cuenta la fila.
func (r *userRepo) exec(ctx context.Context, tx repository.Tx, query string, args ...any) error {
	q, err := pick(r.db, tx)
	if err != nil {
		return err
	}
	res, err := q.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("mysql: update user: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("mysql: update user: %w", err)
	}
	if n == 0 {
		return repository.ErrNotFound
	}
	return nil
}
