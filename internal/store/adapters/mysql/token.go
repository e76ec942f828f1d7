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

var _ repository.TokenRepository = (*tokenRepo)(nil)

type tokenRepo struct{ db *sql.DB }

const tokenColumns = `id, version, token_hash, token_type, username, expire_at_epoch, created_at`

func (r *tokenRepo) Save(ctx context.Context, tx repository.Tx, in repository.NewToken) (*repository.Token, error) {
	q, err := pick(r.db, tx)
	if err != nil {
		return nil, err
	}

	t := &repository.Token{
		ID:            uuid.NewString(),
		TokenHash:     in.TokenHash,
		Type:          in.Type,
		Username:      in.Username,
		ExpireAtEpoch: in.ExpireAtEpoch,
		CreatedAt:     time.Now().UTC(),
	}

	const query = `
		INSERT INTO security_token (` + tokenColumns + `)
		VALUES (?, 0, ?, ?, ?, ?, ?)
	`
	_, err = q.ExecContext(ctx, query, t.ID, t.TokenHash, string(t.Type), t.Username, t.ExpireAtEpoch, t.CreatedAt)
	if isUniqueViolation(err) {
		return nil, fmt.Errorf("mysql: save token: %w", repository.ErrConflict)
	}
	if err != nil {
		return nil, fmt.Errorf("mysql: save token: %w", err)
	}
	return t, nil
}

func (r *tokenRepo) FetchByID(ctx context.Context, tx repository.Tx, id string) (*repository.Token, error) {
	return r.FetchOneBy(ctx, tx, repository.Filter{Field: repository.TokenFieldID, Value: id})
}

func (r *tokenRepo) FetchOneBy(ctx context.Context, tx repository.Tx, f repository.Filter) (*repository.Token, error) {
	if !f.Field.Valid() {
		return nil, fmt.Errorf("mysql: filter field %q: %w", f.Field, repository.ErrInvalidInput)
	}
	q, err := pick(r.db, tx)
	if err != nil {
		return nil, err
	}

	query := `SELECT ` + tokenColumns + ` FROM security_token WHERE ` + string(f.Field) + ` = ? ORDER BY id LIMIT 1`
	t, err := scanToken(q.QueryRowContext(ctx, query, f.Value))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("mysql: fetch token: %w", err)
	}
	return t, nil
}

func (r *tokenRepo) Update(ctx context.Context, tx repository.Tx, t *repository.Token) (*repository.Token, error) {
	q, err := pick(r.db, tx)
	if err != nil {
		return nil, err
	}

	const query = `
		UPDATE security_token
		SET token_hash = ?, token_type = ?, username = ?, expire_at_epoch = ?, version = version + 1
		WHERE id = ? AND version = ?
	`
	res, err := q.ExecContext(ctx, query, t.TokenHash, string(t.Type), t.Username, t.ExpireAtEpoch, t.ID, t.Version)
	if isUniqueViolation(err) {
		return nil, fmt.Errorf("mysql: update token: %w", repository.ErrConflict)
	}
	if err != nil {
		return nil, fmt.Errorf("mysql: update token: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("mysql: update token: %w", err)
	}
	if n == 0 {
		return nil, fmt.Errorf("mysql: update token %s@%d: %w", t.ID, t.Version, repository.ErrConflict)
	}

	out := *t
	out.Version++
	return &out, nil
}

func (r *tokenRepo) Delete(ctx context.Context, tx repository.Tx, t *repository.Token) (int64, error) {
	return r.exec(ctx, tx, "delete token", `DELETE FROM security_token WHERE id = ? AND version = ?`, t.ID, t.Version)
}

func (r *tokenRepo) DeleteExpired(ctx context.Context, tx repository.Tx, nowEpoch int64) (int64, error) {
	return r.exec(ctx, tx, "delete expired tokens", `DELETE FROM security_token WHERE expire_at_epoch < ?`, nowEpoch)
}

func (r *tokenRepo) exec(ctx context.Context, tx repository.Tx, op, query string, args ...any) (int64, error) {
	q, err := pick(r.db, tx)
	if err != nil {
		return 0, err
	}
	res, err := q.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("mysql: %s: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("mysql: %s: %w", op, err)
	}
	return n, nil
}

func scanToken(row *sql.Row) (*repository.Token, error) {
	var (
		t         repository.Token
		tokenType string
	)
	if err := row.Scan(&t.ID, &t.Version, &t.TokenHash, &tokenType, &t.Username, &t.ExpireAtEpoch, &t.CreatedAt); err != nil {
		return nil, err
	}
	t.Type = repository.TokenType(tokenType)
	return &t, nil
}
