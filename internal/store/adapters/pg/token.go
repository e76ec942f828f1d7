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

// Verificar que implementa la interfaz
var _ repository.TokenRepository = (*tokenRepo)(nil)

type tokenRepo struct{ pool *pgxpool.Pool }

const tokenColumns = `id, version, token_hash, token_type, username, expire_at_epoch, created_at`

func (r *tokenRepo) Save(ctx context.Context, tx repository.Tx, in repository.NewToken) (*repository.Token, error) {
	q, err := pick(r.pool, tx)
	if err != nil {
		return nil, err
	}

	t := &repository.Token{
		ID:            uuid.NewString(),
		Version:       0,
		TokenHash:     in.TokenHash,
		Type:          in.Type,
		Username:      in.Username,
		ExpireAtEpoch: in.ExpireAtEpoch,
		CreatedAt:     time.Now().UTC(),
	}

	const query = `
		INSERT INTO security_token (` + tokenColumns + `)
		VALUES ($1, 0, $2, $3, $4, $5, $6)
	`
	_, err = q.Exec(ctx, query, t.ID, t.TokenHash, string(t.Type), t.Username, t.ExpireAtEpoch, t.CreatedAt)
	if isUniqueViolation(err) {
		return nil, fmt.Errorf("pg: save token: %w", repository.ErrConflict)
	}
	if err != nil {
		return nil, fmt.Errorf("pg: save token: %w", err)
	}
	return t, nil
}

func (r *tokenRepo) FetchByID(ctx context.Context, tx repository.Tx, id string) (*repository.Token, error) {
	return r.FetchOneBy(ctx, tx, repository.Filter{Field: repository.TokenFieldID, Value: id})
}

func (r *tokenRepo) FetchOneBy(ctx context.Context, tx repository.Tx, f repository.Filter) (*repository.Token, error) {
	if !f.Field.Valid() {
		return nil, fmt.Errorf("pg: filter field %q: %w", f.Field, repository.ErrInvalidInput)
	}
	// id es UUID en PG: un valor mal formado no puede existir
	if f.Field == repository.TokenFieldID {
		if _, err := uuid.Parse(f.Value); err != nil {
			return nil, repository.ErrNotFound
		}
	}
	q, err := pick(r.pool, tx)
	if err != nil {
		return nil, err
	}

	query := `SELECT ` + tokenColumns + ` FROM security_token WHERE ` + string(f.Field) + ` = $1 ORDER BY id LIMIT 1`
	t, err := scanToken(q.QueryRow(ctx, query, f.Value))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("pg: fetch token: %w", err)
	}
	return t, nil
}

func (r *tokenRepo) Update(ctx context.Context, tx repository.Tx, t *repository.Token) (*repository.Token, error) {
	q, err := pick(r.pool, tx)
	if err != nil {
		return nil, err
	}

	const query = `
		UPDATE security_token
		SET token_hash = $1, token_type = $2, username = $3, expire_at_epoch = $4, version = version + 1
		WHERE id = $5 AND version = $6
	`
	tag, err := q.Exec(ctx, query, t.TokenHash, string(t.Type), t.Username, t.ExpireAtEpoch, t.ID, t.Version)
	if isUniqueViolation(err) {
		return nil, fmt.Errorf("pg: update token: %w", repository.ErrConflict)
	}
	if err != nil {
		return nil, fmt.Errorf("pg: update token: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, fmt.Errorf("pg: update token %s@%d: %w", t.ID, t.Version, repository.ErrConflict)
	}

	out := *t
	out.Version++
	return &out, nil
}

func (r *tokenRepo) Delete(ctx context.Context, tx repository.Tx, t *repository.Token) (int64, error) {
	q, err := pick(r.pool, tx)
	if err != nil {
		return 0, err
	}
	tag, err := q.Exec(ctx, `DELETE FROM security_token WHERE id = $1 AND version = $2`, t.ID, t.Version)
	if err != nil {
		return 0, fmt.Errorf("pg: delete token: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *tokenRepo) DeleteExpired(ctx context.Context, tx repository.Tx, nowEpoch int64) (int64, error) {
	q, err := pick(r.pool, tx)
	if err != nil {
		return 0, err
	}
	tag, err := q.Exec(ctx, `DELETE FROM security_token WHERE expire_at_epoch < $1`, nowEpoch)
	if err != nil {
		return 0, fmt.Errorf("pg: delete expired tokens: %w", err)
	}
	return tag.RowsAffected(), nil
}

func scanToken(row pgx.Row) (*repository.Token, error) {
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
