package pg

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dropDatabas3/hellojohn-tokens/internal/store"
)

// migrationExecutor adapta pgxpool al store.MigrationExecutor.
// Con tx != nil todas las sentencias corren dentro de ella.
type migrationExecutor struct {
	pool *pgxpool.Pool
	tx   pgx.Tx
}

func (e *migrationExecutor) Dialect() store.Dialect { return store.DialectPostgres }

func (e *migrationExecutor) q() querier {
	if e.tx != nil {
		return e.tx
	}
	return e.pool
}

// Exec sin args usa el simple protocol de pgx, que acepta varias sentencias.
func (e *migrationExecutor) Exec(ctx context.Context, query string, args ...any) error {
	_, err := e.q().Exec(ctx, query, args...)
	return err
}

func (e *migrationExecutor) AppliedVersions(ctx context.Context, query string) (map[int]string, error) {
	rows, err := e.q().Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	applied := make(map[int]string)
	for rows.Next() {
		var (
			version int
			name    string
		)
		if err := rows.Scan(&version, &name); err != nil {
			return nil, err
		}
		applied[version] = name
	}
	return applied, rows.Err()
}

// InTx: PostgreSQL soporta DDL transaccional, la migración y su registro
// en _migrations quedan atómicos.
func (e *migrationExecutor) InTx(ctx context.Context, fn func(exec store.MigrationExecutor) error) error {
	tx, err := e.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("pg: begin migration: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(&migrationExecutor{pool: e.pool, tx: tx}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}
