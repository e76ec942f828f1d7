package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dropDatabas3/hellojohn-tokens/internal/store"
)

// migrationExecutor corre DDL sobre el pool o sobre una Tx abierta por InTx.
type migrationExecutor struct {
	db *sql.DB
	tx *sql.Tx
}

func (e *migrationExecutor) q() querier {
	if e.tx != nil {
		return e.tx
	}
	return e.db
}

func (e *migrationExecutor) Dialect() store.Dialect { return store.DialectSQLite }

func (e *migrationExecutor) Exec(ctx context.Context, query string, args ...any) error {
	_, err := e.q().ExecContext(ctx, query, args...)
	return err
}

func (e *migrationExecutor) AppliedVersions(ctx context.Context, query string) (map[int]string, error) {
	rows, err := e.q().QueryContext(ctx, query)
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

// InTx: SQLite soporta DDL transaccional, migración e historial van juntos.
func (e *migrationExecutor) InTx(ctx context.Context, fn func(exec store.MigrationExecutor) error) error {
	if e.tx != nil {
		return fn(e)
	}
	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: begin migration: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&migrationExecutor{db: e.db, tx: tx}); err != nil {
		return err
	}
	return tx.Commit()
}
