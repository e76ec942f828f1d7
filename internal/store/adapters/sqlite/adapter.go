// Package sqlite implementa el adapter SQLite del store sobre
// github.com/mattn/go-sqlite3 (cgo).
//
// SQLite admite un solo escritor: el pool se limita a una conexión, así que
// dentro de una transacción todas las operaciones deben usar esa Tx.
//
// DSN de ejemplo:
//
//	file:tokens.db?_busy_timeout=5000&_foreign_keys=on
//	file:test?mode=memory&cache=shared
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"

	sqlite3 "github.com/mattn/go-sqlite3"

	"github.com/dropDatabas3/hellojohn-tokens/internal/domain/repository"
	"github.com/dropDatabas3/hellojohn-tokens/internal/store"
	migsqlite "github.com/dropDatabas3/hellojohn-tokens/migrations/sqlite"
)

func init() {
	store.RegisterAdapter(&sqliteAdapter{})
}

type sqliteAdapter struct{}

func (a *sqliteAdapter) Name() string { return "sqlite" }

func (a *sqliteAdapter) Connect(ctx context.Context, cfg store.AdapterConfig) (store.AdapterConnection, error) {
	if cfg.DSN == "" {
		return nil, errors.New("sqlite: DSN required")
	}

	db, err := sql.Open("sqlite3", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open: %w", err)
	}
	// Una sola conexión viva: un DB en memoria desaparece al cerrarse la última.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: ping failed: %w", err)
	}
	return &sqliteConnection{db: db}, nil
}

type sqliteConnection struct {
	db *sql.DB
}

func (c *sqliteConnection) Name() string { return "sqlite" }

func (c *sqliteConnection) Ping(ctx context.Context) error { return c.db.PingContext(ctx) }

func (c *sqliteConnection) Close() error { return c.db.Close() }

func (c *sqliteConnection) BeginTx(ctx context.Context) (repository.Tx, error) {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("sqlite: begin: %w", err)
	}
	return &sqliteTx{tx: tx}, nil
}

func (c *sqliteConnection) Tokens() repository.TokenRepository { return &tokenRepo{db: c.db} }
func (c *sqliteConnection) Users() repository.UserRepository   { return &userRepo{db: c.db} }

func (c *sqliteConnection) Migrations() (fs.FS, string) { return migsqlite.FS, migsqlite.Dir }

func (c *sqliteConnection) GetMigrationExecutor() store.MigrationExecutor {
	return &migrationExecutor{db: c.db}
}

type sqliteTx struct{ tx *sql.Tx }

func (t *sqliteTx) Commit(context.Context) error   { return t.tx.Commit() }
func (t *sqliteTx) Rollback(context.Context) error { return t.tx.Rollback() }

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func pick(db *sql.DB, tx repository.Tx) (querier, error) {
	if tx == nil {
		return db, nil
	}
	t, ok := tx.(*sqliteTx)
	if !ok {
		return nil, repository.ErrForeignTx
	}
	return t.tx, nil
}

func isUniqueViolation(err error) bool {
	var se sqlite3.Error
	if !errors.As(err, &se) {
		return false
	}
	return se.ExtendedCode == sqlite3.ErrConstraintUnique || se.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
}
