// Package mysql implementa el adapter MySQL del store.
// Usa database/sql con github.com/go-sql-driver/mysql.
//
// Requisitos:
//   - MySQL 8.0+
//   - DSN format: user:password@tcp(host:port)/database
//
// parseTime, multiStatements y clientFoundRows se fuerzan al conectar: los
// repositorios dependen de time.Time, las migraciones traen varias sentencias
// y el conteo de filas afectadas tiene que contar filas matcheadas.
package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"time"

	driver "github.com/go-sql-driver/mysql"

	"github.com/dropDatabas3/hellojohn-tokens/internal/domain/repository"
	"github.com/dropDatabas3/hellojohn-tokens/internal/store"
	migmysql "github.com/dropDatabas3/hellojohn-tokens/migrations/mysql"
)

func init() {
	store.RegisterAdapter(&mysqlAdapter{})
}

// mysqlAdapter implementa store.Adapter para MySQL.
type mysqlAdapter struct{}

func (a *mysqlAdapter) Name() string { return "mysql" }

func (a *mysqlAdapter) Connect(ctx context.Context, cfg store.AdapterConfig) (store.AdapterConnection, error) {
	if cfg.DSN == "" {
		return nil, errors.New("mysql: DSN required")
	}
	mcfg, err := driver.ParseDSN(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("mysql: parse DSN: %w", err)
	}
	mcfg.ParseTime = true
	mcfg.MultiStatements = true
	mcfg.ClientFoundRows = true
	mcfg.Loc = time.UTC

	connector, err := driver.NewConnector(mcfg)
	if err != nil {
		return nil, fmt.Errorf("mysql: connector: %w", err)
	}
	db := sql.OpenDB(connector)

	// Configurar pool de conexiones
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	} else {
		db.SetMaxOpenConns(10)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	} else {
		db.SetMaxIdleConns(2)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	} else {
		db.SetConnMaxLifetime(30 * time.Minute)
	}
	db.SetConnMaxIdleTime(5 * time.Minute)

	// Verificar conectividad
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("mysql: ping failed: %w", err)
	}

	return &mysqlConnection{db: db}, nil
}

// mysqlConnection representa una conexión activa a MySQL.
type mysqlConnection struct {
	db *sql.DB
}

func (c *mysqlConnection) Name() string { return "mysql" }

func (c *mysqlConnection) Ping(ctx context.Context) error { return c.db.PingContext(ctx) }

func (c *mysqlConnection) Close() error { return c.db.Close() }

func (c *mysqlConnection) BeginTx(ctx context.Context) (repository.Tx, error) {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("mysql: begin: %w", err)
	}
	return &mysqlTx{tx: tx}, nil
}

// ─── Repositorios ───

func (c *mysqlConnection) Tokens() repository.TokenRepository { return &tokenRepo{db: c.db} }
func (c *mysqlConnection) Users() repository.UserRepository   { return &userRepo{db: c.db} }

// ─── Migraciones ───

func (c *mysqlConnection) Migrations() (fs.FS, string) { return migmysql.FS, migmysql.Dir }

func (c *mysqlConnection) GetMigrationExecutor() store.MigrationExecutor {
	return &migrationExecutor{db: c.db}
}

// migrationExecutor adapta sql.DB al store.MigrationExecutor.
type migrationExecutor struct {
	db *sql.DB
}

func (e *migrationExecutor) Dialect() store.Dialect { return store.DialectMySQL }

func (e *migrationExecutor) Exec(ctx context.Context, query string, args ...any) error {
	_, err := e.db.ExecContext(ctx, query, args...)
	return err
}

func (e *migrationExecutor) AppliedVersions(ctx context.Context, query string) (map[int]string, error) {
	return appliedVersions(ctx, e.db, query)
}

// InTx: en MySQL el DDL hace commit implícito, una transacción no aportaría
// atomicidad. Las migraciones usan IF NOT EXISTS para poder re-correrse si el
// proceso muere entre el DDL y el registro en _migrations.
func (e *migrationExecutor) InTx(ctx context.Context, fn func(exec store.MigrationExecutor) error) error {
	return fn(e)
}

// ─── Transacciones ───

type mysqlTx struct{ tx *sql.Tx }

func (t *mysqlTx) Commit(context.Context) error   { return t.tx.Commit() }
func (t *mysqlTx) Rollback(context.Context) error { return t.tx.Rollback() }

// querier es lo común entre *sql.DB y *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func pick(db *sql.DB, tx repository.Tx) (querier, error) {
	if tx == nil {
		return db, nil
	}
	t, ok := tx.(*mysqlTx)
	if !ok {
		return nil, repository.ErrForeignTx
	}
	return t.tx, nil
}

// isUniqueViolation detecta ER_DUP_ENTRY (1062).
func isUniqueViolation(err error) bool {
	var me *driver.MySQLError
	return errors.As(err, &me) && me.Number == 1062
}

func appliedVersions(ctx context.Context, q querier, query string) (map[int]string, error) {
	rows, err := q.QueryContext(ctx, query)
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
