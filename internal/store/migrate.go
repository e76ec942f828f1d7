package store

import (
	"context"
	"fmt"
	"io/fs"
	"path"
	"regexp"
	"sort"
	"strconv"
	"time"
)

// Las migraciones SQL se embeben en el binario, un set por backend.
// Formato de archivo: {version}_{name}.sql (ej: 0001_security_token.sql)

// Dialect identifica el motor SQL de un MigrationExecutor.
type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectMySQL    Dialect = "mysql"
	DialectSQLite   Dialect = "sqlite"
)

// MigrationExecutor abstrae pgx vs database/sql para el Migrator.
type MigrationExecutor interface {
	Dialect() Dialect

	// Exec ejecuta una o más sentencias.
	Exec(ctx context.Context, query string, args ...any) error

	// AppliedVersions retorna version -> name de la tabla de historial.
	AppliedVersions(ctx context.Context, query string) (map[int]string, error)

	// InTx ejecuta fn dentro de una transacción si el motor soporta DDL
	// transaccional. MySQL hace commit implícito en DDL, ahí fn corre directo.
	InTx(ctx context.Context, fn func(exec MigrationExecutor) error) error
}

// Migrator aplica migraciones SQL a una base de datos.
type Migrator struct {
	migrationsFS  fs.FS
	migrationsDir string
}

// NewMigrator crea un nuevo Migrator.
func NewMigrator(migrationsFS fs.FS, migrationsDir string) *Migrator {
	return &Migrator{
		migrationsFS:  migrationsFS,
		migrationsDir: migrationsDir,
	}
}

// Migration representa una migración individual.
type Migration struct {
	Version int
	Name    string
	SQL     string
}

// MigrationResult resultado de aplicar migraciones.
type MigrationResult struct {
	Applied  []int
	Skipped  []int
	Failed   *int
	Error    error
	Duration time.Duration
}

// migrationFilePattern patrón para nombres de archivo de migración.
var migrationFilePattern = regexp.MustCompile(`^(\d+)_(.+)\.sql$`)

// ParseMigrations lee y parsea las migraciones del FS embebido, ordenadas por versión.
func (m *Migrator) ParseMigrations() ([]Migration, error) {
	var migrations []Migration
	seen := make(map[int]string)

	err := fs.WalkDir(m.migrationsFS, m.migrationsDir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		matches := migrationFilePattern.FindStringSubmatch(path.Base(p))
		if matches == nil {
			return nil // Ignorar archivos que no coinciden
		}

		version, err := strconv.Atoi(matches[1])
		if err != nil {
			return fmt.Errorf("parsing version of %s: %w", p, err)
		}
		if prev, dup := seen[version]; dup {
			return fmt.Errorf("duplicate migration version %d (%s, %s)", version, prev, p)
		}
		seen[version] = p

		content, err := fs.ReadFile(m.migrationsFS, p)
		if err != nil {
			return fmt.Errorf("reading %s: %w", p, err)
		}

		migrations = append(migrations, Migration{
			Version: version,
			Name:    matches[2],
			SQL:     string(content),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].Version < migrations[j].Version
	})
	return migrations, nil
}

// Run aplica migraciones pendientes. Las ya aplicadas se saltean, así que es
// seguro correrlo en cada arranque.
func (m *Migrator) Run(ctx context.Context, exec MigrationExecutor) (*MigrationResult, error) {
	start := time.Now()
	result := &MigrationResult{}
	fail := func(err error) (*MigrationResult, error) {
		result.Error = err
		result.Duration = time.Since(start)
		return result, err
	}

	if err := exec.Exec(ctx, createMigrationsTableSQL(exec.Dialect())); err != nil {
		return fail(fmt.Errorf("creating migrations table: %w", err))
	}

	applied, err := exec.AppliedVersions(ctx, selectAppliedSQL)
	if err != nil {
		return fail(fmt.Errorf("getting applied migrations: %w", err))
	}

	migrations, err := m.ParseMigrations()
	if err != nil {
		return fail(fmt.Errorf("parsing migrations: %w", err))
	}

	for _, mig := range migrations {
		if name, ok := applied[mig.Version]; ok {
			if name != mig.Name {
				v := mig.Version
				result.Failed = &v
				return fail(fmt.Errorf("migration %d already applied as %q, found %q", mig.Version, name, mig.Name))
			}
			result.Skipped = append(result.Skipped, mig.Version)
			continue
		}

		if err := m.applyMigration(ctx, exec, mig); err != nil {
			v := mig.Version
			result.Failed = &v
			return fail(fmt.Errorf("applying migration %d_%s: %w", mig.Version, mig.Name, err))
		}
		result.Applied = append(result.Applied, mig.Version)
	}

	result.Duration = time.Since(start)
	return result, nil
}

// Pending retorna las migraciones aún no aplicadas.
func (m *Migrator) Pending(ctx context.Context, exec MigrationExecutor) ([]Migration, error) {
	if err := exec.Exec(ctx, createMigrationsTableSQL(exec.Dialect())); err != nil {
		return nil, fmt.Errorf("creating migrations table: %w", err)
	}
	applied, err := exec.AppliedVersions(ctx, selectAppliedSQL)
	if err != nil {
		return nil, err
	}
	migrations, err := m.ParseMigrations()
	if err != nil {
		return nil, err
	}

	var pending []Migration
	for _, mig := range migrations {
		if _, ok := applied[mig.Version]; !ok {
			pending = append(pending, mig)
		}
	}
	return pending, nil
}

// applyMigration ejecuta la migración y la registra en la misma transacción
// cuando el motor lo permite.
func (m *Migrator) applyMigration(ctx context.Context, exec MigrationExecutor, mig Migration) error {
	return exec.InTx(ctx, func(tx MigrationExecutor) error {
		if err := tx.Exec(ctx, mig.SQL); err != nil {
			return err
		}
		return tx.Exec(ctx, insertAppliedSQL(tx.Dialect()), mig.Version, mig.Name)
	})
}

const selectAppliedSQL = `SELECT version, name FROM _migrations ORDER BY version`

func insertAppliedSQL(d Dialect) string {
	if d == DialectPostgres {
		return `INSERT INTO _migrations (version, name) VALUES ($1, $2)`
	}
	return `INSERT INTO _migrations (version, name) VALUES (?, ?)`
}

// createMigrationsTableSQL crea la tabla de tracking de migraciones.
func createMigrationsTableSQL(d Dialect) string {
	switch d {
	case DialectPostgres:
		return `
			CREATE TABLE IF NOT EXISTS _migrations (
				version INT PRIMARY KEY,
				name VARCHAR(255) NOT NULL,
				applied_at TIMESTAMPTZ DEFAULT NOW()
			)`
	case DialectMySQL:
		return `
			CREATE TABLE IF NOT EXISTS _migrations (
				version INT PRIMARY KEY,
				name VARCHAR(255) NOT NULL,
				applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
			)`
	default:
		return `
			CREATE TABLE IF NOT EXISTS _migrations (
				version INTEGER PRIMARY KEY,
				name TEXT NOT NULL,
				applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
			)`
	}
}
