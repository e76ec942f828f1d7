package store

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/dropDatabas3/hellojohn-tokens/internal/domain/repository"
	"github.com/dropDatabas3/hellojohn-tokens/internal/metrics"
	"github.com/dropDatabas3/hellojohn-tokens/internal/observability/logger"
)

// ErrNotStarted se retorna al pedir repositorios antes de Start().
var ErrNotStarted = errors.New("store: manager not started")

// ManagerConfig configuración para crear un Manager.
type ManagerConfig struct {
	Adapter AdapterConfig
	Logger  *zap.Logger
}

// Manager es la fachada del store: elige el adapter configurado, corre sus
// migraciones en Start() y entrega los repositorios y el límite transaccional.
type Manager struct {
	conn    AdapterConnection
	log     *zap.Logger
	started atomic.Bool
}

// NewManager abre la conexión del backend configurado. No migra: llamar Start().
func NewManager(ctx context.Context, cfg ManagerConfig) (*Manager, error) {
	log := cfg.Logger
	if log == nil {
		log = logger.Named("store")
	}

	conn, err := OpenAdapter(ctx, cfg.Adapter)
	if err != nil {
		return nil, err
	}
	return &Manager{conn: conn, log: log.With(logger.Backend(conn.Name()))}, nil
}

// NewManagerWithConnection envuelve una conexión ya abierta.
func NewManagerWithConnection(conn AdapterConnection, log *zap.Logger) *Manager {
	if log == nil {
		log = logger.Named("store")
	}
	return &Manager{conn: conn, log: log.With(logger.Backend(conn.Name()))}
}

// Backend retorna el nombre del adapter activo.
func (m *Manager) Backend() string { return m.conn.Name() }

// Start aplica las migraciones del backend. Cualquier falla se devuelve como
// *ModuleStartError y el Manager queda sin arrancar.
func (m *Manager) Start(ctx context.Context) (*MigrationResult, error) {
	mc, ok := m.conn.(MigratableConnection)
	if !ok {
		return nil, &ModuleStartError{Backend: m.conn.Name(), Err: errors.New("adapter does not support migrations")}
	}

	fsys, dir := mc.Migrations()
	res, err := NewMigrator(fsys, dir).Run(ctx, mc.GetMigrationExecutor())
	if err != nil {
		metrics.MigrationObserved(m.conn.Name(), "failed", durationOf(res))
		m.log.Error("migrations failed", logger.Err(err))
		return res, &ModuleStartError{Backend: m.conn.Name(), Err: err}
	}

	metrics.MigrationObserved(m.conn.Name(), "ok", res.Duration)
	m.log.Info("migrations applied",
		logger.Int("applied", len(res.Applied)),
		logger.Int("skipped", len(res.Skipped)),
		logger.Duration(res.Duration),
	)
	m.started.Store(true)
	return res, nil
}

// Pending lista las migraciones no aplicadas (no requiere Start).
func (m *Manager) Pending(ctx context.Context) ([]Migration, error) {
	mc, ok := m.conn.(MigratableConnection)
	if !ok {
		return nil, errors.New("adapter does not support migrations")
	}
	fsys, dir := mc.Migrations()
	return NewMigrator(fsys, dir).Pending(ctx, mc.GetMigrationExecutor())
}

// Tokens retorna el repositorio de tokens. Panic si Start() no corrió: servir
// contra un schema sin migrar es un bug de wiring.
func (m *Manager) Tokens() repository.TokenRepository {
	m.mustStarted()
	return m.conn.Tokens()
}

// Users retorna el repositorio de usuarios.
func (m *Manager) Users() repository.UserRepository {
	m.mustStarted()
	return m.conn.Users()
}

// BeginTx abre una transacción del backend.
func (m *Manager) BeginTx(ctx context.Context) (repository.Tx, error) {
	if !m.started.Load() {
		return nil, ErrNotStarted
	}
	return m.conn.BeginTx(ctx)
}

// WithTx ejecuta fn en una transacción: commit si fn retorna nil, rollback si no.
func (m *Manager) WithTx(ctx context.Context, fn func(tx repository.Tx) error) (err error) {
	tx, err := m.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("store: begin tx: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(ctx)
			panic(p)
		}
		if err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				m.log.Warn("rollback failed", logger.Err(rbErr))
			}
		}
	}()

	if err = fn(tx); err != nil {
		return err
	}
	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("store: commit: %w", err)
	}
	return nil
}

// Ping verifica la conexión.
func (m *Manager) Ping(ctx context.Context) error { return m.conn.Ping(ctx) }

// Close cierra el pool.
func (m *Manager) Close() error { return m.conn.Close() }

func (m *Manager) mustStarted() {
	if !m.started.Load() {
		panic(ErrNotStarted)
	}
}

func durationOf(res *MigrationResult) time.Duration {
	if res == nil {
		return 0
	}
	return res.Duration
}
