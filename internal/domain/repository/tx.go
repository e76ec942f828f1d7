package repository

import "context"

// Tx es una transacción abierta sobre el store.
// Cada adapter devuelve su propia implementación; los repositorios del mismo
// adapter la reconocen y ejecutan sobre ella en lugar del pool.
type Tx interface {
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}
