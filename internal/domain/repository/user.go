package repository

import (
	"context"
	"time"
)

// User representa una cuenta local con password.
type User struct {
	ID           string
	Username     string
	Email        string
	PasswordHash string
	Active       bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// CreateUserInput contiene los datos para crear un usuario.
type CreateUserInput struct {
	Username     string
	Email        string
	PasswordHash string
}

// UserRepository define las operaciones sobre usuarios que necesitan los
// flujos de activación y reset de password.
type UserRepository interface {
	// Create crea un usuario inactivo. Retorna ErrConflict si el username existe.
	Create(ctx context.Context, tx Tx, in CreateUserInput) (*User, error)

	// GetByUsername retorna ErrNotFound si no existe.
	GetByUsername(ctx context.Context, tx Tx, username string) (*User, error)

	// SetPasswordHash reemplaza el hash. Retorna ErrNotFound si no existe.
	SetPasswordHash(ctx context.Context, tx Tx, username, hash string) error

	// Activate marca la cuenta como activa. Retorna ErrNotFound si no existe.
	Activate(ctx context.Context, tx Tx, username string) error
}
