package repository

import (
	"context"
	"time"
)

// TokenType indica el propósito del token.
type TokenType string

const (
	TokenTypeAccountActivation TokenType = "account_activation"
	TokenTypeResetPassword     TokenType = "reset_password"
)

// Valid reporta si el tipo es uno de los conocidos.
func (t TokenType) Valid() bool {
	switch t {
	case TokenTypeAccountActivation, TokenTypeResetPassword:
		return true
	}
	return false
}

// Token representa un registro de token de un solo uso.
//
// Solo TokenHash se persiste. Token (texto plano) se completa al emitir y al
// buscar por token, porque en ambos casos el caller lo conoce.
type Token struct {
	ID            string
	Version       int64
	Token         string
	TokenHash     string
	Type          TokenType
	Username      string
	ExpireAtEpoch int64
	CreatedAt     time.Time
}

// ExpiredAt reporta si el token está vencido en el instante dado.
// El token es inválido estrictamente después de ExpireAtEpoch.
func (t *Token) ExpiredAt(now time.Time) bool {
	return now.Unix() > t.ExpireAtEpoch
}

// NewToken contiene los datos para persistir un token nuevo.
type NewToken struct {
	TokenHash     string
	Type          TokenType
	Username      string
	ExpireAtEpoch int64
}

// TokenField es una columna consultable por FetchOneBy.
type TokenField string

const (
	TokenFieldID        TokenField = "id"
	TokenFieldTokenHash TokenField = "token_hash"
	TokenFieldUsername  TokenField = "username"
	TokenFieldType      TokenField = "token_type"
)

// Valid evita que un filtro arbitrario llegue al SQL.
func (f TokenField) Valid() bool {
	switch f {
	case TokenFieldID, TokenFieldTokenHash, TokenFieldUsername, TokenFieldType:
		return true
	}
	return false
}

// Filter es un predicado de igualdad simple (field = value).
type Filter struct {
	Field TokenField
	Value string
}

// TokenRepository define operaciones sobre tokens versionados.
// Todas las operaciones aceptan una Tx opcional (nil = pool).
type TokenRepository interface {
	// Save inserta un token nuevo con version 0.
	// Retorna ErrConflict si token_hash ya existe.
	Save(ctx context.Context, tx Tx, in NewToken) (*Token, error)

	// FetchByID busca por id. Retorna ErrNotFound si no existe.
	FetchByID(ctx context.Context, tx Tx, id string) (*Token, error)

	// FetchOneBy busca el primer registro que cumple el filtro, ordenado por id.
	// Retorna ErrNotFound si no hay ninguno.
	FetchOneBy(ctx context.Context, tx Tx, f Filter) (*Token, error)

	// Update reescribe el registro si la version no cambió desde la lectura,
	// incrementándola. Retorna ErrConflict si la version avanzó.
	Update(ctx context.Context, tx Tx, t *Token) (*Token, error)

	// Delete borra por (id, version). Retorna 0 si la version no coincide
	// o el registro ya no existe, 1 si lo borró.
	Delete(ctx context.Context, tx Tx, t *Token) (int64, error)

	// DeleteExpired borra tokens con expire_at_epoch < nowEpoch.
	DeleteExpired(ctx context.Context, tx Tx, nowEpoch int64) (int64, error)
}
