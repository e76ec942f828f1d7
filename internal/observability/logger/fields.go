package logger

import (
	"time"

	"go.uber.org/zap"
)

// ─── HTTP ───

func RequestID(v string) zap.Field { return zap.String("request_id", v) }
func Method(v string) zap.Field    { return zap.String("method", v) }
func Path(v string) zap.Field      { return zap.String("path", v) }
func Status(v int) zap.Field       { return zap.Int("status", v) }

// ─── Dominio ───

// Backend identifica el motor SQL activo.
func Backend(v string) zap.Field { return zap.String("backend", v) }

// TokenType es el propósito del token (account_activation, reset_password).
func TokenType(v string) zap.Field { return zap.String("token_type", v) }

// TokenID es el id del registro, nunca el token en claro.
func TokenID(v string) zap.Field { return zap.String("token_id", v) }

func Username(v string) zap.Field { return zap.String("username", v) }

// ─── Genéricos ───

func Component(v string) zap.Field       { return zap.String("component", v) }
func Op(v string) zap.Field              { return zap.String("op", v) }
func Duration(v time.Duration) zap.Field { return zap.Duration("duration", v) }
func Count(v int64) zap.Field            { return zap.Int64("count", v) }
func String(key, v string) zap.Field     { return zap.String(key, v) }
func Int(key string, v int) zap.Field    { return zap.Int(key, v) }
func Bool(key string, v bool) zap.Field  { return zap.Bool(key, v) }

// Err crea un campo de error; nil se ignora.
func Err(err error) zap.Field {
	if err == nil {
		return zap.Skip()
	}
	return zap.Error(err)
}
