package tokens

import "errors"

var (
	// ErrIssuance: se agotaron los reintentos buscando un token único.
	// Indica un problema del RNG o del unique index, no del caller.
	ErrIssuance = errors.New("tokens: issuance failed")

	// ErrAlreadyUsedOrExpired: el token ya fue consumido (posiblemente por un
	// actor concurrente) o venció. Se muestra al usuario como "invalid or expired".
	ErrAlreadyUsedOrExpired = errors.New("tokens: already used or expired")

	// ErrInvalidType: tipo de token desconocido.
	ErrInvalidType = errors.New("tokens: invalid token type")

	// ErrInvalidValidity: ventana de validez <= 0.
	ErrInvalidValidity = errors.New("tokens: validity must be positive")
)
