package validationcode

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrSealDisabled = errors.New("validationcode: seal key not configured")
	ErrBadSeal      = errors.New("validationcode: invalid sealed envelope")
)

const sealIssuer = "hellojohn-tokens"

type sealedClaims[T any] struct {
	Envelope Envelope[T] `json:"env"`
	jwt.RegisteredClaims
}

// Seal serializa el envelope como JWT HS256 compacto, útil para meterlo en un
// link. La firma protege la integridad; el vencimiento lo sigue decidiendo Verify.
func (s *Service[T]) Seal(env Envelope[T]) (string, error) {
	if len(s.cfg.SealKey) == 0 {
		return "", ErrSealDisabled
	}
	claims := sealedClaims[T]{
		Envelope: env,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    sealIssuer,
			IssuedAt:  jwt.NewNumericDate(time.Unix(env.CreatedTsSeconds, 0)),
			ExpiresAt: jwt.NewNumericDate(time.Unix(env.ExpirationTsSeconds, 0)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.cfg.SealKey)
	if err != nil {
		return "", fmt.Errorf("validationcode: seal: %w", err)
	}
	return signed, nil
}

// Open valida la firma y devuelve el envelope. No chequea exp: un envelope
// vencido se abre y Verify responde CodeValid=false.
func (s *Service[T]) Open(sealed string) (Envelope[T], error) {
	if len(s.cfg.SealKey) == 0 {
		return Envelope[T]{}, ErrSealDisabled
	}
	claims := &sealedClaims[T]{}
	_, err := jwt.ParseWithClaims(sealed, claims, func(*jwt.Token) (any, error) {
		return s.cfg.SealKey, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithoutClaimsValidation(),
	)
	if err != nil {
		return Envelope[T]{}, fmt.Errorf("%w: %v", ErrBadSeal, err)
	}
	return claims.Envelope, nil
}
