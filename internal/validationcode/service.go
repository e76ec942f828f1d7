// Package validationcode implementa códigos de validación sin estado en el
// servidor. Generate devuelve el código (para mandarlo por email) y un
// Envelope que el caller guarda o reenvía; Verify solo necesita el Envelope y
// el código ingresado.
//
// No hay single-use: re-verificar el mismo código antes de vencer siempre da
// válido. Si un payload necesita un solo uso, usar el paquete tokens.
package validationcode

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/dropDatabas3/hellojohn-tokens/internal/metrics"
	"github.com/dropDatabas3/hellojohn-tokens/internal/observability/logger"
	sectoken "github.com/dropDatabas3/hellojohn-tokens/internal/security/token"
)

const (
	DefaultCodeLength = 6
	DefaultValidity   = 10 * time.Minute
)

// Envelope es el registro no secreto que vuelve el caller. TokenHash liga el
// código al resto de los campos: cambiar payload o fechas invalida el código.
type Envelope[T any] struct {
	ToBeValidated       T      `json:"to_be_validated"`
	CreatedTsSeconds    int64  `json:"created_ts_seconds"`
	ExpirationTsSeconds int64  `json:"expiration_ts_seconds"`
	TokenHash           string `json:"token_hash"`
}

// VerifyResult siempre trae el payload original, válido o no.
type VerifyResult[T any] struct {
	Payload   T
	CodeValid bool
}

type Config struct {
	CodeLength      int
	Alphabet        string
	DefaultValidity time.Duration
	// SealKey habilita Seal/Open. Vacía = deshabilitado.
	SealKey []byte
}

type Deps struct {
	Hasher *sectoken.Hasher
	Logger *zap.Logger
	Now    func() time.Time
	// GenerateCode reemplaza sectoken.GenerateCode en tests.
	GenerateCode func(length int, alphabet string) (string, error)
}

type Service[T any] struct {
	cfg     Config
	hasher  *sectoken.Hasher
	log     *zap.Logger
	now     func() time.Time
	genCode func(int, string) (string, error)
}

func New[T any](cfg Config, d Deps) *Service[T] {
	if cfg.CodeLength <= 0 {
		cfg.CodeLength = DefaultCodeLength
	}
	if cfg.Alphabet == "" {
		cfg.Alphabet = sectoken.CodeAlphabet
	}
	if cfg.DefaultValidity <= 0 {
		cfg.DefaultValidity = DefaultValidity
	}
	s := &Service[T]{cfg: cfg, hasher: d.Hasher, log: d.Logger, now: d.Now, genCode: d.GenerateCode}
	if s.hasher == nil {
		s.hasher = sectoken.NewHasher(nil)
	}
	if s.log == nil {
		s.log = logger.Named("validationcode")
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.genCode == nil {
		s.genCode = sectoken.GenerateCode
	}
	return s
}

// Generate crea un código para payload, válido por validity (0 = default).
func (s *Service[T]) Generate(payload T, validity time.Duration) (string, Envelope[T], error) {
	if validity == 0 {
		validity = s.cfg.DefaultValidity
	}
	if validity < 0 {
		return "", Envelope[T]{}, fmt.Errorf("validationcode: negative validity %s", validity)
	}

	code, err := s.genCode(s.cfg.CodeLength, s.cfg.Alphabet)
	if err != nil {
		return "", Envelope[T]{}, fmt.Errorf("validationcode: generate: %w", err)
	}

	now := s.now().Unix()
	env := Envelope[T]{
		ToBeValidated:       payload,
		CreatedTsSeconds:    now,
		ExpirationTsSeconds: now + int64(validity/time.Second),
	}
	material, err := bindingMaterial(env, code)
	if err != nil {
		return "", Envelope[T]{}, err
	}
	env.TokenHash = s.hasher.Hash(material)
	return code, env, nil
}

// Verify no falla nunca por código inválido o vencido: CodeValid=false.
// Vencido si now > ExpirationTsSeconds, aunque el código coincida.
func (s *Service[T]) Verify(env Envelope[T], code string) VerifyResult[T] {
	res := VerifyResult[T]{Payload: env.ToBeValidated}

	if s.now().Unix() > env.ExpirationTsSeconds {
		metrics.ValidationCodesVerified.WithLabelValues("expired").Inc()
		return res
	}

	material, err := bindingMaterial(env, NormalizeCode(code))
	if err != nil {
		s.log.Warn("envelope payload not encodable", logger.Err(err))
		metrics.ValidationCodesVerified.WithLabelValues("invalid").Inc()
		return res
	}
	res.CodeValid = s.hasher.Verify(material, env.TokenHash)
	if res.CodeValid {
		metrics.ValidationCodesVerified.WithLabelValues("valid").Inc()
	} else {
		metrics.ValidationCodesVerified.WithLabelValues("invalid").Inc()
	}
	return res
}

// NormalizeCode pasa a mayúsculas y quita espacios y guiones de formato.
func NormalizeCode(code string) string {
	code = strings.ToUpper(strings.TrimSpace(code))
	return strings.NewReplacer(" ", "", "-", "").Replace(code)
}

// bindingMaterial: code | created | expiration | json(payload).
// encoding/json ordena las keys de los maps, el resultado es estable.
func bindingMaterial[T any](env Envelope[T], code string) (string, error) {
	p, err := json.Marshal(env.ToBeValidated)
	if err != nil {
		return "", fmt.Errorf("validationcode: encode payload: %w", err)
	}
	var b strings.Builder
	b.Grow(len(code) + len(p) + 32)
	b.WriteString(code)
	b.WriteByte('|')
	b.WriteString(strconv.FormatInt(env.CreatedTsSeconds, 10))
	b.WriteByte('|')
	b.WriteString(strconv.FormatInt(env.ExpirationTsSeconds, 10))
	b.WriteByte('|')
	b.Write(p)
	return b.String(), nil
}
