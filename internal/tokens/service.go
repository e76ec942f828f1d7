// Package tokens implementa el ciclo de vida de los tokens de un solo uso:
// emisión, lookup, consumo y limpieza de vencidos.
//
// Estado de un token: Issued → {Consumed | Expired | ConcurrentlyConsumed}.
// No hay locks en proceso: la exclusión la dan el unique index sobre
// token_hash y el chequeo de version en el DELETE.
package tokens

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/dropDatabas3/hellojohn-tokens/internal/domain/repository"
	"github.com/dropDatabas3/hellojohn-tokens/internal/metrics"
	"github.com/dropDatabas3/hellojohn-tokens/internal/observability/logger"
	sectoken "github.com/dropDatabas3/hellojohn-tokens/internal/security/token"
)

const (
	DefaultIssueRetries = 3
	DefaultTokenBytes   = 32
)

// Config del servicio. Se arma una vez al arrancar.
type Config struct {
	// IssueRetries: intentos de Save ante colisión del unique index.
	IssueRetries int
	// TokenBytes: bytes aleatorios por token (base64url).
	TokenBytes int
	// DefaultValidity se usa cuando Issue recibe validity 0.
	DefaultValidity time.Duration
}

// Deps del servicio.
type Deps struct {
	Repo   repository.TokenRepository
	Hasher *sectoken.Hasher
	Logger *zap.Logger
	// Now permite fijar el reloj en tests.
	Now func() time.Time
	// Generate reemplaza sectoken.GenerateOpaqueToken en tests.
	Generate func(nBytes int) (string, error)
}

type Service struct {
	cfg      Config
	repo     repository.TokenRepository
	hasher   *sectoken.Hasher
	log      *zap.Logger
	now      func() time.Time
	generate func(int) (string, error)
}

func NewService(cfg Config, d Deps) *Service {
	if cfg.IssueRetries <= 0 {
		cfg.IssueRetries = DefaultIssueRetries
	}
	if cfg.TokenBytes <= 0 {
		cfg.TokenBytes = DefaultTokenBytes
	}
	s := &Service{
		cfg:      cfg,
		repo:     d.Repo,
		hasher:   d.Hasher,
		log:      d.Logger,
		now:      d.Now,
		generate: d.Generate,
	}
	if s.hasher == nil {
		s.hasher = sectoken.NewHasher(nil)
	}
	if s.log == nil {
		s.log = logger.Named("tokens")
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.generate == nil {
		s.generate = sectoken.GenerateOpaqueToken
	}
	return s
}

// Issue emite un token nuevo para username. El plaintext solo existe en el
// *Token devuelto; en la base queda su digest.
func (s *Service) Issue(ctx context.Context, username string, tokenType repository.TokenType, validity time.Duration) (*repository.Token, error) {
	return s.IssueTx(ctx, nil, username, tokenType, validity)
}

// IssueTx es Issue dentro de la tx del caller (nil = pool). En Postgres una
// colisión aborta la tx, así que el reintento falla y el error sube al caller.
func (s *Service) IssueTx(ctx context.Context, tx repository.Tx, username string, tokenType repository.TokenType, validity time.Duration) (*repository.Token, error) {
	if !tokenType.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidType, tokenType)
	}
	if validity == 0 {
		validity = s.cfg.DefaultValidity
	}
	if validity <= 0 {
		return nil, ErrInvalidValidity
	}

	expireAt := s.now().Add(validity).Unix()
	for attempt := 1; attempt <= s.cfg.IssueRetries; attempt++ {
		plain, err := s.generate(s.cfg.TokenBytes)
		if err != nil {
			return nil, fmt.Errorf("tokens: generate: %w", err)
		}

		t, err := s.repo.Save(ctx, tx, repository.NewToken{
			TokenHash:     s.hasher.Hash(plain),
			Type:          tokenType,
			Username:      username,
			ExpireAtEpoch: expireAt,
		})
		if errors.Is(err, repository.ErrConflict) {
			metrics.TokenIssueCollisions.WithLabelValues(string(tokenType)).Inc()
			s.log.Warn("token collision, retrying",
				logger.TokenType(string(tokenType)), logger.Int("attempt", attempt))
			continue
		}
		if err != nil {
			return nil, err
		}

		t.Token = plain
		metrics.TokensIssued.WithLabelValues(string(tokenType)).Inc()
		s.log.Debug("token issued",
			logger.TokenID(t.ID), logger.TokenType(string(tokenType)), logger.Username(username))
		return t, nil
	}
	return nil, fmt.Errorf("%w after %d attempts", ErrIssuance, s.cfg.IssueRetries)
}

// FetchByToken busca el registro de un token. No chequea vencimiento ni muta
// nada. Retorna (nil, nil) si no existe.
func (s *Service) FetchByToken(ctx context.Context, plain string) (*repository.Token, error) {
	if plain == "" {
		return nil, nil
	}
	t, err := s.repo.FetchOneBy(ctx, nil, repository.Filter{
		Field: repository.TokenFieldTokenHash,
		Value: s.hasher.Hash(plain),
	})
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	t.Token = plain
	return t, nil
}

// FetchValid es FetchByToken tratando los vencidos como ausentes.
// Es el lookup que deben usar los caminos que muestran el token.
func (s *Service) FetchValid(ctx context.Context, plain string) (*repository.Token, error) {
	t, err := s.FetchByToken(ctx, plain)
	if err != nil || t == nil {
		return nil, err
	}
	if t.ExpiredAt(s.now()) {
		return nil, nil
	}
	return t, nil
}

// Consume borra el token por (id, version) dentro de tx. Con tx nil corre en
// autocommit. 0 filas borradas significa que otro actor lo consumió antes.
// El caller debe correr la acción protegida en la misma tx.
func (s *Service) Consume(ctx context.Context, tx repository.Tx, t *repository.Token) error {
	// FetchByToken devuelve nil en un miss
	if t == nil {
		return ErrAlreadyUsedOrExpired
	}
	tokenType := string(t.Type)
	if t.ExpiredAt(s.now()) {
		metrics.TokensConsumed.WithLabelValues(tokenType, "expired").Inc()
		return ErrAlreadyUsedOrExpired
	}

	n, err := s.repo.Delete(ctx, tx, t)
	if err != nil {
		metrics.TokensConsumed.WithLabelValues(tokenType, "error").Inc()
		return err
	}
	if n == 0 {
		metrics.TokensConsumed.WithLabelValues(tokenType, "already_used").Inc()
		s.log.Info("token already consumed", logger.TokenID(t.ID), logger.TokenType(tokenType))
		return ErrAlreadyUsedOrExpired
	}

	metrics.TokensConsumed.WithLabelValues(tokenType, "ok").Inc()
	return nil
}

// SweepExpired borra los tokens vencidos. Es solo limpieza: todo camino de
// lectura vuelve a chequear el vencimiento.
func (s *Service) SweepExpired(ctx context.Context) (int64, error) {
	n, err := s.repo.DeleteExpired(ctx, nil, s.now().Unix())
	if err != nil {
		return 0, fmt.Errorf("tokens: sweep: %w", err)
	}
	metrics.TokensSwept.Add(float64(n))
	return n, nil
}
