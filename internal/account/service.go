// Package account implementa los flujos de cuenta que usan tokens de un solo
// uso: activación y reset de contraseña. El consumo del token y la acción que
// protege corren siempre en la misma transacción del store.
package account

import (
	"context"
	"errors"
	"fmt"
	netmail "net/mail"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/dropDatabas3/hellojohn-tokens/internal/domain/repository"
	"github.com/dropDatabas3/hellojohn-tokens/internal/observability/logger"
	"github.com/dropDatabas3/hellojohn-tokens/internal/security/password"
	"github.com/dropDatabas3/hellojohn-tokens/internal/tokens"
)

var (
	ErrInvalidInput       = errors.New("account: invalid input")
	ErrUsernameTaken      = errors.New("account: username taken")
	ErrInvalidCredentials = errors.New("account: invalid credentials")
)

// Store es lo que el servicio usa del store.Manager.
type Store interface {
	Users() repository.UserRepository
	WithTx(ctx context.Context, fn func(tx repository.Tx) error) error
}

// Notifier entrega los links por email.
type Notifier interface {
	SendActivation(ctx context.Context, to, username, token string, expireAt time.Time) error
	SendPasswordReset(ctx context.Context, to, username, token string, expireAt time.Time) error
}

type Config struct {
	ActivationTTL  time.Duration
	ResetTTL       time.Duration
	PasswordParams password.Params
	Policy         password.Policy
}

type Service struct {
	cfg      Config
	store    Store
	tokens   *tokens.Service
	notifier Notifier
	log      *zap.Logger
}

func NewService(cfg Config, st Store, tok *tokens.Service, n Notifier, log *zap.Logger) *Service {
	if cfg.ActivationTTL <= 0 {
		cfg.ActivationTTL = 48 * time.Hour
	}
	if cfg.ResetTTL <= 0 {
		cfg.ResetTTL = time.Hour
	}
	if cfg.PasswordParams == (password.Params{}) {
		cfg.PasswordParams = password.Default
	}
	if cfg.Policy == (password.Policy{}) {
		cfg.Policy = password.DefaultPolicy
	}
	if log == nil {
		log = logger.Named("account")
	}
	return &Service{cfg: cfg, store: st, tokens: tok, notifier: n, log: log}
}

// Register crea el usuario inactivo y su token de activación en una sola tx,
// y después manda el link. Si falla el email el usuario queda creado y se
// retorna *email.DeliveryError.
func (s *Service) Register(ctx context.Context, username, email, plain string) (*repository.User, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, fmt.Errorf("%w: username required", ErrInvalidInput)
	}
	addr, err := netmail.ParseAddress(strings.TrimSpace(email))
	if err != nil {
		return nil, fmt.Errorf("%w: email", ErrInvalidInput)
	}
	if err := s.cfg.Policy.Check(plain); err != nil {
		return nil, err
	}

	hash, err := password.Hash(s.cfg.PasswordParams, plain)
	if err != nil {
		return nil, err
	}
	var (
		u   *repository.User
		tok *repository.Token
	)
	err = s.store.WithTx(ctx, func(tx repository.Tx) error {
		var err error
		u, err = s.store.Users().Create(ctx, tx, repository.CreateUserInput{
			Username:     username,
			Email:        addr.Address,
			PasswordHash: hash,
		})
		if errors.Is(err, repository.ErrConflict) {
			return ErrUsernameTaken
		}
		if err != nil {
			return err
		}
		tok, err = s.tokens.IssueTx(ctx, tx, u.Username, repository.TokenTypeAccountActivation, s.cfg.ActivationTTL)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("user registered", logger.Username(u.Username))
	return u, s.notifier.SendActivation(ctx, u.Email, u.Username, tok.Token, time.Unix(tok.ExpireAtEpoch, 0))
}

// Activate consume el token de activación y activa al usuario.
func (s *Service) Activate(ctx context.Context, plain string) error {
	t, err := s.usable(ctx, plain, repository.TokenTypeAccountActivation)
	if err != nil {
		return err
	}
	err = s.store.WithTx(ctx, func(tx repository.Tx) error {
		if err := s.tokens.Consume(ctx, tx, t); err != nil {
			return err
		}
		return s.store.Users().Activate(ctx, tx, t.Username)
	})
	if err != nil {
		return err
	}
	s.log.Info("account activated", logger.Username(t.Username))
	return nil
}

// RequestPasswordReset manda un link de reset. Usuarios inexistentes o
// inactivos no producen error para no revelar qué cuentas existen.
func (s *Service) RequestPasswordReset(ctx context.Context, username string) error {
	u, err := s.store.Users().GetByUsername(ctx, nil, strings.TrimSpace(username))
	if errors.Is(err, repository.ErrNotFound) {
		s.log.Debug("password reset for unknown user", logger.Username(username))
		return nil
	}
	if err != nil {
		return err
	}
	if !u.Active {
		return nil
	}

	tok, err := s.tokens.Issue(ctx, u.Username, repository.TokenTypeResetPassword, s.cfg.ResetTTL)
	if err != nil {
		return err
	}
	return s.notifier.SendPasswordReset(ctx, u.Email, u.Username, tok.Token, time.Unix(tok.ExpireAtEpoch, 0))
}

// ResetPassword consume el token de reset y cambia la contraseña en la misma tx.
func (s *Service) ResetPassword(ctx context.Context, plain, newPassword string) error {
	if err := s.cfg.Policy.Check(newPassword); err != nil {
		return err
	}
	t, err := s.usable(ctx, plain, repository.TokenTypeResetPassword)
	if err != nil {
		return err
	}
	hash, err := password.Hash(s.cfg.PasswordParams, newPassword)
	if err != nil {
		return err
	}

	err = s.store.WithTx(ctx, func(tx repository.Tx) error {
		if err := s.tokens.Consume(ctx, tx, t); err != nil {
			return err
		}
		return s.store.Users().SetPasswordHash(ctx, tx, t.Username, hash)
	})
	if err != nil {
		return err
	}
	s.log.Info("password reset", logger.Username(t.Username))
	return nil
}

// Authenticate verifica credenciales de un usuario activo.
func (s *Service) Authenticate(ctx context.Context, username, plain string) (*repository.User, error) {
	u, err := s.store.Users().GetByUsername(ctx, nil, strings.TrimSpace(username))
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if !u.Active || !password.Verify(plain, u.PasswordHash) {
		return nil, ErrInvalidCredentials
	}
	return u, nil
}

// usable busca el token y lo descarta si no existe, es de otro tipo o venció.
// Todos esos casos son indistinguibles para el caller.
func (s *Service) usable(ctx context.Context, plain string, want repository.TokenType) (*repository.Token, error) {
	t, err := s.tokens.FetchValid(ctx, plain)
	if err != nil {
		return nil, err
	}
	if t == nil || t.Type != want {
		return nil, tokens.ErrAlreadyUsedOrExpired
	}
	return t, nil
}
