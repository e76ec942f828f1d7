// Package app arma el grafo de dependencias del servicio a partir de la Config.
package app

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/dropDatabas3/hellojohn-tokens/internal/account"
	"github.com/dropDatabas3/hellojohn-tokens/internal/config"
	"github.com/dropDatabas3/hellojohn-tokens/internal/email"
	httpx "github.com/dropDatabas3/hellojohn-tokens/internal/http"
	"github.com/dropDatabas3/hellojohn-tokens/internal/metrics"
	"github.com/dropDatabas3/hellojohn-tokens/internal/security/password"
	sectoken "github.com/dropDatabas3/hellojohn-tokens/internal/security/token"
	"github.com/dropDatabas3/hellojohn-tokens/internal/store"
	"github.com/dropDatabas3/hellojohn-tokens/internal/tokens"
	"github.com/dropDatabas3/hellojohn-tokens/internal/validationcode"

	// Registra postgres, mysql y sqlite via init()
	_ "github.com/dropDatabas3/hellojohn-tokens/internal/store/adapters/dal"
)

type Container struct {
	Store    *store.Manager
	Tokens   *tokens.Service
	Accounts *account.Service
	Codes    *validationcode.Service[httpx.Payload]
	Notifier *email.Notifier
	Sweeper  *tokens.Sweeper
	Handler  http.Handler
}

// OpenStore abre el backend configurado sin migrar.
func OpenStore(ctx context.Context, cfg *config.Config, log *zap.Logger) (*store.Manager, error) {
	return store.NewManager(ctx, store.ManagerConfig{
		Adapter: store.AdapterConfig{
			Name:            cfg.Storage.Driver,
			DSN:             cfg.Storage.DSN,
			MaxOpenConns:    cfg.Storage.MaxOpenConns,
			MaxIdleConns:    cfg.Storage.MaxIdleConns,
			ConnMaxLifetime: cfg.Storage.ConnMaxLifetime,
		},
		Logger:          log.Named("store"),
	})
}

// Build abre el store, corre las migraciones y arma servicios y handler.
// Un error de migración vuelve como *store.ModuleStartError: no se sirve
// tráfico contra un schema sin migrar.
func Build(ctx context.Context, cfg *config.Config, log *zap.Logger) (*Container, error) {
	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		return nil, fmt.Errorf("metrics: %w", err)
	}

	st, err := OpenStore(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	if _, err := st.Start(ctx); err != nil {
		_ = st.Close()
		return nil, err
	}

	c, err := wire(cfg, st, log)
	if err != nil {
		_ = st.Close()
		return nil, err
	}
	return c, nil
}

func wire(cfg *config.Config, st *store.Manager, log *zap.Logger) (*Container, error) {
	hasher := sectoken.NewHasher([]byte(cfg.Tokens.HashKey))
	if !hasher.Keyed() {
		log.Warn("TOKEN_HASH_KEY not set: digests are plain SHA-256")
	}

	tok := tokens.NewService(tokens.Config{
		IssueRetries:    cfg.Tokens.IssueRetries,
		TokenBytes:      cfg.Tokens.TokenBytes,
		DefaultValidity: cfg.Tokens.DefaultValidity,
	}, tokens.Deps{Repo: st.Tokens(), Hasher: hasher, Logger: log.Named("tokens")})

	tpl, err := email.LoadTemplates(cfg.Email.TemplatesDir)
	if err != nil {
		return nil, err
	}
	var sender email.Sender
	if cfg.SMTP.Host != "" {
		sender = email.NewSMTPSender(email.SMTPConfig{
			Host:               cfg.SMTP.Host,
			Port:               cfg.SMTP.Port,
			From:               cfg.SMTP.From,
			User:               cfg.SMTP.Username,
			Pass:               cfg.SMTP.Password,
			TLSMode:            cfg.SMTP.TLS,
			InsecureSkipVerify: cfg.SMTP.InsecureSkipVerify,
		}, log.Named("smtp"))
	} else {
		sender = email.NewLogSender(log.Named("email"))
	}
	notifier := email.NewNotifier(email.NotifierConfig{
		BaseURL:      cfg.Email.BaseURL,
		ActivatePath: cfg.Email.ActivatePath,
		ResetPath:    cfg.Email.ResetPath,
	}, sender, tpl, log.Named("notifier"))

	blacklist, err := password.LoadBlacklist(cfg.Security.PasswordBlacklistPath)
	if err != nil {
		return nil, fmt.Errorf("password blacklist: %w", err)
	}
	pp := cfg.Security.PasswordPolicy
	acc := account.NewService(account.Config{
		ActivationTTL: cfg.Tokens.ActivationTTL,
		ResetTTL:      cfg.Tokens.ResetTTL,
		PasswordParams: password.Params{
			Memory:      cfg.Security.Argon2.MemoryKiB,
			Time:        cfg.Security.Argon2.Time,
			Parallelism: cfg.Security.Argon2.Parallelism,
			KeyLen:      32,
		},
		Policy: password.Policy{
			MinLength:     pp.MinLength,
			RequireUpper:  pp.RequireUpper,
			RequireLower:  pp.RequireLower,
			RequireDigit:  pp.RequireDigit,
			RequireSymbol: pp.RequireSymbol,
			Blacklist:     blacklist,
		},
	}, st, tok, notifier, log.Named("account"))

	codes := validationcode.New[httpx.Payload](validationcode.Config{
		CodeLength:      cfg.ValidationCode.Length,
		Alphabet:        cfg.ValidationCode.Alphabet,
		DefaultValidity: cfg.ValidationCode.DefaultValidity,
		SealKey:         []byte(cfg.ValidationCode.SealKey),
	}, validationcode.Deps{Hasher: hasher, Logger: log.Named("validationcode")})

	handler := httpx.NewRouter(httpx.Deps{
		Accounts:        acc,
		Tokens:          tok,
		Codes:           codes,
		Notifier:        notifier,
		Health:          st,
		Gatherer:        prometheus.DefaultGatherer,
		Logger:          log.Named("http"),
		DebugEchoCodes:  cfg.Email.DebugEchoCodes && !cfg.IsProd(),
		MaxCodeValidity: cfg.ValidationCode.MaxValidity,
	})

	return &Container{
		Store:    st,
		Tokens:   tok,
		Accounts: acc,
		Codes:    codes,
		Notifier: notifier,
		Sweeper:  tokens.NewSweeper(tok, cfg.Tokens.SweepInterval, log.Named("sweeper")),
		Handler:  handler,
	}, nil
}

// Close libera el pool.
func (c *Container) Close() error { return c.Store.Close() }
