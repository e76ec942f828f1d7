package http

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/dropDatabas3/hellojohn-tokens/internal/domain/repository"
	"github.com/dropDatabas3/hellojohn-tokens/internal/metrics"
	"github.com/dropDatabas3/hellojohn-tokens/internal/observability/logger"
	"github.com/dropDatabas3/hellojohn-tokens/internal/validationcode"
)

// --- Interfaces de integración con el core ---

type AccountService interface {
	Register(ctx context.Context, username, email, password string) (*repository.User, error)
	Activate(ctx context.Context, token string) error
	RequestPasswordReset(ctx context.Context, username string) error
	ResetPassword(ctx context.Context, token, newPassword string) error
	Authenticate(ctx context.Context, username, password string) (*repository.User, error)
}

type TokenLookup interface {
	FetchValid(ctx context.Context, token string) (*repository.Token, error)
}

type CodeNotifier interface {
	SendValidationCode(ctx context.Context, to, code string, expireAt time.Time) error
}

type HealthChecker interface {
	Ping(ctx context.Context) error
	Backend() string
}

// Deps agrupa lo que necesita el router.
type Deps struct {
	Accounts AccountService
	Tokens   TokenLookup
	Codes    *validationcode.Service[Payload]
	Notifier CodeNotifier
	Health   HealthChecker
	Gatherer prometheus.Gatherer
	Logger   *zap.Logger

	// MaxCodeValidity tope de validity_seconds (0 = 24h).
	MaxCodeValidity time.Duration

	// DebugEchoCodes devuelve el código en X-Debug-Code cuando no hay
	// recipient. Forzado a false en prod.
	DebugEchoCodes bool
}

// NewRouter arma el router chi de la API.
func NewRouter(d Deps) http.Handler {
	if d.Logger == nil {
		d.Logger = logger.Named("http")
	}
	if d.Gatherer == nil {
		d.Gatherer = prometheus.DefaultGatherer
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(WithRequestID(d.Logger))
	r.Use(WithAccessLog)
	r.Use(WithRecover)
	r.Use(WithSecurityHeaders)

	r.Get("/healthz", healthz(d.Health))
	r.Method(http.MethodGet, "/metrics", metrics.Handler(d.Gatherer))

	r.Route("/v1", func(r chi.Router) {
		ah := &accountHandlers{svc: d.Accounts}
		r.Post("/accounts", ah.register)
		r.Post("/accounts/activate", ah.activate)
		r.Post("/accounts/login", ah.login)
		r.Post("/password/forgot", ah.forgot)
		r.Post("/password/reset", ah.reset)

		r.Get("/tokens/{token}", lookupToken(d.Tokens))

		maxValidity := d.MaxCodeValidity
		if maxValidity <= 0 {
			maxValidity = 24 * time.Hour
		}
		ch := &codeHandlers{svc: d.Codes, notifier: d.Notifier, echo: d.DebugEchoCodes, maxValidity: maxValidity}
		r.Post("/validation-codes", ch.generate)
		r.Post("/validation-codes/verify", ch.verify)
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		WriteError(w, http.StatusNotFound, "not_found", "")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		WriteError(w, http.StatusMethodNotAllowed, "method_not_allowed", "")
	})
	return r
}

func healthz(h HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := h.Ping(ctx); err != nil {
			logger.From(r.Context()).Warn("health check failed", logger.Err(err))
			WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "backend": h.Backend()})
			return
		}
		WriteJSON(w, http.StatusOK, map[string]string{"status": "ok", "backend": h.Backend()})
	}
}
