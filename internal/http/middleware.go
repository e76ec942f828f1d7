package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/dropDatabas3/hellojohn-tokens/internal/metrics"
	"github.com/dropDatabas3/hellojohn-tokens/internal/observability/logger"
)

// ─────────────── Request ID ───────────────

// WithRequestID expone el id de chi (middleware.RequestID) en X-Request-ID y
// deja en el contexto un logger con ese id.
func WithRequestID(base *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rid := middleware.GetReqID(r.Context())
			w.Header().Set("X-Request-ID", rid)
			ctx := logger.ToContext(r.Context(), base.With(logger.RequestID(rid)))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ─────────────── Recover de pánicos ───────────────

func WithRecover(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				logger.From(r.Context()).Error("panic recovered", zap.Any("panic", rec), zap.Stack("stack"))
				WriteError(w, http.StatusInternalServerError, "server_error", "")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// ─────────────── Security Headers ───────────────

// WithSecurityHeaders inyecta cabeceras de defensa por defecto. Las respuestas
// pueden llevar tokens, así que tampoco se cachean.
func WithSecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Referrer-Policy", "no-referrer")
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
		h.Set("Cache-Control", "no-store")
		next.ServeHTTP(w, r)
	})
}

// ─────────────── Logging + métricas ───────────────

// WithAccessLog loguea cada request y alimenta http_requests_total con el
// patrón de ruta de chi (no el path, para no explotar cardinalidad).
func WithAccessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		dur := time.Since(start)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		route := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		metrics.HTTPObserved(r.Method, route, status, dur)

		if route == "/healthz" || route == "/metrics" {
			return
		}
		logger.From(r.Context()).Info("http",
			logger.Method(r.Method),
			logger.Path(route),
			logger.Status(status),
			zap.Int("bytes", ww.BytesWritten()),
			logger.Duration(dur),
		)
	})
}
