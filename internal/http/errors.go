package http

import (
	"errors"
	"net/http"

	"github.com/dropDatabas3/hellojohn-tokens/internal/account"
	"github.com/dropDatabas3/hellojohn-tokens/internal/email"
	"github.com/dropDatabas3/hellojohn-tokens/internal/observability/logger"
	"github.com/dropDatabas3/hellojohn-tokens/internal/security/password"
	"github.com/dropDatabas3/hellojohn-tokens/internal/tokens"
)

// CodeInvalidOrExpired es la única respuesta para tokens usados, vencidos o
// falsos y para códigos inválidos o vencidos: no se filtra cuál fue el caso.
const CodeInvalidOrExpired = "invalid_or_expired"

func writeInvalidOrExpired(w http.ResponseWriter, status int) {
	WriteError(w, status, CodeInvalidOrExpired, "")
}

// writeServiceError traduce los errores de los servicios a HTTP.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var pe *password.PolicyError
	switch {
	case errors.Is(err, tokens.ErrAlreadyUsedOrExpired):
		writeInvalidOrExpired(w, http.StatusBadRequest)
	case errors.As(err, &pe):
		writeAPIError(w, http.StatusBadRequest, apiError{Error: "weak_password", Reasons: pe.Reasons})
	case errors.Is(err, account.ErrInvalidInput):
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
	case errors.Is(err, account.ErrUsernameTaken):
		WriteError(w, http.StatusConflict, "username_taken", "")
	case errors.Is(err, account.ErrInvalidCredentials):
		WriteError(w, http.StatusUnauthorized, "invalid_credentials", "")
	case email.IsDeliveryError(err):
		logger.From(r.Context()).Warn("delivery error", logger.Err(err))
		WriteError(w, http.StatusBadGateway, "email_delivery_failed", "")
	default:
		logger.From(r.Context()).Error("request failed", logger.Err(err))
		WriteError(w, http.StatusInternalServerError, "server_error", "")
	}
}
