package http

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/dropDatabas3/hellojohn-tokens/internal/email"
	"github.com/dropDatabas3/hellojohn-tokens/internal/observability/logger"
	"github.com/dropDatabas3/hellojohn-tokens/internal/validationcode"
)

// ─── Accounts ───

type accountHandlers struct {
	svc AccountService
}

func (h *accountHandlers) register(w http.ResponseWriter, r *http.Request) {
	var in registerRequest
	if !ReadJSON(w, r, &in) {
		return
	}
	u, err := h.svc.Register(r.Context(), in.Username, in.Email, in.Password)
	sent := err == nil
	if err != nil && !(u != nil && email.IsDeliveryError(err)) {
		writeServiceError(w, r, err)
		return
	}
	if !sent {
		// el usuario quedó creado; el cliente puede pedir reenvío
		logger.From(r.Context()).Warn("activation email not sent", logger.Username(u.Username), logger.Err(err))
	}
	WriteJSON(w, http.StatusCreated, registerResponse{
		userResponse:        userResponse{ID: u.ID, Username: u.Username, Email: u.Email, Active: u.Active},
		ActivationEmailSent: sent,
	})
}

func (h *accountHandlers) activate(w http.ResponseWriter, r *http.Request) {
	var in tokenRequest
	if !ReadJSON(w, r, &in) {
		return
	}
	if err := h.svc.Activate(r.Context(), strings.TrimSpace(in.Token)); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *accountHandlers) login(w http.ResponseWriter, r *http.Request) {
	var in loginRequest
	if !ReadJSON(w, r, &in) {
		return
	}
	u, err := h.svc.Authenticate(r.Context(), in.Username, in.Password)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, userResponse{ID: u.ID, Username: u.Username, Email: u.Email, Active: u.Active})
}

// forgot responde 204 exista o no el usuario.
func (h *accountHandlers) forgot(w http.ResponseWriter, r *http.Request) {
	var in forgotRequest
	if !ReadJSON(w, r, &in) {
		return
	}
	if err := h.svc.RequestPasswordReset(r.Context(), in.Username); err != nil {
		if !email.IsDeliveryError(err) {
			writeServiceError(w, r, err)
			return
		}
		logger.From(r.Context()).Warn("reset email not sent", logger.Err(err))
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *accountHandlers) reset(w http.ResponseWriter, r *http.Request) {
	var in resetRequest
	if !ReadJSON(w, r, &in) {
		return
	}
	if err := h.svc.ResetPassword(r.Context(), strings.TrimSpace(in.Token), in.Password); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ─── Tokens ───

// lookupToken muestra un token vigente. Vencido o inexistente: 404 uniforme.
func lookupToken(tokens TokenLookup) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		t, err := tokens.FetchValid(r.Context(), chi.URLParam(r, "token"))
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		if t == nil {
			writeInvalidOrExpired(w, http.StatusNotFound)
			return
		}
		WriteJSON(w, http.StatusOK, tokenResponse{
			Token:                  t.Token,
			TokenType:              string(t.Type),
			ExpirationEpochSeconds: t.ExpireAtEpoch,
		})
	}
}

// ─── Validation codes ───

type codeHandlers struct {
	svc      *validationcode.Service[Payload]
	notifier    CodeNotifier
	echo        bool
	maxValidity time.Duration
}

func (h *codeHandlers) generate(w http.ResponseWriter, r *http.Request) {
	var in generateCodeRequest
	if !ReadJSON(w, r, &in) {
		return
	}
	if in.ToBeValidated == nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", "to_be_validated required")
		return
	}
	if in.ValiditySeconds < 0 {
		WriteError(w, http.StatusBadRequest, "invalid_request", "validity_seconds must be positive")
		return
	}
	// comparar en segundos antes de multiplicar: evita overflow de Duration
	if in.ValiditySeconds > int64(h.maxValidity/time.Second) {
		WriteError(w, http.StatusBadRequest, "invalid_request", fmt.Sprintf("validity_seconds must be <= %d", int64(h.maxValidity/time.Second)))
		return
	}
	if in.Recipient == "" && !h.echo {
		WriteError(w, http.StatusBadRequest, "invalid_request", "recipient required")
		return
	}

	code, env, err := h.svc.Generate(in.ToBeValidated, time.Duration(in.ValiditySeconds)*time.Second)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	if in.Recipient != "" {
		err := h.notifier.SendValidationCode(r.Context(), in.Recipient, code, time.Unix(env.ExpirationTsSeconds, 0))
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
	} else {
		w.Header().Set("X-Debug-Code", code)
	}

	out := envelopeResponse{Envelope: env}
	if sealed, err := h.svc.Seal(env); err == nil {
		out.Sealed = sealed
	}
	WriteJSON(w, http.StatusCreated, out)
}

func (h *codeHandlers) verify(w http.ResponseWriter, r *http.Request) {
	var in verifyCodeRequest
	if !ReadJSON(w, r, &in) {
		return
	}

	env := in.Envelope
	if in.Sealed != "" {
		opened, err := h.svc.Open(in.Sealed)
		if err != nil {
			writeInvalidOrExpired(w, http.StatusBadRequest)
			return
		}
		env = opened
	}

	res := h.svc.Verify(env, in.Code)
	if !res.CodeValid {
		writeInvalidOrExpired(w, http.StatusBadRequest)
		return
	}
	WriteJSON(w, http.StatusOK, verifyCodeResponse{ToBeValidated: res.Payload, CodeValid: true})
}
