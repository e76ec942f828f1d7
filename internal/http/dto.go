package http

import "github.com/dropDatabas3/hellojohn-tokens/internal/validationcode"

// ─── Accounts ───

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type userResponse struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Active   bool   `json:"active"`
}

type registerResponse struct {
	userResponse
	ActivationEmailSent bool `json:"activation_email_sent"`
}

type tokenRequest struct {
	Token string `json:"token"`
}

type forgotRequest struct {
	Username string `json:"username"`
}

type resetRequest struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// ─── Tokens ───

type tokenResponse struct {
	Token                  string `json:"token"`
	TokenType              string `json:"token_type"`
	ExpirationEpochSeconds int64  `json:"expiration_epoch_seconds"`
}

// ─── Validation codes ───

// Payload es el tipo de to_be_validated en la API: cualquier objeto JSON.
type Payload = map[string]any

type generateCodeRequest struct {
	ToBeValidated   Payload `json:"to_be_validated"`
	ValiditySeconds int64   `json:"validity_seconds,omitempty"`
	Recipient       string  `json:"recipient,omitempty"`
}

type envelopeResponse struct {
	validationcode.Envelope[Payload]
	Sealed string `json:"sealed,omitempty"`
}

// verifyCodeRequest acepta el envelope en claro o sellado.
type verifyCodeRequest struct {
	validationcode.Envelope[Payload]
	Sealed string `json:"sealed,omitempty"`
	Code   string `json:"code"`
}

type verifyCodeResponse struct {
	ToBeValidated Payload `json:"to_be_validated"`
	CodeValid     bool    `json:"code_valid"`
}
