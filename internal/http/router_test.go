package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/dropDatabas3/hellojohn-tokens/internal/account"
	"github.com/dropDatabas3/hellojohn-tokens/internal/domain/repository"
	"github.com/dropDatabas3/hellojohn-tokens/internal/security/password"
	"github.com/dropDatabas3/hellojohn-tokens/internal/security/token"
	"github.com/dropDatabas3/hellojohn-tokens/internal/store/storetest"
	"github.com/dropDatabas3/hellojohn-tokens/internal/tokens"
	"github.com/dropDatabas3/hellojohn-tokens/internal/validationcode"
)

// outbox captura lo que se hubiera mandado por email.
type outbox struct {
	mu     sync.Mutex
	tokens map[string]string // username -> último token
	codes  map[string]string // recipient -> último código
}

func newOutbox() *outbox {
	return &outbox{tokens: map[string]string{}, codes: map[string]string{}}
}

func (o *outbox) SendActivation(_ context.Context, _, username, tok string, _ time.Time) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.tokens[username] = tok
	return nil
}

func (o *outbox) SendPasswordReset(ctx context.Context, to, username, tok string, exp time.Time) error {
	return o.SendActivation(ctx, to, username, tok, exp)
}

func (o *outbox) SendValidationCode(_ context.Context, to, code string, _ time.Time) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.codes[to] = code
	return nil
}

func (o *outbox) token(username string) string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.tokens[username]
}

type testAPI struct {
	srv    *httptest.Server
	outbox *outbox
	tokens *tokens.Service
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	m := storetest.NewManager(t)
	hasher := token.NewHasher([]byte("0123456789abcdef"))
	tok := tokens.NewService(tokens.Config{}, tokens.Deps{Repo: m.Tokens(), Hasher: hasher, Logger: zap.NewNop()})
	box := newOutbox()
	acc := account.NewService(account.Config{
		PasswordParams: password.Params{Memory: 1024, Time: 1, Parallelism: 1, KeyLen: 32},
		Policy:         password.Policy{MinLength: 8},
	}, m, tok, box, zap.NewNop())
	codes := validationcode.New[Payload](validationcode.Config{SealKey: []byte("seal")}, validationcode.Deps{
		Hasher: hasher, Logger: zap.NewNop(),
	})

	h := NewRouter(Deps{
		Accounts: acc,
		Tokens:   tok,
		Codes:    codes,
		Notifier: box,
		Health:   m,
		Gatherer: prometheus.NewRegistry(),
		Logger:   zap.NewNop(),
	})
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return &testAPI{srv: srv, outbox: box, tokens: tok}
}

func (a *testAPI) post(t *testing.T, path string, body any) (*http.Response, map[string]any) {
	t.Helper()
	b, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(a.srv.URL+path, "application/json", bytes.NewReader(b))
	require.NoError(t, err)
	return resp, decode(t, resp)
}

func (a *testAPI) get(t *testing.T, path string) (*http.Response, map[string]any) {
	t.Helper()
	resp, err := http.Get(a.srv.URL + path)
	require.NoError(t, err)
	return resp, decode(t, resp)
}

func decode(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNoContent {
		return nil
	}
	var out map[string]any
	if strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	}
	return out
}

func TestHealthz(t *testing.T) {
	api := newTestAPI(t)
	resp, body := api.get(t, "/healthz")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "ok", body["status"])
	require.Equal(t, "sqlite", body["backend"])
	require.NotEmpty(t, resp.Header.Get("X-Request-ID"))
}

func TestAccountActivationFlow(t *testing.T) {
	api := newTestAPI(t)

	resp, body := api.post(t, "/v1/accounts", map[string]string{
		"username": "alice", "email": "alice@example.com", "password": "s3cret-pass",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	require.Equal(t, false, body["active"])
	require.Equal(t, true, body["activation_email_sent"])

	tok := api.outbox.token("alice")
	require.NotEmpty(t, tok)

	// lookup del token vigente
	resp, body = api.get(t, "/v1/tokens/"+tok)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, tok, body["token"])
	require.Equal(t, string(repository.TokenTypeAccountActivation), body["token_type"])
	require.NotZero(t, body["expiration_epoch_seconds"])

	resp, _ = api.post(t, "/v1/accounts/activate", map[string]string{"token": tok})
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	// segundo uso: respuesta uniforme
	resp, body = api.post(t, "/v1/accounts/activate", map[string]string{"token": tok})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.Equal(t, CodeInvalidOrExpired, body["error"])

	resp, body = api.get(t, "/v1/tokens/"+tok)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	require.Equal(t, CodeInvalidOrExpired, body["error"])

	resp, body = api.post(t, "/v1/accounts/login", map[string]string{"username": "alice", "password": "s3cret-pass"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, true, body["active"])
}

func TestRegisterErrors(t *testing.T) {
	api := newTestAPI(t)

	resp, body := api.post(t, "/v1/accounts", map[string]string{"username": "bob", "email": "bob@example.com", "password": "short"})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.Equal(t, "weak_password", body["error"])

	resp, _ = api.post(t, "/v1/accounts", map[string]string{"username": "bob", "email": "bob@example.com", "password": "long-enough"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, body = api.post(t, "/v1/accounts", map[string]string{"username": "bob", "email": "b2@example.com", "password": "long-enough"})
	require.Equal(t, http.StatusConflict, resp.StatusCode)
	require.Equal(t, "username_taken", body["error"])

	r, err := http.Post(api.srv.URL+"/v1/accounts", "text/plain", strings.NewReader("x"))
	require.NoError(t, err)
	r.Body.Close()
	require.Equal(t, http.StatusUnsupportedMediaType, r.StatusCode)
}

func TestPasswordResetFlow(t *testing.T) {
	api := newTestAPI(t)

	resp, _ := api.post(t, "/v1/accounts", map[string]string{"username": "alice", "email": "alice@example.com", "password": "old-password"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp, _ = api.post(t, "/v1/accounts/activate", map[string]string{"token": api.outbox.token("alice")})
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	// usuario inexistente: misma respuesta
	resp, _ = api.post(t, "/v1/password/forgot", map[string]string{"username": "nobody"})
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, _ = api.post(t, "/v1/password/forgot", map[string]string{"username": "alice"})
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	reset := api.outbox.token("alice")

	resp, _ = api.post(t, "/v1/password/reset", map[string]string{"token": reset, "password": "new-password"})
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, body := api.post(t, "/v1/password/reset", map[string]string{"token": reset, "password": "another-pass"})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.Equal(t, CodeInvalidOrExpired, body["error"])

	resp, _ = api.post(t, "/v1/accounts/login", map[string]string{"username": "alice", "password": "old-password"})
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp, _ = api.post(t, "/v1/accounts/login", map[string]string{"username": "alice", "password": "new-password"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestValidationCodeFlow(t *testing.T) {
	api := newTestAPI(t)

	resp, body := api.post(t, "/v1/validation-codes", map[string]any{
		"to_be_validated": map[string]any{"email": "a@b.com"},
		"recipient":       "a@b.com",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	require.NotEmpty(t, body["token_hash"])
	require.NotEmpty(t, body["sealed"])
	require.NotZero(t, body["expiration_ts_seconds"])
	require.Empty(t, resp.Header.Get("X-Debug-Code"))

	code := api.outbox.codes["a@b.com"]
	require.Len(t, code, validationcode.DefaultCodeLength)

	// envelope en claro
	verify := map[string]any{
		"to_be_validated":       body["to_be_validated"],
		"created_ts_seconds":    body["created_ts_seconds"],
		"expiration_ts_seconds": body["expiration_ts_seconds"],
		"token_hash":            body["token_hash"],
		"code":                  code,
	}
	resp, out := api.post(t, "/v1/validation-codes/verify", verify)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, true, out["code_valid"])
	require.Equal(t, "a@b.com", out["to_be_validated"].(map[string]any)["email"])

	// idempotente
	resp, _ = api.post(t, "/v1/validation-codes/verify", verify)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// envelope sellado
	resp, _ = api.post(t, "/v1/validation-codes/verify", map[string]any{"sealed": body["sealed"], "code": code})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	verify["code"] = "WRONG1"
	resp, out = api.post(t, "/v1/validation-codes/verify", verify)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.Equal(t, CodeInvalidOrExpired, out["error"])

	resp, out = api.post(t, "/v1/validation-codes/verify", map[string]any{"sealed": "garbage", "code": code})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.Equal(t, CodeInvalidOrExpired, out["error"])
}

func TestValidationCodeRequiresRecipient(t *testing.T) {
	api := newTestAPI(t)
	resp, body := api.post(t, "/v1/validation-codes", map[string]any{"to_be_validated": map[string]any{"x": 1}})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.Equal(t, "invalid_request", body["error"])
}

func TestValidationCodeValidityBounds(t *testing.T) {
	api := newTestAPI(t)

	for _, secs := range []int64{10_000_000_000, 24*3600 + 1, -5} {
		resp, body := api.post(t, "/v1/validation-codes", map[string]any{
			"to_be_validated":  map[string]any{"x": 1},
			"recipient":        "a@b.com",
			"validity_seconds": secs,
		})
		require.Equal(t, http.StatusBadRequest, resp.StatusCode, secs)
		require.Equal(t, "invalid_request", body["error"], secs)
	}

	resp, body := api.post(t, "/v1/validation-codes", map[string]any{
		"to_be_validated":  map[string]any{"x": 1},
		"recipient":        "a@b.com",
		"validity_seconds": 24 * 3600,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	require.Equal(t, body["created_ts_seconds"].(float64)+24*3600, body["expiration_ts_seconds"])
}

func TestUnknownRoute(t *testing.T) {
	api := newTestAPI(t)
	resp, body := api.get(t, "/v1/nope")
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	require.Equal(t, "not_found", body["error"])
}

func TestMetricsEndpoint(t *testing.T) {
	api := newTestAPI(t)
	resp, err := http.Get(api.srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}
