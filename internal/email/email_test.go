package email

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type sentMail struct {
	to, subject, html, text string
}

type recordingSender struct {
	sent []sentMail
	err  error
}

func (r *recordingSender) Send(to, subject, html, text string) error {
	if r.err != nil {
		return r.err
	}
	r.sent = append(r.sent, sentMail{to, subject, html, text})
	return nil
}

func newTestNotifier(t *testing.T, s Sender) *Notifier {
	t.Helper()
	tpl, err := LoadTemplates("")
	require.NoError(t, err)
	n := NewNotifier(NotifierConfig{BaseURL: "https://app.example.com/"}, s, tpl, zap.NewNop())
	n.now = func() time.Time { return time.Unix(1_700_000_000, 0) }
	return n
}

func TestSendActivationRendersLink(t *testing.T) {
	rec := &recordingSender{}
	n := newTestNotifier(t, rec)

	exp := time.Unix(1_700_000_000, 0).Add(time.Hour)
	require.NoError(t, n.SendActivation(context.Background(), "alice@example.com", "alice", "tok+/=", exp))

	require.Len(t, rec.sent, 1)
	m := rec.sent[0]
	require.Equal(t, "alice@example.com", m.to)
	require.Contains(t, m.text, "https://app.example.com/activate?token=tok%2B%2F%3D")
	require.Contains(t, m.text, "1h")
	require.Contains(t, m.html, "alice")
}

func TestSendPasswordResetAndCode(t *testing.T) {
	rec := &recordingSender{}
	n := newTestNotifier(t, rec)
	exp := time.Unix(1_700_000_000, 0).Add(30 * time.Minute)

	require.NoError(t, n.SendPasswordReset(context.Background(), "bob@example.com", "bob", "abc", exp))
	require.NoError(t, n.SendValidationCode(context.Background(), "bob@example.com", "AB12CD", exp))

	require.Len(t, rec.sent, 2)
	require.Contains(t, rec.sent[0].text, "/reset-password?token=abc")
	require.Contains(t, rec.sent[0].text, "30m")
	require.Contains(t, rec.sent[1].html, "AB12CD")
}

func TestTTLText(t *testing.T) {
	n := newTestNotifier(t, &recordingSender{})
	now := n.now()

	cases := map[time.Duration]string{
		20 * time.Second:              "1m",
		10 * time.Minute:              "10m",
		30 * time.Minute:              "30m",
		time.Hour:                     "1h",
		time.Hour + 30*time.Minute:    "1h30m",
		48 * time.Hour:                "48h",
		50*time.Hour + 10*time.Minute: "50h10m",
	}
	for d, want := range cases {
		require.Equal(t, want, n.ttl(now.Add(d)), d.String())
	}
}

func TestDeliveryErrorWrapped(t *testing.T) {
	boom := errors.New("connection refused")
	n := newTestNotifier(t, &recordingSender{err: boom})

	err := n.SendValidationCode(context.Background(), "x@example.com", "AB12CD", time.Now().Add(time.Minute))
	require.True(t, IsDeliveryError(err))
	require.ErrorIs(t, err, boom)
}

func TestLoadTemplatesOverride(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "validation_code.txt"), []byte("CODE={{.Code}}"), 0o600))

	tpl, err := LoadTemplates(dir)
	require.NoError(t, err)

	_, text, err := tpl.Render(TemplateValidationCode, CodeVars{Code: "XY"})
	require.NoError(t, err)
	require.Equal(t, "CODE=XY", text)

	// html no estaba en dir: usa el embebido
	html, _, err := tpl.Render(TemplateValidationCode, CodeVars{Code: "XY"})
	require.NoError(t, err)
	require.Contains(t, html, "<strong>XY</strong>")

	_, _, err = tpl.Render("nope", nil)
	require.Error(t, err)
}

func TestLogSender(t *testing.T) {
	require.NoError(t, NewLogSender(zap.NewNop()).Send("a@b.com", "s", "<p>h</p>", "t"))
}
