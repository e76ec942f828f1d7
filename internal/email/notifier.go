package email

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/dropDatabas3/hellojohn-tokens/internal/observability/logger"
)

// NotifierConfig arma los links que van en los emails.
type NotifierConfig struct {
	BaseURL      string // ej: https://app.example.com
	ActivatePath string // default /activate
	ResetPath    string // default /reset-password
}

// Notifier renderiza y envía los emails del motor de tokens.
type Notifier struct {
	cfg    NotifierConfig
	sender Sender
	tpl    *Templates
	log    *zap.Logger
	now    func() time.Time
}

func NewNotifier(cfg NotifierConfig, sender Sender, tpl *Templates, log *zap.Logger) *Notifier {
	if cfg.ActivatePath == "" {
		cfg.ActivatePath = "/activate"
	}
	if cfg.ResetPath == "" {
		cfg.ResetPath = "/reset-password"
	}
	if log == nil {
		log = logger.Named("notifier")
	}
	return &Notifier{cfg: cfg, sender: sender, tpl: tpl, log: log, now: time.Now}
}

// SendActivation envía el link de activación de cuenta.
func (n *Notifier) SendActivation(ctx context.Context, to, username, token string, expireAt time.Time) error {
	return n.sendLink(ctx, TemplateActivation, "Activá tu cuenta", n.cfg.ActivatePath, to, username, token, expireAt)
}

// SendPasswordReset envía el link de reset de contraseña.
func (n *Notifier) SendPasswordReset(ctx context.Context, to, username, token string, expireAt time.Time) error {
	return n.sendLink(ctx, TemplateReset, "Restablecé tu contraseña", n.cfg.ResetPath, to, username, token, expireAt)
}

// SendValidationCode envía un código corto.
func (n *Notifier) SendValidationCode(ctx context.Context, to, code string, expireAt time.Time) error {
	html, text, err := n.tpl.Render(TemplateValidationCode, CodeVars{Code: code, TTL: n.ttl(expireAt)})
	if err != nil {
		return err
	}
	return n.send(ctx, to, "Tu código de verificación", html, text)
}

func (n *Notifier) sendLink(ctx context.Context, name, subject, path, to, username, token string, expireAt time.Time) error {
	html, text, err := n.tpl.Render(name, LinkVars{
		Username: username,
		Link:     n.link(path, token),
		TTL:      n.ttl(expireAt),
	})
	if err != nil {
		return err
	}
	return n.send(ctx, to, subject, html, text)
}

func (n *Notifier) send(ctx context.Context, to, subject, html, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := n.sender.Send(to, subject, html, text); err != nil {
		n.log.Warn("email delivery failed", logger.Recipient(to), logger.Err(err))
		if IsDeliveryError(err) {
			return err
		}
		return &DeliveryError{To: to, Err: err}
	}
	return nil
}

func (n *Notifier) link(path, token string) string {
	base := strings.TrimRight(n.cfg.BaseURL, "/")
	return fmt.Sprintf("%s%s?token=%s", base, path, url.QueryEscape(token))
}

func (n *Notifier) ttl(expireAt time.Time) string {
	d := expireAt.Sub(n.now()).Round(time.Minute)
	if d < time.Minute {
		d = time.Minute
	}
	return formatTTL(d)
}

// formatTTL: 10m, 1h, 1h30m, 48h.
func formatTTL(d time.Duration) string {
	h := int64(d / time.Hour)
	m := int64((d % time.Hour) / time.Minute)
	switch {
	case h == 0:
		return fmt.Sprintf("%dm", m)
	case m == 0:
		return fmt.Sprintf("%dh", h)
	default:
		return fmt.Sprintf("%dh%dm", h, m)
	}
}
