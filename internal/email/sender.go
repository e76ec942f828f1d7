// Package email entrega los tokens y códigos por correo. Los errores de
// entrega se reportan como *DeliveryError, nunca como errores del motor de tokens.
package email

import (
	"crypto/tls"
	"errors"
	"fmt"

	mail "github.com/go-mail/mail"
	"go.uber.org/zap"

	"github.com/dropDatabas3/hellojohn-tokens/internal/observability/logger"
)

// Sender envía un email con contenido HTML y texto plano.
// El destinatario recibe ambas versiones como multipart/alternative.
type Sender interface {
	Send(to string, subject string, htmlBody string, textBody string) error
}

// DeliveryError envuelve cualquier falla del Sender.
type DeliveryError struct {
	To  string
	Err error
}

func (e *DeliveryError) Error() string { return fmt.Sprintf("email delivery to %s: %v", e.To, e.Err) }
func (e *DeliveryError) Unwrap() error { return e.Err }

// IsDeliveryError reporta si err es (o envuelve) un *DeliveryError.
func IsDeliveryError(err error) bool {
	var de *DeliveryError
	return errors.As(err, &de)
}

// SMTPConfig contiene la configuración para conectarse a un servidor SMTP.
type SMTPConfig struct {
	Host               string
	Port               int
	From               string
	User               string
	Pass               string
	TLSMode            string // "auto" | "starttls" | "ssl" | "none"
	InsecureSkipVerify bool
}

type SMTPSender struct {
	cfg SMTPConfig
	log *zap.Logger
}

func NewSMTPSender(cfg SMTPConfig, log *zap.Logger) *SMTPSender {
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	if cfg.TLSMode == "" {
		cfg.TLSMode = "auto"
	}
	if log == nil {
		log = logger.Named("smtp")
	}
	return &SMTPSender{cfg: cfg, log: log}
}

func (s *SMTPSender) Send(to, subject, htmlBody, textBody string) error {
	log := s.log.With(logger.Recipient(to), zap.String("host", s.cfg.Host), zap.String("tls_mode", s.cfg.TLSMode))
	log.Debug("smtp_send_try", zap.String("subject", subject))

	m := mail.NewMessage()
	m.SetHeader("From", s.cfg.From)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)

	// Preferimos multipart/alternative (txt + html)
	if textBody != "" {
		m.SetBody("text/plain", textBody)
	}
	if htmlBody != "" {
		if textBody == "" {
			m.SetBody("text/html", htmlBody)
		} else {
			m.AddAlternative("text/html", htmlBody)
		}
	}

	d := mail.NewDialer(s.cfg.Host, s.cfg.Port, s.cfg.User, s.cfg.Pass)
	d.TLSConfig = &tls.Config{
		ServerName:         s.cfg.Host,
		InsecureSkipVerify: s.cfg.InsecureSkipVerify, // sólo dev
	}

	switch s.cfg.TLSMode {
	case "ssl":
		d.SSL = true
	case "none":
		d.StartTLSPolicy = mail.NoStartTLS
	default:
		// "auto"/"starttls": go-mail negocia STARTTLS si corresponde
	}

	if err := d.DialAndSend(m); err != nil {
		log.Error("smtp_send_err", logger.Err(err))
		return &DeliveryError{To: to, Err: err}
	}
	log.Info("smtp_send_ok")
	return nil
}

// LogSender no envía nada: loguea el mensaje. Se usa cuando no hay SMTP
// configurado (desarrollo).
type LogSender struct {
	log *zap.Logger
}

func NewLogSender(log *zap.Logger) *LogSender {
	if log == nil {
		log = logger.Named("email")
	}
	return &LogSender{log: log}
}

func (s *LogSender) Send(to, subject, _, textBody string) error {
	s.log.Info("email not sent (no SMTP configured)",
		logger.Recipient(to), zap.String("subject", subject), zap.String("text", textBody))
	return nil
}
