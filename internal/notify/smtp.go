package notify

import (
	"context"
	"crypto/tls"
	"fmt"

	"github.com/go-mail/mail"
)

// TLS modes for SMTPConfig.TLSMode.
const (
	TLSAuto = "auto" // STARTTLS when the server offers it
	TLSSSL  = "ssl"  // implicit TLS, usually port 465
	TLSNone = "none"
)

// SMTPConfig configures SMTPSender.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	TLSMode  string
}

// SMTPSender delivers mail through an SMTP relay.
type SMTPSender struct {
	cfg SMTPConfig
}

var _ Sender = (*SMTPSender)(nil)

// NewSMTPSender creates an SMTPSender.
func NewSMTPSender(cfg SMTPConfig) *SMTPSender {
	if cfg.TLSMode == "" {
		cfg.TLSMode = TLSAuto
	}
	return &SMTPSender{cfg: cfg}
}

// Send dials the relay and delivers msg as multipart/alternative when both
// bodies are present.
func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m := mail.NewMessage()
	m.SetHeader("From", s.cfg.From)
	m.SetHeader("To", msg.To)
	m.SetHeader("Subject", msg.Subject)

	switch {
	case msg.Text != "" && msg.HTML != "":
		m.SetBody("text/plain", msg.Text)
		m.AddAlternative("text/html", msg.HTML)
	case msg.HTML != "":
		m.SetBody("text/html", msg.HTML)
	default:
		m.SetBody("text/plain", msg.Text)
	}

	d := mail.NewDialer(s.cfg.Host, s.cfg.Port, s.cfg.Username, s.cfg.Password)
	d.TLSConfig = &tls.Config{ServerName: s.cfg.Host}
	switch s.cfg.TLSMode {
	case TLSSSL:
		d.SSL = true
	case TLSNone:
		d.StartTLSPolicy = mail.NoStartTLS
	}

	if err := d.DialAndSend(m); err != nil {
		return fmt.Errorf("notify: smtp send: %w", err)
	}
	return nil
}
