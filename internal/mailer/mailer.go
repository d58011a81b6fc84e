package mailer

import (
	"context"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"strings"

	"github.com/sameboat/backend/config"
	"github.com/sirupsen/logrus"
)

type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}

// New returns an SMTP mailer, or a log-only mailer when no SMTP host is set.
func New(cfg config.SMTPConfig, log *logrus.Entry) Mailer {
	if cfg.Host == "" {
		return &LogMailer{Logger: log}
	}
	return &SMTPMailer{cfg: cfg}
}

type SMTPMailer struct {
	cfg config.SMTPConfig
}

func (m *SMTPMailer) Send(ctx context.Context, to, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	addr := net.JoinHostPort(m.cfg.Host, strconv.Itoa(m.cfg.Port))

	var a smtp.Auth
	if m.cfg.Username != "" {
		a = smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
	}
	return smtp.SendMail(addr, a, m.cfg.From, []string{to}, Message(m.cfg.From, to, subject, body))
}

// Message renders a plain-text RFC 5322 message.
func Message(from, to, subject, body string) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: %s\r\n", strings.ReplaceAll(subject, "\n", " "))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=\"utf-8\"\r\n\r\n")
	b.WriteString(body)
	return []byte(b.String())
}

// LogMailer writes mail to the log instead of sending it.
type LogMailer struct {
	Logger *logrus.Entry
}

func (m *LogMailer) Send(_ context.Context, to, subject, body string) error {
	if m.Logger != nil {
		m.Logger.WithFields(logrus.Fields{"to": to, "subject": subject}).Info(body)
	}
	return nil
}
