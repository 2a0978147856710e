// Package mailer sends plain-text notification mail.
package mailer

import (
	"context"
	"fmt"

	"github.com/wneessen/go-mail"

	"github.com/iliyamo/pms-auth-service/internal/logging"
)

// Sender delivers one message.
type Sender interface {
	Send(ctx context.Context, to, subject, body string) error
}

// SMTPSender authenticates with PLAIN over STARTTLS. The account user is
// also the From address.
type SMTPSender struct {
	host string
	port int
	user string
	pass string
}

func NewSMTPSender(host string, port int, user, pass string) *SMTPSender {
	return &SMTPSender{host: host, port: port, user: user, pass: pass}
}

func (s *SMTPSender) Send(ctx context.Context, to, subject, body string) error {
	m, err := s.message(to, subject, body)
	if err != nil {
		return err
	}
	c, err := mail.NewClient(s.host,
		mail.WithPort(s.port),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(s.user),
		mail.WithPassword(s.pass),
		mail.WithTLSPolicy(mail.TLSMandatory),
	)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}
	if err := c.DialAndSendWithContext(ctx, m); err != nil {
		return fmt.Errorf("smtp send to %s: %w", to, err)
	}
	return nil
}

func (s *SMTPSender) message(to, subject, body string) (*mail.Msg, error) {
	m := mail.NewMsg()
	if err := m.From(s.user); err != nil {
		return nil, fmt.Errorf("from %q: %w", s.user, err)
	}
	if err := m.To(to); err != nil {
		return nil, fmt.Errorf("to %q: %w", to, err)
	}
	m.Subject(subject)
	m.SetBodyString(mail.TypeTextPlain, body)
	return m, nil
}

// LogSender writes messages to the log instead of sending them. Used when
// no SMTP credentials are configured.
type LogSender struct {
	log logging.Logger
}

func NewLogSender(log logging.Logger) *LogSender { return &LogSender{log: log} }

func (s *LogSender) Send(ctx context.Context, to, subject, body string) error {
	s.log.Info(ctx, "mail not sent (no SMTP credentials)", "to", to, "subject", subject, "body", body)
	return nil
}
