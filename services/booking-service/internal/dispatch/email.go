package dispatch

import (
	"fmt"
	"net/smtp"
	"strings"
)

type Mailer interface {
	Send(to string, subject string, body string) error
}

// SMTPMailer sends mail through an unauthenticated relay such as Mailpit.
type SMTPMailer struct {
	addr string
	from string
}

func NewSMTPMailer(host string, port string, from string) *SMTPMailer {
	from = strings.TrimSpace(from)
	if from == "" {
		from = "no-reply@slotbook.local"
	}
	return &SMTPMailer{
		addr: fmt.Sprintf("%s:%s", strings.TrimSpace(host), strings.TrimSpace(port)),
		from: from,
	}
}

func (s *SMTPMailer) Send(to string, subject string, body string) error {
	return smtp.SendMail(s.addr, nil, s.from, []string{to}, []byte(buildMessage(s.from, to, subject, body)))
}

func buildMessage(from, to, subject, body string) string {
	return fmt.Sprintf(
		"From: %s\r\nTo: %s\r\nSubject: %s\r\nMIME-Version: 1.0\r\nContent-Type: text/plain; charset=utf-8\r\n\r\n%s\r\n",
		from,
		to,
		subject,
		body,
	)
}

type NoopMailer struct{}

func (NoopMailer) Send(string, string, string) error { return nil }
