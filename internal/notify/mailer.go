// Package notify alerts company owners about detected anomalies. Mail is a
// best-effort side channel: every failure is logged and swallowed, and
// delivery runs on a worker pool so the anomaly consumer never waits on
// mail I/O.
package notify

import (
	"fmt"
	"log/slog"
	"net/smtp"
	"strings"
	"time"
)

// Mailer hands a rendered message to the external relay.
type Mailer interface {
	Send(to, subject, htmlBody string) error
}

// SMTPMailer talks to a plain SMTP relay with AUTH.
type SMTPMailer struct {
	host string
	port int
	user string
	pass string
	from string
}

// NewSMTPMailer configures the relay client. No connection is made until
// the first Send.
func NewSMTPMailer(host string, port int, user, pass, from string) *SMTPMailer {
	return &SMTPMailer{host: host, port: port, user: user, pass: pass, from: from}
}

func (m *SMTPMailer) Send(to, subject, htmlBody string) error {
	var msg strings.Builder
	msg.WriteString("From: " + m.from + "\r\n")
	msg.WriteString("To: " + to + "\r\n")
	msg.WriteString("Subject: " + subject + "\r\n")
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n")
	msg.WriteString("Date: " + time.Now().Format(time.RFC1123Z) + "\r\n")
	msg.WriteString("\r\n")
	msg.WriteString(htmlBody)

	addr := fmt.Sprintf("%s:%d", m.host, m.port)
	auth := smtp.PlainAuth("", m.user, m.pass, m.host)
	if err := smtp.SendMail(addr, auth, m.from, []string{to}, []byte(msg.String())); err != nil {
		return fmt.Errorf("smtp send to %s: %w", to, err)
	}
	return nil
}

// NoopMailer is selected when mail is not configured; the app still starts.
type NoopMailer struct{}

func (NoopMailer) Send(to, subject, _ string) error {
	slog.Warn("mail not configured, dropping alert", "to", to, "subject", subject)
	return nil
}
