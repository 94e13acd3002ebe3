package notify

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/citylibrary/libraryops-backend/pkg/config"
	pkgerrors "github.com/citylibrary/libraryops-backend/pkg/errors"
	"github.com/citylibrary/libraryops-backend/pkg/logger"
)

// Message is one outbound email.
type Message struct {
	To      string
	Subject string
	Body    string
}

// Mailer delivers messages. Implementations must be safe for concurrent use.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
	// Simulated reports whether sends are logged rather than delivered.
	Simulated() bool
}

// NewMailer returns an SMTP mailer when the config carries a host and a
// log-backed simulation otherwise.
func NewMailer(cfg config.MailConfig, logg *logger.Logger) Mailer {
	if cfg.Configured() {
		return &SMTPMailer{cfg: cfg}
	}
	return &LogMailer{logg: logg}
}

// SMTPMailer delivers through a plain SMTP relay.
type SMTPMailer struct {
	cfg config.MailConfig
}

func (m *SMTPMailer) Send(_ context.Context, msg Message) error {
	if strings.TrimSpace(msg.To) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "recipient required")
	}
	addr := fmt.Sprintf("%s:%d", m.cfg.SMTPHost, m.cfg.SMTPPort)
	var auth smtp.Auth
	if m.cfg.Username != "" {
		auth = smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.SMTPHost)
	}
	payload := buildPayload(m.cfg.From, msg)
	if err := smtp.SendMail(addr, auth, m.cfg.From, []string{msg.To}, payload); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "smtp send")
	}
	return nil
}

func (m *SMTPMailer) Simulated() bool { return false }

// LogMailer writes the message to the structured log instead of sending it.
type LogMailer struct {
	logg *logger.Logger
}

func (m *LogMailer) Send(ctx context.Context, msg Message) error {
	if strings.TrimSpace(msg.To) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "recipient required")
	}
	if m.logg != nil {
		lctx := m.logg.WithFields(ctx, map[string]any{
			"to":      msg.To,
			"subject": msg.Subject,
		})
		m.logg.Info(lctx, "simulated email send")
	}
	return nil
}

func (m *LogMailer) Simulated() bool { return true }

func buildPayload(from string, msg Message) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", msg.To)
	fmt.Fprintf(&b, "Subject: %s\r\n", msg.Subject)
	b.WriteString("MIME-Version: 1.0\r\nContent-Type: text/plain; charset=\"UTF-8\"\r\n\r\n")
	b.WriteString(msg.Body)
	return []byte(b.String())
}
