// Package email delivers account verification links over SMTP.
package email

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"net/smtp"
	"strings"

	"github.com/goliatone/go-errors"

	auth "github.com/carebridge/go-care-auth"
	"github.com/carebridge/go-care-auth/provider/local"
)

// Config holds SMTP settings
type Config struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string
	FromName string
	AppName  string
}

// Configured reports whether enough is set to send mail
func (c Config) Configured() bool {
	return c.Host != "" && c.Port != "" && c.From != ""
}

// SendFunc matches smtp.SendMail
type SendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// Mailer sends verification emails, it implements local.Mailer
type Mailer struct {
	config Config
	auth   smtp.Auth
	send   SendFunc
	logger auth.Logger
}

var _ local.Mailer = (*Mailer)(nil)

// Option configures the mailer
type Option func(*Mailer)

// WithSendFunc replaces smtp.SendMail
func WithSendFunc(fn SendFunc) Option {
	return func(m *Mailer) {
		if fn != nil {
			m.send = fn
		}
	}
}

// WithLogger sets the logger
func WithLogger(logger auth.Logger) Option {
	return func(m *Mailer) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// NewMailer creates an SMTP mailer
func NewMailer(cfg Config, opts ...Option) *Mailer {
	if cfg.AppName == "" {
		cfg.AppName = "CareBridge"
	}

	m := &Mailer{
		config: cfg,
		send:   smtp.SendMail,
		logger: auth.DefaultLogger(),
	}
	if cfg.Username != "" {
		m.auth = smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)
	}

	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}
	return m
}

// SendVerification renders and sends the verification message
func (m *Mailer) SendVerification(ctx context.Context, to, link string) error {
	if !m.config.Configured() {
		return errors.New("email not configured", errors.CategoryOperation)
	}
	if err := ctx.Err(); err != nil {
		return errors.Wrap(err, errors.CategoryOperation, "context cancelled before sending email")
	}

	body, err := render(verificationTemplate, verificationData{
		AppName:         m.config.AppName,
		Email:           to,
		VerificationURL: link,
	})
	if err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "failed to render verification email")
	}

	msg := m.message(to, fmt.Sprintf("Verify your %s account", m.config.AppName), body)
	addr := m.config.Host + ":" + m.config.Port

	if err := m.send(addr, m.auth, m.config.From, []string{to}, msg); err != nil {
		return errors.Wrap(err, errors.CategoryExternal, "failed to send verification email").
			WithMetadata(map[string]any{"to": to})
	}

	m.logger.Debug("verification email sent to %s", to)
	return nil
}

func (m *Mailer) message(to, subject, html string) []byte {
	from := m.config.From
	if m.config.FromName != "" {
		from = fmt.Sprintf("%s <%s>", m.config.FromName, m.config.From)
	}

	var msg bytes.Buffer
	fmt.Fprintf(&msg, "To: %s\r\n", to)
	fmt.Fprintf(&msg, "From: %s\r\n", from)
	fmt.Fprintf(&msg, "Subject: %s\r\n", subject)
	fmt.Fprintf(&msg, "MIME-Version: 1.0\r\n")
	fmt.Fprintf(&msg, "Content-Type: text/html; charset=UTF-8\r\n")
	fmt.Fprintf(&msg, "\r\n")
	msg.WriteString(strings.ReplaceAll(html, "\n", "\r\n"))
	return msg.Bytes()
}

type verificationData struct {
	AppName         string
	Email           string
	VerificationURL string
}

func render(tmpl *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

var verificationTemplate = template.Must(template.New("verify").Parse(`<!DOCTYPE html>
<html>
<body>
<h2>Welcome to {{.AppName}}</h2>
<p>Please confirm {{.Email}} to finish setting up your account.</p>
<p><a href="{{.VerificationURL}}">Verify email address</a></p>
<p>Or paste this link into your browser:<br>{{.VerificationURL}}</p>
<p>If you did not create an account you can ignore this email.</p>
</body>
</html>
`))
