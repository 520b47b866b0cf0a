// Package notify sends the transactional emails of the account flows:
// email verification after signup and password reset.
package notify

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"log/slog"
	"net/url"
	texttemplate "text/template"

	"github.com/sakif/unify/internal/model"
)

// Message is one outbound email.
type Message struct {
	To      string
	Subject string
	Text    string
	HTML    string
}

// Sender delivers a Message.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// Notifier is what the services call.
type Notifier interface {
	SendSignupEmail(ctx context.Context, user *model.User, verifyToken string) error
	SendPasswordReset(ctx context.Context, user *model.User, resetToken string) error
}

// Mailer renders account emails and hands them to a Sender.
type Mailer struct {
	sender  Sender
	baseURL string
	logger  *slog.Logger
}

var _ Notifier = (*Mailer)(nil)

// NewMailer creates a Mailer. baseURL is the public URL of the web client,
// e.g. "https://unify.example.com"; links in emails point there.
func NewMailer(sender Sender, baseURL string, logger *slog.Logger) *Mailer {
	return &Mailer{sender: sender, baseURL: baseURL, logger: logger}
}

type emailData struct {
	Name string
	Link string
}

var (
	signupText = texttemplate.Must(texttemplate.New("signup").Parse(
		"Hi {{.Name}},\n\nWelcome to Unify! Please confirm your email address:\n\n{{.Link}}\n"))
	signupHTML = template.Must(template.New("signup").Parse(
		`<p>Hi {{.Name}},</p><p>Welcome to Unify! Please <a href="{{.Link}}">confirm your email address</a>.</p>`))

	resetText = texttemplate.Must(texttemplate.New("reset").Parse(
		"Hi {{.Name}},\n\nSomeone asked to reset your Unify password. If it was you, open:\n\n{{.Link}}\n\nOtherwise you can ignore this email.\n"))
	resetHTML = template.Must(template.New("reset").Parse(
		`<p>Hi {{.Name}},</p><p>Someone asked to reset your Unify password. If it was you, <a href="{{.Link}}">choose a new password</a>.</p><p>Otherwise you can ignore this email.</p>`))
)

// SendSignupEmail sends the verification link to a new user.
func (m *Mailer) SendSignupEmail(ctx context.Context, user *model.User, verifyToken string) error {
	return m.send(ctx, user, "Welcome to Unify", "/verify", verifyToken, signupText, signupHTML)
}

// SendPasswordReset sends the password reset link.
func (m *Mailer) SendPasswordReset(ctx context.Context, user *model.User, resetToken string) error {
	return m.send(ctx, user, "Reset your Unify password", "/reset", resetToken, resetText, resetHTML)
}

func (m *Mailer) send(ctx context.Context, user *model.User, subject, path, token string, text *texttemplate.Template, html *template.Template) error {
	if user.Email == "" {
		return fmt.Errorf("notify: user %s has no email", user.ID)
	}

	data := emailData{
		Name: user.Name,
		Link: m.baseURL + path + "?" + url.Values{"token": {token}}.Encode(),
	}

	var textBuf, htmlBuf bytes.Buffer
	if err := text.Execute(&textBuf, data); err != nil {
		return fmt.Errorf("notify: rendering %s text: %w", text.Name(), err)
	}
	if err := html.Execute(&htmlBuf, data); err != nil {
		return fmt.Errorf("notify: rendering %s html: %w", html.Name(), err)
	}

	msg := Message{To: user.Email, Subject: subject, Text: textBuf.String(), HTML: htmlBuf.String()}
	if err := m.sender.Send(ctx, msg); err != nil {
		return fmt.Errorf("notify: sending %s to user %s: %w", text.Name(), user.ID, err)
	}

	m.logger.Info("email sent",
		slog.String("kind", text.Name()),
		slog.String("userID", user.ID),
	)
	return nil
}
