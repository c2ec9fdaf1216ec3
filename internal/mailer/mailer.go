package mailer

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"net/url"
	"strings"
)

//go:embed templates/*.html
var templateFS embed.FS

var templates = template.Must(template.ParseFS(templateFS, "templates/*.html"))

const (
	subjectVerify = "Verify Your Email Address - TestPaper.mu"
	subjectReset  = "Reset Your Password - TestPaper.mu"
)

// Mailer renders and sends the account emails.
type Mailer struct {
	sender      Sender
	from        string
	redirectURL string
}

// New returns a Mailer. redirectURL is the front-end origin the links point to.
func New(s Sender, from, redirectURL string) *Mailer {
	return &Mailer{sender: s, from: from, redirectURL: strings.TrimRight(redirectURL, "/")}
}

type linkData struct {
	Username string
	Link     string
	Minutes  int
}

// VerificationLink is the front-end URL a verification token is delivered through.
func (m *Mailer) VerificationLink(token string) string {
	return m.redirectURL + "/verify-email?token=" + url.QueryEscape(token)
}

// ResetLink is the front-end URL a reset token is delivered through.
func (m *Mailer) ResetLink(token string) string {
	return m.redirectURL + "/forgot-password?token=" + url.QueryEscape(token)
}

// SendVerification emails a verification link to addr.
func (m *Mailer) SendVerification(ctx context.Context, addr, username, token string) error {
	return m.send(ctx, addr, subjectVerify, "verify.html", linkData{Username: username, Link: m.VerificationLink(token), Minutes: 10})
}

// SendPasswordReset emails a reset link to addr.
func (m *Mailer) SendPasswordReset(ctx context.Context, addr, username, token string) error {
	return m.send(ctx, addr, subjectReset, "reset.html", linkData{Username: username, Link: m.ResetLink(token), Minutes: 15})
}

func (m *Mailer) send(ctx context.Context, to, subject, tpl string, data linkData) error {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, tpl, data); err != nil {
		return fmt.Errorf("render %s: %w", tpl, err)
	}
	_, err := m.sender.Send(ctx, Message{From: m.from, To: to, Subject: subject, HTML: buf.String()})
	return err
}
