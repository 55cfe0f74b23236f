// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package mailer

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"html/template"
	"mime"
	"net"
	"net/smtp"
	"strconv"
	"strings"

	"golang.org/x/text/language"
)

var ErrNotConfigured = errors.New("email not configured")

type Config struct {
	Host     string
	Port     int
	User     string
	Password string
}

// Sender delivers a finished message.
type Sender interface {
	Send(ctx context.Context, from string, to []string, msg []byte) error
}

type message struct {
	subject string
	body    *template.Template
}

// Keys are the client language codes the bodies were written for.
var messages = map[string]message{
	"en": {"Project Taiyo - Email Verification", template.Must(template.New("en").Parse(
		`<html><body><p>Your verification code is:</p><h2>{{.}}</h2><p>The code is valid for 10 minutes. If you did not request it, ignore this email.</p></body></html>`))},
	"zh": {"项目 Taiyo - 邮件验证", template.Must(template.New("zh").Parse(
		`<html><body><p>您的验证码是：</p><h2>{{.}}</h2><p>验证码10分钟内有效。如果不是您本人操作，请忽略此邮件。</p></body></html>`))},
	"tc": {"專案 Taiyo - 郵件驗證", template.Must(template.New("tc").Parse(
		`<html><body><p>您的驗證碼是：</p><h2>{{.}}</h2><p>驗證碼10分鐘內有效。如果不是您本人操作，請忽略此郵件。</p></body></html>`))},
	"jp": {"プロジェクト Taiyo - メール認証", template.Must(template.New("jp").Parse(
		`<html><body><p>認証コード：</p><h2>{{.}}</h2><p>このコードは10分間有効です。心当たりがない場合は、このメールを無視してください。</p></body></html>`))},
}

var (
	supported = []language.Tag{
		language.English,
		language.SimplifiedChinese,
		language.TraditionalChinese,
		language.Japanese,
	}
	supportedKeys = []string{"en", "zh", "tc", "jp"}
	matcher       = language.NewMatcher(supported)
)

// Lang maps an Accept-Language header to a message language, English
// when nothing matches.
func Lang(acceptLanguage string) string {
	tags, _, err := language.ParseAcceptLanguage(acceptLanguage)
	if err != nil || len(tags) == 0 {
		return "en"
	}
	_, idx, conf := matcher.Match(tags...)
	if conf == language.No {
		return "en"
	}
	return supportedKeys[idx]
}

// Compose builds the MIME message carrying code.
func Compose(from, to, lang, code string) ([]byte, error) {
	m, ok := messages[lang]
	if !ok {
		m = messages["en"]
	}

	var body bytes.Buffer
	if err := m.body.Execute(&body, code); err != nil {
		return nil, fmt.Errorf("failed to render email: %w", err)
	}

	msg := strings.Join([]string{
		"From: " + from,
		"To: " + to,
		"Subject: " + mime.QEncoding.Encode("utf-8", m.subject),
		"MIME-Version: 1.0",
		"Content-Type: text/html; charset=utf-8",
		"",
		body.String(),
	}, "\r\n")
	return []byte(msg), nil
}

type Mailer struct {
	from   string
	sender Sender
}

// New returns a mailer that sends through the configured SMTP server.
func New(cfg Config) (*Mailer, error) {
	if cfg.Host == "" || cfg.User == "" {
		return nil, ErrNotConfigured
	}
	return &Mailer{from: cfg.User, sender: &smtpSender{cfg: cfg}}, nil
}

// NewWithSender returns a mailer that hands messages to s.
func NewWithSender(from string, s Sender) *Mailer {
	return &Mailer{from: from, sender: s}
}

// SendCode emails a verification code to addr.
func (m *Mailer) SendCode(ctx context.Context, addr, code, acceptLanguage string) error {
	msg, err := Compose(m.from, addr, Lang(acceptLanguage), code)
	if err != nil {
		return err
	}
	if err := m.sender.Send(ctx, m.from, []string{addr}, msg); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}

type smtpSender struct {
	cfg Config
}

func (s *smtpSender) Send(ctx context.Context, from string, to []string, msg []byte) error {
	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to dial %s: %w", addr, err)
	}
	if s.cfg.Port != 25 && s.cfg.Port != 80 {
		conn = tls.Client(conn, &tls.Config{ServerName: s.cfg.Host})
	}
	if deadline, ok := ctx.Deadline(); ok {
		conn.SetDeadline(deadline)
	}

	c, err := smtp.NewClient(conn, s.cfg.Host)
	if err != nil {
		conn.Close()
		return fmt.Errorf("failed to start smtp session: %w", err)
	}
	defer c.Close()

	if ok, _ := c.Extension("AUTH"); ok {
		if err := c.Auth(smtp.PlainAuth("", s.cfg.User, s.cfg.Password, s.cfg.Host)); err != nil {
			return fmt.Errorf("failed to authenticate: %w", err)
		}
	}
	if err := c.Mail(from); err != nil {
		return err
	}
	for _, rcpt := range to {
		if err := c.Rcpt(rcpt); err != nil {
			return err
		}
	}
	w, err := c.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(msg); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	return c.Quit()
}
