package report

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"mime/multipart"
	"net/smtp"
	"net/textproto"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
)

// Mailer delivers a report to a list of recipients.
type Mailer interface {
	Send(ctx context.Context, to []string, subject, body string, attachment []byte, filename string) error
}

// SMTPOptions configures the plain-SMTP mailer.
type SMTPOptions struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// SMTPMailer sends mail through a single SMTP endpoint using AUTH PLAIN
// when credentials are set.
type SMTPMailer struct {
	opts SMTPOptions
}

func NewSMTPMailer(opts SMTPOptions) *SMTPMailer {
	if opts.Port == 0 {
		opts.Port = 587
	}
	return &SMTPMailer{opts: opts}
}

func (m *SMTPMailer) Send(_ context.Context, to []string, subject, body string, attachment []byte, filename string) error {
	if len(to) == 0 {
		return eris.New("mailer: no recipients")
	}
	msg, err := buildMessage(m.opts.From, to, subject, body, attachment, filename)
	if err != nil {
		return err
	}

	addr := fmt.Sprintf("%s:%d", m.opts.Host, m.opts.Port)
	var auth smtp.Auth
	if m.opts.Username != "" {
		auth = smtp.PlainAuth("", m.opts.Username, m.opts.Password, m.opts.Host)
	}
	if err := smtp.SendMail(addr, auth, m.opts.From, to, msg); err != nil {
		return eris.Wrapf(err, "mailer: send via %s", addr)
	}
	return nil
}

// buildMessage assembles a multipart MIME message with a plain-text body
// and one base64-encoded attachment.
func buildMessage(from string, to []string, subject, body string, attachment []byte, filename string) ([]byte, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	fmt.Fprintf(&buf, "From: %s\r\n", from)
	fmt.Fprintf(&buf, "To: %s\r\n", strings.Join(to, ", "))
	fmt.Fprintf(&buf, "Subject: %s\r\n", subject)
	buf.WriteString("MIME-Version: 1.0\r\n")
	fmt.Fprintf(&buf, "Content-Type: multipart/mixed; boundary=%q\r\n\r\n", w.Boundary())

	textHeader := textproto.MIMEHeader{}
	textHeader.Set("Content-Type", "text/plain; charset=utf-8")
	part, err := w.CreatePart(textHeader)
	if err != nil {
		return nil, eris.Wrap(err, "mailer: create text part")
	}
	if _, err := part.Write([]byte(body)); err != nil {
		return nil, eris.Wrap(err, "mailer: write body")
	}

	if len(attachment) > 0 {
		attachHeader := textproto.MIMEHeader{}
		attachHeader.Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		attachHeader.Set("Content-Transfer-Encoding", "base64")
		attachHeader.Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filepath.Base(filename)))
		part, err := w.CreatePart(attachHeader)
		if err != nil {
			return nil, eris.Wrap(err, "mailer: create attachment part")
		}
		enc := base64.NewEncoder(base64.StdEncoding, part)
		if _, err := enc.Write(attachment); err != nil {
			return nil, eris.Wrap(err, "mailer: encode attachment")
		}
		if err := enc.Close(); err != nil {
			return nil, eris.Wrap(err, "mailer: flush attachment")
		}
	}

	if err := w.Close(); err != nil {
		return nil, eris.Wrap(err, "mailer: close message")
	}
	return buf.Bytes(), nil
}
