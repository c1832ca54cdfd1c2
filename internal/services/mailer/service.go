// -----------------------------------------------------------------------
// Mailer Service - SMTP delivery of written reports
// Markdown reports are rendered to HTML with goldmark and sent alongside
// the source markdown as an attachment
// -----------------------------------------------------------------------

package mailer

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/tls"
	"encoding/base64"
	"errors"
	"fmt"
	"net"
	"net/smtp"
	"path/filepath"
	"strings"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/fundlens/internal/common"
	"github.com/ternarybob/fundlens/internal/interfaces"
	"github.com/ternarybob/fundlens/internal/models"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

// ErrNotConfigured is returned when SMTP settings are incomplete.
var ErrNotConfigured = errors.New("smtp not configured")

// Attachment represents an email attachment
type Attachment struct {
	Filename    string // Filename for the attachment
	ContentType string // MIME type (e.g., "text/markdown", "text/plain")
	Content     []byte // Raw content bytes
}

// sendFunc delivers a built message to one recipient.
type sendFunc func(addr string, auth smtp.Auth, from, to, msg string) error

// Service delivers reports by email using the [mailer] configuration
type Service struct {
	config common.MailerConfig
	md     goldmark.Markdown
	send   sendFunc
	logger arbor.ILogger
}

var _ interfaces.ReportDelivery = (*Service)(nil)

// NewService creates a new mailer service
func NewService(config common.MailerConfig, logger arbor.ILogger) *Service {
	s := &Service{
		config: config,
		md: goldmark.New(
			goldmark.WithExtensions(extension.GFM),
			goldmark.WithRendererOptions(
				html.WithHardWraps(),
				html.WithXHTML(),
			),
		),
		logger: logger,
	}
	s.send = s.sendSMTP
	return s
}

// IsConfigured checks if SMTP is configured with minimum required settings
func (s *Service) IsConfigured() bool {
	c := s.config
	return c.Host != "" && c.Username != "" && c.Password != "" && c.From != "" && len(c.To) > 0
}

// Deliver emails a written report to every configured recipient.
func (s *Service) Deliver(ctx context.Context, result *models.ReportResult, markdown string) error {
	if !s.IsConfigured() {
		return ErrNotConfigured
	}

	htmlBody, err := s.RenderHTML(markdown)
	if err != nil {
		return err
	}

	subject := fmt.Sprintf("%s %s %s", result.FundName, result.Type.Title(), result.Date.Format("2006-01-02"))
	filename := filepath.Base(result.Path)
	if filename == "." || filename == "" {
		filename = fmt.Sprintf("%s_%s_%s.md", result.Date.Format("2006-01-02"), result.FundCode, result.Type)
	}
	attachments := []Attachment{{
		Filename:    filename,
		ContentType: "text/markdown; charset=\"UTF-8\"",
		Content:     []byte(markdown),
	}}

	var errs []error
	for _, to := range s.config.To {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.SendEmailWithAttachments(to, subject, htmlBody, markdown, attachments); err != nil {
			s.logger.Error().Err(err).Str("to", to).Str("fund", result.FundCode).Msg("Failed to send report email")
			errs = append(errs, fmt.Errorf("%s: %w", to, err))
			continue
		}
		s.logger.Info().Str("to", to).Str("fund", result.FundCode).Msg("Report email sent")
	}
	return errors.Join(errs...)
}

// RenderHTML converts a markdown report to an HTML document.
func (s *Service) RenderHTML(markdown string) (string, error) {
	var buf bytes.Buffer
	buf.WriteString("<!DOCTYPE html>\n<html><head><meta charset=\"UTF-8\"></head><body>\n")
	if err := s.md.Convert([]byte(stripFrontMatter(markdown)), &buf); err != nil {
		return "", fmt.Errorf("failed to render markdown: %w", err)
	}
	buf.WriteString("</body></html>\n")
	return buf.String(), nil
}

// stripFrontMatter drops a leading YAML front matter block.
func stripFrontMatter(markdown string) string {
	if !strings.HasPrefix(markdown, "---\n") {
		return markdown
	}
	end := strings.Index(markdown[4:], "\n---\n")
	if end < 0 {
		return markdown
	}
	return strings.TrimLeft(markdown[4+end+5:], "\n")
}

// SendEmailWithAttachments sends an email with HTML/text body and file attachments
func (s *Service) SendEmailWithAttachments(to, subject, htmlBody, textBody string, attachments []Attachment) error {
	if !s.IsConfigured() {
		return ErrNotConfigured
	}

	msg := buildMessage(s.config, to, subject, htmlBody, textBody, attachments)

	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	auth := smtp.PlainAuth("", s.config.Username, s.config.Password, s.config.Host)
	return s.send(addr, auth, s.config.From, to, msg)
}

// buildMessage assembles a multipart/mixed message: a multipart/alternative
// text/HTML body followed by the attachments.
func buildMessage(config common.MailerConfig, to, subject, htmlBody, textBody string, attachments []Attachment) string {
	mixed := generateBoundary()
	alt := generateBoundary()

	var msg strings.Builder
	fmt.Fprintf(&msg, "From: %s <%s>\r\n", config.FromName, config.From)
	fmt.Fprintf(&msg, "To: %s\r\n", to)
	fmt.Fprintf(&msg, "Subject: =?UTF-8?B?%s?=\r\n", base64.StdEncoding.EncodeToString([]byte(subject)))
	msg.WriteString("MIME-Version: 1.0\r\n")
	fmt.Fprintf(&msg, "Content-Type: multipart/mixed; boundary=\"%s\"\r\n\r\n", mixed)

	fmt.Fprintf(&msg, "--%s\r\n", mixed)
	fmt.Fprintf(&msg, "Content-Type: multipart/alternative; boundary=\"%s\"\r\n\r\n", alt)
	if textBody != "" {
		writePart(&msg, alt, `text/plain; charset="UTF-8"`, "", []byte(textBody))
	}
	if htmlBody != "" {
		writePart(&msg, alt, `text/html; charset="UTF-8"`, "", []byte(htmlBody))
	}
	fmt.Fprintf(&msg, "--%s--\r\n", alt)

	for _, att := range attachments {
		contentType := att.ContentType
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		writePart(&msg, mixed, fmt.Sprintf("%s; name=\"%s\"", contentType, att.Filename), att.Filename, att.Content)
	}

	fmt.Fprintf(&msg, "--%s--\r\n", mixed)
	return msg.String()
}

// writePart writes one base64 encoded MIME part. A non-empty filename marks
// it as an attachment.
func writePart(msg *strings.Builder, boundary, contentType, filename string, content []byte) {
	fmt.Fprintf(msg, "--%s\r\n", boundary)
	fmt.Fprintf(msg, "Content-Type: %s\r\n", contentType)
	msg.WriteString("Content-Transfer-Encoding: base64\r\n")
	if filename != "" {
		fmt.Fprintf(msg, "Content-Disposition: attachment; filename=\"%s\"\r\n", filename)
	}
	msg.WriteString("\r\n")
	msg.WriteString(encodeBase64WithLineBreaks(content))
	msg.WriteString("\r\n")
}

// sendSMTP sends over implicit TLS (falling back to STARTTLS) or plain SMTP
// per configuration.
func (s *Service) sendSMTP(addr string, auth smtp.Auth, from, to, msg string) error {
	if !s.config.UseTLS {
		return smtp.SendMail(addr, auth, from, []string{to}, []byte(msg))
	}

	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return fmt.Errorf("invalid SMTP address %s: %w", addr, err)
	}
	tlsConfig := &tls.Config{ServerName: host}

	var client *smtp.Client
	if conn, dialErr := tls.Dial("tcp", addr, tlsConfig); dialErr == nil {
		client, err = smtp.NewClient(conn, host)
		if err != nil {
			conn.Close()
			return fmt.Errorf("failed to create SMTP client: %w", err)
		}
	} else {
		client, err = smtp.Dial(addr)
		if err != nil {
			return fmt.Errorf("failed to connect to SMTP server: %w", err)
		}
		if err := client.StartTLS(tlsConfig); err != nil {
			client.Close()
			return fmt.Errorf("failed to start TLS: %w", err)
		}
	}
	defer client.Close()

	return transmit(client, auth, from, to, msg)
}

// transmit authenticates and sends msg over an established session.
func transmit(client *smtp.Client, auth smtp.Auth, from, to, msg string) error {
	if err := client.Auth(auth); err != nil {
		return fmt.Errorf("SMTP authentication failed: %w", err)
	}
	if err := client.Mail(from); err != nil {
		return fmt.Errorf("failed to set mail from: %w", err)
	}
	if err := client.Rcpt(to); err != nil {
		return fmt.Errorf("failed to set mail recipient: %w", err)
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("failed to start data: %w", err)
	}
	if _, err := w.Write([]byte(msg)); err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to close data writer: %w", err)
	}
	return client.Quit()
}

// generateBoundary creates a random MIME boundary.
func generateBoundary() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "fundlens_boundary_fallback"
	}
	return fmt.Sprintf("fundlens_%x", b)
}

// encodeBase64WithLineBreaks encodes content as base64 wrapped at 76
// characters (RFC 2045).
func encodeBase64WithLineBreaks(content []byte) string {
	encoded := base64.StdEncoding.EncodeToString(content)

	const lineLen = 76
	var out strings.Builder
	for i := 0; i < len(encoded); i += lineLen {
		end := min(i+lineLen, len(encoded))
		out.WriteString(encoded[i:end])
		if end < len(encoded) {
			out.WriteString("\r\n")
		}
	}
	return out.String()
}
