package smtp

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/tls"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net"
	"net/smtp"
	"strconv"
	"time"

	"github.com/edusphere-api/internal/config"
)

const smtpTimeout = 30 * time.Second

// Mailer delivers one-time codes by email.
type Mailer interface {
	SendVerificationCode(ctx context.Context, to, code string, ttl time.Duration) error
	SendPasswordResetCode(ctx context.Context, to, code string, ttl time.Duration) error
}

type mailer struct {
	host     string
	port     int
	from     string
	username string
	password string
}

func NewMailer(cfg *config.Config) Mailer {
	port, _ := strconv.Atoi(cfg.SMTPPort) // validated by config.Validate
	return &mailer{
		host:     cfg.SMTPHost,
		port:     port,
		from:     cfg.SMTPFrom,
		username: cfg.SMTPUsername,
		password: cfg.SMTPPassword,
	}
}

func (m *mailer) SendVerificationCode(ctx context.Context, to, code string, ttl time.Duration) error {
	return m.sendCode(ctx, to, codeEmail{
		Subject: "Tu código de verificación - EduSphere",
		Title:   "Verifica tu identidad",
		Lead:    "Usa este código para completar tu inicio de sesión en EduSphere.",
		Code:    code,
		Minutes: int(ttl.Minutes()),
	})
}

func (m *mailer) SendPasswordResetCode(ctx context.Context, to, code string, ttl time.Duration) error {
	return m.sendCode(ctx, to, codeEmail{
		Subject: "Restablecer contraseña - EduSphere",
		Title:   "Restablecer contraseña",
		Lead:    "Recibimos una solicitud para restablecer tu contraseña. Si no fuiste tú, ignora este correo.",
		Code:    code,
		Minutes: int(ttl.Minutes()),
	})
}

func (m *mailer) sendCode(ctx context.Context, to string, e codeEmail) error {
	htmlBody, textBody, err := e.render()
	if err != nil {
		return err
	}
	boundary, err := newBoundary()
	if err != nil {
		return err
	}
	return m.send(ctx, to, buildMessage(m.from, to, e.Subject, boundary, textBody, htmlBody))
}

func (m *mailer) send(ctx context.Context, to string, msg []byte) error {
	ctx, cancel := context.WithTimeout(ctx, smtpTimeout)
	defer cancel()

	addr := net.JoinHostPort(m.host, strconv.Itoa(m.port))
	dialer := net.Dialer{Timeout: smtpTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("connecting to SMTP server: %w", err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	client, err := smtp.NewClient(conn, m.host)
	if err != nil {
		conn.Close()
		return fmt.Errorf("creating SMTP client: %w", err)
	}
	defer client.Close()

	if ok, _ := client.Extension("STARTTLS"); ok {
		if err := client.StartTLS(&tls.Config{ServerName: m.host}); err != nil {
			return fmt.Errorf("STARTTLS: %w", err)
		}
	} else if m.username != "" && m.port != 25 && m.port != 1025 {
		return fmt.Errorf("STARTTLS not available on port %d (required for auth)", m.port)
	}

	if m.username != "" {
		if err := client.Auth(smtp.PlainAuth("", m.username, m.password, m.host)); err != nil {
			return fmt.Errorf("SMTP authentication: %w", err)
		}
	}
	if err := client.Mail(m.from); err != nil {
		return fmt.Errorf("SMTP MAIL command: %w", err)
	}
	if err := client.Rcpt(to); err != nil {
		return fmt.Errorf("SMTP RCPT command: %w", err)
	}
	wc, err := client.Data()
	if err != nil {
		return fmt.Errorf("SMTP DATA command: %w", err)
	}
	if _, err := wc.Write(msg); err != nil {
		wc.Close()
		return fmt.Errorf("writing email body: %w", err)
	}
	if err := wc.Close(); err != nil {
		return fmt.Errorf("closing email body: %w", err)
	}
	if err := client.Quit(); err != nil {
		slog.Warn("smtp QUIT command failed", "component", "email", "err", err)
	}
	return nil
}

func buildMessage(from, to, subject, boundary, textBody, htmlBody string) []byte {
	var b bytes.Buffer
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: %s\r\n", subject)
	b.WriteString("MIME-Version: 1.0\r\n")
	fmt.Fprintf(&b, "Content-Type: multipart/alternative; boundary=%q\r\n\r\n", boundary)
	fmt.Fprintf(&b, "--%s\r\nContent-Type: text/plain; charset=\"utf-8\"\r\n\r\n%s\r\n", boundary, textBody)
	fmt.Fprintf(&b, "--%s\r\nContent-Type: text/html; charset=\"utf-8\"\r\n\r\n%s\r\n", boundary, htmlBody)
	fmt.Fprintf(&b, "--%s--\r\n", boundary)
	return b.Bytes()
}

func newBoundary() (string, error) {
	buf := make([]byte, 12)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("mime boundary: %w", err)
	}
	return "edusphere-" + hex.EncodeToString(buf), nil
}
