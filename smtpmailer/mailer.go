// Package smtpmailer delivers memberauth security mail over SMTP.
//
// It implements the engine's Mailer contract with plain-text messages sent
// through net/smtp. STARTTLS, implicit TLS, and unencrypted transports are
// supported; STARTTLS is the default.
package smtpmailer

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/mail"
	gosmtp "net/smtp"
	"strings"
	"time"
)

// Encryption selects the SMTP transport security mode.
type Encryption string

// Supported transport security modes.
const (
	EncryptionStartTLS Encryption = "starttls"
	EncryptionSSL      Encryption = "ssl"
	EncryptionNone     Encryption = "none"
)

const defaultDialTimeout = 10 * time.Second

// Config defines a public type used by memberauth APIs.
//
// Config instances are intended to be configured during initialization and
// then treated as immutable unless documented otherwise.
type Config struct {
	Host     string
	Port     int
	Username string
	Password string

	FromName    string
	FromAddress string

	Encryption Encryption

	// ResetURLPrefix, when set, is prepended to the reset challenge so the
	// mail carries a clickable link instead of a bare token.
	ResetURLPrefix string

	DialTimeout time.Duration
}

// Mailer sends password reset and one-time code mail through a single SMTP
// relay. The zero value is not usable; construct it with [New].
type Mailer struct {
	config Config
}

// New creates a Mailer from the given configuration.
//
// New may return an error when input validation, dependency calls, or security checks fail.
func New(cfg Config) (*Mailer, error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("smtpmailer: host is required")
	}
	if cfg.Port <= 0 || cfg.Port > 65535 {
		return nil, fmt.Errorf("smtpmailer: invalid port %d", cfg.Port)
	}
	if cfg.FromAddress == "" {
		return nil, fmt.Errorf("smtpmailer: from address is required")
	}
	if _, err := mail.ParseAddress(cfg.FromAddress); err != nil {
		return nil, fmt.Errorf("smtpmailer: invalid from address: %w", err)
	}

	switch cfg.Encryption {
	case EncryptionStartTLS, EncryptionSSL, EncryptionNone:
	case "":
		cfg.Encryption = EncryptionStartTLS
	default:
		return nil, fmt.Errorf("smtpmailer: unknown encryption mode %q", cfg.Encryption)
	}

	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = defaultDialTimeout
	}

	return &Mailer{config: cfg}, nil
}

// SendPasswordReset describes the sendpasswordreset operation and its observable behavior.
//
// SendPasswordReset may return an error when input validation, dependency calls, or security checks fail.
// SendPasswordReset does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (m *Mailer) SendPasswordReset(ctx context.Context, email, token string) error {
	if m == nil {
		return fmt.Errorf("smtpmailer: nil mailer")
	}

	body := "A password reset was requested for your account.\r\n\r\n"
	if m.config.ResetURLPrefix != "" {
		body += "Reset your password using the link below:\r\n\r\n" + m.config.ResetURLPrefix + token + "\r\n"
	} else {
		body += "Your reset code is:\r\n\r\n" + token + "\r\n"
	}
	body += "\r\nIf you did not request this, you can ignore this message.\r\n"

	return m.send(ctx, email, "Password reset", body)
}

// SendOneTimeCode describes the sendonetimecode operation and its observable behavior.
//
// SendOneTimeCode may return an error when input validation, dependency calls, or security checks fail.
// SendOneTimeCode does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (m *Mailer) SendOneTimeCode(ctx context.Context, email, code string) error {
	if m == nil {
		return fmt.Errorf("smtpmailer: nil mailer")
	}

	body := "Your sign-in verification code is:\r\n\r\n" + code +
		"\r\n\r\nIf you did not try to sign in, change your password now.\r\n"

	return m.send(ctx, email, "Your verification code", body)
}

func (m *Mailer) send(ctx context.Context, to, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := mail.ParseAddress(to); err != nil {
		return fmt.Errorf("smtpmailer: invalid recipient: %w", err)
	}

	from := mail.Address{Name: m.config.FromName, Address: m.config.FromAddress}
	msg := buildMessage(from, to, subject, body)
	addr := fmt.Sprintf("%s:%d", m.config.Host, m.config.Port)

	switch m.config.Encryption {
	case EncryptionSSL:
		return m.sendSSL(addr, from.Address, to, msg)
	case EncryptionNone:
		return m.sendPlain(addr, from.Address, to, msg)
	default:
		return m.sendStartTLS(addr, from.Address, to, msg)
	}
}

// buildMessage assembles an RFC 2822 plain-text message.
func buildMessage(from mail.Address, to, subject, body string) string {
	var msg strings.Builder
	msg.WriteString("From: " + from.String() + "\r\n")
	msg.WriteString("To: " + to + "\r\n")
	msg.WriteString("Subject: " + subject + "\r\n")
	msg.WriteString("Date: " + time.Now().UTC().Format(time.RFC1123Z) + "\r\n")
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	msg.WriteString("\r\n")
	msg.WriteString(body)
	return msg.String()
}

func (m *Mailer) sendStartTLS(addr, from, to, msg string) error {
	conn, err := net.DialTimeout("tcp", addr, m.config.DialTimeout)
	if err != nil {
		return fmt.Errorf("smtpmailer: connecting to %s: %w", addr, err)
	}
	defer conn.Close()

	client, err := gosmtp.NewClient(conn, m.config.Host)
	if err != nil {
		return fmt.Errorf("smtpmailer: creating client: %w", err)
	}
	defer client.Close()

	tlsConfig := &tls.Config{ServerName: m.config.Host, MinVersion: tls.VersionTLS12}
	if err := client.StartTLS(tlsConfig); err != nil {
		return fmt.Errorf("smtpmailer: starting TLS: %w", err)
	}

	if m.config.Username != "" {
		auth := gosmtp.PlainAuth("", m.config.Username, m.config.Password, m.config.Host)
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("smtpmailer: authenticating: %w", err)
		}
	}

	return deliver(client, from, to, msg)
}

func (m *Mailer) sendSSL(addr, from, to, msg string) error {
	tlsConfig := &tls.Config{ServerName: m.config.Host, MinVersion: tls.VersionTLS12}
	conn, err := tls.DialWithDialer(&net.Dialer{Timeout: m.config.DialTimeout}, "tcp", addr, tlsConfig)
	if err != nil {
		return fmt.Errorf("smtpmailer: connecting to %s: %w", addr, err)
	}
	defer conn.Close()

	client, err := gosmtp.NewClient(conn, m.config.Host)
	if err != nil {
		return fmt.Errorf("smtpmailer: creating client: %w", err)
	}
	defer client.Close()

	if m.config.Username != "" {
		auth := gosmtp.PlainAuth("", m.config.Username, m.config.Password, m.config.Host)
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("smtpmailer: authenticating: %w", err)
		}
	}

	return deliver(client, from, to, msg)
}

func (m *Mailer) sendPlain(addr, from, to, msg string) error {
	var auth gosmtp.Auth
	if m.config.Username != "" {
		auth = gosmtp.PlainAuth("", m.config.Username, m.config.Password, m.config.Host)
	}
	if err := gosmtp.SendMail(addr, auth, from, []string{to}, []byte(msg)); err != nil {
		return fmt.Errorf("smtpmailer: sending mail: %w", err)
	}
	return nil
}

// deliver runs MAIL FROM, RCPT TO, and DATA on an established client.
func deliver(client *gosmtp.Client, from, to, msg string) error {
	if err := client.Mail(from); err != nil {
		return fmt.Errorf("smtpmailer: MAIL FROM: %w", err)
	}
	if err := client.Rcpt(to); err != nil {
		return fmt.Errorf("smtpmailer: RCPT TO: %w", err)
	}
	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("smtpmailer: DATA: %w", err)
	}
	if _, err := w.Write([]byte(msg)); err != nil {
		return fmt.Errorf("smtpmailer: writing message: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("smtpmailer: closing data: %w", err)
	}
	return client.Quit()
}
