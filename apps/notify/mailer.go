package notify

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/smtp"
	"strings"
	"time"

	"github.com/emersion/go-message/mail"
	"github.com/getevo/evo/v2/lib/log"
	"github.com/getevo/evo/v2/lib/settings"
	"github.com/iesreza/hrdesk-backend/lib/crypto"
)

// Message is a rendered email ready for transport
type Message struct {
	To      []string
	Subject string
	HTML    string
}

type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// SMTPConfig mirrors the SMTP.* settings
type SMTPConfig struct {
	Host       string
	Port       int
	Username   string
	Password   string
	Encryption string // none, ssl or tls (STARTTLS)
	FromEmail  string
	FromName   string
	Timeout    time.Duration
}

func LoadSMTPConfig() SMTPConfig {
	timeout, err := settings.Get("SMTP.TIMEOUT", "30s").Duration()
	if err != nil {
		timeout = 30 * time.Second
	}
	return SMTPConfig{
		Host:       settings.Get("SMTP.HOST").String(),
		Port:       settings.Get("SMTP.PORT", 587).Int(),
		Username:   settings.Get("SMTP.USERNAME").String(),
		Password:   crypto.Setting("SMTP.PASSWORD"),
		Encryption: strings.ToLower(settings.Get("SMTP.ENCRYPTION", "tls").String()),
		FromEmail:  settings.Get("SMTP.FROM_EMAIL").String(),
		FromName:   settings.Get("SMTP.FROM_NAME", "HR Desk").String(),
		Timeout:    timeout,
	}
}

type SMTPMailer struct {
	config SMTPConfig
}

func NewSMTPMailer(config SMTPConfig) *SMTPMailer {
	return &SMTPMailer{config: config}
}

// compose builds the RFC 5322 message
func (m *SMTPMailer) compose(msg Message) ([]byte, error) {
	var h mail.Header
	h.SetDate(time.Now())
	h.SetSubject(msg.Subject)
	h.SetAddressList("From", []*mail.Address{{Name: m.config.FromName, Address: m.config.FromEmail}})

	to := make([]*mail.Address, 0, len(msg.To))
	for _, addr := range msg.To {
		to = append(to, &mail.Address{Address: addr})
	}
	h.SetAddressList("To", to)
	if err := h.GenerateMessageID(); err != nil {
		return nil, err
	}
	h.SetContentType("text/html", map[string]string{"charset": "utf-8"})

	var buf bytes.Buffer
	w, err := mail.CreateSingleInlineWriter(&buf, h)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write([]byte(msg.HTML)); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (m *SMTPMailer) Send(ctx context.Context, msg Message) error {
	if len(msg.To) == 0 {
		return errors.New("email has no recipients")
	}
	body, err := m.compose(msg)
	if err != nil {
		return fmt.Errorf("failed to build message: %w", err)
	}

	addr := fmt.Sprintf("%s:%d", m.config.Host, m.config.Port)
	dialer := &net.Dialer{Timeout: m.config.Timeout}

	var conn net.Conn
	if m.config.Encryption == "ssl" || m.config.Port == 465 {
		conn, err = tls.DialWithDialer(dialer, "tcp", addr, &tls.Config{ServerName: m.config.Host})
	} else {
		conn, err = dialer.DialContext(ctx, "tcp", addr)
	}
	if err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	client, err := smtp.NewClient(conn, m.config.Host)
	if err != nil {
		conn.Close()
		return fmt.Errorf("failed to create SMTP client: %w", err)
	}
	defer client.Close()

	if m.config.Encryption == "tls" {
		if err := client.StartTLS(&tls.Config{ServerName: m.config.Host}); err != nil {
			return fmt.Errorf("failed to start TLS: %w", err)
		}
	}
	if m.config.Username != "" && m.config.Password != "" {
		auth := smtp.PlainAuth("", m.config.Username, m.config.Password, m.config.Host)
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("authentication failed: %w", err)
		}
	}

	if err := client.Mail(m.config.FromEmail); err != nil {
		return fmt.Errorf("failed to set sender: %w", err)
	}
	for _, to := range msg.To {
		if err := client.Rcpt(to); err != nil {
			return fmt.Errorf("failed to add recipient %s: %w", to, err)
		}
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("failed to start data: %w", err)
	}
	if _, err := w.Write(body); err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to close data: %w", err)
	}
	return client.Quit()
}

// LogMailer is used when SMTP.ENABLED is false
type LogMailer struct{}

func (LogMailer) Send(_ context.Context, msg Message) error {
	log.Info("email (smtp disabled) to=%s subject=%q", strings.Join(msg.To, ","), msg.Subject)
	return nil
}
