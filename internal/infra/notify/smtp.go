package notify

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Developer-AbhinavAF/affiliate-backend/internal/core/port"
	"github.com/Developer-AbhinavAF/affiliate-backend/internal/infra/config"
	"github.com/Developer-AbhinavAF/affiliate-backend/internal/infra/logger"
)

const (
	defaultSMTPTimeout = 10 * time.Second
	defaultSenderName  = "TrendKart"
)

// ErrSMTPNotConfigured indicates the notifier was built without a host.
var ErrSMTPNotConfigured = errors.New("smtp host is not configured")

// SMTPNotifier delivers plain-text mail through an SMTP relay. Port 465 uses
// implicit TLS; any other port upgrades with STARTTLS when the server offers it.
type SMTPNotifier struct {
	cfg    config.SMTPSettings
	from   string
	logger *zap.Logger
	now    func() time.Time
}

// NewSMTPNotifier validates settings and constructs the notifier.
func NewSMTPNotifier(cfg config.SMTPSettings, log *zap.Logger) (*SMTPNotifier, error) {
	if strings.TrimSpace(cfg.Host) == "" {
		return nil, ErrSMTPNotConfigured
	}
	if cfg.Port <= 0 {
		return nil, fmt.Errorf("invalid smtp port %d", cfg.Port)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultSMTPTimeout
	}
	if log == nil {
		log = zap.NewNop()
	}

	return &SMTPNotifier{
		cfg:    cfg,
		from:   senderAddress(cfg),
		logger: log,
		now:    time.Now,
	}, nil
}

// senderAddress keeps the From header on the authenticated mailbox; most relays
// reject a From that differs from the login.
func senderAddress(cfg config.SMTPSettings) string {
	from := strings.TrimSpace(cfg.From)
	user := strings.TrimSpace(cfg.Username)
	if user == "" {
		return from
	}
	if from != "" && strings.Contains(from, user) {
		return from
	}
	return fmt.Sprintf("%s <%s>", defaultSenderName, user)
}

// Send delivers msg. The context bounds dialing and the whole SMTP exchange.
func (n *SMTPNotifier) Send(ctx context.Context, msg port.Message) error {
	to := strings.TrimSpace(msg.To)
	if to == "" {
		return fmt.Errorf("recipient is required")
	}
	if strings.ContainsAny(to, "\r\n") || strings.ContainsAny(msg.Subject, "\r\n") {
		return fmt.Errorf("header values must not contain line breaks")
	}

	ctx, cancel := context.WithTimeout(ctx, n.cfg.Timeout)
	defer cancel()

	client, conn, err := n.dial(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()
	defer client.Close()

	if n.cfg.Port != 465 {
		if ok, _ := client.Extension("STARTTLS"); ok {
			if err := client.StartTLS(&tls.Config{ServerName: n.cfg.Host, MinVersion: tls.VersionTLS12}); err != nil {
				return fmt.Errorf("smtp starttls: %w", err)
			}
		}
	}

	if n.cfg.Username != "" && n.cfg.Password != "" {
		if ok, _ := client.Extension("AUTH"); ok {
			auth := smtp.PlainAuth("", n.cfg.Username, strings.ReplaceAll(n.cfg.Password, " ", ""), n.cfg.Host)
			if err := client.Auth(auth); err != nil {
				return fmt.Errorf("smtp auth: %w", err)
			}
		}
	}

	if err := client.Mail(envelopeAddress(n.from)); err != nil {
		return fmt.Errorf("smtp mail from: %w", err)
	}
	if err := client.Rcpt(to); err != nil {
		return fmt.Errorf("smtp rcpt to: %w", err)
	}

	writer, err := client.Data()
	if err != nil {
		return fmt.Errorf("smtp data: %w", err)
	}
	if _, err := writer.Write(n.compose(to, msg)); err != nil {
		_ = writer.Close()
		return fmt.Errorf("smtp write body: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("smtp close body: %w", err)
	}

	if err := client.Quit(); err != nil {
		n.logger.Warn("smtp quit failed", zap.Error(err))
	}

	logger.WithContext(ctx, n.logger).Debug("notification delivered",
		zap.String("to", logger.MaskEmail(to)),
		zap.String("subject", msg.Subject),
	)
	return nil
}

func (n *SMTPNotifier) dial(ctx context.Context) (*smtp.Client, net.Conn, error) {
	addr := net.JoinHostPort(n.cfg.Host, strconv.Itoa(n.cfg.Port))

	var (
		conn net.Conn
		err  error
	)
	if n.cfg.Port == 465 {
		dialer := &tls.Dialer{Config: &tls.Config{ServerName: n.cfg.Host, MinVersion: tls.VersionTLS12}}
		conn, err = dialer.DialContext(ctx, "tcp", addr)
	} else {
		var dialer net.Dialer
		conn, err = dialer.DialContext(ctx, "tcp", addr)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("smtp dial %s: %w", addr, err)
	}

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	client, err := smtp.NewClient(conn, n.cfg.Host)
	if err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("smtp handshake: %w", err)
	}
	return client, conn, nil
}

func (n *SMTPNotifier) compose(to string, msg port.Message) []byte {
	var b strings.Builder
	b.WriteString("From: " + n.from + "\r\n")
	b.WriteString("To: " + to + "\r\n")
	b.WriteString("Subject: " + msg.Subject + "\r\n")
	b.WriteString("Date: " + n.now().UTC().Format(time.RFC1123Z) + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=\"UTF-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(strings.ReplaceAll(strings.ReplaceAll(msg.Body, "\r\n", "\n"), "\n", "\r\n"))
	b.WriteString("\r\n")
	return []byte(b.String())
}

// envelopeAddress extracts the bare address from "Name <addr>".
func envelopeAddress(from string) string {
	if start := strings.LastIndex(from, "<"); start >= 0 {
		if end := strings.LastIndex(from, ">"); end > start {
			return from[start+1 : end]
		}
	}
	return from
}

var _ port.Notifier = (*SMTPNotifier)(nil)
