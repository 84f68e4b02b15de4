package notify

import (
	"context"
	"net"
	"net/textproto"
	"strconv"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"

	"github.com/Developer-AbhinavAF/affiliate-backend/internal/core/port"
	"github.com/Developer-AbhinavAF/affiliate-backend/internal/infra/config"
)

type capturedMail struct {
	from string
	rcpt string
	data string
}

// startFakeSMTP serves a single plain SMTP session and reports what it received.
func startFakeSMTP(t *testing.T) (string, int, <-chan capturedMail) {
	t.Helper()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { _ = listener.Close() })

	out := make(chan capturedMail, 1)
	go func() {
		conn, err := listener.Accept()
		if err != nil {
			return
		}
		defer conn.Close()

		tp := textproto.NewConn(conn)
		var mail capturedMail

		_ = tp.PrintfLine("220 localhost ESMTP")
		for {
			line, err := tp.ReadLine()
			if err != nil {
				return
			}
			verb := strings.ToUpper(strings.SplitN(line, " ", 2)[0])
			switch {
			case verb == "EHLO" || verb == "HELO":
				_ = tp.PrintfLine("250-localhost")
				_ = tp.PrintfLine("250 8BITMIME")
			case strings.HasPrefix(strings.ToUpper(line), "MAIL FROM:"):
				mail.from = strings.Trim(line[len("MAIL FROM:"):], "<> ")
				if idx := strings.Index(mail.from, ">"); idx >= 0 {
					mail.from = mail.from[:idx]
				}
				_ = tp.PrintfLine("250 OK")
			case strings.HasPrefix(strings.ToUpper(line), "RCPT TO:"):
				mail.rcpt = strings.Trim(line[len("RCPT TO:"):], "<> ")
				_ = tp.PrintfLine("250 OK")
			case verb == "DATA":
				_ = tp.PrintfLine("354 go ahead")
				body, err := tp.ReadDotBytes()
				if err != nil {
					return
				}
				mail.data = string(body)
				_ = tp.PrintfLine("250 queued")
			case verb == "QUIT":
				_ = tp.PrintfLine("221 bye")
				out <- mail
				return
			default:
				_ = tp.PrintfLine("250 OK")
			}
		}
	}()

	host, portText, _ := net.SplitHostPort(listener.Addr().String())
	numeric, _ := strconv.Atoi(portText)
	return host, numeric, out
}

func TestSMTPNotifierDeliversPlainTextMessage(t *testing.T) {
	host, smtpPort, received := startFakeSMTP(t)

	notifier, err := NewSMTPNotifier(config.SMTPSettings{
		Host:    host,
		Port:    smtpPort,
		From:    "TrendKart <no-reply@trendkart.test>",
		Timeout: 2 * time.Second,
	}, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("NewSMTPNotifier returned error: %v", err)
	}
	notifier.now = func() time.Time { return time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC) }

	err = notifier.Send(context.Background(), testMessage("jane@example.com"))
	if err != nil {
		t.Fatalf("Send returned error: %v", err)
	}

	select {
	case mail := <-received:
		if mail.from != "no-reply@trendkart.test" {
			t.Fatalf("unexpected envelope sender %q", mail.from)
		}
		if mail.rcpt != "jane@example.com" {
			t.Fatalf("unexpected recipient %q", mail.rcpt)
		}
		for _, want := range []string{
			"Subject: Verify your email - TrendKart",
			"To: jane@example.com",
			"Content-Type: text/plain",
			"Your code is 012345",
		} {
			if !strings.Contains(mail.data, want) {
				t.Fatalf("message missing %q:\n%s", want, mail.data)
			}
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for smtp session")
	}
}

func testMessage(to string) port.Message {
	return port.Message{
		To:      to,
		Subject: "Verify your email - TrendKart",
		Body:    "Hello,\nYour code is 012345\n",
	}
}

func TestSMTPNotifierRejectsHeaderInjection(t *testing.T) {
	notifier, err := NewSMTPNotifier(config.SMTPSettings{Host: "127.0.0.1", Port: 2525}, nil)
	if err != nil {
		t.Fatalf("NewSMTPNotifier returned error: %v", err)
	}

	err = notifier.Send(context.Background(), port.Message{To: "jane@example.com\r\nBcc: x@example.com", Subject: "s"})
	if err == nil {
		t.Fatal("expected error for recipient with line break")
	}
}

func TestSMTPNotifierDialFailure(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := listener.Addr().(*net.TCPAddr)
	_ = listener.Close()

	notifier, err := NewSMTPNotifier(config.SMTPSettings{Host: "127.0.0.1", Port: addr.Port, Timeout: time.Second}, nil)
	if err != nil {
		t.Fatalf("NewSMTPNotifier returned error: %v", err)
	}

	if err := notifier.Send(context.Background(), testMessage("jane@example.com")); err == nil {
		t.Fatal("expected dial error")
	}
}

func TestSenderAddress(t *testing.T) {
	cases := []struct {
		name string
		cfg  config.SMTPSettings
		want string
	}{
		{name: "from matches login", cfg: config.SMTPSettings{Username: "ops@trendkart.test", From: "Ops <ops@trendkart.test>"}, want: "Ops <ops@trendkart.test>"},
		{name: "from differs from login", cfg: config.SMTPSettings{Username: "ops@trendkart.test", From: "other@example.com"}, want: "TrendKart <ops@trendkart.test>"},
		{name: "no login", cfg: config.SMTPSettings{From: "no-reply@trendkart.test"}, want: "no-reply@trendkart.test"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := senderAddress(tc.cfg); got != tc.want {
				t.Fatalf("senderAddress() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestNewFallsBackToLogNotifier(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	log := zap.New(core)

	notifier, err := New(config.SMTPSettings{}, "development", log)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	if _, ok := notifier.(*LogNotifier); !ok {
		t.Fatalf("expected *LogNotifier, got %T", notifier)
	}

	if err := notifier.Send(context.Background(), testMessage("jane@example.com")); err != nil {
		t.Fatalf("Send returned error: %v", err)
	}

	entries := logs.FilterMessage("dispatch notification").All()
	if len(entries) != 1 {
		t.Fatalf("expected one dispatch log entry, got %d", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["to"] == "jane@example.com" {
		t.Fatal("recipient must be masked in logs")
	}
	if body, _ := fields["body"].(string); !strings.Contains(body, "012345") {
		t.Fatalf("expected body in development logs, got %v", fields["body"])
	}
}

func TestLogNotifierOmitsBodyInProduction(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)

	notifier, err := New(config.SMTPSettings{}, "production", zap.New(core))
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	_ = notifier.Send(context.Background(), testMessage("jane@example.com"))

	for _, entry := range logs.FilterMessage("dispatch notification").All() {
		if _, ok := entry.ContextMap()["body"]; ok {
			t.Fatal("body must not be logged in production")
		}
	}
}

func TestEnvelopeAddress(t *testing.T) {
	if got := envelopeAddress("TrendKart <ops@trendkart.test>"); got != "ops@trendkart.test" {
		t.Fatalf("unexpected address %q", got)
	}
	if got := envelopeAddress("ops@trendkart.test"); got != "ops@trendkart.test" {
		t.Fatalf("unexpected address %q", got)
	}
}
