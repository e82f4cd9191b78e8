// Package sender composes and delivers outbound replies and reminders
// over SMTP.
package sender

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"net/smtp"
	"strings"
	"time"

	"github.com/emersion/go-message/mail"
	"github.com/rs/zerolog"

	"github.com/nhle/uni-helper/internal/model"
)

const defaultSubject = "Jarvis Response"

// Sender sends mail as the configured mailbox user.
type Sender struct {
	cfg      model.SMTPConfig
	username string
	password string
	log      zerolog.Logger
	now      func() time.Time

	// deliver hands a composed message to the transport.
	deliver func(ctx context.Context, from, to string, msg []byte) error
}

// New creates a Sender that authenticates as username.
func New(cfg model.SMTPConfig, username, password string, logger zerolog.Logger) *Sender {
	s := &Sender{
		cfg:      cfg,
		username: username,
		password: password,
		log:      logger.With().Str("module", "sender").Logger(),
		now:      time.Now,
	}
	s.deliver = s.sendSMTP
	return s
}

// SendConfirmation replies to msg with body, threading it under the
// original subject.
func (s *Sender) SendConfirmation(ctx context.Context, msg model.ParsedMessage, body string) error {
	to := msg.FromAddress
	if to == "" {
		return fmt.Errorf("message %s has no sender address", msg.MessageID)
	}

	subject := defaultSubject
	if msg.Subject != "" {
		subject = msg.Subject
		if !strings.HasPrefix(strings.ToLower(subject), "re:") {
			subject = "Re: " + subject
		}
	}

	raw, err := s.compose(to, subject, msg.HeaderID, body)
	if err != nil {
		return err
	}
	if err := s.deliver(ctx, s.username, to, raw); err != nil {
		return fmt.Errorf("sending reply to %s: %w", to, err)
	}

	s.log.Info().Str("to", to).Str("subject", subject).Msg("Reply sent")
	return nil
}

// SendReminder mails the user a reminder for a.
func (s *Sender) SendReminder(ctx context.Context, a model.Assignment) error {
	to := s.username
	subject := fmt.Sprintf("⚠️  Reminder: %s Due Soon", a.Title)

	raw, err := s.compose(to, subject, "", ReminderBody(a, s.now()))
	if err != nil {
		return err
	}
	if err := s.deliver(ctx, s.username, to, raw); err != nil {
		return fmt.Errorf("sending reminder for assignment %d: %w", a.ID, err)
	}

	s.log.Info().Int64("assignment", a.ID).Msg("Reminder sent")
	return nil
}

// ReminderBody renders the reminder text for a as of now.
func ReminderBody(a model.Assignment, now time.Time) string {
	due := a.DueDate.In(time.Local)
	hours := int(a.DueDate.Sub(now).Hours())

	var b strings.Builder
	b.WriteString("Good morning, sir.\n\n")
	b.WriteString("⚠️  Assignment Reminder\n\n")
	fmt.Fprintf(&b, "📚 Class: %s\n", a.ClassName)
	fmt.Fprintf(&b, "📝 Assignment: %s\n", a.Title)
	fmt.Fprintf(&b, "📅 Due: %s\n", due.Format("January 02, 2006 at 03:04 PM"))
	fmt.Fprintf(&b, "⏰ Time Remaining: %d hours\n", hours)
	if a.Description != nil && *a.Description != "" {
		fmt.Fprintf(&b, "\n📋 Details: %s\n", *a.Description)
	}
	b.WriteString("\nI recommend you start working on this if you haven't already.\n\n")
	b.WriteString("Would you like me to send any additional reminders today?\n\n")
	b.WriteString("- Jarvis\n")
	return b.String()
}

// compose builds a text/plain RFC 5322 message.
func (s *Sender) compose(to, subject, inReplyTo, body string) ([]byte, error) {
	var h mail.Header
	h.SetDate(s.now())
	h.SetAddressList("From", []*mail.Address{{Address: s.username}})
	h.SetAddressList("To", []*mail.Address{{Address: to}})
	h.SetSubject(subject)
	h.SetContentType("text/plain", map[string]string{"charset": "utf-8"})
	if err := h.GenerateMessageID(); err != nil {
		return nil, fmt.Errorf("generating message id: %w", err)
	}
	if inReplyTo != "" {
		h.SetMsgIDList("In-Reply-To", []string{inReplyTo})
		h.SetMsgIDList("References", []string{inReplyTo})
	}

	var buf bytes.Buffer
	w, err := mail.CreateSingleInlineWriter(&buf, h)
	if err != nil {
		return nil, fmt.Errorf("creating message writer: %w", err)
	}
	if _, err := io.WriteString(w, body); err != nil {
		return nil, fmt.Errorf("writing message body: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("closing message writer: %w", err)
	}
	return buf.Bytes(), nil
}

// sendSMTP delivers over implicit TLS or STARTTLS depending on config.
func (s *Sender) sendSMTP(ctx context.Context, from, to string, msg []byte) error {
	addr := net.JoinHostPort(s.cfg.Host, s.cfg.Port)
	dialer := &net.Dialer{Timeout: 30 * time.Second}

	var conn net.Conn
	var err error
	if s.cfg.TLS {
		tlsDialer := &tls.Dialer{NetDialer: dialer, Config: &tls.Config{ServerName: s.cfg.Host}}
		conn, err = tlsDialer.DialContext(ctx, "tcp", addr)
		if err != nil {
			return fmt.Errorf("TLS dial to %s: %w", addr, err)
		}
	} else {
		conn, err = dialer.DialContext(ctx, "tcp", addr)
		if err != nil {
			return fmt.Errorf("dial to %s: %w", addr, err)
		}
	}

	client, err := smtp.NewClient(conn, s.cfg.Host)
	if err != nil {
		conn.Close()
		return fmt.Errorf("creating SMTP client: %w", err)
	}
	defer client.Close()

	if !s.cfg.TLS {
		if err := client.StartTLS(&tls.Config{ServerName: s.cfg.Host}); err != nil {
			return fmt.Errorf("SMTP STARTTLS: %w", err)
		}
	}

	auth := smtp.PlainAuth("", s.username, s.password, s.cfg.Host)
	if err := client.Auth(auth); err != nil {
		return fmt.Errorf("SMTP auth: %w", err)
	}

	if err := client.Mail(from); err != nil {
		return fmt.Errorf("SMTP MAIL FROM: %w", err)
	}
	if err := client.Rcpt(to); err != nil {
		return fmt.Errorf("SMTP RCPT TO: %w", err)
	}

	writer, err := client.Data()
	if err != nil {
		return fmt.Errorf("SMTP DATA: %w", err)
	}
	if _, err := writer.Write(msg); err != nil {
		return fmt.Errorf("writing email body: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("closing email body: %w", err)
	}

	return client.Quit()
}
