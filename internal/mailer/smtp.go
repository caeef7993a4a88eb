package mailer

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/nimasrn/receipt-gateway/internal/model"
	"github.com/nimasrn/receipt-gateway/pkg/logger"
	"github.com/wneessen/go-mail"
)

const defaultTimeout = 30 * time.Second

// SettingsSource yields the current association settings. The mailer reads
// it on every call so credential changes apply without a restart.
type SettingsSource interface {
	Get(ctx context.Context) (*model.AssociationSettings, error)
}

type sender interface {
	DialWithContext(ctx context.Context) error
	DialAndSendWithContext(ctx context.Context, messages ...*mail.Msg) error
	Close() error
}

type dialFunc func(s *model.AssociationSettings, timeout time.Duration) (sender, error)

type SMTPMailer struct {
	settings SettingsSource
	dial     dialFunc
	timeout  time.Duration
}

func NewSMTPMailer(settings SettingsSource, timeout time.Duration) *SMTPMailer {
	if timeout == 0 {
		timeout = defaultTimeout
	}
	return &SMTPMailer{
		settings: settings,
		dial:     newClient,
		timeout:  timeout,
	}
}

func newClient(s *model.AssociationSettings, timeout time.Duration) (sender, error) {
	opts := []mail.Option{
		mail.WithPort(s.SMTPPort),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(s.SMTPUser),
		mail.WithPassword(s.SMTPPassword),
		mail.WithTimeout(timeout),
	}
	if s.SMTPSecure {
		opts = append(opts, mail.WithSSL())
	} else {
		opts = append(opts, mail.WithTLSPolicy(mail.TLSOpportunistic))
	}
	return mail.NewClient(s.SMTPHost, opts...)
}

func (m *SMTPMailer) load(ctx context.Context) (*model.AssociationSettings, error) {
	s, err := m.settings.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load smtp settings: %w", err)
	}
	if missing := s.MissingSMTP(); len(missing) > 0 {
		return nil, &model.ConfigurationError{Component: "smtp", Missing: missing}
	}
	return s, nil
}

// Verify opens and closes an authenticated SMTP session.
func (m *SMTPMailer) Verify(ctx context.Context) error {
	s, err := m.load(ctx)
	if err != nil {
		return err
	}
	client, err := m.dial(s, m.timeout)
	if err != nil {
		return fmt.Errorf("failed to create smtp client: %w", err)
	}
	if err := client.DialWithContext(ctx); err != nil {
		return fmt.Errorf("smtp connection to %s:%d failed: %w", s.SMTPHost, s.SMTPPort, err)
	}
	return client.Close()
}

// Send submits one email with its attachment.
func (m *SMTPMailer) Send(ctx context.Context, msg model.Mail) error {
	s, err := m.load(ctx)
	if err != nil {
		return err
	}

	out, err := buildMessage(s, msg)
	if err != nil {
		return &model.DeliveryError{Recipient: msg.To, Err: err}
	}

	client, err := m.dial(s, m.timeout)
	if err != nil {
		return &model.DeliveryError{Recipient: msg.To, Err: err}
	}

	start := time.Now()
	if err := client.DialAndSendWithContext(ctx, out); err != nil {
		return &model.DeliveryError{Recipient: msg.To, Err: err}
	}

	logger.Info("receipt email sent", "to", msg.To, "host", s.SMTPHost, "latency_ms", time.Since(start).Milliseconds())
	return nil
}

func buildMessage(s *model.AssociationSettings, msg model.Mail) (*mail.Msg, error) {
	out := mail.NewMsg()
	if err := out.FromFormat(s.SMTPFromName, s.SMTPFromEmail); err != nil {
		return nil, fmt.Errorf("invalid sender %q: %w", s.SMTPFromEmail, err)
	}
	if msg.ToName != "" {
		if err := out.AddToFormat(msg.ToName, msg.To); err != nil {
			return nil, fmt.Errorf("invalid recipient %q: %w", msg.To, err)
		}
	} else if err := out.To(msg.To); err != nil {
		return nil, fmt.Errorf("invalid recipient %q: %w", msg.To, err)
	}

	out.Subject(msg.Subject)
	out.SetBodyString(mail.TypeTextPlain, msg.Text)
	if msg.HTML != "" {
		out.AddAlternativeString(mail.TypeTextHTML, msg.HTML)
	}

	if a := msg.Attachment; a != nil {
		contentType := a.ContentType
		if contentType == "" {
			contentType = "application/pdf"
		}
		err := out.AttachReader(a.Filename, bytes.NewReader(a.Data), mail.WithFileContentType(mail.ContentType(contentType)))
		if err != nil {
			return nil, fmt.Errorf("failed to attach %s: %w", a.Filename, err)
		}
	}
	return out, nil
}
