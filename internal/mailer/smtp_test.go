package mailer

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nimasrn/receipt-gateway/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/wneessen/go-mail"
)

type MockSettings struct {
	mock.Mock
}

func (m *MockSettings) Get(ctx context.Context) (*model.AssociationSettings, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.AssociationSettings), args.Error(1)
}

type fakeSender struct {
	sent    []*mail.Msg
	dialed  bool
	closed  bool
	sendErr error
	dialErr error
}

func (f *fakeSender) DialWithContext(context.Context) error {
	f.dialed = true
	return f.dialErr
}

func (f *fakeSender) DialAndSendWithContext(_ context.Context, messages ...*mail.Msg) error {
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, messages...)
	return nil
}

func (f *fakeSender) Close() error {
	f.closed = true
	return nil
}

func configuredSettings() *model.AssociationSettings {
	s := model.ResolveSettings(nil)
	s.SMTPHost = "smtp.example.org"
	s.SMTPUser = "amicale@example.org"
	s.SMTPPassword = "secret"
	s.SMTPFromEmail = "amicale@example.org"
	return s
}

func newTestMailer(settings SettingsSource, fs *fakeSender) (*SMTPMailer, *[]*model.AssociationSettings) {
	var dialed []*model.AssociationSettings
	m := NewSMTPMailer(settings, time.Second)
	m.dial = func(s *model.AssociationSettings, _ time.Duration) (sender, error) {
		dialed = append(dialed, s)
		return fs, nil
	}
	return m, &dialed
}

func testMail() model.Mail {
	return model.Mail{
		To:      "jean@example.com",
		ToName:  "Jean Dupont",
		Subject: "Your receipt RECU-2024-12-01-DEF456",
		HTML:    "<p>Merci</p>",
		Text:    "Merci",
		Attachment: &model.Attachment{
			Filename: "RECU-2024-12-01-DEF456.pdf",
			Data:     []byte("%PDF-1.7"),
		},
	}
}

func TestSend(t *testing.T) {
	settings := new(MockSettings)
	settings.On("Get", mock.Anything).Return(configuredSettings(), nil)
	sender := &fakeSender{}
	m, _ := newTestMailer(settings, sender)

	require.NoError(t, m.Send(context.Background(), testMail()))
	require.Len(t, sender.sent, 1)

	var buf bytes.Buffer
	_, err := sender.sent[0].WriteTo(&buf)
	require.NoError(t, err)
	raw := buf.String()

	assert.Contains(t, raw, "Subject: Your receipt RECU-2024-12-01-DEF456")
	assert.Contains(t, raw, "<jean@example.com>")
	assert.Contains(t, raw, "<amicale@example.org>")
	assert.Contains(t, raw, "multipart/alternative")
	assert.Contains(t, raw, "text/html")
	assert.Contains(t, raw, "application/pdf")
	assert.Contains(t, raw, `filename="RECU-2024-12-01-DEF456.pdf"`)
}

func TestSend_ReadsSettingsOnEveryCall(t *testing.T) {
	first := configuredSettings()
	second := configuredSettings()
	second.SMTPHost = "smtp.rotated.example.org"

	settings := new(MockSettings)
	settings.On("Get", mock.Anything).Return(first, nil).Once()
	settings.On("Get", mock.Anything).Return(second, nil).Once()
	m, dialed := newTestMailer(settings, &fakeSender{})

	require.NoError(t, m.Send(context.Background(), testMail()))
	require.NoError(t, m.Send(context.Background(), testMail()))

	require.Len(t, *dialed, 2)
	assert.Equal(t, "smtp.example.org", (*dialed)[0].SMTPHost)
	assert.Equal(t, "smtp.rotated.example.org", (*dialed)[1].SMTPHost)
	settings.AssertExpectations(t)
}

func TestSend_MissingCredentials(t *testing.T) {
	settings := new(MockSettings)
	settings.On("Get", mock.Anything).Return(model.ResolveSettings(nil), nil)
	sender := &fakeSender{}
	m, dialed := newTestMailer(settings, sender)

	err := m.Send(context.Background(), testMail())

	var cfgErr *model.ConfigurationError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, "smtp", cfgErr.Component)
	assert.Empty(t, *dialed)
}

func TestSend_TransportFailure(t *testing.T) {
	settings := new(MockSettings)
	settings.On("Get", mock.Anything).Return(configuredSettings(), nil)
	m, _ := newTestMailer(settings, &fakeSender{sendErr: errors.New("550 mailbox unavailable")})

	err := m.Send(context.Background(), testMail())

	var deliveryErr *model.DeliveryError
	require.True(t, errors.As(err, &deliveryErr))
	assert.Equal(t, "jean@example.com", deliveryErr.Recipient)
	assert.Contains(t, err.Error(), "550 mailbox unavailable")
}

func TestSend_InvalidRecipient(t *testing.T) {
	settings := new(MockSettings)
	settings.On("Get", mock.Anything).Return(configuredSettings(), nil)
	sender := &fakeSender{}
	m, _ := newTestMailer(settings, sender)

	msg := testMail()
	msg.To = "not an address"
	err := m.Send(context.Background(), msg)

	var deliveryErr *model.DeliveryError
	require.True(t, errors.As(err, &deliveryErr))
	assert.Empty(t, sender.sent)
}

func TestVerify(t *testing.T) {
	t.Run("dials and closes", func(t *testing.T) {
		settings := new(MockSettings)
		settings.On("Get", mock.Anything).Return(configuredSettings(), nil)
		sender := &fakeSender{}
		m, _ := newTestMailer(settings, sender)

		require.NoError(t, m.Verify(context.Background()))
		assert.True(t, sender.dialed)
		assert.True(t, sender.closed)
	})

	t.Run("connection failure", func(t *testing.T) {
		settings := new(MockSettings)
		settings.On("Get", mock.Anything).Return(configuredSettings(), nil)
		m, _ := newTestMailer(settings, &fakeSender{dialErr: errors.New("connection refused")})

		assert.Error(t, m.Verify(context.Background()))
	})

	t.Run("settings unavailable", func(t *testing.T) {
		settings := new(MockSettings)
		settings.On("Get", mock.Anything).Return(nil, errors.New("db down"))
		m, _ := newTestMailer(settings, &fakeSender{})

		assert.Error(t, m.Verify(context.Background()))
	})
}
