package mailer

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/weiawesome/wes-io-live/community-chat/internal/config"
)

func TestSendGridSender(t *testing.T) {
	var gotAuth, gotPath string
	var gotBody map[string]interface{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &gotBody)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	s := NewSendGridSender("sg-key", "Bloomence", "noreply@bloomence.example").WithHost(srv.URL)
	err := s.Send(context.Background(), &Email{
		To:      "friend@example.com",
		Subject: "You were mentioned in a Bloomence chat",
		HTML:    "<p>hi</p>",
		Text:    "hi",
	})
	require.NoError(t, err)

	assert.Equal(t, "Bearer sg-key", gotAuth)
	assert.Equal(t, "/v3/mail/send", gotPath)
	assert.Equal(t, "You were mentioned in a Bloomence chat", gotBody["subject"])
	from := gotBody["from"].(map[string]interface{})
	assert.Equal(t, "noreply@bloomence.example", from["email"])
	assert.Equal(t, "Bloomence", from["name"])
	assert.Len(t, gotBody["content"], 2)
}

func TestSendGridSenderRejectsNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"errors":[{"message":"bad key"}]}`))
	}))
	defer srv.Close()

	s := NewSendGridSender("bad", "", "noreply@bloomence.example").WithHost(srv.URL)
	err := s.Send(context.Background(), &Email{To: "a@x.com", Subject: "s", HTML: "h", Text: "t"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}

func TestSMTPMessage(t *testing.T) {
	s := NewSMTPSender(SMTPConfig{Host: "smtp.example.com", Port: 465, FromName: "Bloomence", FromEmail: "noreply@bloomence.example"})
	msg, err := s.newMessage(&Email{To: "friend@example.com", Subject: "s", HTML: "<b>x</b>", Text: "x"})
	require.NoError(t, err)

	rcpts, err := msg.GetRecipients()
	require.NoError(t, err)
	assert.Equal(t, []string{"friend@example.com"}, rcpts)

	_, err = s.newMessage(&Email{To: "not an address"})
	assert.Error(t, err)

	assert.Len(t, s.options(), 2)
	withAuth := NewSMTPSender(SMTPConfig{Host: "h", Port: 587, Username: "u", Password: "p"})
	assert.Len(t, withAuth.options(), 5)
}

func TestResolveProvider(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.MailConfig
		want string
	}{
		{"explicit", config.MailConfig{Provider: ProviderSMTP, SendGridAPIKey: "k"}, ProviderSMTP},
		{"auto prefers sendgrid", config.MailConfig{Provider: ProviderAuto, SendGridAPIKey: "k", SMTPHost: "h"}, ProviderSendGrid},
		{"auto falls back to smtp", config.MailConfig{SMTPHost: "h"}, ProviderSMTP},
		{"auto falls back to log", config.MailConfig{}, ProviderLog},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ResolveProvider(tt.cfg))
		})
	}
}

func TestNew(t *testing.T) {
	s, err := New(config.MailConfig{})
	require.NoError(t, err)
	assert.IsType(t, LogSender{}, s)

	s, err = New(config.MailConfig{SendGridAPIKey: "k", FromEmail: "a@b.co"})
	require.NoError(t, err)
	assert.IsType(t, &SendGridSender{}, s)

	s, err = New(config.MailConfig{SMTPHost: "h", SMTPUser: "me@b.co"})
	require.NoError(t, err)
	require.IsType(t, &SMTPSender{}, s)
	assert.Equal(t, "me@b.co", s.(*SMTPSender).cfg.FromEmail)

	_, err = New(config.MailConfig{Provider: ProviderSMTP})
	assert.Error(t, err)
	_, err = New(config.MailConfig{Provider: "pigeon"})
	assert.Error(t, err)
}
