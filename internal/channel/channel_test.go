package channel

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"gopkg.in/gomail.v2"
)

type fakeMailer struct {
	sent  []*gomail.Message
	err   error
	delay time.Duration
}

func (f *fakeMailer) DialAndSend(m ...*gomail.Message) error {
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	f.sent = append(f.sent, m...)
	return f.err
}

func TestEmailSenderUnconfigured(t *testing.T) {
	mailer := &fakeMailer{}
	s := &EmailSender{cfg: SMTPConfig{Host: "smtp.example.com", Port: 587}, mailer: mailer}

	err := s.Send(context.Background(), "a@example.com", Message{Subject: "s", Text: "t"})
	if !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
	if len(mailer.sent) != 0 {
		t.Fatalf("nothing must be sent without credentials")
	}
}

func TestEmailSenderSends(t *testing.T) {
	mailer := &fakeMailer{}
	s := &EmailSender{cfg: SMTPConfig{Host: "smtp.example.com", Port: 587, User: "bot@example.com", Password: "secret"}, mailer: mailer}

	if err := s.Send(context.Background(), "a@example.com", Message{Subject: "ProjectFlow: task_updated", Text: "body"}); err != nil {
		t.Fatalf("send: %v", err)
	}
	if len(mailer.sent) != 1 {
		t.Fatalf("expected one message, got %d", len(mailer.sent))
	}
	m := mailer.sent[0]
	if got := m.GetHeader("To"); len(got) != 1 || got[0] != "a@example.com" {
		t.Fatalf("unexpected To header: %v", got)
	}
	if got := m.GetHeader("From"); len(got) != 1 || got[0] != "bot@example.com" {
		t.Fatalf("From should default to the SMTP user: %v", got)
	}
}

func TestEmailSenderTransportError(t *testing.T) {
	s := &EmailSender{
		cfg:    SMTPConfig{Host: "h", User: "u", Password: "p"},
		mailer: &fakeMailer{err: errors.New("535 auth failed")},
	}
	err := s.Send(context.Background(), "a@example.com", Message{})
	if err == nil || !strings.Contains(err.Error(), "535 auth failed") {
		t.Fatalf("expected transport error, got %v", err)
	}
}

func TestEmailSenderHonorsTimeout(t *testing.T) {
	s := &EmailSender{
		cfg:    SMTPConfig{Host: "h", User: "u", Password: "p"},
		mailer: &fakeMailer{delay: 200 * time.Millisecond},
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	err := s.Send(ctx, "a@example.com", Message{})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestChatBotSender(t *testing.T) {
	var gotPath string
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	s := NewChatBotSender(ChatBotConfig{Token: "123:abc", APIURL: srv.URL + "/"})
	if err := s.Send(context.Background(), "42", Message{Text: "hello"}); err != nil {
		t.Fatalf("send: %v", err)
	}
	if gotPath != "/bot123:abc/sendMessage" {
		t.Fatalf("unexpected path %q", gotPath)
	}
	if gotBody["chat_id"] != "42" || gotBody["text"] != "hello" {
		t.Fatalf("unexpected body %v", gotBody)
	}
}

func TestChatBotSenderFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"ok":false,"description":"chat not found"}`))
	}))
	defer srv.Close()

	if err := NewChatBotSender(ChatBotConfig{APIURL: srv.URL}).Send(context.Background(), "42", Message{}); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured without token, got %v", err)
	}

	err := NewChatBotSender(ChatBotConfig{Token: "t", APIURL: srv.URL}).Send(context.Background(), "42", Message{Text: "x"})
	if err == nil || !strings.Contains(err.Error(), "chat not found") {
		t.Fatalf("expected api error, got %v", err)
	}
}

func TestWebhookSender(t *testing.T) {
	var got webhookBody
	var gotHeader string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeader = r.Header.Get("X-ProjectFlow-Event")
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	s := NewWebhookSender(time.Second)
	s.now = func() time.Time { return time.Unix(1700000000, 0) }

	msg := Message{EventType: "task_updated", Topic: "task-events", Payload: map[string]any{"task_id": "T1"}}
	if err := s.Send(context.Background(), srv.URL, msg); err != nil {
		t.Fatalf("send: %v", err)
	}
	if got.EventType != "task_updated" || got.Topic != "task-events" || got.Payload["task_id"] != "T1" || got.SentAt != 1700000000 {
		t.Fatalf("unexpected body %#v", got)
	}
	if gotHeader != "task_updated" {
		t.Fatalf("unexpected event header %q", gotHeader)
	}
}

func TestWebhookSenderNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	err := NewWebhookSender(time.Second).Send(context.Background(), srv.URL, Message{EventType: "x"})
	if err == nil || !strings.Contains(err.Error(), "500") {
		t.Fatalf("expected status error, got %v", err)
	}
}
