package email

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/wneessen/go-mail"

	"github.com/linnemanlabs/confide/internal/message"
	"github.com/linnemanlabs/go-core/log"
)

type fakeSender struct {
	mu   sync.Mutex
	msgs []*mail.Msg
	err  error
}

func (f *fakeSender) DialAndSendWithContext(_ context.Context, msgs ...*mail.Msg) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func testNotification() *message.Notification {
	return &message.Notification{
		MessageID:   "01JTEST",
		To:          "hr@example.com",
		Subject:     "Broken ladder",
		Body:        "The ladder in bay 4 is broken.",
		Category:    message.CategorySafety,
		Priority:    message.PriorityHigh,
		SubmittedAt: time.Date(2026, 10, 1, 9, 30, 0, 0, time.UTC),
	}
}

func render(t *testing.T, m *mail.Msg) string {
	t.Helper()
	var buf bytes.Buffer
	if _, err := m.WriteTo(&buf); err != nil {
		t.Fatalf("WriteTo: %v", err)
	}
	return buf.String()
}

func TestNotify_SendsOneMessageToRecipient(t *testing.T) {
	t.Parallel()

	s := &fakeSender{}
	n := New("noreply@example.com", s, log.Nop())

	if err := n.Notify(context.Background(), testNotification()); err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if len(s.msgs) != 1 {
		t.Fatalf("sent = %d, want 1", len(s.msgs))
	}

	rcpts, err := s.msgs[0].GetRecipients()
	if err != nil {
		t.Fatalf("GetRecipients: %v", err)
	}
	if len(rcpts) != 1 || rcpts[0] != "hr@example.com" {
		t.Errorf("recipients = %v, want [hr@example.com]", rcpts)
	}

	subj := s.msgs[0].GetGenHeader(mail.HeaderSubject)
	if len(subj) != 1 || subj[0] != "Anonymous Employee Message: Broken ladder" {
		t.Errorf("subject = %v", subj)
	}
}

func TestNotify_SenderError(t *testing.T) {
	t.Parallel()

	n := New("noreply@example.com", &fakeSender{err: errors.New("connection refused")}, nil)
	err := n.Notify(context.Background(), testNotification())
	if err == nil {
		t.Fatal("expected error from sender")
	}
	if !strings.Contains(err.Error(), "connection refused") {
		t.Errorf("error = %q, want to contain sender error", err)
	}
}

func TestCompose_InvalidRecipient(t *testing.T) {
	t.Parallel()

	n := New("noreply@example.com", &fakeSender{}, nil)
	nt := testNotification()
	nt.To = "not an address"
	if _, err := n.Compose(nt); err == nil {
		t.Fatal("expected error for malformed recipient")
	}
}

func TestCompose_TextBody(t *testing.T) {
	t.Parallel()

	n := New("noreply@example.com", &fakeSender{}, nil)
	m, err := n.Compose(testNotification())
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}
	out := render(t, m)

	for _, want := range []string{
		"Category: Safety Issue",
		"Priority: High",
		"2026-10-01 09:30:00 UTC",
		"The ladder in bay 4 is broken.",
		"text/html",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("rendered mail missing %q", want)
		}
	}
}

func TestNotificationSubject(t *testing.T) {
	t.Parallel()

	nt := testNotification()
	nt.Subject = ""
	if got := notificationSubject(nt); got != "Anonymous Employee Message (Safety Issue)" {
		t.Errorf("subject = %q", got)
	}
}

func TestNotificationHTML_EscapesBody(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	err := notificationHTML.Execute(&buf, notificationData{
		Category: "General Message",
		Body:     "<script>alert(1)</script>",
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if strings.Contains(buf.String(), "<script>") {
		t.Error("html body must escape message content")
	}
	if !strings.Contains(buf.String(), "&lt;script&gt;") {
		t.Error("expected escaped script tag in html body")
	}
}

func TestSendReport_AttachesWorkbook(t *testing.T) {
	t.Parallel()

	s := &fakeSender{}
	n := New("noreply@example.com", s, nil)
	err := n.SendReport(context.Background(), &Report{
		To:             "hr@example.com",
		Subject:        "Monthly report",
		HTML:           "<p>summary</p>",
		AttachmentName: "report.xlsx",
		Attachment:     []byte("PK\x03\x04"),
	})
	if err != nil {
		t.Fatalf("SendReport: %v", err)
	}
	if len(s.msgs) != 1 {
		t.Fatalf("sent = %d, want 1", len(s.msgs))
	}
	if got := len(s.msgs[0].GetAttachments()); got != 1 {
		t.Errorf("attachments = %d, want 1", got)
	}
	if !strings.Contains(render(t, s.msgs[0]), "report.xlsx") {
		t.Error("rendered mail missing attachment name")
	}
}

func TestNewSMTPClient(t *testing.T) {
	t.Parallel()

	c, err := NewSMTPClient(SMTPConfig{Host: "smtp.example.com", Port: 587, Username: "u", Password: "p", Timeout: time.Second})
	if err != nil {
		t.Fatalf("NewSMTPClient: %v", err)
	}
	if c == nil {
		t.Fatal("expected client")
	}

	if _, err := NewSMTPClient(SMTPConfig{Port: 25}); err == nil {
		t.Error("expected error for empty host")
	}
}
