package slack

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/linnemanlabs/confide/internal/message"
	"github.com/linnemanlabs/go-core/log"
)

func testNotification() *message.Notification {
	return &message.Notification{
		MessageID:   "01JN123",
		To:          "hr@example.com",
		Subject:     "secret subject",
		Body:        "very confidential body",
		Category:    message.CategoryHarassment,
		Priority:    message.PriorityUrgent,
		SubmittedAt: time.Date(2026, 2, 26, 14, 23, 0, 0, time.UTC),
	}
}

func TestNotify_PostsToWebhook(t *testing.T) {
	t.Parallel()

	var raw string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("content-type = %q, want application/json", r.Header.Get("Content-Type"))
		}
		b, err := io.ReadAll(r.Body)
		if err != nil {
			t.Errorf("read body: %v", err)
		}
		if !json.Valid(b) {
			t.Errorf("body is not valid JSON: %s", b)
		}
		raw = string(b)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := New(srv.URL, log.Nop())
	if err := n.Notify(context.Background(), testNotification()); err != nil {
		t.Fatalf("Notify: %v", err)
	}

	if !strings.Contains(raw, "Harassment Report") {
		t.Errorf("payload missing category label: %s", raw)
	}
	if !strings.Contains(raw, "01JN123") {
		t.Errorf("payload missing message id: %s", raw)
	}
	if strings.Contains(raw, "confidential") || strings.Contains(raw, "secret subject") {
		t.Errorf("payload must not include message content: %s", raw)
	}
}

func TestNotify_NoOpWithoutURL(t *testing.T) {
	t.Parallel()

	n := New("", nil)
	if err := n.Notify(context.Background(), testNotification()); err != nil {
		t.Fatalf("Notify with empty URL should be no-op, got: %v", err)
	}
}

func TestNotify_NonOKStatus(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("internal error"))
	}))
	defer srv.Close()

	n := New(srv.URL, log.Nop())
	err := n.Notify(context.Background(), testNotification())
	if err == nil {
		t.Fatal("expected error on non-OK status")
	}
	if !strings.Contains(err.Error(), "500") {
		t.Errorf("error = %q, want to contain status code 500", err.Error())
	}
}

func TestPriorityEmoji(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		p    message.Priority
		want string
	}{
		{"urgent", message.PriorityUrgent, "\U0001f534"},
		{"high", message.PriorityHigh, "\U0001f7e0"},
		{"normal", message.PriorityNormal, "\U0001f7e1"},
		{"low", message.PriorityLow, "⚪"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := priorityEmoji(tt.p); got != tt.want {
				t.Errorf("priorityEmoji(%d) = %q, want %q", tt.p, got, tt.want)
			}
		})
	}
}

func FuzzSlackBuild(f *testing.F) {
	f.Add("general", 1, "01J")
	f.Add("", 0, "")
	f.Add("<@U123> mention", 9, "id\x00\x01")
	f.Add(strings.Repeat("A", 5000), -1, "x")

	f.Fuzz(func(t *testing.T, category string, priority int, id string) {
		nt := &message.Notification{
			MessageID:   id,
			Category:    message.Category(category),
			Priority:    message.Priority(priority),
			SubmittedAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		}

		data, err := json.Marshal(buildMessage(nt))
		if err != nil {
			t.Fatalf("buildMessage produced non-marshalable output: %v", err)
		}

		var decoded map[string]any
		if err := json.Unmarshal(data, &decoded); err != nil {
			t.Fatalf("buildMessage JSON does not round-trip: %v", err)
		}
		blocks, ok := decoded["blocks"].([]any)
		if !ok {
			t.Fatal("expected blocks array")
		}
		if len(blocks) != 3 {
			t.Fatalf("blocks count = %d, want 3", len(blocks))
		}
	})
}
