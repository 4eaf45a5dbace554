package report

import (
	"context"
	"testing"
	"time"

	"github.com/linnemanlabs/confide/internal/message"
)

func TestNewScheduler_InvalidSpec(t *testing.T) {
	t.Parallel()

	src, mailer := newFixture(t)
	if _, err := NewScheduler("every month", New(src, mailer, nil), nil); err == nil {
		t.Fatal("expected error for invalid cron spec")
	}
}

func TestScheduler_Next(t *testing.T) {
	t.Parallel()

	src, mailer := newFixture(t)
	s, err := NewScheduler("0 8 1 * *", New(src, mailer, nil), nil)
	if err != nil {
		t.Fatalf("NewScheduler: %v", err)
	}

	tests := []struct {
		from, want time.Time
	}{
		{
			from: time.Date(2026, time.March, 15, 12, 0, 0, 0, time.UTC),
			want: time.Date(2026, time.April, 1, 8, 0, 0, 0, time.UTC),
		},
		{
			from: time.Date(2026, time.December, 1, 8, 0, 0, 0, time.UTC),
			want: time.Date(2027, time.January, 1, 8, 0, 0, 0, time.UTC),
		},
	}
	for _, tt := range tests {
		if got := s.Next(tt.from); !got.Equal(tt.want) {
			t.Errorf("Next(%v) = %v, want %v", tt.from, got, tt.want)
		}
	}
}

func TestScheduler_RunSendsPreviousMonth(t *testing.T) {
	t.Parallel()

	src, mailer := newFixture(t)
	s, err := NewScheduler("0 8 1 * *", New(src, mailer, nil), nil)
	if err != nil {
		t.Fatalf("NewScheduler: %v", err)
	}
	s.now = func() time.Time { return time.Date(2026, time.March, 1, 8, 0, 0, 0, time.UTC) }

	s.run()

	if len(mailer.reports) != 1 {
		t.Fatalf("reports sent = %d, want 1", len(mailer.reports))
	}
	if got := mailer.reports[0].AttachmentName; got != "Anonymous_Messages_Report_February_2026.xlsx" {
		t.Errorf("attachment = %q", got)
	}
}

func TestScheduler_StartStop(t *testing.T) {
	t.Parallel()

	src, mailer := newFixture(t)
	s, err := NewScheduler("0 8 1 * *", New(src, mailer, nil), nil)
	if err != nil {
		t.Fatalf("NewScheduler: %v", err)
	}
	s.Start()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
}

type panicSource struct{}

func (panicSource) Messages(context.Context, message.Filter) ([]*message.Message, error) {
	panic("workbook exploded")
}

func (panicSource) HREmail(context.Context) (string, error) {
	panic("workbook exploded")
}

func TestScheduler_RecoversJobPanic(t *testing.T) {
	t.Parallel()

	_, mailer := newFixture(t)
	s, err := NewScheduler("0 8 1 * *", New(panicSource{}, mailer, nil), nil)
	if err != nil {
		t.Fatalf("NewScheduler: %v", err)
	}
	entries := s.cron.Entries()
	if len(entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(entries))
	}

	defer func() {
		if r := recover(); r != nil {
			t.Fatalf("job panic escaped the scheduler: %v", r)
		}
	}()
	entries[0].WrappedJob.Run()

	if len(mailer.reports) != 0 {
		t.Errorf("reports sent = %d, want 0", len(mailer.reports))
	}
}
