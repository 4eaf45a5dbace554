// Package report builds the monthly spreadsheet of anonymous messages and
// mails it to HR.
package report

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"time"

	"github.com/linnemanlabs/confide/internal/message"
	"github.com/linnemanlabs/confide/internal/notify/email"
	"github.com/linnemanlabs/go-core/log"
	"github.com/linnemanlabs/go-core/xerrors"
)

// Source supplies messages and the HR address. *message.Service satisfies it.
type Source interface {
	Messages(ctx context.Context, f message.Filter) ([]*message.Message, error)
	HREmail(ctx context.Context) (string, error)
}

// Mailer hands a finished report to the mail transport.
type Mailer interface {
	SendReport(ctx context.Context, r *email.Report) error
}

// Count is a labelled tally used in summaries.
type Count struct {
	Label string
	N     int
}

// Monthly is a generated report for one calendar month.
type Monthly struct {
	Month      time.Time
	Filename   string
	Workbook   []byte
	Total      int
	ByStatus   []Count
	ByCategory []Count
}

// Reporter generates and delivers monthly reports.
type Reporter struct {
	src    Source
	mailer Mailer
	logger log.Logger
}

// New creates a Reporter. mailer may be nil when reports are only downloaded.
func New(src Source, mailer Mailer, logger log.Logger) *Reporter {
	if src == nil {
		panic(xerrors.New("report source is required"))
	}
	if logger == nil {
		logger = log.Nop()
	}
	return &Reporter{src: src, mailer: mailer, logger: logger}
}

// MonthStart returns midnight on the first day of t's month in t's location.
func MonthStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
}

// ParseMonth parses a YYYY-MM month in UTC.
func ParseMonth(s string) (time.Time, error) {
	t, err := time.Parse("2006-01", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: month must be YYYY-MM", message.ErrValidation)
	}
	return t, nil
}

// Generate builds the report for the calendar month containing month.
func (r *Reporter) Generate(ctx context.Context, month time.Time) (*Monthly, error) {
	start := MonthStart(month)
	msgs, err := r.src.Messages(ctx, message.Filter{
		Since: start,
		Until: start.AddDate(0, 1, 0),
	})
	if err != nil {
		return nil, fmt.Errorf("report: list messages: %w", err)
	}

	rep := &Monthly{
		Month:      start,
		Filename:   "Anonymous_Messages_Report_" + start.Format("January_2006") + ".xlsx",
		Total:      len(msgs),
		ByStatus:   countByStatus(msgs),
		ByCategory: countByCategory(msgs),
	}
	rep.Workbook, err = buildWorkbook(start, msgs, rep.ByStatus)
	if err != nil {
		return nil, fmt.Errorf("report: build workbook: %w", err)
	}
	return rep, nil
}

// SendMonthly mails the report for the month before now. It reports false
// without error when there is nothing to send or nobody to send it to.
func (r *Reporter) SendMonthly(ctx context.Context, now time.Time) (bool, error) {
	if r.mailer == nil {
		return false, xerrors.New("report: no mailer configured")
	}
	month := MonthStart(now).AddDate(0, -1, 0)
	L := r.logger.With("month", month.Format("2006-01"))

	rep, err := r.Generate(ctx, month)
	if err != nil {
		return false, err
	}
	if rep.Total == 0 {
		L.Info(ctx, "no messages to report")
		return false, nil
	}

	to, err := r.src.HREmail(ctx)
	if err != nil {
		return false, fmt.Errorf("report: read hr email: %w", err)
	}
	if to == "" {
		L.Warn(ctx, "hr email not configured, monthly report not sent")
		return false, nil
	}

	body, err := summaryHTML(rep)
	if err != nil {
		return false, err
	}
	err = r.mailer.SendReport(ctx, &email.Report{
		To:             to,
		Subject:        "Monthly Anonymous Messages Report - " + month.Format("January 2006"),
		HTML:           body,
		AttachmentName: rep.Filename,
		Attachment:     rep.Workbook,
	})
	if err != nil {
		return false, fmt.Errorf("report: send: %w", err)
	}
	L.Info(ctx, "monthly report sent", "messages", rep.Total)
	return true, nil
}

var reportStatuses = []message.Status{
	message.StatusSubmitted,
	message.StatusAcknowledged,
	message.StatusResolved,
}

// countByStatus tallies statuses in workflow order, omitting zero counts.
func countByStatus(msgs []*message.Message) []Count {
	n := make(map[message.Status]int, len(reportStatuses))
	for _, m := range msgs {
		n[m.Status]++
	}
	var out []Count
	for _, s := range reportStatuses {
		if n[s] > 0 {
			out = append(out, Count{Label: s.Label(), N: n[s]})
		}
	}
	return out
}

func countByCategory(msgs []*message.Message) []Count {
	n := make(map[message.Category]int, len(message.Categories))
	for _, m := range msgs {
		n[m.Category]++
	}
	var out []Count
	for _, c := range message.Categories {
		if n[c.Value] > 0 {
			out = append(out, Count{Label: c.Label, N: n[c.Value]})
		}
	}
	return out
}

func summaryHTML(rep *Monthly) (string, error) {
	var buf bytes.Buffer
	err := summaryTmpl.Execute(&buf, struct {
		Month string
		*Monthly
	}{rep.Month.Format("January 2006"), rep})
	if err != nil {
		return "", fmt.Errorf("report: render summary: %w", err)
	}
	return buf.String(), nil
}

var summaryTmpl = template.Must(template.New("summary").Parse(`<html>
<body style="font-family: Arial, sans-serif; line-height: 1.6; color: #333;">
<div style="max-width: 600px; margin: 0 auto; padding: 20px; border: 1px solid #ddd; border-radius: 8px;">
<h2 style="color: #667eea; text-align: center;">Monthly Anonymous Messages Report</h2>
<h3 style="text-align: center; color: #666;">{{.Month}}</h3>
<div style="background-color: #f8f9fa; padding: 20px; border-radius: 6px; margin: 20px 0;">
<h3 style="margin-top: 0;">Summary</h3>
<p><strong>Total Messages:</strong> {{.Total}}</p>
<h4>By Status:</h4>
<ul>{{range .ByStatus}}<li>{{.Label}}: {{.N}}</li>{{end}}</ul>
<h4>By Category:</h4>
<ul>{{range .ByCategory}}<li>{{.Label}}: {{.N}}</li>{{end}}</ul>
</div>
<p style="padding: 15px; background-color: #e8f4fd; border-left: 4px solid #0d6efd;"><strong>Attachment:</strong> the detailed spreadsheet is attached.</p>
<p style="margin-top: 30px; text-align: center; color: #888; font-size: 12px;">Sender identities are not recorded and are not part of this report.</p>
</div>
</body>
</html>
`))
