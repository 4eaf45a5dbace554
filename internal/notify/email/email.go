// Package email composes HR notification mail and hands it to an SMTP client.
package email

import (
	"bytes"
	"context"
	"fmt"
	htmltpl "html/template"
	texttpl "text/template"
	"time"

	"github.com/wneessen/go-mail"

	"github.com/linnemanlabs/confide/internal/message"
	"github.com/linnemanlabs/go-core/log"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Sender delivers composed messages. *mail.Client satisfies it.
type Sender interface {
	DialAndSendWithContext(ctx context.Context, messages ...*mail.Msg) error
}

// SMTPConfig holds the transport settings for NewSMTPClient.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	// TLS is one of "opportunistic", "mandatory" or "none".
	TLS     string
	Timeout time.Duration
}

// NewSMTPClient builds a go-mail client from cfg.
func NewSMTPClient(cfg SMTPConfig) (*mail.Client, error) {
	policy := mail.TLSOpportunistic
	switch cfg.TLS {
	case "mandatory":
		policy = mail.TLSMandatory
	case "none":
		policy = mail.NoTLS
	}

	opts := []mail.Option{
		mail.WithPort(cfg.Port),
		mail.WithTLSPolicy(policy),
	}
	if cfg.Timeout > 0 {
		opts = append(opts, mail.WithTimeout(cfg.Timeout))
	}
	if cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.Username),
			mail.WithPassword(cfg.Password),
		)
	}

	c, err := mail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("email: new smtp client: %w", err)
	}
	return c, nil
}

// Notifier turns message notifications into mail.
type Notifier struct {
	from   string
	sender Sender
	logger log.Logger
}

// New creates a Notifier sending from the given address.
func New(from string, sender Sender, logger log.Logger) *Notifier {
	if logger == nil {
		logger = log.Nop()
	}
	return &Notifier{from: from, sender: sender, logger: logger}
}

// Notify composes the HR notification for n and hands it to the sender.
func (n *Notifier) Notify(ctx context.Context, nt *message.Notification) error {
	msg, err := n.Compose(nt)
	if err != nil {
		return err
	}
	if err := n.sender.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("email: send notification: %w", err)
	}
	n.logger.Info(ctx, "notification handed off", "message_id", nt.MessageID, "to", nt.To)
	return nil
}

type notificationData struct {
	Category  string
	Priority  string
	Subject   string
	Submitted string
	Body      string
}

// Compose builds the notification mail: plain text with an HTML alternative.
// Only message content and timestamp are included.
func (n *Notifier) Compose(nt *message.Notification) (*mail.Msg, error) {
	msg := mail.NewMsg()
	if err := msg.From(n.from); err != nil {
		return nil, fmt.Errorf("email: from %q: %w", n.from, err)
	}
	if err := msg.To(nt.To); err != nil {
		return nil, fmt.Errorf("email: to %q: %w", nt.To, err)
	}
	msg.Subject(notificationSubject(nt))
	msg.SetDate()
	msg.SetMessageID()

	data := notificationData{
		Category:  nt.Category.Label(),
		Priority:  nt.Priority.Label(),
		Subject:   nt.Subject,
		Submitted: nt.SubmittedAt.UTC().Format("2006-01-02 15:04:05 UTC"),
		Body:      nt.Body,
	}
	if err := msg.SetBodyTextTemplate(notificationText, data); err != nil {
		return nil, fmt.Errorf("email: text body: %w", err)
	}
	if err := msg.AddAlternativeHTMLTemplate(notificationHTML, data); err != nil {
		return nil, fmt.Errorf("email: html body: %w", err)
	}
	return msg, nil
}

func notificationSubject(nt *message.Notification) string {
	if nt.Subject != "" {
		return "Anonymous Employee Message: " + nt.Subject
	}
	return "Anonymous Employee Message (" + nt.Category.Label() + ")"
}

// Report is a periodic summary with a spreadsheet attachment.
type Report struct {
	To             string
	Subject        string
	HTML           string
	AttachmentName string
	Attachment     []byte
}

// SendReport mails r with its workbook attached.
func (n *Notifier) SendReport(ctx context.Context, r *Report) error {
	msg := mail.NewMsg()
	if err := msg.From(n.from); err != nil {
		return fmt.Errorf("email: from %q: %w", n.from, err)
	}
	if err := msg.To(r.To); err != nil {
		return fmt.Errorf("email: to %q: %w", r.To, err)
	}
	msg.Subject(r.Subject)
	msg.SetDate()
	msg.SetMessageID()
	msg.SetBodyString(mail.TypeTextHTML, r.HTML)
	if len(r.Attachment) > 0 {
		if err := msg.AttachReader(r.AttachmentName, bytes.NewReader(r.Attachment),
			mail.WithFileContentType(mail.ContentType(xlsxContentType))); err != nil {
			return fmt.Errorf("email: attach %s: %w", r.AttachmentName, err)
		}
	}
	if err := n.sender.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("email: send report: %w", err)
	}
	n.logger.Info(ctx, "report handed off", "to", r.To, "attachment", r.AttachmentName)
	return nil
}

var notificationText = texttpl.Must(texttpl.New("text").Parse(`Anonymous Employee Message

Category: {{.Category}}
Priority: {{.Priority}}
{{- if .Subject}}
Subject:  {{.Subject}}
{{- end}}
Date:     {{.Submitted}}

{{.Body}}

--
This message was sent anonymously through the employee portal.
The sender's identity is not recorded.
`))

var notificationHTML = htmltpl.Must(htmltpl.New("html").Parse(`<html>
<body style="font-family: Arial, sans-serif;">
<div style="max-width: 600px; margin: 0 auto; padding: 20px; border: 1px solid #ddd;">
<h2 style="color: #2c3e50;">Anonymous Employee Message</h2>
<table style="width: 100%; margin: 20px 0;">
<tr><td style="padding: 10px; background-color: #f8f9fa;"><strong>Category:</strong></td><td style="padding: 10px;">{{.Category}}</td></tr>
<tr><td style="padding: 10px; background-color: #f8f9fa;"><strong>Priority:</strong></td><td style="padding: 10px;">{{.Priority}}</td></tr>
{{- if .Subject}}
<tr><td style="padding: 10px; background-color: #f8f9fa;"><strong>Subject:</strong></td><td style="padding: 10px;">{{.Subject}}</td></tr>
{{- end}}
<tr><td style="padding: 10px; background-color: #f8f9fa;"><strong>Date:</strong></td><td style="padding: 10px;">{{.Submitted}}</td></tr>
</table>
<hr style="border: 1px solid #ddd; margin: 20px 0;">
<div style="margin: 20px 0;"><strong>Message:</strong>
<div style="margin-top: 10px; padding: 15px; background-color: #f8f9fa; border-left: 4px solid #3498db; white-space: pre-wrap;">{{.Body}}</div>
</div>
<hr style="border: 1px solid #ddd; margin: 20px 0;">
<p style="color: #7f8c8d; font-size: 12px; font-style: italic;">This message was sent anonymously through the employee portal.<br>The sender's identity is not recorded.</p>
</div>
</body>
</html>
`))
