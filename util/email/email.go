package email

import (
	"bytes"
	"context"
	"embed"
	"html/template"
	"strings"
	"time"

	"github.com/apex/log"
	"github.com/pkg/errors"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

func formatTime(format string, t time.Time) string {
	return t.Format(format)
}

var TemplateFuncs = template.FuncMap{
	"formatTime": formatTime,
	"uppercase":  strings.ToUpper,
	"lowercase":  strings.ToLower,
}

// Sender delivers templated notification emails.
type Sender interface {
	Send(ctx context.Context, recipient string, data any, templateName string) error
}

type Message struct {
	Subject   string
	PlainBody string
	HTMLBody  string
}

// Render executes the subject, plainBody and htmlBody blocks of a template.
func Render(data any, templateName string) (Message, error) {
	tmpl, err := template.New("").Funcs(TemplateFuncs).ParseFS(templateFS, "templates/"+templateName)
	if err != nil {
		return Message{}, errors.Wrapf(err, "parse template %s", templateName)
	}

	var msg Message
	blocks := []struct {
		name string
		dst  *string
	}{
		{"subject", &msg.Subject},
		{"plainBody", &msg.PlainBody},
		{"htmlBody", &msg.HTMLBody},
	}
	for _, b := range blocks {
		var buf bytes.Buffer
		if err := tmpl.ExecuteTemplate(&buf, b.name, data); err != nil {
			return Message{}, errors.Wrapf(err, "execute %s of %s", b.name, templateName)
		}
		*b.dst = strings.TrimSpace(buf.String())
	}
	return msg, nil
}

// Mailer sends through SendGrid.
type Mailer struct {
	client    *sendgrid.Client
	fromName  string
	fromEmail string
}

func NewMailer(apiKey, fromEmail, fromName string) *Mailer {
	return &Mailer{
		client:    sendgrid.NewSendClient(apiKey),
		fromName:  fromName,
		fromEmail: fromEmail,
	}
}

func (m *Mailer) Send(ctx context.Context, recipient string, data any, templateName string) error {
	msg, err := Render(data, templateName)
	if err != nil {
		return err
	}

	from := mail.NewEmail(m.fromName, m.fromEmail)
	to := mail.NewEmail(recipient, recipient)
	message := mail.NewSingleEmail(from, msg.Subject, to, msg.PlainBody, msg.HTMLBody)

	resp, err := m.client.SendWithContext(ctx, message)
	if err != nil {
		return errors.Wrap(err, "sendgrid send")
	}
	if resp.StatusCode >= 300 {
		return errors.Errorf("sendgrid returned %d: %s", resp.StatusCode, resp.Body)
	}

	log.WithFields(log.Fields{"to": recipient, "template": templateName}).Info("email sent")
	return nil
}

// LogMailer renders messages and logs them instead of sending. Used when no API key is configured.
type LogMailer struct{}

func (LogMailer) Send(_ context.Context, recipient string, data any, templateName string) error {
	msg, err := Render(data, templateName)
	if err != nil {
		return err
	}
	log.WithFields(log.Fields{"to": recipient, "subject": msg.Subject}).Info("email not sent, no provider configured")
	return nil
}
