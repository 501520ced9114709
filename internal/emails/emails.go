// Package emails renders the CRM's transactional messages. Every template
// has a plain text and an HTML form; the HTML form escapes all fields.
package emails

import (
	"bytes"
	"fmt"
	htmltemplate "html/template"
	"strings"
	texttemplate "text/template"
	"time"

	"crm-service/internal/model"
)

// Template names, also used as metric labels
const (
	ExpiryReminderTemplate = "expiry_reminder"
	InvoiceIssuedTemplate  = "invoice_issued"
	TicketReplyTemplate    = "ticket_reply"
	AnnouncementTemplate   = "announcement"
)

// Rendered is a subject with both bodies
type Rendered struct {
	Subject string
	Text    string
	HTML    string
}

// ExpiryReminder announces an expiring domain or hosting service
type ExpiryReminder struct {
	CompanyName     string
	ClientName      string
	ServiceLabel    string
	ServiceName     string
	Provider        string
	ExpiryDate      time.Time
	DaysUntilExpiry int
}

// InvoiceIssued summarises an invoice sent to a client
type InvoiceIssued struct {
	CompanyName   string
	ClientName    string
	InvoiceNumber string
	IssueDate     time.Time
	DueDate       *time.Time
	Items         []model.InvoiceItem
	Subtotal      float64
	TaxRate       float64
	TaxAmount     float64
	Total         float64
	Notes         string
}

// TicketReply forwards a staff reply on a support ticket
type TicketReply struct {
	CompanyName string
	ClientName  string
	TicketID    string
	Subject     string
	Reply       string
}

// Announcement is a free-form message from staff
type Announcement struct {
	CompanyName string
	ClientName  string
	Subject     string
	Body        string
}

var funcs = map[string]any{
	"date":  func(t time.Time) string { return t.Format("January 2, 2006") },
	"money": func(v float64) string { return fmt.Sprintf("%.2f", v) },
	"lines": func(s string) []string { return strings.Split(strings.TrimSpace(s), "\n") },
	"when": func(days int) string {
		switch days {
		case 0:
			return "today"
		case 1:
			return "tomorrow"
		}
		return fmt.Sprintf("in %d days", days)
	},
}

var (
	htmlTemplates = htmltemplate.Must(htmltemplate.New("emails").Funcs(funcs).Parse(htmlSource))
	textTemplates = texttemplate.Must(texttemplate.New("emails").Funcs(funcs).Parse(textSource))
)

func render(name, subject string, data any) (*Rendered, error) {
	var text, html bytes.Buffer
	if err := textTemplates.ExecuteTemplate(&text, name, data); err != nil {
		return nil, fmt.Errorf("rendering %s text: %w", name, err)
	}
	if err := htmlTemplates.ExecuteTemplate(&html, name, data); err != nil {
		return nil, fmt.Errorf("rendering %s html: %w", name, err)
	}
	return &Rendered{
		Subject: subject,
		Text:    strings.TrimSpace(text.String()) + "\n",
		HTML:    html.String(),
	}, nil
}

// RenderExpiryReminder renders the expiry reminder
func RenderExpiryReminder(data ExpiryReminder) (*Rendered, error) {
	what := data.ServiceLabel
	if data.ServiceName != "" {
		what = data.ServiceLabel + " " + data.ServiceName
	}
	subject := fmt.Sprintf("Reminder: %s expires on %s", what, data.ExpiryDate.Format("2006-01-02"))
	return render(ExpiryReminderTemplate, subject, data)
}

// RenderInvoiceIssued renders the invoice summary
func RenderInvoiceIssued(data InvoiceIssued) (*Rendered, error) {
	subject := fmt.Sprintf("Invoice %s from %s", data.InvoiceNumber, data.CompanyName)
	return render(InvoiceIssuedTemplate, subject, data)
}

// RenderTicketReply renders a support reply
func RenderTicketReply(data TicketReply) (*Rendered, error) {
	return render(TicketReplyTemplate, "Re: "+data.Subject, data)
}

// RenderAnnouncement renders a staff announcement
func RenderAnnouncement(data Announcement) (*Rendered, error) {
	return render(AnnouncementTemplate, data.Subject, data)
}
