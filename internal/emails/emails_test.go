package emails

import (
	"testing"
	"time"

	"crm-service/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderExpiryReminder(t *testing.T) {
	r, err := RenderExpiryReminder(ExpiryReminder{
		CompanyName:     "Studio",
		ClientName:      "Acme",
		ServiceLabel:    "Domain",
		ServiceName:     "acme.test",
		Provider:        "Namecheap",
		ExpiryDate:      time.Date(2026, 10, 23, 0, 0, 0, 0, time.UTC),
		DaysUntilExpiry: 5,
	})
	require.NoError(t, err)

	assert.Equal(t, "Reminder: Domain acme.test expires on 2026-10-23", r.Subject)
	assert.Contains(t, r.Text, "expires in 5 days, on October 23, 2026")
	assert.Contains(t, r.Text, "Provider: Namecheap")
	assert.Contains(t, r.HTML, "<strong>acme.test</strong>")
}

func TestRenderExpiryReminderToday(t *testing.T) {
	r, err := RenderExpiryReminder(ExpiryReminder{ServiceLabel: "Hosting", ExpiryDate: time.Now()})
	require.NoError(t, err)
	assert.Contains(t, r.Text, "expires today")
	assert.NotContains(t, r.Text, "Provider:")
}

func TestHTMLIsEscaped(t *testing.T) {
	r, err := RenderAnnouncement(Announcement{
		CompanyName: "Studio",
		ClientName:  `<script>alert("x")</script>`,
		Subject:     "Maintenance",
		Body:        "Line one\nLine <b>two</b>",
	})
	require.NoError(t, err)

	assert.NotContains(t, r.HTML, "<script>")
	assert.Contains(t, r.HTML, "&lt;script&gt;")
	assert.Contains(t, r.HTML, "<p>Line one</p>")
	assert.Contains(t, r.HTML, "Line &lt;b&gt;two&lt;/b&gt;")

	// the plain part is not HTML and stays verbatim
	assert.Contains(t, r.Text, `<script>alert("x")</script>`)
}

func TestRenderInvoiceIssued(t *testing.T) {
	due := time.Date(2026, 11, 15, 0, 0, 0, 0, time.UTC)
	r, err := RenderInvoiceIssued(InvoiceIssued{
		CompanyName:   "Studio",
		ClientName:    "Acme",
		InvoiceNumber: "INV-202610-0001",
		IssueDate:     time.Date(2026, 10, 15, 0, 0, 0, 0, time.UTC),
		DueDate:       &due,
		Items: []model.InvoiceItem{
			{Description: "Design", Quantity: 2, UnitPrice: 500, Amount: 1000},
		},
		Subtotal:  1000,
		TaxRate:   10,
		TaxAmount: 100,
		Total:     1100,
	})
	require.NoError(t, err)

	assert.Equal(t, "Invoice INV-202610-0001 from Studio", r.Subject)
	assert.Contains(t, r.Text, "due on November 15, 2026")
	assert.Contains(t, r.Text, "- Design: 2 x 500.00 = 1000.00")
	assert.Contains(t, r.Text, "Total: 1100.00")
	assert.Contains(t, r.HTML, "<td>Design</td>")
}

func TestRenderTicketReply(t *testing.T) {
	r, err := RenderTicketReply(TicketReply{ClientName: "Acme", Subject: "Site down", Reply: "Fixed & deployed"})
	require.NoError(t, err)
	assert.Equal(t, "Re: Site down", r.Subject)
	assert.Contains(t, r.Text, "Fixed & deployed")
	assert.Contains(t, r.HTML, "Fixed &amp; deployed")
}
