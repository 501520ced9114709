package service

import (
	"context"
	"errors"
	"fmt"

	"crm-service/internal/emails"
	"crm-service/internal/model"
	"crm-service/pkg/mailer"
	"crm-service/prometheus"

	"go.uber.org/zap"
)

// EmailService renders templates and hands them to a mailer.Sender
type EmailService struct {
	sender  mailer.Sender
	from    mailer.Address
	company string
	logger  *zap.Logger
}

// NewEmailService creates the service. from.Name is used as the company
// name inside templates.
func NewEmailService(sender mailer.Sender, from mailer.Address, logger *zap.Logger) *EmailService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EmailService{
		sender:  sender,
		from:    from,
		company: from.Name,
		logger:  logger,
	}
}

// BulkError reports one failed recipient
type BulkError struct {
	ClientID string `json:"clientId"`
	Email    string `json:"email"`
	Error    string `json:"error"`
}

// BulkResult aggregates a bulk send
type BulkResult struct {
	Sent   int         `json:"sent"`
	Failed int         `json:"failed"`
	Errors []BulkError `json:"errors"`
}

// ErrClientNotFound marks bulk recipients that match no client
var ErrClientNotFound = errors.New("client not found")

// AddMissing records every requested id absent from found as a failure
func (r *BulkResult) AddMissing(requested []string, found []model.Client) {
	seen := make(map[string]bool, len(found))
	for _, c := range found {
		seen[c.ID] = true
	}
	for _, id := range requested {
		if seen[id] {
			continue
		}
		seen[id] = true
		r.Failed++
		r.Errors = append(r.Errors, BulkError{ClientID: id, Error: ErrClientNotFound.Error()})
	}
}

func (s *EmailService) deliver(ctx context.Context, template string, c *model.Client, r *emails.Rendered) error {
	if c.Email == "" {
		err := fmt.Errorf("client %s: %w", c.ID, mailer.ErrNoRecipient)
		prometheus.RecordEmail(template, err)
		return err
	}

	err := s.sender.Send(ctx, &mailer.Message{
		From:    s.from,
		To:      []mailer.Address{{Name: c.Name, Email: c.Email}},
		Subject: r.Subject,
		Text:    r.Text,
		HTML:    r.HTML,
	})
	prometheus.RecordEmail(template, err)
	if err != nil {
		s.logger.Error("Failed to send email",
			zap.String("template", template),
			zap.String("client_id", c.ID),
			zap.Error(err),
		)
		return err
	}

	s.logger.Info("Email sent",
		zap.String("template", template),
		zap.String("client_id", c.ID),
	)
	return nil
}

// SendExpiryReminder emails the client about the service behind n
func (s *EmailService) SendExpiryReminder(ctx context.Context, c *model.Client, n *model.Notification) error {
	data := emails.ExpiryReminder{
		CompanyName:     s.company,
		ClientName:      c.Name,
		ServiceLabel:    serviceLabel(n.Type),
		DaysUntilExpiry: n.DaysUntilExpiry,
	}
	if n.ExpiryDate != nil {
		data.ExpiryDate = *n.ExpiryDate
	}
	if n.Type == model.NotificationDomainExpiry {
		data.ServiceName = c.DomainName
		data.Provider = c.DomainProvider
	} else {
		data.Provider = c.HostingProvider
	}

	r, err := emails.RenderExpiryReminder(data)
	if err != nil {
		return err
	}
	return s.deliver(ctx, emails.ExpiryReminderTemplate, c, r)
}

// SendInvoice emails the invoice summary
func (s *EmailService) SendInvoice(ctx context.Context, c *model.Client, inv *model.Invoice) error {
	r, err := emails.RenderInvoiceIssued(emails.InvoiceIssued{
		CompanyName:   s.company,
		ClientName:    c.Name,
		InvoiceNumber: inv.InvoiceNumber,
		IssueDate:     inv.IssueDate,
		DueDate:       inv.DueDate,
		Items:         inv.Items,
		Subtotal:      inv.Subtotal,
		TaxRate:       inv.TaxRate,
		TaxAmount:     inv.TaxAmount,
		Total:         inv.Total,
		Notes:         inv.Notes,
	})
	if err != nil {
		return err
	}
	return s.deliver(ctx, emails.InvoiceIssuedTemplate, c, r)
}

// SendTicketReply forwards a staff reply to the client
func (s *EmailService) SendTicketReply(ctx context.Context, c *model.Client, t *model.Ticket, reply string) error {
	r, err := emails.RenderTicketReply(emails.TicketReply{
		CompanyName: s.company,
		ClientName:  c.Name,
		TicketID:    t.ID,
		Subject:     t.Subject,
		Reply:       reply,
	})
	if err != nil {
		return err
	}
	return s.deliver(ctx, emails.TicketReplyTemplate, c, r)
}

// SendBulk sends one announcement per client. A failed send is recorded and
// the loop continues.
func (s *EmailService) SendBulk(ctx context.Context, clients []model.Client, subject, body string) BulkResult {
	result := BulkResult{Errors: []BulkError{}}
	for i := range clients {
		c := &clients[i]
		err := s.sendAnnouncement(ctx, c, subject, body)
		if err != nil {
			result.Failed++
			result.Errors = append(result.Errors, BulkError{
				ClientID: c.ID,
				Email:    c.Email,
				Error:    err.Error(),
			})
			if errors.Is(err, context.Canceled) {
				break
			}
			continue
		}
		result.Sent++
	}

	s.logger.Info("Bulk email finished",
		zap.Int("sent", result.Sent),
		zap.Int("failed", result.Failed),
	)
	return result
}

func (s *EmailService) sendAnnouncement(ctx context.Context, c *model.Client, subject, body string) error {
	r, err := emails.RenderAnnouncement(emails.Announcement{
		CompanyName: s.company,
		ClientName:  c.Name,
		Subject:     subject,
		Body:        body,
	})
	if err != nil {
		return err
	}
	return s.deliver(ctx, emails.AnnouncementTemplate, c, r)
}
