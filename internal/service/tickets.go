package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"crm-service/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AppendTicketMessage adds a message to the ticket conversation. A staff
// reply to an open ticket moves it to in-progress; a client reply reopens a
// closed ticket.
func AppendTicketMessage(ctx context.Context, db *gorm.DB, ticketID, sender, body string, now time.Time) (*model.Ticket, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, Invalid("body", "is required")
	}
	if sender != model.SenderClient && sender != model.SenderStaff {
		return nil, Invalid("sender", "must be client or staff")
	}

	var t model.Ticket
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&t, "id = ?", ticketID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}

		t.Messages = append(t.Messages, model.TicketMessage{
			ID:        uuid.NewString(),
			Sender:    sender,
			Body:      body,
			CreatedAt: now,
		})

		switch {
		case sender == model.SenderStaff && t.Status == model.TicketStatusOpen:
			t.Status = model.TicketStatusInProgress
		case sender == model.SenderClient && t.Status == model.TicketStatusClosed:
			t.Status = model.TicketStatusOpen
		}

		return tx.Model(&t).Select("messages", "status").Updates(&t).Error
	})
	if err != nil {
		return nil, err
	}
	return &t, nil
}
