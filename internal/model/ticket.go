package model

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Ticket statuses
const (
	TicketStatusOpen       = "open"
	TicketStatusInProgress = "in-progress"
	TicketStatusClosed     = "closed"
)

// Message senders
const (
	SenderClient = "client"
	SenderStaff  = "staff"
)

// TicketMessage is one entry of a ticket conversation, stored embedded in the ticket
type TicketMessage struct {
	ID        string    `json:"id"`
	Sender    string    `json:"sender"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"createdAt"`
}

// Ticket is a support request opened by or for a client
type Ticket struct {
	ID       string                              `json:"id" gorm:"type:varchar(36);primaryKey"`
	ClientID string                              `json:"clientId" gorm:"type:varchar(36);index;not null"`
	Subject  string                              `json:"subject" gorm:"type:varchar(255);not null"`
	Priority string                              `json:"priority" gorm:"type:varchar(10);default:medium"`
	Status   string                              `json:"status" gorm:"type:varchar(20);index;default:open"`
	Messages datatypes.JSONSlice[TicketMessage] `json:"messages"`

	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`
}

// BeforeCreate assigns the id
func (t *Ticket) BeforeCreate(tx *gorm.DB) error {
	ensureID(&t.ID)
	if t.Messages == nil {
		t.Messages = datatypes.JSONSlice[TicketMessage]{}
	}
	return nil
}

// IsValidTicketStatus reports whether s is a known ticket status
func IsValidTicketStatus(s string) bool {
	switch s {
	case TicketStatusOpen, TicketStatusInProgress, TicketStatusClosed:
		return true
	}
	return false
}
