package model

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Invoice statuses
const (
	InvoiceStatusDraft     = "draft"
	InvoiceStatusSent      = "sent"
	InvoiceStatusPaid      = "paid"
	InvoiceStatusOverdue   = "overdue"
	InvoiceStatusCancelled = "cancelled"
)

// InvoiceItem is one billed line
type InvoiceItem struct {
	Description string  `json:"description"`
	Quantity    float64 `json:"quantity"`
	UnitPrice   float64 `json:"unitPrice"`
	Amount      float64 `json:"amount"`
}

// Invoice bills a client, optionally for one project
type Invoice struct {
	ID            string                            `json:"id" gorm:"type:varchar(36);primaryKey"`
	ClientID      string                            `json:"clientId" gorm:"type:varchar(36);index;not null"`
	ProjectID     string                            `json:"projectId,omitempty" gorm:"type:varchar(36);index"`
	InvoiceNumber string                            `json:"invoiceNumber" gorm:"type:varchar(30);uniqueIndex;not null"`
	IssueDate     time.Time                         `json:"issueDate"`
	DueDate       *time.Time                        `json:"dueDate,omitempty"`
	Items         datatypes.JSONSlice[InvoiceItem] `json:"items"`
	Subtotal      float64                           `json:"subtotal"`
	TaxRate       float64                           `json:"taxRate"`
	TaxAmount     float64                           `json:"taxAmount"`
	Total         float64                           `json:"total"`
	Status        string                            `json:"status" gorm:"type:varchar(20);index;default:draft"`
	Notes         string                            `json:"notes" gorm:"type:text"`
	SentAt        *time.Time                        `json:"sentAt,omitempty"`
	PaidAt        *time.Time                        `json:"paidAt,omitempty"`

	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`
}

// BeforeCreate assigns the id
func (i *Invoice) BeforeCreate(tx *gorm.DB) error {
	ensureID(&i.ID)
	if i.Items == nil {
		i.Items = datatypes.JSONSlice[InvoiceItem]{}
	}
	return nil
}

// IsValidInvoiceStatus reports whether s is a known invoice status
func IsValidInvoiceStatus(s string) bool {
	switch s {
	case InvoiceStatusDraft, InvoiceStatusSent, InvoiceStatusPaid, InvoiceStatusOverdue, InvoiceStatusCancelled:
		return true
	}
	return false
}
