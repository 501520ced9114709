package model

import (
	"time"

	"gorm.io/gorm"
)

// Payment methods
const (
	PaymentMethodBankTransfer = "bank-transfer"
	PaymentMethodCard         = "card"
	PaymentMethodCash         = "cash"
	PaymentMethodOther        = "other"
)

// Payment records money received for a project, optionally against an invoice
type Payment struct {
	ID          string    `json:"id" gorm:"type:varchar(36);primaryKey"`
	ClientID    string    `json:"clientId" gorm:"type:varchar(36);index;not null"`
	ProjectID   string    `json:"projectId" gorm:"type:varchar(36);index;not null"`
	InvoiceID   string    `json:"invoiceId,omitempty" gorm:"type:varchar(36);index"`
	Amount      float64   `json:"amount" gorm:"not null"`
	PaymentDate time.Time `json:"paymentDate"`
	Method      string    `json:"method" gorm:"type:varchar(20);default:bank-transfer"`
	Reference   string    `json:"reference" gorm:"type:varchar(100)"`
	Notes       string    `json:"notes" gorm:"type:text"`

	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`
}

// BeforeCreate assigns the id
func (p *Payment) BeforeCreate(tx *gorm.DB) error {
	ensureID(&p.ID)
	return nil
}

// IsValidPaymentMethod reports whether s is a known payment method
func IsValidPaymentMethod(s string) bool {
	switch s {
	case PaymentMethodBankTransfer, PaymentMethodCard, PaymentMethodCash, PaymentMethodOther:
		return true
	}
	return false
}
