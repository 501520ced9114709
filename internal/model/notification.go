package model

import (
	"time"

	"gorm.io/gorm"
)

// Notification types
const (
	NotificationDomainExpiry  = "domain-expiry"
	NotificationHostingExpiry = "hosting-expiry"
	NotificationGeneral       = "general"
)

// Notification references a client. Expiry notifications are produced by the
// expiry scan; after creation only IsRead/ReadAt change.
type Notification struct {
	ID              string     `json:"id" gorm:"type:varchar(36);primaryKey"`
	ClientID        string     `json:"clientId" gorm:"type:varchar(36);index;not null"`
	Type            string     `json:"type" gorm:"type:varchar(20);index;not null"`
	Title           string     `json:"title" gorm:"type:varchar(255)"`
	Message         string     `json:"message" gorm:"type:text"`
	DaysUntilExpiry int        `json:"daysUntilExpiry"`
	ExpiryDate      *time.Time `json:"expiryDate,omitempty"`
	IsRead          bool       `json:"isRead" gorm:"index"`
	ReadAt          *time.Time `json:"readAt,omitempty"`
	DedupKey        string     `json:"-" gorm:"type:varchar(120);index"`

	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`
}

// BeforeCreate assigns the id
func (n *Notification) BeforeCreate(tx *gorm.DB) error {
	ensureID(&n.ID)
	return nil
}
