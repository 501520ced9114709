package model

import (
	"time"

	"gorm.io/gorm"
)

// Client statuses
const (
	ClientStatusActive   = "active"
	ClientStatusInactive = "inactive"
)

// Client is a customer owning projects and hosting/domain services
type Client struct {
	ID      string `json:"id" gorm:"type:varchar(36);primaryKey"`
	Name    string `json:"name" gorm:"type:varchar(150);index;not null"`
	Email   string `json:"email" gorm:"type:varchar(150);uniqueIndex:idx_clients_email,where:deleted_at IS NULL;not null"`
	Phone   string `json:"phone" gorm:"type:varchar(30)"`
	Company string `json:"company" gorm:"type:varchar(150)"`
	Address string `json:"address" gorm:"type:text"`
	Notes   string `json:"notes" gorm:"type:text"`
	Status  string `json:"status" gorm:"type:varchar(20);index;default:active"`

	HostingProvider   string     `json:"hostingProvider" gorm:"type:varchar(100)"`
	HostingExpiryDate *time.Time `json:"hostingExpiryDate,omitempty" gorm:"index"`
	HostingPrice      float64    `json:"hostingPrice"`

	DomainName       string     `json:"domainName" gorm:"type:varchar(255)"`
	DomainProvider   string     `json:"domainProvider" gorm:"type:varchar(100)"`
	DomainExpiryDate *time.Time `json:"domainExpiryDate,omitempty" gorm:"index"`
	DomainPrice      float64    `json:"domainPrice"`

	PortalEnabled      bool   `json:"portalEnabled"`
	PortalPasswordHash string `json:"-" gorm:"type:varchar(100)"`

	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`
}

// BeforeCreate assigns the id
func (c *Client) BeforeCreate(tx *gorm.DB) error {
	ensureID(&c.ID)
	return nil
}

// IsValidClientStatus reports whether s is a known client status
func IsValidClientStatus(s string) bool {
	return s == ClientStatusActive || s == ClientStatusInactive
}
