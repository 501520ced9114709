package model

import (
	"time"

	"gorm.io/gorm"
)

// Project statuses
const (
	ProjectStatusPlanning   = "planning"
	ProjectStatusInProgress = "in-progress"
	ProjectStatusCompleted  = "completed"
	ProjectStatusOnHold     = "on-hold"
)

// Project is a unit of billable work for a client.
// AmountPaid is deliberately not bounded by Budget.
type Project struct {
	ID          string  `json:"id" gorm:"type:varchar(36);primaryKey"`
	ClientID    string  `json:"clientId" gorm:"type:varchar(36);index;not null"`
	Name        string  `json:"name" gorm:"type:varchar(200);not null"`
	Description string  `json:"description" gorm:"type:text"`
	Status      string  `json:"status" gorm:"type:varchar(20);index;default:planning"`
	Budget      float64 `json:"budget"`
	AmountPaid  float64 `json:"amountPaid"`

	StartDate         *time.Time `json:"startDate,omitempty"`
	EndDate           *time.Time `json:"endDate,omitempty"`
	DomainExpiryDate  *time.Time `json:"domainExpiryDate,omitempty"`
	HostingExpiryDate *time.Time `json:"hostingExpiryDate,omitempty"`

	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`
}

// BeforeCreate assigns the id
func (p *Project) BeforeCreate(tx *gorm.DB) error {
	ensureID(&p.ID)
	return nil
}

// IsValidProjectStatus reports whether s is a known project status
func IsValidProjectStatus(s string) bool {
	switch s {
	case ProjectStatusPlanning, ProjectStatusInProgress, ProjectStatusCompleted, ProjectStatusOnHold:
		return true
	}
	return false
}
