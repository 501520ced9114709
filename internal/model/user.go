package model

import (
	"time"

	"gorm.io/gorm"
)

// Staff roles
const (
	RoleAdmin = "admin"
	RoleStaff = "staff"
)

// User is a staff account for the back office API
type User struct {
	ID           string `json:"id" gorm:"type:varchar(36);primaryKey"`
	Name         string `json:"name" gorm:"type:varchar(100);not null"`
	Email        string `json:"email" gorm:"type:varchar(150);uniqueIndex:idx_users_email,where:deleted_at IS NULL;not null"`
	PasswordHash string `json:"-" gorm:"type:varchar(100);not null"`
	Role         string `json:"role" gorm:"type:varchar(10);default:staff"`

	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`
}

// BeforeCreate assigns the id
func (u *User) BeforeCreate(tx *gorm.DB) error {
	ensureID(&u.ID)
	return nil
}
