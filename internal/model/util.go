package model

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ensureID assigns a fresh UUID when the record has none
func ensureID(id *string) {
	if *id == "" {
		*id = uuid.NewString()
	}
}

// All returns every persisted model, in migration order
func All() []interface{} {
	return []interface{}{
		&User{},
		&Client{},
		&Project{},
		&Task{},
		&Notification{},
		&Ticket{},
		&Invoice{},
		&Payment{},
		&KBArticle{},
	}
}

// Migrate creates or updates the schema for every model
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(All()...)
}
