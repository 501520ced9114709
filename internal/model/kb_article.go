package model

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// KBArticle is a knowledge base entry; only published articles are public
type KBArticle struct {
	ID        string                       `json:"id" gorm:"type:varchar(36);primaryKey"`
	Title     string                       `json:"title" gorm:"type:varchar(255);not null"`
	Slug      string                       `json:"slug" gorm:"type:varchar(255);uniqueIndex:idx_kb_articles_slug,where:deleted_at IS NULL;not null"`
	Category  string                       `json:"category" gorm:"type:varchar(100);index"`
	Content   string                       `json:"content" gorm:"type:text"`
	Tags      datatypes.JSONSlice[string] `json:"tags"`
	Published bool                         `json:"published" gorm:"index"`
	Views     int                          `json:"views"`

	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`
}

// TableName keeps the table name short
func (KBArticle) TableName() string {
	return "kb_articles"
}

// BeforeCreate assigns the id
func (a *KBArticle) BeforeCreate(tx *gorm.DB) error {
	ensureID(&a.ID)
	if a.Tags == nil {
		a.Tags = datatypes.JSONSlice[string]{}
	}
	return nil
}
