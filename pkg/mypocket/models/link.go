package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Column limits enforced on user-supplied and fetched values
const (
	MaxTitleLength = 255
	MaxURLLength   = 2048
	MaxNoteLength  = 512
)

// Link represents a saved bookmark. A user can save a URL only once.
type Link struct {
	ID        string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	UserID    uint      `gorm:"not null;uniqueIndex:idx_links_user_url" json:"user_id"`
	URL       string    `gorm:"type:varchar(2048);not null;uniqueIndex:idx_links_user_url" json:"url"`
	Title     string    `gorm:"type:varchar(255);not null" json:"title"`
	Note      string    `gorm:"type:varchar(512)" json:"note"`
	Image     string    `json:"image"`
}

// BeforeCreate assigns a UUID when the caller did not pick one
func (l *Link) BeforeCreate(tx *gorm.DB) error {
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	return nil
}
