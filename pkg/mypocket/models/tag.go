package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Tag represents a user-owned label. Labels are unique per user ignoring
// case; LabelKey holds the normalized form the unique index is built on.
type Tag struct {
	ID        string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	UserID    uint      `gorm:"not null;uniqueIndex:idx_tags_user_label" json:"user_id"`
	Label     string    `gorm:"not null" json:"label"`
	LabelKey  string    `gorm:"not null;uniqueIndex:idx_tags_user_label" json:"-"`
}

// LabelKey normalizes a label for case-insensitive comparison
func LabelKey(label string) string {
	return strings.ToLower(strings.TrimSpace(label))
}

// BeforeSave keeps LabelKey in sync with Label
func (t *Tag) BeforeSave(tx *gorm.DB) error {
	t.Label = strings.TrimSpace(t.Label)
	t.LabelKey = LabelKey(t.Label)
	return nil
}

// BeforeCreate assigns a UUID when the caller did not pick one
func (t *Tag) BeforeCreate(tx *gorm.DB) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	return nil
}

// LinkTag associates a tag with a link. The pair is the primary key so an
// association exists at most once.
type LinkTag struct {
	LinkID    string    `gorm:"primaryKey;type:varchar(36)" json:"link_id"`
	TagID     string    `gorm:"primaryKey;type:varchar(36);index" json:"tag_id"`
	CreatedAt time.Time `json:"created_at"`
}
