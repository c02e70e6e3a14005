// Package bookmarks defines the link and tag shapes shared by the services,
// the search engine and the HTTP layer.
package bookmarks

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mypocket/mypocket/pkg/mypocket/models"
)

// TempIDPrefix marks tags created in an edit session that are not stored yet
const TempIDPrefix = "temp-"

// Tag is a user-owned label
type Tag struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// Link is a saved bookmark with its tags in association order
type Link struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	URL       string `json:"url"`
	Note      string `json:"note"`
	Image     string `json:"image,omitempty"`
	Tags      []Tag  `json:"tags"`
	CreatedAt string `json:"created_at"` // RFC 3339
}

// IsTempID reports whether id marks an unsaved tag
func IsTempID(id string) bool {
	return strings.HasPrefix(id, TempIDPrefix)
}

// NewTempID returns a fresh temporary tag id
func NewTempID() string {
	return TempIDPrefix + uuid.NewString()
}

// MapTagFromRow converts a tag row
func MapTagFromRow(row models.Tag) Tag {
	return Tag{ID: row.ID, Label: row.Label}
}

// MapTagsFromRows converts tag rows, keeping order
func MapTagsFromRows(rows []models.Tag) []Tag {
	tags := make([]Tag, 0, len(rows))
	for _, row := range rows {
		tags = append(tags, MapTagFromRow(row))
	}
	return tags
}

// MapLinkFromRow converts a link row and its tags
func MapLinkFromRow(row models.Link, tags []models.Tag) Link {
	return Link{
		ID:        row.ID,
		Title:     row.Title,
		URL:       row.URL,
		Note:      row.Note,
		Image:     row.Image,
		Tags:      MapTagsFromRows(tags),
		CreatedAt: row.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
}

// HasTag reports whether the link carries a tag with the given id
func (l Link) HasTag(id string) bool {
	for _, tag := range l.Tags {
		if tag.ID == id {
			return true
		}
	}
	return false
}

// TagIDs returns the ids of the link's tags
func (l Link) TagIDs() []string {
	ids := make([]string, len(l.Tags))
	for i, tag := range l.Tags {
		ids[i] = tag.ID
	}
	return ids
}

// Truncate shortens s to at most max runes
func Truncate(s string, max int) string {
	if max <= 0 {
		return ""
	}
	n := 0
	for i := range s {
		if n == max {
			return s[:i]
		}
		n++
	}
	return s
}
