// Package tags owns a user's tag set. Labels are unique per user ignoring
// case and are always stored trimmed.
package tags

import (
	"context"
	"strings"

	"github.com/mypocket/mypocket/pkg/mypocket/apperr"
	"github.com/mypocket/mypocket/pkg/mypocket/bookmarks"
	"github.com/mypocket/mypocket/pkg/mypocket/logging"
	"github.com/mypocket/mypocket/pkg/mypocket/models"
	"github.com/mypocket/mypocket/pkg/mypocket/store"
	"gorm.io/gorm"
)

// Registry manages tags
type Registry struct {
	tags   *store.TagStore
	logger *logging.Logger
}

// NewRegistry creates a new tag registry
func NewRegistry(db *gorm.DB, logger *logging.Logger) *Registry {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Registry{tags: store.NewTagStore(db), logger: logger}
}

// TagWithCount is a tag and the number of links carrying it
type TagWithCount struct {
	bookmarks.Tag
	LinkCount int64 `json:"link_count"`
}

// Create stores a new tag. A label matching an existing one ignoring case is
// a conflict; callers wanting reuse go through GetByLabel or Resolve.
func (r *Registry) Create(ctx context.Context, userID uint, label string) (*bookmarks.Tag, error) {
	label = strings.TrimSpace(label)
	if label == "" {
		return nil, apperr.Validation("Tag label is required")
	}

	existing, err := r.tags.SelectByLabel(ctx, userID, label)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, apperr.Conflict("Tag already exists")
	}

	row := models.Tag{UserID: userID, Label: label}
	if err := r.tags.Insert(ctx, &row); err != nil {
		return nil, err
	}

	r.logger.Info(ctx, "tag created", "user_id", userID, "tag_id", row.ID)
	tag := bookmarks.MapTagFromRow(row)
	return &tag, nil
}

// Rename changes a tag's label everywhere it is used
func (r *Registry) Rename(ctx context.Context, userID uint, id, newLabel string) (*bookmarks.Tag, error) {
	newLabel = strings.TrimSpace(newLabel)
	if id == "" || newLabel == "" {
		return nil, apperr.Validation("Tag id and label are required")
	}

	row, err := r.tags.SelectByID(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	clash, err := r.tags.SelectByLabel(ctx, userID, newLabel)
	if err != nil {
		return nil, err
	}
	if clash != nil && clash.ID != row.ID {
		return nil, apperr.Conflict("Tag already exists")
	}

	if row.Label != newLabel {
		row.Label = newLabel
		if err := r.tags.Update(ctx, row); err != nil {
			return nil, err
		}
		r.logger.Info(ctx, "tag renamed", "user_id", userID, "tag_id", row.ID)
	}

	tag := bookmarks.MapTagFromRow(*row)
	return &tag, nil
}

// Delete removes a tag from every link and then the tag itself
func (r *Registry) Delete(ctx context.Context, userID uint, id string) error {
	if id == "" {
		return apperr.Validation("Tag id is required")
	}
	if err := r.tags.Delete(ctx, userID, id); err != nil {
		return err
	}
	r.logger.Info(ctx, "tag deleted", "user_id", userID, "tag_id", id)
	return nil
}

// RemoveOrphaned deletes the user's tags that no link carries any more
func (r *Registry) RemoveOrphaned(ctx context.Context, userID uint) (int64, error) {
	removed, err := r.tags.RemoveOrphans(ctx, userID)
	if err != nil {
		return 0, err
	}
	if removed > 0 {
		r.logger.Info(ctx, "orphaned tags removed", "user_id", userID, "count", removed)
	}
	return removed, nil
}

// GetByLabel finds a tag ignoring case and surrounding space. It returns nil
// when there is no such tag.
func (r *Registry) GetByLabel(ctx context.Context, userID uint, label string) (*bookmarks.Tag, error) {
	label = strings.TrimSpace(label)
	if label == "" {
		return nil, apperr.Validation("Tag label is required")
	}

	row, err := r.tags.SelectByLabel(ctx, userID, label)
	if err != nil || row == nil {
		return nil, err
	}
	tag := bookmarks.MapTagFromRow(*row)
	return &tag, nil
}

// Get returns one of the user's tags
func (r *Registry) Get(ctx context.Context, userID uint, id string) (*bookmarks.Tag, error) {
	row, err := r.tags.SelectByID(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	tag := bookmarks.MapTagFromRow(*row)
	return &tag, nil
}

// List returns the user's tags ordered by label. A non-empty query keeps
// only labels containing it.
func (r *Registry) List(ctx context.Context, userID uint, query string) ([]bookmarks.Tag, error) {
	var (
		rows []models.Tag
		err  error
	)
	if strings.TrimSpace(query) == "" {
		rows, err = r.tags.SelectByUser(ctx, userID)
	} else {
		rows, err = r.tags.SelectWithQuery(ctx, userID, query)
	}
	if err != nil {
		return nil, err
	}
	return bookmarks.MapTagsFromRows(rows), nil
}

// ListWithCounts is List with the number of links per tag
func (r *Registry) ListWithCounts(ctx context.Context, userID uint, query string) ([]TagWithCount, error) {
	tags, err := r.List(ctx, userID, query)
	if err != nil {
		return nil, err
	}
	counts, err := r.tags.CountLinks(ctx, userID)
	if err != nil {
		return nil, err
	}

	result := make([]TagWithCount, len(tags))
	for i, tag := range tags {
		result[i] = TagWithCount{Tag: tag, LinkCount: counts[tag.ID]}
	}
	return result, nil
}

// Resolve returns a tag for every label, reusing existing tags and creating
// the missing ones. Labels equal ignoring case collapse into one tag; the
// result follows first appearance and skips blank labels.
func (r *Registry) Resolve(ctx context.Context, userID uint, labels []string) ([]bookmarks.Tag, error) {
	var (
		unique []string
		seen   = make(map[string]bool)
	)
	for _, label := range labels {
		label = strings.TrimSpace(label)
		key := models.LabelKey(label)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		unique = append(unique, label)
	}
	if len(unique) == 0 {
		return []bookmarks.Tag{}, nil
	}

	rows := make([]models.Tag, len(unique))
	for i, label := range unique {
		rows[i] = models.Tag{UserID: userID, Label: label}
	}
	if err := r.tags.UpsertIgnore(ctx, rows); err != nil {
		return nil, err
	}

	result := make([]bookmarks.Tag, 0, len(unique))
	for _, label := range unique {
		row, err := r.tags.SelectByLabel(ctx, userID, label)
		if err != nil {
			return nil, err
		}
		if row == nil {
			return nil, apperr.NotFound("Tag not found")
		}
		result = append(result, bookmarks.MapTagFromRow(*row))
	}
	return result, nil
}
