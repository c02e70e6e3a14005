package store

import (
	"context"
	"errors"

	"github.com/mypocket/mypocket/pkg/mypocket/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// TagStore reads and writes tag rows
type TagStore struct {
	db *gorm.DB
}

// NewTagStore creates a new tag store
func NewTagStore(db *gorm.DB) *TagStore {
	return &TagStore{db: db}
}

// SelectByUser returns the user's tags ordered by label
func (s *TagStore) SelectByUser(ctx context.Context, userID uint) ([]models.Tag, error) {
	var tags []models.Tag
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("label_key ASC").
		Find(&tags).Error
	return tags, err
}

// SelectWithQuery returns the user's tags whose label contains query
func (s *TagStore) SelectWithQuery(ctx context.Context, userID uint, query string) ([]models.Tag, error) {
	var tags []models.Tag
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND label_key LIKE ? ESCAPE '\\'", userID, likePattern(query)).
		Order("label_key ASC").
		Find(&tags).Error
	return tags, err
}

// SelectByID returns one of the user's tags
func (s *TagStore) SelectByID(ctx context.Context, userID uint, id string) (*models.Tag, error) {
	var tag models.Tag
	err := s.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).First(&tag).Error
	if err != nil {
		return nil, translate(err, "Tag not found", "")
	}
	return &tag, nil
}

// SelectByIDs returns the user's tags among ids. Ids owned by someone else
// are left out.
func (s *TagStore) SelectByIDs(ctx context.Context, userID uint, ids []string) ([]models.Tag, error) {
	var tags []models.Tag
	for _, part := range chunk(ids, batchSize) {
		var batch []models.Tag
		if err := s.db.WithContext(ctx).Where("user_id = ? AND id IN ?", userID, part).Find(&batch).Error; err != nil {
			return nil, err
		}
		tags = append(tags, batch...)
	}
	return tags, nil
}

// SelectByLabel looks a tag up ignoring case and surrounding space. It
// returns nil without error when there is no match.
func (s *TagStore) SelectByLabel(ctx context.Context, userID uint, label string) (*models.Tag, error) {
	var tag models.Tag
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND label_key = ?", userID, models.LabelKey(label)).
		First(&tag).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &tag, nil
}

// Insert stores a new tag
func (s *TagStore) Insert(ctx context.Context, tag *models.Tag) error {
	return translate(s.db.WithContext(ctx).Create(tag).Error, "", "Tag already exists")
}

// Update saves a changed tag
func (s *TagStore) Update(ctx context.Context, tag *models.Tag) error {
	return translate(s.db.WithContext(ctx).Save(tag).Error, "Tag not found", "Tag already exists")
}

// Delete removes a tag together with its link associations
func (s *TagStore) Delete(ctx context.Context, userID uint, id string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var tag models.Tag
		if err := tx.Where("id = ? AND user_id = ?", id, userID).First(&tag).Error; err != nil {
			return translate(err, "Tag not found", "")
		}
		if err := tx.Where("tag_id = ?", tag.ID).Delete(&models.LinkTag{}).Error; err != nil {
			return err
		}
		return tx.Delete(&tag).Error
	})
}

// UpsertIgnore inserts tags, skipping any whose label the user already has
func (s *TagStore) UpsertIgnore(ctx context.Context, tags []models.Tag) error {
	if len(tags) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "label_key"}},
			DoNothing: true,
		}).
		CreateInBatches(&tags, batchSize).Error
}

// RemoveOrphans deletes the user's tags that no link uses and returns how
// many were removed.
func (s *TagStore) RemoveOrphans(ctx context.Context, userID uint) (int64, error) {
	used := s.db.Model(&models.LinkTag{}).Select("tag_id")
	result := s.db.WithContext(ctx).
		Where("user_id = ? AND id NOT IN (?)", userID, used).
		Delete(&models.Tag{})
	return result.RowsAffected, result.Error
}

// CountLinks returns the number of links per tag for the user
func (s *TagStore) CountLinks(ctx context.Context, userID uint) (map[string]int64, error) {
	var rows []struct {
		TagID string
		Count int64
	}
	err := s.db.WithContext(ctx).
		Table("link_tags").
		Select("link_tags.tag_id AS tag_id, COUNT(*) AS count").
		Joins("JOIN tags ON tags.id = link_tags.tag_id").
		Where("tags.user_id = ?", userID).
		Group("link_tags.tag_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int64, len(rows))
	for _, row := range rows {
		counts[row.TagID] = row.Count
	}
	return counts, nil
}
