package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/mypocket/mypocket/pkg/mypocket/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// LinkStore reads and writes link rows and their tag associations
type LinkStore struct {
	db *gorm.DB
}

// NewLinkStore creates a new link store
func NewLinkStore(db *gorm.DB) *LinkStore {
	return &LinkStore{db: db}
}

// SelectByUser returns the user's links, newest first
func (s *LinkStore) SelectByUser(ctx context.Context, userID uint) ([]models.Link, error) {
	var links []models.Link
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&links).Error
	return links, err
}

// SelectWithQuery returns the user's links whose title, url or note contains
// query, ignoring case.
func (s *LinkStore) SelectWithQuery(ctx context.Context, userID uint, query string) ([]models.Link, error) {
	pattern := likePattern(query)

	var links []models.Link
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Where(s.db.Where("LOWER(title) LIKE ? ESCAPE '\\'", pattern).
			Or("LOWER(url) LIKE ? ESCAPE '\\'", pattern).
			Or("LOWER(note) LIKE ? ESCAPE '\\'", pattern)).
		Order("created_at DESC").
		Find(&links).Error
	return links, err
}

// SelectByTag returns the user's links carrying the tag
func (s *LinkStore) SelectByTag(ctx context.Context, userID uint, tagID string) ([]models.Link, error) {
	var links []models.Link
	err := s.db.WithContext(ctx).
		Joins("JOIN link_tags ON link_tags.link_id = links.id").
		Where("links.user_id = ? AND link_tags.tag_id = ?", userID, tagID).
		Order("links.created_at DESC").
		Find(&links).Error
	return links, err
}

// SelectByID returns one of the user's links
func (s *LinkStore) SelectByID(ctx context.Context, userID uint, id string) (*models.Link, error) {
	var link models.Link
	err := s.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).First(&link).Error
	if err != nil {
		return nil, translate(err, "Link not found", "")
	}
	return &link, nil
}

// SelectByURL returns the user's link for url, or nil when there is none
func (s *LinkStore) SelectByURL(ctx context.Context, userID uint, url string) (*models.Link, error) {
	var link models.Link
	err := s.db.WithContext(ctx).Where("user_id = ? AND url = ?", userID, url).First(&link).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &link, nil
}

// Insert stores a new link
func (s *LinkStore) Insert(ctx context.Context, link *models.Link) error {
	return translate(s.db.WithContext(ctx).Create(link).Error, "", "Link already saved")
}

// Update overwrites the editable columns of a link
func (s *LinkStore) Update(ctx context.Context, link *models.Link) error {
	result := s.db.WithContext(ctx).
		Model(&models.Link{}).
		Where("id = ? AND user_id = ?", link.ID, link.UserID).
		Updates(map[string]interface{}{
			"title": link.Title,
			"url":   link.URL,
			"note":  link.Note,
			"image": link.Image,
		})
	if result.Error != nil {
		return translate(result.Error, "Link not found", "Link already saved")
	}
	if result.RowsAffected == 0 {
		return translate(gorm.ErrRecordNotFound, "Link not found", "")
	}
	return nil
}

// UpdateColumns sets the given columns on a link
func (s *LinkStore) UpdateColumns(ctx context.Context, userID uint, id string, columns map[string]interface{}) error {
	if len(columns) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).
		Model(&models.Link{}).
		Where("id = ? AND user_id = ?", id, userID).
		Updates(columns).Error
}

// Delete removes a link together with its tag associations
func (s *LinkStore) Delete(ctx context.Context, userID uint, id string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var link models.Link
		if err := tx.Where("id = ? AND user_id = ?", id, userID).First(&link).Error; err != nil {
			return translate(err, "Link not found", "")
		}
		if err := tx.Where("link_id = ?", link.ID).Delete(&models.LinkTag{}).Error; err != nil {
			return err
		}
		return tx.Delete(&link).Error
	})
}

// UpsertIgnore inserts links, skipping URLs the user already saved. It
// returns the ids of the rows that were actually inserted.
func (s *LinkStore) UpsertIgnore(ctx context.Context, userID uint, links []models.Link) ([]string, error) {
	if len(links) == 0 {
		return nil, nil
	}

	assigned := make(map[string]bool, len(links))
	urls := make([]string, 0, len(links))
	for i := range links {
		if links[i].ID == "" {
			links[i].ID = uuid.NewString()
		}
		assigned[links[i].ID] = true
		urls = append(urls, links[i].URL)
	}

	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "url"}},
			DoNothing: true,
		}).
		CreateInBatches(&links, batchSize).Error
	if err != nil {
		return nil, err
	}

	// A skipped row keeps the id of the link that was already there
	var inserted []string
	for _, part := range chunk(urls, batchSize) {
		var ids []string
		err := s.db.WithContext(ctx).
			Model(&models.Link{}).
			Where("user_id = ? AND url IN ?", userID, part).
			Pluck("id", &ids).Error
		if err != nil {
			return nil, err
		}
		for _, id := range ids {
			if assigned[id] {
				inserted = append(inserted, id)
			}
		}
	}
	return inserted, nil
}

// InsertLinkTag attaches a tag to a link. An existing pair is a conflict.
func (s *LinkStore) InsertLinkTag(ctx context.Context, linkID, tagID string) error {
	err := s.db.WithContext(ctx).Create(&models.LinkTag{LinkID: linkID, TagID: tagID}).Error
	return translate(err, "", "Tag already added to this link")
}

// UpsertLinkTags attaches tags to links, ignoring pairs that already exist
func (s *LinkStore) UpsertLinkTags(ctx context.Context, pairs []models.LinkTag) error {
	if len(pairs) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		CreateInBatches(&pairs, batchSize).Error
}

// DeleteLinkTag detaches a tag from a link
func (s *LinkStore) DeleteLinkTag(ctx context.Context, linkID, tagID string) error {
	return s.db.WithContext(ctx).
		Where("link_id = ? AND tag_id = ?", linkID, tagID).
		Delete(&models.LinkTag{}).Error
}

// TagsForLinks returns each link's tags in the order they were attached
func (s *LinkStore) TagsForLinks(ctx context.Context, linkIDs []string) (map[string][]models.Tag, error) {
	result := make(map[string][]models.Tag, len(linkIDs))
	for _, part := range chunk(linkIDs, batchSize) {
		var rows []struct {
			LinkID string
			ID     string
			Label  string
		}
		err := s.db.WithContext(ctx).
			Table("link_tags").
			Select("link_tags.link_id AS link_id, tags.id AS id, tags.label AS label").
			Joins("JOIN tags ON tags.id = link_tags.tag_id").
			Where("link_tags.link_id IN ?", part).
			Order("link_tags.created_at ASC, tags.label_key ASC").
			Scan(&rows).Error
		if err != nil {
			return nil, err
		}
		for _, row := range rows {
			result[row.LinkID] = append(result[row.LinkID], models.Tag{ID: row.ID, Label: row.Label})
		}
	}
	return result, nil
}
