// Package links owns a user's saved links and their tag associations.
package links

import (
	"context"
	"strings"
	"time"

	"github.com/mypocket/mypocket/pkg/mypocket/apperr"
	"github.com/mypocket/mypocket/pkg/mypocket/bookmarks"
	"github.com/mypocket/mypocket/pkg/mypocket/logging"
	"github.com/mypocket/mypocket/pkg/mypocket/metadata"
	"github.com/mypocket/mypocket/pkg/mypocket/models"
	"github.com/mypocket/mypocket/pkg/mypocket/store"
	"github.com/mypocket/mypocket/pkg/mypocket/tags"
	"gorm.io/gorm"
)

// MetadataFetcher looks up a page's title, description and image. It must
// not fail; a page that cannot be fetched yields fallback values.
type MetadataFetcher interface {
	Fetch(ctx context.Context, url string) metadata.PageMetadata
}

// Repository manages links
type Repository struct {
	links    *store.LinkStore
	tags     *store.TagStore
	registry *tags.Registry
	fetcher  MetadataFetcher
	logger   *logging.Logger
}

// NewRepository creates a link repository. A nil fetcher disables metadata
// enrichment.
func NewRepository(db *gorm.DB, registry *tags.Registry, fetcher MetadataFetcher, logger *logging.Logger) *Repository {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Repository{
		links:    store.NewLinkStore(db),
		tags:     store.NewTagStore(db),
		registry: registry,
		fetcher:  fetcher,
		logger:   logger,
	}
}

// CreateInput is a new link as entered by the user
type CreateInput struct {
	Title  string
	URL    string
	Note   string
	Image  string
	TagIDs []string
}

// UpdateInput replaces a link's editable fields
type UpdateInput struct {
	ID    string
	Title string
	URL   string
	Note  string
	Image string
}

// SaveInput is a link sent by the browser extension, tagged by label
type SaveInput struct {
	Title string
	URL   string
	Note  string
	Tags  []string
}

func normalize(title, url, note, image string) (string, string, string, string) {
	return bookmarks.Truncate(strings.TrimSpace(title), models.MaxTitleLength),
		bookmarks.Truncate(strings.TrimSpace(url), models.MaxURLLength),
		bookmarks.Truncate(strings.TrimSpace(note), models.MaxNoteLength),
		strings.TrimSpace(image)
}

// Create saves a new link, attaches the given tags and then enriches the
// link with the page's metadata.
func (r *Repository) Create(ctx context.Context, userID uint, in CreateInput) (*bookmarks.Link, error) {
	return r.create(ctx, userID, in, true)
}

// Save stores a link from the browser extension. Labels are resolved to
// tags, creating the missing ones. No metadata is fetched.
func (r *Repository) Save(ctx context.Context, userID uint, in SaveInput) (*bookmarks.Link, error) {
	if strings.TrimSpace(in.Title) == "" || strings.TrimSpace(in.URL) == "" {
		return nil, apperr.Validation("Title and URL are required")
	}

	// Conflicts are rejected before any label becomes a tag
	_, url, _, _ := normalize(in.Title, in.URL, in.Note, "")
	existing, err := r.links.SelectByURL(ctx, userID, url)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, apperr.Conflict("Link already saved")
	}

	missing, err := r.missingLabels(ctx, userID, in.Tags)
	if err != nil {
		return nil, err
	}
	resolved, err := r.registry.Resolve(ctx, userID, in.Tags)
	if err != nil {
		return nil, err
	}
	tagIDs := make([]string, len(resolved))
	for i, tag := range resolved {
		tagIDs[i] = tag.ID
	}

	link, err := r.create(ctx, userID, CreateInput{Title: in.Title, URL: in.URL, Note: in.Note, TagIDs: tagIDs}, false)
	if err != nil {
		r.dropCreatedTags(ctx, userID, resolved, missing)
		return nil, err
	}
	return link, nil
}

// missingLabels returns the keys of the labels that have no tag yet
func (r *Repository) missingLabels(ctx context.Context, userID uint, labels []string) (map[string]bool, error) {
	missing := make(map[string]bool)
	for _, label := range labels {
		key := models.LabelKey(label)
		if key == "" || missing[key] {
			continue
		}
		tag, err := r.registry.GetByLabel(ctx, userID, label)
		if err != nil {
			return nil, err
		}
		if tag == nil {
			missing[key] = true
		}
	}
	return missing, nil
}

// dropCreatedTags deletes the tags a failed save brought into existence
func (r *Repository) dropCreatedTags(ctx context.Context, userID uint, resolved []bookmarks.Tag, missing map[string]bool) {
	for _, tag := range resolved {
		if !missing[models.LabelKey(tag.Label)] {
			continue
		}
		if err := r.registry.Delete(ctx, userID, tag.ID); err != nil {
			r.logger.Warn(ctx, "failed to drop tag of failed save", "tag_id", tag.ID, "error", err)
		}
	}
}

func (r *Repository) create(ctx context.Context, userID uint, in CreateInput, enrich bool) (*bookmarks.Link, error) {
	title, url, note, image := normalize(in.Title, in.URL, in.Note, in.Image)
	if title == "" || url == "" {
		return nil, apperr.Validation("Title and URL are required")
	}

	tagIDs := uniqueIDs(in.TagIDs)
	if err := r.checkTagsOwned(ctx, userID, tagIDs); err != nil {
		return nil, err
	}

	existing, err := r.links.SelectByURL(ctx, userID, url)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, apperr.Conflict("Link already saved")
	}

	row := models.Link{UserID: userID, Title: title, URL: url, Note: note, Image: image}
	if err := r.links.Insert(ctx, &row); err != nil {
		return nil, err
	}

	if err := r.links.UpsertLinkTags(ctx, pairs(row.ID, tagIDs)); err != nil {
		return nil, err
	}

	r.logger.Info(ctx, "link created", "user_id", userID, "link_id", row.ID, "tags", len(tagIDs))

	if enrich && r.fetcher != nil {
		r.enrich(ctx, &row)
	}

	return r.Get(ctx, userID, row.ID)
}

// enrich overwrites fields with fetched metadata where the user left room
// for it. Failures leave the link as entered.
func (r *Repository) enrich(ctx context.Context, row *models.Link) {
	meta := r.fetcher.Fetch(ctx, row.URL)

	updates := map[string]interface{}{}
	fetchedTitle := strings.TrimSpace(meta.Title)
	if fetchedTitle != "" && fetchedTitle != row.URL && fetchedTitle != row.Title {
		updates["title"] = bookmarks.Truncate(fetchedTitle, models.MaxTitleLength)
	}
	description := strings.TrimSpace(meta.Description)
	if row.Note == "" && description != "" {
		updates["note"] = bookmarks.Truncate(description, models.MaxNoteLength)
	}
	image := strings.TrimSpace(meta.Image)
	if image != "" && image != row.Image {
		updates["image"] = image
	}

	if err := r.links.UpdateColumns(ctx, row.UserID, row.ID, updates); err != nil {
		r.logger.Warn(ctx, "failed to store link metadata", "link_id", row.ID, "error", err)
	}
}

// Update overwrites title, URL, note and image. Tags are left alone.
func (r *Repository) Update(ctx context.Context, userID uint, in UpdateInput) (*bookmarks.Link, error) {
	if err := validateUpdate(in); err != nil {
		return nil, err
	}
	return r.update(ctx, userID, in)
}

func validateUpdate(in UpdateInput) error {
	if strings.TrimSpace(in.ID) == "" || strings.TrimSpace(in.Title) == "" || strings.TrimSpace(in.URL) == "" {
		return apperr.Validation("ID, title and URL are required")
	}
	return nil
}

func (r *Repository) update(ctx context.Context, userID uint, in UpdateInput) (*bookmarks.Link, error) {
	title, url, note, image := normalize(in.Title, in.URL, in.Note, in.Image)
	row := models.Link{ID: strings.TrimSpace(in.ID), UserID: userID, Title: title, URL: url, Note: note, Image: image}
	if err := r.links.Update(ctx, &row); err != nil {
		return nil, err
	}

	r.logger.Info(ctx, "link updated", "user_id", userID, "link_id", row.ID)
	return r.Get(ctx, userID, row.ID)
}

// Edit applies a full edit session: the desired tag set is reconciled and
// then the fields are overwritten. Both inputs are validated before either
// write. A nil desired leaves the tags alone.
func (r *Repository) Edit(ctx context.Context, userID uint, in UpdateInput, desired []bookmarks.Tag) (*bookmarks.Link, error) {
	if err := validateUpdate(in); err != nil {
		return nil, err
	}
	if desired != nil {
		if err := validateDesired(desired); err != nil {
			return nil, err
		}
		if _, err := r.ReconcileTags(ctx, userID, in.ID, desired); err != nil {
			return nil, err
		}
	}
	return r.update(ctx, userID, in)
}

// Delete removes a link and sweeps tags it left without links
func (r *Repository) Delete(ctx context.Context, userID uint, id string) error {
	if strings.TrimSpace(id) == "" {
		return apperr.Validation("Link id is required")
	}
	if err := r.links.Delete(ctx, userID, id); err != nil {
		return err
	}
	r.logger.Info(ctx, "link deleted", "user_id", userID, "link_id", id)

	_, err := r.registry.RemoveOrphaned(ctx, userID)
	return err
}

// AddTag attaches a tag to a link. Attaching it twice is a conflict.
func (r *Repository) AddTag(ctx context.Context, userID uint, linkID, tagID string) error {
	if linkID == "" || tagID == "" {
		return apperr.Validation("Link id and tag id are required")
	}
	if _, err := r.links.SelectByID(ctx, userID, linkID); err != nil {
		return err
	}
	if _, err := r.tags.SelectByID(ctx, userID, tagID); err != nil {
		return err
	}
	return r.links.InsertLinkTag(ctx, linkID, tagID)
}

// RemoveTag detaches a tag from a link and sweeps orphaned tags
func (r *Repository) RemoveTag(ctx context.Context, userID uint, linkID, tagID string) error {
	if linkID == "" || tagID == "" {
		return apperr.Validation("Link id and tag id are required")
	}
	if _, err := r.links.SelectByID(ctx, userID, linkID); err != nil {
		return err
	}
	if err := r.links.DeleteLinkTag(ctx, linkID, tagID); err != nil {
		return err
	}

	_, err := r.registry.RemoveOrphaned(ctx, userID)
	return err
}

// Get returns a link with its tags
func (r *Repository) Get(ctx context.Context, userID uint, id string) (*bookmarks.Link, error) {
	row, err := r.links.SelectByID(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	mapped, err := r.withTags(ctx, []models.Link{*row})
	if err != nil {
		return nil, err
	}
	return &mapped[0], nil
}

// List returns every link of the user, newest first
func (r *Repository) List(ctx context.Context, userID uint) ([]bookmarks.Link, error) {
	rows, err := r.links.SelectByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return r.withTags(ctx, rows)
}

// Search returns the links whose title, URL or note contains query and that
// carry at least one of tagIDs. Empty arguments do not filter.
func (r *Repository) Search(ctx context.Context, userID uint, query string, tagIDs []string) ([]bookmarks.Link, error) {
	var (
		rows []models.Link
		err  error
	)
	if strings.TrimSpace(query) == "" {
		rows, err = r.links.SelectByUser(ctx, userID)
	} else {
		rows, err = r.links.SelectWithQuery(ctx, userID, query)
	}
	if err != nil {
		return nil, err
	}

	links, err := r.withTags(ctx, rows)
	if err != nil || len(tagIDs) == 0 {
		return links, err
	}

	filtered := links[:0]
	for _, link := range links {
		for _, id := range tagIDs {
			if link.HasTag(id) {
				filtered = append(filtered, link)
				break
			}
		}
	}
	return filtered, nil
}

// ListByTag returns the user's links carrying a tag
func (r *Repository) ListByTag(ctx context.Context, userID uint, tagID string) ([]bookmarks.Link, error) {
	if _, err := r.tags.SelectByID(ctx, userID, tagID); err != nil {
		return nil, err
	}
	rows, err := r.links.SelectByTag(ctx, userID, tagID)
	if err != nil {
		return nil, err
	}
	return r.withTags(ctx, rows)
}

func (r *Repository) withTags(ctx context.Context, rows []models.Link) ([]bookmarks.Link, error) {
	ids := make([]string, len(rows))
	for i, row := range rows {
		ids[i] = row.ID
	}

	byLink, err := r.links.TagsForLinks(ctx, ids)
	if err != nil {
		return nil, err
	}

	links := make([]bookmarks.Link, len(rows))
	for i, row := range rows {
		links[i] = bookmarks.MapLinkFromRow(row, byLink[row.ID])
	}
	return links, nil
}

func (r *Repository) checkTagsOwned(ctx context.Context, userID uint, tagIDs []string) error {
	if len(tagIDs) == 0 {
		return nil
	}
	owned, err := r.tags.SelectByIDs(ctx, userID, tagIDs)
	if err != nil {
		return err
	}
	if len(owned) != len(tagIDs) {
		return apperr.NotFound("Tag not found")
	}
	return nil
}

// pairs builds associations whose timestamps keep the given order
func pairs(linkID string, tagIDs []string) []models.LinkTag {
	now := time.Now()
	out := make([]models.LinkTag, len(tagIDs))
	for i, tagID := range tagIDs {
		out[i] = models.LinkTag{LinkID: linkID, TagID: tagID, CreatedAt: now.Add(time.Duration(i) * time.Microsecond)}
	}
	return out
}

func uniqueIDs(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
