// Package importexport moves a user's links in and out of the interchange
// CSV format.
package importexport

import (
	"context"
	"strings"
	"time"

	"github.com/mypocket/mypocket/pkg/mypocket/bookmarks"
	"github.com/mypocket/mypocket/pkg/mypocket/csvio"
	"github.com/mypocket/mypocket/pkg/mypocket/logging"
	"github.com/mypocket/mypocket/pkg/mypocket/models"
	"github.com/mypocket/mypocket/pkg/mypocket/store"
	"gorm.io/gorm"
)

// Result summarizes an import
type Result struct {
	Rows     int `json:"rows"`     // rows parsed from the file
	Imported int `json:"imported"` // links actually inserted
}

// Reconciler imports CSV rows into a user's links and tags
type Reconciler struct {
	links  *store.LinkStore
	tags   *store.TagStore
	parser csvio.Parser
	logger *logging.Logger
}

// NewReconciler creates a reconciler
func NewReconciler(db *gorm.DB, logger *logging.Logger) *Reconciler {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Reconciler{
		links:  store.NewLinkStore(db),
		tags:   store.NewTagStore(db),
		logger: logger,
	}
}

// Import parses content and merges it into the user's data. Existing links
// are never changed; only URLs the user has not saved are inserted. Steps
// are not wrapped in a transaction but each one ignores what is already
// there, so an interrupted import can simply be run again.
func (r *Reconciler) Import(ctx context.Context, userID uint, content string) (Result, error) {
	rows := r.parser.Parse(content)
	result := Result{Rows: len(rows)}
	if len(rows) == 0 {
		return result, nil
	}

	// 1. distinct labels, first spelling wins
	var newTags []models.Tag
	seen := make(map[string]bool)
	for _, row := range rows {
		for _, label := range row.Tags {
			label = strings.TrimSpace(label)
			key := models.LabelKey(label)
			if key == "" || seen[key] {
				continue
			}
			seen[key] = true
			newTags = append(newTags, models.Tag{UserID: userID, Label: label})
		}
	}

	// 2. create the missing ones
	if err := r.tags.UpsertIgnore(ctx, newTags); err != nil {
		return result, err
	}

	// 3. label key -> id over everything the user has
	all, err := r.tags.SelectByUser(ctx, userID)
	if err != nil {
		return result, err
	}
	tagIDs := make(map[string]string, len(all))
	for _, tag := range all {
		tagIDs[tag.LabelKey] = tag.ID
	}

	// 4. link records with their resolved tags
	var (
		links   []models.Link
		tagsFor = make(map[string][]string)
	)
	for _, row := range rows {
		url := bookmarks.Truncate(strings.TrimSpace(row.URL), models.MaxURLLength)
		if url == "" {
			continue
		}
		if _, dup := tagsFor[url]; dup {
			continue
		}

		title := strings.TrimSpace(row.Title)
		if title == "" {
			title = url
		}

		ids := []string{}
		attached := make(map[string]bool)
		for _, label := range row.Tags {
			id, ok := tagIDs[models.LabelKey(label)]
			if !ok || attached[id] {
				continue
			}
			attached[id] = true
			ids = append(ids, id)
		}
		tagsFor[url] = ids

		links = append(links, models.Link{
			UserID:    userID,
			URL:       url,
			Title:     bookmarks.Truncate(title, models.MaxTitleLength),
			CreatedAt: time.Unix(row.TimeAdded, 0).UTC(),
		})
	}

	// 5. insert, skipping URLs already saved
	inserted, err := r.links.UpsertIgnore(ctx, userID, links)
	if err != nil {
		return result, err
	}

	// 6. associations for the inserted links only
	urlOf := make(map[string]string, len(links))
	for _, link := range links {
		urlOf[link.ID] = link.URL
	}
	var pairs []models.LinkTag
	now := time.Now()
	for _, linkID := range inserted {
		for i, tagID := range tagsFor[urlOf[linkID]] {
			pairs = append(pairs, models.LinkTag{
				LinkID:    linkID,
				TagID:     tagID,
				CreatedAt: now.Add(time.Duration(i) * time.Microsecond),
			})
		}
	}
	if err := r.links.UpsertLinkTags(ctx, pairs); err != nil {
		return result, err
	}

	// 7. count only what was new
	result.Imported = len(inserted)
	r.logger.Info(ctx, "links imported", "user_id", userID, "rows", result.Rows, "imported", result.Imported)
	return result, nil
}

// Rows returns the user's links as interchange rows, newest first
func (r *Reconciler) Rows(ctx context.Context, userID uint) ([]csvio.Row, error) {
	links, err := r.links.SelectByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	ids := make([]string, len(links))
	for i, link := range links {
		ids[i] = link.ID
	}
	byLink, err := r.links.TagsForLinks(ctx, ids)
	if err != nil {
		return nil, err
	}

	rows := make([]csvio.Row, len(links))
	for i, link := range links {
		labels := make([]string, len(byLink[link.ID]))
		for j, tag := range byLink[link.ID] {
			labels[j] = tag.Label
		}
		rows[i] = csvio.Row{
			Title:     link.Title,
			URL:       link.URL,
			TimeAdded: link.CreatedAt.Unix(),
			Tags:      labels,
			Status:    csvio.StatusUnread,
		}
	}
	return rows, nil
}

// Export returns the user's links as CSV
func (r *Reconciler) Export(ctx context.Context, userID uint) (string, error) {
	rows, err := r.Rows(ctx, userID)
	if err != nil {
		return "", err
	}
	return csvio.Generate(rows), nil
}
