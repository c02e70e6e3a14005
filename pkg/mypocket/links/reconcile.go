package links

import (
	"context"
	"strings"

	"github.com/mypocket/mypocket/pkg/mypocket/apperr"
	"github.com/mypocket/mypocket/pkg/mypocket/bookmarks"
	"github.com/mypocket/mypocket/pkg/mypocket/models"
)

// ReconcileResult reports what an edit session changed
type ReconcileResult struct {
	Created  []bookmarks.Tag `json:"created"`
	Attached []string        `json:"attached"`
	Renamed  []bookmarks.Tag `json:"renamed"`
	Detached []string        `json:"detached"`
	Link     *bookmarks.Link `json:"link"`
}

func validateDesired(desired []bookmarks.Tag) error {
	for _, tag := range desired {
		if strings.TrimSpace(tag.ID) == "" || strings.TrimSpace(tag.Label) == "" {
			return apperr.Validation("Tag id and label are required")
		}
	}
	return nil
}

// ReconcileTags makes the link's tags match desired, the result of an edit
// session. Tags with a temporary id are new: they are resolved by label,
// created when missing and attached. Stored tags whose label changed are
// renamed everywhere. Tags attached before the session but absent from
// desired are detached. Attachments and renames happen first and detachment
// is computed against the tags attached when the call started.
//
// The steps are not atomic. Each one is safe to repeat, so a failed call can
// be retried with the same input.
func (r *Repository) ReconcileTags(ctx context.Context, userID uint, linkID string, desired []bookmarks.Tag) (*ReconcileResult, error) {
	if strings.TrimSpace(linkID) == "" {
		return nil, apperr.Validation("Link id is required")
	}
	if err := validateDesired(desired); err != nil {
		return nil, err
	}

	if _, err := r.links.SelectByID(ctx, userID, linkID); err != nil {
		return nil, err
	}

	snapshot, err := r.links.TagsForLinks(ctx, []string{linkID})
	if err != nil {
		return nil, err
	}
	original := make(map[string]models.Tag, len(snapshot[linkID]))
	for _, tag := range snapshot[linkID] {
		original[tag.ID] = tag
	}

	var (
		temp  []bookmarks.Tag
		saved []bookmarks.Tag
	)
	for _, tag := range desired {
		if bookmarks.IsTempID(tag.ID) {
			temp = append(temp, tag)
		} else {
			saved = append(saved, tag)
		}
	}

	savedIDs := make([]string, len(saved))
	for i, tag := range saved {
		savedIDs[i] = tag.ID
	}
	savedIDs = uniqueIDs(savedIDs)
	stored, err := r.tags.SelectByIDs(ctx, userID, savedIDs)
	if err != nil {
		return nil, err
	}
	if len(stored) != len(savedIDs) {
		return nil, apperr.NotFound("Tag not found")
	}
	current := make(map[string]models.Tag, len(stored))
	for _, tag := range stored {
		current[tag.ID] = tag
	}

	result := &ReconcileResult{
		Created:  []bookmarks.Tag{},
		Attached: []string{},
		Renamed:  []bookmarks.Tag{},
		Detached: []string{},
	}
	keep := make(map[string]bool, len(desired))
	attached := make(map[string]bool)
	var attach []string

	// (a) new tags: resolve or create by label, then attach
	seen := make(map[string]bool, len(temp))
	for _, tag := range temp {
		key := models.LabelKey(tag.Label)
		if seen[key] {
			continue
		}
		seen[key] = true

		resolved, created, err := r.resolveLabel(ctx, userID, tag.Label)
		if err != nil {
			return nil, err
		}
		if created {
			result.Created = append(result.Created, *resolved)
		}
		// A new label naming a tag already on the link keeps it attached
		keep[resolved.ID] = true
		if _, ok := original[resolved.ID]; !ok && !attached[resolved.ID] {
			attached[resolved.ID] = true
			attach = append(attach, resolved.ID)
		}
	}
	if err := r.attach(ctx, linkID, attach, result); err != nil {
		return nil, err
	}

	// (b) stored tags: rename changed labels, attach ones not yet on the link
	attach = nil
	done := make(map[string]bool, len(saved))
	for _, tag := range saved {
		if done[tag.ID] {
			continue
		}
		done[tag.ID] = true
		keep[tag.ID] = true

		label := strings.TrimSpace(tag.Label)
		if label != current[tag.ID].Label {
			renamed, err := r.registry.Rename(ctx, userID, tag.ID, label)
			if err != nil {
				return nil, err
			}
			result.Renamed = append(result.Renamed, *renamed)
		}
		if _, ok := original[tag.ID]; !ok && !attached[tag.ID] {
			attached[tag.ID] = true
			attach = append(attach, tag.ID)
		}
	}
	if err := r.attach(ctx, linkID, attach, result); err != nil {
		return nil, err
	}

	// (c) detach what the session removed, judged against the snapshot
	for _, tag := range snapshot[linkID] {
		if keep[tag.ID] {
			continue
		}
		if err := r.links.DeleteLinkTag(ctx, linkID, tag.ID); err != nil {
			return nil, err
		}
		result.Detached = append(result.Detached, tag.ID)
	}
	if len(result.Detached) > 0 {
		if _, err := r.registry.RemoveOrphaned(ctx, userID); err != nil {
			return nil, err
		}
	}

	r.logger.Info(ctx, "link tags reconciled",
		"user_id", userID,
		"link_id", linkID,
		"created", len(result.Created),
		"attached", len(result.Attached),
		"renamed", len(result.Renamed),
		"detached", len(result.Detached),
	)

	link, err := r.Get(ctx, userID, linkID)
	if err != nil {
		return nil, err
	}
	result.Link = link
	return result, nil
}

func (r *Repository) attach(ctx context.Context, linkID string, tagIDs []string, result *ReconcileResult) error {
	if len(tagIDs) == 0 {
		return nil
	}
	if err := r.links.UpsertLinkTags(ctx, pairs(linkID, tagIDs)); err != nil {
		return err
	}
	result.Attached = append(result.Attached, tagIDs...)
	return nil
}

// resolveLabel returns the user's tag for label, creating it when missing.
// A concurrent create of the same label is absorbed by looking it up again.
func (r *Repository) resolveLabel(ctx context.Context, userID uint, label string) (*bookmarks.Tag, bool, error) {
	existing, err := r.registry.GetByLabel(ctx, userID, label)
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		return existing, false, nil
	}

	created, err := r.registry.Create(ctx, userID, label)
	if err == nil {
		return created, true, nil
	}
	if !apperr.IsConflict(err) {
		return nil, false, err
	}

	existing, err = r.registry.GetByLabel(ctx, userID, label)
	if err != nil {
		return nil, false, err
	}
	if existing == nil {
		return nil, false, apperr.NotFound("Tag not found")
	}
	return existing, false, nil
}
