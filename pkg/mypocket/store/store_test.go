package store

import (
	"context"
	"testing"
	"time"

	"github.com/mypocket/mypocket/pkg/mypocket/apperr"
	"github.com/mypocket/mypocket/pkg/mypocket/models"
	"github.com/mypocket/mypocket/pkg/mypocket/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTagStoreSelectByLabelIgnoresCase(t *testing.T) {
	db := testutil.NewDB(t)
	user := testutil.CreateUser(t, db, "a@example.com")
	tags := NewTagStore(db)
	ctx := context.Background()

	require.NoError(t, tags.Insert(ctx, &models.Tag{UserID: user.ID, Label: "Golang"}))

	found, err := tags.SelectByLabel(ctx, user.ID, "  GOLANG ")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, "Golang", found.Label)

	missing, err := tags.SelectByLabel(ctx, user.ID, "rust")
	require.NoError(t, err)
	assert.Nil(t, missing)

	err = tags.Insert(ctx, &models.Tag{UserID: user.ID, Label: "golang"})
	assert.True(t, apperr.IsConflict(err))
}

func TestTagStoreUpsertIgnore(t *testing.T) {
	db := testutil.NewDB(t)
	user := testutil.CreateUser(t, db, "a@example.com")
	tags := NewTagStore(db)
	ctx := context.Background()

	require.NoError(t, tags.Insert(ctx, &models.Tag{UserID: user.ID, Label: "Docs"}))
	require.NoError(t, tags.UpsertIgnore(ctx, []models.Tag{
		{UserID: user.ID, Label: "docs"},
		{UserID: user.ID, Label: "guide"},
	}))

	all, err := tags.SelectByUser(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "Docs", all[0].Label, "existing label is left untouched")
	assert.Equal(t, "guide", all[1].Label)
}

func TestTagStoreSelectWithQuery(t *testing.T) {
	db := testutil.NewDB(t)
	user := testutil.CreateUser(t, db, "a@example.com")
	tags := NewTagStore(db)
	ctx := context.Background()

	require.NoError(t, tags.UpsertIgnore(ctx, []models.Tag{
		{UserID: user.ID, Label: "Go"},
		{UserID: user.ID, Label: "golang"},
		{UserID: user.ID, Label: "100%"},
		{UserID: user.ID, Label: "rust"},
	}))

	found, err := tags.SelectWithQuery(ctx, user.ID, "GO")
	require.NoError(t, err)
	assert.Len(t, found, 2)

	found, err = tags.SelectWithQuery(ctx, user.ID, "%")
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "100%", found[0].Label)
}

func TestRemoveOrphans(t *testing.T) {
	db := testutil.NewDB(t)
	user := testutil.CreateUser(t, db, "a@example.com")
	other := testutil.CreateUser(t, db, "b@example.com")
	tags := NewTagStore(db)
	links := NewLinkStore(db)
	ctx := context.Background()

	used := models.Tag{UserID: user.ID, Label: "used"}
	orphan := models.Tag{UserID: user.ID, Label: "orphan"}
	foreign := models.Tag{UserID: other.ID, Label: "orphan"}
	require.NoError(t, tags.Insert(ctx, &used))
	require.NoError(t, tags.Insert(ctx, &orphan))
	require.NoError(t, tags.Insert(ctx, &foreign))

	link := models.Link{UserID: user.ID, URL: "https://example.com", Title: "Example"}
	require.NoError(t, links.Insert(ctx, &link))
	require.NoError(t, links.InsertLinkTag(ctx, link.ID, used.ID))

	removed, err := tags.RemoveOrphans(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	// Idempotent, and other users' tags are not swept
	removed, err = tags.RemoveOrphans(ctx, user.ID)
	require.NoError(t, err)
	assert.Zero(t, removed)

	_, err = tags.SelectByID(ctx, other.ID, foreign.ID)
	assert.NoError(t, err)
}

func TestTagStoreDeleteCascades(t *testing.T) {
	db := testutil.NewDB(t)
	user := testutil.CreateUser(t, db, "a@example.com")
	tags := NewTagStore(db)
	links := NewLinkStore(db)
	ctx := context.Background()

	tag := models.Tag{UserID: user.ID, Label: "docs"}
	require.NoError(t, tags.Insert(ctx, &tag))
	link := models.Link{UserID: user.ID, URL: "https://example.com", Title: "Example"}
	require.NoError(t, links.Insert(ctx, &link))
	require.NoError(t, links.InsertLinkTag(ctx, link.ID, tag.ID))

	require.NoError(t, tags.Delete(ctx, user.ID, tag.ID))

	byLink, err := links.TagsForLinks(ctx, []string{link.ID})
	require.NoError(t, err)
	assert.Empty(t, byLink[link.ID])

	err = tags.Delete(ctx, user.ID, tag.ID)
	assert.True(t, apperr.IsNotFound(err))
}

func TestLinkStoreUpsertIgnoreReportsInserted(t *testing.T) {
	db := testutil.NewDB(t)
	user := testutil.CreateUser(t, db, "a@example.com")
	links := NewLinkStore(db)
	ctx := context.Background()

	existing := models.Link{UserID: user.ID, URL: "https://example.com/a", Title: "Original"}
	require.NoError(t, links.Insert(ctx, &existing))

	inserted, err := links.UpsertIgnore(ctx, user.ID, []models.Link{
		{UserID: user.ID, URL: "https://example.com/a", Title: "From CSV"},
		{UserID: user.ID, URL: "https://example.com/b", Title: "New"},
	})
	require.NoError(t, err)
	require.Len(t, inserted, 1)

	fresh, err := links.SelectByID(ctx, user.ID, inserted[0])
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/b", fresh.URL)

	kept, err := links.SelectByURL(ctx, user.ID, "https://example.com/a")
	require.NoError(t, err)
	assert.Equal(t, "Original", kept.Title)
}

func TestLinkStoreLinkTags(t *testing.T) {
	db := testutil.NewDB(t)
	user := testutil.CreateUser(t, db, "a@example.com")
	tags := NewTagStore(db)
	links := NewLinkStore(db)
	ctx := context.Background()

	link := models.Link{UserID: user.ID, URL: "https://example.com", Title: "Example"}
	require.NoError(t, links.Insert(ctx, &link))
	first := models.Tag{UserID: user.ID, Label: "zeta"}
	second := models.Tag{UserID: user.ID, Label: "alpha"}
	require.NoError(t, tags.Insert(ctx, &first))
	require.NoError(t, tags.Insert(ctx, &second))

	require.NoError(t, links.InsertLinkTag(ctx, link.ID, first.ID))
	time.Sleep(5 * time.Millisecond)
	require.NoError(t, links.UpsertLinkTags(ctx, []models.LinkTag{
		{LinkID: link.ID, TagID: first.ID},
		{LinkID: link.ID, TagID: second.ID},
	}))

	err := links.InsertLinkTag(ctx, link.ID, first.ID)
	assert.True(t, apperr.IsConflict(err))

	byLink, err := links.TagsForLinks(ctx, []string{link.ID})
	require.NoError(t, err)
	require.Len(t, byLink[link.ID], 2)
	assert.Equal(t, "zeta", byLink[link.ID][0].Label, "tags come back in attach order")
	assert.Equal(t, "alpha", byLink[link.ID][1].Label)

	tagged, err := links.SelectByTag(ctx, user.ID, second.ID)
	require.NoError(t, err)
	assert.Len(t, tagged, 1)

	require.NoError(t, links.DeleteLinkTag(ctx, link.ID, first.ID))
	byLink, err = links.TagsForLinks(ctx, []string{link.ID})
	require.NoError(t, err)
	assert.Len(t, byLink[link.ID], 1)
}

func TestLinkStoreScopedByUser(t *testing.T) {
	db := testutil.NewDB(t)
	owner := testutil.CreateUser(t, db, "a@example.com")
	other := testutil.CreateUser(t, db, "b@example.com")
	links := NewLinkStore(db)
	ctx := context.Background()

	link := models.Link{UserID: owner.ID, URL: "https://example.com", Title: "Example"}
	require.NoError(t, links.Insert(ctx, &link))

	_, err := links.SelectByID(ctx, other.ID, link.ID)
	assert.True(t, apperr.IsNotFound(err))

	err = links.Update(ctx, &models.Link{ID: link.ID, UserID: other.ID, Title: "x", URL: "y"})
	assert.True(t, apperr.IsNotFound(err))

	err = links.Delete(ctx, other.ID, link.ID)
	assert.True(t, apperr.IsNotFound(err))

	found, err := links.SelectWithQuery(ctx, owner.ID, "EXAMPLE")
	require.NoError(t, err)
	assert.Len(t, found, 1)

	found, err = links.SelectWithQuery(ctx, other.ID, "example")
	require.NoError(t, err)
	assert.Empty(t, found)
}
