package search

import (
	"fmt"
	"math/rand"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/mypocket/mypocket/pkg/mypocket/bookmarks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func link(id, title, url, createdAt string, tagIDs ...string) bookmarks.Link {
	tags := make([]bookmarks.Tag, len(tagIDs))
	for i, tagID := range tagIDs {
		tags[i] = bookmarks.Tag{ID: tagID, Label: tagID}
	}
	return bookmarks.Link{ID: id, Title: title, URL: url, CreatedAt: createdAt, Tags: tags}
}

func ids(links []bookmarks.Link) []string {
	out := make([]string, len(links))
	for i, l := range links {
		out[i] = l.ID
	}
	return out
}

// generate builds n links with shuffled dates, titles and tags
func generate(n int, seed int64) []bookmarks.Link {
	r := rand.New(rand.NewSource(seed))
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	titles := []string{"alpha", "Beta", "gamma", "Éclair", "delta", "Alpha", ""}

	links := make([]bookmarks.Link, n)
	for i := range links {
		created := base.Add(time.Duration(r.Intn(50)) * time.Hour).Format(time.RFC3339)
		if r.Intn(10) == 0 {
			created = "not a date"
		}
		links[i] = link(
			fmt.Sprintf("l%d", i),
			titles[r.Intn(len(titles))],
			fmt.Sprintf("https://site%d.example.com", r.Intn(5)),
			created,
			fmt.Sprintf("t%d", r.Intn(4)),
		)
	}
	return links
}

func TestFilterByQuery(t *testing.T) {
	links := []bookmarks.Link{
		link("1", "Go Documentation", "https://go.dev/doc", ""),
		link("2", "Rust Book", "https://doc.rust-lang.org/book", ""),
		link("3", "Recipes", "https://cooking.example.com", ""),
	}

	assert.Equal(t, []string{"1", "2"}, ids(Filter(links, "  DOC ", nil)))
	assert.Equal(t, []string{"2"}, ids(Filter(links, "rust", nil)))
	assert.Len(t, Filter(links, "", nil), 3)
	assert.Empty(t, Filter(links, "python", nil))
}

func TestFilterMatchesTitleOrURL(t *testing.T) {
	links := generate(200, 1)
	for _, query := range []string{"alpha", "SITE3", "éc", "x"} {
		q := strings.ToLower(query)
		for _, l := range Filter(links, query, nil) {
			ok := strings.Contains(strings.ToLower(l.Title), q) || strings.Contains(strings.ToLower(l.URL), q)
			assert.True(t, ok, "%q should not match %+v", query, l)
		}
	}
}

func TestFilterByTagsAndQuery(t *testing.T) {
	links := []bookmarks.Link{
		link("1", "Go", "https://go.dev", "", "lang", "docs"),
		link("2", "Rust", "https://rust-lang.org", "", "lang"),
		link("3", "Go blog", "https://go.dev/blog", "", "blog"),
		link("4", "Untagged", "https://example.com", ""),
	}

	assert.Equal(t, []string{"1", "2"}, ids(Filter(links, "", []string{"lang"})))
	assert.Equal(t, []string{"1", "3"}, ids(Filter(links, "", []string{"docs", "blog"})))
	assert.Equal(t, []string{"1"}, ids(Filter(links, "go", []string{"lang"})))
	assert.Empty(t, Filter(links, "rust", []string{"blog"}))
}

func TestSortByDate(t *testing.T) {
	links := []bookmarks.Link{
		link("old", "a", "u", "2023-01-01T00:00:00Z"),
		link("bad", "b", "u", "yesterday"),
		link("new", "c", "u", "2024-06-01T10:00:00.5Z"),
		link("mid", "d", "u", "2023-06-01T00:00:00+02:00"),
		link("empty", "e", "u", ""),
	}

	assert.Equal(t, []string{"new", "mid", "old", "bad", "empty"}, ids(Sort(links, SortNewest)))
	assert.Equal(t, []string{"bad", "empty", "old", "mid", "new"}, ids(Sort(links, SortOldest)))

	// Unknown orders sort newest first
	assert.Equal(t, ids(Sort(links, SortNewest)), ids(Sort(links, "random")))
}

func TestSortByTitle(t *testing.T) {
	links := []bookmarks.Link{
		link("1", "banana", "u", ""),
		link("2", "Apple", "u", ""),
		link("3", "éclair", "u", ""),
		link("4", "apple", "u", ""),
		link("5", "Cherry", "u", ""),
	}

	// Case and accents are ignored, ties keep their input order
	assert.Equal(t, []string{"2", "4", "1", "5", "3"}, ids(Sort(links, SortTitleAsc)))
	assert.Equal(t, []string{"3", "5", "1", "2", "4"}, ids(Sort(links, SortTitleDesc)))
}

func TestSortDoesNotMutateInput(t *testing.T) {
	links := generate(20, 2)
	before := ids(links)
	Sort(links, SortTitleAsc)
	assert.Equal(t, before, ids(links))
}

func TestSortIsIdempotent(t *testing.T) {
	links := generate(300, 3)
	for _, order := range []SortOrder{SortNewest, SortOldest, SortTitleAsc, SortTitleDesc} {
		once := Sort(links, order)
		twice := Sort(once, order)
		assert.Equal(t, ids(once), ids(twice), order)
	}
}

func TestPaginateClampsPage(t *testing.T) {
	links := generate(30, 4)

	tests := []struct {
		page int
		want int
	}{
		{-5, 1}, {0, 1}, {1, 1}, {2, 2}, {3, 3}, {4, 3}, {1 << 30, 3},
	}
	for _, tt := range tests {
		page := Paginate(links, Options{Page: tt.page})
		assert.Equal(t, tt.want, page.CurrentPage, "page %d", tt.page)
		assert.Equal(t, 3, page.TotalPages)
		assert.Equal(t, 30, page.TotalResults)
		assert.Equal(t, DefaultPerPage, page.ItemsPerPage)
		assert.LessOrEqual(t, len(page.Links), page.ItemsPerPage)
	}

	last := Paginate(links, Options{Page: 3})
	assert.Len(t, last.Links, 6)
}

func TestPaginateEmpty(t *testing.T) {
	page := Paginate(nil, Options{Page: 7, Query: "nothing"})

	assert.Equal(t, 1, page.TotalPages)
	assert.Equal(t, 1, page.CurrentPage)
	assert.Equal(t, 0, page.TotalResults)
	assert.NotNil(t, page.Links)
	assert.Empty(t, page.Links)
}

func TestPagesConcatenateToSortedSet(t *testing.T) {
	links := generate(101, 5)

	for _, perPage := range []int{1, 7, 12, 50, 200} {
		opts := Options{Sort: SortTitleAsc, TagIDs: []string{"t1", "t2"}, PerPage: perPage}
		first := Paginate(links, opts)

		var all []bookmarks.Link
		for p := 1; p <= first.TotalPages; p++ {
			opts.Page = p
			all = append(all, Paginate(links, opts).Links...)
		}

		require.Len(t, all, first.TotalResults, "per page %d", perPage)
		assert.Equal(t, ids(first.Filtered), ids(all))

		seen := map[string]bool{}
		for _, l := range all {
			assert.False(t, seen[l.ID], "link %s repeated", l.ID)
			seen[l.ID] = true
		}
	}
}

func TestParseSortOrder(t *testing.T) {
	assert.Equal(t, SortTitleDesc, ParseSortOrder(" Title-Desc "))
	assert.Equal(t, SortOldest, ParseSortOrder("oldest"))
	assert.Equal(t, SortNewest, ParseSortOrder(""))
	assert.Equal(t, SortNewest, ParseSortOrder("popular"))
}

func TestState(t *testing.T) {
	s := NewState()
	assert.Equal(t, 1, s.CurrentPage)
	assert.Equal(t, DefaultPerPage, s.LinksPerPage)
	assert.Equal(t, SortNewest, s.SortOrder)

	s = s.SetCurrentPage(4)
	assert.Equal(t, 4, s.CurrentPage)

	toggled := s.ToggleTag("a")
	assert.Equal(t, []string{"a"}, toggled.SelectedTags)
	assert.Equal(t, 1, toggled.CurrentPage)
	assert.Empty(t, s.SelectedTags, "previous snapshot is unchanged")

	toggled = toggled.ToggleTag("b").ToggleTag("a")
	assert.Equal(t, []string{"b"}, toggled.SelectedTags)
	assert.True(t, toggled.IsSelected("b"))

	s = s.SetSortOrder(SortNewest)
	assert.Equal(t, 4, s.CurrentPage, "same order keeps the page")
	s = s.SetSortOrder(SortTitleAsc)
	assert.Equal(t, 1, s.CurrentPage)
	assert.Equal(t, SortTitleAsc, s.SortOrder)

	s = s.SetCurrentPage(3).SetQuery("go")
	assert.Equal(t, 1, s.CurrentPage)
	assert.Equal(t, "go", s.Query)

	s = s.SetCurrentPage(-2)
	assert.Equal(t, 1, s.CurrentPage)

	s = s.ToggleTag("x").SetCurrentPage(5).Reset()
	assert.Empty(t, s.SelectedTags)
	assert.Equal(t, 1, s.CurrentPage)
	assert.Equal(t, SortNewest, s.SortOrder)
	assert.Empty(t, s.Query)
}

func TestStateDrivesPaginate(t *testing.T) {
	links := generate(40, 6)

	s := NewState().ToggleTag("t0").SetSortOrder(SortOldest).SetCurrentPage(2)
	page := Paginate(links, s.Options())

	expected := Sort(Filter(links, "", []string{"t0"}), SortOldest)
	assert.Equal(t, len(expected), page.TotalResults)
	assert.Equal(t, ids(expected), ids(page.Filtered))
}

func TestParams(t *testing.T) {
	values, _ := url.ParseQuery("q=%20go%20&page=3&sort=title-asc&tag=a&tag=b&tag=a&per_page=500")
	p := ParseParams(values)

	assert.Equal(t, "go", p.Query)
	assert.Equal(t, 3, p.Page)
	assert.Equal(t, SortTitleAsc, p.Sort)
	assert.Equal(t, []string{"a", "b"}, p.TagIDs)
	assert.Equal(t, MaxPerPage, p.PerPage)

	assert.Equal(t, "page=3&per_page=100&q=go&sort=title-asc&tag=a&tag=b", p.Encode())
}

func TestParamsDefaultsAreOmitted(t *testing.T) {
	values, _ := url.ParseQuery("page=zero&sort=bogus")
	p := ParseParams(values)

	assert.Equal(t, 1, p.Page)
	assert.Equal(t, SortNewest, p.Sort)
	assert.Equal(t, DefaultPerPage, p.PerPage)
	assert.Equal(t, "", p.Encode())

	assert.Equal(t, "", Params{Page: 1, Sort: SortNewest}.Encode())
}

func TestParamsStateRoundTrip(t *testing.T) {
	s := NewState().SetQuery("rust").ToggleTag("t1").SetSortOrder(SortTitleDesc).SetCurrentPage(2)

	encoded := ParamsFromState(s).Encode()
	values, err := url.ParseQuery(encoded)
	require.NoError(t, err)

	assert.Equal(t, s, ParseParams(values).State())
}
