// Package search filters, sorts and paginates a user's links. Everything
// here is pure: callers pass the links and the session state in explicitly.
package search

import (
	"sort"
	"strings"
	"time"

	"github.com/mypocket/mypocket/pkg/mypocket/bookmarks"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// SortOrder selects how results are ordered
type SortOrder string

const (
	SortNewest    SortOrder = "newest"
	SortOldest    SortOrder = "oldest"
	SortTitleAsc  SortOrder = "title-asc"
	SortTitleDesc SortOrder = "title-desc"
)

// DefaultSortOrder is used when none or an unknown one is given
const DefaultSortOrder = SortNewest

// DefaultPerPage is the dashboard's page size
const DefaultPerPage = 12

// ParseSortOrder returns the order named s, or DefaultSortOrder
func ParseSortOrder(s string) SortOrder {
	switch order := SortOrder(strings.ToLower(strings.TrimSpace(s))); order {
	case SortNewest, SortOldest, SortTitleAsc, SortTitleDesc:
		return order
	default:
		return DefaultSortOrder
	}
}

// Options are the inputs of one search
type Options struct {
	Query   string
	TagIDs  []string
	Sort    SortOrder
	Page    int
	PerPage int
}

// Page is one page of results plus pagination metadata
type Page struct {
	Links        []bookmarks.Link `json:"links"`
	Filtered     []bookmarks.Link `json:"-"` // every match, sorted
	TotalPages   int              `json:"total_pages"`
	CurrentPage  int              `json:"current_page"`
	TotalResults int              `json:"total_results"`
	ItemsPerPage int              `json:"items_per_page"`
}

// Paginate filters, sorts and slices links. The requested page is clamped to
// [1, TotalPages]; there is always at least one page.
func Paginate(links []bookmarks.Link, opts Options) Page {
	perPage := opts.PerPage
	if perPage <= 0 {
		perPage = DefaultPerPage
	}

	sorted := Sort(Filter(links, opts.Query, opts.TagIDs), opts.Sort)

	totalPages := (len(sorted) + perPage - 1) / perPage
	if totalPages < 1 {
		totalPages = 1
	}

	page := opts.Page
	if page < 1 {
		page = 1
	}
	if page > totalPages {
		page = totalPages
	}

	start := (page - 1) * perPage
	end := start + perPage
	if end > len(sorted) {
		end = len(sorted)
	}

	return Page{
		Links:        sorted[start:end],
		Filtered:     sorted,
		TotalPages:   totalPages,
		CurrentPage:  page,
		TotalResults: len(sorted),
		ItemsPerPage: perPage,
	}
}

// Filter keeps links whose title or URL contains query, ignoring case, and
// that carry at least one of tagIDs. Empty query or tagIDs match everything.
func Filter(links []bookmarks.Link, query string, tagIDs []string) []bookmarks.Link {
	query = strings.ToLower(strings.TrimSpace(query))

	selected := make(map[string]bool, len(tagIDs))
	for _, id := range tagIDs {
		selected[id] = true
	}

	out := make([]bookmarks.Link, 0, len(links))
	for _, link := range links {
		if matchesQuery(link, query) && matchesTags(link, selected) {
			out = append(out, link)
		}
	}
	return out
}

func matchesQuery(link bookmarks.Link, query string) bool {
	if query == "" {
		return true
	}
	return strings.Contains(strings.ToLower(link.Title), query) ||
		strings.Contains(strings.ToLower(link.URL), query)
}

func matchesTags(link bookmarks.Link, selected map[string]bool) bool {
	if len(selected) == 0 {
		return true
	}
	for _, tag := range link.Tags {
		if selected[tag.ID] {
			return true
		}
	}
	return false
}

// Sort returns a stably sorted copy of links
func Sort(links []bookmarks.Link, order SortOrder) []bookmarks.Link {
	sorted := make([]bookmarks.Link, len(links))
	copy(sorted, links)

	switch ParseSortOrder(string(order)) {
	case SortOldest:
		keys := timestamps(sorted)
		sort.Stable(byKey{links: sorted, keys: keys, less: func(a, b int64) bool { return a < b }})
	case SortTitleAsc:
		// A Collator is not safe for concurrent use
		c := collate.New(language.Und, collate.Loose)
		sort.SliceStable(sorted, func(i, j int) bool {
			return c.CompareString(sorted[i].Title, sorted[j].Title) < 0
		})
	case SortTitleDesc:
		c := collate.New(language.Und, collate.Loose)
		sort.SliceStable(sorted, func(i, j int) bool {
			return c.CompareString(sorted[j].Title, sorted[i].Title) < 0
		})
	default:
		keys := timestamps(sorted)
		sort.Stable(byKey{links: sorted, keys: keys, less: func(a, b int64) bool { return a > b }})
	}
	return sorted
}

// byKey sorts links by a precomputed key, swapping keys alongside
type byKey struct {
	links []bookmarks.Link
	keys  []int64
	less  func(a, b int64) bool
}

func (s byKey) Len() int           { return len(s.links) }
func (s byKey) Less(i, j int) bool { return s.less(s.keys[i], s.keys[j]) }
func (s byKey) Swap(i, j int) {
	s.links[i], s.links[j] = s.links[j], s.links[i]
	s.keys[i], s.keys[j] = s.keys[j], s.keys[i]
}

func timestamps(links []bookmarks.Link) []int64 {
	keys := make([]int64, len(links))
	for i, link := range links {
		keys[i] = Timestamp(link.CreatedAt)
	}
	return keys
}

// Timestamp parses an RFC 3339 creation time into Unix milliseconds. Values
// that do not parse count as the epoch.
func Timestamp(value string) int64 {
	if value == "" {
		return 0
	}
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return 0
	}
	return t.UnixMilli()
}
