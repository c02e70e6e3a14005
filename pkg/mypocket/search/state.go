package search

import "strings"

// State is a search session: the dashboard's filters, page and order. Every
// action returns a new snapshot and leaves the receiver untouched.
type State struct {
	Query        string
	SelectedTags []string
	CurrentPage  int
	LinksPerPage int
	SortOrder    SortOrder
}

// NewState returns the initial session state
func NewState() State {
	return State{
		SelectedTags: []string{},
		CurrentPage:  1,
		LinksPerPage: DefaultPerPage,
		SortOrder:    DefaultSortOrder,
	}
}

// ToggleTag selects or deselects a tag filter and goes back to page 1
func (s State) ToggleTag(tagID string) State {
	tags := make([]string, 0, len(s.SelectedTags)+1)
	found := false
	for _, id := range s.SelectedTags {
		if id == tagID {
			found = true
			continue
		}
		tags = append(tags, id)
	}
	if !found {
		tags = append(tags, tagID)
	}

	s.SelectedTags = tags
	s.CurrentPage = 1
	return s
}

// SetCurrentPage moves to page, never below 1
func (s State) SetCurrentPage(page int) State {
	if page < 1 {
		page = 1
	}
	s.CurrentPage = page
	return s
}

// SetSortOrder changes the order and goes back to page 1. Selecting the
// current order changes nothing.
func (s State) SetSortOrder(order SortOrder) State {
	order = ParseSortOrder(string(order))
	if s.SortOrder == order {
		return s
	}
	s.SortOrder = order
	s.CurrentPage = 1
	return s
}

// SetQuery changes the text query and goes back to page 1
func (s State) SetQuery(query string) State {
	if strings.TrimSpace(query) == strings.TrimSpace(s.Query) {
		s.Query = query
		return s
	}
	s.Query = query
	s.CurrentPage = 1
	return s
}

// Reset clears filters and restores the first page and default order
func (s State) Reset() State {
	s.Query = ""
	s.SelectedTags = []string{}
	s.CurrentPage = 1
	s.SortOrder = DefaultSortOrder
	return s
}

// IsSelected reports whether a tag filter is active
func (s State) IsSelected(tagID string) bool {
	for _, id := range s.SelectedTags {
		if id == tagID {
			return true
		}
	}
	return false
}

// Options turns the state into search inputs
func (s State) Options() Options {
	return Options{
		Query:   s.Query,
		TagIDs:  s.SelectedTags,
		Sort:    s.SortOrder,
		Page:    s.CurrentPage,
		PerPage: s.LinksPerPage,
	}
}
