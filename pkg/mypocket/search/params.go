package search

import (
	"net/url"
	"strconv"
	"strings"
)

// MaxPerPage caps the page size a client may ask for
const MaxPerPage = 100

// Query string keys
const (
	ParamQuery   = "q"
	ParamPage    = "page"
	ParamSort    = "sort"
	ParamTag     = "tag"
	ParamPerPage = "per_page"
)

// Params is a search as carried in a URL. Defaults are left out when
// encoding so equivalent searches share one canonical URL.
type Params struct {
	Query   string
	Page    int
	Sort    SortOrder
	TagIDs  []string
	PerPage int
}

// ParseParams reads search parameters. Missing or malformed values fall
// back to their defaults.
func ParseParams(values url.Values) Params {
	p := Params{
		Query:   strings.TrimSpace(values.Get(ParamQuery)),
		Page:    1,
		Sort:    ParseSortOrder(values.Get(ParamSort)),
		PerPage: DefaultPerPage,
	}

	if page, err := strconv.Atoi(values.Get(ParamPage)); err == nil && page > 0 {
		p.Page = page
	}
	if perPage, err := strconv.Atoi(values.Get(ParamPerPage)); err == nil && perPage > 0 {
		if perPage > MaxPerPage {
			perPage = MaxPerPage
		}
		p.PerPage = perPage
	}

	seen := make(map[string]bool)
	for _, id := range values[ParamTag] {
		id = strings.TrimSpace(id)
		if id != "" && !seen[id] {
			seen[id] = true
			p.TagIDs = append(p.TagIDs, id)
		}
	}

	return p
}

// Values returns the non-default parameters
func (p Params) Values() url.Values {
	values := url.Values{}
	if q := strings.TrimSpace(p.Query); q != "" {
		values.Set(ParamQuery, q)
	}
	if p.Page > 1 {
		values.Set(ParamPage, strconv.Itoa(p.Page))
	}
	if order := ParseSortOrder(string(p.Sort)); order != DefaultSortOrder {
		values.Set(ParamSort, string(order))
	}
	for _, id := range p.TagIDs {
		values.Add(ParamTag, id)
	}
	if p.PerPage > 0 && p.PerPage != DefaultPerPage {
		values.Set(ParamPerPage, strconv.Itoa(p.PerPage))
	}
	return values
}

// Encode returns the canonical query string, without a leading '?'
func (p Params) Encode() string {
	return p.Values().Encode()
}

// Options turns the parameters into search inputs
func (p Params) Options() Options {
	return Options{
		Query:   p.Query,
		TagIDs:  p.TagIDs,
		Sort:    p.Sort,
		Page:    p.Page,
		PerPage: p.PerPage,
	}
}

// State restores a session state from the parameters
func (p Params) State() State {
	s := NewState()
	s.Query = p.Query
	if len(p.TagIDs) > 0 {
		s.SelectedTags = append([]string{}, p.TagIDs...)
	}
	s.CurrentPage = p.Page
	if s.CurrentPage < 1 {
		s.CurrentPage = 1
	}
	s.SortOrder = ParseSortOrder(string(p.Sort))
	if p.PerPage > 0 {
		s.LinksPerPage = p.PerPage
	}
	return s
}

// ParamsFromState is the inverse of Params.State
func ParamsFromState(s State) Params {
	return Params{
		Query:   s.Query,
		Page:    s.CurrentPage,
		Sort:    s.SortOrder,
		TagIDs:  s.SelectedTags,
		PerPage: s.LinksPerPage,
	}
}
