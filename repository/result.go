package repository

import (
	"net/url"
	"strconv"
)

// Result is the exported value of a repository call. Raw calls fill Item or
// Items; when a transformer ran, Resource carries its output instead. Results
// are what gets cached.
type Result[T any] struct {
	Item       *T          `json:"item,omitempty" msgpack:"item,omitempty"`
	Items      []T         `json:"items,omitempty" msgpack:"items,omitempty"`
	Pagination *Pagination `json:"pagination,omitempty" msgpack:"pagination,omitempty"`
	Resource   *Resource   `json:"resource,omitempty" msgpack:"resource,omitempty"`
}

// Transformed reports whether the result holds transformer output.
func (r *Result[T]) Transformed() bool {
	return r != nil && r.Resource != nil
}

// Empty reports whether a single-record lookup found nothing.
func (r *Result[T]) Empty() bool {
	if r == nil {
		return true
	}
	if r.Resource != nil {
		return r.Resource.Data == nil
	}
	return r.Item == nil && len(r.Items) == 0
}

// Resource is the transformed representation of one record or a collection.
type Resource struct {
	Type       string      `json:"type" msgpack:"type"`
	Data       any         `json:"data" msgpack:"data"`
	Pagination *Pagination `json:"meta,omitempty" msgpack:"meta,omitempty"`
}

// Pagination describes one page of a paginated call.
type Pagination struct {
	Total       int   `json:"total" msgpack:"total"`
	Count       int   `json:"count" msgpack:"count"`
	PerPage     int   `json:"per_page" msgpack:"per_page"`
	CurrentPage int   `json:"current_page" msgpack:"current_page"`
	TotalPages  int   `json:"total_pages" msgpack:"total_pages"`
	Links       Links `json:"links" msgpack:"links"`
}

// Links holds the previous and next page URLs, empty at either end.
type Links struct {
	Previous string `json:"previous,omitempty" msgpack:"previous,omitempty"`
	Next     string `json:"next,omitempty" msgpack:"next,omitempty"`
}

// Page is handed to the after-paginate callback before the result is exported.
// The callback may change Items or add query values carried on the links.
type Page[T any] struct {
	Items       []T
	Total       int
	PerPage     int
	CurrentPage int
	Path        string

	appends url.Values
}

// Append adds a query value to the previous and next links.
func (p *Page[T]) Append(key, value string) *Page[T] {
	if p.appends == nil {
		p.appends = url.Values{}
	}
	p.appends.Set(key, value)
	return p
}

// LastPage returns the number of the last page, at least 1.
func (p *Page[T]) LastPage() int {
	if p.PerPage <= 0 || p.Total <= 0 {
		return 1
	}
	return (p.Total + p.PerPage - 1) / p.PerPage
}

// URL returns the link to page n.
func (p *Page[T]) URL(n int) string {
	values := url.Values{}
	for k, vs := range p.appends {
		values[k] = append([]string(nil), vs...)
	}
	values.Set("page", strconv.Itoa(n))
	return p.Path + "?" + values.Encode()
}

// Pagination builds the metadata carried on the exported result. Links are
// left empty when the page has no path.
func (p *Page[T]) Pagination() *Pagination {
	last := p.LastPage()
	meta := &Pagination{
		Total:       p.Total,
		Count:       len(p.Items),
		PerPage:     p.PerPage,
		CurrentPage: p.CurrentPage,
		TotalPages:  last,
	}
	if p.Path == "" {
		return meta
	}
	if p.CurrentPage > 1 {
		meta.Links.Previous = p.URL(p.CurrentPage - 1)
	}
	if p.CurrentPage < last {
		meta.Links.Next = p.URL(p.CurrentPage + 1)
	}
	return meta
}
