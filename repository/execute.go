package repository

import (
	"context"
	"strconv"

	"github.com/uptrace/bun"
)

// call describes one terminal read.
type call struct {
	name    string
	args    []any
	columns []string
	single  bool
	perPage int
	scope   func(*bun.SelectQuery) *bun.SelectQuery
}

type fetched[T any] struct {
	item   *T
	items  []T
	page   *Page[T]
	single bool
}

// execute runs a read through the pipeline: cache lookup, preparer, criteria,
// query, export and cache write. The scope is reset whatever the outcome.
func (r *Repository[T]) execute(ctx context.Context, c call) (*Result[T], error) {
	defer r.ResetBuilder()

	s := r.settings.clone()
	criteria := append([]Criterion[T](nil), r.criteria...)

	if c.scope != nil {
		if q := c.scope(r.query); q != nil {
			r.query = q
		}
	}

	columns, err := r.columns(c.columns)
	if err != nil {
		return nil, err
	}

	target, caching := r.resolveCache(ctx, s.cache, c)
	if caching {
		hit, ok, err := r.cacheGet(ctx, target)
		if err != nil {
			return nil, err
		}
		if ok {
			return hit, nil
		}
	}

	// preparer first, criteria may narrow further
	if !s.skipPreparer && r.preparer != nil {
		q, err := r.preparer.PrepareQuery(ctx, r.query, r.req, r.relations)
		if err != nil {
			return nil, err
		}
		if q != nil {
			r.query = q
		}
	}
	r.applyCriteria(s.skipCriteria, criteria)

	if len(columns) > 0 {
		r.query = r.query.Column(columns...)
	}

	f, err := r.fetch(ctx, s, c)
	if err != nil {
		return nil, err
	}

	res, err := r.export(ctx, s, f)
	if err != nil {
		return nil, err
	}

	if caching {
		if err := r.cachePut(ctx, target, res); err != nil {
			return nil, err
		}
	}
	return res, nil
}

func (r *Repository[T]) fetch(ctx context.Context, s settings[T], c call) (fetched[T], error) {
	dest := r.dest
	q := r.query

	switch {
	case c.perPage > 0:
		current := r.currentPage()
		total, err := q.Limit(c.perPage).Offset((current - 1) * c.perPage).ScanAndCount(ctx)
		if err != nil {
			return fetched[T]{}, err
		}
		page := &Page[T]{
			Items:       *dest,
			Total:       total,
			PerPage:     c.perPage,
			CurrentPage: current,
			Path:        r.pagePath(),
		}
		if s.afterPaginated != nil {
			s.afterPaginated(page)
		}
		return fetched[T]{items: page.Items, page: page}, nil

	case c.single:
		if err := q.Limit(1).Scan(ctx); err != nil {
			return fetched[T]{}, err
		}
		f := fetched[T]{single: true}
		if len(*dest) > 0 {
			item := (*dest)[0]
			f.item = &item
		}
		return f, nil

	default:
		if err := q.Scan(ctx); err != nil {
			return fetched[T]{}, err
		}
		return fetched[T]{items: *dest}, nil
	}
}

// columns validates requested columns. No columns or "*" selects every column.
func (r *Repository[T]) columns(cols []string) ([]string, error) {
	if len(cols) == 0 || (len(cols) == 1 && cols[0] == "*") {
		return nil, nil
	}
	for _, col := range cols {
		if !r.table.HasField(col) {
			return nil, invalidArgument("%s has no column %q", r.entity, col)
		}
	}
	return cols, nil
}

// currentPage reads the page input of the bound request, defaulting to 1.
func (r *Repository[T]) currentPage() int {
	if r.req == nil {
		return 1
	}
	page, err := strconv.Atoi(r.req.Input("page"))
	if err != nil || page < 1 {
		return 1
	}
	return page
}

func (r *Repository[T]) pagePath() string {
	if r.req == nil {
		return ""
	}
	if p := r.req.Path(); p != "/" {
		return "/" + p
	}
	return "/"
}
