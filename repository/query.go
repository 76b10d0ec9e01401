package repository

import (
	"context"
	"strings"

	"github.com/uptrace/bun"
)

// operators WhereOp accepts, mapped to their SQL form.
var operators = map[string]string{
	"=":        "=",
	"!=":       "!=",
	"<>":       "<>",
	">":        ">",
	">=":       ">=",
	"<":        "<",
	"<=":       "<=",
	"like":     "LIKE",
	"not like": "NOT LIKE",
	"ilike":    "ILIKE",
	"in":       "IN",
	"not in":   "NOT IN",
}

// Find returns the record with the given primary key. A missing record yields
// an empty result, not an error.
func (r *Repository[T]) Find(ctx context.Context, id int64, columns ...string) (*Result[T], error) {
	return r.execute(ctx, call{
		name:    "find",
		args:    []any{id},
		columns: columns,
		single:  true,
		scope: func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Where("?TablePKs = ?", id)
		},
	})
}

// FindBy returns the first record whose attr equals value.
func (r *Repository[T]) FindBy(ctx context.Context, attr string, value any, columns ...string) (*Result[T], error) {
	if err := r.checkColumn(attr); err != nil {
		r.ResetBuilder()
		return nil, err
	}
	return r.execute(ctx, call{
		name:    "find_by",
		args:    []any{attr, value},
		columns: columns,
		single:  true,
		scope:   equals(attr, value),
	})
}

// All returns every record matching the scope.
func (r *Repository[T]) All(ctx context.Context, columns ...string) (*Result[T], error) {
	return r.execute(ctx, call{name: "all", columns: columns})
}

// Where returns the records whose attr equals value. A nil value matches NULL.
func (r *Repository[T]) Where(ctx context.Context, attr string, value any, columns ...string) (*Result[T], error) {
	if err := r.checkColumn(attr); err != nil {
		r.ResetBuilder()
		return nil, err
	}
	return r.execute(ctx, call{
		name:    "where",
		args:    []any{attr, "=", value},
		columns: columns,
		scope:   equals(attr, value),
	})
}

// WhereOp returns the records where attr compares to value with op. For "in"
// and "not in" value must be a slice.
func (r *Repository[T]) WhereOp(ctx context.Context, attr, op string, value any, columns ...string) (*Result[T], error) {
	if err := r.checkColumn(attr); err != nil {
		r.ResetBuilder()
		return nil, err
	}
	sqlOp, ok := operators[strings.ToLower(strings.TrimSpace(op))]
	if !ok {
		r.ResetBuilder()
		return nil, invalidArgument("unsupported operator %q", op)
	}

	return r.execute(ctx, call{
		name:    "where",
		args:    []any{attr, sqlOp, value},
		columns: columns,
		scope: func(q *bun.SelectQuery) *bun.SelectQuery {
			if sqlOp == "IN" || sqlOp == "NOT IN" {
				return q.Where("?TableAlias.? "+sqlOp+" (?)", bun.Ident(attr), bun.In(value))
			}
			return q.Where("?TableAlias.? "+sqlOp+" ?", bun.Ident(attr), value)
		},
	})
}

// WhereQuery lets fn modify the scope directly before the call runs.
func (r *Repository[T]) WhereQuery(ctx context.Context, fn func(q *bun.SelectQuery) *bun.SelectQuery, columns ...string) (*Result[T], error) {
	if fn == nil {
		r.ResetBuilder()
		return nil, invalidArgument("where query function must not be nil")
	}
	return r.execute(ctx, call{
		name:    "where_query",
		args:    []any{fn},
		columns: columns,
		scope:   fn,
	})
}

// Paginate returns one page of perPage records. The page number is the "page"
// input of the bound request, 1 when missing.
func (r *Repository[T]) Paginate(ctx context.Context, perPage int, columns ...string) (*Result[T], error) {
	if perPage <= 0 {
		r.ResetBuilder()
		return nil, invalidArgument("per page must be positive, got %d", perPage)
	}
	return r.execute(ctx, call{name: "paginate", columns: columns, perPage: perPage})
}

// AfterPaginated registers fn to run on every page before it is exported.
// Passing nil removes it.
func (r *Repository[T]) AfterPaginated(fn func(page *Page[T])) *Repository[T] {
	r.settings.afterPaginated = fn
	return r
}

// Prepare runs q through the pipeline as the scope. q must select into a *[]T.
func (r *Repository[T]) Prepare(ctx context.Context, q *bun.SelectQuery) (*Result[T], error) {
	if q == nil || q.GetModel() == nil {
		r.ResetBuilder()
		return nil, invalidArgument("prepare needs a query with a model")
	}
	dest, ok := q.GetModel().Value().(*[]T)
	if !ok {
		r.ResetBuilder()
		return nil, invalidArgument("prepare needs a query selecting into *[]%s, got %T", r.table.TypeName, q.GetModel().Value())
	}

	r.query, r.dest = q, dest
	return r.execute(ctx, call{name: "prepare", args: []any{q.String()}})
}

// PrepareRecord runs the relation loads on record and exports it.
func (r *Repository[T]) PrepareRecord(ctx context.Context, record *T) (*Result[T], error) {
	if record == nil {
		return nil, invalidArgument("prepare needs a record")
	}
	return r.prepareRecord(ctx, r.settings.clone(), record)
}

func (r *Repository[T]) checkColumn(attr string) error {
	if !r.table.HasField(attr) {
		return invalidArgument("%s has no column %q", r.entity, attr)
	}
	return nil
}

func equals(attr string, value any) func(*bun.SelectQuery) *bun.SelectQuery {
	return func(q *bun.SelectQuery) *bun.SelectQuery {
		if value == nil {
			return q.Where("?TableAlias.? IS NULL", bun.Ident(attr))
		}
		return q.Where("?TableAlias.? = ?", bun.Ident(attr), value)
	}
}
