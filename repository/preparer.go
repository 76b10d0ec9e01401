package repository

import (
	"context"
	"sort"

	"github.com/uptrace/bun"

	"github.com/goliatone/go-repository-kit/request"
)

// Relation declares a relation a caller may ask to have loaded, by its bun
// relation name, with the nested relations that may be loaded through it.
type Relation struct {
	Name   string
	Nested []string
}

// Relations declares a flat list of relations.
func Relations(names ...string) []Relation {
	out := make([]Relation, len(names))
	for i, name := range names {
		out[i] = Relation{Name: name}
	}
	return out
}

// RelationMap declares relations with their nested relations, ordered by name.
func RelationMap(m map[string][]string) []Relation {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]Relation, len(names))
	for i, name := range names {
		out[i] = Relation{Name: name, Nested: append([]string(nil), m[name]...)}
	}
	return out
}

// Preparer resolves request driven query parameters and relation loads.
//
// PrepareQuery narrows the scope from the request (filters, sorts, includes)
// before criteria run. Load attaches one relation, or the count of one
// relation when count is set, to a record when the request asks for it.
type Preparer interface {
	PrepareQuery(ctx context.Context, q *bun.SelectQuery, req request.Request, relations []Relation) (*bun.SelectQuery, error)
	Load(ctx context.Context, db bun.IDB, record any, req request.Request, relation, nested string, count bool) error
}

// SkipPreparer toggles the preparer. The flag stays until changed.
func (r *Repository[T]) SkipPreparer(status bool) *Repository[T] {
	r.settings.skipPreparer = status
	return r
}

// prepareRecord runs the relation loads for rec, twice per declared relation
// (data then count), and exports it.
func (r *Repository[T]) prepareRecord(ctx context.Context, s settings[T], rec *T) (*Result[T], error) {
	if rec != nil && !s.skipPreparer && r.preparer != nil {
		for _, rel := range r.relations {
			nested := rel.Nested
			if len(nested) == 0 {
				nested = []string{""}
			}
			for _, n := range nested {
				if err := r.preparer.Load(ctx, r.db, rec, r.req, rel.Name, n, false); err != nil {
					return nil, err
				}
				if err := r.preparer.Load(ctx, r.db, rec, r.req, rel.Name, n, true); err != nil {
					return nil, err
				}
			}
		}
	}
	return r.export(ctx, s, fetched[T]{item: rec, single: true})
}
