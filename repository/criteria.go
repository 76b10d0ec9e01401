package repository

import (
	"fmt"
	"reflect"

	gorepo "github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
	"go.uber.org/zap"
)

// Criterion is a reusable query modification. Apply receives the active scope
// and the repository and returns the scope to continue with.
type Criterion[T any] interface {
	Apply(q *bun.SelectQuery, repo *Repository[T]) *bun.SelectQuery
}

// CriterionFunc adapts a function to Criterion.
type CriterionFunc[T any] func(q *bun.SelectQuery, repo *Repository[T]) *bun.SelectQuery

func (f CriterionFunc[T]) Apply(q *bun.SelectQuery, repo *Repository[T]) *bun.SelectQuery {
	return f(q, repo)
}

// CriterionNamer lets a criterion contribute a stable name to derived cache keys.
type CriterionNamer interface {
	CriterionName() string
}

type namedCriterion[T any] struct {
	name string
	Criterion[T]
}

func (n namedCriterion[T]) CriterionName() string { return n.name }

// Named gives c a name used when cache keys are derived from the call.
func Named[T any](name string, c Criterion[T]) Criterion[T] {
	if isNil(c) {
		return nil
	}
	return namedCriterion[T]{name: name, Criterion: c}
}

// FromSelectCriteria lets go-repository-bun select criteria be pushed as criteria.
func FromSelectCriteria[T any](name string, sc gorepo.SelectCriteria) Criterion[T] {
	if sc == nil {
		return nil
	}
	return Named[T](name, CriterionFunc[T](func(q *bun.SelectQuery, _ *Repository[T]) *bun.SelectQuery {
		return sc(q)
	}))
}

// PushCriteria appends criteria. They are applied in insertion order.
func (r *Repository[T]) PushCriteria(criteria ...Criterion[T]) *Repository[T] {
	r.criteria = append(r.criteria, criteria...)
	return r
}

// ResetCriteria drops every pushed criterion.
func (r *Repository[T]) ResetCriteria() *Repository[T] {
	r.criteria = nil
	return r
}

// SkipCriteria toggles criteria application. The flag stays until changed.
func (r *Repository[T]) SkipCriteria(status bool) *Repository[T] {
	r.settings.skipCriteria = status
	return r
}

// Criteria returns a copy of the pushed criteria.
func (r *Repository[T]) Criteria() []Criterion[T] {
	return append([]Criterion[T](nil), r.criteria...)
}

// ApplyCriteria applies the pushed criteria to the active scope, unless skipped.
func (r *Repository[T]) ApplyCriteria() *Repository[T] {
	r.applyCriteria(r.settings.skipCriteria, r.criteria)
	return r
}

// GetByCriteria applies c to the active scope right away, ignoring SkipCriteria.
func (r *Repository[T]) GetByCriteria(c Criterion[T]) *Repository[T] {
	if isNil(c) {
		return r
	}
	if q := c.Apply(r.query, r); q != nil {
		r.query = q
	}
	return r
}

func (r *Repository[T]) applyCriteria(skip bool, criteria []Criterion[T]) {
	if skip {
		return
	}
	for i, c := range criteria {
		if isNil(c) {
			r.logger.Debug("skipping nil criterion", zap.String("entity", r.entity), zap.Int("index", i))
			continue
		}
		r.GetByCriteria(c)
	}
}

func criterionName(c any) string {
	if n, ok := c.(CriterionNamer); ok {
		return n.CriterionName()
	}
	if reflect.ValueOf(c).Kind() == reflect.Func {
		// only stable for the lifetime of the process
		return fmt.Sprintf("%T@%p", c, c)
	}
	return fmt.Sprintf("%T:%+v", c, c)
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Func, reflect.Map, reflect.Slice, reflect.Interface, reflect.Chan:
		return rv.IsNil()
	}
	return false
}
