package prepare

import (
	"context"
	"reflect"
	"sort"
	"strings"

	"github.com/iancoleman/strcase"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/schema"
	"go.uber.org/zap"

	"github.com/goliatone/go-repository-kit/repository"
	"github.com/goliatone/go-repository-kit/request"
)

// Parameter names read from the request.
const (
	FilterParam  = "filter"
	SortParam    = "sort"
	IncludeParam = "include"
	countSuffix  = "_count"
)

// RelationCounter is implemented by models that want relation counts.
type RelationCounter interface {
	SetRelationCount(name string, n int)
}

// RequestPreparer is the default repository.Preparer.
type RequestPreparer struct {
	filterable map[string]struct{}
	sortable   map[string]struct{}
	logger     *zap.Logger
}

// Option configures a RequestPreparer.
type Option func(*RequestPreparer)

// WithFilterable whitelists columns for filter[column].
func WithFilterable(columns ...string) Option {
	return func(p *RequestPreparer) {
		for _, c := range columns {
			p.filterable[c] = struct{}{}
		}
	}
}

// WithSortable whitelists columns for sort.
func WithSortable(columns ...string) Option {
	return func(p *RequestPreparer) {
		for _, c := range columns {
			p.sortable[c] = struct{}{}
		}
	}
}

// WithLogger sets the logger ignored parameters are reported to.
func WithLogger(logger *zap.Logger) Option {
	return func(p *RequestPreparer) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// New creates a preparer. Without whitelists no filter or sort is applied.
func New(opts ...Option) *RequestPreparer {
	p := &RequestPreparer{
		filterable: map[string]struct{}{},
		sortable:   map[string]struct{}{},
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ForModel creates a preparer that allows filtering and sorting on every
// column bun maps for model on db.
func ForModel(db bun.IDB, model any, opts ...Option) *RequestPreparer {
	cols := Columns(db, model)
	return New(append([]Option{WithFilterable(cols...), WithSortable(cols...)}, opts...)...)
}

var _ repository.Preparer = (*RequestPreparer)(nil)

// PrepareQuery applies the filters, sorts and includes of req to q.
func (p *RequestPreparer) PrepareQuery(_ context.Context, q *bun.SelectQuery, req request.Request, relations []repository.Relation) (*bun.SelectQuery, error) {
	if req == nil {
		return q, nil
	}

	q = p.applyFilters(q, req)
	q = p.applySort(q, req.Input(SortParam))

	for _, path := range resolveIncludes(parseList(req.Input(IncludeParam)), relations) {
		q = q.Relation(path)
	}
	return q, nil
}

// Load attaches relation (or relation.nested) to record when the request
// includes it, or sets the relation count when count is set and the request
// includes <relation>_count.
func (p *RequestPreparer) Load(ctx context.Context, db bun.IDB, record any, req request.Request, relation, nested string, count bool) error {
	if req == nil || record == nil {
		return nil
	}
	includes := toSet(parseList(req.Input(IncludeParam)))
	name := strcase.ToSnake(relation)

	if count {
		if _, ok := includes[name+countSuffix]; !ok {
			return nil
		}
		counter, ok := record.(RelationCounter)
		if !ok {
			p.logger.Debug("record does not accept relation counts", zap.String("relation", relation))
			return nil
		}
		n, err := countRelation(ctx, db, record, relation)
		if err != nil {
			return err
		}
		counter.SetRelationCount(name, n)
		return nil
	}

	path := relation
	key := name
	if nested != "" {
		path = relation + "." + nested
		key = name + "." + snakePath(nested)
	}
	if _, ok := includes[key]; !ok {
		return nil
	}
	return db.NewSelect().Model(record).WherePK().Relation(path).Scan(ctx)
}

func (p *RequestPreparer) applyFilters(q *bun.SelectQuery, req request.Request) *bun.SelectQuery {
	params := req.Params()
	names := make([]string, 0, len(params))
	for name := range params {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		column, ok := filterColumn(name)
		if !ok {
			continue
		}
		if _, allowed := p.filterable[column]; !allowed {
			p.logger.Debug("ignoring filter on column", zap.String("column", column))
			continue
		}

		values := parseList(params[name])
		switch len(values) {
		case 0:
			continue
		case 1:
			q = q.Where("?TableAlias.? = ?", bun.Ident(column), values[0])
		default:
			q = q.Where("?TableAlias.? IN (?)", bun.Ident(column), bun.In(values))
		}
	}
	return q
}

func (p *RequestPreparer) applySort(q *bun.SelectQuery, raw string) *bun.SelectQuery {
	for _, item := range parseList(raw) {
		dir := "ASC"
		column := item
		if strings.HasPrefix(item, "-") {
			dir = "DESC"
			column = item[1:]
		}
		if _, allowed := p.sortable[column]; !allowed {
			p.logger.Debug("ignoring sort on column", zap.String("column", column))
			continue
		}
		q = q.OrderExpr("?TableAlias.? "+dir, bun.Ident(column))
	}
	return q
}

// resolveIncludes maps requested snake_case include paths onto declared
// relation paths.
func resolveIncludes(requested []string, relations []repository.Relation) []string {
	var out []string
	for _, want := range requested {
		if strings.HasSuffix(want, countSuffix) {
			continue
		}
		head, rest, _ := strings.Cut(want, ".")
		for _, rel := range relations {
			if strcase.ToSnake(rel.Name) != head {
				continue
			}
			if rest == "" {
				out = append(out, rel.Name)
				continue
			}
			for _, nested := range rel.Nested {
				if snakePath(nested) == rest {
					out = append(out, rel.Name+"."+nested)
				}
			}
		}
	}
	return out
}

// countRelation counts the rows relation joins to record with a COUNT query
// on the joined table, or on the pivot table for many-to-many relations.
func countRelation(ctx context.Context, db bun.IDB, record any, relation string) (int, error) {
	rv := reflect.ValueOf(record)
	if rv.Kind() != reflect.Ptr || rv.IsNil() || rv.Elem().Kind() != reflect.Struct {
		return 0, nil
	}
	strct := rv.Elem()

	rel, ok := db.Dialect().Tables().Get(strct.Type()).Relations[relation]
	if !ok {
		return 0, nil
	}

	target, joinPKs := rel.JoinTable, rel.JoinPKs
	if rel.Type == schema.ManyToManyRelation {
		target, joinPKs = rel.M2MTable, rel.M2MBasePKs
	}

	q := db.NewSelect().Model(reflect.New(target.Type).Interface())
	for i, pk := range rel.BasePKs {
		q = q.Where("?TableAlias.? = ?", bun.Ident(joinPKs[i].Name), pk.Value(strct).Interface())
	}
	if rel.PolymorphicField != nil {
		q = q.Where("?TableAlias.? = ?", bun.Ident(rel.PolymorphicField.Name), rel.PolymorphicValue)
	}
	for _, cond := range rel.Condition {
		q = q.Where(cond)
	}
	return q.Count(ctx)
}

func filterColumn(param string) (string, bool) {
	prefix := FilterParam + "["
	if !strings.HasPrefix(param, prefix) || !strings.HasSuffix(param, "]") {
		return "", false
	}
	column := param[len(prefix) : len(param)-1]
	return column, column != ""
}

func parseList(raw string) []string {
	if raw == "" {
		return nil
	}
	var out []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func snakePath(path string) string {
	parts := strings.Split(path, ".")
	for i, part := range parts {
		parts[i] = strcase.ToSnake(part)
	}
	return strings.Join(parts, ".")
}

func toSet(values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	return set
}
