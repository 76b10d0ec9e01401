package repository

import (
	"reflect"
	"strings"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/schema"
	"go.uber.org/zap"

	"github.com/goliatone/go-repository-kit/cache"
	"github.com/goliatone/go-repository-kit/request"
)

// Repository is a data access layer over one bun model.
//
// A repository holds a query scope that terminal operations build on and
// reset when they return, an ordered list of criteria, and settings that stay
// in place until changed: skip flags, the mutator, the transformer and the
// cache directive. A Repository is not safe for concurrent use; use Scoped to
// get an independent copy per request.
type Repository[T any] struct {
	db     bun.IDB
	table  *schema.Table
	entity string

	logger     *zap.Logger
	store      cache.TagStore
	codec      cache.Codec
	keys       cache.KeySerializer
	req        request.Request
	preparer   Preparer
	relations  []Relation
	clock      func() time.Time
	defaultTTL time.Duration

	query    *bun.SelectQuery
	dest     *[]T
	criteria []Criterion[T]
	settings settings[T]
}

type settings[T any] struct {
	skipCriteria    bool
	skipTransformer bool
	skipPreparer    bool
	skipMutator     bool

	transformer    Transformer[T]
	mutator        Mutator[T]
	afterPaginated func(*Page[T])
	cache          CacheDirective
}

func (s settings[T]) clone() settings[T] {
	s.cache.Tags = append([]string(nil), s.cache.Tags...)
	return s
}

type options struct {
	logger      *zap.Logger
	store       cache.TagStore
	codec       cache.Codec
	keys        cache.KeySerializer
	req         request.Request
	preparer    Preparer
	relations   []Relation
	clock       func() time.Time
	defaultTTL  time.Duration
	entity      string
	transformer any
	mutator     any
}

// Option configures a Repository.
type Option func(*options)

// WithLogger sets the logger. Defaults to a no-op logger.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithStore sets the tag store results are cached in. Without one caching is off.
func WithStore(store cache.TagStore) Option {
	return func(o *options) { o.store = store }
}

// WithCodec sets the codec used for cached values. Defaults to msgpack.
func WithCodec(codec cache.Codec) Option {
	return func(o *options) {
		if codec != nil {
			o.codec = codec
		}
	}
}

// WithKeySerializer sets how cache keys are derived when there is neither an
// explicit key nor a request.
func WithKeySerializer(keys cache.KeySerializer) Option {
	return func(o *options) {
		if keys != nil {
			o.keys = keys
		}
	}
}

// WithRequest binds the request used for cache fingerprints, cache policy
// inputs, page numbers and the preparer.
func WithRequest(req request.Request) Option {
	return func(o *options) { o.req = req }
}

// WithPreparer sets the preparer.
func WithPreparer(p Preparer) Option {
	return func(o *options) { o.preparer = p }
}

// WithRelations declares the relations a request may ask for.
func WithRelations(relations ...Relation) Option {
	return func(o *options) { o.relations = append(o.relations, relations...) }
}

// WithClock replaces the time source used for cache expiry.
func WithClock(clock func() time.Time) Option {
	return func(o *options) {
		if clock != nil {
			o.clock = clock
		}
	}
}

// WithDefaultTTL sets the TTL CacheByTTLWhenInputs falls back to.
func WithDefaultTTL(ttl time.Duration) Option {
	return func(o *options) {
		if ttl > 0 {
			o.defaultTTL = ttl
		}
	}
}

// WithEntityTag overrides the entity tag, snake_case of the model name by default.
func WithEntityTag(tag string) Option {
	return func(o *options) { o.entity = tag }
}

// WithTransformer binds a default transformer. It must implement Transformer[T].
func WithTransformer(t any) Option {
	return func(o *options) { o.transformer = t }
}

// WithMutator binds a default mutator. It must implement Mutator[T].
func WithMutator(m any) Option {
	return func(o *options) { o.mutator = m }
}

// New creates a repository for the bun model T.
//
// T must be a struct with exactly one primary key. Relation declarations and
// the default transformer and mutator are checked here rather than on first use.
func New[T any](db bun.IDB, opts ...Option) (*Repository[T], error) {
	typ := reflect.TypeOf((*T)(nil)).Elem()
	if typ.Kind() != reflect.Struct {
		return nil, contractViolation("model %s must be a struct", typ)
	}
	if db == nil {
		return nil, invalidArgument("repository for %s needs a database", typ.Name())
	}

	table := db.Dialect().Tables().Get(typ)
	if len(table.PKs) != 1 {
		return nil, contractViolation("model %s must have exactly one primary key, has %d", typ.Name(), len(table.PKs))
	}

	o := options{
		logger:     zap.NewNop(),
		codec:      cache.NewMsgpackCodec(),
		keys:       cache.NewDefaultKeySerializer(),
		clock:      time.Now,
		defaultTTL: cache.DefaultTTL,
		entity:     entityName(typ.Name()),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	if o.entity == "" {
		return nil, invalidArgument("entity tag for %s must not be empty", typ.Name())
	}

	if err := checkRelations(table, o.relations); err != nil {
		return nil, err
	}

	r := &Repository[T]{
		db:         db,
		table:      table,
		entity:     o.entity,
		logger:     o.logger,
		store:      o.store,
		codec:      o.codec,
		keys:       o.keys,
		req:        o.req,
		preparer:   o.preparer,
		relations:  o.relations,
		clock:      o.clock,
		defaultTTL: o.defaultTTL,
	}

	if o.transformer != nil {
		t, ok := o.transformer.(Transformer[T])
		if !ok {
			return nil, contractViolation("%T does not transform %s records", o.transformer, typ.Name())
		}
		r.settings.transformer = t
	}
	if o.mutator != nil {
		m, ok := o.mutator.(Mutator[T])
		if !ok {
			return nil, contractViolation("%T does not mutate %s records", o.mutator, typ.Name())
		}
		r.settings.mutator = m
	}

	r.ResetBuilder()
	return r, nil
}

// MustNew is New that panics on error.
func MustNew[T any](db bun.IDB, opts ...Option) *Repository[T] {
	r, err := New[T](db, opts...)
	if err != nil {
		panic(err)
	}
	return r
}

// ResetBuilder discards the active scope and starts a fresh one.
func (r *Repository[T]) ResetBuilder() *Repository[T] {
	r.dest = new([]T)
	r.query = r.db.NewSelect().Model(r.dest)
	return r
}

// Query returns the active scope.
func (r *Repository[T]) Query() *bun.SelectQuery {
	return r.query
}

// DB returns the database the repository runs on.
func (r *Repository[T]) DB() bun.IDB {
	return r.db
}

// Entity returns the entity tag every cached result carries.
func (r *Repository[T]) Entity() string {
	return r.entity
}

// Request returns the bound request, if any.
func (r *Repository[T]) Request() request.Request {
	return r.req
}

// ForRequest binds req. Like the other settings it stays until changed.
func (r *Repository[T]) ForRequest(req request.Request) *Repository[T] {
	r.req = req
	return r
}

// Scoped returns a copy with its own settings, criteria and scope. Changes made
// on the copy never reach r.
func (r *Repository[T]) Scoped() *Repository[T] {
	cp := *r
	cp.criteria = append([]Criterion[T](nil), r.criteria...)
	cp.settings = r.settings.clone()
	cp.ResetBuilder()
	return &cp
}

func checkRelations(table *schema.Table, relations []Relation) error {
	seen := make(map[string]struct{}, len(relations))
	for _, rel := range relations {
		if rel.Name == "" {
			return malformedExtension("relation without a name on %s", table.TypeName)
		}
		if _, ok := seen[rel.Name]; ok {
			return malformedExtension("relation %s declared twice on %s", rel.Name, table.TypeName)
		}
		seen[rel.Name] = struct{}{}

		base, ok := table.Relations[rel.Name]
		if !ok {
			return malformedExtension("%s has no relation %s", table.TypeName, rel.Name)
		}
		for _, nested := range rel.Nested {
			if err := checkNested(base.JoinTable, rel.Name, nested); err != nil {
				return err
			}
		}
	}
	return nil
}

func checkNested(table *schema.Table, parent, nested string) error {
	if nested == "" {
		return malformedExtension("empty nested relation under %s", parent)
	}
	for _, name := range strings.Split(nested, ".") {
		rel, ok := table.Relations[name]
		if !ok {
			return malformedExtension("%s has no relation %s (declared under %s)", table.TypeName, name, parent)
		}
		table = rel.JoinTable
	}
	return nil
}
