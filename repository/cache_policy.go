package repository

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/goliatone/go-repository-kit/cache"
	"github.com/goliatone/go-repository-kit/request"
)

// CacheDirective is the resolved cache configuration of a repository.
//
// A directive with Disabled set never caches, whatever Cachable is asked
// later. An active directive with an empty Key derives the key when the read
// runs: from the request bound at that moment, or from the call when there is
// none. A zero ExpiresAt caches forever.
type CacheDirective struct {
	Active    bool
	Disabled  bool
	Key       string
	Tags      []string
	ExpiresAt time.Time
}

// Cachable turns caching on for the following reads.
//
// The key is key when given, otherwise the fingerprint of the request bound
// when the read runs, otherwise derived from each call. Tags always start with the entity tag.
// A positive ttl sets an expiry unless one is already set; without one the
// result is kept forever. Calling Cachable after DoNotCacheWhenInputs disabled
// caching is a no-op.
func (r *Repository[T]) Cachable(key string, tags []string, ttl time.Duration) *Repository[T] {
	d := &r.settings.cache
	if d.Disabled {
		return r
	}

	d.Active = true
	d.Key = key
	d.Tags = dedupeStrings(append([]string{r.entity}, tags...))

	if ttl > 0 && d.ExpiresAt.IsZero() {
		d.ExpiresAt = r.clock().Add(ttl)
	}
	return r
}

// DoNotCacheWhenInputs disables caching if any of the named request inputs is present.
func (r *Repository[T]) DoNotCacheWhenInputs(names ...string) *Repository[T] {
	if request.AnyPresent(r.req, names...) {
		r.settings.cache.Disabled = true
	}
	return r
}

// CacheByTTLWhenInputs sets an expiry of ttl, or the default TTL when ttl is
// not positive, if any of the named request inputs is present.
func (r *Repository[T]) CacheByTTLWhenInputs(names []string, ttl time.Duration) *Repository[T] {
	if !request.AnyPresent(r.req, names...) {
		return r
	}
	if ttl <= 0 {
		ttl = r.defaultTTL
	}
	r.settings.cache.ExpiresAt = r.clock().Add(ttl)
	return r
}

// ForgetCache clears the cache directive, disabled state included.
func (r *Repository[T]) ForgetCache() *Repository[T] {
	r.settings.cache = CacheDirective{}
	return r
}

// CacheDirective returns a copy of the current directive.
func (r *Repository[T]) CacheDirective() CacheDirective {
	d := r.settings.cache
	d.Tags = append([]string(nil), d.Tags...)
	return d
}

// FlushCache invalidates every cached result of the entity.
func (r *Repository[T]) FlushCache(ctx context.Context) error {
	if r.store == nil {
		return nil
	}
	return r.store.Flush(ctx, r.entity)
}

type cacheTarget struct {
	key       string
	tags      []string
	expiresAt time.Time
}

func (r *Repository[T]) resolveCache(ctx context.Context, d CacheDirective, c call) (cacheTarget, bool) {
	if r.store == nil || !d.Active || d.Disabled {
		return cacheTarget{}, false
	}

	key := d.Key
	switch {
	case key != "":
	case r.req != nil:
		key = cache.RequestKey(r.req.Path(), r.req.Params())
	default:
		key = r.keys.SerializeKey(r.entity+cache.KeySeparator+c.name, r.keyArgs(c)...)
	}

	tags := d.Tags
	if len(tags) == 0 {
		tags = []string{r.entity}
	}
	tags = dedupeStrings(append(append([]string(nil), tags...), cacheTagsFromContext(ctx)...))

	return cacheTarget{key: key, tags: tags, expiresAt: d.ExpiresAt}, true
}

func (r *Repository[T]) keyArgs(c call) []any {
	args := append([]any(nil), c.args...)
	args = append(args, c.columns)
	if c.perPage > 0 {
		args = append(args, c.perPage, r.currentPage())
	}
	names := make([]string, 0, len(r.criteria))
	for _, cr := range r.criteria {
		if !isNil(cr) {
			names = append(names, criterionName(cr))
		}
	}
	return append(args, names, r.settings.skipCriteria)
}

func (r *Repository[T]) cacheGet(ctx context.Context, t cacheTarget) (*Result[T], bool, error) {
	data, ok, err := r.store.Get(ctx, t.tags, t.key)
	if err != nil || !ok {
		return nil, false, err
	}

	var res Result[T]
	if err := r.codec.Unmarshal(data, &res); err != nil {
		return nil, false, err
	}

	r.logger.Info("repository cache hit",
		zap.String("entity", r.entity),
		zap.String("key", t.key),
		zap.Strings("tags", t.tags),
	)
	return &res, true, nil
}

func (r *Repository[T]) cachePut(ctx context.Context, t cacheTarget, res *Result[T]) error {
	var ttl time.Duration
	if !t.expiresAt.IsZero() {
		ttl = t.expiresAt.Sub(r.clock())
		if ttl <= 0 {
			return nil
		}
	}

	data, err := r.codec.Marshal(res)
	if err != nil {
		return err
	}

	fields := []zap.Field{
		zap.String("entity", r.entity),
		zap.String("key", t.key),
		zap.Strings("tags", t.tags),
	}
	if ttl > 0 {
		r.logger.Info("repository cache put", append(fields, zap.Duration("ttl", ttl))...)
		return r.store.Put(ctx, t.tags, t.key, data, ttl)
	}
	r.logger.Info("repository cache put forever", fields...)
	return r.store.PutForever(ctx, t.tags, t.key, data)
}
