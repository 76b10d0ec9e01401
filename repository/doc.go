// Package repository provides a generic repository over bun models with
// criteria, transformers, mutators, request driven preparation, pagination
// and tagged result caching.
//
// # Basic Usage
//
//	users, err := repository.New[User](db,
//		repository.WithStore(store),
//		repository.WithLogger(logger),
//	)
//
//	res, err := users.Scoped().
//		PushCriteria(ActiveUsers{}).
//		Cachable("", nil, 10*time.Minute).
//		Paginate(ctx, 20)
//
// # Pipeline
//
// Every read (Find, FindBy, All, Where, WhereOp, WhereQuery, Paginate and
// Prepare) goes through the same steps:
//
//  1. cache lookup, when a cache directive is active; a hit returns right away
//  2. the preparer applies request filters, sorts and includes
//  3. pushed criteria run in insertion order, unless skipped
//  4. the query runs (first match, all matches or one page)
//  5. the scope is reset
//  6. the result is exported through the transformer, unless skipped
//  7. the exported result is cached
//
// Writes (Create, Update, Delete) go through the mutator when one is bound,
// flush the entity tag and export the written record.
//
// # Settings
//
// Skip flags, the mutator, the transformer, the cache directive and criteria
// stay on a repository until changed. Use Scoped to get a copy whose changes
// stay local, for example one per HTTP request.
//
// # Caching
//
// Cached results carry the entity tag, snake_case of the model name, plus any
// tags given to Cachable or attached with WithCacheTags. FlushCache and every
// write invalidate all results carrying the entity tag. Keys come from
// Cachable, the fingerprint of the bound request, or the call itself.
package repository
