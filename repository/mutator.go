package repository

import (
	"context"
)

// Attributes are column values keyed by column name.
type Attributes map[string]any

// Mutator replaces the default persistence of create and update.
type Mutator[T any] interface {
	Create(ctx context.Context, attrs Attributes) (*T, error)
	Update(ctx context.Context, record *T, attrs Attributes) (bool, error)
}

// MutatorFuncs builds a Mutator from functions. A missing function makes the
// matching operation fail with an invalid argument error.
type MutatorFuncs[T any] struct {
	CreateFunc func(ctx context.Context, attrs Attributes) (*T, error)
	UpdateFunc func(ctx context.Context, record *T, attrs Attributes) (bool, error)
}

func (m MutatorFuncs[T]) Create(ctx context.Context, attrs Attributes) (*T, error) {
	if m.CreateFunc == nil {
		return nil, invalidArgument("mutator has no create function")
	}
	return m.CreateFunc(ctx, attrs)
}

func (m MutatorFuncs[T]) Update(ctx context.Context, record *T, attrs Attributes) (bool, error) {
	if m.UpdateFunc == nil {
		return false, invalidArgument("mutator has no update function")
	}
	return m.UpdateFunc(ctx, record, attrs)
}

// SetMutator binds m. Passing nil removes the current mutator.
func (r *Repository[T]) SetMutator(m Mutator[T]) *Repository[T] {
	if isNil(m) {
		m = nil
	}
	r.settings.mutator = m
	return r
}

// SkipMutator toggles use of the bound mutator. The flag stays until changed.
func (r *Repository[T]) SkipMutator(status bool) *Repository[T] {
	r.settings.skipMutator = status
	return r
}
