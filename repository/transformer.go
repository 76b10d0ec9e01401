package repository

import (
	"context"

	"github.com/iancoleman/strcase"
	"github.com/jinzhu/inflection"
)

// Transformer maps a record to its output representation.
type Transformer[T any] interface {
	Transform(ctx context.Context, record *T) (any, error)
}

// TransformerFunc adapts a function to Transformer.
type TransformerFunc[T any] func(ctx context.Context, record *T) (any, error)

func (f TransformerFunc[T]) Transform(ctx context.Context, record *T) (any, error) {
	return f(ctx, record)
}

// ResourceNamer can be implemented by a transformer to name the resource type
// of its output. The default is the plural snake_case entity name.
type ResourceNamer interface {
	ResourceName() string
}

// TransformWith binds t. Passing nil removes the current transformer.
func (r *Repository[T]) TransformWith(t Transformer[T]) *Repository[T] {
	if isNil(t) {
		t = nil
	}
	r.settings.transformer = t
	return r
}

// SkipTransformer toggles use of the bound transformer. The flag stays until changed.
func (r *Repository[T]) SkipTransformer(status bool) *Repository[T] {
	r.settings.skipTransformer = status
	return r
}

func (r *Repository[T]) resourceType(t Transformer[T]) string {
	if n, ok := t.(ResourceNamer); ok && n.ResourceName() != "" {
		return n.ResourceName()
	}
	return inflection.Plural(r.entity)
}

// export applies the bound transformer to what the call fetched.
func (r *Repository[T]) export(ctx context.Context, s settings[T], f fetched[T]) (*Result[T], error) {
	var meta *Pagination
	if f.page != nil {
		meta = f.page.Pagination()
	}

	t := s.transformer
	if t == nil || s.skipTransformer {
		return &Result[T]{Item: f.item, Items: f.items, Pagination: meta}, nil
	}

	res := &Resource{Type: r.resourceType(t), Pagination: meta}
	switch {
	case f.single:
		if f.item != nil {
			data, err := t.Transform(ctx, f.item)
			if err != nil {
				return nil, err
			}
			res.Data = data
		}
	default:
		items := make([]any, 0, len(f.items))
		for i := range f.items {
			data, err := t.Transform(ctx, &f.items[i])
			if err != nil {
				return nil, err
			}
			items = append(items, data)
		}
		res.Data = items
	}

	return &Result[T]{Resource: res, Pagination: meta}, nil
}

func entityName(typeName string) string {
	return strcase.ToSnake(typeName)
}
