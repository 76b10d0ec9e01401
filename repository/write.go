package repository

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"strconv"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"go.uber.org/zap"
)

// Create stores a new record built from attrs, through the mutator when one
// is bound and not skipped. The entity cache is flushed whether or not the
// write succeeded.
func (r *Repository[T]) Create(ctx context.Context, attrs Attributes) (*Result[T], error) {
	s := r.settings.clone()

	var (
		rec *T
		err error
	)
	if s.mutator != nil && !s.skipMutator {
		rec, err = s.mutator.Create(ctx, attrs)
	} else {
		rec, err = r.insert(ctx, attrs)
	}

	if err = r.flushAfterWrite(ctx, err); err != nil {
		return nil, err
	}
	return r.prepareRecord(ctx, s, rec)
}

// Update changes a record. target is either an id (integer or digit string),
// looked up first and NotFound when missing, or a *T or T record. Anything
// else is an invalid argument.
func (r *Repository[T]) Update(ctx context.Context, target any, attrs Attributes) (*Result[T], error) {
	switch v := target.(type) {
	case *T:
		return r.UpdateRecord(ctx, v, attrs)
	case T:
		return r.UpdateRecord(ctx, &v, attrs)
	}

	id, ok := toID(target)
	if !ok {
		return nil, invalidArgument("update needs a %s record or id, got %T", r.table.TypeName, target)
	}
	return r.UpdateByID(ctx, id, attrs)
}

// UpdateByID loads the record with id, failing with NotFound, and updates it.
func (r *Repository[T]) UpdateByID(ctx context.Context, id int64, attrs Attributes) (*Result[T], error) {
	rec, err := r.findOrFail(ctx, id)
	if err != nil {
		return nil, err
	}
	return r.UpdateRecord(ctx, rec, attrs)
}

// UpdateRecord applies attrs to record, through the mutator when one is bound
// and not skipped. The entity cache is flushed whether or not the write succeeded.
func (r *Repository[T]) UpdateRecord(ctx context.Context, record *T, attrs Attributes) (*Result[T], error) {
	if record == nil {
		return nil, invalidArgument("update needs a %s record", r.table.TypeName)
	}
	s := r.settings.clone()

	var err error
	if s.mutator != nil && !s.skipMutator {
		_, err = s.mutator.Update(ctx, record, attrs)
	} else {
		_, err = r.updateFields(ctx, record, attrs)
	}

	if err = r.flushAfterWrite(ctx, err); err != nil {
		return nil, err
	}
	return r.prepareRecord(ctx, s, record)
}

// Delete removes the record with id and returns the number of removed rows.
// The entity cache is only flushed when something was removed.
func (r *Repository[T]) Delete(ctx context.Context, id int64) (int64, error) {
	res, err := r.db.NewDelete().Model((*T)(nil)).Where("?PKs = ?", id).Exec(ctx)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if n > 0 {
		if err := r.FlushCache(ctx); err != nil {
			return n, err
		}
	}
	return n, nil
}

func (r *Repository[T]) flushAfterWrite(ctx context.Context, err error) error {
	if ferr := r.FlushCache(ctx); ferr != nil {
		r.logger.Warn("repository cache flush failed", zap.String("entity", r.entity), zap.Error(ferr))
		return errors.Join(err, ferr)
	}
	return err
}

func (r *Repository[T]) insert(ctx context.Context, attrs Attributes) (*T, error) {
	rec := new(T)
	if _, err := r.decode(attrs, rec); err != nil {
		return nil, err
	}
	if _, err := r.db.NewInsert().Model(rec).Exec(ctx); err != nil {
		return nil, err
	}
	return rec, nil
}

func (r *Repository[T]) updateFields(ctx context.Context, rec *T, attrs Attributes) (bool, error) {
	columns, err := r.decode(attrs, rec)
	if err != nil {
		return false, err
	}
	if len(columns) == 0 {
		return false, nil
	}

	res, err := r.db.NewUpdate().Model(rec).Column(columns...).WherePK().Exec(ctx)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *Repository[T]) findOrFail(ctx context.Context, id int64) (*T, error) {
	rec := new(T)
	err := r.db.NewSelect().Model(rec).Where("?TablePKs = ?", id).Limit(1).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound(r.entity, id)
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// decode writes attrs onto dst and returns the touched columns, sorted. Keys
// are bun column names; unknown columns are rejected.
func (r *Repository[T]) decode(attrs Attributes, dst *T) ([]string, error) {
	byField := make(map[string]any, len(attrs))
	columns := make([]string, 0, len(attrs))
	for column, value := range attrs {
		field, ok := r.table.FieldMap[column]
		if !ok {
			return nil, invalidArgument("%s has no column %q", r.entity, column)
		}
		byField[field.GoName] = value
		columns = append(columns, field.Name)
	}
	sort.Strings(columns)

	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           dst,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		DecodeHook:       mapstructure.StringToTimeHookFunc(time.RFC3339),
	})
	if err != nil {
		return nil, err
	}
	if err := dec.Decode(byField); err != nil {
		return nil, wrapInvalidArgument(err, "invalid attributes for "+r.entity)
	}
	return columns, nil
}

func toID(v any) (int64, bool) {
	switch id := v.(type) {
	case int:
		return int64(id), true
	case int8:
		return int64(id), true
	case int16:
		return int64(id), true
	case int32:
		return int64(id), true
	case int64:
		return id, true
	case uint:
		return int64(id), true
	case uint8:
		return int64(id), true
	case uint16:
		return int64(id), true
	case uint32:
		return int64(id), true
	case uint64:
		return int64(id), true
	case string:
		if id == "" {
			return 0, false
		}
		for _, c := range id {
			if c < '0' || c > '9' {
				return 0, false
			}
		}
		n, err := strconv.ParseInt(id, 10, 64)
		return n, err == nil
	}
	return 0, false
}
