/*
 * Copyright 2025 tomoncle.
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/feature"

	"github.com/tomoncle/mole/database"
	"github.com/tomoncle/mole/types"
)

type baseRepositoryImpl[T any] struct {
	descriptor types.Descriptor
	config     Config
	composer   FieldComposer
}

// NewRepository returns a generic repository for the entity kind the
// descriptor describes. The descriptor is validated once here; operations
// assume it holds.
func NewRepository[T any](d types.Descriptor, config Config) (Repository[T], error) {
	if err := types.ValidateDescriptor(d); err != nil {
		return nil, err
	}
	cfg := config.withDefaults()
	return &baseRepositoryImpl[T]{
		descriptor: d,
		config:     cfg,
		composer:   FieldComposer{Now: cfg.Now},
	}, nil
}

// MustNewRepository is NewRepository for descriptors known valid at init time.
func MustNewRepository[T any](d types.Descriptor, config Config) Repository[T] {
	r, err := NewRepository[T](d, config)
	if err != nil {
		panic(err)
	}
	return r
}

func (r *baseRepositoryImpl[T]) Descriptor() types.Descriptor { return r.descriptor }

// tableExpr renders the schema-qualified table reference.
func (r *baseRepositoryImpl[T]) tableExpr() (string, []interface{}) {
	if s := r.descriptor.Schema(); s != "" {
		return "?.?", []interface{}{bun.Ident(s), bun.Ident(r.descriptor.Table())}
	}
	return "?", []interface{}{bun.Ident(r.descriptor.Table())}
}

func (r *baseRepositoryImpl[T]) Create(ctx context.Context, conn *database.Conn, actor interface{}, fields *FieldSet) (*T, error) {
	prepared, err := r.composer.PrepareForCreate(r.descriptor, actor, fields)
	if err != nil {
		return nil, err
	}
	values, err := r.fieldValues(prepared)
	if err != nil {
		return nil, err
	}

	texpr, targs := r.tableExpr()
	q := conn.DB().NewInsert().Model(&values).TableExpr(texpr, targs...)

	idCol := r.descriptor.IDColumn()
	if idVal, ok := values[idCol]; ok {
		// Caller-assigned identifier: insert, then read the row back.
		if _, err := q.Exec(ctx); err != nil {
			return nil, r.wrapWriteError(err)
		}
		return r.Get(ctx, conn, idVal)
	}

	if conn.HasFeature(feature.InsertReturning) {
		var id int64
		if _, err := q.Returning("?", bun.Ident(idCol)).Exec(ctx, &id); err != nil {
			return nil, r.wrapWriteError(err)
		}
		return r.Get(ctx, conn, id)
	}

	res, err := q.Exec(ctx)
	if err != nil {
		return nil, r.wrapWriteError(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return r.Get(ctx, conn, id)
}

func (r *baseRepositoryImpl[T]) CreateMany(ctx context.Context, conn *database.Conn, actor interface{}, sets []*FieldSet) (int64, error) {
	texpr, targs := r.tableExpr()
	var created int64
	for _, fields := range sets {
		prepared, err := r.composer.PrepareForCreate(r.descriptor, actor, fields)
		if err != nil {
			return created, err
		}
		values, err := r.fieldValues(prepared)
		if err != nil {
			return created, err
		}
		if _, err := conn.DB().NewInsert().Model(&values).TableExpr(texpr, targs...).Exec(ctx); err != nil {
			return created, r.wrapWriteError(err)
		}
		created++
	}
	return created, nil
}

func (r *baseRepositoryImpl[T]) Get(ctx context.Context, conn *database.Conn, id interface{}) (*T, error) {
	texpr, targs := r.tableExpr()
	var entity T
	err := conn.DB().NewSelect().
		ColumnExpr("*").
		TableExpr(texpr, targs...).
		Where("? = ?", bun.Ident(r.descriptor.IDColumn()), id).
		Limit(1).
		Scan(ctx, &entity)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &EntityNotFoundError{Table: r.descriptor.Table(), ID: id}
	}
	if err != nil {
		return nil, err
	}
	return &entity, nil
}

// First returns the first match in list order, or nil without error when
// nothing matches. Absence is an expected outcome here, unlike Get.
func (r *baseRepositoryImpl[T]) First(ctx context.Context, conn *database.Conn, filters types.FilterSet, opts *types.ListOptions) (*T, error) {
	q, err := r.selectQuery(conn, filters, opts)
	if err != nil {
		return nil, err
	}
	var entity T
	err = q.Limit(1).Offset(0).Scan(ctx, &entity)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &entity, nil
}

// List returns one page of matches plus pagination metadata. The page and
// the total are two statements on the same Conn; inside a transaction they
// see one snapshot, outside a concurrent writer may move the total between
// them.
func (r *baseRepositoryImpl[T]) List(ctx context.Context, conn *database.Conn, filters types.FilterSet, opts *types.ListOptions) ([]T, types.PaginationMetadata, error) {
	limit, offset := r.listWindow(opts)

	q, err := r.selectQuery(conn, filters, opts)
	if err != nil {
		return nil, types.PaginationMetadata{}, err
	}

	var entities []T
	if err := q.Limit(limit).Offset(offset).Scan(ctx, &entities); err != nil {
		return nil, types.PaginationMetadata{}, err
	}

	total, err := r.Count(ctx, conn, filters)
	if err != nil {
		return nil, types.PaginationMetadata{}, err
	}

	return entities, types.NewPaginationMetadata(total, limit, offset), nil
}

func (r *baseRepositoryImpl[T]) Count(ctx context.Context, conn *database.Conn, filters types.FilterSet) (int64, error) {
	expr, args, err := TranslateFilters(r.descriptor, filters)
	if err != nil {
		return 0, err
	}
	texpr, targs := r.tableExpr()
	q := conn.DB().NewSelect().TableExpr(texpr, targs...)
	if expr != "" {
		q = q.Where(expr, args...)
	}
	n, err := q.Count(ctx)
	return int64(n), err
}

func (r *baseRepositoryImpl[T]) Update(ctx context.Context, conn *database.Conn, actor interface{}, id interface{}, fields *FieldSet) (*T, error) {
	prepared, err := r.composer.PrepareForUpdate(r.descriptor, actor, fields)
	if err != nil {
		return nil, err
	}
	values, err := r.fieldValues(prepared)
	if err != nil {
		return nil, err
	}

	texpr, targs := r.tableExpr()
	_, err = conn.DB().NewUpdate().
		Model(&values).
		TableExpr(texpr, targs...).
		Where("? = ?", bun.Ident(r.descriptor.IDColumn()), id).
		Exec(ctx)
	if err != nil {
		return nil, r.wrapWriteError(err)
	}
	// Zero rows affected may mean "missing row" or "values unchanged"; the
	// refetch settles it, surfacing a missing row as not-found.
	return r.Get(ctx, conn, id)
}

// UpdateMany applies one field set to the rows named by ids and reports how
// many rows changed. Missing ids are skipped silently, not reported.
func (r *baseRepositoryImpl[T]) UpdateMany(ctx context.Context, conn *database.Conn, actor interface{}, ids []interface{}, fields *FieldSet) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	prepared, err := r.composer.PrepareForUpdate(r.descriptor, actor, fields)
	if err != nil {
		return 0, err
	}
	values, err := r.fieldValues(prepared)
	if err != nil {
		return 0, err
	}

	texpr, targs := r.tableExpr()
	res, err := conn.DB().NewUpdate().
		Model(&values).
		TableExpr(texpr, targs...).
		Where("? IN (?)", bun.Ident(r.descriptor.IDColumn()), bun.In(ids)).
		Exec(ctx)
	if err != nil {
		return 0, r.wrapWriteError(err)
	}
	return res.RowsAffected()
}

// UpdateByFilter applies one field set to every matching row and reports how
// many rows changed. An empty filter set matches all rows, so this can be a
// whole-table update.
func (r *baseRepositoryImpl[T]) UpdateByFilter(ctx context.Context, conn *database.Conn, actor interface{}, filters types.FilterSet, fields *FieldSet) (int64, error) {
	expr, args, err := TranslateFilters(r.descriptor, filters)
	if err != nil {
		return 0, err
	}
	prepared, err := r.composer.PrepareForUpdate(r.descriptor, actor, fields)
	if err != nil {
		return 0, err
	}
	values, err := r.fieldValues(prepared)
	if err != nil {
		return 0, err
	}

	texpr, targs := r.tableExpr()
	q := conn.DB().NewUpdate().
		Model(&values).
		TableExpr(texpr, targs...)
	if expr != "" {
		q = q.Where(expr, args...)
	} else {
		// Bun refuses an UPDATE without a WHERE clause; an empty filter
		// means every row, so spell that out.
		q = q.Where("1 = 1")
	}
	res, err := q.Exec(ctx)
	if err != nil {
		return 0, r.wrapWriteError(err)
	}
	return res.RowsAffected()
}

func (r *baseRepositoryImpl[T]) Delete(ctx context.Context, conn *database.Conn, id interface{}) error {
	texpr, targs := r.tableExpr()
	res, err := conn.DB().NewDelete().
		TableExpr(texpr, targs...).
		Where("? = ?", bun.Ident(r.descriptor.IDColumn()), id).
		Exec(ctx)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return &EntityNotFoundError{Table: r.descriptor.Table(), ID: id}
	}
	return nil
}

func (r *baseRepositoryImpl[T]) DeleteMany(ctx context.Context, conn *database.Conn, ids []interface{}) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	texpr, targs := r.tableExpr()
	res, err := conn.DB().NewDelete().
		TableExpr(texpr, targs...).
		Where("? IN (?)", bun.Ident(r.descriptor.IDColumn()), bun.In(ids)).
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// DeleteByFilter removes every matching row and reports how many went away.
// Like UpdateByFilter it treats an empty filter set as matching all rows.
func (r *baseRepositoryImpl[T]) DeleteByFilter(ctx context.Context, conn *database.Conn, filters types.FilterSet) (int64, error) {
	expr, args, err := TranslateFilters(r.descriptor, filters)
	if err != nil {
		return 0, err
	}
	texpr, targs := r.tableExpr()
	q := conn.DB().NewDelete().TableExpr(texpr, targs...)
	if expr != "" {
		q = q.Where(expr, args...)
	} else {
		q = q.Where("1 = 1")
	}
	res, err := q.Exec(ctx)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *baseRepositoryImpl[T]) selectQuery(conn *database.Conn, filters types.FilterSet, opts *types.ListOptions) (*bun.SelectQuery, error) {
	expr, args, err := TranslateFilters(r.descriptor, filters)
	if err != nil {
		return nil, err
	}

	var orderBys []types.OrderBy
	if opts != nil {
		orderBys = opts.OrderBys
	}
	orders, err := translateOrderBys(r.descriptor, orderBys)
	if err != nil {
		return nil, err
	}

	texpr, targs := r.tableExpr()
	q := conn.DB().NewSelect().ColumnExpr("*").TableExpr(texpr, targs...)
	if expr != "" {
		q = q.Where(expr, args...)
	}
	for _, o := range orders {
		q = q.OrderExpr(o.expr, o.args...)
	}
	return q, nil
}

// listWindow resolves the effective limit/offset: missing limit falls back
// to the default, oversized limit clamps to the maximum, negative offset
// clamps to zero.
func (r *baseRepositoryImpl[T]) listWindow(opts *types.ListOptions) (int, int) {
	limit := 0
	offset := 0
	if opts != nil {
		limit = opts.Limit
		offset = opts.Offset
	}
	if limit <= 0 {
		limit = r.config.DefaultListLimit
	}
	if limit > r.config.MaxListLimit {
		limit = r.config.MaxListLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

// fieldValues renders prepared fields into the map model bound to an insert
// or update, encoding enum-typed columns on the way.
func (r *baseRepositoryImpl[T]) fieldValues(fields []Field) (map[string]interface{}, error) {
	enums := make(map[string]struct{}, len(r.descriptor.EnumColumns()))
	for _, c := range r.descriptor.EnumColumns() {
		enums[c] = struct{}{}
	}
	values := make(map[string]interface{}, len(fields))
	for _, f := range fields {
		if _, isEnum := enums[f.Column]; isEnum {
			encoded, err := types.EncodeEnum(f.Value)
			if err != nil {
				return nil, err
			}
			values[f.Column] = encoded
			continue
		}
		values[f.Column] = f.Value
	}
	return values, nil
}

func (r *baseRepositoryImpl[T]) wrapWriteError(err error) error {
	if err == nil {
		return nil
	}
	if ok, kind := database.ClassifySQLError(err); ok && kind == database.DuplicateKeyErr {
		uv := &UniqueViolationError{Table: r.descriptor.Table(), Err: err}
		var pqErr *pq.Error
		if errors.As(err, &pqErr) {
			uv.Constraint = pqErr.Constraint
		}
		return uv
	}
	return err
}
