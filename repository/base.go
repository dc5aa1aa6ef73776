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
	"fmt"
	"time"

	"github.com/tomoncle/lima/database"
	"github.com/tomoncle/lima/types"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/feature"
)

// Option configures a ResourceRepository.
type Option func(*options)

type options struct {
	table         string
	identity      IdentityProvider
	clock         Clock
	allowTruncate bool
	logger        database.Logger
}

// WithTable overrides the table name of the schema, e.g. to apply a
// deployment-specific prefix.
func WithTable(name string) Option {
	return func(o *options) { o.table = name }
}

// WithIdentity sets the provider used for created_by / updated_by.
func WithIdentity(p IdentityProvider) Option {
	return func(o *options) {
		if p != nil {
			o.identity = p
		}
	}
}

// WithClock sets the clock used for created_at / updated_at.
func WithClock(c Clock) Option {
	return func(o *options) {
		if c != nil {
			o.clock = c
		}
	}
}

// WithTruncate enables Truncate. It is disabled by default.
func WithTruncate(enabled bool) Option {
	return func(o *options) { o.allowTruncate = enabled }
}

// WithLogger sets the repository logger.
func WithLogger(l database.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// ResourceRepository is a data access object bound to one table with an
// integer primary key. It holds no mutable state after construction and is
// safe for concurrent use.
type ResourceRepository[R any] struct {
	db     bun.IDB
	schema *boundSchema
	mapper Mapper[R]
	opts   options
}

var _ Repository[struct{}] = (*ResourceRepository[struct{}])(nil)

// New binds a repository to db and the table described by schema.
func New[R any](db bun.IDB, schema Schema, mapper Mapper[R], opts ...Option) (*ResourceRepository[R], error) {
	if db == nil {
		return nil, errors.New("repository: nil database handle")
	}
	if mapper == nil {
		return nil, errors.New("repository: nil row mapper")
	}

	o := options{
		identity: ContextIdentity{},
		clock:    time.Now,
		logger:   database.GetLogger(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.table != "" {
		schema.Table = o.table
	}

	bound, err := schema.bind()
	if err != nil {
		return nil, fmt.Errorf("repository: %w", err)
	}
	return &ResourceRepository[R]{db: db, schema: bound, mapper: mapper, opts: o}, nil
}

// WithDB returns a copy of the repository bound to db, typically a bun.Tx.
func (r *ResourceRepository[R]) WithDB(db bun.IDB) *ResourceRepository[R] {
	clone := *r
	clone.db = db
	return &clone
}

// DB returns the bound handle.
func (r *ResourceRepository[R]) DB() bun.IDB { return r.db }

// Table returns the bound table name.
func (r *ResourceRepository[R]) Table() string { return r.schema.table }

// PrimaryKey returns the primary key column.
func (r *ResourceRepository[R]) PrimaryKey() string { return r.schema.pk }

// Columns returns the allow-listed column names in ascending order.
func (r *ResourceRepository[R]) Columns() []string { return r.schema.names() }

// Find returns the row whose primary key equals id.
func (r *ResourceRepository[R]) Find(ctx context.Context, id int64) (R, error) {
	var zero R
	if err := r.checkIDs(id); err != nil {
		return zero, err
	}
	row, err := r.selectOne(ctx, "find", []predicate{idPredicate(r.schema.pk, id)})
	if errors.Is(err, sql.ErrNoRows) {
		return zero, &NotFoundError{Table: r.schema.table, ID: id}
	}
	if err != nil {
		return zero, err
	}
	return r.mapRow(row)
}

// FindBy returns the first row, by primary key, matching filter.
func (r *ResourceRepository[R]) FindBy(ctx context.Context, filter types.Filter) (R, error) {
	var zero R
	preds, err := r.predicates(filter)
	if err != nil {
		return zero, err
	}
	row, err := r.selectOne(ctx, "find_by", preds)
	if errors.Is(err, sql.ErrNoRows) {
		return zero, &NotFoundError{Table: r.schema.table, Filter: filter}
	}
	if err != nil {
		return zero, err
	}
	return r.mapRow(row)
}

// FindAll returns every row ordered by primary key.
func (r *ResourceRepository[R]) FindAll(ctx context.Context) ([]R, error) {
	return r.selectAll(ctx, "find_all", nil, nil)
}

// FindAllBy returns every row matching filter. An empty orderBy keeps
// primary key order; sort may be empty, ASC or DESC.
func (r *ResourceRepository[R]) FindAllBy(ctx context.Context, filter types.Filter, orderBy string, sort types.Direction) ([]R, error) {
	preds, err := r.predicates(filter)
	if err != nil {
		return nil, err
	}
	order, err := r.schema.order(orderBy, sort)
	if err != nil {
		r.opts.logger.Debug("Rejected order", "table", r.schema.table, "error", err)
		return nil, err
	}
	var orders []types.Order
	if order != nil {
		orders = append(orders, *order)
	}
	return r.selectAll(ctx, "find_all_by", preds, orders)
}

// Insert writes one row stamped with created_at / created_by and returns it
// as re-read from the store.
func (r *ResourceRepository[R]) Insert(ctx context.Context, data types.Row) (R, error) {
	var zero R
	if err := r.checkData(data); err != nil {
		return zero, err
	}
	values := r.stamp(ctx, data, CreatedAt, CreatedBy)

	q := r.db.NewInsert().Model(&values).TableExpr("?", bun.Ident(r.schema.table))

	var (
		id  int64
		res sql.Result
		err error
	)
	if r.db.Dialect().Features().Has(feature.InsertReturning) {
		res, err = q.Returning("?", bun.Ident(r.schema.pk)).Exec(ctx, &id)
	} else {
		res, err = q.Exec(ctx)
		if err == nil {
			id, err = res.LastInsertId()
		}
	}
	if err != nil {
		return zero, r.storageError("insert", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return zero, &PersistenceError{Table: r.schema.table, Op: "insert"}
	}
	if id <= 0 {
		return zero, &PersistenceError{Table: r.schema.table, Op: "insert"}
	}
	return r.Find(ctx, id)
}

// Update writes data to the row with id, stamps updated_at / updated_by and
// returns the row as re-read from the store.
func (r *ResourceRepository[R]) Update(ctx context.Context, id int64, data types.Row) (R, error) {
	var zero R
	if err := r.checkIDs(id); err != nil {
		return zero, err
	}
	if err := r.checkData(data); err != nil {
		return zero, err
	}

	n, err := r.update(ctx, "update", []predicate{idPredicate(r.schema.pk, id)}, data)
	if err != nil {
		return zero, err
	}
	if n == 0 {
		exists, err := r.count(ctx, "exists", []predicate{idPredicate(r.schema.pk, id)})
		if err != nil {
			return zero, err
		}
		if exists == 0 {
			return zero, &NotFoundError{Table: r.schema.table, ID: id}
		}
		return zero, &PersistenceError{Table: r.schema.table, Op: "update", ID: id}
	}
	return r.Find(ctx, id)
}

// UpdateBy writes data to every row matching filter and returns the number
// of affected rows.
func (r *ResourceRepository[R]) UpdateBy(ctx context.Context, filter types.Filter, data types.Row) (int64, error) {
	preds, err := r.predicates(filter)
	if err != nil {
		return 0, err
	}
	if err := r.checkData(data); err != nil {
		return 0, err
	}
	return r.update(ctx, "update_by", preds, data)
}

// Delete removes the rows with the given ids. An empty id list is a no-op.
func (r *ResourceRepository[R]) Delete(ctx context.Context, ids ...int64) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	if err := r.checkIDs(ids...); err != nil {
		return 0, err
	}
	return r.delete(ctx, "delete", []predicate{idPredicate(r.schema.pk, ids...)})
}

// DeleteBy removes every row matching filter.
func (r *ResourceRepository[R]) DeleteBy(ctx context.Context, filter types.Filter) (int64, error) {
	preds, err := r.predicates(filter)
	if err != nil {
		return 0, err
	}
	return r.delete(ctx, "delete_by", preds)
}

// Count returns the number of rows in the table.
func (r *ResourceRepository[R]) Count(ctx context.Context) (int64, error) {
	return r.count(ctx, "count", nil)
}

// CountBy returns the number of rows matching filter.
func (r *ResourceRepository[R]) CountBy(ctx context.Context, filter types.Filter) (int64, error) {
	preds, err := r.predicates(filter)
	if err != nil {
		return 0, err
	}
	return r.count(ctx, "count_by", preds)
}

// Truncate removes every row. It fails with ErrTruncateDisabled unless the
// repository was built WithTruncate(true).
func (r *ResourceRepository[R]) Truncate(ctx context.Context) error {
	if !r.opts.allowTruncate {
		return fmt.Errorf("%s: %w", r.schema.table, ErrTruncateDisabled)
	}
	if _, err := r.db.NewTruncateTable().TableExpr("?", bun.Ident(r.schema.table)).Exec(ctx); err != nil {
		return r.storageError("truncate", err)
	}
	r.opts.logger.Warn("Table truncated", "table", r.schema.table)
	return nil
}

// Page returns one page of rows. The request filter is optional; when
// present it follows the same rules as FindAllBy.
func (r *ResourceRepository[R]) Page(ctx context.Context, pageRequest *types.PageRequest) (*types.Pagination[R], error) {
	if pageRequest == nil {
		pageRequest = types.NewDefaultPageRequest(1, 0)
	}

	var preds []predicate
	if filter := pageRequest.GetFilter(); len(filter) > 0 {
		var err error
		if preds, err = r.predicates(filter); err != nil {
			return nil, err
		}
	}
	orders := make([]types.Order, 0, len(pageRequest.GetOrders()))
	for _, o := range pageRequest.GetOrders() {
		valid, err := r.schema.order(o.Column, o.Direction)
		if err != nil {
			return nil, err
		}
		if valid != nil {
			orders = append(orders, *valid)
		}
	}

	pagination := types.NewDefaultPagination[R](pageRequest.GetPage(), pageRequest.GetPageSize())
	total, err := r.count(ctx, "page_count", preds)
	if err != nil {
		return nil, err
	}
	if total == 0 {
		return pagination, nil
	}

	var rows []map[string]interface{}
	q := r.selectQuery(preds, orders).
		Offset(pageRequest.GetOffset()).
		Limit(pageRequest.GetPageSize())
	if err := q.Scan(ctx, &rows); err != nil {
		return nil, r.storageError("page", err)
	}
	items, err := r.mapRows(rows)
	if err != nil {
		return nil, err
	}
	pagination.Total = total
	pagination.Items = items
	return pagination, nil
}

func (r *ResourceRepository[R]) predicates(filter types.Filter) ([]predicate, error) {
	preds, err := r.schema.predicates(filter)
	if err != nil {
		r.opts.logger.Debug("Rejected filter", "table", r.schema.table, "error", err)
		return nil, err
	}
	return preds, nil
}

func (r *ResourceRepository[R]) checkIDs(ids ...int64) error {
	for _, id := range ids {
		if id <= 0 {
			err := &InvalidFilterError{Table: r.schema.table, Column: r.schema.pk, Reason: fmt.Sprintf("id %d is not positive", id)}
			r.opts.logger.Debug("Rejected id", "table", r.schema.table, "error", err)
			return err
		}
	}
	return nil
}

func (r *ResourceRepository[R]) checkData(data types.Row) error {
	if err := r.schema.checkData(data); err != nil {
		r.opts.logger.Debug("Rejected data", "table", r.schema.table, "error", err)
		return err
	}
	return nil
}

func (r *ResourceRepository[R]) selectQuery(preds []predicate, orders []types.Order) *bun.SelectQuery {
	q := r.db.NewSelect().TableExpr("?", bun.Ident(r.schema.table)).ColumnExpr("*")
	q = applyWhere(q, preds)
	for _, o := range orders {
		q = q.OrderExpr("? ?", bun.Ident(o.Column), bun.Safe(string(o.Direction)))
	}
	return q.OrderExpr("? ASC", bun.Ident(r.schema.pk))
}

func (r *ResourceRepository[R]) selectOne(ctx context.Context, op string, preds []predicate) (types.Row, error) {
	var row map[string]interface{}
	err := r.selectQuery(preds, nil).Limit(1).Scan(ctx, &row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, r.storageError(op, err)
	}
	return types.Row(row), nil
}

func (r *ResourceRepository[R]) selectAll(ctx context.Context, op string, preds []predicate, orders []types.Order) ([]R, error) {
	var rows []map[string]interface{}
	if err := r.selectQuery(preds, orders).Scan(ctx, &rows); err != nil {
		return nil, r.storageError(op, err)
	}
	return r.mapRows(rows)
}

func (r *ResourceRepository[R]) update(ctx context.Context, op string, preds []predicate, data types.Row) (int64, error) {
	values := r.stamp(ctx, data, UpdatedAt, UpdatedBy)
	q := r.db.NewUpdate().Model(&values).TableExpr("?", bun.Ident(r.schema.table))
	res, err := applyWhere(q, preds).Exec(ctx)
	if err != nil {
		return 0, r.storageError(op, err)
	}
	return r.affected(op, res)
}

func (r *ResourceRepository[R]) delete(ctx context.Context, op string, preds []predicate) (int64, error) {
	q := r.db.NewDelete().TableExpr("?", bun.Ident(r.schema.table))
	res, err := applyWhere(q, preds).Exec(ctx)
	if err != nil {
		return 0, r.storageError(op, err)
	}
	return r.affected(op, res)
}

func (r *ResourceRepository[R]) count(ctx context.Context, op string, preds []predicate) (int64, error) {
	var n int64
	q := r.db.NewSelect().TableExpr("?", bun.Ident(r.schema.table)).ColumnExpr("count(*)")
	if err := applyWhere(q, preds).Scan(ctx, &n); err != nil {
		return 0, r.storageError(op, err)
	}
	return n, nil
}

func (r *ResourceRepository[R]) affected(op string, res sql.Result) (int64, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return 0, r.storageError(op, err)
	}
	return n, nil
}

func (r *ResourceRepository[R]) mapRow(row types.Row) (R, error) {
	resource, err := r.mapper(row)
	if err != nil {
		var zero R
		return zero, r.storageError("map", err)
	}
	return resource, nil
}

func (r *ResourceRepository[R]) mapRows(rows []map[string]interface{}) ([]R, error) {
	out := make([]R, 0, len(rows))
	for _, row := range rows {
		resource, err := r.mapRow(types.Row(row))
		if err != nil {
			return nil, err
		}
		out = append(out, resource)
	}
	return out, nil
}

func (r *ResourceRepository[R]) storageError(op string, err error) error {
	serr := newStorageError(r.schema.table, op, err)
	r.opts.logger.Error("Storage failure", "table", r.schema.table, "op", op, "kind", serr.Kind.String(), "error", err)
	return serr
}
