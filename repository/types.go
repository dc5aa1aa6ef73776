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

	"github.com/tomoncle/lima/types"
)

// Mapper converts one raw row into the resource type. It runs after every
// successful read.
type Mapper[R any] func(row types.Row) (R, error)

// CrudRepository defines the id-addressed operations on one table.
type CrudRepository[R any] interface {
	Find(ctx context.Context, id int64) (R, error)

	FindAll(ctx context.Context) ([]R, error)

	Insert(ctx context.Context, data types.Row) (R, error)

	Update(ctx context.Context, id int64, data types.Row) (R, error)

	Delete(ctx context.Context, ids ...int64) (int64, error)
}

// FilterRepository defines the filter-addressed operations. Every filter
// must be non-empty and reference allow-listed columns only.
type FilterRepository[R any] interface {
	FindBy(ctx context.Context, filter types.Filter) (R, error)

	FindAllBy(ctx context.Context, filter types.Filter, orderBy string, sort types.Direction) ([]R, error)

	UpdateBy(ctx context.Context, filter types.Filter, data types.Row) (int64, error)

	DeleteBy(ctx context.Context, filter types.Filter) (int64, error)
}

// CountRepository defines row counting.
type CountRepository interface {
	Count(ctx context.Context) (int64, error)
	CountBy(ctx context.Context, filter types.Filter) (int64, error)
}

// PageQueryRepository defines pagination functionality for listing resources.
type PageQueryRepository[R any] interface {
	Page(ctx context.Context, page *types.PageRequest) (*types.Pagination[R], error)
}

// Repository combines every operation and exposes the bound table.
type Repository[R any] interface {
	CrudRepository[R]
	FilterRepository[R]
	CountRepository
	PageQueryRepository[R]
	Truncate(ctx context.Context) error
	Table() string
	PrimaryKey() string
}
