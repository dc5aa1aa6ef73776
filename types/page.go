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

package types

// Page sizes applied by NewPageRequest.
const (
	DefaultPageSize = 10
	MaxPageSize     = 1000
)

// PageRequest is a 1-based page number and size plus an optional filter and
// ordering. Values are normalized at construction.
type PageRequest struct {
	page     int
	pageSize int
	filter   Filter
	orders   []Order
}

// NewPageRequest normalizes page to at least 1 and pageSize to
// [1, MaxPageSize], using DefaultPageSize for non-positive sizes.
func NewPageRequest(page int, pageSize int, filter Filter, orders []Order) *PageRequest {
	if page < 1 {
		page = 1
	}
	switch {
	case pageSize < 1:
		pageSize = DefaultPageSize
	case pageSize > MaxPageSize:
		pageSize = MaxPageSize
	}
	return &PageRequest{page: page, pageSize: pageSize, filter: filter, orders: orders}
}

// NewPageRequestWithFilter constructs a PageRequest with a filter only.
func NewPageRequestWithFilter(page int, pageSize int, filter Filter) *PageRequest {
	return NewPageRequest(page, pageSize, filter, nil)
}

// NewPageRequestWithOrders constructs a PageRequest with ordering only.
func NewPageRequestWithOrders(page int, pageSize int, orders ...Order) *PageRequest {
	return NewPageRequest(page, pageSize, nil, orders)
}

// NewDefaultPageRequest constructs a PageRequest with no filter or ordering.
func NewDefaultPageRequest(page int, pageSize int) *PageRequest {
	return NewPageRequest(page, pageSize, nil, nil)
}

func (p *PageRequest) GetPage() int       { return p.page }
func (p *PageRequest) GetPageSize() int   { return p.pageSize }
func (p *PageRequest) GetOffset() int     { return (p.page - 1) * p.pageSize }
func (p *PageRequest) GetFilter() Filter  { return p.filter }
func (p *PageRequest) GetOrders() []Order { return p.orders }

// Pagination is one page of items plus the total across all pages.
type Pagination[R any] struct {
	Page     int
	PageSize int
	Total    int64
	Items    []R
}

// NewDefaultPagination returns an empty page.
func NewDefaultPagination[R any](page int, pageSize int) *Pagination[R] {
	return &Pagination[R]{Page: page, PageSize: pageSize, Items: make([]R, 0)}
}

// Pages returns the number of pages needed to hold Total items.
func (p *Pagination[R]) Pages() int {
	if p.PageSize < 1 || p.Total == 0 {
		return 0
	}
	return int((p.Total + int64(p.PageSize) - 1) / int64(p.PageSize))
}
