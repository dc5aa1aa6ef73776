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

import (
	"sort"
	"strings"
)

// Row is one raw table row keyed by column name, as returned by the store.
type Row map[string]interface{}

// Clone returns a shallow copy of the row. A nil row clones to an empty row.
func (r Row) Clone() Row {
	out := make(Row, len(r)+4)
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Columns returns the row's column names in ascending order.
func (r Row) Columns() []string {
	return sortedKeys(r)
}

// Filter maps a column name to either a scalar (equality) or a slice of
// scalars (membership). All entries are combined with AND.
type Filter map[string]interface{}

// Columns returns the filtered column names in ascending order, the order in
// which predicates are emitted.
func (f Filter) Columns() []string {
	return sortedKeys(f)
}

// Direction is a sort direction for ordered queries.
type Direction string

const (
	Asc  Direction = "ASC"
	Desc Direction = "DESC"
)

// Normalize upper-cases the direction and reports whether it is ASC, DESC or
// empty.
func (d Direction) Normalize() (Direction, bool) {
	n := Direction(strings.ToUpper(strings.TrimSpace(string(d))))
	switch n {
	case "", Asc, Desc:
		return n, true
	default:
		return n, false
	}
}

// Order is a single ORDER BY term.
type Order struct {
	Column    string
	Direction Direction
}

// NewOrder creates an order term for column with the given direction.
func NewOrder(column string, direction Direction) Order {
	return Order{Column: column, Direction: direction}
}

func sortedKeys[M ~map[string]interface{}](m M) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
