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
	"fmt"
	"reflect"
	"time"

	"github.com/tomoncle/lima/types"
	"github.com/uptrace/bun"
)

// predicate is one "column = value" or "column IN (values)" condition.
type predicate struct {
	column string
	values []interface{}
	in     bool
}

type whereQuery[Q any] interface {
	Where(query string, args ...interface{}) Q
}

// applyWhere ANDs the predicates onto q.
func applyWhere[Q whereQuery[Q]](q Q, preds []predicate) Q {
	for _, p := range preds {
		if p.in {
			q = q.Where("? IN (?)", bun.Ident(p.column), bun.In(p.values))
		} else {
			q = q.Where("? = ?", bun.Ident(p.column), p.values[0])
		}
	}
	return q
}

func idPredicate(pk string, ids ...int64) predicate {
	values := make([]interface{}, len(ids))
	for i, id := range ids {
		values[i] = id
	}
	return predicate{column: pk, values: values, in: len(ids) > 1}
}

// predicates validates filter against the allow-list and coerces its values.
// Keys are processed in ascending order so the generated SQL is stable.
func (b *boundSchema) predicates(filter types.Filter) ([]predicate, error) {
	if len(filter) == 0 {
		return nil, &InvalidFilterError{Table: b.table, Reason: "filter is empty"}
	}

	preds := make([]predicate, 0, len(filter))
	for _, col := range filter.Columns() {
		typ, ok := b.columns[col]
		if !ok {
			return nil, &InvalidFilterError{Table: b.table, Column: col, Reason: "unknown column"}
		}
		p, err := b.predicate(col, typ, filter[col])
		if err != nil {
			return nil, err
		}
		preds = append(preds, p)
	}
	return preds, nil
}

func (b *boundSchema) predicate(col string, typ ColumnType, value interface{}) (predicate, error) {
	reject := func(reason string) (predicate, error) {
		return predicate{}, &InvalidFilterError{Table: b.table, Column: col, Reason: reason}
	}

	rv, ok := indirect(value)
	if !ok {
		return reject("nil value")
	}

	if isSequence(rv) {
		if rv.Len() == 0 {
			return reject("empty value list")
		}
		values := make([]interface{}, 0, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			ev, ok := indirect(rv.Index(i).Interface())
			if !ok {
				return reject(fmt.Sprintf("nil element at index %d", i))
			}
			if !isScalar(ev) {
				return reject(fmt.Sprintf("element %d is not a scalar", i))
			}
			cv, err := typ.Coerce(ev.Interface())
			if err != nil {
				return reject(fmt.Sprintf("element %d: %v", i, err))
			}
			values = append(values, cv)
		}
		return predicate{column: col, values: values, in: true}, nil
	}

	if !isScalar(rv) {
		return reject(fmt.Sprintf("unsupported value of type %s", rv.Type()))
	}
	cv, err := typ.Coerce(rv.Interface())
	if err != nil {
		return reject(err.Error())
	}
	return predicate{column: col, values: []interface{}{cv}}, nil
}

// order validates an ordering request. An empty column means no explicit order.
func (b *boundSchema) order(column string, dir types.Direction) (*types.Order, error) {
	if column == "" {
		if dir != "" {
			return nil, &InvalidOrderError{Table: b.table, Direction: dir, Reason: "direction without column"}
		}
		return nil, nil
	}
	if !b.has(column) {
		return nil, &InvalidOrderError{Table: b.table, Column: column, Direction: dir, Reason: "unknown column"}
	}
	norm, ok := dir.Normalize()
	if !ok {
		return nil, &InvalidOrderError{Table: b.table, Column: column, Direction: dir, Reason: "direction must be ASC or DESC"}
	}
	if norm == "" {
		norm = types.Asc
	}
	o := types.NewOrder(column, norm)
	return &o, nil
}

var timeType = reflect.TypeOf(time.Time{})

func indirect(v interface{}) (reflect.Value, bool) {
	rv := reflect.ValueOf(v)
	for rv.IsValid() && (rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface) {
		if rv.IsNil() {
			return reflect.Value{}, false
		}
		rv = rv.Elem()
	}
	return rv, rv.IsValid()
}

func isSequence(rv reflect.Value) bool {
	switch rv.Kind() {
	case reflect.Slice:
		return rv.Type().Elem().Kind() != reflect.Uint8
	case reflect.Array:
		return true
	default:
		return false
	}
}

func isScalar(rv reflect.Value) bool {
	switch rv.Kind() {
	case reflect.Bool, reflect.String,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	case reflect.Slice:
		return rv.Type().Elem().Kind() == reflect.Uint8
	case reflect.Struct:
		return rv.Type() == timeType
	default:
		return false
	}
}
