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
	"regexp"
	"sort"

	"github.com/tomoncle/lima/types"
)

// Audit column names stamped by Insert and Update.
const (
	CreatedAt = "created_at"
	CreatedBy = "created_by"
	UpdatedAt = "updated_at"
	UpdatedBy = "updated_by"
)

var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ColumnType is the scalar type filter values are coerced to.
type ColumnType int

const (
	TypeInt ColumnType = iota
	TypeString
	TypeFloat
	TypeBool
	TypeTime
)

func (t ColumnType) String() string {
	switch t {
	case TypeInt:
		return "int"
	case TypeString:
		return "string"
	case TypeFloat:
		return "float"
	case TypeBool:
		return "bool"
	case TypeTime:
		return "time"
	default:
		return "unknown"
	}
}

// Coerce converts v to the column's Go representation.
func (t ColumnType) Coerce(v interface{}) (interface{}, error) {
	switch t {
	case TypeInt:
		return types.AsInt64(v)
	case TypeString:
		return types.AsString(v)
	case TypeFloat:
		return types.AsFloat64(v)
	case TypeBool:
		return types.AsBool(v)
	case TypeTime:
		return types.AsTime(v)
	default:
		return nil, fmt.Errorf("unknown column type %d", t)
	}
}

// Column is one allow-listed column identifier.
type Column struct {
	Name string
	Type ColumnType
}

func IntColumn(name string) Column    { return Column{Name: name, Type: TypeInt} }
func StringColumn(name string) Column { return Column{Name: name, Type: TypeString} }
func FloatColumn(name string) Column  { return Column{Name: name, Type: TypeFloat} }
func BoolColumn(name string) Column   { return Column{Name: name, Type: TypeBool} }
func TimeColumn(name string) Column   { return Column{Name: name, Type: TypeTime} }

// Schema binds a repository to a table, its integer primary key and the
// allow-list of columns usable in filters, orderings and written data. The
// primary key and audit columns are always allowed.
type Schema struct {
	Table      string
	PrimaryKey string
	Columns    []Column
}

type boundSchema struct {
	table   string
	pk      string
	columns map[string]ColumnType
}

func (s Schema) bind() (*boundSchema, error) {
	if !identPattern.MatchString(s.Table) {
		return nil, fmt.Errorf("invalid table name %q", s.Table)
	}
	pk := s.PrimaryKey
	if pk == "" {
		pk = "id"
	}
	if !identPattern.MatchString(pk) {
		return nil, fmt.Errorf("invalid primary key column %q", pk)
	}

	b := &boundSchema{
		table: s.Table,
		pk:    pk,
		columns: map[string]ColumnType{
			pk:        TypeInt,
			CreatedAt: TypeTime,
			CreatedBy: TypeInt,
			UpdatedAt: TypeTime,
			UpdatedBy: TypeInt,
		},
	}
	for _, c := range s.Columns {
		if !identPattern.MatchString(c.Name) {
			return nil, fmt.Errorf("invalid column name %q in table %s", c.Name, s.Table)
		}
		if c.Name == pk && c.Type != TypeInt {
			return nil, fmt.Errorf("primary key %s.%s must be an integer column", s.Table, pk)
		}
		b.columns[c.Name] = c.Type
	}
	return b, nil
}

func (b *boundSchema) has(column string) bool {
	_, ok := b.columns[column]
	return ok
}

func (b *boundSchema) names() []string {
	out := make([]string, 0, len(b.columns))
	for name := range b.columns {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// checkData verifies that every key of data is an allow-listed column other
// than the primary key.
func (b *boundSchema) checkData(data types.Row) error {
	for _, col := range data.Columns() {
		if !b.has(col) {
			return &InvalidDataError{Table: b.table, Column: col, Reason: "unknown column"}
		}
		if col == b.pk {
			return &InvalidDataError{Table: b.table, Column: col, Reason: "primary key is not writable"}
		}
	}
	return nil
}

func isAuditColumn(column string) bool {
	switch column {
	case CreatedAt, CreatedBy, UpdatedAt, UpdatedBy:
		return true
	}
	return false
}
