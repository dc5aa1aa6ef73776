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

package database

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
)

type SQLError int

const (
	UnknownErr SQLError = iota
	NoRowsErr
	NoIndexErr
	NoColumnErr
	ExistIndexErr
	ExistColumnErr
	NoTableErr
	ExistTableErr
	DuplicateKeyErr
	NotNullViolationErr
	ForeignKeyViolationErr
	CheckConstraintViolationErr
	DataTruncatedErr
	InvalidTypeCastErr
	ConnectionErr
	CanceledErr
)

var sqlErrorNames = map[SQLError]string{
	UnknownErr:                  "unknown",
	NoRowsErr:                   "no_rows",
	NoIndexErr:                  "no_index",
	NoColumnErr:                 "no_column",
	ExistIndexErr:               "exist_index",
	ExistColumnErr:              "exist_column",
	NoTableErr:                  "no_table",
	ExistTableErr:               "exist_table",
	DuplicateKeyErr:             "duplicate_key",
	NotNullViolationErr:         "not_null_violation",
	ForeignKeyViolationErr:      "foreign_key_violation",
	CheckConstraintViolationErr: "check_constraint_violation",
	DataTruncatedErr:            "data_truncated",
	InvalidTypeCastErr:          "invalid_type_cast",
	ConnectionErr:               "connection",
	CanceledErr:                 "canceled",
}

func (e SQLError) String() string {
	if s, ok := sqlErrorNames[e]; ok {
		return s
	}
	return sqlErrorNames[UnknownErr]
}

// mysqlCodes maps MySQL server and client error numbers.
var mysqlCodes = map[uint16]SQLError{
	1091: NoIndexErr,
	1054: NoColumnErr,
	1061: ExistIndexErr,
	1060: ExistColumnErr,
	1146: NoTableErr,
	1050: ExistTableErr,
	1062: DuplicateKeyErr,
	1048: NotNullViolationErr,
	1216: ForeignKeyViolationErr,
	1217: ForeignKeyViolationErr,
	1451: ForeignKeyViolationErr,
	1452: ForeignKeyViolationErr,
	3819: CheckConstraintViolationErr,
	1265: DataTruncatedErr,
	1406: DataTruncatedErr,
	1040: ConnectionErr,
	1042: ConnectionErr,
	1043: ConnectionErr,
	1045: ConnectionErr,
	2002: ConnectionErr,
	2003: ConnectionErr,
	2006: ConnectionErr,
	2013: ConnectionErr,
}

// pqCodes maps PostgreSQL SQLSTATE codes.
var pqCodes = map[pq.ErrorCode]SQLError{
	"42703": NoColumnErr,
	"42704": NoIndexErr,
	"42P01": NoTableErr,
	"42P07": ExistTableErr,
	"42701": ExistColumnErr,
	"23505": DuplicateKeyErr,
	"23502": NotNullViolationErr,
	"23503": ForeignKeyViolationErr,
	"23514": CheckConstraintViolationErr,
	"22001": DataTruncatedErr,
	"42804": InvalidTypeCastErr,
	"22P02": InvalidTypeCastErr,
}

// IsSqlError classifies err. The first return value reports whether err was
// recognised as a database error at all.
func IsSqlError(err error) (is bool, sqlErr SQLError) {
	if err == nil {
		return false, UnknownErr
	}
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return true, NoRowsErr
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return true, CanceledErr
	case errors.Is(err, driver.ErrBadConn), errors.Is(err, sql.ErrConnDone), errors.Is(err, mysql.ErrInvalidConn):
		return true, ConnectionErr
	}

	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) {
		if kind, ok := mysqlCodes[mysqlErr.Number]; ok {
			return true, kind
		}
		return true, UnknownErr
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		if kind, ok := pqCodes[pqErr.Code]; ok {
			return true, kind
		}
		if pqErr.Code.Class() == "08" {
			return true, ConnectionErr
		}
		return true, UnknownErr
	}

	msg := strings.ToLower(err.Error())
	for _, rule := range messageRules {
		if rule.matches(msg) {
			return true, rule.kind
		}
	}
	return false, UnknownErr
}

// messageRule classifies drivers that only expose text (sqlite, wrapped pg
// errors). A rule matches when every fragment of any one alternative occurs
// in the lower-cased message.
type messageRule struct {
	kind         SQLError
	alternatives [][]string
}

func (r messageRule) matches(msg string) bool {
	for _, fragments := range r.alternatives {
		all := true
		for _, f := range fragments {
			if !strings.Contains(msg, f) {
				all = false
				break
			}
		}
		if all {
			return true
		}
	}
	return false
}

func anyOf(fragments ...string) [][]string {
	alts := make([][]string, len(fragments))
	for i, f := range fragments {
		alts[i] = []string{f}
	}
	return alts
}

// messageRules are tried in order.
var messageRules = []messageRule{
	{NoColumnErr, anyOf("sqlstate 42703", "undefined column", "no such column")},
	{NoIndexErr, append(anyOf("sqlstate 42704", "no such index"), []string{"does not exist", "index"})},
	{NoTableErr, anyOf("sqlstate 42p01", "undefined table", "no such table")},
	{ExistIndexErr, [][]string{{"already exists", "index"}}},
	{ExistTableErr, [][]string{{"already exists", "table"}, {"already exists", "relation"}}},
	{DuplicateKeyErr, anyOf("duplicate key value", "unique constraint failed", "sqlstate 23505")},
	{NotNullViolationErr, anyOf("not-null constraint", "not null constraint failed", "sqlstate 23502")},
	{ForeignKeyViolationErr, anyOf("foreign key violation", "foreign key constraint failed", "sqlstate 23503")},
	{CheckConstraintViolationErr, anyOf("check constraint", "sqlstate 23514")},
	{DataTruncatedErr, anyOf("string data right truncation", "data truncated", "sqlstate 22001")},
	{InvalidTypeCastErr, anyOf("datatype mismatch", "sqlstate 42804")},
	{ConnectionErr, anyOf("connection refused", "connection reset", "database is locked", "sql: database is closed")},
}
