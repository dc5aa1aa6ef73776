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
	"fmt"
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
)

func TestIsSqlErrorMySQL(t *testing.T) {
	cases := map[uint16]SQLError{
		1146: NoTableErr,
		1062: DuplicateKeyErr,
		1054: NoColumnErr,
		1048: NotNullViolationErr,
		1452: ForeignKeyViolationErr,
		1406: DataTruncatedErr,
		2006: ConnectionErr,
		9999: UnknownErr,
	}
	for number, want := range cases {
		err := fmt.Errorf("query: %w", &mysql.MySQLError{Number: number, Message: "x"})
		is, got := IsSqlError(err)
		assert.True(t, is, "mysql %d", number)
		assert.Equal(t, want, got, "mysql %d", number)
	}
}

func TestIsSqlErrorPostgres(t *testing.T) {
	cases := map[pq.ErrorCode]SQLError{
		"42P01": NoTableErr,
		"23505": DuplicateKeyErr,
		"23502": NotNullViolationErr,
		"23503": ForeignKeyViolationErr,
		"22P02": InvalidTypeCastErr,
		"08006": ConnectionErr,
		"XX000": UnknownErr,
	}
	for code, want := range cases {
		is, got := IsSqlError(&pq.Error{Code: code})
		assert.True(t, is, "pq %s", code)
		assert.Equal(t, want, got, "pq %s", code)
	}
}

func TestIsSqlErrorMessages(t *testing.T) {
	cases := []struct {
		msg  string
		want SQLError
	}{
		{"SQL logic error: no such table: lima_licenses (1)", NoTableErr},
		{"constraint failed: UNIQUE constraint failed: lima_licenses.hash", DuplicateKeyErr},
		{"NOT NULL constraint failed: lima_generators.name", NotNullViolationErr},
		{"no such column: bogus", NoColumnErr},
		{"database is locked", ConnectionErr},
	}
	for _, c := range cases {
		is, got := IsSqlError(errors.New(c.msg))
		assert.True(t, is, c.msg)
		assert.Equal(t, c.want, got, c.msg)
	}

	is, got := IsSqlError(errors.New("something else entirely"))
	assert.False(t, is)
	assert.Equal(t, UnknownErr, got)
}

func TestIsSqlErrorSentinels(t *testing.T) {
	is, got := IsSqlError(nil)
	assert.False(t, is)
	assert.Equal(t, UnknownErr, got)

	_, got = IsSqlError(fmt.Errorf("scan: %w", sql.ErrNoRows))
	assert.Equal(t, NoRowsErr, got)

	_, got = IsSqlError(context.Canceled)
	assert.Equal(t, CanceledErr, got)

	_, got = IsSqlError(context.DeadlineExceeded)
	assert.Equal(t, CanceledErr, got)

	_, got = IsSqlError(driver.ErrBadConn)
	assert.Equal(t, ConnectionErr, got)
}

func TestSQLErrorString(t *testing.T) {
	assert.Equal(t, "duplicate_key", DuplicateKeyErr.String())
	assert.Equal(t, "no_table", NoTableErr.String())
	assert.Equal(t, "unknown", SQLError(999).String())
}
