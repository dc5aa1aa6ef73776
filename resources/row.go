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

package resources

import (
	"fmt"
	"time"

	"github.com/tomoncle/lima/repository"
	"github.com/tomoncle/lima/types"
)

// Audit carries the columns stamped by the repository.
type Audit struct {
	CreatedAt time.Time
	CreatedBy *int64
	UpdatedAt *time.Time
	UpdatedBy *int64
}

// rowReader converts columns of one row and keeps the first failure.
type rowReader struct {
	row types.Row
	err error
}

func (r *rowReader) fail(col string, err error) {
	if r.err == nil {
		r.err = fmt.Errorf("column %s: %w", col, err)
	}
}

func (r *rowReader) int64(col string) int64 {
	v := r.row[col]
	if v == nil {
		return 0
	}
	n, err := types.AsInt64(v)
	if err != nil {
		r.fail(col, err)
	}
	return n
}

func (r *rowReader) nullInt64(col string) *int64 {
	n, err := types.NullInt64(r.row[col])
	if err != nil {
		r.fail(col, err)
	}
	return n
}

func (r *rowReader) string(col string) string {
	v := r.row[col]
	if v == nil {
		return ""
	}
	s, err := types.AsString(v)
	if err != nil {
		r.fail(col, err)
	}
	return s
}

func (r *rowReader) time(col string) time.Time {
	v := r.row[col]
	if v == nil {
		return time.Time{}
	}
	t, err := types.AsTime(v)
	if err != nil {
		r.fail(col, err)
	}
	return t
}

func (r *rowReader) nullTime(col string) *time.Time {
	t, err := types.NullTime(r.row[col])
	if err != nil {
		r.fail(col, err)
	}
	return t
}

func (r *rowReader) audit() Audit {
	return Audit{
		CreatedAt: r.time(repository.CreatedAt),
		CreatedBy: r.nullInt64(repository.CreatedBy),
		UpdatedAt: r.nullTime(repository.UpdatedAt),
		UpdatedBy: r.nullInt64(repository.UpdatedBy),
	}
}
