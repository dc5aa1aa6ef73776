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
	"errors"
	"fmt"

	"github.com/tomoncle/lima/database"
	"github.com/tomoncle/lima/types"
)

// Sentinel errors for use with errors.Is.
var (
	ErrInvalidFilter    = errors.New("invalid filter")
	ErrInvalidOrder     = errors.New("invalid order")
	ErrInvalidData      = errors.New("invalid data")
	ErrNotFound         = errors.New("resource not found")
	ErrPersistence      = errors.New("persistence failed")
	ErrStorage          = errors.New("storage failure")
	ErrTruncateDisabled = errors.New("truncate disabled")
)

// InvalidFilterError reports a filter or id rejected before any store access.
type InvalidFilterError struct {
	Table  string
	Column string
	Reason string
}

func (e *InvalidFilterError) Error() string {
	if e.Column == "" {
		return fmt.Sprintf("%s: invalid filter: %s", e.Table, e.Reason)
	}
	return fmt.Sprintf("%s: invalid filter on %q: %s", e.Table, e.Column, e.Reason)
}

func (e *InvalidFilterError) Unwrap() error { return ErrInvalidFilter }

// InvalidOrderError reports an ordering column or direction outside the allow-list.
type InvalidOrderError struct {
	Table     string
	Column    string
	Direction types.Direction
	Reason    string
}

func (e *InvalidOrderError) Error() string {
	return fmt.Sprintf("%s: invalid order %q %q: %s", e.Table, e.Column, string(e.Direction), e.Reason)
}

func (e *InvalidOrderError) Unwrap() error { return ErrInvalidOrder }

// InvalidDataError reports a data key outside the allow-list.
type InvalidDataError struct {
	Table  string
	Column string
	Reason string
}

func (e *InvalidDataError) Error() string {
	return fmt.Sprintf("%s: invalid data key %q: %s", e.Table, e.Column, e.Reason)
}

func (e *InvalidDataError) Unwrap() error { return ErrInvalidData }

// NotFoundError reports that a lookup matched no row.
type NotFoundError struct {
	Table  string
	ID     int64
	Filter types.Filter
}

func (e *NotFoundError) Error() string {
	if e.Filter != nil {
		return fmt.Sprintf("%s: no row matches filter on %v", e.Table, e.Filter.Columns())
	}
	return fmt.Sprintf("%s: no row with id %d", e.Table, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// PersistenceError reports a write the store accepted without changing any row.
type PersistenceError struct {
	Table string
	Op    string
	ID    int64
}

func (e *PersistenceError) Error() string {
	if e.ID > 0 {
		return fmt.Sprintf("%s: %s of id %d affected no rows", e.Table, e.Op, e.ID)
	}
	return fmt.Sprintf("%s: %s affected no rows", e.Table, e.Op)
}

func (e *PersistenceError) Unwrap() error { return ErrPersistence }

// StorageError wraps a driver or connection failure. It matches both
// ErrStorage and the underlying driver error.
type StorageError struct {
	Table string
	Op    string
	Kind  database.SQLError
	Err   error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("%s: %s failed (%s): %v", e.Table, e.Op, e.Kind, e.Err)
}

func (e *StorageError) Unwrap() []error { return []error{ErrStorage, e.Err} }

func newStorageError(table, op string, err error) *StorageError {
	_, kind := database.IsSqlError(err)
	return &StorageError{Table: table, Op: op, Kind: kind, Err: err}
}
