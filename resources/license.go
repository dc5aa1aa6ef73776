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
	"context"
	"fmt"
	"time"

	"github.com/tomoncle/lima/repository"
	"github.com/tomoncle/lima/types"
	"github.com/uptrace/bun"
)

// DefaultTablePrefix is prepended to the table base names.
const DefaultTablePrefix = "lima_"

const (
	LicenseTableBase = "licenses"
	LicenseTable     = DefaultTablePrefix + LicenseTableBase
)

// License columns.
const (
	LicenseID                = "id"
	LicenseOrderID           = "order_id"
	LicenseProductID         = "product_id"
	LicenseUserID            = "user_id"
	LicenseKey               = "license_key"
	LicenseHash              = "hash"
	LicenseExpiresAt         = "expires_at"
	LicenseValidFor          = "valid_for"
	LicenseSource            = "source"
	LicenseStatusColumn      = "status"
	LicenseTimesActivated    = "times_activated"
	LicenseTimesActivatedMax = "times_activated_max"
)

// LicenseSchema binds the license table and its allow-listed columns.
var LicenseSchema = repository.Schema{
	Table:      LicenseTable,
	PrimaryKey: LicenseID,
	Columns: []repository.Column{
		repository.IntColumn(LicenseOrderID),
		repository.IntColumn(LicenseProductID),
		repository.IntColumn(LicenseUserID),
		repository.StringColumn(LicenseKey),
		repository.StringColumn(LicenseHash),
		repository.TimeColumn(LicenseExpiresAt),
		repository.IntColumn(LicenseValidFor),
		repository.IntColumn(LicenseSource),
		repository.IntColumn(LicenseStatusColumn),
		repository.IntColumn(LicenseTimesActivated),
		repository.IntColumn(LicenseTimesActivatedMax),
	},
}

// License is one sold license key. LicenseKey holds the stored, possibly
// encrypted, key; Hash is the lookup digest.
type License struct {
	ID                int64
	OrderID           *int64
	ProductID         *int64
	UserID            *int64
	LicenseKey        string
	Hash              string
	ExpiresAt         *time.Time
	ValidFor          *int64
	Source            int64
	Status            LicenseStatus
	TimesActivated    int64
	TimesActivatedMax *int64
	Audit
}

// Expired reports whether the license has an expiry before now.
func (l *License) Expired(now time.Time) bool {
	return l.ExpiresAt != nil && l.ExpiresAt.Before(now)
}

// ActivationsLeft returns the remaining activations, or -1 when unlimited.
func (l *License) ActivationsLeft() int64 {
	if l.TimesActivatedMax == nil {
		return -1
	}
	if left := *l.TimesActivatedMax - l.TimesActivated; left > 0 {
		return left
	}
	return 0
}

func mapLicense(row types.Row) (*License, error) {
	r := &rowReader{row: row}
	l := &License{
		ID:                r.int64(LicenseID),
		OrderID:           r.nullInt64(LicenseOrderID),
		ProductID:         r.nullInt64(LicenseProductID),
		UserID:            r.nullInt64(LicenseUserID),
		LicenseKey:        r.string(LicenseKey),
		Hash:              r.string(LicenseHash),
		ExpiresAt:         r.nullTime(LicenseExpiresAt),
		ValidFor:          r.nullInt64(LicenseValidFor),
		Source:            r.int64(LicenseSource),
		Status:            LicenseStatus(r.int64(LicenseStatusColumn)),
		TimesActivated:    r.int64(LicenseTimesActivated),
		TimesActivatedMax: r.nullInt64(LicenseTimesActivatedMax),
		Audit:             r.audit(),
	}
	if r.err != nil {
		return nil, r.err
	}
	return l, nil
}

// LicenseRepository reads and writes lima_licenses.
type LicenseRepository struct {
	*repository.ResourceRepository[*License]
}

// NewLicenseRepository binds a license repository to db.
func NewLicenseRepository(db bun.IDB, opts ...repository.Option) (*LicenseRepository, error) {
	base, err := repository.New[*License](db, LicenseSchema, mapLicense, opts...)
	if err != nil {
		return nil, err
	}
	return &LicenseRepository{ResourceRepository: base}, nil
}

// WithDB returns a copy bound to db, typically a bun.Tx.
func (r *LicenseRepository) WithDB(db bun.IDB) *LicenseRepository {
	return &LicenseRepository{ResourceRepository: r.ResourceRepository.WithDB(db)}
}

// FindByHash returns the license whose hash matches.
func (r *LicenseRepository) FindByHash(ctx context.Context, hash string) (*License, error) {
	return r.FindBy(ctx, types.Filter{LicenseHash: hash})
}

// FindAllByOrder returns the licenses sold with an order, oldest first.
func (r *LicenseRepository) FindAllByOrder(ctx context.Context, orderID int64) ([]*License, error) {
	return r.FindAllBy(ctx, types.Filter{LicenseOrderID: orderID}, repository.CreatedAt, types.Asc)
}

// FindAllByStatus returns the licenses in any of the given statuses.
func (r *LicenseRepository) FindAllByStatus(ctx context.Context, statuses ...LicenseStatus) ([]*License, error) {
	values, err := r.statusValues(statuses, false)
	if err != nil {
		return nil, err
	}
	return r.FindAllBy(ctx, types.Filter{LicenseStatusColumn: values}, "", "")
}

// CountByStatus returns the number of licenses per status, zero counts
// included.
func (r *LicenseRepository) CountByStatus(ctx context.Context) (map[LicenseStatus]int64, error) {
	counts := make(map[LicenseStatus]int64, len(licenseStatuses))
	for _, s := range licenseStatuses {
		n, err := r.CountBy(ctx, types.Filter{LicenseStatusColumn: s.Number()})
		if err != nil {
			return nil, err
		}
		counts[s] = n
	}
	return counts, nil
}

// SetStatus moves one license to status.
func (r *LicenseRepository) SetStatus(ctx context.Context, id int64, status LicenseStatus) (*License, error) {
	if _, err := r.statusValues([]LicenseStatus{status}, true); err != nil {
		return nil, err
	}
	return r.Update(ctx, id, types.Row{LicenseStatusColumn: status.Number()})
}

func (r *LicenseRepository) statusValues(statuses []LicenseStatus, write bool) ([]int, error) {
	if len(statuses) == 0 {
		return nil, &repository.InvalidFilterError{Table: r.Table(), Column: LicenseStatusColumn, Reason: "no status given"}
	}
	values := make([]int, 0, len(statuses))
	for _, s := range statuses {
		if !s.IsValid() {
			if write {
				return nil, &repository.InvalidDataError{Table: r.Table(), Column: LicenseStatusColumn, Reason: fmt.Sprintf("unknown status %d", int(s))}
			}
			return nil, &repository.InvalidFilterError{Table: r.Table(), Column: LicenseStatusColumn, Reason: fmt.Sprintf("unknown status %d", int(s))}
		}
		values = append(values, s.Number())
	}
	return values, nil
}
