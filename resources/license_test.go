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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tomoncle/lima/database"
	"github.com/tomoncle/lima/repository"
	"github.com/tomoncle/lima/types"
	"github.com/uptrace/bun"
)

func newLicenseRepo(t *testing.T) *LicenseRepository {
	t.Helper()
	repo, err := NewLicenseRepository(newTestDB(t), testOptions()...)
	require.NoError(t, err)
	return repo
}

func insertLicense(t *testing.T, repo *LicenseRepository, ctx context.Context, n int, order int64, status LicenseStatus) *License {
	t.Helper()
	l, err := repo.Insert(ctx, types.Row{
		LicenseOrderID:           order,
		LicenseKey:               fmt.Sprintf("KEY-%04d", n),
		LicenseHash:              fmt.Sprintf("hash-%04d", n),
		LicenseStatusColumn:      status.Number(),
		LicenseTimesActivatedMax: 2,
	})
	require.NoError(t, err)
	return l
}

func TestLicenseInsertAndFindByHash(t *testing.T) {
	repo := newLicenseRepo(t)
	ctx := repository.WithActor(context.Background(), 11)

	l := insertLicense(t, repo, ctx, 1, 100, StatusSold)
	assert.Positive(t, l.ID)
	require.NotNil(t, l.OrderID)
	assert.Equal(t, int64(100), *l.OrderID)
	assert.Nil(t, l.ProductID)
	assert.Equal(t, "KEY-0001", l.LicenseKey)
	assert.Equal(t, StatusSold, l.Status)
	assert.Equal(t, int64(1), l.Source)
	assert.Zero(t, l.TimesActivated)
	assert.Equal(t, int64(2), l.ActivationsLeft())
	require.NotNil(t, l.CreatedBy)
	assert.Equal(t, int64(11), *l.CreatedBy)
	assert.False(t, l.CreatedAt.IsZero())

	found, err := repo.FindByHash(ctx, "hash-0001")
	require.NoError(t, err)
	assert.Equal(t, l, found)

	_, err = repo.FindByHash(ctx, "missing")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestLicenseDuplicateHashIsStorageError(t *testing.T) {
	repo := newLicenseRepo(t)
	ctx := context.Background()
	insertLicense(t, repo, ctx, 1, 1, StatusSold)

	_, err := repo.Insert(ctx, types.Row{
		LicenseKey:          "other",
		LicenseHash:         "hash-0001",
		LicenseStatusColumn: StatusSold.Number(),
	})
	require.ErrorIs(t, err, repository.ErrStorage)

	var se *repository.StorageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, database.DuplicateKeyErr, se.Kind)
}

func TestLicenseQueriesByOrderAndStatus(t *testing.T) {
	repo := newLicenseRepo(t)
	ctx := context.Background()

	insertLicense(t, repo, ctx, 1, 100, StatusSold)
	insertLicense(t, repo, ctx, 2, 100, StatusActive)
	insertLicense(t, repo, ctx, 3, 200, StatusActive)
	insertLicense(t, repo, ctx, 4, 200, StatusInactive)

	byOrder, err := repo.FindAllByOrder(ctx, 100)
	require.NoError(t, err)
	require.Len(t, byOrder, 2)
	assert.Equal(t, "KEY-0001", byOrder[0].LicenseKey)
	assert.Equal(t, "KEY-0002", byOrder[1].LicenseKey)

	active, err := repo.FindAllByStatus(ctx, StatusActive, StatusInactive)
	require.NoError(t, err)
	assert.Len(t, active, 3)

	_, err = repo.FindAllByStatus(ctx)
	assert.ErrorIs(t, err, repository.ErrInvalidFilter)
	_, err = repo.FindAllByStatus(ctx, LicenseStatus(42))
	assert.ErrorIs(t, err, repository.ErrInvalidFilter)

	counts, err := repo.CountByStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[LicenseStatus]int64{
		StatusSold:      1,
		StatusDelivered: 0,
		StatusActive:    2,
		StatusInactive:  1,
	}, counts)
}

func TestLicenseSetStatus(t *testing.T) {
	repo := newLicenseRepo(t)
	ctx := context.Background()
	l := insertLicense(t, repo, ctx, 1, 1, StatusSold)

	updated, err := repo.SetStatus(repository.WithActor(ctx, 3), l.ID, StatusDelivered)
	require.NoError(t, err)
	assert.Equal(t, StatusDelivered, updated.Status)
	require.NotNil(t, updated.UpdatedBy)
	assert.Equal(t, int64(3), *updated.UpdatedBy)

	_, err = repo.SetStatus(ctx, l.ID, LicenseStatus(0))
	assert.ErrorIs(t, err, repository.ErrInvalidData)

	_, err = repo.SetStatus(ctx, l.ID+1, StatusActive)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestLicenseWithDB(t *testing.T) {
	repo := newLicenseRepo(t)
	ctx := context.Background()

	tx, err := repo.DB().(*bun.DB).BeginTx(ctx, nil)
	require.NoError(t, err)
	txRepo := repo.WithDB(tx)
	insertLicense(t, txRepo, ctx, 1, 1, StatusSold)
	require.NoError(t, tx.Commit())

	n, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestLicenseHelpers(t *testing.T) {
	now := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)
	limit := int64(3)

	l := &License{}
	assert.False(t, l.Expired(now))
	assert.Equal(t, int64(-1), l.ActivationsLeft())

	l.ExpiresAt = &past
	l.TimesActivatedMax = &limit
	l.TimesActivated = 5
	assert.True(t, l.Expired(now))
	assert.Zero(t, l.ActivationsLeft())
}

func TestMapLicenseReportsBadColumn(t *testing.T) {
	_, err := mapLicense(types.Row{LicenseID: int64(1), LicenseStatusColumn: "active"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "column status")
}
