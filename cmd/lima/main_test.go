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

package main

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tomoncle/lima/database"
	"github.com/tomoncle/lima/repository"
	"github.com/tomoncle/lima/resources"
	"github.com/tomoncle/lima/types"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

const configTemplate = `
connection:
  type: sqlite
  dbname: %s
  health_check_interval: 0s
repository:
  environment: test
  allow_truncate: %t
logging:
  level: error
  color: false
`

// setup creates a seeded sqlite file and a config pointing at it.
func setup(t *testing.T, allowTruncate bool) string {
	t.Helper()
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "lima.db")

	ddl, err := os.ReadFile(filepath.Join("..", "..", "resources", "testdata", "sqlite.sql"))
	require.NoError(t, err)

	sqldb, err := sql.Open(sqliteshim.ShimName, dbPath)
	require.NoError(t, err)
	db := bun.NewDB(sqldb, sqlitedialect.New())
	defer func() { _ = db.Close() }()

	ctx := context.Background()
	_, err = db.ExecContext(ctx, string(ddl))
	require.NoError(t, err)

	licenses, err := resources.NewLicenseRepository(db, repository.WithLogger(database.NopLogger{}))
	require.NoError(t, err)
	for i, status := range []resources.LicenseStatus{resources.StatusActive, resources.StatusActive, resources.StatusSold} {
		_, err := licenses.Insert(ctx, types.Row{
			resources.LicenseKey:          fmt.Sprintf("KEY-%d", i+1),
			resources.LicenseHash:         fmt.Sprintf("hash-%d", i+1),
			resources.LicenseStatusColumn: status.Number(),
			resources.LicenseOrderID:      100 + i,
		})
		require.NoError(t, err)
	}

	generators, err := resources.NewGeneratorRepository(db, repository.WithLogger(database.NopLogger{}))
	require.NoError(t, err)
	_, err = generators.Create(ctx, &resources.Generator{Name: "default", Charset: "ABCDEF0123456789", Chunks: 4, ChunkLength: 5, Separator: "-"})
	require.NoError(t, err)

	cfgPath := filepath.Join(dir, "lima.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(fmt.Sprintf(configTemplate, dbPath, allowTruncate)), 0o600))
	return cfgPath
}

func runCLI(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestCountLicenses(t *testing.T) {
	cfg := setup(t, false)

	code, out, errOut := runCLI(t, "-c", cfg, "count")
	require.Equal(t, exitSuccess, code, errOut)
	assert.Contains(t, out, "lima_licenses")
	assert.Regexp(t, `(?m)^lima_licenses\s+3$`, out)
	assert.Regexp(t, `(?m)^\s+ACTIVE\s+2$`, out)
	assert.Regexp(t, `(?m)^\s+SOLD\s+1$`, out)
	assert.Regexp(t, `(?m)^\s+INACTIVE\s+0$`, out)
}

func TestCountByStatus(t *testing.T) {
	cfg := setup(t, false)

	code, out, errOut := runCLI(t, "-c", cfg, "count", "--status", "active,1")
	require.Equal(t, exitSuccess, code, errOut)
	assert.Equal(t, "lima_licenses\t3\n", out)

	code, _, errOut = runCLI(t, "-c", cfg, "count", "--status", "revoked")
	assert.Equal(t, exitError, code)
	assert.Contains(t, errOut, `unknown license status "revoked"`)
}

func TestCountGenerators(t *testing.T) {
	cfg := setup(t, false)

	code, out, errOut := runCLI(t, "-c", cfg, "-r", "generators", "count")
	require.Equal(t, exitSuccess, code, errOut)
	assert.Equal(t, "lima_generators\t1\n", out)
}

func TestListLicensesOrdered(t *testing.T) {
	cfg := setup(t, false)

	code, out, errOut := runCLI(t, "-c", cfg, "list", "--order-by", "order_id", "--sort", "desc", "--limit", "2")
	require.Equal(t, exitSuccess, code, errOut)
	assert.Regexp(t, `(?s)KEY-3.*KEY-2`, out)
	assert.NotContains(t, out, "KEY-1")
	assert.Contains(t, out, "page 1/2, 3 total")
}

func TestListRejectsUnknownOrderColumn(t *testing.T) {
	cfg := setup(t, false)

	code, _, errOut := runCLI(t, "-c", cfg, "list", "--order-by", "secret")
	assert.Equal(t, exitError, code)
	assert.Contains(t, errOut, "secret")
}

func TestListGenerators(t *testing.T) {
	cfg := setup(t, false)

	code, out, errOut := runCLI(t, "-c", cfg, "--resource", "generators", "list")
	require.Equal(t, exitSuccess, code, errOut)
	assert.Contains(t, out, "default")
	assert.Contains(t, out, "4x5")
	assert.Contains(t, out, "23")
}

func TestFind(t *testing.T) {
	cfg := setup(t, false)

	code, out, errOut := runCLI(t, "-c", cfg, "find", "--id", "2")
	require.Equal(t, exitSuccess, code, errOut)
	assert.Contains(t, out, "KEY-2")
	assert.Contains(t, out, "ACTIVE")

	code, _, errOut = runCLI(t, "-c", cfg, "find", "--id", "99")
	assert.Equal(t, exitError, code)
	assert.Contains(t, errOut, "no row with id 99")

	code, _, errOut = runCLI(t, "-c", cfg, "find")
	assert.Equal(t, exitError, code)
	assert.Contains(t, errOut, "positive --id")
}

func TestResetNeedsConfirmationAndPermission(t *testing.T) {
	cfg := setup(t, false)

	code, _, errOut := runCLI(t, "-c", cfg, "reset")
	assert.Equal(t, exitError, code)
	assert.Contains(t, errOut, "--yes")

	code, _, errOut = runCLI(t, "-c", cfg, "reset", "--yes")
	assert.Equal(t, exitError, code)
	assert.Contains(t, errOut, repository.ErrTruncateDisabled.Error())
}

func TestReset(t *testing.T) {
	cfg := setup(t, true)

	code, out, errOut := runCLI(t, "-c", cfg, "-r", "generators", "reset", "-y")
	require.Equal(t, exitSuccess, code, errOut)
	assert.Equal(t, "lima_generators reset\n", out)

	_, out, _ = runCLI(t, "-c", cfg, "-r", "generators", "count")
	assert.Equal(t, "lima_generators\t0\n", out)
}

func TestHealth(t *testing.T) {
	cfg := setup(t, false)

	code, out, errOut := runCLI(t, "-c", cfg, "health")
	require.Equal(t, exitSuccess, code, errOut)
	assert.Contains(t, out, "healthy=true")
}

func TestUsageErrors(t *testing.T) {
	code, _, errOut := runCLI(t)
	assert.Equal(t, exitUsage, code)
	assert.Contains(t, errOut, "expected exactly one command")

	code, _, errOut = runCLI(t, "-r", "orders", "count")
	assert.Equal(t, exitUsage, code)
	assert.Contains(t, errOut, `unknown resource "orders"`)

	code, _, _ = runCLI(t, "--bogus")
	assert.Equal(t, exitUsage, code)

	code, _, _ = runCLI(t, "--help")
	assert.Equal(t, exitSuccess, code)

	cfg := setup(t, false)
	code, _, errOut = runCLI(t, "-c", cfg, "frobnicate")
	assert.Equal(t, exitUsage, code)
	assert.Contains(t, errOut, `unknown command "frobnicate"`)

	code, _, errOut = runCLI(t, "-c", filepath.Join(t.TempDir(), "none.yaml"), "count")
	assert.Equal(t, exitError, code)
	assert.Contains(t, errOut, "failed to read config file")
}
