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
	"bytes"
	"context"
	"database/sql"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tomoncle/lima/utils"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

type recordedLog struct {
	level  string
	msg    string
	fields []interface{}
}

type recordingLogger struct {
	mu      sync.Mutex
	entries []recordedLog
}

func (l *recordingLogger) record(level, msg string, fields []interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, recordedLog{level: level, msg: msg, fields: fields})
}

func (l *recordingLogger) SetLevel(LogLevel) {}

func (l *recordingLogger) Debug(msg string, fields ...interface{}) { l.record("debug", msg, fields) }
func (l *recordingLogger) Info(msg string, fields ...interface{})  { l.record("info", msg, fields) }
func (l *recordingLogger) Warn(msg string, fields ...interface{})  { l.record("warn", msg, fields) }
func (l *recordingLogger) Error(msg string, fields ...interface{}) { l.record("error", msg, fields) }

func (l *recordingLogger) levels() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, 0, len(l.entries))
	for _, e := range l.entries {
		out = append(out, e.level)
	}
	return out
}

func newMemoryDB(t *testing.T) *bun.DB {
	t.Helper()
	sqldb, err := sql.Open(sqliteshim.ShimName, "file::memory:")
	require.NoError(t, err)
	sqldb.SetMaxOpenConns(1)
	db := bun.NewDB(sqldb, sqlitedialect.New())
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func selectOne(t *testing.T, db *bun.DB) {
	t.Helper()
	var n int
	require.NoError(t, db.NewSelect().ColumnExpr("1").Scan(context.Background(), &n))
	require.Equal(t, 1, n)
}

func selectMissing(db *bun.DB) error {
	var row map[string]interface{}
	return db.NewSelect().ColumnExpr("*").TableExpr("missing_table").Scan(context.Background(), &row)
}

func TestQueryMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewQueryMetrics("limatest", reg)

	db := newMemoryDB(t)
	db.AddQueryHook(metrics)

	selectOne(t, db)
	selectOne(t, db)
	require.Error(t, selectMissing(db))

	assert.Equal(t, 3.0, testutil.ToFloat64(metrics.Queries.WithLabelValues("SELECT")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Failures.WithLabelValues("SELECT", NoTableErr.String())))

	n, err := testutil.GatherAndCount(reg, "limatest_db_query_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestQueryHookVerbose(t *testing.T) {
	var buf bytes.Buffer
	db := newMemoryDB(t)
	db.AddQueryHook(NewQueryHook("LIMA_TEST_QUERY_LOG_UNSET", true, true, &buf))

	selectOne(t, db)
	assert.Contains(t, buf.String(), "SELECT 1")
	assert.Contains(t, buf.String(), "[BUN]")
}

func TestQueryHookOnlyFailures(t *testing.T) {
	var buf bytes.Buffer
	db := newMemoryDB(t)
	db.AddQueryHook(NewQueryHook("LIMA_TEST_QUERY_LOG_UNSET", true, false, &buf))

	selectOne(t, db)
	assert.Empty(t, buf.String())

	require.Error(t, selectMissing(db))
	assert.Contains(t, buf.String(), "missing_table")
}

func TestQueryHookEnvSwitch(t *testing.T) {
	t.Setenv("LIMA_TEST_QUERY_LOG", "0")

	var buf bytes.Buffer
	db := newMemoryDB(t)
	db.AddQueryHook(NewQueryHook("LIMA_TEST_QUERY_LOG", true, true, &buf))

	require.Error(t, selectMissing(db))
	assert.Empty(t, buf.String())
}

func TestSlowQueryHook(t *testing.T) {
	logger := &recordingLogger{}
	var buf bytes.Buffer
	db := newMemoryDB(t)
	db.AddQueryHook(NewSlowQueryHook(time.Nanosecond, logger).WithWriter(&buf))

	selectOne(t, db)
	require.Error(t, selectMissing(db))

	assert.Equal(t, []string{"warn"}, logger.levels())
	assert.Contains(t, buf.String(), "[BUN_SLOW]")
}

func TestManagerSQLiteLifecycle(t *testing.T) {
	cfg := DefaultConnectionConfig()
	cfg.Type = "sqlite"
	cfg.DBName = filepath.Join(t.TempDir(), "manager.db")
	cfg.HealthCheckInterval = 0

	logger := &recordingLogger{}
	dm := NewDatabaseManager(cfg)
	dm.SetLogger(logger)

	ctx := context.Background()
	require.NoError(t, dm.Connect(ctx))
	require.NotNil(t, dm.GetDB())
	require.NotNil(t, dm.GetSQLDB())
	require.NoError(t, dm.Ping(ctx))

	status := dm.HealthCheck(ctx)
	assert.True(t, status.Healthy)
	assert.True(t, status.Connected)
	assert.Equal(t, cfg.MaxOpenConns, dm.GetStats().MaxOpenConns)

	require.NoError(t, dm.Disconnect())
	assert.Nil(t, dm.GetDB())
	assert.Error(t, dm.Ping(ctx))

	status = dm.HealthCheck(ctx)
	assert.False(t, status.Healthy)
	assert.Equal(t, "Database not initialized", status.LastError)
	assert.Equal(t, &DBStats{}, dm.GetStats())

	assert.Equal(t, []string{"info", "info"}, logger.levels())
}

func TestFactoryRejectsUnsupportedType(t *testing.T) {
	f := NewDatabaseFactory()
	_, err := f.CreateFromConfig(&ConnectionConfig{Type: "oracle"})
	assert.ErrorContains(t, err, "unsupported database type: oracle")

	_, err = f.CreateFromConfig(nil)
	assert.Error(t, err)

	assert.Error(t, f.InitializeDatabase(context.Background()))
	assert.False(t, f.GetHealthStatus(context.Background()).Healthy)
	assert.Nil(t, f.GetDB())
	assert.NoError(t, f.Close())
}

func TestFactoryWithMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	f := NewDatabaseFactory()
	f.SetRegisterer(reg)
	f.SetLogger(NopLogger{})

	cfg := DefaultConnectionConfig()
	cfg.Type = "sqlite"
	cfg.DBName = ":memory:"
	cfg.HealthCheckInterval = 0
	cfg.EnableMetrics = true
	cfg.MetricsNamespace = "factorytest"

	_, err := f.CreateFromConfig(cfg)
	require.NoError(t, err)
	require.NoError(t, f.InitializeDatabase(context.Background()))
	t.Cleanup(func() { _ = f.Close() })

	selectOne(t, f.GetDB())
	assert.Equal(t, 1, f.GetStats().MaxOpenConns)
	assert.True(t, f.GetHealthStatus(context.Background()).Healthy)

	n, err := testutil.GatherAndCount(reg, "factorytest_db_queries_total")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestDefaultLoggerFields(t *testing.T) {
	var buf bytes.Buffer
	captureConsole(t, &buf)

	l := NewNamedLogger("DBTEST")
	l.SetLevel(LogLevelDebug)
	l.Debug("probe", "table", "lima_licenses", "dangling")

	assert.Contains(t, buf.String(), "probe")
	assert.Contains(t, buf.String(), "table=lima_licenses")
	assert.Contains(t, buf.String(), "!BADKEY=dangling")
}

// captureConsole redirects utils console output for the duration of the test.
func captureConsole(t *testing.T, w *bytes.Buffer) {
	t.Helper()
	utils.SetConsoleOutput(w)
	t.Cleanup(func() { utils.SetConsoleOutput(nopWriter{}) })
}

type nopWriter struct{}

func (nopWriter) Write(p []byte) (int, error) { return len(p), nil }

func TestToFields(t *testing.T) {
	assert.Equal(t, map[string]interface{}{"a": 1, "b": "x"}, map[string]interface{}(toFields([]interface{}{"a", 1, "b", "x"})))
	assert.Empty(t, toFields(nil))
}

func TestLogLevelString(t *testing.T) {
	assert.Equal(t, "WARN", LogLevelWarn.String())
	assert.Equal(t, "DEBUG", LogLevel(42).String())
}

func TestSupportedTypes(t *testing.T) {
	assert.Equal(t, []string{"mysql", "postgres", "postgresql", "sqlite", "sqlite3"}, SupportedTypes())
}

func TestPostgresDSNEscapesCredentials(t *testing.T) {
	cfg := &ConnectionConfig{
		Username:       "lima",
		Password:       "p@ss word",
		Host:           "db",
		Port:           5432,
		DBName:         "licenses",
		ConnectTimeout: 10 * time.Second,
	}
	assert.Equal(t, "postgres://lima:p%40ss%20word@db:5432/licenses?connect_timeout=10&sslmode=disable", postgresDSN(cfg))

	cfg.SSLMode = "require"
	assert.Contains(t, postgresDSN(cfg), "sslmode=require")
}

func TestSQLiteDSN(t *testing.T) {
	assert.Equal(t, "file::memory:?cache=shared", sqliteDSN(""))
	assert.Equal(t, "file::memory:?cache=shared", sqliteDSN(":memory:"))
	assert.Equal(t, "data/lima.db", sqliteDSN("data/lima.db"))
	assert.Equal(t, "lima.db", sqliteDSN("lima"))
}

func TestManagerHealthWatcherStops(t *testing.T) {
	cfg := DefaultConnectionConfig()
	cfg.Type = "sqlite"
	cfg.DBName = filepath.Join(t.TempDir(), "watch.db")
	cfg.HealthCheckInterval = 5 * time.Millisecond

	dm := NewDatabaseManager(cfg)
	require.NoError(t, dm.Connect(context.Background()))
	// a second Connect is a no-op
	require.NoError(t, dm.Connect(context.Background()))
	time.Sleep(20 * time.Millisecond)

	done := make(chan error, 1)
	go func() { done <- dm.Disconnect() }()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Disconnect did not stop the health watcher")
	}
}

func TestManagerReconnect(t *testing.T) {
	cfg := DefaultConnectionConfig()
	cfg.Type = "sqlite"
	cfg.DBName = filepath.Join(t.TempDir(), "reconnect.db")
	cfg.HealthCheckInterval = 0

	dm := NewDatabaseManager(cfg)
	ctx := context.Background()
	require.NoError(t, dm.Connect(ctx))
	first := dm.GetDB()

	require.NoError(t, dm.Reconnect(ctx))
	assert.NotSame(t, first, dm.GetDB())
	assert.NoError(t, dm.Ping(ctx))
	require.NoError(t, dm.Disconnect())
}

func TestQueryHookSilent(t *testing.T) {
	SetQueryLogSilent(true)
	t.Cleanup(func() { SetQueryLogSilent(false) })

	var buf bytes.Buffer
	db := newMemoryDB(t)
	db.AddQueryHook(NewQueryHook("LIMA_TEST_QUERY_LOG_UNSET", true, true, &buf))

	selectOne(t, db)
	assert.Empty(t, buf.String())
}
