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
	"fmt"
	"net"
	"net/url"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/mysqldialect"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
	"github.com/uptrace/bun/extra/bundebug"
)

// dialector opens a driver connection for one database type and wraps it in
// the matching bun dialect.
type dialector func(cfg *ConnectionConfig) (*bun.DB, error)

var dialectors = map[string]dialector{
	"mysql":      openMySQL,
	"postgres":   openPostgres,
	"postgresql": openPostgres,
	"sqlite":     openSQLite,
	"sqlite3":    openSQLite,
}

// SupportedTypes lists the accepted ConnectionConfig.Type values.
func SupportedTypes() []string {
	types := make([]string, 0, len(dialectors))
	for t := range dialectors {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

func openMySQL(cfg *ConnectionConfig) (*bun.DB, error) {
	mc := mysql.NewConfig()
	mc.User = cfg.Username
	mc.Passwd = cfg.Password
	mc.Net = "tcp"
	mc.Addr = net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
	mc.DBName = cfg.DBName
	mc.ParseTime = true
	mc.Loc = time.UTC
	// UPDATE must report matched rows, otherwise an unchanged row looks missing.
	mc.ClientFoundRows = true
	mc.Timeout = cfg.ConnectTimeout
	mc.ReadTimeout = cfg.ReadTimeout
	mc.WriteTimeout = cfg.WriteTimeout
	mc.Params = map[string]string{"charset": "utf8mb4"}

	connector, err := mysql.NewConnector(mc)
	if err != nil {
		return nil, err
	}
	return bun.NewDB(sql.OpenDB(connector), mysqldialect.New()), nil
}

// postgresDSN builds a URL DSN; credentials are escaped.
func postgresDSN(cfg *ConnectionConfig) string {
	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	q := url.Values{}
	q.Set("sslmode", sslMode)
	q.Set("connect_timeout", strconv.Itoa(int(cfg.ConnectTimeout.Seconds())))
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(cfg.Username, cfg.Password),
		Host:     net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		Path:     "/" + cfg.DBName,
		RawQuery: q.Encode(),
	}
	return u.String()
}

func openPostgres(cfg *ConnectionConfig) (*bun.DB, error) {
	connector, err := pq.NewConnector(postgresDSN(cfg))
	if err != nil {
		return nil, err
	}
	return bun.NewDB(sql.OpenDB(connector), pgdialect.New()), nil
}

func openSQLite(cfg *ConnectionConfig) (*bun.DB, error) {
	dsn := sqliteDSN(cfg.DBName)
	sqlDB, err := sql.Open(sqliteshim.ShimName, dsn)
	if err != nil {
		return nil, err
	}
	if strings.Contains(dsn, "memory") {
		// each pooled connection would get its own empty database
		cfg.MaxOpenConns = 1
	}
	return bun.NewDB(sqlDB, sqlitedialect.New()), nil
}

func sqliteDSN(name string) string {
	switch {
	case name == "" || name == ":memory:":
		return "file::memory:?cache=shared"
	case strings.HasPrefix(name, "file:"), strings.HasSuffix(name, ".db"), strings.HasSuffix(name, ".sqlite"):
		return name
	default:
		return name + ".db"
	}
}

// bunManager owns one bun.DB and, when HealthCheckInterval is set, a
// watcher goroutine that pings it and reconnects on failure.
type bunManager struct {
	config     *ConnectionConfig
	registerer prometheus.Registerer
	metrics    *QueryMetrics

	mu       sync.RWMutex
	db       *bun.DB
	logger   Logger
	attempts int

	stop chan struct{}
	done chan struct{}
}

var _ AbstractDatabaseManager = (*bunManager)(nil)

// NewDatabaseManager returns an AbstractDatabaseManager backed by bun. A nil
// config uses DefaultConnectionConfig.
func NewDatabaseManager(config *ConnectionConfig) AbstractDatabaseManager {
	if config == nil {
		config = DefaultConnectionConfig()
	}
	return &bunManager{
		config:     config,
		registerer: prometheus.DefaultRegisterer,
	}
}

func (m *bunManager) Connect(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.db != nil {
		return nil
	}
	if err := m.open(ctx); err != nil {
		return err
	}
	m.startWatch()
	m.logInfo("Database connected successfully:", "type", m.config.Type, "host", m.config.Host)
	return nil
}

// open dials, instruments and pings a new handle. Callers hold mu.
func (m *bunManager) open(ctx context.Context) error {
	dial, ok := dialectors[m.config.Type]
	if !ok {
		return fmt.Errorf("unsupported database type: %s", m.config.Type)
	}
	if m.config.ConnectTimeout <= 0 {
		m.config.ConnectTimeout = 30 * time.Second
	}

	db, err := dial(m.config)
	if err != nil {
		return fmt.Errorf("failed to create database connection: %w", err)
	}
	m.instrument(db)

	db.SetMaxIdleConns(m.config.MaxIdleConns)
	db.SetMaxOpenConns(m.config.MaxOpenConns)
	db.SetConnMaxLifetime(m.config.ConnMaxLifetime)
	db.SetConnMaxIdleTime(m.config.ConnMaxIdleTime)

	pingCtx, cancel := context.WithTimeout(ctx, m.config.ConnectTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return fmt.Errorf("database connection test failed: %w", err)
	}

	m.db = db
	m.attempts = 0
	return nil
}

func (m *bunManager) instrument(db *bun.DB) {
	if m.config.EnableQueryLog {
		if m.config.QueryLogFormat == QueryLogDebug {
			db.AddQueryHook(bundebug.NewQueryHook(
				bundebug.WithVerbose(true),
				bundebug.FromEnv("BUNDEBUG"),
			))
		} else {
			db.AddQueryHook(NewQueryHook("LIMA_QUERY_LOG", true, false, os.Stdout))
		}
	}
	if m.config.SlowQueryTime > 0 {
		db.AddQueryHook(NewSlowQueryHook(m.config.SlowQueryTime, m.logger))
	}
	if m.config.EnableMetrics {
		// created once so a reconnect does not register the collectors twice
		if m.metrics == nil {
			m.metrics = NewQueryMetrics(m.config.MetricsNamespace, m.registerer)
		}
		db.AddQueryHook(m.metrics)
	}
}

// close releases the handle. Callers hold mu.
func (m *bunManager) close() error {
	if m.db == nil {
		return nil
	}
	err := m.db.Close()
	m.db = nil
	if err != nil {
		m.logError("Failed to close database connection", "error", err)
	} else {
		m.logInfo("Database connection closed")
	}
	return err
}

func (m *bunManager) Disconnect() error {
	m.stopWatch()
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.close()
}

// Reconnect replaces the handle; a running watcher keeps running.
func (m *bunManager) Reconnect(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.logInfo("Attempting to reconnect to the database")
	if err := m.close(); err != nil {
		m.logWarn("Error disconnecting existing connection", "error", err)
	}
	return m.open(ctx)
}

func (m *bunManager) Ping(ctx context.Context) error {
	db := m.GetDB()
	if db == nil {
		return fmt.Errorf("database not connected")
	}
	return db.PingContext(ctx)
}

func (m *bunManager) GetDB() *bun.DB {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.db
}

func (m *bunManager) GetSQLDB() *sql.DB {
	if db := m.GetDB(); db != nil {
		return db.DB
	}
	return nil
}

func (m *bunManager) HealthCheck(ctx context.Context) *HealthStatus {
	start := time.Now()
	status := &HealthStatus{LastCheckTime: start}

	db := m.GetDB()
	if db == nil {
		status.LastError = "Database not initialized"
		return status
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	err := db.PingContext(pingCtx)
	status.ResponseTime = time.Since(start)
	status.Healthy = err == nil
	status.Connected = err == nil
	if err != nil {
		status.LastError = err.Error()
	}

	stats := db.Stats()
	status.ActiveConns = stats.InUse
	status.IdleConns = stats.Idle
	status.MaxOpenConns = stats.MaxOpenConnections
	return status
}

// startWatch starts the health watcher once per connection. Callers hold mu.
func (m *bunManager) startWatch() {
	if m.config.HealthCheckInterval <= 0 || m.stop != nil {
		return
	}
	m.stop = make(chan struct{})
	m.done = make(chan struct{})
	go m.watch(m.config.HealthCheckInterval, m.stop, m.done)
}

func (m *bunManager) stopWatch() {
	m.mu.Lock()
	stop, done := m.stop, m.done
	m.stop, m.done = nil, nil
	m.mu.Unlock()

	if stop != nil {
		close(stop)
		<-done
	}
}

func (m *bunManager) watch(interval time.Duration, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		status := m.HealthCheck(ctx)
		cancel()
		if !status.Healthy && m.config.EnableReconnect {
			m.tryReconnect(stop)
		}
	}
}

// tryReconnect makes one reconnect attempt, giving up after MaxReconnectTries
// consecutive failures.
func (m *bunManager) tryReconnect(stop <-chan struct{}) {
	m.mu.Lock()
	if m.attempts >= m.config.MaxReconnectTries {
		tries := m.attempts
		m.mu.Unlock()
		m.logError("Max reconnect attempts reached, stopping", "tries", tries)
		return
	}
	m.attempts++
	try := m.attempts
	m.mu.Unlock()

	m.logInfo("Starting database reconnect", "try", try)
	select {
	case <-stop:
		return
	case <-time.After(m.config.ReconnectInterval):
	}

	ctx, cancel := context.WithTimeout(context.Background(), m.config.ConnectTimeout)
	defer cancel()
	if err := m.Reconnect(ctx); err != nil {
		m.logError("Reconnect failed", "error", err, "try", try)
		return
	}
	m.logInfo("Reconnect succeeded")
}

func (m *bunManager) GetStats() *DBStats {
	db := m.GetDB()
	if db == nil {
		return &DBStats{}
	}
	stats := db.Stats()
	return &DBStats{
		MaxOpenConns:      stats.MaxOpenConnections,
		OpenConns:         stats.OpenConnections,
		InUse:             stats.InUse,
		Idle:              stats.Idle,
		WaitCount:         stats.WaitCount,
		WaitDuration:      stats.WaitDuration,
		MaxIdleClosed:     stats.MaxIdleClosed,
		MaxIdleTimeClosed: stats.MaxIdleTimeClosed,
		MaxLifetimeClosed: stats.MaxLifetimeClosed,
	}
}

func (m *bunManager) SetLogger(logger Logger) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logger = logger
}

func (m *bunManager) logInfo(msg string, fields ...interface{}) {
	if m.logger != nil {
		m.logger.Info(msg, fields...)
	}
}

func (m *bunManager) logWarn(msg string, fields ...interface{}) {
	if m.logger != nil {
		m.logger.Warn(msg, fields...)
	}
}

func (m *bunManager) logError(msg string, fields ...interface{}) {
	if m.logger != nil {
		m.logger.Error(msg, fields...)
	}
}
