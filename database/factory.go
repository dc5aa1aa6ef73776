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
	"fmt"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/tomoncle/lima/utils"
	"github.com/uptrace/bun"
)

// BaseDatabaseFactory creates and manages a configured database manager and
// provides helpers for initialization, health checks, and statistics.
type BaseDatabaseFactory struct {
	manager    AbstractDatabaseManager
	logger     Logger
	registerer prometheus.Registerer
}

// NewDatabaseFactory returns a new database factory using the global logger.
func NewDatabaseFactory() *BaseDatabaseFactory {
	return &BaseDatabaseFactory{
		logger:     GetLogger(),
		registerer: prometheus.DefaultRegisterer,
	}
}

// SetRegisterer sets the Prometheus registerer used when metrics are enabled.
func (f *BaseDatabaseFactory) SetRegisterer(reg prometheus.Registerer) {
	f.registerer = reg
}

// CreateFromConfig constructs a database manager from the given connection
// configuration, applying environment overrides and setting the factory logger.
func (f *BaseDatabaseFactory) CreateFromConfig(cfg *ConnectionConfig) (AbstractDatabaseManager, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database configuration cannot be empty")
	}

	// DB_* variables win over the file, including DB_TYPE.
	overrideConnectionFromEnv(cfg)
	if _, ok := dialectors[cfg.Type]; !ok {
		return nil, fmt.Errorf("unsupported database type: %s, supported types: %v", cfg.Type, SupportedTypes())
	}

	manager := &bunManager{config: cfg, logger: f.logger, registerer: f.registerer}
	f.manager = manager
	return manager, nil
}

// overrideConnectionFromEnv overrides configuration values from environment variables.
func overrideConnectionFromEnv(cfg *ConnectionConfig) {
	cfg.Type = utils.EnvDefaultString("DB_TYPE", cfg.Type)
	cfg.Host = utils.EnvDefaultString("DB_HOST", cfg.Host)
	cfg.Port = utils.EnvDefaultInt("DB_PORT", cfg.Port)
	cfg.Username = utils.EnvDefaultString("DB_USERNAME", cfg.Username)
	cfg.Password = utils.EnvDefaultString("DB_PASSWORD", cfg.Password)
	cfg.DBName = utils.EnvDefaultString("DB_NAME", cfg.DBName)
	cfg.SSLMode = utils.EnvDefaultString("DB_SSLMODE", cfg.SSLMode)

	// Connection pool config
	cfg.MaxIdleConns = utils.EnvDefaultInt("DB_MAX_IDLE_CONNS", cfg.MaxIdleConns)
	cfg.MaxOpenConns = utils.EnvDefaultInt("DB_MAX_OPEN_CONNS", cfg.MaxOpenConns)
	cfg.ConnMaxLifetime = envSeconds("DB_CONN_MAX_LIFETIME", cfg.ConnMaxLifetime)

	// Reconnect config
	cfg.EnableReconnect = utils.EnvDefaultBool("DB_ENABLE_RECONNECT", cfg.EnableReconnect)
	cfg.ReconnectInterval = envSeconds("DB_RECONNECT_INTERVAL", cfg.ReconnectInterval)

	// Logging and metrics config
	cfg.EnableQueryLog = utils.EnvDefaultBool("DB_ENABLE_QUERY_LOG", cfg.EnableQueryLog)
	cfg.QueryLogFormat = utils.EnvDefaultString("DB_QUERY_LOG_FORMAT", cfg.QueryLogFormat)
	cfg.EnableMetrics = utils.EnvDefaultBool("DB_ENABLE_METRICS", cfg.EnableMetrics)
}

// envSeconds reads a whole number of seconds.
func envSeconds(key string, def time.Duration) time.Duration {
	if n := utils.EnvDefaultInt(key, -1); n >= 0 {
		return time.Duration(n) * time.Second
	}
	return def
}

// overrideRepositoryFromEnv overrides repository settings from environment variables.
func overrideRepositoryFromEnv(cfg *RepositoryConfig) {
	cfg.Environment = utils.EnvDefaultString("LIMA_ENVIRONMENT", cfg.Environment)
	cfg.AllowTruncate = utils.EnvDefaultBool("LIMA_ALLOW_TRUNCATE", cfg.AllowTruncate)
	if prefix, ok := os.LookupEnv("LIMA_TABLE_PREFIX"); ok {
		cfg.TablePrefix = prefix
	}
}

// InitializeDatabase connects to the database.
func (f *BaseDatabaseFactory) InitializeDatabase(ctx context.Context) error {
	if f.manager == nil {
		return fmt.Errorf("database manager not created")
	}

	if err := f.manager.Connect(ctx); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	f.logger.Info("Database initialization completed!")
	return nil
}

// Open creates a factory for cfg, connects, and returns it. The caller owns
// the returned factory and must Close it.
func Open(ctx context.Context, cfg *Config) (*BaseDatabaseFactory, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database configuration cannot be empty")
	}
	factory := NewDatabaseFactory()
	if _, err := factory.CreateFromConfig(&cfg.ConnectionConfig); err != nil {
		return nil, fmt.Errorf("failed to create database manager: %w", err)
	}
	if err := factory.InitializeDatabase(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	return factory, nil
}

// GetManager returns the underlying database manager.
func (f *BaseDatabaseFactory) GetManager() AbstractDatabaseManager {
	return f.manager
}

// GetDB returns the Bun database instance, or nil if not initialized.
func (f *BaseDatabaseFactory) GetDB() *bun.DB {
	if f.manager == nil {
		return nil
	}
	return f.manager.GetDB()
}

// SetLogger sets the logger on the factory and the underlying manager.
func (f *BaseDatabaseFactory) SetLogger(logger Logger) {
	f.logger = logger
	if f.manager != nil {
		f.manager.SetLogger(logger)
	}
}

// Close closes the database connection managed by the factory.
func (f *BaseDatabaseFactory) Close() error {
	if f.manager == nil {
		return nil
	}
	return f.manager.Disconnect()
}

// GetHealthStatus returns the current database health status from the manager.
func (f *BaseDatabaseFactory) GetHealthStatus(ctx context.Context) *HealthStatus {
	if f.manager == nil {
		return &HealthStatus{
			Healthy:       false,
			Connected:     false,
			LastError:     "Database manager not initialized",
			LastCheckTime: time.Now(),
		}
	}
	return f.manager.HealthCheck(ctx)
}

// GetStats returns database connection statistics from the manager.
func (f *BaseDatabaseFactory) GetStats() *DBStats {
	if f.manager == nil {
		return &DBStats{}
	}
	return f.manager.GetStats()
}
