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

package lima

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/tomoncle/lima/database"
	"github.com/tomoncle/lima/repository"
	"github.com/tomoncle/lima/resources"
	"github.com/uptrace/bun"
)

// Store hands out the resource repositories bound to one database handle.
// Each repository type is constructed once per Store.
type Store struct {
	db       bun.IDB
	registry *repository.Registry
	prefix   string
	opts     []repository.Option
	factory  *database.BaseDatabaseFactory
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithRegistry shares reg instead of a Store-private registry.
func WithRegistry(reg *repository.Registry) StoreOption {
	return func(s *Store) {
		if reg != nil {
			s.registry = reg
		}
	}
}

// WithTablePrefix sets the prefix of every resource table.
func WithTablePrefix(prefix string) StoreOption {
	return func(s *Store) { s.prefix = prefix }
}

// WithRepositoryOptions passes opts to every repository the Store builds.
func WithRepositoryOptions(opts ...repository.Option) StoreOption {
	return func(s *Store) { s.opts = append(s.opts, opts...) }
}

// NewStore returns a Store over db.
func NewStore(db bun.IDB, opts ...StoreOption) *Store {
	s := &Store{
		db:       db,
		registry: repository.NewRegistry(),
		prefix:   resources.DefaultTablePrefix,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Open connects using cfg and returns a Store that owns the connection.
func Open(ctx context.Context, cfg *database.Config, opts ...StoreOption) (*Store, error) {
	factory, err := database.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}
	base := []StoreOption{
		WithTablePrefix(cfg.RepositoryConfig.TablePrefix),
		WithRepositoryOptions(repository.WithTruncate(cfg.RepositoryConfig.TruncateEnabled())),
	}
	s := NewStore(factory.GetDB(), append(base, opts...)...)
	s.factory = factory
	return s, nil
}

// DB returns the bound handle.
func (s *Store) DB() bun.IDB { return s.db }

// Licenses returns the license repository.
func (s *Store) Licenses() (*resources.LicenseRepository, error) {
	return repository.Instance(s.registry, func() (*resources.LicenseRepository, error) {
		return resources.NewLicenseRepository(s.db, s.repositoryOptions(resources.LicenseTableBase)...)
	})
}

// Generators returns the generator repository.
func (s *Store) Generators() (*resources.GeneratorRepository, error) {
	return repository.Instance(s.registry, func() (*resources.GeneratorRepository, error) {
		return resources.NewGeneratorRepository(s.db, s.repositoryOptions(resources.GeneratorTableBase)...)
	})
}

func (s *Store) repositoryOptions(table string) []repository.Option {
	opts := make([]repository.Option, 0, len(s.opts)+1)
	opts = append(opts, s.opts...)
	return append(opts, repository.WithTable(s.prefix+table))
}

type txRunner interface {
	RunInTx(ctx context.Context, opts *sql.TxOptions, f func(ctx context.Context, tx bun.Tx) error) error
}

// RunInTx runs fn with a Store bound to a new transaction. The transaction
// commits when fn returns nil and rolls back otherwise.
func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context, tx *Store) error) error {
	runner, ok := s.db.(txRunner)
	if !ok {
		return errors.New("lima: database handle does not support transactions")
	}
	return runner.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		return fn(ctx, &Store{
			db:       tx,
			registry: repository.NewRegistry(),
			prefix:   s.prefix,
			opts:     s.opts,
		})
	})
}

// HealthStatus reports the health of an owned connection.
func (s *Store) HealthStatus(ctx context.Context) *database.HealthStatus {
	if s.factory == nil {
		return &database.HealthStatus{LastError: "connection not owned by store", LastCheckTime: time.Now()}
	}
	return s.factory.GetHealthStatus(ctx)
}

// Close closes the connection when the Store owns it.
func (s *Store) Close() error {
	if s.factory == nil {
		return nil
	}
	return s.factory.Close()
}
