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

	"github.com/tomoncle/lima/repository"
	"github.com/tomoncle/lima/types"
	"github.com/uptrace/bun"
)

const (
	GeneratorTableBase = "generators"
	GeneratorTable     = DefaultTablePrefix + GeneratorTableBase
)

// Generator columns.
const (
	GeneratorID                = "id"
	GeneratorName              = "name"
	GeneratorCharset           = "charset"
	GeneratorChunks            = "chunks"
	GeneratorChunkLength       = "chunk_length"
	GeneratorTimesActivatedMax = "times_activated_max"
	GeneratorSeparator         = "separator"
	GeneratorPrefix            = "prefix"
	GeneratorSuffix            = "suffix"
	GeneratorExpiresIn         = "expires_in"
)

// GeneratorSchema binds the generator table and its allow-listed columns.
var GeneratorSchema = repository.Schema{
	Table:      GeneratorTable,
	PrimaryKey: GeneratorID,
	Columns: []repository.Column{
		repository.StringColumn(GeneratorName),
		repository.StringColumn(GeneratorCharset),
		repository.IntColumn(GeneratorChunks),
		repository.IntColumn(GeneratorChunkLength),
		repository.IntColumn(GeneratorTimesActivatedMax),
		repository.StringColumn(GeneratorSeparator),
		repository.StringColumn(GeneratorPrefix),
		repository.StringColumn(GeneratorSuffix),
		repository.IntColumn(GeneratorExpiresIn),
	},
}

// Generator describes how license keys are produced: Chunks groups of
// ChunkLength characters drawn from Charset, joined by Separator.
type Generator struct {
	ID                int64
	Name              string
	Charset           string
	Chunks            int64
	ChunkLength       int64
	TimesActivatedMax *int64
	Separator         string
	Prefix            string
	Suffix            string
	ExpiresIn         *int64
	Audit
}

// KeyLength returns the length of a generated key including separators,
// prefix and suffix.
func (g *Generator) KeyLength() int64 {
	if g.Chunks <= 0 {
		return 0
	}
	n := g.Chunks*g.ChunkLength + (g.Chunks-1)*int64(len(g.Separator))
	return n + int64(len(g.Prefix)+len(g.Suffix))
}

// Values returns the writable columns of g, for Insert and Update.
func (g *Generator) Values() types.Row {
	return types.Row{
		GeneratorName:              g.Name,
		GeneratorCharset:           g.Charset,
		GeneratorChunks:            g.Chunks,
		GeneratorChunkLength:       g.ChunkLength,
		GeneratorTimesActivatedMax: nullable(g.TimesActivatedMax),
		GeneratorSeparator:         g.Separator,
		GeneratorPrefix:            g.Prefix,
		GeneratorSuffix:            g.Suffix,
		GeneratorExpiresIn:         nullable(g.ExpiresIn),
	}
}

// Validate checks the fields a generator needs to produce keys.
func (g *Generator) Validate() error {
	switch {
	case g.Name == "":
		return &repository.InvalidDataError{Table: GeneratorTable, Column: GeneratorName, Reason: "name is required"}
	case g.Charset == "":
		return &repository.InvalidDataError{Table: GeneratorTable, Column: GeneratorCharset, Reason: "charset is required"}
	case g.Chunks <= 0:
		return &repository.InvalidDataError{Table: GeneratorTable, Column: GeneratorChunks, Reason: fmt.Sprintf("chunks must be positive, got %d", g.Chunks)}
	case g.ChunkLength <= 0:
		return &repository.InvalidDataError{Table: GeneratorTable, Column: GeneratorChunkLength, Reason: fmt.Sprintf("chunk length must be positive, got %d", g.ChunkLength)}
	}
	return nil
}

func nullable(p *int64) interface{} {
	if p == nil {
		return nil
	}
	return *p
}

func mapGenerator(row types.Row) (*Generator, error) {
	r := &rowReader{row: row}
	g := &Generator{
		ID:                r.int64(GeneratorID),
		Name:              r.string(GeneratorName),
		Charset:           r.string(GeneratorCharset),
		Chunks:            r.int64(GeneratorChunks),
		ChunkLength:       r.int64(GeneratorChunkLength),
		TimesActivatedMax: r.nullInt64(GeneratorTimesActivatedMax),
		Separator:         r.string(GeneratorSeparator),
		Prefix:            r.string(GeneratorPrefix),
		Suffix:            r.string(GeneratorSuffix),
		ExpiresIn:         r.nullInt64(GeneratorExpiresIn),
		Audit:             r.audit(),
	}
	if r.err != nil {
		return nil, r.err
	}
	return g, nil
}

// GeneratorRepository reads and writes lima_generators.
type GeneratorRepository struct {
	*repository.ResourceRepository[*Generator]
}

// NewGeneratorRepository binds a generator repository to db.
func NewGeneratorRepository(db bun.IDB, opts ...repository.Option) (*GeneratorRepository, error) {
	base, err := repository.New[*Generator](db, GeneratorSchema, mapGenerator, opts...)
	if err != nil {
		return nil, err
	}
	return &GeneratorRepository{ResourceRepository: base}, nil
}

// WithDB returns a copy bound to db, typically a bun.Tx.
func (r *GeneratorRepository) WithDB(db bun.IDB) *GeneratorRepository {
	return &GeneratorRepository{ResourceRepository: r.ResourceRepository.WithDB(db)}
}

// FindByName returns the generator with the given name.
func (r *GeneratorRepository) FindByName(ctx context.Context, name string) (*Generator, error) {
	return r.FindBy(ctx, types.Filter{GeneratorName: name})
}

// Create validates g and inserts it.
func (r *GeneratorRepository) Create(ctx context.Context, g *Generator) (*Generator, error) {
	if err := g.Validate(); err != nil {
		return nil, err
	}
	return r.Insert(ctx, g.Values())
}

// Save validates g and writes it over the row with g.ID.
func (r *GeneratorRepository) Save(ctx context.Context, g *Generator) (*Generator, error) {
	if err := g.Validate(); err != nil {
		return nil, err
	}
	return r.Update(ctx, g.ID, g.Values())
}
