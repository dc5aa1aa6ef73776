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
	"context"
	"time"

	"github.com/tomoncle/lima/types"
)

// IdentityProvider resolves the acting user for audit stamping.
type IdentityProvider interface {
	CurrentIdentity(ctx context.Context) (int64, bool)
}

// IdentityFunc adapts a function to IdentityProvider.
type IdentityFunc func(ctx context.Context) (int64, bool)

func (f IdentityFunc) CurrentIdentity(ctx context.Context) (int64, bool) { return f(ctx) }

type actorKey struct{}

// WithActor returns a context carrying the acting user's id.
func WithActor(ctx context.Context, id int64) context.Context {
	return context.WithValue(ctx, actorKey{}, id)
}

// ActorFromContext returns the id stored by WithActor.
func ActorFromContext(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(actorKey{}).(int64)
	return id, ok && id > 0
}

// ContextIdentity reads the actor placed on the context by WithActor.
type ContextIdentity struct{}

func (ContextIdentity) CurrentIdentity(ctx context.Context) (int64, bool) {
	return ActorFromContext(ctx)
}

// Clock supplies the audit timestamp.
type Clock func() time.Time

func (r *ResourceRepository[R]) actor(ctx context.Context) interface{} {
	if id, ok := r.opts.identity.CurrentIdentity(ctx); ok {
		return id
	}
	return nil
}

func (r *ResourceRepository[R]) now() time.Time {
	return r.opts.clock().UTC()
}

// stamp copies data without its audit keys and sets the at/by pair.
func (r *ResourceRepository[R]) stamp(ctx context.Context, data types.Row, atColumn, byColumn string) map[string]interface{} {
	values := make(map[string]interface{}, len(data)+2)
	for k, v := range data {
		if !isAuditColumn(k) {
			values[k] = v
		}
	}
	values[atColumn] = r.now()
	values[byColumn] = r.actor(ctx)
	return values
}
