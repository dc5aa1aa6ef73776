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
	"fmt"
	"reflect"
	"sort"
	"sync"
)

var defaultRegistry = NewRegistry()

// Registry holds at most one instance per concrete type. Construction is lazy
// and serialized per type; a failed constructor leaves the slot empty so a
// later call can retry.
type Registry struct {
	mutex sync.Mutex
	slots map[reflect.Type]*registrySlot
}

type registrySlot struct {
	mutex    sync.Mutex
	instance interface{}
	ready    bool
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{slots: make(map[reflect.Type]*registrySlot)}
}

// DefaultRegistry returns the process-wide registry.
func DefaultRegistry() *Registry {
	return defaultRegistry
}

func (r *Registry) slot(t reflect.Type) *registrySlot {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	s, ok := r.slots[t]
	if !ok {
		s = &registrySlot{}
		r.slots[t] = s
	}
	return s
}

// Instance returns the registered instance of T, calling ctor to build it on
// first use. Concurrent first calls observe the same instance. Constructors
// may themselves resolve other types from the same registry, but a
// constructor that resolves its own T deadlocks.
func Instance[T any](reg *Registry, ctor func() (T, error)) (T, error) {
	if reg == nil {
		reg = defaultRegistry
	}
	t := reflect.TypeOf((*T)(nil)).Elem()
	s := reg.slot(t)

	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.ready {
		return s.instance.(T), nil
	}

	instance, err := ctor()
	if err != nil {
		var zero T
		return zero, fmt.Errorf("construct %s: %w", t, err)
	}
	s.instance = instance
	s.ready = true
	return instance, nil
}

// Types returns the names of the constructed types in ascending order.
func (r *Registry) Types() []string {
	r.mutex.Lock()
	slots := make(map[reflect.Type]*registrySlot, len(r.slots))
	for t, s := range r.slots {
		slots[t] = s
	}
	r.mutex.Unlock()

	names := make([]string, 0, len(slots))
	for t, s := range slots {
		s.mutex.Lock()
		if s.ready {
			names = append(names, t.String())
		}
		s.mutex.Unlock()
	}
	sort.Strings(names)
	return names
}

// Reset drops every instance.
func (r *Registry) Reset() {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.slots = make(map[reflect.Type]*registrySlot)
}
