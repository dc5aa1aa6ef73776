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
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type alpha struct{ n int }

type beta struct{ a *alpha }

func TestInstanceIsCreatedOnce(t *testing.T) {
	reg := NewRegistry()
	var calls atomic.Int32

	ctor := func() (*alpha, error) {
		calls.Add(1)
		return &alpha{n: 1}, nil
	}

	var wg sync.WaitGroup
	results := make([]*alpha, 32)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			a, err := Instance(reg, ctor)
			assert.NoError(t, err)
			results[i] = a
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	for _, a := range results {
		assert.Same(t, results[0], a)
	}
	assert.Equal(t, []string{"*repository.alpha"}, reg.Types())
}

func TestInstanceDoesNotCacheErrors(t *testing.T) {
	reg := NewRegistry()
	boom := errors.New("boom")

	_, err := Instance(reg, func() (*alpha, error) { return nil, boom })
	require.ErrorIs(t, err, boom)
	assert.Empty(t, reg.Types())

	a, err := Instance(reg, func() (*alpha, error) { return &alpha{n: 2}, nil })
	require.NoError(t, err)
	assert.Equal(t, 2, a.n)
}

func TestInstanceConstructorMayResolveOtherTypes(t *testing.T) {
	reg := NewRegistry()

	b, err := Instance(reg, func() (*beta, error) {
		a, err := Instance(reg, func() (*alpha, error) { return &alpha{n: 3}, nil })
		if err != nil {
			return nil, err
		}
		return &beta{a: a}, nil
	})
	require.NoError(t, err)

	a, err := Instance(reg, func() (*alpha, error) { return nil, errors.New("not called") })
	require.NoError(t, err)
	assert.Same(t, a, b.a)
}

func TestRegistriesAreIndependent(t *testing.T) {
	one, two := NewRegistry(), NewRegistry()

	a1, err := Instance(one, func() (*alpha, error) { return &alpha{}, nil })
	require.NoError(t, err)
	a2, err := Instance(two, func() (*alpha, error) { return &alpha{}, nil })
	require.NoError(t, err)
	assert.NotSame(t, a1, a2)

	one.Reset()
	assert.Empty(t, one.Types())
	assert.Len(t, two.Types(), 1)
}

func TestNilRegistryUsesDefault(t *testing.T) {
	t.Cleanup(DefaultRegistry().Reset)

	a, err := Instance[*alpha](nil, func() (*alpha, error) { return &alpha{n: 5}, nil })
	require.NoError(t, err)
	b, err := Instance(DefaultRegistry(), func() (*alpha, error) { return &alpha{}, nil })
	require.NoError(t, err)
	assert.Same(t, a, b)
}
