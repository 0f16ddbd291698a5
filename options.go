// Copyright 2024 The Cockroach Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package hashdict

import (
	"github.com/cockroachdb/hashdict/internal/primes"
	"go.uber.org/zap"
)

// option provide an interface to do work on Map while it is being created.
type option[K comparable, V any] interface {
	apply(m *Map[K, V])
}

type comparerOption[K comparable, V any] struct {
	comparer Comparer[K]
}

func (op comparerOption[K, V]) apply(m *Map[K, V]) {
	if op.comparer != nil {
		m.comparer = op.comparer
	}
}

// WithComparer is an option to specify the key hashing and equality to use
// for a Map[K,V]. A nil Comparer leaves the default in place.
func WithComparer[K comparable, V any](comparer Comparer[K]) option[K, V] {
	return comparerOption[K, V]{comparer}
}

// Sizer picks the lengths of the bucket and entry arrays of a Map. Both
// methods must be deterministic and monotonic.
type Sizer interface {
	// Size returns the capacity to allocate when at least requested entries
	// are wanted. The result must be >= requested and > 0.
	Size(requested int) int

	// Grow returns the capacity to grow to from a full table of current
	// entries. The result must be strictly greater than current.
	Grow(current int) int
}

// PrimeSizer sizes tables using a progression of primes, which reduces
// clustering under modulo bucket indexing. It is the default Sizer.
type PrimeSizer struct{}

// Size returns the smallest prime in the progression >= requested.
func (PrimeSizer) Size(requested int) int {
	return primes.Next(requested)
}

// Grow returns the smallest prime >= 2*current.
func (PrimeSizer) Grow(current int) int {
	return primes.Expand(current)
}

type sizerOption[K comparable, V any] struct {
	sizer Sizer
}

func (op sizerOption[K, V]) apply(m *Map[K, V]) {
	if op.sizer != nil {
		m.sizer = op.sizer
	}
}

// WithSizer is an option to specify the Sizer to use for a Map[K,V].
func WithSizer[K comparable, V any](sizer Sizer) option[K, V] {
	return sizerOption[K, V]{sizer}
}

// Allocator specifies an interface for allocating and releasing memory used
// by a Map. The default allocator utilizes Go's builtin make() and allows the
// GC to reclaim memory.
//
// If the allocator is manually managing memory and requires that buckets and
// entries be freed then Map.Close must be called in order to ensure
// FreeBuckets and FreeEntries are called for the final generation.
type Allocator[K comparable, V any] interface {
	// AllocBuckets should return a slice equivalent to make([]int32, n).
	AllocBuckets(n int) []int32

	// AllocEntries should return a slice equivalent to
	// make([]Entry[K,V], n).
	AllocEntries(n int) []Entry[K, V]

	// FreeBuckets can optional release the memory associated with the
	// supplied slice that is guaranteed to have been allocated by
	// AllocBuckets.
	FreeBuckets(v []int32)

	// FreeEntries can optional release the memory associated with the
	// supplied slice that is guaranteed to have been allocated by
	// AllocEntries.
	FreeEntries(v []Entry[K, V])
}

type defaultAllocator[K comparable, V any] struct{}

func (defaultAllocator[K, V]) AllocBuckets(n int) []int32 {
	return make([]int32, n)
}

func (defaultAllocator[K, V]) AllocEntries(n int) []Entry[K, V] {
	return make([]Entry[K, V], n)
}

func (defaultAllocator[K, V]) FreeBuckets(v []int32) {
}

func (defaultAllocator[K, V]) FreeEntries(v []Entry[K, V]) {
}

type allocatorOption[K comparable, V any] struct {
	allocator Allocator[K, V]
}

func (op allocatorOption[K, V]) apply(m *Map[K, V]) {
	if op.allocator != nil {
		m.allocator = op.allocator
	}
}

// WithAllocator is an option for specify the Allocator to use for a Map[K,V].
func WithAllocator[K comparable, V any](allocator Allocator[K, V]) option[K, V] {
	return allocatorOption[K, V]{allocator}
}

type loggerOption[K comparable, V any] struct {
	logger *zap.Logger
}

func (op loggerOption[K, V]) apply(m *Map[K, V]) {
	if op.logger != nil {
		m.logger = op.logger
	}
}

// WithLogger is an option to specify where a Map[K,V] reports table
// allocation, growth and release. Events are logged at debug level.
func WithLogger[K comparable, V any](logger *zap.Logger) option[K, V] {
	return loggerOption[K, V]{logger}
}
