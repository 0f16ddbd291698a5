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
	"hash/maphash"

	"github.com/cespare/xxhash/v2"
	"github.com/dchest/siphash"
	"golang.org/x/exp/constraints"
)

// Comparer supplies hashing and equality for keys of type K. Equal(a, b)
// must imply Hash(a) == Hash(b). A Map folds the 64-bit hash down to a
// non-negative 31-bit value before indexing its buckets, so a Comparer does
// not need to worry about the sign or width of the values it returns.
type Comparer[K any] interface {
	Hash(key K) uint64
	Equal(a, b K) bool
}

type funcComparer[K any] struct {
	hash  func(K) uint64
	equal func(a, b K) bool
}

func (c funcComparer[K]) Hash(key K) uint64 { return c.hash(key) }
func (c funcComparer[K]) Equal(a, b K) bool { return c.equal(a, b) }

// MakeComparer returns a Comparer backed by the supplied functions.
func MakeComparer[K any](hash func(key K) uint64, equal func(a, b K) bool) Comparer[K] {
	return funcComparer[K]{hash: hash, equal: equal}
}

// seededComparer hashes any comparable key with hash/maphash using a
// per-Map random seed, and compares keys with ==. It is the default.
type seededComparer[K comparable] struct {
	seed maphash.Seed
}

func (c seededComparer[K]) Hash(key K) uint64 { return maphash.Comparable(c.seed, key) }
func (seededComparer[K]) Equal(a, b K) bool   { return a == b }

// Default returns the Comparer used when none is configured: the same
// notion of equality as Go's == operator, hashed with a randomly seeded
// hash/maphash.
func Default[K comparable]() Comparer[K] {
	return seededComparer[K]{seed: maphash.MakeSeed()}
}

type stringComparer struct{}

func (stringComparer) Hash(key string) uint64 { return xxhash.Sum64String(key) }
func (stringComparer) Equal(a, b string) bool { return a == b }

// Strings returns an unseeded xxhash Comparer for string keys. The hash of a
// given string is stable across processes, which makes bucket placement
// reproducible.
func Strings() Comparer[string] {
	return stringComparer{}
}

type keyedStringComparer struct {
	k0, k1 uint64
}

func (c keyedStringComparer) Hash(key string) uint64 {
	return siphash.Hash(c.k0, c.k1, []byte(key))
}

func (keyedStringComparer) Equal(a, b string) bool { return a == b }

// KeyedStrings returns a Comparer for string keys that hashes with SipHash-2-4
// under the 128-bit key (k0, k1). Callers that store attacker-controlled
// strings should pick the key at random.
func KeyedStrings(k0, k1 uint64) Comparer[string] {
	return keyedStringComparer{k0: k0, k1: k1}
}

type integerComparer[K constraints.Integer] struct{}

func (integerComparer[K]) Hash(key K) uint64 { return uint64(key) }
func (integerComparer[K]) Equal(a, b K) bool { return a == b }

// Integers returns a Comparer that uses an integer key as its own hash code.
// Sequential keys land in sequential buckets.
func Integers[K constraints.Integer]() Comparer[K] {
	return integerComparer[K]{}
}
