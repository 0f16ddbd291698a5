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

// KeyValue is a key and value pair copied out of a Map.
type KeyValue[K comparable, V any] struct {
	Key   K
	Value V
}

// Iterator steps through the entries of a Map in dense-region order. An
// Iterator is invalidated by any mutation of the Map made after it was
// created or last Reset; the next call to Next then returns false and Err
// returns an error wrapping ErrConcurrentModification.
//
//	it := m.Iter()
//	for it.Next() {
//	  fmt.Printf("%v: %v\n", it.Key(), it.Value())
//	}
//	if err := it.Err(); err != nil {
//	  ...
//	}
type Iterator[K comparable, V any] struct {
	m       *Map[K, V]
	version uint64
	// index is the position in the dense region of the next entry to
	// examine.
	index int
	key   K
	value V
	err   error
}

// Iter returns an Iterator positioned before the first entry of the map.
func (m *Map[K, V]) Iter() *Iterator[K, V] {
	return &Iterator[K, V]{m: m, version: m.version}
}

// Next advances the iterator to the next entry, returning false when the
// entries are exhausted or the map was modified.
func (it *Iterator[K, V]) Next() bool {
	if it.err != nil {
		return false
	}
	m := it.m
	if it.version != m.version {
		it.err = concurrentModification(it.version, m.version)
		it.clear()
		return false
	}
	for it.index < m.count {
		e := &m.entries[it.index]
		it.index++
		if e.hash >= 0 {
			it.key, it.value = e.key, e.value
			return true
		}
	}
	it.clear()
	return false
}

// Key returns the key at the iterator's current position. This is only
// valid after a call to Next() that returns true.
func (it *Iterator[K, V]) Key() K {
	return it.key
}

// Value returns the value at the iterator's current position. This is only
// valid after a call to Next() that returns true.
func (it *Iterator[K, V]) Value() V {
	return it.value
}

// Err returns the error that stopped iteration, if any.
func (it *Iterator[K, V]) Err() error {
	return it.err
}

// Reset repositions the iterator before the first entry and adopts the
// current state of the map, clearing any error.
func (it *Iterator[K, V]) Reset() {
	it.version = it.m.version
	it.index = 0
	it.err = nil
	it.clear()
}

func (it *Iterator[K, V]) clear() {
	var key K
	var value V
	it.key, it.value = key, value
}

// All calls yield sequentially for each key and value present in the map. If
// yield returns false, All stops the iteration. All conforms to the
// range-over-func protocol:
//
//	for k, v := range m.All {
//	  fmt.Printf("%v: %v\n", k, v)
//	}
//
// Mutating the map from within yield and then continuing the iteration
// panics with an error wrapping ErrConcurrentModification. Use Iter to
// receive the error instead.
func (m *Map[K, V]) All(yield func(key K, value V) bool) {
	version := m.version
	for i := 0; i < m.count; i++ {
		e := &m.entries[i]
		if e.hash < 0 {
			continue
		}
		if !yield(e.key, e.value) {
			return
		}
		if m.version != version {
			panic(concurrentModification(version, m.version))
		}
	}
}

// Keys calls yield sequentially for each key present in the map. See All for
// the behavior under mutation.
func (m *Map[K, V]) Keys(yield func(key K) bool) {
	m.All(func(k K, _ V) bool {
		return yield(k)
	})
}

// Values calls yield sequentially for each value present in the map. See All
// for the behavior under mutation.
func (m *Map[K, V]) Values(yield func(value V) bool) {
	m.All(func(_ K, v V) bool {
		return yield(v)
	})
}

// Entries appends every key and value in the map to dst and returns the
// extended slice.
func (m *Map[K, V]) Entries(dst []KeyValue[K, V]) []KeyValue[K, V] {
	m.All(func(k K, v V) bool {
		dst = append(dst, KeyValue[K, V]{Key: k, Value: v})
		return true
	})
	return dst
}
