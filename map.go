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

// Package hashdict implements a dictionary backed by a hash table that
// resolves collisions by chaining and recycles removed slots.
//
// # Layout
//
// A Map owns two parallel arrays of equal length drawn from a capacity
// progression (primes by default, see PrimeSizer):
//
//	buckets: [ 2 | -1 |  0 | -1 | ... ]        head entry index, or -1
//	entries: [ {h, next=-1, k, v} {h, next=-1, k, v} {h, next=0, k, v} ... ]
//
// Each bucket holds the index of the first entry of its chain and each entry
// links to the next entry of the same chain through an int32 index, so
// chains are threaded through a single dense array rather than built from
// individually allocated nodes. New entries are pushed onto the head of
// their chain, so a chain is ordered most-recently-inserted first.
//
// Entries are handed out from the dense region entries[0:count]. A removed
// entry is marked free (hash == -1), has its key and value cleared and is
// pushed onto a free list that reuses the next field. Inserts prefer a free
// entry over growing the dense region, and the table only grows when the
// dense region is full and the free list is empty.
//
// # Hashing
//
// The 64-bit hash produced by the configured Comparer is folded to 32 bits
// and its sign bit is cleared, which leaves a non-negative value that is
// stored in the entry and reduced modulo the table length to pick a bucket.
// Storing the hash lets lookups skip calling Equal for most non-matching
// entries and lets growth re-chain entries without hashing keys again.
//
// # Growth
//
// Growth allocates both arrays at the next capacity, copies the dense region
// verbatim (entry indexes are preserved) and rebuilds every chain against
// the new length. Free entries are never compacted: a long series of inserts
// and removes of distinct keys can leave holes in the dense region that are
// only reclaimed by later inserts.
package hashdict

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
)

const (
	// freeHash marks an entry that is on the free list. Live entries always
	// have a non-negative hash.
	freeHash = -1

	// nonNegativeMask clears the sign bit of a folded hash so that the
	// bucket modulo is never negative.
	nonNegativeMask = 0x7FFFFFFF
)

// Entry holds a key and value along with the chain bookkeeping for the slot.
type Entry[K comparable, V any] struct {
	// hash is the folded hash of key, or freeHash if the entry is free.
	hash int32
	// next is the index of the next entry in the same chain, or of the next
	// free entry when the entry is free. -1 terminates either list.
	next  int32
	key   K
	value V
}

// Map is an unordered map from keys to values with Add, Set, Get, Remove,
// and All operations. By default, a Map[K,V] uses Go's == operator for keys
// with a randomly seeded hash/maphash hash, though a different Comparer can
// be specified using the WithComparer option.
//
// A Map is NOT goroutine-safe.
type Map[K comparable, V any] struct {
	comparer  Comparer[K]
	sizer     Sizer
	allocator Allocator[K, V]
	logger    *zap.Logger
	// buckets[b] is the index of the head of chain b, or -1. Nil until the
	// first insert unless a capacity was requested.
	buckets []int32
	// entries has the same length as buckets.
	entries []Entry[K, V]
	// freeList is the index of the first free entry, or -1.
	freeList int32
	// freeCount is the number of entries on the free list.
	freeCount int
	// count is the length of the dense region: the number of entries ever
	// handed out since the table was allocated. The number of live entries
	// is count-freeCount.
	count int
	// version is bumped by every mutation and is used to detect mutation
	// during iteration.
	version uint64
	// nullable is true when K is a kind whose zero value is nil.
	nullable bool
}

// New constructs a new Map with the specified initial capacity. If
// initialCapacity is 0 the map will start out with zero capacity and will
// allocate on the first insert. A negative capacity returns an error
// wrapping ErrInvalidArgument. The zero value for a Map is not usable.
func New[K comparable, V any](initialCapacity int, options ...option[K, V]) (*Map[K, V], error) {
	m := &Map[K, V]{}
	if err := m.Init(initialCapacity, options...); err != nil {
		return nil, err
	}
	return m, nil
}

// Init initializes a Map with the specified initial capacity, discarding any
// previous contents. See New for the meaning of initialCapacity.
func (m *Map[K, V]) Init(initialCapacity int, options ...option[K, V]) error {
	if initialCapacity < 0 {
		return errors.Wrapf(ErrInvalidArgument, "capacity %d must not be negative", initialCapacity)
	}
	if m.allocator != nil {
		m.release()
	}

	*m = Map[K, V]{
		comparer:  Default[K](),
		sizer:     PrimeSizer{},
		allocator: defaultAllocator[K, V]{},
		logger:    zap.NewNop(),
		freeList:  -1,
		nullable:  isNullable[K](),
	}
	for _, op := range options {
		op.apply(m)
	}

	if initialCapacity > 0 {
		m.initialize(initialCapacity)
	}
	m.checkInvariants()
	return nil
}

// Close closes the map, releasing any memory back to its configured
// allocator. It is unnecessary to close a map using the default allocator. It
// is invalid to use a Map after it has been closed, though Close itself is
// idempotent.
func (m *Map[K, V]) Close() {
	if m.allocator != nil {
		m.release()
	}
	m.allocator = nil
}

// Add inserts an entry into the map. If an entry with an equal key already
// exists Add returns an error wrapping ErrDuplicateKey and leaves the map
// unmodified.
func (m *Map[K, V]) Add(key K, value V) error {
	return m.insert(key, value, true /* failIfExists */)
}

// Set inserts an entry into the map, overwriting the value of an existing
// entry with an equal key.
func (m *Map[K, V]) Set(key K, value V) error {
	return m.insert(key, value, false /* failIfExists */)
}

func (m *Map[K, V]) insert(key K, value V, failIfExists bool) error {
	if m.isNull(key) {
		return errors.Wrap(ErrNullKey, "insert")
	}
	if m.buckets == nil {
		m.initialize(0)
	}

	h := m.hash(key)
	b, _, i := m.lookup(h, key)
	if i >= 0 {
		if failIfExists {
			return errors.Wrapf(ErrDuplicateKey, "key %v", key)
		}
		m.entries[i].value = value
		m.version++
		m.checkInvariants()
		return nil
	}

	var index int32
	if m.freeCount > 0 {
		index = m.freeList
		m.freeList = m.entries[index].next
		m.freeCount--
	} else {
		if m.count == len(m.entries) {
			m.resize()
			b = int(h) % len(m.buckets)
		}
		index = int32(m.count)
		m.count++
	}

	m.entries[index] = Entry[K, V]{
		hash:  h,
		next:  m.buckets[b],
		key:   key,
		value: value,
	}
	m.buckets[b] = index
	m.version++
	m.checkInvariants()
	return nil
}

// TryGet retrieves the value from the map for the specified key, returning
// ok=false if the key is not present.
func (m *Map[K, V]) TryGet(key K) (value V, ok bool, err error) {
	if m.isNull(key) {
		return value, false, errors.Wrap(ErrNullKey, "get")
	}
	if _, _, i := m.find(key); i >= 0 {
		return m.entries[i].value, true, nil
	}
	return value, false, nil
}

// Get retrieves the value from the map for the specified key. A missing key
// returns an error wrapping ErrKeyNotFound.
func (m *Map[K, V]) Get(key K) (V, error) {
	value, ok, err := m.TryGet(key)
	if err == nil && !ok {
		err = errors.Wrapf(ErrKeyNotFound, "key %v", key)
	}
	return value, err
}

// ContainsKey reports whether an entry with an equal key is present.
func (m *Map[K, V]) ContainsKey(key K) (bool, error) {
	_, ok, err := m.TryGet(key)
	return ok, err
}

// ContainsPair reports whether an entry with an equal key is present and its
// value is equal to value according to equal.
func (m *Map[K, V]) ContainsPair(key K, value V, equal func(a, b V) bool) (bool, error) {
	v, ok, err := m.TryGet(key)
	if !ok || err != nil {
		return false, err
	}
	return equal(v, value), nil
}

// Remove deletes the entry corresponding to the specified key from the map,
// reporting whether an entry was removed. It is not an error to remove a
// non-existent key.
func (m *Map[K, V]) Remove(key K) (bool, error) {
	if m.isNull(key) {
		return false, errors.Wrap(ErrNullKey, "remove")
	}
	b, last, i := m.find(key)
	if i < 0 {
		return false, nil
	}
	m.removeAt(b, last, i)
	return true, nil
}

// RemovePair deletes the entry for key only if its value is equal to value
// according to equal, reporting whether an entry was removed.
func (m *Map[K, V]) RemovePair(key K, value V, equal func(a, b V) bool) (bool, error) {
	if m.isNull(key) {
		return false, errors.Wrap(ErrNullKey, "remove")
	}
	b, last, i := m.find(key)
	if i < 0 || !equal(m.entries[i].value, value) {
		return false, nil
	}
	m.removeAt(b, last, i)
	return true, nil
}

// removeAt unlinks entry i, whose predecessor in chain b is last (or -1 if i
// is the head), and pushes it onto the free list.
func (m *Map[K, V]) removeAt(b int, last, i int32) {
	e := &m.entries[i]
	if last < 0 {
		m.buckets[b] = e.next
	} else {
		m.entries[last].next = e.next
	}

	// Clear the key and value so the map does not retain references to them.
	*e = Entry[K, V]{
		hash: freeHash,
		next: m.freeList,
	}
	m.freeList = i
	m.freeCount++
	m.version++
	m.checkInvariants()
}

// Len returns the number of entries in the map.
func (m *Map[K, V]) Len() int {
	return m.count - m.freeCount
}

// Clear removes all entries from the map and releases the bucket and entry
// arrays, returning the map to zero capacity.
func (m *Map[K, V]) Clear() {
	if m.buckets == nil {
		return
	}
	capacity := len(m.entries)
	live := m.Len()
	m.release()
	m.version++

	if ce := m.logger.Check(zap.DebugLevel, "clear"); ce != nil {
		ce.Write(zap.Int("capacity", capacity), zap.Int("len", live))
	}
	m.checkInvariants()
}

// capacity returns the length of the bucket and entry arrays.
func (m *Map[K, V]) capacity() int {
	return len(m.entries)
}

// find returns the bucket for key along with the index of the matching
// entry (or -1) and the index of its predecessor in the chain (or -1).
func (m *Map[K, V]) find(key K) (b int, last, i int32) {
	if m.buckets == nil {
		return 0, -1, -1
	}
	return m.lookup(m.hash(key), key)
}

// lookup walks the chain for hash h. The table must be allocated.
func (m *Map[K, V]) lookup(h int32, key K) (b int, last, i int32) {
	b = int(h) % len(m.buckets)
	last = -1
	for i = m.buckets[b]; i >= 0; last, i = i, m.entries[i].next {
		e := &m.entries[i]
		if e.hash == h && m.comparer.Equal(e.key, key) {
			return b, last, i
		}
	}
	return b, last, -1
}

func (m *Map[K, V]) hash(key K) int32 {
	return foldHash(m.comparer.Hash(key))
}

// foldHash reduces a 64-bit hash to the non-negative 31-bit form stored in
// entries.
func foldHash(h uint64) int32 {
	return int32((uint32(h) ^ uint32(h>>32)) & nonNegativeMask)
}

func (m *Map[K, V]) isNull(key K) bool {
	var zero K
	return m.nullable && key == zero
}

// isNullable reports whether the zero value of K is nil. K is comparable, so
// slice, map and func kinds cannot occur.
func isNullable[K comparable]() bool {
	switch reflect.TypeFor[K]().Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Chan, reflect.UnsafePointer:
		return true
	}
	return false
}

// initialize allocates the bucket and entry arrays with room for at least
// capacity entries.
func (m *Map[K, V]) initialize(capacity int) {
	size := m.sizer.Size(capacity)
	if size <= 0 || size < capacity {
		panic(errors.AssertionFailedf("hashdict: sizer returned %d for capacity %d", size, capacity))
	}
	m.buckets = m.allocBuckets(size)
	m.entries = m.allocator.AllocEntries(size)
	m.freeList = -1

	if ce := m.logger.Check(zap.DebugLevel, "initialize"); ce != nil {
		ce.Write(zap.Int("requested", capacity), zap.Int("capacity", size))
	}
}

// resize grows the table when the dense region is full. The dense region is
// copied verbatim so entry indexes (including those on the free list) stay
// valid, and every live entry is re-chained against the new length using
// its stored hash.
func (m *Map[K, V]) resize() {
	oldCapacity := len(m.entries)
	newCapacity := m.sizer.Grow(oldCapacity)
	if newCapacity <= oldCapacity {
		panic(errors.AssertionFailedf("hashdict: sizer grew capacity %d to %d", oldCapacity, newCapacity))
	}

	oldBuckets, oldEntries := m.buckets, m.entries
	buckets := m.allocBuckets(newCapacity)
	entries := m.allocator.AllocEntries(newCapacity)
	copy(entries, oldEntries[:m.count])

	for i := 0; i < m.count; i++ {
		e := &entries[i]
		if e.hash < 0 {
			continue
		}
		b := int(e.hash) % newCapacity
		e.next = buckets[b]
		buckets[b] = int32(i)
	}

	m.buckets, m.entries = buckets, entries
	m.allocator.FreeBuckets(oldBuckets)
	m.allocator.FreeEntries(oldEntries)

	if ce := m.logger.Check(zap.DebugLevel, "resize"); ce != nil {
		ce.Write(zap.Int("from", oldCapacity), zap.Int("to", newCapacity), zap.Int("count", m.count))
	}
}

func (m *Map[K, V]) allocBuckets(n int) []int32 {
	buckets := m.allocator.AllocBuckets(n)
	for i := range buckets {
		buckets[i] = -1
	}
	return buckets
}

// release returns both arrays to the allocator and resets the map to the
// unallocated state.
func (m *Map[K, V]) release() {
	if m.buckets != nil {
		m.allocator.FreeBuckets(m.buckets)
		m.allocator.FreeEntries(m.entries)
	}
	m.buckets = nil
	m.entries = nil
	m.freeList = -1
	m.freeCount = 0
	m.count = 0
}

func (m *Map[K, V]) checkInvariants() {
	if invariants {
		if err := m.validate(); err != nil {
			panic(errors.WithDetail(err, m.debugString()))
		}
	}
}

// validate verifies the structural invariants of the table:
//   - both arrays have the same length and the dense region fits in them,
//   - every chain reachable from bucket b holds only live entries whose
//     hash maps to b and matches the hash of their key,
//   - the free list holds exactly freeCount free entries,
//   - every entry in the dense region is on exactly one chain or the free
//     list, and every live key is stored once.
func (m *Map[K, V]) validate() error {
	if m.buckets == nil {
		if m.entries != nil || m.count != 0 || m.freeCount != 0 || m.freeList != -1 {
			return errors.AssertionFailedf("unallocated table with count=%d free-count=%d free-list=%d",
				m.count, m.freeCount, m.freeList)
		}
		return nil
	}

	n := len(m.buckets)
	if len(m.entries) != n {
		return errors.AssertionFailedf("%d buckets but %d entries", n, len(m.entries))
	}
	if m.count > n || m.freeCount > m.count {
		return errors.AssertionFailedf("count=%d free-count=%d capacity=%d", m.count, m.freeCount, n)
	}

	seen := make([]bool, m.count)
	live := 0
	for b := range m.buckets {
		for i := m.buckets[b]; i >= 0; i = m.entries[i].next {
			if int(i) >= m.count {
				return errors.AssertionFailedf("bucket %d: entry %d outside dense region [0,%d)", b, i, m.count)
			}
			if seen[i] {
				return errors.AssertionFailedf("bucket %d: entry %d linked twice", b, i)
			}
			seen[i] = true
			e := &m.entries[i]
			if e.hash < 0 {
				return errors.AssertionFailedf("bucket %d: free entry %d on chain", b, i)
			}
			if int(e.hash)%n != b {
				return errors.AssertionFailedf("bucket %d: entry %d has hash %d for bucket %d", b, i, e.hash, int(e.hash)%n)
			}
			if h := m.hash(e.key); h != e.hash {
				return errors.AssertionFailedf("entry %d: stored hash %d, key hashes to %d", i, e.hash, h)
			}
			live++
		}
	}

	free := 0
	for i := m.freeList; i >= 0; i = m.entries[i].next {
		if int(i) >= m.count {
			return errors.AssertionFailedf("free list: entry %d outside dense region [0,%d)", i, m.count)
		}
		if seen[i] {
			return errors.AssertionFailedf("free list: entry %d linked twice", i)
		}
		seen[i] = true
		if m.entries[i].hash != freeHash {
			return errors.AssertionFailedf("free list: entry %d has hash %d", i, m.entries[i].hash)
		}
		free++
	}
	if free != m.freeCount {
		return errors.AssertionFailedf("found %d free entries, but free count is %d", free, m.freeCount)
	}
	if live+free != m.count {
		return errors.AssertionFailedf("found %d live and %d free entries, but count is %d", live, free, m.count)
	}

	for i := 0; i < m.count; i++ {
		e := &m.entries[i]
		if e.hash < 0 {
			continue
		}
		if _, _, j := m.lookup(e.hash, e.key); j != int32(i) {
			return errors.AssertionFailedf("entry %d: key %v found at entry %d", i, e.key, j)
		}
	}
	return nil
}

func (m *Map[K, V]) debugString() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "capacity=%d  count=%d  free-count=%d  free-list=%d  version=%d\n",
		len(m.entries), m.count, m.freeCount, m.freeList, m.version)
	for b, head := range m.buckets {
		if head < 0 {
			continue
		}
		fmt.Fprintf(&buf, "  bucket %4d:", b)
		for i, steps := head, 0; i >= 0 && int(i) < len(m.entries) && steps <= m.count; i, steps = m.entries[i].next, steps+1 {
			fmt.Fprintf(&buf, " %d", i)
		}
		buf.WriteString("\n")
	}
	for i := 0; i < m.count; i++ {
		e := &m.entries[i]
		if e.hash == freeHash {
			fmt.Fprintf(&buf, "  %4d: free next=%d\n", i, e.next)
		} else {
			fmt.Fprintf(&buf, "  %4d: %v [hash=%08x next=%d]\n", i, e.key, e.hash, e.next)
		}
	}
	return buf.String()
}
