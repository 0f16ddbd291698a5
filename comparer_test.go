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
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestComparers(t *testing.T) {
	t.Run("default", func(t *testing.T) {
		c := Default[string]()
		require.Equal(t, c.Hash("a"), c.Hash("a"))
		require.True(t, c.Equal("a", "a"))
		require.False(t, c.Equal("a", "b"))
	})

	t.Run("strings", func(t *testing.T) {
		c := Strings()
		// xxhash of the empty string.
		require.EqualValues(t, uint64(0xef46db3751d8e999), c.Hash(""))
		require.Equal(t, c.Hash("hello"), Strings().Hash("hello"))
		require.NotEqual(t, c.Hash("hello"), c.Hash("world"))
	})

	t.Run("keyed-strings", func(t *testing.T) {
		c := KeyedStrings(1, 2)
		require.Equal(t, c.Hash("hello"), KeyedStrings(1, 2).Hash("hello"))
		require.NotEqual(t, c.Hash("hello"), KeyedStrings(3, 4).Hash("hello"))
		require.True(t, c.Equal("x", "x"))
	})

	t.Run("integers", func(t *testing.T) {
		require.EqualValues(t, 42, Integers[int]().Hash(42))
		require.EqualValues(t, 7, Integers[uint8]().Hash(7))
		require.EqualValues(t, ^uint64(0), Integers[int64]().Hash(-1))
		require.True(t, Integers[int32]().Equal(-3, -3))
	})

	t.Run("func", func(t *testing.T) {
		calls := 0
		c := MakeComparer(
			func(k string) uint64 { calls++; return uint64(len(k)) },
			func(a, b string) bool { return a == b },
		)
		require.EqualValues(t, 3, c.Hash("abc"))
		require.Equal(t, 1, calls)
	})
}

func TestStringComparers(t *testing.T) {
	comparers := map[string]Comparer[string]{
		"default": Default[string](),
		"xxhash":  Strings(),
		"siphash": KeyedStrings(0x0706050403020100, 0x0f0e0d0c0b0a0908),
	}
	for name, c := range comparers {
		t.Run(name, func(t *testing.T) {
			m := newMap[string, int](t, 0, WithComparer[string, int](c))
			for i := 0; i < 1000; i++ {
				require.NoError(t, m.Add(fmt.Sprint(i), i))
			}
			require.NoError(t, m.validate())
			for i := 0; i < 1000; i++ {
				v, err := m.Get(fmt.Sprint(i))
				require.NoError(t, err)
				require.Equal(t, i, v)
			}
		})
	}
}

// caseInsensitive treats ASCII letters without regard to case.
func caseInsensitive() Comparer[string] {
	fold := func(s string) string {
		b := []byte(s)
		for i, c := range b {
			if 'A' <= c && c <= 'Z' {
				b[i] = c + 'a' - 'A'
			}
		}
		return string(b)
	}
	return MakeComparer(
		func(k string) uint64 { return Strings().Hash(fold(k)) },
		func(a, b string) bool { return fold(a) == fold(b) },
	)
}

func TestCustomEquality(t *testing.T) {
	m := newMap[string, int](t, 0, WithComparer[string, int](caseInsensitive()))
	require.NoError(t, m.Add("Hello", 1))
	require.ErrorIs(t, m.Add("HELLO", 2), ErrDuplicateKey)

	require.NoError(t, m.Set("hello", 3))
	require.EqualValues(t, 1, m.Len())

	// The originally inserted key is retained on update.
	require.Equal(t, map[string]int{"Hello": 3}, m.toBuiltinMap())

	removed, err := m.Remove("hElLo")
	require.NoError(t, err)
	require.True(t, removed)
	require.EqualValues(t, 0, m.Len())
}

func TestNilOptions(t *testing.T) {
	m := newMap[int, int](t, 0,
		WithComparer[int, int](nil),
		WithSizer[int, int](nil),
		WithAllocator[int, int](nil),
		WithLogger[int, int](nil))
	require.NotNil(t, m.comparer)
	require.NotNil(t, m.sizer)
	require.NotNil(t, m.allocator)
	require.NotNil(t, m.logger)
	require.NoError(t, m.Add(1, 1))
}
