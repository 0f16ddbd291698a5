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

// Package primes provides the prime-number capacity progression used to size
// hash tables that index buckets with a modulo operation. Prime table sizes
// spread hash codes that share common factors across more buckets than a
// power-of-two size would.
package primes

import (
	"math"
	"sort"
)

// MaxPrime is the largest prime capacity handed out by Expand. It is the
// largest prime below the maximum length of a table indexed by int32.
const MaxPrime = 0x7FFFFFC3

// hashPrime is excluded as a factor of p-1 for computed primes. Sizes where
// p-1 is a multiple of hashPrime interact badly with probing schemes that
// step by hash%hashPrime.
const hashPrime = 101

// table holds a precomputed subset of the progression. Each value is roughly
// 1.2x the previous one so that Next rarely has to compute a prime.
var table = [...]int{
	3, 7, 11, 17, 23, 29, 37, 47, 59, 71, 89, 107, 131, 163, 197, 239, 293, 353, 431, 521, 631, 761, 919,
	1103, 1327, 1597, 1931, 2333, 2801, 3371, 4049, 4861, 5839, 7013, 8419, 10103, 12143, 14591,
	17519, 21023, 25229, 30293, 36353, 43627, 52361, 62851, 75431, 90523, 108631, 130363, 156437,
	187751, 225307, 270371, 324449, 389357, 467237, 560689, 672827, 807403, 968897, 1162687, 1395263,
	1674319, 2009191, 2411033, 2893249, 3471899, 4166287, 4999559, 5999471, 7199369,
}

// IsPrime reports whether n is prime using trial division by odd numbers up
// to sqrt(n).
func IsPrime(n int) bool {
	if n < 2 {
		return false
	}
	if n&1 == 0 {
		return n == 2
	}
	limit := int(math.Sqrt(float64(n)))
	for d := 3; d <= limit; d += 2 {
		if n%d == 0 {
			return false
		}
	}
	return true
}

// Next returns the smallest prime in the progression that is >= min. Values
// of min <= 3 return 3.
func Next(min int) int {
	if i := sort.SearchInts(table[:], min); i < len(table) {
		return table[i]
	}

	// Outside of the precomputed table. Search odd numbers starting at min.
	for i := min | 1; i < math.MaxInt32; i += 2 {
		if IsPrime(i) && (i-1)%hashPrime != 0 {
			return i
		}
	}
	return min
}

// Expand returns the capacity to grow to from oldSize: the smallest prime >=
// 2*oldSize, capped at MaxPrime. The result is strictly greater than oldSize
// for every oldSize < MaxPrime.
func Expand(oldSize int) int {
	newSize := 2 * oldSize

	// Allow growth to the largest possible capacity before hitting overflow.
	// Note that this check works even when 2*oldSize overflowed thanks to the
	// uint conversion.
	if uint(newSize) > MaxPrime && MaxPrime > oldSize {
		return MaxPrime
	}
	return Next(newSize)
}
