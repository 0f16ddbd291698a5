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

import "github.com/cockroachdb/errors"

var (
	// ErrNullKey is returned when a nil key is passed to a Map operation.
	// Only keys of pointer, channel, interface and unsafe.Pointer kinds can
	// be nil.
	ErrNullKey = errors.New("hashdict: key is nil")

	// ErrDuplicateKey is returned by Add when the key is already present. The
	// Map is left unmodified.
	ErrDuplicateKey = errors.New("hashdict: an item with the same key has already been added")

	// ErrInvalidArgument is returned by New and Init for a negative capacity.
	ErrInvalidArgument = errors.New("hashdict: invalid argument")

	// ErrConcurrentModification is reported when a Map is mutated while an
	// iteration over it is in progress.
	ErrConcurrentModification = errors.New("hashdict: map was modified during iteration")

	// ErrKeyNotFound is returned by Get when the key is not present.
	ErrKeyNotFound = errors.New("hashdict: key not found")
)

func concurrentModification(started, current uint64) error {
	return errors.Wrapf(ErrConcurrentModification, "version %d changed to %d", started, current)
}
