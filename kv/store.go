// Copyright (c) 2019 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package kv defines the key-value interfaces the snapshot archive is built on.
//
// The archive keys snapshot blobs by root fork and keeps a few config values
// next to them. Both live in one Store, separated by Bucket prefixes.
package kv

// Getter reads single values. A missing key is reported as an error that
// IsNotFound recognizes, so callers can tell an absent snapshot from a broken
// db.
type Getter interface {
	Get(key []byte) ([]byte, error)
	Has(key []byte) (bool, error)
	IsNotFound(err error) bool
}

// Putter writes single values.
type Putter interface {
	Put(key, val []byte) error
	Delete(key []byte) error
}

// Bulk collects writes that land together on Write, such as a new blob and
// the latest root pointer that refers to it.
type Bulk interface {
	Putter
	Len() int
	Write() error
}

// Iterator walks keys in ascending byte order. Roots are encoded big endian,
// so snapshots come out oldest first. Release must be called when done.
type Iterator interface {
	Next() bool
	Key() []byte
	Value() []byte
	Release()
	Error() error
}

// Range selects keys k with Start <= k < Limit. A nil Limit is unbounded.
type Range struct {
	Start []byte
	Limit []byte
}

// Store is what the archive needs from a db.
type Store interface {
	Getter
	Putter

	Bulk() Bulk
	Iterate(r Range) Iterator
}
