// Copyright (c) 2021 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package kv

import (
	"github.com/syndtr/goleveldb/leveldb/util"
)

// Bucket provides logical bucket for kv store.
// Keys of the bucket are prefixed with the bucket name in the source store.
type Bucket string

// Key returns the source store key of k.
func (b Bucket) Key(k []byte) []byte {
	return append([]byte(b), k...)
}

// NewStore creates a bucket store from the source store.
func (b Bucket) NewStore(src Store) Store {
	return &bucketStore{b, src}
}

type bucketStore struct {
	b   Bucket
	src Store
}

func (s *bucketStore) Get(key []byte) ([]byte, error) { return s.src.Get(s.b.Key(key)) }
func (s *bucketStore) Has(key []byte) (bool, error)   { return s.src.Has(s.b.Key(key)) }
func (s *bucketStore) IsNotFound(err error) bool      { return s.src.IsNotFound(err) }
func (s *bucketStore) Put(key, val []byte) error      { return s.src.Put(s.b.Key(key), val) }
func (s *bucketStore) Delete(key []byte) error        { return s.src.Delete(s.b.Key(key)) }

func (s *bucketStore) Bulk() Bulk {
	return &bucketBulk{s.b, s.src.Bulk()}
}

func (s *bucketStore) Iterate(r Range) Iterator {
	rng := Range{Start: s.b.Key(r.Start)}
	if len(r.Limit) == 0 {
		rng.Limit = util.BytesPrefix([]byte(s.b)).Limit
	} else {
		rng.Limit = s.b.Key(r.Limit)
	}
	return &bucketIterator{len(s.b), s.src.Iterate(rng)}
}

type bucketBulk struct {
	b Bucket
	Bulk
}

func (bb *bucketBulk) Put(key, val []byte) error { return bb.Bulk.Put(bb.b.Key(key), val) }
func (bb *bucketBulk) Delete(key []byte) error   { return bb.Bulk.Delete(bb.b.Key(key)) }

// bucketIterator strips the bucket prefix from keys.
type bucketIterator struct {
	n int
	Iterator
}

func (it *bucketIterator) Key() []byte { return it.Iterator.Key()[it.n:] }
